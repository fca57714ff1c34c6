// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// SystemFolders are the protected top-level folders.
var SystemFolders = []string{"themes", "plugins", "assets", "fonts", "dl-manager", "form-uploads"}

const metaFileName = ".media_meta.json"

// Service is the MediaService.
type Service struct {
	db      *database.DB
	root    string
	baseURL string
	now     func() time.Time

	metaMu sync.Mutex
}

// New creates the service for root, whose files are served under baseURL.
// The root is created when missing.
func New(db *database.DB, root, baseURL string) (*Service, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve uploads root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads root: %w", err)
	}
	s := &Service{db: db, root: abs, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
	if err := s.ensureSystemCategories(); err != nil {
		return nil, err
	}
	return s, nil
}

// Root returns the absolute uploads directory.
func (s *Service) Root() string { return s.root }

// resolve maps a slash-separated relative path to an absolute path inside
// the root. It returns the cleaned relative path too.
func (s *Service) resolve(rel string) (abs, clean string, err error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	if strings.Contains(rel, "..") || strings.ContainsRune(rel, 0) {
		return "", "", ErrInvalidPath
	}
	clean = strings.Trim(path.Clean("/"+rel), "/")
	abs = filepath.Join(s.root, filepath.FromSlash(clean))
	r, err := filepath.Rel(s.root, abs)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", "", ErrInvalidPath
	}
	return abs, clean, nil
}

func isSystemPath(rel string) bool {
	top, _, _ := strings.Cut(rel, "/")
	return slices.Contains(SystemFolders, top)
}

func isSystemFolder(rel string) bool {
	return rel != "" && !strings.Contains(rel, "/") && slices.Contains(SystemFolders, rel)
}

// Item is one entry of a folder listing.
type Item struct {
	Name          string    `json:"name"`
	Path          string    `json:"path"`
	Type          string    `json:"type"`
	URL           string    `json:"url,omitempty"`
	Size          int64     `json:"size,omitempty"`
	SizeFormatted string    `json:"size_formatted,omitempty"`
	MimeType      string    `json:"mime_type,omitempty"`
	ItemsCount    int       `json:"items_count,omitempty"`
	Modified      time.Time `json:"modified"`
	Category      string    `json:"category,omitempty"`
	UploaderID    int64     `json:"uploader_id,omitempty"`
	UploadedBy    string    `json:"uploaded_by,omitempty"`
	IsSystem      bool      `json:"is_system"`
}

// Listing is a folder's content, folders first.
type Listing struct {
	Path    string `json:"path"`
	Folders []Item `json:"folders"`
	Files   []Item `json:"files"`
}

// Items lists the folder at rel. Hidden entries are skipped.
func (s *Service) Items(rel string) (*Listing, error) {
	dir, clean, err := s.resolve(rel)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, ErrNotDirectory
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", clean, err)
	}
	meta, err := s.loadMeta()
	if err != nil {
		return nil, err
	}

	out := &Listing{Path: clean, Folders: []Item{}, Files: []Item{}}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		itemRel := strings.TrimPrefix(clean+"/"+e.Name(), "/")
		fm := meta.Files[itemRel]
		it := Item{
			Name:       e.Name(),
			Path:       itemRel,
			Modified:   info.ModTime(),
			Category:   fm.Category,
			UploaderID: fm.UploaderID,
			UploadedBy: fm.UploadedBy,
			IsSystem:   isSystemPath(itemRel),
		}
		if it.Category == "" && it.IsSystem {
			it.Category, _, _ = strings.Cut(itemRel, "/")
		}
		full := filepath.Join(dir, e.Name())
		if e.IsDir() {
			it.Type = "folder"
			if sub, err := os.ReadDir(full); err == nil {
				it.ItemsCount = len(sub)
			}
			out.Folders = append(out.Folders, it)
			continue
		}
		it.Type = strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		it.URL = s.baseURL + "/" + itemRel
		it.Size = info.Size()
		it.SizeFormatted = humanize.IBytes(uint64(info.Size()))
		if mt, err := mimetype.DetectFile(full); err == nil {
			it.MimeType = mt.String()
		}
		out.Files = append(out.Files, it)
	}
	return out, nil
}

// CreateFolder makes a sanitized folder under parent.
func (s *Service) CreateFolder(ctx context.Context, name, parent string, uploader *models.User) (string, error) {
	name = SanitizeFileName(name)
	if name == "" || strings.HasPrefix(name, ".") {
		return "", ErrInvalidPath
	}
	dir, clean, err := s.resolve(path.Join(parent, name))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(dir); err == nil {
		return "", ErrExists
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}
	err = s.updateMeta(func(m *metaFile) {
		fm := fileMeta{CreatedAt: s.now().UTC()}
		fm.setUploader(uploader)
		if isSystemPath(clean) {
			fm.Category, _, _ = strings.Cut(clean, "/")
		}
		m.Files[clean] = fm
	})
	if err != nil {
		return "", err
	}
	s.logActivity(ctx, uploader, "media_folder_created", "Created folder "+clean)
	return clean, nil
}

// Delete removes a file or a folder tree.
func (s *Service) Delete(ctx context.Context, rel string, actor *models.User) error {
	full, clean, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if clean == "" || isSystemFolder(clean) || clean == metaFileName {
		return ErrSystemItem
	}
	if _, err := os.Lstat(full); errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err := os.RemoveAll(full); err != nil {
		return fmt.Errorf("failed to delete %s: %w", clean, err)
	}
	if err := s.updateMeta(func(m *metaFile) { m.dropTree(clean, "") }); err != nil {
		return err
	}
	s.logActivity(ctx, actor, "media_deleted", "Deleted "+clean)
	return nil
}

// Rename gives the item at rel a new sanitized name in the same folder and
// returns its new relative path.
func (s *Service) Rename(ctx context.Context, rel, newName string, actor *models.User) (string, error) {
	full, clean, err := s.resolve(rel)
	if err != nil {
		return "", err
	}
	if clean == "" || isSystemFolder(clean) {
		return "", ErrSystemItem
	}
	newName = SanitizeFileName(newName)
	if newName == "" || strings.HasPrefix(newName, ".") {
		return "", ErrInvalidPath
	}
	if _, err := os.Lstat(full); errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	target, targetRel, err := s.resolve(path.Join(path.Dir(clean), newName))
	if err != nil {
		return "", err
	}
	if _, err := os.Lstat(target); err == nil {
		return "", ErrExists
	}
	if err := os.Rename(full, target); err != nil {
		return "", fmt.Errorf("failed to rename %s: %w", clean, err)
	}
	if err := s.updateMeta(func(m *metaFile) { m.dropTree(clean, targetRel) }); err != nil {
		return "", err
	}
	s.logActivity(ctx, actor, "media_renamed", "Renamed "+clean+" to "+targetRel)
	return targetRel, nil
}

// Usage is the uploads directory footprint.
type Usage struct {
	Size      int64  `json:"size"`
	Count     int    `json:"count"`
	Formatted string `json:"formatted"`
}

// DiskUsage walks the root and sums file sizes.
func (s *Service) DiskUsage() (Usage, error) {
	var u Usage
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == metaFileName {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		u.Size += info.Size()
		u.Count++
		return nil
	})
	if err != nil {
		return u, fmt.Errorf("failed to measure uploads: %w", err)
	}
	u.Formatted = humanize.IBytes(uint64(u.Size))
	return u, nil
}

// SanitizeFileName replaces every character outside [A-Za-z0-9_.-] with an
// underscore.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (s *Service) logActivity(ctx context.Context, actor *models.User, action, desc string) {
	if s.db == nil {
		return
	}
	a := models.Activity{Action: action, EntityType: "media", Description: desc}
	if actor != nil {
		id := actor.ID
		a.UserID = &id
	}
	if err := s.db.LogActivity(ctx, a); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Failed to log media activity")
	}
}
