// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package media

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/models"
)

// Category groups media files.
type Category struct {
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Count    int    `json:"count"`
	IsSystem bool   `json:"is_system,omitempty"`
}

type fileMeta struct {
	Category   string    `json:"category,omitempty"`
	UploaderID int64     `json:"uploader_id,omitempty"`
	UploadedBy string    `json:"uploaded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *fileMeta) setUploader(u *models.User) {
	if u == nil {
		m.UploadedBy = "System"
		return
	}
	m.UploaderID, m.UploadedBy = u.ID, u.DisplayName
	if m.UploadedBy == "" {
		m.UploadedBy = u.Username
	}
}

type metaFile struct {
	Categories []Category          `json:"categories"`
	Files      map[string]fileMeta `json:"files"`
}

// dropTree removes or, when to is non-empty, re-keys every entry at or
// below from.
func (m *metaFile) dropTree(from, to string) {
	for k, v := range m.Files {
		if k != from && !strings.HasPrefix(k, from+"/") {
			continue
		}
		delete(m.Files, k)
		if to != "" {
			m.Files[to+strings.TrimPrefix(k, from)] = v
		}
	}
}

var systemCategories = []Category{
	{Name: "Themes", Slug: "themes", IsSystem: true},
	{Name: "Plugins", Slug: "plugins", IsSystem: true},
	{Name: "Assets", Slug: "assets", IsSystem: true},
	{Name: "Fonts", Slug: "fonts", IsSystem: true},
	{Name: "Downloads", Slug: "dl-manager", IsSystem: true},
	{Name: "Form Uploads", Slug: "form-uploads", IsSystem: true},
}

func (s *Service) metaPath() string { return filepath.Join(s.root, metaFileName) }

// loadMeta reads the metadata file. A missing file is empty metadata.
func (s *Service) loadMeta() (*metaFile, error) {
	m := &metaFile{Files: map[string]fileMeta{}}
	raw, err := os.ReadFile(s.metaPath())
	if errors.Is(err, fs.ErrNotExist) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read media metadata: %w", err)
	}
	if err := json.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("media metadata is corrupt: %w", err)
	}
	if m.Files == nil {
		m.Files = map[string]fileMeta{}
	}
	return m, nil
}

func (s *Service) saveMeta(m *metaFile) error {
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode media metadata: %w", err)
	}
	tmp := s.metaPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write media metadata: %w", err)
	}
	return os.Rename(tmp, s.metaPath())
}

// updateMeta applies fn under the metadata lock and saves the result.
func (s *Service) updateMeta(fn func(*metaFile)) error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	m, err := s.loadMeta()
	if err != nil {
		return err
	}
	fn(m)
	return s.saveMeta(m)
}

func (s *Service) ensureSystemCategories() error {
	s.metaMu.Lock()
	defer s.metaMu.Unlock()
	m, err := s.loadMeta()
	if err != nil {
		return err
	}
	changed := false
	for _, c := range systemCategories {
		if !slices.ContainsFunc(m.Categories, func(e Category) bool { return e.Slug == c.Slug }) {
			m.Categories = append(m.Categories, c)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveMeta(m)
}

// Categories returns every category with its current file count.
func (s *Service) Categories() ([]Category, error) {
	s.metaMu.Lock()
	m, err := s.loadMeta()
	s.metaMu.Unlock()
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, f := range m.Files {
		if f.Category != "" {
			counts[f.Category]++
		}
	}
	out := slices.Clone(m.Categories)
	for i := range out {
		out[i].Count = counts[out[i].Slug]
	}
	return out, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9-]+`)

// AddCategory creates a category. An empty slug is derived from name.
func (s *Service) AddCategory(name, slug string) (*Category, error) {
	name = strings.TrimSpace(name)
	if slug == "" {
		slug = name
	}
	slug = strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(slug), "-"), "-")
	if name == "" || slug == "" {
		return nil, ErrInvalidPath
	}
	c := Category{Name: name, Slug: slug}
	var exists bool
	err := s.updateMeta(func(m *metaFile) {
		if slices.ContainsFunc(m.Categories, func(e Category) bool { return e.Slug == slug }) {
			exists = true
			return
		}
		m.Categories = append(m.Categories, c)
	})
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrCategoryExists
	}
	return &c, nil
}

// DeleteCategory removes a user category and clears it from files.
func (s *Service) DeleteCategory(slug string) error {
	if slices.ContainsFunc(systemCategories, func(c Category) bool { return c.Slug == slug }) {
		return ErrSystemItem
	}
	return s.updateMeta(func(m *metaFile) {
		m.Categories = slices.DeleteFunc(m.Categories, func(c Category) bool { return c.Slug == slug })
		for k, f := range m.Files {
			if f.Category == slug {
				f.Category = ""
				m.Files[k] = f
			}
		}
	})
}

// AssignCategory tags the item at rel with slug. An empty slug clears it.
func (s *Service) AssignCategory(rel, slug string) error {
	full, clean, err := s.resolve(rel)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(full); err != nil {
		return ErrNotFound
	}
	var unknown bool
	err = s.updateMeta(func(m *metaFile) {
		if slug != "" && !slices.ContainsFunc(m.Categories, func(c Category) bool { return c.Slug == slug }) {
			unknown = true
			return
		}
		f := m.Files[clean]
		f.Category = slug
		m.Files[clean] = f
	})
	if err != nil {
		return err
	}
	if unknown {
		return ErrUnknownCategory
	}
	return nil
}
