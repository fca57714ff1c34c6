// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/tomtom215/inkwell/internal/models"
)

// sniffLen is how much of an upload mimetype inspects.
const sniffLen = 3072

// deniedMIME are never accepted regardless of extension.
var deniedMIME = []string{
	"text/html", "application/javascript", "text/javascript", "application/x-php",
	"application/x-executable", "application/x-elf", "application/vnd.microsoft.portable-executable",
	"application/x-sh", "text/x-shellscript",
}

// Upload is a file being uploaded.
type Upload struct {
	Name   string
	Size   int64 // declared size, -1 when unknown
	Reader io.Reader
}

// Upload stores the file under target (or YYYY/MM when target is empty and
// the settings organize by date) and returns its relative path. Existing
// names get a -N suffix.
func (s *Service) Upload(ctx context.Context, up Upload, target string, uploader *models.User) (string, error) {
	st, err := s.Settings(ctx)
	if err != nil {
		return "", err
	}
	limit, err := st.MaxBytes()
	if err != nil {
		return "", err
	}
	if up.Size > limit {
		return "", fmt.Errorf("%w (%s)", ErrTooLarge, st.MaxUploadSize)
	}
	name := SanitizeFileName(up.Name)
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	group, ok := st.group(ext)
	if !ok || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %s", ErrTypeNotAllowed, ext)
	}
	if target == "" && st.OrganizeMonthYear {
		target = s.now().UTC().Format("2006/01")
	}
	dir, cleanDir, err := s.resolve(target)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", cleanDir, err)
	}

	tmp := filepath.Join(dir, ".upload-"+uuid.NewString())
	if err := s.receive(tmp, up.Reader, limit, group); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}

	final := uniqueName(dir, name)
	if err := os.Rename(tmp, filepath.Join(dir, final)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	rel := strings.TrimPrefix(path.Join(cleanDir, final), "/")
	err = s.updateMeta(func(m *metaFile) {
		fm := fileMeta{CreatedAt: s.now().UTC()}
		fm.setUploader(uploader)
		if isSystemPath(rel) {
			fm.Category, _, _ = strings.Cut(rel, "/")
		}
		m.Files[rel] = fm
	})
	if err != nil {
		return rel, err
	}
	s.logActivity(ctx, uploader, "media_uploaded", "Uploaded "+rel)
	return rel, nil
}

// receive copies r into dst, enforcing limit and checking the sniffed type
// against group.
func (s *Service) receive(dst string, r io.Reader, limit int64, group string) error {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if err := checkContent(mimetype.Detect(head), group); err != nil {
		return err
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	written, err := io.Copy(f, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write upload: %w", err)
	}
	if written > limit {
		return ErrTooLarge
	}
	return nil
}

func checkContent(mt *mimetype.MIME, group string) error {
	for m := mt; m != nil; m = m.Parent() {
		for _, d := range deniedMIME {
			if m.Is(d) {
				return ErrContentMismatch
			}
		}
	}
	mime := mt.String()
	switch group {
	case "image":
		if !strings.HasPrefix(mime, "image/") {
			return ErrContentMismatch
		}
	case "svg":
		if !mt.Is("image/svg+xml") {
			return ErrContentMismatch
		}
	case "video", "audio":
		if !strings.HasPrefix(mime, "video/") && !strings.HasPrefix(mime, "audio/") && !mt.Is("application/ogg") {
			return ErrContentMismatch
		}
	}
	return nil
}

// uniqueName returns name, or name-N.ext for the first N that is free.
func uniqueName(dir, name string) string {
	if _, err := os.Lstat(filepath.Join(dir, name)); err != nil {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate := base + "-" + strconv.Itoa(i) + ext
		if _, err := os.Lstat(filepath.Join(dir, candidate)); err != nil {
			return candidate
		}
	}
}
