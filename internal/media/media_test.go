// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func newService(t *testing.T) *Service {
	t.Helper()
	s, err := New(testinfra.NewDB(t), t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.now = func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) }
	return s
}

func upload(name string, body []byte) Upload {
	return Upload{Name: name, Size: int64(len(body)), Reader: bytes.NewReader(body)}
}

func TestResolveConfinesToRoot(t *testing.T) {
	s := newService(t)
	for _, p := range []string{"../etc", "a/../../b", "..", "a\\..\\..\\x"} {
		if _, _, err := s.resolve(p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("resolve(%q) err = %v", p, err)
		}
	}
	abs, clean, err := s.resolve("/photos//2026/")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if clean != "photos/2026" || abs != filepath.Join(s.Root(), "photos", "2026") {
		t.Errorf("resolve = %q, %q", abs, clean)
	}
}

func TestUpload(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	u := &models.User{ID: 7, Username: "ed", DisplayName: "Ed"}

	rel, err := s.Upload(ctx, upload("My Photo!.png", pngHeader), "", u)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if rel != "2026/04/My_Photo_.png" {
		t.Errorf("rel = %q", rel)
	}
	again, err := s.Upload(ctx, upload("My Photo!.png", pngHeader), "", u)
	if err != nil || again != "2026/04/My_Photo_-1.png" {
		t.Errorf("second upload = %q, %v", again, err)
	}
	notes, err := s.Upload(ctx, upload("notes.txt", []byte("plain notes")), "docs", nil)
	if err != nil || notes != "docs/notes.txt" {
		t.Errorf("text upload = %q, %v", notes, err)
	}

	tests := []struct {
		name string
		up   Upload
		want error
	}{
		{"extension", upload("tool.exe", []byte("MZ")), ErrTypeNotAllowed},
		{"disguised html", upload("page.txt", []byte("<!DOCTYPE html><html><body>x</body></html>")), ErrContentMismatch},
		{"fake image", upload("cat.jpg", []byte("just text")), ErrContentMismatch},
		{"declared size", Upload{Name: "big.txt", Size: 1 << 40, Reader: strings.NewReader("x")}, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Upload(ctx, tt.up, "", nil); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	st := DefaultSettings()
	st.MaxUploadSize = "10B"
	if err := s.SaveSettings(ctx, st); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	_, err = s.Upload(ctx, Upload{Name: "long.txt", Size: -1, Reader: strings.NewReader(strings.Repeat("a", 64))}, "", nil)
	if !errors.Is(err, ErrTooLarge) {
		t.Errorf("streamed size err = %v", err)
	}
	entries, _ := os.ReadDir(filepath.Join(s.Root(), "2026", "04"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".upload-") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestItemsFoldersAndRename(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	u := &models.User{ID: 3, Username: "ann"}

	if _, err := s.CreateFolder(ctx, "gallery", "", u); err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if _, err := s.CreateFolder(ctx, "gallery", "", u); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate folder err = %v", err)
	}
	if _, err := s.CreateFolder(ctx, "assets", "", nil); err != nil {
		t.Fatalf("CreateFolder assets: %v", err)
	}
	if _, err := s.Upload(ctx, upload("a.png", pngHeader), "gallery", u); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	root, err := s.Items("")
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(root.Folders) != 2 || len(root.Files) != 0 {
		t.Fatalf("root listing = %+v", root)
	}
	for _, f := range root.Folders {
		if f.Name == "assets" && (!f.IsSystem || f.Category != "assets") {
			t.Errorf("assets folder = %+v", f)
		}
	}
	gallery, err := s.Items("gallery")
	if err != nil {
		t.Fatalf("Items gallery: %v", err)
	}
	if len(gallery.Files) != 1 {
		t.Fatalf("gallery = %+v", gallery)
	}
	f := gallery.Files[0]
	if f.URL != "/uploads/gallery/a.png" || f.MimeType != "image/png" || f.UploadedBy != "ann" || f.Type != "png" {
		t.Errorf("file item = %+v", f)
	}
	if _, err := s.Items("missing"); !errors.Is(err, ErrNotDirectory) {
		t.Errorf("missing dir err = %v", err)
	}

	if err := s.AssignCategory("gallery/a.png", "assets"); err != nil {
		t.Fatalf("AssignCategory: %v", err)
	}
	moved, err := s.Rename(ctx, "gallery", "pictures", u)
	if err != nil || moved != "pictures" {
		t.Fatalf("Rename = %q, %v", moved, err)
	}
	pics, _ := s.Items("pictures")
	if len(pics.Files) != 1 || pics.Files[0].Category != "assets" {
		t.Errorf("metadata did not follow rename: %+v", pics.Files)
	}
	if _, err := s.Rename(ctx, "assets", "x", u); !errors.Is(err, ErrSystemItem) {
		t.Errorf("rename system folder err = %v", err)
	}

	if err := s.Delete(ctx, "assets", u); !errors.Is(err, ErrSystemItem) {
		t.Errorf("delete system folder err = %v", err)
	}
	if err := s.Delete(ctx, "nope.png", u); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing err = %v", err)
	}
	if err := s.Delete(ctx, "pictures", u); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	usage, err := s.DiskUsage()
	if err != nil {
		t.Fatalf("DiskUsage: %v", err)
	}
	if usage.Count != 0 || usage.Size != 0 {
		t.Errorf("usage after delete = %+v", usage)
	}
}

func TestCategories(t *testing.T) {
	s := newService(t)
	cats, err := s.Categories()
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != len(systemCategories) {
		t.Fatalf("system categories = %d", len(cats))
	}
	c, err := s.AddCategory("Press Kit", "")
	if err != nil || c.Slug != "press-kit" {
		t.Fatalf("AddCategory = %+v, %v", c, err)
	}
	if _, err := s.AddCategory("Press kit", "press-kit"); !errors.Is(err, ErrCategoryExists) {
		t.Errorf("duplicate category err = %v", err)
	}
	if err := s.DeleteCategory("fonts"); !errors.Is(err, ErrSystemItem) {
		t.Errorf("delete system category err = %v", err)
	}

	if err := os.WriteFile(filepath.Join(s.Root(), "logo.svg"), []byte("<svg/>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.AssignCategory("logo.svg", "nope"); !errors.Is(err, ErrUnknownCategory) {
		t.Errorf("unknown category err = %v", err)
	}
	if err := s.AssignCategory("logo.svg", "press-kit"); err != nil {
		t.Fatalf("AssignCategory: %v", err)
	}
	cats, _ = s.Categories()
	for _, c := range cats {
		if c.Slug == "press-kit" && c.Count != 1 {
			t.Errorf("press-kit count = %d", c.Count)
		}
	}
	if err := s.DeleteCategory("press-kit"); err != nil {
		t.Fatalf("DeleteCategory: %v", err)
	}
	items, _ := s.Items("")
	if len(items.Files) != 1 || items.Files[0].Category != "" {
		t.Errorf("category not cleared: %+v", items.Files)
	}
}

func TestSettings(t *testing.T) {
	s := newService(t)
	ctx := context.Background()
	st, err := s.Settings(ctx)
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	if n, _ := st.MaxBytes(); n != 64<<20 {
		t.Errorf("default max = %d", n)
	}
	st.AllowedTypes = []string{"bogus"}
	if err := s.SaveSettings(ctx, st); !errors.Is(err, ErrTypeNotAllowed) {
		t.Errorf("bad group err = %v", err)
	}
	st = DefaultSettings()
	st.AllowedTypes = []string{"svg"}
	if err := s.SaveSettings(ctx, st); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if _, err := s.Upload(ctx, upload("a.png", pngHeader), "", nil); !errors.Is(err, ErrTypeNotAllowed) {
		t.Errorf("png after restricting err = %v", err)
	}
	if _, err := s.Upload(ctx, upload("icon.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)), "", nil); err != nil {
		t.Errorf("svg upload: %v", err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := map[string]string{
		"hello world.jpg":  "hello_world.jpg",
		"../../etc/passwd": "passwd",
		"ümlaut.png":       "_mlaut.png",
		"ok-name_1.pdf":    "ok-name_1.pdf",
	}
	for in, want := range tests {
		if got := SanitizeFileName(in); got != want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
