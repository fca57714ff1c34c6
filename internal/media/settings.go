// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package media

import (
	"context"
	"fmt"
	"slices"

	"github.com/dustin/go-humanize"
)

const settingsOption = "media_settings"

// Type groups map extensions to the groups the settings allow.
var TypeGroups = map[string][]string{
	"image":    {"jpg", "jpeg", "png", "gif", "webp", "bmp", "ico"},
	"video":    {"mp4", "webm", "ogg", "mov", "avi", "mkv"},
	"audio":    {"mp3", "wav", "aac", "flac", "m4a"},
	"document": {"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "txt", "rtf", "csv"},
	"archive":  {"zip", "rar", "7z", "tar", "gz"},
	"svg":      {"svg"},
	"plugin":   {"zip"},
	"theme":    {"zip"},
}

// Settings control uploads.
type Settings struct {
	MaxUploadSize     string   `json:"max_upload_size"`
	AllowedTypes      []string `json:"allowed_types"`
	AutoWebP          bool     `json:"auto_webp"`
	StripEXIF         bool     `json:"strip_exif"`
	MaxWidth          int      `json:"max_width"`
	MaxHeight         int      `json:"max_height"`
	OrganizeMonthYear bool     `json:"organize_month_year"`
}

// DefaultSettings apply until settings are saved.
func DefaultSettings() Settings {
	return Settings{
		MaxUploadSize:     "64MiB",
		AllowedTypes:      []string{"image", "document", "video", "audio", "archive"},
		AutoWebP:          true,
		StripEXIF:         true,
		MaxWidth:          2560,
		MaxHeight:         2560,
		OrganizeMonthYear: true,
	}
}

// MaxBytes parses MaxUploadSize ("64MiB", "10 MB", "512k").
func (st Settings) MaxBytes() (int64, error) {
	n, err := humanize.ParseBytes(st.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid max upload size %q: %w", st.MaxUploadSize, err)
	}
	return int64(n), nil
}

// group returns the first allowed group containing ext.
func (st Settings) group(ext string) (string, bool) {
	for _, g := range st.AllowedTypes {
		if slices.Contains(TypeGroups[g], ext) {
			return g, true
		}
	}
	return "", false
}

// Settings loads the saved settings over the defaults.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	st := DefaultSettings()
	if s.db == nil {
		return st, nil
	}
	if _, err := s.db.GetOptionJSON(ctx, settingsOption, &st); err != nil {
		return DefaultSettings(), err
	}
	return st, nil
}

// SaveSettings validates and stores st.
func (s *Service) SaveSettings(ctx context.Context, st Settings) error {
	if _, err := st.MaxBytes(); err != nil {
		return err
	}
	for _, g := range st.AllowedTypes {
		if _, ok := TypeGroups[g]; !ok {
			return fmt.Errorf("%w: %s", ErrTypeNotAllowed, g)
		}
	}
	if st.MaxWidth < 0 || st.MaxHeight < 0 {
		return fmt.Errorf("image dimensions must not be negative")
	}
	return s.db.UpdateOptionJSON(ctx, settingsOption, st)
}
