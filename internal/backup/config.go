// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// Defaults applied by Options.withDefaults.
const (
	DefaultRetentionCount = 10
	DefaultPreferredHour  = 3
	DefaultHistoryLimit   = 20
)

// Options configures the backup manager.
type Options struct {
	// Dir holds the archives.
	Dir string

	// UploadsDir and ThemesDir are archived by full backups. Empty
	// directories are skipped.
	UploadsDir string
	ThemesDir  string

	// ScheduledType is the type of scheduled runs. Defaults to TypeDatabase,
	// or TypeFull when IncludeUploads is set.
	ScheduledType  Type
	IncludeUploads bool

	// Interval between scheduled runs. Zero disables the scheduler.
	Interval time.Duration

	// PreferredHour (0-23) aligns daily and longer intervals.
	PreferredHour int

	// RetentionCount keeps at most this many archives; 0 keeps all.
	RetentionCount int

	// RetentionDays deletes archives older than this; 0 disables the age rule.
	RetentionDays int

	// Version is written into every manifest.
	Version string
}

func (o Options) withDefaults() Options {
	if o.ScheduledType == "" {
		o.ScheduledType = TypeDatabase
		if o.IncludeUploads {
			o.ScheduledType = TypeFull
		}
	}
	if o.PreferredHour == 0 {
		o.PreferredHour = DefaultPreferredHour
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	return o
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.Dir == "" {
		return errors.New("backup directory is required")
	}
	if o.Interval < 0 {
		return fmt.Errorf("backup interval must not be negative, got %s", o.Interval)
	}
	if o.Interval > 0 && o.Interval < time.Minute {
		return fmt.Errorf("backup interval must be at least 1m, got %s", o.Interval)
	}
	if o.PreferredHour < 0 || o.PreferredHour > 23 {
		return fmt.Errorf("preferred hour must be 0-23, got %d", o.PreferredHour)
	}
	if o.RetentionCount < 0 || o.RetentionDays < 0 {
		return errors.New("retention limits must not be negative")
	}
	if o.ScheduledType != "" && !o.ScheduledType.Valid() {
		return fmt.Errorf("unknown backup type %q", o.ScheduledType)
	}
	return nil
}

// ensureDir creates the backup directory.
func (o Options) ensureDir() error {
	if err := os.MkdirAll(o.Dir, 0o750); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}
	return nil
}
