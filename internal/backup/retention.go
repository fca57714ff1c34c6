// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/inkwell/internal/logging"
)

// selectExpired picks the archives outside the retention limits. files must
// be sorted newest first; the newest archive is never selected.
func selectExpired(files []File, maxCount, maxDays int, now time.Time) []File {
	var cutoff time.Time
	if maxDays > 0 {
		cutoff = now.AddDate(0, 0, -maxDays)
	}
	var out []File
	for i, f := range files {
		if i == 0 {
			continue
		}
		overCount := maxCount > 0 && i >= maxCount
		tooOld := !cutoff.IsZero() && f.CreatedAt.Before(cutoff)
		if overCount || tooOld {
			out = append(out, f)
		}
	}
	return out
}

// ApplyRetention deletes archives beyond RetentionCount or older than
// RetentionDays.
func (m *Manager) ApplyRetention(ctx context.Context) (RetentionResult, error) {
	res := RetentionResult{Deleted: []string{}}
	if m.opts.RetentionCount == 0 && m.opts.RetentionDays == 0 {
		return res, nil
	}
	files, err := m.ListBackups()
	if err != nil {
		return res, err
	}

	var errs []error
	for _, f := range selectExpired(files, m.opts.RetentionCount, m.opts.RetentionDays, m.now()) {
		if err := os.Remove(filepath.Join(m.opts.Dir, f.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		if err := m.markDeleted(ctx, f.Name); err != nil {
			errs = append(errs, err)
		}
		res.Deleted = append(res.Deleted, f.Name)
		res.Freed += f.Size
	}

	if len(res.Deleted) > 0 {
		logging.Ctx(ctx).Info().
			Int("deleted", len(res.Deleted)).
			Str("freed", humanize.IBytes(uint64(res.Freed))).
			Msg("Backup retention applied")
	}
	return res, errors.Join(errs...)
}
