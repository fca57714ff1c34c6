// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/inkwell/internal/logging"
)

// ExportExt is the file extension of exported table files.
const ExportExt = ".parquet"

// ExportTables writes every table in Tables to dir as one Parquet file per
// table and returns the written file paths.
func (db *DB) ExportTables(ctx context.Context, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint before export failed")
	}

	files := make([]string, 0, len(Tables))
	for _, t := range Tables {
		path := filepath.Join(dir, t+ExportExt)
		q := fmt.Sprintf("COPY (SELECT * FROM %s) TO %s (FORMAT PARQUET)", t, quoteLiteral(path))
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return files, fmt.Errorf("failed to export %s: %w", t, err)
		}
		files = append(files, path)
	}
	return files, nil
}

// ImportTables replaces the contents of every table that has an export file
// in dir. Tables named in skip are left untouched. Sequences are advanced
// past the imported ids so new rows do not collide.
func (db *DB) ImportTables(ctx context.Context, dir string, skip ...string) ([]string, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	var imported []string
	for _, t := range Tables {
		if skipped[t] {
			continue
		}
		path := filepath.Join(dir, t+ExportExt)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return imported, fmt.Errorf("failed to stat %s: %w", path, err)
		}
		if _, err := db.conn.ExecContext(ctx, "DELETE FROM "+t); err != nil {
			return imported, fmt.Errorf("failed to clear %s: %w", t, err)
		}
		q := fmt.Sprintf("INSERT INTO %s SELECT * FROM read_parquet(%s)", t, quoteLiteral(path))
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return imported, fmt.Errorf("failed to import %s: %w", t, err)
		}
		if isSequenced(t) {
			if err := db.syncSequence(ctx, t); err != nil {
				return imported, err
			}
		}
		imported = append(imported, t)
	}

	db.InvalidateOptions()
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Checkpoint after import failed")
	}
	return imported, nil
}

// syncSequence advances seq_<table> until its next value exceeds MAX(id).
func (db *DB) syncSequence(ctx context.Context, table string) error {
	var maxID sql.NullInt64
	if err := db.conn.QueryRowContext(ctx, "SELECT MAX(id) FROM "+table).Scan(&maxID); err != nil {
		return fmt.Errorf("failed to read max id of %s: %w", table, err)
	}
	if !maxID.Valid {
		return nil
	}
	seq := "seq_" + table
	var next int64
	if err := db.conn.QueryRowContext(ctx, fmt.Sprintf("SELECT nextval('%s')", seq)).Scan(&next); err != nil {
		return fmt.Errorf("failed to read %s: %w", seq, err)
	}
	if next > maxID.Int64 {
		return nil
	}
	gap := maxID.Int64 - next
	q := fmt.Sprintf("SELECT CAST(MAX(nextval('%s')) AS BIGINT) FROM range(?)", seq)
	if err := db.conn.QueryRowContext(ctx, q, gap+1).Scan(&next); err != nil {
		return fmt.Errorf("failed to advance %s: %w", seq, err)
	}
	return nil
}

func isSequenced(table string) bool {
	for _, t := range sequenced {
		if t == table {
			return true
		}
	}
	return false
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
