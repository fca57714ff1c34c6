// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
)

// Errors returned by the manager.
var (
	ErrInProgress     = errors.New("another backup or restore is running")
	ErrInvalidName    = errors.New("invalid backup name")
	ErrBackupNotFound = errors.New("backup not found")
	ErrChecksum       = errors.New("backup checksum mismatch")
)

// Manager creates and restores backups.
type Manager struct {
	db    *database.DB
	hooks *hooks.Registry
	opts  Options
	now   func() time.Time

	// run serializes backups and restores.
	run sync.Mutex

	nextMu sync.RWMutex
	next   time.Time
}

// New validates opts and creates the backup directory. registry may be nil.
func New(db *database.DB, registry *hooks.Registry, opts Options) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	if err := opts.ensureDir(); err != nil {
		return nil, err
	}
	return &Manager{db: db, hooks: registry, opts: opts, now: time.Now}, nil
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.opts.Dir
}

func (m *Manager) insertHistory(ctx context.Context, b *Backup) error {
	err := m.db.Conn().QueryRowContext(ctx, `
		INSERT INTO backup_history (type, filename, status, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id`,
		string(b.Type), b.Filename, string(b.Status), sql.NullInt64{Int64: b.CreatedBy, Valid: b.CreatedBy > 0},
		b.CreatedAt.UTC()).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to record backup: %w", err)
	}
	return nil
}

func (m *Manager) finishHistory(ctx context.Context, b *Backup) error {
	_, err := m.db.Conn().ExecContext(ctx, `
		UPDATE backup_history SET size_bytes = ?, checksum = ?, status = ?, error = ? WHERE id = ?`,
		b.Size, sql.NullString{String: b.Checksum, Valid: b.Checksum != ""}, string(b.Status),
		sql.NullString{String: b.Error, Valid: b.Error != ""}, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update backup record: %w", err)
	}
	return nil
}

func (m *Manager) markDeleted(ctx context.Context, filename string) error {
	_, err := m.db.Conn().ExecContext(ctx,
		`UPDATE backup_history SET status = ? WHERE filename = ? AND status = ?`,
		string(StatusDeleted), filename, string(StatusCompleted))
	if err != nil {
		return fmt.Errorf("failed to mark backup deleted: %w", err)
	}
	return nil
}

// completedChecksum returns the recorded checksum of a completed archive.
func (m *Manager) completedChecksum(ctx context.Context, filename string) (string, bool, error) {
	var sum sql.NullString
	err := m.db.Conn().QueryRowContext(ctx, `
		SELECT checksum FROM backup_history WHERE filename = ? AND status = ?
		ORDER BY id DESC LIMIT 1`, filename, string(StatusCompleted)).Scan(&sum)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read backup checksum: %w", err)
	}
	return sum.String, sum.Valid && sum.String != "", nil
}

// BackupHistory returns the newest backup_history rows first.
func (m *Manager) BackupHistory(ctx context.Context, limit int) ([]Backup, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := m.db.Conn().QueryContext(ctx, `
		SELECT id, type, filename, COALESCE(size_bytes, 0), COALESCE(checksum, ''), status,
		       COALESCE(error, ''), COALESCE(created_by, 0), created_at
		FROM backup_history
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backup history: %w", err)
	}
	defer database.CloseRows(rows)

	out := []Backup{}
	for rows.Next() {
		var (
			b           Backup
			typ, status string
		)
		if err := rows.Scan(&b.ID, &typ, &b.Filename, &b.Size, &b.Checksum, &status,
			&b.Error, &b.CreatedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan backup history: %w", err)
		}
		b.Type, b.Status = Type(typ), Status(status)
		b.SizeHuman = humanize.IBytes(uint64(b.Size))
		out = append(out, b)
	}
	return out, rows.Err()
}
