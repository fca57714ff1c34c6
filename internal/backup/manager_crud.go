// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/models"
)

var namePattern = regexp.MustCompile(`^backup-(full|database)-\d{8}-\d{6}-[0-9a-f]{8}\.tar\.gz$`)

// CreateFullBackup archives the database, uploads and themes.
func (m *Manager) CreateFullBackup(ctx context.Context) (*Backup, error) {
	return m.create(ctx, TypeFull, TriggerManual)
}

// CreateDatabaseBackup archives the database only.
func (m *Manager) CreateDatabaseBackup(ctx context.Context) (*Backup, error) {
	return m.create(ctx, TypeDatabase, TriggerManual)
}

func (m *Manager) create(ctx context.Context, typ Type, trigger Trigger) (*Backup, error) {
	if !m.run.TryLock() {
		return nil, ErrInProgress
	}
	defer m.run.Unlock()
	return m.createLocked(ctx, typ, trigger)
}

// createLocked runs one backup. The caller holds m.run.
func (m *Manager) createLocked(ctx context.Context, typ Type, trigger Trigger) (*Backup, error) {
	start := m.now()
	b := &Backup{
		Type:      typ,
		Filename:  generateBackupName(typ, start),
		Status:    StatusInProgress,
		CreatedBy: logging.UserIDFromContext(ctx),
		CreatedAt: start.UTC(),
	}
	if err := m.insertHistory(ctx, b); err != nil {
		return nil, err
	}

	schema, err := m.db.SchemaVersion(ctx)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to read schema version for backup manifest")
	}
	manifest := &Manifest{
		Type:          typ,
		Trigger:       trigger,
		CMSVersion:    m.opts.Version,
		SchemaVersion: schema,
		CreatedAt:     start.UTC(),
	}

	filePath := filepath.Join(m.opts.Dir, b.Filename)
	if err := m.writeArchive(ctx, filePath, manifest); err != nil {
		return m.handleBackupError(ctx, b, filePath, start, err)
	}
	checksum, err := calculateFileChecksum(filePath)
	if err != nil {
		return m.handleBackupError(ctx, b, filePath, start, fmt.Errorf("failed to calculate checksum: %w", err))
	}
	info, err := os.Stat(filePath)
	if err != nil {
		return m.handleBackupError(ctx, b, filePath, start, fmt.Errorf("failed to stat backup file: %w", err))
	}

	b.Checksum, b.Size, b.Status = checksum, info.Size(), StatusCompleted
	b.SizeHuman = humanize.IBytes(uint64(b.Size))
	if err := m.finishHistory(ctx, b); err != nil {
		return b, err
	}

	metrics.BackupRuns.WithLabelValues(string(typ), "success").Inc()
	metrics.BackupDuration.Observe(time.Since(start).Seconds())
	logging.Ctx(ctx).Info().
		Str("backup", b.Filename).
		Str("type", string(typ)).
		Str("trigger", string(trigger)).
		Str("size", b.SizeHuman).
		Dur("duration", time.Since(start)).
		Msg("Backup completed")

	m.logActivity(ctx, b.CreatedBy, "backup_created", b.ID, b.Filename)
	if m.hooks != nil {
		m.hooks.DoAction(ctx, hooks.BackupCompleted, b)
	}
	return b, nil
}

// handleBackupError removes the partial archive and records the failure.
func (m *Manager) handleBackupError(ctx context.Context, b *Backup, filePath string, start time.Time, cause error) (*Backup, error) {
	if err := os.Remove(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Ctx(ctx).Warn().Err(err).Str("file", filePath).Msg("Failed to remove partial backup")
	}
	b.Status, b.Error = StatusFailed, cause.Error()
	if err := m.finishHistory(ctx, b); err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("Failed to record backup failure")
	}
	metrics.BackupRuns.WithLabelValues(string(b.Type), "error").Inc()
	metrics.BackupDuration.Observe(time.Since(start).Seconds())
	logging.Ctx(ctx).Error().Err(cause).Str("backup", b.Filename).Msg("Backup failed")
	return b, cause
}

func generateBackupName(typ Type, at time.Time) string {
	id := uuid.New().String()
	return fmt.Sprintf("backup-%s-%s-%s.tar.gz", typ, at.UTC().Format("20060102-150405"), id[:8])
}

// resolvePath maps an archive name to its path. Only names the manager
// generates are accepted.
func (m *Manager) resolvePath(name string) (string, error) {
	if name != filepath.Base(name) || !namePattern.MatchString(name) {
		return "", ErrInvalidName
	}
	return filepath.Join(m.opts.Dir, name), nil
}

// ListBackups returns the archives in the backup directory, newest first.
func (m *Manager) ListBackups() ([]File, error) {
	entries, err := os.ReadDir(m.opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}
	out := []File{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		match := namePattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, File{
			Name:      e.Name(),
			Type:      Type(match[1]),
			Size:      info.Size(),
			SizeHuman: humanize.IBytes(uint64(info.Size())),
			CreatedAt: info.ModTime(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// DeleteBackup removes an archive and marks its history row deleted.
func (m *Manager) DeleteBackup(ctx context.Context, name string) error {
	p, err := m.resolvePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrBackupNotFound
		}
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	if err := m.markDeleted(ctx, name); err != nil {
		return err
	}
	m.logActivity(ctx, logging.UserIDFromContext(ctx), "backup_deleted", 0, name)
	return nil
}

// Stats summarizes the archives on disk.
func (m *Manager) Stats() (Stats, error) {
	files, err := m.ListBackups()
	if err != nil {
		return Stats{}, err
	}
	s := Stats{Count: len(files), NextScheduled: m.NextScheduled()}
	for _, f := range files {
		s.TotalSize += f.Size
	}
	s.TotalSizeHuman = humanize.IBytes(uint64(s.TotalSize))
	if len(files) > 0 {
		latest := files[0]
		s.Latest = &latest
	}
	return s, nil
}

func (m *Manager) logActivity(ctx context.Context, userID int64, action string, entityID int64, name string) {
	a := models.Activity{Action: action, EntityType: "backup", Description: name}
	if userID > 0 {
		a.UserID = &userID
	}
	if entityID > 0 {
		a.EntityID = &entityID
	}
	if err := m.db.LogActivity(ctx, a); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Failed to log backup activity")
	}
}
