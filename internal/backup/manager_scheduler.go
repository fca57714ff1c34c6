// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/inkwell/internal/logging"
)

// Serve runs scheduled backups until ctx is done. It implements
// suture.Service; with a zero Interval it only waits for ctx.
func (m *Manager) Serve(ctx context.Context) error {
	if m.opts.Interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	next := m.calculateNextBackupTime(m.now())
	m.setNext(next)
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			m.runScheduled(ctx)
			next = m.calculateNextBackupTime(m.now())
			m.setNext(next)
			timer.Reset(time.Until(next))
		}
	}
}

// runScheduled creates one scheduled backup and applies retention.
func (m *Manager) runScheduled(ctx context.Context) {
	b, err := m.create(ctx, m.opts.ScheduledType, TriggerScheduled)
	switch {
	case errors.Is(err, ErrInProgress):
		logging.Warn().Msg("Skipping scheduled backup, another run is active")
		return
	case err != nil:
		logging.Error().Err(err).Msg("Scheduled backup failed")
	default:
		logging.Info().Str("backup", b.Filename).Msg("Scheduled backup completed")
	}
	if _, err := m.ApplyRetention(ctx); err != nil {
		logging.Error().Err(err).Msg("Backup retention failed")
	}
}

// calculateNextBackupTime aligns daily and longer intervals to
// PreferredHour and adds shorter intervals to now.
func (m *Manager) calculateNextBackupTime(now time.Time) time.Time {
	interval := m.opts.Interval
	if interval < 24*time.Hour {
		return now.Add(interval)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), m.opts.PreferredHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	if days := int(interval.Hours() / 24); days > 1 {
		next = next.AddDate(0, 0, days-1)
	}
	return next
}

func (m *Manager) setNext(t time.Time) {
	m.nextMu.Lock()
	m.next = t
	m.nextMu.Unlock()
}

// NextScheduled returns the time of the next scheduled run, or zero when
// the scheduler is not running.
func (m *Manager) NextScheduled() time.Time {
	m.nextMu.RLock()
	defer m.nextMu.RUnlock()
	return m.next
}

// String names the service in supervisor logs.
func (m *Manager) String() string {
	return "backup-scheduler"
}
