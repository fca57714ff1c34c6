// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package bootstrap

import (
	"context"
	"time"

	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/supervisor/services"
)

// MaintenanceTasks returns the periodic jobs run by the maintenance
// service, in order.
func (a *App) MaintenanceTasks() []services.Task {
	return []services.Task{
		{Name: "expired_sessions", Run: a.job("expired_sessions", a.pruneSessions)},
		{Name: "failed_logins", Run: a.job("failed_logins", func(ctx context.Context) (int64, error) {
			return a.services.System.ClearOldFailedLogins(ctx)
		})},
		{Name: "expired_subscriptions", Run: a.job("expired_subscriptions", func(ctx context.Context) (int64, error) {
			return a.subs.ExpireSubscriptions(ctx, time.Now().UTC())
		})},
		{Name: "firewall_autoblock", Run: a.job("firewall_autoblock", a.services.Firewall.RunAutoBlock)},
		{Name: "expired_blocks", Run: a.job("expired_blocks", a.services.Firewall.CleanExpired)},
		{Name: "privacy_deletions", Run: a.job("privacy_deletions", a.services.Privacy.PurgeDueDeletions)},
	}
}

// pruneSessions clears expired payloads from the session store and their
// SQL index rows, then refreshes the active session gauge.
func (a *App) pruneSessions(ctx context.Context) (int64, error) {
	stored, err := a.store.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	rows, err := a.services.System.ClearOldSessions(ctx)
	if err != nil {
		return int64(stored), err
	}
	if active, err := a.db.CountActiveSessions(ctx, time.Now().UTC()); err == nil {
		metrics.ActiveSessions.Set(float64(active))
	}
	return int64(stored) + rows, nil
}

func (a *App) job(name string, fn func(context.Context) (int64, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		n, err := fn(ctx)
		metrics.RecordMaintenance(name, err)
		if err != nil {
			return err
		}
		if n > 0 {
			a.log.Info().Str("job", name).Int64("removed", n).Msg("Maintenance job cleaned up rows")
		}
		return nil
	}
}
