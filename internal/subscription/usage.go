// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
)

// CurrentUsage returns the stored counter of resource for userID.
func (m *Manager) CurrentUsage(ctx context.Context, userID int64, resource string) (int, error) {
	var n int
	err := m.db.Conn().QueryRowContext(ctx,
		`SELECT current_count FROM subscription_usage WHERE user_id = ? AND resource_type = ?`,
		userID, resource).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read usage of %s: %w", resource, err)
	}
	return n, nil
}

// UpdateUsage sets the counter of resource for userID.
func (m *Manager) UpdateUsage(ctx context.Context, userID int64, resource string, count int) error {
	_, err := m.db.Conn().ExecContext(ctx, `
		INSERT INTO subscription_usage (user_id, resource_type, current_count, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, resource_type) DO UPDATE SET
			current_count = excluded.current_count, last_updated = excluded.last_updated`,
		userID, resource, count, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update usage of %s: %w", resource, err)
	}
	return nil
}

// IncrementUsage adds one to the counter and returns the new value.
func (m *Manager) IncrementUsage(ctx context.Context, userID int64, resource string) (int, error) {
	return m.addUsage(ctx, userID, resource, 1)
}

// DecrementUsage subtracts one from the counter, never going below zero.
func (m *Manager) DecrementUsage(ctx context.Context, userID int64, resource string) (int, error) {
	return m.addUsage(ctx, userID, resource, -1)
}

func (m *Manager) addUsage(ctx context.Context, userID int64, resource string, delta int) (int, error) {
	var n int
	err := m.db.Conn().QueryRowContext(ctx, `
		INSERT INTO subscription_usage (user_id, resource_type, current_count, last_updated)
		VALUES (?, ?, greatest(?, 0), ?)
		ON CONFLICT (user_id, resource_type) DO UPDATE SET
			current_count = greatest(subscription_usage.current_count + ?, 0),
			last_updated = excluded.last_updated
		RETURNING current_count`,
		userID, resource, delta, time.Now().UTC(), delta).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to change usage of %s: %w", resource, err)
	}
	return n, nil
}

// Usage returns every counter of userID keyed by resource.
func (m *Manager) Usage(ctx context.Context, userID int64) (map[string]int, error) {
	rows, err := m.db.Conn().QueryContext(ctx,
		`SELECT resource_type, current_count FROM subscription_usage WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage: %w", err)
	}
	defer database.CloseRows(rows)

	out := make(map[string]int)
	for rows.Next() {
		var r string
		var n int
		if err := rows.Scan(&r, &n); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		out[r] = n
	}
	return out, rows.Err()
}
