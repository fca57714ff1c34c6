// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package subscription

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// ValidCycle reports whether cycle is a known billing cycle.
func ValidCycle(cycle string) bool {
	switch cycle {
	case models.CycleMonthly, models.CycleYearly, models.CycleLifetime:
		return true
	}
	return false
}

// billingEnd returns the end of the first billing period, which is also the
// next billing date. Lifetime subscriptions have none.
func billingEnd(start time.Time, cycle string) sql.NullTime {
	switch cycle {
	case models.CycleMonthly:
		return sql.NullTime{Time: start.AddDate(0, 1, 0), Valid: true}
	case models.CycleYearly:
		return sql.NullTime{Time: start.AddDate(1, 0, 0), Valid: true}
	}
	return sql.NullTime{}
}

// AssignSubscription cancels the active subscriptions of userID and starts
// a new one on planID. It returns the new subscription id.
func (m *Manager) AssignSubscription(ctx context.Context, userID, planID int64, cycle string) (int64, error) {
	if cycle == "" {
		cycle = models.CycleMonthly
	}
	if !ValidCycle(cycle) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidCycle, cycle)
	}
	if _, err := m.Plan(ctx, planID); err != nil {
		return 0, err
	}

	now := m.now().UTC()
	end := billingEnd(now, cycle)

	tx, err := m.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE user_subscriptions SET status = 'cancelled', cancelled_at = ?, updated_at = ?
		WHERE user_id = ? AND status = 'active'`, now, now, userID); err != nil {
		return 0, fmt.Errorf("failed to cancel previous subscriptions: %w", err)
	}
	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO user_subscriptions (user_id, plan_id, status, billing_cycle, start_date, end_date, next_billing_date, created_at, updated_at)
		VALUES (?, ?, 'active', ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		userID, planID, cycle, now, end, end, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create subscription: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit subscription: %w", err)
	}

	m.Invalidate(userID)
	m.logActivity(ctx, userID, "subscription_assigned", fmt.Sprintf("Plan %d assigned (%s)", planID, cycle), id)
	if m.hooks != nil {
		m.hooks.DoAction(ctx, hooks.SubscriptionAssigned, userID, planID)
	}
	return id, nil
}

// CancelSubscription cancels the active subscriptions of userID, which
// falls back to its group or the free plan.
func (m *Manager) CancelSubscription(ctx context.Context, userID int64) error {
	now := m.now().UTC()
	res, err := m.db.Conn().ExecContext(ctx, `
		UPDATE user_subscriptions SET status = 'cancelled', cancelled_at = ?, updated_at = ?
		WHERE user_id = ? AND status = 'active'`, now, now, userID)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoActiveSubscription
	}
	m.Invalidate(userID)
	m.logActivity(ctx, userID, "subscription_cancelled", "Subscription cancelled", 0)
	return nil
}

// ExpireSubscriptions marks active subscriptions whose end date has passed
// as expired and returns how many changed.
func (m *Manager) ExpireSubscriptions(ctx context.Context, now time.Time) (int64, error) {
	res, err := m.db.Conn().ExecContext(ctx, `
		UPDATE user_subscriptions SET status = 'expired', updated_at = ?
		WHERE status = 'active' AND end_date IS NOT NULL AND end_date <= ?`, now.UTC(), now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to expire subscriptions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		m.InvalidateAll()
		logging.Info().Int64("expired", n).Msg("Expired subscriptions")
	}
	return n, nil
}

// Record is a subscription row joined with user and plan names.
type Record struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	Username     string     `json:"username"`
	PlanID       int64      `json:"plan_id"`
	PlanName     string     `json:"plan_name"`
	Status       string     `json:"status"`
	BillingCycle string     `json:"billing_cycle"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      *time.Time `json:"end_date,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
}

// History lists every subscription of userID, newest first.
func (m *Manager) History(ctx context.Context, userID int64) ([]Record, error) {
	return m.records(ctx, `WHERE us.user_id = ?`, userID)
}

// ActiveSubscriptions lists every active subscription, newest first.
func (m *Manager) ActiveSubscriptions(ctx context.Context) ([]Record, error) {
	return m.records(ctx, `WHERE us.status = 'active'`)
}

func (m *Manager) records(ctx context.Context, where string, args ...any) ([]Record, error) {
	rows, err := m.db.Conn().QueryContext(ctx, `
		SELECT us.id, us.user_id, COALESCE(u.username, ''), us.plan_id, COALESCE(sp.name, ''),
		       COALESCE(us.status, ''), COALESCE(us.billing_cycle, ''), us.start_date, us.end_date, us.cancelled_at
		FROM user_subscriptions us
		LEFT JOIN users u ON u.id = us.user_id
		LEFT JOIN subscription_plans sp ON sp.id = us.plan_id
		`+where+`
		ORDER BY us.created_at DESC, us.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer database.CloseRows(rows)

	var out []Record
	for rows.Next() {
		var r Record
		var end, cancelled sql.NullTime
		if err := rows.Scan(&r.ID, &r.UserID, &r.Username, &r.PlanID, &r.PlanName,
			&r.Status, &r.BillingCycle, &r.StartDate, &end, &cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		if end.Valid {
			r.EndDate = &end.Time
		}
		if cancelled.Valid {
			r.CancelledAt = &cancelled.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (m *Manager) logActivity(ctx context.Context, userID int64, action, desc string, entityID int64) {
	a := models.Activity{
		UserID:      &userID,
		Action:      action,
		EntityType:  "subscription",
		Description: desc,
	}
	if entityID != 0 {
		a.EntityID = &entityID
	}
	if err := m.db.LogActivity(ctx, a); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Failed to log subscription activity")
	}
}
