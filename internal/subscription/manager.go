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
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/models"
)

// DefaultCacheTTL bounds how long a resolved subscription is reused when
// nothing invalidates it.
const DefaultCacheTTL = 5 * time.Minute

const cachePrefix = "subscription:"

// Manager resolves and changes subscriptions.
type Manager struct {
	db    *database.DB
	hooks *hooks.Registry
	cache *cache.Cache
	now   func() time.Time
}

// NewManager creates a manager. A nil cache disables caching.
func NewManager(db *database.DB, registry *hooks.Registry, c *cache.Cache) *Manager {
	return &Manager{db: db, hooks: registry, cache: c, now: time.Now}
}

func cacheKey(userID int64) string {
	return cachePrefix + strconv.FormatInt(userID, 10)
}

// Invalidate drops the cached subscription of userID.
func (m *Manager) Invalidate(userID int64) {
	if m.cache != nil {
		m.cache.Delete(cacheKey(userID))
	}
}

// InvalidateAll drops every cached subscription.
func (m *Manager) InvalidateAll() {
	if m.cache != nil {
		m.cache.DeletePrefix(cachePrefix)
	}
}

// UserSubscription resolves the effective plan of userID. It returns
// ErrNoPlan when not even a free plan exists.
func (m *Manager) UserSubscription(ctx context.Context, userID int64) (*models.UserSubscription, error) {
	if m.cache != nil {
		if v, ok := m.cache.Get(cacheKey(userID)); ok {
			metrics.RecordCache("subscription", true)
			return v.(*models.UserSubscription), nil
		}
		metrics.RecordCache("subscription", false)
	}

	sub, err := m.resolve(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoPlan) {
			metrics.SubscriptionResolutions.WithLabelValues("none").Inc()
		}
		return nil, err
	}
	metrics.SubscriptionResolutions.WithLabelValues(sub.Source).Inc()
	if m.cache != nil {
		m.cache.Set(cacheKey(userID), sub)
	}
	return sub, nil
}

func (m *Manager) resolve(ctx context.Context, userID int64) (*models.UserSubscription, error) {
	sub, err := m.explicitSubscription(ctx, userID)
	if err != nil || sub != nil {
		return sub, err
	}
	if sub, err = m.groupSubscription(ctx, userID); err != nil || sub != nil {
		return sub, err
	}

	var planID int64
	err = m.db.Conn().QueryRowContext(ctx,
		`SELECT id FROM subscription_plans ORDER BY sort_order ASC, id ASC LIMIT 1`).Scan(&planID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoPlan
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load free plan: %w", err)
	}
	plan, err := m.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return &models.UserSubscription{UserID: userID, Plan: plan, Source: models.SourceFree}, nil
}

func (m *Manager) explicitSubscription(ctx context.Context, userID int64) (*models.UserSubscription, error) {
	var (
		sub              = models.UserSubscription{UserID: userID, Source: models.SourceExplicit}
		planID           int64
		start            time.Time
		end, nextBilling sql.NullTime
		status, cycle    sql.NullString
	)
	err := m.db.Conn().QueryRowContext(ctx, `
		SELECT us.id, us.plan_id, us.status, us.billing_cycle, us.start_date, us.end_date, us.next_billing_date
		FROM user_subscriptions us
		JOIN subscription_plans sp ON sp.id = us.plan_id
		WHERE us.user_id = ? AND us.status = 'active' AND (us.end_date IS NULL OR us.end_date > ?)
		ORDER BY us.created_at DESC, us.id DESC
		LIMIT 1`, userID, m.now().UTC()).
		Scan(&sub.ID, &planID, &status, &cycle, &start, &end, &nextBilling)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription of user %d: %w", userID, err)
	}
	plan, err := m.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	sub.Plan = plan
	sub.Status, sub.BillingCycle = status.String, cycle.String
	sub.StartDate = &start
	if end.Valid {
		sub.EndDate = &end.Time
	}
	if nextBilling.Valid {
		sub.NextBillingDate = &nextBilling.Time
	}
	return &sub, nil
}

func (m *Manager) groupSubscription(ctx context.Context, userID int64) (*models.UserSubscription, error) {
	var (
		planID    int64
		groupName string
	)
	err := m.db.Conn().QueryRowContext(ctx, `
		SELECT sp.id, ug.name
		FROM user_group_members ugm
		JOIN user_groups ug ON ug.id = ugm.group_id
		JOIN subscription_plans sp ON sp.id = ug.plan_id
		WHERE ugm.user_id = ? AND ug.is_active AND sp.is_active
		ORDER BY sp.price_monthly DESC, sp.id ASC
		LIMIT 1`, userID).Scan(&planID, &groupName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group subscription of user %d: %w", userID, err)
	}
	plan, err := m.Plan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return &models.UserSubscription{
		UserID:    userID,
		Plan:      plan,
		Source:    models.SourceGroup,
		GroupName: groupName,
	}, nil
}

// flagKey turns "cms-events" into "cms_events".
func flagKey(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func (m *Manager) plan(ctx context.Context, userID int64) *models.Plan {
	sub, err := m.UserSubscription(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrNoPlan) {
			logging.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Subscription lookup failed")
		}
		return nil
	}
	return sub.Plan
}

// CanAccessPlugin reports whether the plan of userID enables plugin slug.
func (m *Manager) CanAccessPlugin(ctx context.Context, userID int64, slug string) bool {
	p := m.plan(ctx, userID)
	return p != nil && p.Plugins[flagKey(slug)]
}

// HasFeature reports whether the plan of userID includes feature.
func (m *Manager) HasFeature(ctx context.Context, userID int64, feature string) bool {
	p := m.plan(ctx, userID)
	return p != nil && p.Features[flagKey(feature)]
}

// ResourceLimit returns the limit of resource for userID, 0 when no plan
// resolves.
func (m *Manager) ResourceLimit(ctx context.Context, userID int64, resource string) int {
	return m.plan(ctx, userID).Limit(flagKey(resource))
}

// CheckLimit reports whether userID may create one more resource.
func (m *Manager) CheckLimit(ctx context.Context, userID int64, resource string) bool {
	p := m.plan(ctx, userID)
	if p == nil {
		return false
	}
	switch limit := p.Limit(flagKey(resource)); limit {
	case -1:
		return true
	case 0:
		return false
	default:
		usage, err := m.CurrentUsage(ctx, userID, resource)
		if err != nil {
			logging.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Str("resource", resource).Msg("Usage lookup failed")
			return false
		}
		return usage < limit
	}
}
