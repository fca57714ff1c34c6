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
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// flagColumns are the limit, plugin and feature columns of
// subscription_plans in scan order.
func flagColumns() []string {
	cols := make([]string, 0, len(models.PlanResources)+len(models.PlanPlugins)+len(models.PlanFeatures))
	for _, r := range models.PlanResources {
		cols = append(cols, "limit_"+r)
	}
	for _, p := range models.PlanPlugins {
		cols = append(cols, "plugin_"+p)
	}
	for _, f := range models.PlanFeatures {
		cols = append(cols, "feature_"+f)
	}
	return cols
}

var planColumns = `id, name, slug, COALESCE(description, ''), price_monthly, price_yearly, ` +
	strings.Join(flagColumns(), ", ") + `, is_active, sort_order, created_at`

func scanPlan(s database.RowScanner) (*models.Plan, error) {
	p := &models.Plan{
		Limits:   make(map[string]int, len(models.PlanResources)),
		Plugins:  make(map[string]bool, len(models.PlanPlugins)),
		Features: make(map[string]bool, len(models.PlanFeatures)),
	}
	limits := make([]int, len(models.PlanResources))
	plugins := make([]bool, len(models.PlanPlugins))
	features := make([]bool, len(models.PlanFeatures))

	dest := []any{&p.ID, &p.Name, &p.Slug, &p.Description, &p.PriceMonthly, &p.PriceYearly}
	for i := range limits {
		dest = append(dest, &limits[i])
	}
	for i := range plugins {
		dest = append(dest, &plugins[i])
	}
	for i := range features {
		dest = append(dest, &features[i])
	}
	dest = append(dest, &p.IsActive, &p.SortOrder, &p.CreatedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	for i, r := range models.PlanResources {
		p.Limits[r] = limits[i]
	}
	for i, name := range models.PlanPlugins {
		p.Plugins[name] = plugins[i]
	}
	for i, name := range models.PlanFeatures {
		p.Features[name] = features[i]
	}
	return p, nil
}

// planValues returns the flag column values of p in flagColumns order.
// Keys missing from the maps take the column defaults.
func planValues(p *models.Plan) []any {
	vals := make([]any, 0, len(models.PlanResources)+len(models.PlanPlugins)+len(models.PlanFeatures))
	for _, r := range models.PlanResources {
		v, ok := p.Limits[r]
		if !ok {
			v = -1
			if r == "storage_mb" {
				v = 1000
			}
		}
		vals = append(vals, v)
	}
	for _, name := range models.PlanPlugins {
		v, ok := p.Plugins[name]
		if !ok {
			v = true
		}
		vals = append(vals, v)
	}
	for _, name := range models.PlanFeatures {
		vals = append(vals, p.Features[name])
	}
	return vals
}

func (m *Manager) queryPlans(ctx context.Context, where string, args ...any) ([]*models.Plan, error) {
	rows, err := m.db.Conn().QueryContext(ctx,
		`SELECT `+planColumns+` FROM subscription_plans `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer database.CloseRows(rows)

	var plans []*models.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (m *Manager) planWhere(ctx context.Context, where string, args ...any) (*models.Plan, error) {
	row := m.db.Conn().QueryRowContext(ctx, `SELECT `+planColumns+` FROM subscription_plans WHERE `+where+` LIMIT 1`, args...)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load plan: %w", err)
	}
	return p, nil
}

// AllPlans returns active plans ordered by sort order, then monthly price.
func (m *Manager) AllPlans(ctx context.Context) ([]*models.Plan, error) {
	return m.queryPlans(ctx, `WHERE is_active ORDER BY sort_order ASC, price_monthly ASC`)
}

// AllPlansIncludingInactive returns every plan for the admin screens.
func (m *Manager) AllPlansIncludingInactive(ctx context.Context) ([]*models.Plan, error) {
	return m.queryPlans(ctx, `ORDER BY sort_order ASC, price_monthly ASC`)
}

// Plan loads a plan by id.
func (m *Manager) Plan(ctx context.Context, id int64) (*models.Plan, error) {
	return m.planWhere(ctx, `id = ?`, id)
}

// PlanBySlug loads a plan by slug.
func (m *Manager) PlanBySlug(ctx context.Context, slug string) (*models.Plan, error) {
	return m.planWhere(ctx, `slug = ?`, slug)
}

func validatePlan(p *models.Plan) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPlan)
	}
	if p.PriceMonthly < 0 || p.PriceYearly < 0 {
		return fmt.Errorf("%w: prices must not be negative", ErrInvalidPlan)
	}
	for r, v := range p.Limits {
		if v < -1 {
			return fmt.Errorf("%w: limit %s must be -1 or greater", ErrInvalidPlan, r)
		}
	}
	return nil
}

// CreatePlan stores p and returns its id. An empty slug is derived from the
// name.
func (m *Manager) CreatePlan(ctx context.Context, p *models.Plan) (int64, error) {
	if err := validatePlan(p); err != nil {
		return 0, err
	}
	if p.Slug == "" {
		p.Slug = content.Slugify(p.Name)
	}

	cols := append([]string{"name", "slug", "description", "price_monthly", "price_yearly"}, flagColumns()...)
	cols = append(cols, "is_active", "sort_order", "created_at", "updated_at")
	now := time.Now().UTC()
	args := []any{p.Name, p.Slug, p.Description, p.PriceMonthly, p.PriceYearly}
	args = append(args, planValues(p)...)
	args = append(args, p.IsActive, p.SortOrder, now, now)

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	var id int64
	err := m.db.Conn().QueryRowContext(ctx,
		`INSERT INTO subscription_plans (`+strings.Join(cols, ", ")+`) VALUES (`+placeholders+`) RETURNING id`,
		args...).Scan(&id)
	if err != nil {
		if database.IsConstraintViolation(err) {
			return 0, fmt.Errorf("%w: slug %q already exists", ErrInvalidPlan, p.Slug)
		}
		return 0, fmt.Errorf("failed to create plan %s: %w", p.Slug, err)
	}
	p.ID, p.CreatedAt = id, now
	return id, nil
}

// UpdatePlan replaces every field of plan p.ID except its slug.
func (m *Manager) UpdatePlan(ctx context.Context, p *models.Plan) error {
	if err := validatePlan(p); err != nil {
		return err
	}
	sets := []string{"name = ?", "description = ?", "price_monthly = ?", "price_yearly = ?"}
	for _, c := range flagColumns() {
		sets = append(sets, c+" = ?")
	}
	sets = append(sets, "is_active = ?", "sort_order = ?", "updated_at = ?")

	args := []any{p.Name, p.Description, p.PriceMonthly, p.PriceYearly}
	args = append(args, planValues(p)...)
	args = append(args, p.IsActive, p.SortOrder, time.Now().UTC(), p.ID)

	res, err := m.db.Conn().ExecContext(ctx,
		`UPDATE subscription_plans SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to update plan %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanNotFound
	}
	m.InvalidateAll()
	return nil
}

// DeletePlan removes a plan together with its subscriptions and detaches
// it from groups.
func (m *Manager) DeletePlan(ctx context.Context, id int64) error {
	tx, err := m.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM subscription_plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete plan %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanNotFound
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM user_subscriptions WHERE plan_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete subscriptions of plan %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE user_groups SET plan_id = NULL WHERE plan_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach groups from plan %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan deletion: %w", err)
	}
	m.InvalidateAll()
	return nil
}

// DefaultPlans returns the six plans installed by SeedDefaultPlans.
func DefaultPlans() []*models.Plan {
	type tier struct {
		name, slug, desc                           string
		monthly, yearly                            float64
		experts, companies, events, speakers, disk int
		companiesPlugin, speakersPlugin            bool
		features                                   []string
	}
	tiers := []tier{
		{"Free", "free", "Free entry level access with limited features", 0, 0,
			1, 1, 5, 1, 100, false, false, nil},
		{"Basic", "basic", "For individuals and small projects", 9.99, 99,
			5, 3, 20, 5, 500, true, true,
			[]string{"advanced_search", "export_data"}},
		{"Professional", "professional", "For professionals and growing teams", 29.99, 299,
			20, 10, 100, 20, 2000, true, true,
			[]string{"analytics", "advanced_search", "api_access", "custom_branding", "export_data", "integrations"}},
		{"Business", "business", "For companies with advanced requirements", 79.99, 799,
			100, 50, 500, 100, 10000, true, true, models.PlanFeatures},
		{"Premium", "premium", "Every feature with high limits", 149.99, 1499,
			500, 200, 2000, 500, 50000, true, true, models.PlanFeatures},
		{"Enterprise", "enterprise", "Unlimited resources for large organisations", 499.99, 4999,
			-1, -1, -1, -1, 200000, true, true, models.PlanFeatures},
	}

	plans := make([]*models.Plan, 0, len(tiers))
	for i, t := range tiers {
		features := make(map[string]bool, len(models.PlanFeatures))
		for _, f := range models.PlanFeatures {
			features[f] = false
		}
		for _, f := range t.features {
			features[f] = true
		}
		plans = append(plans, &models.Plan{
			Name:         t.name,
			Slug:         t.slug,
			Description:  t.desc,
			PriceMonthly: t.monthly,
			PriceYearly:  t.yearly,
			Limits: map[string]int{
				"experts": t.experts, "companies": t.companies, "events": t.events,
				"speakers": t.speakers, "storage_mb": t.disk,
			},
			Plugins: map[string]bool{
				"experts": true, "companies": t.companiesPlugin, "events": true, "speakers": t.speakersPlugin,
			},
			Features:  features,
			IsActive:  true,
			SortOrder: i + 1,
		})
	}
	return plans
}

// SeedDefaultPlans inserts every default plan whose slug is not taken yet
// and returns how many were added.
func (m *Manager) SeedDefaultPlans(ctx context.Context) (int, error) {
	added := 0
	for _, p := range DefaultPlans() {
		_, err := m.PlanBySlug(ctx, p.Slug)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrPlanNotFound) {
			return added, err
		}
		if _, err := m.CreatePlan(ctx, p); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		logging.Info().Int("plans", added).Msg("Seeded default subscription plans")
	}
	return added, nil
}
