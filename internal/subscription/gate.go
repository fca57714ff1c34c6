// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package subscription

import (
	"context"
	"math"

	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// Limit warning levels.
const (
	WarningNone     = "none"
	WarningDisabled = "disabled"
	WarningReached  = "reached"
	WarningNear     = "warning"
)

// warnPercent is the usage share from which LimitWarning reports WarningNear.
const warnPercent = 80

// LimitWarning describes how close a user is to a resource limit.
type LimitWarning struct {
	Level     string `json:"level"`
	Limit     int    `json:"limit"`
	Usage     int    `json:"usage"`
	Remaining int    `json:"remaining"`
	Percent   int    `json:"percent"`
}

// Gate applies the subscription checks to the current visitor. Admins pass
// every check; guests may view plugin content but not create anything.
type Gate struct {
	m *Manager
}

// NewGate returns a gate over m.
func NewGate(m *Manager) *Gate {
	return &Gate{m: m}
}

// Manager returns the underlying manager.
func (g *Gate) Manager() *Manager {
	return g.m
}

// UserCanAccessPlugin reports whether u may use plugin slug. Guests are
// allowed so public plugin pages stay visible.
func (g *Gate) UserCanAccessPlugin(ctx context.Context, u *models.User, slug string) bool {
	if u == nil || u.IsAdmin() {
		return true
	}
	return g.m.CanAccessPlugin(ctx, u.ID, slug)
}

// UserCanCreateResource reports whether u may create one more resource.
func (g *Gate) UserCanCreateResource(ctx context.Context, u *models.User, resource string) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	return g.m.CheckLimit(ctx, u.ID, resource)
}

// ResourceLimit returns the plan limit of resource for u, 0 for guests.
func (g *Gate) ResourceLimit(ctx context.Context, u *models.User, resource string) int {
	if u == nil {
		return 0
	}
	return g.m.ResourceLimit(ctx, u.ID, resource)
}

// ResourceUsage returns the usage counter of resource for u, 0 for guests.
func (g *Gate) ResourceUsage(ctx context.Context, u *models.User, resource string) int {
	if u == nil {
		return 0
	}
	n, err := g.m.CurrentUsage(ctx, u.ID, resource)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("resource", resource).Msg("Usage lookup failed")
		return 0
	}
	return n
}

// UserHasFeature reports whether u may use feature.
func (g *Gate) UserHasFeature(ctx context.Context, u *models.User, feature string) bool {
	if u.IsAdmin() {
		return true
	}
	if u == nil {
		return false
	}
	return g.m.HasFeature(ctx, u.ID, feature)
}

// LimitWarning reports whether u should be warned about resource.
func (g *Gate) LimitWarning(ctx context.Context, u *models.User, resource string) LimitWarning {
	return Warning(g.ResourceLimit(ctx, u, resource), g.ResourceUsage(ctx, u, resource))
}

// Warning classifies usage against limit.
func Warning(limit, usage int) LimitWarning {
	w := LimitWarning{Level: WarningNone, Limit: limit, Usage: usage}
	switch {
	case limit == -1:
		return w
	case limit == 0:
		w.Level = WarningDisabled
		return w
	}
	w.Remaining = limit - usage
	pct := float64(usage) / float64(limit) * 100
	w.Percent = int(math.Round(pct))
	switch {
	case w.Remaining <= 0:
		w.Level = WarningReached
	case pct >= warnPercent:
		w.Level = WarningNear
	}
	return w
}
