// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package content

import (
	"context"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// Manager owns pages, posts and categories.
type Manager struct {
	db       *database.DB
	hooks    *hooks.Registry
	renderer *Renderer
	now      func() time.Time
}

// NewManager creates a manager. registry may be nil in tools that do not
// run hooks.
func NewManager(db *database.DB, registry *hooks.Registry) *Manager {
	return &Manager{
		db:       db,
		hooks:    registry,
		renderer: NewRenderer(registry, DefaultRenderCacheSize),
		now:      time.Now,
	}
}

// Renderer returns the body renderer shared by pages and posts.
func (m *Manager) Renderer() *Renderer {
	return m.renderer
}

func (m *Manager) doAction(ctx context.Context, tag string, args ...any) {
	if m.hooks != nil {
		m.hooks.DoAction(ctx, tag, args...)
	}
}

func (m *Manager) logActivity(ctx context.Context, userID int64, action, entity string, entityID int64, desc string) {
	a := models.Activity{Action: action, EntityType: entity, EntityID: &entityID, Description: desc}
	if userID != 0 {
		a.UserID = &userID
	}
	if err := m.db.LogActivity(ctx, a); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("action", action).Msg("Failed to log content activity")
	}
}

func validateStatus(status string) (string, error) {
	if status == "" {
		return models.ContentDraft, nil
	}
	if !models.ValidContentStatus(status) {
		return "", ErrInvalidStatus
	}
	return status, nil
}

func validateFormat(format string) (string, error) {
	switch format {
	case "":
		return models.FormatHTML, nil
	case models.FormatHTML, models.FormatMarkdown:
		return format, nil
	}
	return "", ErrInvalidFormat
}
