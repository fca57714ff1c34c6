// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/database"
)

// Customizer stores per-theme settings declared in the manifest's
// customizer section. Site-wide values use user id 0; other ids are
// per-user overrides.
type Customizer struct {
	db *database.DB

	mu      sync.RWMutex
	theme   string
	options map[string]OptionCategory
	values  map[string]map[string]string
}

// NewCustomizer creates a customizer with no theme selected.
func NewCustomizer(db *database.DB) *Customizer {
	return &Customizer{db: db, values: map[string]map[string]string{}}
}

// Export is the portable form of a theme's settings.
type Export struct {
	Theme          string                       `json:"theme"`
	ExportedAt     time.Time                    `json:"exported_at"`
	Customizations map[string]map[string]string `json:"customizations"`
}

// SetTheme switches to slug and loads its site-wide values.
func (c *Customizer) SetTheme(ctx context.Context, slug string, options map[string]OptionCategory) error {
	values, err := c.load(ctx, slug, 0)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.theme, c.options = slug, options
	if c.options == nil {
		c.options = map[string]OptionCategory{}
	}
	c.values = values
	return err
}

// Theme returns the slug the customizer is bound to.
func (c *Customizer) Theme() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.theme
}

// Options returns the declared categories and settings.
func (c *Customizer) Options() map[string]OptionCategory {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options
}

func (c *Customizer) load(ctx context.Context, slug string, userID int64) (map[string]map[string]string, error) {
	out := map[string]map[string]string{}
	rows, err := c.db.Conn().QueryContext(ctx, `
		SELECT setting_category, setting_key, setting_value FROM theme_customizations
		WHERE theme_slug = ? AND user_id = ?`, slug, userID)
	if err != nil {
		return out, fmt.Errorf("failed to load customizations: %w", err)
	}
	defer database.CloseRows(rows)
	for rows.Next() {
		var cat, key string
		var v sql.NullString
		if err := rows.Scan(&cat, &key, &v); err != nil {
			return out, fmt.Errorf("failed to scan customization: %w", err)
		}
		if out[cat] == nil {
			out[cat] = map[string]string{}
		}
		out[cat][key] = v.String
	}
	return out, rows.Err()
}

// Get returns the site-wide value of a setting, the manifest default, or def.
func (c *Customizer) Get(_ context.Context, category, key, def string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if v, ok := c.values[category][key]; ok {
		return v
	}
	if s, ok := c.options[category].Settings[key]; ok && s.Default != nil {
		return s.DefaultString()
	}
	return def
}

// GetForUser returns the user's override or falls back to Get.
func (c *Customizer) GetForUser(ctx context.Context, userID int64, category, key, def string) string {
	if userID > 0 {
		var v sql.NullString
		err := c.db.Conn().QueryRowContext(ctx, `
			SELECT setting_value FROM theme_customizations
			WHERE theme_slug = ? AND setting_category = ? AND setting_key = ? AND user_id = ?`,
			c.Theme(), category, key, userID).Scan(&v)
		if err == nil {
			return v.String
		}
	}
	return c.Get(ctx, category, key, def)
}

// Category returns every setting of a category with defaults applied.
func (c *Customizer) Category(_ context.Context, category string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := map[string]string{}
	for key, s := range c.options[category].Settings {
		if s.Default != nil {
			out[key] = s.DefaultString()
		}
	}
	for key, v := range c.values[category] {
		out[key] = v
	}
	return out
}

func (c *Customizer) known(category, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.options) == 0 {
		return true
	}
	_, ok := c.options[category].Settings[key]
	return ok
}

// Set stores a value. Settings the manifest does not declare are rejected
// with ErrUnknownSetting.
func (c *Customizer) Set(ctx context.Context, category, key, value string, userID int64) error {
	if !c.known(category, key) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownSetting, category, key)
	}
	slug := c.Theme()
	now := time.Now().UTC()
	_, err := c.db.Conn().ExecContext(ctx, `
		INSERT INTO theme_customizations (theme_slug, setting_category, setting_key, setting_value, user_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (theme_slug, setting_category, setting_key, user_id)
		DO UPDATE SET setting_value = excluded.setting_value, updated_at = excluded.updated_at`,
		slug, category, key, value, userID, now, now)
	if err != nil {
		return fmt.Errorf("failed to save customization %s.%s: %w", category, key, err)
	}
	if userID == 0 {
		c.mu.Lock()
		if c.values[category] == nil {
			c.values[category] = map[string]string{}
		}
		c.values[category][key] = value
		c.mu.Unlock()
	}
	return nil
}

// SetMultiple stores values keyed by category then setting. Every value is
// attempted; the returned error joins the failures.
func (c *Customizer) SetMultiple(ctx context.Context, values map[string]map[string]string, userID int64) error {
	var errs []error
	for _, cat := range sortedKeys(values) {
		for _, key := range sortedKeys(values[cat]) {
			if err := c.Set(ctx, cat, key, values[cat][key], userID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Reset removes one stored value so the default applies again.
func (c *Customizer) Reset(ctx context.Context, category, key string, userID int64) error {
	if _, err := c.db.Conn().ExecContext(ctx, `
		DELETE FROM theme_customizations
		WHERE theme_slug = ? AND setting_category = ? AND setting_key = ? AND user_id = ?`,
		c.Theme(), category, key, userID); err != nil {
		return fmt.Errorf("failed to reset customization: %w", err)
	}
	if userID == 0 {
		c.mu.Lock()
		delete(c.values[category], key)
		c.mu.Unlock()
	}
	return nil
}

// ResetAll removes every stored value of the theme for userID.
func (c *Customizer) ResetAll(ctx context.Context, userID int64) error {
	if _, err := c.db.Conn().ExecContext(ctx,
		`DELETE FROM theme_customizations WHERE theme_slug = ? AND user_id = ?`, c.Theme(), userID); err != nil {
		return fmt.Errorf("failed to reset customizations: %w", err)
	}
	if userID == 0 {
		c.mu.Lock()
		c.values = map[string]map[string]string{}
		c.mu.Unlock()
	}
	return nil
}

// Export returns the site-wide settings of every declared category as JSON.
func (c *Customizer) Export(ctx context.Context) ([]byte, error) {
	c.mu.RLock()
	cats := make([]string, 0, len(c.options)+len(c.values))
	for cat := range c.options {
		cats = append(cats, cat)
	}
	for cat := range c.values {
		if _, ok := c.options[cat]; !ok {
			cats = append(cats, cat)
		}
	}
	c.mu.RUnlock()

	exp := Export{Theme: c.Theme(), ExportedAt: time.Now().UTC(), Customizations: map[string]map[string]string{}}
	for _, cat := range cats {
		exp.Customizations[cat] = c.Category(ctx, cat)
	}
	return json.MarshalIndent(exp, "", "  ")
}

// Import stores the values of an export produced by Export.
func (c *Customizer) Import(ctx context.Context, data []byte, userID int64) error {
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return fmt.Errorf("invalid customization export: %w", err)
	}
	if len(exp.Customizations) == 0 {
		return ErrNoCustomization
	}
	return c.SetMultiple(ctx, exp.Customizations, userID)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
