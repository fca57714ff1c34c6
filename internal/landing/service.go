// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package landing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/validation"
)

// Errors returned by the service.
var (
	ErrUnknownArea    = errors.New("unknown landing page area")
	ErrUnknownPlugin  = errors.New("plugin does not target this area")
	ErrFeatureMissing = errors.New("feature not found")
)

// sort_order of the singleton rows.
var sectionOrder = map[string]int{
	TypeHeader: 0, TypeContent: 50, TypeDesign: 90, TypeSettings: 100,
	TypeFooter: 150, TypePluginOverrides: 200,
}

// Service reads and writes landing page sections.
type Service struct {
	db    *database.DB
	hooks *hooks.Registry
	now   func() time.Time
}

// New creates the service. registry may be nil.
func New(db *database.DB, registry *hooks.Registry) *Service {
	return &Service{db: db, hooks: registry, now: time.Now}
}

// load decodes the first row of typ over into and returns its id. into
// keeps its values when no row exists.
func (s *Service) load(ctx context.Context, typ string, into any) (int64, error) {
	var (
		id   int64
		data sql.NullString
	)
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT id, data FROM landing_sections WHERE type = ? ORDER BY id LIMIT 1`, typ).Scan(&id, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load %s section: %w", typ, err)
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), into); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("section", typ).Msg("Ignoring malformed landing section")
		}
	}
	return id, nil
}

// save upserts the singleton row of typ.
func (s *Service) save(ctx context.Context, typ string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s section: %w", typ, err)
	}
	var id int64
	err = s.db.Conn().QueryRowContext(ctx,
		`SELECT id FROM landing_sections WHERE type = ? ORDER BY id LIMIT 1`, typ).Scan(&id)
	now := s.now().UTC()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Conn().ExecContext(ctx, `
			INSERT INTO landing_sections (type, data, sort_order, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			typ, string(raw), sectionOrder[typ], now, now)
	case err == nil:
		_, err = s.db.Conn().ExecContext(ctx,
			`UPDATE landing_sections SET data = ?, updated_at = ? WHERE id = ?`, string(raw), now, id)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s section: %w", typ, err)
	}
	return nil
}

func check(v any) error {
	if verr := validation.ValidateStruct(v); verr != nil {
		return verr
	}
	return nil
}

// Header returns the hero section.
func (s *Service) Header(ctx context.Context) (Header, error) {
	h := DefaultHeader()
	id, err := s.load(ctx, TypeHeader, &h)
	h.ID = id
	return h, err
}

// UpdateHeader replaces the hero section. Colors are kept from the stored
// header when h.Colors is zero.
func (s *Service) UpdateHeader(ctx context.Context, h Header) error {
	if h.Colors == (Colors{}) {
		cur, err := s.Header(ctx)
		if err != nil {
			return err
		}
		h.Colors = cur.Colors
	}
	if h.Buttons == nil {
		h.Buttons = []Button{}
	}
	h.Title = security.StripTags(h.Title)
	h.Subtitle = security.StripTags(h.Subtitle)
	h.Description = security.StripTags(h.Description)
	if err := check(h); err != nil {
		return err
	}
	h.ID = 0
	return s.save(ctx, TypeHeader, h)
}

// Colors returns the palette stored with the header.
func (s *Service) Colors(ctx context.Context) (Colors, error) {
	h, err := s.Header(ctx)
	return h.Colors, err
}

// UpdateColors replaces the palette and keeps the rest of the header.
func (s *Service) UpdateColors(ctx context.Context, c Colors) error {
	if err := check(c); err != nil {
		return err
	}
	h, err := s.Header(ctx)
	if err != nil {
		return err
	}
	h.Colors = c
	return s.UpdateHeader(ctx, h)
}

// Features returns the feature cards by sort order, or the defaults when
// none are stored.
func (s *Service) Features(ctx context.Context) ([]Feature, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, data, sort_order FROM landing_sections WHERE type = ? ORDER BY sort_order, id`, TypeFeature)
	if err != nil {
		return nil, fmt.Errorf("failed to list features: %w", err)
	}
	defer database.CloseRows(rows)
	var out []Feature
	for rows.Next() {
		var (
			f    Feature
			data sql.NullString
		)
		if err := rows.Scan(&f.ID, &data, &f.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		if data.Valid {
			_ = json.Unmarshal([]byte(data.String), &f)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return DefaultFeatures(), nil
	}
	return out, nil
}

type featureData struct {
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SaveFeature inserts (ID 0) or updates a feature card and returns its id.
// A zero SortOrder on insert places the card last.
func (s *Service) SaveFeature(ctx context.Context, f Feature) (int64, error) {
	f.Title = security.StripTags(f.Title)
	f.Description = security.StripTags(f.Description)
	if f.Icon == "" {
		f.Icon = "🎯"
	}
	if err := check(f); err != nil {
		return 0, err
	}
	raw, err := json.Marshal(featureData{Icon: f.Icon, Title: f.Title, Description: f.Description})
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	if f.ID == 0 {
		if f.SortOrder == 0 {
			f.SortOrder = 999
		}
		var id int64
		err := s.db.Conn().QueryRowContext(ctx, `
			INSERT INTO landing_sections (type, data, sort_order, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?) RETURNING id`,
			TypeFeature, string(raw), f.SortOrder, now, now).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("failed to insert feature: %w", err)
		}
		return id, nil
	}
	res, err := s.db.Conn().ExecContext(ctx, `
		UPDATE landing_sections SET data = ?, sort_order = ?, updated_at = ? WHERE id = ? AND type = ?`,
		string(raw), f.SortOrder, now, f.ID, TypeFeature)
	if err != nil {
		return 0, fmt.Errorf("failed to update feature: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrFeatureMissing
	}
	return f.ID, nil
}

// DeleteFeature removes a feature card.
func (s *Service) DeleteFeature(ctx context.Context, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM landing_sections WHERE id = ? AND type = ?`, id, TypeFeature)
	if err != nil {
		return fmt.Errorf("failed to delete feature: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrFeatureMissing
	}
	return nil
}

// InitializeDefaults stores the default header and feature cards when
// the page has never been configured.
func (s *Service) InitializeDefaults(ctx context.Context) error {
	var n int64
	if err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM landing_sections WHERE type IN (?, ?)`, TypeHeader, TypeFeature).Scan(&n); err != nil {
		return fmt.Errorf("failed to inspect landing sections: %w", err)
	}
	if n > 0 {
		return nil
	}
	if err := s.UpdateHeader(ctx, DefaultHeader()); err != nil {
		return err
	}
	for _, f := range DefaultFeatures() {
		if _, err := s.SaveFeature(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// Footer returns the footer.
func (s *Service) Footer(ctx context.Context) (Footer, error) {
	f := DefaultFooter(s.now().Year())
	id, err := s.load(ctx, TypeFooter, &f)
	f.ID = id
	return f, err
}

// UpdateFooter replaces the footer. Content is sanitized HTML.
func (s *Service) UpdateFooter(ctx context.Context, f Footer) error {
	f.ID = 0
	f.Content = security.SanitizeHTML(f.Content)
	f.Copyright = security.StripTags(f.Copyright)
	return s.save(ctx, TypeFooter, f)
}

// ContentSettings returns the content block configuration.
func (s *Service) ContentSettings(ctx context.Context) (ContentSettings, error) {
	c := DefaultContentSettings()
	id, err := s.load(ctx, TypeContent, &c)
	c.ID = id
	return c, err
}

// UpdateContentSettings replaces the content block configuration.
func (s *Service) UpdateContentSettings(ctx context.Context, c ContentSettings) error {
	if c.Type == "" {
		c.Type = ContentFeatures
	}
	c.PostsCount = max(1, c.PostsCount)
	c.Text = security.SanitizeHTML(c.Text)
	if err := check(c); err != nil {
		return err
	}
	c.ID = 0
	return s.save(ctx, TypeContent, c)
}

// Settings returns the visibility settings.
func (s *Service) Settings(ctx context.Context) (Settings, error) {
	st := DefaultSettings()
	id, err := s.load(ctx, TypeSettings, &st)
	st.ID = id
	return st, err
}

// UpdateSettings replaces the visibility settings.
func (s *Service) UpdateSettings(ctx context.Context, st Settings) error {
	st.LandingSlug = strings.TrimSpace(st.LandingSlug)
	if err := check(st); err != nil {
		return err
	}
	st.ID = 0
	return s.save(ctx, TypeSettings, st)
}

// Design returns the design tokens.
func (s *Service) Design(ctx context.Context) (Design, error) {
	d := DefaultDesign()
	id, err := s.load(ctx, TypeDesign, &d)
	d.ID = id
	return d, err
}

// UpdateDesign replaces the design tokens. Radii are clamped to 0..48 for
// cards and 0..50 for buttons.
func (s *Service) UpdateDesign(ctx context.Context, d Design) error {
	d.CardBorderRadius = min(max(d.CardBorderRadius, 0), 48)
	d.ButtonBorderRadius = min(max(d.ButtonBorderRadius, 0), 50)
	if err := check(d); err != nil {
		return err
	}
	d.ID = 0
	return s.save(ctx, TypeDesign, d)
}

// RegisteredPlugins returns the renderers offered through the
// landing_page_plugins filter.
func (s *Service) RegisteredPlugins(ctx context.Context) []Plugin {
	if s.hooks == nil {
		return nil
	}
	v := s.hooks.ApplyFilters(ctx, hooks.LandingPagePlugins, []Plugin{})
	list, _ := v.([]Plugin)
	return list
}

// PluginOverrides returns the area overrides.
func (s *Service) PluginOverrides(ctx context.Context) (PluginOverrides, error) {
	o := PluginOverrides{PluginSettings: map[string]map[string]any{}}
	id, err := s.load(ctx, TypePluginOverrides, &o)
	o.ID = id
	if o.PluginSettings == nil {
		o.PluginSettings = map[string]map[string]any{}
	}
	return o, err
}

// UpdatePluginOverride hands area to pluginID, or back to the built-in
// section when pluginID is empty. The plugin must be registered for area.
func (s *Service) UpdatePluginOverride(ctx context.Context, area, pluginID string) error {
	if !slices.Contains(Areas, area) {
		return ErrUnknownArea
	}
	if pluginID != "" {
		ok := slices.ContainsFunc(s.RegisteredPlugins(ctx), func(p Plugin) bool {
			return p.ID == pluginID && slices.Contains(p.Targets, area)
		})
		if !ok {
			return ErrUnknownPlugin
		}
	}
	o, err := s.PluginOverrides(ctx)
	if err != nil {
		return err
	}
	switch area {
	case "header":
		o.Header = pluginID
	case "content":
		o.Content = pluginID
	case "footer":
		o.Footer = pluginID
	}
	o.ID = 0
	return s.save(ctx, TypePluginOverrides, o)
}

// SavePluginSettings stores settings for one plugin.
func (s *Service) SavePluginSettings(ctx context.Context, pluginID string, settings map[string]any) error {
	if pluginID == "" {
		return ErrUnknownPlugin
	}
	o, err := s.PluginOverrides(ctx)
	if err != nil {
		return err
	}
	o.PluginSettings[pluginID] = settings
	o.ID = 0
	return s.save(ctx, TypePluginOverrides, o)
}

// PluginSettings returns the stored settings of one plugin.
func (s *Service) PluginSettings(ctx context.Context, pluginID string) (map[string]any, error) {
	o, err := s.PluginOverrides(ctx)
	if err != nil {
		return nil, err
	}
	if v, ok := o.PluginSettings[pluginID]; ok {
		return v, nil
	}
	return map[string]any{}, nil
}

// Page loads every section.
func (s *Service) Page(ctx context.Context) (*Page, error) {
	var (
		p   Page
		err error
	)
	if p.Header, err = s.Header(ctx); err != nil {
		return nil, err
	}
	if p.Features, err = s.Features(ctx); err != nil {
		return nil, err
	}
	if p.Content, err = s.ContentSettings(ctx); err != nil {
		return nil, err
	}
	if p.Footer, err = s.Footer(ctx); err != nil {
		return nil, err
	}
	if p.Settings, err = s.Settings(ctx); err != nil {
		return nil, err
	}
	if p.Design, err = s.Design(ctx); err != nil {
		return nil, err
	}
	if p.Overrides, err = s.PluginOverrides(ctx); err != nil {
		return nil, err
	}
	return &p, nil
}
