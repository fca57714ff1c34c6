// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
)

// ActiveThemeOption is the settings row naming the active theme folder.
const ActiveThemeOption = "active_theme"

// Config locates themes and describes the site.
type Config struct {
	Dir          string
	DefaultTheme string
	SiteName     string
	SiteURL      string
	Language     string
}

// PageViewTracker records rendered pages.
type PageViewTracker interface {
	TrackPageView(ctx context.Context, v models.PageView) error
}

// Manager loads the active theme and renders its templates.
type Manager struct {
	cfg        Config
	db         *database.DB
	hooks      *hooks.Registry
	customizer *Customizer
	csrf       *security.CSRF
	tracker    PageViewTracker
	log        zerolog.Logger

	mu        sync.RWMutex
	active    string
	manifest  *Manifest
	templates *template.Template
}

// NewManager creates a manager. Call LoadTheme before rendering.
func NewManager(cfg Config, db *database.DB, registry *hooks.Registry, csrf *security.CSRF) *Manager {
	if cfg.DefaultTheme == "" {
		cfg.DefaultTheme = "default"
	}
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &Manager{
		cfg:        cfg,
		db:         db,
		hooks:      registry,
		customizer: NewCustomizer(db),
		csrf:       csrf,
		log:        logging.WithComponent("theme"),
	}
}

// SetTracker sets the page view recorder used after each render.
func (m *Manager) SetTracker(t PageViewTracker) {
	m.mu.Lock()
	m.tracker = t
	m.mu.Unlock()
}

// Customizer returns the settings store of the active theme.
func (m *Manager) Customizer() *Customizer {
	return m.customizer
}

// Dir returns the themes directory.
func (m *Manager) Dir() string {
	return m.cfg.Dir
}

// ActiveTheme returns the folder name of the active theme.
func (m *Manager) ActiveTheme() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// ThemePath returns the directory of the active theme.
func (m *Manager) ThemePath() string {
	return filepath.Join(m.cfg.Dir, m.ActiveTheme())
}

// ThemeURL returns the public URL of the active theme's assets.
func (m *Manager) ThemeURL() string {
	return m.cfg.SiteURL + "/themes/" + m.ActiveTheme()
}

// Manifest returns the manifest of the active theme.
func (m *Manager) Manifest() *Manifest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest
}

func (m *Manager) resolveActive(ctx context.Context) string {
	slug := filepath.Base(m.db.GetOption(ctx, ActiveThemeOption, m.cfg.DefaultTheme))
	if fi, err := os.Stat(filepath.Join(m.cfg.Dir, slug)); err == nil && fi.IsDir() {
		return slug
	}
	themes, err := m.AvailableThemes()
	if err != nil || len(themes) == 0 {
		m.log.Warn().Str("theme", slug).Msg("Active theme missing and no fallback found")
		return slug
	}
	m.log.Warn().Str("theme", slug).Str("fallback", themes[0].Folder).Msg("Active theme missing, using fallback")
	return themes[0].Folder
}

// LoadTheme resolves the active theme, parses its templates, points the
// customizer at it and fires theme_loaded.
func (m *Manager) LoadTheme(ctx context.Context) error {
	slug := m.resolveActive(ctx)
	dir := filepath.Join(m.cfg.Dir, slug)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("%w: %s", ErrThemeNotFound, slug)
	}

	manifest, err := ReadManifest(dir)
	if err != nil {
		if !errors.Is(err, ErrThemeNotFound) {
			return err
		}
		manifest = &Manifest{Name: slug}
	}
	set, err := parseTemplates(dir)
	if err != nil {
		return fmt.Errorf("failed to load theme %s: %w", slug, err)
	}

	m.mu.Lock()
	m.active, m.manifest, m.templates = slug, manifest, set
	m.mu.Unlock()

	if err := m.customizer.SetTheme(ctx, slug, manifest.Customizer); err != nil {
		m.log.Warn().Err(err).Str("theme", slug).Msg("Failed to load theme customizations")
	}
	if m.hooks != nil {
		m.hooks.DoAction(ctx, hooks.ThemeLoaded, slug)
	}
	m.log.Info().Str("theme", slug).Int("templates", len(set.Templates())).Msg("Theme loaded")
	return nil
}

// Reload reparses the templates of the active theme. The previous set
// stays in place when parsing fails.
func (m *Manager) Reload() error {
	set, err := parseTemplates(m.ThemePath())
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.templates = set
	m.mu.Unlock()
	return nil
}

func (m *Manager) templateSet() *template.Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.templates
}

// AvailableThemes lists every folder with a theme.yaml or style.css,
// ordered by folder name.
func (m *Manager) AvailableThemes() ([]Info, error) {
	entries, err := os.ReadDir(m.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read themes directory: %w", err)
	}
	m.mu.RLock()
	active := m.active
	m.mu.RUnlock()

	var out []Info
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		manifest, err := ReadManifest(filepath.Join(m.cfg.Dir, e.Name()))
		if err != nil {
			if !errors.Is(err, ErrThemeNotFound) {
				m.log.Warn().Err(err).Str("theme", e.Name()).Msg("Skipping theme with unreadable manifest")
			}
			continue
		}
		out = append(out, Info{Manifest: *manifest, Folder: e.Name(), Active: e.Name() == active})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Folder < out[j].Folder })
	return out, nil
}

// CurrentTheme describes the active theme.
func (m *Manager) CurrentTheme() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info := Info{Folder: m.active, Active: true}
	if m.manifest != nil {
		info.Manifest = *m.manifest
	} else {
		info.Name = m.active
	}
	return info
}

// SwitchTheme activates the theme in folder slug and loads it.
func (m *Manager) SwitchTheme(ctx context.Context, slug string) error {
	slug = filepath.Base(strings.TrimSpace(slug))
	if slug == "." || slug == string(filepath.Separator) {
		return ErrThemeNotFound
	}
	if _, err := ReadManifest(filepath.Join(m.cfg.Dir, slug)); err != nil {
		return err
	}
	if err := m.db.UpdateOption(ctx, ActiveThemeOption, slug); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().Str("theme", slug).Msg("Theme switched")
	return m.LoadTheme(ctx)
}

// DeleteTheme removes an inactive theme folder. At least one other theme
// must remain.
func (m *Manager) DeleteTheme(ctx context.Context, folder string) error {
	folder = filepath.Base(strings.TrimSpace(folder))
	if folder == "." || folder == ".." || folder == string(filepath.Separator) {
		return ErrThemeNotFound
	}
	if folder == m.ActiveTheme() {
		return ErrThemeActive
	}
	dir := filepath.Join(m.cfg.Dir, folder)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return ErrThemeNotFound
	}
	themes, err := m.AvailableThemes()
	if err != nil {
		return err
	}
	if len(themes) <= 1 {
		return ErrLastTheme
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete theme %s: %w", folder, err)
	}
	logging.Ctx(ctx).Info().Str("theme", folder).Msg("Theme deleted")
	return nil
}
