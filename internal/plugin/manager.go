// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package plugin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/subscription"
)

// ActivePluginsOption holds the JSON list of active plugin slugs.
const ActivePluginsOption = "active_plugins"

// Config configures the manager. A nil Registry uses Default().
type Config struct {
	Dir      string
	Registry *Registry
}

// Manager activates, deactivates, loads and deletes plugins.
type Manager struct {
	cfg      Config
	registry *Registry
	db       *database.DB
	hooks    *hooks.Registry
	menus    *MenuRegistry
	gate     *subscription.Gate
	log      zerolog.Logger

	mu     sync.Mutex
	hosts  map[string]*Host
	routes RouteAdder
}

// NewManager creates a manager. gate may be nil.
func NewManager(cfg Config, db *database.DB, registry *hooks.Registry, menus *MenuRegistry, gate *subscription.Gate) *Manager {
	r := cfg.Registry
	if r == nil {
		r = Default()
	}
	if menus == nil {
		menus = NewMenuRegistry()
	}
	return &Manager{
		cfg:      cfg,
		registry: r,
		db:       db,
		hooks:    registry,
		menus:    menus,
		gate:     gate,
		log:      logging.WithComponent("plugin"),
		hosts:    make(map[string]*Host),
	}
}

// Menus returns the menu registry plugins add pages to.
func (m *Manager) Menus() *MenuRegistry {
	return m.menus
}

// ActivePlugins returns the slugs stored in the active_plugins option.
func (m *Manager) ActivePlugins(ctx context.Context) []string {
	var slugs []string
	if _, err := m.db.GetOptionJSON(ctx, ActivePluginsOption, &slugs); err != nil {
		m.log.Warn().Err(err).Msg("Invalid active_plugins option")
		return nil
	}
	return slugs
}

// IsActive reports whether slug is in the active list.
func (m *Manager) IsActive(ctx context.Context, slug string) bool {
	return slices.Contains(m.ActivePlugins(ctx), slug)
}

// Loaded reports whether slug has been initialized in this process.
func (m *Manager) Loaded(slug string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.hosts[slug]
	return ok
}

func (m *Manager) host(slug string) *Host {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hosts[slug]
}

// RoutesCollected records the router register_routes fired with. Plugins
// activated afterwards register their routes on it directly.
func (m *Manager) RoutesCollected(ctx context.Context, routes RouteAdder) {
	m.mu.Lock()
	m.routes = routes
	hosts := make([]*Host, 0, len(m.hosts))
	for _, h := range m.hosts {
		hosts = append(hosts, h)
	}
	m.mu.Unlock()
	for _, h := range hosts {
		h.replayRoutes(ctx, routes)
	}
}

// unload detaches and forgets the host of slug.
func (m *Manager) unload(slug string) {
	m.mu.Lock()
	host := m.hosts[slug]
	delete(m.hosts, slug)
	m.mu.Unlock()
	if host != nil {
		host.detach()
	}
}

// LoadPlugins initializes every active plugin that is compiled in, then
// fires plugins_loaded. Plugins whose Init fails are skipped.
func (m *Manager) LoadPlugins(ctx context.Context) {
	for _, slug := range m.ActivePlugins(ctx) {
		p, ok := m.registry.Lookup(slug)
		if !ok {
			m.log.Warn().Str("plugin", slug).Msg("Active plugin is not compiled into this binary")
			continue
		}
		if err := m.initPlugin(ctx, p); err != nil {
			m.log.Error().Err(err).Str("plugin", slug).Msg("Plugin failed to initialize")
		}
	}
	m.doAction(ctx, hooks.PluginsLoaded)
}

func (m *Manager) initPlugin(ctx context.Context, p Plugin) error {
	slug := p.Slug()
	m.mu.Lock()
	if _, done := m.hosts[slug]; done {
		m.mu.Unlock()
		return nil
	}
	host := newHost(m, slug)
	m.hosts[slug] = host
	m.mu.Unlock()

	if err := p.Init(ctx, host); err != nil {
		m.unload(slug)
		return fmt.Errorf("init %s: %w", slug, err)
	}
	m.doAction(ctx, hooks.PluginLoaded, slug)
	m.log.Info().Str("plugin", slug).Str("version", p.Manifest().Version).Msg("Plugin loaded")
	return nil
}

// AvailablePlugins lists compiled-in plugins and plugin folders that
// carry a plugin.yaml but are not compiled in.
func (m *Manager) AvailablePlugins(ctx context.Context) ([]Info, error) {
	active := m.ActivePlugins(ctx)
	seen := make(map[string]bool)
	var out []Info
	for _, slug := range m.registry.Slugs() {
		p, _ := m.registry.Lookup(slug)
		out = append(out, Info{Manifest: p.Manifest(), Slug: slug, Active: slices.Contains(active, slug), Available: true})
		seen[slug] = true
	}

	if m.cfg.Dir != "" {
		entries, err := os.ReadDir(m.cfg.Dir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read plugins directory: %w", err)
		}
		for _, e := range entries {
			if !e.IsDir() || seen[e.Name()] || strings.HasPrefix(e.Name(), ".") {
				continue
			}
			man, err := ReadManifest(filepath.Join(m.cfg.Dir, e.Name()))
			if err != nil {
				continue
			}
			out = append(out, Info{Manifest: *man, Slug: e.Name(), Active: slices.Contains(active, e.Name())})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

// ActivatePlugin marks slug active, initializes it and fires
// plugin_activated.
func (m *Manager) ActivatePlugin(ctx context.Context, slug string) error {
	p, ok := m.registry.Lookup(slug)
	if !ok {
		return ErrPluginNotFound
	}
	active := m.ActivePlugins(ctx)
	if slices.Contains(active, slug) {
		return ErrAlreadyActive
	}
	for _, dep := range p.Manifest().Requires {
		if !slices.Contains(active, dep) {
			return fmt.Errorf("%w: %s", ErrMissingDependency, dep)
		}
	}

	if err := m.initPlugin(ctx, p); err != nil {
		return err
	}
	if err := m.db.UpdateOptionJSON(ctx, ActivePluginsOption, append(active, slug)); err != nil {
		m.unload(slug)
		return err
	}

	m.mu.Lock()
	routes, host := m.routes, m.hosts[slug]
	m.mu.Unlock()
	if routes != nil && host != nil {
		host.replayRoutes(ctx, routes)
	}
	m.recordState(ctx, p, true)
	m.doAction(ctx, hooks.PluginActivated, slug)
	logging.Ctx(ctx).Info().Str("plugin", slug).Msg("Plugin activated")
	return nil
}

// DeactivatePlugin removes slug from the active list, detaches its hooks
// and fires plugin_deactivated.
func (m *Manager) DeactivatePlugin(ctx context.Context, slug string) error {
	active := m.ActivePlugins(ctx)
	if !slices.Contains(active, slug) {
		return ErrNotActive
	}
	active = slices.DeleteFunc(active, func(s string) bool { return s == slug })
	if err := m.db.UpdateOptionJSON(ctx, ActivePluginsOption, active); err != nil {
		return err
	}

	m.unload(slug)

	if p, ok := m.registry.Lookup(slug); ok {
		if d, ok := p.(Deactivator); ok {
			if err := d.Deactivate(ctx); err != nil {
				m.log.Warn().Err(err).Str("plugin", slug).Msg("Plugin deactivation hook failed")
			}
		}
		m.recordState(ctx, p, false)
	}
	m.doAction(ctx, hooks.PluginDeactivated, slug)
	logging.Ctx(ctx).Info().Str("plugin", slug).Msg("Plugin deactivated")
	return nil
}

// DeletePlugin removes an inactive plugin's folder and stored data. It
// fires plugin_before_delete and plugin_deleted.
func (m *Manager) DeletePlugin(ctx context.Context, slug string) error {
	slug = filepath.Base(strings.TrimSpace(slug))
	if slug == "" || slug == "." || slug == ".." || slug == string(filepath.Separator) {
		return ErrPluginNotFound
	}
	if m.IsActive(ctx, slug) {
		return ErrPluginActive
	}
	_, registered := m.registry.Lookup(slug)
	dir := ""
	if m.cfg.Dir != "" {
		dir = filepath.Join(m.cfg.Dir, slug)
		if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
			dir = ""
		}
	}
	if dir == "" && !registered {
		return ErrPluginNotFound
	}

	m.doAction(ctx, hooks.PluginBeforeDelete, slug)
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to delete plugin folder: %w", err)
		}
	}
	conn := m.db.Conn()
	if _, err := conn.ExecContext(ctx, `DELETE FROM plugin_meta WHERE plugin_slug = ?`, slug); err != nil {
		return fmt.Errorf("failed to delete plugin data: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `DELETE FROM plugins WHERE slug = ?`, slug); err != nil {
		return fmt.Errorf("failed to delete plugin record: %w", err)
	}
	m.doAction(ctx, hooks.PluginDeleted, slug)
	logging.Ctx(ctx).Info().Str("plugin", slug).Msg("Plugin deleted")
	return nil
}

// recordState keeps the plugins table in step with the active list.
func (m *Manager) recordState(ctx context.Context, p Plugin, active bool) {
	man := p.Manifest()
	var activatedAt any
	if active {
		activatedAt = time.Now().UTC()
	}
	_, err := m.db.Conn().ExecContext(ctx, `
		INSERT INTO plugins (name, slug, version, author, description, is_active, activated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (slug) DO UPDATE SET name = excluded.name, version = excluded.version,
			author = excluded.author, description = excluded.description,
			is_active = excluded.is_active, activated_at = excluded.activated_at`,
		man.Name, p.Slug(), man.Version, man.Author, man.Description, active, activatedAt)
	if err != nil {
		m.log.Warn().Err(err).Str("plugin", p.Slug()).Msg("Failed to record plugin state")
	}
}

func (m *Manager) doAction(ctx context.Context, tag string, args ...any) {
	if m.hooks != nil {
		m.hooks.DoAction(ctx, tag, args...)
	}
}
