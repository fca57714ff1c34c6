// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package plugin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/subscription"
)

// RouteAdder is implemented by the site router.
type RouteAdder interface {
	HandleFunc(method, pattern string, h http.HandlerFunc)
}

// Host is the API a plugin sees. Each plugin gets its own Host.
type Host struct {
	owner   *Manager
	slug    string
	hooks   *hooks.Registry
	db      *database.DB
	gate    *subscription.Gate
	menus   *MenuRegistry
	dataDir string
	log     zerolog.Logger

	mu       sync.Mutex
	actions  map[string][]hooks.HandleID
	filters  map[string][]hooks.HandleID
	routeFns []func(ctx context.Context, routes RouteAdder)
	routed   bool
}

func newHost(m *Manager, slug string) *Host {
	return &Host{
		owner:   m,
		slug:    slug,
		hooks:   m.hooks,
		db:      m.db,
		gate:    m.gate,
		menus:   m.menus,
		dataDir: filepath.Join(m.cfg.Dir, slug),
		log:     logging.WithComponent("plugin").With().Str("plugin", slug).Logger(),
		actions: make(map[string][]hooks.HandleID),
		filters: make(map[string][]hooks.HandleID),
	}
}

// Slug returns the plugin's slug.
func (h *Host) Slug() string { return h.slug }

// DB returns the shared database.
func (h *Host) DB() *database.DB { return h.db }

// Gate returns the subscription gate, or nil when subscriptions are off.
func (h *Host) Gate() *subscription.Gate { return h.gate }

// Menus returns the admin and member menu registry.
func (h *Host) Menus() *MenuRegistry { return h.menus }

// DataDir is the plugin's folder below the plugins directory.
func (h *Host) DataDir() string { return h.dataDir }

// Logger returns a logger tagged with the plugin slug.
func (h *Host) Logger() zerolog.Logger { return h.log }

// Hooks returns the shared registry. Hooks added directly on it are not
// removed on deactivation; prefer AddAction and AddFilter.
func (h *Host) Hooks() *hooks.Registry { return h.hooks }

// AddAction registers an action owned by the plugin.
func (h *Host) AddAction(tag string, fn hooks.Action, priority int) hooks.HandleID {
	id := h.hooks.AddAction(tag, fn, priority)
	h.mu.Lock()
	h.actions[tag] = append(h.actions[tag], id)
	h.mu.Unlock()
	return id
}

// AddFilter registers a filter owned by the plugin.
func (h *Host) AddFilter(tag string, fn hooks.Filter, priority int) hooks.HandleID {
	id := h.hooks.AddFilter(tag, fn, priority)
	h.mu.Lock()
	h.filters[tag] = append(h.filters[tag], id)
	h.mu.Unlock()
	return id
}

// OnRegisterRoutes runs fn when the router collects routes, or right
// away when the plugin is activated after that. The routes answer 404
// once the plugin is deactivated.
func (h *Host) OnRegisterRoutes(fn func(ctx context.Context, routes RouteAdder)) {
	h.mu.Lock()
	h.routeFns = append(h.routeFns, fn)
	h.mu.Unlock()
	h.AddAction(hooks.RegisterRoutes, func(ctx context.Context, args ...any) {
		if len(args) == 0 {
			return
		}
		if r, ok := args[0].(RouteAdder); ok {
			h.mu.Lock()
			h.routed = true
			h.mu.Unlock()
			fn(ctx, gatedRoutes{next: r, host: h})
		}
	}, hooks.DefaultPriority)
}

// replayRoutes registers the plugin's routes on r unless the
// register_routes action already did.
func (h *Host) replayRoutes(ctx context.Context, r RouteAdder) {
	h.mu.Lock()
	if h.routed {
		h.mu.Unlock()
		return
	}
	h.routed = true
	fns := slices.Clone(h.routeFns)
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx, gatedRoutes{next: r, host: h})
	}
}

// live reports whether h is still the loaded host of its plugin.
func (h *Host) live() bool {
	return h.owner != nil && h.owner.host(h.slug) == h
}

// gatedRoutes wraps plugin handlers so they only answer while the
// plugin that added them is loaded.
type gatedRoutes struct {
	next RouteAdder
	host *Host
}

func (g gatedRoutes) HandleFunc(method, pattern string, fn http.HandlerFunc) {
	g.next.HandleFunc(method, pattern, func(w http.ResponseWriter, r *http.Request) {
		if !g.host.live() {
			if nf, ok := g.next.(interface {
				NotFound(http.ResponseWriter, *http.Request)
			}); ok {
				nf.NotFound(w, r)
				return
			}
			http.NotFound(w, r)
			return
		}
		fn(w, r)
	})
}

// OnAdminMenu runs fn each time the admin menu is built.
func (h *Host) OnAdminMenu(fn func(ctx context.Context, menus *MenuRegistry)) {
	h.AddAction(hooks.AdminMenu, func(ctx context.Context, args ...any) {
		if len(args) == 0 {
			return
		}
		if m, ok := args[0].(*MenuRegistry); ok {
			fn(ctx, m)
		}
	}, hooks.DefaultPriority)
}

// detach removes every hook the plugin added through the host.
func (h *Host) detach() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for tag, ids := range h.actions {
		for _, id := range ids {
			if h.hooks.RemoveAction(tag, id) {
				n++
			}
		}
	}
	for tag, ids := range h.filters {
		for _, id := range ids {
			if h.hooks.RemoveFilter(tag, id) {
				n++
			}
		}
	}
	h.actions = make(map[string][]hooks.HandleID)
	h.filters = make(map[string][]hooks.HandleID)
	if h.menus != nil {
		h.menus.RemoveMemberPages(h.slug)
	}
	return n
}

// Meta returns a value from the plugin's key/value store.
func (h *Host) Meta(ctx context.Context, key string) (string, bool, error) {
	var v sql.NullString
	err := h.db.Conn().QueryRowContext(ctx,
		`SELECT meta_value FROM plugin_meta WHERE plugin_slug = ? AND meta_key = ?`, h.slug, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read plugin meta %s: %w", key, err)
	}
	return v.String, true, nil
}

// SetMeta upserts a value in the plugin's key/value store.
func (h *Host) SetMeta(ctx context.Context, key, value string) error {
	_, err := h.db.Conn().ExecContext(ctx, `
		INSERT INTO plugin_meta (plugin_slug, meta_key, meta_value) VALUES (?, ?, ?)
		ON CONFLICT (plugin_slug, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		h.slug, key, value)
	if err != nil {
		return fmt.Errorf("failed to write plugin meta %s: %w", key, err)
	}
	return nil
}

// AddMemberPage registers a page under /member/plugin/<slug> owned by
// the plugin. It is removed on deactivation.
func (h *Host) AddMemberPage(title string, handler http.HandlerFunc) {
	if h.menus != nil {
		h.menus.AddMemberPage(h.slug, title, handler)
	}
}
