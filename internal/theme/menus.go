// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"context"
	"errors"
	"strings"

	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/security"
)

const (
	menuOptionPrefix    = "menu_"
	legacyMenuOption    = "site_menu"
	customLocationsOpt  = "menu_custom_locations"
	primaryMenuLocation = "primary"
)

// MenuItem is one navigation entry.
type MenuItem struct {
	Label    string     `json:"label"`
	URL      string     `json:"url"`
	Target   string     `json:"target,omitempty"`
	Children []MenuItem `json:"children,omitempty"`
}

// MenuLocation is a named slot a theme renders a menu into.
type MenuLocation struct {
	Slug  string `yaml:"slug" json:"slug"`
	Label string `yaml:"label" json:"label"`
}

// Menu returns the items stored for location. The primary location falls
// back to the legacy site_menu option.
func (m *Manager) Menu(ctx context.Context, location string) []MenuItem {
	var items []MenuItem
	ok, err := m.db.GetOptionJSON(ctx, menuOptionPrefix+location, &items)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("location", location).Msg("Invalid menu option")
	}
	if ok {
		return items
	}
	if location == primaryMenuLocation {
		if ok, _ := m.db.GetOptionJSON(ctx, legacyMenuOption, &items); ok {
			return items
		}
	}
	return nil
}

// SaveMenu stores the items of a menu location.
func (m *Manager) SaveMenu(ctx context.Context, location string, items []MenuItem) error {
	location = security.Sanitize(location, security.KindUsername)
	if location == "" {
		return errors.New("menu location is required")
	}
	if items == nil {
		items = []MenuItem{}
	}
	return m.db.UpdateOptionJSON(ctx, menuOptionPrefix+location, items)
}

// MenuLocations lists the theme's locations, then those added through the
// register_menu_locations filter, then custom ones. The first occurrence of
// a slug wins.
func (m *Manager) MenuLocations(ctx context.Context) []MenuLocation {
	var locs []MenuLocation
	if man := m.Manifest(); man != nil {
		locs = append(locs, man.MenuLocations...)
	}
	if len(locs) == 0 {
		locs = []MenuLocation{{Slug: primaryMenuLocation, Label: "Primary Menu"}, {Slug: "footer", Label: "Footer Menu"}}
	}
	if m.hooks != nil {
		locs = hooks.Apply(ctx, m.hooks, hooks.RegisterMenuLocations, locs)
	}
	locs = append(locs, m.CustomMenuLocations(ctx)...)

	seen := make(map[string]bool, len(locs))
	out := locs[:0:0]
	for _, l := range locs {
		if l.Slug == "" || seen[l.Slug] {
			continue
		}
		seen[l.Slug] = true
		out = append(out, l)
	}
	return out
}

// CustomMenuLocations returns locations created by administrators.
func (m *Manager) CustomMenuLocations(ctx context.Context) []MenuLocation {
	var locs []MenuLocation
	if _, err := m.db.GetOptionJSON(ctx, customLocationsOpt, &locs); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Invalid custom menu locations")
	}
	return locs
}

// SaveCustomMenuLocations replaces the administrator-defined locations.
// Slugs are reduced to [a-zA-Z0-9_] and blank entries dropped.
func (m *Manager) SaveCustomMenuLocations(ctx context.Context, locs []MenuLocation) error {
	clean := make([]MenuLocation, 0, len(locs))
	for _, l := range locs {
		slug := security.Sanitize(strings.ReplaceAll(l.Slug, "-", "_"), security.KindUsername)
		if slug == "" {
			continue
		}
		label := security.Sanitize(l.Label, security.KindText)
		if label == "" {
			label = slug
		}
		clean = append(clean, MenuLocation{Slug: slug, Label: label})
	}
	return m.db.UpdateOptionJSON(ctx, customLocationsOpt, clean)
}
