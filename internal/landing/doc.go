// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package landing stores the configurable landing page: hero header,
// feature cards, free content block, footer, colors, design tokens,
// visibility settings and per-area plugin overrides.
//
// Every section is a landing_sections row whose data column holds JSON.
// Singleton sections (header, footer, content, settings, design,
// plugin_overrides) have one row each; feature cards have one row per card
// ordered by sort_order. Getters decode stored JSON over the defaults, so
// a missing row or a missing key falls back to the default value.
//
// Plugins offer replacement renderers for an area through the
// landing_page_plugins filter; UpdatePluginOverride selects one per area.
package landing
