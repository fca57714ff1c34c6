// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package theme renders the public site through the active theme.
//
// A theme is a folder under the themes directory containing a theme.yaml
// manifest and html/template files:
//
//	themes/default/
//	  theme.yaml     name, version, author, customizer options, menu locations
//	  style.css
//	  header.html    rendered before every template
//	  footer.html    rendered after every template
//	  index.html     fallback for any missing template
//	  page.html, home.html, 404.html, ...
//
// Manager resolves the active theme from the active_theme option, parses
// its templates, renders them with the before_render, before_header,
// after_header, before_footer, after_footer and after_render actions and
// records a page view per rendered request. Customizer stores per-theme
// settings in theme_customizations and turns them into CSS variables.
// Watcher reparses templates when files in the active theme change.
package theme
