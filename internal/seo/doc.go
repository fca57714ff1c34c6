// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package seo produces search engine output: schema.org JSON-LD blocks,
// sitemap.xml, robots.txt and the analytics snippets configured in the
// seo_* settings.
package seo
