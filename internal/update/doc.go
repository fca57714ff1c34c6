// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package update checks remote release feeds for new versions of the CMS,
// its plugins and its themes, and keeps the update_history table.
//
// Remote calls go through Client, an HTTP JSON fetcher guarded by a
// gobreaker circuit breaker so an unreachable release server fails fast
// instead of stalling admin pages. Results are held in a cache.Cache for
// the configured check interval.
//
// The core feed is a release document in the GitHub "latest release"
// shape (tag_name, body, published_at, zipball_url). Plugins and themes
// opt in by naming an update_url in their manifest; that URL returns
//
//	{"version": "1.2.0", "download_url": "...", "changelog": "- Fixed x"}
//
// where changelog is either Markdown text or a list of strings.
package update
