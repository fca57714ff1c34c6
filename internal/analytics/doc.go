// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package analytics records page views and builds the admin analytics
// reports: views per day, top pages, visitor statistics, registrations and
// logins per day, host health and cache statistics.
//
// Service implements theme.PageViewTracker, so every rendered template is
// counted without the theme package knowing about the page_views table.
// Report queries are cached briefly in an internal/cache TTL cache.
package analytics
