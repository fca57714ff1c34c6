// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package dashboard aggregates the admin dashboard figures: users, pages,
// media, sessions, security, performance and system information, plus the
// activity feed.
package dashboard
