// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package users is the admin user service: validated create and update,
// soft and hard deletion, filtered listing, bulk actions, statistics and
// the role catalogue shown in the admin area. Every change is written to
// the activity log.
package users
