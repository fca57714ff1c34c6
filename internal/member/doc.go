// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package member is the self-service side of an account: profile fields,
// password changes, two-factor flag, notification and privacy preferences,
// data export, deletion requests, security overview, sessions and the
// member dashboard summary.
//
// Preferences are JSON documents in user_meta; defaults are merged in on
// read so new preference keys appear without a migration.
package member
