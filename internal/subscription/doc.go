// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package subscription manages plans, user and group subscriptions, usage
// counters and the checks plugins use to gate features.
//
// The effective plan of a user is resolved in three steps:
//
//  1. the newest active explicit subscription that has not ended
//  2. the highest priced active plan of any active group the user is in
//  3. the free plan (first plan by sort order)
//
// Resolutions are cached per user and invalidated whenever an assignment,
// group membership or plan changes.
//
// Plan limits use -1 for unlimited and 0 for disabled; any other value is
// the number of resources a user may hold.
package subscription
