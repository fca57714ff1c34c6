// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package models defines the data structures shared across Inkwell packages.

Database rows (User, Page, Post, Plan, UserSubscription, Order, Activity,
PageView), API envelope types (APIResponse, APIError, Metadata) and the small
value types that several services exchange live here so that store packages
and HTTP handlers agree on one shape without importing each other.

Models carry JSON tags matching the column names so they can be returned from
the JSON API unchanged. Secrets (password hashes) are tagged `json:"-"`.
*/
package models
