// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package authz answers "may this role do that" questions with Casbin.
//
// Two kinds of rule share one RBAC model:
//
//	p, editor, publish_posts, use     capability check
//	p, member, /member*, *            site area check (path, method)
//
// Roles inherit through grouping rules (g, editor, member). The embedded
// policy mirrors the seeded roles table; SyncRoles adds capabilities of
// custom roles stored in the database.
//
// Decisions are cached per (subject, object, action) until the policy
// changes.
package authz
