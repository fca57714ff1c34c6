// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package database owns the DuckDB store behind Inkwell.

New opens the database file, creates every table (see Tables), applies the
versioned migrations in migrations.go and creates indexes. Identifiers come
from one sequence per table (seq_<table>).

Besides the connection the package provides the stores that nearly every
other package needs:

  - options: the settings table as a cached key/value store (GetOption,
    UpdateOption, GetOptionJSON)
  - activity log: LogActivity, RecentActivity, UserActivity, with an optional
    listener used by the live admin feed
  - users: lookup, insert, meta values
  - security log: login attempts, failed logins, blocked IPs and the SQL index
    of live sessions

Feature packages (content, subscription, analytics, ...) run their own SQL
through Conn() and reuse ScanUser, CloseRows and the sentinel ErrNotFound.

Tests use ":memory:" databases:

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:"})
*/
package database
