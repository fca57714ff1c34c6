// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/inkwell/internal/logging"
)

// Migration is a versioned schema or data change applied exactly once.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

const schemaMigrationsTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// migrations must stay append-only once released.
var migrations = []Migration{
	{
		Version:     1,
		Name:        "seed_roles",
		Description: "Insert the built-in roles with their capability lists",
		SQL: `INSERT INTO roles (name, display_name, description, capabilities, member_dashboard_access, sort_order) VALUES
			('admin', 'Administrator', 'Full access to every area of the site', '["*"]', true, 1),
			('editor', 'Editor', 'Publishes and manages pages, posts and media', '["read","edit_profile","view_content","edit_posts","publish_posts","manage_media"]', true, 2),
			('author', 'Author', 'Writes and edits own posts', '["read","edit_profile","view_content","edit_own_posts"]', true, 3),
			('member', 'Member', 'Reads content and manages own profile', '["read","edit_profile","view_content"]', true, 4)
			ON CONFLICT (name) DO NOTHING`,
	},
	{
		Version:     2,
		Name:        "seed_default_options",
		Description: "Insert default site options",
		SQL: `INSERT INTO settings (option_name, option_value) VALUES
			('site_title', 'Inkwell'),
			('site_description', ''),
			('posts_per_page', '9'),
			('registration_enabled', '1')
			ON CONFLICT (option_name) DO NOTHING`,
	},
	{
		Version:     3,
		Name:        "blocked_ips_source",
		Description: "Record whether an IP block was set by an admin or the auto-blocker",
		SQL:         `ALTER TABLE blocked_ips ADD COLUMN IF NOT EXISTS blocked_by TEXT DEFAULT 'manual'`,
	},
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer CloseRows(rows)

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, schemaMigrationsTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		newMigrations++
	}
	if newMigrations > 0 {
		logging.Info().Int("count", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}

// MigrationHistory returns every applied migration in order.
func (db *DB) MigrationHistory(ctx context.Context) ([]Migration, error) {
	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return nil, err
	}
	history := make([]Migration, 0, len(applied))
	for _, m := range migrations {
		if a, ok := applied[m.Version]; ok {
			history = append(history, a)
		}
	}
	return history, nil
}
