// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"fmt"
	"time"
)

// Tables lists every application table, in creation order.
var Tables = []string{
	"users", "user_meta", "roles", "settings", "sessions",
	"login_attempts", "failed_logins", "blocked_ips", "activity_log",
	"pages", "page_revisions", "post_categories", "posts",
	"landing_sections", "media", "page_views", "cache",
	"plugins", "plugin_meta", "theme_customizations",
	"subscription_plans", "user_subscriptions", "user_groups",
	"user_group_members", "subscription_usage", "orders",
	"backup_history", "update_history", "privacy_requests",
}

// IsKnownTable reports whether name is one of Tables.
func IsKnownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}

func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// sequenced tables get an id column backed by seq_<table>.
var sequenced = []string{
	"users", "user_meta", "roles", "settings", "login_attempts",
	"failed_logins", "blocked_ips", "activity_log", "pages", "page_revisions",
	"post_categories", "posts", "landing_sections", "media", "page_views",
	"cache", "plugins", "plugin_meta", "theme_customizations",
	"subscription_plans", "user_subscriptions", "user_groups",
	"user_group_members", "subscription_usage", "orders", "backup_history",
	"update_history", "privacy_requests",
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, t := range sequenced {
		q := fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS seq_%s START 1", t)
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create sequence for %s: %w", t, err)
		}
	}
	for _, q := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", q, err)
		}
	}
	return nil
}

// theme_customizations.user_id is 0 for site-wide values so that the unique
// key covers them (NULLs never collide).
var tableCreationQueries = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_users'),
		username TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		display_name TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'member',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_meta (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_user_meta'),
		user_id BIGINT NOT NULL,
		meta_key TEXT NOT NULL,
		meta_value TEXT,
		UNIQUE (user_id, meta_key)
	)`,
	`CREATE TABLE IF NOT EXISTS roles (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_roles'),
		name TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		description TEXT,
		capabilities TEXT,
		member_dashboard_access BOOLEAN NOT NULL DEFAULT true,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_settings'),
		option_name TEXT NOT NULL UNIQUE,
		option_value TEXT,
		autoload BOOLEAN DEFAULT true,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		user_id BIGINT,
		ip_address TEXT,
		user_agent TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_activity TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		expires_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS login_attempts (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_login_attempts'),
		username TEXT,
		ip_address TEXT,
		success BOOLEAN DEFAULT false,
		attempted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS failed_logins (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_failed_logins'),
		username TEXT,
		ip_address TEXT,
		user_agent TEXT,
		attempted_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS blocked_ips (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_blocked_ips'),
		ip_address TEXT NOT NULL UNIQUE,
		reason TEXT,
		expires_at TIMESTAMP,
		permanent BOOLEAN DEFAULT false,
		blocked_by TEXT DEFAULT 'manual',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS activity_log (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_activity_log'),
		user_id BIGINT,
		action TEXT NOT NULL,
		entity_type TEXT,
		entity_id BIGINT,
		description TEXT,
		ip_address TEXT,
		user_agent TEXT,
		metadata TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_pages'),
		slug TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		content TEXT,
		excerpt TEXT,
		format TEXT NOT NULL DEFAULT 'html',
		status TEXT DEFAULT 'draft',
		hide_title BOOLEAN NOT NULL DEFAULT false,
		author_id BIGINT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		published_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS page_revisions (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_page_revisions'),
		page_id BIGINT NOT NULL,
		title TEXT NOT NULL,
		content TEXT,
		excerpt TEXT,
		author_id BIGINT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS post_categories (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_post_categories'),
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		parent_id BIGINT,
		sort_order INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS posts (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_posts'),
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		content TEXT,
		excerpt TEXT,
		format TEXT NOT NULL DEFAULT 'html',
		featured_image TEXT,
		status TEXT NOT NULL DEFAULT 'draft',
		author_id BIGINT NOT NULL,
		category_id BIGINT,
		tags TEXT,
		views BIGINT DEFAULT 0,
		allow_comments BOOLEAN NOT NULL DEFAULT true,
		meta_title TEXT,
		meta_description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		published_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS landing_sections (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_landing_sections'),
		type TEXT NOT NULL,
		data TEXT,
		sort_order INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS media (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_media'),
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL,
		filetype TEXT,
		filesize BIGINT,
		title TEXT,
		alt_text TEXT,
		caption TEXT,
		uploaded_by BIGINT,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS page_views (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_page_views'),
		page_id BIGINT,
		page_slug TEXT,
		page_title TEXT,
		user_id BIGINT,
		session_id TEXT,
		ip_address TEXT,
		user_agent TEXT,
		referrer TEXT,
		visited_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS cache (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_cache'),
		cache_key TEXT NOT NULL UNIQUE,
		cache_value TEXT,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS plugins (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_plugins'),
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		version TEXT NOT NULL,
		author TEXT,
		description TEXT,
		is_active BOOLEAN DEFAULT false,
		installed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		activated_at TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS plugin_meta (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_plugin_meta'),
		plugin_slug TEXT NOT NULL,
		meta_key TEXT NOT NULL,
		meta_value TEXT,
		UNIQUE (plugin_slug, meta_key)
	)`,
	`CREATE TABLE IF NOT EXISTS theme_customizations (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_theme_customizations'),
		theme_slug TEXT NOT NULL,
		setting_category TEXT NOT NULL,
		setting_key TEXT NOT NULL,
		setting_value TEXT,
		user_id BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (theme_slug, setting_category, setting_key, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS subscription_plans (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_subscription_plans'),
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		price_monthly DOUBLE DEFAULT 0,
		price_yearly DOUBLE DEFAULT 0,
		limit_experts INTEGER DEFAULT -1,
		limit_companies INTEGER DEFAULT -1,
		limit_events INTEGER DEFAULT -1,
		limit_speakers INTEGER DEFAULT -1,
		limit_storage_mb INTEGER DEFAULT 1000,
		plugin_experts BOOLEAN DEFAULT true,
		plugin_companies BOOLEAN DEFAULT true,
		plugin_events BOOLEAN DEFAULT true,
		plugin_speakers BOOLEAN DEFAULT true,
		feature_analytics BOOLEAN DEFAULT false,
		feature_advanced_search BOOLEAN DEFAULT false,
		feature_api_access BOOLEAN DEFAULT false,
		feature_custom_branding BOOLEAN DEFAULT false,
		feature_priority_support BOOLEAN DEFAULT false,
		feature_export_data BOOLEAN DEFAULT false,
		feature_integrations BOOLEAN DEFAULT false,
		feature_custom_domains BOOLEAN DEFAULT false,
		is_active BOOLEAN DEFAULT true,
		sort_order INTEGER DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_subscriptions (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_user_subscriptions'),
		user_id BIGINT NOT NULL,
		plan_id BIGINT NOT NULL,
		status TEXT DEFAULT 'active',
		billing_cycle TEXT DEFAULT 'monthly',
		start_date TIMESTAMP NOT NULL,
		end_date TIMESTAMP,
		next_billing_date TIMESTAMP,
		cancelled_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_groups (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_user_groups'),
		name TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		description TEXT,
		plan_id BIGINT,
		is_active BOOLEAN DEFAULT true,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS user_group_members (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_user_group_members'),
		user_id BIGINT NOT NULL,
		group_id BIGINT NOT NULL,
		joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS subscription_usage (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_subscription_usage'),
		user_id BIGINT NOT NULL,
		resource_type TEXT NOT NULL,
		current_count INTEGER DEFAULT 0,
		last_updated TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (user_id, resource_type)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_orders'),
		order_number TEXT NOT NULL UNIQUE,
		user_id BIGINT,
		plan_id BIGINT NOT NULL,
		status TEXT DEFAULT 'pending',
		total_amount DOUBLE NOT NULL DEFAULT 0,
		currency TEXT DEFAULT 'EUR',
		payment_method TEXT,
		billing_cycle TEXT DEFAULT 'monthly',
		forename TEXT,
		lastname TEXT,
		company TEXT,
		email TEXT,
		phone TEXT,
		street TEXT,
		zip TEXT,
		city TEXT,
		country TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS backup_history (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_backup_history'),
		type TEXT NOT NULL,
		filename TEXT NOT NULL,
		size_bytes BIGINT DEFAULT 0,
		checksum TEXT,
		status TEXT NOT NULL,
		error TEXT,
		created_by BIGINT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS update_history (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_update_history'),
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		from_version TEXT,
		to_version TEXT,
		status TEXT NOT NULL,
		message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS privacy_requests (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_privacy_requests'),
		user_id BIGINT NOT NULL,
		request_type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		note TEXT,
		result TEXT,
		processed_by BIGINT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		processed_at TIMESTAMP
	)`,
}

// Only append-mostly tables are indexed; DuckDB rewrites index entries on
// every update of an indexed column.
var indexQueries = []string{
	`CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_user ON activity_log(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_revisions_page ON page_revisions(page_id)`,
	`CREATE INDEX IF NOT EXISTS idx_page_views_visited ON page_views(visited_at)`,
	`CREATE INDEX IF NOT EXISTS idx_login_attempts_time ON login_attempts(attempted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_failed_logins_time ON failed_logins(attempted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_user_subs_user ON user_subscriptions(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_privacy_requests_user ON privacy_requests(user_id)`,
}

func (db *DB) createIndexes() error {
	ctx, cancel := schemaContext()
	defer cancel()
	for _, q := range indexQueries {
		if _, err := db.conn.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to create index: %s: %w", q, err)
		}
	}
	return nil
}
