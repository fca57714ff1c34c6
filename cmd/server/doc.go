// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package main is the entry point for the Inkwell server.

Inkwell is a self-hosted content management and membership platform:
pages and posts rendered through themes, compiled-in plugins driven by
action and filter hooks, subscription plans gating content, and an admin
area with analytics, backups and system health.

# Application Architecture

Components are wired by internal/bootstrap and supervised with Suture v4:

	RootSupervisor ("inkwell")
	├── DataSupervisor ("data-layer")
	│   ├── Backup scheduler (when backup.enabled)
	│   ├── Maintenance (expired sessions, failed logins, subscriptions)
	│   └── Cache janitors (one per in-memory cache)
	├── MessagingSupervisor ("messaging-layer")
	│   └── WebSocket Hub (live admin activity feed)
	└── APISupervisor ("api-layer")
	    ├── HTTP Server (chi router)
	    └── Theme watcher (server.debug only)

# Configuration

Configuration is loaded via Koanf v2 (environment > config.yaml > defaults):

	HTTP_PORT=8080
	SITE_URL=https://example.com
	DUCKDB_PATH=/data/inkwell.duckdb
	JWT_SECRET=<32+ chars>          # enables API tokens
	SESSION_STORE=badger            # memory or badger
	BACKUP_ENABLED=true
	LOG_LEVEL=info                  # reloaded when config.yaml changes

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests, the hub closes client connections, and the database
is checkpointed before exit.
*/
package main
