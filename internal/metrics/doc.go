// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package metrics declares the Prometheus metrics exported on /metrics.

All collectors are registered with the default registry through promauto at
package init, so callers simply increment them:

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	metrics.RecordAPIRequest(r.Method, route, "200", time.Since(start))

Metric families:

  - inkwell_http_*: request count, latency and in-flight gauge (middleware)
  - inkwell_hook_*: action/filter dispatches and recovered panics
  - inkwell_login_attempts_total, inkwell_active_sessions: authentication
  - inkwell_page_views_total, inkwell_router_dispatches_total: content
  - inkwell_subscription_resolutions_total: plan resolution source
  - inkwell_cache_*: TTL cache efficiency
  - inkwell_backup_*, inkwell_update_checks_total, inkwell_maintenance_runs_total
  - inkwell_websocket_connections
*/
package metrics
