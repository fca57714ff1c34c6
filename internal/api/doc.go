// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package api is the outer HTTP layer of Inkwell.

It builds the chi router that fronts the whole process: global middleware,
health probes, Prometheus metrics, the API token endpoint, the JSON admin
API, the live admin websocket and, as the catch-all, the CMS site handler
from bootstrap.

Route Map:

	GET    /metrics                          Prometheus exposition
	GET    /api/v1/health/live               liveness probe
	GET    /api/v1/health/ready              readiness probe (database ping)
	POST   /api/v1/auth/token                exchange credentials for a bearer token
	GET    /api/v1/admin/dashboard           dashboard statistics
	GET    /api/v1/admin/activity            recent activity log
	GET    /api/v1/admin/analytics           visitor stats and top pages
	GET    /api/v1/admin/performance         request latency percentiles
	GET    /api/v1/admin/system              status checks
	POST   /api/v1/admin/system/cache        clear registered caches
	GET    /api/v1/admin/updates             core, plugin and theme updates
	GET    /api/v1/admin/backups             archives and directory stats
	POST   /api/v1/admin/backups             create a backup
	GET    /api/v1/admin/backups/history     backup_history rows
	POST   /api/v1/admin/backups/retention   apply retention
	POST   /api/v1/admin/backups/{name}/restore
	DELETE /api/v1/admin/backups/{name}
	POST   /api/v1/admin/users               create a user
	DELETE /api/v1/admin/users/{id}          deactivate or delete a user
	GET    /admin/live                       websocket activity feed
	*                                        CMS site (bootstrap.App.Handler)

The site's own /api/v1/status, /api/v1/pages and /api/v1/users routes are
served by the CMS router through the catch-all.

Responses:

Every JSON endpoint writes a models.APIResponse envelope through
ResponseWriter. Validation failures carry per-field details; not-found
sentinels map to 404 and auth.UserError messages to 400.

Security:

The admin API requires an administrator, resolved from the session cookie
or an Authorization: Bearer token. X-Forwarded-For is only honored from
configured trusted proxies. The token endpoint shares the login rate limit
and is additionally limited per IP by httprate.
*/
package api
