// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package firewall blocks abusive clients by IP address.

Blocks live in the blocked_ips table. An admin can block an address for a
number of minutes or permanently, and RunAutoBlock blocks every address
that failed to log in MaxAttempts times within the last hour for
LockoutMinutes. Whitelisted addresses and networks (CIDR notation) are
never auto-blocked and always pass the middleware.

Middleware answers 403 for blocked addresses and, when BlockEmptyUA is
set, for requests without a User-Agent. Block lookups are cached for a
short time; Block and Unblock purge the cache.

Settings are stored as JSON in the firewall_settings option.
*/
package firewall
