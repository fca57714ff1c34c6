// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package system holds the diagnostics and maintenance services behind the
admin "System" and "Status" screens.

Service (the system service) reports runtime and database information,
table and directory health, CMS statistics, the error log and security
settings, and runs the routine cleanups (cache, sessions, failed logins,
table optimization).

StatusService groups checks into sections (database, filesystem, runtime,
security, performance). Each check has a level of ok, info, warning,
error or critical and, when it can be fixed from the admin, the name of
the repair action.

host.go samples the machine through gopsutil and is shared with the
analytics and dashboard services.
*/
package system
