// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package backup creates, lists, restores and prunes site backups.
//
// # Backup Types
//
//	TypeDatabase - every table exported as Parquet
//	TypeFull     - the database export plus the uploads and themes trees
//
// # Archive Layout
//
//	backup-{type}-{20060102-150405}-{id}.tar.gz
//	├── database/
//	│   ├── users.parquet
//	│   └── ...
//	├── uploads/               (full backups only)
//	├── themes/                (full backups only)
//	└── backup-manifest.json   (version, tables and per-file SHA-256)
//
// Every run is recorded in the backup_history table with the SHA-256 of the
// finished archive. Restore verifies the archive checksum and each file's
// checksum before any table is replaced, and takes a database backup of the
// current state first unless told not to.
//
// # Retention
//
// After each scheduled run the manager deletes archives beyond
// Options.RetentionCount and archives older than Options.RetentionDays. The
// newest archive is always kept.
//
// # Scheduling
//
// Manager.Serve implements suture.Service. It runs a database or full backup
// every Options.Interval and, for daily or longer intervals, aligns the run to
// Options.PreferredHour.
package backup
