// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package backup

import (
	"time"
)

// Type is the kind of backup.
type Type string

// Backup types.
const (
	TypeFull     Type = "full"
	TypeDatabase Type = "database"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t == TypeFull || t == TypeDatabase
}

// Status of a backup_history row.
type Status string

// Backup statuses.
const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusDeleted    Status = "deleted"
)

// Trigger says what started a backup.
type Trigger string

// Backup triggers.
const (
	TriggerManual     Trigger = "manual"
	TriggerScheduled  Trigger = "scheduled"
	TriggerPreRestore Trigger = "pre_restore"
)

// Backup is one backup_history row.
type Backup struct {
	ID        int64     `json:"id"`
	Type      Type      `json:"type"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	Checksum  string    `json:"checksum,omitempty"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedBy int64     `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// File is an archive found in the backup directory.
type File struct {
	Name      string    `json:"name"`
	Type      Type      `json:"type"`
	Size      int64     `json:"size"`
	SizeHuman string    `json:"size_human"`
	CreatedAt time.Time `json:"created_at"`
}

// Entry is a file stored in an archive.
type Entry struct {
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
}

// Manifest is written as the last archive entry.
type Manifest struct {
	Type          Type      `json:"type"`
	Trigger       Trigger   `json:"trigger"`
	CMSVersion    string    `json:"cms_version"`
	SchemaVersion int       `json:"schema_version"`
	CreatedAt     time.Time `json:"created_at"`
	Tables        []string  `json:"tables"`
	Files         []Entry   `json:"files"`
}

// RestoreOptions tunes Restore.
type RestoreOptions struct {
	// Files also restores uploads and themes from full backups.
	Files bool

	// SkipSafetyBackup skips the database backup taken before restoring.
	SkipSafetyBackup bool
}

// RestoreResult reports what Restore did.
type RestoreResult struct {
	Backup           string        `json:"backup"`
	Type             Type          `json:"type"`
	Tables           []string      `json:"tables"`
	FilesRestored    int           `json:"files_restored"`
	SafetyBackup     string        `json:"safety_backup,omitempty"`
	Warnings         []string      `json:"warnings,omitempty"`
	Duration         time.Duration `json:"duration"`
	SourceCMSVersion string        `json:"source_cms_version"`
}

// RetentionResult reports archives removed by ApplyRetention.
type RetentionResult struct {
	Deleted []string `json:"deleted"`
	Freed   int64    `json:"freed"`
}

// Stats summarizes the backup directory.
type Stats struct {
	Count          int       `json:"count"`
	TotalSize      int64     `json:"total_size"`
	TotalSizeHuman string    `json:"total_size_human"`
	Latest         *File     `json:"latest,omitempty"`
	NextScheduled  time.Time `json:"next_scheduled,omitempty"`
}
