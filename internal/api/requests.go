// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"github.com/tomtom215/inkwell/internal/backup"
)

// TokenRequest is the body of POST /api/v1/auth/token.
type TokenRequest struct {
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string `json:"token"`
	TokenType string `json:"token_type"`
	ExpiresAt string `json:"expires_at"`
}

// BackupCreateRequest is the body of POST /api/v1/admin/backups.
type BackupCreateRequest struct {
	Type string `json:"type" validate:"omitempty,oneof=full database"`
}

// BackupType returns the requested type, full by default.
func (b BackupCreateRequest) BackupType() backup.Type {
	if b.Type == "" {
		return backup.TypeFull
	}
	return backup.Type(b.Type)
}

// BackupRestoreRequest is the body of POST /api/v1/admin/backups/{name}/restore.
type BackupRestoreRequest struct {
	Files            bool `json:"files"`
	SkipSafetyBackup bool `json:"skip_safety_backup"`
}
