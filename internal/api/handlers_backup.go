// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/inkwell/internal/backup"
	"github.com/tomtom215/inkwell/internal/validation"
)

// BackupList returns the archives on disk with aggregate statistics.
func (h *Handler) BackupList(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.Backups.ListBackups()
	if err != nil {
		writeBackupErr(w, r, err)
		return
	}
	stats, err := h.svc.Backups.Stats()
	if err != nil {
		writeBackupErr(w, r, err)
		return
	}
	WriteSuccess(w, r, map[string]any{"backups": files, "stats": stats})
}

// BackupCreate runs a manual backup. The body is optional and defaults to
// a full backup.
func (h *Handler) BackupCreate(w http.ResponseWriter, r *http.Request) {
	var req BackupCreateRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(r, &req); err != nil {
			NewResponseWriter(w, r).BadRequest("Request body must be JSON")
			return
		}
	}
	if ve := validation.ValidateStruct(req); ve != nil {
		NewResponseWriter(w, r).ValidationFailed(ve)
		return
	}

	var (
		b   *backup.Backup
		err error
	)
	if req.BackupType() == backup.TypeDatabase {
		b, err = h.svc.Backups.CreateDatabaseBackup(r.Context())
	} else {
		b, err = h.svc.Backups.CreateFullBackup(r.Context())
	}
	if err != nil {
		writeBackupErr(w, r, err)
		return
	}
	NewResponseWriter(w, r).Created(b)
}

// BackupHistory returns backup_history rows (?limit=, max 200).
func (h *Handler) BackupHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.svc.Backups.BackupHistory(r.Context(), queryInt(r, "limit", 50, 200))
	if err != nil {
		writeBackupErr(w, r, err)
		return
	}
	WriteSuccess(w, r, history)
}

// BackupRetention applies the retention policy now.
func (h *Handler) BackupRetention(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Backups.ApplyRetention(r.Context())
	if err != nil {
		writeBackupErr(w, r, err)
		return
	}
	WriteSuccess(w, r, res)
}

// BackupRestore restores the named archive.
func (h *Handler) BackupRestore(w http.ResponseWriter, r *http.Request) {
	var req BackupRestoreRequest
	if r.ContentLength != 0 {
		if err := DecodeJSON(r, &req); err != nil {
			NewResponseWriter(w, r).BadRequest("Request body must be JSON")
			return
		}
	}
	res, err := h.svc.Backups.Restore(r.Context(), chi.URLParam(r, "name"), backup.RestoreOptions{
		Files:            req.Files,
		SkipSafetyBackup: req.SkipSafetyBackup,
	})
	if err != nil {
		writeBackupErr(w, r, err)
		return
	}
	WriteSuccess(w, r, res)
}

// BackupDelete removes the named archive.
func (h *Handler) BackupDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Backups.DeleteBackup(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeBackupErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeBackupErr(w http.ResponseWriter, r *http.Request, err error) {
	rw := NewResponseWriter(w, r)
	switch {
	case errors.Is(err, backup.ErrInProgress):
		rw.Conflict(err.Error())
	case errors.Is(err, backup.ErrBackupNotFound):
		rw.NotFound(err.Error())
	case errors.Is(err, backup.ErrInvalidName), errors.Is(err, backup.ErrChecksum), errors.Is(err, backup.ErrSchemaMismatch):
		rw.BadRequest(err.Error())
	default:
		rw.InternalError("Backup operation failed")
	}
}
