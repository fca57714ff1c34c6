// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/inkwell/internal/models"
)

func TestExportImportRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	u := &models.User{Username: "alice", Email: "alice@example.com", PasswordHash: "x", Role: "admin", Status: "active"}
	if _, err := db.InsertUser(ctx, u); err != nil {
		t.Fatalf("InsertUser: %v", err)
	}
	if err := db.UpdateOption(ctx, "site_title", "Exported"); err != nil {
		t.Fatalf("UpdateOption: %v", err)
	}

	dir := t.TempDir()
	files, err := db.ExportTables(ctx, dir)
	if err != nil {
		t.Fatalf("ExportTables: %v", err)
	}
	if len(files) != len(Tables) {
		t.Fatalf("exported %d files, want %d", len(files), len(Tables))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("missing export file %s", filepath.Base(f))
		}
	}

	if err := db.UpdateOption(ctx, "site_title", "Changed"); err != nil {
		t.Fatalf("UpdateOption: %v", err)
	}
	if _, err := db.Conn().ExecContext(ctx, "DELETE FROM users"); err != nil {
		t.Fatalf("delete users: %v", err)
	}

	imported, err := db.ImportTables(ctx, dir, "backup_history")
	if err != nil {
		t.Fatalf("ImportTables: %v", err)
	}
	for _, tbl := range imported {
		if tbl == "backup_history" {
			t.Error("skipped table was imported")
		}
	}
	if got := db.GetOption(ctx, "site_title", ""); got != "Exported" {
		t.Errorf("site_title = %q, want Exported", got)
	}
	restored, err := db.UserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("UserByUsername: %v", err)
	}
	if restored.ID != u.ID {
		t.Errorf("restored id = %d, want %d", restored.ID, u.ID)
	}

	// New rows must not collide with restored ids.
	bob := &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", Role: "subscriber", Status: "active"}
	if _, err := db.InsertUser(ctx, bob); err != nil {
		t.Fatalf("InsertUser after import: %v", err)
	}
	if bob.ID <= u.ID {
		t.Errorf("new id %d not past restored id %d", bob.ID, u.ID)
	}
}

func TestImportTablesIgnoresMissingFiles(t *testing.T) {
	db := setupTestDB(t)
	imported, err := db.ImportTables(context.Background(), t.TempDir())
	if err != nil {
		t.Fatalf("ImportTables: %v", err)
	}
	if len(imported) != 0 {
		t.Errorf("imported = %v, want none", imported)
	}
}
