// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package testinfra

import (
	"context"
	"io"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// NewDB opens an in-memory database with every migration applied. It is
// closed when the test ends.
func NewDB(t testing.TB) *database.DB {
	t.Helper()
	logging.SetLogger(logging.NewTestLogger(io.Discard))

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})
	return db
}

// CreateUser inserts an active user with the given password. The hash uses
// bcrypt.MinCost so tests stay fast.
func CreateUser(t testing.TB, db *database.DB, username, role, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		DisplayName:  username,
		Role:         role,
		Status:       models.StatusActive,
	}
	if _, err := db.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	return u
}
