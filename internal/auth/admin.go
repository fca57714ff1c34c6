// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import (
	"context"
	"fmt"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
)

// DefaultAdminUsername is the login of the seeded administrator.
const DefaultAdminUsername = "admin"

// EnsureDefaultAdmin creates the first administrator when none exists. An
// empty password is replaced by a random one that is logged once.
func EnsureDefaultAdmin(ctx context.Context, db *database.DB, email, password string, cost int) (bool, error) {
	n, err := db.CountUsersByRole(ctx, models.RoleAdmin)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	generated := password == ""
	if generated {
		if password, err = security.RandomHex(12); err != nil {
			return false, err
		}
	}
	if cost == 0 {
		cost = security.DefaultBcryptCost
	}
	hash, err := security.HashPasswordCost(password, cost)
	if err != nil {
		return false, err
	}
	if email == "" {
		email = "admin@localhost"
	}
	u := &models.User{
		Username:     DefaultAdminUsername,
		Email:        email,
		PasswordHash: hash,
		DisplayName:  "Administrator",
		Role:         models.RoleAdmin,
		Status:       models.StatusActive,
	}
	if _, err := db.InsertUser(ctx, u); err != nil {
		return false, fmt.Errorf("failed to create default admin: %w", err)
	}

	ev := logging.Warn().Str("username", DefaultAdminUsername)
	if generated {
		ev = ev.Str("password", password)
	}
	ev.Msg("Created default administrator account; change the password after first login")
	return true, nil
}
