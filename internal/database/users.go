// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/inkwell/internal/models"
)

// UserColumns is the column list scanned by ScanUser.
const UserColumns = `id, username, email, password, display_name, role, status, created_at, updated_at, last_login`

// RowScanner is satisfied by *sql.Row and *sql.Rows.
type RowScanner interface {
	Scan(dest ...any) error
}

// ScanUser scans UserColumns into a User.
func ScanUser(s RowScanner) (*models.User, error) {
	var (
		u         models.User
		updatedAt sql.NullTime
		lastLogin sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.DisplayName,
		&u.Role, &u.Status, &u.CreatedAt, &updatedAt, &lastLogin); err != nil {
		return nil, err
	}
	u.UpdatedAt = updatedAt.Time
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (db *DB) userWhere(ctx context.Context, where string, args ...any) (*models.User, error) {
	row := db.conn.QueryRowContext(ctx, `SELECT `+UserColumns+` FROM users WHERE `+where+` LIMIT 1`, args...)
	u, err := ScanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return u, nil
}

// UserByID loads a user.
func (db *DB) UserByID(ctx context.Context, id int64) (*models.User, error) {
	return db.userWhere(ctx, `id = ?`, id)
}

// UserByLogin loads a user by username or email.
func (db *DB) UserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	return db.userWhere(ctx, `username = ? OR email = ?`, identifier, identifier)
}

// UserByUsername loads a user by exact username.
func (db *DB) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	return db.userWhere(ctx, `username = ?`, username)
}

// UserByEmail loads a user by exact email.
func (db *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return db.userWhere(ctx, `email = ?`, email)
}

// UsernameExists reports whether username is taken, ignoring excludeID.
func (db *DB) UsernameExists(ctx context.Context, username string, excludeID int64) (bool, error) {
	return db.exists(ctx, `SELECT COUNT(*) FROM users WHERE username = ? AND id <> ?`, username, excludeID)
}

// EmailExists reports whether email is taken, ignoring excludeID.
func (db *DB) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return db.exists(ctx, `SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`, email, excludeID)
}

func (db *DB) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("existence check failed: %w", err)
	}
	return n > 0, nil
}

// InsertUser stores a new user and returns its id. PasswordHash must already
// be hashed.
func (db *DB) InsertUser(ctx context.Context, u *models.User) (int64, error) {
	now := time.Now().UTC()
	var id int64
	err := db.conn.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password, display_name, role, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.DisplayName, u.Role, u.Status, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert user %s: %w", u.Username, err)
	}
	u.ID, u.CreatedAt, u.UpdatedAt = id, now, now
	return id, nil
}

// TouchLastLogin records a successful login.
func (db *DB) TouchLastLogin(ctx context.Context, userID int64, at time.Time) error {
	if _, err := db.conn.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, at.UTC(), userID); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdatePasswordHash replaces a user's password hash.
func (db *DB) UpdatePasswordHash(ctx context.Context, userID int64, hash string) error {
	if _, err := db.conn.ExecContext(ctx, `UPDATE users SET password = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// CountUsersByRole counts users with role. An empty role counts everyone.
func (db *DB) CountUsersByRole(ctx context.Context, role string) (int64, error) {
	q, args := `SELECT COUNT(*) FROM users`, []any{}
	if role != "" {
		q += ` WHERE role = ?`
		args = append(args, role)
	}
	var n int64
	if err := db.conn.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// UserMeta returns a single meta value.
func (db *DB) UserMeta(ctx context.Context, userID int64, key string) (string, bool, error) {
	var v sql.NullString
	err := db.conn.QueryRowContext(ctx,
		`SELECT meta_value FROM user_meta WHERE user_id = ? AND meta_key = ?`, userID, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read user meta %s: %w", key, err)
	}
	return v.String, true, nil
}

// AllUserMeta returns every meta value for a user.
func (db *DB) AllUserMeta(ctx context.Context, userID int64) (map[string]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT meta_key, meta_value FROM user_meta WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read user meta: %w", err)
	}
	defer CloseRows(rows)
	out := make(map[string]string)
	for rows.Next() {
		var k string
		var v sql.NullString
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan user meta: %w", err)
		}
		out[k] = v.String
	}
	return out, rows.Err()
}

// SetUserMeta upserts a meta value.
func (db *DB) SetUserMeta(ctx context.Context, userID int64, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO user_meta (user_id, meta_key, meta_value) VALUES (?, ?, ?)
		ON CONFLICT (user_id, meta_key) DO UPDATE SET meta_value = excluded.meta_value`,
		userID, key, value)
	if err != nil {
		return fmt.Errorf("failed to write user meta %s: %w", key, err)
	}
	return nil
}

// DeleteUserMeta removes one meta key, or every key when key is "".
func (db *DB) DeleteUserMeta(ctx context.Context, userID int64, key string) error {
	q, args := `DELETE FROM user_meta WHERE user_id = ?`, []any{userID}
	if key != "" {
		q += ` AND meta_key = ?`
		args = append(args, key)
	}
	if _, err := db.conn.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to delete user meta: %w", err)
	}
	return nil
}
