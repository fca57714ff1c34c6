// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/inkwell/internal/models"
)

// ActivityListener receives every activity written through LogActivity.
type ActivityListener func(models.Activity)

// LogActivity appends a row to activity_log. Metadata is stored as JSON.
func (db *DB) LogActivity(ctx context.Context, a models.Activity) error {
	var meta sql.NullString
	if len(a.Metadata) > 0 {
		raw, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode activity metadata: %w", err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO activity_log (user_id, action, entity_type, entity_id, description, ip_address, user_agent, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		NullInt64(a.UserID), a.Action, nullString(a.EntityType), NullInt64(a.EntityID), nullString(a.Description),
		nullString(a.IPAddress), nullString(a.UserAgent), meta, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to log activity %s: %w", a.Action, err)
	}
	if fn := db.activityListener(); fn != nil {
		fn(a)
	}
	return nil
}

// SetActivityListener registers fn to be called after each logged activity.
// Passing nil removes the listener.
func (db *DB) SetActivityListener(fn ActivityListener) {
	db.listenerMu.Lock()
	db.listener = fn
	db.listenerMu.Unlock()
}

func (db *DB) activityListener() ActivityListener {
	db.listenerMu.RLock()
	defer db.listenerMu.RUnlock()
	return db.listener
}

// RecentActivity returns the newest activity rows joined with usernames.
func (db *DB) RecentActivity(ctx context.Context, limit int) ([]models.Activity, error) {
	return db.queryActivity(ctx, `WHERE 1=1`, limit)
}

// UserActivity returns the newest activity rows for one user.
func (db *DB) UserActivity(ctx context.Context, userID int64, limit int) ([]models.Activity, error) {
	return db.queryActivity(ctx, `WHERE a.user_id = ?`, limit, userID)
}

func (db *DB) queryActivity(ctx context.Context, where string, limit int, args ...any) ([]models.Activity, error) {
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	rows, err := db.conn.QueryContext(ctx, `
		SELECT a.id, a.user_id, COALESCE(u.username, ''), a.action, a.entity_type, a.entity_id,
		       a.description, a.ip_address, a.user_agent, a.metadata, a.created_at
		FROM activity_log a
		LEFT JOIN users u ON u.id = a.user_id
		`+where+`
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer CloseRows(rows)

	var out []models.Activity
	for rows.Next() {
		var (
			a                                 models.Activity
			userID, entityID                  sql.NullInt64
			entityType, desc, ip, ua, rawMeta sql.NullString
		)
		if err := rows.Scan(&a.ID, &userID, &a.Username, &a.Action, &entityType, &entityID,
			&desc, &ip, &ua, &rawMeta, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		if userID.Valid {
			a.UserID = &userID.Int64
		}
		if entityID.Valid {
			a.EntityID = &entityID.Int64
		}
		a.EntityType, a.Description = entityType.String, desc.String
		a.IPAddress, a.UserAgent = ip.String, ua.String
		if rawMeta.Valid && rawMeta.String != "" {
			_ = json.Unmarshal([]byte(rawMeta.String), &a.Metadata)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// NullInt64 maps a nil pointer to NULL.
func NullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

// nullString maps "" to NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
