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
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// loadOptions fills the in-memory options cache. Caller holds optionsMu.
func (db *DB) loadOptions(ctx context.Context) error {
	rows, err := db.conn.QueryContext(ctx, `SELECT option_name, option_value FROM settings`)
	if err != nil {
		return fmt.Errorf("failed to load options: %w", err)
	}
	defer CloseRows(rows)

	opts := make(map[string]string)
	for rows.Next() {
		var name string
		var value sql.NullString
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("failed to scan option: %w", err)
		}
		opts[name] = value.String
	}
	if err := rows.Err(); err != nil {
		return err
	}
	db.options = opts
	return nil
}

// Option returns the value of a settings row and whether it exists.
func (db *DB) Option(ctx context.Context, name string) (string, bool, error) {
	db.optionsMu.RLock()
	if db.options != nil {
		v, ok := db.options[name]
		db.optionsMu.RUnlock()
		return v, ok, nil
	}
	db.optionsMu.RUnlock()

	db.optionsMu.Lock()
	defer db.optionsMu.Unlock()
	if db.options == nil {
		if err := db.loadOptions(ctx); err != nil {
			return "", false, err
		}
	}
	v, ok := db.options[name]
	return v, ok, nil
}

// GetOption returns the option value or def when it is missing or unreadable.
func (db *DB) GetOption(ctx context.Context, name, def string) string {
	v, ok, err := db.Option(ctx, name)
	if err != nil || !ok {
		return def
	}
	return v
}

// GetOptionBool interprets "1", "true", "yes" and "on" as true.
func (db *DB) GetOptionBool(ctx context.Context, name string, def bool) bool {
	v, ok, err := db.Option(ctx, name)
	if err != nil || !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off", "":
		return false
	}
	return def
}

// GetOptionInt returns the option parsed as an integer, or def.
func (db *DB) GetOptionInt(ctx context.Context, name string, def int) int {
	v, ok, err := db.Option(ctx, name)
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

// GetOptionJSON decodes a JSON option into v. It reports false when the
// option is missing or empty.
func (db *DB) GetOptionJSON(ctx context.Context, name string, v any) (bool, error) {
	raw, ok, err := db.Option(ctx, name)
	if err != nil {
		return false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("option %s is not valid JSON: %w", name, err)
	}
	return true, nil
}

// UpdateOption inserts or replaces an option.
func (db *DB) UpdateOption(ctx context.Context, name, value string) error {
	if name == "" {
		return errors.New("option name is required")
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO settings (option_name, option_value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (option_name) DO UPDATE SET option_value = excluded.option_value, updated_at = excluded.updated_at`,
		name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update option %s: %w", name, err)
	}

	db.optionsMu.Lock()
	if db.options != nil {
		db.options[name] = value
	}
	db.optionsMu.Unlock()
	return nil
}

// UpdateOptionJSON stores v encoded as JSON.
func (db *DB) UpdateOptionJSON(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode option %s: %w", name, err)
	}
	return db.UpdateOption(ctx, name, string(raw))
}

// DeleteOption removes an option. Missing options are not an error.
func (db *DB) DeleteOption(ctx context.Context, name string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM settings WHERE option_name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete option %s: %w", name, err)
	}
	db.optionsMu.Lock()
	if db.options != nil {
		delete(db.options, name)
	}
	db.optionsMu.Unlock()
	return nil
}

// OptionsWithPrefix returns all options whose name starts with prefix.
func (db *DB) OptionsWithPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	if _, _, err := db.Option(ctx, ""); err != nil {
		return nil, err
	}
	db.optionsMu.RLock()
	defer db.optionsMu.RUnlock()
	out := make(map[string]string)
	for k, v := range db.options {
		if strings.HasPrefix(k, prefix) {
			out[k] = v
		}
	}
	return out, nil
}

// InvalidateOptions drops the options cache so the next read reloads it.
func (db *DB) InvalidateOptions() {
	db.optionsMu.Lock()
	db.options = nil
	db.optionsMu.Unlock()
}
