// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/models"
)

const groupColumns = `g.id, g.name, g.slug, COALESCE(g.description, ''), g.plan_id, g.is_active, g.created_at,
	(SELECT COUNT(*) FROM user_group_members m WHERE m.group_id = g.id)`

func scanGroup(s database.RowScanner) (*models.Group, error) {
	var (
		g      models.Group
		planID sql.NullInt64
	)
	if err := s.Scan(&g.ID, &g.Name, &g.Slug, &g.Description, &planID, &g.IsActive, &g.CreatedAt, &g.MemberCount); err != nil {
		return nil, err
	}
	if planID.Valid {
		g.PlanID = &planID.Int64
	}
	return &g, nil
}

// Groups lists every group with its member count, by name.
func (m *Manager) Groups(ctx context.Context) ([]*models.Group, error) {
	rows, err := m.db.Conn().QueryContext(ctx, `SELECT `+groupColumns+` FROM user_groups g ORDER BY g.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer database.CloseRows(rows)

	var out []*models.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Group loads one group.
func (m *Manager) Group(ctx context.Context, id int64) (*models.Group, error) {
	g, err := scanGroup(m.db.Conn().QueryRowContext(ctx,
		`SELECT `+groupColumns+` FROM user_groups g WHERE g.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group %d: %w", id, err)
	}
	return g, nil
}

// CreateGroup stores g and returns its id. An empty slug is derived from
// the name.
func (m *Manager) CreateGroup(ctx context.Context, g *models.Group) (int64, error) {
	if strings.TrimSpace(g.Name) == "" {
		return 0, errors.New("group name is required")
	}
	if g.Slug == "" {
		g.Slug = content.Slugify(g.Name)
	}
	now := time.Now().UTC()
	var id int64
	err := m.db.Conn().QueryRowContext(ctx, `
		INSERT INTO user_groups (name, slug, description, plan_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		g.Name, g.Slug, g.Description, database.NullInt64(g.PlanID), g.IsActive, now, now).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create group %s: %w", g.Slug, err)
	}
	g.ID, g.CreatedAt = id, now
	return id, nil
}

// UpdateGroup changes name, description, plan and active flag of g.ID.
func (m *Manager) UpdateGroup(ctx context.Context, g *models.Group) error {
	res, err := m.db.Conn().ExecContext(ctx, `
		UPDATE user_groups SET name = ?, description = ?, plan_id = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		g.Name, g.Description, database.NullInt64(g.PlanID), g.IsActive, time.Now().UTC(), g.ID)
	if err != nil {
		return fmt.Errorf("failed to update group %d: %w", g.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGroupNotFound
	}
	m.invalidateGroup(ctx, g.ID)
	return nil
}

// DeleteGroup removes a group and its memberships.
func (m *Manager) DeleteGroup(ctx context.Context, id int64) error {
	members, err := m.GroupMembers(ctx, id)
	if err != nil {
		return err
	}
	tx, err := m.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_group_members WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete members of group %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM user_groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGroupNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}
	for _, uid := range members {
		m.Invalidate(uid)
	}
	return nil
}

// AddGroupMember puts userID into groupID. Adding an existing member is a
// no-op.
func (m *Manager) AddGroupMember(ctx context.Context, groupID, userID int64) error {
	if _, err := m.Group(ctx, groupID); err != nil {
		return err
	}
	_, err := m.db.Conn().ExecContext(ctx, `
		INSERT INTO user_group_members (user_id, group_id, joined_at) VALUES (?, ?, ?)
		ON CONFLICT (user_id, group_id) DO NOTHING`, userID, groupID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add user %d to group %d: %w", userID, groupID, err)
	}
	m.Invalidate(userID)
	return nil
}

// RemoveGroupMember takes userID out of groupID.
func (m *Manager) RemoveGroupMember(ctx context.Context, groupID, userID int64) error {
	if _, err := m.db.Conn().ExecContext(ctx,
		`DELETE FROM user_group_members WHERE group_id = ? AND user_id = ?`, groupID, userID); err != nil {
		return fmt.Errorf("failed to remove user %d from group %d: %w", userID, groupID, err)
	}
	m.Invalidate(userID)
	return nil
}

// GroupMembers returns the user ids of groupID.
func (m *Manager) GroupMembers(ctx context.Context, groupID int64) ([]int64, error) {
	return m.ids(ctx, `SELECT user_id FROM user_group_members WHERE group_id = ? ORDER BY joined_at, user_id`, groupID)
}

// UserGroups returns the group ids userID belongs to.
func (m *Manager) UserGroups(ctx context.Context, userID int64) ([]int64, error) {
	return m.ids(ctx, `SELECT group_id FROM user_group_members WHERE user_id = ? ORDER BY group_id`, userID)
}

func (m *Manager) ids(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := m.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer database.CloseRows(rows)
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (m *Manager) invalidateGroup(ctx context.Context, groupID int64) {
	members, err := m.GroupMembers(ctx, groupID)
	if err != nil {
		m.InvalidateAll()
		return
	}
	for _, uid := range members {
		m.Invalidate(uid)
	}
}
