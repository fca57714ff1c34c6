// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/models"
)

// CategoryCount is a category with the number of its published posts.
type CategoryCount struct {
	models.Category
	PostCount int64 `json:"post_count"`
}

const categoryColumns = `c.id, c.name, c.slug, COALESCE(c.description, ''), c.parent_id, COALESCE(c.sort_order, 0)`

func scanCategory(s database.RowScanner, extra ...any) (*models.Category, error) {
	var (
		c      models.Category
		parent sql.NullInt64
	)
	dest := append([]any{&c.ID, &c.Name, &c.Slug, &c.Description, &parent, &c.SortOrder}, extra...)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	if parent.Valid {
		c.ParentID = &parent.Int64
	}
	return &c, nil
}

// Categories lists every category with its published post count, ordered
// by sort order and name.
func (m *Manager) Categories(ctx context.Context) ([]CategoryCount, error) {
	rows, err := m.db.Conn().QueryContext(ctx, `
		SELECT `+categoryColumns+`,
			(SELECT COUNT(*) FROM posts p WHERE p.category_id = c.id AND p.status = 'published')
		FROM post_categories c
		ORDER BY c.sort_order, c.name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer database.CloseRows(rows)
	var out []CategoryCount
	for rows.Next() {
		var n int64
		c, err := scanCategory(rows, &n)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, CategoryCount{Category: *c, PostCount: n})
	}
	return out, rows.Err()
}

func (m *Manager) categoryWhere(ctx context.Context, where string, arg any) (*models.Category, error) {
	c, err := scanCategory(m.db.Conn().QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM post_categories c WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCategoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load category: %w", err)
	}
	return c, nil
}

// Category loads a category by id.
func (m *Manager) Category(ctx context.Context, id int64) (*models.Category, error) {
	return m.categoryWhere(ctx, `c.id = ?`, id)
}

// CategoryBySlug loads a category by slug.
func (m *Manager) CategoryBySlug(ctx context.Context, slug string) (*models.Category, error) {
	return m.categoryWhere(ctx, `c.slug = ?`, slug)
}

// CreateCategory stores c and returns its id.
func (m *Manager) CreateCategory(ctx context.Context, c *models.Category) (int64, error) {
	if c.Name = strings.TrimSpace(c.Name); c.Name == "" {
		return 0, errors.New("category name is required")
	}
	if c.Slug = Slugify(c.Slug); c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	err := m.db.Conn().QueryRowContext(ctx, `
		INSERT INTO post_categories (name, slug, description, parent_id, sort_order, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		c.Name, c.Slug, c.Description, database.NullInt64(c.ParentID), c.SortOrder, time.Now().UTC()).Scan(&c.ID)
	if err != nil {
		if database.IsConstraintViolation(err) {
			return 0, fmt.Errorf("category slug %q already exists", c.Slug)
		}
		return 0, fmt.Errorf("failed to create category: %w", err)
	}
	return c.ID, nil
}

// UpdateCategory changes name, description, parent and sort order of c.ID.
func (m *Manager) UpdateCategory(ctx context.Context, c *models.Category) error {
	if c.Name = strings.TrimSpace(c.Name); c.Name == "" {
		return errors.New("category name is required")
	}
	if c.ParentID != nil && *c.ParentID == c.ID {
		return errors.New("a category cannot be its own parent")
	}
	res, err := m.db.Conn().ExecContext(ctx, `
		UPDATE post_categories SET name = ?, description = ?, parent_id = ?, sort_order = ? WHERE id = ?`,
		c.Name, c.Description, database.NullInt64(c.ParentID), c.SortOrder, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update category %d: %w", c.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// DeleteCategory removes a category. Its posts become uncategorized and
// its children move to the top level.
func (m *Manager) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := m.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE posts SET category_id = NULL WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach posts from category %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE post_categories SET parent_id = NULL WHERE parent_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach children of category %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM post_categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}
	return tx.Commit()
}
