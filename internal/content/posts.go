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

	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/models"
)

// DefaultPostsPerPage is the blog page size.
const DefaultPostsPerPage = 9

const postColumns = `p.id, p.title, p.slug, COALESCE(p.content, ''), COALESCE(p.excerpt, ''), p.format,
	COALESCE(p.featured_image, ''), p.status, p.author_id, p.category_id, COALESCE(c.name, ''),
	COALESCE(p.tags, ''), COALESCE(p.views, 0), p.allow_comments, COALESCE(p.meta_title, ''),
	COALESCE(p.meta_description, ''), p.created_at, p.updated_at, p.published_at`

const postFrom = ` FROM posts p LEFT JOIN post_categories c ON c.id = p.category_id `

// PostQuery filters Posts. Zero values match everything; Page starts at 1.
type PostQuery struct {
	Status     string
	CategoryID int64
	Tag        string
	Search     string
	AuthorID   int64
	Page       int
	PerPage    int
}

func scanPost(s database.RowScanner) (*models.Post, error) {
	var (
		p                  models.Post
		category           sql.NullInt64
		updated, published sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.Format,
		&p.FeaturedImage, &p.Status, &p.AuthorID, &category, &p.CategoryName,
		&p.Tags, &p.Views, &p.AllowComments, &p.MetaTitle,
		&p.MetaDescription, &p.CreatedAt, &updated, &published); err != nil {
		return nil, err
	}
	if category.Valid {
		p.CategoryID = &category.Int64
	}
	p.UpdatedAt = updated.Time
	if published.Valid {
		t := published.Time
		p.PublishedAt = &t
	}
	return &p, nil
}

// NormalizeTags trims, lowercases and deduplicates a comma-separated tag
// list.
func NormalizeTags(tags string) string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range strings.Split(tags, ",") {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return strings.Join(out, ",")
}

// Tags splits the tag list of p.
func Tags(p *models.Post) []string {
	if p.Tags == "" {
		return nil
	}
	return strings.Split(p.Tags, ",")
}

func (m *Manager) postWhere(ctx context.Context, where string, args ...any) (*models.Post, error) {
	p, err := scanPost(m.db.Conn().QueryRowContext(ctx, `SELECT `+postColumns+postFrom+`WHERE `+where+` LIMIT 1`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	return p, nil
}

// Post loads a post by id regardless of status.
func (m *Manager) Post(ctx context.Context, id int64) (*models.Post, error) {
	return m.postWhere(ctx, `p.id = ?`, id)
}

// PostBySlug loads a published post by slug.
func (m *Manager) PostBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return m.postWhere(ctx, `p.slug = ? AND p.status = 'published'`, slug)
}

// Posts returns one page of posts matching q, newest first, together with
// the total number of matches.
func (m *Manager) Posts(ctx context.Context, q PostQuery) ([]*models.Post, int64, error) {
	var (
		conds []string
		args  []any
	)
	if q.Status != "" {
		conds = append(conds, `p.status = ?`)
		args = append(args, q.Status)
	} else {
		conds = append(conds, `p.status <> 'trash'`)
	}
	if q.CategoryID > 0 {
		conds = append(conds, `p.category_id = ?`)
		args = append(args, q.CategoryID)
	}
	if q.AuthorID > 0 {
		conds = append(conds, `p.author_id = ?`)
		args = append(args, q.AuthorID)
	}
	if tag := strings.ToLower(strings.TrimSpace(q.Tag)); tag != "" {
		conds = append(conds, `list_contains(string_split(COALESCE(p.tags, ''), ','), ?)`)
		args = append(args, tag)
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		conds = append(conds, `(contains(lower(p.title), lower(?)) OR contains(lower(COALESCE(p.content, '')), lower(?)))`)
		args = append(args, s, s)
	}
	where := `WHERE ` + strings.Join(conds, ` AND `)

	var total int64
	if err := m.db.Conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM posts p `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPostsPerPage
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	args = append(args, perPage, (page-1)*perPage)
	rows, err := m.db.Conn().QueryContext(ctx, `SELECT `+postColumns+postFrom+where+`
		ORDER BY COALESCE(p.published_at, p.created_at) DESC, p.id DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query posts: %w", err)
	}
	defer database.CloseRows(rows)
	var out []*models.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// PublishedPosts returns one page of published posts and their total.
func (m *Manager) PublishedPosts(ctx context.Context, page, perPage int) ([]*models.Post, int64, error) {
	return m.Posts(ctx, PostQuery{Status: models.ContentPublished, Page: page, PerPage: perPage})
}

// CountPosts counts posts, optionally of one status.
func (m *Manager) CountPosts(ctx context.Context, status string) (int64, error) {
	q, args := `SELECT COUNT(*) FROM posts`, []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	var n int64
	if err := m.db.Conn().QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

func (m *Manager) preparePost(ctx context.Context, p *models.Post) error {
	if p.Title = strings.TrimSpace(p.Title); p.Title == "" {
		return ErrTitleRequired
	}
	if p.AuthorID == 0 {
		return errors.New("post author is required")
	}
	var err error
	if p.Status, err = validateStatus(p.Status); err != nil {
		return err
	}
	if p.Format, err = validateFormat(p.Format); err != nil {
		return err
	}
	base := Slugify(p.Slug)
	if base == "" {
		base = Slugify(p.Title)
	}
	if p.Slug, err = uniqueSlug(ctx, m.db, "posts", base, p.ID); err != nil {
		return err
	}
	p.Tags = NormalizeTags(p.Tags)
	if p.Status == models.ContentPublished && p.PublishedAt == nil {
		now := m.now().UTC()
		p.PublishedAt = &now
	}
	return nil
}

func publishedAt(p *models.Post) sql.NullTime {
	if p.PublishedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.PublishedAt.UTC(), Valid: true}
}

// CreatePost stores p and returns its id. The slug defaults to the title
// and gets a numeric suffix when taken. Publishing fires post_published.
func (m *Manager) CreatePost(ctx context.Context, p *models.Post) (int64, error) {
	p.ID = 0
	if err := m.preparePost(ctx, p); err != nil {
		return 0, err
	}
	now := m.now().UTC()
	err := m.db.Conn().QueryRowContext(ctx, `
		INSERT INTO posts (title, slug, content, excerpt, format, featured_image, status, author_id, category_id,
			tags, views, allow_comments, meta_title, meta_description, created_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.Title, p.Slug, p.Content, p.Excerpt, p.Format, p.FeaturedImage, p.Status, p.AuthorID,
		database.NullInt64(p.CategoryID), p.Tags, p.AllowComments, p.MetaTitle, p.MetaDescription,
		now, now, publishedAt(p)).Scan(&p.ID)
	if err != nil {
		return 0, fmt.Errorf("failed to create post %s: %w", p.Slug, err)
	}
	p.CreatedAt, p.UpdatedAt = now, now

	m.logActivity(ctx, p.AuthorID, "post_created", "post", p.ID, "Post "+p.Title+" created")
	if p.Status == models.ContentPublished {
		m.doAction(ctx, hooks.PostPublished, p.ID)
	}
	return p.ID, nil
}

// UpdatePost replaces the editable fields of post p.ID. The view counter
// and creation time are kept. post_published fires when the post becomes
// published.
func (m *Manager) UpdatePost(ctx context.Context, p *models.Post) error {
	old, err := m.Post(ctx, p.ID)
	if err != nil {
		return err
	}
	if p.PublishedAt == nil {
		p.PublishedAt = old.PublishedAt
	}
	if p.AuthorID == 0 {
		p.AuthorID = old.AuthorID
	}
	if err := m.preparePost(ctx, p); err != nil {
		return err
	}
	now := m.now().UTC()
	_, err = m.db.Conn().ExecContext(ctx, `
		UPDATE posts SET title = ?, slug = ?, content = ?, excerpt = ?, format = ?, featured_image = ?,
			status = ?, author_id = ?, category_id = ?, tags = ?, allow_comments = ?, meta_title = ?,
			meta_description = ?, updated_at = ?, published_at = ?
		WHERE id = ?`,
		p.Title, p.Slug, p.Content, p.Excerpt, p.Format, p.FeaturedImage,
		p.Status, p.AuthorID, database.NullInt64(p.CategoryID), p.Tags, p.AllowComments, p.MetaTitle,
		p.MetaDescription, now, publishedAt(p), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", p.ID, err)
	}
	p.CreatedAt, p.UpdatedAt, p.Views = old.CreatedAt, now, old.Views

	m.logActivity(ctx, p.AuthorID, "post_updated", "post", p.ID, "Post "+p.Title+" updated")
	if p.Status == models.ContentPublished && old.Status != models.ContentPublished {
		m.doAction(ctx, hooks.PostPublished, p.ID)
	}
	return nil
}

// SetPostStatus changes only the status of a post, for bulk actions.
func (m *Manager) SetPostStatus(ctx context.Context, id int64, status string) error {
	p, err := m.Post(ctx, id)
	if err != nil {
		return err
	}
	p.Status = status
	return m.UpdatePost(ctx, p)
}

// DeletePost removes a post permanently.
func (m *Manager) DeletePost(ctx context.Context, id, actorID int64) error {
	res, err := m.db.Conn().ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPostNotFound
	}
	m.logActivity(ctx, actorID, "post_deleted", "post", id, fmt.Sprintf("Post %d deleted", id))
	return nil
}

// IncrementViews adds one to the view counter of a post.
func (m *Manager) IncrementViews(ctx context.Context, id int64) error {
	if _, err := m.db.Conn().ExecContext(ctx, `UPDATE posts SET views = COALESCE(views, 0) + 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to count view of post %d: %w", id, err)
	}
	return nil
}
