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
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// SearchLimit caps the results of Search.
const SearchLimit = 20

const pageColumns = `id, slug, title, COALESCE(content, ''), COALESCE(excerpt, ''), format,
	COALESCE(status, 'draft'), hide_title, COALESCE(author_id, 0), created_at, updated_at, published_at`

// PageInput holds the fields of a new page.
type PageInput struct {
	Title     string
	Content   string
	Excerpt   string
	Format    string
	Status    string
	AuthorID  int64
	HideTitle bool
}

// PageUpdate changes the non-nil fields of a page. EditorID is recorded
// as the author of the revision.
type PageUpdate struct {
	Title     *string
	Content   *string
	Excerpt   *string
	Format    *string
	Status    *string
	Slug      *string
	HideTitle *bool
	EditorID  int64
}

func scanPage(s database.RowScanner) (*models.Page, error) {
	var (
		p         models.Page
		updated   sql.NullTime
		published sql.NullTime
	)
	if err := s.Scan(&p.ID, &p.Slug, &p.Title, &p.Content, &p.Excerpt, &p.Format,
		&p.Status, &p.HideTitle, &p.AuthorID, &p.CreatedAt, &updated, &published); err != nil {
		return nil, err
	}
	p.UpdatedAt = updated.Time
	if published.Valid {
		t := published.Time
		p.PublishedAt = &t
	}
	return &p, nil
}

func (m *Manager) pageWhere(ctx context.Context, where string, args ...any) (*models.Page, error) {
	p, err := scanPage(m.db.Conn().QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE `+where+` LIMIT 1`, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}
	return p, nil
}

func (m *Manager) queryPages(ctx context.Context, query string, args ...any) ([]*models.Page, error) {
	rows, err := m.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer database.CloseRows(rows)
	var out []*models.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Page loads a page by id.
func (m *Manager) Page(ctx context.Context, id int64) (*models.Page, error) {
	return m.pageWhere(ctx, `id = ?`, id)
}

// PageBySlug loads a page by slug regardless of status.
func (m *Manager) PageBySlug(ctx context.Context, slug string) (*models.Page, error) {
	return m.pageWhere(ctx, `slug = ?`, slug)
}

// PublishedPageBySlug loads a published page by slug.
func (m *Manager) PublishedPageBySlug(ctx context.Context, slug string) (*models.Page, error) {
	return m.pageWhere(ctx, `slug = ? AND status = 'published'`, slug)
}

// ListPages returns all pages, newest first. A non-empty status filters.
func (m *Manager) ListPages(ctx context.Context, status string) ([]*models.Page, error) {
	q, args := `SELECT `+pageColumns+` FROM pages`, []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	return m.queryPages(ctx, q+` ORDER BY created_at DESC, id DESC`, args...)
}

// PublishedPages returns published pages, newest first.
func (m *Manager) PublishedPages(ctx context.Context) ([]*models.Page, error) {
	return m.ListPages(ctx, models.ContentPublished)
}

// Search returns up to SearchLimit published pages whose title or body
// contains q, ignoring case.
func (m *Manager) Search(ctx context.Context, q string) ([]*models.Page, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	return m.queryPages(ctx, `SELECT `+pageColumns+` FROM pages
		WHERE status = 'published' AND (contains(lower(title), lower(?)) OR contains(lower(COALESCE(content, '')), lower(?)))
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, q, q, SearchLimit)
}

// CountPages counts pages, optionally of one status.
func (m *Manager) CountPages(ctx context.Context, status string) (int64, error) {
	q, args := `SELECT COUNT(*) FROM pages`, []any{}
	if status != "" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	var n int64
	if err := m.db.Conn().QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

// CreatePage stores a new page with a unique slug derived from its title.
func (m *Manager) CreatePage(ctx context.Context, in PageInput) (*models.Page, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	status, err := validateStatus(in.Status)
	if err != nil {
		return nil, err
	}
	format, err := validateFormat(in.Format)
	if err != nil {
		return nil, err
	}
	slug, err := uniqueSlug(ctx, m.db, "pages", Slugify(title), 0)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	p := &models.Page{
		Slug: slug, Title: title, Content: in.Content, Excerpt: in.Excerpt, Format: format,
		Status: status, HideTitle: in.HideTitle, AuthorID: in.AuthorID, CreatedAt: now, UpdatedAt: now,
	}
	var published sql.NullTime
	if status == models.ContentPublished {
		published = sql.NullTime{Time: now, Valid: true}
		p.PublishedAt = &now
	}
	err = m.db.Conn().QueryRowContext(ctx, `
		INSERT INTO pages (slug, title, content, excerpt, format, status, hide_title, author_id, created_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		p.Slug, p.Title, p.Content, p.Excerpt, p.Format, p.Status, p.HideTitle, p.AuthorID, now, now, published).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create page %s: %w", slug, err)
	}

	m.logActivity(ctx, in.AuthorID, "page_created", "page", p.ID, "Page "+p.Title+" created")
	m.doAction(ctx, hooks.PageSaved, p.ID)
	logging.Ctx(ctx).Debug().Int64("page_id", p.ID).Str("slug", p.Slug).Msg("Page created")
	return p, nil
}

// UpdatePage applies u to page id. The previous title, body and excerpt
// are kept as a revision. published_at is set the first time the page is
// published.
func (m *Manager) UpdatePage(ctx context.Context, id int64, u PageUpdate) (*models.Page, error) {
	old, err := m.Page(ctx, id)
	if err != nil {
		return nil, err
	}
	p := *old
	if u.Title != nil {
		if p.Title = strings.TrimSpace(*u.Title); p.Title == "" {
			return nil, ErrTitleRequired
		}
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Excerpt != nil {
		p.Excerpt = *u.Excerpt
	}
	if u.Format != nil {
		if p.Format, err = validateFormat(*u.Format); err != nil {
			return nil, err
		}
	}
	if u.Status != nil {
		if p.Status, err = validateStatus(*u.Status); err != nil {
			return nil, err
		}
	}
	if u.HideTitle != nil {
		p.HideTitle = *u.HideTitle
	}
	if u.Slug != nil {
		base := Slugify(*u.Slug)
		if base == "" {
			base = Slugify(p.Title)
		}
		if p.Slug, err = uniqueSlug(ctx, m.db, "pages", base, id); err != nil {
			return nil, err
		}
	}

	now := m.now().UTC()
	p.UpdatedAt = now
	if p.Status == models.ContentPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
	var published sql.NullTime
	if p.PublishedAt != nil {
		published = sql.NullTime{Time: p.PublishedAt.UTC(), Valid: true}
	}

	tx, err := m.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO page_revisions (page_id, title, content, excerpt, author_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		old.ID, old.Title, old.Content, old.Excerpt, u.EditorID, now); err != nil {
		return nil, fmt.Errorf("failed to store revision of page %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE pages SET slug = ?, title = ?, content = ?, excerpt = ?, format = ?, status = ?,
			hide_title = ?, updated_at = ?, published_at = ?
		WHERE id = ?`,
		p.Slug, p.Title, p.Content, p.Excerpt, p.Format, p.Status, p.HideTitle, now, published, id); err != nil {
		return nil, fmt.Errorf("failed to update page %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit page update: %w", err)
	}

	m.logActivity(ctx, u.EditorID, "page_updated", "page", id, "Page "+p.Title+" updated")
	m.doAction(ctx, hooks.PageSaved, id)
	return &p, nil
}

// DeletePage removes a page and its revisions.
func (m *Manager) DeletePage(ctx context.Context, id int64, actorID int64) error {
	tx, err := m.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_revisions WHERE page_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete revisions of page %d: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete page %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPageNotFound
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page deletion: %w", err)
	}
	m.logActivity(ctx, actorID, "page_deleted", "page", id, fmt.Sprintf("Page %d deleted", id))
	return nil
}

// Revisions lists the stored revisions of pageID, newest first.
func (m *Manager) Revisions(ctx context.Context, pageID int64) ([]models.PageRevision, error) {
	rows, err := m.db.Conn().QueryContext(ctx, `
		SELECT id, page_id, title, COALESCE(content, ''), COALESCE(excerpt, ''), COALESCE(author_id, 0), created_at
		FROM page_revisions WHERE page_id = ?
		ORDER BY created_at DESC, id DESC`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to list revisions: %w", err)
	}
	defer database.CloseRows(rows)
	var out []models.PageRevision
	for rows.Next() {
		var r models.PageRevision
		if err := rows.Scan(&r.ID, &r.PageID, &r.Title, &r.Content, &r.Excerpt, &r.AuthorID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan revision: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RestoreRevision copies a revision back into its page. The current
// version becomes a new revision, so a restore can itself be undone.
func (m *Manager) RestoreRevision(ctx context.Context, revisionID, editorID int64) (*models.Page, error) {
	var r models.PageRevision
	err := m.db.Conn().QueryRowContext(ctx, `
		SELECT page_id, title, COALESCE(content, ''), COALESCE(excerpt, '') FROM page_revisions WHERE id = ?`,
		revisionID).Scan(&r.PageID, &r.Title, &r.Content, &r.Excerpt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRevisionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load revision %d: %w", revisionID, err)
	}
	return m.UpdatePage(ctx, r.PageID, PageUpdate{
		Title:    &r.Title,
		Content:  &r.Content,
		Excerpt:  &r.Excerpt,
		EditorID: editorID,
	})
}

// PruneRevisions keeps the newest keep revisions of each page and deletes
// the rest.
func (m *Manager) PruneRevisions(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := m.db.Conn().ExecContext(ctx, `
		DELETE FROM page_revisions WHERE id IN (
			SELECT id FROM (
				SELECT id, row_number() OVER (PARTITION BY page_id ORDER BY created_at DESC, id DESC) AS rn
				FROM page_revisions
			) WHERE rn > ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune revisions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
