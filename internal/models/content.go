// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package models

import "time"

// Content statuses shared by pages and posts.
const (
	ContentDraft     = "draft"
	ContentPublished = "published"
	ContentPrivate   = "private"
	ContentTrash     = "trash"
)

// Content formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// ContentStatuses lists every content status.
var ContentStatuses = []string{ContentDraft, ContentPublished, ContentPrivate, ContentTrash}

// ValidContentStatus reports whether status is a known content status.
func ValidContentStatus(status string) bool {
	for _, s := range ContentStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Page is a row of the pages table.
type Page struct {
	ID          int64      `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt,omitempty"`
	Format      string     `json:"format"` // html or markdown
	Status      string     `json:"status"`
	HideTitle   bool       `json:"hide_title"`
	AuthorID    int64      `json:"author_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// PageRevision is a stored previous version of a page.
type PageRevision struct {
	ID        int64     `json:"id"`
	PageID    int64     `json:"page_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Excerpt   string    `json:"excerpt,omitempty"`
	AuthorID  int64     `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is a row of the posts table joined with its category name.
type Post struct {
	ID              int64      `json:"id"`
	Title           string     `json:"title"`
	Slug            string     `json:"slug"`
	Content         string     `json:"content"`
	Excerpt         string     `json:"excerpt,omitempty"`
	Format          string     `json:"format"`
	FeaturedImage   string     `json:"featured_image,omitempty"`
	Status          string     `json:"status"`
	AuthorID        int64      `json:"author_id"`
	CategoryID      *int64     `json:"category_id,omitempty"`
	CategoryName    string     `json:"category_name,omitempty"`
	Tags            string     `json:"tags,omitempty"`
	Views           int64      `json:"views"`
	AllowComments   bool       `json:"allow_comments"`
	MetaTitle       string     `json:"meta_title,omitempty"`
	MetaDescription string     `json:"meta_description,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// Category is a blog category.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	ParentID    *int64 `json:"parent_id,omitempty"`
	SortOrder   int    `json:"sort_order"`
}
