// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package router

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/landing"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
)

// HomeData is the template data of the home page.
type HomeData struct {
	Landing *landing.Page
	Posts   []*models.Post
}

// SearchData is the template data of the search results page.
type SearchData struct {
	Query   string
	Results []*models.Page
}

// BlogData is the template data of the blog listing.
type BlogData struct {
	Posts      []*models.Post
	Page       int
	TotalPages int
	Total      int64
}

// HasPrev reports whether a previous page exists.
func (d *BlogData) HasPrev() bool { return d.Page > 1 }

// HasNext reports whether a next page exists.
func (d *BlogData) HasNext() bool { return d.Page < d.TotalPages }

// PostData is the template data of a single post.
type PostData struct {
	Post    *models.Post
	Content template.HTML
	Tags    []string
}

// ViewedPage identifies the post for page view tracking.
func (d *PostData) ViewedPage() (*int64, string, string) {
	return nil, "blog/" + d.Post.Slug, d.Post.Title
}

func (h *site) home(w http.ResponseWriter, r *http.Request, _ Params) {
	ctx := r.Context()
	data := &HomeData{}
	if h.Landing != nil {
		lp, err := h.Landing.Page(ctx)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load landing page")
		}
		data.Landing = lp
	}
	posts, _, err := h.Content.PublishedPosts(ctx, 1, 3)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to load recent posts")
	}
	data.Posts = posts
	h.render(w, r, http.StatusOK, "home", data)
}

func (h *site) search(w http.ResponseWriter, r *http.Request, _ Params) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	data := &SearchData{Query: q}
	if q != "" {
		res, err := h.Content.Search(r.Context(), q)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("query", q).Msg("Search failed")
		}
		data.Results = res
	}
	h.render(w, r, http.StatusOK, "search", data)
}

func (h *site) blog(w http.ResponseWriter, r *http.Request, _ Params) {
	page := queryInt(r, "p", 1)
	posts, total, err := h.Content.PublishedPosts(r.Context(), page, PostsPerPage)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to list posts")
		http.Error(w, "blog unavailable", http.StatusInternalServerError)
		return
	}
	pages := int((total + PostsPerPage - 1) / PostsPerPage)
	if pages < 1 {
		pages = 1
	}
	h.render(w, r, http.StatusOK, "blog", &BlogData{Posts: posts, Page: page, TotalPages: pages, Total: total})
}

func (h *site) blogPost(w http.ResponseWriter, r *http.Request, p Params) {
	ctx := r.Context()
	post, err := h.Content.PostBySlug(ctx, p.Get("slug"))
	if err != nil {
		if !errors.Is(err, content.ErrPostNotFound) {
			logging.Ctx(ctx).Error().Err(err).Str("slug", p.Get("slug")).Msg("Post lookup failed")
		}
		h.rt.NotFound(w, r)
		return
	}
	if err := h.Content.IncrementViews(ctx, post.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("post_id", post.ID).Msg("Failed to count post view")
	}
	post.Views++
	h.render(w, r, http.StatusOK, "blog-single", &PostData{
		Post:    post,
		Content: h.Content.RenderPost(ctx, post),
		Tags:    content.Tags(post),
	})
}

func (h *site) sitemap(w http.ResponseWriter, r *http.Request, _ Params) {
	body, err := h.SEO.Sitemap(r.Context())
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to build sitemap")
		http.Error(w, "sitemap unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(body)
}

func (h *site) robots(w http.ResponseWriter, r *http.Request, _ Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.SEO.RobotsTxt(r.Context())))
}
