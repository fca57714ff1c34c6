// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package content

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
)

// DefaultRenderCacheSize is the number of rendered bodies kept in memory.
const DefaultRenderCacheSize = 500

const renderCacheTTL = 30 * time.Minute

// Renderer turns stored bodies into safe HTML. Sanitized output is cached
// by format and body hash; the the_content filter runs on every call.
type Renderer struct {
	md    goldmark.Markdown
	hooks *hooks.Registry
	cache *cache.LRU[string]
}

// NewRenderer creates a renderer with a cache of size entries.
func NewRenderer(registry *hooks.Registry, size int) *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Typographer),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
			// Raw HTML passes through goldmark and is cleaned by the sanitizer.
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		hooks: registry,
		cache: cache.NewLRU[string](size, renderCacheTTL),
	}
}

// Render converts body in format to sanitized HTML and applies the_content.
func (r *Renderer) Render(ctx context.Context, body, format string) template.HTML {
	out := r.sanitized(ctx, body, format)
	if r.hooks != nil {
		out = r.hooks.ApplyFiltersString(ctx, hooks.TheContent, out, format)
	}
	return template.HTML(out) //nolint:gosec // sanitized above, filters are trusted plugin code
}

func (r *Renderer) sanitized(ctx context.Context, body, format string) string {
	sum := sha256.Sum256([]byte(body))
	key := format + ":" + hex.EncodeToString(sum[:])
	if v, ok := r.cache.Get(key); ok {
		metrics.RecordCache("content", true)
		return v
	}
	metrics.RecordCache("content", false)

	src := body
	if format == models.FormatMarkdown {
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(body), &buf); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Markdown conversion failed, rendering as text")
			src = template.HTMLEscapeString(body)
		} else {
			src = buf.String()
		}
	}
	out := security.SanitizeHTML(src)
	r.cache.Add(key, out)
	return out
}

// Purge drops every cached body.
func (r *Renderer) Purge() {
	r.cache.Purge()
}

// RenderPage renders the body of p.
func (m *Manager) RenderPage(ctx context.Context, p *models.Page) template.HTML {
	return m.renderer.Render(ctx, p.Content, p.Format)
}

// RenderPost renders the body of p.
func (m *Manager) RenderPost(ctx context.Context, p *models.Post) template.HTML {
	return m.renderer.Render(ctx, p.Content, p.Format)
}
