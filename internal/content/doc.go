// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package content stores the site's pages and blog.
//
// Pages have unique slugs, keep a revision of every previous version and
// are searchable. Posts add categories, tags, view counters and SEO fields.
// Both support HTML and Markdown bodies: Markdown is rendered with
// goldmark, every body is sanitized with bluemonday and then passed through
// the the_content filter before it reaches a template.
//
// All operations go through a Manager:
//
//	m := content.NewManager(db, registry)
//	page, err := m.CreatePage(ctx, content.PageInput{Title: "About", Content: "<p>Hi</p>"})
//	html := m.RenderPage(ctx, page)
package content
