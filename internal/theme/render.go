// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
)

// SiteInfo is the site identity exposed to templates.
type SiteInfo struct {
	Title       string
	Description string
	URL         string
	ThemeURL    string
	Language    string
}

// PageSubject is implemented by handler data that describes a content
// page, so page views are recorded against it.
type PageSubject interface {
	ViewedPage() (id *int64, slug, title string)
}

// View is the data passed to every theme template. Handler data is
// available as .Data.
type View struct {
	Site     SiteInfo
	Theme    string
	Template string
	Path     string
	User     *models.User
	Flashes  []auth.Flash
	Head     template.HTML
	Data     any

	ctx     context.Context
	m       *Manager
	session *auth.Session
}

// LoggedIn reports whether a user is signed in.
func (v *View) LoggedIn() bool { return v.User != nil }

// IsAdmin reports whether the current user is an administrator.
func (v *View) IsAdmin() bool { return v.User != nil && v.User.IsAdmin() }

// CSRF returns a hidden form field carrying a token for action.
func (v *View) CSRF(action string) template.HTML {
	if v.session == nil || v.m.csrf == nil {
		return ""
	}
	field, err := v.m.csrf.NonceField(v.session, action)
	if err != nil {
		logging.Ctx(v.ctx).Error().Err(err).Str("action", action).Msg("Failed to generate CSRF token")
		return ""
	}
	return field
}

// Menu returns the items stored for a menu location.
func (v *View) Menu(location string) []MenuItem {
	return v.m.Menu(v.ctx, location)
}

// Setting returns a customizer value of the active theme.
func (v *View) Setting(category, key string) string {
	return v.m.customizer.Get(v.ctx, category, key, "")
}

// Option returns a site option.
func (v *View) Option(name string) string {
	return v.m.db.GetOption(v.ctx, name, "")
}

var funcs = template.FuncMap{
	"date":      formatDate,
	"ago":       ago,
	"bytes":     func(n int64) string { return humanize.Bytes(uint64(max(n, 0))) },
	"comma":     func(n int64) string { return humanize.Comma(n) },
	"add":       func(a, b int) int { return a + b },
	"truncate":  truncate,
	"stripTags": security.StripTags,
	"lower":     strings.ToLower,
	"join":      strings.Join,
}

func formatDate(t any, layout string) string {
	switch v := t.(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(layout)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(layout)
	}
	return ""
}

func ago(t any) string {
	switch v := t.(type) {
	case time.Time:
		return humanize.Time(v)
	case *time.Time:
		if v != nil {
			return humanize.Time(*v)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}

// parseTemplates parses every .html file under dir. A file's template name
// is its slash-separated path relative to dir without the extension, so
// partials/card.html is "partials/card".
func parseTemplates(dir string) (*template.Template, error) {
	root := template.New("").Funcs(funcs)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".html" {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.ToSlash(rel), ".html")
		src, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if _, err := root.New(name).Parse(string(src)); err != nil {
			return fmt.Errorf("template %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return root, nil
}

// Render writes template name with status 200.
func (m *Manager) Render(w http.ResponseWriter, r *http.Request, name string, data any) {
	m.RenderStatus(w, r, http.StatusOK, name, data)
}

// RenderStatus renders name wrapped in the theme's header and footer. The
// template_name filter may substitute the name; index is used when the
// template does not exist.
func (m *Manager) RenderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	ctx := r.Context()
	if m.hooks != nil {
		name = m.hooks.ApplyFiltersString(ctx, hooks.TemplateName, name, data)
	}

	set := m.templateSet()
	tmpl := name
	if set == nil || set.Lookup(tmpl) == nil {
		tmpl = "index"
	}
	if set == nil || set.Lookup(tmpl) == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte("Template not found"))
		return
	}

	view := m.newView(r, name, data)
	m.doAction(ctx, hooks.BeforeRender, name, data)

	var buf bytes.Buffer
	err := m.executeWrapped(ctx, set, &buf, "header", hooks.BeforeHeader, hooks.AfterHeader, view)
	if err == nil {
		err = set.ExecuteTemplate(&buf, tmpl, view)
	}
	if err == nil {
		err = m.executeWrapped(ctx, set, &buf, "footer", hooks.BeforeFooter, hooks.AfterFooter, view)
	}
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("template", tmpl).Msg("Template execution failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("Client went away during render")
	}

	m.trackView(r, name, data)
	m.doAction(ctx, hooks.AfterRender, name, data)
}

func (m *Manager) executeWrapped(ctx context.Context, set *template.Template, buf *bytes.Buffer, part, before, after string, view *View) error {
	if set.Lookup(part) == nil {
		return nil
	}
	m.doAction(ctx, before, buf)
	if err := set.ExecuteTemplate(buf, part, view); err != nil {
		return err
	}
	m.doAction(ctx, after, buf)
	return nil
}

func (m *Manager) doAction(ctx context.Context, tag string, args ...any) {
	if m.hooks != nil {
		m.hooks.DoAction(ctx, tag, args...)
	}
}

func (m *Manager) newView(r *http.Request, name string, data any) *View {
	ctx := r.Context()
	v := &View{
		Site:     m.Site(ctx),
		Theme:    m.ActiveTheme(),
		Template: name,
		Path:     r.URL.Path,
		User:     auth.UserFromContext(ctx),
		Data:     data,
		ctx:      ctx,
		m:        m,
		session:  auth.SessionFromContext(ctx),
	}
	if v.session != nil {
		v.Flashes = v.session.PopFlashes()
	}
	v.Head = m.Head(ctx)
	return v
}

// Site returns the site identity from options and config.
func (m *Manager) Site(ctx context.Context) SiteInfo {
	return SiteInfo{
		Title:       m.db.GetOption(ctx, "site_title", m.cfg.SiteName),
		Description: m.db.GetOption(ctx, "site_description", ""),
		URL:         m.cfg.SiteURL,
		ThemeURL:    m.ThemeURL(),
		Language:    m.cfg.Language,
	}
}

// Head returns the markup for the document head: the custom style block
// passed through the head filter.
func (m *Manager) Head(ctx context.Context) template.HTML {
	head := "<style>\n" + m.CustomStyles(ctx) + "</style>\n"
	if m.hooks != nil {
		head = m.hooks.ApplyFiltersString(ctx, hooks.Head, head)
	}
	return template.HTML(head) //nolint:gosec // built from escaped settings and trusted filters
}

func (m *Manager) trackView(r *http.Request, name string, data any) {
	m.mu.RLock()
	tracker := m.tracker
	m.mu.RUnlock()
	if tracker == nil {
		return
	}
	ctx := r.Context()
	pv := models.PageView{
		PageSlug:  name,
		PageTitle: name,
		IPAddress: security.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referrer:  r.Referer(),
		VisitedAt: time.Now().UTC(),
	}
	switch d := data.(type) {
	case PageSubject:
		pv.PageID, pv.PageSlug, pv.PageTitle = d.ViewedPage()
	case *models.Page:
		id := d.ID
		pv.PageID, pv.PageSlug, pv.PageTitle = &id, d.Slug, d.Title
	case *models.Post:
		pv.PageSlug, pv.PageTitle = "blog/"+d.Slug, d.Title
	}
	if u := auth.UserFromContext(ctx); u != nil {
		id := u.ID
		pv.UserID = &id
	}
	if s := auth.SessionFromContext(ctx); s != nil {
		pv.SessionID = s.ID
	}
	if err := tracker.TrackPageView(ctx, pv); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("page", pv.PageSlug).Msg("Failed to track page view")
	}
}
