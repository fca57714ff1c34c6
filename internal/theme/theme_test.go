// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package theme

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

const testManifest = `name: Starter
description: Test theme
version: 1.2.0
author: Inkwell
menu_locations:
  - slug: primary
    label: Main Navigation
customizer:
  colors:
    label: Colors
    settings:
      primary_color:
        type: color
        label: Primary
        default: "#3366ff"
      text_color:
        type: color
        label: Text
  typography:
    label: Typography
    settings:
      font_family_base:
        type: select
        default: system
        choices: [system, inter, roboto]
      font_size_base:
        type: number
        default: 16
  advanced:
    label: Advanced
    settings:
      custom_css:
        type: textarea
`

func writeTheme(t *testing.T, root, slug string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(root, slug, name)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

type recordingTracker struct {
	mu    sync.Mutex
	views []models.PageView
}

func (r *recordingTracker) TrackPageView(_ context.Context, v models.PageView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, v)
	return nil
}

func newTestManager(t *testing.T) (*Manager, *database.DB, *hooks.Registry) {
	t.Helper()
	root := t.TempDir()
	writeTheme(t, root, "starter", map[string]string{
		"theme.yaml":        testManifest,
		"header.html":       `<header>{{.Site.Title}}</header>`,
		"footer.html":       `<footer>{{.Theme}}</footer>`,
		"index.html":        `<main>index:{{.Template}}</main>`,
		"page.html":         `<main>{{with .Data}}{{.Title}}{{end}}{{range .Flashes}}[{{.Type}}:{{.Message}}]{{end}}</main>`,
		"partials/nav.html": `{{range .}}<a href="{{.URL}}">{{.Label}}</a>{{end}}`,
		"css/style.css":     `body{}`,
	})
	writeTheme(t, root, "classic", map[string]string{
		"style.css":  "/*\n Theme Name: Classic\n Version: 0.9\n Author: Someone\n*/",
		"index.html": `classic`,
	})
	db := testinfra.NewDB(t)
	registry := hooks.New()
	m := NewManager(Config{Dir: root, DefaultTheme: "starter", SiteName: "Inkwell", SiteURL: "https://example.com/"},
		db, registry, security.NewCSRF(time.Hour))
	if err := m.LoadTheme(context.Background()); err != nil {
		t.Fatalf("LoadTheme: %v", err)
	}
	return m, db, registry
}

func TestLoadThemeFallsBackToFirstAvailable(t *testing.T) {
	root := t.TempDir()
	writeTheme(t, root, "beta", map[string]string{"theme.yaml": "name: Beta\n", "index.html": "beta"})
	writeTheme(t, root, "alpha", map[string]string{"style.css": "/* Theme Name: Alpha */", "index.html": "alpha"})
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}

	registry := hooks.New()
	var loaded []any
	registry.AddAction(hooks.ThemeLoaded, func(_ context.Context, args ...any) { loaded = append(loaded, args...) }, hooks.DefaultPriority)

	m := NewManager(Config{Dir: root, DefaultTheme: "missing"}, testinfra.NewDB(t), registry, nil)
	if err := m.LoadTheme(context.Background()); err != nil {
		t.Fatalf("LoadTheme: %v", err)
	}
	if got := m.ActiveTheme(); got != "alpha" {
		t.Errorf("ActiveTheme() = %q, want alpha", got)
	}
	if diff := cmp.Diff([]any{"alpha"}, loaded); diff != "" {
		t.Errorf("theme_loaded args mismatch (-want +got):\n%s", diff)
	}
	if got := m.CurrentTheme().Name; got != "Alpha" {
		t.Errorf("CurrentTheme().Name = %q, want Alpha", got)
	}
}

func TestParseStyleHeader(t *testing.T) {
	tests := []struct {
		name string
		css  string
		want Manifest
	}{
		{"single line", "/* Theme Name: Alpha */", Manifest{Name: "Alpha"}},
		{"double star", "/** Theme Name: Gamma **/", Manifest{Name: "Gamma"}},
		{
			"block",
			"/*\n * Theme Name: Nova\n * Description: Dark and quiet\n * Version: 1.2.0\n * Author: Inkwell\n */\nbody{}",
			Manifest{Name: "Nova", Description: "Dark and quiet", Version: "1.2.0", Author: "Inkwell"},
		},
		{
			"bare lines",
			"/*\nTheme Name: Plain\nVersion: 0.1\n*/",
			Manifest{Name: "Plain", Version: "0.1"},
		},
		{"no header", "body { color: red; }", Manifest{Name: "folder"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseStyleHeader([]byte(tt.css), "folder")
			if diff := cmp.Diff(tt.want, *got); diff != "" {
				t.Errorf("parseStyleHeader mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAvailableThemes(t *testing.T) {
	m, _, _ := newTestManager(t)
	themes, err := m.AvailableThemes()
	if err != nil {
		t.Fatalf("AvailableThemes: %v", err)
	}
	if len(themes) != 2 {
		t.Fatalf("got %d themes, want 2", len(themes))
	}
	if themes[0].Folder != "classic" || themes[0].Name != "Classic" || themes[0].Version != "0.9" || themes[0].Active {
		t.Errorf("classic = %+v", themes[0])
	}
	if themes[1].Folder != "starter" || themes[1].Name != "Starter" || !themes[1].Active {
		t.Errorf("starter = %+v", themes[1])
	}
}

func TestRender(t *testing.T) {
	m, db, registry := newTestManager(t)
	tracker := &recordingTracker{}
	m.SetTracker(tracker)
	ctx := context.Background()
	if err := db.UpdateOption(ctx, "site_title", "My Site"); err != nil {
		t.Fatal(err)
	}

	var order []string
	registry.AddAction(hooks.BeforeRender, func(_ context.Context, args ...any) { order = append(order, "before_render") }, hooks.DefaultPriority)
	registry.AddAction(hooks.AfterRender, func(_ context.Context, args ...any) { order = append(order, "after_render") }, hooks.DefaultPriority)
	registry.AddAction(hooks.BeforeHeader, func(_ context.Context, args ...any) {
		_, _ = io.WriteString(args[0].(io.Writer), "<!-- before header -->")
	}, hooks.DefaultPriority)
	registry.AddAction(hooks.AfterFooter, func(_ context.Context, args ...any) {
		_, _ = io.WriteString(args[0].(io.Writer), "<!-- after footer -->")
	}, hooks.DefaultPriority)

	sess := auth.NewSession(time.Hour)
	sess.AddFlash(auth.FlashSuccess, "Saved")
	req := httptest.NewRequest(http.MethodGet, "/about", nil)
	req = req.WithContext(auth.WithSession(req.Context(), sess))
	rec := httptest.NewRecorder()

	page := &models.Page{ID: 7, Slug: "about", Title: "About"}
	m.Render(rec, req, "page", page)

	want := "<!-- before header --><header>My Site</header><main>About[success:Saved]</main><footer>starter</footer><!-- after footer -->"
	if got := rec.Body.String(); got != want {
		t.Errorf("body = %q\nwant   %q", got, want)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if diff := cmp.Diff([]string{"before_render", "after_render"}, order); diff != "" {
		t.Errorf("hook order (-want +got):\n%s", diff)
	}
	if len(sess.PopFlashes()) != 0 {
		t.Error("flashes should be consumed by the render")
	}
	if len(tracker.views) != 1 {
		t.Fatalf("tracked %d views, want 1", len(tracker.views))
	}
	v := tracker.views[0]
	if v.PageID == nil || *v.PageID != 7 || v.PageSlug != "about" || v.PageTitle != "About" || v.SessionID != sess.ID {
		t.Errorf("tracked view = %+v", v)
	}
}

func TestRenderTemplateFallbacks(t *testing.T) {
	m, _, registry := newTestManager(t)

	rec := httptest.NewRecorder()
	m.RenderStatus(rec, httptest.NewRequest(http.MethodGet, "/x", nil), http.StatusNotFound, "404", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<main>index:404</main>") {
		t.Errorf("missing template should fall back to index, got %q", rec.Body.String())
	}

	registry.AddFilter(hooks.TemplateName, func(_ context.Context, v any, _ ...any) any {
		if v == "landing" {
			return "page"
		}
		return v
	}, hooks.DefaultPriority)
	rec = httptest.NewRecorder()
	m.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), "landing", &models.Page{Title: "Filtered"})
	if !strings.Contains(rec.Body.String(), "<main>Filtered</main>") {
		t.Errorf("template_name filter not applied, got %q", rec.Body.String())
	}

	empty := NewManager(Config{Dir: t.TempDir()}, testinfra.NewDB(t), nil, nil)
	rec = httptest.NewRecorder()
	empty.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), "page", nil)
	if rec.Body.String() != "Template not found" {
		t.Errorf("body = %q, want Template not found", rec.Body.String())
	}
}

func TestViewHelpers(t *testing.T) {
	m, _, _ := newTestManager(t)
	sess := auth.NewSession(time.Hour)
	ctx := auth.WithSession(context.Background(), sess)
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)

	v := m.newView(req, "page", nil)
	field := string(v.CSRF("login"))
	if !strings.Contains(field, `type="hidden"`) {
		t.Fatalf("CSRF field = %q", field)
	}
	token, _, ok := sess.CSRFToken("login")
	if !ok || !strings.Contains(field, token) {
		t.Error("CSRF field should carry the session token")
	}
	if v.LoggedIn() || v.IsAdmin() {
		t.Error("anonymous view should not be logged in")
	}
	if got := v.Setting("colors", "primary_color"); got != "#3366ff" {
		t.Errorf("Setting = %q, want manifest default", got)
	}
}

func TestSwitchAndDeleteTheme(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()

	if err := m.SwitchTheme(ctx, "nope"); !errors.Is(err, ErrThemeNotFound) {
		t.Errorf("SwitchTheme(nope) = %v, want ErrThemeNotFound", err)
	}
	if err := m.DeleteTheme(ctx, "starter"); !errors.Is(err, ErrThemeActive) {
		t.Errorf("DeleteTheme(active) = %v, want ErrThemeActive", err)
	}
	if err := m.DeleteTheme(ctx, "../starter"); !errors.Is(err, ErrThemeActive) {
		t.Errorf("traversal should resolve to the active folder, got %v", err)
	}

	if err := m.SwitchTheme(ctx, "classic"); err != nil {
		t.Fatalf("SwitchTheme: %v", err)
	}
	if got := db.GetOption(ctx, ActiveThemeOption, ""); got != "classic" {
		t.Errorf("active_theme option = %q", got)
	}
	if m.Customizer().Theme() != "classic" {
		t.Error("customizer should follow the active theme")
	}

	if err := m.DeleteTheme(ctx, "starter"); err != nil {
		t.Fatalf("DeleteTheme: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "starter")); !os.IsNotExist(err) {
		t.Errorf("starter folder still present: %v", err)
	}
	writeTheme(t, m.Dir(), "leftover", map[string]string{"notes.txt": "x"})
	if err := m.DeleteTheme(ctx, "leftover"); !errors.Is(err, ErrLastTheme) {
		t.Errorf("DeleteTheme with one theme left = %v, want ErrLastTheme", err)
	}
}

func TestMenus(t *testing.T) {
	m, db, registry := newTestManager(t)
	ctx := context.Background()

	if err := db.UpdateOptionJSON(ctx, "site_menu", []MenuItem{{Label: "Legacy", URL: "/"}}); err != nil {
		t.Fatal(err)
	}
	if got := m.Menu(ctx, "primary"); len(got) != 1 || got[0].Label != "Legacy" {
		t.Errorf("primary should fall back to site_menu, got %+v", got)
	}
	if got := m.Menu(ctx, "footer"); got != nil {
		t.Errorf("footer menu = %+v, want nil", got)
	}

	items := []MenuItem{{Label: "Home", URL: "/"}, {Label: "Blog", URL: "/blog", Children: []MenuItem{{Label: "News", URL: "/blog?c=news"}}}}
	if err := m.SaveMenu(ctx, "primary", items); err != nil {
		t.Fatalf("SaveMenu: %v", err)
	}
	if diff := cmp.Diff(items, m.Menu(ctx, "primary")); diff != "" {
		t.Errorf("menu mismatch (-want +got):\n%s", diff)
	}

	registry.AddFilter(hooks.RegisterMenuLocations, func(_ context.Context, v any, _ ...any) any {
		locs := v.([]MenuLocation)
		return append(locs, MenuLocation{Slug: "sidebar", Label: "Sidebar"}, MenuLocation{Slug: "primary", Label: "Dup"})
	}, hooks.DefaultPriority)
	if err := m.SaveCustomMenuLocations(ctx, []MenuLocation{{Slug: "promo-bar", Label: "Promo <b>Bar</b>"}, {Slug: "sidebar"}, {Slug: "!!"}}); err != nil {
		t.Fatalf("SaveCustomMenuLocations: %v", err)
	}

	want := []MenuLocation{
		{Slug: "primary", Label: "Main Navigation"},
		{Slug: "sidebar", Label: "Sidebar"},
		{Slug: "promo_bar", Label: "Promo Bar"},
	}
	if diff := cmp.Diff(want, m.MenuLocations(ctx)); diff != "" {
		t.Errorf("MenuLocations mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomizer(t *testing.T) {
	m, _, _ := newTestManager(t)
	ctx := context.Background()
	c := m.Customizer()

	if got := c.Get(ctx, "typography", "font_size_base", ""); got != "16" {
		t.Errorf("default font size = %q, want 16", got)
	}
	if err := c.Set(ctx, "colors", "unknown", "x", 0); !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("Set(unknown) = %v, want ErrUnknownSetting", err)
	}
	if err := c.Set(ctx, "colors", "primary_color", "#ff0000", 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := c.Set(ctx, "colors", "primary_color", "#00ff00", 42); err != nil {
		t.Fatalf("Set user override: %v", err)
	}
	if got := c.Get(ctx, "colors", "primary_color", ""); got != "#ff0000" {
		t.Errorf("site-wide value = %q", got)
	}
	if got := c.GetForUser(ctx, 42, "colors", "primary_color", ""); got != "#00ff00" {
		t.Errorf("user override = %q", got)
	}
	if got := c.GetForUser(ctx, 7, "colors", "primary_color", ""); got != "#ff0000" {
		t.Errorf("user without override = %q", got)
	}

	err := c.SetMultiple(ctx, map[string]map[string]string{
		"typography": {"font_family_base": "roboto", "bogus": "1"},
		"advanced":   {"custom_css": ".x{color:red}</style><script>"},
	}, 0)
	if !errors.Is(err, ErrUnknownSetting) {
		t.Errorf("SetMultiple should report the unknown key, got %v", err)
	}

	css := c.GenerateCSS(ctx)
	for _, want := range []string{
		"--primary-color: #ff0000;",
		"--font-body: " + FontStack("roboto") + ";",
		"font-family: var(--font-body);",
		".x{color:red}<\\/style><script>",
	} {
		if !strings.Contains(css, want) {
			t.Errorf("GenerateCSS missing %q in:\n%s", want, css)
		}
	}
	if strings.Contains(css, "</style>") {
		t.Error("custom CSS must not close the style element")
	}

	exported, err := c.Export(ctx)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if err := c.ResetAll(ctx, 0); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if got := c.Get(ctx, "colors", "primary_color", ""); got != "#3366ff" {
		t.Errorf("after reset = %q, want default", got)
	}
	if err := c.Import(ctx, exported, 0); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got := c.Get(ctx, "colors", "primary_color", ""); got != "#ff0000" {
		t.Errorf("after import = %q", got)
	}
	if err := c.Import(ctx, []byte(`{"theme":"starter"}`), 0); !errors.Is(err, ErrNoCustomization) {
		t.Errorf("Import(empty) = %v, want ErrNoCustomization", err)
	}

	if err := c.Reset(ctx, "colors", "primary_color", 0); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := c.Get(ctx, "colors", "primary_color", ""); got != "#3366ff" {
		t.Errorf("after Reset = %q", got)
	}
}

func TestCustomStylesEscapes(t *testing.T) {
	m, db, _ := newTestManager(t)
	ctx := context.Background()
	if err := db.UpdateOption(ctx, "color_primary", "red;}</style>"); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateOption(ctx, "font_size", "18"); err != nil {
		t.Fatal(err)
	}
	css := m.CustomStyles(ctx)
	if !strings.Contains(css, "--primary-color: red/style;") {
		t.Errorf("color not escaped:\n%s", css)
	}
	if !strings.Contains(css, "--font-size-base: 18px;") {
		t.Errorf("font size missing:\n%s", css)
	}
	if strings.Contains(string(m.Head(ctx)), "</style><") {
		t.Error("head must not contain injected markup")
	}
}

func TestAssetHandler(t *testing.T) {
	m, _, _ := newTestManager(t)
	h := m.AssetHandler()

	tests := []struct {
		path string
		code int
	}{
		{"/starter/css/style.css", http.StatusOK},
		{"/starter/page.html", http.StatusNotFound},
		{"/starter/theme.yaml", http.StatusNotFound},
		{"/../starter/css/style.css", http.StatusOK},
		{"/starter/missing.css", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.URL.Path = tt.path
		h.ServeHTTP(rec, req)
		if rec.Code != tt.code {
			t.Errorf("GET %s = %d, want %d", tt.path, rec.Code, tt.code)
		}
	}
}

func TestWatcherReloadsTemplates(t *testing.T) {
	m, _, _ := newTestManager(t)
	w := NewWatcher(m, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register its directories.
	time.Sleep(100 * time.Millisecond)
	writeTheme(t, m.Dir(), "starter", map[string]string{"index.html": "<main>changed</main>"})

	select {
	case <-w.Reloaded():
	case <-time.After(5 * time.Second):
		t.Fatal("templates were not reloaded")
	}
	rec := httptest.NewRecorder()
	m.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil), "missing", nil)
	if !strings.Contains(rec.Body.String(), "<main>changed</main>") {
		t.Errorf("body = %q", rec.Body.String())
	}
}
