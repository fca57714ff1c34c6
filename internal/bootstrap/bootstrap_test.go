// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package bootstrap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/models"
	"github.com/tomtom215/inkwell/internal/plugin"
	"github.com/tomtom215/inkwell/internal/testinfra"
)

type helloPlugin struct {
	initialized int
}

func (p *helloPlugin) Slug() string { return "hello" }

func (p *helloPlugin) Manifest() plugin.Manifest {
	return plugin.Manifest{Name: "Hello", Version: "1.0.0"}
}

func (p *helloPlugin) Init(_ context.Context, host *plugin.Host) error {
	p.initialized++
	host.OnRegisterRoutes(func(_ context.Context, routes plugin.RouteAdder) {
		routes.HandleFunc(http.MethodGet, "/hello", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "hello from a plugin")
		})
	})
	return nil
}

func testConfig(t *testing.T, themes string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Site.URL = "http://example.test"
	cfg.Paths.Themes = themes
	cfg.Paths.Plugins = filepath.Join(dir, "plugins")
	cfg.Paths.Uploads = filepath.Join(dir, "uploads")
	cfg.Paths.Backups = filepath.Join(dir, "backups")
	cfg.Paths.Cache = filepath.Join(dir, "cache")
	cfg.Paths.Public = filepath.Join(dir, "public")
	cfg.Security.BcryptCost = bcrypt.MinCost
	cfg.Security.AdminPassword = "initial-admin-pw"
	cfg.Security.CookieSecure = false
	return cfg
}

func newApp(t *testing.T, themes string, registry *plugin.Registry, active ...string) *App {
	t.Helper()
	ctx := context.Background()
	db := testinfra.NewDB(t)
	if len(active) > 0 {
		if err := db.UpdateOptionJSON(ctx, plugin.ActivePluginsOption, active); err != nil {
			t.Fatal(err)
		}
	}
	app, err := New(ctx, testConfig(t, themes), Deps{
		DB:           db,
		SessionStore: auth.NewMemorySessionStore(),
		Plugins:      registry,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestNewWiresComponents(t *testing.T) {
	p := &helloPlugin{}
	registry := plugin.NewRegistry()
	registry.Register(p)
	app := newApp(t, filepath.Join("..", "..", "themes"), registry, "hello")
	ctx := context.Background()

	if app.DB() == nil || app.Auth() == nil || app.Security() == nil || app.Router() == nil ||
		app.Plugins() == nil || app.Themes() == nil || app.Subscriptions() == nil {
		t.Fatal("accessor returned nil")
	}
	if p.initialized != 1 || !app.Plugins().Loaded("hello") {
		t.Errorf("plugin initialized %d times", p.initialized)
	}
	if got := app.Hooks().DidAction(hooks.CMSInit); got != 1 {
		t.Errorf("cms_init fired %d times", got)
	}
	if got := app.Hooks().DidAction(hooks.PluginsLoaded); got != 1 {
		t.Errorf("plugins_loaded fired %d times", got)
	}
	if got := app.Themes().ActiveTheme(); got != "default" {
		t.Errorf("active theme = %q", got)
	}

	admin, err := app.DB().UserByUsername(ctx, auth.DefaultAdminUsername)
	if err != nil || admin.Role != models.RoleAdmin {
		t.Fatalf("default admin = %+v, %v", admin, err)
	}
	plans, err := app.Subscriptions().AllPlans(ctx)
	if err != nil || len(plans) != 6 {
		t.Errorf("seeded plans = %d, %v", len(plans), err)
	}
	svc := app.Services()
	if svc.Backups == nil || svc.Users == nil || svc.SEO == nil || svc.Media == nil {
		t.Errorf("services not wired: %+v", svc)
	}
	if svc.Updates != nil {
		t.Error("update service built while updates are disabled")
	}
}

func TestRegisterRoutesFiresOnce(t *testing.T) {
	registry := plugin.NewRegistry()
	registry.Register(&helloPlugin{})
	app := newApp(t, filepath.Join("..", "..", "themes"), registry, "hello")

	if got := app.Hooks().DidAction(hooks.RegisterRoutes); got != 0 {
		t.Fatalf("register_routes fired %d times before Handler", got)
	}
	h := app.Handler()
	_ = app.Handler()
	if got := app.Hooks().DidAction(hooks.RegisterRoutes); got != 1 {
		t.Fatalf("register_routes fired %d times", got)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "hello from a plugin" {
		t.Fatalf("plugin route: %d %q", rec.Code, rec.Body.String())
	}
	if app.Hooks().DidAction(hooks.CMSBeforeRoute) != 1 || app.Hooks().DidAction(hooks.CMSAfterRoute) != 1 {
		t.Error("route hooks not fired around dispatch")
	}
	if rec.Header().Get("X-Frame-Options") != "SAMEORIGIN" {
		t.Error("security headers missing")
	}
}

func TestPluginRoutesFollowActivation(t *testing.T) {
	p := &helloPlugin{}
	registry := plugin.NewRegistry()
	registry.Register(p)
	app := newApp(t, filepath.Join("..", "..", "themes"), registry)
	ctx := context.Background()
	h := app.Handler()

	get := func() int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
		return rec.Code
	}
	if code := get(); code != http.StatusNotFound {
		t.Fatalf("/hello before activation = %d, want 404", code)
	}

	if err := app.Plugins().ActivatePlugin(ctx, "hello"); err != nil {
		t.Fatalf("ActivatePlugin: %v", err)
	}
	if code := get(); code != http.StatusOK {
		t.Fatalf("/hello after runtime activation = %d, want 200", code)
	}

	if err := app.Plugins().DeactivatePlugin(ctx, "hello"); err != nil {
		t.Fatalf("DeactivatePlugin: %v", err)
	}
	if code := get(); code != http.StatusNotFound {
		t.Fatalf("/hello after deactivation = %d, want 404", code)
	}

	if err := app.Plugins().ActivatePlugin(ctx, "hello"); err != nil {
		t.Fatalf("second ActivatePlugin: %v", err)
	}
	if code := get(); code != http.StatusOK {
		t.Errorf("/hello after reactivation = %d, want 200", code)
	}
	if p.initialized != 2 {
		t.Errorf("plugin initialized %d times, want 2", p.initialized)
	}
}

func TestDeactivatedBootPluginStopsServingRoutes(t *testing.T) {
	registry := plugin.NewRegistry()
	registry.Register(&helloPlugin{})
	app := newApp(t, filepath.Join("..", "..", "themes"), registry, "hello")
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/hello = %d, want 200", rec.Code)
	}

	if err := app.Plugins().DeactivatePlugin(context.Background(), "hello"); err != nil {
		t.Fatalf("DeactivatePlugin: %v", err)
	}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/hello", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("/hello after deactivation = %d, want 404", rec.Code)
	}
}

func TestHandlerRejectsBlockedIP(t *testing.T) {
	app := newApp(t, filepath.Join("..", "..", "themes"), plugin.NewRegistry())
	h := app.Handler()
	ctx := context.Background()

	get := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if err := app.Services().Firewall.Block(ctx, 0, "198.51.100.9", "test", time.Hour); err != nil {
		t.Fatal(err)
	}
	if code := get("198.51.100.9:4000"); code != http.StatusForbidden {
		t.Errorf("blocked client = %d, want 403", code)
	}
	if code := get("198.51.100.10:4000"); code != http.StatusOK {
		t.Errorf("other client = %d, want 200", code)
	}
	if err := app.Services().Firewall.Unblock(ctx, 0, "198.51.100.9"); err != nil {
		t.Fatal(err)
	}
	if code := get("198.51.100.9:4000"); code != http.StatusOK {
		t.Errorf("unblocked client = %d, want 200", code)
	}
}

func TestHandlerServesSite(t *testing.T) {
	app := newApp(t, filepath.Join("..", "..", "themes"), plugin.NewRegistry())
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("login page: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "_wpnonce") {
		t.Error("login form has no CSRF field")
	}
	var sessionCookie bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.DefaultCookieName {
			sessionCookie = true
		}
	}
	if !sessionCookie {
		t.Error("no session cookie after rendering a form")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if rec.Code != http.StatusFound {
		t.Errorf("guest /admin = %d, want redirect", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/no-such-page", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing page = %d", rec.Code)
	}
}

func TestMissingThemeFallsBackToPlainText(t *testing.T) {
	app := newApp(t, t.TempDir(), plugin.NewRegistry())
	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nothing-here", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	app := newApp(t, t.TempDir(), plugin.NewRegistry())
	if err := app.Close(); err != nil {
		t.Fatal(err)
	}
	if err := app.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestNewRequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), nil, Deps{}); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestMaintenanceTasks(t *testing.T) {
	app := newApp(t, t.TempDir(), plugin.NewRegistry())
	ctx := context.Background()
	admin := testinfra.CreateUser(t, app.DB(), "ops", models.RoleAdmin, "pw-pw-pw-pw")

	now := time.Now().UTC()
	for id, expires := range map[string]time.Time{"stale": now.Add(-time.Hour), "live": now.Add(time.Hour)} {
		err := app.DB().RecordSession(ctx, database.SessionRecord{
			ID: id, UserID: admin.ID, CreatedAt: now.Add(-2 * time.Hour), LastActivity: now.Add(-2 * time.Hour), ExpiresAt: expires,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	tasks := app.MaintenanceTasks()
	var names []string
	for _, task := range tasks {
		names = append(names, task.Name)
		if err := task.Run(ctx); err != nil {
			t.Errorf("%s: %v", task.Name, err)
		}
	}
	if want := "expired_sessions,failed_logins,expired_subscriptions,firewall_autoblock,expired_blocks,privacy_deletions"; strings.Join(names, ",") != want {
		t.Errorf("tasks = %v", names)
	}
	left, err := app.DB().UserSessions(ctx, admin.ID, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 1 || left[0].ID != "live" {
		t.Errorf("sessions after cleanup = %+v", left)
	}
}

func TestCachesListsJanitorTargets(t *testing.T) {
	app := newApp(t, t.TempDir(), plugin.NewRegistry())
	caches := app.Caches()
	for _, name := range []string{"subscriptions", "analytics"} {
		if caches[name] == nil {
			t.Errorf("cache %s missing", name)
		}
	}
	if _, ok := caches["updates"]; ok {
		t.Error("updates cache listed while update checks are disabled")
	}
}
