// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/authz"
	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/config"
	"github.com/tomtom215/inkwell/internal/content"
	"github.com/tomtom215/inkwell/internal/database"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/plugin"
	"github.com/tomtom215/inkwell/internal/router"
	"github.com/tomtom215/inkwell/internal/security"
	"github.com/tomtom215/inkwell/internal/subscription"
	"github.com/tomtom215/inkwell/internal/theme"
)

// SubscriptionCacheTTL bounds how long a resolved subscription is reused.
const SubscriptionCacheTTL = 5 * time.Minute

// Deps are optional prebuilt components. Zero values are built from the
// configuration.
type Deps struct {
	// DB is used instead of opening cfg.Database. The App closes it.
	DB *database.DB

	// SessionStore is used instead of the store selected by
	// security.session_store.
	SessionStore auth.SessionStore

	// Plugins is the compiled plugin registry. Nil uses plugin.Default().
	Plugins *plugin.Registry

	// Hooks is the shared hook registry. Nil creates a new one.
	Hooks *hooks.Registry
}

// App is a fully wired site.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	db       *database.DB
	hooks    *hooks.Registry
	csrf     *security.CSRF
	store    auth.SessionStore
	sessions *auth.SessionManager
	auth     *auth.Service
	enforcer *authz.Enforcer
	content  *content.Manager
	router   *router.Router
	menus    *plugin.MenuRegistry
	plugins  *plugin.Manager
	themes   *theme.Manager
	subs     *subscription.Manager
	gate     *subscription.Gate
	subCache *cache.Cache

	services Services

	routesOnce sync.Once
	closeOnce  sync.Once
	closeErr   error
}

// New wires every component in order and fires cms_init. On error every
// component built so far is released.
func New(ctx context.Context, cfg *config.Config, deps Deps) (app *App, err error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: config is required")
	}
	a := &App{cfg: cfg, log: logging.WithComponent("bootstrap"), hooks: deps.Hooks}
	if a.hooks == nil {
		a.hooks = hooks.New()
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	// database
	a.db = deps.DB
	if a.db == nil {
		if a.db, err = database.New(&cfg.Database); err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
	}

	// security
	a.csrf = security.NewCSRF(cfg.Security.CSRFTTL)

	// auth
	if err := a.initAuth(ctx, deps.SessionStore); err != nil {
		return nil, err
	}

	// router
	a.content = content.NewManager(a.db, a.hooks)
	a.router = router.New(router.Config{BasePath: cfg.Server.BasePath, SiteURL: cfg.Site.URL}, a.content, nil)

	// Plugin hosts hand out the subscription gate, so the manager exists
	// before plugins load. Plans are seeded in the subscription step.
	a.subCache = cache.New(SubscriptionCacheTTL)
	a.subs = subscription.NewManager(a.db, a.hooks, a.subCache)
	a.gate = subscription.NewGate(a.subs)

	// plugins
	a.menus = plugin.NewMenuRegistry()
	a.plugins = plugin.NewManager(plugin.Config{Dir: cfg.Paths.Plugins, Registry: deps.Plugins},
		a.db, a.hooks, a.menus, a.gate)
	a.plugins.LoadPlugins(ctx)

	// theme
	a.themes = theme.NewManager(theme.Config{
		Dir:          cfg.Paths.Themes,
		DefaultTheme: cfg.Site.DefaultTheme,
		SiteName:     cfg.Site.Name,
		SiteURL:      cfg.Site.URL,
		Language:     cfg.Site.Language,
	}, a.db, a.hooks, a.csrf)
	if err := a.themes.LoadTheme(ctx); err != nil {
		if !errors.Is(err, theme.ErrThemeNotFound) {
			return nil, fmt.Errorf("bootstrap: load theme: %w", err)
		}
		a.log.Warn().Err(err).Str("dir", cfg.Paths.Themes).Msg("No theme installed, pages render as plain text")
	} else {
		a.router.SetRenderer(a.themes)
	}

	// subscriptions
	if cfg.Subscription.SeedDefaultPlans {
		n, err := a.subs.SeedDefaultPlans(ctx)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: seed plans: %w", err)
		}
		if n > 0 {
			a.log.Info().Int("plans", n).Msg("Seeded default subscription plans")
		}
	}
	a.auth.SetFeatureChecker(a.subs)

	// services
	if err := a.initServices(); err != nil {
		return nil, err
	}
	a.registerDefaults()

	a.hooks.DoAction(ctx, hooks.CMSInit, a)
	a.log.Info().
		Str("theme", a.themes.ActiveTheme()).
		Strs("plugins", a.plugins.ActivePlugins(ctx)).
		Msg("Site initialized")
	return a, nil
}

func (a *App) initAuth(ctx context.Context, store auth.SessionStore) error {
	sec := &a.cfg.Security
	if store == nil {
		var err error
		if store, err = auth.NewSessionStore(sec); err != nil {
			return fmt.Errorf("bootstrap: session store: %w", err)
		}
	}
	a.store = store
	a.sessions = auth.NewSessionManager(store, a.db, auth.ManagerConfig{
		CookieName:   sec.CookieName,
		CookiePath:   a.cookiePath(),
		CookieSecure: sec.CookieSecure,
		TTL:          sec.SessionTTL,
	})

	var tokens *auth.TokenIssuer
	if sec.JWTSecret != "" {
		var err error
		if tokens, err = auth.NewTokenIssuer(sec.JWTSecret, sec.APITokenTTL); err != nil {
			return fmt.Errorf("bootstrap: api tokens: %w", err)
		}
	}
	a.auth = auth.NewService(a.db, a.hooks, a.sessions, tokens, auth.Config{
		MaxLoginAttempts: sec.MaxLoginAttempts,
		LoginTimeout:     sec.LoginTimeout,
		BcryptCost:       sec.BcryptCost,
	})

	enforcer, err := authz.NewEnforcer(authz.DefaultConfig())
	if err != nil {
		return fmt.Errorf("bootstrap: authz: %w", err)
	}
	if err := enforcer.SyncRoles(ctx, a.db); err != nil {
		a.log.Warn().Err(err).Msg("Failed to load custom roles")
	}
	a.enforcer = enforcer
	a.auth.SetCapabilityChecker(enforcer)

	if _, err := auth.EnsureDefaultAdmin(ctx, a.db, a.cfg.Site.AdminEmail, sec.AdminPassword, sec.BcryptCost); err != nil {
		return fmt.Errorf("bootstrap: default admin: %w", err)
	}
	return nil
}

func (a *App) cookiePath() string {
	if a.cfg.Server.BasePath == "" {
		return "/"
	}
	return "/" + strings.Trim(a.cfg.Server.BasePath, "/")
}

// Handler returns the site entry point. The first call fires
// register_routes with the router; plugins activated later add their
// routes when they are activated.
func (a *App) Handler() http.Handler {
	a.routesOnce.Do(func() {
		ctx := context.Background()
		a.hooks.DoAction(ctx, hooks.RegisterRoutes, a.router)
		a.plugins.RoutesCollected(ctx, a.router)
		a.log.Debug().Int("routes", len(a.router.Routes())).Msg("Routes registered")
	})
	dispatch := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		a.hooks.DoAction(ctx, hooks.CMSBeforeRoute, r)
		a.router.Dispatch(w, r)
		a.hooks.DoAction(ctx, hooks.CMSAfterRoute, r)
	})
	return security.Headers(a.cfg.Server.Debug)(a.services.Firewall.Middleware(a.auth.Middleware(dispatch)))
}

// Close releases the session store and the database. It is safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.store != nil {
			if err := a.store.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close session store: %w", err))
			}
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close database: %w", err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}

// Config returns the configuration the app was built from.
func (a *App) Config() *config.Config { return a.cfg }

// DB returns the database.
func (a *App) DB() *database.DB { return a.db }

// Auth returns the auth service.
func (a *App) Auth() *auth.Service { return a.auth }

// SessionStore returns the session payload store.
func (a *App) SessionStore() auth.SessionStore { return a.store }

// Security returns the CSRF token store.
func (a *App) Security() *security.CSRF { return a.csrf }

// Hooks returns the hook registry.
func (a *App) Hooks() *hooks.Registry { return a.hooks }

// Router returns the site router.
func (a *App) Router() *router.Router { return a.router }

// Plugins returns the plugin manager.
func (a *App) Plugins() *plugin.Manager { return a.plugins }

// Themes returns the theme manager.
func (a *App) Themes() *theme.Manager { return a.themes }

// Subscriptions returns the subscription manager.
func (a *App) Subscriptions() *subscription.Manager { return a.subs }

// Gate returns the request-scoped subscription checks.
func (a *App) Gate() *subscription.Gate { return a.gate }

// Content returns the page and post manager.
func (a *App) Content() *content.Manager { return a.content }

// Enforcer returns the role enforcer.
func (a *App) Enforcer() *authz.Enforcer { return a.enforcer }

// Caches returns the in-memory caches that need a janitor, by name.
func (a *App) Caches() map[string]*cache.Cache {
	out := map[string]*cache.Cache{
		"subscriptions": a.subCache,
		"analytics":     a.services.Analytics.Cache(),
	}
	if a.services.Updates != nil {
		out["updates"] = a.services.Updates.Cache()
	}
	return out
}

// Services returns the admin and member services.
func (a *App) Services() *Services { return &a.services }
