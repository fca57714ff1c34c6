// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package bootstrap

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/tomtom215/inkwell/internal/analytics"
	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/backup"
	"github.com/tomtom215/inkwell/internal/consent"
	"github.com/tomtom215/inkwell/internal/dashboard"
	"github.com/tomtom215/inkwell/internal/firewall"
	"github.com/tomtom215/inkwell/internal/hooks"
	"github.com/tomtom215/inkwell/internal/landing"
	"github.com/tomtom215/inkwell/internal/legal"
	"github.com/tomtom215/inkwell/internal/media"
	"github.com/tomtom215/inkwell/internal/member"
	"github.com/tomtom215/inkwell/internal/privacy"
	"github.com/tomtom215/inkwell/internal/router"
	"github.com/tomtom215/inkwell/internal/seo"
	"github.com/tomtom215/inkwell/internal/system"
	"github.com/tomtom215/inkwell/internal/update"
	"github.com/tomtom215/inkwell/internal/users"
)

// Services are the business services behind the admin and member areas.
// Updates is nil when update checks are disabled.
type Services struct {
	Analytics *analytics.Service
	Backups   *backup.Manager
	Dashboard *dashboard.Service
	Media     *media.Service
	Member    *member.Service
	SEO       *seo.Service
	System    *system.Service
	Status    *system.StatusService
	Updates   *update.Service
	Users     *users.Service
	Landing   *landing.Service
	Firewall  *firewall.Service
	Privacy   *privacy.Service
	Consent   *consent.Service
	Legal     *legal.Service
}

func (a *App) initServices() error {
	cfg := a.cfg
	s := &a.services
	version := cfg.Site.Version

	s.Analytics = analytics.New(a.db, cfg.Paths.Uploads)
	a.themes.SetTracker(s.Analytics)

	s.Dashboard = dashboard.New(a.db, dashboard.Options{
		UploadsDir: cfg.Paths.Uploads,
		DiskPath:   cfg.Paths.Uploads,
		Version:    version,
		SiteURL:    cfg.Site.URL,
		Debug:      cfg.Server.Debug,
	})

	var err error
	if s.Media, err = media.New(a.db, cfg.Paths.Uploads, strings.TrimRight(cfg.Site.URL, "/")+"/uploads"); err != nil {
		return fmt.Errorf("bootstrap: media: %w", err)
	}

	s.Member = member.New(a.db, a.subs, cfg.Security.BcryptCost)
	s.Users = users.New(a.db, a.enforcer, a.sessions, cfg.Security.BcryptCost)
	s.Landing = landing.New(a.db, a.hooks)
	s.Firewall = firewall.New(a.db)
	s.Privacy = privacy.New(a.db, s.Member, s.Users, a.hooks)
	s.Consent = consent.New(a.db, consent.NewScanner(cfg.Site.URL, nil))
	s.Legal = legal.New(a.db, a.content, s.Consent, cfg.Site.URL)

	s.SEO = seo.New(a.db, seo.Config{
		SiteName:   cfg.Site.Name,
		SiteURL:    cfg.Site.URL,
		AdminEmail: cfg.Site.AdminEmail,
		Language:   cfg.Site.Language,
		PublicDir:  cfg.Paths.Public,
	})

	sysOpts := system.Options{
		Paths: system.Paths{
			Uploads: cfg.Paths.Uploads,
			Cache:   cfg.Paths.Cache,
			Themes:  cfg.Paths.Themes,
			Plugins: cfg.Paths.Plugins,
			Backups: cfg.Paths.Backups,
			Public:  cfg.Paths.Public,
			LogFile: cfg.Paths.LogFile,
		},
		Version:              version,
		SiteURL:              cfg.Site.URL,
		Debug:                cfg.Server.Debug,
		CookieSecure:         cfg.Security.CookieSecure,
		SessionTTL:           cfg.Security.SessionTTL,
		FailedLoginRetention: cfg.Maintenance.FailedLoginRetention,
	}
	s.System = system.New(a.db, sysOpts)
	s.Status = system.NewStatus(a.db, sysOpts)
	s.System.RegisterCache("subscriptions", a.subCache)
	s.System.RegisterCache("analytics", s.Analytics.Cache())

	if cfg.Updates.Enabled {
		client := update.NewClient(cfg.Updates.Timeout, "Inkwell/"+version)
		s.Updates = update.New(a.db, client, update.Options{
			Version:       version,
			ReleaseURL:    cfg.Updates.ReleaseURL,
			CheckInterval: cfg.Updates.CheckInterval,
			WritableDirs: map[string]string{
				"uploads": cfg.Paths.Uploads,
				"themes":  cfg.Paths.Themes,
				"plugins": cfg.Paths.Plugins,
				"backups": cfg.Paths.Backups,
			},
		}, a.plugins, a.themes)
		s.System.RegisterCache("updates", s.Updates.Cache())
	}

	opts := backup.Options{
		Dir:            cfg.Paths.Backups,
		UploadsDir:     cfg.Paths.Uploads,
		ThemesDir:      cfg.Paths.Themes,
		IncludeUploads: cfg.Backup.IncludeUploads,
		PreferredHour:  cfg.Backup.PreferredHour,
		RetentionCount: cfg.Backup.RetentionCount,
		RetentionDays:  cfg.Backup.RetentionDays,
		Version:        version,
	}
	if cfg.Backup.Enabled {
		opts.Interval = cfg.Backup.Interval
	}
	if s.Backups, err = backup.New(a.db, a.hooks, opts); err != nil {
		return fmt.Errorf("bootstrap: backups: %w", err)
	}

	a.addSEOHead()
	return nil
}

// registerDefaults installs the built-in site routes.
func (a *App) registerDefaults() {
	s := &a.services
	router.RegisterDefaults(a.router, &router.Site{
		DB:      a.db,
		Auth:    a.auth,
		CSRF:    a.csrf,
		Hooks:   a.hooks,
		Content: a.content,
		SEO:     s.SEO,
		Menus:   a.menus,
		Plugins: a.plugins,
		Themes:  a.themes,
		Users:   s.Users,
		Member:  s.Member,
		Plans:   a.subs,
		Stats:   s.Dashboard,
		Visits:  s.Analytics,
		Backups: s.Backups,
		System:  s.System,
		Status:  s.Status,
		Updates: s.Updates,
		Landing: s.Landing,
		Media:   s.Media,
		Version: a.cfg.Site.Version,

		Firewall: s.Firewall,
		Privacy:  s.Privacy,
		Consent:  s.Consent,
		Legal:    s.Legal,
	})
}

// addSEOHead appends structured data, custom header code and analytics
// snippets to every page head.
func (a *App) addSEOHead() {
	svc := a.services.SEO
	a.hooks.AddFilter(hooks.Head, func(ctx context.Context, value any, _ ...any) any {
		head, _ := value.(string)
		var b strings.Builder
		b.WriteString(head)
		for _, part := range []template.HTML{
			svc.OrganizationSchema(ctx),
			svc.WebSiteSchema(),
			svc.CustomHeaderCode(ctx),
			svc.AnalyticsHeadCode(ctx, auth.UserFromContext(ctx)),
		} {
			if part != "" {
				b.WriteString(string(part))
				b.WriteByte('\n')
			}
		}
		return b.String()
	}, hooks.DefaultPriority)
}
