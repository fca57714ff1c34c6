// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package bootstrap assembles a running site from a configuration.

New builds every component in a fixed order:

 1. database (opened from the config unless one is supplied)
 2. security (CSRF tokens)
 3. auth (session store, session manager, API tokens, default admin)
 4. router (default site routes)
 5. plugin manager (active plugins are initialized)
 6. theme manager (active theme loaded, customizer synced)
 7. subscription manager (default plans seeded)
 8. services (analytics, backups, dashboard, media, member, SEO, system,
    updates, users, landing page)

and finally fires cms_init. Handler returns the request entry point, which
fires register_routes once before the first request is served and wraps
each dispatch in cms_before_route and cms_after_route.

Usage:

	app, err := bootstrap.New(ctx, cfg, bootstrap.Deps{})
	if err != nil {
		return err
	}
	defer app.Close()
	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: app.Handler()}
*/
package bootstrap
