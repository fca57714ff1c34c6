// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package router dispatches site requests.

Routes are registered per method with literal paths or ":name" patterns:

	r.AddRoute(http.MethodGet, "/blog/:slug", func(w http.ResponseWriter, req *http.Request, p router.Params) {
		slug := p.Get("slug")
		...
	})

Dispatch tries, in order: an exact method and path match, the patterns in
registration order, a published page whose slug equals the path, and
finally the theme's 404 template. Registering the same method and pattern
again replaces the handler in place.

RegisterDefaults installs the public site, authentication, member, admin
and small JSON endpoints on a router.
*/
package router
