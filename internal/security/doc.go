// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package security holds the request-independent protections shared by the
router, auth and the admin services.

CSRF tokens are bound to a session through the TokenBag interface, which
auth.Session implements. Each form action owns one token:

	token, err := csrf.GenerateToken(sess, "login")
	...
	if !csrf.VerifyToken(sess, r.PostFormValue("_wpnonce"), "login") {
	    // reject
	}

Tokens are 32 random bytes hex-encoded, compared in constant time and
expire after the configured TTL (one hour by default). An expired token is
removed on the failed verification.

Sanitize applies the per-kind input filters used for form fields (email,
url, int, html, username, text). Rich content goes through SanitizeHTML,
which uses a bluemonday UGC policy.

Password hashing uses bcrypt at cost 12. Login throttling uses a fixed
window limiter (LoginLimiter); public form endpoints use a token bucket per
client (Throttle) built on golang.org/x/time/rate.
*/
package security
