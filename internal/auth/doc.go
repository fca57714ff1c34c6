// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package auth provides sessions, login, registration and API tokens.

# Sessions

Every browser request carries a Session, loaded by SessionManager from the
inkwell_session cookie. Sessions live in a SessionStore:

  - MemorySessionStore: process memory, for development and tests
  - BadgerSessionStore: BadgerDB on disk, survives restarts

A new session is only written to the store once something is put into it
(a CSRF token, a flash message or a login). The session ID is replaced on
login and logout. Logged-in sessions are also indexed in the SQL sessions
table so admins can list them.

# Service

Service implements the account flows:

	user, err := svc.Login(ctx, sess, auth.Credentials{Identifier: "jane", Password: pw, IP: ip})
	var uerr *auth.UserError
	if errors.As(err, &uerr) {
	    sess.AddFlash(auth.FlashError, uerr.Error())
	}

Login is throttled per client IP (max_login_attempts per login_timeout).
Failed attempts are written to login_attempts and failed_logins.

# API tokens

Users whose plan includes the api_access feature (and every admin) can
obtain an HS256 JWT. Middleware accepts it as a Bearer token on API routes.
*/
package auth
