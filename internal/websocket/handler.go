// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package websocket

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/inkwell/internal/auth"
	"github.com/tomtom215/inkwell/internal/logging"
)

// Handler upgrades administrator requests to a live feed connection. The
// request must already carry the user (auth.Service.Middleware). Browsers
// may only connect from siteURL's origin; an empty siteURL accepts the
// request host.
func Handler(hub *Hub, siteURL string) http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(siteURL),
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := auth.UserFromContext(r.Context())
		if u == nil || !u.IsAdmin() {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Live feed upgrade failed")
			return
		}
		c := NewClient(hub, conn, u.ID)
		hub.Register <- c
		c.Start()
	})
}

func originChecker(siteURL string) func(*http.Request) bool {
	var allowed string
	if u, err := url.Parse(siteURL); err == nil && u.Host != "" {
		allowed = strings.ToLower(u.Host)
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		o, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(o.Host)
		if allowed != "" {
			return host == allowed
		}
		return host == strings.ToLower(r.Host)
	}
}
