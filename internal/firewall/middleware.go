// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package firewall

import (
	"net/http"
	"strings"

	"github.com/tomtom215/inkwell/internal/logging"
	"github.com/tomtom215/inkwell/internal/metrics"
	"github.com/tomtom215/inkwell/internal/security"
)

// Middleware refuses blocked clients with 403. Lookup errors let the
// request through.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		st, err := s.Settings(ctx)
		if err != nil || !st.Enabled {
			next.ServeHTTP(w, r)
			return
		}
		ip := security.ClientIP(r)
		if st.Whitelisted(ip) {
			next.ServeHTTP(w, r)
			return
		}
		if st.BlockEmptyUA && strings.TrimSpace(r.UserAgent()) == "" {
			metrics.FirewallRejections.WithLabelValues("empty_user_agent").Inc()
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		blocked, err := s.IsBlocked(ctx, ip)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("ip", ip).Msg("Firewall lookup failed")
		}
		if blocked {
			metrics.FirewallRejections.WithLabelValues("blocked_ip").Inc()
			http.Error(w, "Access denied", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
