// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inkwell_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkwell_http_active_requests",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// Hooks
	HookDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_hook_dispatches_total",
			Help: "Number of action and filter dispatches by kind",
		},
		[]string{"kind"}, // action, filter
	)

	HookPanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_hook_panics_total",
			Help: "Number of recovered panics in hook callbacks",
		},
		[]string{"tag"},
	)

	// Auth
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_login_attempts_total",
			Help: "Login attempts by result",
		},
		[]string{"result"}, // success, invalid, disabled, rate_limited
	)

	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_authz_decisions_total",
			Help: "Uncached authorization decisions by result",
		},
		[]string{"result"}, // allow, deny
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkwell_active_sessions",
			Help: "Number of unexpired sessions",
		},
	)

	// Content
	PageViews = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inkwell_page_views_total",
			Help: "Number of tracked page views",
		},
	)

	RouterDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_router_dispatches_total",
			Help: "Router dispatch outcomes",
		},
		[]string{"match"}, // exact, pattern, page, not_found
	)

	// Subscriptions
	SubscriptionResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_subscription_resolutions_total",
			Help: "Uncached subscription resolutions by source",
		},
		[]string{"source"}, // explicit, group, free, none
	)

	// Cache
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_cache_hits_total",
			Help: "Cache hits by cache name",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_cache_misses_total",
			Help: "Cache misses by cache name",
		},
		[]string{"cache"},
	)

	// Backups
	BackupRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_backup_runs_total",
			Help: "Backup runs by type and result",
		},
		[]string{"type", "result"},
	)

	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inkwell_backup_duration_seconds",
			Help:    "Backup duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	// Updates
	UpdateChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_update_checks_total",
			Help: "Remote update checks by result",
		},
		[]string{"result"}, // ok, error, breaker_open, cached
	)

	// WebSocket
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inkwell_websocket_connections",
			Help: "Number of connected admin activity feed clients",
		},
	)

	// Maintenance
	MaintenanceRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_maintenance_runs_total",
			Help: "Maintenance job runs by job and result",
		},
		[]string{"job", "result"},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "inkwell_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	// Firewall
	FirewallRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inkwell_firewall_rejections_total",
			Help: "Requests refused by the firewall by reason",
		},
		[]string{"reason"}, // blocked_ip, empty_user_agent
	)
)

// RecordAPIRequest records one finished HTTP request.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest moves the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordBackup records a finished backup.
func RecordBackup(backupType string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	BackupRuns.WithLabelValues(backupType, result).Inc()
	BackupDuration.Observe(duration.Seconds())
}

// RecordMaintenance records a maintenance job run.
func RecordMaintenance(job string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	MaintenanceRuns.WithLabelValues(job, result).Inc()
}

// RecordCache records a cache lookup.
func RecordCache(name string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(name).Inc()
	} else {
		CacheMisses.WithLabelValues(name).Inc()
	}
}

// RecordAuthzDecision counts an enforcer decision.
func RecordAuthzDecision(allowed bool) {
	if allowed {
		AuthzDecisions.WithLabelValues("allow").Inc()
	} else {
		AuthzDecisions.WithLabelValues("deny").Inc()
	}
}
