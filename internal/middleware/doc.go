// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package middleware provides the infrastructure HTTP middleware of the server.

All middleware uses the chi signature func(http.Handler) http.Handler so it
can be passed straight to chi.Router.Use.

Key Components:

  - RequestID: reuses or generates X-Request-ID and stores it for logging.Ctx
  - Compression: gzip for clients that accept it, skipped for websocket upgrades
  - PrometheusMetrics: request count, latency and in-flight gauge by chi route pattern
  - PerformanceMonitor: sliding window of request timings with percentiles,
    served to administrators as JSON

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)
	r.Use(monitor.Middleware)
	r.Use(middleware.Compression)

Route labels come from the chi route pattern, never the raw path, so page
slugs and ids do not create unbounded metric series.
*/
package middleware
