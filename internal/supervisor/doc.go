// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package supervisor provides process supervision for Inkwell using suture v4.

Every long-running goroutine of the server is a supervised service. A crashed
service is restarted with backoff; context cancellation stops the whole tree.

# Overview

	RootSupervisor ("inkwell")
	├── DataSupervisor ("data-layer")
	│   ├── backup-scheduler (if backup.enabled)
	│   ├── maintenance (sessions, failed logins, subscription expiry)
	│   └── cache-janitor-<name> (one per in-memory cache)
	├── MessagingSupervisor ("messaging-layer")
	│   └── websocket-hub
	└── APISupervisor ("api-layer")
	    ├── http-server
	    └── theme-watcher (debug mode only)

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	tree.AddMessagingService(services.NewHubService(hub))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

# Failure Handling

Each failure increments a counter that decays over FailureDecay seconds.
Above FailureThreshold the supervisor waits FailureBackoff before the next
restart. Defaults follow suture: 5 failures, 30s decay, 15s backoff and a
10s shutdown timeout.

A service that returns nil is not restarted. Returning an error asks for a
restart. Services must return promptly once their context is canceled.

# What Is NOT Supervised

DuckDB is embedded and owned by the database package. The session store
and database are closed by bootstrap.App.Close after the tree stops.

# Debugging Shutdown

	report, _ := tree.UnstoppedServiceReport()
	for _, svc := range report {
	    logging.Warn().Str("service", svc.Name).Msg("service did not stop")
	}
*/
package supervisor
