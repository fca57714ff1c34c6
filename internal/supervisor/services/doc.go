// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package services provides suture.Service wrappers for Inkwell components.

Each wrapper translates a component lifecycle (ListenAndServe, RunWithContext,
a periodic task list) into suture's context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - http.ErrServerClosed is treated as a clean stop

Hub (HubService):
  - Wraps the live admin websocket hub
  - The hub closes its clients when the context ends

Periodic (PeriodicService):
  - Runs a list of named tasks on a fixed interval
  - A failing task is logged and does not stop the others
  - Used for session pruning, failed-login retention and subscription expiry

Func (FuncService):
  - Names a bare Serve function so suture can log it
  - Used for the cache janitors

# Naming

Every wrapper implements fmt.Stringer; suture uses the name in its event log.
*/
package services
