// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package websocket streams site events to administrators.

A Hub keeps the connected clients and fans out messages. Every row written
to the activity log reaches the hub through Hub.ActivityListener, which is
installed with database.DB.SetActivityListener; backups announce themselves
through the backup_completed hook.

	hub := websocket.NewHub()
	db.SetActivityListener(hub.ActivityListener())
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	mux.Handle("/admin/live", websocket.Handler(hub, siteURL))

Each client runs a read pump (answers ping messages, enforces the pong
deadline) and a write pump (delivers messages, sends keepalive pings).
Slow clients whose buffer is full are dropped instead of blocking the hub.

Message types:

  - activity: a models.Activity just written to the log
  - backup_completed: a finished backup (type, file name, size)
  - ping / pong: client keepalive
*/
package websocket
