// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package models

import "time"

// Activity is a row of activity_log.
type Activity struct {
	ID          int64          `json:"id"`
	UserID      *int64         `json:"user_id,omitempty"`
	Username    string         `json:"username,omitempty"`
	Action      string         `json:"action"`
	EntityType  string         `json:"entity_type,omitempty"`
	EntityID    *int64         `json:"entity_id,omitempty"`
	Description string         `json:"description,omitempty"`
	IPAddress   string         `json:"ip_address,omitempty"`
	UserAgent   string         `json:"user_agent,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// PageView is a row of page_views.
type PageView struct {
	PageID    *int64    `json:"page_id,omitempty"`
	PageSlug  string    `json:"page_slug"`
	PageTitle string    `json:"page_title"`
	UserID    *int64    `json:"user_id,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent,omitempty"`
	Referrer  string    `json:"referrer,omitempty"`
	VisitedAt time.Time `json:"visited_at"`
}

// DailyCount is one point of a per-day time series.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// NamedCount pairs a label with a count.
type NamedCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}
