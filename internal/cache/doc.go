// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

// Package cache provides the in-process caches used by the CMS.
//
// Cache is a TTL map with hit/miss statistics. It backs resolved
// subscriptions, remote update checks and analytics reports. Expired
// entries are dropped lazily on Get and in bulk by Cleanup, which the
// maintenance service calls; Serve runs Cleanup on a ticker under the
// supervisor.
//
// LRU is a bounded least-recently-used cache with TTL, used where the key
// space is unbounded (rendered Markdown keyed by content hash).
//
//	c := cache.New(5 * time.Minute)
//	c.Set("subscription:42", sub)
//	if v, ok := c.Get("subscription:42"); ok {
//	    sub = v.(*models.UserSubscription)
//	}
package cache
