// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package authz

import (
	"sync"
	"time"
)

// maxCachedDecisions bounds the cache; the whole map is dropped when full.
const maxCachedDecisions = 10000

type decisionCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[string]cacheItem
	now   func() time.Time
}

type cacheItem struct {
	allowed   bool
	expiresAt time.Time
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	return &decisionCache{ttl: ttl, items: make(map[string]cacheItem), now: time.Now}
}

func (c *decisionCache) key(subject, object, action string) string {
	return subject + "\x00" + object + "\x00" + action
}

func (c *decisionCache) get(subject, object, action string) (allowed, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	item, found := c.items[c.key(subject, object, action)]
	if !found || c.now().After(item.expiresAt) {
		return false, false
	}
	return item.allowed, true
}

func (c *decisionCache) set(subject, object, action string, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= maxCachedDecisions {
		c.items = make(map[string]cacheItem)
	}
	c.items[c.key(subject, object, action)] = cacheItem{allowed: allowed, expiresAt: c.now().Add(c.ttl)}
}

func (c *decisionCache) clear() {
	c.mu.Lock()
	c.items = make(map[string]cacheItem)
	c.mu.Unlock()
}

func (c *decisionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
