// Inkwell - Content Management and Membership Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(ttl time.Duration) (*Cache, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := New(ttl)
	c.now = clock.now
	return c, clock
}

func TestCacheBasicOperations(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("key1", "value1")
	if v, ok := c.Get("key1"); !ok || v != "value1" {
		t.Errorf("Get(key1) = %v, %v", v, ok)
	}
	if _, ok := c.Get("key2"); ok {
		t.Error("Expected key2 to not exist")
	}

	c.Delete("key1")
	if _, ok := c.Get("key1"); ok {
		t.Error("Expected key1 to be deleted")
	}

	s := c.GetStats()
	if s.Hits != 1 || s.Misses != 2 || s.Evictions != 1 {
		t.Errorf("stats = %+v", s)
	}
	if got := c.HitRate(); got < 33 || got > 34 {
		t.Errorf("HitRate = %.2f", got)
	}
}

func TestCacheExpiration(t *testing.T) {
	c, clock := newTestCache(time.Minute)

	c.Set("short", 1)
	c.SetWithTTL("long", 2, time.Hour)
	clock.advance(2 * time.Minute)

	if _, ok := c.Get("short"); ok {
		t.Error("Expected short to be expired")
	}
	if _, ok := c.Get("long"); !ok {
		t.Error("Expected long to survive")
	}
}

func TestCacheCleanupAndPrefix(t *testing.T) {
	c, clock := newTestCache(time.Minute)
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("subscription:%d", i), i)
	}
	c.SetWithTTL("update:core", "1.2.0", time.Hour)

	if n := c.DeletePrefix("subscription:"); n != 5 {
		t.Errorf("DeletePrefix = %d, want 5", n)
	}
	c.Set("subscription:9", 9)
	clock.advance(2 * time.Minute)

	if n := c.Cleanup(); n != 1 {
		t.Errorf("Cleanup = %d, want 1", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
	c.Clear()
	if c.GetStats().TotalKeys != 0 {
		t.Error("TotalKeys not reset by Clear")
	}
}

func TestCacheServeStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(time.Minute)
	c.CleanupInterval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Serve(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve returned %v", err)
	}
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", j%10)
				c.Set(key, n)
				c.Get(key)
				if j%25 == 0 {
					c.DeletePrefix("k1")
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("TopPages", map[string]int{"days": 30, "limit": 10})
	b := GenerateKey("TopPages", map[string]int{"limit": 10, "days": 30})
	c := GenerateKey("TopPages", map[string]int{"days": 7, "limit": 10})
	if a != b {
		t.Errorf("key depends on map order: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different params produced the same key")
	}
}

func TestLRUEviction(t *testing.T) {
	c := NewLRU[string](2, time.Minute)
	c.Add("a", "1")
	c.Add("b", "2")
	c.Get("a")
	c.Add("c", "3")

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry b was not evicted")
	}
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v", v, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
	if !c.Remove("a") || c.Remove("a") {
		t.Error("Remove reported wrong presence")
	}
}

func TestLRUExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := NewLRU[int](10, time.Second)
	c.now = clock.now

	c.Add("x", 1)
	c.Add("x", 2)
	clock.advance(2 * time.Second)
	if _, ok := c.Get("x"); ok {
		t.Error("expired entry returned")
	}
	hits, misses, size := c.Stats()
	if hits != 0 || misses != 1 || size != 0 {
		t.Errorf("Stats = %d, %d, %d", hits, misses, size)
	}
	c.Add("y", 3)
	c.Purge()
	if c.Len() != 0 {
		t.Error("Purge left entries")
	}
}
