// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
cache.go - In-Memory Image Cache

TTL-bound cache of normalized image sets, keyed by platform identifier.
It is the middle tier of the image read path: the persisted catalog copy
is consulted first, this cache second, and the upstream API last.

Entries older than the TTL are treated as misses by Get but stay in the
map until the janitor sweeps them; GetStale serves them regardless of
age so degraded read paths can prefer stale data over nothing.
*/

package imagecache

import (
	"context"
	"sync"
	"time"

	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/metrics"
	"github.com/harborstay/harborstay/internal/models"
)

// entry is one cached image set with its storage timestamp.
type entry struct {
	images   []models.NormalizedImage
	storedAt time.Time
}

// Cache is a TTL-bound in-memory image cache. Safe for concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry

	ttl             time.Duration
	cleanupInterval time.Duration

	stopClean chan struct{}
	stopOnce  sync.Once

	// nowFunc is swapped in tests for deterministic expiry.
	nowFunc func() time.Time
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Keys int `json:"keys"`
}

// New creates a cache from config. Call Start to run the janitor.
func New(cfg *config.ImageCacheConfig) *Cache {
	return &Cache{
		entries:         make(map[string]entry),
		ttl:             cfg.TTL,
		cleanupInterval: cfg.CleanupInterval,
		stopClean:       make(chan struct{}),
		nowFunc:         time.Now,
	}
}

// Get returns the cached image set for key if present and fresh. Stale
// entries report a miss but are left in place for GetStale; the janitor
// owns eviction.
func (c *Cache) Get(key string) ([]models.NormalizedImage, bool) {
	now := c.nowFunc()

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || now.Sub(e.storedAt) >= c.ttl {
		metrics.ImageCacheMisses.Inc()
		return nil, false
	}

	metrics.ImageCacheHits.WithLabelValues("memory").Inc()
	return e.images, true
}

// GetStale returns the cached image set for key regardless of age. Used
// when the upstream is rate limited or failing, where stale images beat
// a stock fallback.
func (c *Cache) GetStale(key string) ([]models.NormalizedImage, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		metrics.ImageCacheMisses.Inc()
		return nil, false
	}

	metrics.ImageCacheHits.WithLabelValues("stale").Inc()
	return e.images, true
}

// Put stores images under key, resetting its TTL.
func (c *Cache) Put(key string, images []models.NormalizedImage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{images: images, storedAt: c.nowFunc()}
	metrics.ImageCacheKeys.Set(float64(len(c.entries)))
}

// Invalidate removes key from the cache.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		delete(c.entries, key)
		metrics.ImageCacheKeys.Set(float64(len(c.entries)))
	}
}

// Stats returns current cache occupancy.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Keys: len(c.entries)}
}

// Run runs the janitor loop until the context is canceled or Stop is
// called. Intended to run as a supervised service.
func (c *Cache) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := c.sweep(); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("Image cache janitor swept expired entries")
			}
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopClean:
			return nil
		}
	}
}

// sweep removes all expired entries and returns how many were evicted.
func (c *Cache) sweep() int {
	now := c.nowFunc()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.storedAt) >= c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	if removed > 0 {
		metrics.ImageCacheEvictions.Add(float64(removed))
		metrics.ImageCacheKeys.Set(float64(len(c.entries)))
	}
	return removed
}

// Stop terminates the janitor loop.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopClean) })
}
