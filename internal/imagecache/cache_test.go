// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package imagecache

import (
	"testing"
	"time"

	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/models"
)

func newTestCache(t *testing.T) (*Cache, *time.Time) {
	t.Helper()
	c := New(&config.ImageCacheConfig{
		TTL:             24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	})
	t.Cleanup(c.Stop)

	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	clock := &now
	c.nowFunc = func() time.Time { return *clock }
	return c, clock
}

func testImages(urls ...string) []models.NormalizedImage {
	images := make([]models.NormalizedImage, len(urls))
	for i, u := range urls {
		images[i] = models.NormalizedImage{URL: u, Position: i}
	}
	return images
}

func TestGetMissOnEmptyCache(t *testing.T) {
	c, _ := newTestCache(t)

	if _, ok := c.Get("cust-1/101"); ok {
		t.Error("Get() on empty cache = hit, want miss")
	}
}

func TestPutThenGetReturnsImages(t *testing.T) {
	c, _ := newTestCache(t)
	images := testImages("https://example.com/a.jpg", "https://example.com/b.jpg")

	c.Put("cust-1/101", images)

	got, ok := c.Get("cust-1/101")
	if !ok {
		t.Fatal("Get() = miss, want hit")
	}
	if len(got) != 2 || got[0].URL != "https://example.com/a.jpg" {
		t.Errorf("Get() = %+v, want stored image set", got)
	}
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c, clock := newTestCache(t)
	c.Put("k", testImages("https://example.com/a.jpg"))

	*clock = clock.Add(23 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Error("Get() at 23h = miss, want hit")
	}

	*clock = clock.Add(2 * time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Error("Get() at 25h = hit, want miss")
	}

	// The expired entry stays for stale reads until the janitor sweeps it.
	if n := c.Stats().Keys; n != 1 {
		t.Errorf("Stats().Keys after expiry = %d, want 1", n)
	}
	got, ok := c.GetStale("k")
	if !ok {
		t.Fatal("GetStale() after expiry = miss, want hit")
	}
	if got[0].URL != "https://example.com/a.jpg" {
		t.Errorf("GetStale() URL = %q, want stored entry", got[0].URL)
	}

	if removed := c.sweep(); removed != 1 {
		t.Errorf("sweep() = %d, want 1", removed)
	}
	if _, ok := c.GetStale("k"); ok {
		t.Error("GetStale() after sweep = hit, want miss")
	}
}

func TestPutResetsTTL(t *testing.T) {
	c, clock := newTestCache(t)
	c.Put("k", testImages("https://example.com/old.jpg"))

	*clock = clock.Add(23 * time.Hour)
	c.Put("k", testImages("https://example.com/new.jpg"))

	*clock = clock.Add(2 * time.Hour)
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("Get() after refresh = miss, want hit")
	}
	if got[0].URL != "https://example.com/new.jpg" {
		t.Errorf("Get() URL = %q, want refreshed entry", got[0].URL)
	}
}

func TestInvalidateRemovesEntry(t *testing.T) {
	c, _ := newTestCache(t)
	c.Put("k", testImages("https://example.com/a.jpg"))

	c.Invalidate("k")

	if _, ok := c.Get("k"); ok {
		t.Error("Get() after Invalidate = hit, want miss")
	}
}

func TestSweepRemovesOnlyExpiredEntries(t *testing.T) {
	c, clock := newTestCache(t)
	c.Put("old", testImages("https://example.com/a.jpg"))

	*clock = clock.Add(20 * time.Hour)
	c.Put("fresh", testImages("https://example.com/b.jpg"))

	*clock = clock.Add(5 * time.Hour)
	if removed := c.sweep(); removed != 1 {
		t.Errorf("sweep() = %d, want 1", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry removed by sweep")
	}
	if n := c.Stats().Keys; n != 1 {
		t.Errorf("Stats().Keys = %d, want 1", n)
	}
}
