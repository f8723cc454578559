// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
guard.go - Outbound Rate-Limit Guard

The guard gates every upstream API call per customer/listing key. Two
policies apply independently to each key:

  - minimum spacing between admitted calls (token bucket, burst 1)
  - a rolling-window cap on admissions (timestamp window, exact)

A call is admitted only when both policies allow it. Spacing violations
yield Wait (caller sleeps and retries); window exhaustion yields Deny
(caller gives up and reports retry-after). Wait does not consume a window
slot.
*/

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/metrics"
)

// Outcome is the admission decision category.
type Outcome int

const (
	// OutcomeProceed admits the call immediately.
	OutcomeProceed Outcome = iota
	// OutcomeWait defers the call; retry after Decision.RetryAfter.
	OutcomeWait
	// OutcomeDeny rejects the call; the rolling window is exhausted.
	OutcomeDeny
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProceed:
		return "proceed"
	case OutcomeWait:
		return "wait"
	case OutcomeDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Decision is the result of one admission check.
type Decision struct {
	Outcome    Outcome
	RetryAfter time.Duration
}

// DeniedError is returned by Acquire when the rolling window for a key is
// exhausted.
type DeniedError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("rate limit window exhausted for %s, retry after %s", e.Key, e.RetryAfter)
}

// keyState tracks admission state for a single customer/listing key.
type keyState struct {
	// spacing enforces the minimum interval between admissions.
	spacing *rate.Limiter

	// admissions holds the timestamps of window-consuming admissions,
	// oldest first, pruned on every check.
	admissions []time.Time

	lastAccess time.Time
}

// Guard implements per-key outbound admission control with automatic
// cleanup of idle keys.
type Guard struct {
	mu   sync.Mutex
	keys map[string]*keyState

	minSpacing   time.Duration
	window       time.Duration
	maxPerWindow int
	maxKeys      int

	stopClean chan struct{}
	stopOnce  sync.Once
}

// NewGuard creates a guard from config and starts its cleanup loop.
func NewGuard(cfg *config.RateLimitConfig) *Guard {
	g := &Guard{
		keys:         make(map[string]*keyState),
		minSpacing:   cfg.MinSpacing,
		window:       cfg.Window,
		maxPerWindow: cfg.MaxPerWindow,
		maxKeys:      cfg.MaxKeys,
		stopClean:    make(chan struct{}),
	}
	go g.startCleanup(10 * time.Minute)
	return g
}

// Admit checks whether a call for key may proceed now.
func (g *Guard) Admit(key string) Decision {
	return g.admitAt(key, time.Now())
}

// admitAt is the clock-injected admission check backing Admit.
func (g *Guard) admitAt(key string, now time.Time) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, exists := g.keys[key]
	if !exists {
		if g.maxKeys > 0 && len(g.keys) >= g.maxKeys {
			g.evictOldestLocked()
		}
		entry = &keyState{
			spacing: rate.NewLimiter(rate.Every(g.minSpacing), 1),
		}
		g.keys[key] = entry
	}
	entry.lastAccess = now

	// Prune admissions that have left the rolling window.
	cutoff := now.Add(-g.window)
	kept := entry.admissions[:0]
	for _, t := range entry.admissions {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	entry.admissions = kept

	if len(entry.admissions) >= g.maxPerWindow {
		retryAfter := entry.admissions[0].Add(g.window).Sub(now)
		metrics.GuardAdmissions.WithLabelValues("deny").Inc()
		return Decision{Outcome: OutcomeDeny, RetryAfter: retryAfter}
	}

	res := entry.spacing.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		// Spacing violation does not consume a window slot.
		res.CancelAt(now)
		metrics.GuardAdmissions.WithLabelValues("wait").Inc()
		return Decision{Outcome: OutcomeWait, RetryAfter: delay}
	}

	entry.admissions = append(entry.admissions, now)
	metrics.GuardAdmissions.WithLabelValues("proceed").Inc()
	return Decision{Outcome: OutcomeProceed}
}

// Acquire blocks until a call for key is admitted or fails fast. Wait
// decisions sleep and retry; Deny decisions return *DeniedError
// immediately. Context cancellation interrupts the sleep.
func (g *Guard) Acquire(ctx context.Context, key string) error {
	for {
		decision := g.Admit(key)
		switch decision.Outcome {
		case OutcomeProceed:
			return nil
		case OutcomeDeny:
			return &DeniedError{Key: key, RetryAfter: decision.RetryAfter}
		}

		timer := time.NewTimer(decision.RetryAfter)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// evictOldestLocked removes the least recently accessed key. Caller holds
// g.mu.
func (g *Guard) evictOldestLocked() {
	var oldestKey string
	var oldestAccess time.Time
	for key, entry := range g.keys {
		if oldestKey == "" || entry.lastAccess.Before(oldestAccess) {
			oldestKey = key
			oldestAccess = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(g.keys, oldestKey)
	}
}

// startCleanup periodically removes idle keys.
func (g *Guard) startCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.cleanup(time.Now())
		case <-g.stopClean:
			return
		}
	}
}

// cleanup removes keys idle for longer than one hour.
func (g *Guard) cleanup(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()

	threshold := now.Add(-1 * time.Hour)
	for key, entry := range g.keys {
		if entry.lastAccess.Before(threshold) {
			delete(g.keys, key)
		}
	}
}

// Stop stops the cleanup goroutine.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stopClean) })
}

// KeyCount returns the number of tracked keys.
func (g *Guard) KeyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.keys)
}
