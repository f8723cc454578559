// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harborstay/harborstay/internal/config"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g := NewGuard(&config.RateLimitConfig{
		MinSpacing:   5 * time.Second,
		Window:       60 * time.Second,
		MaxPerWindow: 5,
		MaxKeys:      100,
	})
	t.Cleanup(g.Stop)
	return g
}

func TestFirstAdmissionProceeds(t *testing.T) {
	g := newTestGuard(t)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	d := g.admitAt("cust-1/101", now)
	if d.Outcome != OutcomeProceed {
		t.Errorf("first admission = %v, want proceed", d.Outcome)
	}
}

func TestSpacingViolationYieldsWait(t *testing.T) {
	g := newTestGuard(t)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	if d := g.admitAt("k", now); d.Outcome != OutcomeProceed {
		t.Fatalf("first admission = %v, want proceed", d.Outcome)
	}

	d := g.admitAt("k", now.Add(2*time.Second))
	if d.Outcome != OutcomeWait {
		t.Fatalf("second admission after 2s = %v, want wait", d.Outcome)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 3*time.Second {
		t.Errorf("RetryAfter = %v, want in (0, 3s]", d.RetryAfter)
	}

	// After the advised wait the call goes through.
	if d := g.admitAt("k", now.Add(2*time.Second).Add(d.RetryAfter)); d.Outcome != OutcomeProceed {
		t.Errorf("admission after advised wait = %v, want proceed", d.Outcome)
	}
}

func TestRollingWindowAdmitsExactlyFive(t *testing.T) {
	g := newTestGuard(t)
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	// Six spacing-compliant requests inside one 60s window.
	offsets := []time.Duration{0, 11 * time.Second, 22 * time.Second,
		33 * time.Second, 44 * time.Second, 55 * time.Second}

	var proceeds, denies int
	var denyRetry time.Duration
	for _, off := range offsets {
		d := g.admitAt("cust-1/101", base.Add(off))
		switch d.Outcome {
		case OutcomeProceed:
			proceeds++
		case OutcomeDeny:
			denies++
			denyRetry = d.RetryAfter
		default:
			t.Fatalf("admission at +%v = %v, want proceed or deny", off, d.Outcome)
		}
	}

	if proceeds != 5 {
		t.Errorf("proceeds = %d, want 5", proceeds)
	}
	if denies != 1 {
		t.Errorf("denies = %d, want 1", denies)
	}
	// Sixth request at +55s; oldest admission leaves the window at +60s.
	if denyRetry != 5*time.Second {
		t.Errorf("deny RetryAfter = %v, want 5s", denyRetry)
	}
}

func TestWindowSlotFreesAfterExpiry(t *testing.T) {
	g := newTestGuard(t)
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if d := g.admitAt("k", base.Add(time.Duration(i)*11*time.Second)); d.Outcome != OutcomeProceed {
			t.Fatalf("admission %d = %v, want proceed", i, d.Outcome)
		}
	}
	if d := g.admitAt("k", base.Add(55*time.Second)); d.Outcome != OutcomeDeny {
		t.Fatalf("sixth admission = %v, want deny", d.Outcome)
	}

	// 61s after the first admission its slot has left the window.
	if d := g.admitAt("k", base.Add(61*time.Second)); d.Outcome != OutcomeProceed {
		t.Errorf("admission after window expiry = %v, want proceed", d.Outcome)
	}
}

func TestWaitDoesNotConsumeWindowSlot(t *testing.T) {
	g := newTestGuard(t)
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	if d := g.admitAt("k", base); d.Outcome != OutcomeProceed {
		t.Fatalf("first admission = %v, want proceed", d.Outcome)
	}

	// Hammer the key inside the spacing interval. None of these consume
	// window capacity.
	for i := 1; i <= 10; i++ {
		if d := g.admitAt("k", base.Add(time.Duration(i)*100*time.Millisecond)); d.Outcome != OutcomeWait {
			t.Fatalf("rapid admission %d = %v, want wait", i, d.Outcome)
		}
	}

	// Four more spaced admissions still fit in the window.
	for i := 1; i <= 4; i++ {
		if d := g.admitAt("k", base.Add(time.Duration(i)*11*time.Second)); d.Outcome != OutcomeProceed {
			t.Errorf("spaced admission %d = %v, want proceed", i, d.Outcome)
		}
	}
}

func TestKeysAreIndependent(t *testing.T) {
	g := newTestGuard(t)
	now := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	if d := g.admitAt("cust-1/101", now); d.Outcome != OutcomeProceed {
		t.Fatalf("key A = %v, want proceed", d.Outcome)
	}
	// A different key is unaffected by key A's spacing.
	if d := g.admitAt("cust-1/102", now.Add(time.Second)); d.Outcome != OutcomeProceed {
		t.Errorf("key B = %v, want proceed", d.Outcome)
	}
}

func TestAcquireDenyReturnsDeniedError(t *testing.T) {
	g := newTestGuard(t)

	// Seed five recent admissions against the wall clock so the real-clock
	// Acquire sees an exhausted window.
	now := time.Now()
	for i := 0; i < 5; i++ {
		if d := g.admitAt("k", now.Add(time.Duration(i-5)*6*time.Second)); d.Outcome != OutcomeProceed {
			t.Fatalf("seed admission %d = %v, want proceed", i, d.Outcome)
		}
	}

	err := g.Acquire(context.Background(), "k")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("Acquire() error = %v, want *DeniedError", err)
	}
	if denied.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want > 0", denied.RetryAfter)
	}
}

func TestAcquireRespectsContextCancellation(t *testing.T) {
	g := newTestGuard(t)

	if err := g.Acquire(context.Background(), "k"); err != nil {
		t.Fatalf("first Acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Second immediate call must wait ~5s for spacing; the context expires
	// first.
	err := g.Acquire(ctx, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestMaxKeysEvictsOldest(t *testing.T) {
	g := NewGuard(&config.RateLimitConfig{
		MinSpacing:   5 * time.Second,
		Window:       60 * time.Second,
		MaxPerWindow: 5,
		MaxKeys:      3,
	})
	t.Cleanup(g.Stop)

	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	for i, key := range []string{"a", "b", "c", "d"} {
		g.admitAt(key, base.Add(time.Duration(i)*time.Second))
	}

	if n := g.KeyCount(); n != 3 {
		t.Errorf("KeyCount() = %d, want 3", n)
	}
}

func TestCleanupRemovesIdleKeys(t *testing.T) {
	g := newTestGuard(t)
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	g.admitAt("idle", base)
	g.admitAt("fresh", base.Add(2*time.Hour))
	g.cleanup(base.Add(2 * time.Hour))

	if n := g.KeyCount(); n != 1 {
		t.Errorf("KeyCount() after cleanup = %d, want 1", n)
	}
}
