// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package upstream

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the upstream API error taxonomy.
var (
	// ErrNotFound indicates the listing or image resource is absent
	// upstream. Callers fall back (alternate endpoint, cached data, stock
	// images) rather than propagating this to end users.
	ErrNotFound = errors.New("upstream resource not found")

	// ErrRateLimited indicates the upstream API rejected the call due to
	// rate limiting (HTTP 429 or message-body heuristics).
	ErrRateLimited = errors.New("upstream rate limited")
)

// StatusError is returned for non-2xx, non-404 upstream responses. The
// upstream status and body are attached for diagnostics and surfaced to the
// caller as a 5xx.
type StatusError struct {
	Operation string
	Status    int
	Body      string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d: %s", e.Operation, e.Status, e.Body)
}

// IsNotFound reports whether err represents an upstream not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRateLimited reports whether err represents upstream rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// looksRateLimited applies message-body heuristics for providers that signal
// rate limiting with a 200-family or 5xx body instead of HTTP 429.
func looksRateLimited(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests")
}
