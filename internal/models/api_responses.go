// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package models

import "time"

// APIResponse is the standardized envelope used by all HTTP endpoints.
//
// Status is "success" or "error". Data carries the payload; Error is
// populated only on failure.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError represents a structured error payload.
//
// Common codes: VALIDATION_ERROR, IDENTIFIER_FORMAT_ERROR, NOT_FOUND,
// RATE_LIMITED, UPSTREAM_ERROR, CREDENTIAL_MISSING, DATABASE_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ImageSetResponse is the payload of the property image read endpoint.
// Fallback marks the fixed stock image set served when upstream data is
// unavailable, so clients can render without error handling.
type ImageSetResponse struct {
	Data       []NormalizedImage `json:"data"`
	Fallback   bool              `json:"fallback,omitempty"`
	Cached     bool              `json:"cached,omitempty"`
	RetryAfter int               `json:"retryAfter,omitempty"`
}
