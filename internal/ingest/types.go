// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package ingest

import "time"

// ItemState tracks one listing through an import or publish run.
//
// Transitions: Fetched -> Created|Updated -> ImagesPending ->
// ImagesStored|ImagesSkipped. A terminal failure at any stage moves the
// item to Failed without affecting sibling items.
type ItemState string

const (
	StateFetched       ItemState = "fetched"
	StateCreated       ItemState = "created"
	StateUpdated       ItemState = "updated"
	StateImagesPending ItemState = "images_pending"
	StateImagesStored  ItemState = "images_stored"
	StateImagesSkipped ItemState = "images_skipped"
	StateFailed        ItemState = "failed"
)

// ItemResult is the per-listing outcome of a run.
type ItemResult struct {
	PlatformID string    `json:"platformId"`
	State      ItemState `json:"state"`
	Error      string    `json:"error,omitempty"`
	ImageCount int       `json:"imageCount,omitempty"`
}

// RunStats summarizes an import or publish run. RunID correlates the log
// lines of one run.
type RunStats struct {
	RunID         string       `json:"runId"`
	Operation     string       `json:"operation"`
	CustomerID    string       `json:"customerId"`
	Total         int          `json:"total"`
	Succeeded     int          `json:"succeeded"`
	Failed        int          `json:"failed"`
	ImagesStored  int          `json:"imagesStored"`
	ImagesSkipped int          `json:"imagesSkipped"`
	StartedAt     time.Time    `json:"startedAt"`
	Duration      string       `json:"duration"`
	Items         []ItemResult `json:"items"`
}
