// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

// Package ingest implements the upstream-sync and image-ingestion
// pipeline: platform identifier parsing, image URL normalization, the
// catalog upsert engine, the tiered image read path, and the batch
// orchestrator that drives bulk import and publish runs.
package ingest
