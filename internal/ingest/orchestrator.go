// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
orchestrator.go - Batch Import Orchestrator

Drives the two bulk entry operations:

  - ImportAll: fetch every upstream listing for a customer and upsert each
    without publishing.
  - PublishSelected: upsert the requested listings with the publish flag,
    then ingest their images in small sequential batches with fixed delays
    so the upstream provider's rate limits are respected.

Single-item failures are isolated: the failing item is logged and marked
failed, siblings continue. Every upsert is idempotent, so an abandoned run
converges on re-execution.
*/

package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/metrics"
	"github.com/harborstay/harborstay/internal/models"
	"github.com/harborstay/harborstay/internal/upstream"
)

// ErrNoListings is returned when the upstream listing set for a customer
// comes back empty (or none of the selected ids exist).
var ErrNoListings = errors.New("no properties found")

// Orchestrator runs bulk import and publish operations.
type Orchestrator struct {
	client   upstream.Client
	engine   *UpsertEngine
	images   *ImageService
	progress Tracker

	batchSize  int
	batchDelay time.Duration
	itemDelay  time.Duration
}

// NewOrchestrator wires a batch orchestrator.
func NewOrchestrator(client upstream.Client, engine *UpsertEngine, images *ImageService, progress Tracker, cfg *config.IngestConfig) *Orchestrator {
	batchSize := cfg.ImageBatchSize
	if batchSize <= 0 {
		batchSize = 2
	}
	return &Orchestrator{
		client:     client,
		engine:     engine,
		images:     images,
		progress:   progress,
		batchSize:  batchSize,
		batchDelay: cfg.BatchDelay,
		itemDelay:  cfg.ItemDelay,
	}
}

// ImportAll imports every upstream listing for a customer. Listings are
// processed in upstream order; a failing item is skipped, not fatal.
func (o *Orchestrator) ImportAll(ctx context.Context, customerID string) ([]models.CatalogProperty, *RunStats, error) {
	start := time.Now()

	listings, err := o.client.ListCustomerListings(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	if len(listings) == 0 {
		return nil, nil, ErrNoListings
	}

	stats := &RunStats{
		RunID:      uuid.NewString(),
		Operation:  "import",
		CustomerID: customerID,
		Total:      len(listings),
		StartedAt:  start.UTC(),
	}

	properties := o.upsertAll(ctx, listings, customerID, false, stats)

	stats.Duration = time.Since(start).String()
	metrics.ImportDuration.WithLabelValues("import").Observe(time.Since(start).Seconds())
	logging.Info().
		Str("run_id", stats.RunID).
		Str("customer_id", customerID).
		Int("total", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Msg("Import run complete")

	return properties, stats, nil
}

// PublishSelected publishes the requested listings and then ingests their
// images in fixed-size batches. Properties lacking a resolvable customer id
// stay published with images skipped.
func (o *Orchestrator) PublishSelected(ctx context.Context, customerID string, listingIDs []string) ([]models.CatalogProperty, *RunStats, error) {
	start := time.Now()

	listings, err := o.client.ListCustomerListings(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}

	selected := filterListings(listings, listingIDs)
	if len(selected) == 0 {
		return nil, nil, ErrNoListings
	}

	stats := &RunStats{
		RunID:      uuid.NewString(),
		Operation:  "publish",
		CustomerID: customerID,
		Total:      len(selected),
		StartedAt:  start.UTC(),
	}

	properties := o.upsertAll(ctx, selected, customerID, true, stats)

	o.ingestImageBatches(ctx, properties, stats)

	stats.Duration = time.Since(start).String()
	metrics.ImportDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
	logging.Info().
		Str("run_id", stats.RunID).
		Str("customer_id", customerID).
		Int("total", stats.Total).
		Int("succeeded", stats.Succeeded).
		Int("failed", stats.Failed).
		Int("images_stored", stats.ImagesStored).
		Int("images_skipped", stats.ImagesSkipped).
		Msg("Publish run complete")

	return properties, stats, nil
}

// upsertAll runs the upsert engine over each listing with per-item failure
// isolation, appending outcomes to stats.
func (o *Orchestrator) upsertAll(ctx context.Context, listings []models.UpstreamListing, customerID string, publish bool, stats *RunStats) []models.CatalogProperty {
	operation := stats.Operation
	properties := make([]models.CatalogProperty, 0, len(listings))

	for i := range listings {
		listing := &listings[i]
		platformID := CanonicalPlatformID(customerID, listing.ID)
		o.progress.Record(platformID, StateFetched, "")

		property, err := o.engine.Upsert(ctx, listing, customerID, publish)
		if err != nil {
			o.progress.Record(platformID, StateFailed, err.Error())
			stats.Failed++
			stats.Items = append(stats.Items, ItemResult{
				PlatformID: platformID,
				State:      StateFailed,
				Error:      err.Error(),
			})
			metrics.ImportItems.WithLabelValues(operation, "failed").Inc()
			logging.Error().Err(err).Str("platform_id", platformID).Msg("Upsert failed, continuing with next listing")
			continue
		}

		state := StateUpdated
		outcome := "updated"
		if property.CreatedAt.Equal(property.UpdatedAt) {
			state = StateCreated
			outcome = "created"
		}
		o.progress.Record(platformID, state, "")
		stats.Succeeded++
		stats.Items = append(stats.Items, ItemResult{PlatformID: platformID, State: state})
		metrics.ImportItems.WithLabelValues(operation, outcome).Inc()

		properties = append(properties, *property)
	}

	return properties
}

// ingestImageBatches drives image ingestion in strict sequential batches:
// batchDelay between batches, itemDelay between properties in a batch.
// Per-property failures are logged and skipped.
func (o *Orchestrator) ingestImageBatches(ctx context.Context, properties []models.CatalogProperty, stats *RunStats) {
	for batchStart := 0; batchStart < len(properties); batchStart += o.batchSize {
		if batchStart > 0 {
			if !sleepContext(ctx, o.batchDelay) {
				logging.Warn().Msg("Publish run abandoned during inter-batch delay")
				return
			}
		}

		batchEnd := batchStart + o.batchSize
		if batchEnd > len(properties) {
			batchEnd = len(properties)
		}

		for i := batchStart; i < batchEnd; i++ {
			if i > batchStart {
				if !sleepContext(ctx, o.itemDelay) {
					logging.Warn().Msg("Publish run abandoned during intra-batch delay")
					return
				}
			}
			o.ingestPropertyImages(ctx, &properties[i], stats)
		}
	}
}

// ingestPropertyImages ingests one property's images, recording the outcome
// without failing the batch.
func (o *Orchestrator) ingestPropertyImages(ctx context.Context, property *models.CatalogProperty, stats *RunStats) {
	o.progress.Record(property.PlatformID, StateImagesPending, "")

	ids, err := ExtractPropertyIDs(property.PlatformID)
	if err != nil || !ids.HasCustomer() {
		// Legacy bare identifiers cannot be fetched; the property stays
		// published without images.
		o.progress.Record(property.PlatformID, StateImagesSkipped, "customer id unknown")
		stats.ImagesSkipped++
		setItemState(stats, property.PlatformID, StateImagesSkipped, 0)
		metrics.ImportImageIngestions.WithLabelValues("skipped").Inc()
		logging.Warn().Str("platform_id", property.PlatformID).Msg("Skipping image ingestion, customer id unresolved")
		return
	}

	count, err := o.images.IngestForProperty(ctx, property)
	if err != nil {
		o.progress.Record(property.PlatformID, StateImagesSkipped, err.Error())
		stats.ImagesSkipped++
		setItemState(stats, property.PlatformID, StateImagesSkipped, 0)
		metrics.ImportImageIngestions.WithLabelValues("failed").Inc()
		logging.Warn().Err(err).Str("platform_id", property.PlatformID).Msg("Image ingestion failed, property remains published")
		return
	}

	o.progress.Record(property.PlatformID, StateImagesStored, "")
	stats.ImagesStored++
	setItemState(stats, property.PlatformID, StateImagesStored, count)
}

// setItemState updates the stats entry for a platform id in place.
func setItemState(stats *RunStats, platformID string, state ItemState, imageCount int) {
	for i := range stats.Items {
		if stats.Items[i].PlatformID == platformID {
			stats.Items[i].State = state
			stats.Items[i].ImageCount = imageCount
			return
		}
	}
}

// filterListings keeps the listings whose ids appear in wanted, preserving
// upstream order.
func filterListings(listings []models.UpstreamListing, wanted []string) []models.UpstreamListing {
	wantedSet := make(map[string]struct{}, len(wanted))
	for _, id := range wanted {
		wantedSet[id] = struct{}{}
	}

	var selected []models.UpstreamListing
	for _, listing := range listings {
		if _, ok := wantedSet[listing.ID]; ok {
			selected = append(selected, listing)
		}
	}
	return selected
}

// sleepContext sleeps for d, returning false if the context is cancelled
// first.
func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
