// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
images.go - Image Fetch and Ingestion Path

The read path serves images through three tiers: the persisted catalog
copy, the in-memory cache, and finally the upstream API behind the
rate-limit guard. A force-refresh request bypasses both cache tiers.
When the guard refuses admission or the upstream call fails, a stale
memory-cache entry is served rather than failing the read.

Upstream fetches are deduplicated with singleflight so concurrent requests
for the same key admit exactly one upstream call instead of each burning a
rate-limit window slot.

Ingestion persists a fetched image set onto the owning property: position 0
becomes the primary image URL, the remainder become the ordered additional
images, and the image-storage timestamp is stamped separately from the
general update timestamp.
*/

package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/harborstay/harborstay/internal/catalog"
	"github.com/harborstay/harborstay/internal/imagecache"
	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/metrics"
	"github.com/harborstay/harborstay/internal/models"
	"github.com/harborstay/harborstay/internal/ratelimit"
	"github.com/harborstay/harborstay/internal/upstream"
)

// ErrUnknownCustomer is returned when ingestion is requested for a legacy
// bare identifier whose customer id is unresolved.
var ErrUnknownCustomer = errors.New("customer id unknown, cannot fetch images")

// ErrNoImages is returned when upstream has no images for the listing.
var ErrNoImages = errors.New("no images found for listing")

// RateLimitedError is returned by the image read path when the guard
// refuses admission and no cached data can serve the request.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("image fetch rate limited, retry after %s", e.RetryAfter)
}

// ImageSet is a fetch result with its serving tier.
type ImageSet struct {
	Images []models.NormalizedImage
	// Cached is true when the set came from the catalog or memory tier.
	Cached bool
}

// ImageService implements the tiered image read path and property image
// ingestion.
type ImageService struct {
	client upstream.Client
	guard  *ratelimit.Guard
	cache  *imagecache.Cache
	store  *catalog.Store

	// flight deduplicates concurrent upstream fetches per key.
	flight singleflight.Group

	nowFunc func() time.Time
}

// NewImageService wires the image path.
func NewImageService(client upstream.Client, guard *ratelimit.Guard, cache *imagecache.Cache, store *catalog.Store) *ImageService {
	return &ImageService{
		client:  client,
		guard:   guard,
		cache:   cache,
		store:   store,
		nowFunc: time.Now,
	}
}

// GetImages serves the image set for a customer/listing pair. refresh
// bypasses both cache tiers and always consults upstream.
func (s *ImageService) GetImages(ctx context.Context, ids PropertyIDs, refresh bool) (*ImageSet, error) {
	key := ids.CacheKey()

	if !refresh {
		// Tier 1: a catalog property already holding images is an
		// authoritative hit with no upstream cost.
		if property := s.findProperty(ctx, ids); property != nil && property.ImageURL != "" {
			metrics.ImageCacheHits.WithLabelValues("catalog").Inc()
			return &ImageSet{Images: propertyImages(property), Cached: true}, nil
		}

		// Tier 2: in-memory cache.
		if images, ok := s.cache.Get(key); ok {
			return &ImageSet{Images: images, Cached: true}, nil
		}
	}

	// Tier 3: upstream, behind the guard.
	decision := s.guard.Admit(key)
	if decision.Outcome != ratelimit.OutcomeProceed {
		// Stale-but-present cache beats waiting out the limiter.
		if !refresh {
			if images, ok := s.cache.GetStale(key); ok {
				return &ImageSet{Images: images, Cached: true}, nil
			}
		}
		return nil, &RateLimitedError{RetryAfter: decision.RetryAfter}
	}

	images, err := s.fetchUpstream(ctx, ids)
	if err != nil {
		if !refresh {
			if stale, ok := s.cache.GetStale(key); ok {
				logging.Warn().Err(err).Str("key", key).Msg("Upstream fetch failed, serving stale cached images")
				return &ImageSet{Images: stale, Cached: true}, nil
			}
		}
		return nil, err
	}

	// Persist onto the owning property so the catalog tier serves future
	// reads.
	if property := s.findProperty(ctx, ids); property != nil {
		if err := s.persistImages(ctx, property.ID, images); err != nil {
			logging.Warn().Err(err).Str("key", key).Msg("Failed to persist fetched images to catalog")
		}
	}

	return &ImageSet{Images: images}, nil
}

// IngestForProperty fetches, normalizes, and persists images for one
// catalog property. The guard is honored with blocking waits since callers
// are batch flows, not interactive requests.
func (s *ImageService) IngestForProperty(ctx context.Context, property *models.CatalogProperty) (int, error) {
	ids, err := ExtractPropertyIDs(property.PlatformID)
	if err != nil {
		return 0, err
	}
	if !ids.HasCustomer() {
		return 0, ErrUnknownCustomer
	}

	if err := s.guard.Acquire(ctx, ids.CacheKey()); err != nil {
		return 0, err
	}

	images, err := s.fetchUpstream(ctx, ids)
	if err != nil {
		return 0, err
	}

	if err := s.persistImages(ctx, property.ID, images); err != nil {
		return 0, err
	}

	metrics.ImportImageIngestions.WithLabelValues("stored").Inc()
	return len(images), nil
}

// FetchAndStore performs on-demand ingestion for one property given an
// explicit platform identifier, returning the image count and the reloaded
// property.
func (s *ImageService) FetchAndStore(ctx context.Context, propertyID int64, platformID string) (int, *models.CatalogProperty, error) {
	ids, err := ExtractPropertyIDs(platformID)
	if err != nil {
		return 0, nil, err
	}
	if !ids.HasCustomer() {
		return 0, nil, ErrUnknownCustomer
	}

	if err := s.guard.Acquire(ctx, ids.CacheKey()); err != nil {
		return 0, nil, err
	}

	images, err := s.fetchUpstream(ctx, ids)
	if err != nil {
		return 0, nil, err
	}
	if err := s.persistImages(ctx, propertyID, images); err != nil {
		return 0, nil, err
	}

	property, err := s.store.FindByID(ctx, propertyID)
	if err != nil {
		return 0, nil, err
	}
	return len(images), property, nil
}

// fetchUpstream performs the deduplicated fetch-and-normalize for a key and
// stores the result in the memory cache.
func (s *ImageService) fetchUpstream(ctx context.Context, ids PropertyIDs) ([]models.NormalizedImage, error) {
	key := ids.CacheKey()

	result, err, shared := s.flight.Do(key, func() (interface{}, error) {
		photos, err := s.client.FetchListingImages(ctx, ids.CustomerID, ids.ListingID)
		if err != nil {
			return nil, err
		}
		images := NormalizeImages(photos)
		if len(images) == 0 {
			return nil, ErrNoImages
		}
		s.cache.Put(key, images)
		return images, nil
	})
	if err != nil {
		if upstream.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoImages, key)
		}
		return nil, err
	}
	if shared {
		logging.Debug().Str("key", key).Msg("Upstream image fetch shared across concurrent callers")
	}
	return result.([]models.NormalizedImage), nil
}

// persistImages writes an image set onto a property: position 0 is the
// primary image, the rest are the ordered additional images.
func (s *ImageService) persistImages(ctx context.Context, propertyID int64, images []models.NormalizedImage) error {
	if len(images) == 0 {
		return ErrNoImages
	}

	additional := make([]string, 0, len(images)-1)
	for _, img := range images[1:] {
		additional = append(additional, img.URL)
	}

	return s.store.UpdateImages(ctx, propertyID, images[0].URL, additional, s.nowFunc().UTC())
}

// findProperty resolves a property by canonical platform id, falling back
// to a bare listing-id match for legacy rows. Misses are not errors here.
func (s *ImageService) findProperty(ctx context.Context, ids PropertyIDs) *models.CatalogProperty {
	property, err := s.store.FindByPlatformID(ctx, ids.CacheKey())
	if err == nil {
		return property
	}
	property, err = s.store.FindByListingID(ctx, ids.ListingID)
	if err == nil {
		return property
	}
	return nil
}

// propertyImages rebuilds the ordered image set from a property's stored
// fields.
func propertyImages(p *models.CatalogProperty) []models.NormalizedImage {
	images := make([]models.NormalizedImage, 0, len(p.AdditionalImages)+1)
	images = append(images, models.NormalizedImage{URL: p.ImageURL, Position: 0})
	for i, u := range p.AdditionalImages {
		images = append(images, models.NormalizedImage{URL: u, Position: i + 1})
	}
	return images
}

// StockImages is the fixed fallback image set served when upstream data is
// unavailable so property pages always render.
func StockImages() []models.NormalizedImage {
	return []models.NormalizedImage{
		{URL: "https://images.unsplash.com/photo-1564013799919-ab600027ffc6?w=1200", Position: 0},
		{URL: "https://images.unsplash.com/photo-1505843513577-22bb7d21e455?w=1200", Position: 1},
		{URL: "https://images.unsplash.com/photo-1512917774080-9991f1c4c750?w=1200", Position: 2},
	}
}
