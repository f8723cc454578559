// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
upsert.go - Catalog Upsert Engine

Reconciles one upstream listing against the local catalog. Matching order:
canonical platform identifier, then the bare listing id (legacy rows), then
the slug derived from the display name. Mapped fields fully replace the
stored record on update; image fields and publication state are owned by
other paths and preserved.

Missing or malformed upstream fields never fail an upsert; they resolve
through defaulting rules.
*/

package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/harborstay/harborstay/internal/catalog"
	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/models"
)

// Field defaults applied when the upstream value is absent or empty.
const (
	defaultName        = "Unnamed Property"
	defaultDescription = "Beautiful property"
	defaultPrice       = 99
	defaultBedrooms    = 1
	defaultBathrooms   = 1
	defaultMaxGuests   = 2
	defaultMinNights   = 1
	defaultMaxNights   = 30
	defaultPlace       = "Unknown"
)

var (
	slugStripRe      = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespaceRe = regexp.MustCompile(`[\s_-]+`)
)

// Slugify derives a URL slug from a display name: lowercased, non-word
// characters stripped, whitespace collapsed to single hyphens.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugWhitespaceRe.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// UpsertEngine reconciles upstream listings into the catalog store.
type UpsertEngine struct {
	store *catalog.Store

	// nowFunc is swapped in tests for deterministic publish timestamps and
	// slug disambiguators.
	nowFunc func() time.Time
}

// NewUpsertEngine creates an engine over the given store.
func NewUpsertEngine(store *catalog.Store) *UpsertEngine {
	return &UpsertEngine{store: store, nowFunc: time.Now}
}

// Upsert reconciles listing (scoped under customerID) into the catalog and
// returns the stored property. When publish is set, the property is marked
// published with a fresh timestamp.
func (e *UpsertEngine) Upsert(ctx context.Context, listing *models.UpstreamListing, customerID string, publish bool) (*models.CatalogProperty, error) {
	platformID := CanonicalPlatformID(customerID, listing.ID)
	mapped := e.mapListing(listing, platformID)

	existing, err := e.findMatch(ctx, listing, platformID)
	if err != nil {
		return nil, err
	}

	now := e.nowFunc().UTC()

	if existing != nil {
		// Full replace of mapped fields; image fields, slug, publication
		// state, and provenance timestamps stay with the stored row.
		mapped.ID = existing.ID
		mapped.Slug = existing.Slug
		mapped.CreatedAt = existing.CreatedAt
		mapped.ImageURL = existing.ImageURL
		mapped.AdditionalImages = existing.AdditionalImages
		mapped.ImagesStoredAt = existing.ImagesStoredAt
		mapped.IsPublished = existing.IsPublished
		mapped.PublishedAt = existing.PublishedAt
		if publish {
			mapped.IsPublished = true
			mapped.PublishedAt = &now
		}

		if err := e.store.Update(ctx, mapped); err != nil {
			return nil, fmt.Errorf("update property %s: %w", platformID, err)
		}
		logging.Debug().Str("platform_id", platformID).Int64("id", mapped.ID).Msg("Property updated from upstream listing")
		return mapped, nil
	}

	if publish {
		mapped.IsPublished = true
		mapped.PublishedAt = &now
	}

	// Slug collisions on creation get a time-derived disambiguator instead
	// of failing the item.
	if _, err := e.store.FindBySlug(ctx, mapped.Slug); err == nil {
		mapped.Slug = fmt.Sprintf("%s-%06d", mapped.Slug, now.UnixNano()%1_000_000)
	} else if !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("check slug %q: %w", mapped.Slug, err)
	}

	if _, err := e.store.Create(ctx, mapped); err != nil {
		return nil, fmt.Errorf("create property %s: %w", platformID, err)
	}
	logging.Debug().Str("platform_id", platformID).Int64("id", mapped.ID).Str("slug", mapped.Slug).Msg("Property created from upstream listing")
	return mapped, nil
}

// findMatch locates the existing property for a listing, if any. A
// slug-derived candidate counts only when it is not already bound to a
// different upstream listing; otherwise creation proceeds and the slug
// collision is disambiguated there.
func (e *UpsertEngine) findMatch(ctx context.Context, listing *models.UpstreamListing, platformID string) (*models.CatalogProperty, error) {
	p, err := e.store.FindByPlatformID(ctx, platformID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("find by platform id: %w", err)
	}

	p, err = e.store.FindByListingID(ctx, listing.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("find by listing id: %w", err)
	}

	slug := Slugify(displayName(listing))
	p, err = e.store.FindBySlug(ctx, slug)
	if err == nil {
		if p.PlatformID == "" || p.PlatformID == platformID || p.PlatformID == listing.ID {
			return p, nil
		}
		return nil, nil
	}
	if !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("find by slug: %w", err)
	}
	return nil, nil
}

// displayName picks the listing's public name, falling back to the private
// name, then the fixed default.
func displayName(listing *models.UpstreamListing) string {
	if strings.TrimSpace(listing.Name) != "" {
		return listing.Name
	}
	if strings.TrimSpace(listing.PrivateName) != "" {
		return listing.PrivateName
	}
	return defaultName
}

// mapListing maps upstream fields onto a catalog property, applying
// defaulting rules independently per field. The upstream value always wins
// when present and non-empty.
func (e *UpsertEngine) mapListing(listing *models.UpstreamListing, platformID string) *models.CatalogProperty {
	name := displayName(listing)

	description := strings.TrimSpace(listing.Description)
	if description == "" {
		description = defaultDescription
	}

	price := listing.Price
	if price <= 0 {
		price = defaultPrice
	}

	bedrooms := listing.Bedrooms
	if bedrooms <= 0 {
		bedrooms = defaultBedrooms
	}
	bathrooms := listing.Bathrooms
	if bathrooms <= 0 {
		bathrooms = defaultBathrooms
	}
	maxGuests := listing.PersonCapacity
	if maxGuests <= 0 {
		maxGuests = defaultMaxGuests
	}
	beds := listing.BedsNumber
	if beds <= 0 {
		beds = bedrooms
	}

	minNights := listing.MinNights
	if minNights <= 0 {
		minNights = defaultMinNights
	}
	maxNights := listing.MaxNights
	if maxNights <= 0 {
		maxNights = defaultMaxNights
	}

	city := strings.TrimSpace(listing.City)
	if city == "" {
		city = defaultPlace
	}
	country := strings.TrimSpace(listing.Country)
	if country == "" {
		country = defaultPlace
	}

	amenities := listing.Amenities
	if amenities == nil {
		amenities = []string{}
	}

	return &models.CatalogProperty{
		Name:        name,
		Title:       name,
		Slug:        Slugify(name),
		Description: description,
		Price:       price,

		Address:   listing.Address,
		City:      city,
		State:     listing.State,
		Country:   country,
		Location:  joinLocation(city, listing.State, country),
		Latitude:  listing.Latitude,
		Longitude: listing.Longitude,

		Bedrooms:  bedrooms,
		Bathrooms: bathrooms,
		MaxGuests: maxGuests,
		Capacity: models.Capacity{
			Guests:    maxGuests,
			Bedrooms:  bedrooms,
			Beds:      beds,
			Bathrooms: bathrooms,
		},

		Amenities:  amenities,
		HouseRules: listing.HouseRules,

		CheckInTime:  listing.CheckInTime,
		CheckOutTime: listing.CheckOutTime,
		MinNights:    minNights,
		MaxNights:    maxNights,

		MetaTitle:       name,
		MetaDescription: truncate(description, 160),
		Keywords:        name + ", " + city + ", vacation rental",

		IsActive: true,

		PlatformID:   platformID,
		PlatformType: models.PlatformTypeHostaway,
		ExternalID:   listing.ID,
	}
}

// joinLocation builds the display location label, collapsing empty
// segments.
func joinLocation(segments ...string) string {
	var kept []string
	for _, s := range segments {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, ", ")
}

// truncate shortens s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
