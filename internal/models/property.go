// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package models

import "time"

// PlatformTypeHostaway is the provenance value recorded for properties
// imported from the upstream property-management API.
const PlatformTypeHostaway = "hostaway"

// CatalogProperty is a locally persisted rental property record. Properties
// are created by the upsert engine on first import of an upstream listing,
// fully overwritten on subsequent imports, and soft-deleted (IsActive=false)
// rather than physically removed.
//
// Invariants:
//   - PlatformID is globally unique: at most one property owns a given
//     platform identifier at any time.
//   - Image ordering: ImageURL is position 0; AdditionalImages[i] is
//     position i+1, with no gaps.
//
// ImagesStoredAt is set only by the image-ingestion path, independent of the
// general UpdatedAt touch.
type CatalogProperty struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Slug  string `json:"slug"`

	Description string  `json:"description"`
	Price       float64 `json:"price"`

	ImageURL         string   `json:"imageUrl"`
	AdditionalImages []string `json:"additionalImages"`

	Address   string  `json:"address"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`

	Bedrooms  int      `json:"bedrooms"`
	Bathrooms float64  `json:"bathrooms"`
	MaxGuests int      `json:"maxGuests"`
	Capacity  Capacity `json:"capacity"`

	Amenities  []string `json:"amenities"`
	HouseRules string   `json:"houseRules"`

	CheckInTime  string `json:"checkInTime"`
	CheckOutTime string `json:"checkOutTime"`
	MinNights    int    `json:"minNights"`
	MaxNights    int    `json:"maxNights"`

	MetaTitle       string `json:"metaTitle"`
	MetaDescription string `json:"metaDescription"`
	Keywords        string `json:"keywords"`

	IsPublished bool       `json:"isPublished"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	IsActive    bool       `json:"isActive"`

	// Provenance
	PlatformID     string     `json:"platformId"`
	PlatformType   string     `json:"platformType"`
	ExternalID     string     `json:"externalId"`
	ImagesStoredAt *time.Time `json:"imagesStoredAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Capacity is the structured capacity breakdown of a property.
type Capacity struct {
	Guests    int     `json:"guests"`
	Bedrooms  int     `json:"bedrooms"`
	Beds      int     `json:"beds"`
	Bathrooms float64 `json:"bathrooms"`
}

// NormalizedImage is a processed listing photo with its canonical
// high-resolution URL and a stable position. Position 0 is the primary
// image.
type NormalizedImage struct {
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
	Position int    `json:"position"`
}
