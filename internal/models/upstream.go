// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package models

// UpstreamListing is a listing record as returned by the upstream
// property-management API. Read-only to this system; the catalog upsert
// engine maps it onto a CatalogProperty with defaulting rules.
type UpstreamListing struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PrivateName string `json:"internalListingName,omitempty"`
	Description string `json:"description"`

	Price float64 `json:"price"`

	Address   string  `json:"address"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`

	Bedrooms       int     `json:"bedroomsNumber"`
	Bathrooms      float64 `json:"bathroomsNumber"`
	PersonCapacity int     `json:"personCapacity"`
	BedsNumber     int     `json:"bedsNumber"`

	Amenities  []string `json:"amenities"`
	HouseRules string   `json:"houseRules"`

	CheckInTime  string `json:"checkInTimeStart"`
	CheckOutTime string `json:"checkOutTime"`
	MinNights    int    `json:"minNights"`
	MaxNights    int    `json:"maxNights"`

	// Photos is the ordered photo collection. Some upstream API versions
	// expose photos only here, others only via the dedicated images
	// endpoint.
	Photos []ListingPhoto `json:"listingImages,omitempty"`
}

// ListingPhoto is a raw photo entry from the upstream API. SortOrder is
// optional; when present it overrides input-order position assignment during
// normalization.
type ListingPhoto struct {
	URL       string `json:"url"`
	Caption   string `json:"caption,omitempty"`
	SortOrder *int   `json:"sortOrder,omitempty"`
}
