// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package ingest

import (
	"net/url"
	"strings"

	"github.com/harborstay/harborstay/internal/models"
)

// resizePolicyParam is the query parameter the image CDN uses to encode its
// resize policy.
const resizePolicyParam = "aki_policy"

// resizePolicyLarge requests the large rendition from the CDN.
const resizePolicyLarge = "large"

// cdnHostSuffix identifies URLs on the image CDN whose paths and query
// strings encode resize policies.
const cdnHostSuffix = "muscache.com"

// NormalizeImages rewrites raw listing photos to their canonical
// high-resolution form and assigns stable positions. Pure and
// deterministic: position defaults to the input index, overridden by an
// explicit sort order when the upstream record carries one.
func NormalizeImages(photos []models.ListingPhoto) []models.NormalizedImage {
	images := make([]models.NormalizedImage, 0, len(photos))
	for i, photo := range photos {
		position := i
		if photo.SortOrder != nil {
			position = *photo.SortOrder
		}
		images = append(images, models.NormalizedImage{
			URL:      NormalizeImageURL(photo.URL),
			Caption:  photo.Caption,
			Position: position,
		})
	}
	return images
}

// NormalizeImageURL rewrites a CDN URL to its unscaled large form. URLs not
// on the known CDN, and unparseable URLs, pass through unchanged.
func NormalizeImageURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	if !strings.HasSuffix(parsed.Hostname(), cdnHostSuffix) {
		return rawURL
	}

	// "/im/pictures/..." is the CDN's resizing proxy path; dropping the
	// "/im" segment addresses the original asset.
	if strings.HasPrefix(parsed.Path, "/im/") {
		parsed.Path = strings.TrimPrefix(parsed.Path, "/im")
	}

	query := parsed.Query()
	query.Set(resizePolicyParam, resizePolicyLarge)
	parsed.RawQuery = query.Encode()

	return parsed.String()
}
