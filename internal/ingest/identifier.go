// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package ingest

import (
	"fmt"
	"strings"
)

// PropertyIDs is the parsed form of a platform identifier. CustomerID is
// empty for the legacy bare form, meaning the upstream customer is unknown.
type PropertyIDs struct {
	CustomerID string
	ListingID  string
}

// HasCustomer reports whether the upstream customer is known.
func (p PropertyIDs) HasCustomer() bool {
	return p.CustomerID != ""
}

// CacheKey returns the canonical key used by the image cache and rate-limit
// guard.
func (p PropertyIDs) CacheKey() string {
	if !p.HasCustomer() {
		return p.ListingID
	}
	return p.CustomerID + "/" + p.ListingID
}

// IdentifierFormatError reports a platform identifier that does not parse
// into customer and listing parts. The received value is echoed for
// diagnostics.
type IdentifierFormatError struct {
	Value string
}

func (e *IdentifierFormatError) Error() string {
	return fmt.Sprintf("invalid platform identifier %q", e.Value)
}

// CanonicalPlatformID builds the canonical "{customerId}/{listingId}"
// identifier. The ":" separator is legacy and never written.
func CanonicalPlatformID(customerID, listingID string) string {
	if customerID == "" {
		return listingID
	}
	return customerID + "/" + listingID
}

// ExtractPropertyIDs parses a platform identifier. Both "/" and ":"
// separators are accepted; a value with neither is the legacy bare form,
// interpreted as a listing id with unknown customer.
func ExtractPropertyIDs(platformID string) (PropertyIDs, error) {
	trimmed := strings.TrimSpace(platformID)
	if trimmed == "" {
		return PropertyIDs{}, &IdentifierFormatError{Value: platformID}
	}

	sep := "/"
	if !strings.Contains(trimmed, "/") {
		if strings.Contains(trimmed, ":") {
			sep = ":"
		} else {
			return PropertyIDs{ListingID: trimmed}, nil
		}
	}

	parts := strings.SplitN(trimmed, sep, 2)
	customerID := strings.TrimSpace(parts[0])
	listingID := strings.TrimSpace(parts[1])
	if customerID == "" || listingID == "" {
		return PropertyIDs{}, &IdentifierFormatError{Value: platformID}
	}
	return PropertyIDs{CustomerID: customerID, ListingID: listingID}, nil
}
