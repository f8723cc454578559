// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
client.go - Upstream Property-Management API Client

This file implements a REST client for the upstream vacation-rental
management API. It provides methods to fetch customer listings, listing
details, and listing photo collections.

All calls carry the platform-level bearer credential. Non-2xx responses
other than 404 map to *StatusError; 404 maps to ErrNotFound; HTTP 429 and
body heuristics map to ErrRateLimited.
*/

package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/metrics"
	"github.com/harborstay/harborstay/internal/models"
)

// Client defines the interface for upstream API operations. Both HTTPClient
// and BreakerClient implement this interface.
type Client interface {
	// ListCustomerListings returns every listing scoped under the given
	// upstream customer id.
	ListCustomerListings(ctx context.Context, customerID string) ([]models.UpstreamListing, error)

	// FetchListingDetails returns a single listing, including its embedded
	// photo collection when the API version provides one.
	FetchListingDetails(ctx context.Context, customerID, listingID string) (*models.UpstreamListing, error)

	// FetchListingImages returns the photo collection for a listing. When
	// the dedicated images endpoint reports not-found, it transparently
	// falls back to FetchListingDetails and extracts the embedded photo
	// set, since upstream API versions diverge in which endpoint exposes
	// photos.
	FetchListingImages(ctx context.Context, customerID, listingID string) ([]models.ListingPhoto, error)
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// HTTPClient provides access to the upstream REST API.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// resultEnvelope is the upstream API's standard response wrapper.
type resultEnvelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

// NewHTTPClient creates a new upstream API client.
func NewHTTPClient(cfg *config.UpstreamConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// ListCustomerListings retrieves all listings for a customer.
func (c *HTTPClient) ListCustomerListings(ctx context.Context, customerID string) ([]models.UpstreamListing, error) {
	endpoint := fmt.Sprintf("/v1/customers/%s/listings", customerID)

	var listings []models.UpstreamListing
	if err := c.doJSONRequest(ctx, "list_listings", endpoint, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// FetchListingDetails retrieves a single listing record.
func (c *HTTPClient) FetchListingDetails(ctx context.Context, customerID, listingID string) (*models.UpstreamListing, error) {
	endpoint := fmt.Sprintf("/v1/customers/%s/listings/%s", customerID, listingID)

	var listing models.UpstreamListing
	if err := c.doJSONRequest(ctx, "listing_details", endpoint, &listing); err != nil {
		return nil, err
	}
	return &listing, nil
}

// FetchListingImages retrieves the photo collection for a listing, falling
// back to the listing-details endpoint on not-found.
func (c *HTTPClient) FetchListingImages(ctx context.Context, customerID, listingID string) ([]models.ListingPhoto, error) {
	endpoint := fmt.Sprintf("/v1/customers/%s/listings/%s/images", customerID, listingID)

	var photos []models.ListingPhoto
	err := c.doJSONRequest(ctx, "listing_images", endpoint, &photos)
	if err == nil {
		if len(photos) == 0 {
			return nil, ErrNotFound
		}
		return photos, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	// Older API versions expose photos only on the listing record itself.
	listing, err := c.FetchListingDetails(ctx, customerID, listingID)
	if err != nil {
		return nil, err
	}
	if len(listing.Photos) == 0 {
		return nil, ErrNotFound
	}
	return listing.Photos, nil
}

// doJSONRequest executes a GET against the upstream API, maps the status
// code to the error taxonomy, and decodes the result envelope into result.
func (c *HTTPClient) doJSONRequest(ctx context.Context, operation, endpoint string, result interface{}) error {
	start := time.Now()
	err := c.doJSONRequestInner(ctx, operation, endpoint, result)

	outcome := "success"
	switch {
	case IsNotFound(err):
		outcome = "not_found"
	case IsRateLimited(err):
		outcome = "rate_limited"
	case err != nil:
		outcome = "error"
	}
	metrics.ObserveUpstreamRequest(operation, outcome, time.Since(start))

	return err
}

func (c *HTTPClient) doJSONRequestInner(ctx context.Context, operation, endpoint string, result interface{}) error {
	fullURL := c.baseURL + endpoint

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream %s request failed: %w", operation, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return &StatusError{Operation: operation, Status: resp.StatusCode, Body: "(failed to read body)"}
		}
		if looksRateLimited(string(body)) {
			return ErrRateLimited
		}
		return &StatusError{Operation: operation, Status: resp.StatusCode, Body: string(body)}
	}

	var envelope resultEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode upstream %s response: %w", operation, err)
	}
	if looksRateLimited(envelope.Status) {
		return ErrRateLimited
	}
	if len(envelope.Result) == 0 {
		return ErrNotFound
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode upstream %s result: %w", operation, err)
	}
	return nil
}
