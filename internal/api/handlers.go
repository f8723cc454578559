// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

/*
handlers.go - HTTP Handlers for the Sync Pipeline

Endpoints:

	POST /import-listings                              bulk import for a customer
	POST /publish-properties                           publish selected listings + ingest images
	POST /fetch-property-images                        on-demand ingestion for one property
	GET  /property-images/{customerId}/{listingId}     tiered image read (pos, refresh query params)
	GET  /properties                                   catalog listing with structured filters

Credential-absence and malformed input are rejected before any upstream
call. Image read responses never hard-fail: unavailable upstream data
degrades to a stock fallback set marked fallback=true.
*/

package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harborstay/harborstay/internal/catalog"
	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/imagecache"
	"github.com/harborstay/harborstay/internal/ingest"
	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/models"
	"github.com/harborstay/harborstay/internal/ratelimit"
	"github.com/harborstay/harborstay/internal/upstream"
	"github.com/harborstay/harborstay/internal/validation"
)

// Handler carries the wired pipeline components for all endpoints.
type Handler struct {
	cfg    *config.Config
	orch   *ingest.Orchestrator
	images *ingest.ImageService
	store  *catalog.Store
	cache  *imagecache.Cache
}

// NewHandler creates the endpoint handler set.
func NewHandler(cfg *config.Config, orch *ingest.Orchestrator, images *ingest.ImageService, store *catalog.Store, cache *imagecache.Cache) *Handler {
	return &Handler{cfg: cfg, orch: orch, images: images, store: store, cache: cache}
}

// ImportRequest is the POST /import-listings payload.
type ImportRequest struct {
	CustomerID string `json:"customerId" validate:"required"`
}

// PublishRequest is the POST /publish-properties payload.
type PublishRequest struct {
	CustomerID string   `json:"customerId" validate:"required"`
	ListingIDs []string `json:"listingIds" validate:"required,min=1"`
}

// FetchImagesRequest is the POST /fetch-property-images payload.
type FetchImagesRequest struct {
	PropertyID int64  `json:"propertyId" validate:"required"`
	PlatformID string `json:"platformId" validate:"required"`
}

// ImportListings imports every upstream listing for a customer.
func (h *Handler) ImportListings(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validation.Message(err), nil)
		return
	}
	if !h.requireCredential(w) {
		return
	}

	properties, stats, err := h.orch.ImportAll(r.Context(), req.CustomerID)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"properties": properties,
		"stats":      stats,
	})
}

// PublishProperties publishes selected listings and ingests their images.
func (h *Handler) PublishProperties(w http.ResponseWriter, r *http.Request) {
	var req PublishRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validation.Message(err), nil)
		return
	}
	if !h.requireCredential(w) {
		return
	}

	properties, stats, err := h.orch.PublishSelected(r.Context(), req.CustomerID, req.ListingIDs)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"properties": properties,
		"stats":      stats,
	})
}

// FetchPropertyImages performs on-demand image ingestion for one property.
func (h *Handler) FetchPropertyImages(w http.ResponseWriter, r *http.Request) {
	var req FetchImagesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", validation.Message(err), nil)
		return
	}
	if !h.requireCredential(w) {
		return
	}

	count, property, err := h.images.FetchAndStore(r.Context(), req.PropertyID, req.PlatformID)
	if err != nil {
		h.respondPipelineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"imageCount": count,
		"property":   property,
	})
}

// PropertyImages serves the tiered image read path. Query parameters:
// pos selects a single position, refresh bypasses both cache tiers.
func (h *Handler) PropertyImages(w http.ResponseWriter, r *http.Request) {
	ids := ingest.PropertyIDs{
		CustomerID: chi.URLParam(r, "customerId"),
		ListingID:  chi.URLParam(r, "listingId"),
	}
	refresh := r.URL.Query().Get("refresh") == "true"

	pos := -1
	if rawPos := r.URL.Query().Get("pos"); rawPos != "" {
		parsed, err := strconv.Atoi(rawPos)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "pos must be a non-negative integer", nil)
			return
		}
		pos = parsed
	}

	set, err := h.images.GetImages(r.Context(), ids, refresh)
	if err != nil {
		var limited *ingest.RateLimitedError
		if errors.As(err, &limited) {
			retryAfter := int(math.Ceil(limited.RetryAfter.Seconds()))
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeRaw(w, http.StatusTooManyRequests, models.ImageSetResponse{
				Data:       ingest.StockImages(),
				Fallback:   true,
				RetryAfter: retryAfter,
			})
			return
		}

		// Not-found and unavailable upstreams degrade to the stock set so
		// property pages always render.
		logging.Warn().Err(err).Str("key", ids.CacheKey()).Msg("Serving stock fallback images")
		writeRaw(w, http.StatusOK, models.ImageSetResponse{
			Data:     ingest.StockImages(),
			Fallback: true,
		})
		return
	}

	images := set.Images
	if pos >= 0 {
		images = filterByPosition(images, pos)
		if len(images) == 0 {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "no image at requested position", nil)
			return
		}
	}

	writeRaw(w, http.StatusOK, models.ImageSetResponse{
		Data:   images,
		Cached: set.Cached,
	})
}

// ListProperties returns catalog properties with optional structured
// filters (published, active, city, limit, offset).
func (h *Handler) ListProperties(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := catalog.Filter{
		City: query.Get("city"),
	}

	if raw := query.Get("published"); raw != "" {
		value := raw == "true"
		filter.Published = &value
	}
	if raw := query.Get("active"); raw != "" {
		value := raw == "true"
		filter.Active = &value
	}
	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Offset = parsed
		}
	}

	properties, err := h.store.List(r.Context(), filter)
	if err != nil {
		logging.Error().Err(err).Msg("Catalog list query failed")
		respondError(w, http.StatusInternalServerError, "DATABASE_ERROR", "failed to query catalog", nil)
		return
	}
	if properties == nil {
		properties = []models.CatalogProperty{}
	}

	respondJSON(w, http.StatusOK, properties)
}

// HealthLive reports process liveness.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady reports readiness: the catalog store must answer a query.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.List(r.Context(), catalog.Filter{Limit: 1}); err != nil {
		respondError(w, http.StatusServiceUnavailable, "DATABASE_ERROR", "catalog store unavailable", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":             "ready",
		"upstreamConfigured": h.cfg.UpstreamConfigured(),
		"imageCacheEntries":  h.cache.Stats().Keys,
	})
}

// requireCredential rejects requests before any upstream call when the
// platform bearer token is not configured.
func (h *Handler) requireCredential(w http.ResponseWriter) bool {
	if !h.cfg.UpstreamConfigured() {
		respondError(w, http.StatusUnauthorized, "CREDENTIAL_MISSING", "upstream API credential is not configured", nil)
		return false
	}
	return true
}

// respondPipelineError maps pipeline errors onto the endpoint error
// taxonomy.
func (h *Handler) respondPipelineError(w http.ResponseWriter, err error) {
	var formatErr *ingest.IdentifierFormatError
	var statusErr *upstream.StatusError
	var denied *ratelimit.DeniedError

	switch {
	case errors.Is(err, ingest.ErrNoListings):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no properties found for this account", nil)
	case errors.Is(err, ingest.ErrNoImages):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "no images found for this listing", nil)
	case errors.Is(err, ingest.ErrUnknownCustomer):
		respondError(w, http.StatusBadRequest, "IDENTIFIER_FORMAT_ERROR", "platform identifier has no customer id", nil)
	case errors.As(err, &formatErr):
		respondError(w, http.StatusBadRequest, "IDENTIFIER_FORMAT_ERROR", formatErr.Error(),
			map[string]interface{}{"value": formatErr.Value})
	case errors.As(err, &denied):
		retryAfter := int(math.Ceil(denied.RetryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit window exhausted",
			map[string]interface{}{"retryAfter": retryAfter})
	case errors.Is(err, upstream.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "upstream API rate limited the request", nil)
	case errors.As(err, &statusErr):
		logging.Error().Err(err).Int("upstream_status", statusErr.Status).Msg("Upstream API unavailable")
		respondError(w, http.StatusBadGateway, "UPSTREAM_ERROR", "upstream API unavailable",
			map[string]interface{}{"upstreamStatus": statusErr.Status})
	case errors.Is(err, upstream.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "resource not found upstream", nil)
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "property not found", nil)
	default:
		logging.Error().Err(err).Msg("Unhandled pipeline error")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error", nil)
	}
}

// filterByPosition keeps images whose position matches pos.
func filterByPosition(images []models.NormalizedImage, pos int) []models.NormalizedImage {
	var matched []models.NormalizedImage
	for _, img := range images {
		if img.Position == pos {
			matched = append(matched, img)
		}
	}
	return matched
}
