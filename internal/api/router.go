// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

// Package api provides the HTTP surface of the sync service using the Chi
// router.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harborstay/harborstay/internal/config"
)

// NewRouter assembles the full route tree with the global middleware
// stack.
func NewRouter(cfg *config.APIConfig, handler *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Operational endpoints stay outside the inbound rate limit so
	// monitoring never starves.
	r.Get("/health/live", handler.HealthLive)
	r.Get("/health/ready", handler.HealthReady)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimitByIP(cfg))
		r.Use(requestMetrics)

		r.Post("/import-listings", handler.ImportListings)
		r.Post("/publish-properties", handler.PublishProperties)
		r.Post("/fetch-property-images", handler.FetchPropertyImages)
		r.Get("/property-images/{customerId}/{listingId}", handler.PropertyImages)
		r.Get("/properties", handler.ListProperties)
	})

	return r
}

// rateLimitByIP applies the configured inbound per-IP request limit.
func rateLimitByIP(cfg *config.APIConfig) func(http.Handler) http.Handler {
	reqs := cfg.RateLimitReqs
	if reqs <= 0 {
		reqs = 120
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(reqs, window)
}
