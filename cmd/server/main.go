// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

// Package main is the entry point for the Harborstay sync service.
//
// Harborstay synchronizes vacation-rental listings from an upstream
// property-management API into a direct-booking catalog: bulk listing
// imports, selective publishing, and rate-limited image ingestion with a
// tiered read path.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered loading (defaults, YAML, env vars)
//  2. Catalog store: DuckDB-backed property catalog
//  3. Rate-limit guard: per-listing outbound admission control
//  4. Image cache: in-memory TTL cache with a supervised janitor
//  5. Upstream client: bearer-authenticated REST client behind a circuit breaker
//  6. Progress tracker: Badger-backed import progress (optional)
//  7. HTTP server: Chi router under a suture supervision tree
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config.yaml, built-in defaults.
// The upstream credential is required for import/publish/image operations:
//
//	export UPSTREAM_URL=https://api.example.com
//	export UPSTREAM_API_KEY=your-bearer-token
//	./harborstay
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests within the shutdown
// timeout, then closes the progress tracker and catalog store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/harborstay/harborstay/internal/api"
	"github.com/harborstay/harborstay/internal/catalog"
	"github.com/harborstay/harborstay/internal/config"
	"github.com/harborstay/harborstay/internal/imagecache"
	"github.com/harborstay/harborstay/internal/ingest"
	"github.com/harborstay/harborstay/internal/logging"
	"github.com/harborstay/harborstay/internal/ratelimit"
	"github.com/harborstay/harborstay/internal/supervisor"
	"github.com/harborstay/harborstay/internal/supervisor/services"
	"github.com/harborstay/harborstay/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("upstream_configured", cfg.UpstreamConfigured()).
		Bool("progress_enabled", cfg.Progress.Enabled).
		Msg("Configuration loaded")

	if !cfg.UpstreamConfigured() {
		logging.Warn().Msg("Upstream API credential not configured - import, publish, and image operations will be rejected")
	}

	store, err := catalog.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize catalog store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog store")
		}
	}()
	logging.Info().Msg("Catalog store initialized")

	guard := ratelimit.NewGuard(&cfg.RateLimit)
	defer guard.Stop()

	cache := imagecache.New(&cfg.ImageCache)
	defer cache.Stop()

	// Upstream calls go through the circuit breaker so a failing upstream
	// degrades to fast errors instead of piling up timeouts.
	client := upstream.NewBreakerClient(upstream.NewHTTPClient(&cfg.Upstream))

	var tracker ingest.Tracker = ingest.NoopTracker{}
	if cfg.Progress.Enabled {
		badgerTracker, err := ingest.NewBadgerTracker(&cfg.Progress)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.Progress.Path).Msg("Failed to open progress tracker")
		}
		tracker = badgerTracker
		logging.Info().Str("path", cfg.Progress.Path).Msg("Import progress tracking enabled")
	}
	defer func() {
		if err := tracker.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing progress tracker")
		}
	}()

	images := ingest.NewImageService(client, guard, cache, store)
	engine := ingest.NewUpsertEngine(store)
	orch := ingest.NewOrchestrator(client, engine, images, tracker, &cfg.Ingest)

	handler := api.NewHandler(cfg, orch, images, store, cache)
	router := api.NewRouter(&cfg.API, handler)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMaintenanceService(services.NewJanitorService(cache, "image-cache-janitor"))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Timeout))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting Harborstay sync service")

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}

	if unstopped, err := tree.UnstoppedServiceReport(); err == nil && len(unstopped) > 0 {
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within shutdown timeout")
		}
	}

	logging.Info().Msg("Shutdown complete")
}
