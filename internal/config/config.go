// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

// Package config provides layered configuration for the Harborstay sync
// service using Koanf v2: built-in defaults, optional YAML config file, and
// environment variable overrides, in ascending priority.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the sync service.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Upstream   UpstreamConfig   `koanf:"upstream"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	ImageCache ImageCacheConfig `koanf:"image_cache"`
	Ingest     IngestConfig     `koanf:"ingest"`
	Database   DatabaseConfig   `koanf:"database"`
	Progress   ProgressConfig   `koanf:"progress"`
	API        APIConfig        `koanf:"api"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// UpstreamConfig holds the upstream property-management API settings.
// A single platform-level bearer token is used for all upstream calls.
type UpstreamConfig struct {
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// RateLimitConfig governs outbound admission to the upstream API per
// customer/listing key.
type RateLimitConfig struct {
	// MinSpacing is the minimum interval between admitted calls for a key.
	MinSpacing time.Duration `koanf:"min_spacing"`

	// Window is the rolling window over which MaxPerWindow applies.
	Window time.Duration `koanf:"window"`

	// MaxPerWindow caps admissions per key within the rolling window.
	MaxPerWindow int `koanf:"max_per_window"`

	// MaxKeys bounds the number of tracked keys (0 = unlimited).
	MaxKeys int `koanf:"max_keys"`
}

// ImageCacheConfig holds the in-memory image cache settings.
type ImageCacheConfig struct {
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// IngestConfig drives batch image ingestion during publish operations.
type IngestConfig struct {
	// ImageBatchSize is the number of properties whose images are fetched
	// per batch.
	ImageBatchSize int `koanf:"image_batch_size"`

	// BatchDelay is the pause between consecutive batches.
	BatchDelay time.Duration `koanf:"batch_delay"`

	// ItemDelay is the pause between properties within one batch.
	ItemDelay time.Duration `koanf:"item_delay"`
}

// DatabaseConfig holds DuckDB catalog store settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// ProgressConfig holds the Badger-backed import progress tracker settings.
type ProgressConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// APIConfig holds inbound HTTP API settings.
type APIConfig struct {
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8480,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Upstream: UpstreamConfig{
			URL:     "",
			APIKey:  "",
			Timeout: 30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			MinSpacing:   5 * time.Second,
			Window:       60 * time.Second,
			MaxPerWindow: 5,
			MaxKeys:      10000,
		},
		ImageCache: ImageCacheConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: 5 * time.Minute,
		},
		Ingest: IngestConfig{
			ImageBatchSize: 2,
			BatchDelay:     10 * time.Second,
			ItemDelay:      2 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "/data/harborstay.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Progress: ProgressConfig{
			Enabled: true,
			Path:    "/data/progress",
		},
		API: APIConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks the configuration for invalid or inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.RateLimit.MinSpacing <= 0 {
		return fmt.Errorf("rate_limit.min_spacing must be positive, got %s", c.RateLimit.MinSpacing)
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window)
	}
	if c.RateLimit.MaxPerWindow < 1 {
		return fmt.Errorf("rate_limit.max_per_window must be at least 1, got %d", c.RateLimit.MaxPerWindow)
	}
	if c.ImageCache.TTL <= 0 {
		return fmt.Errorf("image_cache.ttl must be positive, got %s", c.ImageCache.TTL)
	}
	if c.Ingest.ImageBatchSize < 1 {
		return fmt.Errorf("ingest.image_batch_size must be at least 1, got %d", c.Ingest.ImageBatchSize)
	}
	if c.Ingest.BatchDelay < 0 || c.Ingest.ItemDelay < 0 {
		return fmt.Errorf("ingest delays must not be negative")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Progress.Enabled && c.Progress.Path == "" {
		return fmt.Errorf("progress.path must not be empty when progress tracking is enabled")
	}
	return nil
}

// UpstreamConfigured reports whether the platform bearer credential is set.
// Import/publish/image operations reject requests before any upstream call
// when the credential is absent.
func (c *Config) UpstreamConfigured() bool {
	return c.Upstream.URL != "" && c.Upstream.APIKey != ""
}
