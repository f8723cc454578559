// Harborstay - Direct Booking Sync Service for Vacation Rentals
// Copyright 2026 Harborstay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harborstay/harborstay

package config

import (
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}
}

func TestDefaultRateLimitPolicy(t *testing.T) {
	cfg := defaultConfig()

	if cfg.RateLimit.MinSpacing != 5*time.Second {
		t.Errorf("Expected 5s min spacing, got %s", cfg.RateLimit.MinSpacing)
	}
	if cfg.RateLimit.Window != 60*time.Second {
		t.Errorf("Expected 60s window, got %s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.MaxPerWindow != 5 {
		t.Errorf("Expected 5 admissions per window, got %d", cfg.RateLimit.MaxPerWindow)
	}
}

func TestDefaultIngestBatching(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Ingest.ImageBatchSize != 2 {
		t.Errorf("Expected batch size 2, got %d", cfg.Ingest.ImageBatchSize)
	}
	if cfg.Ingest.BatchDelay != 10*time.Second {
		t.Errorf("Expected 10s batch delay, got %s", cfg.Ingest.BatchDelay)
	}
	if cfg.Ingest.ItemDelay != 2*time.Second {
		t.Errorf("Expected 2s item delay, got %s", cfg.Ingest.ItemDelay)
	}
	if cfg.ImageCache.TTL != 24*time.Hour {
		t.Errorf("Expected 24h image cache TTL, got %s", cfg.ImageCache.TTL)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"huge port", func(c *Config) { c.Server.Port = 70000 }},
		{"zero spacing", func(c *Config) { c.RateLimit.MinSpacing = 0 }},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }},
		{"zero max per window", func(c *Config) { c.RateLimit.MaxPerWindow = 0 }},
		{"zero cache ttl", func(c *Config) { c.ImageCache.TTL = 0 }},
		{"zero batch size", func(c *Config) { c.Ingest.ImageBatchSize = 0 }},
		{"negative batch delay", func(c *Config) { c.Ingest.BatchDelay = -time.Second }},
		{"empty db path", func(c *Config) { c.Database.Path = "" }},
		{"progress enabled without path", func(c *Config) {
			c.Progress.Enabled = true
			c.Progress.Path = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestUpstreamConfigured(t *testing.T) {
	cfg := defaultConfig()
	if cfg.UpstreamConfigured() {
		t.Error("Expected upstream to be unconfigured by default")
	}

	cfg.Upstream.URL = "https://api.example.com"
	if cfg.UpstreamConfigured() {
		t.Error("URL alone should not count as configured")
	}

	cfg.Upstream.APIKey = "token"
	if !cfg.UpstreamConfigured() {
		t.Error("Expected upstream to be configured with URL and key")
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"UPSTREAM_API_KEY", "upstream.api_key"},
		{"UPSTREAM_URL", "upstream.url"},
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"LOG_LEVEL", "logging.level"},
		{"RATE_LIMIT_MAX_PER_WINDOW", "rate_limit.max_per_window"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_URL", "https://api.upstream.test")
	t.Setenv("UPSTREAM_API_KEY", "secret-token")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CORS_ORIGINS", "https://a.test, https://b.test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Upstream.URL != "https://api.upstream.test" {
		t.Errorf("Expected upstream URL from env, got %q", cfg.Upstream.URL)
	}
	if cfg.Upstream.APIKey != "secret-token" {
		t.Errorf("Expected upstream key from env, got %q", cfg.Upstream.APIKey)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if len(cfg.API.CORSOrigins) != 2 || cfg.API.CORSOrigins[0] != "https://a.test" {
		t.Errorf("Expected parsed CORS origins, got %v", cfg.API.CORSOrigins)
	}
}
