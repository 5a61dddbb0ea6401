// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package config loads Footfall configuration via Koanf v2 with layered
// sources (highest priority wins): environment variables, config file,
// built-in defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Snapshot  SnapshotConfig  `koanf:"snapshot"`
	Bounds    BoundsConfig    `koanf:"bounds"`
	Grid      GridConfig      `koanf:"grid"`
	Gemini    GeminiConfig    `koanf:"gemini"`
	Geocoder  GeocoderConfig  `koanf:"geocoder"`
	Anonymize AnonymizeConfig `koanf:"anonymize"`
	Logging   LoggingConfig   `koanf:"logging"`

	// Timezone is the IANA zone used to derive hour/day-of-week/date at
	// ingestion time. It should match the city the bounds describe.
	Timezone string `koanf:"timezone"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// RateLimitReqs/RateLimitWindow bound request rates per client IP.
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// Addr returns the listen address in host:port form.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds DuckDB point-store settings.
type DatabaseConfig struct {
	// Path is the database file path; ":memory:" for tests.
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB thread count; 0 uses runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// SnapshotConfig holds Badger snapshot-store settings.
type SnapshotConfig struct {
	// Path is the Badger directory; empty runs in-memory (tests).
	Path string `koanf:"path"`

	// TTL is the snapshot freshness window. A cached snapshot younger
	// than TTL is served without recomputation.
	TTL time.Duration `koanf:"ttl"`

	// GCInterval is how often the Badger value log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// BoundsConfig is the accepted bounding box for ingested samples. The
// service serves exactly one city; samples outside the box are rejected and
// never stored. Defaults describe Bucharest.
type BoundsConfig struct {
	MinLat float64 `koanf:"min_lat"`
	MaxLat float64 `koanf:"max_lat"`
	MinLng float64 `koanf:"min_lng"`
	MaxLng float64 `koanf:"max_lng"`
}

// Contains reports whether the coordinate pair falls inside the box.
func (b BoundsConfig) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// GridConfig tunes the spatial grid aggregation.
type GridConfig struct {
	// Size is the grid cell edge in degrees (~100 m at 0.001).
	Size float64 `koanf:"size"`

	// MinCount drops cells with fewer samples from aggregation output.
	MinCount int `koanf:"min_count"`

	// BusinessHoursStart/End bound the window whose peak hours earn the
	// traffic-score bonus (inclusive).
	BusinessHoursStart int `koanf:"business_hours_start"`
	BusinessHoursEnd   int `koanf:"business_hours_end"`
}

// GeminiConfig holds the generative-text collaborator settings. An empty
// APIKey disables the primary suggestion path entirely; the deterministic
// fallback scorer is used instead.
type GeminiConfig struct {
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// GeocoderConfig holds the reverse-geocoding collaborator settings.
type GeocoderConfig struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`

	// RatePerSecond caps outbound lookups; Nominatim's usage policy
	// allows at most one request per second.
	RatePerSecond float64 `koanf:"rate_per_second"`

	CacheTTL time.Duration `koanf:"cache_ttl"`

	// UserAgent identifies this deployment to the provider as their
	// policy requires.
	UserAgent string `koanf:"user_agent"`
}

// AnonymizeConfig holds the per-class hashing salts. Distinct salts keep
// user and session hash spaces unlinkable.
type AnonymizeConfig struct {
	UserSalt    string `koanf:"user_salt"`
	SessionSalt string `koanf:"session_salt"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns a Config with all defaults applied. These are
// overridden by the config file and then by environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8430,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path:      "/data/footfall.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Snapshot: SnapshotConfig{
			Path:       "/data/snapshots",
			TTL:        24 * time.Hour,
			GCInterval: 10 * time.Minute,
		},
		Bounds: BoundsConfig{
			MinLat: 44.35,
			MaxLat: 44.55,
			MinLng: 25.95,
			MaxLng: 26.25,
		},
		Grid: GridConfig{
			Size:               0.001,
			MinCount:           10,
			BusinessHoursStart: 8,
			BusinessHoursEnd:   20,
		},
		Gemini: GeminiConfig{
			APIKey:  "",
			Model:   "gemini-2.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta",
			Timeout: 30 * time.Second,
		},
		Geocoder: GeocoderConfig{
			BaseURL:       "https://nominatim.openstreetmap.org",
			Timeout:       10 * time.Second,
			RatePerSecond: 1,
			CacheTTL:      24 * time.Hour,
			UserAgent:     "footfall/1.0",
		},
		Anonymize: AnonymizeConfig{
			UserSalt:    "user_id_salt",
			SessionSalt: "session_id_salt",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Timezone: "Europe/Bucharest",
	}
}

// Validate checks internal consistency of the loaded configuration.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Bounds.MinLat >= c.Bounds.MaxLat {
		return fmt.Errorf("bounds: min_lat %v must be below max_lat %v", c.Bounds.MinLat, c.Bounds.MaxLat)
	}
	if c.Bounds.MinLng >= c.Bounds.MaxLng {
		return fmt.Errorf("bounds: min_lng %v must be below max_lng %v", c.Bounds.MinLng, c.Bounds.MaxLng)
	}
	if c.Grid.Size <= 0 {
		return fmt.Errorf("grid.size must be positive, got %v", c.Grid.Size)
	}
	if c.Grid.MinCount < 1 {
		return fmt.Errorf("grid.min_count must be at least 1, got %d", c.Grid.MinCount)
	}
	if c.Grid.BusinessHoursStart < 0 || c.Grid.BusinessHoursEnd > 23 ||
		c.Grid.BusinessHoursStart > c.Grid.BusinessHoursEnd {
		return fmt.Errorf("grid: invalid business hours window %d-%d",
			c.Grid.BusinessHoursStart, c.Grid.BusinessHoursEnd)
	}
	if c.Snapshot.TTL <= 0 {
		return fmt.Errorf("snapshot.ttl must be positive, got %v", c.Snapshot.TTL)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. Validate must have passed.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
