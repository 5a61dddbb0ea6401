// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/footfall/config.yaml",
	"/etc/footfall/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "FOOTFALL_CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping.
const envPrefix = "FOOTFALL_"

// Load builds the configuration from layered sources, highest priority
// last: built-in defaults, an optional YAML config file, then FOOTFALL_*
// environment variables.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// FOOTFALL_SERVER_PORT -> server.port
	// FOOTFALL_GEMINI_API_KEY -> gemini.api_key
	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env strings need converting for slice fields.
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// supplied through the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated strings to slices for the
// known slice fields. YAML-supplied values arrive as slices already and are
// left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps stripped, lowercased environment variable names onto
// koanf config paths. Unmapped variables are ignored so unrelated
// environment noise cannot pollute the configuration.
var envMappings = map[string]string{
	// Server
	"server_host":              "server.host",
	"server_port":              "server.port",
	"server_timeout":           "server.timeout",
	"server_rate_limit_reqs":   "server.rate_limit_reqs",
	"server_rate_limit_window": "server.rate_limit_window",
	"server_cors_origins":      "server.cors_origins",

	// Point store
	"database_path":       "database.path",
	"database_max_memory": "database.max_memory",
	"database_threads":    "database.threads",

	// Snapshot store
	"snapshot_path":        "snapshot.path",
	"snapshot_ttl":         "snapshot.ttl",
	"snapshot_gc_interval": "snapshot.gc_interval",

	// City bounds
	"bounds_min_lat": "bounds.min_lat",
	"bounds_max_lat": "bounds.max_lat",
	"bounds_min_lng": "bounds.min_lng",
	"bounds_max_lng": "bounds.max_lng",

	// Grid aggregation
	"grid_size":                 "grid.size",
	"grid_min_count":            "grid.min_count",
	"grid_business_hours_start": "grid.business_hours_start",
	"grid_business_hours_end":   "grid.business_hours_end",

	// Gemini
	"gemini_api_key":  "gemini.api_key",
	"gemini_model":    "gemini.model",
	"gemini_base_url": "gemini.base_url",
	"gemini_timeout":  "gemini.timeout",

	// Geocoder
	"geocoder_base_url":        "geocoder.base_url",
	"geocoder_timeout":         "geocoder.timeout",
	"geocoder_rate_per_second": "geocoder.rate_per_second",
	"geocoder_cache_ttl":       "geocoder.cache_ttl",
	"geocoder_user_agent":      "geocoder.user_agent",

	// Anonymization salts
	"anonymize_user_salt":    "anonymize.user_salt",
	"anonymize_session_salt": "anonymize.session_salt",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",

	// City timezone
	"timezone": "timezone",
}

// envTransformFunc maps environment variable names onto koanf paths.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
