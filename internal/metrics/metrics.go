// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package metrics defines the Prometheus instruments Footfall exports.
// All collectors register on the default registry via promauto and are
// served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SamplesIngested counts samples accepted into the point store.
	SamplesIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footfall_samples_ingested_total",
		Help: "Location samples accepted into the point store.",
	})

	// SamplesRejected counts rejected samples by reason.
	SamplesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_samples_rejected_total",
		Help: "Location samples rejected at ingestion.",
	}, []string{"reason"})

	// SnapshotHits counts snapshot cache hits.
	SnapshotHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footfall_snapshot_cache_hits_total",
		Help: "Analysis requests served from a cached snapshot.",
	})

	// SnapshotMisses counts snapshot cache misses and forced refreshes.
	SnapshotMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footfall_snapshot_cache_misses_total",
		Help: "Analysis requests that required snapshot recomputation.",
	})

	// SuggestionRequests counts suggestion runs by outcome: generated,
	// fallback, or error.
	SuggestionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_suggestion_requests_total",
		Help: "Suggestion engine runs by outcome.",
	}, []string{"outcome"})

	// GeocodeLookups counts reverse-geocoding lookups by outcome: hit,
	// resolved, or error.
	GeocodeLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_geocode_lookups_total",
		Help: "Reverse geocoding lookups by outcome.",
	}, []string{"outcome"})

	// BreakerState tracks circuit breaker state per upstream:
	// 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "footfall_circuit_breaker_state",
		Help: "Circuit breaker state per upstream (0 closed, 1 half-open, 2 open).",
	}, []string{"upstream"})

	// HTTPRequests counts HTTP requests by method, route pattern and
	// status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_http_requests_total",
		Help: "HTTP requests by method, route and status class.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes HTTP request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "footfall_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ErasureRequests counts right-to-erasure deletions.
	ErasureRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "footfall_erasure_requests_total",
		Help: "Right-to-erasure deletion requests processed.",
	})
)
