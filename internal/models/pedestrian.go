// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package models defines the core domain records shared across Footfall:
// ingested location samples, grid-cell aggregates, cached analysis snapshots,
// and ranked business-location suggestions.
package models

import "time"

// LocationSample is one anonymized pedestrian observation as stored in the
// point store. Hour, DayOfWeek and Date are derived once at ingestion time
// from the sample's timestamp; downstream aggregation trusts them as stored.
type LocationSample struct {
	// ID is the stored document identifier (UUID).
	ID string `json:"id"`

	// Lat and Lng are rounded to 4 decimal places (~11 m) before storage.
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	// Timestamp is the observation time in epoch seconds.
	Timestamp int64 `json:"timestamp"`

	// Hour is the observation hour of day (0-23) in the city timezone.
	Hour int `json:"hour"`

	// DayOfWeek is the observation day, 0=Monday .. 6=Sunday.
	DayOfWeek int `json:"day_of_week"`

	// Date is the calendar date "YYYY-MM-DD" in the city timezone.
	Date string `json:"date"`

	// UserHash and SessionHash are one-way hashed identifiers carrying the
	// "anon_" prefix, or empty when the client supplied none. Raw
	// identifiers are never stored.
	UserHash    string `json:"user_hash,omitempty"`
	SessionHash string `json:"session_hash,omitempty"`

	// DeviceType is a coarse device class: mobile, tablet, desktop, unknown.
	DeviceType string `json:"device_type,omitempty"`

	// DeviceOS is a coarse OS family: Android, iOS, Windows, macOS, Linux,
	// Unknown.
	DeviceOS string `json:"device_os,omitempty"`

	// CreatedAt is the server-side ingestion time.
	CreatedAt time.Time `json:"created_at"`
}

// LocationGroup is the per-grid-cell aggregate produced by the grid
// aggregator. It is a derived, disposable projection: recomputed in full on
// every aggregation run, never mutated incrementally.
//
// Invariants:
//   - HourlyDistribution and DailyDistribution each sum to Count.
//   - len(PeakHours) <= 3 and <= number of distinct hours present.
type LocationGroup struct {
	// GridKey is the canonical "lat,lng" cell anchor, both fixed to 4
	// decimal places (e.g. "44.4280,26.1030").
	GridKey string `json:"grid_key"`

	// Lat and Lng are the mean coordinates of contributing samples.
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	// Count is the number of samples that fell in the cell.
	Count int `json:"count"`

	// TrafficScore combines Count with a business-hours concentration
	// bonus; see aggregate.TrafficScore.
	TrafficScore float64 `json:"traffic_score"`

	// HourlyDistribution maps hour of day (0-23) to sample count.
	HourlyDistribution map[int]int `json:"hourly_distribution"`

	// DailyDistribution maps day of week (0=Monday) to sample count.
	DailyDistribution map[int]int `json:"daily_distribution"`

	// PeakHours are the top three hours by count, ordered by descending
	// count with ties broken toward the lower hour.
	PeakHours []int `json:"peak_hours"`

	// PeakHourCounts are the counts matching PeakHours, index for index.
	PeakHourCounts []int `json:"peak_hour_counts"`

	// FirstSeen and LastSeen bound the cell's observations (epoch seconds).
	FirstSeen int64 `json:"first_seen"`
	LastSeen  int64 `json:"last_seen"`

	// Address and AreaName are best-effort reverse-geocoding results.
	// Empty when enrichment was unavailable; never required.
	Address  string `json:"address,omitempty"`
	AreaName string `json:"area_name,omitempty"`
}

// AnalysisSnapshot is a cached aggregation result for one date range.
// At most one live snapshot exists per SnapshotKey; a forced or expired
// recomputation overwrites it in place.
type AnalysisSnapshot struct {
	// SnapshotKey is derived deterministically from the range boundaries:
	// "<startEpoch>_<endEpoch>".
	SnapshotKey string `json:"snapshot_key"`

	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// LocationGroups maps grid key to the cell aggregate, enriched once
	// with addresses at snapshot creation.
	LocationGroups map[string]*LocationGroup `json:"location_groups"`

	// TotalLocations is the number of distinct cells in the snapshot.
	TotalLocations int `json:"total_locations"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the snapshot's freshness window has passed.
func (s *AnalysisSnapshot) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Suggestion is one ranked business-location recommendation. Ranks within a
// suggestion list are dense and 1-based: exactly 1..N with no gaps.
type Suggestion struct {
	Rank int `json:"rank"`

	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`

	// Address is best-effort; "Unknown" when never resolved.
	Address string `json:"address"`

	TrafficScore float64 `json:"traffic_score"`

	// Reasoning is free-text justification, generated or synthesized.
	Reasoning string `json:"reasoning"`

	BusinessType string `json:"business_type"`

	EstimatedDailyVisitors int `json:"estimated_daily_visitors"`

	// BestHours are the recommended operating hours, drawn from the
	// cell's peak hours.
	BestHours []int `json:"best_hours"`

	Recommendations []string `json:"recommendations"`
}

// AnalysisResult is the full payload of a suggestion request: the snapshot
// the suggestions were computed from plus the ranked list itself.
type AnalysisResult struct {
	AnalysisDate           time.Time                 `json:"analysis_date"`
	StartDate              time.Time                 `json:"start_date"`
	EndDate                time.Time                 `json:"end_date"`
	TotalLocationsAnalyzed int                       `json:"total_locations_analyzed"`
	LocationGroups         map[string]*LocationGroup `json:"location_groups"`
	Suggestions            []Suggestion              `json:"suggestions"`
	SnapshotKey            string                    `json:"snapshot_key"`
	FromCache              bool                      `json:"from_cache"`
}

// HourlyLocationStats is the analytics-endpoint aggregate for one cell:
// totals plus hourly and daily breakdowns, without scoring.
type HourlyLocationStats struct {
	LocationName   string         `json:"location_name,omitempty"`
	Lat            float64        `json:"lat"`
	Lng            float64        `json:"lng"`
	TotalCount     int            `json:"total_count"`
	HourlyStats    map[string]int `json:"hourly_stats"`
	DailyStats     map[string]int `json:"daily_stats"`
	PeakHours      []int          `json:"peak_hours"`
	AveragePerHour float64        `json:"average_per_hour"`
}

// PopularLocation is one entry of the popular-locations listing.
type PopularLocation struct {
	Lat          float64 `json:"lat"`
	Lng          float64 `json:"lng"`
	LocationName string  `json:"location_name,omitempty"`
	Count        int     `json:"count"`
}
