// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package geogrid implements the spatial grid Footfall aggregates over:
// coordinates snap to a fixed-size cell lattice (~100 m at the default
// 0.001 degrees) identified by a canonical string key.
package geogrid

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultCellSize is the grid cell edge in degrees.
const DefaultCellSize = 0.001

// earthRadiusMeters is the mean Earth radius used by Haversine.
const earthRadiusMeters = 6371000.0

// Snap rounds a coordinate to the nearest cell anchor. Rounding is
// half-away-from-zero so -0.0005 snaps to -0.001, matching math.Round.
func Snap(v, cellSize float64) float64 {
	return math.Round(v/cellSize) * cellSize
}

// Key returns the canonical cell key for a coordinate pair: the snapped
// latitude and longitude fixed to 4 decimal places, comma-joined.
//
//	Key(44.42833, 26.10302, 0.001) == "44.4280,26.1030"
//
// Two coordinates share a key exactly when they share a cell, so the key
// is usable as a map key and a storage key.
func Key(lat, lng, cellSize float64) string {
	return fmt.Sprintf("%.4f,%.4f", Snap(lat, cellSize), Snap(lng, cellSize))
}

// ParseKey splits a cell key back into its anchor coordinates.
func ParseKey(key string) (lat, lng float64, err error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed grid key %q", key)
	}
	lat, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed grid key %q: %w", key, err)
	}
	lng, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("malformed grid key %q: %w", key, err)
	}
	return lat, lng, nil
}

// RoundCoord rounds a raw coordinate to 4 decimal places (~11 m). Applied
// at ingestion so precise device fixes are never stored.
func RoundCoord(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Haversine returns the great-circle distance in meters between two
// coordinate pairs.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLng := (lng2 - lng1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
