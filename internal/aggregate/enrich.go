// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package aggregate

import (
	"context"

	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/models"
)

// Geocoder resolves a coordinate pair to a human-readable address. Reverse
// is expected to be slow and rate-limited; callers must treat failures as
// routine.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (address, areaName string, err error)
}

// Enricher attaches addresses to the highest-scoring cells of an
// aggregation result. Enrichment is strictly best-effort: a failed or
// timed-out lookup leaves the cell's Address empty and never fails the
// aggregation.
type Enricher struct {
	geocoder Geocoder

	// Limit caps how many cells are enriched per run, highest score
	// first. The backing geocoder allows roughly one lookup per second,
	// so enriching everything would stall snapshot creation.
	Limit int
}

// NewEnricher creates an Enricher over the given geocoder. limit <= 0
// defaults to 20.
func NewEnricher(geocoder Geocoder, limit int) *Enricher {
	if limit <= 0 {
		limit = 20
	}
	return &Enricher{geocoder: geocoder, Limit: limit}
}

// EnrichGroups resolves addresses for the top cells by traffic score,
// mutating the groups in place. It stops early when ctx is done and
// returns the number of cells successfully enriched.
func (e *Enricher) EnrichGroups(ctx context.Context, groups map[string]*models.LocationGroup) int {
	if e == nil || e.geocoder == nil || len(groups) == 0 {
		return 0
	}

	enriched := 0
	for i, g := range SortedByScore(groups) {
		if i >= e.Limit {
			break
		}
		if ctx.Err() != nil {
			break
		}

		address, area, err := e.geocoder.Reverse(ctx, g.Lat, g.Lng)
		if err != nil {
			logging.Debug().
				Err(err).
				Str("grid_key", g.GridKey).
				Msg("Reverse geocoding failed, leaving cell unenriched")
			continue
		}
		g.Address = address
		g.AreaName = area
		enriched++
	}

	return enriched
}
