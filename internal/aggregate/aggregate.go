// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package aggregate turns raw location samples into per-grid-cell traffic
// aggregates: counts, hourly and daily distributions, peak hours, and a
// business-hours-weighted traffic score.
//
// Aggregation is a pure function of its input. Aggregates are disposable
// projections recomputed in full on every run, never mutated incrementally.
package aggregate

import (
	"math"
	"sort"

	"github.com/citypulse/footfall/internal/geogrid"
	"github.com/citypulse/footfall/internal/models"
)

// Options tunes a single aggregation run.
type Options struct {
	// CellSize is the grid cell edge in degrees.
	CellSize float64

	// MinCount drops cells with fewer samples from the output. Must be
	// at least 1.
	MinCount int

	// BusinessHoursStart and BusinessHoursEnd bound, inclusively, the
	// window whose peak hours earn the traffic-score bonus.
	BusinessHoursStart int
	BusinessHoursEnd   int

	// PeakHourLimit is the number of peak hours computed per cell.
	// Zero means the default of 3.
	PeakHourLimit int
}

// DefaultOptions returns the standard aggregation parameters.
func DefaultOptions() Options {
	return Options{
		CellSize:           geogrid.DefaultCellSize,
		MinCount:           10,
		BusinessHoursStart: 8,
		BusinessHoursEnd:   20,
		PeakHourLimit:      3,
	}
}

func (o Options) peakLimit() int {
	if o.PeakHourLimit <= 0 {
		return 3
	}
	return o.PeakHourLimit
}

// Aggregate groups samples into grid cells and computes per-cell traffic
// statistics. Cells with fewer than MinCount samples are omitted. The
// result maps grid key to aggregate.
func Aggregate(samples []models.LocationSample, opts Options) map[string]*models.LocationGroup {
	if opts.CellSize <= 0 {
		opts.CellSize = geogrid.DefaultCellSize
	}
	if opts.MinCount < 1 {
		opts.MinCount = 1
	}

	type accum struct {
		latSum, lngSum float64
		count          int
		hourly         map[int]int
		daily          map[int]int
		firstSeen      int64
		lastSeen       int64
	}

	cells := make(map[string]*accum)
	for i := range samples {
		s := &samples[i]
		key := geogrid.Key(s.Lat, s.Lng, opts.CellSize)

		acc, ok := cells[key]
		if !ok {
			acc = &accum{
				hourly:    make(map[int]int),
				daily:     make(map[int]int),
				firstSeen: s.Timestamp,
				lastSeen:  s.Timestamp,
			}
			cells[key] = acc
		}

		acc.latSum += s.Lat
		acc.lngSum += s.Lng
		acc.count++
		acc.hourly[s.Hour]++
		acc.daily[s.DayOfWeek]++
		if s.Timestamp < acc.firstSeen {
			acc.firstSeen = s.Timestamp
		}
		if s.Timestamp > acc.lastSeen {
			acc.lastSeen = s.Timestamp
		}
	}

	groups := make(map[string]*models.LocationGroup)
	for key, acc := range cells {
		if acc.count < opts.MinCount {
			continue
		}

		peaks, peakCounts := PeakHours(acc.hourly, opts.peakLimit())
		groups[key] = &models.LocationGroup{
			GridKey:            key,
			Lat:                acc.latSum / float64(acc.count),
			Lng:                acc.lngSum / float64(acc.count),
			Count:              acc.count,
			TrafficScore:       TrafficScore(acc.count, peaks, opts.BusinessHoursStart, opts.BusinessHoursEnd),
			HourlyDistribution: acc.hourly,
			DailyDistribution:  acc.daily,
			PeakHours:          peaks,
			PeakHourCounts:     peakCounts,
			FirstSeen:          acc.firstSeen,
			LastSeen:           acc.lastSeen,
		}
	}

	return groups
}

// PeakHours returns up to limit hours ordered by descending sample count,
// ties broken toward the lower hour. The second return is the matching
// counts, index for index.
func PeakHours(hourly map[int]int, limit int) ([]int, []int) {
	if len(hourly) == 0 || limit <= 0 {
		return []int{}, []int{}
	}

	hours := make([]int, 0, len(hourly))
	for h := range hourly {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if hourly[hours[i]] != hourly[hours[j]] {
			return hourly[hours[i]] > hourly[hours[j]]
		}
		return hours[i] < hours[j]
	})

	if len(hours) > limit {
		hours = hours[:limit]
	}
	counts := make([]int, len(hours))
	for i, h := range hours {
		counts[i] = hourly[h]
	}
	return hours, counts
}

// TrafficScore computes the cell score: the sample count boosted 20% for
// each peak hour falling inside the business-hours window, rounded to two
// decimal places.
//
//	score = round2(count * (1 + 0.2 * peaksInWindow))
//
// A cell whose three peaks all sit in business hours scores 1.6x its count.
func TrafficScore(count int, peakHours []int, businessStart, businessEnd int) float64 {
	inWindow := 0
	for _, h := range peakHours {
		if h >= businessStart && h <= businessEnd {
			inWindow++
		}
	}
	score := float64(count) * (1 + 0.2*float64(inWindow))
	return math.Round(score*100) / 100
}

// SortedByScore returns the groups ordered by descending traffic score,
// ties broken by grid key for a stable order.
func SortedByScore(groups map[string]*models.LocationGroup) []*models.LocationGroup {
	out := make([]*models.LocationGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TrafficScore != out[j].TrafficScore {
			return out[i].TrafficScore > out[j].TrafficScore
		}
		return out[i].GridKey < out[j].GridKey
	})
	return out
}
