// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package suggest

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/citypulse/footfall/internal/models"
)

// businessScore adjusts a cell's traffic score for the requested business
// type. The multipliers reward temporal patterns that matter to the
// business, not raw volume alone:
//
//   - vending_machine: +10% per distinct active hour. Machines earn
//     around the clock, so spread beats spikes.
//   - cafe, restaurant: +1% per sample during lunch (11-14) and dinner
//     (18-21) hours. Meal-time traffic converts.
//   - anything else: the raw traffic score.
func businessScore(g *models.LocationGroup, businessType string) float64 {
	switch strings.ToLower(businessType) {
	case "vending_machine":
		activeHours := 0
		for _, c := range g.HourlyDistribution {
			if c > 0 {
				activeHours++
			}
		}
		return round2(g.TrafficScore * (1 + 0.1*float64(activeHours)))
	case "cafe", "restaurant":
		mealTraffic := 0
		for h, c := range g.HourlyDistribution {
			if (h >= 11 && h <= 14) || (h >= 18 && h <= 21) {
				mealTraffic += c
			}
		}
		return round2(g.TrafficScore * (1 + 0.01*float64(mealTraffic)))
	default:
		return g.TrafficScore
	}
}

// fallbackSuggestions ranks cells deterministically without a generative
// model: business-adjusted score descending, ties toward the lower grid
// key. Reasoning text is synthesized from the cell's own statistics.
func fallbackSuggestions(groups map[string]*models.LocationGroup, businessType string, limit int, rangeDays int) []models.Suggestion {
	type scored struct {
		group *models.LocationGroup
		score float64
	}

	cells := make([]scored, 0, len(groups))
	for _, g := range groups {
		cells = append(cells, scored{group: g, score: businessScore(g, businessType)})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].score != cells[j].score {
			return cells[i].score > cells[j].score
		}
		return cells[i].group.GridKey < cells[j].group.GridKey
	})

	if limit > 0 && len(cells) > limit {
		cells = cells[:limit]
	}
	if rangeDays < 1 {
		rangeDays = 1
	}

	out := make([]models.Suggestion, 0, len(cells))
	for i, c := range cells {
		g := c.group
		address := g.Address
		if address == "" {
			address = "Unknown"
		}

		out = append(out, models.Suggestion{
			Rank:                   i + 1,
			Lat:                    g.Lat,
			Lng:                    g.Lng,
			Address:                address,
			TrafficScore:           c.score,
			Reasoning:              fallbackReasoning(g, businessType),
			BusinessType:           businessType,
			EstimatedDailyVisitors: int(math.Round(float64(g.Count) / float64(rangeDays))),
			BestHours:              append([]int(nil), g.PeakHours...),
			Recommendations:        fallbackRecommendations(g, businessType),
		})
	}
	return out
}

// fallbackReasoning builds a short justification from cell statistics.
func fallbackReasoning(g *models.LocationGroup, businessType string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recorded %d pedestrian observations", g.Count)
	if len(g.PeakHours) > 0 {
		fmt.Fprintf(&b, " with peak activity around %02d:00", g.PeakHours[0])
	}
	if g.AreaName != "" {
		fmt.Fprintf(&b, " in %s", g.AreaName)
	}
	fmt.Fprintf(&b, ". Traffic pattern scored %.2f for a %s.", g.TrafficScore, businessType)
	return b.String()
}

// fallbackRecommendations derives practical tips from the distributions.
func fallbackRecommendations(g *models.LocationGroup, businessType string) []string {
	var recs []string

	if len(g.PeakHours) > 0 {
		hours := make([]string, len(g.PeakHours))
		for i, h := range g.PeakHours {
			hours[i] = fmt.Sprintf("%02d:00", h)
		}
		recs = append(recs, "Staff for peak hours: "+strings.Join(hours, ", "))
	}

	weekend := g.DailyDistribution[5] + g.DailyDistribution[6]
	if g.Count > 0 && float64(weekend)/float64(g.Count) > 0.4 {
		recs = append(recs, "Weekend traffic is strong; keep weekend opening hours")
	}

	if strings.EqualFold(businessType, "vending_machine") {
		recs = append(recs, "Traffic spans many hours; an unattended format fits this spot")
	}

	if len(recs) == 0 {
		recs = append(recs, "Verify foot traffic on site before committing")
	}
	return recs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
