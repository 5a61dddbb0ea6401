// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"github.com/citypulse/footfall/internal/aggregate"
	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/metrics"
	"github.com/citypulse/footfall/internal/models"
)

// DefaultSuggestionLimit is how many suggestions a request gets unless it
// asks for fewer.
const DefaultSuggestionLimit = 5

// Engine produces ranked business-location suggestions for an analysis
// snapshot. With a generative client it asks the model to reason over the
// busiest cells and validates the answer; without one, or on any model
// failure, the deterministic fallback ranking serves instead.
type Engine struct {
	client GenerativeClient
}

// NewEngine creates a suggestion engine. client may be nil.
func NewEngine(client GenerativeClient) *Engine {
	return &Engine{client: client}
}

// Suggest ranks up to limit cells for the given business type. rangeDays
// is the analysis window length in days, used for the daily-visitor
// estimate. The returned ranks are always dense 1..N regardless of what
// the model claimed.
func (e *Engine) Suggest(ctx context.Context, groups map[string]*models.LocationGroup, businessType string, limit, rangeDays int) []models.Suggestion {
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	if len(groups) == 0 {
		return []models.Suggestion{}
	}

	if e.client == nil {
		metrics.SuggestionRequests.WithLabelValues("fallback").Inc()
		return fallbackSuggestions(groups, businessType, limit, rangeDays)
	}

	suggestions, err := e.generate(ctx, groups, businessType, limit, rangeDays)
	if err != nil {
		logging.Warn().Err(err).
			Str("business_type", businessType).
			Msg("Generative suggestions failed, serving fallback ranking")
		metrics.SuggestionRequests.WithLabelValues("fallback").Inc()
		return fallbackSuggestions(groups, businessType, limit, rangeDays)
	}

	metrics.SuggestionRequests.WithLabelValues("generated").Inc()
	return suggestions
}

// aiSuggestion is the JSON shape the model is asked to emit.
type aiSuggestion struct {
	GridKey                string   `json:"grid_key"`
	Reasoning              string   `json:"reasoning"`
	EstimatedDailyVisitors int      `json:"estimated_daily_visitors"`
	BestHours              []int    `json:"best_hours"`
	Recommendations        []string `json:"recommendations"`
}

// generate runs the model path end to end: prompt, parse, validate.
func (e *Engine) generate(ctx context.Context, groups map[string]*models.LocationGroup, businessType string, limit, rangeDays int) ([]models.Suggestion, error) {
	prompt := buildPrompt(groups, businessType, limit)

	raw, err := e.client.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed []aiSuggestion
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("model answer is not valid JSON: %w", err)
	}
	if len(parsed) == 0 {
		return nil, fmt.Errorf("model answer contained no suggestions")
	}

	// Keep only suggestions referencing real cells, in the model's order,
	// each cell at most once. Ranks are reassigned densely; model-claimed
	// ranks are never trusted.
	seen := make(map[string]bool)
	out := make([]models.Suggestion, 0, limit)
	for _, p := range parsed {
		g, ok := groups[p.GridKey]
		if !ok || seen[p.GridKey] {
			continue
		}
		seen[p.GridKey] = true

		address := g.Address
		if address == "" {
			address = "Unknown"
		}
		bestHours := p.BestHours
		if len(bestHours) == 0 {
			bestHours = append([]int(nil), g.PeakHours...)
		}
		visitors := p.EstimatedDailyVisitors
		if visitors <= 0 {
			days := rangeDays
			if days < 1 {
				days = 1
			}
			visitors = g.Count / days
		}

		out = append(out, models.Suggestion{
			Rank:                   len(out) + 1,
			Lat:                    g.Lat,
			Lng:                    g.Lng,
			Address:                address,
			TrafficScore:           g.TrafficScore,
			Reasoning:              p.Reasoning,
			BusinessType:           businessType,
			EstimatedDailyVisitors: visitors,
			BestHours:              bestHours,
			Recommendations:        p.Recommendations,
		})
		if len(out) == limit {
			break
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("model suggestions referenced no known cells")
	}
	return out, nil
}

// buildPrompt describes the busiest cells and the required answer shape.
// Twice the requested count of candidate cells keeps the model's choice
// space bounded while leaving room to fill the list.
func buildPrompt(groups map[string]*models.LocationGroup, businessType string, limit int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a retail location analyst. Rank the best locations for a new %s ", businessType)
	fmt.Fprintf(&b, "from the pedestrian traffic cells below. Return at most %d suggestions.\n\n", limit)

	cellLimit := 2 * limit
	for i, g := range aggregate.SortedByScore(groups) {
		if i >= cellLimit {
			break
		}
		fmt.Fprintf(&b, "cell %s: %d observations, traffic score %.2f, peak hours %v",
			g.GridKey, g.Count, g.TrafficScore, g.PeakHours)
		if g.AreaName != "" {
			fmt.Fprintf(&b, ", area %s", g.AreaName)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nAnswer with a JSON array only, no prose, no code fences. Each element:\n")
	b.WriteString(`{"grid_key": "<cell key from above>", "reasoning": "<one sentence>", ` +
		`"estimated_daily_visitors": <int>, "best_hours": [<int>...], "recommendations": ["<tip>", ...]}`)
	b.WriteString("\nOrder the array best location first.")

	return b.String()
}
