// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package suggest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/citypulse/footfall/internal/models"
)

func testGroups() map[string]*models.LocationGroup {
	return map[string]*models.LocationGroup{
		"44.4280,26.1030": {
			GridKey:            "44.4280,26.1030",
			Lat:                44.4280,
			Lng:                26.1030,
			Count:              300,
			TrafficScore:       480,
			HourlyDistribution: map[int]int{8: 40, 12: 80, 13: 70, 17: 60, 19: 50},
			DailyDistribution:  map[int]int{0: 60, 1: 60, 2: 60, 5: 60, 6: 60},
			PeakHours:          []int{12, 13, 17},
			Address:            "Strada Lipscani 21",
			AreaName:           "Centrul Vechi",
		},
		"44.4350,26.0970": {
			GridKey:            "44.4350,26.0970",
			Lat:                44.4350,
			Lng:                26.0970,
			Count:              150,
			TrafficScore:       180,
			HourlyDistribution: map[int]int{7: 50, 8: 60, 9: 40},
			DailyDistribution:  map[int]int{0: 50, 1: 50, 2: 50},
			PeakHours:          []int{8, 7, 9},
		},
	}
}

// fakeClient returns a canned answer or error.
type fakeClient struct {
	answer string
	err    error
	prompt string
}

func (f *fakeClient) Generate(_ context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct{ name, in, want string }{
		{"plain", `[{"a":1}]`, `[{"a":1}]`},
		{"json fence", "```json\n[{\"a\":1}]\n```", `[{"a":1}]`},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`},
		{"leading whitespace", "  ```json\n[]\n```  ", `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Errorf("StripCodeFence = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSuggestGeneratedPath(t *testing.T) {
	client := &fakeClient{answer: "```json\n" + `[
		{"grid_key": "44.4350,26.0970", "reasoning": "Morning commuters", "estimated_daily_visitors": 40, "best_hours": [7, 8], "recommendations": ["Open early"]},
		{"grid_key": "44.4280,26.1030", "reasoning": "Lunch crowd", "estimated_daily_visitors": 90, "best_hours": [12, 13], "recommendations": ["Lunch menu"]}
	]` + "\n```"}

	e := NewEngine(client)
	got := e.Suggest(context.Background(), testGroups(), "cafe", 5, 30)

	if len(got) != 2 {
		t.Fatalf("got %d suggestions, want 2", len(got))
	}
	// Model order preserved, ranks dense from 1.
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Errorf("ranks = %d,%d, want 1,2", got[0].Rank, got[1].Rank)
	}
	if got[0].Lat != 44.4350 {
		t.Errorf("first suggestion should be the model's first cell, got lat %v", got[0].Lat)
	}
	if got[0].Reasoning != "Morning commuters" {
		t.Errorf("reasoning = %q", got[0].Reasoning)
	}
	if got[1].Address != "Strada Lipscani 21" {
		t.Errorf("address should come from the cell, got %q", got[1].Address)
	}
	if got[0].Address != "Unknown" {
		t.Errorf("unenriched cell address = %q, want Unknown", got[0].Address)
	}
	if got[0].BusinessType != "cafe" {
		t.Errorf("business type = %q", got[0].BusinessType)
	}
}

func TestSuggestIgnoresUnknownAndDuplicateCells(t *testing.T) {
	client := &fakeClient{answer: `[
		{"grid_key": "99.9999,99.9999", "reasoning": "hallucinated"},
		{"grid_key": "44.4280,26.1030", "reasoning": "real"},
		{"grid_key": "44.4280,26.1030", "reasoning": "duplicate"}
	]`}

	e := NewEngine(client)
	got := e.Suggest(context.Background(), testGroups(), "cafe", 5, 30)

	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1", len(got))
	}
	if got[0].Rank != 1 || got[0].Reasoning != "real" {
		t.Errorf("suggestion = %+v", got[0])
	}
}

func TestSuggestFallsBackOnModelError(t *testing.T) {
	e := NewEngine(&fakeClient{err: errors.New("model down")})
	got := e.Suggest(context.Background(), testGroups(), "cafe", 5, 30)

	if len(got) != 2 {
		t.Fatalf("fallback produced %d suggestions, want 2", len(got))
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Errorf("fallback ranks not dense: %d,%d", got[0].Rank, got[1].Rank)
	}
	if got[0].Reasoning == "" {
		t.Error("fallback must synthesize reasoning")
	}
}

func TestSuggestFallsBackOnGarbageAnswer(t *testing.T) {
	e := NewEngine(&fakeClient{answer: "I think the best spot is downtown!"})
	got := e.Suggest(context.Background(), testGroups(), "restaurant", 5, 30)
	if len(got) == 0 {
		t.Fatal("garbage model answer must still produce fallback suggestions")
	}
}

func TestSuggestNilClientUsesFallback(t *testing.T) {
	e := NewEngine(nil)
	got := e.Suggest(context.Background(), testGroups(), "cafe", 1, 30)
	if len(got) != 1 {
		t.Fatalf("got %d suggestions, want 1 (limit)", len(got))
	}
	// The cafe multiplier rewards lunch/dinner traffic; the first cell has
	// 200 meal-hour samples vs 0, so it must win.
	if got[0].Lat != 44.4280 {
		t.Errorf("winner lat = %v, want the lunch-heavy cell", got[0].Lat)
	}
}

func TestSuggestEmptyGroups(t *testing.T) {
	e := NewEngine(nil)
	if got := e.Suggest(context.Background(), nil, "cafe", 5, 30); len(got) != 0 {
		t.Errorf("empty groups produced %d suggestions", len(got))
	}
}

func TestBusinessScoreVendingMachine(t *testing.T) {
	g := &models.LocationGroup{
		TrafficScore:       100,
		HourlyDistribution: map[int]int{8: 5, 9: 3, 10: 0, 11: 7},
	}
	// Three distinct non-zero hours: 100 * 1.3.
	if got := businessScore(g, "vending_machine"); got != 130 {
		t.Errorf("vending score = %v, want 130", got)
	}
}

func TestBusinessScoreCafe(t *testing.T) {
	g := &models.LocationGroup{
		TrafficScore:       100,
		HourlyDistribution: map[int]int{12: 10, 13: 10, 19: 5, 3: 100},
	}
	// 25 meal-hour samples: 100 * 1.25. The 03:00 spike contributes nothing.
	if got := businessScore(g, "cafe"); got != 125 {
		t.Errorf("cafe score = %v, want 125", got)
	}
	if got := businessScore(g, "restaurant"); got != 125 {
		t.Errorf("restaurant score = %v, want 125", got)
	}
}

func TestBusinessScoreOtherUnmodified(t *testing.T) {
	g := &models.LocationGroup{TrafficScore: 42, HourlyDistribution: map[int]int{12: 99}}
	if got := businessScore(g, "pharmacy"); got != 42 {
		t.Errorf("unknown type score = %v, want untouched 42", got)
	}
}

func TestFallbackEstimatedVisitors(t *testing.T) {
	groups := map[string]*models.LocationGroup{
		"k": {GridKey: "k", Count: 300, TrafficScore: 300, HourlyDistribution: map[int]int{}},
	}
	got := fallbackSuggestions(groups, "cafe", 5, 30)
	if got[0].EstimatedDailyVisitors != 10 {
		t.Errorf("estimated visitors = %d, want 300/30 = 10", got[0].EstimatedDailyVisitors)
	}
}

func TestPromptCarriesTwiceTheRequestedCells(t *testing.T) {
	groups := make(map[string]*models.LocationGroup)
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("44.40%d0,26.1000", i)
		groups[key] = &models.LocationGroup{
			GridKey:            key,
			Count:              100 - i,
			TrafficScore:       float64(100 - i),
			HourlyDistribution: map[int]int{12: 100 - i},
		}
	}
	client := &fakeClient{err: errors.New("short-circuit")}
	NewEngine(client).Suggest(context.Background(), groups, "cafe", 2, 30)

	if got := strings.Count(client.prompt, "cell 44."); got != 4 {
		t.Errorf("prompt describes %d candidate cells, want 4 (twice the requested 2)", got)
	}
	if !strings.Contains(client.prompt, "44.4000,26.1000") {
		t.Error("prompt must include the top-scored cell")
	}
}

func TestPromptMentionsCellsAndType(t *testing.T) {
	client := &fakeClient{err: errors.New("short-circuit")}
	e := NewEngine(client)
	e.Suggest(context.Background(), testGroups(), "bakery", 3, 30)

	for _, want := range []string{"bakery", "44.4280,26.1030", "44.4350,26.0970", "JSON"} {
		if !strings.Contains(client.prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
