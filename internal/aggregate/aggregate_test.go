// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package aggregate

import (
	"context"
	"errors"
	"testing"

	"github.com/citypulse/footfall/internal/models"
)

// mkSamples builds n samples in the same grid cell with the given hour.
func mkSamples(n int, lat, lng float64, hour, day int, ts int64) []models.LocationSample {
	out := make([]models.LocationSample, n)
	for i := range out {
		out[i] = models.LocationSample{
			Lat:       lat,
			Lng:       lng,
			Hour:      hour,
			DayOfWeek: day,
			Timestamp: ts + int64(i),
		}
	}
	return out
}

func TestAggregateGroupsByCell(t *testing.T) {
	opts := DefaultOptions()
	opts.MinCount = 1

	var samples []models.LocationSample
	samples = append(samples, mkSamples(3, 44.4280, 26.1030, 12, 0, 1000)...)
	// Same cell, slightly different coordinates.
	samples = append(samples, mkSamples(2, 44.42833, 26.10302, 13, 1, 2000)...)
	// Neighboring cell.
	samples = append(samples, mkSamples(4, 44.4290, 26.1030, 12, 0, 3000)...)

	groups := Aggregate(samples, opts)
	if len(groups) != 2 {
		t.Fatalf("got %d cells, want 2", len(groups))
	}

	g := groups["44.4280,26.1030"]
	if g == nil {
		t.Fatal("expected cell 44.4280,26.1030")
	}
	if g.Count != 5 {
		t.Errorf("count = %d, want 5", g.Count)
	}
	if g.HourlyDistribution[12] != 3 || g.HourlyDistribution[13] != 2 {
		t.Errorf("hourly distribution = %v", g.HourlyDistribution)
	}
	if g.DailyDistribution[0] != 3 || g.DailyDistribution[1] != 2 {
		t.Errorf("daily distribution = %v", g.DailyDistribution)
	}
	if g.FirstSeen != 1000 {
		t.Errorf("first seen = %d, want 1000", g.FirstSeen)
	}
	if g.LastSeen != 2001 {
		t.Errorf("last seen = %d, want 2001", g.LastSeen)
	}
}

func TestAggregateDistributionsSumToCount(t *testing.T) {
	opts := DefaultOptions()
	opts.MinCount = 1

	var samples []models.LocationSample
	for h := 0; h < 24; h++ {
		samples = append(samples, mkSamples(h%3+1, 44.4280, 26.1030, h, h%7, int64(h*100))...)
	}

	groups := Aggregate(samples, opts)
	for key, g := range groups {
		hourSum, daySum := 0, 0
		for _, c := range g.HourlyDistribution {
			hourSum += c
		}
		for _, c := range g.DailyDistribution {
			daySum += c
		}
		if hourSum != g.Count || daySum != g.Count {
			t.Errorf("cell %s: hourly sum %d, daily sum %d, count %d", key, hourSum, daySum, g.Count)
		}
	}
}

func TestAggregateMinCountFilter(t *testing.T) {
	opts := DefaultOptions()
	opts.MinCount = 10

	var samples []models.LocationSample
	samples = append(samples, mkSamples(9, 44.4280, 26.1030, 12, 0, 1000)...)
	samples = append(samples, mkSamples(10, 44.4290, 26.1030, 12, 0, 2000)...)

	groups := Aggregate(samples, opts)
	if len(groups) != 1 {
		t.Fatalf("got %d cells, want 1 (the 9-sample cell must be dropped)", len(groups))
	}
	if _, ok := groups["44.4290,26.1030"]; !ok {
		t.Error("the 10-sample cell should survive the filter")
	}
}

func TestAggregateEmpty(t *testing.T) {
	groups := Aggregate(nil, DefaultOptions())
	if len(groups) != 0 {
		t.Errorf("empty input produced %d cells", len(groups))
	}
}

func TestPeakHoursOrdering(t *testing.T) {
	// 17 and 8 tie at 30; the lower hour ranks first among ties.
	hourly := map[int]int{17: 30, 8: 30, 18: 25, 12: 10, 3: 5}
	peaks, counts := PeakHours(hourly, 3)

	want := []int{8, 17, 18}
	if len(peaks) != 3 {
		t.Fatalf("got %d peaks, want 3", len(peaks))
	}
	for i := range want {
		if peaks[i] != want[i] {
			t.Errorf("peaks = %v, want %v", peaks, want)
			break
		}
	}
	if counts[0] != 30 || counts[1] != 30 || counts[2] != 25 {
		t.Errorf("peak counts = %v, want [30 30 25]", counts)
	}
}

func TestPeakHoursFewerThanLimit(t *testing.T) {
	peaks, counts := PeakHours(map[int]int{9: 4}, 3)
	if len(peaks) != 1 || peaks[0] != 9 || counts[0] != 4 {
		t.Errorf("peaks = %v counts = %v, want [9] [4]", peaks, counts)
	}

	peaks, _ = PeakHours(map[int]int{}, 3)
	if len(peaks) != 0 {
		t.Errorf("empty distribution produced peaks %v", peaks)
	}
}

func TestTrafficScore(t *testing.T) {
	tests := []struct {
		name  string
		count int
		peaks []int
		want  float64
	}{
		{"all peaks in business hours", 100, []int{8, 12, 20}, 160},
		{"no peaks in business hours", 100, []int{2, 3, 23}, 100},
		{"mixed", 50, []int{7, 9, 21}, 60},
		{"no peaks", 10, nil, 10},
		{"rounding", 7, []int{12}, 8.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrafficScore(tt.count, tt.peaks, 8, 20)
			if got != tt.want {
				t.Errorf("TrafficScore = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortedByScore(t *testing.T) {
	groups := map[string]*models.LocationGroup{
		"a": {GridKey: "a", TrafficScore: 10},
		"b": {GridKey: "b", TrafficScore: 30},
		"c": {GridKey: "c", TrafficScore: 30},
		"d": {GridKey: "d", TrafficScore: 20},
	}
	out := SortedByScore(groups)
	got := []string{out[0].GridKey, out[1].GridKey, out[2].GridKey, out[3].GridKey}
	want := []string{"b", "c", "d", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

// fakeGeocoder records lookups and fails on demand.
type fakeGeocoder struct {
	calls int
	fail  bool
}

func (f *fakeGeocoder) Reverse(_ context.Context, lat, lng float64) (string, string, error) {
	f.calls++
	if f.fail {
		return "", "", errors.New("geocoder down")
	}
	return "Strada Exemplu 1", "Centrul Vechi", nil
}

func TestEnrichGroupsBestEffort(t *testing.T) {
	groups := map[string]*models.LocationGroup{
		"a": {GridKey: "a", TrafficScore: 30},
		"b": {GridKey: "b", TrafficScore: 20},
		"c": {GridKey: "c", TrafficScore: 10},
	}

	geo := &fakeGeocoder{}
	e := NewEnricher(geo, 2)
	n := e.EnrichGroups(context.Background(), groups)

	if n != 2 {
		t.Errorf("enriched %d cells, want 2", n)
	}
	if geo.calls != 2 {
		t.Errorf("geocoder called %d times, want 2 (limit)", geo.calls)
	}
	if groups["a"].Address == "" || groups["b"].Address == "" {
		t.Error("top cells should carry addresses")
	}
	if groups["c"].Address != "" {
		t.Error("cell beyond the limit should stay unenriched")
	}
}

func TestEnrichGroupsGeocoderFailure(t *testing.T) {
	groups := map[string]*models.LocationGroup{
		"a": {GridKey: "a", TrafficScore: 30},
	}
	e := NewEnricher(&fakeGeocoder{fail: true}, 5)
	if n := e.EnrichGroups(context.Background(), groups); n != 0 {
		t.Errorf("enriched %d cells despite failures, want 0", n)
	}
	if groups["a"].Address != "" {
		t.Error("failed lookup must leave address empty")
	}
}

func TestEnrichGroupsCancelledContext(t *testing.T) {
	groups := map[string]*models.LocationGroup{
		"a": {GridKey: "a", TrafficScore: 30},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	geo := &fakeGeocoder{}
	e := NewEnricher(geo, 5)
	if n := e.EnrichGroups(ctx, groups); n != 0 {
		t.Errorf("enriched %d cells on a cancelled context, want 0", n)
	}
	if geo.calls != 0 {
		t.Errorf("geocoder called %d times on a cancelled context", geo.calls)
	}
}
