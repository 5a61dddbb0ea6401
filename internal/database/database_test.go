// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citypulse/footfall/internal/config"
	"github.com/citypulse/footfall/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close failed: %v", err)
		}
	})
	return db
}

func testSample(lat, lng float64, ts int64, hour, day int, userHash string) models.LocationSample {
	return models.LocationSample{
		ID:        uuid.NewString(),
		Lat:       lat,
		Lng:       lng,
		Timestamp: ts,
		Hour:      hour,
		DayOfWeek: day,
		Date:      "2026-08-01",
		UserHash:  userHash,
		CreatedAt: time.Now().UTC(),
	}
}

func TestInsertAndQueryRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s := testSample(44.4280, 26.1030, int64(1000+i*100), 12, 0, "anon_aaaa000000000000")
		if err := db.InsertSample(ctx, &s); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	got, err := db.SamplesInRange(ctx, 1100, 1300)
	if err != nil {
		t.Fatalf("range query failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d samples, want 3", len(got))
	}
	// Ordered ascending and boundaries inclusive.
	if got[0].Timestamp != 1100 || got[2].Timestamp != 1300 {
		t.Errorf("range boundaries wrong: first=%d last=%d", got[0].Timestamp, got[2].Timestamp)
	}
}

func TestInsertSamplesAtomicBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	dupID := uuid.NewString()
	batch := []models.LocationSample{
		testSample(44.4280, 26.1030, 1000, 12, 0, ""),
		testSample(44.4280, 26.1030, 1001, 12, 0, ""),
	}
	batch[0].ID = dupID
	batch[1].ID = dupID // primary key conflict forces a rollback

	if err := db.InsertSamples(ctx, batch); err == nil {
		t.Fatal("duplicate IDs in one batch should fail")
	}

	count, err := db.CountSamples(ctx)
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("failed batch left %d rows, want 0", count)
	}

	// A clean batch commits fully.
	ok := []models.LocationSample{
		testSample(44.4280, 26.1030, 1000, 12, 0, ""),
		testSample(44.4281, 26.1031, 1001, 13, 1, ""),
	}
	if err := db.InsertSamples(ctx, ok); err != nil {
		t.Fatalf("clean batch failed: %v", err)
	}
	count, _ = db.CountSamples(ctx)
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestInsertSamplesEmptyBatch(t *testing.T) {
	db := newTestDB(t)
	if err := db.InsertSamples(context.Background(), nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}

func TestPopularCells(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var batch []models.LocationSample
	// Busy cell: 5 samples.
	for i := 0; i < 5; i++ {
		batch = append(batch, testSample(44.4280, 26.1030, int64(1000+i), 12, 0, ""))
	}
	// Quieter cell: 2 samples.
	for i := 0; i < 2; i++ {
		batch = append(batch, testSample(44.4310, 26.1050, int64(2000+i), 14, 2, ""))
	}
	if err := db.InsertSamples(ctx, batch); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	cells, err := db.PopularCells(ctx, 0.001, 10, 0, 10000)
	if err != nil {
		t.Fatalf("popular cells failed: %v", err)
	}
	if len(cells) != 2 {
		t.Fatalf("got %d cells, want 2", len(cells))
	}
	if cells[0].Count != 5 || cells[1].Count != 2 {
		t.Errorf("counts = [%d %d], want [5 2]", cells[0].Count, cells[1].Count)
	}
}

func TestHourlyStatsNear(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	var batch []models.LocationSample
	// Nearby samples across two hours.
	batch = append(batch, testSample(44.4280, 26.1030, 1000, 12, 0, ""))
	batch = append(batch, testSample(44.4281, 26.1031, 1001, 12, 0, ""))
	batch = append(batch, testSample(44.4280, 26.1030, 1002, 18, 5, ""))
	// Far away (several km).
	batch = append(batch, testSample(44.5000, 26.2000, 1003, 12, 0, ""))
	if err := db.InsertSamples(ctx, batch); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	stats, err := db.HourlyStatsNear(ctx, 44.4280, 26.1030, 200, 0, 2000)
	if err != nil {
		t.Fatalf("hourly stats failed: %v", err)
	}
	if stats.TotalCount != 3 {
		t.Errorf("total = %d, want 3 (far sample excluded)", stats.TotalCount)
	}
	if stats.HourlyStats["12"] != 2 || stats.HourlyStats["18"] != 1 {
		t.Errorf("hourly stats = %v", stats.HourlyStats)
	}
	if stats.DailyStats["Monday"] != 2 || stats.DailyStats["Saturday"] != 1 {
		t.Errorf("daily stats = %v", stats.DailyStats)
	}
	if len(stats.PeakHours) == 0 || stats.PeakHours[0] != 12 {
		t.Errorf("peak hours = %v, want 12 first", stats.PeakHours)
	}
	if stats.AveragePerHour != 1.5 {
		t.Errorf("average per hour = %v, want 1.5", stats.AveragePerHour)
	}

	// A narrower time window drops the hour-18 sample.
	stats, err = db.HourlyStatsNear(ctx, 44.4280, 26.1030, 200, 1000, 1001)
	if err != nil {
		t.Fatalf("hourly stats failed: %v", err)
	}
	if stats.TotalCount != 2 {
		t.Errorf("total in window = %d, want 2", stats.TotalCount)
	}
}

func TestDeleteByUserHash(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	batch := []models.LocationSample{
		testSample(44.4280, 26.1030, 1000, 12, 0, "anon_target0000000000"),
		testSample(44.4280, 26.1030, 1001, 12, 0, "anon_target0000000000"),
		testSample(44.4280, 26.1030, 1002, 12, 0, "anon_other00000000000"),
		testSample(44.4280, 26.1030, 1003, 12, 0, ""),
	}
	if err := db.InsertSamples(ctx, batch); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	deleted, err := db.DeleteByUserHash(ctx, "anon_target0000000000")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted %d rows, want 2", deleted)
	}

	count, _ := db.CountSamples(ctx)
	if count != 2 {
		t.Errorf("remaining = %d, want 2", count)
	}
}

func TestDeleteByUserHashEmpty(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.DeleteByUserHash(context.Background(), ""); err == nil {
		t.Error("empty hash must be rejected")
	}
}

func TestNullableDeviceFields(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	s := testSample(44.4280, 26.1030, 1000, 12, 0, "")
	s.DeviceType = "mobile"
	s.DeviceOS = "Android"
	if err := db.InsertSample(ctx, &s); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	got, err := db.SamplesInRange(ctx, 0, 10000)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d samples, want 1", len(got))
	}
	if got[0].DeviceType != "mobile" || got[0].DeviceOS != "Android" {
		t.Errorf("device fields = %q/%q", got[0].DeviceType, got[0].DeviceOS)
	}
	if got[0].UserHash != "" {
		t.Errorf("NULL user hash scanned as %q, want empty", got[0].UserHash)
	}
}

func TestPing(t *testing.T) {
	db := newTestDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func BenchmarkInsertSamples(b *testing.B) {
	db, err := New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		b.Fatalf("open failed: %v", err)
	}
	defer db.Close()

	batch := make([]models.LocationSample, 100)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := range batch {
			batch[j] = testSample(44.4280, 26.1030, int64(i*100+j), 12, 0, "")
			batch[j].ID = fmt.Sprintf("%d-%d", i, j)
		}
		if err := db.InsertSamples(context.Background(), batch); err != nil {
			b.Fatalf("batch failed: %v", err)
		}
	}
}
