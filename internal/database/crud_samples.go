// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/citypulse/footfall/internal/geogrid"
	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/models"
)

// InsertSample stores one anonymized sample.
func (db *DB) InsertSample(ctx context.Context, s *models.LocationSample) error {
	const query = `INSERT INTO location_samples
		(id, lat, lng, ts, hour, day_of_week, date, user_hash, session_hash, device_type, device_os, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		s.ID, s.Lat, s.Lng, s.Timestamp, s.Hour, s.DayOfWeek, s.Date,
		nullable(s.UserHash), nullable(s.SessionHash),
		nullable(s.DeviceType), nullable(s.DeviceOS), s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// InsertSamples stores a batch atomically: either every sample is written
// or none is.
func (db *DB) InsertSamples(ctx context.Context, samples []models.LocationSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollbackQuietly(tx)

	const query = `INSERT INTO location_samples
		(id, lat, lng, ts, hour, day_of_week, date, user_hash, session_hash, device_type, device_os, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer closeStmtQuietly(stmt)

	for i := range samples {
		s := &samples[i]
		if _, err := stmt.ExecContext(ctx,
			s.ID, s.Lat, s.Lng, s.Timestamp, s.Hour, s.DayOfWeek, s.Date,
			nullable(s.UserHash), nullable(s.SessionHash),
			nullable(s.DeviceType), nullable(s.DeviceOS), s.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert sample %d of %d: %w", i+1, len(samples), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}
	return nil
}

// SamplesInRange returns every sample whose timestamp falls in
// [startTs, endTs], ordered by timestamp ascending.
func (db *DB) SamplesInRange(ctx context.Context, startTs, endTs int64) ([]models.LocationSample, error) {
	const query = `SELECT id, lat, lng, ts, hour, day_of_week, date,
		COALESCE(user_hash, ''), COALESCE(session_hash, ''),
		COALESCE(device_type, ''), COALESCE(device_os, ''), created_at
		FROM location_samples
		WHERE ts >= ? AND ts <= ?
		ORDER BY ts ASC`

	rows, err := db.conn.QueryContext(ctx, query, startTs, endTs)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer closeRowsQuietly(rows)

	var out []models.LocationSample
	for rows.Next() {
		var s models.LocationSample
		if err := rows.Scan(&s.ID, &s.Lat, &s.Lng, &s.Timestamp, &s.Hour, &s.DayOfWeek,
			&s.Date, &s.UserHash, &s.SessionHash, &s.DeviceType, &s.DeviceOS, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sample iteration failed: %w", err)
	}
	return out, nil
}

// PopularCells returns the busiest grid cells in [startTs, endTs] as a
// SQL group-by, ordered by count descending. The cell anchor is computed
// in SQL with the same snap-to-lattice rule the Go aggregator uses.
func (db *DB) PopularCells(ctx context.Context, cellSize float64, limit int, startTs, endTs int64) ([]models.PopularLocation, error) {
	if limit <= 0 {
		limit = 10
	}

	const query = `SELECT
		ROUND(lat / ?) * ? AS cell_lat,
		ROUND(lng / ?) * ? AS cell_lng,
		COUNT(*) AS cnt
		FROM location_samples
		WHERE ts >= ? AND ts <= ?
		GROUP BY cell_lat, cell_lng
		ORDER BY cnt DESC, cell_lat ASC, cell_lng ASC
		LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query,
		cellSize, cellSize, cellSize, cellSize, startTs, endTs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query popular cells: %w", err)
	}
	defer closeRowsQuietly(rows)

	var out []models.PopularLocation
	for rows.Next() {
		var p models.PopularLocation
		if err := rows.Scan(&p.Lat, &p.Lng, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan popular cell: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("popular cell iteration failed: %w", err)
	}
	return out, nil
}

// HourlyStatsNear aggregates hourly and daily traffic around a point:
// every sample within radiusMeters and inside [startTs, endTs]
// contributes. The coarse filter is a SQL bounding box; the exact cut is
// a Haversine check per row.
func (db *DB) HourlyStatsNear(ctx context.Context, lat, lng, radiusMeters float64, startTs, endTs int64) (*models.HourlyLocationStats, error) {
	// One degree of latitude is ~111.2 km; longitude shrinks with cos(lat).
	latDelta := radiusMeters / 111200.0
	lngDelta := latDelta / math.Cos(lat*math.Pi/180)

	const query = `SELECT lat, lng, hour, day_of_week
		FROM location_samples
		WHERE lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?
		  AND ts BETWEEN ? AND ?`

	rows, err := db.conn.QueryContext(ctx, query,
		lat-latDelta, lat+latDelta, lng-lngDelta, lng+lngDelta, startTs, endTs)
	if err != nil {
		return nil, fmt.Errorf("failed to query nearby samples: %w", err)
	}
	defer closeRowsQuietly(rows)

	stats := &models.HourlyLocationStats{
		Lat:         lat,
		Lng:         lng,
		HourlyStats: make(map[string]int),
		DailyStats:  make(map[string]int),
	}
	hourly := make(map[int]int)

	for rows.Next() {
		var sLat, sLng float64
		var hour, day int
		if err := rows.Scan(&sLat, &sLng, &hour, &day); err != nil {
			return nil, fmt.Errorf("failed to scan nearby sample: %w", err)
		}
		if geogrid.Haversine(lat, lng, sLat, sLng) > radiusMeters {
			continue
		}
		stats.TotalCount++
		hourly[hour]++
		stats.HourlyStats[fmt.Sprintf("%02d", hour)]++
		stats.DailyStats[dayName(day)]++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("nearby sample iteration failed: %w", err)
	}

	if len(hourly) > 0 {
		stats.AveragePerHour = math.Round(float64(stats.TotalCount)/float64(len(hourly))*100) / 100
	}
	stats.PeakHours = topHours(hourly, 3)

	return stats, nil
}

// DeleteByUserHash erases every sample tied to a user hash and returns the
// number of rows removed. Supports right-to-erasure requests.
func (db *DB) DeleteByUserHash(ctx context.Context, userHash string) (int64, error) {
	if userHash == "" {
		return 0, fmt.Errorf("user hash must not be empty")
	}

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM location_samples WHERE user_hash = ?`, userHash)
	if err != nil {
		return 0, fmt.Errorf("failed to delete samples: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return deleted, nil
}

// CountSamples returns the total number of stored samples.
func (db *DB) CountSamples(ctx context.Context) (int64, error) {
	var count int64
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM location_samples`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// dayName maps a 0=Monday day index to its English name.
func dayName(day int) string {
	names := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	if day < 0 || day >= len(names) {
		return "Unknown"
	}
	return names[day]
}

// topHours returns up to limit hours by descending count, ties toward the
// lower hour. Mirrors the aggregator's peak-hour rule.
func topHours(hourly map[int]int, limit int) []int {
	best := make([]int, 0, limit)
	for len(best) < limit {
		bestHour, bestCount := -1, 0
		for h, c := range hourly {
			taken := false
			for _, b := range best {
				if b == h {
					taken = true
					break
				}
			}
			if taken {
				continue
			}
			if c > bestCount || (c == bestCount && bestHour != -1 && h < bestHour) {
				bestHour, bestCount = h, c
			}
		}
		if bestHour == -1 {
			break
		}
		best = append(best, bestHour)
	}
	return best
}

// nullable converts an empty string to SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		logging.Debug().Err(err).Msg("Transaction rollback failed")
	}
}

func closeStmtQuietly(stmt *sql.Stmt) {
	if err := stmt.Close(); err != nil {
		logging.Debug().Err(err).Msg("Statement close failed")
	}
}

func closeRowsQuietly(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.Debug().Err(err).Msg("Rows close failed")
	}
}
