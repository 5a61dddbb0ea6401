// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/metrics"
	"github.com/citypulse/footfall/internal/models"
)

// DefaultRangeDays is the lookback applied when a request omits the start
// of the analysis range.
const DefaultRangeDays = 30

// Key derives the canonical snapshot key for a date range. Equal ranges
// always map to the same key, so at most one live snapshot exists per
// range.
func Key(start, end time.Time) string {
	return fmt.Sprintf("%d_%d", start.Unix(), end.Unix())
}

// NormalizeRange fills in missing range boundaries: a zero end becomes
// now, a zero start becomes end minus DefaultRangeDays. Returns an error
// when start does not precede end.
func NormalizeRange(start, end, now time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.AddDate(0, 0, -DefaultRangeDays)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start %s must precede end %s",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start, end, nil
}

// Storer is the persistence surface the cache needs. *Store satisfies it.
type Storer interface {
	Put(snap *models.AnalysisSnapshot) error
	Get(key string) (*models.AnalysisSnapshot, error)
}

// ComputeFunc builds a fresh snapshot body for a range: the location
// groups keyed by grid cell.
type ComputeFunc func(ctx context.Context, start, end time.Time) (map[string]*models.LocationGroup, error)

// Cache serves analysis snapshots with a freshness window. A Get for a
// range returns the stored snapshot when one exists and is younger than
// TTL; otherwise the compute function runs and its result replaces
// whatever was stored.
type Cache struct {
	store Storer
	ttl   time.Duration

	// now is injectable for tests.
	now func() time.Time

	// mu serializes recomputation so concurrent requests for the same
	// expired range do not all recompute.
	mu sync.Mutex
}

// NewCache creates a snapshot cache over the given store.
func NewCache(store Storer, ttl time.Duration) *Cache {
	return &Cache{
		store: store,
		ttl:   ttl,
		now:   time.Now,
	}
}

// GetOrCreate returns the snapshot for [start, end], computing it when
// absent, expired, or force is set. The boolean reports whether the
// snapshot came from the cache.
func (c *Cache) GetOrCreate(ctx context.Context, start, end time.Time, force bool, compute ComputeFunc) (*models.AnalysisSnapshot, bool, error) {
	key := Key(start, end)

	if !force {
		snap, err := c.store.Get(key)
		if err == nil && !snap.Expired(c.now()) {
			metrics.SnapshotHits.Inc()
			return snap, true, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			// A broken store entry is recoverable by recomputing.
			logging.Warn().Err(err).Str("snapshot_key", key).Msg("Snapshot load failed, recomputing")
		}
	}
	metrics.SnapshotMisses.Inc()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another request may have finished the computation while this one
	// waited on the lock.
	if !force {
		if snap, err := c.store.Get(key); err == nil && !snap.Expired(c.now()) {
			metrics.SnapshotHits.Inc()
			return snap, true, nil
		}
	}

	groups, err := compute(ctx, start, end)
	if err != nil {
		return nil, false, fmt.Errorf("snapshot computation failed: %w", err)
	}

	now := c.now()
	snap := &models.AnalysisSnapshot{
		SnapshotKey:    key,
		StartDate:      start,
		EndDate:        end,
		LocationGroups: groups,
		TotalLocations: len(groups),
		CreatedAt:      now,
		ExpiresAt:      now.Add(c.ttl),
	}

	if err := c.store.Put(snap); err != nil {
		// The snapshot is still usable for this request.
		logging.Error().Err(err).Str("snapshot_key", key).Msg("Failed to persist snapshot")
	} else {
		logging.Info().
			Str("snapshot_key", key).
			Int("locations", snap.TotalLocations).
			Msg("Snapshot created")
	}

	return snap, false, nil
}
