// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package services

import (
	"context"
	"time"

	"github.com/citypulse/footfall/internal/logging"
)

// GarbageCollector is the maintenance surface the GC service drives.
// *snapshot.Store satisfies it.
type GarbageCollector interface {
	RunGC() error
}

// GCService periodically runs the snapshot store's value-log garbage
// collection. Badger expires snapshot entries itself; GC reclaims the
// disk space they occupied.
type GCService struct {
	gc       GarbageCollector
	interval time.Duration
}

// NewGCService creates the GC loop service.
func NewGCService(gc GarbageCollector, interval time.Duration) *GCService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &GCService{gc: gc, interval: interval}
}

// Serve implements suture.Service.
func (s *GCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.gc.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Snapshot store GC round failed")
			}
		}
	}
}

func (s *GCService) String() string {
	return "snapshot-gc"
}
