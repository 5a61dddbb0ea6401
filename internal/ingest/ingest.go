// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package ingest is the single write path into the point store. Every
// sample passes the same gauntlet: bounds check, coordinate rounding,
// identifier anonymization, device sanitization, time-field derivation.
// Nothing raw survives past this package.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/citypulse/footfall/internal/anonymize"
	"github.com/citypulse/footfall/internal/config"
	"github.com/citypulse/footfall/internal/geogrid"
	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/metrics"
	"github.com/citypulse/footfall/internal/models"
)

// RawSample is one observation as submitted by a client, before any
// processing.
type RawSample struct {
	Lat        float64 `json:"lat" validate:"required,latitude"`
	Lng        float64 `json:"lng" validate:"required,longitude"`
	Timestamp  int64   `json:"timestamp,omitempty"`
	UserID     string  `json:"user_id,omitempty"`
	SessionID  string  `json:"session_id,omitempty"`
	DeviceType string  `json:"device_type,omitempty"`
	DeviceOS   string  `json:"device_os,omitempty"`
}

// OutOfBoundsError reports a sample outside the configured city bounds.
type OutOfBoundsError struct {
	Lat float64
	Lng float64
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("coordinates (%f, %f) are outside the service area", e.Lat, e.Lng)
}

// BatchError reports which sample invalidated an atomic batch.
type BatchError struct {
	Index int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("sample %d: %v", e.Index, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Store is the persistence surface the pipeline writes to. *database.DB
// satisfies it.
type Store interface {
	InsertSample(ctx context.Context, s *models.LocationSample) error
	InsertSamples(ctx context.Context, samples []models.LocationSample) error
}

// Pipeline processes and stores raw samples.
type Pipeline struct {
	store      Store
	anonymizer *anonymize.Anonymizer
	bounds     config.BoundsConfig
	location   *time.Location

	// now is injectable for tests.
	now func() time.Time
}

// New creates the ingestion pipeline. location is the city timezone used
// to derive hour, day-of-week and date fields.
func New(store Store, anonymizer *anonymize.Anonymizer, bounds config.BoundsConfig, location *time.Location) *Pipeline {
	if location == nil {
		location = time.UTC
	}
	return &Pipeline{
		store:      store,
		anonymizer: anonymizer,
		bounds:     bounds,
		location:   location,
		now:        time.Now,
	}
}

// Process validates and transforms one raw sample without storing it.
// Returns *OutOfBoundsError when the coordinates fall outside the city.
// An omitted timestamp defaults to the current server time.
func (p *Pipeline) Process(raw *RawSample) (*models.LocationSample, error) {
	if !p.bounds.Contains(raw.Lat, raw.Lng) {
		return nil, &OutOfBoundsError{Lat: raw.Lat, Lng: raw.Lng}
	}

	ts := raw.Timestamp
	if ts <= 0 {
		ts = p.now().Unix()
	}
	t := time.Unix(ts, 0).In(p.location)

	return &models.LocationSample{
		ID:        uuid.NewString(),
		Lat:       geogrid.RoundCoord(raw.Lat),
		Lng:       geogrid.RoundCoord(raw.Lng),
		Timestamp: ts,
		Hour:      t.Hour(),
		// time.Weekday has Sunday=0; the stored convention is Monday=0.
		DayOfWeek:   (int(t.Weekday()) + 6) % 7,
		Date:        t.Format("2006-01-02"),
		UserHash:    p.anonymizer.UserHash(raw.UserID),
		SessionHash: p.anonymizer.SessionHash(raw.SessionID),
		DeviceType:  deviceType(raw.DeviceType),
		DeviceOS:    deviceOS(raw.DeviceOS),
		CreatedAt:   p.now().UTC(),
	}, nil
}

// IngestOne processes and stores a single sample.
func (p *Pipeline) IngestOne(ctx context.Context, raw *RawSample) (*models.LocationSample, error) {
	sample, err := p.Process(raw)
	if err != nil {
		metrics.SamplesRejected.WithLabelValues(rejectionReason(err)).Inc()
		return nil, err
	}

	if err := p.store.InsertSample(ctx, sample); err != nil {
		metrics.SamplesRejected.WithLabelValues("storage").Inc()
		return nil, fmt.Errorf("failed to store sample: %w", err)
	}

	metrics.SamplesIngested.Inc()
	return sample, nil
}

// IngestBatch processes and stores a batch atomically. The whole batch is
// validated before anything is written; one bad sample rejects all of
// them, and the returned *BatchError names it.
func (p *Pipeline) IngestBatch(ctx context.Context, raws []RawSample) ([]models.LocationSample, error) {
	if len(raws) == 0 {
		return nil, nil
	}

	samples := make([]models.LocationSample, 0, len(raws))
	for i := range raws {
		sample, err := p.Process(&raws[i])
		if err != nil {
			// Only the offending sample was judged; the rest are unknowns.
			metrics.SamplesRejected.WithLabelValues(rejectionReason(err)).Inc()
			return nil, &BatchError{Index: i, Err: err}
		}
		samples = append(samples, *sample)
	}

	if err := p.store.InsertSamples(ctx, samples); err != nil {
		metrics.SamplesRejected.WithLabelValues("storage").Add(float64(len(samples)))
		return nil, fmt.Errorf("failed to store batch: %w", err)
	}

	metrics.SamplesIngested.Add(float64(len(samples)))
	logging.Debug().Int("count", len(samples)).Msg("Batch ingested")
	return samples, nil
}

// deviceType sanitizes the coarse device class, tolerating absence.
func deviceType(raw string) string {
	if raw == "" {
		return ""
	}
	return anonymize.SanitizeDeviceType(raw)
}

// deviceOS sanitizes the coarse OS family, tolerating absence.
func deviceOS(raw string) string {
	if raw == "" {
		return ""
	}
	return anonymize.SanitizeDeviceOS(raw)
}

// rejectionReason labels a processing error for the rejection metric.
func rejectionReason(err error) string {
	if _, ok := err.(*OutOfBoundsError); ok {
		return "out_of_bounds"
	}
	return "invalid"
}
