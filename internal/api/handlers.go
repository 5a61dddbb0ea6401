// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Package api exposes the Footfall HTTP surface: sample ingestion,
// traffic analytics, cached location analysis, and business-location
// suggestions.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/citypulse/footfall/internal/aggregate"
	"github.com/citypulse/footfall/internal/database"
	"github.com/citypulse/footfall/internal/ingest"
	"github.com/citypulse/footfall/internal/metrics"
	"github.com/citypulse/footfall/internal/models"
	"github.com/citypulse/footfall/internal/snapshot"
	"github.com/citypulse/footfall/internal/suggest"
	"github.com/citypulse/footfall/internal/validation"
)

// maxBatchSize bounds one batch ingestion request.
const maxBatchSize = 1000

// Handler carries the wired application components.
type Handler struct {
	db       *database.DB
	pipeline *ingest.Pipeline
	cache    *snapshot.Cache
	enricher *aggregate.Enricher
	engine   *suggest.Engine
	aggOpts  aggregate.Options
}

// NewHandler wires the HTTP handlers to the application components.
func NewHandler(db *database.DB, pipeline *ingest.Pipeline, cache *snapshot.Cache,
	enricher *aggregate.Enricher, engine *suggest.Engine, aggOpts aggregate.Options) *Handler {
	return &Handler{
		db:       db,
		pipeline: pipeline,
		cache:    cache,
		enricher: enricher,
		engine:   engine,
		aggOpts:  aggOpts,
	}
}

// IngestOne handles POST /api/v1/pedestrian/data.
func (h *Handler) IngestOne(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var raw ingest.RawSample
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "request body is not valid JSON", err)
		return
	}
	if err := validation.Struct(&raw); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	sample, err := h.pipeline.IngestOne(r.Context(), &raw)
	if err != nil {
		var oob *ingest.OutOfBoundsError
		if errors.As(err, &oob) {
			respondError(w, http.StatusUnprocessableEntity, codeOutOfBounds, oob.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codeStorage, "failed to store sample", err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"id":       sample.ID,
		"grid_lat": sample.Lat,
		"grid_lng": sample.Lng,
	}, started, false)
}

// IngestBatch handles POST /api/v1/pedestrian/data/batch. The batch is
// atomic: one invalid sample rejects all of them.
func (h *Handler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	var raws []ingest.RawSample
	if err := json.NewDecoder(r.Body).Decode(&raws); err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, "request body is not a JSON array of samples", err)
		return
	}
	if len(raws) == 0 {
		respondError(w, http.StatusBadRequest, codeValidation, "batch is empty", nil)
		return
	}
	if len(raws) > maxBatchSize {
		respondError(w, http.StatusBadRequest, codeValidation, "batch exceeds maximum size", nil)
		return
	}
	for i := range raws {
		if err := validation.Struct(&raws[i]); err != nil {
			respondError(w, http.StatusBadRequest, codeValidation, (&ingest.BatchError{Index: i, Err: err}).Error(), nil)
			return
		}
	}

	samples, err := h.pipeline.IngestBatch(r.Context(), raws)
	if err != nil {
		var be *ingest.BatchError
		if errors.As(err, &be) {
			var oob *ingest.OutOfBoundsError
			if errors.As(err, &oob) {
				respondError(w, http.StatusUnprocessableEntity, codeOutOfBounds, be.Error(), nil)
				return
			}
			respondError(w, http.StatusBadRequest, codeValidation, be.Error(), nil)
			return
		}
		respondError(w, http.StatusInternalServerError, codeStorage, "failed to store batch", err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"ingested": len(samples),
	}, started, false)
}

// Analytics handles GET /api/v1/pedestrian/analytics?lat=&lng=&radius=.
// It aggregates hourly and daily traffic around a point.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	lat, latOK, err := getFloatParam(r, "lat")
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	lng, lngOK, err := getFloatParam(r, "lng")
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if !latOK || !lngOK {
		respondError(w, http.StatusBadRequest, codeValidation, "lat and lng are required", nil)
		return
	}
	radius, radiusOK, err := getFloatParam(r, "radius")
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if !radiusOK {
		radius = 100
	}
	if radius <= 0 || radius > 5000 {
		respondError(w, http.StatusBadRequest, codeValidation, "radius must be between 1 and 5000 meters", nil)
		return
	}

	start, end, err := h.parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	stats, err := h.db.HourlyStatsNear(r.Context(), lat, lng, radius, start.Unix(), end.Unix())
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeStorage, "failed to compute analytics", err)
		return
	}

	respondSuccess(w, http.StatusOK, stats, started, false)
}

// PopularLocations handles GET /api/v1/pedestrian/popular-locations.
func (h *Handler) PopularLocations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	limit, err := getIntParam(r, "limit", 10)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if limit < 1 || limit > 100 {
		respondError(w, http.StatusBadRequest, codeValidation, "limit must be between 1 and 100", nil)
		return
	}

	start, end, err := h.parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	cells, err := h.db.PopularCells(r.Context(), h.aggOpts.CellSize, limit, start.Unix(), end.Unix())
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeStorage, "failed to query popular locations", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"start_date": start,
		"end_date":   end,
		"locations":  cells,
	}, started, false)
}

// Locations handles GET /api/v1/pedestrian/locations: the full cached
// grid analysis for a date range. An optional min_count raises the
// aggregator's sample floor for this response only.
func (h *Handler) Locations(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	minCount, err := getIntParam(r, "min_count", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if minCount < 0 {
		respondError(w, http.StatusBadRequest, codeValidation, "min_count must not be negative", nil)
		return
	}

	start, end, err := h.parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	snap, cached, err := h.cache.GetOrCreate(r.Context(), start, end, getBoolParam(r, "force_refresh", false), h.computeSnapshot)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeStorage, "failed to compute location analysis", err)
		return
	}

	if minCount > h.aggOpts.MinCount {
		filtered := make(map[string]*models.LocationGroup, len(snap.LocationGroups))
		for key, group := range snap.LocationGroups {
			if group.Count >= minCount {
				filtered[key] = group
			}
		}
		view := *snap
		view.LocationGroups = filtered
		view.TotalLocations = len(filtered)
		respondSuccess(w, http.StatusOK, &view, started, cached)
		return
	}

	respondSuccess(w, http.StatusOK, snap, started, cached)
}

// Suggestions handles GET /api/v1/pedestrian/suggestions: ranked business
// locations for the requested type, computed over the range's snapshot.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	businessType := r.URL.Query().Get("business_type")
	if businessType == "" {
		businessType = "cafe"
	}
	maxSuggestions, err := getIntParam(r, "max_suggestions", suggest.DefaultSuggestionLimit)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}
	if maxSuggestions < 1 || maxSuggestions > 20 {
		respondError(w, http.StatusBadRequest, codeValidation, "max_suggestions must be between 1 and 20", nil)
		return
	}

	start, end, err := h.parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, codeValidation, err.Error(), nil)
		return
	}

	// use_cache=false forces a recompute the same way force_refresh does.
	force := getBoolParam(r, "force_refresh", false) || !getBoolParam(r, "use_cache", true)
	snap, cached, err := h.cache.GetOrCreate(r.Context(), start, end, force, h.computeSnapshot)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeStorage, "failed to compute location analysis", err)
		return
	}

	suggestions := h.engine.Suggest(r.Context(), snap.LocationGroups, businessType, maxSuggestions, rangeDays(start, end))

	respondSuccess(w, http.StatusOK, &models.AnalysisResult{
		AnalysisDate:           time.Now().UTC(),
		StartDate:              snap.StartDate,
		EndDate:                snap.EndDate,
		TotalLocationsAnalyzed: snap.TotalLocations,
		LocationGroups:         snap.LocationGroups,
		Suggestions:            suggestions,
		SnapshotKey:            snap.SnapshotKey,
		FromCache:              cached,
	}, started, cached)
}

// Erasure handles DELETE /api/v1/pedestrian/data?user_hash=: removes every
// sample tied to a hashed user identifier.
func (h *Handler) Erasure(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	userHash := r.URL.Query().Get("user_hash")
	if userHash == "" {
		respondError(w, http.StatusBadRequest, codeValidation, "user_hash is required", nil)
		return
	}

	deleted, err := h.db.DeleteByUserHash(r.Context(), userHash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeStorage, "failed to delete samples", err)
		return
	}

	metrics.ErasureRequests.Inc()
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"deleted": deleted,
	}, started, false)
}

// HealthLive handles GET /api/v1/health/live. The process answering at
// all is the liveness signal.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"status": "alive",
	}, time.Now(), false)
}

// Health handles GET /api/v1/health and /api/v1/health/ready.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	respondSuccess(w, httpStatus, map[string]interface{}{
		"status": status,
	}, started, false)
}

// MethodNotAllowed is the router's 405 handler, in the error envelope.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed,
		"method "+r.Method+" is not allowed on this resource", nil)
}

// parseRange extracts and normalizes the start_date/end_date parameters.
func (h *Handler) parseRange(r *http.Request) (time.Time, time.Time, error) {
	start, err := getTimeParam(r, "start_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := getTimeParam(r, "end_date")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return snapshot.NormalizeRange(start, end, time.Now().UTC())
}

// computeSnapshot is the cache's compute function: pull the range's
// samples, aggregate them onto the grid, and enrich the busiest cells
// with addresses.
func (h *Handler) computeSnapshot(ctx context.Context, start, end time.Time) (map[string]*models.LocationGroup, error) {
	samples, err := h.db.SamplesInRange(ctx, start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}

	groups := aggregate.Aggregate(samples, h.aggOpts)
	h.enricher.EnrichGroups(ctx, groups)
	return groups, nil
}
