// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

// Command server runs the Footfall HTTP service: pedestrian sample
// ingestion, grid analytics, and business-location suggestions.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/citypulse/footfall/internal/aggregate"
	"github.com/citypulse/footfall/internal/anonymize"
	"github.com/citypulse/footfall/internal/api"
	"github.com/citypulse/footfall/internal/config"
	"github.com/citypulse/footfall/internal/database"
	"github.com/citypulse/footfall/internal/geocode"
	"github.com/citypulse/footfall/internal/ingest"
	"github.com/citypulse/footfall/internal/logging"
	"github.com/citypulse/footfall/internal/snapshot"
	"github.com/citypulse/footfall/internal/suggest"
	"github.com/citypulse/footfall/internal/supervisor"
	"github.com/citypulse/footfall/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("timezone", cfg.Timezone).
		Msg("Starting Footfall")

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("Failed to close point store")
		}
	}()

	store, err := snapshot.NewStore(cfg.Snapshot.Path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logging.Error().Err(cerr).Msg("Failed to close snapshot store")
		}
	}()

	anonymizer := anonymize.New(cfg.Anonymize.UserSalt, cfg.Anonymize.SessionSalt)
	pipeline := ingest.New(db, anonymizer, cfg.Bounds, cfg.Location())

	geocoder := geocode.New(&cfg.Geocoder)
	enricher := aggregate.NewEnricher(geocoder, 20)

	// A typed nil *GeminiClient must not reach the interface-valued
	// engine field, so the nil check happens here.
	var generative suggest.GenerativeClient
	if gemini := suggest.NewGeminiClient(&cfg.Gemini); gemini != nil {
		generative = gemini
	} else {
		logging.Warn().Msg("No Gemini API key configured; suggestions use the deterministic fallback only")
	}
	engine := suggest.NewEngine(generative)

	aggOpts := aggregate.Options{
		CellSize:           cfg.Grid.Size,
		MinCount:           cfg.Grid.MinCount,
		BusinessHoursStart: cfg.Grid.BusinessHoursStart,
		BusinessHoursEnd:   cfg.Grid.BusinessHoursEnd,
	}

	handler := api.NewHandler(
		db,
		pipeline,
		snapshot.NewCache(store, cfg.Snapshot.TTL),
		enricher,
		engine,
		aggOpts,
	)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, &cfg.Server),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	slogger := slog.New(logging.NewSlogHandler())
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.Add(services.NewHTTPServerService(server, supervisor.DefaultTreeConfig().ShutdownTimeout))
	tree.Add(services.NewGCService(store, cfg.Snapshot.GCInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tree.Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logging.Info().Msg("Footfall stopped")
	return nil
}
