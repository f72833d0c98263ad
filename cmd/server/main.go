// Lantern - Location-Based Narrative Quest Engine
// Copyright 2026 Tessera Games
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tessera-games/lantern

// Package main is the entry point for the Lantern server.
//
// Lantern drives a location-based narrative quest: players move through
// chapters of ordered steps (proximity puzzles, riddles, narrative
// reveals, outbound messages), with all progression state derived from
// the progress store on every read.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered from defaults, YAML file, and env
//  2. Database: DuckDB progress store
//  3. Catalog: quest content loaded and validated from YAML
//  4. Event bus: Watermill, in-process by default or NATS JetStream
//  5. Messaging: channel registry, dispatcher, and morning sweeper
//  6. Quest engine: resolve, advance, hints
//  7. HTTP server: player API, admin console API, cron hook, WebSocket
//
// Everything long-running sits under a suture supervisor tree and shuts
// down on SIGINT or SIGTERM.
//
// Quick start against the bundled rehearsal catalog:
//
//	export CATALOG_PATH=catalog.yaml
//	export AUTH_DISABLED=true
//	./lantern
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tessera-games/lantern/internal/api"
	"github.com/tessera-games/lantern/internal/catalog"
	"github.com/tessera-games/lantern/internal/config"
	"github.com/tessera-games/lantern/internal/database"
	"github.com/tessera-games/lantern/internal/events"
	"github.com/tessera-games/lantern/internal/logging"
	"github.com/tessera-games/lantern/internal/messaging"
	"github.com/tessera-games/lantern/internal/quest"
	"github.com/tessera-games/lantern/internal/supervisor"
	"github.com/tessera-games/lantern/internal/supervisor/services"
	ws "github.com/tessera-games/lantern/internal/websocket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("catalog", cfg.Catalog.Path).
		Str("db_path", cfg.Database.Path).
		Bool("nats", cfg.NATS.Enabled).
		Bool("sweeper", cfg.Sweep.Enabled).
		Msg("Starting Lantern")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// A catalog that fails validation is a content bug; refusing to
	// start beats running a quest with dangling step references.
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logging.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("Failed to load quest catalog")
	}
	logging.Info().Int("chapters", len(cat.Chapters())).Msg("Quest catalog loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wmLogger := events.NewWatermillLogger()
	bus, err := events.NewBus(&cfg.NATS, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event bus")
	}
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	wsHub := ws.NewHub()

	eventRouter, err := events.NewRouter(bus, db, wsHub, wmLogger)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create event router")
	}

	registry := messaging.NewRegistry(
		messaging.NewSMSChannel(&cfg.Messaging.SMS),
		messaging.NewEmailChannel(&cfg.Messaging.Email),
		messaging.NewLogChannel(),
	)
	dispatcher := messaging.NewDispatcher(&cfg.Messaging, cat, db, registry, bus)

	engine := quest.NewEngine(cat, db, dispatcher, bus)

	handler := api.NewHandler(cfg, engine, dispatcher, db, cat, wsHub, bus)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := handler.Server(addr)

	// Bridge zerolog to slog for sutureslog.
	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddEventService(services.NewRunnerService("event-router", eventRouter))
	tree.AddDeliveryService(services.NewRunnerService("websocket-hub", wsHub))
	if cfg.Sweep.Enabled {
		sweeper := messaging.NewSweeper(dispatcher, cfg.Sweep.Interval)
		tree.AddDeliveryService(services.NewRunnerService("delivery-sweeper", sweeper))
	} else {
		logging.Info().Msg("Internal sweeper disabled; scheduled delivery relies on the cron endpoint")
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Lantern stopped gracefully")
}
