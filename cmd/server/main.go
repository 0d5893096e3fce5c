// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package main is the entry point for the Streamglass server.
//
// Streamglass connects to a streamer's upstream live feed on behalf of each
// authenticated viewer, evaluates the viewer's alert rules against the event
// stream, and fans the resulting payloads out over a websocket. Synthesized
// speech and sound artifacts are served from the media root under /static.
//
// The server initializes in order: configuration (koanf), logging (zerolog),
// DuckDB, the TTS service, the rule store, the gift stats recorder, the
// per-viewer session manager, and finally the HTTP listener. Background
// workers (TTS artifact collector, rule execution flusher, nightly stats
// rebuilder) and the HTTP server run under a suture supervisor tree.
//
// Graceful shutdown on SIGINT and SIGTERM stops accepting connections, ends
// all upstream sessions, flushes pending rule execution counts, and closes
// the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamglass/streamglass/internal/api"
	"github.com/streamglass/streamglass/internal/auth"
	"github.com/streamglass/streamglass/internal/config"
	"github.com/streamglass/streamglass/internal/database"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/rules"
	"github.com/streamglass/streamglass/internal/session"
	"github.com/streamglass/streamglass/internal/stats"
	"github.com/streamglass/streamglass/internal/supervisor"
	"github.com/streamglass/streamglass/internal/tts"
	"github.com/streamglass/streamglass/internal/upstream"
	"github.com/streamglass/streamglass/internal/ws"
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
		Str("db_path", cfg.Database.Path).
		Str("media_root", cfg.Media.Root).
		Str("upstream", cfg.Upstream.BaseURL).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	ttsService := tts.NewService(&cfg.TTS, &cfg.Media)
	store := rules.NewStore(db, ttsService)
	recorder := stats.NewRecorder(db)

	manager := session.NewManager(session.Deps{
		Driver:    upstream.NewWebcastDriver(cfg.Upstream.BaseURL),
		Rules:     store,
		TTS:       ttsService,
		Stats:     recorder,
		Sounds:    ttsService,
		Upstream:  cfg.Upstream,
		Pipeline:  cfg.Pipeline,
		MediaBase: cfg.Media.BaseURL,
	})

	verifier, err := auth.NewTokenVerifier(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token verifier")
	}
	tariffs := auth.StaticTariff{Snapshot: auth.DefaultTariff()}

	wsHandler := ws.NewHandler(verifier, tariffs, manager, cfg.Security.CORSOrigins)
	router := api.NewRouter(cfg, db, manager, wsHandler)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddWorker(tts.NewCollector(cfg.Media.Root, cfg.TTS.Retention()))
	tree.AddWorker(rules.NewFlusher(store, cfg.Pipeline.ExecCountFlushInterval))
	tree.AddWorker(stats.NewRebuilder(db))
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
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

	manager.StopAll()

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer flushCancel()
	if err := store.FlushExecCounts(flushCtx); err != nil {
		logging.Warn().Err(err).Msg("Failed to flush rule execution counts")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Server stopped")
}
