// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package api wires the HTTP surface: the websocket endpoint, the static
// media file server, health, and metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/streamglass/streamglass/internal/config"
	"github.com/streamglass/streamglass/internal/database"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/session"
)

// Router builds the chi handler tree.
type Router struct {
	cfg     *config.Config
	db      *database.DB
	manager *session.Manager
	ws      http.Handler
}

func NewRouter(cfg *config.Config, db *database.DB, manager *session.Manager, ws http.Handler) *Router {
	return &Router{cfg: cfg, db: db, manager: manager, ws: ws}
}

// Handler assembles the routes and middleware stack.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Group(func(r chi.Router) {
		if limit := rt.cfg.Security.WSRateLimit; limit > 0 {
			r.Use(httprate.LimitByIP(limit, time.Minute))
		}
		r.Get("/ws", rt.ws.ServeHTTP)
	})

	r.Get("/healthz", rt.healthz)
	r.Handle("/metrics", promhttp.Handler())

	// Artifact and sound URLs emitted by the pipeline resolve here.
	// http.FileServer rejects path traversal on its own.
	fs := http.StripPrefix("/static/", http.FileServer(http.Dir(rt.cfg.Media.Root)))
	r.Get("/static/*", fs.ServeHTTP)

	return r
}

type healthResponse struct {
	Status         string `json:"status"`
	Database       string `json:"database"`
	ActiveSessions int    `json:"active_sessions"`
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:         "ok",
		Database:       "ok",
		ActiveSessions: rt.manager.Active(),
	}
	status := http.StatusOK
	if err := rt.db.Ping(ctx); err != nil {
		logging.Warn().Err(err).Msg("health check database ping failed")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := json.Marshal(resp)
	_, _ = w.Write(data)
}
