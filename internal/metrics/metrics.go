// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package metrics exposes prometheus instrumentation for the pipeline:
// session lifecycle, upstream liveness, de-dup decisions, TTS synthesis,
// and stats persistence.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session lifecycle
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamglass_sessions_active",
			Help: "Currently running upstream sessions",
		},
	)

	SessionsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamglass_sessions_started_total",
			Help: "Total sessions started",
		},
	)

	SessionReconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamglass_session_reconnects_total",
			Help: "Reconnect attempts by trigger",
		},
		[]string{"reason"}, // "watchdog", "disconnect", "connect_timeout", "transient_error"
	)

	SessionTerminalErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamglass_session_terminal_errors_total",
			Help: "Sessions ended by terminal upstream failures",
		},
		[]string{"kind"}, // "not_found", "blocked"
	)

	// Upstream
	UpstreamFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamglass_upstream_frames_total",
			Help: "Raw frames received from the upstream source",
		},
	)

	UpstreamEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamglass_upstream_events_total",
			Help: "Normalized events by kind",
		},
		[]string{"kind"},
	)

	// Pipeline
	DedupDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamglass_dedup_drops_total",
			Help: "Events dropped by the de-dup filter, by policy",
		},
		[]string{"policy"}, // "streak", "signature", "cooldown", "once_per_session"
	)

	RuleFirings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamglass_rule_firings_total",
			Help: "Trigger rule firings by action",
		},
		[]string{"action"},
	)

	// TTS
	TTSSynthesisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamglass_tts_synthesis_duration_seconds",
			Help:    "TTS engine round-trip duration",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"engine"},
	)

	TTSFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamglass_tts_failures_total",
			Help: "TTS synthesis failures by engine",
		},
		[]string{"engine"},
	)

	TTSArtifactsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamglass_tts_artifacts_deleted_total",
			Help: "Expired TTS artifacts removed by the collector",
		},
	)

	// Stats persistence
	StatsWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamglass_stats_writes_total",
			Help: "Gift stat upsert transactions committed",
		},
	)

	StatsWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamglass_stats_write_errors_total",
			Help: "Gift stat writes dropped after retry",
		},
	)

	// Client channel
	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamglass_ws_clients",
			Help: "Open client websocket connections",
		},
	)

	WSPayloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamglass_ws_payloads_total",
			Help: "Outbound payloads by type",
		},
		[]string{"type"},
	)
)

// ObserveTTS records one synthesis round trip.
func ObserveTTS(engine string, start time.Time, err error) {
	TTSSynthesisDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
	if err != nil {
		TTSFailures.WithLabelValues(engine).Inc()
	}
}
