// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package config loads and validates the process configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import (
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Media    MediaConfig    `koanf:"media"`
	Database DatabaseConfig `koanf:"database"`
	Upstream UpstreamConfig `koanf:"upstream"`
	TTS      TTSConfig      `koanf:"tts"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"min=1,max=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// MediaConfig locates media artifacts on disk and on the wire.
type MediaConfig struct {
	// Root is the absolute path holding tts/ and sounds/ subtrees.
	Root string `koanf:"root" validate:"required"`

	// BaseURL is prepended to /static/... paths in emitted URLs.
	BaseURL string `koanf:"base_url" validate:"required,url"`
}

// DatabaseConfig configures the embedded DuckDB store.
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"`
}

// UpstreamConfig governs the live-event source connection and the session
// supervisor's liveness policy. The *_sec fields mirror the wire-level
// environment names (TT_CONNECT_TIMEOUT_SEC and friends).
type UpstreamConfig struct {
	// BaseURL is the webcast endpoint the driver dials.
	BaseURL string `koanf:"base_url" validate:"required"`

	ConnectTimeoutSec     int  `koanf:"connect_timeout_sec" validate:"min=1"`
	WatchdogInactivitySec int  `koanf:"watchdog_inactivity_sec" validate:"min=1"`
	ReconnectBaseDelaySec int  `koanf:"reconnect_base_delay_sec" validate:"min=1"`
	ReconnectMaxDelaySec  int  `koanf:"reconnect_max_delay_sec" validate:"min=1"`
	ReconnectAttempts     int  `koanf:"reconnect_attempts" validate:"min=0"`
	AutoReconnect         bool `koanf:"auto_reconnect"`
}

// ConnectTimeout returns the upstream connect deadline.
func (c UpstreamConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSec) * time.Second
}

// WatchdogInactivity returns the no-frame watchdog deadline.
func (c UpstreamConfig) WatchdogInactivity() time.Duration {
	return time.Duration(c.WatchdogInactivitySec) * time.Second
}

// ReconnectBaseDelay returns the first backoff interval.
func (c UpstreamConfig) ReconnectBaseDelay() time.Duration {
	return time.Duration(c.ReconnectBaseDelaySec) * time.Second
}

// ReconnectMaxDelay returns the backoff cap.
func (c UpstreamConfig) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.ReconnectMaxDelaySec) * time.Second
}

// TTSConfig configures speech synthesis and artifact retention.
type TTSConfig struct {
	RetentionSec int `koanf:"retention_sec" validate:"min=1"`

	// EngineTimeout bounds one synthesis HTTP request; HeavyEngineTimeout
	// applies to engines flagged heavy in the catalog.
	EngineTimeout      time.Duration `koanf:"engine_timeout"`
	HeavyEngineTimeout time.Duration `koanf:"heavy_engine_timeout"`

	// FallbackVoice is the free-engine voice substituted when the caller's
	// tariff disallows the requested voice's engine.
	FallbackVoice string `koanf:"fallback_voice"`

	// RequestsPerSecond throttles outbound engine calls process-wide.
	RequestsPerSecond float64 `koanf:"requests_per_second"`

	// NeuralEndpoint is the premium engine's HTTP endpoint; empty disables it.
	NeuralEndpoint string `koanf:"neural_endpoint"`
	NeuralAPIKey   string `koanf:"neural_api_key"`
}

// Retention returns the artifact TTL.
func (c TTSConfig) Retention() time.Duration {
	return time.Duration(c.RetentionSec) * time.Second
}

// PipelineConfig tunes event filtering.
type PipelineConfig struct {
	GiftDedupDeltaSec int `koanf:"gift_dedup_delta_sec" validate:"min=1"`

	// DisableGiftDedup bypasses every de-dup policy. Diagnostic only.
	DisableGiftDedup bool `koanf:"disable_gift_dedup"`

	// ExecCountFlushInterval is how often batched executed_count increments
	// are written back.
	ExecCountFlushInterval time.Duration `koanf:"exec_count_flush_interval"`
}

// GiftDedupDelta returns the full-signature de-dup window.
func (c PipelineConfig) GiftDedupDelta() time.Duration {
	return time.Duration(c.GiftDedupDeltaSec) * time.Second
}

// SecurityConfig configures channel-open authentication.
type SecurityConfig struct {
	// JWTSecret verifies bearer tokens issued by the external credential
	// service. Minimum 32 bytes.
	JWTSecret string `koanf:"jwt_secret" validate:"required,min=32"`

	// Issuer, when set, must match the token's iss claim.
	Issuer string `koanf:"issuer"`

	// CORSOrigins for the static media and health surfaces.
	CORSOrigins []string `koanf:"cors_origins"`

	// WSRateLimit caps websocket opens per client IP per minute.
	WSRateLimit int `koanf:"ws_rate_limit"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Default returns the built-in configuration, the base layer of Load.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns the built-in defaults; file and environment layers
// override them.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8310,
			Timeout: 30 * time.Second,
		},
		Media: MediaConfig{
			Root:    "/data/media",
			BaseURL: "http://127.0.0.1:8310",
		},
		Database: DatabaseConfig{
			Path:      "/data/streamglass.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = runtime.NumCPU()
		},
		Upstream: UpstreamConfig{
			BaseURL:               "wss://webcast.tiktok.com/webcast/im/push/",
			ConnectTimeoutSec:     25,
			WatchdogInactivitySec: 75,
			ReconnectBaseDelaySec: 1,
			ReconnectMaxDelaySec:  30,
			ReconnectAttempts:     5,
			AutoReconnect:         true,
		},
		TTS: TTSConfig{
			RetentionSec:       300,
			EngineTimeout:      20 * time.Second,
			HeavyEngineTimeout: 30 * time.Second,
			FallbackVoice:      "gtts-en",
			RequestsPerSecond:  5,
		},
		Pipeline: PipelineConfig{
			GiftDedupDeltaSec:      5,
			DisableGiftDedup:       false,
			ExecCountFlushInterval: 30 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins: []string{"*"},
			WSRateLimit: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
