// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package tts

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/streamglass/streamglass/internal/config"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/metrics"
	"github.com/streamglass/streamglass/internal/models"
)

// Service resolves voices, synthesizes audio through engine drivers, and
// manages artifact files.
type Service struct {
	catalog  *Catalog
	engines  map[string]Engine
	breakers map[string]*gobreaker.CircuitBreaker[[]byte]
	limiter  *rate.Limiter

	mediaRoot string
	baseURL   string
	retention time.Duration

	timeout      time.Duration
	heavyTimeout time.Duration

	fallbackVoice string
}

// NewService wires the built-in engines from configuration.
func NewService(cfg *config.TTSConfig, media *config.MediaConfig) *Service {
	client := &http.Client{Timeout: cfg.HeavyEngineTimeout}

	engines := map[string]Engine{
		EngineGoogleTrans: newGoogleTransEngine(client, ""),
	}
	if cfg.NeuralEndpoint != "" {
		engines[EngineNeural] = newNeuralEngine(client, cfg.NeuralEndpoint, cfg.NeuralAPIKey)
	}

	return NewServiceWithEngines(cfg, media, engines)
}

// NewServiceWithEngines injects engine drivers; tests use it with fakes.
func NewServiceWithEngines(cfg *config.TTSConfig, media *config.MediaConfig, engines map[string]Engine) *Service {
	breakers := make(map[string]*gobreaker.CircuitBreaker[[]byte], len(engines))
	for name := range engines {
		breakers[name] = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "tts-" + name,
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}

	return &Service{
		catalog:       NewCatalog(),
		engines:       engines,
		breakers:      breakers,
		limiter:       rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		mediaRoot:     media.Root,
		baseURL:       media.BaseURL,
		retention:     cfg.Retention(),
		timeout:       cfg.EngineTimeout,
		heavyTimeout:  cfg.HeavyEngineTimeout,
		fallbackVoice: cfg.FallbackVoice,
	}
}

// Synthesize produces an audio artifact for text and returns its public URL.
//
// Resolution: catalog lookup, tariff engine gate with fallback to the free
// default voice, engine call, artifact write, TTL scheduling. Unknown voice
// ids fail with ErrUnknownVoice; engine failure (including fallback) yields
// ErrUnavailable.
func (s *Service) Synthesize(ctx context.Context, text, voiceID string, userID int64, tariff models.TariffSnapshot) (string, error) {
	voice, err := s.catalog.Lookup(voiceID)
	if err != nil {
		return "", err
	}

	if !tariff.EngineAllowed(voice.Engine) {
		fallback, fbErr := s.catalog.Lookup(s.fallbackVoice)
		if fbErr != nil {
			return "", fmt.Errorf("%w: tariff disallows %s and no fallback voice", ErrUnavailable, voice.Engine)
		}
		logging.Debug().
			Str("voice", voiceID).
			Str("fallback", fallback.ID).
			Msg("tariff disallows engine, substituting fallback voice")
		voice = fallback
	}

	data, err := s.speak(ctx, text, voice)
	if err != nil {
		// The requested engine failed; the free engine is the last resort
		// unless it is the one that just failed.
		if voice.Engine != EngineGoogleTrans {
			if fallback, fbErr := s.catalog.Lookup(s.fallbackVoice); fbErr == nil && fallback.Engine != voice.Engine {
				if data2, err2 := s.speak(ctx, text, fallback); err2 == nil {
					return s.store(userID, data2)
				}
			}
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return s.store(userID, data)
}

func (s *Service) speak(ctx context.Context, text string, voice Voice) ([]byte, error) {
	engine, ok := s.engines[voice.Engine]
	if !ok {
		return nil, fmt.Errorf("engine %q not configured", voice.Engine)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	timeout := s.timeout
	if voice.Heavy {
		timeout = s.heavyTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	data, err := s.breakers[voice.Engine].Execute(func() ([]byte, error) {
		return engine.Speak(ctx, text, voice)
	})
	metrics.ObserveTTS(voice.Engine, start, err)
	return data, err
}

// store writes the artifact and schedules its removal after the TTL,
// sweeping the user's directory opportunistically on the way.
func (s *Service) store(userID int64, data []byte) (string, error) {
	dir := filepath.Join(s.mediaRoot, "tts", fmt.Sprintf("%d", userID))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	filename := fmt.Sprintf("%d.mp3", time.Now().UnixNano())
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}

	time.AfterFunc(s.retention, func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logging.Warn().Err(err).Str("path", path).Msg("failed to remove expired artifact")
		}
	})
	go s.sweepDir(dir)

	return fmt.Sprintf("%s/static/tts/%d/%s", s.baseURL, userID, filename), nil
}

// sweepDir removes already-expired siblings. Best-effort; the collector is
// the backstop.
func (s *Service) sweepDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-s.retention)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, entry.Name()))
		}
	}
}

// SoundURL builds the public URL of a user-uploaded sound file.
func (s *Service) SoundURL(userID int64, filename string) string {
	return fmt.Sprintf("%s/static/sounds/%d/%s", s.baseURL, userID, filename)
}

// SoundExists reports whether the user owns the named uploaded sound.
func (s *Service) SoundExists(userID int64, filename string) bool {
	clean := filepath.Base(filename)
	if clean != filename || filename == "" {
		return false
	}
	path := filepath.Join(s.mediaRoot, "sounds", fmt.Sprintf("%d", userID), clean)
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
