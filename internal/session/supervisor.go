// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package session runs one supervised upstream session per user: driver
// lifecycle, connect timeout, inactivity watchdog, capped exponential
// reconnect, and the event pipeline feeding the client sink in arrival
// order.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/streamglass/streamglass/internal/config"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/metrics"
	"github.com/streamglass/streamglass/internal/models"
	"github.com/streamglass/streamglass/internal/pipeline"
	"github.com/streamglass/streamglass/internal/upstream"
)

// Sink delivers payloads to the owning client in order. A send error means
// the client is gone and stops the session.
type Sink interface {
	Send(p models.Payload) error
}

// RuleSource is the slice of the rule store a session needs. Satisfied by
// *rules.Store.
type RuleSource interface {
	ListForUser(ctx context.Context, userID int64) ([]models.Rule, error)
	Settings(ctx context.Context, userID int64) (models.UserSettings, error)
	GiftByID(ctx context.Context, giftID string) (models.GiftInfo, error)
	UpsertGift(ctx context.Context, g models.GiftInfo) error
	RecordExecution(ruleID int64)
	FlushExecCounts(ctx context.Context) error
}

// Speech is the TTS service surface a session needs.
type Speech interface {
	Synthesize(ctx context.Context, text, voiceID string, userID int64, tariff models.TariffSnapshot) (string, error)
}

// GiftRecorder persists gift revenue. Satisfied by *stats.Recorder.
type GiftRecorder interface {
	RecordGift(ctx context.Context, handle string, ev models.Event)
}

// SoundChecker reports whether a user still owns an uploaded sound file at
// fire time. Satisfied by *tts.Service.
type SoundChecker interface {
	SoundExists(userID int64, filename string) bool
}

// boundSpeech pins the TTS service to one user and tariff so the evaluator
// stays ignorant of identity.
type boundSpeech struct {
	svc    Speech
	userID int64
	tariff models.TariffSnapshot
}

func (b boundSpeech) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	return b.svc.Synthesize(ctx, text, voiceID, b.userID, b.tariff)
}

type outcome int

const (
	outcomeStop outcome = iota
	outcomeTransient
	outcomeTerminal
)

type runResult struct {
	outcome      outcome
	err          error
	reason       string
	wasConnected bool
}

// Supervisor owns one (user, handle) session. Run drives the state machine
// starting -> connected -> {reconnecting <-> connected} -> stopped.
type Supervisor struct {
	id     string // correlates every log line of one session lifetime
	userID int64
	handle string

	driver upstream.Driver
	sink   Sink
	rules  RuleSource
	tts    Speech
	stats  GiftRecorder

	upCfg     config.UpstreamConfig
	pipeCfg   config.PipelineConfig
	mediaBase string
	tariff    models.TariffSnapshot

	settings  models.UserSettings
	filter    *pipeline.Filter
	evaluator *pipeline.Evaluator

	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	termErr error
}

// Deps carries everything a supervisor is built from.
type Deps struct {
	Driver    upstream.Driver
	Rules     RuleSource
	TTS       Speech
	Stats     GiftRecorder
	Sounds    SoundChecker // nil disables the fire-time sound check
	Upstream  config.UpstreamConfig
	Pipeline  config.PipelineConfig
	MediaBase string
}

func newSupervisor(ctx context.Context, d Deps, userID int64, handle string, sink Sink, tariff models.TariffSnapshot) (*Supervisor, error) {
	snapshot, err := d.Rules.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load rule snapshot: %w", err)
	}
	settings, err := d.Rules.Settings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user settings: %w", err)
	}

	state := pipeline.NewState()
	filter := pipeline.NewFilter(state, d.Pipeline.GiftDedupDelta(), d.Pipeline.DisableGiftDedup)

	s := &Supervisor{
		id:        uuid.NewString(),
		userID:    userID,
		handle:    handle,
		driver:    d.Driver,
		sink:      sink,
		rules:     d.Rules,
		tts:       d.TTS,
		stats:     d.Stats,
		upCfg:     d.Upstream,
		pipeCfg:   d.Pipeline,
		mediaBase: d.MediaBase,
		tariff:    tariff,
		settings:  settings,
		filter:    filter,
		done:      make(chan struct{}),
	}
	s.evaluator = &pipeline.Evaluator{
		UserID:          userID,
		Rules:           snapshot,
		Settings:        settings,
		Filter:          filter,
		TTS:             boundSpeech{svc: d.TTS, userID: userID, tariff: tariff},
		MediaBase:       d.MediaBase,
		RecordExecution: d.Rules.RecordExecution,
		GiftSound: func(ctx context.Context, giftID string) (string, bool) {
			g, err := d.Rules.GiftByID(ctx, giftID)
			if err != nil || g.DefaultSound == "" {
				return "", false
			}
			return fmt.Sprintf("%s/static/sounds/default/%s", d.MediaBase, g.DefaultSound), true
		},
	}
	if d.Sounds != nil {
		s.evaluator.SoundExists = func(filename string) bool {
			return d.Sounds.SoundExists(userID, filename)
		}
	}
	return s, nil
}

// Handle returns the streamer handle this session follows.
func (s *Supervisor) Handle() string { return s.handle }

// Done closes when the session has fully stopped.
func (s *Supervisor) Done() <-chan struct{} { return s.done }

// Err returns the terminal upstream error, if the session ended on one.
func (s *Supervisor) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.termErr
}

// Stop requests a graceful stop. It does not wait; use Done.
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Supervisor) autoReconnect() bool {
	return s.upCfg.AutoReconnect && s.settings.AutoReconnect
}

// Run drives the session to completion. It owns the driver and all timers;
// ctx cancellation stops everything within the grace period.
func (s *Supervisor) Run(ctx context.Context) {
	metrics.SessionsStarted.Inc()
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()
	defer close(s.done)
	defer s.flushCounts()

	log := logging.With().
		Str("session_id", s.id).
		Int64("user_id", s.userID).
		Str("handle", s.handle).
		Logger()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.upCfg.ReconnectBaseDelay()
	bo.MaxInterval = s.upCfg.ReconnectMaxDelay()
	bo.Multiplier = 2
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0
	bo.Reset()

	attempts := 0
	for {
		res := s.runOnce(ctx, &log)
		if res.wasConnected {
			attempts = 0
			bo.Reset()
		}

		switch res.outcome {
		case outcomeStop:
			s.sendStatus(false, "disconnected")
			log.Info().Msg("session stopped")
			return

		case outcomeTerminal:
			s.mu.Lock()
			s.termErr = res.err
			s.mu.Unlock()
			kind := upstream.KindOf(res.err)
			metrics.SessionTerminalErrors.WithLabelValues(string(kind)).Inc()
			log.Warn().Err(res.err).Str("kind", string(kind)).Msg("session terminated by upstream")
			s.send(models.ErrorPayload(terminalMessage(kind), res.err.Error()))
			s.sendStatus(false, "stopped")
			return

		case outcomeTransient:
			if !s.autoReconnect() {
				s.sendStatus(false, "disconnected")
				log.Info().Str("reason", res.reason).Msg("session ended, auto-reconnect disabled")
				return
			}
			if attempts >= s.upCfg.ReconnectAttempts {
				log.Warn().Int("attempts", attempts).Msg("reconnect attempts exhausted")
				s.send(models.ErrorPayload("reconnect attempts exhausted", ""))
				s.sendStatus(false, "stopped")
				return
			}
			attempts++
			metrics.SessionReconnects.WithLabelValues(res.reason).Inc()
			s.sendStatus(false, "reconnecting")

			delay := bo.NextBackOff()
			log.Info().
				Str("reason", res.reason).
				Int("attempt", attempts).
				Dur("delay", delay).
				Msg("reconnecting to upstream")

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				s.sendStatus(false, "disconnected")
				return
			case <-timer.C:
			}
		}
	}
}

// runOnce runs one driver lifetime: open, await connect, then stream events
// until something ends it.
func (s *Supervisor) runOnce(ctx context.Context, log *zerolog.Logger) runResult {
	if ctx.Err() != nil {
		return runResult{outcome: outcomeStop}
	}

	src, err := s.driver.Open(ctx, s.handle)
	if err != nil {
		if ctx.Err() != nil {
			return runResult{outcome: outcomeStop}
		}
		if upstream.IsTerminal(err) {
			return runResult{outcome: outcomeTerminal, err: err}
		}
		return runResult{outcome: outcomeTransient, err: err, reason: "dial_error"}
	}
	defer src.Close()

	connected := false
	connectTimer := time.NewTimer(s.upCfg.ConnectTimeout())
	defer connectTimer.Stop()
	watchdog := time.NewTimer(s.upCfg.WatchdogInactivity())
	watchdog.Stop()
	defer watchdog.Stop()

	for {
		select {
		case <-ctx.Done():
			return runResult{outcome: outcomeStop, wasConnected: connected}

		case <-connectTimer.C:
			if !connected {
				return runResult{outcome: outcomeTransient, reason: "connect_timeout"}
			}

		case <-watchdog.C:
			log.Warn().Msg("watchdog expired, no frames from upstream")
			return runResult{outcome: outcomeTransient, reason: "watchdog", wasConnected: true}

		case <-src.Frames():
			if connected {
				if !watchdog.Stop() {
					select {
					case <-watchdog.C:
					default:
					}
				}
				watchdog.Reset(s.upCfg.WatchdogInactivity())
			}

		case ev, ok := <-src.Events():
			if !ok {
				err := src.Err()
				if err == nil {
					return runResult{outcome: outcomeTransient, reason: "stream_closed", wasConnected: connected}
				}
				if upstream.IsTerminal(err) {
					return runResult{outcome: outcomeTerminal, err: err, wasConnected: connected}
				}
				return runResult{outcome: outcomeTransient, err: err, reason: "stream_error", wasConnected: connected}
			}

			switch ev.Kind {
			case models.EventConnect:
				connected = true
				connectTimer.Stop()
				watchdog.Reset(s.upCfg.WatchdogInactivity())
				s.sendStatus(true, "connected")
				log.Info().Msg("upstream connected")

			case models.EventDisconnect:
				return runResult{outcome: outcomeTransient, reason: "disconnect", wasConnected: connected}

			default:
				if err := s.process(ctx, ev); err != nil {
					return runResult{outcome: outcomeStop, wasConnected: connected}
				}
			}
		}
	}
}

// process runs one event through the filter and evaluator and delivers the
// resulting payloads in order. Synthesis is awaited inline so a slow TTS
// call cannot reorder later events.
func (s *Supervisor) process(ctx context.Context, ev models.Event) error {
	if ev.Kind == models.EventGift {
		if !s.filter.AllowGift(ev) {
			return nil
		}
		s.recordGift(ctx, ev)
	}

	d := s.evaluator.Evaluate(ctx, ev)
	if d.Kind == pipeline.Ignore {
		return nil
	}

	if d.FirstMessage {
		if err := s.send(models.Payload{Type: models.PayloadViewerJoin, User: ev.User}); err != nil {
			return err
		}
		if d.Kind == pipeline.EmitWithSound {
			// Chat payloads carry no sound slot; the first-message sound
			// rides its own payload ahead of the chat.
			if err := s.send(models.Payload{
				Type:     models.PayloadViewerFirstMessage,
				User:     ev.User,
				SoundURL: d.SoundURL,
			}); err != nil {
				return err
			}
			d.SoundURL = ""
		}
	}

	p, ok := eventPayload(ev)
	if !ok {
		return nil
	}
	p.TTSURL = d.TTSURL
	p.SoundURL = d.SoundURL
	return s.send(p)
}

func (s *Supervisor) recordGift(ctx context.Context, ev models.Event) {
	s.stats.RecordGift(ctx, s.handle, ev)
	if ev.GiftID != "" && ev.GiftName != "" {
		if err := s.rules.UpsertGift(ctx, models.GiftInfo{
			GiftID:   ev.GiftID,
			Name:     ev.GiftName,
			Diamonds: ev.UnitDiamonds,
		}); err != nil {
			logging.Debug().Err(err).Str("gift_id", ev.GiftID).Msg("gift catalog refresh failed")
		}
	}
}

// eventPayload maps an upstream event to its outbound payload shape.
func eventPayload(ev models.Event) (models.Payload, bool) {
	switch ev.Kind {
	case models.EventChat:
		return models.Payload{Type: models.PayloadChat, User: ev.User, Message: ev.Text}, true
	case models.EventGift:
		return models.Payload{
			Type:     models.PayloadGift,
			User:     ev.User,
			GiftID:   ev.GiftID,
			GiftName: ev.GiftName,
			Count:    ev.Count,
			Diamonds: ev.DiamondsTotal,
		}, true
	case models.EventLike:
		return models.Payload{Type: models.PayloadLike, User: ev.User, Count: ev.Count}, true
	case models.EventJoin:
		return models.Payload{Type: models.PayloadViewerJoin, User: ev.User}, true
	case models.EventFollow:
		return models.Payload{Type: models.PayloadFollow, User: ev.User}, true
	case models.EventSubscribe:
		return models.Payload{Type: models.PayloadSubscribe, User: ev.User}, true
	case models.EventShare:
		return models.Payload{Type: models.PayloadShare, User: ev.User}, true
	case models.EventViewer:
		return models.Payload{Type: models.PayloadViewer, Current: ev.ViewerCurrent, Total: ev.ViewerTotal}, true
	default:
		return models.Payload{}, false
	}
}

func (s *Supervisor) send(p models.Payload) error {
	if err := s.sink.Send(p); err != nil {
		return err
	}
	metrics.WSPayloads.WithLabelValues(p.Type).Inc()
	return nil
}

// terminalMessage renders a terminal failure kind for the client.
func terminalMessage(kind upstream.Kind) string {
	switch kind {
	case upstream.KindNotFound:
		return "stream not found"
	case upstream.KindBlocked:
		return "stream access blocked"
	default:
		return "stream unavailable"
	}
}

func (s *Supervisor) sendStatus(connected bool, message string) {
	_ = s.send(models.StatusPayload(connected, message, s.handle))
}

func (s *Supervisor) flushCounts() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.rules.FlushExecCounts(ctx); err != nil {
		logging.Warn().Err(err).Int64("user_id", s.userID).Msg("executed-count flush on stop failed")
	}
}
