// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/metrics"
	"github.com/streamglass/streamglass/internal/models"
)

// DecisionKind says what, beyond the event payload itself, the client gets.
type DecisionKind int

const (
	Ignore DecisionKind = iota
	EmitOnly
	EmitWithSound
	EmitWithSpeech
)

// Decision is the evaluator's verdict for one event.
type Decision struct {
	Kind     DecisionKind
	SoundURL string
	TTSURL   string

	// FirstMessage is set on a chat event from a sender not seen before in
	// this session; the session emits a synthetic viewer_join ahead of it.
	FirstMessage bool
}

// Synthesizer produces a speech artifact URL. The session binds the TTS
// service to the user's identity and tariff before handing it here.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (string, error)
}

// GiftSoundFunc resolves a gift's global default sound URL, if any.
type GiftSoundFunc func(ctx context.Context, giftID string) (string, bool)

// SoundExistsFunc reports whether the user still owns the named uploaded
// sound. Files can disappear between rule write and fire.
type SoundExistsFunc func(filename string) bool

// Evaluator matches events against the session's rule snapshot and decides
// sound and speech side effects. It holds no cross-event state of its own;
// everything mutable lives in State via the Filter.
type Evaluator struct {
	UserID   int64
	Rules    []models.Rule // priority-descending snapshot from the store
	Settings models.UserSettings

	Filter      *Filter
	TTS         Synthesizer
	GiftSound   GiftSoundFunc
	SoundExists SoundExistsFunc // nil skips the fire-time check
	MediaBase   string

	// RecordExecution is called for each rule that fires. May be nil.
	RecordExecution func(ruleID int64)
}

// Evaluate runs the rule algorithm for one event. The event has already
// passed the gift de-dup filter when it gets here.
func (e *Evaluator) Evaluate(ctx context.Context, ev models.Event) Decision {
	var d Decision
	d.Kind = EmitOnly

	if ev.Kind == models.EventChat && e.Filter.state.MarkSeen(ev.User) {
		d.FirstMessage = true
	}
	if ev.Kind == models.EventJoin {
		e.Filter.state.MarkSeen(ev.User)
	}

	if e.applyRules(ctx, ev, ev.Kind, &d) {
		return d
	}
	if d.FirstMessage && e.applyRules(ctx, ev, models.RuleViewerFirstMessage, &d) {
		return d
	}

	// No rule fired; fall back to the user's toggles.
	switch ev.Kind {
	case models.EventChat:
		if e.Settings.TTSEnabled && ev.Text != "" {
			e.speak(ctx, &d, SanitizeForSpeech(ev.Text))
		}
	case models.EventGift:
		if e.Settings.GiftSoundsEnabled && e.GiftSound != nil {
			if url, ok := e.GiftSound(ctx, ev.GiftID); ok {
				d.Kind = EmitWithSound
				d.SoundURL = url
			}
		}
	}
	return d
}

// applyRules walks the snapshot for one rule kind and reports whether a rule
// fired.
func (e *Evaluator) applyRules(ctx context.Context, ev models.Event, kind models.EventKind, d *Decision) bool {
	for _, r := range e.Rules {
		if !r.Enabled || r.EventKind != kind {
			continue
		}
		if !conditionMatches(r, ev) {
			continue
		}
		if ev.Kind == models.EventGift && r.ComboCount > 0 && ev.Count < r.ComboCount {
			continue
		}
		if r.Action == models.ActionPlaySound && e.SoundExists != nil && !e.SoundExists(r.SoundFilename) {
			// Sound file gone since the rule was written; the next rule in
			// priority order gets its chance. Cooldown state stays untouched.
			logging.Warn().Int64("rule_id", r.ID).Str("sound", r.SoundFilename).Msg("rule sound file missing, skipping rule")
			continue
		}
		if !e.Filter.AllowRule(r) {
			continue
		}

		switch r.Action {
		case models.ActionPlaySound:
			d.Kind = EmitWithSound
			d.SoundURL = fmt.Sprintf("%s/static/sounds/%d/%s", e.MediaBase, e.UserID, r.SoundFilename)
		case models.ActionSpeak:
			text := r.TextTemplate
			if text == "" {
				text = ev.Text
			}
			text = Substitute(text, map[string]string{
				"user":    ev.User,
				"message": ev.Text,
				"mention": "@" + ev.User,
			})
			e.speak(ctx, d, SanitizeForSpeech(text))
		}

		metrics.RuleFirings.WithLabelValues(string(r.Action)).Inc()
		if e.RecordExecution != nil {
			e.RecordExecution(r.ID)
		}
		return true
	}
	return false
}

// speak synthesizes text; failures degrade to a bare emit so one flaky TTS
// call never blocks event delivery.
func (e *Evaluator) speak(ctx context.Context, d *Decision, text string) {
	if text == "" || e.TTS == nil {
		return
	}
	url, err := e.TTS.Synthesize(ctx, text, e.Settings.VoiceID)
	if err != nil {
		logging.Warn().Err(err).Msg("speech synthesis failed, emitting without audio")
		return
	}
	d.Kind = EmitWithSpeech
	d.TTSURL = url
}

func conditionMatches(r models.Rule, ev models.Event) bool {
	switch r.ConditionKey {
	case models.CondNone, models.CondAlways, "":
		return true
	case models.CondGiftID:
		return ev.GiftID == r.ConditionValue
	case models.CondGiftName:
		return strings.EqualFold(ev.GiftName, r.ConditionValue)
	case models.CondUsername:
		return strings.ToLower(ev.User) == r.ConditionValue
	case models.CondMessageContains:
		return strings.Contains(strings.ToLower(ev.Text), r.ConditionValue)
	default:
		return false
	}
}
