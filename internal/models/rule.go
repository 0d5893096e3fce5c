// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package models

import (
	"time"
)

// ConditionKey selects the field a rule condition matches against.
type ConditionKey string

const (
	CondNone            ConditionKey = "none"
	CondAlways          ConditionKey = "always"
	CondGiftID          ConditionKey = "gift_id"
	CondGiftName        ConditionKey = "gift_name"
	CondUsername        ConditionKey = "username"
	CondMessageContains ConditionKey = "message_contains"
)

// RuleAction is the side effect a firing rule produces.
type RuleAction string

const (
	ActionPlaySound RuleAction = "play_sound"
	ActionSpeak     RuleAction = "speak"
)

// Rule is a user-owned trigger: a predicate over incoming events mapped to a
// sound or speech action. Rules are persisted and read by the evaluator
// through immutable per-user snapshots.
//
// Invariants enforced at write time:
//   - ActionPlaySound requires SoundFilename naming a sound owned by UserID.
//   - EventKind == chat forces ActionSpeak.
type Rule struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"user_id"`
	EventKind      EventKind    `json:"event_kind"`
	ConditionKey   ConditionKey `json:"condition_key"`
	ConditionValue string       `json:"condition_value"`
	Enabled        bool         `json:"enabled"`
	Priority       int          `json:"priority"`
	ComboCount     int          `json:"combo_count"`
	Action         RuleAction   `json:"action"`

	// Action parameters.
	SoundFilename   string `json:"sound_filename,omitempty"`
	TextTemplate    string `json:"text_template,omitempty"`
	CooldownSeconds int    `json:"cooldown_seconds,omitempty"`
	OncePerSession  bool   `json:"once_per_session,omitempty"`

	ExecutedCount int64     `json:"executed_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// Cooldown returns the rule's cooldown as a duration, zero when unset.
func (r Rule) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// RuleViewerFirstMessage is the pseudo event kind a rule may target to fire on
// a viewer's first chat message of a session.
const RuleViewerFirstMessage EventKind = "viewer_first_message"

// UserSettings holds the per-user toggles the evaluator consults when no rule
// matched an event.
type UserSettings struct {
	UserID            int64  `json:"user_id"`
	TTSEnabled        bool   `json:"tts_enabled"`
	VoiceID           string `json:"voice_id"`
	GiftSoundsEnabled bool   `json:"gift_sounds_enabled"`
	AutoReconnect     bool   `json:"auto_reconnect"`
}

// GiftInfo is one row of the gift catalog: static metadata for a known
// upstream gift kind, including the optional global default sound.
type GiftInfo struct {
	GiftID       string `json:"gift_id"`
	Name         string `json:"name"`
	Diamonds     int    `json:"diamonds"`
	DefaultSound string `json:"default_sound,omitempty"`
}
