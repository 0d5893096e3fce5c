// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package pipeline holds the per-session event pipeline: the de-dup and
// cooldown filter and the rule evaluator. Everything here is owned by one
// session goroutine and dies with the session.
package pipeline

import (
	"time"
)

type streakKey struct {
	user   string
	giftID string
}

type streakEntry struct {
	count int
	ts    time.Time
}

// State is the session-local mutable state consulted by the filter and the
// evaluator. Single-owner, not safe for concurrent use.
type State struct {
	now func() time.Time

	firstSeen   map[string]struct{}
	streak      map[streakKey]streakEntry
	lastGiftSig map[string]time.Time
	cooldown    map[int64]time.Time
	onceFired   map[int64]struct{}
}

func NewState() *State {
	return NewStateWithClock(time.Now)
}

// NewStateWithClock injects the clock; tests use a fake.
func NewStateWithClock(now func() time.Time) *State {
	return &State{
		now:         now,
		firstSeen:   make(map[string]struct{}),
		streak:      make(map[streakKey]streakEntry),
		lastGiftSig: make(map[string]time.Time),
		cooldown:    make(map[int64]time.Time),
		onceFired:   make(map[int64]struct{}),
	}
}

// MarkSeen records the username and reports whether this was its first
// appearance in the session.
func (s *State) MarkSeen(user string) bool {
	if user == "" {
		return false
	}
	if _, ok := s.firstSeen[user]; ok {
		return false
	}
	s.firstSeen[user] = struct{}{}
	return true
}
