// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package pipeline

import (
	"time"

	"github.com/streamglass/streamglass/internal/metrics"
	"github.com/streamglass/streamglass/internal/models"
)

// streakWindow is the repeat-count suppression window for non-streaking
// duplicate frames.
const streakWindow = 3 * time.Second

// Filter applies the de-dup and cooldown policies against session state.
// Policies run in a fixed order: streak suppression, full-signature window,
// then per-rule cooldown and once-per-session guards at rule-match time.
type Filter struct {
	state      *State
	dedupDelta time.Duration
	disabled   bool
}

func NewFilter(state *State, dedupDelta time.Duration, disabled bool) *Filter {
	return &Filter{state: state, dedupDelta: dedupDelta, disabled: disabled}
}

// AllowGift reports whether a gift event survives streak suppression and the
// full-signature window. Dropped events are not delivered to the client.
func (f *Filter) AllowGift(ev models.Event) bool {
	if f.disabled {
		return true
	}
	now := f.state.now()

	key := streakKey{user: ev.User, giftID: ev.GiftID}
	if prev, ok := f.state.streak[key]; ok && ev.Count == prev.count {
		if ev.Streakable && ev.Streaking {
			metrics.DedupDrops.WithLabelValues("streak").Inc()
			return false
		}
		if now.Sub(prev.ts) < streakWindow {
			metrics.DedupDrops.WithLabelValues("streak").Inc()
			return false
		}
	}
	f.state.streak[key] = streakEntry{count: ev.Count, ts: now}

	sig := ev.GiftSignature()
	if last, ok := f.state.lastGiftSig[sig]; ok && now.Sub(last) < f.dedupDelta {
		metrics.DedupDrops.WithLabelValues("signature").Inc()
		return false
	}
	f.state.lastGiftSig[sig] = now
	return true
}

// AllowRule reports whether the rule may fire now, recording the firing when
// allowed.
func (f *Filter) AllowRule(r models.Rule) bool {
	if f.disabled {
		return true
	}
	now := f.state.now()

	if cd := r.Cooldown(); cd > 0 {
		if last, ok := f.state.cooldown[r.ID]; ok && now.Sub(last) < cd {
			metrics.DedupDrops.WithLabelValues("cooldown").Inc()
			return false
		}
	}
	if r.OncePerSession {
		if _, ok := f.state.onceFired[r.ID]; ok {
			metrics.DedupDrops.WithLabelValues("once_per_session").Inc()
			return false
		}
	}

	if r.Cooldown() > 0 {
		f.state.cooldown[r.ID] = now
	}
	if r.OncePerSession {
		f.state.onceFired[r.ID] = struct{}{}
	}
	return true
}
