// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package upstream

import (
	"context"
	"sync"

	"github.com/streamglass/streamglass/internal/models"
)

// ScriptedDriver replays a programmed sequence of sources. It backs the
// supervisor and pipeline tests; each Open consumes the next script entry.
type ScriptedDriver struct {
	mu      sync.Mutex
	scripts []ScriptedOpen
	opens   int
}

// ScriptedOpen is one programmed Open outcome: either an error or a source
// that emits Events and then idles until closed.
type ScriptedOpen struct {
	Err    error
	Events []models.Event

	// SkipConnect suppresses the implicit connect event.
	SkipConnect bool

	// Hang leaves the source open after the scripted events are drained
	// (no further frames, so the watchdog can observe silence).
	Hang bool

	// FailAfter, when set, closes the source with this error once the
	// scripted events are drained.
	FailAfter error
}

// NewScriptedDriver builds a driver replaying the given outcomes. Opens past
// the end of the script repeat the final entry.
func NewScriptedDriver(scripts ...ScriptedOpen) *ScriptedDriver {
	return &ScriptedDriver{scripts: scripts}
}

// Opens reports how many times Open was called.
func (d *ScriptedDriver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Open implements Driver.
func (d *ScriptedDriver) Open(ctx context.Context, handle string) (EventSource, error) {
	d.mu.Lock()
	idx := d.opens
	d.opens++
	if idx >= len(d.scripts) {
		idx = len(d.scripts) - 1
	}
	script := d.scripts[idx]
	d.mu.Unlock()

	if script.Err != nil {
		return nil, script.Err
	}

	src := &scriptedSource{
		events:  make(chan models.Event, len(script.Events)+2),
		frames:  make(chan struct{}, len(script.Events)+2),
		closeCh: make(chan struct{}),
	}
	go src.run(ctx, handle, script)
	return src, nil
}

type scriptedSource struct {
	events  chan models.Event
	frames  chan struct{}
	closeCh chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

func (s *scriptedSource) Events() <-chan models.Event { return s.events }
func (s *scriptedSource) Frames() <-chan struct{}     { return s.frames }

func (s *scriptedSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *scriptedSource) Close() error {
	s.once.Do(func() { close(s.closeCh) })
	return nil
}

func (s *scriptedSource) run(ctx context.Context, handle string, script ScriptedOpen) {
	defer close(s.events)

	emit := func(ev models.Event) bool {
		select {
		case s.frames <- struct{}{}:
		default:
		}
		select {
		case s.events <- ev:
			return true
		case <-s.closeCh:
			return false
		case <-ctx.Done():
			return false
		}
	}

	if !script.SkipConnect {
		if !emit(models.NewConnect(handle)) {
			return
		}
	}
	for _, ev := range script.Events {
		if !emit(ev) {
			return
		}
	}

	if script.FailAfter != nil {
		s.mu.Lock()
		s.err = script.FailAfter
		s.mu.Unlock()
		return
	}
	if script.Hang {
		select {
		case <-s.closeCh:
		case <-ctx.Done():
		}
	}
}
