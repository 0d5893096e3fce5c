// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package session

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/models"
)

// stopGrace bounds how long a stop waits for the old session to wind down.
const stopGrace = 2 * time.Second

// Manager enforces one live session per user. Starting a new session stops
// and waits out any previous one first.
type Manager struct {
	deps Deps

	mu       sync.Mutex
	sessions map[int64]*Supervisor
}

func NewManager(deps Deps) *Manager {
	return &Manager{
		deps:     deps,
		sessions: make(map[int64]*Supervisor),
	}
}

// Start launches a session for (userID, handle), replacing any running one.
// The supervisor runs on its own goroutine until the sink dies, the caller
// stops it, or the upstream fails terminally.
func (m *Manager) Start(ctx context.Context, userID int64, handle string, sink Sink, tariff models.TariffSnapshot) (*Supervisor, error) {
	m.StopUser(userID)

	s, err := newSupervisor(ctx, m.deps, userID, handle, sink, tariff)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	m.mu.Lock()
	m.sessions[userID] = s
	m.mu.Unlock()

	go func() {
		s.Run(runCtx)
		m.mu.Lock()
		if m.sessions[userID] == s {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
	}()

	logging.Info().Int64("user_id", userID).Str("handle", handle).Msg("session started")
	return s, nil
}

// StopUser stops the user's session, if any, and waits for it within the
// grace period.
func (m *Manager) StopUser(userID int64) {
	m.mu.Lock()
	s := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if s == nil {
		return
	}
	s.Stop()
	select {
	case <-s.Done():
	case <-time.After(stopGrace):
		logging.Warn().Int64("user_id", userID).Msg("session did not stop within grace period")
	}
}

// StopAll stops every session; used at shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	all := make([]*Supervisor, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	m.sessions = make(map[int64]*Supervisor)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stopGrace)
	defer cancel()

	var g errgroup.Group
	for _, s := range all {
		g.Go(func() error {
			s.Stop()
			select {
			case <-s.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		logging.Warn().Msg("some sessions did not stop within grace period")
	}
}

// Active returns the number of running sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
