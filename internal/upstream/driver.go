// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package upstream connects to the third-party live-event source and
// normalizes its frames into the domain event vocabulary. The driver passes
// every streak frame through unchanged; de-duplication belongs to the
// pipeline filter.
package upstream

import (
	"context"

	"github.com/streamglass/streamglass/internal/models"
)

// Driver opens one event source per streamer handle.
type Driver interface {
	// Open connects to the live source for handle. It returns a classified
	// *Error on failure. The source honors ctx: cancellation closes it.
	Open(ctx context.Context, handle string) (EventSource, error)
}

// EventSource yields normalized events from one upstream connection.
//
// Events() closes when the connection ends; Err() then reports why (nil for
// a clean close initiated by Close). Frames() ticks on every raw frame,
// including ones that produce no domain event, so the supervisor's watchdog
// can observe liveness; ticks are best-effort and may be dropped when the
// receiver lags.
type EventSource interface {
	Events() <-chan models.Event
	Frames() <-chan struct{}
	Close() error
	Err() error
}
