// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package rules

import (
	"context"
	"time"

	"github.com/streamglass/streamglass/internal/logging"
)

// Flusher periodically writes buffered executed-count increments. Runs
// under the supervisor tree; a final flush happens on shutdown.
type Flusher struct {
	store    *Store
	interval time.Duration
}

func NewFlusher(store *Store, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Flusher{store: store, interval: interval}
}

// Serve implements suture.Service.
func (f *Flusher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := f.store.FlushExecCounts(flushCtx); err != nil {
				logging.Warn().Err(err).Msg("final executed-count flush failed")
			}
			cancel()
			return ctx.Err()
		case <-ticker.C:
			if err := f.store.FlushExecCounts(ctx); err != nil {
				logging.Warn().Err(err).Msg("executed-count flush failed")
			}
		}
	}
}

func (f *Flusher) String() string { return "rule-exec-flusher" }
