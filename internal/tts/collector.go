// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package tts

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/metrics"
)

// Collector periodically removes expired synthesis artifacts. It is the
// backstop for per-file timers lost across process restarts, and it only
// ever touches the tts/ subtree of the media root.
type Collector struct {
	root      string
	retention time.Duration
	interval  time.Duration
}

func NewCollector(mediaRoot string, retention time.Duration) *Collector {
	interval := 30 * time.Second
	if retention > interval {
		interval = retention
	}
	return &Collector{
		root:      filepath.Join(mediaRoot, "tts"),
		retention: retention,
		interval:  interval,
	}
}

// Serve implements suture.Service.
func (c *Collector) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.sweep()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Collector) String() string { return "tts-collector" }

func (c *Collector) sweep() {
	cutoff := time.Now().Add(-c.retention)
	removed := 0

	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
				metrics.TTSArtifactsDeleted.Inc()
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Str("root", c.root).Msg("artifact sweep failed")
	}
	if removed > 0 {
		logging.Debug().Int("removed", removed).Msg("expired synthesis artifacts removed")
	}
}
