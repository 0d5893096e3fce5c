// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/streamglass/streamglass/internal/database"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/models"
)

// Rebuilder replaces both aggregate tables wholesale from the append-only
// gift_events log. The incremental upserts approximate the rolling windows
// between runs; the rebuild is the authoritative recompute.
type Rebuilder struct {
	db  *database.DB
	now func() time.Time
}

func NewRebuilder(db *database.DB) *Rebuilder {
	return &Rebuilder{db: db, now: time.Now}
}

// Serve implements suture.Service. Runs shortly after each UTC midnight.
func (rb *Rebuilder) Serve(ctx context.Context) error {
	for {
		next := nextRun(rb.now())
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		if err := rb.Rebuild(ctx); err != nil {
			logging.Error().Err(err).Msg("nightly stats rebuild failed")
		} else {
			logging.Info().Msg("nightly stats rebuild complete")
		}
	}
}

func (rb *Rebuilder) String() string { return "stats-rebuilder" }

// nextRun is 00:05 UTC of the following day.
func nextRun(now time.Time) time.Time {
	now = now.UTC()
	run := time.Date(now.Year(), now.Month(), now.Day(), 0, 5, 0, 0, time.UTC)
	if !run.After(now) {
		run = run.AddDate(0, 0, 1)
	}
	return run
}

// Rebuild recomputes donor_stats and streamer_stats in one transaction, one
// GROUP BY per table. Idempotent: running it twice over the same log yields
// identical tables.
func (rb *Rebuilder) Rebuild(ctx context.Context) error {
	now := rb.now().UTC()
	today := models.DayString(now)
	yesterday := models.DayString(now.AddDate(0, 0, -1))
	from7d := models.DayString(now.AddDate(0, 0, -6))
	from30d := models.DayString(now.AddDate(0, 0, -29))

	return rb.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM donor_stats`); err != nil {
			return fmt.Errorf("clear donor_stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO donor_stats (
				streamer_handle, donor, total_coins, total_gifts,
				today_date, today_coins, yesterday_date, yesterday_coins,
				last_7d_anchor, last_7d_coins, last_30d_anchor, last_30d_coins,
				updated_at
			)
			SELECT streamer_handle, donor,
				sum(coins), sum(count),
				?, sum(CASE WHEN day = ? THEN coins ELSE 0 END),
				?, sum(CASE WHEN day = ? THEN coins ELSE 0 END),
				?, sum(CASE WHEN day >= ? THEN coins ELSE 0 END),
				?, sum(CASE WHEN day >= ? THEN coins ELSE 0 END),
				now()
			FROM gift_events
			GROUP BY streamer_handle, donor`,
			today, today, yesterday, yesterday, today, from7d, today, from30d); err != nil {
			return fmt.Errorf("rebuild donor_stats: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM streamer_stats`); err != nil {
			return fmt.Errorf("clear streamer_stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO streamer_stats (
				streamer_handle, total_coins, total_gifts,
				today_date, today_coins, yesterday_date, yesterday_coins,
				last_7d_anchor, last_7d_coins, last_30d_anchor, last_30d_coins,
				updated_at
			)
			SELECT streamer_handle,
				sum(coins), sum(count),
				?, sum(CASE WHEN day = ? THEN coins ELSE 0 END),
				?, sum(CASE WHEN day = ? THEN coins ELSE 0 END),
				?, sum(CASE WHEN day >= ? THEN coins ELSE 0 END),
				?, sum(CASE WHEN day >= ? THEN coins ELSE 0 END),
				now()
			FROM gift_events
			GROUP BY streamer_handle`,
			today, today, yesterday, yesterday, today, from7d, today, from30d); err != nil {
			return fmt.Errorf("rebuild streamer_stats: %w", err)
		}
		return nil
	})
}
