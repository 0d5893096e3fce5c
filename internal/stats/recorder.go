// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package stats records gift revenue: an append-only event log plus derived
// per-donor and per-streamer aggregate rows maintained by single-statement
// upserts and rebuilt wholesale by a nightly job.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/streamglass/streamglass/internal/database"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/metrics"
	"github.com/streamglass/streamglass/internal/models"
)

// Recorder appends gift events and advances the aggregate tables. One
// logical upsert per (streamer, donor) and one per streamer, in one
// transaction per event.
type Recorder struct {
	db  *database.DB
	now func() time.Time
}

func NewRecorder(db *database.DB) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// donorUpsert advances one (streamer_handle, donor) row. The CASE arms
// carry today's counter forward when the day matches and restart it when the
// calendar moved, shifting the old today value into yesterday.
const donorUpsert = `
	INSERT INTO donor_stats (
		streamer_handle, donor, total_coins, total_gifts,
		today_date, today_coins, yesterday_date, yesterday_coins,
		last_7d_anchor, last_7d_coins, last_30d_anchor, last_30d_coins,
		updated_at
	) VALUES (?, ?, ?, ?, ?, ?, '', 0, ?, ?, ?, ?, now())
	ON CONFLICT (streamer_handle, donor) DO UPDATE SET
		total_coins = donor_stats.total_coins + excluded.total_coins,
		total_gifts = donor_stats.total_gifts + excluded.total_gifts,
		yesterday_date = CASE WHEN donor_stats.today_date = excluded.today_date
			THEN donor_stats.yesterday_date ELSE donor_stats.today_date END,
		yesterday_coins = CASE WHEN donor_stats.today_date = excluded.today_date
			THEN donor_stats.yesterday_coins ELSE donor_stats.today_coins END,
		today_coins = CASE WHEN donor_stats.today_date = excluded.today_date
			THEN donor_stats.today_coins + excluded.today_coins ELSE excluded.today_coins END,
		today_date = excluded.today_date,
		last_7d_coins = CASE WHEN donor_stats.last_7d_anchor = excluded.last_7d_anchor
			THEN donor_stats.last_7d_coins + excluded.last_7d_coins ELSE excluded.last_7d_coins END,
		last_7d_anchor = excluded.last_7d_anchor,
		last_30d_coins = CASE WHEN donor_stats.last_30d_anchor = excluded.last_30d_anchor
			THEN donor_stats.last_30d_coins + excluded.last_30d_coins ELSE excluded.last_30d_coins END,
		last_30d_anchor = excluded.last_30d_anchor,
		updated_at = now()`

const streamerUpsert = `
	INSERT INTO streamer_stats (
		streamer_handle, total_coins, total_gifts,
		today_date, today_coins, yesterday_date, yesterday_coins,
		last_7d_anchor, last_7d_coins, last_30d_anchor, last_30d_coins,
		updated_at
	) VALUES (?, ?, ?, ?, ?, '', 0, ?, ?, ?, ?, now())
	ON CONFLICT (streamer_handle) DO UPDATE SET
		total_coins = streamer_stats.total_coins + excluded.total_coins,
		total_gifts = streamer_stats.total_gifts + excluded.total_gifts,
		yesterday_date = CASE WHEN streamer_stats.today_date = excluded.today_date
			THEN streamer_stats.yesterday_date ELSE streamer_stats.today_date END,
		yesterday_coins = CASE WHEN streamer_stats.today_date = excluded.today_date
			THEN streamer_stats.yesterday_coins ELSE streamer_stats.today_coins END,
		today_coins = CASE WHEN streamer_stats.today_date = excluded.today_date
			THEN streamer_stats.today_coins + excluded.today_coins ELSE excluded.today_coins END,
		today_date = excluded.today_date,
		last_7d_coins = CASE WHEN streamer_stats.last_7d_anchor = excluded.last_7d_anchor
			THEN streamer_stats.last_7d_coins + excluded.last_7d_coins ELSE excluded.last_7d_coins END,
		last_7d_anchor = excluded.last_7d_anchor,
		last_30d_coins = CASE WHEN streamer_stats.last_30d_anchor = excluded.last_30d_anchor
			THEN streamer_stats.last_30d_coins + excluded.last_30d_coins ELSE excluded.last_30d_coins END,
		last_30d_anchor = excluded.last_30d_anchor,
		updated_at = now()`

// RecordGift persists one gift event. A transient write failure is retried
// once and then logged and dropped; the event still reaches the client.
func (r *Recorder) RecordGift(ctx context.Context, handle string, ev models.Event) {
	if ev.Kind != models.EventGift || handle == "" || ev.User == "" {
		return
	}

	err := r.record(ctx, handle, ev)
	if err != nil {
		err = r.record(ctx, handle, ev)
	}
	if err != nil {
		metrics.StatsWriteErrors.Inc()
		logging.Error().Err(err).
			Str("handle", handle).
			Str("donor", ev.User).
			Msg("gift stats write dropped after retry")
		return
	}
	metrics.StatsWrites.Inc()
}

func (r *Recorder) record(ctx context.Context, handle string, ev models.Event) error {
	day := models.DayString(r.now())
	coins := int64(ev.DiamondsTotal)
	gifts := int64(ev.Count)

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gift_events (streamer_handle, donor, gift_id, gift_name, count, coins, day)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			handle, ev.User, ev.GiftID, ev.GiftName, ev.Count, ev.DiamondsTotal, day); err != nil {
			return fmt.Errorf("append gift event: %w", err)
		}
		if _, err := tx.ExecContext(ctx, donorUpsert,
			handle, ev.User, coins, gifts, day, coins, day, coins, day, coins); err != nil {
			return fmt.Errorf("upsert donor stats: %w", err)
		}
		if _, err := tx.ExecContext(ctx, streamerUpsert,
			handle, coins, gifts, day, coins, day, coins, day, coins); err != nil {
			return fmt.Errorf("upsert streamer stats: %w", err)
		}
		return nil
	})
}

// TopDonors returns the biggest all-time donors for a streamer.
func (r *Recorder) TopDonors(ctx context.Context, handle string, limit int) ([]models.DonorStat, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.Conn().QueryContext(ctx, `
		SELECT streamer_handle, donor, total_coins, total_gifts,
		       today_date, today_coins, yesterday_date, yesterday_coins,
		       last_7d_anchor, last_7d_coins, last_30d_anchor, last_30d_coins,
		       updated_at
		FROM donor_stats WHERE streamer_handle = ?
		ORDER BY total_coins DESC, donor ASC LIMIT ?`, handle, limit)
	if err != nil {
		return nil, fmt.Errorf("query top donors: %w", err)
	}
	defer rows.Close()

	var out []models.DonorStat
	for rows.Next() {
		var d models.DonorStat
		if err := rows.Scan(&d.StreamerHandle, &d.Donor, &d.TotalCoins, &d.TotalGifts,
			&d.TodayDate, &d.TodayCoins, &d.YesterdayDate, &d.YesterdayCoins,
			&d.Last7dAnchor, &d.Last7dCoins, &d.Last30dAnchor, &d.Last30dCoins,
			&d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan donor stat: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// StreamerTotals returns the aggregate row for one streamer; the zero value
// with the handle set when nothing was recorded yet.
func (r *Recorder) StreamerTotals(ctx context.Context, handle string) (models.StreamerStat, error) {
	var s models.StreamerStat
	row := r.db.Conn().QueryRowContext(ctx, `
		SELECT streamer_handle, total_coins, total_gifts,
		       today_date, today_coins, yesterday_date, yesterday_coins,
		       last_7d_anchor, last_7d_coins, last_30d_anchor, last_30d_coins,
		       updated_at
		FROM streamer_stats WHERE streamer_handle = ?`, handle)
	err := row.Scan(&s.StreamerHandle, &s.TotalCoins, &s.TotalGifts,
		&s.TodayDate, &s.TodayCoins, &s.YesterdayDate, &s.YesterdayCoins,
		&s.Last7dAnchor, &s.Last7dCoins, &s.Last30dAnchor, &s.Last30dCoins,
		&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StreamerStat{StreamerHandle: handle}, nil
	}
	if err != nil {
		return s, fmt.Errorf("query streamer totals: %w", err)
	}
	return s, nil
}
