// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package models

import (
	"time"
)

// DonorStat is one aggregate row per (streamer_handle, donor). The rolling
// counters pair a value with the date it was last advanced to; when the
// calendar day moves past the stored date the counter restarts with the new
// date, atomically with the value column.
type DonorStat struct {
	StreamerHandle string    `json:"streamer_handle"`
	Donor          string    `json:"donor"`
	TotalCoins     int64     `json:"total_coins"`
	TotalGifts     int64     `json:"total_gifts"`
	TodayDate      string    `json:"today_date"`
	TodayCoins     int64     `json:"today_coins"`
	YesterdayDate  string    `json:"yesterday_date"`
	YesterdayCoins int64     `json:"yesterday_coins"`
	Last7dAnchor   string    `json:"last_7d_anchor"`
	Last7dCoins    int64     `json:"last_7d_coins"`
	Last30dAnchor  string    `json:"last_30d_anchor"`
	Last30dCoins   int64     `json:"last_30d_coins"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StreamerStat mirrors DonorStat aggregated over all donors of one streamer.
type StreamerStat struct {
	StreamerHandle string    `json:"streamer_handle"`
	TotalCoins     int64     `json:"total_coins"`
	TotalGifts     int64     `json:"total_gifts"`
	TodayDate      string    `json:"today_date"`
	TodayCoins     int64     `json:"today_coins"`
	YesterdayDate  string    `json:"yesterday_date"`
	YesterdayCoins int64     `json:"yesterday_coins"`
	Last7dAnchor   string    `json:"last_7d_anchor"`
	Last7dCoins    int64     `json:"last_7d_coins"`
	Last30dAnchor  string    `json:"last_30d_anchor"`
	Last30dCoins   int64     `json:"last_30d_coins"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// GiftEventRow is one append-only gift_events record. The table is the
// authoritative source for the nightly stats rebuild.
type GiftEventRow struct {
	StreamerHandle string    `json:"streamer_handle"`
	Donor          string    `json:"donor"`
	GiftID         string    `json:"gift_id,omitempty"`
	GiftName       string    `json:"gift_name,omitempty"`
	Count          int       `json:"count"`
	Coins          int       `json:"coins"`
	Day            string    `json:"day"`
	CreatedAt      time.Time `json:"created_at"`
}

// DayString formats t as the canonical day key used by the stats tables.
func DayString(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
