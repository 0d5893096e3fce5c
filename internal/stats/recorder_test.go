// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package stats

import (
	"context"
	"testing"
	"time"

	"github.com/streamglass/streamglass/internal/database"
	"github.com/streamglass/streamglass/internal/models"
)

func newTestRecorder(t *testing.T) (*Recorder, *Rebuilder, *time.Time) {
	t.Helper()
	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	r := NewRecorder(db)
	r.now = clock
	rb := NewRebuilder(db)
	rb.now = clock
	return r, rb, &now
}

func giftEvent(user, giftID string, count, unitDiamonds int) models.Event {
	return models.NewGift(user, giftID, "Rose", count, unitDiamonds, false, false)
}

func TestRecordGiftAccumulates(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	ctx := context.Background()

	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 3, 1))
	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 2, 1))
	r.RecordGift(ctx, "streamer", giftEvent("bob", "7777", 1, 100))

	donors, err := r.TopDonors(ctx, "streamer", 10)
	if err != nil {
		t.Fatalf("TopDonors: %v", err)
	}
	if len(donors) != 2 {
		t.Fatalf("donors = %d, want 2", len(donors))
	}
	if donors[0].Donor != "bob" || donors[0].TotalCoins != 100 || donors[0].TotalGifts != 1 {
		t.Fatalf("top donor = %+v", donors[0])
	}
	if donors[1].Donor != "alice" || donors[1].TotalCoins != 5 || donors[1].TotalGifts != 5 {
		t.Fatalf("second donor = %+v", donors[1])
	}
	if donors[1].TodayCoins != 5 || donors[1].TodayDate != "2026-03-01" {
		t.Fatalf("today counters = %+v", donors[1])
	}

	totals, err := r.StreamerTotals(ctx, "streamer")
	if err != nil {
		t.Fatalf("StreamerTotals: %v", err)
	}
	if totals.TotalCoins != 105 || totals.TotalGifts != 6 || totals.TodayCoins != 105 {
		t.Fatalf("streamer totals = %+v", totals)
	}
}

func TestRecordGiftDayRollover(t *testing.T) {
	r, _, now := newTestRecorder(t)
	ctx := context.Background()

	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 1, 10))
	*now = now.AddDate(0, 0, 1)
	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 1, 7))

	donors, err := r.TopDonors(ctx, "streamer", 1)
	if err != nil {
		t.Fatalf("TopDonors: %v", err)
	}
	d := donors[0]
	if d.TotalCoins != 17 {
		t.Fatalf("total_coins = %d, want 17", d.TotalCoins)
	}
	if d.TodayDate != "2026-03-02" || d.TodayCoins != 7 {
		t.Fatalf("today = %s/%d, want 2026-03-02/7", d.TodayDate, d.TodayCoins)
	}
	if d.YesterdayDate != "2026-03-01" || d.YesterdayCoins != 10 {
		t.Fatalf("yesterday = %s/%d, want 2026-03-01/10", d.YesterdayDate, d.YesterdayCoins)
	}
}

func TestRecordGiftIgnoresNonGifts(t *testing.T) {
	r, _, _ := newTestRecorder(t)
	ctx := context.Background()

	r.RecordGift(ctx, "streamer", models.NewChat("alice", "hi"))
	r.RecordGift(ctx, "", giftEvent("alice", "5655", 1, 1))

	donors, err := r.TopDonors(ctx, "streamer", 10)
	if err != nil {
		t.Fatalf("TopDonors: %v", err)
	}
	if len(donors) != 0 {
		t.Fatalf("donors = %v, want none", donors)
	}
}

func TestStreamerTotalsMissingHandle(t *testing.T) {
	r, _, _ := newTestRecorder(t)

	totals, err := r.StreamerTotals(context.Background(), "ghost")
	if err != nil {
		t.Fatalf("StreamerTotals: %v", err)
	}
	if totals.StreamerHandle != "ghost" || totals.TotalCoins != 0 {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestRebuildMatchesIncremental(t *testing.T) {
	r, rb, now := newTestRecorder(t)
	ctx := context.Background()

	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 2, 1))
	r.RecordGift(ctx, "streamer", giftEvent("bob", "7777", 1, 50))
	*now = now.AddDate(0, 0, 1)
	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 3, 1))

	before, err := r.TopDonors(ctx, "streamer", 10)
	if err != nil {
		t.Fatalf("TopDonors: %v", err)
	}

	if err := rb.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	after, err := r.TopDonors(ctx, "streamer", 10)
	if err != nil {
		t.Fatalf("TopDonors: %v", err)
	}

	if len(before) != len(after) {
		t.Fatalf("donor rows %d -> %d", len(before), len(after))
	}
	// Lifetime totals must agree exactly; the rebuild additionally
	// normalizes every row's date columns to the current day.
	for i := range before {
		b, a := before[i], after[i]
		if b.Donor != a.Donor || b.TotalCoins != a.TotalCoins || b.TotalGifts != a.TotalGifts {
			t.Fatalf("row %d: totals diverge: %+v vs %+v", i, b, a)
		}
		if a.TodayDate != "2026-03-02" {
			t.Fatalf("row %d: rebuilt today_date = %s", i, a.TodayDate)
		}
	}
	// Alice gifted on both days; her rebuilt counters reflect that.
	var alice models.DonorStat
	for _, d := range after {
		if d.Donor == "alice" {
			alice = d
		}
	}
	if alice.TodayCoins != 3 || alice.YesterdayCoins != 2 || alice.Last7dCoins != 5 {
		t.Fatalf("alice = %+v", alice)
	}

	// Rebuild is idempotent.
	if err := rb.Rebuild(ctx); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}
	again, err := r.TopDonors(ctx, "streamer", 10)
	if err != nil {
		t.Fatalf("TopDonors: %v", err)
	}
	for i := range after {
		if after[i].TotalCoins != again[i].TotalCoins || after[i].Last30dCoins != again[i].Last30dCoins {
			t.Fatalf("row %d changed on second rebuild", i)
		}
	}
}

func TestRebuildRollingWindows(t *testing.T) {
	r, rb, now := newTestRecorder(t)
	ctx := context.Background()

	// 40 days ago: outside both windows. 5 days ago: inside 7d and 30d.
	// Today: inside everything.
	start := *now
	*now = start.AddDate(0, 0, -40)
	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 1, 100))
	*now = start.AddDate(0, 0, -5)
	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 1, 10))
	*now = start
	r.RecordGift(ctx, "streamer", giftEvent("alice", "5655", 1, 1))

	if err := rb.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	totals, err := r.StreamerTotals(ctx, "streamer")
	if err != nil {
		t.Fatalf("StreamerTotals: %v", err)
	}
	if totals.TotalCoins != 111 {
		t.Fatalf("total = %d, want 111", totals.TotalCoins)
	}
	if totals.TodayCoins != 1 {
		t.Fatalf("today = %d, want 1", totals.TodayCoins)
	}
	if totals.Last7dCoins != 11 {
		t.Fatalf("7d = %d, want 11", totals.Last7dCoins)
	}
	if totals.Last30dCoins != 11 {
		t.Fatalf("30d = %d, want 11", totals.Last30dCoins)
	}
}

func TestNextRun(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := nextRun(at)
	want := time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)
	if !run.Equal(want) {
		t.Fatalf("nextRun = %v, want %v", run, want)
	}

	early := time.Date(2026, 3, 2, 0, 1, 0, 0, time.UTC)
	if run := nextRun(early); !run.Equal(want) {
		t.Fatalf("nextRun before 00:05 = %v, want %v", run, want)
	}
}
