// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package models defines the canonical domain vocabulary shared across the
// pipeline: normalized upstream events, trigger rules, tariff snapshots, and
// the aggregate stat rows persisted by the stats recorder.
package models

import (
	"fmt"
	"time"
)

// EventKind discriminates the normalized event variants produced by an
// upstream driver. Events are immutable values; within one session they are
// totally ordered by arrival time.
type EventKind string

const (
	EventChat       EventKind = "chat"
	EventGift       EventKind = "gift"
	EventLike       EventKind = "like"
	EventJoin       EventKind = "join"
	EventFollow     EventKind = "follow"
	EventSubscribe  EventKind = "subscribe"
	EventShare      EventKind = "share"
	EventViewer     EventKind = "viewer"
	EventConnect    EventKind = "connect"
	EventDisconnect EventKind = "disconnect"
	EventStatus     EventKind = "status"
)

// Event is the normalized form of one upstream frame. Only the fields
// relevant to the Kind are populated; the zero value of the rest is ignored.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// User is the acting username (sender, gifter, liker, joiner).
	User string `json:"user,omitempty"`

	// Chat
	Text string `json:"text,omitempty"`

	// Gift
	GiftID        string `json:"gift_id,omitempty"`
	GiftName      string `json:"gift_name,omitempty"`
	Count         int    `json:"count,omitempty"`
	UnitDiamonds  int    `json:"unit_diamonds,omitempty"`
	DiamondsTotal int    `json:"diamonds_total,omitempty"`
	Streakable    bool   `json:"streakable,omitempty"`
	Streaking     bool   `json:"streaking,omitempty"`

	// Viewer counts
	ViewerCurrent int `json:"viewer_current,omitempty"`
	ViewerTotal   int `json:"viewer_total,omitempty"`

	// Connect / Disconnect / Status
	Handle    string `json:"handle,omitempty"`
	Connected bool   `json:"connected,omitempty"`
	Message   string `json:"message,omitempty"`
}

// NewChat builds a chat event.
func NewChat(user, text string) Event {
	return Event{Kind: EventChat, Timestamp: time.Now(), User: user, Text: text}
}

// NewGift builds a gift event. Count defaults to 1 and DiamondsTotal is
// derived from the unit value when the caller left it zero, matching the
// normalization contract of the upstream driver.
func NewGift(user, giftID, giftName string, count, unitDiamonds int, streakable, streaking bool) Event {
	if count <= 0 {
		count = 1
	}
	return Event{
		Kind:          EventGift,
		Timestamp:     time.Now(),
		User:          user,
		GiftID:        giftID,
		GiftName:      giftName,
		Count:         count,
		UnitDiamonds:  unitDiamonds,
		DiamondsTotal: unitDiamonds * count,
		Streakable:    streakable,
		Streaking:     streaking,
	}
}

// NewLike builds a like event.
func NewLike(user string, count int) Event {
	if count <= 0 {
		count = 1
	}
	return Event{Kind: EventLike, Timestamp: time.Now(), User: user, Count: count}
}

// NewJoin builds a viewer join event.
func NewJoin(user string) Event {
	return Event{Kind: EventJoin, Timestamp: time.Now(), User: user}
}

// NewFollow builds a follow event.
func NewFollow(user string) Event {
	return Event{Kind: EventFollow, Timestamp: time.Now(), User: user}
}

// NewSubscribe builds a subscribe event.
func NewSubscribe(user string) Event {
	return Event{Kind: EventSubscribe, Timestamp: time.Now(), User: user}
}

// NewShare builds a share event.
func NewShare(user string) Event {
	return Event{Kind: EventShare, Timestamp: time.Now(), User: user}
}

// NewViewer builds a viewer-count event.
func NewViewer(current, total int) Event {
	return Event{Kind: EventViewer, Timestamp: time.Now(), ViewerCurrent: current, ViewerTotal: total}
}

// NewConnect builds the connect signal for a handle.
func NewConnect(handle string) Event {
	return Event{Kind: EventConnect, Timestamp: time.Now(), Handle: handle, Connected: true}
}

// NewDisconnect builds the disconnect signal for a handle.
func NewDisconnect(handle string) Event {
	return Event{Kind: EventDisconnect, Timestamp: time.Now(), Handle: handle}
}

// GiftSignature returns the exact-duplicate suppression key for a gift event:
// user|gift_id|count|unit_diamonds|diamonds_total.
func (e Event) GiftSignature() string {
	return fmt.Sprintf("%s|%s|%d|%d|%d", e.User, e.GiftID, e.Count, e.UnitDiamonds, e.DiamondsTotal)
}
