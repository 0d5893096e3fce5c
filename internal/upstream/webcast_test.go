// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamglass/streamglass/internal/models"
)

func TestNormalizeGiftCountFallback(t *testing.T) {
	tests := []struct {
		name      string
		f         frame
		wantCount int
		wantTotal int
	}{
		{"explicit count", frame{Type: "gift", Count: 3, DiamondCount: 10}, 3, 30},
		{"repeat count fallback", frame{Type: "gift", RepeatCount: 5, DiamondCount: 2}, 5, 10},
		{"default one", frame{Type: "gift", DiamondCount: 7}, 1, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := normalize("h", tt.f)
			if !ok {
				t.Fatal("gift frame not normalized")
			}
			if ev.Count != tt.wantCount {
				t.Errorf("count = %d, want %d", ev.Count, tt.wantCount)
			}
			if ev.DiamondsTotal != tt.wantTotal {
				t.Errorf("diamonds_total = %d, want %d", ev.DiamondsTotal, tt.wantTotal)
			}
		})
	}
}

func TestNormalizeKinds(t *testing.T) {
	tests := []struct {
		frameType string
		wantKind  models.EventKind
	}{
		{"connect", models.EventConnect},
		{"disconnect", models.EventDisconnect},
		{"chat", models.EventChat},
		{"like", models.EventLike},
		{"member", models.EventJoin},
		{"follow", models.EventFollow},
		{"subscribe", models.EventSubscribe},
		{"share", models.EventShare},
		{"roomUser", models.EventViewer},
	}
	for _, tt := range tests {
		ev, ok := normalize("h", frame{Type: tt.frameType})
		if !ok {
			t.Errorf("frame type %q not normalized", tt.frameType)
			continue
		}
		if ev.Kind != tt.wantKind {
			t.Errorf("frame type %q => kind %q, want %q", tt.frameType, ev.Kind, tt.wantKind)
		}
	}

	if _, ok := normalize("h", frame{Type: "heartbeat"}); ok {
		t.Error("heartbeat frames should not produce events")
	}
}

func TestClassifyErrorFrame(t *testing.T) {
	tests := []struct {
		code     string
		wantKind Kind
		terminal bool
	}{
		{"ROOM_NOT_FOUND", KindNotFound, true},
		{"LIVE_ENDED", KindNotFound, true},
		{"DEVICE_BLOCKED", KindBlocked, true},
		{"PREMIUM_REQUIRED", KindBlocked, true},
		{"RATE_LIMIT", KindRateLimited, false},
		{"SIGN_ERROR", KindSignatureError, false},
		{"SOMETHING_ELSE", KindUnknown, false},
	}
	for _, tt := range tests {
		err := classifyErrorFrame("h", frame{Type: "error", Code: tt.code})
		if err.Kind != tt.wantKind {
			t.Errorf("code %s => kind %s, want %s", tt.code, err.Kind, tt.wantKind)
		}
		if err.Terminal() != tt.terminal {
			t.Errorf("code %s terminal = %v, want %v", tt.code, err.Terminal(), tt.terminal)
		}
	}
}

func TestClassifyDialError(t *testing.T) {
	base := errors.New("handshake failed")
	tests := []struct {
		status   int
		wantKind Kind
	}{
		{http.StatusNotFound, KindNotFound},
		{http.StatusForbidden, KindBlocked},
		{http.StatusTooManyRequests, KindRateLimited},
		{http.StatusUnauthorized, KindSignatureError},
		{http.StatusBadGateway, KindTransport},
	}
	for _, tt := range tests {
		err := classifyDialError("h", &http.Response{StatusCode: tt.status}, base)
		if err.Kind != tt.wantKind {
			t.Errorf("status %d => kind %s, want %s", tt.status, err.Kind, tt.wantKind)
		}
	}
	if err := classifyDialError("h", nil, base); err.Kind != KindTransport {
		t.Errorf("nil response => kind %s, want transport", err.Kind)
	}
}

func TestKindOfAndIsTerminal(t *testing.T) {
	wrapped := NewError(KindBlocked, "h", errors.New("device blocked"))
	if KindOf(wrapped) != KindBlocked {
		t.Errorf("KindOf = %s", KindOf(wrapped))
	}
	if !IsTerminal(wrapped) {
		t.Error("blocked should be terminal")
	}
	if IsTerminal(errors.New("plain")) {
		t.Error("plain errors are not terminal")
	}
	if KindOf(errors.New("plain")) != KindUnknown {
		t.Error("plain errors classify as unknown")
	}
}

// TestWebcastDriverEndToEnd runs the driver against an in-process websocket
// server emitting a short frame sequence.
func TestWebcastDriverEndToEnd(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("unique_id"); got != "alice" {
			t.Errorf("unique_id = %q, want alice", got)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		frames := []string{
			`{"type":"connect"}`,
			`{"type":"heartbeat"}`,
			`{"type":"chat","user":"bob","text":"hello"}`,
			`{"type":"gift","user":"carol","gift_id":"5655","gift_name":"Rose","repeat_count":2,"diamond_count":1}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Keep the socket open briefly so the client drains everything.
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	driver := NewWebcastDriver(wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src, err := driver.Open(ctx, "alice")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	var got []models.Event
	timeout := time.After(3 * time.Second)
	for len(got) < 3 {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				t.Fatalf("source closed early, got %d events, err=%v", len(got), src.Err())
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out with %d events", len(got))
		}
	}

	if got[0].Kind != models.EventConnect {
		t.Errorf("first event kind = %s, want connect", got[0].Kind)
	}
	if got[1].Kind != models.EventChat || got[1].User != "bob" {
		t.Errorf("second event = %+v, want chat from bob", got[1])
	}
	gift := got[2]
	if gift.Kind != models.EventGift || gift.Count != 2 || gift.DiamondsTotal != 2 {
		t.Errorf("gift event = %+v, want count 2 total 2", gift)
	}

	// The heartbeat frame must have ticked liveness even without an event.
	select {
	case <-src.Frames():
	default:
		t.Error("expected at least one liveness tick")
	}
}
