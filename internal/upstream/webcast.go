// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/metrics"
	"github.com/streamglass/streamglass/internal/models"
)

const (
	dialTimeout    = 15 * time.Second
	readLimit      = 1 << 20 // 1 MiB per frame
	sourceChanSize = 256
	framesChanSize = 64
)

// WebcastDriver connects to the live source's webcast websocket endpoint.
type WebcastDriver struct {
	baseURL string
	dialer  *websocket.Dialer
	headers http.Header
}

// NewWebcastDriver builds a driver for the given endpoint.
func NewWebcastDriver(baseURL string) *WebcastDriver {
	return &WebcastDriver{
		baseURL: baseURL,
		dialer:  &websocket.Dialer{HandshakeTimeout: dialTimeout},
		headers: http.Header{},
	}
}

// SetHeader adds a header sent on every dial (cookies, device ids).
func (d *WebcastDriver) SetHeader(key, value string) {
	d.headers.Set(key, value)
}

// Open implements Driver.
func (d *WebcastDriver) Open(ctx context.Context, handle string) (EventSource, error) {
	u, err := url.Parse(d.baseURL)
	if err != nil {
		return nil, NewError(KindUnknown, handle, err)
	}
	q := u.Query()
	q.Set("unique_id", handle)
	q.Set("compress", "none")
	u.RawQuery = q.Encode()

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), d.headers)
	if err != nil {
		return nil, classifyDialError(handle, resp, err)
	}
	conn.SetReadLimit(readLimit)

	src := &webcastSource{
		handle:  handle,
		conn:    conn,
		events:  make(chan models.Event, sourceChanSize),
		frames:  make(chan struct{}, framesChanSize),
		closeCh: make(chan struct{}),
	}
	go src.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			_ = src.Close()
		case <-src.closeCh:
		}
	}()
	return src, nil
}

// classifyDialError maps a failed handshake onto the error taxonomy using
// the HTTP response when the upstream sent one.
func classifyDialError(handle string, resp *http.Response, err error) *Error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound, http.StatusGone:
			return NewError(KindNotFound, handle, err)
		case http.StatusForbidden:
			return NewError(KindBlocked, handle, err)
		case http.StatusTooManyRequests:
			return NewError(KindRateLimited, handle, err)
		case http.StatusUnauthorized:
			return NewError(KindSignatureError, handle, err)
		}
	}
	return NewError(KindTransport, handle, err)
}

// frame is the upstream wire format: one JSON object per websocket message.
type frame struct {
	Type         string `json:"type"`
	User         string `json:"user"`
	Text         string `json:"text"`
	GiftID       string `json:"gift_id"`
	GiftName     string `json:"gift_name"`
	Count        int    `json:"count"`
	RepeatCount  int    `json:"repeat_count"`
	DiamondCount int    `json:"diamond_count"`
	Streakable   bool   `json:"streakable"`
	Streaking    bool   `json:"streaking"`
	ViewerCount  int    `json:"viewer_count"`
	TotalViewers int    `json:"total_viewers"`
	Code         string `json:"code"`
	Message      string `json:"message"`
}

type webcastSource struct {
	handle string
	conn   *websocket.Conn
	events chan models.Event
	frames chan struct{}

	mu        sync.Mutex
	closed    bool
	closeCh   chan struct{}
	closeOnce sync.Once
	err       error
}

func (s *webcastSource) Events() <-chan models.Event { return s.events }
func (s *webcastSource) Frames() <-chan struct{}     { return s.frames }

func (s *webcastSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *webcastSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.closeOnce.Do(func() { close(s.closeCh) })
	return s.conn.Close()
}

func (s *webcastSource) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil && !s.closed {
		s.err = err
	}
}

func (s *webcastSource) readLoop() {
	defer func() {
		close(s.events)
		s.closeOnce.Do(func() { close(s.closeCh) })
		_ = s.conn.Close()
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.isClosed() {
				s.setErr(NewError(KindTransport, s.handle, err))
			}
			return
		}

		// Every raw frame is a liveness signal, domain event or not.
		metrics.UpstreamFrames.Inc()
		select {
		case s.frames <- struct{}{}:
		default:
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			logging.Warn().Err(err).Str("handle", s.handle).Msg("undecodable upstream frame")
			continue
		}

		if f.Type == "error" {
			s.setErr(classifyErrorFrame(s.handle, f))
			return
		}

		ev, ok := normalize(s.handle, f)
		if !ok {
			continue
		}
		metrics.UpstreamEvents.WithLabelValues(string(ev.Kind)).Inc()
		select {
		case s.events <- ev:
		case <-s.closeCh:
			return
		}
	}
}

func (s *webcastSource) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// classifyErrorFrame maps upstream error codes to the taxonomy.
func classifyErrorFrame(handle string, f frame) *Error {
	cause := fmt.Errorf("upstream error frame %s: %s", f.Code, f.Message)
	switch strings.ToUpper(f.Code) {
	case "ROOM_NOT_FOUND", "USER_NOT_FOUND", "LIVE_ENDED":
		return NewError(KindNotFound, handle, cause)
	case "DEVICE_BLOCKED", "IP_BLOCKED", "PREMIUM_REQUIRED":
		return NewError(KindBlocked, handle, cause)
	case "RATE_LIMIT":
		return NewError(KindRateLimited, handle, cause)
	case "SIGN_ERROR", "SIGNATURE_INVALID":
		return NewError(KindSignatureError, handle, cause)
	default:
		return NewError(KindUnknown, handle, cause)
	}
}

// normalize converts one decoded frame into a domain event.
// Gift count resolution: count, else repeat_count, else 1; diamonds_total is
// always unit * count.
func normalize(handle string, f frame) (models.Event, bool) {
	switch f.Type {
	case "connect", "hello":
		return models.NewConnect(handle), true
	case "disconnect", "goodbye":
		return models.NewDisconnect(handle), true
	case "chat":
		return models.NewChat(f.User, f.Text), true
	case "gift":
		count := f.Count
		if count == 0 {
			count = f.RepeatCount
		}
		return models.NewGift(f.User, f.GiftID, f.GiftName, count, f.DiamondCount, f.Streakable, f.Streaking), true
	case "like":
		return models.NewLike(f.User, f.Count), true
	case "member", "join":
		return models.NewJoin(f.User), true
	case "follow":
		return models.NewFollow(f.User), true
	case "subscribe":
		return models.NewSubscribe(f.User), true
	case "share":
		return models.NewShare(f.User), true
	case "roomUser", "viewer":
		return models.NewViewer(f.ViewerCount, f.TotalViewers), true
	default:
		// Heartbeats and unknown frame types tick the watchdog only.
		return models.Event{}, false
	}
}
