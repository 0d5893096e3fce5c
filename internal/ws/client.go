// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package ws is the client endpoint: one websocket per viewer, carrying the
// control actions in and the ordered alert payloads out.
package ws

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/streamglass/streamglass/internal/auth"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/metrics"
	"github.com/streamglass/streamglass/internal/models"
	"github.com/streamglass/streamglass/internal/session"
	"github.com/streamglass/streamglass/internal/upstream"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
)

var errClientGone = errors.New("client connection closed")

// command is one inbound control message. Unknown actions are ignored.
type command struct {
	Action   string `json:"action"`
	Username string `json:"username,omitempty"`
}

// Client owns one viewer connection. It is the session's Sink: payloads are
// queued per connection and written by a single pump, preserving order.
type Client struct {
	conn     *websocket.Conn
	identity auth.Identity
	tariff   models.TariffSnapshot
	platform models.Platform
	manager  *session.Manager

	send chan models.Payload
	done chan struct{}
	once sync.Once

	// writeMu serializes frame writes between the pump and close paths;
	// gorilla permits a single concurrent writer.
	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, identity auth.Identity, tariff models.TariffSnapshot, platform models.Platform, manager *session.Manager) *Client {
	return &Client{
		conn:     conn,
		identity: identity,
		tariff:   tariff,
		platform: platform,
		manager:  manager,
		send:     make(chan models.Payload, 256),
		done:     make(chan struct{}),
	}
}

// Send implements session.Sink. A full queue or a closed connection reports
// the client as gone so the session can stop.
func (c *Client) Send(p models.Payload) error {
	select {
	case <-c.done:
		return errClientGone
	default:
	}
	select {
	case c.send <- p:
		return nil
	case <-c.done:
		return errClientGone
	default:
		return errors.New("client send queue full")
	}
}

// run services the connection until it closes, then stops the session.
func (c *Client) run() {
	metrics.WSClients.Inc()
	defer metrics.WSClients.Dec()

	go c.writePump()
	c.readPump()

	c.shutdown()
	c.manager.StopUser(c.identity.UserID)
}

func (c *Client) shutdown() {
	c.once.Do(func() { close(c.done) })
}

func (c *Client) readPump() {
	defer func() {
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).Int64("user_id", c.identity.UserID).Msg("unexpected websocket close")
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			logging.Debug().Err(err).Msg("malformed client command ignored")
			continue
		}
		c.handleCommand(cmd)
	}
}

func (c *Client) handleCommand(cmd command) {
	switch cmd.Action {
	case "connect_handle":
		handle := strings.TrimSpace(strings.TrimPrefix(cmd.Username, "@"))
		if handle == "" {
			_ = c.Send(models.ErrorPayload("username required", ""))
			return
		}
		sup, err := c.manager.Start(context.Background(), c.identity.UserID, handle, c, c.tariff)
		if err != nil {
			logging.Error().Err(err).Int64("user_id", c.identity.UserID).Msg("session start failed")
			_ = c.Send(models.ErrorPayload("failed to start session", ""))
			return
		}
		go c.watchTerminal(sup)

	case "disconnect_handle":
		c.manager.StopUser(c.identity.UserID)

	default:
		// Unknown actions are ignored per protocol.
	}
}

// watchTerminal closes the connection with a policy code when the session
// died because the handle does not exist or is blocked.
func (c *Client) watchTerminal(sup *session.Supervisor) {
	select {
	case <-sup.Done():
	case <-c.done:
		return
	}
	if err := sup.Err(); err != nil && upstream.IsTerminal(err) {
		c.close(websocket.ClosePolicyViolation, "stream unavailable")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return

		case p := <-c.send:
			data, err := json.Marshal(p)
			if err != nil {
				logging.Error().Err(err).Msg("failed to marshal payload")
				continue
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

// close sends a close frame and tears the connection down.
func (c *Client) close(code int, reason string) {
	_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = c.conn.Close()
	c.shutdown()
}
