// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package ws

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/streamglass/streamglass/internal/auth"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/models"
	"github.com/streamglass/streamglass/internal/session"
)

// Handler upgrades viewer connections and authenticates them once at open.
type Handler struct {
	verifier *auth.TokenVerifier
	tariffs  auth.TariffResolver
	manager  *session.Manager
	upgrader websocket.Upgrader
}

func NewHandler(verifier *auth.TokenVerifier, tariffs auth.TariffResolver, manager *session.Manager, allowedOrigins []string) *Handler {
	return &Handler{
		verifier: verifier,
		tariffs:  tariffs,
		manager:  manager,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.ToLower(o)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.ToLower(origin)]
		return ok
	}
}

// bearerToken pulls the token from the Authorization header or, for clients
// that cannot set headers on websocket dial, the token query parameter.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP handles GET /ws. Authentication failures still upgrade so the
// client receives a final status payload before the 1008 close.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug().Err(err).Msg("websocket upgrade rejected")
		return
	}

	identity, err := h.verifier.Verify(bearerToken(r))
	if err != nil {
		rejectConn(conn, "invalid token")
		return
	}

	tariff, err := h.tariffs.Resolve(r.Context(), identity.UserID)
	if err != nil {
		logging.Error().Err(err).Int64("user_id", identity.UserID).Msg("tariff resolution failed")
		rejectConn(conn, "account unavailable")
		return
	}

	platform := models.Platform(strings.ToLower(r.URL.Query().Get("platform")))
	if platform == "" {
		platform = models.PlatformDesktop
	}
	if !tariff.PlatformAllowed(platform) {
		rejectConn(conn, "platform not allowed for this plan")
		return
	}

	client := newClient(conn, identity, tariff, platform, h.manager)
	logging.Info().
		Int64("user_id", identity.UserID).
		Str("platform", string(platform)).
		Msg("client connected")
	client.run()
}

// rejectConn sends the final status frame and closes with a policy code.
func rejectConn(conn *websocket.Conn, reason string) {
	p := models.StatusPayload(false, reason, "")
	_ = conn.WriteJSON(p)
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason))
	_ = conn.Close()
}
