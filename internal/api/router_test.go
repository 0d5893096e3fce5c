// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/streamglass/streamglass/internal/config"
	"github.com/streamglass/streamglass/internal/database"
	"github.com/streamglass/streamglass/internal/session"
	"github.com/streamglass/streamglass/internal/upstream"
)

func newTestRouter(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	db, err := database.NewMemory()
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	mediaRoot := t.TempDir()
	cfg := config.Default()
	cfg.Media.Root = mediaRoot
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"

	manager := session.NewManager(session.Deps{
		Driver:    upstream.NewScriptedDriver(upstream.ScriptedOpen{Hang: true}),
		Upstream:  cfg.Upstream,
		Pipeline:  cfg.Pipeline,
		MediaBase: cfg.Media.BaseURL,
	})

	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	srv := httptest.NewServer(NewRouter(cfg, db, manager, ws).Handler())
	t.Cleanup(srv.Close)
	return srv, mediaRoot
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Database != "ok" {
		t.Fatalf("body = %+v", body)
	}
	if body.ActiveSessions != 0 {
		t.Fatalf("active_sessions = %d", body.ActiveSessions)
	}
}

func TestStaticServesMedia(t *testing.T) {
	srv, mediaRoot := newTestRouter(t)

	dir := filepath.Join(mediaRoot, "tts", "1")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "x.mp3"), []byte("audio"), 0o640); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/static/tts/1/x.mp3")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStaticRejectsTraversal(t *testing.T) {
	srv, mediaRoot := newTestRouter(t)

	secret := filepath.Join(filepath.Dir(mediaRoot), "secret.txt")
	if err := os.WriteFile(secret, []byte("nope"), 0o640); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(secret) })

	// Send the raw path without client-side cleaning.
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.URL.Opaque = "//static/../secret.txt"
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("path traversal served a file outside the media root")
	}
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newTestRouter(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
