// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package tts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/streamglass/streamglass/internal/config"
	"github.com/streamglass/streamglass/internal/models"
)

type fakeEngine struct {
	name  string
	audio []byte
	err   error
	calls int
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Speak(_ context.Context, _ string, _ Voice) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.audio, nil
}

func newTestService(t *testing.T, engines map[string]Engine) (*Service, string) {
	t.Helper()
	root := t.TempDir()
	cfg := &config.TTSConfig{
		RetentionSec:       300,
		EngineTimeout:      5 * time.Second,
		HeavyEngineTimeout: 5 * time.Second,
		FallbackVoice:      "gtts-en",
		RequestsPerSecond:  100,
	}
	media := &config.MediaConfig{Root: root, BaseURL: "http://example.test"}
	return NewServiceWithEngines(cfg, media, engines), root
}

func allowAll() models.TariffSnapshot {
	return models.TariffSnapshot{
		AllowedPlatforms:  []models.Platform{models.PlatformMobile, models.PlatformDesktop},
		AllowedTTSEngines: []string{EngineGoogleTrans, EngineNeural},
	}
}

func freeOnly() models.TariffSnapshot {
	return models.TariffSnapshot{
		AllowedPlatforms:  []models.Platform{models.PlatformMobile},
		AllowedTTSEngines: []string{EngineGoogleTrans},
	}
}

func TestSynthesizeWritesArtifactAndURL(t *testing.T) {
	free := &fakeEngine{name: EngineGoogleTrans, audio: []byte("mp3-bytes")}
	svc, root := newTestService(t, map[string]Engine{EngineGoogleTrans: free})

	url, err := svc.Synthesize(context.Background(), "hello", "gtts-en", 42, allowAll())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	const prefix = "http://example.test/static/tts/42/"
	if !strings.HasPrefix(url, prefix) || !strings.HasSuffix(url, ".mp3") {
		t.Fatalf("unexpected URL %q", url)
	}

	filename := strings.TrimPrefix(url, prefix)
	if _, err := strconv.ParseInt(strings.TrimSuffix(filename, ".mp3"), 10, 64); err != nil {
		t.Fatalf("artifact name %q is not timestamped", filename)
	}
	data, err := os.ReadFile(filepath.Join(root, "tts", "42", filename))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Fatalf("artifact content = %q", data)
	}
	if free.calls != 1 {
		t.Fatalf("engine calls = %d, want 1", free.calls)
	}
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	svc, _ := newTestService(t, map[string]Engine{
		EngineGoogleTrans: &fakeEngine{name: EngineGoogleTrans, audio: []byte("x")},
	})

	_, err := svc.Synthesize(context.Background(), "hi", "no-such-voice", 1, allowAll())
	if !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("err = %v, want ErrUnknownVoice", err)
	}
}

func TestSynthesizeTariffFallsBackToFreeVoice(t *testing.T) {
	free := &fakeEngine{name: EngineGoogleTrans, audio: []byte("free")}
	neural := &fakeEngine{name: EngineNeural, audio: []byte("neural")}
	svc, _ := newTestService(t, map[string]Engine{
		EngineGoogleTrans: free,
		EngineNeural:      neural,
	})

	url, err := svc.Synthesize(context.Background(), "hi", "neural-aria", 7, freeOnly())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if url == "" {
		t.Fatal("empty URL")
	}
	if neural.calls != 0 {
		t.Fatalf("neural engine called %d times for free-only tariff", neural.calls)
	}
	if free.calls != 1 {
		t.Fatalf("free engine calls = %d, want 1", free.calls)
	}
}

func TestSynthesizeEngineFailureFallsBack(t *testing.T) {
	free := &fakeEngine{name: EngineGoogleTrans, audio: []byte("free")}
	neural := &fakeEngine{name: EngineNeural, err: errors.New("upstream 500")}
	svc, _ := newTestService(t, map[string]Engine{
		EngineGoogleTrans: free,
		EngineNeural:      neural,
	})

	url, err := svc.Synthesize(context.Background(), "hi", "neural-aria", 7, allowAll())
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if url == "" {
		t.Fatal("empty URL")
	}
	if neural.calls != 1 || free.calls != 1 {
		t.Fatalf("calls neural=%d free=%d, want 1/1", neural.calls, free.calls)
	}
}

func TestSynthesizeFreeEngineFailureIsUnavailable(t *testing.T) {
	free := &fakeEngine{name: EngineGoogleTrans, err: errors.New("boom")}
	svc, _ := newTestService(t, map[string]Engine{EngineGoogleTrans: free})

	_, err := svc.Synthesize(context.Background(), "hi", "gtts-en", 1, allowAll())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestSoundExists(t *testing.T) {
	svc, root := newTestService(t, map[string]Engine{})

	dir := filepath.Join(root, "sounds", "9")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "airhorn.mp3"), []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}

	if !svc.SoundExists(9, "airhorn.mp3") {
		t.Fatal("expected airhorn.mp3 to exist")
	}
	if svc.SoundExists(9, "missing.mp3") {
		t.Fatal("missing.mp3 reported as existing")
	}
	if svc.SoundExists(9, "../9/airhorn.mp3") {
		t.Fatal("path traversal accepted")
	}
	if svc.SoundExists(9, "") {
		t.Fatal("empty filename accepted")
	}
}

func TestSoundURL(t *testing.T) {
	svc, _ := newTestService(t, map[string]Engine{})
	got := svc.SoundURL(3, "bell.mp3")
	want := "http://example.test/static/sounds/3/bell.mp3"
	if got != want {
		t.Fatalf("SoundURL = %q, want %q", got, want)
	}
}

func TestCatalogLookup(t *testing.T) {
	c := NewCatalog()

	v, err := c.Lookup("gtts-en")
	if err != nil {
		t.Fatalf("Lookup gtts-en: %v", err)
	}
	if v.Engine != EngineGoogleTrans || v.Heavy {
		t.Fatalf("unexpected voice %+v", v)
	}

	v, err = c.Lookup("neural-aria")
	if err != nil {
		t.Fatalf("Lookup neural-aria: %v", err)
	}
	if v.Engine != EngineNeural || !v.Heavy {
		t.Fatalf("unexpected voice %+v", v)
	}

	if _, err := c.Lookup("bogus"); !errors.Is(err, ErrUnknownVoice) {
		t.Fatalf("err = %v, want ErrUnknownVoice", err)
	}
}
