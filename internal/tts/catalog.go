// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package tts synthesizes short speech artifacts for chat and templated
// text. Engine drivers sit behind circuit breakers and a process-wide rate
// limiter; artifacts land under media_root/tts/<user_id>/ with a bounded
// lifetime enforced by the collector.
package tts

import (
	"errors"
	"fmt"
)

// ErrUnknownVoice is returned for voice ids absent from the catalog.
var ErrUnknownVoice = errors.New("unknown voice id")

// ErrUnavailable is returned when every eligible engine failed. Callers emit
// the event without audio; synthesis failure never fails a session.
var ErrUnavailable = errors.New("tts unavailable")

// Voice is one catalog entry mapping a public voice id to an engine and its
// native voice identifier.
type Voice struct {
	ID       string
	Engine   string
	NativeID string
	Lang     string
	Slow     bool

	// Heavy engines get the longer per-request timeout.
	Heavy bool
}

// Engine names used by the catalog and tariff gates.
const (
	EngineGoogleTrans = "googletrans"
	EngineNeural      = "neural"
)

// defaultCatalog is the static voice catalog. Engine selection holds no
// user-visible state; the catalog is fixed at startup.
var defaultCatalog = map[string]Voice{
	"gtts-en":    {ID: "gtts-en", Engine: EngineGoogleTrans, NativeID: "en", Lang: "en"},
	"gtts-en-uk": {ID: "gtts-en-uk", Engine: EngineGoogleTrans, NativeID: "en", Lang: "en-GB"},
	"gtts-ru":    {ID: "gtts-ru", Engine: EngineGoogleTrans, NativeID: "ru", Lang: "ru"},
	"gtts-es":    {ID: "gtts-es", Engine: EngineGoogleTrans, NativeID: "es", Lang: "es"},
	"gtts-de":    {ID: "gtts-de", Engine: EngineGoogleTrans, NativeID: "de", Lang: "de"},
	"gtts-slow":  {ID: "gtts-slow", Engine: EngineGoogleTrans, NativeID: "en", Lang: "en", Slow: true},

	"neural-aria":  {ID: "neural-aria", Engine: EngineNeural, NativeID: "aria", Lang: "en", Heavy: true},
	"neural-guy":   {ID: "neural-guy", Engine: EngineNeural, NativeID: "guy", Lang: "en", Heavy: true},
	"neural-dasha": {ID: "neural-dasha", Engine: EngineNeural, NativeID: "dasha", Lang: "ru", Heavy: true},
}

// Catalog resolves public voice ids.
type Catalog struct {
	voices map[string]Voice
}

// NewCatalog returns the built-in catalog.
func NewCatalog() *Catalog {
	return &Catalog{voices: defaultCatalog}
}

// Lookup resolves a voice id.
func (c *Catalog) Lookup(voiceID string) (Voice, error) {
	v, ok := c.voices[voiceID]
	if !ok {
		return Voice{}, fmt.Errorf("%w: %q", ErrUnknownVoice, voiceID)
	}
	return v, nil
}
