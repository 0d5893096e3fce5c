// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package models

// Platform identifies the client flavor reported at channel open.
type Platform string

const (
	PlatformMobile  Platform = "mobile"
	PlatformDesktop Platform = "desktop"
)

// TariffSnapshot is the tariff descriptor resolved once at session start.
// Tariff resolution itself is an external collaborator; the pipeline only
// consumes the snapshot.
type TariffSnapshot struct {
	AllowedPlatforms   []Platform `json:"allowed_platforms"`
	AllowedTTSEngines  []string   `json:"allowed_tts_engines"`
	MaxStreamerHandles int        `json:"max_streamer_handles"`
	LockHandleAfterSet bool       `json:"lock_handle_after_set"`
}

// PlatformAllowed reports whether the tariff permits the given platform.
func (t TariffSnapshot) PlatformAllowed(p Platform) bool {
	for _, allowed := range t.AllowedPlatforms {
		if allowed == p {
			return true
		}
	}
	return false
}

// EngineAllowed reports whether the tariff permits the given TTS engine.
func (t TariffSnapshot) EngineAllowed(engine string) bool {
	for _, allowed := range t.AllowedTTSEngines {
		if allowed == engine {
			return true
		}
	}
	return false
}
