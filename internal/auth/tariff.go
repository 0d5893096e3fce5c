// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package auth

import (
	"context"

	"github.com/streamglass/streamglass/internal/models"
)

// TariffResolver maps a user id to the tariff descriptor governing platform
// access and TTS engine entitlement. The production resolver calls the
// billing service; the pipeline only consumes the snapshot.
type TariffResolver interface {
	Resolve(ctx context.Context, userID int64) (models.TariffSnapshot, error)
}

// StaticTariff resolves every user to one fixed snapshot. Used as the
// default when no billing endpoint is configured, and by tests.
type StaticTariff struct {
	Snapshot models.TariffSnapshot
}

// Resolve implements TariffResolver.
func (s StaticTariff) Resolve(_ context.Context, _ int64) (models.TariffSnapshot, error) {
	return s.Snapshot, nil
}

// DefaultTariff permits both platforms and the free TTS engine only.
func DefaultTariff() models.TariffSnapshot {
	return models.TariffSnapshot{
		AllowedPlatforms:   []models.Platform{models.PlatformMobile, models.PlatformDesktop},
		AllowedTTSEngines:  []string{"googletrans"},
		MaxStreamerHandles: 1,
	}
}
