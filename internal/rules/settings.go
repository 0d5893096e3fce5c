// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/streamglass/streamglass/internal/models"
)

var ErrUnknownGift = errors.New("gift not in catalog")

// Settings returns the user's toggles, defaulting when no row exists.
func (s *Store) Settings(ctx context.Context, userID int64) (models.UserSettings, error) {
	set := models.UserSettings{UserID: userID, AutoReconnect: true}
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT tts_enabled, voice_id, gift_sounds_enabled, auto_reconnect
		FROM user_settings WHERE user_id = ?`, userID)
	err := row.Scan(&set.TTSEnabled, &set.VoiceID, &set.GiftSoundsEnabled, &set.AutoReconnect)
	if errors.Is(err, sql.ErrNoRows) {
		return set, nil
	}
	if err != nil {
		return set, fmt.Errorf("query user settings: %w", err)
	}
	return set, nil
}

// SaveSettings upserts the user's toggles.
func (s *Store) SaveSettings(ctx context.Context, set models.UserSettings) error {
	if set.UserID <= 0 {
		return fmt.Errorf("%w: user_id required", ErrInvalidRule)
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO user_settings (user_id, tts_enabled, voice_id, gift_sounds_enabled, auto_reconnect)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			tts_enabled = excluded.tts_enabled,
			voice_id = excluded.voice_id,
			gift_sounds_enabled = excluded.gift_sounds_enabled,
			auto_reconnect = excluded.auto_reconnect`,
		set.UserID, set.TTSEnabled, set.VoiceID, set.GiftSoundsEnabled, set.AutoReconnect)
	if err != nil {
		return fmt.Errorf("save user settings: %w", err)
	}
	return nil
}

// GiftByID looks up one catalog row.
func (s *Store) GiftByID(ctx context.Context, giftID string) (models.GiftInfo, error) {
	return s.giftQuery(ctx, `SELECT gift_id, name, diamonds, default_sound
		FROM gift_catalog WHERE gift_id = ?`, giftID)
}

// GiftByName looks up a catalog row by lowercased display name.
func (s *Store) GiftByName(ctx context.Context, name string) (models.GiftInfo, error) {
	return s.giftQuery(ctx, `SELECT gift_id, name, diamonds, default_sound
		FROM gift_catalog WHERE lower(name) = ?`, strings.ToLower(name))
}

func (s *Store) giftQuery(ctx context.Context, query string, arg any) (models.GiftInfo, error) {
	var (
		g     models.GiftInfo
		sound sql.NullString
	)
	row := s.db.Conn().QueryRowContext(ctx, query, arg)
	err := row.Scan(&g.GiftID, &g.Name, &g.Diamonds, &sound)
	if errors.Is(err, sql.ErrNoRows) {
		return g, ErrUnknownGift
	}
	if err != nil {
		return g, fmt.Errorf("query gift catalog: %w", err)
	}
	g.DefaultSound = sound.String
	return g, nil
}

// UpsertGift refreshes a catalog row. The upstream driver reports gift
// metadata on every gift event, so the catalog converges on its own.
func (s *Store) UpsertGift(ctx context.Context, g models.GiftInfo) error {
	if g.GiftID == "" {
		return fmt.Errorf("%w: gift_id required", ErrUnknownGift)
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO gift_catalog (gift_id, name, diamonds, default_sound)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (gift_id) DO UPDATE SET
			name = excluded.name,
			diamonds = excluded.diamonds,
			default_sound = coalesce(excluded.default_sound, gift_catalog.default_sound)`,
		g.GiftID, g.Name, g.Diamonds, nullString(g.DefaultSound))
	if err != nil {
		return fmt.Errorf("upsert gift: %w", err)
	}
	return nil
}

// RegisterSound records an uploaded sound filename for the user.
func (s *Store) RegisterSound(ctx context.Context, userID int64, filename string) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO user_sounds (user_id, filename) VALUES (?, ?)
		ON CONFLICT (user_id, filename) DO NOTHING`, userID, filename)
	if err != nil {
		return fmt.Errorf("register sound: %w", err)
	}
	return nil
}

// ListSounds returns the user's registered sound filenames.
func (s *Store) ListSounds(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT filename FROM user_sounds WHERE user_id = ? ORDER BY filename`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sounds: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan sound: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
