// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package database

import (
	"context"
	"fmt"
)

// schemaStatements are idempotent; New applies them on every start.
var schemaStatements = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_rule_id START 1`,

	`CREATE TABLE IF NOT EXISTS rules (
		id              BIGINT PRIMARY KEY DEFAULT nextval('seq_rule_id'),
		user_id         BIGINT NOT NULL,
		event_kind      VARCHAR NOT NULL,
		condition_key   VARCHAR NOT NULL DEFAULT 'none',
		condition_value VARCHAR NOT NULL DEFAULT '',
		enabled         BOOLEAN NOT NULL DEFAULT true,
		priority        INTEGER NOT NULL DEFAULT 0,
		combo_count     INTEGER NOT NULL DEFAULT 0,
		action          VARCHAR NOT NULL,
		sound_filename  VARCHAR,
		text_template   VARCHAR,
		cooldown_seconds INTEGER NOT NULL DEFAULT 0,
		once_per_session BOOLEAN NOT NULL DEFAULT false,
		executed_count  BIGINT NOT NULL DEFAULT 0,
		created_at      TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rules_user ON rules (user_id)`,

	`CREATE TABLE IF NOT EXISTS user_sounds (
		user_id  BIGINT NOT NULL,
		filename VARCHAR NOT NULL,
		uploaded_at TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (user_id, filename)
	)`,

	`CREATE TABLE IF NOT EXISTS user_settings (
		user_id             BIGINT PRIMARY KEY,
		tts_enabled         BOOLEAN NOT NULL DEFAULT false,
		voice_id            VARCHAR NOT NULL DEFAULT '',
		gift_sounds_enabled BOOLEAN NOT NULL DEFAULT false,
		auto_reconnect      BOOLEAN NOT NULL DEFAULT true
	)`,

	`CREATE TABLE IF NOT EXISTS gift_catalog (
		gift_id       VARCHAR PRIMARY KEY,
		name          VARCHAR NOT NULL,
		diamonds      INTEGER NOT NULL DEFAULT 0,
		default_sound VARCHAR
	)`,

	`CREATE TABLE IF NOT EXISTS gift_events (
		streamer_handle VARCHAR NOT NULL,
		donor           VARCHAR NOT NULL,
		gift_id         VARCHAR,
		gift_name       VARCHAR,
		count           INTEGER NOT NULL,
		coins           INTEGER NOT NULL,
		day             VARCHAR NOT NULL,
		created_at      TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
	`CREATE INDEX IF NOT EXISTS idx_gift_events_handle_day ON gift_events (streamer_handle, day)`,
	`CREATE INDEX IF NOT EXISTS idx_gift_events_donor ON gift_events (donor)`,

	`CREATE TABLE IF NOT EXISTS donor_stats (
		streamer_handle VARCHAR NOT NULL,
		donor           VARCHAR NOT NULL,
		total_coins     BIGINT NOT NULL DEFAULT 0,
		total_gifts     BIGINT NOT NULL DEFAULT 0,
		today_date      VARCHAR NOT NULL,
		today_coins     BIGINT NOT NULL DEFAULT 0,
		yesterday_date  VARCHAR NOT NULL DEFAULT '',
		yesterday_coins BIGINT NOT NULL DEFAULT 0,
		last_7d_anchor  VARCHAR NOT NULL,
		last_7d_coins   BIGINT NOT NULL DEFAULT 0,
		last_30d_anchor VARCHAR NOT NULL,
		last_30d_coins  BIGINT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMP NOT NULL DEFAULT current_timestamp,
		UNIQUE (streamer_handle, donor)
	)`,

	`CREATE TABLE IF NOT EXISTS streamer_stats (
		streamer_handle VARCHAR NOT NULL UNIQUE,
		total_coins     BIGINT NOT NULL DEFAULT 0,
		total_gifts     BIGINT NOT NULL DEFAULT 0,
		today_date      VARCHAR NOT NULL,
		today_coins     BIGINT NOT NULL DEFAULT 0,
		yesterday_date  VARCHAR NOT NULL DEFAULT '',
		yesterday_coins BIGINT NOT NULL DEFAULT 0,
		last_7d_anchor  VARCHAR NOT NULL,
		last_7d_coins   BIGINT NOT NULL DEFAULT 0,
		last_30d_anchor VARCHAR NOT NULL,
		last_30d_coins  BIGINT NOT NULL DEFAULT 0,
		updated_at      TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`,
}

func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}
