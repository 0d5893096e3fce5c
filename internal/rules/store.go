// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

// Package rules persists user trigger rules and per-user settings, and
// serves immutable rule snapshots to the session evaluator.
package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/streamglass/streamglass/internal/database"
	"github.com/streamglass/streamglass/internal/logging"
	"github.com/streamglass/streamglass/internal/models"
)

var (
	ErrNotFound    = errors.New("rule not found")
	ErrInvalidRule = errors.New("invalid rule")
)

// SoundChecker reports whether a user owns an uploaded sound file. The TTS
// service satisfies it.
type SoundChecker interface {
	SoundExists(userID int64, filename string) bool
}

// Store is the DuckDB-backed rule and settings store. Executed-count
// increments are batched in memory and flushed periodically and on session
// stop.
type Store struct {
	db     *database.DB
	sounds SoundChecker

	mu      sync.Mutex
	pending map[int64]int64
}

func NewStore(db *database.DB, sounds SoundChecker) *Store {
	return &Store{
		db:      db,
		sounds:  sounds,
		pending: make(map[int64]int64),
	}
}

var validEventKinds = map[models.EventKind]bool{
	models.EventChat:              true,
	models.EventGift:              true,
	models.EventLike:              true,
	models.EventJoin:              true,
	models.EventFollow:            true,
	models.EventSubscribe:         true,
	models.EventShare:             true,
	models.RuleViewerFirstMessage: true,
}

var validConditionKeys = map[models.ConditionKey]bool{
	models.CondNone:            true,
	models.CondAlways:          true,
	models.CondGiftID:          true,
	models.CondGiftName:        true,
	models.CondUsername:        true,
	models.CondMessageContains: true,
}

// validate checks a rule before write. Chat rules always speak; play_sound
// rules must reference a sound the user owns.
func (s *Store) validate(r *models.Rule) error {
	if r.UserID <= 0 {
		return fmt.Errorf("%w: user_id required", ErrInvalidRule)
	}
	if !validEventKinds[r.EventKind] {
		return fmt.Errorf("%w: unsupported event kind %q", ErrInvalidRule, r.EventKind)
	}
	if r.ConditionKey == "" {
		r.ConditionKey = models.CondNone
	}
	if !validConditionKeys[r.ConditionKey] {
		return fmt.Errorf("%w: unsupported condition key %q", ErrInvalidRule, r.ConditionKey)
	}
	if r.ConditionKey != models.CondNone && r.ConditionKey != models.CondAlways && r.ConditionValue == "" {
		return fmt.Errorf("%w: condition %q requires a value", ErrInvalidRule, r.ConditionKey)
	}

	switch r.Action {
	case models.ActionPlaySound:
		if r.EventKind == models.EventChat {
			return fmt.Errorf("%w: chat rules must use the speak action", ErrInvalidRule)
		}
		if r.SoundFilename == "" {
			return fmt.Errorf("%w: play_sound requires a sound filename", ErrInvalidRule)
		}
		if s.sounds != nil && !s.sounds.SoundExists(r.UserID, r.SoundFilename) {
			return fmt.Errorf("%w: sound %q not owned by user", ErrInvalidRule, r.SoundFilename)
		}
	case models.ActionSpeak:
	default:
		return fmt.Errorf("%w: unsupported action %q", ErrInvalidRule, r.Action)
	}

	if r.ComboCount < 0 {
		return fmt.Errorf("%w: combo_count must not be negative", ErrInvalidRule)
	}
	if r.ComboCount > 0 && r.EventKind != models.EventGift {
		return fmt.Errorf("%w: combo_count only applies to gift rules", ErrInvalidRule)
	}
	if r.CooldownSeconds < 0 {
		return fmt.Errorf("%w: cooldown must not be negative", ErrInvalidRule)
	}
	return nil
}

// canonicalize lowercases match values and resolves gift_name conditions to
// gift_id when the catalog knows the name. Matching at evaluation time is
// then a plain comparison.
func (s *Store) canonicalize(ctx context.Context, r *models.Rule) {
	switch r.ConditionKey {
	case models.CondUsername, models.CondMessageContains:
		r.ConditionValue = strings.ToLower(strings.TrimSpace(r.ConditionValue))
	case models.CondGiftName:
		name := strings.ToLower(strings.TrimSpace(r.ConditionValue))
		r.ConditionValue = name
		if gift, err := s.GiftByName(ctx, name); err == nil {
			r.ConditionKey = models.CondGiftID
			r.ConditionValue = gift.GiftID
		}
	case models.CondGiftID:
		r.ConditionValue = strings.TrimSpace(r.ConditionValue)
	}
}

// Create inserts the rule and fills in its assigned ID and creation time.
func (s *Store) Create(ctx context.Context, r *models.Rule) error {
	if err := s.validate(r); err != nil {
		return err
	}
	s.canonicalize(ctx, r)

	row := s.db.Conn().QueryRowContext(ctx, `
		INSERT INTO rules (
			user_id, event_kind, condition_key, condition_value, enabled,
			priority, combo_count, action, sound_filename, text_template,
			cooldown_seconds, once_per_session
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id, created_at`,
		r.UserID, string(r.EventKind), string(r.ConditionKey), r.ConditionValue,
		r.Enabled, r.Priority, r.ComboCount, string(r.Action),
		nullString(r.SoundFilename), nullString(r.TextTemplate),
		r.CooldownSeconds, r.OncePerSession,
	)
	if err := row.Scan(&r.ID, &r.CreatedAt); err != nil {
		return fmt.Errorf("insert rule: %w", err)
	}
	return nil
}

// Update rewrites all mutable columns of an existing rule owned by the same
// user.
func (s *Store) Update(ctx context.Context, r *models.Rule) error {
	if r.ID <= 0 {
		return fmt.Errorf("%w: missing id", ErrInvalidRule)
	}
	if err := s.validate(r); err != nil {
		return err
	}
	s.canonicalize(ctx, r)

	res, err := s.db.Conn().ExecContext(ctx, `
		UPDATE rules SET
			event_kind = ?, condition_key = ?, condition_value = ?,
			enabled = ?, priority = ?, combo_count = ?, action = ?,
			sound_filename = ?, text_template = ?, cooldown_seconds = ?,
			once_per_session = ?
		WHERE id = ? AND user_id = ?`,
		string(r.EventKind), string(r.ConditionKey), r.ConditionValue,
		r.Enabled, r.Priority, r.ComboCount, string(r.Action),
		nullString(r.SoundFilename), nullString(r.TextTemplate),
		r.CooldownSeconds, r.OncePerSession,
		r.ID, r.UserID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a rule owned by userID.
func (s *Store) Delete(ctx context.Context, userID, ruleID int64) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`DELETE FROM rules WHERE id = ? AND user_id = ?`, ruleID, userID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	s.mu.Lock()
	delete(s.pending, ruleID)
	s.mu.Unlock()
	return nil
}

// Get returns a single rule owned by userID.
func (s *Store) Get(ctx context.Context, userID, ruleID int64) (models.Rule, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		ruleSelect+` WHERE id = ? AND user_id = ?`, ruleID, userID)
	if err != nil {
		return models.Rule{}, fmt.Errorf("query rule: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return models.Rule{}, fmt.Errorf("query rule: %w", err)
		}
		return models.Rule{}, ErrNotFound
	}
	return scanRule(rows)
}

const ruleSelect = `
	SELECT id, user_id, event_kind, condition_key, condition_value, enabled,
	       priority, combo_count, action, sound_filename, text_template,
	       cooldown_seconds, once_per_session, executed_count, created_at
	FROM rules`

// ListForUser returns the user's rules ordered by priority descending, then
// creation time. Session start takes this as its immutable snapshot.
func (s *Store) ListForUser(ctx context.Context, userID int64) ([]models.Rule, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		ruleSelect+` WHERE user_id = ? ORDER BY priority DESC, created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var out []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return out, nil
}

func scanRule(rows *sql.Rows) (models.Rule, error) {
	var (
		r             models.Rule
		kind, cond    string
		action        string
		sound, tmpl   sql.NullString
	)
	err := rows.Scan(&r.ID, &r.UserID, &kind, &cond, &r.ConditionValue,
		&r.Enabled, &r.Priority, &r.ComboCount, &action, &sound, &tmpl,
		&r.CooldownSeconds, &r.OncePerSession, &r.ExecutedCount, &r.CreatedAt)
	if err != nil {
		return models.Rule{}, fmt.Errorf("scan rule: %w", err)
	}
	r.EventKind = models.EventKind(kind)
	r.ConditionKey = models.ConditionKey(cond)
	r.Action = models.RuleAction(action)
	r.SoundFilename = sound.String
	r.TextTemplate = tmpl.String
	return r, nil
}

// RecordExecution notes that a rule fired. The increment is buffered in
// memory until the next flush.
func (s *Store) RecordExecution(ruleID int64) {
	s.mu.Lock()
	s.pending[ruleID]++
	s.mu.Unlock()
}

// FlushExecCounts writes buffered executed-count increments in one
// transaction. Increments are re-queued on failure.
func (s *Store) FlushExecCounts(ctx context.Context) error {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.pending
	s.pending = make(map[int64]int64)
	s.mu.Unlock()

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		for id, n := range batch {
			if _, err := tx.ExecContext(ctx,
				`UPDATE rules SET executed_count = executed_count + ? WHERE id = ?`, n, id); err != nil {
				return fmt.Errorf("bump executed_count for rule %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		s.mu.Lock()
		for id, n := range batch {
			s.pending[id] += n
		}
		s.mu.Unlock()
		return err
	}
	logging.Debug().Int("rules", len(batch)).Msg("executed counts flushed")
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
