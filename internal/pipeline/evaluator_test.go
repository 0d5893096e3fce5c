// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/streamglass/streamglass/internal/models"
)

type fakeTTS struct {
	url   string
	err   error
	texts []string
}

func (f *fakeTTS) Synthesize(_ context.Context, text, _ string) (string, error) {
	f.texts = append(f.texts, text)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func newTestEvaluator(rules []models.Rule, settings models.UserSettings, tts *fakeTTS) *Evaluator {
	f, _ := newTestFilter(false)
	return &Evaluator{
		UserID:    1,
		Rules:     rules,
		Settings:  settings,
		Filter:    f,
		TTS:       tts,
		MediaBase: "http://media.test",
	}
}

func TestPlaySoundRule(t *testing.T) {
	rules := []models.Rule{{
		ID: 1, UserID: 1, EventKind: models.EventGift,
		ConditionKey: models.CondGiftID, ConditionValue: "5655",
		Enabled: true, Action: models.ActionPlaySound, SoundFilename: "airhorn.mp3",
	}}
	e := newTestEvaluator(rules, models.UserSettings{}, nil)

	d := e.Evaluate(context.Background(), gift("bob", "5655", 1, false, false))
	if d.Kind != EmitWithSound {
		t.Fatalf("kind = %v, want EmitWithSound", d.Kind)
	}
	if want := "http://media.test/static/sounds/1/airhorn.mp3"; d.SoundURL != want {
		t.Fatalf("SoundURL = %q, want %q", d.SoundURL, want)
	}

	d = e.Evaluate(context.Background(), gift("bob", "9999", 1, false, false))
	if d.Kind != EmitOnly || d.SoundURL != "" {
		t.Fatalf("non-matching gift decision = %+v", d)
	}
}

func TestSpeakRuleSubstitutesAndSanitizes(t *testing.T) {
	tts := &fakeTTS{url: "http://media.test/static/tts/1/1.mp3"}
	rules := []models.Rule{{
		ID: 1, UserID: 1, EventKind: models.EventFollow,
		ConditionKey: models.CondAlways, Enabled: true,
		Action: models.ActionSpeak, TextTemplate: "{user} followed \U0001F525",
	}}
	e := newTestEvaluator(rules, models.UserSettings{VoiceID: "gtts-en"}, tts)

	d := e.Evaluate(context.Background(), models.NewFollow("alice"))
	if d.Kind != EmitWithSpeech || d.TTSURL != tts.url {
		t.Fatalf("decision = %+v", d)
	}
	if len(tts.texts) != 1 || tts.texts[0] != "alice followed" {
		t.Fatalf("synthesized %q", tts.texts)
	}
}

func TestSpeakFailureDegradesToEmitOnly(t *testing.T) {
	tts := &fakeTTS{err: errors.New("engine down")}
	rules := []models.Rule{{
		ID: 1, UserID: 1, EventKind: models.EventChat,
		ConditionKey: models.CondAlways, Enabled: true,
		Action: models.ActionSpeak,
	}}
	e := newTestEvaluator(rules, models.UserSettings{}, tts)

	d := e.Evaluate(context.Background(), models.NewChat("alice", "hi"))
	if d.Kind != EmitOnly || d.TTSURL != "" {
		t.Fatalf("decision = %+v", d)
	}
}

func TestPriorityOrderWinsAndDisabledSkipped(t *testing.T) {
	rules := []models.Rule{
		{ID: 3, UserID: 1, EventKind: models.EventGift, ConditionKey: models.CondAlways,
			Enabled: false, Priority: 100, Action: models.ActionPlaySound, SoundFilename: "off.mp3"},
		{ID: 1, UserID: 1, EventKind: models.EventGift, ConditionKey: models.CondAlways,
			Enabled: true, Priority: 10, Action: models.ActionPlaySound, SoundFilename: "high.mp3"},
		{ID: 2, UserID: 1, EventKind: models.EventGift, ConditionKey: models.CondAlways,
			Enabled: true, Priority: 1, Action: models.ActionPlaySound, SoundFilename: "low.mp3"},
	}
	e := newTestEvaluator(rules, models.UserSettings{}, nil)

	d := e.Evaluate(context.Background(), gift("bob", "5655", 1, false, false))
	if d.SoundURL != "http://media.test/static/sounds/1/high.mp3" {
		t.Fatalf("SoundURL = %q", d.SoundURL)
	}
}

func TestMissingSoundFileSkipsToNextRule(t *testing.T) {
	rules := []models.Rule{
		{ID: 1, UserID: 1, EventKind: models.EventGift, ConditionKey: models.CondAlways,
			Enabled: true, Priority: 10, OncePerSession: true,
			Action: models.ActionPlaySound, SoundFilename: "deleted.mp3"},
		{ID: 2, UserID: 1, EventKind: models.EventGift, ConditionKey: models.CondAlways,
			Enabled: true, Priority: 1, Action: models.ActionPlaySound, SoundFilename: "backup.mp3"},
	}
	var fired []int64
	owned := map[string]bool{"backup.mp3": true}
	e := newTestEvaluator(rules, models.UserSettings{}, nil)
	e.SoundExists = func(filename string) bool { return owned[filename] }
	e.RecordExecution = func(id int64) { fired = append(fired, id) }

	d := e.Evaluate(context.Background(), gift("bob", "5655", 1, false, false))
	if d.Kind != EmitWithSound {
		t.Fatalf("decision = %+v", d)
	}
	if want := "http://media.test/static/sounds/1/backup.mp3"; d.SoundURL != want {
		t.Fatalf("SoundURL = %q, want %q", d.SoundURL, want)
	}
	if len(fired) != 1 || fired[0] != 2 {
		t.Fatalf("fired = %v, want [2]", fired)
	}

	// The skip happened before filter bookkeeping: once the file is back,
	// the higher rule's once-per-session budget is still unspent.
	owned["deleted.mp3"] = true
	d = e.Evaluate(context.Background(), gift("bob", "5655", 1, false, false))
	if want := "http://media.test/static/sounds/1/deleted.mp3"; d.SoundURL != want {
		t.Fatalf("SoundURL = %q, want %q", d.SoundURL, want)
	}
}

func TestComboCountGate(t *testing.T) {
	rules := []models.Rule{{
		ID: 1, UserID: 1, EventKind: models.EventGift,
		ConditionKey: models.CondAlways, Enabled: true, ComboCount: 5,
		Action: models.ActionPlaySound, SoundFilename: "big.mp3",
	}}
	e := newTestEvaluator(rules, models.UserSettings{}, nil)

	if d := e.Evaluate(context.Background(), gift("bob", "5655", 3, false, false)); d.Kind != EmitOnly {
		t.Fatalf("count below combo fired: %+v", d)
	}
	if d := e.Evaluate(context.Background(), gift("bob", "5655", 5, false, false)); d.Kind != EmitWithSound {
		t.Fatalf("count at combo did not fire: %+v", d)
	}
}

func TestConditionMatching(t *testing.T) {
	tests := []struct {
		name  string
		key   models.ConditionKey
		value string
		ev    models.Event
		match bool
	}{
		{"gift_id exact", models.CondGiftID, "5655", gift("b", "5655", 1, false, false), true},
		{"gift_id mismatch", models.CondGiftID, "5655", gift("b", "1", 1, false, false), false},
		{"gift_name case-insensitive", models.CondGiftName, "rose", gift("b", "1", 1, false, false), true},
		{"username lowered", models.CondUsername, "bigspender", models.NewChat("BigSpender", "x"), true},
		{"username mismatch", models.CondUsername, "bigspender", models.NewChat("other", "x"), false},
		{"message substring", models.CondMessageContains, "hello", models.NewChat("a", "well HELLO there"), true},
		{"message no substring", models.CondMessageContains, "hello", models.NewChat("a", "hi"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := models.Rule{ConditionKey: tt.key, ConditionValue: tt.value}
			if got := conditionMatches(r, tt.ev); got != tt.match {
				t.Fatalf("match = %v, want %v", got, tt.match)
			}
		})
	}
}

func TestChatFallbackTTS(t *testing.T) {
	tts := &fakeTTS{url: "http://media.test/static/tts/1/2.mp3"}

	e := newTestEvaluator(nil, models.UserSettings{TTSEnabled: true, VoiceID: "gtts-en"}, tts)
	d := e.Evaluate(context.Background(), models.NewChat("alice", "hello \U0001F44B"))
	if d.Kind != EmitWithSpeech {
		t.Fatalf("decision = %+v", d)
	}
	if tts.texts[0] != "hello" {
		t.Fatalf("synthesized %q", tts.texts[0])
	}

	e = newTestEvaluator(nil, models.UserSettings{TTSEnabled: false}, tts)
	if d := e.Evaluate(context.Background(), models.NewChat("alice", "hello")); d.Kind != EmitOnly {
		t.Fatalf("tts disabled but decision = %+v", d)
	}
}

func TestGiftDefaultSoundFallback(t *testing.T) {
	e := newTestEvaluator(nil, models.UserSettings{GiftSoundsEnabled: true}, nil)
	e.GiftSound = func(_ context.Context, giftID string) (string, bool) {
		if giftID == "5655" {
			return "http://media.test/static/sounds/default/rose.mp3", true
		}
		return "", false
	}

	d := e.Evaluate(context.Background(), gift("bob", "5655", 1, false, false))
	if d.Kind != EmitWithSound || d.SoundURL == "" {
		t.Fatalf("decision = %+v", d)
	}
	if d := e.Evaluate(context.Background(), gift("bob", "2", 1, false, false)); d.Kind != EmitOnly {
		t.Fatalf("unknown gift decision = %+v", d)
	}
}

func TestFirstMessageTriggersViewerRules(t *testing.T) {
	tts := &fakeTTS{url: "http://media.test/static/tts/1/3.mp3"}
	rules := []models.Rule{{
		ID: 1, UserID: 1, EventKind: models.RuleViewerFirstMessage,
		ConditionKey: models.CondAlways, Enabled: true,
		Action: models.ActionSpeak, TextTemplate: "welcome {user}",
	}}
	e := newTestEvaluator(rules, models.UserSettings{}, tts)

	d := e.Evaluate(context.Background(), models.NewChat("alice", "first!"))
	if !d.FirstMessage {
		t.Fatal("first chat not flagged")
	}
	if d.Kind != EmitWithSpeech {
		t.Fatalf("decision = %+v", d)
	}
	if tts.texts[0] != "welcome alice" {
		t.Fatalf("synthesized %q", tts.texts[0])
	}

	d = e.Evaluate(context.Background(), models.NewChat("alice", "second"))
	if d.FirstMessage {
		t.Fatal("second chat flagged as first")
	}
	if d.Kind != EmitOnly {
		t.Fatalf("decision = %+v", d)
	}
}

func TestJoinMarksSeenBeforeChat(t *testing.T) {
	e := newTestEvaluator(nil, models.UserSettings{}, nil)

	if d := e.Evaluate(context.Background(), models.NewJoin("alice")); d.FirstMessage {
		t.Fatal("join flagged as first message")
	}
	if d := e.Evaluate(context.Background(), models.NewChat("alice", "hi")); d.FirstMessage {
		t.Fatal("chat after observed join flagged as first message")
	}
}

func TestExecutionRecorded(t *testing.T) {
	var fired []int64
	f, _ := newTestFilter(false)
	e := &Evaluator{
		UserID: 1,
		Rules: []models.Rule{{
			ID: 42, UserID: 1, EventKind: models.EventLike,
			ConditionKey: models.CondAlways, Enabled: true,
			Action: models.ActionSpeak, TextTemplate: "likes!",
		}},
		Filter:          f,
		TTS:             &fakeTTS{url: "u"},
		MediaBase:       "http://media.test",
		RecordExecution: func(id int64) { fired = append(fired, id) },
	}

	e.Evaluate(context.Background(), models.NewLike("bob", 10))
	if len(fired) != 1 || fired[0] != 42 {
		t.Fatalf("fired = %v", fired)
	}
}
