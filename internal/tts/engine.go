// Streamglass - Live-Stream Alert Pipeline and TTS Gateway
// Copyright 2026 Streamglass contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/streamglass/streamglass

package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
)

// Engine synthesizes speech bytes for (text, native voice id). Errors are
// retryable from the caller's perspective; permanent engine outage is the
// circuit breaker's concern.
type Engine interface {
	Name() string
	Speak(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// googleTransEngine fetches MP3 audio from the translate TTS endpoint.
// It is the free fallback engine available on every tariff.
type googleTransEngine struct {
	client  *http.Client
	baseURL string
}

const googleTransURL = "https://translate.google.com/translate_tts"

// newGoogleTransEngine builds the free engine. An empty baseURL uses the
// public endpoint.
func newGoogleTransEngine(client *http.Client, baseURL string) *googleTransEngine {
	if baseURL == "" {
		baseURL = googleTransURL
	}
	return &googleTransEngine{client: client, baseURL: baseURL}
}

func (e *googleTransEngine) Name() string { return EngineGoogleTrans }

func (e *googleTransEngine) Speak(ctx context.Context, text string, voice Voice) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", voice.NativeID)
	if voice.Slow {
		q.Set("ttsspeed", "0.3")
	}
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googletrans request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("googletrans status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("googletrans read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("googletrans returned empty audio")
	}
	return data, nil
}

// neuralEngine calls a premium HTTP synthesis endpoint with a JSON body.
type neuralEngine struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

func newNeuralEngine(client *http.Client, endpoint, apiKey string) *neuralEngine {
	return &neuralEngine{client: client, endpoint: endpoint, apiKey: apiKey}
}

func (e *neuralEngine) Name() string { return EngineNeural }

type neuralRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
	Lang  string `json:"lang,omitempty"`
}

func (e *neuralEngine) Speak(ctx context.Context, text string, voice Voice) ([]byte, error) {
	body, err := json.Marshal(neuralRequest{Text: text, Voice: voice.NativeID, Lang: voice.Lang})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("neural request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("neural status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("neural read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("neural returned empty audio")
	}
	return data, nil
}
