// Footfall - Pedestrian Foot-Traffic Analytics and Business Location Suggestions
// Copyright 2026 CityPulse contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/citypulse/footfall

package suggest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/citypulse/footfall/internal/config"
)

func TestNewGeminiClientNilWithoutKey(t *testing.T) {
	c := NewGeminiClient(&config.GeminiConfig{APIKey: ""})
	if c != nil {
		t.Error("missing API key should disable the client entirely")
	}
}

func TestGeminiGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "models/gemini-2.5-flash:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"parts": [{"text": "[{\"grid_key\": \"x\"}]"}]}}]
		}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(&config.GeminiConfig{
		APIKey:  "test-key",
		Model:   "gemini-2.5-flash",
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
	})

	text, err := c.Generate(context.Background(), "rank these cells")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if text != `[{"grid_key": "x"}]` {
		t.Errorf("text = %q", text)
	}
}

func TestGeminiGenerateNoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(&config.GeminiConfig{
		APIKey: "k", Model: "m", BaseURL: srv.URL, Timeout: 5 * time.Second,
	})
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Error("empty candidate list must be an error")
	}
}

func TestGeminiGenerateUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGeminiClient(&config.GeminiConfig{
		APIKey: "k", Model: "m", BaseURL: srv.URL, Timeout: 5 * time.Second,
	})
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Error("upstream 429 must surface as an error")
	}
}
