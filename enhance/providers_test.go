package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAIRequestShape(t *testing.T) {
	var gotAuth string
	var gotBody openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Write([]byte(openAIBody("ok")))
	}))
	defer srv.Close()

	p := &openAIProvider{http: srv.Client()}
	cfg := Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL}
	got, err := p.send(context.Background(), Request{SystemMessage: "sys", UserMessage: "usr"}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want bearer", gotAuth)
	}
	if len(gotBody.Messages) != 2 || gotBody.Messages[0].Role != "system" || gotBody.Messages[1].Role != "user" {
		t.Errorf("messages = %+v, want system then user", gotBody.Messages)
	}
	if gotBody.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", gotBody.Model)
	}
}

func TestGeminiRequestShape(t *testing.T) {
	var gotURL string
	var gotBody geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURL = r.URL.String()
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		resp, _ := json.Marshal(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": "answer"}}}},
			},
		})
		w.Write(resp)
	}))
	defer srv.Close()

	p := &geminiProvider{http: srv.Client()}
	cfg := Config{APIKey: "g-key", Model: "gemini-2.0-flash", BaseURL: srv.URL}
	got, err := p.send(context.Background(), Request{SystemMessage: "sys", UserMessage: "usr"}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "answer" {
		t.Errorf("got %q", got)
	}
	if !strings.Contains(gotURL, "/models/gemini-2.0-flash:generateContent") {
		t.Errorf("URL = %q, want model endpoint", gotURL)
	}
	if !strings.Contains(gotURL, "key=g-key") {
		t.Errorf("URL = %q, want API key in query string", gotURL)
	}
	// Ordered parts: system text first, then user text.
	parts := gotBody.Contents[0].Parts
	if len(parts) != 2 || parts[0].Text != "sys" || parts[1].Text != "usr" {
		t.Errorf("parts = %+v, want [sys usr]", parts)
	}
	if gotBody.GenerationConfig.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", gotBody.GenerationConfig.Temperature)
	}
}

func TestAnthropicRequestShape(t *testing.T) {
	var gotKey, gotVersion string
	var gotBody anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotVersion = r.Header.Get("anthropic-version")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		resp, _ := json.Marshal(map[string]any{
			"content": []map[string]any{{"text": "reply"}},
		})
		w.Write(resp)
	}))
	defer srv.Close()

	p := &anthropicProvider{http: srv.Client()}
	cfg := Config{APIKey: "a-key", Model: "claude-sonnet", BaseURL: srv.URL}
	got, err := p.send(context.Background(), Request{SystemMessage: "sys", UserMessage: "usr"}, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if got != "reply" {
		t.Errorf("got %q", got)
	}
	if gotKey != "a-key" {
		t.Errorf("x-api-key = %q", gotKey)
	}
	if gotVersion != anthropicVersion {
		t.Errorf("anthropic-version = %q, want %q", gotVersion, anthropicVersion)
	}
	if gotBody.System != "sys" {
		t.Errorf("system field = %q", gotBody.System)
	}
	if len(gotBody.Messages) != 1 || gotBody.Messages[0].Role != "user" {
		t.Errorf("messages = %+v, want single user message", gotBody.Messages)
	}
}

func TestOllamaErrorMapping(t *testing.T) {
	t.Run("model not found", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer srv.Close()

		p := &ollamaProvider{http: srv.Client()}
		_, err := p.send(context.Background(), Request{}, Config{Model: "missing", BaseURL: srv.URL})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != KindAPI {
			t.Errorf("err = %v, want non-retryable KindAPI", err)
		}
	})

	t.Run("server error retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		p := &ollamaProvider{http: srv.Client()}
		_, err := p.send(context.Background(), Request{}, Config{Model: "llama3", BaseURL: srv.URL})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != KindServer || !pe.Retryable() {
			t.Errorf("err = %v, want retryable KindServer", err)
		}
	})

	t.Run("unavailable", func(t *testing.T) {
		p := &ollamaProvider{http: http.DefaultClient}
		// Port 1 refuses connections.
		_, err := p.send(context.Background(), Request{}, Config{Model: "llama3", BaseURL: "http://127.0.0.1:1"})
		var pe *Error
		if !errors.As(err, &pe) || pe.Kind != KindNetwork || !pe.Retryable() {
			t.Errorf("err = %v, want retryable KindNetwork", err)
		}
	})
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status    int
		want      Kind
		retryable bool
	}{
		{401, KindAuth, false},
		{429, KindRateLimited, true},
		{500, KindServer, true},
		{503, KindServer, true},
		{599, KindServer, true},
		{400, KindAPI, false},
		{403, KindAPI, false},
		{404, KindAPI, false},
	}
	for _, tt := range tests {
		e := classifyStatus("test", tt.status, nil)
		if e.Kind != tt.want {
			t.Errorf("status %d: kind = %v, want %v", tt.status, e.Kind, tt.want)
		}
		if e.Retryable() != tt.retryable {
			t.Errorf("status %d: retryable = %v, want %v", tt.status, e.Retryable(), tt.retryable)
		}
	}
}
