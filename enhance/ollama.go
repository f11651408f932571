package enhance

import (
	"context"
	"encoding/json"
	"net/http"
)

const ollamaDefaultBase = "http://localhost:11434"

// ollamaProvider is the local/offline variant: no auth, no outbound rate
// limiting. Its error taxonomy (service unavailable, model not found, server
// error) maps onto the common kinds.
type ollamaProvider struct {
	http *http.Client
}

func (p *ollamaProvider) name() string { return ProviderOllama }
func (p *ollamaProvider) local() bool  { return true }

type ollamaRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Error string `json:"error"`
}

func (p *ollamaProvider) send(ctx context.Context, req Request, cfg Config) (string, error) {
	base := cfg.BaseURL
	if base == "" {
		base = ollamaDefaultBase
	}

	body, err := json.Marshal(ollamaRequest{
		Model: cfg.Model,
		Messages: []ollamaMessage{
			{Role: "system", Content: req.SystemMessage},
			{Role: "user", Content: req.UserMessage},
		},
		Stream: false,
	})
	if err != nil {
		return "", newError(KindAPI, p.name(), "marshal request: %v", err)
	}

	status, respBody, err := postJSON(ctx, p.http, p.name(), base+"/api/chat", nil, body)
	if err != nil {
		// Connection refused means the local server is not running.
		if pe, ok := err.(*Error); ok && pe.Kind == KindNetwork {
			pe.Message = "ollama server unavailable"
			return "", pe
		}
		return "", err
	}

	switch {
	case status == http.StatusOK:
	case status == http.StatusNotFound:
		return "", newError(KindAPI, p.name(), "model %q not found (ollama pull %s)", cfg.Model, cfg.Model)
	case status >= 500 && status <= 599:
		return "", newError(KindServer, p.name(), "ollama server error %d", status)
	default:
		return "", classifyStatus(p.name(), status, respBody)
	}

	var parsed ollamaResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindParse, Provider: p.name(), Message: "decode response", Cause: err}
	}
	if parsed.Error != "" {
		return "", newError(KindAPI, p.name(), "%s", parsed.Error)
	}
	if parsed.Message.Content == "" {
		return "", newError(KindParse, p.name(), "response has no message content")
	}
	return parsed.Message.Content, nil
}
