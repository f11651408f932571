package enhance

import (
	"context"
	"encoding/json"
	"net/http"
)

const (
	anthropicDefaultURL = "https://api.anthropic.com/v1/messages"
	anthropicVersion    = "2023-06-01"
	anthropicMaxTokens  = 4096
)

// anthropicProvider is the message-API variant: custom API-key header plus a
// version header, top-level system field, text at content[0].text.
type anthropicProvider struct {
	http *http.Client
}

func (p *anthropicProvider) name() string { return ProviderAnthropic }
func (p *anthropicProvider) local() bool  { return false }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (p *anthropicProvider) send(ctx context.Context, req Request, cfg Config) (string, error) {
	url := cfg.BaseURL
	if url == "" {
		url = anthropicDefaultURL
	}

	body, err := json.Marshal(anthropicRequest{
		Model:     cfg.Model,
		MaxTokens: anthropicMaxTokens,
		System:    req.SystemMessage,
		Messages: []anthropicMessage{
			{Role: "user", Content: req.UserMessage},
		},
	})
	if err != nil {
		return "", newError(KindAPI, p.name(), "marshal request: %v", err)
	}

	status, respBody, err := postJSON(ctx, p.http, p.name(), url, map[string]string{
		"x-api-key":         cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}, body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", classifyStatus(p.name(), status, respBody)
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindParse, Provider: p.name(), Message: "decode response", Cause: err}
	}
	if len(parsed.Content) == 0 || parsed.Content[0].Text == "" {
		return "", newError(KindParse, p.name(), "response has no content")
	}
	return parsed.Content[0].Text, nil
}
