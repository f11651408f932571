package enhance

import (
	"context"
	"encoding/json"
	"net/http"
)

const openAIDefaultURL = "https://api.openai.com/v1/chat/completions"

// openAIProvider is the chat-completions variant: bearer auth, system + user
// role messages, text at choices[0].message.content.
type openAIProvider struct {
	http *http.Client
}

func (p *openAIProvider) name() string { return ProviderOpenAI }
func (p *openAIProvider) local() bool  { return false }

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *openAIProvider) send(ctx context.Context, req Request, cfg Config) (string, error) {
	url := cfg.BaseURL
	if url == "" {
		url = openAIDefaultURL
	}

	body, err := json.Marshal(openAIRequest{
		Model: cfg.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemMessage},
			{Role: "user", Content: req.UserMessage},
		},
	})
	if err != nil {
		return "", newError(KindAPI, p.name(), "marshal request: %v", err)
	}

	status, respBody, err := postJSON(ctx, p.http, p.name(), url, map[string]string{
		"Authorization": "Bearer " + cfg.APIKey,
	}, body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", classifyStatus(p.name(), status, respBody)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindParse, Provider: p.name(), Message: "decode response", Cause: err}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", newError(KindParse, p.name(), "response has no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
