package enhance

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

const geminiDefaultBase = "https://generativelanguage.googleapis.com/v1beta"

// geminiProvider is the single-turn generative variant: API key in the query
// string, ordered parts (system text then user text), fixed low temperature,
// text at candidates[0].content.parts[0].text.
type geminiProvider struct {
	http *http.Client
}

func (p *geminiProvider) name() string { return ProviderGemini }
func (p *geminiProvider) local() bool  { return false }

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (p *geminiProvider) send(ctx context.Context, req Request, cfg Config) (string, error) {
	base := cfg.BaseURL
	if base == "" {
		base = geminiDefaultBase
	}
	endpoint := base + "/models/" + cfg.Model + ":generateContent?key=" + url.QueryEscape(cfg.APIKey)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{
				{Text: req.SystemMessage},
				{Text: req.UserMessage},
			}},
		},
		GenerationConfig: geminiGenConfig{Temperature: 0.3},
	})
	if err != nil {
		return "", newError(KindAPI, p.name(), "marshal request: %v", err)
	}

	status, respBody, err := postJSON(ctx, p.http, p.name(), endpoint, nil, body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", classifyStatus(p.name(), status, respBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: KindParse, Provider: p.name(), Message: "decode response", Cause: err}
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", newError(KindParse, p.name(), "response has no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
