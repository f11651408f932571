package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"murmur/wav"
)

// ServerEngine talks to a local whisper server over HTTP. The server holds
// the model weights; LoadModel swaps the resident model and FullTranscribe
// posts the captured audio for inference.
type ServerEngine struct {
	baseURL string
	client  *http.Client

	mu     sync.Mutex
	model  string
	prompt string
	text   string
}

const DefaultServerURL = "http://127.0.0.1:8643"

func NewServer(baseURL string) *ServerEngine {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	return &ServerEngine{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

func (s *ServerEngine) LoadModel(ctx context.Context, modelID string) error {
	if modelID == "" {
		return ErrNoModel
	}

	body, err := json.Marshal(map[string]string{"model": modelID})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/load", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: server status %d: %s", ErrLoadFailed, resp.StatusCode, msg)
	}

	s.mu.Lock()
	s.model = modelID
	s.mu.Unlock()
	return nil
}

func (s *ServerEngine) UnloadModel() {
	s.mu.Lock()
	s.model = ""
	s.prompt = ""
	s.text = ""
	s.mu.Unlock()
}

func (s *ServerEngine) LoadedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

func (s *ServerEngine) SetPrompt(prompt string) {
	s.mu.Lock()
	s.prompt = prompt
	s.mu.Unlock()
}

type inferenceResponse struct {
	Text string `json:"text"`
}

func (s *ServerEngine) FullTranscribe(ctx context.Context, samples []float32) error {
	s.mu.Lock()
	model := s.model
	prompt := s.prompt
	s.text = ""
	s.mu.Unlock()
	if model == "" {
		return ErrNoModel
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return err
	}
	if _, err := part.Write(wav.Encode(pcmFromSamples(samples))); err != nil {
		return err
	}
	writer.WriteField("response_format", "json")
	if prompt != "" {
		writer.WriteField("prompt", prompt)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/inference", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("inference response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference status %d: %s", resp.StatusCode, respBody)
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("inference parse: %w", err)
	}

	s.mu.Lock()
	s.text = parsed.Text
	s.mu.Unlock()
	return nil
}

func (s *ServerEngine) GetTranscription() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// pcmFromSamples converts normalized samples back to the s16le layout the
// wire format carries.
func pcmFromSamples(samples []float32) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, f := range samples {
		if f > 1.0 {
			f = 1.0
		} else if f < -1.0 {
			f = -1.0
		}
		v := int16(f * 32767.0)
		pcm[i*2] = byte(v)
		pcm[i*2+1] = byte(uint16(v) >> 8)
	}
	return pcm
}
