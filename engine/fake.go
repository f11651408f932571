package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// Fake is a scripted engine for tests and headless mode.
type Fake struct {
	Text      string        // transcription returned by GetTranscription
	LoadErr   error         // returned by LoadModel
	LoadDelay time.Duration // simulated load time

	// FailFirstLoads makes that many initial LoadModel calls fail before
	// loads start succeeding. Set before the first load.
	FailFirstLoads int

	// OnTranscribe runs at the start of FullTranscribe, before the
	// simulated delay. Lets tests act while a transcription is in flight.
	OnTranscribe    func()
	TranscribeDelay time.Duration

	loads      atomic.Int64
	transcribe atomic.Int64

	mu     sync.Mutex
	model  string
	prompt string
}

func NewFake(text string) *Fake {
	return &Fake{Text: text}
}

func (f *Fake) LoadModel(ctx context.Context, modelID string) error {
	n := f.loads.Add(1)
	if f.LoadDelay > 0 {
		select {
		case <-time.After(f.LoadDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.LoadErr != nil {
		return f.LoadErr
	}
	if int(n) <= f.FailFirstLoads {
		return errors.New("scripted load failure")
	}
	f.mu.Lock()
	f.model = modelID
	f.mu.Unlock()
	return nil
}

func (f *Fake) UnloadModel() {
	f.mu.Lock()
	f.model = ""
	f.prompt = ""
	f.mu.Unlock()
}

func (f *Fake) LoadedModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *Fake) SetPrompt(prompt string) {
	f.mu.Lock()
	f.prompt = prompt
	f.mu.Unlock()
}

func (f *Fake) Prompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompt
}

func (f *Fake) FullTranscribe(ctx context.Context, samples []float32) error {
	f.transcribe.Add(1)
	if f.OnTranscribe != nil {
		f.OnTranscribe()
	}
	if f.TranscribeDelay > 0 {
		select {
		case <-time.After(f.TranscribeDelay):
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}

func (f *Fake) GetTranscription() string { return f.Text }

// LoadCount reports how many LoadModel calls actually executed.
func (f *Fake) LoadCount() int { return int(f.loads.Load()) }

// TranscribeCount reports how many FullTranscribe calls executed.
func (f *Fake) TranscribeCount() int { return int(f.transcribe.Load()) }
