// Package engine defines the transcription engine collaborator and the
// readiness gate that guards model loading.
package engine

import (
	"context"
	"errors"
)

var (
	ErrNoModel    = errors.New("no transcription model configured")
	ErrLoadFailed = errors.New("model load failed")
)

// Engine is the speech-to-text inference collaborator. Implementations are
// assumed synchronous-to-completion; the controller owns the handle
// exclusively and releases it at session teardown.
type Engine interface {
	// LoadModel makes modelID resident. Safe to call when already loaded.
	LoadModel(ctx context.Context, modelID string) error
	// UnloadModel releases transient engine resources tied to the session.
	UnloadModel()
	// LoadedModel returns the resident model id, or "" when none.
	LoadedModel() string

	SetPrompt(prompt string)
	FullTranscribe(ctx context.Context, samples []float32) error
	GetTranscription() string
}
