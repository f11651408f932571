// Package history holds the transcription records a session produces.
// Durable storage lives behind Store; the app ships an in-memory
// implementation and external backends plug in.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is one completed transcription. RawText is always populated;
// EnhancedText only when enhancement succeeded.
type Record struct {
	ID              string
	RawText         string
	EnhancedText    string
	DurationSeconds float64
	AudioFilePath   string
	CreatedAt       time.Time
}

// FinalText is what gets delivered: the enhanced text when present, otherwise
// the raw transcription.
func (r Record) FinalText() string {
	if r.EnhancedText != "" {
		return r.EnhancedText
	}
	return r.RawText
}

// NewRecord stamps identity and creation time onto a finished transcription.
func NewRecord(rawText string, durationSeconds float64) Record {
	return Record{
		ID:              uuid.NewString(),
		RawText:         rawText,
		DurationSeconds: durationSeconds,
		CreatedAt:       time.Now(),
	}
}

// Store persists records.
type Store interface {
	Save(rec Record) error
	Recent(n int) ([]Record, error)
}

// MemoryStore keeps records in memory, newest last.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *MemoryStore) Recent(n int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	out := make([]Record, n)
	copy(out, m.records[len(m.records)-n:])
	return out, nil
}

// Len reports how many records have been saved.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}
