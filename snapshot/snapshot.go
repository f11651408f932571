// Package snapshot captures ambient text folded into enhancement prompts.
// A snapshot lives for a single request and is never retained.
package snapshot

import (
	"context"
	"strings"
	"sync"

	cb "github.com/atotto/clipboard"
)

// Snapshot is optional ambient text. Empty fields mean "nothing captured".
type Snapshot struct {
	Clipboard string
	Screen    string
}

// Empty reports whether the snapshot carries no context at all.
func (s Snapshot) Empty() bool {
	return s.Clipboard == "" && s.Screen == ""
}

// ScreenTextFunc extracts visible text from the foreground screen. OS-level
// capture is an external collaborator; implementations are injected.
type ScreenTextFunc func(ctx context.Context) (string, error)

// Source captures snapshots. Screen capture runs in the background so the
// result is ready for the enhancement call without delaying recording start;
// a new recording cancels and restarts any capture still in flight.
type Source struct {
	clipboardOn func() bool
	screenOn    func() bool
	screenText  ScreenTextFunc
	readClip    func() (string, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	pending chan string
}

func NewSource(clipboardOn, screenOn func() bool, screenText ScreenTextFunc) *Source {
	return &Source{
		clipboardOn: clipboardOn,
		screenOn:    screenOn,
		screenText:  screenText,
		readClip:    cb.ReadAll,
	}
}

// BeginScreenCapture starts a screen-text refresh for the session that just
// started recording. Cancel-and-restart: a capture still running from a
// previous session is abandoned.
func (s *Source) BeginScreenCapture(ctx context.Context) {
	if s == nil || !s.screenOn() || s.screenText == nil {
		return
	}

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	capCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	pending := make(chan string, 1)
	s.pending = pending
	s.mu.Unlock()

	go func() {
		defer cancel()
		text, err := s.screenText(capCtx)
		if err != nil || capCtx.Err() != nil {
			close(pending)
			return
		}
		pending <- strings.TrimSpace(text)
		close(pending)
	}()
}

// Take assembles the snapshot for the request about to be built. It waits for
// a screen capture still in flight, reads the clipboard fresh, and clears the
// pending state.
func (s *Source) Take(ctx context.Context) Snapshot {
	if s == nil {
		return Snapshot{}
	}
	var snap Snapshot

	if s.clipboardOn() {
		if text, err := s.readClip(); err == nil {
			snap.Clipboard = strings.TrimSpace(text)
		}
	}

	if s.screenOn() {
		s.mu.Lock()
		pending := s.pending
		s.pending = nil
		s.mu.Unlock()

		// Screen text is used once and dropped; nothing is carried over to
		// the next request.
		if pending != nil {
			select {
			case text, ok := <-pending:
				if ok {
					snap.Screen = text
				}
			case <-ctx.Done():
			}
		}
	}

	return snap
}
