package snapshot

import (
	"context"
	"errors"
	"testing"
	"time"
)

func on() bool  { return true }
func off() bool { return false }

func TestTakeClipboardOnly(t *testing.T) {
	s := NewSource(on, off, nil)
	s.readClip = func() (string, error) { return "  copied text \n", nil }

	snap := s.Take(context.Background())
	if snap.Clipboard != "copied text" {
		t.Errorf("Clipboard = %q, want %q", snap.Clipboard, "copied text")
	}
	if snap.Screen != "" {
		t.Errorf("Screen = %q, want empty", snap.Screen)
	}
}

func TestTakeClipboardDisabled(t *testing.T) {
	s := NewSource(off, off, nil)
	s.readClip = func() (string, error) { return "copied", nil }

	if snap := s.Take(context.Background()); !snap.Empty() {
		t.Errorf("snapshot not empty: %+v", snap)
	}
}

func TestScreenCaptureRoundTrip(t *testing.T) {
	s := NewSource(off, on, func(ctx context.Context) (string, error) {
		return "window text", nil
	})
	s.BeginScreenCapture(context.Background())

	snap := s.Take(context.Background())
	if snap.Screen != "window text" {
		t.Errorf("Screen = %q, want %q", snap.Screen, "window text")
	}

	// Not retained beyond the request that used it.
	if snap := s.Take(context.Background()); snap.Screen != "" {
		t.Errorf("second Take Screen = %q, want empty", snap.Screen)
	}
}

func TestScreenCaptureError(t *testing.T) {
	s := NewSource(off, on, func(ctx context.Context) (string, error) {
		return "", errors.New("capture failed")
	})
	s.BeginScreenCapture(context.Background())

	if snap := s.Take(context.Background()); snap.Screen != "" {
		t.Errorf("Screen = %q, want empty on capture failure", snap.Screen)
	}
}

func TestScreenCaptureCancelAndRestart(t *testing.T) {
	started := make(chan struct{}, 2)
	s := NewSource(off, on, func(ctx context.Context) (string, error) {
		started <- struct{}{}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(10 * time.Millisecond):
			return "second", nil
		}
	})

	s.BeginScreenCapture(context.Background())
	<-started
	s.BeginScreenCapture(context.Background()) // cancels the first
	<-started

	snap := s.Take(context.Background())
	if snap.Screen != "second" {
		t.Errorf("Screen = %q, want %q", snap.Screen, "second")
	}
}

func TestEmpty(t *testing.T) {
	if !(Snapshot{}).Empty() {
		t.Error("zero snapshot should be empty")
	}
	if (Snapshot{Clipboard: "x"}).Empty() {
		t.Error("snapshot with clipboard should not be empty")
	}
}
