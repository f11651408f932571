package deliver

import (
	"errors"
	"testing"
	"time"
)

type fakeClip struct {
	content  string
	writes   []string
	readErr  error
	writeErr error
}

func newTestSink(trusted, autoCopy bool, clip *fakeClip) (*Sink, *int) {
	pastes := 0
	s := NewSink(func() bool { return trusted }, func() bool { return autoCopy })
	s.readClip = func() (string, error) { return clip.content, clip.readErr }
	s.writeClip = func(text string) error {
		if clip.writeErr != nil {
			return clip.writeErr
		}
		clip.content = text
		clip.writes = append(clip.writes, text)
		return nil
	}
	s.sendPaste = func() error { pastes++; return nil }
	s.sleep = func(time.Duration) {}
	return s, &pastes
}

func TestDeliverPasteRestoresClipboard(t *testing.T) {
	clip := &fakeClip{content: "previous"}
	s, pastes := newTestSink(true, false, clip)

	out := s.Deliver("hello world")
	if !out.Pasted || out.PasteErr != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if *pastes != 1 {
		t.Errorf("pastes = %d, want 1", *pastes)
	}
	// Text went on, previous contents came back.
	if len(clip.writes) != 2 || clip.writes[0] != "hello world" || clip.writes[1] != "previous" {
		t.Errorf("writes = %v", clip.writes)
	}
	if out.Copied {
		t.Error("copy leg should be off")
	}
}

func TestDeliverAutoCopyKeepsText(t *testing.T) {
	clip := &fakeClip{content: "previous"}
	s, _ := newTestSink(true, true, clip)

	out := s.Deliver("hello world")
	if !out.Pasted || !out.Copied {
		t.Fatalf("outcome = %+v", out)
	}
	if clip.content != "hello world" {
		t.Errorf("clipboard = %q, want delivered text kept", clip.content)
	}
}

func TestDeliverCopyOnlyWhenUntrusted(t *testing.T) {
	clip := &fakeClip{}
	s, pastes := newTestSink(false, true, clip)

	out := s.Deliver("hello")
	if out.Pasted {
		t.Error("paste should be skipped without trust")
	}
	if *pastes != 0 {
		t.Errorf("pastes = %d, want 0", *pastes)
	}
	if !out.Copied || clip.content != "hello" {
		t.Errorf("outcome = %+v, clipboard = %q", out, clip.content)
	}
}

func TestDeliverNeitherLeg(t *testing.T) {
	clip := &fakeClip{}
	s, _ := newTestSink(false, false, clip)

	out := s.Deliver("hello")
	if out.Delivered() {
		t.Errorf("outcome = %+v, want nothing delivered", out)
	}
}

func TestDeliverFailureIsReportedNotThrown(t *testing.T) {
	clip := &fakeClip{writeErr: errors.New("clipboard locked")}
	s, _ := newTestSink(true, true, clip)

	out := s.Deliver("hello")
	if out.Pasted || out.Copied {
		t.Errorf("outcome = %+v, want both legs failed", out)
	}
	if out.PasteErr == nil || out.CopyErr == nil {
		t.Errorf("errors missing: %+v", out)
	}
}
