// Package deliver puts finished text where the user wants it: pasted at the
// system cursor, copied to the clipboard, or both. Failures are reported back
// to the caller, never thrown; a delivery problem must not invalidate the
// transcription that produced it.
package deliver

import (
	"time"

	cb "github.com/atotto/clipboard"
)

// restoreDelay gives the foreground app time to read the clipboard before the
// previous contents are put back.
const restoreDelay = 600 * time.Millisecond

// Outcome reports what each delivery leg did.
type Outcome struct {
	Pasted   bool
	Copied   bool
	PasteErr error
	CopyErr  error
}

// Delivered reports whether at least one leg succeeded.
func (o Outcome) Delivered() bool { return o.Pasted || o.Copied }

// Sink delivers text. TrustCheck gates cursor paste on the OS-level
// accessibility permission; AutoCopy gates the clipboard leg.
type Sink struct {
	TrustCheck func() bool
	AutoCopy   func() bool

	// injectable for tests
	readClip  func() (string, error)
	writeClip func(string) error
	sendPaste func() error
	sleep     func(time.Duration)
}

func NewSink(trustCheck, autoCopy func() bool) *Sink {
	return &Sink{
		TrustCheck: trustCheck,
		AutoCopy:   autoCopy,
		readClip:   cb.ReadAll,
		writeClip:  cb.WriteAll,
		sendPaste:  sendPasteChord,
		sleep:      time.Sleep,
	}
}

// Deliver attempts cursor paste and clipboard copy independently. Either,
// both, or neither may apply.
func (s *Sink) Deliver(text string) Outcome {
	var out Outcome
	autoCopy := s.AutoCopy != nil && s.AutoCopy()

	if s.TrustCheck != nil && s.TrustCheck() {
		out.PasteErr = s.paste(text, autoCopy)
		out.Pasted = out.PasteErr == nil
	}

	if autoCopy {
		// Paste already left the text on the clipboard.
		if !out.Pasted {
			out.CopyErr = s.writeClip(text)
		}
		out.Copied = out.CopyErr == nil
	}

	return out
}

// paste swaps the text onto the clipboard, synthesizes the paste chord, and
// restores the previous clipboard unless auto-copy wants the text kept.
func (s *Sink) paste(text string, keepOnClipboard bool) error {
	prev, readErr := s.readClip()

	if err := s.writeClip(text); err != nil {
		return err
	}
	if err := s.sendPaste(); err != nil {
		return err
	}

	if !keepOnClipboard && readErr == nil && prev != "" {
		s.sleep(restoreDelay)
		return s.writeClip(prev)
	}
	return nil
}
