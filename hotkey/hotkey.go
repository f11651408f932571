// Package hotkey registers the global shortcuts driving the dictation loop:
// one chord toggles recording, another cancels the session in flight.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
