package deliver

import (
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbErr  error
	kbOnce sync.Once
)

// sendPasteChord synthesizes the platform paste shortcut at the focused
// window: cmd+V on macOS, ctrl+V elsewhere.
func sendPasteChord() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr != nil {
			return
		}
		kb.SetKeys(keybd_event.VK_V)
		if runtime.GOOS == "darwin" {
			kb.HasSuper(true)
		} else {
			kb.HasCTRL(true)
		}
	})
	if kbErr != nil {
		return kbErr
	}

	// Let the clipboard write settle before the keystroke lands.
	time.Sleep(50 * time.Millisecond)
	return kb.Launching()
}
