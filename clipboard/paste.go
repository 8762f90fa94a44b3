package clipboard

import (
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// Init prepares the key synthesizer. Call it early in the background: on
// linux the uinput device needs a moment to register with the session
// before the first chord lands.
func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil && runtime.GOOS == "linux" {
			time.Sleep(2 * time.Second)
		}
	})
	return kbErr
}

// Paste sends the platform paste chord to the focused window.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true) // Cmd+V
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

// Type copies text to the clipboard and pastes it.
func Type(text string) error {
	if err := Copy(text); err != nil {
		return err
	}
	return Paste()
}

// Verify reports whether the key synthesizer can be initialized.
func Verify() (string, error) {
	if err := Init(); err != nil {
		return "", err
	}
	if runtime.GOOS == "darwin" {
		return "keyboard event binding OK (Cmd+V)", nil
	}
	return "keyboard event binding OK (Ctrl+V)", nil
}
