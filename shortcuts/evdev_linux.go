//go:build linux

package shortcuts

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"hark/keymon"
)

const (
	evKey    = 1
	keyPress = 1

	keyEsc    = 1
	keyDigit1 = 2 // KEY_1 through KEY_9 are sequential from here
	keyE      = 18
)

const inputEventSize = 24

// evdevBinder opens its own readers on the keyboard devices for the
// life of a bind. evdev delivers events to every open reader, so this
// does not disturb the main key monitor.
type evdevBinder struct {
	mu    sync.Mutex
	files []*os.File
	stop  chan struct{}
}

func NewBinder() Binder {
	return &evdevBinder{}
}

func (b *evdevBinder) Bind(fire func(Event)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return nil
	}

	keyboards, err := keymon.Keyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	stop := make(chan struct{})
	var files []*os.File
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		files = append(files, f)
		go readTakeKeys(f, stop, fire)
	}
	if len(files) == 0 {
		return fmt.Errorf("could not open any keyboard device")
	}

	b.files = files
	b.stop = stop
	return nil
}

func (b *evdevBinder) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop == nil {
		return
	}
	close(b.stop)
	for _, f := range b.files {
		f.Close()
	}
	b.files = nil
	b.stop = nil
}

func readTakeKeys(f *os.File, stop <-chan struct{}, fire func(Event)) {
	buf := make([]byte, inputEventSize*16)
	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			if evType != evKey || evValue != keyPress {
				continue
			}

			switch {
			case evCode == keyEsc:
				fire(Event{Action: ActionCancel})
			case evCode == keyE:
				fire(Event{Action: ActionEnhance})
			case evCode >= keyDigit1 && evCode < keyDigit1+9:
				fire(Event{Action: ActionStyle, Style: int(evCode-keyDigit1) + 1})
			}
		}
	}
}
