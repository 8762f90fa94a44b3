//go:build linux

package keymon

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hark/ptt"
)

const (
	evKey      = 1
	keyRelease = 0
	keyPress   = 1
	keyRepeat  = 2

	keyLShift = 42
	keyRShift = 54
	keyLCtrl  = 29
	keyRCtrl  = 97
	keyLAlt   = 56
	keyRAlt   = 100
	keyLMeta  = 125
	keyRMeta  = 126
	keyFnCode = 464
)

const inputEventSize = 24

type evdevMonitor struct {
	deliver Deliver
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

// New reads raw events from every keyboard device. The binding is not
// needed here: everything is reported and the consumer filters.
func New(_ ptt.Binding, deliver Deliver) Monitor {
	return &evdevMonitor{deliver: deliver}
}

func (m *evdevMonitor) Start() error {
	keyboards, err := Keyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	m.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		m.files = append(m.files, f)
		go m.readEvents(f, path)
	}

	if len(m.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (m *evdevMonitor) readEvents(f *os.File, source string) {
	buf := make([]byte, inputEventSize*16)
	// Modifier state is tracked per device; a device's snapshot only
	// reflects keys it reported itself.
	var mods ptt.Mods

	for {
		select {
		case <-m.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			sec := binary.LittleEndian.Uint64(buf[i:])
			usec := binary.LittleEndian.Uint64(buf[i+8:])
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			if evType != evKey {
				continue
			}

			down := evValue == keyPress || evValue == keyRepeat
			if flag, ok := modifierFlag(evCode); ok {
				if evValue == keyPress {
					mods |= flag
				} else if evValue == keyRelease {
					mods &^= flag
				}
			}

			// Kernel timestamps keep press durations honest even when
			// delivery lags.
			at := time.Unix(int64(sec), int64(usec)*1000)
			if sec == 0 {
				at = time.Now()
			}

			m.deliver(ptt.KeyEvent{
				Code:   ptt.Key(evCode),
				Down:   down,
				Mods:   mods,
				Source: source,
				At:     at,
			})
		}
	}
}

func modifierFlag(code uint16) (ptt.Mods, bool) {
	switch code {
	case keyLShift, keyRShift:
		return ptt.ModShift, true
	case keyLCtrl, keyRCtrl:
		return ptt.ModCtrl, true
	case keyLAlt, keyRAlt:
		return ptt.ModAlt, true
	case keyLMeta, keyRMeta:
		return ptt.ModSuper, true
	case keyFnCode:
		return ptt.ModFn, true
	}
	return 0, false
}

func (m *evdevMonitor) Stop() {
	m.once.Do(func() {
		if m.stop != nil {
			close(m.stop)
		}
		for _, f := range m.files {
			f.Close()
		}
	})
}

// Keyboards lists the event devices under /dev/input that look like
// real keyboards. Shared with the in-take shortcut binder, which opens
// its own readers.
func Keyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		path := filepath.Join("/dev/input", e.Name())
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, path)
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}

func Diagnose() (string, error) {
	keyboards, err := Keyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	var opened string
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			opened = path
			break
		}
	}
	if opened == "" {
		return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
	}

	return fmt.Sprintf("%d keyboard(s) found, opened %s", len(keyboards), opened), nil
}
