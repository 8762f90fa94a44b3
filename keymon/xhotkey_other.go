//go:build !linux

package keymon

import (
	"fmt"
	"sync"
	"time"

	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"

	"hark/ptt"
)

type globalMonitor struct {
	binding ptt.Binding
	deliver Deliver
	hk      *hotkey.Hotkey
	stop    chan struct{}
	once    sync.Once
}

// New registers the binding as a global hotkey (Cocoa/Win32). Only the
// bound combination is observable here, so reports are synthesized
// from registration callbacks rather than read from devices.
func New(b ptt.Binding, deliver Deliver) Monitor {
	return &globalMonitor{binding: b, deliver: deliver}
}

func (m *globalMonitor) Start() error {
	if m.binding.ModifierOnly() {
		return fmt.Errorf("modifier-only binding %s needs raw device access; use a key combo on this platform", m.binding)
	}
	mods, err := xModifiers(m.binding.Mods)
	if err != nil {
		return err
	}
	key, ok := xKey(m.binding.Code)
	if !ok {
		return fmt.Errorf("key %s cannot be registered on this platform", ptt.KeyName(m.binding.Code))
	}

	m.hk = hotkey.New(mods, key)
	// Registration must happen on the first OS thread; Call queues
	// until that thread is free.
	var regErr error
	mainthread.Call(func() { regErr = m.hk.Register() })
	if regErr != nil {
		return fmt.Errorf("registering %s: %w", m.binding, regErr)
	}
	m.stop = make(chan struct{})

	go func() {
		for {
			select {
			case <-m.stop:
				return
			case <-m.hk.Keydown():
				m.report(true)
			}
		}
	}()
	go func() {
		for {
			select {
			case <-m.stop:
				return
			case <-m.hk.Keyup():
				m.report(false)
			}
		}
	}()
	return nil
}

func (m *globalMonitor) report(down bool) {
	mods := m.binding.Mods
	if !down {
		mods = 0
	}
	m.deliver(ptt.KeyEvent{
		Code:   m.binding.Code,
		Down:   down,
		Mods:   mods,
		Source: "xhotkey",
		At:     time.Now(),
	})
}

func (m *globalMonitor) Stop() {
	m.once.Do(func() {
		if m.stop != nil {
			close(m.stop)
		}
		if m.hk != nil {
			m.hk.Unregister()
		}
	})
}

// xKey maps our evdev-numbered codes onto the registration API's key
// space by name. Codes missing here simply cannot be bound on this
// platform.
func xKey(k ptt.Key) (hotkey.Key, bool) {
	key, ok := xKeys[ptt.KeyName(k)]
	return key, ok
}

var xKeys = map[string]hotkey.Key{
	"a": hotkey.KeyA, "b": hotkey.KeyB, "c": hotkey.KeyC, "d": hotkey.KeyD,
	"e": hotkey.KeyE, "f": hotkey.KeyF, "g": hotkey.KeyG, "h": hotkey.KeyH,
	"i": hotkey.KeyI, "j": hotkey.KeyJ, "k": hotkey.KeyK, "l": hotkey.KeyL,
	"m": hotkey.KeyM, "n": hotkey.KeyN, "o": hotkey.KeyO, "p": hotkey.KeyP,
	"q": hotkey.KeyQ, "r": hotkey.KeyR, "s": hotkey.KeyS, "t": hotkey.KeyT,
	"u": hotkey.KeyU, "v": hotkey.KeyV, "w": hotkey.KeyW, "x": hotkey.KeyX,
	"y": hotkey.KeyY, "z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,
	"f1": hotkey.KeyF1, "f2": hotkey.KeyF2, "f3": hotkey.KeyF3,
	"f4": hotkey.KeyF4, "f5": hotkey.KeyF5, "f6": hotkey.KeyF6,
	"f7": hotkey.KeyF7, "f8": hotkey.KeyF8, "f9": hotkey.KeyF9,
	"f10": hotkey.KeyF10, "f11": hotkey.KeyF11, "f12": hotkey.KeyF12,
	"space":  hotkey.KeySpace,
	"enter":  hotkey.KeyReturn,
	"esc":    hotkey.KeyEscape,
	"tab":    hotkey.KeyTab,
	"delete": hotkey.KeyDelete,
	"up":     hotkey.KeyUp,
	"down":   hotkey.KeyDown,
	"left":   hotkey.KeyLeft,
	"right":  hotkey.KeyRight,
}

func Diagnose() (string, error) {
	return "global hotkey registration available", nil
}
