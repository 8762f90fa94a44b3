//go:build !linux

package shortcuts

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// takeKeys is the bare-key set grabbed while a take is visible.
var takeKeys = []struct {
	key hotkey.Key
	ev  Event
}{
	{hotkey.KeyEscape, Event{Action: ActionCancel}},
	{hotkey.KeyE, Event{Action: ActionEnhance}},
	{hotkey.Key1, Event{Action: ActionStyle, Style: 1}},
	{hotkey.Key2, Event{Action: ActionStyle, Style: 2}},
	{hotkey.Key3, Event{Action: ActionStyle, Style: 3}},
	{hotkey.Key4, Event{Action: ActionStyle, Style: 4}},
	{hotkey.Key5, Event{Action: ActionStyle, Style: 5}},
	{hotkey.Key6, Event{Action: ActionStyle, Style: 6}},
	{hotkey.Key7, Event{Action: ActionStyle, Style: 7}},
	{hotkey.Key8, Event{Action: ActionStyle, Style: 8}},
	{hotkey.Key9, Event{Action: ActionStyle, Style: 9}},
}

type xBinder struct {
	mu   sync.Mutex
	hks  []*hotkey.Hotkey
	stop chan struct{}
}

// NewBinder registers through the global hotkey API (Cocoa/Win32).
func NewBinder() Binder {
	return &xBinder{}
}

func (b *xBinder) Bind(fire func(Event)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop != nil {
		return nil
	}

	stop := make(chan struct{})
	var hks []*hotkey.Hotkey
	for _, tk := range takeKeys {
		hk := hotkey.New(nil, tk.key)
		if err := hk.Register(); err != nil {
			for _, done := range hks {
				done.Unregister()
			}
			return fmt.Errorf("registering take key: %w", err)
		}
		hks = append(hks, hk)
		go watchKey(hk, stop, fire, tk.ev)
	}

	b.hks = hks
	b.stop = stop
	return nil
}

func (b *xBinder) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stop == nil {
		return
	}
	close(b.stop)
	for _, hk := range b.hks {
		hk.Unregister()
	}
	b.hks = nil
	b.stop = nil
}

func watchKey(hk *hotkey.Hotkey, stop <-chan struct{}, fire func(Event), ev Event) {
	for {
		select {
		case <-stop:
			return
		case <-hk.Keydown():
			fire(ev)
		}
	}
}
