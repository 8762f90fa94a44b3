package ptt

import (
	"strings"
	"time"
)

// Key is a platform-neutral key code. On Linux these are evdev codes;
// other monitors map their native codes into the same space.
type Key uint16

// Mods is a bitmask of modifier families observed alongside a report.
type Mods uint8

const (
	ModShift Mods = 1 << iota
	ModCtrl
	ModAlt   // option on macOS keyboards
	ModSuper // command / win
	ModFn
)

// Has reports whether every flag in f is set.
func (m Mods) Has(f Mods) bool { return m&f == f }

func (m Mods) String() string {
	if m == 0 {
		return "none"
	}
	var parts []string
	if m.Has(ModShift) {
		parts = append(parts, "shift")
	}
	if m.Has(ModCtrl) {
		parts = append(parts, "ctrl")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "alt")
	}
	if m.Has(ModSuper) {
		parts = append(parts, "super")
	}
	if m.Has(ModFn) {
		parts = append(parts, "fn")
	}
	return strings.Join(parts, "+")
}

// KeyEvent is one raw report from a monitor. Reports are untrusted:
// the same physical keystroke may arrive from several sources, and key
// repeat delivers the held state over and over.
type KeyEvent struct {
	Code   Key
	Down   bool
	Mods   Mods // modifier snapshot at the time of the report
	Source string
	At     time.Time
}

// Binding is the key (or bare modifier family) that drives recording.
type Binding struct {
	Code  Key  // zero for modifier-only bindings
	Mods  Mods // required modifier flags
	Noisy bool // hardware reports flicker; debounce before classifying
}

// ModifierOnly reports whether the binding is a bare modifier family,
// pressed state then follows the modifier flag rather than a key code.
func (b Binding) ModifierOnly() bool { return b.Code == 0 && b.Mods != 0 }

// Zero reports whether no binding is configured.
func (b Binding) Zero() bool { return b.Code == 0 && b.Mods == 0 }

func (b Binding) String() string {
	if b.Zero() {
		return "none"
	}
	if b.ModifierOnly() {
		return b.Mods.String()
	}
	if b.Mods == 0 {
		return KeyName(b.Code)
	}
	return b.Mods.String() + "+" + KeyName(b.Code)
}

// Observe derives the binding's pressed state from one raw report.
// Reports for other keys are not the binding's business and return
// target false. No state is held here; the caller owns edge detection.
func (b Binding) Observe(ev KeyEvent) (target, pressed bool) {
	if b.Zero() {
		return false, false
	}
	if b.ModifierOnly() {
		// Every report carries a modifier snapshot, so every report
		// is a fresh reading of the family's held state.
		return true, ev.Mods.Has(b.Mods)
	}
	if ev.Code != b.Code {
		return false, false
	}
	return true, ev.Down && ev.Mods.Has(b.Mods)
}
