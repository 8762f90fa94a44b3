package config

import (
	"fmt"
	"strings"
	"time"

	"hark/ptt"
)

// ParseCombo parses a combo string like "ctrl+shift+v", "fn" or
// "space" into a binding. Modifiers may appear in any order; at most
// one trailing part names a key. A bare modifier family is a valid
// binding on its own. Bindings involving fn default to noisy because
// fn keys flicker on most laptop firmware.
func ParseCombo(combo string) (ptt.Binding, error) {
	var b ptt.Binding
	s := strings.ToLower(strings.TrimSpace(combo))
	if s == "" {
		return b, fmt.Errorf("empty combo")
	}

	parts := strings.Split(s, "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)

		isModifier := true
		switch part {
		case "ctrl", "control":
			b.Mods |= ptt.ModCtrl
		case "shift":
			b.Mods |= ptt.ModShift
		case "alt", "option", "opt":
			b.Mods |= ptt.ModAlt
		case "super", "win", "windows", "cmd", "command", "meta":
			b.Mods |= ptt.ModSuper
		case "fn", "function":
			b.Mods |= ptt.ModFn
		default:
			isModifier = false
		}

		if isModifier {
			continue
		}
		if i != len(parts)-1 {
			return ptt.Binding{}, fmt.Errorf("unknown modifier: %s", part)
		}
		code, ok := ptt.KeyByName(part)
		if !ok {
			return ptt.Binding{}, fmt.Errorf("unknown key: %s", part)
		}
		b.Code = code
	}

	if b.Zero() {
		return b, fmt.Errorf("no modifiers or key specified in combo")
	}
	b.Noisy = b.Mods.Has(ptt.ModFn) || b.Code == ptt.KeyFn
	return b, nil
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
