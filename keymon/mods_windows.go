//go:build windows

package keymon

import (
	"fmt"

	"golang.design/x/hotkey"

	"hark/ptt"
)

func xModifiers(m ptt.Mods) ([]hotkey.Modifier, error) {
	var mods []hotkey.Modifier
	if m.Has(ptt.ModShift) {
		mods = append(mods, hotkey.ModShift)
	}
	if m.Has(ptt.ModCtrl) {
		mods = append(mods, hotkey.ModCtrl)
	}
	if m.Has(ptt.ModAlt) {
		mods = append(mods, hotkey.ModAlt)
	}
	if m.Has(ptt.ModSuper) {
		mods = append(mods, hotkey.ModWin)
	}
	if m.Has(ptt.ModFn) {
		return nil, fmt.Errorf("the fn family cannot be registered as a global hotkey")
	}
	return mods, nil
}
