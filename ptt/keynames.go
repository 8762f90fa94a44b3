package ptt

import "fmt"

// Key codes follow the Linux evdev numbering. Monitors on other
// platforms translate their native codes into this space so bindings
// mean the same thing everywhere.
const (
	KeyEsc       Key = 1
	KeyEnter     Key = 28
	KeyLeftCtrl  Key = 29
	KeyLeftShift Key = 42
	KeyLeftAlt   Key = 56
	KeySpace     Key = 57
	KeyCapsLock  Key = 58
	KeyRightCtrl Key = 97
	KeyRightAlt  Key = 100
	KeyLeftMeta  Key = 125
	KeyRightMeta Key = 126
	KeyFn        Key = 464
)

// Key1 through Key9 sit on the top row; prompt selection uses them
// while a take is on screen.
const Key1 Key = 2

var keyCodes = map[string]Key{
	"esc":       KeyEsc,
	"1":         2,
	"2":         3,
	"3":         4,
	"4":         5,
	"5":         6,
	"6":         7,
	"7":         8,
	"8":         9,
	"9":         10,
	"0":         11,
	"minus":     12,
	"equal":     13,
	"backspace": 14,
	"tab":       15,
	"q":         16,
	"w":         17,
	"e":         18,
	"r":         19,
	"t":         20,
	"y":         21,
	"u":         22,
	"i":         23,
	"o":         24,
	"p":         25,
	"enter":     KeyEnter,
	"a":         30,
	"s":         31,
	"d":         32,
	"f":         33,
	"g":         34,
	"h":         35,
	"j":         36,
	"k":         37,
	"l":         38,
	"semicolon": 39,
	"grave":     41,
	"z":         44,
	"x":         45,
	"c":         46,
	"v":         47,
	"b":         48,
	"n":         49,
	"m":         50,
	"comma":     51,
	"dot":       52,
	"slash":     53,
	"space":     KeySpace,
	"capslock":  KeyCapsLock,
	"f1":        59,
	"f2":        60,
	"f3":        61,
	"f4":        62,
	"f5":        63,
	"f6":        64,
	"f7":        65,
	"f8":        66,
	"f9":        67,
	"f10":       68,
	"f11":       87,
	"f12":       88,
	"home":      102,
	"up":        103,
	"pageup":    104,
	"left":      105,
	"right":     106,
	"end":       107,
	"down":      108,
	"pagedown":  109,
	"insert":    110,
	"delete":    111,
}

var keyNames map[Key]string

func init() {
	keyNames = make(map[Key]string, len(keyCodes))
	for name, code := range keyCodes {
		keyNames[code] = name
	}
}

// KeyByName resolves a config token like "space" or "f5" to its code.
func KeyByName(name string) (Key, bool) {
	k, ok := keyCodes[name]
	return k, ok
}

// KeyName returns the config token for a code, or "key<N>" when the
// code has no name.
func KeyName(k Key) string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key%d", uint16(k))
}
