// Package keymon watches keyboard input and reports raw key events.
// On Linux it reads every keyboard under /dev/input, so one keystroke
// may be reported by several devices; consumers deduplicate. Other
// platforms register a global hotkey for the configured binding.
package keymon

import "hark/ptt"

// Monitor delivers raw reports to the function given at construction.
// Reports arrive from monitor-owned goroutines.
type Monitor interface {
	Start() error
	Stop()
}

// Deliver is the report sink. It must not block; the engine's intake
// drops when backed up rather than stalling a reader.
type Deliver func(ptt.KeyEvent)
