package ptt

import "time"

// cooldown rate-limits the plain toggle shortcut. Triggers inside the
// window are suppressed outright, never queued; the user taps again
// once the window has passed. The first trigger always fires.
type cooldown struct {
	every time.Duration
	last  time.Time
}

// tryTrigger reports whether a trigger at now may fire, and records it
// if so. Suppressed triggers do not push the window forward.
func (c *cooldown) tryTrigger(now time.Time) bool {
	if !c.last.IsZero() && now.Sub(c.last) < c.every {
		return false
	}
	c.last = now
	return true
}
