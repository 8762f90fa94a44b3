package ptt

import "time"

// controller classifies verified edges by press duration. A press
// always starts recording immediately; what the release means depends
// on how long the key was held. Releasing before the threshold keeps
// the recording running hands-free, releasing at or past it stops.
// Duration is measured between edge timestamps, not against the wall
// clock, so a delayed edge is classified by when it happened.
type controller struct {
	threshold time.Duration
	mode      Mode
	pressedAt time.Time
	inPress   bool
}

// edge consumes one verified transition and reports whether a toggle
// command should be emitted. At most one command per edge.
func (c *controller) edge(pressed bool, at time.Time) (emit bool, origin Origin) {
	if pressed {
		switch c.mode {
		case ModeIdle:
			c.mode = ModePTT
			c.pressedAt = at
			c.inPress = true
			return true, OriginPTT
		case ModeHandsFree:
			// This press is the stop gesture. Its release will find
			// no open press and be ignored.
			c.mode = ModeIdle
			c.inPress = false
			return true, OriginHandsFree
		}
		return false, ""
	}

	// Release with no open press: leftover from before a reset, or
	// the tail of a hands-free stop. Dropped.
	if !c.inPress {
		return false, ""
	}
	c.inPress = false

	if at.Sub(c.pressedAt) < c.threshold {
		// Brief press: recording continues without the key.
		c.mode = ModeHandsFree
		return false, ""
	}
	c.mode = ModeIdle
	return true, OriginPTT
}

// reset abandons any open press and returns to idle without emitting.
// Whether a recording is left running is the caller's problem.
func (c *controller) reset() {
	c.mode = ModeIdle
	c.inPress = false
}
