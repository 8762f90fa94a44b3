package ptt

// dedup collapses duplicate reports of one logical transition. Several
// monitors can watch the same keyboard, and key repeat re-reports the
// held state, so only the first report of each pressed flip is
// forwarded. The first observation after a reset always forwards.
type dedup struct {
	known bool
	last  bool
}

// admit reports whether this pressed reading is a new transition.
func (d *dedup) admit(pressed bool) bool {
	if d.known && d.last == pressed {
		return false
	}
	d.known = true
	d.last = pressed
	return true
}

// reset forgets the forwarded state so it is re-learned from the next
// report. Used when the binding changes under a held key.
func (d *dedup) reset() {
	d.known = false
	d.last = false
}
