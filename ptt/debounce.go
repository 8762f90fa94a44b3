package ptt

// debounce settles flickering contacts before an edge is believed.
// Some bindings (the fn family on most laptops) report spurious
// release/press pairs mid-hold. Each candidate flip bumps a generation
// and arms a delayed confirmation carrying that generation; a newer
// flip supersedes the pending one, so cancellation is a counter bump,
// never timer bookkeeping.
type debounce struct {
	gen   uint64
	armed bool
}

// flip registers a new candidate edge and returns the generation its
// confirmation must present.
func (d *debounce) flip() uint64 {
	d.gen++
	d.armed = true
	return d.gen
}

// commit reports whether a confirmation for gen is still current.
// Stale generations are inert no matter when their timer fires.
func (d *debounce) commit(gen uint64) bool {
	if !d.armed || gen != d.gen {
		return false
	}
	d.armed = false
	return true
}

// cancel invalidates any pending confirmation.
func (d *debounce) cancel() {
	d.gen++
	d.armed = false
}
