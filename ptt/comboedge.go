package ptt

// ComboEdge turns the raw report stream into press edges for one
// binding. The toggle shortcut and the on-screen shortcuts use it to
// fire once per keystroke no matter how many monitors report it.
type ComboEdge struct {
	b Binding
	d dedup
}

func NewComboEdge(b Binding) *ComboEdge {
	return &ComboEdge{b: b}
}

// Feed consumes one report and reports whether a fresh press edge
// occurred. Releases and duplicates return false.
func (c *ComboEdge) Feed(ev KeyEvent) bool {
	target, pressed := c.b.Observe(ev)
	if !target {
		return false
	}
	if !c.d.admit(pressed) {
		return false
	}
	return pressed
}

// Reset forgets the held state.
func (c *ComboEdge) Reset() {
	c.d.reset()
}
