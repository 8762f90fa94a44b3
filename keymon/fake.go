package keymon

import (
	"time"

	"hark/ptt"
)

// Fake feeds synthetic reports to the sink. Used by tests and the
// headless harness.
type Fake struct {
	deliver Deliver
	source  string
}

func NewFake(deliver Deliver) *Fake {
	return &Fake{deliver: deliver, source: "sim"}
}

func (f *Fake) Start() error { return nil }
func (f *Fake) Stop()        {}

// SimKey reports a key transition stamped with the current time.
func (f *Fake) SimKey(code ptt.Key, down bool, mods ptt.Mods) {
	f.SimKeyAt(code, down, mods, time.Now())
}

// SimKeyAt reports a key transition with an explicit timestamp so a
// harness can replay press durations without sleeping.
func (f *Fake) SimKeyAt(code ptt.Key, down bool, mods ptt.Mods, at time.Time) {
	f.deliver(ptt.KeyEvent{
		Code:   code,
		Down:   down,
		Mods:   mods,
		Source: f.source,
		At:     at,
	})
}
