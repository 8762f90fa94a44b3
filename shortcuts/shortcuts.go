// Package shortcuts owns the keys that only exist while a take is on
// screen: escape cancels it, E flips enhancement, digits 1-9 pick the
// rewrite style. The registrar follows the recorder's visibility
// stream and keeps the platform bindings in step with it.
package shortcuts

import (
	"sync"

	"hark/log"
)

// Action identifies what a fired shortcut asks for.
type Action int

const (
	ActionCancel Action = iota
	ActionEnhance
	ActionStyle
)

// Event is one shortcut press. Style is set for ActionStyle only.
type Event struct {
	Action Action
	Style  int
}

// Binder grabs and releases the in-take key set. Bind and Release are
// idempotent; presses are delivered on the fire callback from a
// platform-owned goroutine.
type Binder interface {
	Bind(fire func(Event)) error
	Release()
}

// Actions is what a fired shortcut drives. *recorder.Recorder
// satisfies it.
type Actions interface {
	Cancel()
	ToggleEnhance() bool
	SetStyle(n int)
}

// Registrar binds the key set while the recorder is visible and
// releases it when the take closes. Duplicate transitions in either
// direction are no-ops.
type Registrar struct {
	binder  Binder
	actions Actions

	stop chan struct{}
	done chan struct{}

	// bound is owned by the run goroutine.
	bound bool

	once sync.Once
}

func NewRegistrar(binder Binder, actions Actions) *Registrar {
	return &Registrar{
		binder:  binder,
		actions: actions,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Run consumes visibility transitions until Stop is called or the
// stream closes. Call once, from its own goroutine or not at all.
func (r *Registrar) Run(visible <-chan bool) {
	defer close(r.done)
	defer r.apply(false)
	for {
		select {
		case v, ok := <-visible:
			if !ok {
				return
			}
			r.apply(v)
		case <-r.stop:
			return
		}
	}
}

// Stop releases the bindings and ends Run. Safe to call more than
// once, but only after Run has started.
func (r *Registrar) Stop() {
	r.once.Do(func() { close(r.stop) })
	<-r.done
}

func (r *Registrar) apply(want bool) {
	if want == r.bound {
		return
	}
	if want {
		if err := r.binder.Bind(r.fire); err != nil {
			log.Warnf("shortcuts: bind failed: %v", err)
			return
		}
		log.Debugf("shortcuts: bound take keys")
	} else {
		r.binder.Release()
		log.Debugf("shortcuts: released take keys")
	}
	r.bound = want
}

func (r *Registrar) fire(ev Event) {
	switch ev.Action {
	case ActionCancel:
		log.Info("shortcuts: escape pressed, canceling take")
		r.actions.Cancel()
	case ActionEnhance:
		on := r.actions.ToggleEnhance()
		log.Infof("shortcuts: enhancement now %v", on)
	case ActionStyle:
		r.actions.SetStyle(ev.Style)
	}
}
