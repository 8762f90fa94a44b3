package ptt

import (
	"sync"
	"sync/atomic"
	"time"

	"hark/log"
)

// Defaults for the timing knobs. Threshold separates a hold from a
// brief press, Debounce settles noisy bindings, Cooldown rate-limits
// the plain toggle shortcut.
const (
	DefaultThreshold = time.Second
	DefaultDebounce  = 75 * time.Millisecond
	DefaultCooldown  = 500 * time.Millisecond
)

// Options carries the engine's configuration. The zero value is not
// usable; Enabled must be set and a Binding given.
type Options struct {
	Binding   Binding
	Threshold time.Duration
	Debounce  time.Duration
	Cooldown  time.Duration
	Enabled   bool
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.Debounce <= 0 {
		o.Debounce = DefaultDebounce
	}
	if o.Cooldown <= 0 {
		o.Cooldown = DefaultCooldown
	}
	return o
}

type inputKind int

const (
	inKey inputKind = iota
	inCommit
	inTrigger
	inOptions
	inReset
)

type input struct {
	kind inputKind
	ev   KeyEvent
	gen  uint64
	val  bool
	at   time.Time
	opts Options
}

// Engine serializes everything through one goroutine. Monitors deliver
// raw reports from their own goroutines, debounce confirmations arrive
// from timer goroutines, and reconfiguration comes from the config
// watcher; the loop consumes them in arrival order so no state needs a
// lock. The only cross-goroutine reads are the atomic mode mirror.
type Engine struct {
	sink CommandSink

	in       chan input
	stop     chan struct{}
	stopOnce sync.Once

	mode atomic.Int32

	// afterFunc schedules debounce confirmations; swapped in tests.
	afterFunc func(time.Duration, func())

	// Owned by run. Never touched from outside the loop.
	opts Options
	edge bool
	ded  dedup
	deb  debounce
	ctl  controller
	cool cooldown
}

// New builds an engine delivering commands to sink. Call Start to
// begin consuming input.
func New(sink CommandSink, opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		sink:      sink,
		in:        make(chan input, 64),
		stop:      make(chan struct{}),
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		opts:      opts,
		ctl:       controller{threshold: opts.Threshold},
		cool:      cooldown{every: opts.Cooldown},
	}
	e.mode.Store(int32(ModeIdle))
	return e
}

// Start launches the engine goroutine.
func (e *Engine) Start() {
	go e.run()
}

// Stop shuts the engine down. Pending debounce confirmations are
// abandoned; no further commands are emitted.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stop) })
}

// Deliver hands a raw report to the engine. Never blocks: if the
// engine is backed up the report is dropped, which at worst loses an
// edge the next report re-establishes.
func (e *Engine) Deliver(ev KeyEvent) {
	select {
	case e.in <- input{kind: inKey, ev: ev}:
	case <-e.stop:
	default:
		log.Debugf("ptt: input queue full, dropped report from %s", ev.Source)
	}
}

// Trigger fires the plain toggle shortcut, subject to the cooldown.
func (e *Engine) Trigger(at time.Time) {
	select {
	case e.in <- input{kind: inTrigger, at: at}:
	case <-e.stop:
	default:
	}
}

// Reconfigure swaps the engine's options. Any in-flight press is
// abandoned: pending debounce confirmations become stale, the open
// press closes without a stop command, and the mode returns to idle.
func (e *Engine) Reconfigure(opts Options) {
	select {
	case e.in <- input{kind: inOptions, opts: opts}:
	case <-e.stop:
	}
}

// Reset abandons in-flight state without changing configuration. The
// caller reconciles any recording left running.
func (e *Engine) Reset() {
	select {
	case e.in <- input{kind: inReset}:
	case <-e.stop:
	}
}

// Mode reports the engine's view of the recording lifecycle. Safe from
// any goroutine; may trail the loop by an instant.
func (e *Engine) Mode() Mode { return Mode(e.mode.Load()) }

// HandsFree reports whether the last classified press left the
// recording running without the key held.
func (e *Engine) HandsFree() bool { return e.Mode() == ModeHandsFree }

func (e *Engine) run() {
	for {
		select {
		case <-e.stop:
			return
		case in := <-e.in:
			switch in.kind {
			case inKey:
				e.handleKey(in.ev)
			case inCommit:
				e.handleCommit(in)
			case inTrigger:
				e.handleTrigger(in.at)
			case inOptions:
				e.resetState("reconfigure")
				e.applyOptions(in.opts)
			case inReset:
				e.resetState("reset")
			}
		}
	}
}

func (e *Engine) handleKey(ev KeyEvent) {
	if !e.opts.Enabled {
		return
	}
	target, pressed := e.opts.Binding.Observe(ev)
	if !target {
		return
	}
	if !e.ded.admit(pressed) {
		return
	}
	if !e.opts.Binding.Noisy {
		e.applyEdge(pressed, ev.At)
		return
	}
	// Noisy binding: hold the edge until it survives the window. A
	// newer flip bumps the generation and strands this confirmation.
	gen := e.deb.flip()
	at := ev.At
	e.afterFunc(e.opts.Debounce, func() {
		select {
		case e.in <- input{kind: inCommit, gen: gen, val: pressed, at: at}:
		case <-e.stop:
		}
	})
}

func (e *Engine) handleCommit(in input) {
	if !e.deb.commit(in.gen) {
		log.Debugf("ptt: stale debounce confirmation (gen %d)", in.gen)
		return
	}
	if in.val == e.edge {
		// The burst settled back where it started. Nothing happened.
		return
	}
	e.applyEdge(in.val, in.at)
}

func (e *Engine) handleTrigger(at time.Time) {
	if !e.opts.Enabled {
		return
	}
	if !e.cool.tryTrigger(at) {
		log.Debugf("ptt: toggle shortcut suppressed by cooldown")
		return
	}
	log.ToggleCommand(string(OriginToggle), e.ctl.mode.String())
	e.sink.ToggleRecording(OriginToggle)
}

func (e *Engine) applyEdge(pressed bool, at time.Time) {
	e.edge = pressed
	emit, origin := e.ctl.edge(pressed, at)
	e.mode.Store(int32(e.ctl.mode))
	if emit {
		log.ToggleCommand(string(origin), e.ctl.mode.String())
		e.sink.ToggleRecording(origin)
	}
}

func (e *Engine) applyOptions(opts Options) {
	e.opts = opts.withDefaults()
	e.ctl.threshold = e.opts.Threshold
	// The last trigger time survives so a reload cannot be used to
	// slip through the cooldown.
	e.cool.every = e.opts.Cooldown
	log.Infof("ptt: reconfigured, binding %s enabled %v", e.opts.Binding, e.opts.Enabled)
}

func (e *Engine) resetState(reason string) {
	e.ded.reset()
	e.deb.cancel()
	e.ctl.reset()
	e.edge = false
	e.mode.Store(int32(ModeIdle))
	log.EngineReset(reason)
}
