package ptt

import (
	"testing"
	"time"
)

type recordedSink struct {
	ch chan Origin
}

func newRecordedSink() *recordedSink {
	return &recordedSink{ch: make(chan Origin, 16)}
}

func (s *recordedSink) ToggleRecording(origin Origin) { s.ch <- origin }

func waitToggle(t *testing.T, s *recordedSink) Origin {
	t.Helper()
	select {
	case o := <-s.ch:
		return o
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for toggle command")
	}
	return ""
}

func expectNoToggle(t *testing.T, s *recordedSink, wait time.Duration) {
	t.Helper()
	select {
	case o := <-s.ch:
		t.Fatalf("unexpected toggle command (origin %s)", o)
	case <-time.After(wait):
	}
}

func waitMode(t *testing.T, e *Engine, want Mode) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if e.Mode() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("mode never reached %s, still %s", want, e.Mode())
}

func report(code Key, down bool, mods Mods, src string, at time.Time) KeyEvent {
	return KeyEvent{Code: code, Down: down, Mods: mods, Source: src, At: at}
}

func TestEngineHoldReleaseStops(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{Binding: Binding{Code: KeySpace}, Enabled: true})
	e.Start()
	defer e.Stop()

	base := time.Now()
	e.Deliver(report(KeySpace, true, 0, "kb0", base))
	if o := waitToggle(t, sink); o != OriginPTT {
		t.Errorf("start origin = %s, want %s", o, OriginPTT)
	}
	waitMode(t, e, ModePTT)

	e.Deliver(report(KeySpace, false, 0, "kb0", base.Add(1200*time.Millisecond)))
	if o := waitToggle(t, sink); o != OriginPTT {
		t.Errorf("stop origin = %s, want %s", o, OriginPTT)
	}
	waitMode(t, e, ModeIdle)
	expectNoToggle(t, sink, 50*time.Millisecond)
}

func TestEngineBriefPressGoesHandsFree(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{Binding: Binding{Code: KeySpace}, Enabled: true})
	e.Start()
	defer e.Stop()

	base := time.Now()
	e.Deliver(report(KeySpace, true, 0, "kb0", base))
	waitToggle(t, sink)
	e.Deliver(report(KeySpace, false, 0, "kb0", base.Add(300*time.Millisecond)))

	// The brief release keeps recording running without a command.
	expectNoToggle(t, sink, 50*time.Millisecond)
	waitMode(t, e, ModeHandsFree)

	// Next press stops; it is the stop gesture, not a new start.
	e.Deliver(report(KeySpace, true, 0, "kb0", base.Add(2*time.Second)))
	if o := waitToggle(t, sink); o != OriginHandsFree {
		t.Errorf("stop origin = %s, want %s", o, OriginHandsFree)
	}
	waitMode(t, e, ModeIdle)

	// Its release is an orphan and must not emit.
	e.Deliver(report(KeySpace, false, 0, "kb0", base.Add(2100*time.Millisecond)))
	expectNoToggle(t, sink, 50*time.Millisecond)
}

func TestEngineDuplicateSources(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{Binding: Binding{Code: KeySpace}, Enabled: true})
	e.Start()
	defer e.Stop()

	// Two monitors watch the same keyboard and key repeat re-reports
	// the held state. One keystroke, one start, one stop.
	base := time.Now()
	e.Deliver(report(KeySpace, true, 0, "kb0", base))
	e.Deliver(report(KeySpace, true, 0, "kb1", base.Add(2*time.Millisecond)))
	e.Deliver(report(KeySpace, true, 0, "kb0", base.Add(500*time.Millisecond)))
	e.Deliver(report(KeySpace, false, 0, "kb0", base.Add(1500*time.Millisecond)))
	e.Deliver(report(KeySpace, false, 0, "kb1", base.Add(1502*time.Millisecond)))

	waitToggle(t, sink)
	waitToggle(t, sink)
	expectNoToggle(t, sink, 50*time.Millisecond)
}

func TestEngineNoisyBurstOneCommit(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{
		Binding:  Binding{Mods: ModFn, Noisy: true},
		Debounce: 30 * time.Millisecond,
		Enabled:  true,
	})
	e.Start()
	defer e.Stop()

	// Flickering fn contact: down, spurious up, down again. Only the
	// settled value may commit, and only once.
	base := time.Now()
	e.Deliver(report(KeyFn, true, ModFn, "kb0", base))
	e.Deliver(report(KeyFn, false, 0, "kb0", base.Add(5*time.Millisecond)))
	e.Deliver(report(KeyFn, true, ModFn, "kb0", base.Add(12*time.Millisecond)))

	if o := waitToggle(t, sink); o != OriginPTT {
		t.Errorf("start origin = %s, want %s", o, OriginPTT)
	}
	expectNoToggle(t, sink, 80*time.Millisecond)

	e.Deliver(report(KeyFn, false, 0, "kb0", base.Add(1200*time.Millisecond)))
	if o := waitToggle(t, sink); o != OriginPTT {
		t.Errorf("stop origin = %s, want %s", o, OriginPTT)
	}
}

func TestEngineNoisyBurstSettlesBack(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{
		Binding:  Binding{Mods: ModFn, Noisy: true},
		Debounce: 30 * time.Millisecond,
		Enabled:  true,
	})
	e.Start()
	defer e.Stop()

	// A burst that ends back at released commits no transition at all.
	base := time.Now()
	e.Deliver(report(KeyFn, true, ModFn, "kb0", base))
	e.Deliver(report(KeyFn, false, 0, "kb0", base.Add(10*time.Millisecond)))

	expectNoToggle(t, sink, 100*time.Millisecond)
	waitMode(t, e, ModeIdle)
}

func TestEngineToggleShortcutCooldown(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{Binding: Binding{Code: KeySpace}, Enabled: true})
	e.Start()
	defer e.Stop()

	// Four taps at 0, 200, 400 and 700 ms with a 500 ms window: the
	// middle two are suppressed, and suppression does not defer.
	base := time.Now()
	e.Trigger(base)
	e.Trigger(base.Add(200 * time.Millisecond))
	e.Trigger(base.Add(400 * time.Millisecond))
	e.Trigger(base.Add(700 * time.Millisecond))

	if o := waitToggle(t, sink); o != OriginToggle {
		t.Errorf("origin = %s, want %s", o, OriginToggle)
	}
	waitToggle(t, sink)
	expectNoToggle(t, sink, 50*time.Millisecond)
}

func TestEngineReconfigureAbandonsPress(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{Binding: Binding{Code: KeySpace}, Enabled: true})
	e.Start()
	defer e.Stop()

	base := time.Now()
	e.Deliver(report(KeySpace, true, 0, "kb0", base))
	waitToggle(t, sink)
	waitMode(t, e, ModePTT)

	// Binding changes while the key is held. The press is abandoned
	// without a stop command and the old release means nothing now.
	e.Reconfigure(Options{Binding: Binding{Code: 63}, Enabled: true})
	waitMode(t, e, ModeIdle)
	e.Deliver(report(KeySpace, false, 0, "kb0", base.Add(1500*time.Millisecond)))
	expectNoToggle(t, sink, 50*time.Millisecond)

	// The new binding works from a clean slate.
	e.Deliver(report(63, true, 0, "kb0", base.Add(2*time.Second)))
	if o := waitToggle(t, sink); o != OriginPTT {
		t.Errorf("origin = %s, want %s", o, OriginPTT)
	}
}

func TestEngineDisabledDropsEverything(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{Binding: Binding{Code: KeySpace}, Enabled: false})
	e.Start()
	defer e.Stop()

	base := time.Now()
	e.Deliver(report(KeySpace, true, 0, "kb0", base))
	e.Trigger(base)
	expectNoToggle(t, sink, 50*time.Millisecond)
}

func TestEngineResetStrandsPendingDebounce(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{
		Binding:  Binding{Mods: ModFn, Noisy: true},
		Debounce: 50 * time.Millisecond,
		Enabled:  true,
	})
	e.Start()
	defer e.Stop()

	// Reset lands between the flip and its confirmation; the pending
	// generation is stale by the time the timer fires.
	e.Deliver(report(KeyFn, true, ModFn, "kb0", time.Now()))
	e.Reset()
	expectNoToggle(t, sink, 120*time.Millisecond)
	waitMode(t, e, ModeIdle)
}

func TestEngineMultipleCycles(t *testing.T) {
	sink := newRecordedSink()
	e := New(sink, Options{Binding: Binding{Code: KeySpace}, Enabled: true})
	e.Start()
	defer e.Stop()

	// Commands must strictly alternate start/stop over repeated holds.
	base := time.Now()
	for i := 0; i < 3; i++ {
		off := time.Duration(i) * 3 * time.Second
		e.Deliver(report(KeySpace, true, 0, "kb0", base.Add(off)))
		waitToggle(t, sink)
		e.Deliver(report(KeySpace, false, 0, "kb0", base.Add(off+1500*time.Millisecond)))
		waitToggle(t, sink)
	}
	expectNoToggle(t, sink, 50*time.Millisecond)
	waitMode(t, e, ModeIdle)
}
