package recorder

import "testing"

func heldMonitor() *silenceMonitor {
	return newSilenceMonitor(func() bool { return false })
}

func handsFreeMonitor() *silenceMonitor {
	return newSilenceMonitor(func() bool { return true })
}

func feedN(m *silenceMonitor, speech bool, n int) silenceEvent {
	var last silenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(speech)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := heldMonitor()
	// 79 ticks of silence, no warning yet
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != silenceNone {
			t.Fatalf("unexpected event at tick %d: %d", i, ev)
		}
	}
	// 80th tick triggers warning (8s)
	if ev := m.Tick(false); ev != silenceWarn {
		t.Fatalf("expected silenceWarn at tick 80, got %d", ev)
	}
}

func TestSilenceWarnClearsOnSpeech(t *testing.T) {
	m := heldMonitor()
	feedN(m, false, 80) // triggers warn

	// Sustained speech clears warning (need 25% of 80-tick window)
	for i := 0; i < 80; i++ {
		ev := m.Tick(true)
		if ev == silenceWarnClear {
			return
		}
	}
	t.Fatal("expected silenceWarnClear after speech")
}

func TestNoWarnDuringSpeech(t *testing.T) {
	m := heldMonitor()
	for i := 0; i < 200; i++ {
		if ev := m.Tick(true); ev == silenceWarn {
			t.Fatalf("unexpected warn during speech at tick %d", i)
		}
	}
}

func TestHandsFreeRepeatWarning(t *testing.T) {
	m := handsFreeMonitor()
	feedN(m, false, 80) // warn at tick 80
	// Next repeat at tick 80 + 80 = 160
	var gotRepeat bool
	for i := 0; i < 100; i++ {
		if ev := m.Tick(false); ev == silenceRepeat {
			gotRepeat = true
			break
		}
	}
	if !gotRepeat {
		t.Fatal("expected silenceRepeat in hands-free mode")
	}
}

func TestAutoClosePriorityOverRepeat(t *testing.T) {
	m := handsFreeMonitor()
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == silenceAutoClose {
			return
		}
		if i >= 300 && ev == silenceRepeat {
			t.Fatalf("silenceRepeat fired at tick %d instead of silenceAutoClose", i)
		}
	}
	t.Fatal("expected silenceAutoClose within 400 ticks")
}

func TestHandsFreeAutoClose(t *testing.T) {
	m := handsFreeMonitor()
	var gotClose bool
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == silenceAutoClose {
			gotClose = true
			break
		}
	}
	if !gotClose {
		t.Fatal("expected silenceAutoClose after 300 ticks")
	}
}

func TestNoAutoCloseWhileHeld(t *testing.T) {
	m := heldMonitor()
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev == silenceAutoClose {
			t.Fatalf("unexpected auto-close while key held at tick %d", i)
		}
	}
}

func TestAutoClosePreventedBySpeech(t *testing.T) {
	m := handsFreeMonitor()
	for i := 0; i < 500; i++ {
		speech := i%10 < 7
		if ev := m.Tick(speech); ev == silenceAutoClose {
			t.Fatalf("unexpected auto-close with speech at tick %d", i)
		}
	}
}

func TestNoRepeatWhileHeld(t *testing.T) {
	m := heldMonitor()
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == silenceRepeat {
			t.Fatalf("unexpected silenceRepeat while key held at tick %d", i)
		}
	}
}

func TestWarnOnlyOnce(t *testing.T) {
	m := heldMonitor()
	warns := 0
	for i := 0; i < 300; i++ {
		if ev := m.Tick(false); ev == silenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("expected exactly 1 silenceWarn while held, got %d", warns)
	}
}

func TestWarnStaysDuringNoise(t *testing.T) {
	m := heldMonitor()
	feedN(m, false, 80) // triggers warn

	// Occasional VAD false positives (< 25% speech) should NOT clear
	clears := 0
	for i := 0; i < 80; i++ {
		speech := i%10 == 0 // 10% speech, below clear threshold
		if ev := m.Tick(speech); ev == silenceWarnClear {
			clears++
		}
	}
	if clears > 0 {
		t.Fatalf("expected warning to stay with 10%% speech, got %d clears", clears)
	}
}

// The probe is consulted per tick, so flipping modes mid-take moves the
// monitor between gated and ungated behavior.
func TestProbeConsultedPerTick(t *testing.T) {
	handsFree := false
	m := newSilenceMonitor(func() bool { return handsFree })

	feedN(m, false, 350) // well past the auto-close window while held
	handsFree = true
	if ev := m.Tick(false); ev != silenceAutoClose {
		t.Fatalf("expected silenceAutoClose right after going hands-free, got %d", ev)
	}
}
