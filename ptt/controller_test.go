package ptt

import (
	"testing"
	"time"
)

func edgeAt(t *testing.T, c *controller, pressed bool, at time.Time) (bool, Origin) {
	t.Helper()
	return c.edge(pressed, at)
}

func TestControllerHoldStops(t *testing.T) {
	c := &controller{threshold: time.Second}
	base := time.Now()

	emit, origin := edgeAt(t, c, true, base)
	if !emit || origin != OriginPTT {
		t.Fatalf("press: emit=%v origin=%s, want start from ptt", emit, origin)
	}
	if c.mode != ModePTT {
		t.Fatalf("mode after press = %s, want %s", c.mode, ModePTT)
	}

	emit, origin = edgeAt(t, c, false, base.Add(time.Second))
	if !emit || origin != OriginPTT {
		t.Fatalf("release at threshold: emit=%v origin=%s, want stop", emit, origin)
	}
	if c.mode != ModeIdle {
		t.Fatalf("mode after release = %s, want %s", c.mode, ModeIdle)
	}
}

func TestControllerBriefPressGoesHandsFree(t *testing.T) {
	c := &controller{threshold: time.Second}
	base := time.Now()

	edgeAt(t, c, true, base)
	emit, _ := edgeAt(t, c, false, base.Add(999*time.Millisecond))
	if emit {
		t.Fatal("brief release must not emit")
	}
	if c.mode != ModeHandsFree {
		t.Fatalf("mode = %s, want %s", c.mode, ModeHandsFree)
	}
}

func TestControllerHandsFreePressStops(t *testing.T) {
	c := &controller{threshold: time.Second}
	base := time.Now()

	edgeAt(t, c, true, base)
	edgeAt(t, c, false, base.Add(200*time.Millisecond))

	emit, origin := edgeAt(t, c, true, base.Add(5*time.Second))
	if !emit || origin != OriginHandsFree {
		t.Fatalf("hands-free press: emit=%v origin=%s, want stop", emit, origin)
	}
	if c.mode != ModeIdle {
		t.Fatalf("mode = %s, want %s", c.mode, ModeIdle)
	}

	// The release of the stop gesture is an orphan.
	if emit, _ := edgeAt(t, c, false, base.Add(5100*time.Millisecond)); emit {
		t.Fatal("orphan release must not emit")
	}
}

func TestControllerOrphanRelease(t *testing.T) {
	c := &controller{threshold: time.Second}
	if emit, _ := edgeAt(t, c, false, time.Now()); emit {
		t.Fatal("release from idle must not emit")
	}
	if c.mode != ModeIdle {
		t.Fatalf("mode = %s, want %s", c.mode, ModeIdle)
	}
}

func TestControllerResetMidPress(t *testing.T) {
	c := &controller{threshold: time.Second}
	base := time.Now()

	edgeAt(t, c, true, base)
	c.reset()
	if c.mode != ModeIdle {
		t.Fatalf("mode after reset = %s, want %s", c.mode, ModeIdle)
	}

	// The release of the abandoned press means nothing.
	if emit, _ := edgeAt(t, c, false, base.Add(2*time.Second)); emit {
		t.Fatal("release after reset must not emit")
	}
}
