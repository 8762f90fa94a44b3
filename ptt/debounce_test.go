package ptt

import (
	"testing"
	"time"
)

func TestDebounceSupersede(t *testing.T) {
	var d debounce
	g1 := d.flip()
	g2 := d.flip()
	if d.commit(g1) {
		t.Fatal("superseded generation must be inert")
	}
	if !d.commit(g2) {
		t.Fatal("current generation must commit")
	}
	if d.commit(g2) {
		t.Fatal("a generation commits at most once")
	}
}

func TestDebounceCancel(t *testing.T) {
	var d debounce
	g := d.flip()
	d.cancel()
	if d.commit(g) {
		t.Fatal("canceled generation must be inert")
	}
}

func TestCooldownWindow(t *testing.T) {
	c := cooldown{every: 500 * time.Millisecond}
	base := time.Now()

	if !c.tryTrigger(base) {
		t.Fatal("first trigger must fire")
	}
	if c.tryTrigger(base.Add(200 * time.Millisecond)) {
		t.Fatal("trigger inside window must be suppressed")
	}
	if c.tryTrigger(base.Add(400 * time.Millisecond)) {
		t.Fatal("trigger inside window must be suppressed")
	}
	// Suppressed triggers did not push the window forward.
	if !c.tryTrigger(base.Add(700 * time.Millisecond)) {
		t.Fatal("trigger past window must fire")
	}
}

func TestCooldownExactBoundary(t *testing.T) {
	c := cooldown{every: 500 * time.Millisecond}
	base := time.Now()
	c.tryTrigger(base)
	if !c.tryTrigger(base.Add(500 * time.Millisecond)) {
		t.Fatal("trigger at exactly the window must fire")
	}
}
