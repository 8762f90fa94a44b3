package ptt

import (
	"testing"
	"time"
)

func TestComboEdgeFiresOncePerPress(t *testing.T) {
	c := NewComboEdge(Binding{Code: KeySpace, Mods: ModCtrl})
	at := time.Now()

	if !c.Feed(KeyEvent{Code: KeySpace, Down: true, Mods: ModCtrl, At: at}) {
		t.Fatal("press edge not reported")
	}
	// Repeat and duplicate reports of the same press stay quiet.
	if c.Feed(KeyEvent{Code: KeySpace, Down: true, Mods: ModCtrl, At: at}) {
		t.Fatal("duplicate press fired")
	}
	if c.Feed(KeyEvent{Code: KeySpace, Down: false, At: at}) {
		t.Fatal("release fired")
	}
	if !c.Feed(KeyEvent{Code: KeySpace, Down: true, Mods: ModCtrl, At: at}) {
		t.Fatal("second press edge not reported")
	}
}

func TestComboEdgeIgnoresOtherKeys(t *testing.T) {
	c := NewComboEdge(Binding{Code: KeySpace})
	if c.Feed(KeyEvent{Code: 30, Down: true, At: time.Now()}) {
		t.Fatal("unrelated key fired")
	}
}
