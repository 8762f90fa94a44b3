package history

import (
	"path/filepath"
	"testing"
	"time"

	"hark/ptt"
	"hark/recorder"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTake(id string, started time.Time, text string) recorder.Take {
	return recorder.Take{
		ID:        id,
		Origin:    ptt.OriginPTT,
		StartedAt: started,
		Duration:  2300 * time.Millisecond,
		Frames:    36800,
		Format:    "flac",
		Provider:  "groq",
		Text:      text,
	}
}

func TestSaveAndRecent(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := s.Save(sampleTake("a", base, "first take")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(sampleTake("b", base.Add(time.Minute), "second take")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	takes, err := s.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(takes) != 2 {
		t.Fatalf("got %d takes, want 2", len(takes))
	}
	if takes[0].ID != "b" || takes[1].ID != "a" {
		t.Errorf("wrong order: %s, %s", takes[0].ID, takes[1].ID)
	}
	if takes[0].Text != "second take" {
		t.Errorf("text = %q", takes[0].Text)
	}
	if takes[0].Origin != ptt.OriginPTT {
		t.Errorf("origin = %q", takes[0].Origin)
	}
	if takes[0].Duration != 2300*time.Millisecond {
		t.Errorf("duration = %v", takes[0].Duration)
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		take := sampleTake(string(rune('a'+i)), base.Add(time.Duration(i)*time.Second), "text")
		if err := s.Save(take); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	takes, err := s.Recent(3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(takes) != 3 {
		t.Errorf("got %d takes, want 3", len(takes))
	}
	if n, err := s.Count(); err != nil || n != 5 {
		t.Errorf("Count = %d, %v; want 5", n, err)
	}
}

func TestTotalsSkipFailures(t *testing.T) {
	s := openTestStore(t)
	base := time.Now().UTC()

	good := sampleTake("ok", base, "three words here")
	if err := s.Save(good); err != nil {
		t.Fatalf("Save: %v", err)
	}

	failed := sampleTake("bad", base.Add(time.Second), "")
	failed.Err = "api error"
	if err := s.Save(failed); err != nil {
		t.Fatalf("Save failed take: %v", err)
	}

	silent := sampleTake("quiet", base.Add(2*time.Second), "")
	silent.NoSpeech = true
	if err := s.Save(silent); err != nil {
		t.Fatalf("Save silent take: %v", err)
	}

	totals, err := s.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if totals.Takes != 1 {
		t.Errorf("Takes = %d, want only the successful one", totals.Takes)
	}
	if totals.Words != 3 {
		t.Errorf("Words = %d, want 3", totals.Words)
	}
	if totals.Seconds != 2.3 {
		t.Errorf("Seconds = %v, want 2.3", totals.Seconds)
	}
}

func TestDuplicateIDRejected(t *testing.T) {
	s := openTestStore(t)
	take := sampleTake("dup", time.Now().UTC(), "text")
	if err := s.Save(take); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(take); err == nil {
		t.Error("expected primary key violation on duplicate id")
	}
}
