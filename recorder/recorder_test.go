package recorder

import (
	"errors"
	"testing"
	"time"

	"hark/audio"
	"hark/ptt"
	"hark/transcriber"
)

var errBoom = errors.New("boom")

type statusRec struct {
	started  chan ptt.Origin
	stopped  chan bool
	finished chan Take
}

func newStatusRec() *statusRec {
	return &statusRec{
		started:  make(chan ptt.Origin, 4),
		stopped:  make(chan bool, 4),
		finished: make(chan Take, 4),
	}
}

func (s *statusRec) RecordingStart(origin ptt.Origin, _ string) { s.started <- origin }
func (s *statusRec) RecordingStop(auto bool)                    { s.stopped <- auto }
func (s *statusRec) RecordingTick(float64)                      {}
func (s *statusRec) AudioLevel(float64)                         {}
func (s *statusRec) SilenceWarning(bool)                        {}
func (s *statusRec) Finished(take Take, _ bool)                 { s.finished <- take }

func waitStarted(t *testing.T, s *statusRec, want ptt.Origin) {
	t.Helper()
	select {
	case got := <-s.started:
		if got != want {
			t.Fatalf("started with origin %q, want %q", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for recording start")
	}
}

func waitStopped(t *testing.T, s *statusRec, wantAuto bool) {
	t.Helper()
	select {
	case auto := <-s.stopped:
		if auto != wantAuto {
			t.Fatalf("stopped with auto=%v, want %v", auto, wantAuto)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for recording stop")
	}
}

func waitTake(t *testing.T, s *statusRec) Take {
	t.Helper()
	select {
	case take := <-s.finished:
		return take
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for finished take")
		return Take{}
	}
}

func expectNoTake(t *testing.T, s *statusRec) {
	t.Helper()
	select {
	case take := <-s.finished:
		t.Fatalf("unexpected finished take: %+v", take)
	case <-time.After(200 * time.Millisecond):
	}
}

func waitVisible(t *testing.T, r *Recorder, want bool) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case v := <-r.Visible():
			if v == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for visible=%v", want)
		}
	}
}

func newTestRecorder(t *testing.T, status *statusRec, trans transcriber.Transcriber, opts Options) *Recorder {
	t.Helper()
	ctx := audio.NewFakeContextPCM(genTone(440, 1000), false)
	cap, err := ctx.NewCapture(nil, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	r := New(status, trans, opts)
	if err := r.Use(cap, "fake"); err != nil {
		t.Fatalf("Use: %v", err)
	}
	return r
}

func closeRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	r.Stop()
	select {
	case <-r.Done():
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for recorder shutdown")
	}
}

func TestTakeRoundTrip(t *testing.T) {
	status := newStatusRec()
	fake := transcriber.NewFake("hello from fake", nil)
	r := newTestRecorder(t, status, fake, Options{Format: "flac"})
	r.Start()
	defer closeRecorder(t, r)

	r.ToggleRecording(ptt.OriginPTT)
	waitStarted(t, status, ptt.OriginPTT)
	waitVisible(t, r, true)
	if !r.Recording() {
		t.Fatal("Recording() = false during take")
	}

	time.Sleep(50 * time.Millisecond)
	r.ToggleRecording(ptt.OriginPTT)
	waitStopped(t, status, false)
	waitVisible(t, r, false)

	take := waitTake(t, status)
	if take.Text != "hello from fake" {
		t.Errorf("text = %q", take.Text)
	}
	if take.Origin != ptt.OriginPTT {
		t.Errorf("origin = %q", take.Origin)
	}
	if take.Provider != "fake" {
		t.Errorf("provider = %q", take.Provider)
	}
	if take.Frames < 16000 {
		t.Errorf("frames = %d, want at least the 1s of seeded audio", take.Frames)
	}
	if take.NoSpeech || take.AutoStopped || take.Enhanced {
		t.Errorf("unexpected flags in %+v", take)
	}
	if take.ID == "" {
		t.Error("take has no id")
	}

	reqs := fake.Requests()
	if len(reqs) != 1 {
		t.Fatalf("transcriber saw %d requests, want 1", len(reqs))
	}
	if reqs[0].Format != "flac" || len(reqs[0].Audio) == 0 {
		t.Errorf("request format=%q audio=%d bytes", reqs[0].Format, len(reqs[0].Audio))
	}
}

func TestCancelDiscardsTake(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("discarded", nil), Options{})
	r.Start()
	defer closeRecorder(t, r)

	r.ToggleRecording(ptt.OriginHandsFree)
	waitStarted(t, status, ptt.OriginHandsFree)
	time.Sleep(30 * time.Millisecond)

	r.Cancel()
	waitStopped(t, status, false)
	expectNoTake(t, status)
}

func TestEmptyTranscriptReportsNoSpeech(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("   ", nil), Options{})
	r.Start()
	defer closeRecorder(t, r)

	r.ToggleRecording(ptt.OriginPTT)
	waitStarted(t, status, ptt.OriginPTT)
	time.Sleep(30 * time.Millisecond)
	r.ToggleRecording(ptt.OriginPTT)
	waitStopped(t, status, false)

	take := waitTake(t, status)
	if !take.NoSpeech {
		t.Error("expected NoSpeech for whitespace transcript")
	}
	if take.Text != "" {
		t.Errorf("text = %q, want empty", take.Text)
	}
}

func TestTranscribeErrorReported(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("", errBoom), Options{})
	r.Start()
	defer closeRecorder(t, r)

	r.ToggleRecording(ptt.OriginPTT)
	waitStarted(t, status, ptt.OriginPTT)
	time.Sleep(30 * time.Millisecond)
	r.ToggleRecording(ptt.OriginPTT)
	waitStopped(t, status, false)

	take := waitTake(t, status)
	if take.Err == "" {
		t.Error("expected take.Err to carry the transcription failure")
	}
	if take.Text != "" {
		t.Errorf("text = %q, want empty on failure", take.Text)
	}
}

func TestMaxDurationAutoStops(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("capped", nil), Options{MaxSeconds: 1})
	autoStopped := make(chan struct{}, 1)
	r.OnAutoStop(func() { autoStopped <- struct{}{} })
	r.Start()
	defer closeRecorder(t, r)

	r.ToggleRecording(ptt.OriginHandsFree)
	waitStarted(t, status, ptt.OriginHandsFree)

	waitStopped(t, status, true)
	select {
	case <-autoStopped:
	case <-time.After(time.Second):
		t.Fatal("OnAutoStop callback never fired")
	}

	take := waitTake(t, status)
	if !take.AutoStopped {
		t.Error("expected AutoStopped flag")
	}
	if take.Text != "capped" {
		t.Errorf("text = %q", take.Text)
	}
}

func TestEnhancedTake(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("make it loud", nil), Options{})
	enh := &transcriber.FakeEnhancer{}
	r.SetEnhancer(enh)
	r.Start()
	defer closeRecorder(t, r)

	if !r.ToggleEnhance() {
		t.Fatal("ToggleEnhance should report on")
	}
	r.SetStyle(4)

	r.ToggleRecording(ptt.OriginHandsFree)
	waitStarted(t, status, ptt.OriginHandsFree)
	time.Sleep(30 * time.Millisecond)
	r.ToggleRecording(ptt.OriginHandsFree)
	waitStopped(t, status, false)

	take := waitTake(t, status)
	if take.Text != "MAKE IT LOUD" {
		t.Errorf("text = %q, want enhancer output", take.Text)
	}
	if !take.Enhanced || take.Style != 4 {
		t.Errorf("enhanced=%v style=%d", take.Enhanced, take.Style)
	}
	if styles := enh.Styles(); len(styles) != 1 || styles[0] != 4 {
		t.Errorf("enhancer saw styles %v", styles)
	}
}

func TestEnhanceFailureKeepsRawText(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("raw text", nil), Options{})
	r.SetEnhancer(&transcriber.FakeEnhancer{Err: errBoom})
	r.Start()
	defer closeRecorder(t, r)

	r.ToggleEnhance()
	r.ToggleRecording(ptt.OriginPTT)
	waitStarted(t, status, ptt.OriginPTT)
	time.Sleep(30 * time.Millisecond)
	r.ToggleRecording(ptt.OriginPTT)
	waitStopped(t, status, false)

	take := waitTake(t, status)
	if take.Text != "raw text" {
		t.Errorf("text = %q, want raw transcript", take.Text)
	}
	if take.Enhanced {
		t.Error("take should not be marked enhanced after a failed rewrite")
	}
}

func TestUseRejectedWhileRecording(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("x", nil), Options{})
	r.Start()
	defer closeRecorder(t, r)

	r.ToggleRecording(ptt.OriginPTT)
	waitStarted(t, status, ptt.OriginPTT)

	ctx := audio.NewFakeContextPCM(nil, false)
	cap2, _ := ctx.NewCapture(nil, audio.CaptureConfig{SampleRate: 16000, Channels: 1})
	if err := r.Use(cap2, "other"); err != ErrRecording {
		t.Fatalf("Use during take = %v, want ErrRecording", err)
	}

	r.ToggleRecording(ptt.OriginPTT)
	waitStopped(t, status, false)
}

func TestBackToBackTakes(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("again", nil), Options{})
	r.Start()
	defer closeRecorder(t, r)

	for i := 0; i < 2; i++ {
		r.ToggleRecording(ptt.OriginHandsFree)
		waitStarted(t, status, ptt.OriginHandsFree)
		time.Sleep(30 * time.Millisecond)
		r.ToggleRecording(ptt.OriginHandsFree)
		waitStopped(t, status, false)
		take := waitTake(t, status)
		if take.Text != "again" {
			t.Fatalf("take %d text = %q", i, take.Text)
		}
	}
}

func TestStopFlushesOpenTake(t *testing.T) {
	status := newStatusRec()
	r := newTestRecorder(t, status, transcriber.NewFake("flushed", nil), Options{})
	r.Start()

	r.ToggleRecording(ptt.OriginHandsFree)
	waitStarted(t, status, ptt.OriginHandsFree)
	time.Sleep(30 * time.Millisecond)

	closeRecorder(t, r)

	take := waitTake(t, status)
	if take.Text != "flushed" {
		t.Errorf("text = %q, want the shutdown flush to transcribe", take.Text)
	}
}
