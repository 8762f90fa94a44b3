package main

import (
	"sync"
	"time"

	"hark/beep"
	"hark/clipboard"
	"hark/history"
	"hark/log"
	"hark/ptt"
	"hark/recorder"
	"hark/transcriber"
	"hark/tray"
	"hark/web"
)

// statusFan implements recorder.StatusSink and forwards each event to
// whichever surfaces are running. The tray and HUD setters no-op when
// that surface is off; store and web are skipped when nil.
type statusFan struct {
	store *history.Store
	web   *web.Server
	rec   *recorder.Recorder

	mu       sync.Mutex
	origin   ptt.Origin
	lastText string
}

// bind attaches the recorder after construction. The recorder wants
// its sink at New time, so the fan exists first.
func (f *statusFan) bind(rec *recorder.Recorder) { f.rec = rec }

func (f *statusFan) RecordingStart(origin ptt.Origin, device string) {
	f.mu.Lock()
	f.origin = origin
	f.mu.Unlock()
	beep.PlayStart()
	tray.SetRecording(true)
	sendTUI(RecordingStartMsg{Origin: origin, Device: device})
	if f.web != nil {
		f.web.BroadcastStatus()
	}
}

func (f *statusFan) RecordingStop(autoStopped bool) {
	beep.PlayEnd()
	tray.SetRecording(false)
	sendTUI(RecordingStopMsg{})
	if f.web != nil {
		f.web.BroadcastStatus()
	}
}

func (f *statusFan) RecordingTick(seconds float64) {
	sendTUI(RecordingTickMsg{Seconds: seconds})
}

func (f *statusFan) AudioLevel(level float64) {
	sendTUI(AudioLevelMsg{Level: level})
}

func (f *statusFan) SilenceWarning(on bool) {
	tray.SetWarning(on)
	sendTUI(SilenceMsg{On: on})
}

func (f *statusFan) Finished(take recorder.Take, copied bool) {
	if take.Err != "" {
		beep.PlayError()
		tray.SetError(take.Err)
	} else {
		if !take.NoSpeech {
			f.mu.Lock()
			f.lastText = take.Text
			f.mu.Unlock()
		}
		// Time spent after capture ended: transcribe, enhance, paste.
		proc := time.Since(take.StartedAt) - take.Duration
		if proc < 0 {
			proc = 0
		}
		tray.SetLastTake(take.Duration, float64(proc.Milliseconds()))
	}
	sendTUI(TakeMsg{Take: take, Copied: copied})
	if f.store != nil {
		if err := f.store.Save(take); err != nil {
			log.Errorf("history: %v", err)
		}
	}
	if f.web != nil {
		f.web.BroadcastTake(take)
		f.web.BroadcastStatus()
	}
}

// webStatus snapshots the state the dashboard shows.
func (f *statusFan) webStatus() web.Status {
	f.mu.Lock()
	origin := f.origin
	f.mu.Unlock()
	s := web.Status{Mode: string(origin)}
	if f.rec != nil {
		s.Recording = f.rec.Recording()
		s.Device = f.rec.DeviceName()
		s.Enhance = f.rec.Enhancing()
		s.Style = f.rec.Style()
		s.StyleLabel = transcriber.StyleLabel(f.rec.Style())
	}
	return s
}

// copyLast re-copies the newest transcript, for the tray menu entry.
func (f *statusFan) copyLast() {
	f.mu.Lock()
	text := f.lastText
	f.mu.Unlock()
	if text == "" {
		return
	}
	if err := clipboard.Copy(text); err != nil {
		log.Errorf("copy last take: %v", err)
	}
}

// enhanceChanged pushes the current enhancement state to every surface,
// so the tray checkbox tracks the keyboard shortcut and vice versa.
func (f *statusFan) enhanceChanged() {
	if f.rec == nil {
		return
	}
	tray.SetEnhance(f.rec.Enhancing())
	sendTUI(EnhanceMsg{On: f.rec.Enhancing(), Style: f.rec.Style()})
	if f.web != nil {
		f.web.BroadcastStatus()
	}
}

// takeActions routes the in-take shortcuts through the recorder and
// then nudges the surfaces. Each shortcut can be switched off in the
// config; a disabled one is swallowed here rather than unbound, so
// the binder stays uniform across platforms.
type takeActions struct {
	rec     *recorder.Recorder
	fan     *statusFan
	escape  bool
	enhance bool
	prompts bool
}

func (a takeActions) Cancel() {
	if !a.escape {
		return
	}
	a.rec.Cancel()
}

func (a takeActions) ToggleEnhance() bool {
	if !a.enhance {
		return a.rec.Enhancing()
	}
	on := a.rec.ToggleEnhance()
	a.fan.enhanceChanged()
	return on
}

func (a takeActions) SetStyle(n int) {
	if !a.prompts {
		return
	}
	a.rec.SetStyle(n)
	a.fan.enhanceChanged()
}
