// Package recorder owns the microphone session lifecycle. It is the
// consumer of toggle commands: each toggle opens or closes a take, and
// a closed take runs through encode, transcribe, optional enhancement,
// and clipboard delivery.
package recorder

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"hark/audio"
	"hark/clipboard"
	"hark/encoder"
	"hark/log"
	"hark/ptt"
	"hark/transcriber"
)

// ErrRecording rejects device swaps while a take is open.
var ErrRecording = errors.New("recording in progress")

const (
	// recordTail keeps capturing briefly after an auto-stop so trailing
	// speech is not clipped.
	recordTail        = 500 * time.Millisecond
	restoreDelay      = 600 * time.Millisecond
	transcribeTimeout = 60 * time.Second
	minTakeFrames     = encoder.SampleRate / 10
	cmdBuffer         = 8
)

// Take is one finished recording with everything downstream consumers
// (history, web, TUI) need to describe it.
type Take struct {
	ID          string
	Origin      ptt.Origin
	StartedAt   time.Time
	Duration    time.Duration
	Frames      uint64
	Format      string
	Provider    string
	Text        string
	Err         string
	NoSpeech    bool
	Enhanced    bool
	Style       int
	AutoStopped bool
}

// StatusSink receives recorder events. Implementations must not block;
// the monitor goroutine calls them at tick rate.
type StatusSink interface {
	RecordingStart(origin ptt.Origin, device string)
	RecordingStop(autoStopped bool)
	RecordingTick(seconds float64)
	AudioLevel(level float64)
	SilenceWarning(on bool)
	Finished(take Take, copied bool)
}

type nopStatus struct{}

func (nopStatus) RecordingStart(ptt.Origin, string) {}
func (nopStatus) RecordingStop(bool)                {}
func (nopStatus) RecordingTick(float64)             {}
func (nopStatus) AudioLevel(float64)                {}
func (nopStatus) SilenceWarning(bool)               {}
func (nopStatus) Finished(Take, bool)               {}

type Options struct {
	Format     string // "flac" or "wav", empty picks flac
	Language   string
	MaxSeconds int // hard cap per take, 0 disables
	AutoPaste  bool
}

type cmdKind int

const (
	cmdToggle cmdKind = iota
	cmdCancel
	cmdAuto
)

type command struct {
	kind   cmdKind
	origin ptt.Origin
	takeID string
}

type Recorder struct {
	status StatusSink
	trans  transcriber.Transcriber

	mu      sync.Mutex
	capture audio.CaptureDevice
	device  string
	opts    Options
	enh     transcriber.Enhancer

	handsFree  func() bool
	onAutoStop func()

	enhanceOn atomic.Bool
	style     atomic.Int32

	cur *take // run loop only

	cmd       chan command
	visible   chan bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
	recording atomic.Bool
	finishWG  sync.WaitGroup
}

// take is one in-flight recording. The capture callback and the monitor
// goroutine share it until the run loop tears it down.
type take struct {
	id      string
	origin  ptt.Origin
	started time.Time
	opts    Options
	capture audio.CaptureDevice
	enc     encoder.Encoder
	vp      *vadProcessor
	frames  atomic.Uint64
	level   atomic.Uint64 // float64 bits
	monStop chan struct{}
	monDone chan struct{}
}

func (t *take) storeLevel(v float64) { t.level.Store(math.Float64bits(v)) }
func (t *take) loadLevel() float64   { return math.Float64frombits(t.level.Load()) }

func New(status StatusSink, trans transcriber.Transcriber, opts Options) *Recorder {
	if status == nil {
		status = nopStatus{}
	}
	if opts.Format == "" {
		opts.Format = "flac"
	}
	r := &Recorder{
		status:  status,
		trans:   trans,
		opts:    opts,
		cmd:     make(chan command, cmdBuffer),
		visible: make(chan bool, 1),
		stopCh:  make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.style.Store(1)
	return r
}

// Use installs the capture device. Rejected while a take is open.
func (r *Recorder) Use(capture audio.CaptureDevice, device string) error {
	if r.recording.Load() {
		return ErrRecording
	}
	r.mu.Lock()
	old := r.capture
	r.capture = capture
	r.device = device
	r.mu.Unlock()
	if old != nil && old != capture {
		old.Close()
	}
	return nil
}

// SetOptions applies config changes. An open take keeps the options it
// started with.
func (r *Recorder) SetOptions(opts Options) {
	if opts.Format == "" {
		opts.Format = "flac"
	}
	r.mu.Lock()
	r.opts = opts
	r.mu.Unlock()
}

func (r *Recorder) SetEnhancer(e transcriber.Enhancer) {
	r.mu.Lock()
	r.enh = e
	r.mu.Unlock()
}

// SetHandsFreeProbe wires the mode query used to gate silence
// auto-stop. Configure before Start.
func (r *Recorder) SetHandsFreeProbe(fn func() bool) { r.handsFree = fn }

// OnAutoStop registers the callback fired after a take ends on its own,
// so the app can reconcile hotkey state. Configure before Start.
func (r *Recorder) OnAutoStop(fn func()) { r.onAutoStop = fn }

func (r *Recorder) Start() {
	go r.run()
}

// Stop closes the recorder. An open take is flushed, not discarded.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// Done closes once the run loop and all pending transcriptions finish.
func (r *Recorder) Done() <-chan struct{} { return r.done }

// ToggleRecording implements ptt.CommandSink. Never blocks: if the
// queue is full the command is dropped and logged.
func (r *Recorder) ToggleRecording(origin ptt.Origin) {
	select {
	case r.cmd <- command{kind: cmdToggle, origin: origin}:
	case <-r.stopCh:
	default:
		log.Warnf("recorder: command queue full, dropping toggle from %s", origin)
	}
}

// Cancel discards the open take without transcribing it.
func (r *Recorder) Cancel() {
	select {
	case r.cmd <- command{kind: cmdCancel}:
	case <-r.stopCh:
	default:
		log.Warnf("recorder: command queue full, dropping cancel")
	}
}

func (r *Recorder) postAuto(takeID string) {
	select {
	case r.cmd <- command{kind: cmdAuto, takeID: takeID}:
	case <-r.stopCh:
	default:
	}
}

func (r *Recorder) Recording() bool { return r.recording.Load() }

func (r *Recorder) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

// Visible is a latest-value stream of the capture state. Consumers that
// lag see only the newest value, never a stale one.
func (r *Recorder) Visible() <-chan bool { return r.visible }

func (r *Recorder) pushVisible(v bool) {
	select {
	case r.visible <- v:
		return
	default:
	}
	select {
	case <-r.visible:
	default:
	}
	select {
	case r.visible <- v:
	default:
	}
}

// ToggleEnhance flips transcript enhancement and returns the new state.
func (r *Recorder) ToggleEnhance() bool {
	for {
		old := r.enhanceOn.Load()
		if r.enhanceOn.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (r *Recorder) Enhancing() bool { return r.enhanceOn.Load() }

// SetStyle picks the enhancement style, 1 through 9.
func (r *Recorder) SetStyle(n int) {
	if n < 1 || n > 9 {
		return
	}
	r.style.Store(int32(n))
	log.Infof("enhancement style %d (%s)", n, transcriber.StyleLabel(n))
}

func (r *Recorder) Style() int { return int(r.style.Load()) }

func (r *Recorder) run() {
	for {
		select {
		case <-r.stopCh:
			if r.cur != nil {
				r.end(false, false)
			}
			r.finishWG.Wait()
			close(r.done)
			return
		case c := <-r.cmd:
			switch c.kind {
			case cmdToggle:
				if r.cur == nil {
					r.begin(c.origin)
				} else {
					r.end(false, false)
				}
			case cmdCancel:
				if r.cur != nil {
					r.end(true, false)
				}
			case cmdAuto:
				// Stale if the take already ended by hand.
				if r.cur != nil && r.cur.id == c.takeID {
					r.end(false, true)
				}
			}
		}
	}
}

func (r *Recorder) begin(origin ptt.Origin) {
	r.mu.Lock()
	capture, device, opts := r.capture, r.device, r.opts
	r.mu.Unlock()

	if capture == nil {
		log.Errorf("recorder: no capture device configured")
		return
	}

	enc, err := encoder.New(opts.Format)
	if err != nil {
		log.Errorf("recorder: %v", err)
		return
	}
	vp, err := newVADProcessor()
	if err != nil {
		log.Errorf("recorder: vad init: %v", err)
		return
	}

	t := &take{
		id:      uuid.NewString(),
		origin:  origin,
		started: time.Now(),
		opts:    opts,
		capture: capture,
		enc:     enc,
		vp:      vp,
		monStop: make(chan struct{}),
		monDone: make(chan struct{}),
	}

	if w, ok := r.trans.(interface{ Warm() }); ok {
		go w.Warm()
	}

	capture.SetCallback(func(data []byte, frameCount uint32) {
		t.frames.Add(uint64(frameCount))
		samples := make([]int16, len(data)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
		}
		encStart := time.Now()
		if err := enc.EncodeBlock(samples); err != nil {
			log.Debugf("recorder: encode: %v", err)
		}
		enc.AddEncodeTime(time.Since(encStart))
		t.storeLevel(rms(samples))
		vp.Process(data)
	})

	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		log.Errorf("recorder: capture start: %v", err)
		return
	}

	r.cur = t
	r.recording.Store(true)
	r.pushVisible(true)
	log.SessionStart(string(origin), device, opts.Format)
	r.status.RecordingStart(origin, device)

	go r.monitor(t)
}

// monitor drives ticks, level events, and the silence state machine
// until the take is torn down or it decides to end the take itself.
func (r *Recorder) monitor(t *take) {
	mon := newSilenceMonitor(r.probeHandsFree)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	maxDur := time.Duration(t.opts.MaxSeconds) * time.Second

	for {
		select {
		case <-t.monStop:
			close(t.monDone)
			return
		case <-ticker.C:
		}

		elapsed := time.Since(t.started)
		r.status.RecordingTick(elapsed.Seconds())
		r.status.AudioLevel(t.loadLevel())

		switch mon.Tick(t.vp.HasSpeechTick()) {
		case silenceWarn, silenceRepeat:
			r.status.SilenceWarning(true)
		case silenceWarnClear:
			r.status.SilenceWarning(false)
		case silenceAutoClose:
			log.Infof("recorder: auto-stop after %.0fs of silence", silenceAutoCloseDur.Seconds())
			time.Sleep(recordTail)
			r.postAuto(t.id)
			close(t.monDone)
			return
		}

		if maxDur > 0 && elapsed >= maxDur {
			log.Infof("recorder: max duration %s reached", maxDur)
			r.postAuto(t.id)
			close(t.monDone)
			return
		}
	}
}

func (r *Recorder) probeHandsFree() bool {
	if r.handsFree == nil {
		return false
	}
	return r.handsFree()
}

func (r *Recorder) end(discard, auto bool) {
	t := r.cur
	r.cur = nil

	close(t.monStop)
	<-t.monDone

	t.capture.Stop()
	t.capture.ClearCallback()

	r.recording.Store(false)
	r.pushVisible(false)

	dur := time.Since(t.started)
	log.SessionEnd(string(t.origin), dur.Seconds(), auto)
	r.status.RecordingStop(auto)

	if auto && r.onAutoStop != nil {
		go r.onAutoStop()
	}

	frames := t.frames.Load()
	if discard {
		log.Infof("recorder: take canceled, discarding %.1fs", dur.Seconds())
		t.enc.Close()
		return
	}
	if frames < minTakeFrames {
		log.Infof("recording too short (%d frames), skipping transcription", frames)
		t.enc.Close()
		return
	}

	r.finishWG.Add(1)
	go func() {
		defer r.finishWG.Done()
		r.finish(t, dur, auto)
	}()
}

func (r *Recorder) finish(t *take, dur time.Duration, auto bool) {
	tk := Take{
		ID:          t.id,
		Origin:      t.origin,
		StartedAt:   t.started,
		Duration:    dur,
		Frames:      t.frames.Load(),
		Format:      t.opts.Format,
		Provider:    r.trans.Name(),
		AutoStopped: auto,
	}

	if err := t.enc.Close(); err != nil {
		log.Warnf("recorder: encoder close: %v", err)
	}
	data := t.enc.Bytes()

	ctx, cancel := context.WithTimeout(context.Background(), transcribeTimeout)
	defer cancel()

	res, err := r.trans.Transcribe(ctx, transcriber.Request{
		Audio:    data,
		Format:   t.opts.Format,
		Language: t.opts.Language,
	})
	if err != nil {
		log.Errorf("transcription failed: %v", err)
		tk.Err = err.Error()
		r.status.Finished(tk, false)
		return
	}

	r.logMetrics(t, res, data, dur)

	text := strings.TrimSpace(res.Text)
	if text == "" {
		log.Infof("no speech detected in %.1fs of audio", dur.Seconds())
		tk.NoSpeech = true
		r.status.Finished(tk, false)
		return
	}

	if r.enhanceOn.Load() {
		r.mu.Lock()
		enh := r.enh
		r.mu.Unlock()
		if enh != nil {
			style := r.Style()
			enhanced, err := enh.Enhance(ctx, text, style)
			if err != nil {
				log.Warnf("enhancement failed, keeping raw transcript: %v", err)
			} else {
				text = enhanced
				tk.Enhanced = true
				tk.Style = style
			}
		}
	}
	tk.Text = text
	log.TranscriptionText(text)

	copied := r.deliver(text, t.opts.AutoPaste)
	r.status.Finished(tk, copied)
}

// deliver puts the transcript on the clipboard and optionally pastes it
// into the focused window, restoring the previous clipboard afterwards.
func (r *Recorder) deliver(text string, autoPaste bool) bool {
	prev, prevErr := clipboard.Read()

	if err := clipboard.Copy(text); err != nil {
		log.Warnf("clipboard copy failed: %v", err)
		return false
	}

	if autoPaste {
		if err := clipboard.Paste(); err != nil {
			log.Warnf("paste failed: %v", err)
		} else if prevErr == nil {
			time.Sleep(restoreDelay)
			if err := clipboard.Copy(prev); err != nil {
				log.Debugf("clipboard restore failed: %v", err)
			}
		}
	}
	return true
}

func (r *Recorder) logMetrics(t *take, res *transcriber.Result, data []byte, dur time.Duration) {
	nm := res.Metrics
	if nm == nil {
		nm = &transcriber.NetworkMetrics{}
	}
	rawSize := t.frames.Load() * 2
	audioLen := float64(t.frames.Load()) / float64(encoder.SampleRate)
	compressionPct := 0.0
	if rawSize > 0 {
		compressionPct = (1 - float64(len(data))/float64(rawSize)) * 100
	}
	log.TranscriptionMetrics(log.Metrics{
		AudioLengthS:     audioLen,
		RawSizeKB:        float64(rawSize) / 1024,
		CompressedSizeKB: float64(len(data)) / 1024,
		CompressionPct:   compressionPct,
		EncodeTimeMs:     float64(t.enc.EncodeTime().Milliseconds()),
		DNSTimeMs:        float64(nm.DNS.Milliseconds()),
		TLSTimeMs:        float64(nm.TLS.Milliseconds()),
		TTFBMs:           float64(nm.TTFB.Milliseconds()),
		TotalTimeMs:      float64(nm.Sum().Milliseconds()),
	}, string(t.origin), t.opts.Format, r.trans.Name(), nm.ConnReused, nm.TLSProtocol)
	if res.Confidence > 0 {
		log.Confidence(res.Confidence)
	}
}

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		n := float64(s) / 32768
		sum += n * n
	}
	return math.Sqrt(sum / float64(len(samples)))
}
