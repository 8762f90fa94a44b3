package audio

import (
	"os"
	"sync"
	"time"

	"hark/encoder"
)

// Fake backends replay canned PCM through the CaptureDevice interface.
// Once the recording runs dry the capture keeps producing silence, so
// level meters and silence detection see the same stream shape a quiet
// microphone would give them.

const (
	fakeBlockFrames = 1024
	fakeBlockBytes  = fakeBlockFrames * 2 // 16-bit mono
)

type FakeContext struct {
	pcm      []byte
	realtime bool
}

// NewFakeContext replays the sample data of a WAV file. The 44-byte
// header is skipped, not parsed; feed it 16kHz mono PCM.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return &FakeContext{pcm: data, realtime: realtime}, nil
}

// NewFakeContextPCM builds a fake backend from raw 16-bit mono samples.
func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) { return nil, nil }
func (f *FakeContext) Close()                         {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{pcm: f.pcm, realtime: f.realtime, audioDone: make(chan struct{})}, nil
}

// FakeCapture pushes the canned samples through the registered
// callback. In realtime mode blocks arrive paced at the capture rate;
// otherwise the whole recording lands inside Start.
type FakeCapture struct {
	pcm       []byte
	realtime  bool
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

// AudioDone closes once every canned sample has been delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} { return f.audioDone }

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

// push hands one block to cb and reports the new read position.
func (f *FakeCapture) push(cb DataCallback, pos int) int {
	end := min(pos+fakeBlockBytes, len(f.pcm))
	block := make([]byte, end-pos)
	copy(block, f.pcm[pos:end])
	cb(block, uint32(len(block)/2))
	return end
}

func (f *FakeCapture) Start() error {
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	// audioDone stays as-is: callers may already be waiting on it.
	// Stop resets it for replay.

	if f.realtime {
		go f.feedPaced()
		return nil
	}

	// Drain everything up front so tests see the whole take without
	// waiting, then idle with silence.
	if cb := f.callback(); cb != nil {
		for pos := 0; pos < len(f.pcm); {
			pos = f.push(cb, pos)
		}
	}
	close(f.audioDone)
	go f.feedSilence()
	return nil
}

// feedPaced replays the recording at the true capture rate, then
// switches to silence.
func (f *FakeCapture) feedPaced() {
	defer close(f.feedDone)
	interval := time.Duration(fakeBlockFrames) * time.Second / time.Duration(encoder.SampleRate)
	silence := make([]byte, fakeBlockBytes)
	pos := 0
	drained := false

	for {
		select {
		case <-f.stopCh:
			return
		default:
		}

		cb := f.callback()
		if cb == nil {
			time.Sleep(time.Millisecond)
			continue
		}

		if pos < len(f.pcm) {
			pos = f.push(cb, pos)
		} else {
			if !drained {
				drained = true
				close(f.audioDone)
			}
			cb(silence, fakeBlockFrames)
		}

		select {
		case <-f.stopCh:
			return
		case <-time.After(interval):
		}
	}
}

func (f *FakeCapture) feedSilence() {
	defer close(f.feedDone)
	silence := make([]byte, fakeBlockBytes)
	for {
		select {
		case <-f.stopCh:
			return
		case <-time.After(time.Millisecond):
		}
		if cb := f.callback(); cb != nil {
			cb(silence, fakeBlockFrames)
		}
	}
}

func (f *FakeCapture) Stop() {
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	if f.feedDone != nil {
		<-f.feedDone
	}
	f.audioDone = make(chan struct{}) // reset for replay
}

func (f *FakeCapture) Close() {}
