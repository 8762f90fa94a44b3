//go:build !linux

package beep

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"hark/log"
)

var (
	otoCtx      *oto.Context
	startBuffer []byte
	endBuffer   []byte
	errorBuffer []byte
	soundOnce   sync.Once
)

func initSound() {
	var err error
	var ready chan struct{}
	otoCtx, ready, err = oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   50 * time.Millisecond,
	})
	if err != nil {
		log.Warnf("beep: audio output unavailable: %v", err)
		otoCtx = nil
		return
	}
	<-ready

	// Shorter ticks than the pulse path; oto's buffer adds its own tail.
	startBuffer = generateTick(sampleRate, startFreq, 0.03, startVolume, startDecay)
	endBuffer = generateTick(sampleRate, endFreq, 0.05, endVolume, endDecay)
	errorBuffer = generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay)
}

func generateTick(sampleRate int, freq, duration, volume, decay float64) []byte {
	n := int(float64(sampleRate) * duration)
	buf := new(bytes.Buffer)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		s := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		binary.Write(buf, binary.LittleEndian, s)
	}
	return buf.Bytes()
}

func generateDoubleBeep(sampleRate int, freq, beepDur, gapDur, volume, decay float64) []byte {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]byte, int(float64(sampleRate)*gapDur)*2)
	out := make([]byte, 0, len(beep)*2+len(gap))
	out = append(out, beep...)
	out = append(out, gap...)
	out = append(out, beep...)
	return out
}

func playBuffer(buf []byte) {
	if otoCtx == nil || len(buf) == 0 {
		return
	}
	player := otoCtx.NewPlayer(bytes.NewReader(buf))
	player.Play()
	go func() {
		for player.IsPlaying() {
			time.Sleep(10 * time.Millisecond)
		}
		player.Close()
	}()
}

// Init opens the output device early so the first cue is not clipped
// by device spin-up.
func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playBuffer(startBuffer)
}

func PlayEnd() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playBuffer(endBuffer)
}

func PlayError() {
	if disabled {
		return
	}
	soundOnce.Do(initSound)
	playBuffer(errorBuffer)
}
