package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"hark/audio"
	"hark/beep"
	"hark/config"
	"hark/encoder"
	"hark/keymon"
	"hark/log"
	"hark/ptt"
	"hark/recorder"
	"hark/shortcuts"
	"hark/transcriber"
)

// testSink wraps the fan so scripted runs see each finished take on
// stdout and can block until it lands.
type testSink struct {
	*statusFan
	done chan recorder.Take
}

func (s *testSink) Finished(take recorder.Take, copied bool) {
	s.statusFan.Finished(take, copied)
	switch {
	case take.Err != "":
		fmt.Printf("TAKE error=%q\n", take.Err)
	case take.NoSpeech:
		fmt.Println("TAKE nospeech")
	default:
		fmt.Printf("TAKE origin=%s enhanced=%v auto=%v text=%q\n", take.Origin, take.Enhanced, take.AutoStopped, take.Text)
	}
	select {
	case s.done <- take:
	default:
	}
}

// runTestMode drives the real engine, recorder, and shortcut registrar
// with fakes on every outside edge: scripted key events instead of a
// monitor, canned audio instead of a microphone, and a fixed
// transcript instead of a provider. Commands arrive one per line on
// stdin.
func runTestMode(cfg *config.Config) {
	beep.Disable()

	var actx audio.Context
	if wav := flag.Arg(0); wav != "" {
		fc, err := audio.NewFakeContext(wav, true)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
			os.Exit(1)
		}
		actx = fc
	} else {
		actx = audio.NewFakeContextPCM(testTone(2000), true)
	}
	capture, err := actx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate, Channels: encoder.Channels,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating capture: %v\n", err)
		os.Exit(1)
	}
	defer capture.Close()
	fakeCapture := capture.(*audio.FakeCapture)

	trans := transcriber.NewFake("the quick brown fox", nil)
	fan := &statusFan{}
	sink := &testSink{statusFan: fan, done: make(chan recorder.Take, 8)}

	rec := recorder.New(sink, trans, recorder.Options{
		Format:     cfg.Audio.Format,
		Language:   cfg.Transcription.Language,
		MaxSeconds: cfg.Audio.MaxSeconds,
	})
	fan.bind(rec)
	rec.SetEnhancer(&transcriber.FakeEnhancer{})
	if err := rec.Use(capture, "fake"); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts, err := cfg.Hotkey.Options()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	eng := ptt.New(rec, opts)
	rec.SetHandsFreeProbe(eng.HandsFree)
	rec.OnAutoStop(eng.Reset)
	eng.Start()
	rec.Start()

	binding := opts.Binding
	fake := keymon.NewFake(eng.Deliver)

	binder := &shortcuts.FakeBinder{}
	reg := shortcuts.NewRegistrar(binder, takeActions{
		rec:     rec,
		fan:     fan,
		escape:  cfg.Shortcuts.Escape,
		enhance: cfg.Shortcuts.Enhance != "",
		prompts: cfg.Shortcuts.Prompts,
	})
	go reg.Run(rec.Visible())

	quit := func() {
		eng.Stop()
		rec.Stop()
		select {
		case <-rec.Done():
		case <-time.After(5 * time.Second):
		}
		log.Close()
		os.Exit(0)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "KEYDOWN":
			fake.SimKey(binding.Code, true, binding.Mods)
		case cmd == "KEYUP":
			fake.SimKey(binding.Code, false, 0)
		case cmd == "TOGGLE":
			eng.Trigger(time.Now())
		case cmd == "CANCEL":
			binder.Press(shortcuts.Event{Action: shortcuts.ActionCancel})
		case cmd == "ENHANCE":
			binder.Press(shortcuts.Event{Action: shortcuts.ActionEnhance})
		case cmd == "WAIT":
			<-sink.done
		case cmd == "WAIT_AUDIO_DONE":
			<-fakeCapture.AudioDone()
		case cmd == "QUIT":
			quit()
		case strings.HasPrefix(cmd, "STYLE "):
			if n, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				binder.Press(shortcuts.Event{Action: shortcuts.ActionStyle, Style: n})
			}
		case strings.HasPrefix(cmd, "SLEEP "):
			if ms, err := strconv.Atoi(strings.TrimSpace(cmd[6:])); err == nil {
				time.Sleep(time.Duration(ms) * time.Millisecond)
			}
		}
	}
	quit()
}

// testTone is durationMs of 440Hz sine, loud enough for the voice
// detector to treat as speech.
func testTone(durationMs int) []byte {
	n := encoder.SampleRate * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		sample := int16(16000 * math.Sin(2*math.Pi*440*float64(i)/encoder.SampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(sample))
	}
	return buf
}
