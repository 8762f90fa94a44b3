// Package doctor runs the interactive -doctor diagnostics: config,
// input monitor, capture and transcription, clipboard output.
package doctor

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"hark/audio"
	"hark/clipboard"
	"hark/config"
	"hark/encoder"
	"hark/keymon"
	"hark/ptt"
	"hark/transcriber"
)

// Run executes the checks in order and returns an exit code, 0 when
// everything passed. Later checks are skipped once one fails.
func Run(configPath string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("hark doctor - interactive system diagnostics")
	fmt.Println("============================================")

	cfg, allPass := checkConfig(configPath)
	if allPass && !checkMonitor(cfg) {
		allPass = false
	}
	if allPass && !checkMicAndTranscription(cfg) {
		allPass = false
	}
	if allPass && !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(path string) (*config.Config, bool) {
	fmt.Println()
	fmt.Println("[1/4] Configuration")

	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			fmt.Printf("  FAIL: config directory: %v\n", err)
			return nil, false
		}
		path = p
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}
	opts, err := cfg.Hotkey.Options()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}
	if _, err := cfg.Hotkey.ToggleBinding(); err != nil {
		fmt.Printf("  FAIL: toggle shortcut: %v\n", err)
		return nil, false
	}
	if _, err := encoder.New(cfg.Audio.Format); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}

	fmt.Printf("  PASS: %s (combo %s)\n", path, opts.Binding)
	return cfg, true
}

func checkMonitor(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[2/4] Input monitor")

	msg, err := keymon.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  %s\n", msg)

	opts, err := cfg.Hotkey.Options()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	binding := opts.Binding
	fmt.Printf("Press %s...\n", binding)

	// Reports can arrive from several device readers; the edge
	// detector is guarded so duplicates collapse to one hit.
	var mu sync.Mutex
	edge := ptt.NewComboEdge(binding)
	pressed := make(chan struct{}, 1)
	mon := keymon.New(binding, func(ev ptt.KeyEvent) {
		mu.Lock()
		hit := edge.Feed(ev)
		mu.Unlock()
		if hit {
			select {
			case pressed <- struct{}{}:
			default:
			}
		}
	})
	if err := mon.Start(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	defer mon.Stop()

	select {
	case <-pressed:
		fmt.Println("  PASS: binding detected")
		// Let the release land before the next step reads stdin.
		time.Sleep(500 * time.Millisecond)
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for the binding")
		return false
	}
}

func checkMicAndTranscription(cfg *config.Config) bool {
	fmt.Println()
	fmt.Println("[3/4] Microphone and transcription")

	reader := bufio.NewReader(os.Stdin)

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var device *audio.DeviceInfo
	if len(devices) == 1 {
		device = &devices[0]
		fmt.Printf("Using device: %s\n", device.Name)
	} else {
		fmt.Println()
		fmt.Println("Select input device:")
		for i, d := range devices {
			fmt.Printf("  %d. %s\n", i+1, d.Name)
		}
		fmt.Printf("Choice [1-%d]: ", len(devices))

		devChoice, _ := reader.ReadString('\n')
		devChoice = strings.TrimSpace(devChoice)
		idx := 0
		if devChoice != "" {
			fmt.Sscanf(devChoice, "%d", &idx)
			idx--
		}
		if idx < 0 || idx >= len(devices) {
			fmt.Println("  FAIL: invalid choice")
			return false
		}
		device = &devices[idx]
		fmt.Printf("Selected: %s\n", device.Name)
	}

	fmt.Println()
	fmt.Println("Select transcription provider:")
	fmt.Println("  1. Groq")
	fmt.Println("  2. OpenAI")
	fmt.Print("Choice [1/2]: ")

	choice, _ := reader.ReadString('\n')
	var provider string
	switch strings.TrimSpace(choice) {
	case "1", "":
		provider = "groq"
	case "2":
		provider = "openai"
	default:
		fmt.Printf("  FAIL: invalid choice %q\n", strings.TrimSpace(choice))
		return false
	}

	trans, err := transcriber.New(provider)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Println()
	fmt.Print("Press Enter and speak for 3 seconds...")
	reader.ReadString('\n')

	stop := make(chan struct{})
	go func() {
		time.Sleep(3 * time.Second)
		close(stop)
	}()

	pcm, err := recordAudio(ctx, device, stop)
	if err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return false
	}
	if len(pcm) == 0 {
		fmt.Println("  FAIL: no audio captured")
		return false
	}

	data, err := encodePCM(pcm, cfg.Audio.Format)
	if err != nil {
		fmt.Printf("  FAIL: encoding error: %v\n", err)
		return false
	}

	fmt.Printf("  Recorded %.1f KB, transcribing...\n", float64(len(data))/1024)

	tctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	result, err := trans.Transcribe(tctx, transcriber.Request{
		Audio:    data,
		Format:   cfg.Audio.Format,
		Language: cfg.Transcription.Language,
	})
	if err != nil {
		fmt.Printf("  FAIL: transcription error: %v\n", err)
		return false
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		text = "(no speech detected)"
	}
	fmt.Printf("\n  Transcribed text: %s\n\n", text)

	// Fresh reader so leftover input is not mistaken for the answer.
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Print("Is this correct? [y/n]: ")
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm == "y" || confirm == "yes" {
		fmt.Println("  PASS: transcription verified by user")
		return true
	}
	fmt.Println("  FAIL: transcription not confirmed")
	return false
}

func recordAudio(ctx audio.Context, device *audio.DeviceInfo, stop <-chan struct{}) ([]byte, error) {
	var pcmBuf []byte
	var bufMu sync.Mutex
	done := make(chan struct{})

	cfg := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}

	capture, err := ctx.NewCapture(device, cfg)
	if err != nil {
		return nil, err
	}

	capture.SetCallback(func(data []byte, frameCount uint32) {
		bufMu.Lock()
		pcmBuf = append(pcmBuf, data...)
		bufMu.Unlock()
	})

	if err := capture.Start(); err != nil {
		capture.Close()
		return nil, err
	}

	fmt.Print("  Recording")
	ticker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	<-stop
	close(done)

	capture.Stop()
	capture.ClearCallback()
	fmt.Println(" done")
	capture.Close()

	bufMu.Lock()
	raw := pcmBuf
	bufMu.Unlock()
	return raw, nil
}

func encodePCM(pcm []byte, format string) ([]byte, error) {
	enc, err := encoder.New(format)
	if err != nil {
		return nil, err
	}
	block := make([]int16, 0, encoder.BlockSize)
	for i := 0; i+1 < len(pcm); i += 2 {
		block = append(block, int16(binary.LittleEndian.Uint16(pcm[i:])))
		if len(block) == encoder.BlockSize {
			if err := enc.EncodeBlock(block); err != nil {
				return nil, err
			}
			block = block[:0]
		}
	}
	if len(block) > 0 {
		if err := enc.EncodeBlock(block); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[4/4] Clipboard and paste")

	if err := clipboard.Init(); err != nil {
		fmt.Printf("  FAIL: paste init: %v\n", err)
		if runtime.GOOS == "linux" {
			fmt.Println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
		return false
	}
	msg, err := clipboard.Verify()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  %s\n", msg)

	testStr := fmt.Sprintf("hark-doctor-%d", time.Now().UnixNano()%10000)
	if err := clipboard.Copy(testStr); err != nil {
		fmt.Printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}
	got, err := clipboard.Read()
	if err != nil {
		fmt.Printf("  FAIL: clipboard read failed: %v\n", err)
		return false
	}
	if got != testStr {
		fmt.Printf("  FAIL: clipboard mismatch: wrote %q, got %q\n", testStr, got)
		return false
	}
	fmt.Println("  clipboard write/read verified")

	fmt.Println("Focus a text editor window...")
	for i := 5; i > 0; i-- {
		fmt.Printf("  %d...\n", i)
		time.Sleep(1 * time.Second)
	}

	if err := clipboard.Paste(); err != nil {
		fmt.Printf("  FAIL: paste failed: %v\n", err)
		return false
	}

	resetTerminal()
	confirmReader := bufio.NewReader(os.Stdin)
	fmt.Println()
	fmt.Printf("Did the text %q appear? [y/n]: ", testStr)
	confirm, _ := confirmReader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))

	if confirm != "y" && confirm != "yes" {
		fmt.Println("  FAIL: clipboard/paste not confirmed")
		return false
	}
	fmt.Println("  PASS: clipboard and paste verified by user")
	return true
}
