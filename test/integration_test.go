//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"hark/clipboard"
	"hark/config"
)

// Drives the built binary in -test mode: scripted key events on stdin,
// fake audio and a fake transcriber inside, TAKE lines on stdout.
// Build and point HARK_TEST_BIN at the result:
//
//	go build -o hark . && HARK_TEST_BIN=$PWD/hark go test -tags integration ./test

var (
	testBinary string
	toneWAV    string
)

const fakeTranscript = "the quick brown fox"

func TestMain(m *testing.M) {
	testBinary = os.Getenv("HARK_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "HARK_TEST_BIN not set; build hark and export HARK_TEST_BIN=<path>")
		os.Exit(1)
	}

	dir, err := os.MkdirTemp("", "hark-integration-")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer os.RemoveAll(dir)

	toneWAV = filepath.Join(dir, "tone.wav")
	if err := generateToneWAV(toneWAV, 16000, 2.0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

// generateToneWAV writes durationS of 440Hz mono 16-bit PCM, loud
// enough for the voice detector.
func generateToneWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		s := int16(16000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(s))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

// runHark runs one scripted session against a fresh config and log
// dir. mutate, when set, edits the default config before the run.
func runHark(t *testing.T, stdin string, mutate func(*config.Config), args ...string) (output, logDir string) {
	t.Helper()
	dir := t.TempDir()
	logDir = filepath.Join(dir, "logs")
	configPath := filepath.Join(dir, "config.toml")

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("load default config: %v", err)
	}
	if mutate != nil {
		mutate(cfg)
		if err := config.Save(configPath, cfg); err != nil {
			t.Fatalf("save config: %v", err)
		}
	}

	cmdArgs := append([]string{"-config", configPath, "-logpath", logDir, "-test"}, args...)
	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("hark exited with error: %v\noutput: %s", err, out)
	}
	return string(out), logDir
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestHoldReleaseProducesTake(t *testing.T) {
	out, logDir := runHark(t, cmds("KEYDOWN", "SLEEP 1200", "KEYUP", "WAIT", "QUIT"), nil, toneWAV)
	if !strings.Contains(out, "TAKE origin=ptt") {
		t.Errorf("expected a ptt take, got: %s", out)
	}
	if !strings.Contains(out, fakeTranscript) {
		t.Errorf("expected transcript in output, got: %s", out)
	}
	if strings.TrimSpace(readLog(t, logDir, "transcribe_log.txt")) == "" {
		t.Error("transcribe_log.txt is empty, expected transcribed words")
	}
}

func TestBriefPressEntersHandsFree(t *testing.T) {
	// A brief press flips into hands-free: the release is absorbed and
	// recording runs until the next press. One take total.
	out, _ := runHark(t, cmds("KEYDOWN", "SLEEP 200", "KEYUP", "SLEEP 500", "KEYDOWN", "KEYUP", "WAIT", "QUIT"), nil, toneWAV)
	if got := strings.Count(out, "TAKE "); got != 1 {
		t.Errorf("expected exactly 1 take, got %d in: %s", got, out)
	}
}

func TestToggleShortcut(t *testing.T) {
	out, _ := runHark(t, cmds("TOGGLE", "SLEEP 800", "TOGGLE", "WAIT", "QUIT"), nil, toneWAV)
	if !strings.Contains(out, "TAKE origin=toggle") {
		t.Errorf("expected a toggle take, got: %s", out)
	}
}

func TestFlickerSuppressed(t *testing.T) {
	// Down and up inside the debounce window settles back to released;
	// nothing should record.
	out, _ := runHark(t, cmds("KEYDOWN", "SLEEP 20", "KEYUP", "SLEEP 400", "QUIT"), nil, toneWAV)
	if strings.Contains(out, "TAKE ") {
		t.Errorf("expected no take for a sub-debounce flicker, got: %s", out)
	}
}

func TestCancelDiscardsTake(t *testing.T) {
	out, _ := runHark(t, cmds("TOGGLE", "SLEEP 300", "CANCEL", "SLEEP 300", "QUIT"), nil, toneWAV)
	if strings.Contains(out, "TAKE ") {
		t.Errorf("expected no take after cancel, got: %s", out)
	}
}

func TestEnhanceUppercases(t *testing.T) {
	out, _ := runHark(t, cmds("TOGGLE", "SLEEP 200", "ENHANCE", "STYLE 3", "SLEEP 600", "TOGGLE", "WAIT", "QUIT"), nil, toneWAV)
	if !strings.Contains(out, "enhanced=true") {
		t.Errorf("expected an enhanced take, got: %s", out)
	}
	if !strings.Contains(out, strings.ToUpper(fakeTranscript)) {
		t.Errorf("expected uppercased transcript, got: %s", out)
	}
}

func TestMaxSecondsAutoStop(t *testing.T) {
	out, _ := runHark(t, cmds("KEYDOWN", "WAIT", "QUIT"), func(cfg *config.Config) {
		cfg.Audio.MaxSeconds = 1
	}, toneWAV)
	if !strings.Contains(out, "auto=true") {
		t.Errorf("expected an auto-stopped take, got: %s", out)
	}
}

func TestTranscriptOnClipboard(t *testing.T) {
	runHark(t, cmds("KEYDOWN", "SLEEP 1200", "KEYUP", "WAIT", "QUIT"), nil, toneWAV)
	clip, err := clipboard.Read()
	if err != nil {
		t.Skip("clipboard not available")
	}
	if strings.TrimSpace(clip) != fakeTranscript {
		t.Errorf("clipboard = %q, want %q", strings.TrimSpace(clip), fakeTranscript)
	}
}
