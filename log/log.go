package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

type Metrics struct {
	AudioLengthS     float64
	RawSizeKB        float64
	CompressedSizeKB float64
	CompressionPct   float64
	EncodeTimeMs     float64
	DNSTimeMs        float64
	TLSTimeMs        float64
	TTFBMs           float64
	TotalTimeMs      float64
}

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: HARK_LOG_PATH environment variable
	envPath := os.Getenv("HARK_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

// ToggleCommand records a recording toggle handed to the sink and the
// engine mode after the edge that produced it.
func ToggleCommand(origin, mode string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("origin", origin).
		Str("mode", mode).
		Msg("toggle_command")
}

// EngineReset records an abandoned in-flight press.
func EngineReset(reason string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("reason", reason).
		Msg("engine_reset")
}

func SessionStart(origin, device, format string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("origin", origin).
		Str("device", device).
		Str("format", format).
		Msg("session_start")
}

func SessionEnd(origin string, seconds float64, autoStopped bool) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("origin", origin).
		Float64("audio_s", seconds).
		Bool("auto_stopped", autoStopped).
		Msg("session_end")
}

func TranscriptionMetrics(m Metrics, origin, format, provider string, connReused bool, tlsProto string) {
	if !logReady {
		return
	}

	connStatus := "new"
	if connReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("origin", origin).
		Str("format", format).
		Str("provider", provider).
		Str("conn", connStatus)
	if tlsProto != "" {
		ev = ev.Str("tls_proto", tlsProto)
	}
	ev.Float64("audio_s", m.AudioLengthS).
		Float64("raw_kb", m.RawSizeKB).
		Float64("compressed_kb", m.CompressedSizeKB).
		Float64("compression_pct", m.CompressionPct).
		Float64("encode_ms", m.EncodeTimeMs).
		Float64("dns_ms", m.DNSTimeMs).
		Float64("tls_ms", m.TLSTimeMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalTimeMs).
		Msg("transcription")
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func Confidence(confidence float64) {
	if !logReady {
		return
	}
	if confidence > 0 {
		diagLog.Info().Float64("confidence", confidence).Msg("api_confidence")
	}
}
