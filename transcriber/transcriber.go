// Package transcriber uploads finished recordings to a speech-to-text
// provider and normalizes the responses. Providers are batch-only: the
// whole encoded take goes up in one multipart request.
package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"
)

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Segment struct {
	Text             string
	NoSpeechProb     float64
	AvgLogProb       float64
	CompressionRatio float64
	Temperature      float64
	Start            float64
	End              float64
}

type Result struct {
	Text         string
	Metrics      *NetworkMetrics
	RateLimit    string
	Confidence   float64
	NoSpeechProb float64
	AvgLogProb   float64
	Duration     float64
	Segments     []Segment
}

// Request carries one encoded take. Prompt biases the model toward
// domain vocabulary, it is not an instruction.
type Request struct {
	Audio    []byte
	Format   string // "flac" or "wav"
	Language string // ISO 639-1, empty for auto-detect
	Prompt   string
}

type Transcriber interface {
	Name() string
	Transcribe(ctx context.Context, req Request) (*Result, error)
}

// New picks a provider. Empty name selects by available API key.
func New(provider string) (Transcriber, error) {
	groqKey := os.Getenv("GROQ_API_KEY")
	openaiKey := os.Getenv("OPENAI_API_KEY")

	switch provider {
	case "groq":
		if groqKey == "" {
			return nil, fmt.Errorf("provider groq selected but GROQ_API_KEY is not set")
		}
		return NewGroq(groqKey), nil
	case "openai":
		if openaiKey == "" {
			return nil, fmt.Errorf("provider openai selected but OPENAI_API_KEY is not set")
		}
		return NewOpenAI(openaiKey), nil
	case "":
		if groqKey != "" {
			return NewGroq(groqKey), nil
		}
		if openaiKey != "" {
			return NewOpenAI(openaiKey), nil
		}
		return nil, fmt.Errorf("set GROQ_API_KEY or OPENAI_API_KEY environment variable")
	default:
		return nil, fmt.Errorf("unknown transcription provider %q", provider)
	}
}
