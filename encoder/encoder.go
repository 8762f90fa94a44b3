// Package encoder turns captured PCM into the compressed payload uploaded
// for transcription. All capture runs at the fixed dictation format below.
package encoder

import (
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	AddEncodeTime(d time.Duration)
	EncodeTime() time.Duration
}

// New returns an encoder for the named format. Empty picks flac.
func New(format string) (Encoder, error) {
	switch format {
	case "", "flac":
		return NewFlac()
	case "wav":
		return NewWav(), nil
	default:
		return nil, fmt.Errorf("unknown audio format %q", format)
	}
}

func ContentType(format string) string {
	if format == "wav" {
		return "audio/wav"
	}
	return "audio/flac"
}
