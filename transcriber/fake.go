package transcriber

import (
	"context"
	"strings"
	"sync"
)

// FakeTranscriber returns a fixed result and records every request it saw.
type FakeTranscriber struct {
	text string
	err  error

	mu   sync.Mutex
	reqs []Request
}

func NewFake(text string, err error) *FakeTranscriber {
	return &FakeTranscriber{text: text, err: err}
}

func (f *FakeTranscriber) Name() string { return "fake" }

func (f *FakeTranscriber) Transcribe(_ context.Context, req Request) (*Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	return &Result{
		Text:     f.text,
		Metrics:  &NetworkMetrics{},
		Duration: float64(len(req.Audio)) / 32000, // 16kHz s16 mono
	}, nil
}

// Requests returns a copy of every request seen so far.
func (f *FakeTranscriber) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.reqs))
	copy(out, f.reqs)
	return out
}

// FakeEnhancer uppercases, so tests can tell enhanced output apart.
type FakeEnhancer struct {
	Err error

	mu     sync.Mutex
	styles []int
}

func (f *FakeEnhancer) Name() string { return "fake" }

func (f *FakeEnhancer) Enhance(_ context.Context, text string, style int) (string, error) {
	f.mu.Lock()
	f.styles = append(f.styles, style)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	return strings.ToUpper(text), nil
}

func (f *FakeEnhancer) Styles() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.styles))
	copy(out, f.styles)
	return out
}
