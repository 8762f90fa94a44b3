package recorder

import "time"

const (
	tickInterval        = 100 * time.Millisecond
	silenceWarnEvery    = 8 * time.Second
	silenceAutoCloseDur = 30 * time.Second
	speechMinRatio      = 0.10
	speechClearRatio    = 0.25 // higher threshold to clear warning (hysteresis)
)

type silenceEvent int

const (
	silenceNone      silenceEvent = iota
	silenceWarn                   // no voice detected
	silenceWarnClear              // speech resumed after warning
	silenceRepeat                 // repeat warning (every 8s)
	silenceAutoClose              // 30s auto-close (hands-free only)
)

// silenceMonitor watches the per-tick speech signal over a sliding
// window. Warnings fire in any mode; auto-close and repeats only when
// the handsFree probe says nobody is holding the key.
type silenceMonitor struct {
	warnAt   int
	windowSz int

	handsFree func() bool

	ticks       int
	window      []bool
	speechCount int
	warned      bool
	lastWarn    int
}

func newSilenceMonitor(handsFree func() bool) *silenceMonitor {
	warnAt := int(silenceWarnEvery / tickInterval)
	windowSz := int(silenceAutoCloseDur / tickInterval)
	return &silenceMonitor{
		warnAt:    warnAt,
		windowSz:  windowSz,
		handsFree: handsFree,
		window:    make([]bool, windowSz),
	}
}

func (m *silenceMonitor) ratio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.windowSz)%m.windowSz] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *silenceMonitor) Tick(hasSpeech bool) silenceEvent {
	idx := m.ticks % m.windowSz
	if m.ticks >= m.windowSz && m.window[idx] {
		m.speechCount--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechCount++
	}
	m.ticks++

	r := m.ratio(m.warnAt)

	// Warn: 8s window below threshold
	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarn = m.ticks
		return silenceWarn
	}
	// Clear: speech ratio above clear threshold
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return silenceWarnClear
	}

	if !m.handsFree() {
		return silenceNone
	}

	// Auto-close: 30s window below threshold (checked before repeat)
	if m.ticks >= m.windowSz && float64(m.speechCount)/float64(m.windowSz) < speechMinRatio {
		return silenceAutoClose
	}

	// Repeat warning every 8s
	if m.warned && m.ticks-m.lastWarn >= m.warnAt {
		m.lastWarn = m.ticks
		return silenceRepeat
	}

	return silenceNone
}
