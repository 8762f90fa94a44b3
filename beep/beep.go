// Package beep plays the short cues around a take: a tick when
// capture opens, a lower tick when it closes, a double beep on error.
package beep

var disabled bool

// Disable silences all cues. Used by the headless harness and the
// beep=false config switch.
func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Start cue: high pitch, snappy
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End cue: lower, slightly longer tail
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error cue: low double beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)
