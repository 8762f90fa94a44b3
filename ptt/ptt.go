// Package ptt turns raw, possibly duplicated keyboard reports into
// recording toggle commands. A single engine goroutine owns all state:
// reports are deduplicated, optionally debounced, then classified by
// press duration into push-to-talk or hands-free recording.
package ptt

// Mode is the engine's view of the recording lifecycle. It tracks what
// the engine has commanded, not what the recorder is actually doing.
type Mode int32

const (
	ModeIdle Mode = iota
	ModePTT
	ModeHandsFree
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePTT:
		return "ptt"
	case ModeHandsFree:
		return "hands-free"
	}
	return "unknown"
}

// Origin tags a toggle command with the interaction that produced it.
type Origin string

const (
	OriginPTT       Origin = "ptt"
	OriginHandsFree Origin = "hands-free"
	OriginToggle    Origin = "toggle"
)

// CommandSink receives recording toggle commands from the engine.
// ToggleRecording must return promptly; implementations queue the work
// internally. The engine never waits for an outcome and never learns
// whether the toggle took effect.
type CommandSink interface {
	ToggleRecording(origin Origin)
}
