// Package audio abstracts microphone capture behind a small backend
// interface: pulse on linux, malgo elsewhere, and a fake for tests.
package audio

import "strings"

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses from the device name. Bluetooth mics negotiate a
// low-bitrate profile while capturing, so the pickers warn about them.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// ByName returns the device whose name contains want (case-insensitive),
// or nil when want is empty or nothing matches. Nil means system default.
func ByName(devices []DeviceInfo, want string) *DeviceInfo {
	if want == "" {
		return nil
	}
	lower := strings.ToLower(want)
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), lower) {
			return &devices[i]
		}
	}
	return nil
}
