//go:build !linux

package audio

import (
	"encoding/hex"
	"fmt"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

type malgoContext struct {
	ctx *malgo.AllocatedContext
}

func NewContext() (Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return &malgoContext{ctx: ctx}, nil
}

// Device IDs cross the miniaudio boundary as opaque byte arrays; they
// travel through config files and tray menus hex-encoded.
func encodeDeviceID(id malgo.DeviceID) string {
	return hex.EncodeToString(id.Pointer()[:])
}

func decodeDeviceID(s string) (malgo.DeviceID, error) {
	var id malgo.DeviceID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid device ID: %w", err)
	}
	copy(id[:], b)
	return id, nil
}

func (m *malgoContext) Devices() ([]DeviceInfo, error) {
	devices, err := m.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("malgo devices: %w", err)
	}
	var result []DeviceInfo
	for _, d := range devices {
		result = append(result, DeviceInfo{ID: encodeDeviceID(d.ID), Name: d.Name()})
	}
	return result, nil
}

func (m *malgoContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = config.Channels
	cfg.SampleRate = config.SampleRate

	mc := &malgoCapture{name: "system default"}
	if device != nil {
		id, err := decodeDeviceID(device.ID)
		if err != nil {
			return nil, err
		}
		cfg.Capture.DeviceID = id.Pointer()
		mc.name = device.Name
	}

	dev, err := malgo.InitDevice(m.ctx.Context, cfg, malgo.DeviceCallbacks{Data: mc.consume})
	if err != nil {
		return nil, err
	}
	mc.device = dev
	return mc, nil
}

func (m *malgoContext) Close() {
	m.ctx.Uninit()
	m.ctx.Free()
}

type malgoCapture struct {
	device   *malgo.Device
	name     string
	callback atomic.Pointer[DataCallback]
}

// consume forwards captured frames to the registered callback. The
// first buffer is playback output, unused on a capture device.
func (c *malgoCapture) consume(_, data []byte, frames uint32) {
	if cb := c.callback.Load(); cb != nil {
		(*cb)(data, frames)
	}
}

func (c *malgoCapture) Start() error {
	return c.device.Start()
}

func (c *malgoCapture) Stop() {
	c.device.Stop()
}

func (c *malgoCapture) Close() {
	c.device.Uninit()
}

func (c *malgoCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *malgoCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *malgoCapture) DeviceName() string {
	return c.name
}
