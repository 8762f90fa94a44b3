//go:build linux

package audio

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"

	"hark/log"
)

// Software gain on top of the tripled source volume. Laptop mics capture
// dictation-distance speech well below full scale without it.
const (
	captureGain    = 8
	captureLatency = 0.05
)

type pulseContext struct {
	client *pulse.Client
}

func NewContext() (Context, error) {
	c, err := pulse.NewClient()
	if err != nil {
		return nil, fmt.Errorf("pulse: %w", err)
	}
	return &pulseContext{client: c}, nil
}

// Devices lists capture sources. Monitor sources mirror speaker output
// and are useless for dictation, so they are skipped.
func (p *pulseContext) Devices() ([]DeviceInfo, error) {
	sources, err := p.client.ListSources()
	if err != nil {
		return nil, fmt.Errorf("pulse list sources: %w", err)
	}
	var devices []DeviceInfo
	for _, s := range sources {
		if strings.HasSuffix(s.ID(), ".monitor") {
			continue
		}
		devices = append(devices, DeviceInfo{ID: s.ID(), Name: s.Name()})
	}
	return devices, nil
}

func (p *pulseContext) NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	return &pulseCapture{
		client: p.client,
		device: device,
		config: config,
	}, nil
}

func (p *pulseContext) Close() {
	p.client.Close()
}

type pulseCapture struct {
	client   *pulse.Client
	device   *DeviceInfo
	config   CaptureConfig
	callback atomic.Pointer[DataCallback]

	stream *pulse.RecordStream
	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
}

func (c *pulseCapture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stream, err := c.client.NewRecord(pulse.Int16Writer(c.consume), c.recordOpts()...)
	if err != nil {
		return fmt.Errorf("pulse record: %w", err)
	}

	c.stream = stream
	c.stop = make(chan struct{})
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		stream.Start()
		<-c.stop
		stream.Stop()
		stream.Close()
	}()

	return nil
}

// consume receives raw samples from pulse, applies gain, and forwards
// them to the registered callback as little-endian bytes.
func (c *pulseCapture) consume(buf []int16) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	cb := c.callback.Load()
	if cb == nil {
		return len(buf), nil
	}
	data := make([]byte, len(buf)*2)
	for i, s := range buf {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(boost(s)))
	}
	(*cb)(data, uint32(len(buf)))
	return len(buf), nil
}

// boost applies captureGain with int16 saturation.
func boost(s int16) int16 {
	v := int32(s) * captureGain
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

func (c *pulseCapture) recordOpts() []pulse.RecordOption {
	opts := []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(int(c.config.SampleRate)),
		pulse.RecordLatency(captureLatency),
		pulse.RecordRawOption(func(r *proto.CreateRecordStream) {
			// Triple the source volume server-side before our own gain.
			vol := uint32(proto.VolumeNorm) * 3
			r.ChannelVolumes = proto.ChannelVolumes{vol}
		}),
	}
	if c.device != nil {
		source, err := c.client.SourceByID(c.device.ID)
		if err == nil && source != nil {
			opts = append(opts, pulse.RecordSource(source))
		} else {
			log.Warnf("audio: source %q unavailable, falling back to default", c.device.Name)
		}
	}
	return opts
}

func (c *pulseCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		select {
		case <-c.stop:
		default:
			close(c.stop)
		}
		<-c.done
	}
}

func (c *pulseCapture) Close() {
	c.Stop()
}

func (c *pulseCapture) SetCallback(cb DataCallback) {
	c.callback.Store(&cb)
}

func (c *pulseCapture) ClearCallback() {
	c.callback.Store(nil)
}

func (c *pulseCapture) DeviceName() string {
	if c.device != nil {
		return c.device.Name
	}
	return "system default"
}
