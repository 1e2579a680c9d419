// Package malgo is the producer side of the voice pipeline: it owns the
// microphone array device and feeds fixed-length interleaved frames into a
// voice.Context via SubmitFrame, exactly the "driver/DMA path" spec.md
// treats as an external collaborator. Grounded on internal/audio/capture.go's
// malgo device lifecycle, generalized from mono float32 loopback capture to
// multi-channel int16 PCM sized to the pipeline's frame length.
package malgo

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
)

// FrameSink is the narrow interface the capturer feeds — satisfied by a small
// adapter around *voice.Context (the demo's pipelineSink), kept separate here
// so this package never imports voice just to name a type.
type FrameSink interface {
	SubmitFrame(f Frame) error
}

// Frame is the producer-side frame shape; it mirrors voice.Frame's public
// fields except VADActive (driver code must not import the core's internal Frame
// type across the module boundary defined by spec.md §6's producer
// interface, so this is the wire shape handed to FrameSink).
type Frame struct {
	Samples     []int16
	TimestampMs int64
	Mono        []int16
	EnergyDB    []float64
}

// Config configures the capture device.
type Config struct {
	SampleRate int
	Channels   int
	FrameLen   int
	DeviceID   string // empty selects the platform default capture device
}

// Capturer owns one malgo capture device and re-frames its callback-delivered
// bytes into fixed-length Frames handed to a FrameSink.
type Capturer struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	cfg    Config
	sink   FrameSink

	mu      sync.Mutex
	pending []int16 // accumulation buffer, interleaved, partial frames
	running bool
}

// New allocates the malgo context and device, but does not start capture.
func New(cfg Config, sink FrameSink) (*Capturer, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("malgo init context: %w", err)
	}

	c := &Capturer{ctx: ctx, cfg: cfg, sink: sink}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	if cfg.DeviceID != "" {
		devices, err := ctx.Devices(malgo.Capture)
		if err != nil {
			ctx.Uninit()
			return nil, fmt.Errorf("enumerate capture devices: %w", err)
		}
		for _, info := range devices {
			if info.Name() == cfg.DeviceID {
				deviceConfig.Capture.DeviceID = info.ID.Pointer()
				break
			}
		}
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSamples []byte, frameCount uint32) {
			c.onSamples(pSamples)
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		return nil, fmt.Errorf("malgo init device: %w", err)
	}
	c.device = device

	return c, nil
}

// Start begins delivering frames to the sink.
func (c *Capturer) Start() error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = true
	c.mu.Unlock()
	return c.device.Start()
}

// Stop halts capture and releases the device and context. Idempotent.
func (c *Capturer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.running = false
	if c.device.IsStarted() {
		_ = c.device.Stop()
	}
	c.device.Uninit()
	c.ctx.Uninit()
}

// onSamples runs on malgo's audio callback thread. It must be non-blocking
// and non-reentrant into the core's API beyond SubmitFrame, per spec.md
// §9's callback contract, extended here to the producer side.
func (c *Capturer) onSamples(raw []byte) {
	stride := c.cfg.Channels
	samples := bytesToInt16(raw)
	if len(samples) == 0 {
		return
	}

	c.mu.Lock()
	c.pending = append(c.pending, samples...)
	frameSamples := c.cfg.FrameLen * stride
	var frames [][]int16
	for len(c.pending) >= frameSamples {
		frame := make([]int16, frameSamples)
		copy(frame, c.pending[:frameSamples])
		frames = append(frames, frame)
		c.pending = c.pending[frameSamples:]
	}
	c.mu.Unlock()

	now := time.Now().UnixMilli()
	for _, samples := range frames {
		f := Frame{
			Samples:     samples,
			TimestampMs: now,
			Mono:        make([]int16, c.cfg.FrameLen),
			EnergyDB:    make([]float64, c.cfg.Channels),
		}
		_ = c.sink.SubmitFrame(f) // overruns are counted by the sink's stats, not retried here
	}
}

func bytesToInt16(b []byte) []int16 {
	n := len(b) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}
