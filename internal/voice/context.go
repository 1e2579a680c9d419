// Package voice implements the on-device voice front-end pipeline: circular
// capture buffer, per-frame DSP path (beamform -> VAD -> wake-word scoring),
// wake/record/processing session state machine, noise-floor tracker, and
// bounded recording buffer.
package voice

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wit-terminal/voicecore/internal/errors"
	"github.com/wit-terminal/voicecore/internal/resilience"
	"github.com/wit-terminal/voicecore/internal/syncx"
	"github.com/wit-terminal/voicecore/internal/trace"
)

// AudioCallback is invoked once per processed frame. Per spec.md §9's
// Design Notes, callbacks must be non-blocking and must never call back
// into the Context's API (that would deadlock against controlCh).
type AudioCallback func(samples []int16, numSamples, channels int, userData any)

// WakeWordCallback is invoked once per rising-edge wake detection for its
// registered model.
type WakeWordCallback func(d Detection)

type controlCmd struct {
	fn   func()
	done chan struct{}
}

// Context is the opaque, single-owning pipeline instance. Construct with
// NewContext, tear down with Deinit. All buffers are allocated up front;
// there is no steady-state allocation in the frame-processing hot path.
type Context struct {
	cfg      Config
	logger   *slog.Logger
	traceCtx context.Context

	queue      *FrameQueue
	ring       *RingBuffer
	recording  *RecordingBuffer
	noiseFloor *NoiseFloor
	beamformer *Beamformer
	registry   *WakeWordRegistry
	scorer     *PooledScorer
	features   *FeatureExtractor
	stats      *statsTracker
	timeouts   *TimeoutService

	vadState       VADState  // processor-goroutine-owned only
	lastFrameStart time.Time // processor-goroutine-owned only

	session *syncx.RWGuard[sessionAux]

	callbackMu    sync.RWMutex
	audioCallback AudioCallback
	audioUserData any
	wakeCallbacks map[string]WakeWordCallback

	controlCh chan controlCmd
	stopCh    chan struct{}
	wg        sync.WaitGroup
	shutdown  atomic.Bool
}

// Option configures a Context at construction time, beyond the fields in
// Config (which is pure data). Scorer backends are supplied this way since
// they're behavioral, not data.
type Option func(*Context)

// WithScorer installs a wake-word backend. If omitted, NewContext installs
// NullScorer, per spec.md's "stubs are total" requirement.
func WithScorer(s Scorer) Option {
	return func(c *Context) { c.scorer = NewPooledScorer(s, c.registry, c.cfg.PoolingWindow, resilience.DefaultConfig()) }
}

// WithLogger installs a structured logger; defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// NewContext validates config, allocates all buffers up front, and starts
// the processor goroutine. Per spec.md §4.10's init(config) row.
func NewContext(cfg Config, opts ...Option) (*Context, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	registry := NewWakeWordRegistry(MaxWakeWords)
	for _, w := range cfg.WakeWords {
		if err := registry.Register(w); err != nil {
			return nil, err
		}
	}

	recordingCapacityBytes := cfg.RecordingCapacitySeconds * cfg.SampleRate * 2
	ringCapacityFrames := cfg.SampleRate / cfg.FrameLen
	if ringCapacityFrames < 1 {
		ringCapacityFrames = 1
	}

	c := &Context{
		cfg:           cfg,
		logger:        slog.Default(),
		traceCtx:      trace.WithContext(context.Background(), trace.New()),
		queue:         NewFrameQueue(cfg.FrameQueueCapacity),
		ring:          NewRingBuffer(ringCapacityFrames, cfg.FrameLen, cfg.Channels),
		recording:     NewRecordingBuffer(recordingCapacityBytes),
		noiseFloor:    NewNoiseFloor(cfg.NoiseFloorInitialDB),
		beamformer:    NewBeamformer(cfg.MicPositions, cfg.SampleRate),
		registry:      registry,
		features:      NewFeatureExtractor(cfg.FeatureConfig),
		stats:         newStatsTracker(cfg.Channels),
		timeouts:      NewTimeoutService(),
		session:       syncx.NewGuard(sessionAux{state: StateIdle, maxRecordingDuration: int64(cfg.RecordingCapacitySeconds) * 1000}),
		wakeCallbacks: make(map[string]WakeWordCallback),
		controlCh:     make(chan controlCmd),
		stopCh:        make(chan struct{}),
	}
	c.beamformer.SetAdaptive(cfg.AdaptiveBeam)

	for _, opt := range opts {
		opt(c)
	}
	if c.scorer == nil {
		c.scorer = NewPooledScorer(NullScorer{}, registry, cfg.PoolingWindow, resilience.DefaultConfig())
	}
	_ = c.scorer.SetSensitivity(cfg.Sensitivity)

	c.wg.Add(1)
	go c.processLoop()

	return c, nil
}

// Deinit stops the worker, drains timers, and frees owned buffers. Per
// spec.md §5, operations submitted after Deinit fail with InvalidState.
func (c *Context) Deinit() error {
	if !c.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	close(c.stopCh)
	c.wg.Wait()
	c.timeouts.Stop()
	c.log(slog.LevelInfo, "pipeline shut down", "stats", c.stats.Snapshot())
	return nil
}

// SubmitFrame is the producer interface (spec.md §6). Non-blocking;
// increments BufferOverruns and returns BufferOverflow on a full queue.
func (c *Context) SubmitFrame(f *Frame) error {
	if c.shutdown.Load() {
		return errors.New(errors.InvalidState, "context is shut down")
	}
	if len(f.Samples) != c.cfg.FrameLen*c.cfg.Channels {
		return errors.Newf(errors.InvalidParam, "frame has %d samples, want %d", len(f.Samples), c.cfg.FrameLen*c.cfg.Channels)
	}
	if err := c.queue.Enqueue(f); err != nil {
		c.stats.IncBufferOverrunsBy(1)
		c.log(slog.LevelWarn, "frame queue full, dropping frame", "timestamp_ms", f.TimestampMs)
		return err
	}
	return nil
}

// runControl serializes a control-plane mutation with the processor
// goroutine, per spec.md §9's prescribed design ("route control operations
// as queued commands consumed by the processor between frames"). See
// DESIGN.md Open Question #7.
func (c *Context) runControl(fn func()) error {
	if c.shutdown.Load() {
		return errors.New(errors.InvalidState, "context is shut down")
	}
	cmd := controlCmd{fn: fn, done: make(chan struct{})}
	select {
	case c.controlCh <- cmd:
	case <-c.stopCh:
		return errors.New(errors.InvalidState, "context is shut down")
	}
	select {
	case <-cmd.done:
	case <-c.stopCh:
	}
	return nil
}

func (c *Context) processLoop() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stopCh:
			return
		case cmd := <-c.controlCh:
			cmd.fn()
			close(cmd.done)
		case f, ok := <-c.queue.C():
			if !ok {
				return
			}
			c.processFrame(f)
		}
	}
}

func (c *Context) processFrame(f *Frame) {
	start := time.Now()
	c.stats.IncFramesProcessed()

	for ch := 0; ch < c.cfg.Channels; ch++ {
		chSamples := deinterleaveChannel(f.Samples, c.cfg.Channels, ch)
		if n := CountClipping(chSamples); n > 0 {
			c.stats.IncClipping(ch, n)
		}
	}

	c.beamformer.Apply(f, c.cfg.Channels, c.cfg.FrameLen)

	// VAD decision from before this frame's hysteresis update (see NoiseFloor.Update).
	priorActive := c.vadState.Active
	result := DetectVoiceActivity(f.Samples, c.cfg.Channels, c.noiseFloor.Get(), c.marginScale(), c.cfg.VADFrameThreshold, &c.vadState)
	f.EnergyDB = result.EnergyPerChannel
	f.VADActive = result.Active

	if result.RisingEdge {
		c.stats.IncVADActivations()
	}

	c.noiseFloor.Update(result.AvgEnergyDB, priorActive)
	c.stats.SetEnergy(result.AvgEnergyDB, c.noiseFloor.Get())
	c.beamformer.RefineFromEnergy(result.EnergyPerChannel, c.noiseFloor.Get())

	c.runStateMachine(f)

	if !c.ring.Write(f.Samples, RingBufferLockTimeout) {
		c.log(slog.LevelWarn, "ring buffer write timed out, frame not archived", "timestamp_ms", f.TimestampMs)
	}

	if cb, userData := c.getAudioCallback(); cb != nil {
		cb(f.Samples, len(f.Samples)/c.cfg.Channels, c.cfg.Channels, userData)
	}

	busy := time.Since(start)
	wall := busy
	if !c.lastFrameStart.IsZero() {
		wall = time.Since(c.lastFrameStart)
	}
	c.lastFrameStart = start
	c.stats.RecordFrameTiming(busy, wall)
}

// marginScale translates the noise-suppression knob into a scale on the
// VAD's energy margins (see DESIGN.md Open Question #8).
func (c *Context) marginScale() float64 {
	return 1 + c.cfg.NoiseSuppression*0.5
}

func (c *Context) runStateMachine(f *Frame) {
	var toFire *Detection
	snapshot := c.session.Get()

	var detection Detection
	var detected bool
	if snapshot.state == StateIdle || snapshot.state == StateListening {
		features := c.features.Extract(f.Mono)
		d, ok, err := c.scorer.Score(context.Background(), features, f.TimestampMs)
		if err != nil {
			c.stats.IncBackendFailures()
			c.log(slog.LevelWarn, "wake-word scorer failed", "error", err)
		}
		detection, detected = d, ok
	}

	var enteredRecording, enteredProcessing bool

	c.session.Write(func(s *sessionAux) {
		switch s.state {
		case StateIdle:
			s.state = StateListening
		case StateListening:
			if detected {
				s.state = StateWakeDetected
				s.lastWakeTime = f.TimestampMs
				c.stats.IncWakeDetections()
				toFire = &detection
				c.timeouts.ArmWakeTimeout(c.cfg.WakeTimeout, func() {
					// Routed through controlCh, not written here directly: the
					// timer fires on its own goroutine, and only the processor
					// goroutine may mutate session state (spec.md §9).
					c.runControl(func() {
						c.session.Write(func(s2 *sessionAux) {
							if s2.state == StateWakeDetected {
								s2.state = StateIdle
							}
						})
					})
				})
			}
		case StateWakeDetected:
			c.timeouts.CancelWakeTimeout()
			s.state = StateRecording
			s.recordingStartTime = f.TimestampMs
			c.recording.Reset()
			enteredRecording = true
		case StateRecording:
			if f.VADActive {
				c.recording.Append(f.Mono)
			}
			if f.TimestampMs-s.recordingStartTime >= s.maxRecordingDuration {
				s.state = StateProcessing
				enteredProcessing = true
			}
		case StateProcessing, StateError:
			// no-op: awaiting get_recording()/reset() respectively
		}
	})

	if toFire != nil {
		c.log(slog.LevelInfo, "wake word detected", "name", toFire.Name, "confidence", toFire.Confidence)
		c.fireWakeCallback(*toFire)
	}
	if enteredRecording {
		c.log(slog.LevelInfo, "recording started", "timestamp_ms", f.TimestampMs)
	}
	if enteredProcessing {
		c.log(slog.LevelInfo, "recording complete, entering processing", "timestamp_ms", f.TimestampMs)
	}
}

func (c *Context) getAudioCallback() (AudioCallback, any) {
	c.callbackMu.RLock()
	defer c.callbackMu.RUnlock()
	return c.audioCallback, c.audioUserData
}

func (c *Context) fireWakeCallback(d Detection) {
	c.callbackMu.RLock()
	cb, ok := c.wakeCallbacks[d.Name]
	c.callbackMu.RUnlock()
	if ok && cb != nil {
		cb(d)
	}
}

// StartRecording transitions into RECORDING from IDLE or WAKE_DETECTED.
func (c *Context) StartRecording(maxMs int) error {
	var stateErr error
	_ = c.runControl(func() {
		c.session.Write(func(s *sessionAux) {
			if s.state != StateIdle && s.state != StateWakeDetected {
				stateErr = errors.Newf(errors.InvalidState, "start_recording invalid from state %s", s.state)
				return
			}
			c.timeouts.CancelWakeTimeout()
			s.state = StateRecording
			s.recordingStartTime = nowMs()
			s.maxRecordingDuration = int64(maxMs)
			c.recording.Reset()
		})
	})
	return stateErr
}

// StopRecording transitions RECORDING -> PROCESSING; a no-op otherwise.
func (c *Context) StopRecording() error {
	return c.runControl(func() {
		c.session.Write(func(s *sessionAux) {
			if s.state == StateRecording {
				s.state = StateProcessing
			}
		})
	})
}

// GetRecording copies up to len(buf) bytes of the recorded utterance,
// resets the buffer, and transitions to IDLE — unconditionally, even if
// zero bytes were recorded (see DESIGN.md Open Question #1).
func (c *Context) GetRecording(buf []byte) (int, error) {
	if buf == nil {
		return 0, errors.New(errors.InvalidParam, "buf must not be nil")
	}
	var n int
	err := c.runControl(func() {
		n = c.recording.CopyOut(buf)
		c.recording.Reset()
		c.session.Write(func(s *sessionAux) { s.state = StateIdle })
	})
	return n, err
}

// SetBeamDirection sets the steering angle in [0,360).
func (c *Context) SetBeamDirection(deg float64) error {
	var err error
	_ = c.runControl(func() { err = c.beamformer.SetDirection(deg) })
	return err
}

// SetAdaptiveBeam toggles adaptive beamforming weight refinement.
func (c *Context) SetAdaptiveBeam(enabled bool) error {
	return c.runControl(func() { c.beamformer.SetAdaptive(enabled) })
}

// RegisterWakeWord adds a model to the registry.
func (c *Context) RegisterWakeWord(m WakeWordModel) error {
	var err error
	_ = c.runControl(func() { err = c.registry.Register(m) })
	return err
}

// SetSensitivity updates the global sensitivity parameter in [0,1].
func (c *Context) SetSensitivity(s float64) error {
	if s < 0 || s > 1 {
		return errors.New(errors.InvalidParam, "sensitivity must be in [0,1]")
	}
	return c.runControl(func() { _ = c.scorer.SetSensitivity(s) })
}

// SetNoiseSuppression updates the noise-suppression tuning knob in [0,1].
func (c *Context) SetNoiseSuppression(level float64) error {
	if level < 0 || level > 1 {
		return errors.New(errors.InvalidParam, "noise_suppression must be in [0,1]")
	}
	return c.runControl(func() { c.cfg.NoiseSuppression = level })
}

// CalibrateNoise samples the live avg_energy_db stat over the requested
// window and refits the noise floor to the observed average — a genuine
// recalibration, not the source's placeholder reset (see DESIGN.md Open
// Question #3). Blocks the calling goroutine for approximately ms.
func (c *Context) CalibrateNoise(ms int) error {
	if ms < 100 {
		return errors.New(errors.InvalidParam, "calibrate_noise requires ms >= 100")
	}
	deadline := time.After(time.Duration(ms) * time.Millisecond)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	var sum float64
	var n int
	for {
		select {
		case <-deadline:
			if n > 0 {
				c.noiseFloor.Reset(sum / float64(n))
			}
			return nil
		case <-ticker.C:
			sum += c.stats.Snapshot().AvgEnergyDB
			n++
		case <-c.stopCh:
			return errors.New(errors.InvalidState, "context is shut down")
		}
	}
}

// GetStats returns a consistent snapshot of the running counters.
func (c *Context) GetStats() Stats {
	return c.stats.Snapshot()
}

// GetState returns the current session state.
func (c *Context) GetState() State {
	return c.session.Get().state
}

// Reset clears the state machine and VAD hysteresis back to IDLE, per
// spec.md §4.10 ("state -> IDLE, stats cleared except noise_floor").
// Idempotent: calling it twice is equivalent to once.
func (c *Context) Reset() error {
	return c.runControl(func() {
		c.timeouts.CancelWakeTimeout()
		c.session.Write(func(s *sessionAux) {
			*s = sessionAux{state: StateIdle, maxRecordingDuration: s.maxRecordingDuration}
		})
		c.recording.Reset()
		c.vadState = VADState{}
		c.stats.Reset(c.noiseFloor.Get())
	})
}

// RegisterAudioCallback installs the per-frame audio callback.
func (c *Context) RegisterAudioCallback(cb AudioCallback, userData any) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.audioCallback = cb
	c.audioUserData = userData
}

// RegisterWakeWordCallback installs a callback fired once per detection for
// the named model (the model itself must already be registered).
func (c *Context) RegisterWakeWordCallback(name string, cb WakeWordCallback) {
	c.callbackMu.Lock()
	defer c.callbackMu.Unlock()
	c.wakeCallbacks[name] = cb
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

// log emits a structured log line tagged with this Context's trace
// identifiers, per spec.md's ambient-stack requirement that logging thread
// through the processor loop (grounded on trace.Logger's ctx -> *slog.Logger
// shape; adapted to route through the installed logger, since trace.Logger
// itself always falls back to slog.Default() and would ignore WithLogger).
func (c *Context) log(level slog.Level, msg string, args ...any) {
	tc, _ := trace.FromContext(c.traceCtx)
	attrs := tc.LogAttrs()
	kvs := make([]any, 0, len(attrs)*2+len(args))
	for _, a := range attrs {
		kvs = append(kvs, a.Key, a.Value)
	}
	kvs = append(kvs, args...)
	c.logger.Log(c.traceCtx, level, msg, kvs...)
}
