package voice

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wit-terminal/voicecore/internal/errors"
)

func testPositions(channels int) []MicPosition {
	positions := make([]MicPosition, channels)
	for i := range positions {
		positions[i] = MicPosition{X: float64(i) * 0.05}
	}
	return positions
}

func baseTestConfig(channels int) Config {
	cfg := DefaultConfig(channels, testPositions(channels))
	cfg.FrameQueueCapacity = 512
	return cfg
}

// fireAtCallScorer fires a fixed detection on a specific ordinal Score call
// and never again, modeling scenario 3's "mock scorer programmed to return
// {wit, 0.99} on frame 50".
type fireAtCallScorer struct {
	mu       sync.Mutex
	calls    int
	fireAt   int
	name     string
	confid   float64
}

func (s *fireAtCallScorer) Score(ctx context.Context, features []float32) (Detection, bool, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()
	if n == s.fireAt {
		return Detection{Name: s.name, Confidence: s.confid}, true, nil
	}
	return Detection{}, false, nil
}

func waitForState(t *testing.T, ctx *Context, want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.GetState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("state did not reach %s within %s (stuck at %s)", want, timeout, ctx.GetState())
}

func TestSilenceOnlyScenario(t *testing.T) {
	cfg := baseTestConfig(4)
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Deinit()

	for i := 0; i < 100; i++ {
		f := NewFrame(cfg.FrameLen, cfg.Channels)
		f.TimestampMs = int64(i) * 30
		if err := ctx.SubmitFrame(f); err != nil {
			t.Fatalf("SubmitFrame(%d): %v", i, err)
		}
	}
	waitForDrain(t, ctx, 100, time.Second)

	stats := ctx.GetStats()
	if stats.VADActivations != 0 {
		t.Errorf("VADActivations = %d, want 0 on silence", stats.VADActivations)
	}
	if s := ctx.GetState(); s != StateListening && s != StateIdle {
		t.Errorf("state = %s, want IDLE or LISTENING on silence", s)
	}
	if stats.NoiseFloorDB >= -60.0 {
		t.Errorf("noise_floor_db = %f, want convergence below -60dB", stats.NoiseFloorDB)
	}
}

func waitForDrain(t *testing.T, ctx *Context, want uint64, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if ctx.GetStats().FramesProcessed >= want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("only %d/%d frames drained within %s", ctx.GetStats().FramesProcessed, want, timeout)
}

func TestAboveFloorNoiseTriggersVAD(t *testing.T) {
	cfg := baseTestConfig(4)
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Deinit()

	// silence warm-up: the noise floor decays from its initial value toward
	// the silence energy, far below the loud frames that follow
	for i := 0; i < 50; i++ {
		f := NewFrame(cfg.FrameLen, cfg.Channels)
		f.TimestampMs = int64(i) * 30
		ctx.SubmitFrame(f)
	}
	waitForDrain(t, ctx, 50, time.Second)

	loud := whiteNoiseFrame(cfg.Channels, cfg.FrameLen, -20.0)
	for i := 0; i < 10; i++ {
		f := NewFrame(cfg.FrameLen, cfg.Channels)
		copy(f.Samples, loud)
		f.TimestampMs = int64(50+i) * 30
		ctx.SubmitFrame(f)
	}
	waitForDrain(t, ctx, 60, time.Second)

	if got := ctx.GetStats().VADActivations; got != 1 {
		t.Errorf("VADActivations = %d, want 1 (VAD active from the third loud frame on)", got)
	}
	if s := ctx.GetState(); s != StateListening {
		t.Errorf("state after loud run = %s, want LISTENING (no wake word registered)", s)
	}
}

func TestWakeThenRecordScenario(t *testing.T) {
	const channels = 4
	const frameLen = 320 // 20ms @ 16kHz, divides 2s evenly
	cfg := baseTestConfig(channels)
	cfg.FrameLen = frameLen
	cfg.RecordingCapacitySeconds = 2
	cfg.PoolingWindow = 1 // a single loud frame should fire, no dilution
	cfg.WakeWords = []WakeWordModel{{Name: "wit", Threshold: 0.5}}
	cfg.Sensitivity = 0.5

	scorer := &fireAtCallScorer{fireAt: 50, name: "wit", confid: 0.99}
	ctx, err := NewContext(cfg, WithScorer(scorer))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Deinit()

	var wakeFired atomic.Int32
	ctx.RegisterWakeWordCallback("wit", func(d Detection) { wakeFired.Add(1) })

	loud := whiteNoiseFrame(channels, frameLen, -10.0)
	const total = 300
	for i := 0; i < total; i++ {
		f := NewFrame(frameLen, channels)
		copy(f.Samples, loud)
		f.TimestampMs = int64(i) * 20
		if err := ctx.SubmitFrame(f); err != nil {
			t.Fatalf("SubmitFrame(%d): %v", i, err)
		}
	}
	waitForDrain(t, ctx, total, 5*time.Second)
	waitForState(t, ctx, StateProcessing, 5*time.Second)

	if wakeFired.Load() != 1 {
		t.Errorf("wake callback fired %d times, want exactly 1", wakeFired.Load())
	}
	if got := ctx.GetStats().WakeDetections; got != 1 {
		t.Errorf("wake_detections = %d, want 1", got)
	}

	buf := make([]byte, 1<<20)
	n, err := ctx.GetRecording(buf)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	want := 2 * 16000 * 2
	if n != want {
		t.Errorf("GetRecording returned %d bytes, want %d", n, want)
	}
	if ctx.GetState() != StateIdle {
		t.Errorf("state after GetRecording = %s, want IDLE", ctx.GetState())
	}
}

func TestWakeTimeoutScenario(t *testing.T) {
	cfg := baseTestConfig(4)
	cfg.WakeTimeout = 50 * time.Millisecond
	cfg.WakeWords = []WakeWordModel{{Name: "wit", Threshold: 0.1}}
	cfg.PoolingWindow = 1

	scorer := &fireAtCallScorer{fireAt: 10, name: "wit", confid: 0.99}
	ctx, err := NewContext(cfg, WithScorer(scorer))
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Deinit()

	for i := 0; i < 10; i++ {
		f := NewFrame(cfg.FrameLen, cfg.Channels)
		f.TimestampMs = int64(i) * 30
		ctx.SubmitFrame(f)
	}
	waitForState(t, ctx, StateWakeDetected, time.Second)
	waitForState(t, ctx, StateIdle, time.Second)

	buf := make([]byte, 1024)
	n, err := ctx.GetRecording(buf)
	if err != nil {
		t.Fatalf("GetRecording: %v", err)
	}
	if n != 0 {
		t.Errorf("GetRecording after wake timeout returned %d bytes, want 0", n)
	}
}

func TestQueueOverrunScenario(t *testing.T) {
	cfg := baseTestConfig(4)
	cfg.FrameQueueCapacity = 8
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	// hold the processor off the queue by occupying it with a blocking control command first
	blockDone := make(chan struct{})
	go ctx.runControl(func() { <-blockDone })
	time.Sleep(10 * time.Millisecond) // let the processor enter the control command

	var overruns int
	for i := 0; i < 100; i++ {
		f := NewFrame(cfg.FrameLen, cfg.Channels)
		if err := ctx.SubmitFrame(f); err != nil {
			if !errors.IsCode(err, errors.BufferOverflow) {
				t.Fatalf("unexpected error: %v", err)
			}
			overruns++
		}
	}
	close(blockDone)
	defer ctx.Deinit()

	if overruns != 100-8 {
		t.Errorf("overruns = %d, want %d", overruns, 100-8)
	}
	waitForDrain(t, ctx, 8, time.Second)
}

func TestBeamSteeringStabilityEndToEnd(t *testing.T) {
	cfg := baseTestConfig(4) // positions on x-axis only
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Deinit()

	positions := testPositions(4)

	if err := ctx.SetBeamDirection(0); err != nil {
		t.Fatalf("SetBeamDirection(0): %v", err)
	}
	w0, d0, _ := ctx.beamformer.Snapshot()
	for i, pos := range positions {
		want := pos.X * float64(cfg.SampleRate) / SpeedOfSoundMPS
		if math.Abs(d0[i]-want) > 1e-9 {
			t.Errorf("delay[%d] at 0deg = %f, want %f", i, d0[i], want)
		}
	}

	if err := ctx.SetBeamDirection(90); err != nil {
		t.Fatalf("SetBeamDirection(90): %v", err)
	}
	w90, d90, _ := ctx.beamformer.Snapshot()
	for i, d := range d90 {
		// y=0 for every mic here, so at 90deg the delay collapses to ~0
		// regardless of x.
		if math.Abs(d) > 1e-9 {
			t.Errorf("delay[%d] at 90deg with y=0 = %f, want ~0", i, d)
		}
	}
	for i := range w0 {
		if w0[i] != 0.25 || w90[i] != 0.25 {
			t.Errorf("weight[%d] changed with steering alone: %f -> %f, want uniform 0.25 throughout", i, w0[i], w90[i])
		}
	}
}

func TestResetIsIdempotent(t *testing.T) {
	cfg := baseTestConfig(4)
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Deinit()

	if err := ctx.StartRecording(5000); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if err := ctx.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := ctx.Reset(); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if ctx.GetState() != StateIdle {
		t.Errorf("state after double reset = %s, want IDLE", ctx.GetState())
	}
	buf := make([]byte, 1024)
	n, _ := ctx.GetRecording(buf)
	if n != 0 {
		t.Errorf("recording.size after reset = %d, want 0", n)
	}
}

func TestSubmitFrameAfterDeinitFailsInvalidState(t *testing.T) {
	cfg := baseTestConfig(4)
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	ctx.Deinit()
	err = ctx.SubmitFrame(NewFrame(cfg.FrameLen, cfg.Channels))
	if !errors.IsCode(err, errors.InvalidState) {
		t.Errorf("SubmitFrame after Deinit = %v, want InvalidState", err)
	}
}

func TestStartRecordingInvalidFromRecordingState(t *testing.T) {
	cfg := baseTestConfig(4)
	ctx, err := NewContext(cfg)
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	defer ctx.Deinit()

	if err := ctx.StartRecording(1000); err != nil {
		t.Fatalf("first StartRecording: %v", err)
	}
	if err := ctx.StartRecording(1000); !errors.IsCode(err, errors.InvalidState) {
		t.Errorf("StartRecording while already RECORDING = %v, want InvalidState", err)
	}
}
