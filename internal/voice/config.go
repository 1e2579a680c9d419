package voice

import (
	"time"

	"github.com/wit-terminal/voicecore/internal/errors"
)

// MicPosition is a microphone's position in meters relative to the array origin.
type MicPosition struct {
	X, Y, Z float64
}

// ModelFormat identifies the wake-word model's on-disk/in-memory encoding.
// The core never parses the blob itself; format is passed through to the backend.
type ModelFormat int

const (
	FormatONNX ModelFormat = iota
	FormatTFLite
	FormatHailoHEF
	FormatRawNN
)

func (f ModelFormat) String() string {
	switch f {
	case FormatONNX:
		return "onnx"
	case FormatTFLite:
		return "tflite"
	case FormatHailoHEF:
		return "hailo_hef"
	case FormatRawNN:
		return "raw_nn"
	default:
		return "unknown"
	}
}

// WakeWordModel describes one registered wake-word per spec.md §3 "Wake-word registry".
type WakeWordModel struct {
	Name      string
	Threshold float64
	ModelRef  string
	Format    ModelFormat
}

// Config is the single construction-time value for a Context. It is validated
// once in NewContext. The one field changed afterward is NoiseSuppression,
// which SetNoiseSuppression updates on the processor goroutine; other runtime
// knobs live as guarded derived fields on Context, not here.
type Config struct {
	SampleRate int
	Channels   int
	FrameLen   int

	MicPositions []MicPosition
	AdaptiveBeam bool

	WakeWords         []WakeWordModel
	VADFrameThreshold int

	NoiseFloorInitialDB     float64
	WakeTimeout             time.Duration
	RecordingCapacitySeconds int

	Sensitivity      float64
	NoiseSuppression float64

	FeatureConfig FeatureConfig

	FrameQueueCapacity int
	PoolingWindow      int
}

// DefaultConfig returns a Config with spec.md §6's typical values filled in,
// for a given channel count and mic geometry. Callers still must set
// WakeWords and Scorer (via Context options) for real detections.
func DefaultConfig(channels int, positions []MicPosition) Config {
	return Config{
		SampleRate:               DefaultSampleRate,
		Channels:                 channels,
		FrameLen:                 DefaultFrameLen,
		MicPositions:             positions,
		VADFrameThreshold:        DefaultVADFrameThreshold,
		NoiseFloorInitialDB:      DefaultNoiseFloorInitialDB,
		WakeTimeout:              DefaultWakeTimeout,
		RecordingCapacitySeconds: DefaultRecordingSeconds,
		Sensitivity:              0.5,
		FeatureConfig:            DefaultFeatureConfig(DefaultSampleRate),
		FrameQueueCapacity:       DefaultFrameQueueCapacity,
		PoolingWindow:            DefaultPoolingWindow,
	}
}

// validate checks the construction-time invariants from spec.md §4.10's
// init(config) row and §6's config surface. It also fills in defaults for
// zero-valued optional fields.
func (c *Config) validate() error {
	if !ValidSampleRates[c.SampleRate] {
		return errors.Newf(errors.InvalidParam, "sample_rate %d not in {8000,16000,32000,48000}", c.SampleRate)
	}
	if c.Channels <= 0 || c.Channels > MaxChannels {
		return errors.Newf(errors.InvalidParam, "channels %d out of range (1..%d)", c.Channels, MaxChannels)
	}
	if c.FrameLen <= 0 {
		return errors.New(errors.InvalidParam, "frame_length must be positive")
	}
	if len(c.MicPositions) != c.Channels {
		return errors.Newf(errors.InvalidParam, "mic_positions has %d entries, want %d", len(c.MicPositions), c.Channels)
	}
	if len(c.WakeWords) > MaxWakeWords {
		return errors.Newf(errors.InvalidParam, "wake_words has %d entries, max %d", len(c.WakeWords), MaxWakeWords)
	}
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		return errors.New(errors.InvalidParam, "sensitivity must be in [0,1]")
	}
	if c.NoiseSuppression < 0 || c.NoiseSuppression > 1 {
		return errors.New(errors.InvalidParam, "noise_suppression must be in [0,1]")
	}
	if c.VADFrameThreshold <= 0 {
		c.VADFrameThreshold = DefaultVADFrameThreshold
	}
	if c.NoiseFloorInitialDB == 0 {
		c.NoiseFloorInitialDB = DefaultNoiseFloorInitialDB
	}
	if c.WakeTimeout <= 0 {
		c.WakeTimeout = DefaultWakeTimeout
	}
	if c.RecordingCapacitySeconds <= 0 {
		c.RecordingCapacitySeconds = DefaultRecordingSeconds
	}
	if c.FrameQueueCapacity <= 0 {
		c.FrameQueueCapacity = DefaultFrameQueueCapacity
	}
	if c.PoolingWindow <= 0 {
		c.PoolingWindow = DefaultPoolingWindow
	}
	if c.FeatureConfig.SampleRate == 0 {
		c.FeatureConfig = DefaultFeatureConfig(c.SampleRate)
	}
	return nil
}
