package voice

import "time"

// Hardware/geometry limits.
const (
	MaxChannels    = 8
	DefaultChannels = 4
	MaxWakeWords   = 4
)

// DSP tuning defaults, grounded on voice_core.c's compile-time constants.
const (
	DefaultFrameLen            = 480 // 30ms @ 16kHz
	DefaultSampleRate          = 16000
	DefaultVADFrameThreshold   = 3
	DefaultNoiseFloorInitialDB = -40.0
	NoiseFloorAlpha            = 0.95
	EnergyVADMarginDB          = 10.0
	ChannelVADMarginDB         = 6.0
	SpeedOfSoundMPS            = 343.0

	MinEnergyDB = -120.0

	ClippingSampleMax = 32767
	ClippingSampleMin = -32768

	DefaultWakeTimeout         = 7 * time.Second
	DefaultRecordingSeconds    = 10
	RingBufferLockTimeout      = 10 * time.Millisecond
	DefaultFrameQueueCapacity  = 8
	DefaultPoolingWindow       = 8
	SensitivityMarginConstant  = 0.3
)

// Valid sample rates per spec.md §6 config surface.
var ValidSampleRates = map[int]bool{
	8000:  true,
	16000: true,
	32000: true,
	48000: true,
}
