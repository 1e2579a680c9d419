// Package config handles the voicecore terminal's runtime configuration.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/wit-terminal/voicecore/internal/voice"
)

// Config is the top-level configuration for the demo binary: where to serve
// the dashboard, which capture device and array geometry to use, the
// wake-word backend to reach, and the pipeline tuning knobs exposed as env
// vars for field deployment.
type Config struct {
	HTTPAddr string
	DeviceID string // empty selects the platform default capture device
	Metrics  bool

	WakeWordAddr string // empty disables the remote scorer (local NullScorer only)

	SampleRate  int
	Channels    int
	FrameLen    int
	MicSpacingM float64 // uniform linear array spacing, meters

	Sensitivity      float64
	NoiseSuppression float64
	WakeWordNames    []string
}

// Load reads configuration from the environment, falling back to defaults
// matched to a typical four-mic linear array.
func Load() *Config {
	return &Config{
		HTTPAddr:         getEnv("VOICECORE_HTTP_ADDR", ":8000"),
		DeviceID:         getEnv("VOICECORE_DEVICE_ID", ""),
		Metrics:          getEnvBool("VOICECORE_METRICS", true),
		WakeWordAddr:     getEnv("VOICECORE_WAKEWORD_ADDR", ""),
		SampleRate:       getEnvInt("VOICECORE_SAMPLE_RATE", 16000),
		Channels:         getEnvInt("VOICECORE_CHANNELS", 4),
		FrameLen:         getEnvInt("VOICECORE_FRAME_LEN", 480),
		MicSpacingM:      getEnvFloat("VOICECORE_MIC_SPACING_M", 0.04),
		Sensitivity:      getEnvFloat("VOICECORE_SENSITIVITY", 0.5),
		NoiseSuppression: getEnvFloat("VOICECORE_NOISE_SUPPRESSION", 0.3),
		WakeWordNames:    getEnvList("VOICECORE_WAKE_WORDS", []string{"hey_terminal"}),
	}
}

// MicPositions lays out Channels microphones on a uniform linear array
// centered on the origin, spaced MicSpacingM apart along the x axis.
func (c *Config) MicPositions() []voice.MicPosition {
	positions := make([]voice.MicPosition, c.Channels)
	offset := float64(c.Channels-1) / 2.0
	for i := range positions {
		positions[i] = voice.MicPosition{X: (float64(i) - offset) * c.MicSpacingM}
	}
	return positions
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
