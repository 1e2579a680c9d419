package voice

import (
	"math"

	"github.com/wit-terminal/voicecore/internal/errors"
	"github.com/wit-terminal/voicecore/internal/syncx"
)

type beamState struct {
	Positions   []MicPosition
	SteeringDeg float64
	Weights     []float64
	Delays      []float64
	Adaptive    bool
	SampleRate  int
}

// Beamformer holds the steering state from spec.md §4.4. Weights default to
// uniform 1/CHANNELS; adaptive mode refines them but uniform weights remain a
// correct fallback at all times. Per-channel steering delays are computed and
// reported by Snapshot, but Apply does not shift samples by them: the mixdown
// is the plain weighted sum of the channels.
type Beamformer struct {
	channels int
	guard    *syncx.RWGuard[beamState]
}

// NewBeamformer creates a beamformer for the given mic geometry. sampleRate
// is the pipeline's configured sample rate (spec.md §4.4's delay formula is
// delay_samples = (x*cosT + y*sinT) * sample_rate / 343.0).
func NewBeamformer(positions []MicPosition, sampleRate int) *Beamformer {
	channels := len(positions)
	weights := make([]float64, channels)
	for i := range weights {
		weights[i] = 1.0 / float64(channels)
	}
	return &Beamformer{
		channels: channels,
		guard: syncx.NewGuard(beamState{
			Positions:  positions,
			Weights:    weights,
			Delays:     make([]float64, channels),
			SampleRate: sampleRate,
		}),
	}
}

// SetDirection sets the steering angle. Per spec.md §4.10, 0 <= deg < 360;
// the original C's inclusive <=360 check is not carried over (spec.md is
// explicit here, not silent — see DESIGN.md Open Question #2).
func (b *Beamformer) SetDirection(deg float64) error {
	if deg < 0 || deg >= 360 {
		return errors.Newf(errors.InvalidParam, "steering angle %f out of range [0,360)", deg)
	}
	b.guard.Write(func(s *beamState) {
		s.SteeringDeg = deg
		recomputeDelays(s)
	})
	return nil
}

// SetAdaptive toggles adaptive weighting mode.
func (b *Beamformer) SetAdaptive(enabled bool) {
	b.guard.Write(func(s *beamState) {
		s.Adaptive = enabled
		if !enabled {
			for i := range s.Weights {
				s.Weights[i] = 1.0 / float64(len(s.Weights))
			}
		}
	})
}

func recomputeDelays(s *beamState) {
	rad := s.SteeringDeg * math.Pi / 180.0
	cosT, sinT := math.Cos(rad), math.Sin(rad)
	for i, pos := range s.Positions {
		s.Delays[i] = (pos.X*cosT + pos.Y*sinT) * float64(s.SampleRate) / SpeedOfSoundMPS
	}
}

// refineAdaptive nudges weights toward channels with higher relative energy
// above the noise floor. This is a simple, documented refinement — uniform
// weights remain the fallback whenever Adaptive is false.
func refineAdaptive(s *beamState, perChannelEnergyDB []float64, noiseFloorDB float64) {
	if !s.Adaptive || len(perChannelEnergyDB) != len(s.Weights) {
		return
	}
	var sum float64
	gains := make([]float64, len(perChannelEnergyDB))
	for i, db := range perChannelEnergyDB {
		gain := db - noiseFloorDB
		if gain < 0.01 {
			gain = 0.01
		}
		gains[i] = gain
		sum += gain
	}
	if sum <= 0 {
		return
	}
	for i := range s.Weights {
		s.Weights[i] = gains[i] / sum
	}
}

// Apply computes the mono mixdown into frame.Mono using the current weights.
// It does not change the weights; adaptive refinement happens separately in
// RefineFromEnergy, which the processor calls after VAD, so it affects the
// mixdown of the *next* frame.
func (b *Beamformer) Apply(frame *Frame, channels, frameLen int) {
	b.guard.Write(func(s *beamState) {
		weights := s.Weights
		for i := 0; i < frameLen; i++ {
			var sum float64
			for ch := 0; ch < channels; ch++ {
				sum += weights[ch] * float64(frame.Samples[i*channels+ch])
			}
			frame.Mono[i] = saturateInt16(sum)
		}
	})
}

// RefineFromEnergy feeds the last VAD pass's per-channel energies into the
// adaptive weighting path (no-op when adaptive mode is off).
func (b *Beamformer) RefineFromEnergy(perChannelEnergyDB []float64, noiseFloorDB float64) {
	b.guard.Write(func(s *beamState) {
		refineAdaptive(s, perChannelEnergyDB, noiseFloorDB)
	})
}

// Snapshot returns a copy of the current weights and delays for diagnostics.
func (b *Beamformer) Snapshot() (weights, delays []float64, steeringDeg float64) {
	v := b.guard.Get()
	return append([]float64(nil), v.Weights...), append([]float64(nil), v.Delays...), v.SteeringDeg
}
