package voice

import "github.com/wit-terminal/voicecore/internal/syncx"

// NoiseFloor tracks the long-term background energy estimate. The processor
// goroutine updates it every frame, while CalibrateNoise overwrites it via
// Reset from the caller's goroutine, hence the guard.
type NoiseFloor struct {
	guard *syncx.RWGuard[float64]
}

// NewNoiseFloor creates a tracker initialized to the configured threshold.
func NewNoiseFloor(initialDB float64) *NoiseFloor {
	return &NoiseFloor{guard: syncx.NewGuard(initialDB)}
}

// Update applies the EMA update nf <- alpha*nf + (1-alpha)*avgEnergy, but
// only when wasActive is false — the *prior* frame's VAD decision, matching
// voice_core.c's update_noise_floor call site (it runs before vad_active is
// overwritten for the current frame, so speech never poisons the estimate).
func (n *NoiseFloor) Update(avgEnergyDB float64, wasActive bool) {
	if wasActive {
		return
	}
	n.guard.Write(func(nf *float64) {
		*nf = NoiseFloorAlpha*(*nf) + (1-NoiseFloorAlpha)*avgEnergyDB
	})
}

// Get returns the current noise floor estimate in dBFS.
func (n *NoiseFloor) Get() float64 {
	return n.guard.Get()
}

// Reset replaces the estimate outright. It is only invoked by calibration;
// Context.Reset leaves the live estimate alone.
func (n *NoiseFloor) Reset(db float64) {
	n.guard.Set(db)
}
