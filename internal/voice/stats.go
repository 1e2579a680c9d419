package voice

import (
	"time"

	"github.com/wit-terminal/voicecore/internal/syncx"
)

// Stats is the monotonic-counters-plus-running-averages snapshot from
// spec.md §3. CPUUsagePercent and ClippingCount supplement the source's
// hardcoded placeholder / audio_driver.h's stats block respectively — see
// DESIGN.md Open Question #4.
type Stats struct {
	FramesProcessed uint64
	BufferOverruns  uint64
	VADActivations  uint64
	WakeDetections  uint64
	BackendFailures uint64
	AvgEnergyDB     float64
	NoiseFloorDB    float64
	CPUUsagePercent float64
	ClippingCount   []uint64
}

// statsTracker is the single-writer (processor) stats holder; readers copy
// atomically via Snapshot, per spec.md §5's "stats: single writer
// (processor); readers copy atomically".
type statsTracker struct {
	guard *syncx.RWGuard[Stats]

	busyAccum time.Duration
	wallAccum time.Duration
}

func newStatsTracker(channels int) *statsTracker {
	return &statsTracker{
		guard: syncx.NewGuard(Stats{ClippingCount: make([]uint64, channels)}),
	}
}

func (s *statsTracker) Snapshot() Stats {
	v := s.guard.Get()
	v.ClippingCount = append([]uint64(nil), v.ClippingCount...)
	return v
}

func (s *statsTracker) IncFramesProcessed() {
	s.guard.Write(func(st *Stats) { st.FramesProcessed++ })
}

func (s *statsTracker) IncBufferOverrunsBy(n uint64) {
	if n == 0 {
		return
	}
	s.guard.Write(func(st *Stats) { st.BufferOverruns += n })
}

func (s *statsTracker) IncVADActivations() {
	s.guard.Write(func(st *Stats) { st.VADActivations++ })
}

func (s *statsTracker) IncWakeDetections() {
	s.guard.Write(func(st *Stats) { st.WakeDetections++ })
}

func (s *statsTracker) IncBackendFailures() {
	s.guard.Write(func(st *Stats) { st.BackendFailures++ })
}

func (s *statsTracker) IncClipping(ch int, n int) {
	if n == 0 {
		return
	}
	s.guard.Write(func(st *Stats) {
		if ch < len(st.ClippingCount) {
			st.ClippingCount[ch] += uint64(n)
		}
	})
}

func (s *statsTracker) SetEnergy(avgDB, noiseFloorDB float64) {
	s.guard.Write(func(st *Stats) {
		st.AvgEnergyDB = avgDB
		st.NoiseFloorDB = noiseFloorDB
	})
}

// RecordFrameTiming feeds a coarse CPU-usage estimate: the fraction of
// wall-clock time the processor spent actively processing vs. idle, decayed
// over a short rolling accumulator so it tracks recent load rather than an
// all-time average.
func (s *statsTracker) RecordFrameTiming(busy, wall time.Duration) {
	s.busyAccum += busy
	s.wallAccum += wall
	if s.wallAccum > time.Second {
		pct := 0.0
		if s.wallAccum > 0 {
			pct = 100 * float64(s.busyAccum) / float64(s.wallAccum)
		}
		s.guard.Write(func(st *Stats) { st.CPUUsagePercent = pct })
		s.busyAccum = 0
		s.wallAccum = 0
	}
}

// Reset clears all counters except the noise floor reading, which is
// repopulated from the still-live NoiseFloor estimate — matching spec.md
// §4.10's "reset(): state -> IDLE, stats cleared except noise_floor".
func (s *statsTracker) Reset(liveNoiseFloorDB float64) {
	s.guard.Write(func(st *Stats) {
		n := len(st.ClippingCount)
		*st = Stats{NoiseFloorDB: liveNoiseFloorDB, ClippingCount: make([]uint64, n)}
	})
}
