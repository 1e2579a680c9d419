package voice

import (
	"math"
	"testing"
)

const testSampleRate = 16000

func TestNewBeamformerUniformWeights(t *testing.T) {
	positions := []MicPosition{{X: 0}, {X: 0.05}, {X: 0.1}, {X: 0.15}}
	b := NewBeamformer(positions, testSampleRate)
	weights, _, _ := b.Snapshot()
	for i, w := range weights {
		if w != 0.25 {
			t.Errorf("weight[%d] = %f, want 0.25", i, w)
		}
	}
}

func TestSetDirectionRejectsOutOfRange(t *testing.T) {
	b := NewBeamformer([]MicPosition{{X: 0}, {X: 0.1}}, testSampleRate)
	if err := b.SetDirection(360); err == nil {
		t.Error("SetDirection(360) should be rejected, upper bound is exclusive")
	}
	if err := b.SetDirection(-1); err == nil {
		t.Error("SetDirection(-1) should be rejected")
	}
	if err := b.SetDirection(0); err != nil {
		t.Errorf("SetDirection(0) should be accepted, got %v", err)
	}
}

func TestBeamSteeringDelaysFollowFormulaOnXAxis(t *testing.T) {
	// mic positions on the x-axis only: delay = x*cos(theta)*sr/343 at y=0.
	positions := []MicPosition{{X: 0}, {X: 0.05}, {X: 0.1}, {X: 0.15}}
	b := NewBeamformer(positions, testSampleRate)

	if err := b.SetDirection(0); err != nil {
		t.Fatalf("SetDirection(0): %v", err)
	}
	_, delays, _ := b.Snapshot()
	for i, pos := range positions {
		want := pos.X * float64(testSampleRate) / SpeedOfSoundMPS
		if math.Abs(delays[i]-want) > 1e-9 {
			t.Errorf("delay[%d] at 0deg = %f, want %f", i, delays[i], want)
		}
	}

	if err := b.SetDirection(90); err != nil {
		t.Fatalf("SetDirection(90): %v", err)
	}
	_, delays90, _ := b.Snapshot()
	for i, d := range delays90 {
		// y=0 for every mic here, so at 90deg (cos~0, sin=1) the delay
		// collapses to ~0 regardless of x.
		if math.Abs(d) > 1e-9 {
			t.Errorf("delay[%d] at 90deg with y=0 positions = %f, want ~0", i, d)
		}
	}

	weights, _, _ := b.Snapshot()
	for i, w := range weights {
		if w != 0.25 {
			t.Errorf("weight[%d] = %f, want uniform 0.25 (non-adaptive)", i, w)
		}
	}
}

func TestBeamformerApplyUniformMixdown(t *testing.T) {
	positions := []MicPosition{{X: 0}, {X: 0.1}}
	b := NewBeamformer(positions, testSampleRate)
	f := NewFrame(4, 2)
	// interleaved samples: ch0=[10,20,30,40] ch1=[30,40,50,60]
	f.Samples = []int16{10, 30, 20, 40, 30, 50, 40, 60}
	b.Apply(f, 2, 4)
	want := []int16{20, 30, 40, 50}
	for i, w := range want {
		if f.Mono[i] != w {
			t.Errorf("Mono[%d] = %d, want %d", i, f.Mono[i], w)
		}
	}
}

func TestSetAdaptiveDisableRestoresUniform(t *testing.T) {
	positions := []MicPosition{{X: 0}, {X: 0.1}, {X: 0.2}}
	b := NewBeamformer(positions, testSampleRate)
	b.SetAdaptive(true)
	b.RefineFromEnergy([]float64{-20, -60, -60}, -40)
	weights, _, _ := b.Snapshot()
	uniform := true
	for _, w := range weights {
		if w != 1.0/3.0 {
			uniform = false
		}
	}
	if uniform {
		t.Error("adaptive refinement should have skewed weights away from uniform")
	}

	b.SetAdaptive(false)
	weights, _, _ = b.Snapshot()
	for i, w := range weights {
		if w != 1.0/3.0 {
			t.Errorf("weight[%d] after disabling adaptive = %f, want uniform 1/3", i, w)
		}
	}
}
