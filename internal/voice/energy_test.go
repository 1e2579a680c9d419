package voice

import "testing"

func TestEnergyDBSilence(t *testing.T) {
	samples := make([]int16, 480)
	db := EnergyDB(samples)
	if db != MinEnergyDB {
		t.Errorf("EnergyDB(silence) = %f, want %f", db, MinEnergyDB)
	}
	if db < -120 {
		t.Errorf("EnergyDB(silence) = %f, below invariant floor -120dB", db)
	}
}

func TestEnergyDBFullScale(t *testing.T) {
	samples := make([]int16, 480)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 32767
		} else {
			samples[i] = -32768
		}
	}
	db := EnergyDB(samples)
	if db > 0.1 {
		t.Errorf("EnergyDB(full scale) = %f, want ~0 dBFS", db)
	}
	if db < -120 {
		t.Errorf("EnergyDB(full scale) = %f, violates finite >= -120dB invariant", db)
	}
}

func TestEnergyDBEmpty(t *testing.T) {
	if got := EnergyDB(nil); got != MinEnergyDB {
		t.Errorf("EnergyDB(nil) = %f, want %f", got, MinEnergyDB)
	}
}

func TestCountClipping(t *testing.T) {
	samples := []int16{0, 100, 32767, -32768, -100, 32767}
	if got := CountClipping(samples); got != 3 {
		t.Errorf("CountClipping = %d, want 3", got)
	}
}

func TestDCOffset(t *testing.T) {
	samples := []int16{100, 100, 100, 100}
	if got := DCOffset(samples); got != 100 {
		t.Errorf("DCOffset = %f, want 100", got)
	}
}

func TestDeinterleaveChannel(t *testing.T) {
	// 2 channels, 3 frames: ch0 = [1,3,5], ch1 = [2,4,6]
	samples := []int16{1, 2, 3, 4, 5, 6}
	ch0 := deinterleaveChannel(samples, 2, 0)
	ch1 := deinterleaveChannel(samples, 2, 1)
	want0 := []int16{1, 3, 5}
	want1 := []int16{2, 4, 6}
	for i := range want0 {
		if ch0[i] != want0[i] {
			t.Errorf("ch0[%d] = %d, want %d", i, ch0[i], want0[i])
		}
		if ch1[i] != want1[i] {
			t.Errorf("ch1[%d] = %d, want %d", i, ch1[i], want1[i])
		}
	}
}
