package voice

import "math"

// EnergyDB computes 20*log10(max(rms, 1e-6)) where rms is the RMS of the
// samples normalized to [-1, 1]. Returns MinEnergyDB for empty input.
func EnergyDB(samples []int16) float64 {
	if len(samples) == 0 {
		return MinEnergyDB
	}
	var sumSq float64
	for _, s := range samples {
		norm := float64(s) / 32768.0
		sumSq += norm * norm
	}
	rms := math.Sqrt(sumSq / float64(len(samples)))
	if rms < 1e-6 {
		rms = 1e-6
	}
	return 20.0 * math.Log10(rms)
}

// DCOffset returns the mean sample value, used as an estimate of DC bias.
func DCOffset(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	return sum / float64(len(samples))
}

// CountClipping returns the number of samples at or beyond full scale,
// supplementing the energy utilities per audio_driver.h's clipping_count stat.
func CountClipping(samples []int16) int {
	count := 0
	for _, s := range samples {
		if s >= ClippingSampleMax || s <= -ClippingSampleMax {
			count++
		}
	}
	return count
}

// deinterleaveChannel extracts one channel's samples from an interleaved frame.
func deinterleaveChannel(samples []int16, channels, ch int) []int16 {
	n := len(samples) / channels
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = samples[i*channels+ch]
	}
	return out
}

func saturateInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
