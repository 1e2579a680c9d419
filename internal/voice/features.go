package voice

import "math"

// FeatureConfig configures the MFCC-style extractor feeding the wake-word
// scorer. Per spec.md §9 Open Questions, the precise MFCC parameters are
// left to the backend by the original source; these are reasonable DSP
// defaults, not a contract the backend must match exactly.
type FeatureConfig struct {
	SampleRate    int
	FrameSizeMs   int
	FrameStrideMs int
	NumFilters    int
	NumCoeffs     int
	PreEmphasis   float64
	UseEnergy     bool
	UseDeltas     bool
}

// DefaultFeatureConfig returns typical frame/stride values for a 16kHz
// wake-word model; with these defaults Extract returns 14 values (an energy
// term plus 13 cepstral coefficients).
func DefaultFeatureConfig(sampleRate int) FeatureConfig {
	return FeatureConfig{
		SampleRate:    sampleRate,
		FrameSizeMs:   25,
		FrameStrideMs: 10,
		NumFilters:    26,
		NumCoeffs:     13,
		PreEmphasis:   0.97,
		UseEnergy:     true,
		UseDeltas:     false,
	}
}

// FeatureExtractor computes MFCC-style features from mono PCM. Each call
// takes one magnitude spectrum of the whole mono frame, with no analysis
// window and no splitting into sub-frames: FrameSizeMs only sizes the mel
// filterbank, and FrameStrideMs is not used. It holds no per-call mutable
// state besides its configuration, so it's safe to share across frames processed serially by the processor.
type FeatureExtractor struct {
	cfg         FeatureConfig
	melFilters  [][]float64
	frameSamps  int
}

// NewFeatureExtractor builds an extractor and precomputes its mel filterbank.
func NewFeatureExtractor(cfg FeatureConfig) *FeatureExtractor {
	frameSamps := cfg.SampleRate * cfg.FrameSizeMs / 1000
	return &FeatureExtractor{
		cfg:        cfg,
		frameSamps: frameSamps,
		melFilters: buildMelFilterbank(cfg.NumFilters, frameSamps, cfg.SampleRate),
	}
}

// Extract returns a flat feature vector for the given mono frame: NumCoeffs
// cepstral coefficients, optionally with a leading energy term and/or a
// trailing delta block.
func (f *FeatureExtractor) Extract(mono []int16) []float32 {
	samples := applyPreEmphasis(mono, f.cfg.PreEmphasis)
	spectrum := magnitudeSpectrum(samples, f.frameSamps)
	melEnergies := applyMelFilterbank(spectrum, f.melFilters)
	cepstral := dctII(melEnergies, f.cfg.NumCoeffs)

	out := make([]float32, 0, f.cfg.NumCoeffs+2)
	if f.cfg.UseEnergy {
		out = append(out, float32(EnergyDB(mono)))
	}
	for _, c := range cepstral {
		out = append(out, float32(c))
	}
	if f.cfg.UseDeltas {
		deltas := computeDeltas(cepstral)
		for _, d := range deltas {
			out = append(out, float32(d))
		}
	}
	return out
}

func applyPreEmphasis(samples []int16, coeff float64) []float64 {
	out := make([]float64, len(samples))
	var prev float64
	for i, s := range samples {
		cur := float64(s)
		out[i] = cur - coeff*prev
		prev = cur
	}
	return out
}

// magnitudeSpectrum computes a naive DFT magnitude spectrum. The frame
// lengths here (tens of milliseconds of audio) make an O(n^2) DFT acceptable
// for a reference implementation; no FFT library appears anywhere in the
// example pack to ground a faster one (justified stdlib use, see DESIGN.md).
func magnitudeSpectrum(samples []float64, frameSamps int) []float64 {
	n := len(samples)
	if n == 0 {
		return nil
	}
	bins := n/2 + 1
	out := make([]float64, bins)
	for k := 0; k < bins; k++ {
		var re, im float64
		w := 2 * math.Pi * float64(k) / float64(n)
		for t, s := range samples {
			re += s * math.Cos(w*float64(t))
			im -= s * math.Sin(w*float64(t))
		}
		out[k] = math.Hypot(re, im)
	}
	return out
}

func buildMelFilterbank(numFilters, frameSamps, sampleRate int) [][]float64 {
	bins := frameSamps/2 + 1
	if bins <= 0 {
		bins = 1
	}
	melMin, melMax := hzToMel(0), hzToMel(float64(sampleRate)/2)
	points := make([]float64, numFilters+2)
	for i := range points {
		mel := melMin + (melMax-melMin)*float64(i)/float64(numFilters+1)
		hz := melToHz(mel)
		points[i] = hz / (float64(sampleRate) / 2) * float64(bins-1)
	}
	filters := make([][]float64, numFilters)
	for m := 0; m < numFilters; m++ {
		filter := make([]float64, bins)
		left, center, right := points[m], points[m+1], points[m+2]
		for k := 0; k < bins; k++ {
			fk := float64(k)
			switch {
			case fk < left || fk > right:
				filter[k] = 0
			case fk <= center:
				if center > left {
					filter[k] = (fk - left) / (center - left)
				}
			default:
				if right > center {
					filter[k] = (right - fk) / (right - center)
				}
			}
		}
		filters[m] = filter
	}
	return filters
}

func hzToMel(hz float64) float64   { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64  { return 700 * (math.Pow(10, mel/2595) - 1) }

func applyMelFilterbank(spectrum []float64, filters [][]float64) []float64 {
	out := make([]float64, len(filters))
	for i, filt := range filters {
		var energy float64
		for k, v := range filt {
			if k < len(spectrum) {
				energy += v * spectrum[k]
			}
		}
		if energy < 1e-10 {
			energy = 1e-10
		}
		out[i] = math.Log(energy)
	}
	return out
}

// dctII returns the first numCoeffs coefficients of a type-II DCT, the
// standard final step turning mel log-energies into cepstral coefficients.
func dctII(melLogEnergies []float64, numCoeffs int) []float64 {
	n := len(melLogEnergies)
	out := make([]float64, numCoeffs)
	for k := 0; k < numCoeffs; k++ {
		var sum float64
		for i, e := range melLogEnergies {
			sum += e * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		out[k] = sum
	}
	return out
}

func computeDeltas(coeffs []float64) []float64 {
	deltas := make([]float64, len(coeffs))
	for i := range coeffs {
		switch {
		case i == 0:
			deltas[i] = coeffs[min1(i+1, len(coeffs)-1)] - coeffs[i]
		case i == len(coeffs)-1:
			deltas[i] = coeffs[i] - coeffs[i-1]
		default:
			deltas[i] = (coeffs[i+1] - coeffs[i-1]) / 2
		}
	}
	return deltas
}

func min1(a, b int) int {
	if a < b {
		return a
	}
	return b
}
