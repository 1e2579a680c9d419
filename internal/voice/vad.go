package voice

// VADState carries the hysteresis counter across frames. Owned exclusively
// by the processor goroutine — never accessed from any other goroutine.
type VADState struct {
	FrameCount int
	Active     bool
}

// VADResult is the per-frame outcome of the two-feature VAD decision.
type VADResult struct {
	EnergyPerChannel []float64
	AvgEnergyDB      float64
	EnergyVAD        bool
	ChannelVAD       bool
	Active           bool
	RisingEdge       bool
}

// DetectVoiceActivity implements spec.md §4.3's two-feature hysteresis VAD.
// marginScale adjusts both energy margins uniformly (see SetNoiseSuppression);
// 1.0 reproduces the spec's literal 10dB/6dB margins.
func DetectVoiceActivity(samples []int16, channels int, noiseFloorDB, marginScale float64, frameThreshold int, state *VADState) VADResult {
	perChannel := make([]float64, channels)
	var total float64
	activeChannels := 0

	for ch := 0; ch < channels; ch++ {
		chSamples := deinterleaveChannel(samples, channels, ch)
		db := EnergyDB(chSamples)
		perChannel[ch] = db
		total += db
		if db > noiseFloorDB+ChannelVADMarginDB*marginScale {
			activeChannels++
		}
	}
	avg := total / float64(channels)

	energyVAD := avg > noiseFloorDB+EnergyVADMarginDB*marginScale
	channelVAD := activeChannels >= channels/2

	wasActive := state.Active
	if energyVAD && channelVAD {
		state.FrameCount++
	} else {
		state.FrameCount = 0
	}
	state.Active = state.FrameCount >= frameThreshold

	return VADResult{
		EnergyPerChannel: perChannel,
		AvgEnergyDB:      avg,
		EnergyVAD:        energyVAD,
		ChannelVAD:       channelVAD,
		Active:           state.Active,
		RisingEdge:       state.Active && !wasActive,
	}
}
