package main

import (
	malgodriver "github.com/wit-terminal/voicecore/internal/driver/malgo"
	"github.com/wit-terminal/voicecore/internal/voice"
)

// pipelineSink adapts a *voice.Context onto malgodriver.FrameSink, converting
// the driver's wire-shape Frame into the core's *voice.Frame. Kept in the
// binary rather than either package, since it is the one place that is
// allowed to depend on both.
type pipelineSink struct {
	ctx      *voice.Context
	channels int
	frameLen int
}

func newPipelineSink(ctx *voice.Context, channels, frameLen int) *pipelineSink {
	return &pipelineSink{ctx: ctx, channels: channels, frameLen: frameLen}
}

func (p *pipelineSink) SubmitFrame(f malgodriver.Frame) error {
	frame := voice.NewFrame(p.frameLen, p.channels)
	copy(frame.Samples, f.Samples)
	frame.TimestampMs = f.TimestampMs
	return p.ctx.SubmitFrame(frame)
}
