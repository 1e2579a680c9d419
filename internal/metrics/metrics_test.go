package metrics

import (
	"context"
	"testing"

	"github.com/wit-terminal/voicecore/internal/voice"
)

type fakeSource struct {
	stats voice.Stats
	state voice.State
}

func (f fakeSource) GetStats() voice.Stats { return f.stats }
func (f fakeSource) GetState() voice.State { return f.state }

func TestRegisterSourceNoError(t *testing.T) {
	exp, err := NewExporter()
	if err != nil {
		t.Fatalf("NewExporter: %v", err)
	}
	defer exp.Shutdown(context.Background())

	src := fakeSource{
		stats: voice.Stats{FramesProcessed: 10, ClippingCount: []uint64{0, 1, 2, 3}},
		state: voice.StateListening,
	}
	if err := exp.RegisterSource(src); err != nil {
		t.Fatalf("RegisterSource: %v", err)
	}
}
