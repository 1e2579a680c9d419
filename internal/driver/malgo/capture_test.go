package malgo

import (
	"encoding/binary"
	"testing"
)

func TestBytesToInt16(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		expect []int16
	}{
		{"empty", []byte{}, []int16{}},
		{"single sample zero", []byte{0, 0}, []int16{0}},
		{"single sample positive", le16(1234), []int16{1234}},
		{"single sample negative", le16(-1), []int16{-1}},
		{"two samples", append(le16(100), le16(-100)...), []int16{100, -100}},
		{"odd trailing byte dropped", []byte{0, 0, 1}, []int16{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := bytesToInt16(tt.input)
			if len(got) != len(tt.expect) {
				t.Fatalf("bytesToInt16(%v) len = %d, want %d", tt.input, len(got), len(tt.expect))
			}
			for i := range got {
				if got[i] != tt.expect[i] {
					t.Errorf("bytesToInt16(%v)[%d] = %d, want %d", tt.input, i, got[i], tt.expect[i])
				}
			}
		})
	}
}

func le16(v int16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, uint16(v))
	return b
}

type fakeSink struct {
	frames []Frame
	err    error
}

func (s *fakeSink) SubmitFrame(f Frame) error {
	s.frames = append(s.frames, f)
	return s.err
}

func newTestCapturer(sink FrameSink, channels, frameLen int) *Capturer {
	return &Capturer{
		cfg:  Config{SampleRate: 16000, Channels: channels, FrameLen: frameLen},
		sink: sink,
	}
}

func TestOnSamplesEmitsExactlyOneCompleteFrame(t *testing.T) {
	sink := &fakeSink{}
	c := newTestCapturer(sink, 2, 4) // 4 samples/channel * 2 channels = 8 interleaved samples/frame

	raw := make([]byte, 8*2) // exactly one frame's worth of int16 bytes
	for i := range raw {
		raw[i] = byte(i)
	}
	c.onSamples(raw)

	if len(sink.frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(sink.frames))
	}
	if len(sink.frames[0].Samples) != 8 {
		t.Errorf("frame has %d samples, want 8", len(sink.frames[0].Samples))
	}
}

func TestOnSamplesAccumulatesPartialFrameAcrossCalls(t *testing.T) {
	sink := &fakeSink{}
	c := newTestCapturer(sink, 1, 4) // 4 interleaved samples/frame

	c.onSamples(make([]byte, 4)) // 2 samples, incomplete
	if len(sink.frames) != 0 {
		t.Fatalf("got %d frames after partial delivery, want 0", len(sink.frames))
	}

	c.onSamples(make([]byte, 4)) // 2 more samples, completes the frame
	if len(sink.frames) != 1 {
		t.Fatalf("got %d frames after completing delivery, want 1", len(sink.frames))
	}
}

func TestOnSamplesSlicesMultipleFramesFromOneCallback(t *testing.T) {
	sink := &fakeSink{}
	c := newTestCapturer(sink, 1, 4)

	c.onSamples(make([]byte, 4*2*3+2)) // 3 complete frames plus 1 leftover sample

	if len(sink.frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(sink.frames))
	}
	if len(c.pending) != 1 {
		t.Errorf("pending has %d leftover samples, want 1", len(c.pending))
	}
}

func TestOnSamplesIgnoresEmptyInput(t *testing.T) {
	sink := &fakeSink{}
	c := newTestCapturer(sink, 1, 4)

	c.onSamples(nil)
	if len(sink.frames) != 0 || len(c.pending) != 0 {
		t.Error("onSamples(nil) should not emit frames or buffer samples")
	}
}
