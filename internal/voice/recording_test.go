package voice

import "testing"

func TestRecordingBufferAppendAndCopyOut(t *testing.T) {
	rb := NewRecordingBuffer(8) // 4 mono samples
	ok := rb.Append([]int16{1, 2})
	if !ok {
		t.Fatal("Append should fit within capacity")
	}
	if rb.Size() != 4 {
		t.Errorf("Size() = %d, want 4", rb.Size())
	}
	buf := make([]byte, 8)
	n := rb.CopyOut(buf)
	if n != 4 {
		t.Errorf("CopyOut returned %d bytes, want 4", n)
	}
	// little-endian: sample 1 -> 0x01 0x00, sample 2 -> 0x02 0x00
	want := []byte{1, 0, 2, 0}
	for i, b := range want {
		if buf[i] != b {
			t.Errorf("buf[%d] = %d, want %d", i, buf[i], b)
		}
	}
	if rb.Size() != 4 {
		t.Error("CopyOut must not reset size; caller resets explicitly")
	}
}

func TestRecordingBufferOverflowDropsSilently(t *testing.T) {
	rb := NewRecordingBuffer(4) // 2 mono samples capacity
	if !rb.Append([]int16{1, 2}) {
		t.Fatal("first append should fit exactly")
	}
	if rb.Append([]int16{3}) {
		t.Error("append beyond capacity should be dropped, not appended")
	}
	if rb.Size() != 4 {
		t.Errorf("Size() after overflow = %d, want unchanged 4", rb.Size())
	}
	if rb.Size() > rb.Capacity() {
		t.Errorf("recording.size %d exceeds capacity %d", rb.Size(), rb.Capacity())
	}
}

func TestRecordingBufferResetIdempotent(t *testing.T) {
	rb := NewRecordingBuffer(16)
	rb.Append([]int16{1, 2, 3})
	rb.Reset()
	rb.Reset()
	if rb.Size() != 0 {
		t.Errorf("Size() after double reset = %d, want 0", rb.Size())
	}
}

func TestRecordingBufferRoundTrip(t *testing.T) {
	const frameLen = 480
	const n = 5
	rb := NewRecordingBuffer(n * frameLen * 2)
	mono := make([]int16, frameLen)
	for i := 0; i < n; i++ {
		if !rb.Append(mono) {
			t.Fatalf("frame %d should fit", i)
		}
	}
	if rb.Size() != n*frameLen*2 {
		t.Errorf("Size() = %d, want %d", rb.Size(), n*frameLen*2)
	}
}
