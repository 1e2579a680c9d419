package voice

// RecordingBuffer is the bounded mono sink for the post-wake utterance
// (spec.md §3/§4.8). It is written only by the processor while the session
// is in RECORDING, and read/reset by GetRecording via the control channel —
// no separate locking is needed since both paths run on the processor
// goroutine (see context.go's controlCh).
type RecordingBuffer struct {
	data []byte
	size int
}

// NewRecordingBuffer allocates a buffer with the given byte capacity.
func NewRecordingBuffer(capacityBytes int) *RecordingBuffer {
	return &RecordingBuffer{data: make([]byte, capacityBytes)}
}

// Reset truncates the buffer to empty without releasing its backing array.
func (r *RecordingBuffer) Reset() {
	r.size = 0
}

// Append converts mono int16 PCM to little-endian bytes and appends it. If
// the frame would overflow capacity, it is silently dropped (the session
// continues per spec.md §4.8) and Append returns false.
func (r *RecordingBuffer) Append(mono []int16) bool {
	frameBytes := len(mono) * 2
	if r.size+frameBytes > len(r.data) {
		return false
	}
	for i, s := range mono {
		off := r.size + i*2
		r.data[off] = byte(uint16(s))
		r.data[off+1] = byte(uint16(s) >> 8)
	}
	r.size += frameBytes
	return true
}

// Size returns the number of valid bytes currently held.
func (r *RecordingBuffer) Size() int {
	return r.size
}

// Capacity returns the fixed byte capacity.
func (r *RecordingBuffer) Capacity() int {
	return len(r.data)
}

// CopyOut copies up to len(buf) bytes of the recording into buf and returns
// the number of bytes written. It does not reset the buffer — callers
// (Context.GetRecording) reset explicitly after copying, per spec.md's
// "resets size, -> IDLE" contract (see DESIGN.md Open Question #1).
func (r *RecordingBuffer) CopyOut(buf []byte) int {
	n := r.size
	if n > len(buf) {
		n = len(buf)
	}
	copy(buf[:n], r.data[:n])
	return n
}
