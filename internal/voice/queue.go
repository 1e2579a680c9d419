package voice

import (
	"sync/atomic"

	"github.com/wit-terminal/voicecore/internal/errors"
)

// FrameQueue is the bounded producer-to-processor hand-off from spec.md
// §4.1: non-blocking enqueue that drops with an overrun count on full,
// blocking dequeue for the single processor consumer, strict FIFO, no
// duplication.
type FrameQueue struct {
	ch       chan *Frame
	overruns atomic.Uint64
}

// NewFrameQueue creates a queue with the given capacity (>= 8 per spec.md).
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = DefaultFrameQueueCapacity
	}
	return &FrameQueue{ch: make(chan *Frame, capacity)}
}

// Enqueue attempts a non-blocking send. On a full queue it increments the
// overrun counter and returns a BufferOverflow error; the frame is dropped.
func (q *FrameQueue) Enqueue(f *Frame) error {
	select {
	case q.ch <- f:
		return nil
	default:
		q.overruns.Add(1)
		return errors.New(errors.BufferOverflow, "frame queue full, frame dropped")
	}
}

// C returns the receive channel for the processor's select loop.
func (q *FrameQueue) C() <-chan *Frame {
	return q.ch
}

// Overruns returns the total number of frames dropped due to a full queue.
func (q *FrameQueue) Overruns() uint64 {
	return q.overruns.Load()
}
