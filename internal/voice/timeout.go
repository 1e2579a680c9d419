package voice

import (
	"sync"
	"time"
)

// TimeoutService manages the wake timer from spec.md §4.9; the recording
// timeout has no timer and is checked per frame in runStateMachine. Timer
// callbacks must not mutate state directly — per Design Notes §9 they are
// represented as a scheduled message delivered into the processor's event
// stream, so callbacks here only ever call the function the processor
// handed them (itself a controlCh send), never touch session state inline.
type TimeoutService struct {
	mu        sync.Mutex
	wakeTimer *time.Timer
}

// NewTimeoutService creates an idle timeout service.
func NewTimeoutService() *TimeoutService {
	return &TimeoutService{}
}

// ArmWakeTimeout (re)arms the wake-timeout timer, grounded on the teacher's
// memory/batcher.go time.AfterFunc pattern. fn is invoked on a separate
// goroutine when the timer fires; it must be safe to call from any
// goroutine (it is expected to be a controlCh send, not a direct mutation).
func (t *TimeoutService) ArmWakeTimeout(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.wakeTimer != nil {
		t.wakeTimer.Stop()
	}
	t.wakeTimer = time.AfterFunc(d, fn)
}

// CancelWakeTimeout stops any pending wake-timeout without firing it.
func (t *TimeoutService) CancelWakeTimeout() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.wakeTimer != nil {
		t.wakeTimer.Stop()
		t.wakeTimer = nil
	}
}

// Stop tears down any pending timers; called from Deinit.
func (t *TimeoutService) Stop() {
	t.CancelWakeTimeout()
}
