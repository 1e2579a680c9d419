package voice

// State is the session's tagged-variant position in spec.md §4.6's machine.
// All transitions are performed exclusively by the processor goroutine.
type State int

const (
	StateIdle State = iota
	StateListening
	StateWakeDetected
	StateRecording
	StateProcessing
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateWakeDetected:
		return "wake_detected"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// sessionAux holds the state machine's tag plus its auxiliary timing fields
// (spec.md §3's "Session state"). Mutated only by the processor goroutine,
// through the controlCh/frame-processing paths in context.go; read by
// GetState via the guard.
type sessionAux struct {
	state                State
	recordingStartTime   int64
	lastWakeTime         int64
	maxRecordingDuration int64
}
