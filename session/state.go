package session

// State is where the active session currently is. Cancelled and Failed are
// transient: cleanup runs and the controller returns to Idle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateTranscribing
	StateEnhancing
	StateDelivering
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateTranscribing:
		return "transcribing"
	case StateEnhancing:
		return "enhancing"
	case StateDelivering:
		return "delivering"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Status is the observable surface the UI binds to.
type Status struct {
	State          State
	IsRecording    bool
	IsProcessing   bool
	IsTranscribing bool
}
