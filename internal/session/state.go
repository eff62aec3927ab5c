package session

// State represents the lifecycle of a capture session.
type State string

const (
	StateCreated   State = "created"
	StateStarted   State = "started"
	StateDone      State = "done"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// ProgressUnknown is returned by progress queries for identifiers with no
// started session. It distinguishes absence from a real 0% session.
const ProgressUnknown = -1

func clampPercent(percent int) int {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}
