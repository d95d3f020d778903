package story

import "github.com/olivoil/onewordstory/internal/failure"

// Phase is the synchronizer's operation phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

// State is a snapshot of the current operation state. Err is the most recent
// failure and is only set in PhaseError.
type State struct {
	Phase Phase
	Err   error
}

// Message returns the user-facing error text, if any.
func (s State) Message() string {
	return failure.Message(s.Err)
}
