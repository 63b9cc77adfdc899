package stage

import "fmt"

// State is the lifecycle state of a Stage.
type State int

const (
	// StateIdle is the state of a stage that has not been started.
	StateIdle State = iota
	// StateRunning indicates the coordinator is accepting items.
	StateRunning
	// StateDraining indicates the marker was read and dispatched workers are finishing.
	StateDraining
	// StateShutdown indicates the marker was forwarded. Terminal.
	StateShutdown
	// StateInterrupted indicates the stage stopped because its context was cancelled. Terminal.
	StateInterrupted
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateDraining:
		return "Draining"
	case StateShutdown:
		return "Shutdown"
	case StateInterrupted:
		return "Interrupted"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// Terminal reports whether the state is Shutdown or Interrupted.
func (s State) Terminal() bool {
	return s == StateShutdown || s == StateInterrupted
}
