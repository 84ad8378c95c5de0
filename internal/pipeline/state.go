package pipeline

import (
	"errors"
	"fmt"
)

// State is the lifecycle of a Coordinator.
type State int

const (
	Idle State = iota
	Running
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrInvalidTransition is wrapped by every refused lifecycle change.
var ErrInvalidTransition = errors.New("invalid lifecycle transition")

// transitions lists the allowed moves. Stopped ends a run; a later Start
// begins a new one with fresh counters and a new run ID.
var transitions = map[State][]State{
	Idle:    {Running},
	Running: {Paused, Stopped},
	Paused:  {Running, Stopped},
	Stopped: {Running},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to State) error {
	if CanTransition(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}
