package pipeline

import (
	"time"

	"capturesync/internal/overlay"
)

// EventState is the progress of one SourceEvent.
type EventState int

const (
	Detected EventState = iota
	Stable
	TimedOut
	Processed
	Skipped
	Failed
)

func (s EventState) String() string {
	switch s {
	case Detected:
		return "detected"
	case Stable:
		return "stable"
	case TimedOut:
		return "timed_out"
	case Processed:
		return "processed"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s EventState) Terminal() bool {
	return s == TimedOut || s == Processed || s == Skipped || s == Failed
}

// SourceEvent tracks one candidate file through the pipeline. Events are
// processed at most once and never re-queued.
type SourceEvent struct {
	Path        string
	DetectedAt  time.Time
	State       EventState
	Orientation overlay.Orientation
	Output      string
	Reason      string
	Faces       int
	Err         error
	Elapsed     time.Duration
}

func (e *SourceEvent) advance(state EventState) {
	if e.State.Terminal() {
		return
	}
	e.State = state
}
