// Package stream drives the produce, transform and publish loop. A Runner
// is a state machine advanced one step at a time so that cancellation is
// observed between every emission and during pacing waits.
package stream

// State is a stage of a run's lifecycle.
type State int

const (
	Starting State = iota
	Running
	Looping
	Draining
	Stopped
)

// String returns the upper-case state name used in logs.
func (s State) String() string {
	switch s {
	case Starting:
		return "STARTING"
	case Running:
		return "RUNNING"
	case Looping:
		return "LOOPING"
	case Draining:
		return "DRAINING"
	case Stopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Active reports whether samples are being produced in this state.
func (s State) Active() bool {
	return s == Running || s == Looping
}

// Observer is notified of every state transition.
type Observer func(from, to State)
