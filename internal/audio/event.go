package audio

import "time"

// EventKind identifies an output lifecycle event
type EventKind int

const (
	EventStarted      EventKind = iota // Playback started or resumed
	EventPaused                        // Playback paused
	EventTimeAdvanced                  // Position moved forward
	EventEnded                         // Track reached its end without repeat armed
)

// String returns a human-readable representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventTimeAdvanced:
		return "time_advanced"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Event is a lifecycle message from the output unit
type Event struct {
	Kind     EventKind
	Gen      uint64        // Load generation the event belongs to
	Position time.Duration // Current position (started, time_advanced)
	Duration time.Duration // Track duration (started)
}
