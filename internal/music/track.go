package music

import "errors"

// Track is one entry of the externally owned track list
type Track struct {
	ID    string // Unique identity within the list
	Name  string // Display name
	URL   string // Source locator: file path, file:// URI or http(s) URL
	Liked bool   // Marked as preferred by the user
}

// PlayState represents the lifecycle state of the playback session
type PlayState int

const (
	StateIdle    PlayState = iota // No track loaded
	StateLoading                  // Source assigned, decode not finished
	StatePlaying                  // Track is currently playing
	StatePaused                   // Track is paused
	StateEnded                    // Track reached its natural end
)

// String returns a human-readable representation of the PlayState
func (s PlayState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Loaded reports whether a track is assigned to the output
func (s PlayState) Loaded() bool {
	return s != StateIdle
}

var (
	// ErrNoTrack is returned when navigation is attempted on an empty list
	// or an id does not resolve to a track.
	ErrNoTrack = errors.New("no track")

	// ErrNoSelection is returned by Next and Prev when there is no current track.
	ErrNoSelection = errors.New("no current track")

	// ErrNotFound means the liked-track search found no other liked track.
	// It is an outcome, not a failure.
	ErrNotFound = errors.New("no other liked track")
)
