package player

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by commands issued after the session stopped
var ErrClosed = errors.New("session closed")

// LoadFailedError reports a source that could not be opened or decoded
type LoadFailedError struct {
	ID  string // Track id
	URL string // Source locator
	Err error  // Underlying open/decode error
}

func (e *LoadFailedError) Error() string {
	return fmt.Sprintf("failed to load track %s (%s): %v", e.ID, e.URL, e.Err)
}

func (e *LoadFailedError) Unwrap() error {
	return e.Err
}
