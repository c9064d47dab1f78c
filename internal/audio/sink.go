package audio

import (
	"errors"

	"github.com/gopxl/beep/v2"
)

// ErrAudioUnavailable is returned when this build has no audio device support
var ErrAudioUnavailable = errors.New("audio output is not available in this build")

// Sink is the device the output pipeline is played on
type Sink interface {
	// Play adds a streamer to the device mix
	Play(s beep.Streamer)

	// Clear removes everything from the device mix
	Clear()

	// Lock and Unlock guard streamers that the device is pulling from
	Lock()
	Unlock()

	// Close releases the device
	Close()
}
