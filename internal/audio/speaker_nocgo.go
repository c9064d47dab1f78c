//go:build !((linux && cgo) || windows || darwin)

package audio

import (
	"time"

	"github.com/gopxl/beep/v2"
)

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires CGO for native sound libraries on linux.
const AudioAvailable = false

// NewSpeakerSink always fails when cgo is disabled
func NewSpeakerSink(sampleRate beep.SampleRate, latency time.Duration) (Sink, error) {
	return nil, ErrAudioUnavailable
}
