//go:build (linux && cgo) || windows || darwin

package audio

import (
	"fmt"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// AudioAvailable indicates whether audio playback is supported in this build.
const AudioAvailable = true

type speakerSink struct{}

// NewSpeakerSink initializes the system speaker with the given buffer latency
func NewSpeakerSink(sampleRate beep.SampleRate, latency time.Duration) (Sink, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(latency)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	return speakerSink{}, nil
}

func (speakerSink) Play(s beep.Streamer) { speaker.Play(s) }
func (speakerSink) Clear()               { speaker.Clear() }
func (speakerSink) Lock()                { speaker.Lock() }
func (speakerSink) Unlock()              { speaker.Unlock() }
func (speakerSink) Close()               { speaker.Close() }
