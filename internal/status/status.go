// Package status holds the shared playback status snapshot and keeps the
// user-facing preferences in it in sync with persisted configuration.
package status

import (
	"math"
	"time"

	"github.com/jfmyers9/murmur/internal/music"
)

// PlaybackStatus is the playback snapshot read by the UI
type PlaybackStatus struct {
	CurrentTime time.Duration  // Elapsed time in the current track
	Duration    time.Duration  // Total track duration (0 until known)
	Playing     bool           // Output is producing sound
	Loop        music.LoopMode // Repeat policy
	Muted       bool           // Output is muted
}

// Default returns the status a session starts with
func Default() PlaybackStatus {
	return PlaybackStatus{
		Loop: music.LoopLikeOnly,
	}
}

// SetCurrentTime records elapsed time, clamped to [0, Duration] once the
// duration is known
func (s *PlaybackStatus) SetCurrentTime(t time.Duration) {
	if t < 0 {
		t = 0
	}
	if s.Duration > 0 && t > s.Duration {
		t = s.Duration
	}
	s.CurrentTime = t
}

// Progress returns elapsed time as a whole percentage, rounded up
func (s PlaybackStatus) Progress() int {
	if s.CurrentTime <= 0 || s.Duration <= 0 {
		return 0
	}
	p := int(math.Ceil(float64(s.CurrentTime) / float64(s.Duration) * 100))
	if p > 100 {
		p = 100
	}
	return p
}
