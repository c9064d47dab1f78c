package audio

import (
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// Looper streams its source and, while repeat is armed, seeks back to the
// start instead of ending. Repeat can be toggled during playback.
type Looper struct {
	s      beep.StreamSeeker
	repeat atomic.Bool
	loops  atomic.Int64
	err    error
}

// NewLooper wraps s
func NewLooper(s beep.StreamSeeker, repeat bool) *Looper {
	l := &Looper{s: s}
	l.repeat.Store(repeat)
	return l
}

// SetRepeat arms or disarms repeat
func (l *Looper) SetRepeat(on bool) {
	l.repeat.Store(on)
}

// Repeat reports whether repeat is armed
func (l *Looper) Repeat() bool {
	return l.repeat.Load()
}

// Loops returns how many times the source wrapped around
func (l *Looper) Loops() int64 {
	return l.loops.Load()
}

// Stream fills samples, wrapping to the start of the source while repeat is armed
func (l *Looper) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) {
		sn, sok := l.s.Stream(samples[n:])
		n += sn
		if sok {
			if sn == 0 {
				return n, true
			}
			continue
		}

		// Source drained
		if !l.repeat.Load() || l.s.Len() == 0 {
			return n, n > 0
		}
		if err := l.s.Seek(0); err != nil {
			l.err = err
			return n, n > 0
		}
		l.loops.Add(1)
	}
	return n, true
}

// Err returns the seek error if one occurred, else the source's error
func (l *Looper) Err() error {
	if l.err != nil {
		return l.err
	}
	return l.s.Err()
}

// Len returns the source length in samples
func (l *Looper) Len() int {
	return l.s.Len()
}

// Position returns the source position in samples
func (l *Looper) Position() int {
	return l.s.Position()
}

// Seek moves the source position
func (l *Looper) Seek(p int) error {
	return l.s.Seek(p)
}
