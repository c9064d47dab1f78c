package audio

import (
	"sync"

	"github.com/gopxl/beep/v2"
)

// Tap is a streamer wrapper that copies a mono mix of everything passing
// through it into a ring buffer for the visualizer. The wrapped streamer can
// be swapped between tracks while the tap itself stays in place.
type Tap struct {
	s    beep.Streamer // guarded by the sink lock
	mu   sync.Mutex
	buf  []float64
	pos  int
	size int
}

// NewTap creates a tap with a ring buffer of the given size
func NewTap(s beep.Streamer, bufSize int) *Tap {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &Tap{
		s:    s,
		buf:  make([]float64, bufSize),
		size: bufSize,
	}
}

// SetSource replaces the wrapped streamer. Must be called with the sink lock held.
func (t *Tap) SetSource(s beep.Streamer) {
	t.s = s
}

// Stream passes audio through while capturing it into the ring buffer
func (t *Tap) Stream(samples [][2]float64) (int, bool) {
	if t.s == nil {
		return 0, false
	}
	n, ok := t.s.Stream(samples)
	t.mu.Lock()
	for i := range n {
		t.buf[t.pos] = (samples[i][0] + samples[i][1]) / 2
		t.pos = (t.pos + 1) % t.size
	}
	t.mu.Unlock()
	return n, ok
}

// Err returns the underlying streamer's error
func (t *Tap) Err() error {
	if t.s == nil {
		return nil
	}
	return t.s.Err()
}

// Samples returns the last n samples in chronological order
func (t *Tap) Samples(n int) []float64 {
	if n > t.size {
		n = t.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	t.mu.Lock()
	start := (t.pos - n + t.size) % t.size
	for i := range n {
		out[i] = t.buf[(start+i)%t.size]
	}
	t.mu.Unlock()
	return out
}

// Reset clears the ring buffer so stale audio is not shown
func (t *Tap) Reset() {
	t.mu.Lock()
	clear(t.buf)
	t.pos = 0
	t.mu.Unlock()
}

// Size returns the ring buffer capacity
func (t *Tap) Size() int {
	return t.size
}
