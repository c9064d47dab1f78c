package audio

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// NullSink consumes audio at real-time speed without a device. Playback
// position, end-of-track and the tap all behave as with a speaker.
type NullSink struct {
	mu     sync.Mutex
	mixer  *beep.Mixer
	buf    [][2]float64
	stop   chan struct{}
	closed sync.Once
}

// NewNullSink starts draining at sampleRate in chunks of the given period
func NewNullSink(sampleRate beep.SampleRate, period time.Duration) *NullSink {
	if period <= 0 {
		period = 50 * time.Millisecond
	}

	s := &NullSink{
		mixer: &beep.Mixer{},
		buf:   make([][2]float64, sampleRate.N(period)),
		stop:  make(chan struct{}),
	}
	go s.drain(period)
	return s
}

func (s *NullSink) drain(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.mixer.Stream(s.buf)
			s.mu.Unlock()
		}
	}
}

func (s *NullSink) Play(st beep.Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mixer.Add(st)
}

func (s *NullSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mixer.Clear()
}

func (s *NullSink) Lock()   { s.mu.Lock() }
func (s *NullSink) Unlock() { s.mu.Unlock() }

func (s *NullSink) Close() {
	s.closed.Do(func() { close(s.stop) })
}
