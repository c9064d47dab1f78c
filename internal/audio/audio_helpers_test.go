package audio

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/generators"
	"github.com/gopxl/beep/v2/wav"
)

const testRate = beep.SampleRate(8000)

var testFormat = beep.Format{SampleRate: testRate, NumChannels: 2, Precision: 2}

// toneBuffer returns n samples of a 440Hz sine tone
func toneBuffer(t *testing.T, n int) *beep.Buffer {
	t.Helper()
	tone, err := generators.SineTone(testRate, 440)
	if err != nil {
		t.Fatalf("SineTone: %v", err)
	}
	buf := beep.NewBuffer(testFormat)
	buf.Append(beep.Take(n, tone))
	return buf
}

// writeToneWAV writes n samples of tone to a wav file and returns its path
func writeToneWAV(t *testing.T, n int) string {
	t.Helper()
	buf := toneBuffer(t, n)

	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	if err := wav.Encode(f, buf.Streamer(0, buf.Len()), testFormat); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return path
}

// fakeSink is a device that only streams when pulled by the test
type fakeSink struct {
	mu        sync.Mutex
	streamers []beep.Streamer
	closed    bool
}

func (s *fakeSink) Play(st beep.Streamer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamers = append(s.streamers, st)
}

func (s *fakeSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streamers = nil
}

func (s *fakeSink) Lock()   { s.mu.Lock() }
func (s *fakeSink) Unlock() { s.mu.Unlock() }

func (s *fakeSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// pull streams n samples from every playing streamer, mixing them, and drops
// drained streamers like the speaker mixer does
func (s *fakeSink) pull(n int) [][2]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	mix := make([][2]float64, n)
	tmp := make([][2]float64, n)
	kept := s.streamers[:0]
	for _, st := range s.streamers {
		got, ok := st.Stream(tmp)
		for i := 0; i < got; i++ {
			mix[i][0] += tmp[i][0]
			mix[i][1] += tmp[i][1]
		}
		if ok {
			kept = append(kept, st)
		}
	}
	s.streamers = kept
	return mix
}

func (s *fakeSink) playing() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streamers)
}

func energy(samples [][2]float64) float64 {
	var e float64
	for _, s := range samples {
		e += s[0]*s[0] + s[1]*s[1]
	}
	return e
}

func writeTextFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("not audio"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}
