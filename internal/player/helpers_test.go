package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/murmur/internal/audio"
	"github.com/jfmyers9/murmur/internal/music"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/rs/zerolog"
)

var errBroken = errors.New("broken source")

// fakeOutput records transport calls and emits events like the real output
type fakeOutput struct {
	mu       sync.Mutex
	events   chan audio.Event
	duration time.Duration

	fail  map[string]bool
	gates map[string]chan struct{}

	latest  uint64
	gen     uint64
	loaded  string
	pos     time.Duration
	repeat  bool
	muted   bool
	loads   []string
	seeks   []time.Duration
	plays   int
	stopped bool
	closed  bool
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{
		events:   make(chan audio.Event, 64),
		duration: 3 * time.Minute,
		fail:     map[string]bool{},
		gates:    map[string]chan struct{}{},
	}
}

func (f *fakeOutput) Load(ctx context.Context, gen uint64, url string) error {
	f.mu.Lock()
	if gen < f.latest {
		f.mu.Unlock()
		return audio.ErrSuperseded
	}
	f.latest = gen
	f.loads = append(f.loads, url)
	gate := f.gates[url]
	fail := f.fail[url]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if fail {
		return errBroken
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.latest {
		return audio.ErrSuperseded
	}
	f.gen = gen
	f.loaded = url
	f.pos = 0
	return nil
}

func (f *fakeOutput) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded == "" {
		return audio.ErrNotLoaded
	}
	f.plays++
	f.events <- audio.Event{Kind: audio.EventStarted, Gen: f.gen, Position: f.pos, Duration: f.duration}
	return nil
}

func (f *fakeOutput) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded == "" {
		return audio.ErrNotLoaded
	}
	f.events <- audio.Event{Kind: audio.EventPaused, Gen: f.gen}
	return nil
}

func (f *fakeOutput) Seek(d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded == "" {
		return audio.ErrNotLoaded
	}
	f.seeks = append(f.seeks, d)
	f.pos = d
	return nil
}

func (f *fakeOutput) SetRepeat(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repeat = on
}

func (f *fakeOutput) SetMuted(muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.muted = muted
}

func (f *fakeOutput) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.loaded = ""
	f.gen = 0
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeOutput) Events() <-chan audio.Event {
	return f.events
}

// end simulates the loaded track draining
func (f *fakeOutput) end() {
	f.mu.Lock()
	gen := f.gen
	f.mu.Unlock()
	f.events <- audio.Event{Kind: audio.EventEnded, Gen: gen}
}

// advance simulates a position report for the loaded track
func (f *fakeOutput) advance(pos time.Duration) {
	f.mu.Lock()
	gen := f.gen
	f.mu.Unlock()
	f.events <- audio.Event{Kind: audio.EventTimeAdvanced, Gen: gen, Position: pos}
}

func (f *fakeOutput) snapshot() fakeOutput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeOutput{
		repeat:  f.repeat,
		muted:   f.muted,
		loads:   append([]string(nil), f.loads...),
		seeks:   append([]time.Duration(nil), f.seeks...),
		plays:   f.plays,
		stopped: f.stopped,
		closed:  f.closed,
	}
}

// memPrefs is an in-memory preferences store
type memPrefs struct {
	mu     sync.Mutex
	values map[string]any
}

func (m *memPrefs) Set(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memPrefs) Lookup(key string) (any, bool) {
	return m.get(key)
}

func (m *memPrefs) get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

type harness struct {
	s      *Session
	out    *fakeOutput
	prefs  *memPrefs
	cancel context.CancelFunc
}

func newHarness(t *testing.T, tracks []music.Track, loop music.LoopMode, opts ...Option) *harness {
	t.Helper()
	return newHarnessWithConfig(t, Config{
		SkipOnLoadFailure: true,
		MaxLoadRetries:    3,
		LoadTimeout:       2 * time.Second,
	}, tracks, loop, opts...)
}

func newHarnessWithConfig(t *testing.T, cfg Config, tracks []music.Track, loop music.LoopMode, opts ...Option) *harness {
	t.Helper()

	out := newFakeOutput()
	prefs := &memPrefs{values: map[string]any{}}
	initial := status.Default()
	initial.Loop = loop

	opts = append([]Option{WithPreferences(prefs)}, opts...)
	s := New(cfg, out, initial, zerolog.Nop(), opts...)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = s.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-s.Done()
	})

	if err := s.SetTracks(context.Background(), tracks); err != nil {
		t.Fatalf("SetTracks: %v", err)
	}
	return &harness{s: s, out: out, prefs: prefs, cancel: cancel}
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// waitPlaying waits until the track with the given id is playing
func (h *harness) waitPlaying(t *testing.T, id string) {
	t.Helper()
	waitFor(t, id+" playing", func() bool {
		return h.s.Selection().ID == id && h.s.State() == music.StatePlaying
	})
}

func tracks(ids ...string) []music.Track {
	out := make([]music.Track, 0, len(ids))
	for _, id := range ids {
		out = append(out, music.Track{ID: id, Name: "Track " + id, URL: "/music/" + id + ".mp3"})
	}
	return out
}

func liked(list []music.Track, ids ...string) []music.Track {
	for i := range list {
		for _, id := range ids {
			if list[i].ID == id {
				list[i].Liked = true
			}
		}
	}
	return list
}
