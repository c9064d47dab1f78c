package audio

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestOutput(t *testing.T) (*Output, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	cfg := Config{
		SampleRate:   testRate,
		TapSize:      256,
		PollInterval: time.Hour,
		EventBuffer:  16,
	}
	out := NewOutput(cfg, sink, zerolog.Nop())
	t.Cleanup(func() { _ = out.Close() })
	return out, sink
}

func nextEvent(t *testing.T, out *Output) Event {
	t.Helper()
	select {
	case ev := <-out.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output event")
		return Event{}
	}
}

func TestOutputPlaysToEnd(t *testing.T) {
	out, sink := newTestOutput(t)
	path := writeToneWAV(t, 800)

	if err := out.Load(context.Background(), 1, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := out.Duration(); got != 100*time.Millisecond {
		t.Errorf("Duration() = %v, want 100ms", got)
	}

	// Loaded but paused: silence
	if e := energy(sink.pull(100)); e != 0 {
		t.Errorf("paused output produced energy %v", e)
	}

	if err := out.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	ev := nextEvent(t, out)
	if ev.Kind != EventStarted || ev.Gen != 1 || ev.Duration != 100*time.Millisecond {
		t.Errorf("unexpected started event: %+v", ev)
	}

	if e := energy(sink.pull(400)); e == 0 {
		t.Error("playing output produced no energy")
	}
	if e := energy(to2(out.Tap().Samples(256))); e == 0 {
		t.Error("tap captured no signal")
	}

	sink.pull(1000)
	ev = nextEvent(t, out)
	if ev.Kind != EventEnded || ev.Gen != 1 {
		t.Errorf("unexpected event after end: %+v", ev)
	}
	sink.pull(10)
	if sink.playing() != 0 {
		t.Errorf("expected pipeline removed from sink after end, %d playing", sink.playing())
	}
}

func TestOutputReplayAfterEnd(t *testing.T) {
	out, sink := newTestOutput(t)
	path := writeToneWAV(t, 400)

	if err := out.Load(context.Background(), 3, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := out.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	nextEvent(t, out)

	sink.pull(1000)
	if ev := nextEvent(t, out); ev.Kind != EventEnded {
		t.Fatalf("expected ended, got %+v", ev)
	}
	sink.pull(10)

	if err := out.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if err := out.Play(); err != nil {
		t.Fatalf("Play after end: %v", err)
	}
	ev := nextEvent(t, out)
	if ev.Kind != EventStarted || ev.Gen != 3 || ev.Position != 0 {
		t.Errorf("unexpected restart event: %+v", ev)
	}
	if sink.playing() != 1 {
		t.Fatalf("expected pipeline re-attached, %d playing", sink.playing())
	}
	if e := energy(sink.pull(200)); e == 0 {
		t.Error("replayed track produced no energy")
	}
}

func TestOutputRepeatDoesNotEnd(t *testing.T) {
	out, sink := newTestOutput(t)
	path := writeToneWAV(t, 200)

	out.SetRepeat(true)
	if err := out.Load(context.Background(), 1, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := out.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if ev := nextEvent(t, out); ev.Kind != EventStarted {
		t.Fatalf("expected started, got %+v", ev)
	}

	for i := 0; i < 10; i++ {
		sink.pull(100)
	}

	select {
	case ev := <-out.Events():
		t.Fatalf("unexpected event while repeat armed: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	if sink.playing() != 1 {
		t.Errorf("expected pipeline still playing, %d playing", sink.playing())
	}
}

func TestOutputPauseAndSeek(t *testing.T) {
	out, sink := newTestOutput(t)
	path := writeToneWAV(t, 800)

	if err := out.Load(context.Background(), 3, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = out.Play()
	nextEvent(t, out)
	sink.pull(400)

	if got := out.Position(); got != 50*time.Millisecond {
		t.Errorf("Position() = %v, want 50ms", got)
	}

	if err := out.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if ev := nextEvent(t, out); ev.Kind != EventPaused || ev.Gen != 3 {
		t.Errorf("expected paused event, got %+v", ev)
	}

	if err := out.Seek(0); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if got := out.Position(); got != 0 {
		t.Errorf("Position() after Seek(0) = %v", got)
	}
}

func TestOutputMuteKeepsTap(t *testing.T) {
	out, sink := newTestOutput(t)
	path := writeToneWAV(t, 800)

	out.SetMuted(true)
	if err := out.Load(context.Background(), 1, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = out.Play()
	nextEvent(t, out)

	if e := energy(sink.pull(200)); e != 0 {
		t.Errorf("muted output produced energy %v", e)
	}
	if e := energy(to2(out.Tap().Samples(200))); e == 0 {
		t.Error("tap should still see the signal while muted")
	}
}

func TestOutputTransportWithoutTrack(t *testing.T) {
	out, _ := newTestOutput(t)

	if err := out.Play(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Play() = %v, want ErrNotLoaded", err)
	}
	if err := out.Pause(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Pause() = %v, want ErrNotLoaded", err)
	}
	if err := out.Seek(0); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Seek() = %v, want ErrNotLoaded", err)
	}
	if out.Position() != 0 || out.Duration() != 0 {
		t.Error("expected zero position and duration without a track")
	}
}

func TestOutputLoadErrors(t *testing.T) {
	out, _ := newTestOutput(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		locator string
	}{
		{name: "empty", locator: ""},
		{name: "missing file", locator: "/nonexistent/track.mp3"},
		{name: "unsupported scheme", locator: "ftp://example.com/a.mp3"},
		{name: "unsupported format", locator: writeTextFile(t, "notes.txt")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := out.Load(ctx, 1, tt.locator); err == nil {
				t.Errorf("Load(%q) succeeded, want error", tt.locator)
			}
		})
	}
}

func TestOutputOlderLoadArrivingLate(t *testing.T) {
	out, _ := newTestOutput(t)
	newer := writeToneWAV(t, 800)
	older := writeToneWAV(t, 400)

	if err := out.Load(context.Background(), 2, newer); err != nil {
		t.Fatalf("Load(gen 2): %v", err)
	}
	if err := out.Load(context.Background(), 1, older); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Load(gen 1) after gen 2 = %v, want ErrSuperseded", err)
	}
	if got := out.Duration(); got != 100*time.Millisecond {
		t.Errorf("Duration() = %v, want the gen 2 track (100ms)", got)
	}

	if err := out.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if ev := nextEvent(t, out); ev.Kind != EventStarted || ev.Gen != 2 {
		t.Errorf("started event = %+v, want gen 2", ev)
	}

	// The same generation may be loaded again, a newer one still wins
	if err := out.Load(context.Background(), 2, newer); err != nil {
		t.Errorf("reloading gen 2: %v", err)
	}
	if err := out.Load(context.Background(), 5, older); err != nil {
		t.Errorf("Load(gen 5): %v", err)
	}
	if err := out.Load(context.Background(), 4, newer); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Load(gen 4) after gen 5 = %v, want ErrSuperseded", err)
	}
}

func TestOutputFullEventChannel(t *testing.T) {
	before := runtime.NumGoroutine()

	sink := &fakeSink{}
	out := NewOutput(Config{
		SampleRate:   testRate,
		TapSize:      256,
		PollInterval: time.Hour,
		EventBuffer:  1,
	}, sink, zerolog.Nop())
	path := writeToneWAV(t, 800)

	if err := out.Load(context.Background(), 1, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = out.Play()  // Started fills the channel
	_ = out.Pause() // Paused waits for room
	out.emit(Event{Kind: EventTimeAdvanced, Gen: 1, Position: time.Millisecond})

	if ev := nextEvent(t, out); ev.Kind != EventStarted {
		t.Fatalf("first event = %+v, want started", ev)
	}
	if ev := nextEvent(t, out); ev.Kind != EventPaused {
		t.Fatalf("second event = %+v, want paused (position update dropped)", ev)
	}

	// Nobody reads after this: pending deliveries must end with Close
	_ = out.Play()
	_ = out.Pause()
	_ = out.Play()
	_ = out.Close()

	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines = %d after Close, want at most %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOutputStopHalts(t *testing.T) {
	out, sink := newTestOutput(t)
	path := writeToneWAV(t, 800)

	if err := out.Load(context.Background(), 1, path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	_ = out.Play()
	nextEvent(t, out)
	sink.pull(100)

	out.Stop()
	if sink.playing() != 0 {
		t.Errorf("expected sink cleared, %d playing", sink.playing())
	}
	if err := out.Play(); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Play() after Stop = %v, want ErrNotLoaded", err)
	}

	_ = out.Close()
	if !sink.closed {
		t.Error("expected sink closed")
	}
	if err := out.Load(context.Background(), 2, path); !errors.Is(err, ErrSuperseded) {
		t.Errorf("Load after Close = %v, want ErrSuperseded", err)
	}
}

func to2(mono []float64) [][2]float64 {
	out := make([][2]float64, len(mono))
	for i, v := range mono {
		out[i] = [2]float64{v, v}
	}
	return out
}
