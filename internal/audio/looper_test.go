package audio

import "testing"

func TestLooperEndsWithoutRepeat(t *testing.T) {
	buf := toneBuffer(t, 100)
	l := NewLooper(buf.Streamer(0, buf.Len()), false)

	samples := make([][2]float64, 64)
	n, ok := l.Stream(samples)
	if n != 64 || !ok {
		t.Fatalf("first Stream = %d, %v", n, ok)
	}
	n, ok = l.Stream(samples)
	if n != 36 || !ok {
		t.Fatalf("second Stream = %d, %v; want 36, true", n, ok)
	}
	n, ok = l.Stream(samples)
	if n != 0 || ok {
		t.Fatalf("drained Stream = %d, %v; want 0, false", n, ok)
	}
	if l.Loops() != 0 {
		t.Errorf("Loops() = %d, want 0", l.Loops())
	}
}

func TestLooperRepeats(t *testing.T) {
	buf := toneBuffer(t, 100)
	l := NewLooper(buf.Streamer(0, buf.Len()), true)

	samples := make([][2]float64, 250)
	n, ok := l.Stream(samples)
	if n != 250 || !ok {
		t.Fatalf("Stream = %d, %v; want 250, true", n, ok)
	}
	if l.Loops() != 2 {
		t.Errorf("Loops() = %d, want 2", l.Loops())
	}
	if l.Position() != 50 {
		t.Errorf("Position() = %d, want 50", l.Position())
	}
}

func TestLooperRepeatToggledMidStream(t *testing.T) {
	buf := toneBuffer(t, 100)
	l := NewLooper(buf.Streamer(0, buf.Len()), true)

	samples := make([][2]float64, 150)
	if n, _ := l.Stream(samples); n != 150 {
		t.Fatalf("Stream = %d", n)
	}

	l.SetRepeat(false)
	n, ok := l.Stream(samples)
	if n != 50 || !ok {
		t.Fatalf("Stream after disarm = %d, %v; want 50, true", n, ok)
	}
	if _, ok := l.Stream(samples); ok {
		t.Error("expected looper to drain after repeat disarmed")
	}
}
