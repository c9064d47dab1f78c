package music

import "testing"

func TestCycle(t *testing.T) {
	tests := []struct {
		in   LoopMode
		want LoopMode
	}{
		{LoopNormal, LoopSingle},
		{LoopSingle, LoopLikeOnly},
		{LoopLikeOnly, LoopNormal},
	}

	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			if got := Cycle(tt.in); got != tt.want {
				t.Errorf("Cycle(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCycleThreeTimesIsIdentity(t *testing.T) {
	for _, m := range []LoopMode{LoopNormal, LoopSingle, LoopLikeOnly} {
		if got := Cycle(Cycle(Cycle(m))); got != m {
			t.Errorf("Cycle^3(%v) = %v", m, got)
		}
	}
}

func TestCycleStaysInRange(t *testing.T) {
	for _, start := range []LoopMode{-4, -1, 0, 1, 2, 3, 17} {
		m := start
		for i := 0; i < 10; i++ {
			m = Cycle(m)
			if !m.Valid() {
				t.Fatalf("Cycle produced %d starting from %d", m, start)
			}
		}
	}
}

func TestParseLoopMode(t *testing.T) {
	tests := []struct {
		input  string
		want   LoopMode
		wantOK bool
	}{
		{"normal", LoopNormal, true},
		{"single", LoopSingle, true},
		{"like", LoopLikeOnly, true},
		{"2", LoopLikeOnly, true},
		{"shuffle", LoopNormal, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLoopMode(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLoopMode(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
