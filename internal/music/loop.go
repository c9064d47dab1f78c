package music

// LoopMode is the repeat policy applied when a track ends.
// The ordinal value is what gets persisted.
type LoopMode int

const (
	LoopNormal   LoopMode = iota // Advance to the next track, wrapping
	LoopSingle                   // Repeat the current track
	LoopLikeOnly                 // Advance to the next liked track

	loopModeCount = 3
)

// Cycle returns the mode after m: normal -> single -> like -> normal
func Cycle(m LoopMode) LoopMode {
	return LoopMode((int(m.normalize()) + 1) % loopModeCount)
}

// Valid reports whether m is one of the known modes
func (m LoopMode) Valid() bool {
	return m >= LoopNormal && m < loopModeCount
}

func (m LoopMode) normalize() LoopMode {
	v := int(m) % loopModeCount
	if v < 0 {
		v += loopModeCount
	}
	return LoopMode(v)
}

// String returns the name used on the command line and in the UI
func (m LoopMode) String() string {
	switch m {
	case LoopNormal:
		return "normal"
	case LoopSingle:
		return "single"
	case LoopLikeOnly:
		return "like"
	default:
		return "unknown"
	}
}

// ParseLoopMode converts a name to a LoopMode
func ParseLoopMode(s string) (LoopMode, bool) {
	switch s {
	case "normal", "0":
		return LoopNormal, true
	case "single", "1":
		return LoopSingle, true
	case "like", "liked", "2":
		return LoopLikeOnly, true
	default:
		return LoopNormal, false
	}
}
