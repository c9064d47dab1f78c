package status

import (
	"errors"
	"fmt"
	"time"

	"github.com/jfmyers9/murmur/internal/music"
	"github.com/spf13/cast"
)

// Config slice keys
const (
	KeyCurrentTime = "musicStatus.currentTime"
	KeyDuration    = "musicStatus.duration"
	KeyPlaying     = "musicStatus.playing"
	KeyLoop        = "musicStatus.loop"
	KeyMuted       = "musicStatus.muted"
)

// Field names a persisted preference
type Field string

const (
	FieldLoop  Field = "loop"
	FieldMuted Field = "muted"
)

// ErrNotPersisted is returned when persisting a field that is session-only
var ErrNotPersisted = errors.New("field is not persisted")

// Slice is read access to the flat persisted configuration
type Slice interface {
	Lookup(key string) (any, bool)
}

// Writer is write access to the flat persisted configuration
type Writer interface {
	Set(key string, value any) error
}

// Hints carries the ephemeral values found at hydrate time. They only seed
// UI hints and never feed back into the session.
type Hints struct {
	CurrentTime time.Duration
	Duration    time.Duration
	Playing     bool
}

// Hydrate overwrites Loop and Muted on st with the values present in the
// slice. Missing or malformed keys leave the existing values untouched.
func Hydrate(slice Slice, st *PlaybackStatus) Hints {
	var hints Hints
	if slice == nil || st == nil {
		return hints
	}

	if v, ok := slice.Lookup(KeyLoop); ok {
		if n, err := cast.ToIntE(v); err == nil && music.LoopMode(n).Valid() {
			st.Loop = music.LoopMode(n)
		}
	}

	if v, ok := slice.Lookup(KeyMuted); ok {
		if b, err := cast.ToBoolE(v); err == nil {
			st.Muted = b
		}
	}

	if v, ok := slice.Lookup(KeyCurrentTime); ok {
		if secs, err := cast.ToFloat64E(v); err == nil && secs > 0 {
			hints.CurrentTime = secondsToDuration(secs)
		}
	}

	if v, ok := slice.Lookup(KeyDuration); ok {
		if secs, err := cast.ToFloat64E(v); err == nil && secs > 0 {
			hints.Duration = secondsToDuration(secs)
		}
	}

	if v, ok := slice.Lookup(KeyPlaying); ok {
		hints.Playing, _ = cast.ToBoolE(v)
	}

	return hints
}

// Persist writes one user preference through to configuration
func Persist(w Writer, field Field, value any) error {
	if w == nil {
		return nil
	}

	var key string
	switch field {
	case FieldLoop:
		mode, ok := value.(music.LoopMode)
		if !ok {
			return fmt.Errorf("loop value must be a LoopMode, got %T", value)
		}
		key, value = KeyLoop, int(mode)
	case FieldMuted:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("muted value must be a bool, got %T", value)
		}
		key = KeyMuted
	default:
		return fmt.Errorf("%w: %s", ErrNotPersisted, field)
	}

	if err := w.Set(key, value); err != nil {
		return fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return nil
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
