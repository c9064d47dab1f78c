package music

import "github.com/samber/lo"

// IndexOf returns the position of the track with the given id, or -1
func IndexOf(tracks []Track, id string) int {
	if id == "" {
		return -1
	}
	_, idx, ok := lo.FindIndexOf(tracks, func(t Track) bool { return t.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// Next returns the index after current, wrapping to the start of the list
func Next(tracks []Track, current int) (int, error) {
	if len(tracks) == 0 {
		return -1, ErrNoTrack
	}
	if current < 0 {
		return -1, ErrNoSelection
	}
	return (current + 1) % len(tracks), nil
}

// Prev returns the index before current, wrapping to the end of the list
func Prev(tracks []Track, current int) (int, error) {
	if len(tracks) == 0 {
		return -1, ErrNoTrack
	}
	if current < 0 {
		return -1, ErrNoSelection
	}
	n := len(tracks)
	return ((current%n)-1+n) % n, nil
}

// NextLiked scans forward from current+1, wrapping around, and returns the
// first liked track other than current. The scan visits at most len-1
// positions. ErrNotFound is returned when no other track is liked.
func NextLiked(tracks []Track, current int) (int, error) {
	n := len(tracks)
	if n == 0 {
		return -1, ErrNoTrack
	}

	// Without a current track every position is a candidate
	if current < 0 {
		for i, t := range tracks {
			if t.Liked {
				return i, nil
			}
		}
		return -1, ErrNotFound
	}

	start := current % n

	for offset := 1; offset < n; offset++ {
		i := (start + offset) % n
		if tracks[i].Liked {
			return i, nil
		}
	}

	return -1, ErrNotFound
}
