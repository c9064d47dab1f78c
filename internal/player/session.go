// Package player implements the playback session: a single event loop that
// owns the playback status and the active selection, reacts to user
// commands and output lifecycle events, and picks the next track according
// to the loop mode.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jfmyers9/murmur/internal/audio"
	"github.com/jfmyers9/murmur/internal/music"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/rs/zerolog"
)

// Output is the decode/playback unit the session drives
type Output interface {
	// Load decodes locator as generation gen; it may block while decoding
	Load(ctx context.Context, gen uint64, locator string) error
	Play() error
	Pause() error
	Seek(d time.Duration) error
	SetRepeat(on bool)
	SetMuted(muted bool)
	// Stop halts any buffered output synchronously
	Stop()
	Close() error
	Events() <-chan audio.Event
}

// Config holds session configuration
type Config struct {
	SkipOnLoadFailure bool          // Try the next track when a source fails to load
	MaxLoadRetries    int           // Consecutive load failures tolerated before going idle
	LoadTimeout       time.Duration // Upper bound for opening and decoding one source
}

// DefaultConfig returns the default session configuration
func DefaultConfig() Config {
	return Config{
		SkipOnLoadFailure: true,
		MaxLoadRetries:    3,
		LoadTimeout:       30 * time.Second,
	}
}

// Selection identifies the track assigned to the output
type Selection struct {
	Index int // Position in the track list, -1 when absent
	ID    string
	URL   string
	Name  string
}

// noSelection is the selection before any track was chosen
var noSelection = Selection{Index: -1}

type command struct {
	fn    func() error
	reply chan error
}

type loadResult struct {
	gen   uint64
	track music.Track
	err   error
}

// snapshot is what readers outside the loop see
type snapshot struct {
	status    status.PlaybackStatus
	selection Selection
	state     music.PlayState
}

// Session owns playback state. Everything below the mutex is only touched
// by the goroutine running Run.
type Session struct {
	cfg      Config
	out      Output
	prefs    status.Writer
	onSelect func(id string)
	logger   zerolog.Logger

	cmds       chan command
	loads      chan loadResult
	conditions chan error
	done       chan struct{}

	mu   sync.RWMutex
	snap snapshot

	runCtx   context.Context
	tracks   []music.Track
	sel      Selection
	state    music.PlayState
	st       status.PlaybackStatus
	gen      uint64
	autoplay bool
	failures int
}

// Option configures a Session
type Option func(*Session)

// WithPreferences persists loop and mute changes through w
func WithPreferences(w status.Writer) Option {
	return func(s *Session) { s.prefs = w }
}

// WithSelectHook calls fn with the track id every time a new track is selected
func WithSelectHook(fn func(id string)) Option {
	return func(s *Session) { s.onSelect = fn }
}

// New creates a session starting from initial, typically the hydrated status
func New(cfg Config, out Output, initial status.PlaybackStatus, logger zerolog.Logger, opts ...Option) *Session {
	if cfg.LoadTimeout <= 0 {
		cfg.LoadTimeout = DefaultConfig().LoadTimeout
	}

	// Only the preferences carry over; the rest starts fresh
	st := status.Default()
	st.Loop = initial.Loop
	st.Muted = initial.Muted

	s := &Session{
		cfg:        cfg,
		out:        out,
		logger:     logger.With().Str("component", "session").Logger(),
		cmds:       make(chan command),
		loads:      make(chan loadResult),
		conditions: make(chan error, 16),
		done:       make(chan struct{}),
		sel:        noSelection,
		state:      music.StateIdle,
		st:         st,
	}
	for _, opt := range opts {
		opt(s)
	}

	out.SetRepeat(st.Loop == music.LoopSingle)
	out.SetMuted(st.Muted)
	s.publish()

	return s
}

// Run processes commands and output events until ctx is cancelled, then
// halts and releases the output
func (s *Session) Run(ctx context.Context) error {
	s.runCtx = ctx
	defer close(s.done)

	s.logger.Info().
		Str("loop", s.st.Loop.String()).
		Bool("muted", s.st.Muted).
		Msg("Session started")

	events := s.out.Events()
	for {
		select {
		case <-ctx.Done():
			s.teardown()
			return nil
		case cmd := <-s.cmds:
			cmd.reply <- cmd.fn()
		case ev := <-events:
			s.handleEvent(ev)
		case res := <-s.loads:
			s.handleLoaded(res)
		}
	}
}

// Done is closed once Run has returned
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Conditions reports recoverable problems such as sources that failed to load
func (s *Session) Conditions() <-chan error {
	return s.conditions
}

// Status returns a copy of the playback status
func (s *Session) Status() status.PlaybackStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.status
}

// Selection returns a copy of the active selection
func (s *Session) Selection() Selection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.selection
}

// State returns the lifecycle state
func (s *Session) State() music.PlayState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.state
}

// SetTracks replaces the track list snapshot. The loaded track keeps playing
// even if it is no longer in the list.
func (s *Session) SetTracks(ctx context.Context, tracks []music.Track) error {
	list := append([]music.Track(nil), tracks...)
	return s.do(ctx, func() error {
		s.tracks = list
		if s.sel.ID != "" {
			s.sel.Index = music.IndexOf(s.tracks, s.sel.ID)
		}
		s.publish()
		return nil
	})
}

// Select makes the track with the given id current and starts playing it
func (s *Session) Select(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		idx := music.IndexOf(s.tracks, id)
		if idx < 0 {
			return fmt.Errorf("select %q: %w", id, music.ErrNoTrack)
		}
		s.failures = 0
		s.selectIndex(idx, true)
		return nil
	})
}

// Restore makes the track with the given id current without starting it
func (s *Session) Restore(ctx context.Context, id string) error {
	return s.do(ctx, func() error {
		idx := music.IndexOf(s.tracks, id)
		if idx < 0 {
			return fmt.Errorf("restore %q: %w", id, music.ErrNoTrack)
		}
		s.selectIndex(idx, false)
		return nil
	})
}

// TogglePlay pauses or resumes the loaded track. With nothing loaded it
// selects the next track instead.
func (s *Session) TogglePlay(ctx context.Context) error {
	return s.do(ctx, func() error {
		switch s.state {
		case music.StateIdle:
			if len(s.tracks) == 0 {
				return music.ErrNoTrack
			}
			idx := 0
			if s.sel.Index >= 0 {
				idx, _ = music.Next(s.tracks, s.sel.Index)
			}
			s.failures = 0
			s.load(idx, true)
		case music.StateLoading:
			s.logger.Debug().Msg("Toggle ignored while loading")
		case music.StatePlaying:
			if err := s.out.Pause(); err != nil {
				return fmt.Errorf("failed to pause: %w", err)
			}
		case music.StatePaused, music.StateEnded:
			if err := s.out.Play(); err != nil {
				return fmt.Errorf("failed to play: %w", err)
			}
		}
		return nil
	})
}

// Next skips to the following track regardless of loop mode
func (s *Session) Next(ctx context.Context) error {
	return s.do(ctx, func() error {
		idx, err := music.Next(s.tracks, s.sel.Index)
		if err != nil {
			return err
		}
		s.failures = 0
		s.selectIndex(idx, true)
		return nil
	})
}

// Prev skips to the preceding track regardless of loop mode
func (s *Session) Prev(ctx context.Context) error {
	return s.do(ctx, func() error {
		idx, err := music.Prev(s.tracks, s.sel.Index)
		if err != nil {
			return err
		}
		s.failures = 0
		s.selectIndex(idx, true)
		return nil
	})
}

// CycleLoop advances the loop mode and persists it
func (s *Session) CycleLoop(ctx context.Context) error {
	return s.do(ctx, func() error {
		return s.setLoop(music.Cycle(s.st.Loop))
	})
}

// SetLoopMode sets the loop mode and persists it
func (s *Session) SetLoopMode(ctx context.Context, mode music.LoopMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid loop mode %d", mode)
	}
	return s.do(ctx, func() error {
		return s.setLoop(mode)
	})
}

// ToggleMute flips the mute flag and persists it
func (s *Session) ToggleMute(ctx context.Context) error {
	return s.do(ctx, func() error {
		return s.setMuted(!s.st.Muted)
	})
}

// SetMuted sets the mute flag and persists it
func (s *Session) SetMuted(ctx context.Context, muted bool) error {
	return s.do(ctx, func() error {
		return s.setMuted(muted)
	})
}

// ApplyPreferences adopts the loop mode and mute flag stored in slice
// without writing them back. It reads slice on the event loop, after any
// change the session persisted itself.
func (s *Session) ApplyPreferences(ctx context.Context, slice status.Slice) error {
	return s.do(ctx, func() error {
		st := s.st
		status.Hydrate(slice, &st)

		if st.Loop != s.st.Loop {
			s.st.Loop = st.Loop
			s.out.SetRepeat(st.Loop == music.LoopSingle)
			s.logger.Info().Str("loop", st.Loop.String()).Msg("Loop mode changed externally")
		}
		if st.Muted != s.st.Muted {
			s.st.Muted = st.Muted
			s.out.SetMuted(st.Muted)
			s.logger.Info().Bool("muted", st.Muted).Msg("Mute changed externally")
		}
		s.publish()
		return nil
	})
}

// do runs fn on the event loop and waits for its result
func (s *Session) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}

	select {
	case s.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrClosed
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// selectIndex is a current-id change. Resolving to the id that is already
// loaded does not reload: an ended track starts over and a paused one
// resumes if autoplay was asked for.
func (s *Session) selectIndex(idx int, autoplay bool) {
	t := s.tracks[idx]
	if t.ID != s.sel.ID || !s.state.Loaded() {
		s.load(idx, autoplay)
		return
	}

	s.sel.Index = idx
	switch {
	case s.state == music.StateEnded:
		s.restartFromZero()
	case s.state == music.StatePaused && autoplay:
		if err := s.out.Play(); err != nil {
			s.report(fmt.Errorf("failed to play: %w", err))
		}
	}
	s.publish()
}

// load assigns tracks[idx] to the output. Decoding happens off the loop;
// a newer load supersedes this one.
func (s *Session) load(idx int, autoplay bool) {
	t := s.tracks[idx]

	s.gen++
	gen := s.gen
	s.sel = Selection{Index: idx, ID: t.ID, URL: t.URL, Name: t.Name}
	s.state = music.StateLoading
	s.autoplay = autoplay
	s.st.Playing = false
	s.st.CurrentTime = 0
	s.st.Duration = 0
	s.publish()

	s.logger.Info().
		Uint64("gen", gen).
		Str("track", t.Name).
		Str("url", t.URL).
		Bool("autoplay", autoplay).
		Msg("Loading track")

	if s.onSelect != nil {
		s.onSelect(t.ID)
	}

	ctx, cancel := context.WithTimeout(s.runCtx, s.cfg.LoadTimeout)
	go func() {
		defer cancel()
		err := s.out.Load(ctx, gen, t.URL)
		select {
		case s.loads <- loadResult{gen: gen, track: t, err: err}:
		case <-s.done:
		}
	}()
}

func (s *Session) handleLoaded(res loadResult) {
	if res.gen != s.gen {
		s.logger.Debug().Uint64("gen", res.gen).Msg("Dropping superseded load")
		return
	}

	if res.err != nil {
		s.loadFailed(res)
		return
	}

	if !s.autoplay {
		s.state = music.StatePaused
		s.publish()
		return
	}

	if err := s.out.Play(); err != nil {
		s.loadFailed(loadResult{gen: res.gen, track: res.track, err: err})
	}
}

// loadFailed reports the failure and, if configured, tries the next track
// a bounded number of times
func (s *Session) loadFailed(res loadResult) {
	s.failures++
	s.report(&LoadFailedError{ID: res.track.ID, URL: res.track.URL, Err: res.err})

	s.state = music.StateIdle
	s.st.Playing = false
	s.st.CurrentTime = 0
	s.st.Duration = 0
	s.publish()

	if !s.cfg.SkipOnLoadFailure {
		return
	}
	if s.failures > s.cfg.MaxLoadRetries || s.failures >= len(s.tracks) {
		s.logger.Warn().Int("failures", s.failures).Msg("Giving up after repeated load failures")
		return
	}

	idx, err := music.Next(s.tracks, s.sel.Index)
	if err != nil {
		return
	}
	s.load(idx, s.autoplay)
}

func (s *Session) handleEvent(ev audio.Event) {
	if ev.Gen != s.gen {
		s.logger.Debug().
			Str("event", ev.Kind.String()).
			Uint64("gen", ev.Gen).
			Msg("Dropping stale output event")
		return
	}

	switch ev.Kind {
	case audio.EventStarted:
		s.state = music.StatePlaying
		s.st.Playing = true
		s.st.Duration = ev.Duration
		s.st.SetCurrentTime(ev.Position)
		s.failures = 0
	case audio.EventPaused:
		s.state = music.StatePaused
		s.st.Playing = false
	case audio.EventTimeAdvanced:
		s.st.SetCurrentTime(ev.Position)
	case audio.EventEnded:
		s.state = music.StateEnded
		s.st.Playing = false
		s.st.SetCurrentTime(s.st.Duration)
		s.publish()
		s.onEnded()
		return
	}
	s.publish()
}

// onEnded picks what plays after a track ends naturally
func (s *Session) onEnded() {
	s.logger.Debug().Str("loop", s.st.Loop.String()).Msg("Track ended")

	var (
		idx int
		err error
	)
	switch s.st.Loop {
	case music.LoopNormal:
		idx, err = music.Next(s.tracks, s.sel.Index)
	case music.LoopLikeOnly:
		idx, err = music.NextLiked(s.tracks, s.sel.Index)
		if errors.Is(err, music.ErrNotFound) {
			// Nothing else is liked: replay the current track
			s.restartFromZero()
			return
		}
	default:
		// Single repeats inside the output and normally never ends
		s.restartFromZero()
		return
	}

	if err != nil {
		s.logger.Debug().Err(err).Msg("Nothing to play next")
		s.goIdle()
		return
	}
	s.selectIndex(idx, true)
}

// restartFromZero rewinds the loaded track and plays it
func (s *Session) restartFromZero() {
	if err := s.out.Seek(0); err != nil {
		s.report(fmt.Errorf("failed to rewind: %w", err))
		return
	}
	s.st.CurrentTime = 0
	if err := s.out.Play(); err != nil {
		s.report(fmt.Errorf("failed to restart: %w", err))
		return
	}
	s.publish()
}

func (s *Session) goIdle() {
	s.out.Stop()
	s.state = music.StateIdle
	s.st.Playing = false
	s.st.CurrentTime = 0
	s.st.Duration = 0
	s.publish()
}

func (s *Session) setLoop(mode music.LoopMode) error {
	s.st.Loop = mode
	s.out.SetRepeat(mode == music.LoopSingle)
	s.publish()

	s.logger.Info().Str("loop", mode.String()).Msg("Loop mode changed")
	return status.Persist(s.prefs, status.FieldLoop, mode)
}

func (s *Session) setMuted(muted bool) error {
	s.out.SetMuted(muted)
	s.st.Muted = muted
	s.publish()

	s.logger.Info().Bool("muted", muted).Msg("Mute changed")
	return status.Persist(s.prefs, status.FieldMuted, muted)
}

func (s *Session) teardown() {
	s.out.Stop()
	if err := s.out.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to close output")
	}

	s.state = music.StateIdle
	s.st.Playing = false
	s.publish()
	s.logger.Info().Msg("Session stopped")
}

// report hands a recoverable problem to whoever watches Conditions
func (s *Session) report(err error) {
	s.logger.Warn().Err(err).Msg("Playback condition")
	select {
	case s.conditions <- err:
	default:
		s.logger.Debug().Msg("Conditions channel full, dropping")
	}
}

// publish copies loop-owned state for readers
func (s *Session) publish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snapshot{
		status:    s.st,
		selection: s.sel,
		state:     s.state,
	}
}
