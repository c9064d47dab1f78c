package daemon

import (
	"context"
	"slices"
	"time"

	"github.com/jfmyers9/murmur/internal/music"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/rs/zerolog"
)

// Library is the persisted track list
type Library interface {
	Tracks(ctx context.Context) ([]music.Track, error)
	CurrentID(ctx context.Context) (string, error)
}

// Preferences is the persisted config slice
type Preferences interface {
	status.Slice
	Reload() (bool, error)
}

// Snapshot is what another process may have edited: the track list, the
// current id and the loop/mute preferences
type Snapshot struct {
	Tracks    []music.Track
	CurrentID string
	Loop      music.LoopMode
	Muted     bool
	Err       error
}

func (s Snapshot) equal(o Snapshot) bool {
	return s.CurrentID == o.CurrentID &&
		s.Loop == o.Loop &&
		s.Muted == o.Muted &&
		slices.Equal(s.Tracks, o.Tracks)
}

// Poller reads the library and preferences at regular intervals and sends a
// snapshot whenever something changed
type Poller struct {
	lib      Library
	prefs    Preferences
	interval time.Duration
	logger   zerolog.Logger

	last *Snapshot
}

// NewPoller creates a new Poller instance
func NewPoller(lib Library, prefs Preferences, interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		lib:      lib,
		prefs:    prefs,
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run starts the polling loop and sends updates to the provided channel
// Blocks until context is cancelled
func (p *Poller) Run(ctx context.Context, updates chan<- Snapshot) error {
	p.logger.Info().
		Dur("interval", p.interval).
		Msg("Starting poller")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Poll immediately on start
	p.poll(ctx, updates)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.poll(ctx, updates)
		}
	}
}

// poll reads the current snapshot and sends it if it changed
func (p *Poller) poll(ctx context.Context, updates chan<- Snapshot) {
	snap, err := p.read(ctx)
	if err != nil {
		p.logger.Debug().Err(err).Msg("Error reading library")
		select {
		case updates <- Snapshot{Err: err}:
		case <-ctx.Done():
		}
		return
	}

	if p.last != nil && p.last.equal(snap) {
		return
	}
	p.last = &snap

	select {
	case updates <- snap:
		p.logger.Debug().
			Int("tracks", len(snap.Tracks)).
			Str("current", snap.CurrentID).
			Str("loop", snap.Loop.String()).
			Bool("muted", snap.Muted).
			Msg("Poll update")
	case <-ctx.Done():
	}
}

func (p *Poller) read(ctx context.Context) (Snapshot, error) {
	tracks, err := p.lib.Tracks(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	current, err := p.lib.CurrentID(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	if _, err := p.prefs.Reload(); err != nil {
		// A half-written file is retried on the next tick
		p.logger.Debug().Err(err).Msg("Error reloading preferences")
	}
	st := status.Default()
	status.Hydrate(p.prefs, &st)

	return Snapshot{
		Tracks:    tracks,
		CurrentID: current,
		Loop:      st.Loop,
		Muted:     st.Muted,
	}, nil
}
