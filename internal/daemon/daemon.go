// Package daemon runs a playback session and keeps it in step with the
// library and preferences, which other murmur commands may edit while it
// plays.
package daemon

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"
	"time"

	"github.com/jfmyers9/murmur/internal/music"
	"github.com/jfmyers9/murmur/internal/player"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/rs/zerolog"
)

// Config holds daemon configuration
type Config struct {
	PollInterval time.Duration // How often to check the library for changes
	Autoplay     bool          // Start playing as soon as the library is read
}

// Session is the playback session the daemon drives
type Session interface {
	Run(ctx context.Context) error
	SetTracks(ctx context.Context, tracks []music.Track) error
	Select(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	TogglePlay(ctx context.Context) error
	ApplyPreferences(ctx context.Context, slice status.Slice) error
	Selection() player.Selection
}

// Daemon coordinates the session and the library poller
type Daemon struct {
	config  Config
	session Session
	prefs   Preferences
	poller  *Poller
	logger  zerolog.Logger

	// Owned by handleUpdates
	last *Snapshot
}

// New creates a new Daemon instance
func New(cfg Config, session Session, lib Library, prefs Preferences, logger zerolog.Logger) *Daemon {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	return &Daemon{
		config:  cfg,
		session: session,
		prefs:   prefs,
		poller:  NewPoller(lib, prefs, cfg.PollInterval, logger),
		logger:  logger.With().Str("component", "daemon").Logger(),
	}
}

// Run starts the daemon and blocks until ctx is cancelled or a shutdown
// signal is received
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run is the main daemon loop
func (d *Daemon) run(ctx context.Context) error {
	d.logger.Info().Msg("Starting daemon")

	var wg sync.WaitGroup
	updates := make(chan Snapshot, 10)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.session.Run(ctx); err != nil {
			d.logger.Error().Err(err).Msg("Session error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.poller.Run(ctx, updates); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Msg("Poller error")
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.handleUpdates(ctx, updates)
	}()

	wg.Wait()

	d.logger.Info().Msg("Daemon stopped")
	return nil
}

// handleUpdates applies library snapshots to the session
func (d *Daemon) handleUpdates(ctx context.Context, updates <-chan Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-updates:
			if snap.Err != nil {
				d.logger.Debug().Err(snap.Err).Msg("Library update error")
				continue
			}
			d.apply(ctx, snap)
		}
	}
}

// apply pushes what changed since the previous snapshot. Preferences are
// re-read by the session itself rather than taken from the snapshot, which
// may be older than a key press.
func (d *Daemon) apply(ctx context.Context, snap Snapshot) {
	first := d.last == nil
	prev := Snapshot{}
	if !first {
		prev = *d.last
	}
	d.last = &snap

	if first || !slices.Equal(prev.Tracks, snap.Tracks) {
		if err := d.session.SetTracks(ctx, snap.Tracks); err != nil {
			d.logger.Warn().Err(err).Msg("Failed to update track list")
			return
		}
		d.logger.Info().Int("tracks", len(snap.Tracks)).Msg("Track list updated")
	}

	if !first && (snap.Loop != prev.Loop || snap.Muted != prev.Muted) {
		d.warn(d.session.ApplyPreferences(ctx, d.prefs), "Failed to apply preferences")
	}

	switch {
	case first && snap.CurrentID != "" && d.config.Autoplay:
		d.warn(d.session.Select(ctx, snap.CurrentID), "Failed to start current track")
	case first && snap.CurrentID != "":
		d.warn(d.session.Restore(ctx, snap.CurrentID), "Failed to restore current track")
	case first && d.config.Autoplay && len(snap.Tracks) > 0:
		d.warn(d.session.TogglePlay(ctx), "Failed to start playback")
	case !first && snap.CurrentID != prev.CurrentID && snap.CurrentID != "" &&
		snap.CurrentID != d.session.Selection().ID:
		d.logger.Info().Str("id", snap.CurrentID).Msg("Current track changed externally")
		d.warn(d.session.Select(ctx, snap.CurrentID), "Failed to select track")
	}
}

func (d *Daemon) warn(err error, msg string) {
	if err != nil && !errors.Is(err, context.Canceled) {
		d.logger.Warn().Err(err).Msg(msg)
	}
}
