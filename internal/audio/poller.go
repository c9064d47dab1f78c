package audio

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Poller reads the playback position at regular intervals and reports it
// as time-advanced events
type Poller struct {
	read     func() (Event, bool)
	interval time.Duration
	logger   zerolog.Logger
}

// NewPoller creates a new Poller. read returns false when there is nothing
// to report.
func NewPoller(read func() (Event, bool), interval time.Duration, logger zerolog.Logger) *Poller {
	return &Poller{
		read:     read,
		interval: interval,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Run starts the polling loop and sends updates to the provided channel
// Blocks until context is cancelled
func (p *Poller) Run(ctx context.Context, updates chan<- Event) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.poll(updates)
		}
	}
}

// poll reads the position and sends an update, dropping it if the consumer
// is behind. A later tick carries a fresher position anyway.
func (p *Poller) poll(updates chan<- Event) {
	ev, ok := p.read()
	if !ok {
		return
	}

	select {
	case updates <- ev:
	default:
		p.logger.Debug().Dur("position", ev.Position).Msg("Dropped position update")
	}
}
