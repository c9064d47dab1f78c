// Package audio decodes audio sources and plays them through beep, reporting
// lifecycle events and exposing a tap of the live signal for visualization.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/rs/zerolog"
)

var (
	// ErrNotLoaded is returned by transport operations when no track is loaded
	ErrNotLoaded = errors.New("no track loaded")

	// ErrSuperseded is returned by Load when a newer Load started while decoding
	ErrSuperseded = errors.New("load superseded by a newer load")
)

// Config holds output configuration
type Config struct {
	SampleRate   beep.SampleRate // Device sample rate
	TapSize      int             // Samples retained for visualization
	PollInterval time.Duration   // How often time-advanced events are emitted
	EventBuffer  int             // Capacity of the events channel
}

// DefaultConfig returns the default output configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:   beep.SampleRate(44100),
		TapSize:      2048,
		PollInterval: 250 * time.Millisecond,
		EventBuffer:  64,
	}
}

// Output is the decode/playback unit for one track at a time
type Output struct {
	mu sync.Mutex

	cfg    Config
	sink   Sink
	tap    *Tap
	volume *effects.Volume
	events chan Event
	done   chan struct{} // Closed by Close
	logger zerolog.Logger

	latest atomic.Uint64 // Most recently requested load generation

	gen      uint64 // Generation of the loaded track
	streamer beep.StreamSeekCloser
	format   beep.Format
	looper   *Looper
	ctrl     *beep.Ctrl
	playing  bool
	ended    bool // Pipeline drained and removed from the sink
	repeat   bool
	muted    bool
	closed   bool

	pollCancel context.CancelFunc
}

// NewOutput creates an output playing on sink
func NewOutput(cfg Config, sink Sink, logger zerolog.Logger) *Output {
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = DefaultConfig().EventBuffer
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}

	tap := NewTap(nil, cfg.TapSize)
	return &Output{
		cfg:  cfg,
		sink: sink,
		tap:  tap,
		volume: &effects.Volume{
			Streamer: tap,
			Base:     2,
		},
		events: make(chan Event, cfg.EventBuffer),
		done:   make(chan struct{}),
		logger: logger.With().Str("component", "output").Logger(),
	}
}

// Events returns the lifecycle event channel
func (o *Output) Events() <-chan Event {
	return o.events
}

// Tap returns the signal tap feeding the visualizer
func (o *Output) Tap() *Tap {
	return o.tap
}

// Load decodes locator and makes it the current track, paused at the start.
// Generations only move forward: a Load older than the newest one requested
// is discarded, whatever order the calls arrive in.
func (o *Output) Load(ctx context.Context, gen uint64, locator string) error {
	if !o.claim(gen) {
		return ErrSuperseded
	}

	streamer, format, err := Open(ctx, locator)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed || gen != o.latest.Load() {
		_ = streamer.Close()
		return ErrSuperseded
	}

	o.stopLocked()

	looper := NewLooper(streamer, o.repeat)
	var chain beep.Streamer = looper
	if format.SampleRate != o.cfg.SampleRate {
		chain = beep.Resample(4, format.SampleRate, o.cfg.SampleRate, looper)
	}
	ctrl := &beep.Ctrl{Streamer: chain, Paused: true}

	o.gen = gen
	o.streamer = streamer
	o.format = format
	o.looper = looper
	o.ctrl = ctrl

	o.sink.Lock()
	o.tap.SetSource(ctrl)
	o.volume.Silent = o.muted
	o.sink.Unlock()

	o.attachLocked()

	o.logger.Debug().
		Uint64("gen", gen).
		Str("locator", locator).
		Dur("duration", format.SampleRate.D(streamer.Len())).
		Msg("Track loaded")

	return nil
}

// claim raises latest to gen, reporting false when a newer generation was
// already requested
func (o *Output) claim(gen uint64) bool {
	for {
		cur := o.latest.Load()
		if gen < cur {
			return false
		}
		if gen == cur || o.latest.CompareAndSwap(cur, gen) {
			return true
		}
	}
}

// attachLocked hands the pipeline to the sink, followed by the end callback
func (o *Output) attachLocked() {
	gen := o.gen
	o.sink.Play(beep.Seq(o.volume, beep.Callback(func() {
		// Runs on the device goroutine with the sink locked
		go o.finished(gen)
	})))
}

// finished handles the end of the pipeline for generation gen
func (o *Output) finished(gen uint64) {
	o.mu.Lock()
	if gen != o.gen || o.streamer == nil {
		o.mu.Unlock()
		return
	}
	o.playing = false
	o.ended = true
	o.stopPollLocked()
	o.mu.Unlock()

	o.tap.Reset()
	o.emit(Event{Kind: EventEnded, Gen: gen})
}

// Play starts or resumes the loaded track
func (o *Output) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctrl == nil {
		return ErrNotLoaded
	}

	o.sink.Lock()
	o.ctrl.Paused = false
	o.sink.Unlock()

	if o.ended {
		o.ended = false
		o.attachLocked()
	}

	o.playing = true
	o.startPollLocked()
	o.emit(Event{
		Kind:     EventStarted,
		Gen:      o.gen,
		Position: o.positionLocked(),
		Duration: o.durationLocked(),
	})
	return nil
}

// Pause pauses the loaded track
func (o *Output) Pause() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ctrl == nil {
		return ErrNotLoaded
	}

	o.sink.Lock()
	o.ctrl.Paused = true
	o.sink.Unlock()

	o.playing = false
	o.stopPollLocked()
	o.emit(Event{Kind: EventPaused, Gen: o.gen})
	return nil
}

// Seek moves the playback position of the loaded track
func (o *Output) Seek(d time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.looper == nil {
		return ErrNotLoaded
	}

	o.sink.Lock()
	defer o.sink.Unlock()

	n := o.format.SampleRate.N(d)
	if n < 0 {
		n = 0
	}
	if l := o.looper.Len(); n > l {
		n = l
	}
	if err := o.looper.Seek(n); err != nil {
		return fmt.Errorf("failed to seek: %w", err)
	}
	return nil
}

// SetRepeat arms native single-track repeat for the loaded and future tracks
func (o *Output) SetRepeat(on bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.repeat = on
	if o.looper != nil {
		o.looper.SetRepeat(on)
	}
}

// SetMuted silences the output. The tap keeps receiving the signal.
func (o *Output) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.muted = muted
	o.sink.Lock()
	o.volume.Silent = muted
	o.sink.Unlock()
}

// Position returns the current playback position
func (o *Output) Position() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.positionLocked()
}

// Duration returns the total duration of the loaded track
func (o *Output) Duration() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.durationLocked()
}

func (o *Output) positionLocked() time.Duration {
	if o.looper == nil {
		return 0
	}
	o.sink.Lock()
	pos := o.looper.Position()
	o.sink.Unlock()
	return o.format.SampleRate.D(pos)
}

func (o *Output) durationLocked() time.Duration {
	if o.looper == nil {
		return 0
	}
	return o.format.SampleRate.D(o.looper.Len())
}

// Stop halts output and releases the loaded track
func (o *Output) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

// stopLocked stops playback (must be called with lock held)
func (o *Output) stopLocked() {
	o.stopPollLocked()

	if o.ctrl != nil {
		o.sink.Lock()
		o.ctrl.Paused = true
		o.tap.SetSource(nil)
		o.sink.Unlock()
	}
	o.sink.Clear()

	if o.streamer != nil {
		_ = o.streamer.Close()
	}

	o.streamer = nil
	o.looper = nil
	o.ctrl = nil
	o.playing = false
	o.ended = false
	o.gen = 0
	o.tap.Reset()
}

// Close halts output and releases the device
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}
	o.stopLocked()
	o.closed = true
	close(o.done)
	o.sink.Close()
	return nil
}

func (o *Output) startPollLocked() {
	o.stopPollLocked()

	ctx, cancel := context.WithCancel(context.Background())
	o.pollCancel = cancel
	gen := o.gen

	poller := NewPoller(func() (Event, bool) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if gen != o.gen || !o.playing {
			return Event{}, false
		}
		return Event{Kind: EventTimeAdvanced, Gen: gen, Position: o.positionLocked()}, true
	}, o.cfg.PollInterval, o.logger)

	go func() {
		_ = poller.Run(ctx, o.events)
	}()
}

func (o *Output) stopPollLocked() {
	if o.pollCancel != nil {
		o.pollCancel()
		o.pollCancel = nil
	}
}

// emit delivers a lifecycle event without blocking the caller. Position
// updates are dropped when the channel is full; other events wait for room
// until the output is closed.
func (o *Output) emit(ev Event) {
	select {
	case o.events <- ev:
		return
	default:
	}

	if ev.Kind == EventTimeAdvanced {
		o.logger.Debug().Dur("position", ev.Position).Msg("Dropped position update")
		return
	}

	o.logger.Warn().Str("event", ev.Kind.String()).Msg("Event channel full, delivering asynchronously")
	go func() {
		select {
		case o.events <- ev:
		case <-o.done:
		}
	}()
}
