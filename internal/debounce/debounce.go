// Package debounce coalesces bursts of signals into a single call.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once a quiet period has elapsed since the last Trigger
type Debouncer struct {
	mu      sync.Mutex
	quiet   time.Duration
	fn      func()
	timer   *time.Timer
	seq     uint64 // Incremented on every reschedule; a fired timer runs fn only if still current
	stopped bool
}

// New creates a Debouncer. fn runs on its own goroutine.
func New(quiet time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		quiet: quiet,
		fn:    fn,
	}
}

// Trigger cancels any pending call and schedules a new one
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.seq++
	seq := d.seq
	d.timer = time.AfterFunc(d.quiet, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.mu.Lock()
	// A Trigger or Stop may have raced with this timer firing
	if d.stopped || seq != d.seq {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

// Pending reports whether a call is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any pending call. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
