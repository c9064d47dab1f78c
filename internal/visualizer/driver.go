// Package visualizer binds a render surface to the active renderer and
// forwards sampled frequency frames to it.
package visualizer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jfmyers9/murmur/internal/debounce"
	"github.com/rs/zerolog"
)

// DefaultResizeQuiet is how long resize signals must stop before re-init
const DefaultResizeQuiet = 400 * time.Millisecond

// Surface is the area a renderer draws on
type Surface interface {
	// Size returns the current drawable size
	Size() (width, height int)
}

// Renderer turns frequency frames into pixels on a surface
type Renderer interface {
	// Init binds the renderer to a surface, sized as it is now
	Init(surface Surface)

	// Update draws one frame; every byte is one frequency bin in [0, 255]
	Update(frame []byte)
}

// Driver owns the surface and routes frames to the active renderer
type Driver struct {
	mu        sync.Mutex
	renderers map[string]Renderer
	active    string
	surface   Surface
	inited    bool // Active renderer has been initialised with the surface
	detached  bool
	resize    *debounce.Debouncer
	logger    zerolog.Logger
}

// NewDriver creates a driver with the given renderers, starting on style
func NewDriver(renderers map[string]Renderer, style string, resizeQuiet time.Duration, logger zerolog.Logger) (*Driver, error) {
	if _, ok := renderers[style]; !ok {
		return nil, fmt.Errorf("unknown style %q", style)
	}
	if resizeQuiet <= 0 {
		resizeQuiet = DefaultResizeQuiet
	}

	d := &Driver{
		renderers: renderers,
		active:    style,
		logger:    logger.With().Str("component", "visualizer").Logger(),
	}
	d.resize = debounce.New(resizeQuiet, d.reinit)
	return d, nil
}

// Attach binds surface to the active renderer
func (d *Driver) Attach(surface Surface) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detached {
		return
	}
	d.surface = surface
	d.initLocked()
}

// OnTick forwards one frame to the active renderer
func (d *Driver) OnTick(frame []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil || d.detached {
		return
	}
	if !d.inited {
		d.initLocked()
	}
	d.renderers[d.active].Update(frame)
}

// OnResize records a resize signal; bursts collapse into one re-init
func (d *Driver) OnResize() {
	d.mu.Lock()
	detached := d.detached
	d.mu.Unlock()

	if detached {
		return
	}
	d.resize.Trigger()
}

// SetStyle switches the active renderer. The new renderer is initialised
// with the current surface before it receives a frame.
func (d *Driver) SetStyle(style string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.renderers[style]; !ok {
		return fmt.Errorf("unknown style %q", style)
	}
	if style == d.active {
		return nil
	}

	d.active = style
	d.inited = false
	if d.surface != nil {
		d.initLocked()
	}
	d.logger.Debug().Str("style", style).Msg("Style changed")
	return nil
}

// Style returns the active style name
func (d *Driver) Style() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// NextStyle switches to the style after the active one in name order
func (d *Driver) NextStyle() string {
	styles := d.Styles()

	d.mu.Lock()
	current := d.active
	d.mu.Unlock()

	next := styles[0]
	for i, s := range styles {
		if s == current {
			next = styles[(i+1)%len(styles)]
			break
		}
	}
	_ = d.SetStyle(next)
	return next
}

// Styles returns the available style names, sorted
func (d *Driver) Styles() []string {
	names := make([]string, 0, len(d.renderers))
	for name := range d.renderers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close cancels any pending re-init and ignores later resize signals
func (d *Driver) Close() {
	d.mu.Lock()
	d.detached = true
	d.mu.Unlock()

	d.resize.Stop()
}

func (d *Driver) reinit() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil || d.detached {
		return
	}
	w, h := d.surface.Size()
	d.logger.Debug().Int("width", w).Int("height", h).Msg("Reinitialising renderer after resize")
	d.initLocked()
}

// initLocked must be called with d.mu held
func (d *Driver) initLocked() {
	d.renderers[d.active].Init(d.surface)
	d.inited = true
}
