package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/murmur/internal/music"
	"github.com/jfmyers9/murmur/internal/player"
	"github.com/jfmyers9/murmur/internal/status"
	"github.com/jfmyers9/murmur/internal/visualizer"
	"github.com/rivo/tview"
	"github.com/rs/zerolog"
)

const (
	spectrumHeight = 12
	flashDuration  = 4 * time.Second
	commandTimeout = 2 * time.Second
	helpText       = "[gray]q:quit  space:play/pause  n:next  p:prev  l:loop  m:mute  s:style  c:compact[-]"
)

// Config holds TUI configuration options
type Config struct {
	FrameRate int  // Visualizer frames per second, also the redraw rate
	Compact   bool // Start with the visualizer hidden
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		FrameRate: 30,
	}
}

// Session is the playback session the TUI controls
type Session interface {
	TogglePlay(ctx context.Context) error
	Next(ctx context.Context) error
	Prev(ctx context.Context) error
	CycleLoop(ctx context.Context) error
	ToggleMute(ctx context.Context) error
	Status() status.PlaybackStatus
	Selection() player.Selection
	State() music.PlayState
	Conditions() <-chan error
}

// Visualizer receives frames and resize signals
type Visualizer interface {
	Attach(surface visualizer.Surface)
	OnTick(frame []byte)
	OnResize()
	NextStyle() string
	Style() string
}

// Sampler produces one frequency frame per call
type Sampler interface {
	Sample() []byte
}

// App is the TUI application for the player
type App struct {
	app      *tview.Application
	layout   *tview.Flex
	title    *tview.TextView
	spectrum *SpectrumView
	progress *tview.TextView
	modes    *tview.TextView
	status   *tview.TextView

	config  Config
	session Session
	viz     Visualizer
	sampler Sampler
	onStyle func(style string)
	logger  zerolog.Logger

	// Guarded by mu
	mu         sync.Mutex
	compact    bool
	attached   bool
	flash      string
	flashUntil time.Time

	// Last-rendered content for change detection
	lastTitle    string
	lastProgress string
	lastModes    string
	lastStatus   string

	// Cached progress bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int

	cancelFunc context.CancelFunc
}

// New creates the TUI. canvas must be the canvas the visualizer's renderers
// paint on.
func New(cfg Config, session Session, viz Visualizer, sampler Sampler, canvas *Canvas, logger zerolog.Logger) *App {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = DefaultConfig().FrameRate
	}

	a := &App{
		app:     tview.NewApplication(),
		config:  cfg,
		session: session,
		viz:     viz,
		sampler: sampler,
		compact: cfg.Compact,
		logger:  logger.With().Str("component", "tui").Logger(),
	}
	a.setupUI(canvas)
	return a
}

// SetStyleHook sets the function called after the user switches style
func (a *App) SetStyleHook(fn func(style string)) {
	a.onStyle = fn
}

// setupUI creates the UI layout
func (a *App) setupUI(canvas *Canvas) {
	a.title = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.title.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.spectrum = NewSpectrumView(canvas).SetResizeFunc(a.surfaceResized)
	a.spectrum.SetBorder(true).
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.modes = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(helpText)

	// Title, spectrum, progress bar, loop/mute line, footer
	a.layout = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.title, 5, 1, false).
		AddItem(a.spectrum, 0, spectrumHeight, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(a.modes, 1, 1, false).
		AddItem(a.status, 1, 1, false)
	a.applyCompact()

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(a.layout, true)
}

// surfaceResized runs before drawing whenever the spectrum area changes
// size. The first known size attaches the visualizer.
func (a *App) surfaceResized() {
	a.mu.Lock()
	first := !a.attached
	a.attached = true
	a.mu.Unlock()

	if first {
		a.viz.Attach(a.spectrum)
		return
	}
	a.viz.OnResize()
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	var cmd func(context.Context) error

	switch event.Rune() {
	case 'q', 'Q':
		a.Stop()
		return nil
	case ' ':
		cmd = a.session.TogglePlay
	case 'n', 'N':
		cmd = a.session.Next
	case 'p', 'P':
		cmd = a.session.Prev
	case 'l', 'L':
		cmd = a.session.CycleLoop
	case 'm', 'M':
		cmd = a.session.ToggleMute
	case 's', 'S':
		style := a.viz.NextStyle()
		a.setFlash("style: " + style)
		if a.onStyle != nil {
			a.onStyle(style)
		}
		return nil
	case 'c', 'C':
		a.mu.Lock()
		a.compact = !a.compact
		a.mu.Unlock()
		a.applyCompact()
		return nil
	default:
		return event
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	if err := cmd(ctx); err != nil {
		a.logger.Debug().Err(err).Str("key", string(event.Rune())).Msg("Command failed")
		a.setFlash(err.Error())
	}
	return nil
}

// applyCompact shows or hides the spectrum pane
func (a *App) applyCompact() {
	a.mu.Lock()
	compact := a.compact
	a.mu.Unlock()

	if compact {
		a.layout.ResizeItem(a.spectrum, 0, 0)
		a.spectrum.SetBorder(false)
		return
	}
	a.layout.ResizeItem(a.spectrum, 0, spectrumHeight)
	a.spectrum.SetBorder(true)
}

// Run starts the TUI and blocks until it is stopped or ctx is cancelled
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)

	go a.watchConditions(ctx)
	go a.renderLoop(ctx)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// renderLoop is the only source of redraws: one visualizer frame and one
// panel refresh per tick
func (a *App) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(a.config.FrameRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.mu.Lock()
			compact := a.compact
			a.mu.Unlock()

			if !compact {
				a.viz.OnTick(a.sampler.Sample())
			}
			a.refresh()
		}
	}
}

// watchConditions surfaces session problems in the footer
func (a *App) watchConditions(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-a.session.Conditions():
			a.setFlash(err.Error())
		}
	}
}

func (a *App) setFlash(msg string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flash = msg
	a.flashUntil = time.Now().Add(flashDuration)
}

// refresh updates all UI components
func (a *App) refresh() {
	st := a.session.Status()
	sel := a.session.Selection()
	state := a.session.State()

	a.app.QueueUpdateDraw(func() {
		a.updateTitle(sel, state)
		a.updateProgress(st, state)
		a.updateModes(st)
		a.updateStatus()
		a.spectrum.SetTitle(" " + a.viz.Style() + " ")
	})
}

func (a *App) updateTitle(sel player.Selection, state music.PlayState) {
	text := titleText(sel, state)
	if text != a.lastTitle {
		a.lastTitle = text
		a.title.SetText(text)
	}
}

func (a *App) updateProgress(st status.PlaybackStatus, state music.PlayState) {
	var text string

	if state.Loaded() {
		_, _, width, _ := a.progress.GetInnerRect()
		barWidth := width - 20 // Account for time and percentage
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}

		text = fmt.Sprintf("%s %s %s %3d%%",
			formatDuration(st.CurrentTime),
			buildProgressBar(st.CurrentTime, st.Duration, a.lastBarWidth),
			formatDuration(st.Duration),
			st.Progress(),
		)
	}

	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

func (a *App) updateModes(st status.PlaybackStatus) {
	text := modesText(st)
	if text != a.lastModes {
		a.lastModes = text
		a.modes.SetText(text)
	}
}

func (a *App) updateStatus() {
	a.mu.Lock()
	text := helpText
	if a.flash != "" && time.Now().Before(a.flashUntil) {
		text = fmt.Sprintf("[yellow]%s[-]", tview.Escape(a.flash))
	}
	a.mu.Unlock()

	if text != a.lastStatus {
		a.lastStatus = text
		a.status.SetText(text)
	}
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func titleText(sel player.Selection, state music.PlayState) string {
	if sel.ID == "" {
		return "\n[gray]Nothing selected[-]"
	}

	var icon string
	switch state {
	case music.StatePlaying:
		icon = "[green]▶[-]" // Play triangle
	case music.StatePaused:
		icon = "[yellow]⏸[-]" // Pause icon
	case music.StateLoading:
		icon = "[gray]…[-]"
	default:
		icon = "[gray]■[-]" // Stop square
	}

	return fmt.Sprintf("\n%s [white::b]%s[-:-:-]", icon, tview.Escape(sel.Name))
}

func modesText(st status.PlaybackStatus) string {
	var loop string
	switch st.Loop {
	case music.LoopSingle:
		loop = "[blue]loop: single[-]"
	case music.LoopLikeOnly:
		loop = "[red]loop: liked[-]"
	default:
		loop = "[white]loop: all[-]"
	}

	mute := "[white]sound: on[-]"
	if st.Muted {
		mute = "[gray]sound: muted[-]"
	}
	return loop + "   " + mute
}

// buildProgressBar creates a text-based progress bar
func buildProgressBar(position, duration time.Duration, width int) string {
	if duration == 0 || width <= 0 {
		return strings.Repeat("-", max(width, 0))
	}

	progress := float64(position) / float64(duration)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
