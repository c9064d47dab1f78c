package tui

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/murmur/internal/visualizer"
	"github.com/rivo/tview"
)

// Eighth blocks, from empty to full
var blocks = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// Canvas is the character grid the active renderer paints on. Rows are
// ordered top to bottom.
type Canvas struct {
	mu     sync.Mutex
	width  int
	height int
	rows   [][]rune
}

// NewCanvas creates an empty canvas
func NewCanvas() *Canvas {
	return &Canvas{}
}

// Reset clears the canvas and sets its size
func (c *Canvas) Reset(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = max(width, 0), max(height, 0)
	c.rows = nil
}

// Paint replaces the canvas contents
func (c *Canvas) Paint(rows [][]rune) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = rows
}

// Rows returns the painted rows
func (c *Canvas) Rows() [][]rune {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

// spectrum is a renderer drawing one column per frequency bucket
type spectrum struct {
	canvas *Canvas
	width  int
	height int
	cell   func(units, row int) rune
}

// NewBars returns a renderer drawing filled bars with eighth-block tops
func NewBars(canvas *Canvas) visualizer.Renderer {
	return &spectrum{canvas: canvas, cell: barCell}
}

// NewDots returns a renderer drawing a single dot at each column's peak
func NewDots(canvas *Canvas) visualizer.Renderer {
	return &spectrum{canvas: canvas, cell: dotCell}
}

// Renderers returns every renderer by style name, all sharing canvas
func Renderers(canvas *Canvas) map[string]visualizer.Renderer {
	return map[string]visualizer.Renderer{
		"bars": NewBars(canvas),
		"dots": NewDots(canvas),
	}
}

func (s *spectrum) Init(surface visualizer.Surface) {
	s.width, s.height = surface.Size()
	s.canvas.Reset(s.width, s.height)
}

func (s *spectrum) Update(frame []byte) {
	if s.width <= 0 || s.height <= 0 {
		return
	}

	levels := columns(frame, s.width)
	rows := make([][]rune, s.height)
	for y := range rows {
		rows[y] = make([]rune, s.width)
		// Row index counted from the bottom
		row := s.height - 1 - y
		for x, level := range levels {
			units := level * s.height * 8 / 255
			rows[y][x] = s.cell(units, row)
		}
	}
	s.canvas.Paint(rows)
}

func barCell(units, row int) rune {
	switch rem := units - row*8; {
	case rem >= 8:
		return blocks[8]
	case rem > 0:
		return blocks[rem]
	default:
		return ' '
	}
}

func dotCell(units, row int) rune {
	if units > 0 && (units-1)/8 == row {
		return '•'
	}
	return ' '
}

// columns reduces a frame to width levels by taking the peak of each bucket.
// Only the lower half of the bins is used since music carries little energy
// above it.
func columns(frame []byte, width int) []int {
	levels := make([]int, max(width, 0))
	n := len(frame) / 2
	if n == 0 {
		n = len(frame)
	}
	if n == 0 {
		return levels
	}

	for x := range levels {
		lo := x * n / width
		hi := (x + 1) * n / width
		if hi <= lo {
			hi = lo + 1
		}
		peak := 0
		for _, v := range frame[lo:min(hi, n)] {
			peak = max(peak, int(v))
		}
		levels[x] = peak
	}
	return levels
}

// SpectrumView draws the canvas and reports size changes before drawing
type SpectrumView struct {
	*tview.Box
	canvas *Canvas

	mu       sync.Mutex
	width    int
	height   int
	onResize func()
}

// NewSpectrumView creates a view over canvas
func NewSpectrumView(canvas *Canvas) *SpectrumView {
	return &SpectrumView{
		Box:    tview.NewBox(),
		canvas: canvas,
	}
}

// SetResizeFunc sets the function called when the drawable area changes size
func (v *SpectrumView) SetResizeFunc(fn func()) *SpectrumView {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onResize = fn
	return v
}

// Size returns the drawable area as of the last draw
func (v *SpectrumView) Size() (int, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.width, v.height
}

// Draw draws the canvas
func (v *SpectrumView) Draw(screen tcell.Screen) {
	v.Box.DrawForSubclass(screen, v)
	x, y, width, height := v.GetInnerRect()

	v.mu.Lock()
	changed := width != v.width || height != v.height
	v.width, v.height = width, height
	onResize := v.onResize
	v.mu.Unlock()

	if changed && onResize != nil {
		onResize()
	}

	rows := v.canvas.Rows()
	for i, row := range rows {
		if i >= height {
			break
		}
		style := tcell.StyleDefault.Foreground(rowColor(i, len(rows)))
		for j, r := range row {
			if j >= width {
				break
			}
			screen.SetContent(x+j, y+i, r, nil, style)
		}
	}
}

// rowColor shades from red at the top to green at the bottom
func rowColor(row, rows int) tcell.Color {
	if rows == 0 {
		return tcell.ColorGreen
	}
	switch frac := float64(row) / float64(rows); {
	case frac < 0.2:
		return tcell.ColorRed
	case frac < 0.45:
		return tcell.ColorYellow
	default:
		return tcell.ColorGreen
	}
}
