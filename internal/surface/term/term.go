// Package term draws a danmaku overlay into a terminal. One lane is one text
// row and widths are measured in cells, so engine options for a terminal
// should use FontSize 1 and LineSpacing 1 with a speed in cells per second.
package term

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"danmaku-overlay/internal/danmaku"
	"danmaku-overlay/internal/surface/virtual"
)

// Options converts pixel-based options to a cell grid. A cell is taken to
// be half an em wide, as virtual.MeasureText assumes.
func Options(base danmaku.Options) danmaku.Options {
	if base.FontSize <= 0 {
		base.FontSize = danmaku.DefaultFontSize
	}
	cell := float64(base.FontSize) / 2
	if base.Speed > 0 {
		base.Speed /= cell
	}
	base.LineMargin = math.Ceil(base.LineMargin / cell)
	base.FontSize = 1
	base.LineSpacing = 1
	return base
}

// Surface is a virtual surface sized to the screen minus one status row.
// Draw paints its items; the engine drives it like any other surface.
type Surface struct {
	*virtual.Surface
	screen tcell.Screen
}

var _ danmaku.Surface = (*Surface)(nil)

// New sizes a surface from screen. Extra options are passed to the
// underlying virtual surface after the cell measure.
func New(screen tcell.Screen, opts ...virtual.Option) *Surface {
	w, h := screen.Size()
	opts = append([]virtual.Option{virtual.WithMeasure(virtual.MeasureCells)}, opts...)
	return &Surface{
		Surface: virtual.NewSurface(float64(w), float64(overlayRows(h)), opts...),
		screen:  screen,
	}
}

func overlayRows(h int) int {
	if h <= 1 {
		return 0
	}
	return h - 1
}

// Sync re-reads the screen size after a tcell resize event.
func (s *Surface) Sync() {
	s.screen.Sync()
	w, h := s.screen.Size()
	s.Resize(float64(w), float64(overlayRows(h)))
}

// Draw clears the screen, paints visible items and writes status on the
// bottom row.
func (s *Surface) Draw(status string) {
	s.screen.Clear()
	w, h := s.screen.Size()
	if s.Visible() {
		for _, it := range s.Items() {
			style := tcell.StyleDefault.Foreground(tcell.GetColor(it.Color))
			drawText(s.screen, int(math.Round(it.Bounds.X)), int(it.Bounds.Y), w, it.Text, style)
		}
	}
	if h > 0 {
		drawText(s.screen, 0, h-1, w, status, tcell.StyleDefault.Reverse(true))
	}
	s.screen.Show()
}

// drawText writes text from column x, skipping cells outside [0, width).
func drawText(screen tcell.Screen, x, y, width int, text string, style tcell.Style) {
	for _, r := range text {
		rw := runewidth.RuneWidth(r)
		if x >= 0 && x+rw <= width {
			screen.SetContent(x, y, r, nil, style)
		}
		x += rw
	}
}
