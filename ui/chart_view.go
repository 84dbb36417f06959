package ui

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// chartView renders the population plot as a tview primitive. The
// snapshot is replaced wholesale on every accepted record and the
// braille frame is rebuilt from scratch inside Draw, so no chart state
// can leak between frames.
// Concurrency: SetSnapshot may be called from non-UI goroutines;
// Draw runs on the UI goroutine.
type chartView struct {
	*tview.Box

	mu    sync.Mutex
	snap  Snapshot
	lastW int
	lastH int
}

func newChartView(title string) *chartView {
	v := &chartView{Box: tview.NewBox().SetBorder(true)}
	applyFocusStyle(v.Box, title, false)
	return v
}

// SetSnapshot replaces the plotted data.
func (v *chartView) SetSnapshot(snap Snapshot) {
	if v == nil {
		return
	}
	v.mu.Lock()
	v.snap = snap
	v.mu.Unlock()
}

func (v *chartView) Draw(screen tcell.Screen) {
	if v == nil {
		return
	}
	v.Box.DrawForSubclass(screen, v)

	x, y, width, height := v.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}

	v.mu.Lock()
	snap := v.snap
	v.lastW, v.lastH = width, height
	v.mu.Unlock()

	frame := renderPlot(snap, width, height)
	bg := v.GetBackgroundColor()
	for row := 0; row < frame.Height; row++ {
		for col := 0; col < frame.Width; col++ {
			r := frame.Rows[row][col]
			if r == ' ' {
				continue
			}
			style := tcell.StyleDefault.Foreground(seriesColor(frame.Owners[row][col])).Background(bg)
			screen.SetContent(x+col, y+row, r, nil, style)
		}
	}
}

// FrameText renders the current snapshot as plain text, preferring the
// size of the most recent draw so the final frame matches what was on
// screen.
func (v *chartView) FrameText(fallbackW, fallbackH int) string {
	if v == nil {
		return ""
	}
	v.mu.Lock()
	snap := v.snap
	w, h := v.lastW, v.lastH
	v.mu.Unlock()
	if w <= 0 || h <= 0 {
		w, h = fallbackW, fallbackH
	}
	return renderPlot(snap, w, h).Text()
}

func seriesColor(owner uint8) tcell.Color {
	switch owner {
	case seriesRaw:
		return tcell.ColorGray
	case seriesAverage:
		return tcell.ColorAqua
	default:
		return tcell.ColorWhite
	}
}
