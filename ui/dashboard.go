package ui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"poptrend/config"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

const (
	statsPaneHeight  = 6
	streamPaneHeight = 9
	lineWriterMax    = 16 * 1024
)

const (
	accentTag   = "[deepskyblue]"
	accentReset = "[-]"
)

var (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorDeepSkyBlue
)

// Dashboard is the tview Surface: the live population chart above an
// overview box and three bounded stream panes.
type Dashboard struct {
	app       *tview.Application
	pages     *tview.Pages
	scheduler *frameScheduler

	ready chan struct{}
	done  chan struct{}

	chart   *chartView
	stats   *tview.TextView
	records *logPane
	rejects *logPane
	system  *logPane

	statsMu    sync.Mutex
	statsLines []string

	focusIdx  int
	helpShown bool

	fallbackW int
	fallbackH int

	renders    atomic.Uint64
	flushDelay atomic.Int64

	stopOnce sync.Once
}

// NewDashboard constructs the tview dashboard and starts its event
// loop. Returns nil when disabled so callers can fall through to other
// renderers.
func NewDashboard(cfg config.UIConfig, enable bool) *Dashboard {
	if !enable {
		return nil
	}

	app := tview.NewApplication()
	ready := make(chan struct{})
	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(ready) })
		return false
	})

	d := &Dashboard{
		app:       app,
		pages:     tview.NewPages(),
		ready:     ready,
		done:      make(chan struct{}),
		fallbackW: cfg.ChartWidth,
		fallbackH: cfg.ChartHeight,
	}

	d.chart = newChartView("Population Trend")

	d.stats = tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	d.stats.SetBorder(true)
	d.stats.SetTitle(accentText("Overview")).SetTitleAlign(tview.AlignLeft)
	d.stats.SetBorderColor(uiBorderColor)
	d.stats.SetTitleColor(uiTitleColor)

	paneLines := cfg.EventLines
	if paneLines <= 0 {
		paneLines = 200
	}
	d.records = newLogPane("Records", paneLines)
	d.rejects = newLogPane("Rejected", paneLines)
	d.system = newLogPane("System", paneLines)

	bottom := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(d.records, 0, 2, false).
		AddItem(d.rejects, 0, 1, false).
		AddItem(d.system, 0, 1, false)

	main := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.chart, 0, 1, false).
		AddItem(d.stats, statsPaneHeight, 0, false).
		AddItem(bottom, streamPaneHeight, 0, false).
		AddItem(buildFooter(), 1, 0, false)

	d.pages.AddPage("main", main, true, true)
	d.pages.AddPage("help", buildHelpOverlay(), true, false)
	app.SetRoot(d.pages, true)

	d.scheduler = newFrameScheduler(app, cfg.TargetFPS, 100*time.Millisecond, d.observeRender)
	d.scheduler.Start()
	d.installKeybindings()
	d.setPaneFocus(0)

	go func() {
		defer close(d.done)
		if err := app.Run(); err != nil {
			log.Printf("UI: tview error: %v", err)
		}
	}()

	return d
}

func (d *Dashboard) panes() []*logPane {
	return []*logPane{d.records, d.rejects, d.system}
}

func (d *Dashboard) setPaneFocus(idx int) {
	panes := d.panes()
	if idx < 0 {
		idx = len(panes) - 1
	}
	if idx >= len(panes) {
		idx = 0
	}
	d.focusIdx = idx
	for i, pane := range panes {
		pane.SetFocused(i == idx)
	}
	d.app.SetFocus(panes[idx])
}

func (d *Dashboard) handlePaneScroll(event *tcell.EventKey) bool {
	focused := d.app.GetFocus()
	for _, pane := range d.panes() {
		if focused == tview.Primitive(pane) {
			return pane.HandleScroll(event)
		}
	}
	return false
}

func (d *Dashboard) installKeybindings() {
	d.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if d.helpShown {
			switch {
			case event.Key() == tcell.KeyEsc,
				event.Key() == tcell.KeyF1,
				event.Rune() == 'h',
				event.Rune() == '?':
				d.toggleHelp(false)
				return nil
			}
			return event
		}

		if d.handlePaneScroll(event) {
			return nil
		}

		switch event.Key() {
		case tcell.KeyF1:
			d.toggleHelp(true)
			return nil
		case tcell.KeyTab:
			d.setPaneFocus(d.focusIdx + 1)
			return nil
		case tcell.KeyBacktab:
			d.setPaneFocus(d.focusIdx - 1)
			return nil
		case tcell.KeyCtrlC:
			d.Stop()
			return nil
		}

		switch event.Rune() {
		case 'q', 'Q':
			d.Stop()
			return nil
		case 'h', '?':
			d.toggleHelp(true)
			return nil
		}
		return event
	})
}

func (d *Dashboard) toggleHelp(show bool) {
	d.helpShown = show
	if show {
		d.pages.ShowPage("help")
		d.pages.SendToFront("help")
		return
	}
	d.pages.HidePage("help")
}

// WaitReady blocks until the first frame has been drawn.
func (d *Dashboard) WaitReady() {
	if d == nil || d.ready == nil {
		return
	}
	<-d.ready
}

// Stop shuts down the scheduler and the tview application. Safe to call
// more than once; the q key and the signal path both land here.
func (d *Dashboard) Stop() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		if d.scheduler != nil {
			d.scheduler.Stop()
		}
		if d.app != nil {
			d.app.Stop()
		}
	})
}

// Done unblocks once the tview event loop has exited.
func (d *Dashboard) Done() <-chan struct{} {
	if d == nil {
		return nil
	}
	return d.done
}

func (d *Dashboard) SetStats(lines []string) {
	if d == nil {
		return
	}
	d.statsMu.Lock()
	d.statsLines = append(d.statsLines[:0], lines...)
	d.statsMu.Unlock()
	d.scheduler.Schedule("stats", func() {
		d.renderStats()
	})
}

func (d *Dashboard) renderStats() {
	d.statsMu.Lock()
	lines := append([]string(nil), d.statsLines...)
	d.statsMu.Unlock()
	if n := d.renders.Load(); n > 0 {
		lines = append(lines, fmt.Sprintf("UI: frames=%d queue=%.1fms", n, float64(d.flushDelay.Load())/1e6))
	}
	d.stats.SetText(padLines(strings.Join(lines, "\n")))
}

func (d *Dashboard) SetChart(snap Snapshot) {
	if d == nil {
		return
	}
	d.scheduler.Schedule("chart", func() {
		d.chart.SetSnapshot(snap)
	})
}

func (d *Dashboard) AppendAccepted(line string) {
	if d == nil {
		return
	}
	d.records.Append(line)
	d.requestFrame()
}

func (d *Dashboard) AppendRejected(line string) {
	if d == nil {
		return
	}
	d.rejects.Append(line)
	d.requestFrame()
}

func (d *Dashboard) AppendSystem(line string) {
	if d == nil {
		return
	}
	d.system.Append(line)
	d.requestFrame()
}

// requestFrame kicks a draw without mutating anything: the stream panes
// render straight from their rings.
func (d *Dashboard) requestFrame() {
	d.scheduler.Schedule("streams", func() {})
}

func (d *Dashboard) observeRender(delay time.Duration) {
	d.renders.Add(1)
	d.flushDelay.Store(int64(delay))
}

// SystemWriter routes log output into the system pane, one line per
// write boundary.
func (d *Dashboard) SystemWriter() io.Writer {
	if d == nil {
		return nil
	}
	return &lineWriter{sink: d.AppendSystem}
}

// FinalFrame renders the last chart and overview as plain text for the
// static display printed after shutdown.
func (d *Dashboard) FinalFrame() string {
	if d == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(d.chart.FrameText(d.fallbackW, d.fallbackH))
	d.statsMu.Lock()
	lines := append([]string(nil), d.statsLines...)
	d.statsMu.Unlock()
	if len(lines) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(lines, "\n"))
	}
	return b.String()
}

// lineWriter adapts io.Writer log traffic into whole lines for a pane
// sink. Partial lines are buffered up to lineWriterMax bytes and then
// force-flushed so a missing newline cannot grow the buffer without
// bound.
type lineWriter struct {
	mu   sync.Mutex
	sink func(string)
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	if w == nil || w.sink == nil {
		return len(p), nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx == -1 {
			break
		}
		w.sink(strings.TrimRight(string(w.buf[:idx]), "\r"))
		w.buf = w.buf[idx+1:]
	}
	if len(w.buf) > lineWriterMax {
		if trimmed := strings.TrimRight(string(w.buf), "\r"); trimmed != "" {
			w.sink(trimmed)
		}
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

func applyFocusStyle(box *tview.Box, baseTitle string, focused bool) {
	title := baseTitle
	if focused {
		title += " *"
	}
	box.SetTitle(accentText(title))
	box.SetTitleAlign(tview.AlignLeft)
	box.SetTitleColor(uiTitleColor)
	if focused {
		box.SetBorderColor(uiTitleColor)
	} else {
		box.SetBorderColor(uiBorderColor)
	}
}

func buildFooter() *tview.TextView {
	return tview.NewTextView().SetDynamicColors(true).SetText(
		accentText("Tab") + " Pane  " + accentText("↑/↓") + " Scroll  " + accentText("H") + " Help  " + accentText("Q") + " Quit",
	)
}

func buildHelpOverlay() tview.Primitive {
	help := tview.NewTextView().SetDynamicColors(true).SetWrap(false)
	help.SetText(strings.TrimSpace(`
KEYBOARD HELP

  Tab / Shift+Tab   Cycle pane focus
  Up/Down or j/k    Scroll focused pane
  PgUp / PgDn       Fast scroll
  Home / End        Jump to top / bottom
  h / ? / F1        Toggle this help
  q / Ctrl+C        Quit and print the final chart
`))
	help.SetBorder(true).SetTitle(accentText("Help"))
	help.SetBorderColor(uiBorderColor)
	help.SetTitleColor(uiTitleColor)
	return tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(help, 12, 1, true).
			AddItem(nil, 0, 1, false),
			56, 1, true).
		AddItem(nil, 0, 1, false)
}

func padLines(text string) string {
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line == "" {
			continue
		}
		lines[i] = " " + line
	}
	return strings.Join(lines, "\n")
}

func accentText(text string) string {
	if text == "" {
		return ""
	}
	return accentTag + text + accentReset
}
