package ui

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"poptrend/config"
)

const resetANSI = "\x1b[0m"

// ansiConsole is a fixed-size escape-code renderer used when the tview
// dashboard is unwanted. It repaints the whole chart and its panes from
// the current snapshot on every refresh tick. Selected via ui.mode=ansi.
type ansiConsole struct {
	mu      sync.Mutex
	chart   Snapshot
	stats   []string
	records ringPane
	rejects ringPane
	system  ringPane

	chartW  int
	chartH  int
	refresh time.Duration
	color   bool
	clear   bool

	quit     chan struct{}
	writer   *lineWriter
	out      io.Writer
	stopOnce sync.Once

	renderBuf   bytes.Buffer
	snapRecords []string
	snapRejects []string
	snapSystem  []string
}

type ringPane struct {
	lines []string
	idx   int
	count int
}

// Purpose: Construct the ANSI console renderer when output is allowed.
// Key aspects: Computes pane sizes, clamps refresh interval, and starts the refresh loop.
// Upstream: main UI selection based on config.
// Downstream: refreshLoop goroutine.
func NewANSIConsole(uiCfg config.UIConfig, allowRender bool) Surface {
	if !allowRender {
		return nil
	}

	refresh := time.Duration(uiCfg.RefreshMS) * time.Millisecond
	if refresh < 0 {
		refresh = 0
	}
	const minRefresh = 16 * time.Millisecond
	if refresh > 0 && refresh < minRefresh {
		log.Printf("UI: clamping refresh interval to %dms (requested %dms too low)", minRefresh/time.Millisecond, refresh/time.Millisecond)
		refresh = minRefresh
	}

	c := &ansiConsole{
		chart:       Snapshot{},
		stats:       make([]string, paneSize(uiCfg.PaneLines.Stats)),
		records:     ringPane{lines: make([]string, paneSize(uiCfg.PaneLines.Records))},
		rejects:     ringPane{lines: make([]string, paneSize(uiCfg.PaneLines.Rejects))},
		system:      ringPane{lines: make([]string, paneSize(uiCfg.PaneLines.System))},
		chartW:      uiCfg.ChartWidth,
		chartH:      uiCfg.ChartHeight,
		refresh:     refresh,
		color:       !uiCfg.NoColor,
		clear:       !uiCfg.NoClear,
		quit:        make(chan struct{}),
		out:         os.Stdout,
		snapRecords: make([]string, paneSize(uiCfg.PaneLines.Records)),
		snapRejects: make([]string, paneSize(uiCfg.PaneLines.Rejects)),
		snapSystem:  make([]string, paneSize(uiCfg.PaneLines.System)),
	}
	c.writer = &lineWriter{sink: c.AppendSystem}

	if c.refresh > 0 {
		go c.refreshLoop()
	}

	return c
}

func paneSize(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

// WaitReady is a no-op: the ANSI renderer has no async initialization.
func (c *ansiConsole) WaitReady() {}

// Stop halts the refresh loop. Safe to call more than once.
func (c *ansiConsole) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.quit)
	})
}

// Done unblocks after Stop. The ANSI renderer has no quit key of its
// own; interrupts reach main through the signal path.
func (c *ansiConsole) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.quit
}

// SetStats replaces the stats pane contents, bounded to the pane size.
func (c *ansiConsole) SetStats(lines []string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	limit := len(lines)
	if limit > len(c.stats) {
		limit = len(c.stats)
	}
	copy(c.stats, lines[:limit])
	for i := limit; i < len(c.stats); i++ {
		c.stats[i] = ""
	}
	c.mu.Unlock()
}

// SetChart replaces the plotted snapshot; the next refresh tick paints it.
func (c *ansiConsole) SetChart(snap Snapshot) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.chart = snap
	c.mu.Unlock()
}

func (c *ansiConsole) AppendAccepted(line string) { c.append(&c.records, line) }
func (c *ansiConsole) AppendRejected(line string) { c.append(&c.rejects, line) }
func (c *ansiConsole) AppendSystem(line string)   { c.append(&c.system, line) }

// SystemWriter returns the line-buffered writer feeding the system pane.
func (c *ansiConsole) SystemWriter() io.Writer {
	if c == nil {
		return nil
	}
	return c.writer
}

func (c *ansiConsole) append(pane *ringPane, line string) {
	if c == nil || pane == nil {
		return
	}
	c.mu.Lock()
	if len(pane.lines) == 0 {
		c.mu.Unlock()
		return
	}
	pane.lines[pane.idx] = line
	pane.idx = (pane.idx + 1) % len(pane.lines)
	if pane.count < len(pane.lines) {
		pane.count++
	}
	c.mu.Unlock()
}

// Purpose: Run periodic full-frame renders on the configured cadence.
// Key aspects: Recovers panics, ticks at refresh interval, exits on quit.
// Upstream: goroutine started in NewANSIConsole.
// Downstream: c.render.
func (c *ansiConsole) refreshLoop() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "ANSI console panic: %v\n", r)
		}
	}()
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.render()
		case <-c.quit:
			return
		}
	}
}

// Purpose: Render the current snapshot to the output writer.
// Key aspects: Copies state under lock, optionally clears screen, writes chart then panes.
// Upstream: refreshLoop.
// Downstream: renderPlot, writeChartFrame, writePane.
func (c *ansiConsole) render() {
	if c == nil {
		return
	}

	c.mu.Lock()
	chart := c.chart
	stats := make([]string, len(c.stats))
	copy(stats, c.stats)
	records := snapshotPane(&c.records, c.snapRecords)
	rejects := snapshotPane(&c.rejects, c.snapRejects)
	system := snapshotPane(&c.system, c.snapSystem)
	c.mu.Unlock()

	frame := renderPlot(chart, c.chartW, c.chartH)

	c.renderBuf.Reset()
	// Clear screen + home cursor.
	if c.clear {
		c.renderBuf.WriteString("\x1b[2J\x1b[H")
	}

	writeChartFrame(&c.renderBuf, frame, c.color)
	c.renderBuf.WriteByte('\n')
	for _, line := range stats {
		if line != "" {
			c.renderBuf.WriteString(line)
		}
		c.renderBuf.WriteByte('\n')
	}

	writePane(&c.renderBuf, "---- Records ----", records)
	writePane(&c.renderBuf, "---- Rejected ----", rejects)
	writePane(&c.renderBuf, "---- System ----", system)

	_, _ = c.renderBuf.WriteTo(c.out)
}

// FinalFrame renders the last snapshot as plain text, no escape codes.
func (c *ansiConsole) FinalFrame() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	chart := c.chart
	stats := make([]string, 0, len(c.stats))
	for _, line := range c.stats {
		if line != "" {
			stats = append(stats, line)
		}
	}
	c.mu.Unlock()

	text := renderPlot(chart, c.chartW, c.chartH).Text()
	if len(stats) > 0 {
		text += "\n\n" + strings.Join(stats, "\n")
	}
	return text
}

// writeChartFrame emits a rendered frame, batching escape codes over
// runs of cells owned by the same series when color is enabled.
func writeChartFrame(buf *bytes.Buffer, frame plotFrame, color bool) {
	if !color {
		buf.WriteString(frame.Text())
		buf.WriteByte('\n')
		return
	}
	for row := 0; row < frame.Height; row++ {
		current := seriesNone
		for col := 0; col < frame.Width; col++ {
			if owner := frame.Owners[row][col]; owner != current {
				buf.WriteString(seriesANSI(owner))
				current = owner
			}
			buf.WriteRune(frame.Rows[row][col])
		}
		if current != seriesNone {
			buf.WriteString(resetANSI)
		}
		buf.WriteByte('\n')
	}
}

func seriesANSI(owner uint8) string {
	switch owner {
	case seriesRaw:
		return "\x1b[90m"
	case seriesAverage:
		return "\x1b[36m"
	default:
		return resetANSI
	}
}

// writePane emits a titled pane, one line per slot.
func writePane(w *bytes.Buffer, title string, lines []string) {
	w.WriteString(title)
	w.WriteByte('\n')
	for _, line := range lines {
		if line != "" {
			w.WriteString(line)
		}
		w.WriteByte('\n')
	}
}

// snapshotPane copies a ring pane into a caller-provided buffer in
// oldest-first order.
func snapshotPane(p *ringPane, buf []string) []string {
	if p == nil || len(p.lines) == 0 || p.count == 0 || len(buf) == 0 {
		return buf[:0]
	}
	start := p.idx - p.count
	if start < 0 {
		start += len(p.lines)
	}
	limit := p.count
	if limit > len(buf) {
		limit = len(buf)
	}
	for i := 0; i < limit; i++ {
		buf[i] = p.lines[(start+i)%len(p.lines)]
	}
	return buf[:limit]
}
