package ui

import (
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// logPane is a bounded scrollback pane for the record, reject and
// system streams. It keeps a fixed ring of lines and renders only the
// rows that fit the current rect, with a synthetic trailer noting how
// many older lines were evicted.
// Concurrency: Append may be called from any goroutine; Draw and
// HandleScroll run on the UI goroutine.
type logPane struct {
	*tview.Box

	mu    sync.Mutex
	lines []string
	head  int
	count int
	total uint64

	offset int
	follow bool

	baseTitle string
	renderBuf []string

	overflowN    int
	overflowText string
}

func newLogPane(title string, max int) *logPane {
	if max <= 0 {
		max = 1
	}
	p := &logPane{
		Box:       tview.NewBox().SetBorder(true),
		lines:     make([]string, max),
		follow:    true,
		baseTitle: title,
		overflowN: -1,
	}
	applyFocusStyle(p.Box, title, false)
	return p
}

func (p *logPane) SetFocused(focused bool) {
	if p == nil {
		return
	}
	applyFocusStyle(p.Box, p.baseTitle, focused)
}

// Append adds a line, evicting the oldest once the ring is full.
func (p *logPane) Append(line string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	max := len(p.lines)
	if p.count < max {
		p.lines[(p.head+p.count)%max] = line
		p.count++
	} else {
		p.lines[p.head] = line
		p.head = (p.head + 1) % max
	}
	p.total++
	p.mu.Unlock()
}

func (p *logPane) Draw(screen tcell.Screen) {
	if p == nil {
		return
	}
	p.Box.DrawForSubclass(screen, p)

	x, y, width, height := p.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}

	p.mu.Lock()
	rows := p.visibleRowsLocked(height)
	p.mu.Unlock()

	for i, row := range rows {
		drawPaneLine(screen, x, y+i, width, row, p.GetBackgroundColor())
	}
}

func (p *logPane) HandleScroll(event *tcell.EventKey) bool {
	if p == nil || event == nil {
		return false
	}

	_, _, _, height := p.GetInnerRect()
	if height < 1 {
		height = 1
	}
	page := height - 1
	if page < 1 {
		page = 1
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	maxOffset := p.totalRowsLocked() - height
	if maxOffset < 0 {
		maxOffset = 0
	}

	next := p.offset
	handled := true

	switch event.Key() {
	case tcell.KeyUp:
		next--
		p.follow = false
	case tcell.KeyDown:
		next++
	case tcell.KeyPgUp:
		next -= page
		p.follow = false
	case tcell.KeyPgDn:
		next += page
	case tcell.KeyHome:
		next = 0
		p.follow = false
	case tcell.KeyEnd:
		next = maxOffset
		p.follow = true
	case tcell.KeyRune:
		switch event.Rune() {
		case 'k':
			next--
			p.follow = false
		case 'j':
			next++
		default:
			handled = false
		}
	default:
		handled = false
	}

	if !handled {
		return false
	}

	if next < 0 {
		next = 0
	}
	if next > maxOffset {
		next = maxOffset
	}
	if event.Key() != tcell.KeyEnd {
		p.follow = next == maxOffset
	}
	p.offset = next
	return true
}

// SnapshotText joins every retained line, used by tests and the final
// frame.
func (p *logPane) SnapshotText() string {
	if p == nil {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	rows := make([]string, 0, p.count+1)
	for i := 0; i < p.count; i++ {
		rows = append(rows, p.lines[(p.head+i)%len(p.lines)])
	}
	if overflow := int(p.total) - p.count; overflow > 0 {
		rows = append(rows, p.overflowLineLocked(overflow))
	}
	return strings.Join(rows, "\n")
}

func (p *logPane) totalRowsLocked() int {
	rows := p.count
	if int(p.total) > p.count {
		rows++
	}
	return rows
}

func (p *logPane) visibleRowsLocked(height int) []string {
	overflow := int(p.total) - p.count
	totalRows := p.totalRowsLocked()
	maxOffset := totalRows - height
	if maxOffset < 0 {
		maxOffset = 0
	}
	if p.follow || !p.HasFocus() {
		p.offset = maxOffset
	}
	if p.offset < 0 {
		p.offset = 0
	}
	if p.offset > maxOffset {
		p.offset = maxOffset
	}

	start := p.offset
	end := start + height
	if end > totalRows {
		end = totalRows
	}
	needed := end - start
	if needed < 0 {
		needed = 0
	}

	if cap(p.renderBuf) < needed {
		p.renderBuf = make([]string, needed)
	} else {
		p.renderBuf = p.renderBuf[:needed]
	}

	for i := 0; i < needed; i++ {
		row := start + i
		if row < p.count {
			p.renderBuf[i] = p.lines[(p.head+row)%len(p.lines)]
			continue
		}
		p.renderBuf[i] = p.overflowLineLocked(overflow)
	}
	return p.renderBuf
}

func (p *logPane) overflowLineLocked(overflow int) string {
	if overflow == p.overflowN {
		return p.overflowText
	}
	var buf [32]byte
	b := append(buf[:0], '.', '.', '.', ' ', '+')
	b = strconv.AppendInt(b, int64(overflow), 10)
	b = append(b, " more"...)
	p.overflowN = overflow
	p.overflowText = string(b)
	return p.overflowText
}

func drawPaneLine(screen tcell.Screen, x, y, width int, text string, bg tcell.Color) {
	if width <= 0 {
		return
	}
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(bg)

	col := 0
	screen.SetContent(x+col, y, ' ', nil, style)
	col++
	for _, r := range text {
		if col >= width {
			return
		}
		if r == '\n' || r == '\r' {
			return
		}
		if r == '\t' {
			r = ' '
		}
		screen.SetContent(x+col, y, r, nil, style)
		col++
	}
}
