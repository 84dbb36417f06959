package ui

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// Series ids recorded per plotted cell so renderers can color whole
// runes after the fact.
const (
	seriesNone uint8 = iota
	seriesRaw
	seriesAverage
)

const (
	minPlotWidth  = 24
	minPlotHeight = 9
)

// plotFrame is one fully rendered chart: fixed-size rune rows plus a
// parallel ownership grid marking which series painted each cell.
type plotFrame struct {
	Width  int
	Height int
	Rows   [][]rune
	Owners [][]uint8
}

// Text flattens the frame to plain text with trailing blanks trimmed.
func (f plotFrame) Text() string {
	var b strings.Builder
	for i, row := range f.Rows {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.TrimRight(string(row), " "))
	}
	return b.String()
}

// renderPlot lays out the full chart for one snapshot. It is a pure
// function of (snapshot, width, height): the previous frame is never
// consulted, so rendering the same snapshot twice yields the same
// frame.
//
// Layout, top to bottom: title, legend, plot body with a right-aligned
// y-axis gutter, x-axis line with tick marks, two staggered tick label
// rows, and the x-axis caption.
func renderPlot(snap Snapshot, width, height int) plotFrame {
	f := newPlotFrame(width, height)
	if width < minPlotWidth || height < minPlotHeight {
		f.center(0, "chart area too small")
		return f
	}

	f.center(0, snap.Title)
	if len(snap.Points) == 0 {
		f.center(height/2, "waiting for records...")
		return f
	}

	lo, hi := valueRange(snap.Points)
	xMin, xMax := yearRange(snap.Points)

	bodyTop := 2
	bodyBottom := height - 5
	bodyRows := bodyBottom - bodyTop + 1

	labels := yAxisLabels(lo, hi, bodyRows)
	axisCol := maxLen(labels) + 2
	plotStart := axisCol + 1
	plotCols := width - plotStart
	if plotCols < 8 || bodyRows < 2 {
		f.center(height/2, "chart area too small")
		return f
	}

	canvas := newDotCanvas(plotCols, bodyRows)
	spanX := float64(xMax - xMin)
	toDotX := func(year int) int {
		if spanX <= 0 {
			return canvas.DotWidth() / 2
		}
		return int(math.Round(float64(year-xMin) / spanX * float64(canvas.DotWidth()-1)))
	}
	spanY := hi - lo
	toDotY := func(v float64) int {
		return canvas.DotHeight() - 1 - int(math.Round((v-lo)/spanY*float64(canvas.DotHeight()-1)))
	}

	// The raw series first, then the average on top, matching how the
	// two lines stack visually when they cross.
	drawSeries(canvas, snap.Points, func(p SeriesPoint) float64 { return p.Population }, seriesRaw, toDotX, toDotY)
	drawSeries(canvas, snap.Points, func(p SeriesPoint) float64 { return p.Average }, seriesAverage, toDotX, toDotY)

	f.writeLegend(1)

	for r := 0; r < bodyRows; r++ {
		row := bodyTop + r
		axisChar := '│'
		if label := labels[r]; label != "" {
			axisChar = '┤'
			f.write(row, axisCol-1-len(label), label)
		}
		f.Rows[row][axisCol] = axisChar
		for c := 0; c < plotCols; c++ {
			ru := canvas.Rune(c, r)
			if ru == ' ' {
				continue
			}
			f.Rows[row][plotStart+c] = ru
			f.Owners[row][plotStart+c] = canvas.Owner(c, r)
		}
	}

	axisRow := bodyBottom + 1
	f.Rows[axisRow][axisCol] = '└'
	for c := plotStart; c < width; c++ {
		f.Rows[axisRow][c] = '─'
	}
	for i, year := range yearTicks(xMin, xMax, plotCols) {
		col := plotStart + toDotX(year)/2
		if col >= width {
			col = width - 1
		}
		f.Rows[axisRow][col] = '┬'
		label := strconv.Itoa(year)
		start := col - len(label)/2
		if start < 0 {
			start = 0
		}
		if start+len(label) > width {
			start = width - len(label)
		}
		f.write(axisRow+1+i%2, start, label)
	}

	f.write(height-1, plotStart+(plotCols-len("Year"))/2, "Year")
	return f
}

func drawSeries(canvas *dotCanvas, points []SeriesPoint, value func(SeriesPoint) float64, id uint8, toDotX func(int) int, toDotY func(float64) int) {
	prevX, prevY := 0, 0
	for i, p := range points {
		x := toDotX(p.Year)
		y := toDotY(value(p))
		if i == 0 {
			canvas.SetDot(x, y, id)
		} else {
			canvas.Line(prevX, prevY, x, y, id)
		}
		prevX, prevY = x, y
	}
}

func newPlotFrame(width, height int) plotFrame {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	rows := make([][]rune, height)
	owners := make([][]uint8, height)
	for i := range rows {
		r := make([]rune, width)
		for j := range r {
			r[j] = ' '
		}
		rows[i] = r
		owners[i] = make([]uint8, width)
	}
	return plotFrame{Width: width, Height: height, Rows: rows, Owners: owners}
}

func (f *plotFrame) write(row, col int, text string) {
	f.writeOwned(row, col, text, seriesNone)
}

func (f *plotFrame) writeOwned(row, col int, text string, owner uint8) {
	if row < 0 || row >= f.Height {
		return
	}
	for _, r := range text {
		if col >= f.Width {
			return
		}
		if col >= 0 {
			f.Rows[row][col] = r
			if owner != seriesNone {
				f.Owners[row][col] = owner
			}
		}
		col++
	}
}

func (f *plotFrame) center(row int, text string) {
	f.write(row, (f.Width-utf8.RuneCountInString(text))/2, text)
}

func (f *plotFrame) writeLegend(row int) {
	const (
		mark     = "⠤⠤"
		rawLabel = "Population"
		avgLabel = "Average Population"
	)
	total := 2 + 1 + len(rawLabel) + 3 + 2 + 1 + len(avgLabel)
	col := (f.Width - total) / 2
	f.writeOwned(row, col, mark, seriesRaw)
	f.write(row, col+3, rawLabel)
	col += 3 + len(rawLabel) + 3
	f.writeOwned(row, col, mark, seriesAverage)
	f.write(row, col+3, avgLabel)
}

// valueRange spans both series with a small margin so lines never sit
// exactly on the frame edge. A flat series gets a symmetric pad.
func valueRange(points []SeriesPoint) (float64, float64) {
	lo := math.Inf(1)
	hi := math.Inf(-1)
	for _, p := range points {
		for _, v := range [2]float64{p.Population, p.Average} {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	span := hi - lo
	if span <= 0 {
		pad := math.Abs(hi) * 0.01
		if pad < 1 {
			pad = 1
		}
		return lo - pad, hi + pad
	}
	return lo - span*0.04, hi + span*0.04
}

func yearRange(points []SeriesPoint) (int, int) {
	xMin := points[0].Year
	xMax := points[0].Year
	for _, p := range points[1:] {
		if p.Year < xMin {
			xMin = p.Year
		}
		if p.Year > xMax {
			xMax = p.Year
		}
	}
	return xMin, xMax
}

// yAxisLabels picks up to five evenly spaced rows and labels each with
// the series value at that row. Returned slice is indexed by body row;
// empty entries carry no label.
func yAxisLabels(lo, hi float64, rows int) []string {
	labels := make([]string, rows)
	if rows < 1 {
		return labels
	}
	count := 5
	if rows < count {
		count = rows
	}
	for i := 0; i < count; i++ {
		r := 0
		if count > 1 {
			r = i * (rows - 1) / (count - 1)
		}
		frac := 0.0
		if rows > 1 {
			frac = float64(r) / float64(rows-1)
		}
		v := hi - (hi-lo)*frac
		labels[r] = humanize.Comma(int64(math.Round(v)))
	}
	return labels
}

// yearTicks returns integer tick years aligned to a round step, always
// at least one.
func yearTicks(xMin, xMax, plotCols int) []int {
	if xMax <= xMin {
		return []int{xMin}
	}
	maxTicks := plotCols / 8
	if maxTicks < 2 {
		maxTicks = 2
	}
	if maxTicks > 10 {
		maxTicks = 10
	}
	step := niceYearStep(xMax-xMin, maxTicks)
	first := int(math.Ceil(float64(xMin)/float64(step))) * step
	ticks := make([]int, 0, maxTicks)
	for y := first; y <= xMax; y += step {
		ticks = append(ticks, y)
	}
	if len(ticks) == 0 {
		ticks = append(ticks, xMin)
	}
	return ticks
}

// niceYearStep picks the smallest step from the 1-2-5 ladder that keeps
// the tick count within budget.
func niceYearStep(span, maxTicks int) int {
	if maxTicks < 2 {
		maxTicks = 2
	}
	raw := (span + maxTicks - 2) / (maxTicks - 1)
	if raw < 1 {
		return 1
	}
	for mag := 1; ; mag *= 10 {
		for _, m := range [3]int{1, 2, 5} {
			if step := m * mag; step >= raw {
				return step
			}
		}
	}
}

func maxLen(items []string) int {
	longest := 0
	for _, s := range items {
		if len(s) > longest {
			longest = len(s)
		}
	}
	return longest
}
