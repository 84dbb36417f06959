package ui

// Braille cells pack a 2x4 dot grid into a single rune, giving the
// chart twice the horizontal and four times the vertical resolution of
// the character grid. Dot (0,0) is the top-left corner of a cell.
const brailleBase rune = 0x2800

// brailleDotBits maps a dot position within a cell to its Unicode bit.
var brailleDotBits = [2][4]rune{
	{0x01, 0x02, 0x04, 0x40},
	{0x08, 0x10, 0x20, 0x80},
}

// dotCanvas is a fixed-size drawing surface addressed in braille dots.
// Each cell remembers which series painted it last so renderers can
// color whole runes.
type dotCanvas struct {
	cols  int
	rows  int
	cells []rune
	owner []uint8
}

func newDotCanvas(cols, rows int) *dotCanvas {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	return &dotCanvas{
		cols:  cols,
		rows:  rows,
		cells: make([]rune, cols*rows),
		owner: make([]uint8, cols*rows),
	}
}

func (c *dotCanvas) DotWidth() int  { return c.cols * 2 }
func (c *dotCanvas) DotHeight() int { return c.rows * 4 }

// SetDot marks one braille dot. Coordinates outside the canvas are
// ignored.
func (c *dotCanvas) SetDot(x, y int, series uint8) {
	if x < 0 || y < 0 || x >= c.DotWidth() || y >= c.DotHeight() {
		return
	}
	idx := (y/4)*c.cols + x/2
	c.cells[idx] |= brailleDotBits[x%2][y%4]
	c.owner[idx] = series
}

// Line draws a straight segment between two dots using Bresenham
// stepping, endpoints included.
func (c *dotCanvas) Line(x0, y0, x1, y1 int, series uint8) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	for {
		c.SetDot(x0, y0, series)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// Rune returns the braille rune for a cell, or a space when nothing was
// drawn there.
func (c *dotCanvas) Rune(col, row int) rune {
	bits := c.cells[row*c.cols+col]
	if bits == 0 {
		return ' '
	}
	return brailleBase | bits
}

// Owner reports the series that last painted a cell, seriesNone if the
// cell is empty.
func (c *dotCanvas) Owner(col, row int) uint8 {
	return c.owner[row*c.cols+col]
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
