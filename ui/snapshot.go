package ui

import "time"

// SeriesPoint is one plotted observation. Points are kept in arrival
// order; a year that appears twice contributes two points at the same
// x-coordinate. Average carries the running mean for the point's year
// as of the moment the snapshot was built, so earlier points of a year
// move when later records arrive.
type SeriesPoint struct {
	Year       int
	Population float64
	Average    float64
}

// Snapshot is the chart handoff built by the message loop after each
// accepted record. It is immutable once handed to a Surface.
type Snapshot struct {
	GeneratedAt time.Time
	Title       string
	Points      []SeriesPoint
}
