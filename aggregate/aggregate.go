// Package aggregate maintains the per-year population state behind the
// live trend chart.
package aggregate

import "poptrend/record"

// Point is one (year, population) observation in arrival order.
type Point struct {
	Year       int
	Population float64
}

// YearStats tracks the running sum and count of observations for a
// single year. Count is at least 1 for any year present.
type YearStats struct {
	Sum   float64
	Count uint64
}

// Average returns the running mean for the year.
func (s YearStats) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// Snapshot is a self-contained copy of the aggregation state handed to
// renderers. History keeps arrival order and is not deduplicated by
// year; a year reported twice appears twice. Mutating a snapshot never
// affects the aggregator or other snapshots.
type Snapshot struct {
	History  []Point
	Averages map[int]float64
}

// Empty reports whether the snapshot holds no observations.
func (s Snapshot) Empty() bool { return len(s.History) == 0 }

// Aggregator owns the append-only history and the per-year running
// stats.
//
// Concurrency contract: only the message loop mutates the aggregator.
// Renderers receive copied snapshots and never touch it directly, so
// no locking is needed.
type Aggregator struct {
	history []Point
	years   map[int]*YearStats
}

// New returns an empty aggregator.
func New() *Aggregator {
	return &Aggregator{years: make(map[int]*YearStats)}
}

// Update folds one validated record into the state and returns a
// snapshot sufficient for a from-scratch redraw. It cannot fail.
func (a *Aggregator) Update(rec record.Record) Snapshot {
	a.history = append(a.history, Point{Year: rec.Year, Population: rec.Population})
	stats := a.years[rec.Year]
	if stats == nil {
		stats = &YearStats{}
		a.years[rec.Year] = stats
	}
	stats.Sum += rec.Population
	stats.Count++
	return a.Snapshot()
}

// Snapshot copies the current state without updating it.
func (a *Aggregator) Snapshot() Snapshot {
	history := make([]Point, len(a.history))
	copy(history, a.history)
	averages := make(map[int]float64, len(a.years))
	for year, stats := range a.years {
		averages[year] = stats.Average()
	}
	return Snapshot{History: history, Averages: averages}
}

// Len returns the number of observations accumulated so far.
func (a *Aggregator) Len() int { return len(a.history) }

// DistinctYears returns how many different years have been seen.
func (a *Aggregator) DistinctYears() int { return len(a.years) }

// YearCount returns how many records contributed to a year.
func (a *Aggregator) YearCount(year int) uint64 {
	if stats := a.years[year]; stats != nil {
		return stats.Count
	}
	return 0
}

// YearSum returns the accumulated population sum for a year.
func (a *Aggregator) YearSum(year int) float64 {
	if stats := a.years[year]; stats != nil {
		return stats.Sum
	}
	return 0
}

// Last returns the most recent observation, if any.
func (a *Aggregator) Last() (Point, bool) {
	if len(a.history) == 0 {
		return Point{}, false
	}
	return a.history[len(a.history)-1], true
}
