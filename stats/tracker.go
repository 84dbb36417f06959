// Package stats tracks pipeline counters for display in the dashboard
// and periodic console output.
package stats

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Tracker counts what the message loop did with each payload.
// Counters are atomics so the stats ticker and the UI can read while
// the loop increments.
type Tracker struct {
	start            atomic.Int64
	consumed         atomic.Uint64
	accepted         atomic.Uint64
	decodeErrors     atomic.Uint64
	validationErrors atomic.Uint64
	processingErrors atomic.Uint64
	frames           atomic.Uint64
	historyLen       atomic.Uint64
	distinctYears    atomic.Uint64

	mu          sync.Mutex
	lastYear    int
	lastPop     float64
	lastCountry string
	hasLast     bool
}

// NewTracker creates a new pipeline tracker
func NewTracker() *Tracker {
	t := &Tracker{}
	t.start.Store(time.Now().UnixNano())
	return t
}

// IncrementConsumed counts one payload taken from the source.
func (t *Tracker) IncrementConsumed() {
	t.consumed.Add(1)
}

// RecordAccepted counts one validated record and remembers it as the
// most recent observation.
func (t *Tracker) RecordAccepted(year int, population float64, country string) {
	t.accepted.Add(1)
	t.mu.Lock()
	t.lastYear = year
	t.lastPop = population
	t.lastCountry = country
	t.hasLast = true
	t.mu.Unlock()
}

// IncrementDecodeErrors counts one malformed payload.
func (t *Tracker) IncrementDecodeErrors() {
	t.decodeErrors.Add(1)
}

// IncrementValidationErrors counts one payload with unusable fields.
func (t *Tracker) IncrementValidationErrors() {
	t.validationErrors.Add(1)
}

// IncrementProcessingErrors counts one recovered per-message failure.
func (t *Tracker) IncrementProcessingErrors() {
	t.processingErrors.Add(1)
}

// IncrementFrames counts one chart snapshot published to the renderer.
func (t *Tracker) IncrementFrames() {
	t.frames.Add(1)
}

// SetSeriesSize records the history length and distinct-year count of
// the latest aggregation snapshot. The message loop reports these so
// the stats ticker never has to touch the aggregator.
func (t *Tracker) SetSeriesSize(records, years int) {
	t.historyLen.Store(uint64(records))
	t.distinctYears.Store(uint64(years))
}

// SeriesSize returns the last reported history length and
// distinct-year count.
func (t *Tracker) SeriesSize() (records, years uint64) {
	return t.historyLen.Load(), t.distinctYears.Load()
}

// Consumed returns the number of payloads taken from the source.
func (t *Tracker) Consumed() uint64 { return t.consumed.Load() }

// Accepted returns the number of validated records.
func (t *Tracker) Accepted() uint64 { return t.accepted.Load() }

// DecodeErrors returns the number of malformed payloads.
func (t *Tracker) DecodeErrors() uint64 { return t.decodeErrors.Load() }

// ValidationErrors returns the number of payloads with bad fields.
func (t *Tracker) ValidationErrors() uint64 { return t.validationErrors.Load() }

// ProcessingErrors returns the number of recovered loop failures.
func (t *Tracker) ProcessingErrors() uint64 { return t.processingErrors.Load() }

// Frames returns the number of chart snapshots published.
func (t *Tracker) Frames() uint64 { return t.frames.Load() }

// Rejected returns decode plus validation rejections.
func (t *Tracker) Rejected() uint64 {
	return t.decodeErrors.Load() + t.validationErrors.Load()
}

// LastAccepted returns the most recent validated observation.
func (t *Tracker) LastAccepted() (year int, population float64, country string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastYear, t.lastPop, t.lastCountry, t.hasLast
}

// GetUptime returns how long the tracker has been running
func (t *Tracker) GetUptime() time.Duration {
	start := t.start.Load()
	return time.Since(time.Unix(0, start))
}

// SnapshotLines returns human-readable stats ready for console display.
func (t *Tracker) SnapshotLines() []string {
	lines := make([]string, 0, 4)
	lines = append(lines, fmt.Sprintf("Records: accepted=%s rejected=%s (decode=%s validation=%s)",
		humanize.Comma(int64(t.accepted.Load())),
		humanize.Comma(int64(t.Rejected())),
		humanize.Comma(int64(t.decodeErrors.Load())),
		humanize.Comma(int64(t.validationErrors.Load()))))
	lines = append(lines, fmt.Sprintf("Pipeline: consumed=%s frames=%s processing_errors=%s",
		humanize.Comma(int64(t.consumed.Load())),
		humanize.Comma(int64(t.frames.Load())),
		humanize.Comma(int64(t.processingErrors.Load()))))
	if records, years := t.SeriesSize(); records > 0 {
		lines = append(lines, fmt.Sprintf("Series: %s observations across %s years",
			humanize.Comma(int64(records)), humanize.Comma(int64(years))))
	}
	if year, pop, country, ok := t.LastAccepted(); ok {
		label := country
		if label == "" {
			label = "?"
		}
		lines = append(lines, fmt.Sprintf("Last: %d %s (%s)", year, humanize.Commaf(pop), label))
	}
	return lines
}
