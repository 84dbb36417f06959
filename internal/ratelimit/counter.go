// Package ratelimit throttles repetitive log emission from hot paths.
package ratelimit

import (
	"sync/atomic"
	"time"
)

// Counter counts events and gates log output to at most one line per
// interval, so a flood of identical failures reports its total without
// writing a line per event. Safe for concurrent use.
type Counter struct {
	interval time.Duration
	lastLog  atomic.Int64
	total    atomic.Uint64
}

// NewCounter constructs a Counter that allows a log at most once per
// interval. A zero or negative interval disables throttling.
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval}
}

// Inc counts one event and reports the running total plus whether the
// caller may log now.
func (c *Counter) Inc() (uint64, bool) {
	if c == nil {
		return 0, false
	}
	total := c.total.Add(1)
	if c.interval <= 0 {
		return total, true
	}
	now := time.Now().UTC().UnixNano()
	last := c.lastLog.Load()
	if now-last < c.interval.Nanoseconds() {
		return total, false
	}
	if c.lastLog.CompareAndSwap(last, now) {
		return total, true
	}
	return total, false
}

// Total returns the number of events counted so far.
func (c *Counter) Total() uint64 {
	if c == nil {
		return 0
	}
	return c.total.Load()
}
