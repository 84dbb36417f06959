package ui

import (
	"sync"
	"time"

	"github.com/rivo/tview"
)

// frameScheduler coalesces surface updates onto a capped draw rate.
// Schedule overwrites any pending callback with the same id, so a burst
// of records costs one redraw per frame instead of one per message.
// Callbacks flush in first-scheduled order.
type frameScheduler struct {
	app     *tview.Application
	mu      sync.Mutex
	pending map[string]func()
	order   []string

	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	frameTime time.Duration
	drain     time.Duration
	observe   func(time.Duration)
}

func newFrameScheduler(app *tview.Application, targetFPS int, drain time.Duration, observe func(time.Duration)) *frameScheduler {
	if targetFPS <= 0 {
		targetFPS = 30
	}
	if drain <= 0 {
		drain = 100 * time.Millisecond
	}
	return &frameScheduler{
		app:       app,
		pending:   make(map[string]func()),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		frameTime: time.Second / time.Duration(targetFPS),
		drain:     drain,
		observe:   observe,
	}
}

func (f *frameScheduler) Start() {
	go f.run()
}

// Stop drains pending callbacks and waits up to the drain budget for
// the frame loop to exit. Safe to call more than once.
func (f *frameScheduler) Stop() {
	if f == nil {
		return
	}
	f.stopOnce.Do(func() {
		close(f.quit)
	})
	select {
	case <-f.done:
	case <-time.After(f.drain):
	}
}

// Schedule queues fn to run on the next frame, replacing any earlier
// callback scheduled under the same id.
func (f *frameScheduler) Schedule(id string, fn func()) {
	if f == nil {
		return
	}
	f.mu.Lock()
	if _, exists := f.pending[id]; !exists {
		f.order = append(f.order, id)
	}
	f.pending[id] = fn
	f.mu.Unlock()
}

func (f *frameScheduler) run() {
	defer close(f.done)

	ticker := time.NewTicker(f.frameTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			f.flush()
		case <-f.quit:
			f.flushBounded(f.drain)
			return
		}
	}
}

func (f *frameScheduler) flush() {
	f.flushBounded(0)
}

func (f *frameScheduler) flushBounded(budget time.Duration) {
	deadline := time.Time{}
	if budget > 0 {
		deadline = time.Now().Add(budget)
	}
	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return
		}

		f.mu.Lock()
		if len(f.pending) == 0 {
			f.mu.Unlock()
			return
		}
		batch := make([]func(), 0, len(f.order))
		for _, id := range f.order {
			if fn, ok := f.pending[id]; ok {
				batch = append(batch, fn)
				delete(f.pending, id)
			}
		}
		f.order = f.order[:0]
		f.mu.Unlock()

		// Without an application (tests, headless drains) the batch runs
		// inline instead of on the tview event loop.
		if f.app == nil {
			for _, fn := range batch {
				fn()
			}
			continue
		}

		queuedAt := time.Now()
		f.app.QueueUpdateDraw(func() {
			for _, fn := range batch {
				fn()
			}
			if f.observe != nil {
				f.observe(time.Since(queuedAt))
			}
		})
	}
}
