package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/dustin/go-humanize"

	"poptrend/aggregate"
	"poptrend/consumer"
	"poptrend/record"
	"poptrend/rejectlog"
	"poptrend/stats"
	"poptrend/ui"
)

// messageLoop runs the single-threaded pipeline: take one payload from
// the source, decode and validate it, fold it into the aggregate, and
// publish a fresh chart snapshot. Every failure is counted, logged and
// skipped; nothing a payload contains can stop the loop.
type messageLoop struct {
	title    string
	messages <-chan consumer.Message
	agg      *aggregate.Aggregator
	tracker  *stats.Tracker
	rejects  rejectlog.Logger
	surface  ui.Surface
}

func newMessageLoop(title string, messages <-chan consumer.Message, agg *aggregate.Aggregator, tracker *stats.Tracker, rejects rejectlog.Logger, surface ui.Surface) *messageLoop {
	return &messageLoop{
		title:    title,
		messages: messages,
		agg:      agg,
		tracker:  tracker,
		rejects:  rejects,
		surface:  surface,
	}
}

// Purpose: Consume the delivery channel until it closes or the context ends.
// Key aspects: One message at a time; channel close means the source was released.
// Upstream: main loop goroutine.
// Downstream: handle per message.
func (l *messageLoop) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-l.messages:
			if !ok {
				log.Printf("Loop: source closed, no more records")
				return
			}
			l.handle(msg)
		}
	}
}

// Purpose: Process one raw payload end to end.
// Key aspects: Decode/validation failures reject the payload; a panic anywhere
// in the handler is recovered and counted as a processing error.
// Upstream: run.
// Downstream: record.Decode, aggregate.Update, publish.
func (l *messageLoop) handle(msg consumer.Message) {
	defer func() {
		if r := recover(); r != nil {
			l.tracker.IncrementProcessingErrors()
			log.Printf("Loop: recovered from processing panic: %v\n%s", r, debug.Stack())
		}
	}()

	l.tracker.IncrementConsumed()

	rec, err := record.Decode(msg.Payload)
	if err != nil {
		l.reject(msg, err)
		return
	}

	snap := l.agg.Update(rec)
	l.tracker.RecordAccepted(rec.Year, rec.Population, rec.Country)
	l.tracker.SetSeriesSize(len(snap.History), len(snap.Averages))

	line := fmt.Sprintf("%d  %s", rec.Year, humanize.Commaf(rec.Population))
	if rec.Country != "" {
		line += "  " + rec.Country
	}
	if l.surface != nil {
		l.surface.AppendAccepted(line)
	} else {
		log.Printf("Record: %s", line)
	}

	l.publish(snap)
}

// reject counts, surfaces and audits one unusable payload.
func (l *messageLoop) reject(msg consumer.Message, err error) {
	var kind string
	var decodeErr *record.DecodeError
	var validationErr *record.ValidationError
	switch {
	case errors.As(err, &decodeErr):
		kind = "decode"
		l.tracker.IncrementDecodeErrors()
	case errors.As(err, &validationErr):
		kind = "validation"
		l.tracker.IncrementValidationErrors()
	default:
		kind = "processing"
		l.tracker.IncrementProcessingErrors()
	}

	line := fmt.Sprintf("%s: %v (partition=%d offset=%d)", kind, err, msg.Partition, msg.Offset)
	if l.surface != nil {
		l.surface.AppendRejected(line)
	} else {
		log.Printf("Reject: %s", line)
	}

	if l.rejects != nil {
		at := msg.Time
		if at.IsZero() {
			at = time.Now()
		}
		l.rejects.Enqueue(rejectlog.Entry{
			At:        at,
			Kind:      kind,
			Reason:    err.Error(),
			Payload:   msg.Payload,
			Partition: msg.Partition,
			Offset:    msg.Offset,
		})
	}
}

// publish hands the renderer a complete replacement frame. The chart
// is always rebuilt from the snapshot, never patched.
func (l *messageLoop) publish(snap aggregate.Snapshot) {
	if l.surface == nil {
		return
	}
	l.surface.SetChart(chartSnapshot(l.title, snap))
	l.tracker.IncrementFrames()
}

// chartSnapshot converts aggregation state into plotted points. The
// average for a year is looked up per point, so every occurrence of a
// repeated year plots the same, current running mean.
func chartSnapshot(title string, snap aggregate.Snapshot) ui.Snapshot {
	points := make([]ui.SeriesPoint, 0, len(snap.History))
	for _, p := range snap.History {
		points = append(points, ui.SeriesPoint{
			Year:       p.Year,
			Population: p.Population,
			Average:    snap.Averages[p.Year],
		})
	}
	return ui.Snapshot{
		GeneratedAt: time.Now(),
		Title:       title,
		Points:      points,
	}
}
