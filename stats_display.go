package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"poptrend/consumer"
	"poptrend/rejectlog"
	"poptrend/stats"
	"poptrend/ui"
)

// Purpose: Periodically emit pipeline stats to the UI or the log.
// Key aspects: Computes per-interval throughput from counter diffs; runs until
// the context ends.
// Upstream: main startup.
// Downstream: tracker counters, consumer reader stats, Surface.SetStats.
func displayStats(ctx context.Context, interval time.Duration, tracker *stats.Tracker, client *consumer.Client, rejects rejectlog.Logger, surface ui.Surface, fanout *logFanout) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevConsumed uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		consumed := tracker.Consumed()
		rate := float64(consumed-prevConsumed) / interval.Seconds()
		prevConsumed = consumed

		lines := make([]string, 0, 6)
		lines = append(lines, fmt.Sprintf("Uptime: %s  rate=%.1f msg/s",
			tracker.GetUptime().Round(time.Second), rate))
		lines = append(lines, tracker.SnapshotLines()...)

		// Reader counters are deltas since the previous call.
		rs := client.Stats()
		lines = append(lines, fmt.Sprintf("Kafka: msgs=%s bytes=%s lag=%s errors=%d",
			humanize.Comma(rs.Messages), humanize.Comma(rs.Bytes), humanize.Comma(rs.Lag), rs.Errors))

		if rejects != nil {
			if dropped := rejects.Dropped(); dropped > 0 {
				lines = append(lines, fmt.Sprintf("Reject log: dropped=%s under load", humanize.Comma(dropped)))
			}
		}

		if surface != nil {
			surface.SetStats(lines)
			fanout.WriteFileOnlyLine("Stats: "+strings.Join(lines, " | "), time.Now().UTC())
		} else {
			for _, line := range lines {
				log.Print(line)
			}
			log.Print("") // spacer between stats and status/messages
		}
	}
}
