package stats

import (
	"strings"
	"testing"
)

func TestTrackerCounters(t *testing.T) {
	tr := NewTracker()
	tr.IncrementConsumed()
	tr.IncrementConsumed()
	tr.IncrementConsumed()
	tr.RecordAccepted(2020, 331526933, "United States")
	tr.IncrementDecodeErrors()
	tr.IncrementValidationErrors()
	tr.IncrementFrames()

	if got := tr.Consumed(); got != 3 {
		t.Fatalf("expected 3 consumed, got %d", got)
	}
	if got := tr.Accepted(); got != 1 {
		t.Fatalf("expected 1 accepted, got %d", got)
	}
	if got := tr.Rejected(); got != 2 {
		t.Fatalf("expected 2 rejected, got %d", got)
	}
	if got := tr.ProcessingErrors(); got != 0 {
		t.Fatalf("expected 0 processing errors, got %d", got)
	}
}

func TestTrackerLastAccepted(t *testing.T) {
	tr := NewTracker()
	if _, _, _, ok := tr.LastAccepted(); ok {
		t.Fatalf("expected no last observation on a fresh tracker")
	}
	tr.RecordAccepted(2019, 328329953, "United States")
	tr.RecordAccepted(2020, 331526933, "United States")
	year, pop, country, ok := tr.LastAccepted()
	if !ok || year != 2020 || pop != 331526933 || country != "United States" {
		t.Fatalf("unexpected last observation: %d %v %q ok=%v", year, pop, country, ok)
	}
}

func TestSnapshotLines(t *testing.T) {
	tr := NewTracker()
	tr.IncrementConsumed()
	tr.RecordAccepted(2020, 331526933, "United States")
	tr.IncrementFrames()

	lines := tr.SnapshotLines()
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "accepted=1") {
		t.Fatalf("expected accepted count in %q", lines[0])
	}
	if !strings.Contains(lines[2], "331,526,933") {
		t.Fatalf("expected humanized population in %q", lines[2])
	}
	if !strings.Contains(lines[2], "2020") {
		t.Fatalf("expected year in %q", lines[2])
	}
}

func TestSnapshotLinesWithoutObservations(t *testing.T) {
	lines := NewTracker().SnapshotLines()
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines before any record, got %d: %v", len(lines), lines)
	}
}

func TestSnapshotLinesIncludeSeriesShape(t *testing.T) {
	tr := NewTracker()
	tr.RecordAccepted(2020, 331526933, "United States")
	tr.SetSeriesSize(3, 2)

	lines := tr.SnapshotLines()
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines with a series shape, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[2], "3 observations") || !strings.Contains(lines[2], "2 years") {
		t.Fatalf("expected series shape in %q", lines[2])
	}
}
