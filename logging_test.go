package main

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLogFileNameForDate(t *testing.T) {
	when := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if got := logFileNameForDate(when); got != "22-Jan-2026.log" {
		t.Fatalf("expected log filename to be 22-Jan-2026.log, got %q", got)
	}
}

func TestParseLogFileDate(t *testing.T) {
	parsed, ok := parseLogFileDate("22-Jan-2026.log")
	if !ok {
		t.Fatalf("expected parse to succeed")
	}
	if parsed.Year() != 2026 || parsed.Month() != time.January || parsed.Day() != 22 {
		t.Fatalf("unexpected parsed date: %s", parsed.Format(time.RFC3339))
	}
	if _, ok := parseLogFileDate("notes.txt"); ok {
		t.Fatalf("expected non-log file to be rejected")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		"20-Jan-2026.log",
		"21-Jan-2026.log",
		"22-Jan-2026.log",
		"notes.txt",
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	now := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	if err := cleanupOldLogs(dir, now, 2); err != nil {
		t.Fatalf("cleanup failed: %v", err)
	}
	expectMissing := []string{"20-Jan-2026.log"}
	for _, name := range expectMissing {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			t.Fatalf("expected %s to be removed", name)
		} else if !os.IsNotExist(err) {
			t.Fatalf("stat %s: %v", name, err)
		}
	}
	expectPresent := []string{"21-Jan-2026.log", "22-Jan-2026.log", "notes.txt"}
	for _, name := range expectPresent {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("expected %s to remain: %v", name, err)
		}
	}
}

func TestDailyFileSinkRotatesOnDayChange(t *testing.T) {
	dir := t.TempDir()
	sink, err := newDailyFileSink(dir, 7)
	if err != nil {
		t.Fatalf("newDailyFileSink: %v", err)
	}
	defer sink.Close()

	day1 := time.Date(2026, time.January, 22, 12, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	sink.WriteLine("first", day1)
	sink.WriteLine("second", day2)

	first, err := os.ReadFile(filepath.Join(dir, "22-Jan-2026.log"))
	if err != nil {
		t.Fatalf("read day1 log: %v", err)
	}
	if !strings.Contains(string(first), "first") {
		t.Fatalf("expected day1 line in day1 file, got %q", first)
	}
	second, err := os.ReadFile(filepath.Join(dir, "23-Jan-2026.log"))
	if err != nil {
		t.Fatalf("read day2 log: %v", err)
	}
	if !strings.Contains(string(second), "second") {
		t.Fatalf("expected day2 line in day2 file, got %q", second)
	}
	if strings.Contains(string(first), "second") {
		t.Fatalf("expected rotation to move writes to the new file")
	}
}

type captureSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *captureSink) WriteLine(line string, now time.Time) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	s.mu.Unlock()
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

func TestLogFanoutDuplicatesLines(t *testing.T) {
	console := &captureSink{}
	file := &captureSink{}
	fanout := newLogFanout(console, file)
	logger := log.New(fanout, "", 0)

	logger.Print("record accepted")

	for _, sink := range []*captureSink{console, file} {
		lines := sink.snapshot()
		if len(lines) != 1 || lines[0] != "record accepted" {
			t.Fatalf("expected duplicated line, got %v", lines)
		}
	}
}

func TestLogFanoutBuffersPartialLines(t *testing.T) {
	console := &captureSink{}
	fanout := newLogFanout(console, nil)

	fanout.Write([]byte("partial"))
	if lines := console.snapshot(); len(lines) != 0 {
		t.Fatalf("expected partial line to stay buffered, got %v", lines)
	}
	fanout.Write([]byte(" done\n"))
	lines := console.snapshot()
	if len(lines) != 1 || lines[0] != "partial done" {
		t.Fatalf("expected joined line, got %v", lines)
	}
}

func TestLogFanoutFileOnlyLine(t *testing.T) {
	console := &captureSink{}
	file := &captureSink{}
	fanout := newLogFanout(console, file)

	fanout.WriteFileOnlyLine("stats snapshot", time.Now().UTC())

	if lines := console.snapshot(); len(lines) != 0 {
		t.Fatalf("expected console to stay quiet, got %v", lines)
	}
	if lines := file.snapshot(); len(lines) != 1 || lines[0] != "stats snapshot" {
		t.Fatalf("expected file-only line, got %v", lines)
	}
}

func TestLogFanoutConsoleSinkSwap(t *testing.T) {
	console := &captureSink{}
	fanout := newLogFanout(console, nil)
	logger := log.New(fanout, "", 0)

	logger.Print("before swap")

	var swapped strings.Builder
	fanout.SetConsoleSink(&swapped, false)
	logger.Print("after swap")

	if lines := console.snapshot(); len(lines) != 1 {
		t.Fatalf("expected original sink to stop receiving, got %v", lines)
	}
	if got := swapped.String(); got != "after swap\n" {
		t.Fatalf("expected swapped sink output, got %q", got)
	}
}
