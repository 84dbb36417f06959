package rejectlog

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"poptrend/internal/ratelimit"
)

func TestLoggerWritesEntries(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir, 16, 0)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	at := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	l.Enqueue(Entry{
		At:        at,
		Kind:      "decode",
		Reason:    "payload is not a JSON object",
		Payload:   []byte("not json"),
		Partition: 1,
		Offset:    10,
	})
	l.Enqueue(Entry{
		At:      at,
		Kind:    "validation",
		Reason:  "invalid field value: missing",
		Payload: []byte(`{"date": "2020"}`),
		Offset:  11,
	})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", DBPath(dir, at))
	if err != nil {
		t.Fatalf("open reject db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rejects`).Scan(&count); err != nil {
		t.Fatalf("count rejects: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}

	var kind, reason, payload string
	var offset int64
	row := db.QueryRow(`SELECT kind, reason, payload, source_offset FROM rejects WHERE source_offset = 11`)
	if err := row.Scan(&kind, &reason, &payload, &offset); err != nil {
		t.Fatalf("scan row: %v", err)
	}
	if kind != "validation" || !strings.Contains(reason, "missing") {
		t.Fatalf("unexpected row kind=%q reason=%q", kind, reason)
	}
	if payload != `{"date": "2020"}` {
		t.Fatalf("unexpected payload %q", payload)
	}
}

func TestLoggerTruncatesLargePayloads(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLogger(dir, 4, 0)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	at := time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC)
	huge := strings.Repeat("x", maxPayloadBytes*2)
	l.Enqueue(Entry{At: at, Kind: "decode", Reason: "oversized", Payload: []byte(huge)})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", DBPath(dir, at))
	if err != nil {
		t.Fatalf("open reject db: %v", err)
	}
	defer db.Close()

	var payload string
	if err := db.QueryRow(`SELECT payload FROM rejects`).Scan(&payload); err != nil {
		t.Fatalf("scan payload: %v", err)
	}
	if len(payload) != maxPayloadBytes {
		t.Fatalf("expected payload truncated to %d bytes, got %d", maxPayloadBytes, len(payload))
	}
}

func TestEnqueueDropsWhenSaturated(t *testing.T) {
	// No writer goroutine: the queue cannot drain, so the second
	// entry must be dropped without blocking.
	l := &sqliteLogger{
		queue: make(chan Entry, 1),
		drops: ratelimit.NewCounter(0),
	}
	l.Enqueue(Entry{Kind: "decode"})
	l.Enqueue(Entry{Kind: "decode"})
	if got := l.Dropped(); got != 1 {
		t.Fatalf("expected 1 dropped entry, got %d", got)
	}
}

func TestNewLoggerQuarantinesCorruptDB(t *testing.T) {
	dir := t.TempDir()
	now := time.Now().UTC()
	path := DBPath(dir, now)
	if err := os.WriteFile(path, []byte("garbage left by a crash"), 0o644); err != nil {
		t.Fatalf("write corrupt db: %v", err)
	}

	l, err := NewLogger(dir, 4, 0)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	l.Enqueue(Entry{At: now, Kind: "decode", Reason: "after quarantine"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	quarantined, _ := filepath.Glob(path + ".bad-*")
	if len(quarantined) != 1 {
		t.Fatalf("expected corrupt db quarantined, found %v", quarantined)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open fresh db: %v", err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM rejects`).Scan(&count); err != nil {
		t.Fatalf("count rejects: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row in fresh db, got %d", count)
	}
}

func TestDBPathDaily(t *testing.T) {
	at := time.Date(2026, 8, 25, 23, 59, 0, 0, time.UTC)
	if got := DBPath("audit", at); got != filepath.Join("audit", "rejects_2026-08-25.db") {
		t.Fatalf("unexpected path %q", got)
	}
	if got := DBPath("", at); got != filepath.Join("rejects", "rejects_2026-08-25.db") {
		t.Fatalf("unexpected default path %q", got)
	}
}

func TestCleanupRetentionRemovesOldDBs(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	keepDates := []string{"2026-08-25", "2026-08-24", "2026-08-23"}
	dropDates := []string{"2026-08-22", "2026-08-01"}

	mustWrite := func(path string) {
		t.Helper()
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}

	for _, dayStr := range append(append([]string{}, keepDates...), dropDates...) {
		day, err := time.ParseInLocation("2006-01-02", dayStr, time.UTC)
		if err != nil {
			t.Fatalf("parse day %q: %v", dayStr, err)
		}
		path := DBPath(dir, day)
		mustWrite(path)
		mustWrite(path + "-wal")
		mustWrite(path + "-shm")
	}
	mustWrite(filepath.Join(dir, "unrelated.txt"))

	if err := CleanupRetention(dir, now, 3); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	for _, dayStr := range keepDates {
		day, _ := time.ParseInLocation("2006-01-02", dayStr, time.UTC)
		if _, err := os.Stat(DBPath(dir, day)); err != nil {
			t.Fatalf("expected %s to survive: %v", dayStr, err)
		}
	}
	for _, dayStr := range dropDates {
		day, _ := time.ParseInLocation("2006-01-02", dayStr, time.UTC)
		if _, err := os.Stat(DBPath(dir, day)); !os.IsNotExist(err) {
			t.Fatalf("expected %s to be removed, err=%v", dayStr, err)
		}
		if _, err := os.Stat(DBPath(dir, day) + "-wal"); !os.IsNotExist(err) {
			t.Fatalf("expected %s wal to be removed, err=%v", dayStr, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "unrelated.txt")); err != nil {
		t.Fatalf("expected unrelated file to survive: %v", err)
	}
}
