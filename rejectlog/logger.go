// Package rejectlog persists rejected payloads to a daily-rotated
// SQLite database for offline inspection. It is observability for
// operators chasing bad producers; the pipeline never reads it back.
package rejectlog

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"poptrend/internal/ratelimit"
	"poptrend/sqliteutil"
)

// Entry captures one rejected payload with enough context to replay
// the failure. Payload is truncated to keep rows small.
type Entry struct {
	At        time.Time
	Kind      string // "decode", "validation", or "processing"
	Reason    string
	Payload   []byte
	Partition int
	Offset    int64
}

// Logger accepts reject entries for asynchronous persistence.
// Implementations MUST drop or buffer without blocking the hot path.
type Logger interface {
	Enqueue(entry Entry)
	Close() error
	Dropped() int64
}

// sqliteLogger writes rejects to a daily-rotated SQLite database
// without blocking the caller. Entries are buffered on a bounded
// channel; when full, entries are dropped and the drop count is
// exposed via Dropped().
type sqliteLogger struct {
	dir   string
	queue chan Entry

	mu          sync.Mutex
	db          *sql.DB
	currentPath string
	insertStmt  *sql.Stmt

	wg        sync.WaitGroup
	closeOnce sync.Once

	drops *ratelimit.Counter
	errs  *ratelimit.Counter
}

const (
	defaultQueueSize = 512
	maxPayloadBytes  = 4096
	preflightTimeout = 2 * time.Second
)

// NewLogger builds a non-blocking SQLite-backed reject logger writing
// rejects_YYYY-MM-DD.db files under dir. Files older than
// retentionDays are swept at startup, and today's file gets a preflight
// check so a corrupt leftover is quarantined instead of stalling the
// writer. The caller must invoke Close() on shutdown to flush buffered
// entries.
func NewLogger(dir string, queueSize, retentionDays int) (Logger, error) {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	l := &sqliteLogger{
		dir:   strings.TrimSpace(dir),
		queue: make(chan Entry, queueSize),
		drops: ratelimit.NewCounter(5 * time.Second),
		errs:  ratelimit.NewCounter(10 * time.Second),
	}
	if err := CleanupRetention(l.dir, time.Now().UTC(), retentionDays); err != nil && !os.IsNotExist(err) {
		log.Printf("Reject log: retention sweep failed for %s: %v", l.dir, err)
	}
	if _, err := sqliteutil.Preflight(l.pathFor(time.Now().UTC()), preflightTimeout, log.Printf); err != nil {
		log.Printf("Reject log: preflight: %v", err)
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Enqueue attempts to buffer the entry without blocking. When the
// queue is full, the entry is dropped; drops are counted and reported
// at most once per throttle interval.
func (l *sqliteLogger) Enqueue(entry Entry) {
	select {
	case l.queue <- entry:
	default:
		if total, ok := l.drops.Inc(); ok {
			log.Printf("Reject log: backpressure, dropped %d entries", total)
		}
	}
}

// Dropped returns how many entries were discarded due to backpressure.
func (l *sqliteLogger) Dropped() int64 {
	return int64(l.drops.Total())
}

// Close flushes the queue and releases database handles.
func (l *sqliteLogger) Close() error {
	var closeErr error
	l.closeOnce.Do(func() {
		close(l.queue)
		l.wg.Wait()
		l.mu.Lock()
		defer l.mu.Unlock()
		closeErr = l.closeDBLocked()
	})
	return closeErr
}

func (l *sqliteLogger) run() {
	defer l.wg.Done()
	for entry := range l.queue {
		if err := l.write(entry); err != nil {
			l.reportError(err)
		}
	}
}

func (l *sqliteLogger) write(entry Entry) error {
	ts := entry.At
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if err := l.ensureDB(ts); err != nil {
		return err
	}
	if l.insertStmt == nil {
		return fmt.Errorf("reject log: prepared statement not initialized")
	}

	payload := entry.Payload
	if len(payload) > maxPayloadBytes {
		payload = payload[:maxPayloadBytes]
	}

	path := l.pathFor(ts)
	var insertErr error
	for attempt := 0; attempt < 2; attempt++ {
		_, insertErr = l.insertStmt.Exec(
			ts.UTC().Unix(),
			entry.Kind,
			entry.Reason,
			entry.Partition,
			entry.Offset,
			string(payload),
		)
		if insertErr == nil {
			return nil
		}
		if attempt == 0 && isSQLiteCorrupted(insertErr) {
			l.mu.Lock()
			l.closeDBLocked()
			l.mu.Unlock()
			_ = os.Remove(path)
			if err := l.ensureDB(ts); err != nil {
				return err
			}
			continue
		}
		break
	}
	return fmt.Errorf("reject log: insert: %w", insertErr)
}

func (l *sqliteLogger) ensureDB(ts time.Time) error {
	path := l.pathFor(ts)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.db != nil && l.currentPath == path {
		return nil
	}

	if err := l.closeDBLocked(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("reject log: mkdir %s: %w", filepath.Dir(path), err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return fmt.Errorf("reject log: open %s: %w", path, err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)

		if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = NORMAL;`); err != nil {
			db.Close()
			if attempt == 0 && isSQLiteCorrupted(err) {
				_ = os.Remove(path)
				continue
			}
			return fmt.Errorf("reject log: pragmas: %w", err)
		}
		if err := initSchema(db); err != nil {
			db.Close()
			if attempt == 0 && isSQLiteCorrupted(err) {
				_ = os.Remove(path)
				continue
			}
			return err
		}

		stmt, err := db.Prepare(`INSERT INTO rejects(ts, kind, reason, source_partition, source_offset, payload) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			db.Close()
			return fmt.Errorf("reject log: prepare insert: %w", err)
		}

		l.db = db
		l.insertStmt = stmt
		l.currentPath = path
		return nil
	}
	return fmt.Errorf("reject log: unable to open database")
}

func (l *sqliteLogger) closeDBLocked() error {
	var firstErr error
	if l.insertStmt != nil {
		if err := l.insertStmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.insertStmt = nil
	}
	if l.db != nil {
		if err := l.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		l.db = nil
	}
	l.currentPath = ""
	return firstErr
}

func isSQLiteCorrupted(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is encrypted or is not a database")
}

func (l *sqliteLogger) pathFor(ts time.Time) string {
	return DBPath(l.dir, ts)
}

// DBPath resolves the SQLite file path for a given directory and day.
// A blank directory falls back to "rejects".
func DBPath(dir string, ts time.Time) string {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "rejects"
	}
	return filepath.Join(filepath.Clean(dir), fmt.Sprintf("rejects_%s.db", ts.Format("2006-01-02")))
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS rejects (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    ts INTEGER NOT NULL,
    kind TEXT,
    reason TEXT,
    source_partition INTEGER,
    source_offset INTEGER,
    payload TEXT
);
CREATE INDEX IF NOT EXISTS idx_rejects_ts ON rejects(ts);
CREATE INDEX IF NOT EXISTS idx_rejects_kind ON rejects(kind);
`); err != nil {
		return fmt.Errorf("reject log: init schema: %w", err)
	}
	return nil
}

func (l *sqliteLogger) reportError(err error) {
	if err == nil {
		return
	}
	if total, ok := l.errs.Inc(); ok {
		log.Printf("Reject log error (%d): %v", total, err)
	}
}

// CleanupRetention removes reject databases older than retentionDays,
// including their WAL sidecar files. A retentionDays of zero or less
// disables the sweep.
func CleanupRetention(dir string, now time.Time, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "rejects"
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	cutoff := dateOnly(now.UTC()).AddDate(0, 0, -(retentionDays - 1))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		date, ok := parseDBFileDate(entry.Name())
		if !ok {
			continue
		}
		if date.Before(cutoff) {
			path := filepath.Join(dir, entry.Name())
			_ = os.Remove(path)
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
	}
	return nil
}

func parseDBFileDate(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, "rejects_") || !strings.HasSuffix(name, ".db") {
		return time.Time{}, false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(name, "rejects_"), ".db")
	parsed, err := time.ParseInLocation("2006-01-02", base, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

func dateOnly(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}
