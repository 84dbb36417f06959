// Package sqliteutil checks SQLite database files before a writer opens
// them, so a corrupt or stuck file left over from a previous run cannot
// stall startup.
package sqliteutil

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
)

// Result reports what Preflight found and did.
type Result struct {
	Healthy        bool
	Quarantined    bool   // The file was renamed out of the way.
	QuarantinePath string // New path of the main file when quarantined.
	Elapsed        time.Duration
}

// Preflight runs a bounded WAL checkpoint and quick_check against an
// existing database before the writer opens it. An unhealthy file is
// renamed together with its WAL sidecars to a timestamped quarantine
// path so the writer starts on a fresh file. A missing file is healthy
// by definition. Timeouts are fatal for the file: recovery would need
// the same stuck I/O path, so the error is returned instead.
func Preflight(path string, timeout time.Duration, logf func(string, ...any)) (Result, error) {
	if logf == nil {
		logf = log.Printf
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	res := Result{}
	if strings.TrimSpace(path) == "" {
		return res, errors.New("preflight: empty path")
	}
	start := time.Now()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		res.Healthy = true
		res.Elapsed = time.Since(start)
		return res, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return res, fmt.Errorf("preflight: open %s: %w", path, err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, fmt.Sprintf("pragma busy_timeout=%d", timeout.Milliseconds())); err != nil {
		return res, fmt.Errorf("preflight: set busy_timeout on %s: %w", path, err)
	}

	checkpointErr := checkpoint(ctx, db)
	checkErr := quickCheck(ctx, db)
	res.Elapsed = time.Since(start)

	if checkpointErr == nil && checkErr == nil {
		res.Healthy = true
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("preflight: %s timed out after %s", path, timeout)
	}

	_ = db.Close()
	quarantinePath, quarantineErr := quarantine(path)
	if quarantineErr != nil {
		return res, fmt.Errorf("preflight: quarantine %s: %w (checkpoint=%v, quick_check=%v)", path, quarantineErr, checkpointErr, checkErr)
	}
	res.Quarantined = true
	res.QuarantinePath = quarantinePath
	reason := checkErr
	if checkpointErr != nil {
		reason = checkpointErr
	}
	logf("preflight: %s unhealthy (%v), quarantined to %s after %s", path, reason, quarantinePath, res.Elapsed)
	return res, nil
}

func checkpoint(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, "pragma wal_checkpoint(TRUNCATE)")
	return err
}

func quickCheck(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, "pragma quick_check")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return err
		}
		if strings.TrimSpace(status) != "ok" {
			return fmt.Errorf("quick_check reported %q", status)
		}
	}
	return rows.Err()
}

// quarantine renames the database and any sidecar files that exist.
// Sidecars can legitimately vanish between checks, so a missing one is
// skipped rather than treated as an error.
func quarantine(path string) (string, error) {
	suffix := ".bad-" + time.Now().UTC().Format("20060102T150405Z")
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if _, err := os.Stat(p); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := os.Rename(p, p+suffix); err != nil {
			return "", err
		}
	}
	return path + suffix, nil
}
