// Package playground records served mock requests.
//
// This file provides the request journal: an in-memory ring buffer by
// default, or a SQLite table when monitor.journal_path is configured so the
// history survives restarts.
package playground

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Request sources recorded in the journal
const (
	SourceOverride  = "override"
	SourceSchema    = "schema"
	SourceExample   = "example"
	SourceEmpty     = "empty"
	SourceSimulated = "simulated"
	SourceUnmatched = "unmatched"
)

// RequestEntry is one served mock request.
type RequestEntry struct {
	ID         string    `json:"id"`
	Time       time.Time `json:"time"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	Source     string    `json:"source"`
}

// Journal stores recent request entries.
type Journal interface {
	Record(ctx context.Context, entry RequestEntry) error
	// List returns up to limit entries, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]RequestEntry, error)
	Close() error
}

// NewJournal opens the journal described by config.
func NewJournal(ctx context.Context, config *MonitorConfig) (Journal, error) {
	if config != nil && config.JournalPath != "" {
		return OpenSQLiteJournal(ctx, config.JournalPath, config.HistorySize)
	}
	size := defaultHistorySize
	if config != nil && config.HistorySize > 0 {
		size = config.HistorySize
	}
	return NewMemoryJournal(size), nil
}

// MemoryJournal is a fixed-size ring buffer of entries.
type MemoryJournal struct {
	mu      sync.Mutex
	entries []RequestEntry
	next    int
	full    bool
}

// NewMemoryJournal creates a ring buffer holding size entries.
func NewMemoryJournal(size int) *MemoryJournal {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &MemoryJournal{entries: make([]RequestEntry, size)}
}

// Record adds an entry, evicting the oldest when full.
func (j *MemoryJournal) Record(_ context.Context, entry RequestEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[j.next] = entry
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// List returns up to limit entries, newest first.
func (j *MemoryJournal) List(_ context.Context, limit int) ([]RequestEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	count := j.next
	if j.full {
		count = len(j.entries)
	}
	if limit <= 0 || limit > count {
		limit = count
	}
	result := make([]RequestEntry, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + len(j.entries)) % len(j.entries)
		result = append(result, j.entries[idx])
	}
	return result, nil
}

// Close is a no-op.
func (j *MemoryJournal) Close() error {
	return nil
}

const journalSchema = `CREATE TABLE IF NOT EXISTS requests (
	seq         INTEGER PRIMARY KEY AUTOINCREMENT,
	id          TEXT NOT NULL,
	time        TEXT NOT NULL,
	method      TEXT NOT NULL,
	path        TEXT NOT NULL,
	status      INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	source      TEXT NOT NULL
)`

// SQLiteJournal keeps entries in a SQLite database, trimmed to maxRows.
type SQLiteJournal struct {
	db      *sql.DB
	maxRows int
}

// OpenSQLiteJournal opens (creating if needed) the journal database at path.
// maxRows <= 0 keeps every entry.
func OpenSQLiteJournal(ctx context.Context, path string, maxRows int) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	// SQLite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, journalSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create journal table: %w", err)
	}
	return &SQLiteJournal{db: db, maxRows: maxRows}, nil
}

// Record inserts an entry and trims rows beyond maxRows.
func (j *SQLiteJournal) Record(ctx context.Context, entry RequestEntry) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO requests (id, time, method, path, status, duration_ms, source) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Time.UTC().Format(time.RFC3339Nano), entry.Method, entry.Path,
		entry.Status, entry.DurationMs, entry.Source)
	if err != nil {
		return fmt.Errorf("failed to record request: %w", err)
	}
	if j.maxRows > 0 {
		_, err = j.db.ExecContext(ctx,
			`DELETE FROM requests WHERE seq <= (SELECT MAX(seq) FROM requests) - ?`, j.maxRows)
		if err != nil {
			return fmt.Errorf("failed to trim journal: %w", err)
		}
	}
	return nil
}

// List returns up to limit entries, newest first.
func (j *SQLiteJournal) List(ctx context.Context, limit int) ([]RequestEntry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, time, method, path, status, duration_ms, source FROM requests ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	entries := []RequestEntry{}
	for rows.Next() {
		var entry RequestEntry
		var ts string
		if err := rows.Scan(&entry.ID, &ts, &entry.Method, &entry.Path,
			&entry.Status, &entry.DurationMs, &entry.Source); err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		entry.Time, err = time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("invalid request time %q: %w", ts, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	return entries, nil
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
