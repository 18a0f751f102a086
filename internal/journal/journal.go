// Package journal keeps a local audit trail of monitoring activity: session
// lifecycle changes, dispatched remote commands and their outcomes. The
// journal is best-effort; a write failure is logged and swallowed so the
// monitoring loop is never blocked on local disk.
package journal

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event types recorded by the agent.
const (
	EventSessionStart   = "session_start"
	EventSessionStop    = "session_stop"
	EventStreamStart    = "stream_start"
	EventStreamStop     = "stream_stop"
	EventStreamIdleStop = "stream_idle_stop"
	EventCommand        = "command"
	EventScreenshot     = "screenshot"
	EventExclusion      = "exclusion"
)

// Entry is one recorded audit event.
type Entry struct {
	ID        int64
	Timestamp time.Time
	EventType string
	Detail    string
}

// Journal is a sqlite-backed audit log.
type Journal struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool
	maxAge time.Duration
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		detail TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	return &Journal{db: db, maxAge: 30 * 24 * time.Hour}, nil
}

// Record appends one event. Failures are logged, never returned: the journal
// must not interfere with monitoring.
func (j *Journal) Record(eventType, detail string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return
	}
	_, err := j.db.Exec(
		"INSERT INTO events (timestamp, event_type, detail) VALUES (?, ?, ?)",
		time.Now().Unix(), eventType, detail)
	if err != nil {
		log.Printf("Journal: failed to record %s: %v", eventType, err)
	}
}

// Recordf is Record with a formatted detail string.
func (j *Journal) Recordf(eventType, format string, args ...interface{}) {
	j.Record(eventType, fmt.Sprintf(format, args...))
}

// RecentEvents returns up to limit events, newest first.
func (j *Journal) RecentEvents(limit int) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	rows, err := j.db.Query(
		"SELECT id, timestamp, event_type, detail FROM events ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		if err := rows.Scan(&e.ID, &ts, &e.EventType, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes events older than the retention window and returns how many
// were removed.
func (j *Journal) Prune() (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return 0, fmt.Errorf("journal is closed")
	}

	cutoff := time.Now().Add(-j.maxAge).Unix()
	res, err := j.db.Exec("DELETE FROM events WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune journal: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
