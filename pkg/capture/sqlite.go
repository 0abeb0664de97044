// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/Thermoquad/pidscope/pkg/response"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    started_ns  INTEGER NOT NULL,
    source      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS samples (
    session_id  INTEGER NOT NULL REFERENCES sessions(id),
    elapsed_s   REAL NOT NULL,
    wall_time   REAL NOT NULL,
    target      REAL NOT NULL,
    actual      REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_samples_session ON samples(session_id, elapsed_s);
`

// Session describes one recorded connection
type Session struct {
	ID      int64
	Started time.Time
	Source  string
	Samples int64
}

// Store is a SQLite sample log. Each monitor run records into its own
// session.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the database at path
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// BeginSession starts a new session and returns a recorder bound to it
func (s *Store) BeginSession(source string, started time.Time) (*SessionRecorder, error) {
	res, err := s.db.Exec(`INSERT INTO sessions (started_ns, source) VALUES (?, ?)`,
		started.UnixNano(), source)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	stmt, err := s.db.Prepare(`INSERT INTO samples (session_id, elapsed_s, wall_time, target, actual) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	return &SessionRecorder{id: id, stmt: stmt}, nil
}

// Sessions lists recorded sessions, newest first
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.started_ns, s.source, COUNT(m.session_id)
		FROM sessions s LEFT JOIN samples m ON m.session_id = s.id
		GROUP BY s.id ORDER BY s.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var startedNs int64
		if err := rows.Scan(&sess.ID, &startedNs, &sess.Source, &sess.Samples); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Started = time.Unix(0, startedNs)
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Samples loads a session's samples in time order
func (s *Store) Samples(sessionID int64) ([]response.Sample, error) {
	rows, err := s.db.Query(`
		SELECT elapsed_s, wall_time, target, actual FROM samples
		WHERE session_id = ? ORDER BY rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var out []response.Sample
	for rows.Next() {
		var smp response.Sample
		if err := rows.Scan(&smp.Elapsed, &smp.WallTime, &smp.Target, &smp.Actual); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, smp)
	}
	return out, rows.Err()
}

// SessionRecorder writes samples into one session
type SessionRecorder struct {
	mu      sync.Mutex
	id      int64
	stmt    *sql.Stmt
	skipped int
}

// ID returns the session id
func (r *SessionRecorder) ID() int64 { return r.id }

// Skipped returns how many non-finite samples were left out
func (r *SessionRecorder) Skipped() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.skipped
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Record inserts one sample. Samples with a non-finite value are skipped,
// since SQLite binds NaN as NULL.
func (r *SessionRecorder) Record(smp response.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stmt == nil {
		return fmt.Errorf("session %d closed", r.id)
	}
	if !finite(smp.Elapsed) || !finite(smp.Target) || !finite(smp.Actual) {
		r.skipped++
		return nil
	}
	if _, err := r.stmt.Exec(r.id, smp.Elapsed, smp.WallTime, smp.Target, smp.Actual); err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

// Close releases the prepared statement
func (r *SessionRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stmt == nil {
		return nil
	}
	err := r.stmt.Close()
	r.stmt = nil
	return err
}

// MultiRecorder fans a sample out to several recorders, returning the
// first error after trying all of them.
type MultiRecorder []response.Recorder

// Record forwards s to every recorder
func (m MultiRecorder) Record(s response.Sample) error {
	var first error
	for _, r := range m {
		if err := r.Record(s); err != nil && first == nil {
			first = err
		}
	}
	return first
}
