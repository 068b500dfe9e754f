// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/verte-zerg/tuiexam/internal/model"
	"github.com/verte-zerg/tuiexam/internal/snapshot"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeLayout is fixed width so that text order in SQLite matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(timeLayout, v)
}

// Store wraps SQLite access for answer snapshots and submission history.
// It satisfies snapshot.Store.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Snapshot writes are synchronous from the caller's side; one connection
	// keeps them serialized.
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS submissions (
			attempt_id TEXT PRIMARY KEY,
			exam_year INTEGER NOT NULL,
			exam_shift TEXT NOT NULL,
			started_at TEXT NOT NULL,
			submitted_at TEXT NOT NULL,
			answered INTEGER NOT NULL,
			total INTEGER NOT NULL,
			timed_out INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_submitted_at ON submissions(submitted_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Get implements snapshot.Store.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, snapshot.ErrEmptyKey
	}
	var value []byte
	err := s.db.QueryRowContext(context.Background(),
		`SELECT value FROM snapshots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set implements snapshot.Store with overwrite semantics.
func (s *Store) Set(key string, value []byte) error {
	if key == "" {
		return snapshot.ErrEmptyKey
	}
	_, err := s.db.ExecContext(context.Background(),
		`INSERT INTO snapshots (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()))
	return err
}

// Remove implements snapshot.Store.
func (s *Store) Remove(key string) error {
	if key == "" {
		return snapshot.ErrEmptyKey
	}
	_, err := s.db.ExecContext(context.Background(), `DELETE FROM snapshots WHERE key = ?`, key)
	return err
}

// InsertSubmission records a finished attempt. Recording the same attempt
// twice keeps the first row.
func (s *Store) InsertSubmission(ctx context.Context, sub model.Submission) error {
	timedOut := 0
	if sub.TimedOut {
		timedOut = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (attempt_id, exam_year, exam_shift, started_at, submitted_at, answered, total, timed_out)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(attempt_id) DO NOTHING`,
		sub.AttemptID,
		sub.Year,
		sub.Shift,
		formatTime(sub.StartedAt),
		formatTime(sub.SubmittedAt),
		sub.Answered,
		sub.Total,
		timedOut,
	)
	return err
}

// ListSubmissions returns recorded attempts, newest first. A non-positive
// limit returns all rows.
func (s *Store) ListSubmissions(ctx context.Context, limit int) ([]model.Submission, error) {
	query := `SELECT attempt_id, exam_year, exam_shift, started_at, submitted_at, answered, total, timed_out
		FROM submissions
		ORDER BY submitted_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var result []model.Submission
	for rows.Next() {
		var sub model.Submission
		var startedAt, submittedAt string
		var timedOut int
		if err := rows.Scan(&sub.AttemptID, &sub.Year, &sub.Shift, &startedAt, &submittedAt, &sub.Answered, &sub.Total, &timedOut); err != nil {
			return nil, err
		}
		if sub.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if sub.SubmittedAt, err = parseTime(submittedAt); err != nil {
			return nil, err
		}
		sub.TimedOut = timedOut != 0
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
