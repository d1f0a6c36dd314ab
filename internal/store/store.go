// Package store persists saved files and test-run reports using SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// File is a saved playground file.
type File struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Language         string    `json:"language"`
	Code             string    `json:"code"`
	ProblemStatement string    `json:"problemStatement"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Run is the summary of one completed test run.
type Run struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"sessionId"`
	Language  string    `json:"language"`
	Passed    int       `json:"passed"`
	Failed    int       `json:"failed"`
	Total     int       `json:"total"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store manages saved files and run reports in SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at the given path.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS saved_files (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			language          TEXT NOT NULL,
			code              TEXT NOT NULL DEFAULT '',
			problem_statement TEXT NOT NULL DEFAULT '',
			created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS test_runs (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			language   TEXT NOT NULL,
			passed     INTEGER NOT NULL DEFAULT 0,
			failed     INTEGER NOT NULL DEFAULT 0,
			total      INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_test_runs_session_id
			ON test_runs(session_id);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateFile inserts f, assigning an id and creation time when unset.
func (s *Store) CreateFile(ctx context.Context, f *File) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO saved_files (id, name, language, code, problem_statement, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Language, f.Code, f.ProblemStatement, f.CreatedAt,
	)
	return err
}

// GetFile retrieves a saved file by id.
func (s *Store) GetFile(ctx context.Context, id string) (*File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, language, code, problem_statement, created_at
		 FROM saved_files WHERE id = ?`, id,
	)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return f, err
}

// ListFiles returns saved files, newest first.
func (s *Store) ListFiles(ctx context.Context) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, language, code, problem_statement, created_at
		 FROM saved_files ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteFile removes a saved file.
func (s *Store) DeleteFile(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM saved_files WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// AddRun records a completed test run and sets its id.
func (s *Store) AddRun(ctx context.Context, r *Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO test_runs (session_id, language, passed, failed, total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.SessionID, r.Language, r.Passed, r.Failed, r.Total, r.CreatedAt,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// ListRuns returns the runs of a session, oldest first.
func (s *Store) ListRuns(ctx context.Context, sessionID string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, language, passed, failed, total, created_at
		 FROM test_runs WHERE session_id = ? ORDER BY id ASC`, sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Language, &r.Passed, &r.Failed, &r.Total, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFile(row scannable) (*File, error) {
	f := &File{}
	if err := row.Scan(&f.ID, &f.Name, &f.Language, &f.Code, &f.ProblemStatement, &f.CreatedAt); err != nil {
		return nil, err
	}
	return f, nil
}
