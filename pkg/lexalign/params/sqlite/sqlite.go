// Package sqlite persists parameter tables in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/lexalign/pkg/lexalign/internalerr"
	"github.com/cognicore/lexalign/pkg/lexalign/params"
)

// sqliteStore implements params.Store using SQLite.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (and initializes) a parameter database with WAL mode
// enabled. Failures to reach or prepare the database wrap
// internalerr.ErrStoreUnavailable.
func Open(ctx context.Context, path string) (params.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable(path, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, unavailable(path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, unavailable(path, err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, unavailable(path, err)
	}

	return &sqliteStore{db: db}, nil
}

func unavailable(path string, err error) error {
	return fmt.Errorf("open params db %s: %v: %w", path, err, internalerr.ErrStoreUnavailable)
}

// Close closes the database connection.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL,
	iterations INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS entries (
	run_id TEXT NOT NULL,
	src TEXT NOT NULL,
	trg TEXT NOT NULL,
	log_prob REAL NOT NULL,
	PRIMARY KEY(run_id, src, trg),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_entries_src ON entries(run_id, src);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// CreateRun registers a run.
func (s *sqliteStore) CreateRun(ctx context.Context, r params.Run) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, input, iterations, created_at) VALUES (?, ?, ?, ?)",
		r.ID, r.Input, r.Iterations, r.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("create run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns all runs, oldest first.
func (s *sqliteStore) Runs(ctx context.Context) ([]params.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, input, iterations, created_at FROM runs ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []params.Run
	for rows.Next() {
		var r params.Run
		var created string
		if err := rows.Scan(&r.ID, &r.Input, &r.Iterations, &created); err != nil {
			return nil, err
		}
		if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			r.CreatedAt = ts
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// PutEntries batch-inserts entries inside a single transaction.
func (s *sqliteStore) PutEntries(ctx context.Context, runID string, entries []params.Entry) error {
	if err := s.requireRun(ctx, runID); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		"INSERT OR REPLACE INTO entries (run_id, src, trg, log_prob) VALUES (?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, runID, e.Src, e.Trg, e.LogProb); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("insert entry (%s, %s): %w", e.Src, e.Trg, err)
		}
	}
	stmt.Close()
	return tx.Commit()
}

// Entries returns a run's entries ordered by (src, trg), optionally
// restricted to one source word.
func (s *sqliteStore) Entries(ctx context.Context, runID, src string) ([]params.Entry, error) {
	if err := s.requireRun(ctx, runID); err != nil {
		return nil, err
	}

	query := "SELECT src, trg, log_prob FROM entries WHERE run_id = ? ORDER BY src, trg"
	args := []any{runID}
	if src != "" {
		query = "SELECT src, trg, log_prob FROM entries WHERE run_id = ? AND src = ? ORDER BY src, trg"
		args = append(args, src)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []params.Entry
	for rows.Next() {
		var e params.Entry
		if err := rows.Scan(&e.Src, &e.Trg, &e.LogProb); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) requireRun(ctx context.Context, runID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", runID).Scan(&one)
	if err == sql.ErrNoRows {
		return fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	return err
}
