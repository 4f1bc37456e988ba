package runlog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Run statuses
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one recorded pipeline execution.
type Run struct {
	RunID          uuid.UUID `json:"run_id"`
	Method         string    `json:"method"`
	BaseURL        string    `json:"base_url"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	PagesFetched   int       `json:"pages_fetched"`
	PagesFailed    int       `json:"pages_failed"`
	Records        int       `json:"records"`
	SpreadsheetURL string    `json:"spreadsheet_url,omitempty"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
}

// Duration returns how long the run took.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store keeps run history in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) a run history database at the given
// path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the runs table if it doesn't exist.
func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		method TEXT NOT NULL,
		base_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		pages_failed INTEGER NOT NULL DEFAULT 0,
		records INTEGER NOT NULL DEFAULT 0,
		spreadsheet_url TEXT,
		status TEXT NOT NULL,
		error TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a completed run.
func (s *Store) Record(run *Run) error {
	query := `
	INSERT INTO runs (
		run_id, method, base_url, started_at, finished_at,
		pages_fetched, pages_failed, records, spreadsheet_url, status, error
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.RunID.String(),
		run.Method,
		run.BaseURL,
		run.StartedAt.Format(time.RFC3339Nano),
		run.FinishedAt.Format(time.RFC3339Nano),
		run.PagesFetched,
		run.PagesFailed,
		run.Records,
		run.SpreadsheetURL,
		run.Status,
		run.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// List returns the most recent runs, newest first. A limit of zero means
// all runs.
func (s *Store) List(limit int) ([]*Run, error) {
	query := `
	SELECT run_id, method, base_url, started_at, finished_at,
	       pages_fetched, pages_failed, records, spreadsheet_url, status, error
	FROM runs
	ORDER BY started_at DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// scanRun builds a Run from a result row.
func scanRun(rows *sql.Rows) (*Run, error) {
	var run Run
	var runID, startedAt, finishedAt string
	var spreadsheetURL, runErr sql.NullString

	err := rows.Scan(
		&runID, &run.Method, &run.BaseURL, &startedAt, &finishedAt,
		&run.PagesFetched, &run.PagesFailed, &run.Records,
		&spreadsheetURL, &run.Status, &runErr,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run.RunID, err = uuid.Parse(runID)
	if err != nil {
		return nil, fmt.Errorf("invalid run_id %q: %w", runID, err)
	}
	run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid started_at %q: %w", startedAt, err)
	}
	run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid finished_at %q: %w", finishedAt, err)
	}
	run.SpreadsheetURL = spreadsheetURL.String
	run.Error = runErr.String

	return &run, nil
}
