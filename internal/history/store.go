// Package history records task runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/pipeline"
)

// Run is one recorded task run.
type Run struct {
	ID       string
	Task     string
	Started  time.Time
	Duration time.Duration
	Outcome  string
	Commit   string
	Error    string
	Stages   []StageRun
}

// StageRun is one stage within a run.
type StageRun struct {
	Name     string
	Status   string
	Duration time.Duration
	Error    string
}

// Store persists runs. It implements pipeline.Observer so it can be attached
// to a scheduler directly.
type Store struct {
	pipeline.NoopObserver

	db *sql.DB
	mu sync.Mutex

	// Commit stamps every recorded run, usually from SourceCommit.
	Commit string
	Logger *slog.Logger
}

// Open opens (creating if needed) the database at path. ":memory:" opens
// an in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		task TEXT NOT NULL,
		started INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		commit_hash TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS stages (
		run_id TEXT NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, position)
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the report and returns the new run ID.
func (s *Store) Record(ctx context.Context, r *pipeline.Report) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO runs (id, task, started, duration_ms, outcome, commit_hash, error) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, r.Task, r.Started.UnixMilli(), r.Duration.Milliseconds(), string(r.Outcome()), s.Commit, errString(r.Err),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	for i, st := range r.Stages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO stages (run_id, position, name, status, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?)",
			id, i, st.Name, string(st.Status), st.Duration.Milliseconds(), errString(st.Err),
		)
		if err != nil {
			return "", fmt.Errorf("insert stage: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	return id, nil
}

// OnRunComplete records r. Failures are logged; history never fails a run.
func (s *Store) OnRunComplete(r *pipeline.Report) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id, err := s.Record(context.Background(), r)
	if err != nil {
		logger.Warn("Failed to record run history", logfields.Task(r.Task), logfields.Error(err))
		return
	}
	logger.Debug("Run recorded", logfields.Task(r.Task), logfields.RunID(id))
}

// List returns the latest n runs, newest first, with their stages.
func (s *Store) List(ctx context.Context, n int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		n = 10
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, task, started, duration_ms, outcome, commit_hash, error FROM runs ORDER BY started DESC, rowid DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		var (
			r          Run
			started    int64
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &r.Task, &started, &durationMS, &r.Outcome, &r.Commit, &r.Error); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Started = time.UnixMilli(started)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	_ = rows.Close()

	for i := range runs {
		if runs[i].Stages, err = s.stages(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) stages(ctx context.Context, runID string) ([]StageRun, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, status, duration_ms, error FROM stages WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("query stages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []StageRun
	for rows.Next() {
		var (
			st         StageRun
			durationMS int64
		)
		if err := rows.Scan(&st.Name, &st.Status, &durationMS, &st.Error); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		st.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stages: %w", err)
	}
	return out, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
