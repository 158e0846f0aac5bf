// Package ledger keeps a SQLite history of transfer runs. Each run row holds
// what was asked for and its final tally; each result row records one file's
// outcome. The CLI's history command reads it back.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tonimelisma/gdfetch/internal/transfer"
)

// ErrUnknownRun is returned when a run ID has no row.
var ErrUnknownRun = errors.New("ledger: unknown run")

const dirPerms = 0o700

const (
	sqlInsertRun = `INSERT INTO runs
		(id, command, scope, account, preset, output_dir, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sqlInsertResult = `INSERT INTO results
		(run_id, input, file_id, name, mime_type, status, path, bytes, error_msg, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqlFinishRun = `UPDATE runs SET finished_at = ?, succeeded = ?, total = ?, interrupted = ?
		WHERE id = ?`

	sqlRecentRuns = `SELECT id, command, scope, account, preset, output_dir,
		started_at, finished_at, succeeded, total, interrupted
		FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`

	sqlRunResults = `SELECT input, file_id, name, mime_type, status, path, bytes, error_msg, recorded_at
		FROM results WHERE run_id = ? ORDER BY id`
)

// RunInfo describes a run when it starts.
type RunInfo struct {
	Command   string
	Scope     string
	Account   string
	Preset    string
	OutputDir string
}

// Run is a stored run.
type Run struct {
	RunInfo
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while in progress or when the process died
	Succeeded   int
	Total       int
	Interrupted bool // stopped early by an interrupt
}

// Outcome is the final tally of a run.
type Outcome struct {
	Succeeded   int
	Total       int
	Interrupted bool
}

// Entry is a stored per-file result.
type Entry struct {
	Input      string          `json:"input,omitempty"`
	FileID     string          `json:"file_id"`
	Name       string          `json:"name,omitempty"`
	MimeType   string          `json:"mime_type,omitempty"`
	Status     transfer.Status `json:"status"`
	Path       string          `json:"path,omitempty"`
	Bytes      int64           `json:"bytes"`
	Error      string          `json:"error,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// Ledger is the history database.
type Ledger struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens (creating if needed) the history database at path and applies
// migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return nil, fmt.Errorf("ledger: creating directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"+
			"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		path,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening database %s: %w", path, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history ledger opened", slog.String("db_path", path))

	return &Ledger{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BeginRun inserts a run row and returns its ID.
func (l *Ledger) BeginRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.NewString()

	_, err := l.db.ExecContext(ctx, sqlInsertRun,
		id, info.Command, info.Scope, info.Account, info.Preset, info.OutputDir,
		l.nowFunc().UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("ledger: inserting run: %w", err)
	}

	return id, nil
}

// Record stores one transfer result for a run. The CLI calls it as each
// file finishes, so a killed process still leaves its per-file rows.
func (l *Ledger) Record(ctx context.Context, runID string, res transfer.Result) error {
	var errMsg string
	if res.Err != nil {
		errMsg = res.Err.Error()
	}

	_, err := l.db.ExecContext(ctx, sqlInsertResult,
		runID, res.Input, res.File.ID, res.File.Name, res.File.MimeType,
		string(res.Status), res.Path, res.Bytes, errMsg, l.nowFunc().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("ledger: recording result for %s: %w", res.File.ID, err)
	}

	return nil
}

// FinishRun stamps a run with its completion time and outcome.
func (l *Ledger) FinishRun(ctx context.Context, runID string, o Outcome) error {
	res, err := l.db.ExecContext(ctx, sqlFinishRun,
		l.nowFunc().UnixNano(), o.Succeeded, o.Total, o.Interrupted, runID)
	if err != nil {
		return fmt.Errorf("ledger: finishing run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("ledger: finishing run: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}

	return nil
}

// Recent returns up to limit runs, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
		)

		if err := rows.Scan(&r.ID, &r.Command, &r.Scope, &r.Account, &r.Preset, &r.OutputDir,
			&started, &finished, &r.Succeeded, &r.Total, &r.Interrupted); err != nil {
			return nil, fmt.Errorf("ledger: scanning run: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}

		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating runs: %w", err)
	}

	return runs, nil
}

// Results returns the per-file rows of a run in recording order.
func (l *Ledger) Results(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, sqlRunResults, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying results: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e        Entry
			status   string
			recorded int64
		)

		if err := rows.Scan(&e.Input, &e.FileID, &e.Name, &e.MimeType, &status,
			&e.Path, &e.Bytes, &e.Error, &recorded); err != nil {
			return nil, fmt.Errorf("ledger: scanning result: %w", err)
		}

		e.Status = transfer.Status(status)
		e.RecordedAt = time.Unix(0, recorded)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterating results: %w", err)
	}

	return entries, nil
}
