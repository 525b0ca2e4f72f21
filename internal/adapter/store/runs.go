package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

const runsSchema = `CREATE TABLE IF NOT EXISTS report_runs (
  run_id TEXT PRIMARY KEY,
  report_epoch BIGINT NOT NULL,
  source TEXT NOT NULL,
  target_table TEXT NOT NULL,
  status TEXT NOT NULL,
  rows_loaded INTEGER NOT NULL,
  diagnostics TEXT NOT NULL,
  error TEXT NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL
)`

const runTimeLayout = "2006-01-02T15:04:05.000000Z"

type runRow struct {
	ID          string `db:"run_id"`
	Epoch       int64  `db:"report_epoch"`
	Source      string `db:"source"`
	Table       string `db:"target_table"`
	Status      string `db:"status"`
	RowsLoaded  int    `db:"rows_loaded"`
	Diagnostics string `db:"diagnostics"`
	Error       string `db:"error"`
	StartedAt   string `db:"started_at"`
	FinishedAt  string `db:"finished_at"`
}

// RecordRun appends an entry to the run log.
func (s *Store) RecordRun(ctx context.Context, run domain.Run) error {
	diags := run.Diagnostics
	if diags == nil {
		diags = domain.Diagnostics{}
	}
	encoded, err := json.Marshal(diags)
	if err != nil {
		return fmt.Errorf("store: encode diagnostics: %w", err)
	}

	row := runRow{
		ID:          run.ID,
		Epoch:       run.Epoch,
		Source:      run.Source,
		Table:       s.table,
		Status:      string(run.Status),
		RowsLoaded:  run.RowsLoaded,
		Diagnostics: string(encoded),
		Error:       run.Error,
		StartedAt:   run.StartedAt.UTC().Format(runTimeLayout),
		FinishedAt:  run.FinishedAt.UTC().Format(runTimeLayout),
	}
	_, err = s.db.NamedExecContext(ctx, `INSERT INTO report_runs
		(run_id, report_epoch, source, target_table, status, rows_loaded, diagnostics, error, started_at, finished_at)
		VALUES (:run_id, :report_epoch, :source, :target_table, :status, :rows_loaded, :diagnostics, :error, :started_at, :finished_at)`, row)
	if err != nil {
		return fmt.Errorf("store: record run %s: %w", run.ID, err)
	}
	return nil
}

// Runs returns the most recent run log entries, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]domain.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []runRow
	query := s.db.Rebind(`SELECT run_id, report_epoch, source, target_table, status, rows_loaded, diagnostics, error, started_at, finished_at
		FROM report_runs ORDER BY started_at DESC LIMIT ?`)
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("store: select runs: %w", err)
	}

	out := make([]domain.Run, 0, len(rows))
	for _, r := range rows {
		run := domain.Run{
			ID:         r.ID,
			Epoch:      r.Epoch,
			Source:     r.Source,
			Status:     domain.RunStatus(r.Status),
			RowsLoaded: r.RowsLoaded,
			Error:      r.Error,
		}
		if err := json.Unmarshal([]byte(r.Diagnostics), &run.Diagnostics); err != nil {
			return nil, fmt.Errorf("store: decode diagnostics of run %s: %w", r.ID, err)
		}
		run.StartedAt, _ = time.Parse(runTimeLayout, r.StartedAt)
		run.FinishedAt, _ = time.Parse(runTimeLayout, r.FinishedAt)
		out = append(out, run)
	}
	return out, nil
}
