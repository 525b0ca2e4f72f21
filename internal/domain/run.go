package domain

import "time"

// ReportRef identifies a report waiting to be processed.
type ReportRef struct {
	Name  string
	Path  string
	Epoch int64
}

// RunStatus is the outcome of one attempt to process a report.
type RunStatus string

const (
	RunLoaded   RunStatus = "loaded"
	RunSkipped  RunStatus = "skipped"
	RunRejected RunStatus = "rejected"
	RunFailed   RunStatus = "failed"
)

// Run is the audit entry written for every report attempt.
type Run struct {
	ID          string      `json:"run_id"`
	Epoch       int64       `json:"epoch"`
	Source      string      `json:"source"`
	Status      RunStatus   `json:"status"`
	RowsLoaded  int         `json:"rows_loaded"`
	Diagnostics Diagnostics `json:"diagnostics,omitempty"`
	Error       string      `json:"error,omitempty"`
	StartedAt   time.Time   `json:"started_at"`
	FinishedAt  time.Time   `json:"finished_at"`
}
