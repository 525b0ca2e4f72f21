// Package store appends normalized report records to a SQL table store.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

var identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Options configures Open.
type Options struct {
	Driver    string
	DSN       string
	Table     string
	BatchSize int
}

// Store writes normalized records through a single transactional primitive,
// LoadReport. It assumes a single writer.
type Store struct {
	db        *sqlx.DB
	dialect   dialect
	table     string
	batchSize int
	logger    *slog.Logger
}

// Open connects to the configured database, waits for it to answer and
// creates the run log table.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	table := strings.ToLower(opts.Table)
	if !identifierRe.MatchString(table) {
		return nil, fmt.Errorf("store: invalid table name %q", opts.Table)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}

	if d.fileBacked && opts.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(opts.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sqlx.Open(d.driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", d.driver, err)
	}
	if d.singleConn {
		db.SetMaxOpenConns(1)
	}

	if err := pingWithRetry(ctx, db, 5, time.Second); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", d.driver, err)
	}

	s := &Store{
		db:        db,
		dialect:   d,
		table:     table,
		batchSize: opts.BatchSize,
		logger:    logger,
	}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Table returns the destination table name.
func (s *Store) Table() string { return s.table }

// CheckReadiness pings the database.
func (s *Store) CheckReadiness(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.init {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx, runsSchema)
	return err
}

// LoadReport creates the destination table if it is absent, verifies its
// shape and appends the report's records, all in one transaction. On any
// error nothing is committed.
func (s *Store) LoadReport(ctx context.Context, res domain.Result) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, createTableSQL(s.table)); err != nil {
		return 0, fmt.Errorf("store: create table %s: %w", s.table, err)
	}
	if err := s.verifyShape(ctx, tx); err != nil {
		return 0, err
	}

	if res.ReportTimestamp != "" {
		var existing int
		q := tx.Rebind(fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE report_timestamp = ?", s.table))
		if err := tx.GetContext(ctx, &existing, q, res.ReportTimestamp); err != nil {
			return 0, fmt.Errorf("store: check existing report: %w", err)
		}
		if existing > 0 {
			return 0, fmt.Errorf("%w: %d rows for %s in %s", domain.ErrAlreadyLoaded, existing, res.ReportTimestamp, s.table)
		}
	}

	for start := 0; start < len(res.Records); start += s.batchSize {
		end := min(start+s.batchSize, len(res.Records))
		if err := s.insertBatch(ctx, tx, res.Records[start:end]); err != nil {
			return 0, fmt.Errorf("store: insert rows %d-%d: %w", start, end-1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	s.logger.Debug("report appended", "table", s.table, "report_timestamp", res.ReportTimestamp, "rows", len(res.Records))
	return len(res.Records), nil
}

func (s *Store) verifyShape(ctx context.Context, tx *sqlx.Tx) error {
	var got []string
	if err := tx.SelectContext(ctx, &got, tx.Rebind(s.dialect.columnsQuery), s.table); err != nil {
		return fmt.Errorf("store: inspect %s: %w", s.table, err)
	}
	if !sameColumns(got, domain.Columns) {
		return fmt.Errorf("%w: table %s has columns [%s], want [%s]",
			domain.ErrStoreConflict, s.table, strings.Join(got, ", "), strings.Join(domain.Columns, ", "))
	}
	return nil
}

func sameColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !strings.EqualFold(got[i], want[i]) {
			return false
		}
	}
	return true
}

func (s *Store) insertBatch(ctx context.Context, tx *sqlx.Tx, batch []domain.NormalizedRecord) error {
	if len(batch) == 0 {
		return nil
	}
	row := "(" + strings.TrimSuffix(strings.Repeat("?,", len(domain.Columns)), ",") + ")"
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*len(domain.Columns))
	for _, rec := range batch {
		valueStrings = append(valueStrings, row)
		valueArgs = append(valueArgs, rec.Values()...)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		s.table, strings.Join(domain.Columns, ", "), strings.Join(valueStrings, ","))
	_, err := tx.ExecContext(ctx, tx.Rebind(query), valueArgs...)
	return err
}

// RecordFilter narrows Records. Empty fields match everything.
type RecordFilter struct {
	ReportDate      string
	ReportTimestamp string
}

// Records returns stored records ordered by report time and station. Before
// the first report is loaded the table does not exist and Records is empty.
func (s *Store) Records(ctx context.Context, f RecordFilter) ([]domain.NormalizedRecord, error) {
	var existing []string
	if err := s.db.SelectContext(ctx, &existing, s.db.Rebind(s.dialect.columnsQuery), s.table); err != nil {
		return nil, fmt.Errorf("store: inspect %s: %w", s.table, err)
	}
	if len(existing) == 0 {
		return nil, nil
	}

	var (
		where []string
		args  []any
	)
	if f.ReportDate != "" {
		where = append(where, "report_date = ?")
		args = append(args, f.ReportDate)
	}
	if f.ReportTimestamp != "" {
		where = append(where, "report_timestamp = ?")
		args = append(args, f.ReportTimestamp)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(domain.Columns, ", "), s.table)
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY report_timestamp, gauging_station"

	var out []domain.NormalizedRecord
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: select records: %w", err)
	}
	return out, nil
}

func createTableSQL(table string) string {
	cols := make([]string, len(domain.Columns))
	for i, c := range domain.Columns {
		cols[i] = "  " + c + " " + columnType(c)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n%s\n)", table, strings.Join(cols, ",\n"))
}

func columnType(col string) string {
	switch col {
	case "alert_level", "minor_flood_level", "major_flood_level",
		"last_hour_reported_water_level", "last_hour_water_level_difference", "rainfall_mm":
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

func pingWithRetry(ctx context.Context, db *sqlx.DB, attempts int, wait time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
