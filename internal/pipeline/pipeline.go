package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
)

// Source lists pending reports and files them away once handled.
type Source interface {
	Pending(ctx context.Context) ([]domain.ReportRef, error)
	Open(ctx context.Context, ref domain.ReportRef) (domain.Report, error)
	Archive(ctx context.Context, ref domain.ReportRef) error
	Reject(ctx context.Context, ref domain.ReportRef) error
}

// Transformer normalizes a decoded report.
type Transformer interface {
	Transform(ctx context.Context, report domain.Report) (domain.Result, error)
}

// Loader appends a normalized report to the table store atomically.
type Loader interface {
	LoadReport(ctx context.Context, res domain.Result) (int, error)
}

// RunRecorder persists the audit entry of each report attempt.
type RunRecorder interface {
	RecordRun(ctx context.Context, run domain.Run) error
}

// Publisher forwards loaded records downstream. Optional.
type Publisher interface {
	Publish(ctx context.Context, res domain.Result) error
}

// Summary counts the outcomes of one pass over the inbox.
type Summary struct {
	Loaded   int
	Skipped  int
	Rejected int
	Failed   int
	Records  int
}

// Reports is the number of reports attempted.
func (s Summary) Reports() int { return s.Loaded + s.Skipped + s.Rejected + s.Failed }

func (s *Summary) add(status domain.RunStatus, rows int) {
	switch status {
	case domain.RunLoaded:
		s.Loaded++
		s.Records += rows
	case domain.RunSkipped:
		s.Skipped++
	case domain.RunRejected:
		s.Rejected++
	default:
		s.Failed++
	}
}

// Pipeline orchestrates the read-normalize-load loop. Reports are handled one
// at a time in ascending epoch order.
type Pipeline struct {
	source      Source
	transformer Transformer
	loader      Loader
	runs        RunRecorder
	publisher   Publisher
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
}

// New creates a Pipeline with the given stages and observability. publisher
// may be nil.
func New(s Source, t Transformer, l Loader, runs RunRecorder, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:      s,
		transformer: t,
		loader:      l,
		runs:        runs,
		publisher:   publisher,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed a pass over the
// inbox, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed an inbox pass yet")
	}
	return nil
}

// Run polls the inbox every interval until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration) error {
	p.logger.Info("pipeline started", "poll_interval", interval)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	// Exponential backoff on inbox errors: start at 200ms, double each retry, cap at the poll interval.
	backoff := 200 * time.Millisecond
	maxBackoff := max(interval, backoff)

	for {
		if ctx.Err() != nil {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}

		wait := interval
		if _, err := p.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Error("inbox pass failed", "error", err)
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = 200 * time.Millisecond
		}

		if !sleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// RunOnce processes every pending report once. The returned error reports a
// failure to list the inbox; per-report failures are counted in the Summary.
func (p *Pipeline) RunOnce(ctx context.Context) (Summary, error) {
	var sum Summary

	refs, err := p.source.Pending(ctx)
	if err != nil {
		return sum, err
	}
	if len(refs) > 0 {
		p.logger.Info("reports pending", "count", len(refs))
	}

	for _, ref := range refs {
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.add(p.processReport(ctx, ref))
	}

	p.ready.Store(true)
	return sum, nil
}

// RunReport processes a single report regardless of what else is pending.
func (p *Pipeline) RunReport(ctx context.Context, ref domain.ReportRef) Summary {
	var sum Summary
	sum.add(p.processReport(ctx, ref))
	return sum
}

// processReport runs one report through normalize, load, publish and archive,
// and records the attempt.
func (p *Pipeline) processReport(ctx context.Context, ref domain.ReportRef) (domain.RunStatus, int) {
	start := clock.Now()
	run := domain.Run{
		ID:        uuid.NewString(),
		Epoch:     ref.Epoch,
		Source:    ref.Name,
		StartedAt: start,
	}
	logger := p.logger.With("run_id", run.ID, "source", ref.Name, "epoch", ref.Epoch)

	p.attempt(ctx, ref, &run, logger)

	run.FinishedAt = clock.Now()
	p.metrics.ReportsProcessed.WithLabelValues(string(run.Status)).Inc()
	p.metrics.ReportProcessingDuration.Observe(run.FinishedAt.Sub(start).Seconds())
	if err := p.runs.RecordRun(ctx, run); err != nil {
		logger.Warn("record run failed", "error", err)
	}
	return run.Status, run.RowsLoaded
}

func (p *Pipeline) attempt(ctx context.Context, ref domain.ReportRef, run *domain.Run, logger *slog.Logger) {
	report, err := p.source.Open(ctx, ref)
	if err != nil {
		p.fail(ctx, ref, run, logger, "open report failed", err)
		return
	}

	res, err := p.transformer.Transform(ctx, report)
	run.Diagnostics = res.Diagnostics
	p.countDiagnostics(res.Diagnostics)
	if err != nil {
		p.fail(ctx, ref, run, logger, "normalize report failed", err)
		return
	}
	p.metrics.ReportRows.Observe(float64(len(res.Records)))

	writeStart := clock.Now()
	n, err := p.loader.LoadReport(ctx, res)
	p.metrics.StoreWriteDuration.Observe(clock.Since(writeStart).Seconds())
	if errors.Is(err, domain.ErrAlreadyLoaded) {
		run.Status = domain.RunSkipped
		logger.Info("report already loaded, archiving", "report_timestamp", res.ReportTimestamp)
		p.archive(ctx, ref, logger)
		return
	}
	if err != nil {
		p.fail(ctx, ref, run, logger, "load report failed", err)
		return
	}

	run.Status = domain.RunLoaded
	run.RowsLoaded = n
	p.metrics.RecordsLoaded.Add(float64(n))
	logger.Info("report loaded",
		"report_timestamp", res.ReportTimestamp,
		"rows", n,
		"diagnostics", len(res.Diagnostics),
	)

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, res); err != nil {
			p.metrics.PublishErrors.Inc()
			logger.Error("publish records failed", "error", err)
		} else {
			p.metrics.RecordsPublished.Add(float64(len(res.Records)))
		}
	}

	p.archive(ctx, ref, logger)
}

// fail classifies err. Reports that can never normalize are moved to the
// reject directory; anything else stays in the inbox for the next pass.
func (p *Pipeline) fail(ctx context.Context, ref domain.ReportRef, run *domain.Run, logger *slog.Logger, msg string, err error) {
	run.Error = err.Error()
	if !isReportDefect(err) {
		run.Status = domain.RunFailed
		logger.Error(msg, "error", err)
		return
	}

	run.Status = domain.RunRejected
	logger.Warn(msg+", rejecting", "error", err)
	if rerr := p.source.Reject(ctx, ref); rerr != nil {
		logger.Error("reject report failed", "error", rerr)
	}
}

func (p *Pipeline) archive(ctx context.Context, ref domain.ReportRef, logger *slog.Logger) {
	if err := p.source.Archive(ctx, ref); err != nil {
		logger.Error("archive report failed", "error", err)
	}
}

func (p *Pipeline) countDiagnostics(diags domain.Diagnostics) {
	for kind, n := range diags.ByKind() {
		p.metrics.Diagnostics.WithLabelValues(string(kind)).Add(float64(n))
	}
}

func isReportDefect(err error) bool {
	return errors.Is(err, domain.ErrMalformedInput) ||
		errors.Is(err, domain.ErrParseFailure) ||
		errors.Is(err, domain.ErrClassificationAmbiguity)
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
