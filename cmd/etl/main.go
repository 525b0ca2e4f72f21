// Command etl normalizes river water-level reports into the table store.
//
// Usage:
//
//	etl run [-latest]                    process pending reports once
//	etl serve                            poll the inbox and serve /healthz, /readyz, /metrics
//	etl export -out FILE [-format F] [-date YYYYMMDD]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/river-gauge-etl/internal/adapter/export"
	httpadapter "github.com/couchcryptid/river-gauge-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/river-gauge-etl/internal/adapter/kafka"
	"github.com/couchcryptid/river-gauge-etl/internal/adapter/reportfs"
	"github.com/couchcryptid/river-gauge-etl/internal/adapter/store"
	"github.com/couchcryptid/river-gauge-etl/internal/config"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/observability"
	"github.com/couchcryptid/river-gauge-etl/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "run":
		err = runCmd(ctx, cfg, logger, args)
	case "serve":
		err = serveCmd(ctx, cfg, logger)
	case "export":
		err = exportCmd(ctx, cfg, logger, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Error(cmd+" failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: etl <run|serve|export> [flags]")
}

// app holds the wired components shared by run and serve.
type app struct {
	store    *store.Store
	inbox    *reportfs.Inbox
	writer   *kafkaadapter.Writer
	pipeline *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*app, error) {
	basins, err := domain.LoadBasinMap(cfg.BasinMapPath)
	if err != nil {
		return nil, err
	}
	geo := domain.NewGeoMapper(basins, nil)
	logger.Info("basin map loaded", "path", cfg.BasinMapPath, "rivers", geo.Len())

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		store: st,
		inbox: reportfs.NewInbox(cfg.InboxDir, cfg.ArchiveDir, cfg.RejectDir, logger),
	}

	// Record publishing is feature-flagged via KAFKA_BROKERS.
	var publisher pipeline.Publisher
	if cfg.PublishEnabled() {
		a.writer = kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		publisher = a.writer
		logger.Info("record publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("record publishing disabled")
	}

	transformer := pipeline.NewTransformer(domain.NewNormalizer(geo, cfg.NormalizerOptions()), logger)
	a.pipeline = pipeline.New(a.inbox, transformer, st, st, publisher, logger, metrics)
	return a, nil
}

func (a *app) close(logger *slog.Logger) {
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	return store.Open(ctx, store.Options{
		Driver:    cfg.StoreDriver,
		DSN:       cfg.StoreDSN,
		Table:     cfg.StoreTable,
		BatchSize: cfg.BatchSize,
	}, logger)
}

// runCmd makes a single pass over the inbox. It exits non-zero when any
// report was rejected or failed.
func runCmd(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	latest := fs.Bool("latest", false, "process only the newest pending report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.close(logger)

	var sum pipeline.Summary
	if *latest {
		ref, ok, err := a.inbox.Latest(ctx)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("no pending reports", "inbox", cfg.InboxDir)
			return nil
		}
		sum = a.pipeline.RunReport(ctx, ref)
	} else {
		sum, err = a.pipeline.RunOnce(ctx)
		if err != nil {
			return err
		}
	}

	logger.Info("run complete",
		"reports", sum.Reports(),
		"loaded", sum.Loaded,
		"skipped", sum.Skipped,
		"rejected", sum.Rejected,
		"failed", sum.Failed,
		"records", sum.Records,
	)
	if sum.Rejected+sum.Failed > 0 {
		return fmt.Errorf("%d of %d reports not loaded", sum.Rejected+sum.Failed, sum.Reports())
	}
	return nil
}

// serveCmd polls the inbox and serves the HTTP endpoints until signalled.
func serveCmd(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		return err
	}
	defer a.close(logger)

	srv := httpadapter.NewServer(cfg.HTTPAddr, a.pipeline, a.store, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.pipeline.Run(gctx, cfg.PollInterval)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}

// exportCmd writes stored records to an XLSX or CSV file.
func exportCmd(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	out := fs.String("out", "", "output file path (required)")
	format := fs.String("format", "", "xlsx or csv (default: from -out extension)")
	date := fs.String("date", "", "only export this report date (YYYYMMDD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		return errors.New("-out is required")
	}

	var (
		f   export.Format
		err error
	)
	if *format != "" {
		f, err = export.ParseFormat(*format)
	} else {
		f, err = export.FormatForPath(*out)
	}
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Records(ctx, store.RecordFilter{ReportDate: *date})
	if err != nil {
		return err
	}
	if err := export.WriteFile(*out, f, records); err != nil {
		return err
	}
	logger.Info("export complete", "path", *out, "format", f, "records", len(records))
	return nil
}
