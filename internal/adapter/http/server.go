package http

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/river-gauge-etl/internal/adapter/store"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

var reportDateRe = regexp.MustCompile(`^\d{8}$`)

// Catalog answers read-only queries over loaded records and the run log.
type Catalog interface {
	Runs(ctx context.Context, limit int) ([]domain.Run, error)
	Records(ctx context.Context, f store.RecordFilter) ([]domain.NormalizedRecord, error)
}

// Server exposes health, readiness, metrics and query HTTP endpoints.
type Server struct {
	httpServer *http.Server
	catalog    Catalog
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, /runs
// and /records routes. catalog may be nil, in which case the query routes are
// not registered.
func NewServer(addr string, ready sharedobs.ReadinessChecker, catalog Catalog, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		catalog: catalog,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	if catalog != nil {
		mux.HandleFunc("GET /runs", s.handleRuns)
		mux.HandleFunc("GET /records", s.handleRecords)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// handleRuns lists the most recent report runs, newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = n
	}

	runs, err := s.catalog.Runs(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, runs)
}

// handleRecords returns loaded records, optionally narrowed to one report
// date (?date=YYYYMMDD) or one report (?report_timestamp=YYYYMMDDhhmmss).
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.RecordFilter{
		ReportDate:      q.Get("date"),
		ReportTimestamp: q.Get("report_timestamp"),
	}
	if f.ReportDate != "" && !reportDateRe.MatchString(f.ReportDate) {
		writeError(w, http.StatusBadRequest, "date must be YYYYMMDD")
		return
	}

	records, err := s.catalog.Records(r.Context(), f)
	if err != nil {
		s.logger.Error("list records failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list records failed")
		return
	}
	if records == nil {
		records = []domain.NormalizedRecord{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, records)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
