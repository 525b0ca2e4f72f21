package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/river-gauge-etl/internal/adapter/http"
	"github.com/couchcryptid/river-gauge-etl/internal/adapter/store"
	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockCatalog struct {
	runs      []domain.Run
	records   []domain.NormalizedRecord
	err       error
	gotLimit  int
	gotFilter store.RecordFilter
}

func (m *mockCatalog) Runs(_ context.Context, limit int) ([]domain.Run, error) {
	m.gotLimit = limit
	return m.runs, m.err
}

func (m *mockCatalog) Records(_ context.Context, f store.RecordFilter) ([]domain.NormalizedRecord, error) {
	m.gotFilter = f
	return m.records, m.err
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, nil, slog.Default())
}

func get(srv http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(newTestServer(nil), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := get(newTestServer(nil), "/readyz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := get(newTestServer(fmt.Errorf("not ready yet")), "/readyz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(newTestServer(nil), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestQueryRoutesAbsentWithoutCatalog(t *testing.T) {
	srv := newTestServer(nil)
	assert.Equal(t, http.StatusNotFound, get(srv, "/runs").Code)
	assert.Equal(t, http.StatusNotFound, get(srv, "/records").Code)
}

func TestRunsEndpoint(t *testing.T) {
	catalog := &mockCatalog{runs: []domain.Run{{ID: "r1", Epoch: 1716960600, Status: domain.RunLoaded, RowsLoaded: 5}}}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, catalog, slog.Default())

	t.Run("default limit", func(t *testing.T) {
		rec := get(srv, "/runs")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 20, catalog.gotLimit)

		var body []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body, 1)
		assert.Equal(t, "r1", body[0]["run_id"])
		assert.Equal(t, "loaded", body[0]["status"])
		assert.InDelta(t, 5, body[0]["rows_loaded"], 0)
	})

	t.Run("explicit limit", func(t *testing.T) {
		rec := get(srv, "/runs?limit=3")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 3, catalog.gotLimit)
	})

	for _, bad := range []string{"0", "-1", "abc", "501"} {
		t.Run("bad limit "+bad, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, get(srv, "/runs?limit="+bad).Code)
		})
	}
}

func TestRecordsEndpoint(t *testing.T) {
	level := 3.5
	catalog := &mockCatalog{records: []domain.NormalizedRecord{{
		ReportTimestamp:            "20240529110000",
		ReportDate:                 "20240529",
		GaugingStation:             "Nagalagam Street",
		LastHourReportedWaterLevel: &level,
		WaterLevelChangeTag:        "rising",
	}}}
	srv := httpadapter.NewServer(":0", &mockReadiness{}, catalog, slog.Default())

	rec := get(srv, "/records?date=20240529")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, store.RecordFilter{ReportDate: "20240529"}, catalog.gotFilter)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "Nagalagam Street", body[0]["gauging_station"])
	assert.InDelta(t, 3.5, body[0]["last_hour_reported_water_level"], 0)
	assert.Nil(t, body[0]["river_basin"])

	assert.Equal(t, http.StatusBadRequest, get(srv, "/records?date=2024-05-29").Code)
}

func TestRecordsEndpointEmptyIsArray(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockCatalog{}, slog.Default())

	rec := get(srv, "/records")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCatalogErrorReturns500(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockCatalog{err: errors.New("no such table")}, slog.Default())

	assert.Equal(t, http.StatusInternalServerError, get(srv, "/runs").Code)
	assert.Equal(t, http.StatusInternalServerError, get(srv, "/records").Code)
}
