package pipeline_test

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
	"github.com/couchcryptid/river-gauge-etl/internal/pipeline"
)

func TestTransformer_LogsColumnDiagnosticsAtWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	geo := domain.NewGeoMapper(domain.BasinMap{"Kelani Ganga": "Kelani Ganga"}, nil)
	tr := pipeline.NewTransformer(domain.NewNormalizer(geo, domain.DefaultOptions()), logger)

	report := domain.Report{Epoch: 1716960600, Source: "water_level_1716960600.json", Tables: []domain.RawTable{{
		row("Tributory/River", "Gauging Station", "Water Level", "", ""),
		row("", "", "", "at 6 am", "at 9 am"),
		row("Hal Oya", "Hal Gauge", "", "1.0", "0.5"),
	}}}

	res, err := tr.Transform(context.Background(), report)
	require.NoError(t, err)
	require.Equal(t, 1, res.Diagnostics.Count(domain.DiagMissingRainfall))
	require.Equal(t, 1, res.Diagnostics.Count(domain.DiagBasinLookupMiss))

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "kind="+string(domain.DiagMissingRainfall))
	assert.NotContains(t, out, "kind="+string(domain.DiagBasinLookupMiss))
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		assert.Contains(t, line, "level=WARN")
	}
}
