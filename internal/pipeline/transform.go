package pipeline

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// ReportTransformer implements Transformer using the domain normalizer.
type ReportTransformer struct {
	normalizer *domain.Normalizer
	logger     *slog.Logger
}

// NewTransformer creates a ReportTransformer.
func NewTransformer(normalizer *domain.Normalizer, logger *slog.Logger) *ReportTransformer {
	return &ReportTransformer{
		normalizer: normalizer,
		logger:     logger,
	}
}

// warnKinds are diagnostics about how the report's columns were interpreted.
// They are logged at warn; row-level diagnostics stay at debug.
var warnKinds = map[domain.DiagnosticKind]bool{
	domain.DiagAmbiguousRainfall:       true,
	domain.DiagMissingRainfall:         true,
	domain.DiagMissingWaterLevel:       true,
	domain.DiagSingleWaterLevel:        true,
	domain.DiagDuplicateWaterLevelHour: true,
	domain.DiagMissingStaticColumn:     true,
}

func (t *ReportTransformer) Transform(ctx context.Context, report domain.Report) (domain.Result, error) {
	res, err := t.normalizer.Normalize(report)
	for _, d := range res.Diagnostics {
		level := slog.LevelDebug
		if warnKinds[d.Kind] {
			level = slog.LevelWarn
		}
		t.logger.Log(ctx, level, "normalization diagnostic",
			"source", report.Source,
			"kind", d.Kind,
			"row", d.Row,
			"column", d.Column,
			"message", d.Message,
		)
	}
	return res, err
}
