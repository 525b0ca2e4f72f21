package domain

import "fmt"

// DiagnosticKind classifies a non-fatal observation made while normalizing a report.
type DiagnosticKind string

const (
	DiagEmptyColumnName         DiagnosticKind = "empty_column_name"
	DiagMissingStaticColumn     DiagnosticKind = "missing_static_column"
	DiagAmbiguousRainfall       DiagnosticKind = "ambiguous_rainfall_column"
	DiagMissingRainfall         DiagnosticKind = "missing_rainfall_column"
	DiagMissingWaterLevel       DiagnosticKind = "missing_water_level_column"
	DiagSingleWaterLevel        DiagnosticKind = "single_water_level_column"
	DiagDuplicateWaterLevelHour DiagnosticKind = "duplicate_water_level_hour"
	DiagBasinLookupMiss         DiagnosticKind = "basin_lookup_miss"
	DiagBasinFoldedMatch        DiagnosticKind = "basin_folded_match"
	DiagGeoOverride             DiagnosticKind = "geo_override"
	DiagTrendError              DiagnosticKind = "trend_error"
	DiagEmptyReport             DiagnosticKind = "empty_report"
)

// ReportLevel is the Row value of diagnostics that apply to the whole report.
const ReportLevel = -1

// Diagnostic is a non-fatal observation. Row is the zero-based data row index,
// or ReportLevel.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Row     int            `json:"row"`
	Column  string         `json:"column,omitempty"`
	Message string         `json:"message"`
}

func (d Diagnostic) String() string {
	if d.Row == ReportLevel {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s (row %d): %s", d.Kind, d.Row, d.Message)
}

// Diagnostics is an ordered collection of observations.
type Diagnostics []Diagnostic

func (ds *Diagnostics) add(kind DiagnosticKind, row int, column, format string, args ...any) {
	*ds = append(*ds, Diagnostic{
		Kind:    kind,
		Row:     row,
		Column:  column,
		Message: fmt.Sprintf(format, args...),
	})
}

// Count returns how many diagnostics of the given kind were recorded.
func (ds Diagnostics) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range ds {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// ByKind tallies diagnostics per kind.
func (ds Diagnostics) ByKind() map[DiagnosticKind]int {
	out := make(map[DiagnosticKind]int)
	for _, d := range ds {
		out[d.Kind]++
	}
	return out
}
