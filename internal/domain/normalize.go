package domain

import (
	"math"
	"strconv"
	"time"
)

// Options tunes a Normalizer.
type Options struct {
	Location        *time.Location
	AmbiguityPolicy AmbiguityPolicy
	HourOrdering    HourOrdering
	TrendTolerance  float64
}

// DefaultOptions uses UTC stamps, first-match ambiguity fallback, 24-hour
// ordering and exact trend comparison.
func DefaultOptions() Options {
	return Options{
		Location:        time.UTC,
		AmbiguityPolicy: AmbiguityFirstMatch,
		HourOrdering:    OrderClock24,
	}
}

// Result is the outcome of normalizing one report.
type Result struct {
	Epoch           int64
	Source          string
	ReportTimestamp string
	ReportDate      string
	Columns         []string
	Classification  Classification
	Records         []NormalizedRecord
	Diagnostics     Diagnostics
}

// Normalizer turns extracted report tables into normalized records.
type Normalizer struct {
	geo  *GeoMapper
	opts Options
}

// NewNormalizer creates a Normalizer. Zero-valued options fall back to
// DefaultOptions.
func NewNormalizer(geo *GeoMapper, opts Options) *Normalizer {
	def := DefaultOptions()
	if opts.Location == nil {
		opts.Location = def.Location
	}
	if opts.AmbiguityPolicy == "" {
		opts.AmbiguityPolicy = def.AmbiguityPolicy
	}
	if opts.HourOrdering == "" {
		opts.HourOrdering = def.HourOrdering
	}
	return &Normalizer{geo: geo, opts: opts}
}

// staticField lists the labels a source column may carry for one working field.
type staticField struct {
	field  string
	labels []string
}

var staticFields = []staticField{
	{field: fieldRiver, labels: []string{"tributory/river", "tributary/river", "tributory / river", "tributary / river", "river", "tributary"}},
	{field: fieldGaugingStation, labels: []string{"gauging station", "gauging stations", "station"}},
	{field: fieldUnit, labels: []string{"unit", "units"}},
	{field: fieldAlertLevel, labels: []string{"alert level"}},
	{field: fieldMinorFloodLevel, labels: []string{"minor flood level"}},
	{field: fieldMajorFloodLevel, labels: []string{"major flood level"}},
	{field: fieldRemarks, labels: []string{"remarks", "remark"}},
}

var levelFields = map[string]bool{
	fieldAlertLevel:      true,
	fieldMinorFloodLevel: true,
	fieldMajorFloodLevel: true,
}

// Normalize runs the full chain over one report. Fatal conditions abort the
// whole report; everything else is reported through Result.Diagnostics.
func (n *Normalizer) Normalize(report Report) (Result, error) {
	res := Result{Epoch: report.Epoch, Source: report.Source}

	table, err := report.Table()
	if err != nil {
		return res, err
	}
	if len(table) < 2 {
		return res, malformed("table has %d rows, need two header rows", len(table))
	}

	columns, diags, err := ReconcileHeaders(table[0], table[1])
	if err != nil {
		return res, err
	}
	res.Columns = columns

	cells, err := MaterializeRows(table[2:], len(columns))
	if err != nil {
		return res, err
	}

	cls, clsDiags, err := Classify(columns, ClassifyOptions{
		Policy:   n.opts.AmbiguityPolicy,
		Ordering: n.opts.HourOrdering,
	})
	diags = append(diags, clsDiags...)
	res.Classification = cls
	if err != nil {
		res.Diagnostics = diags
		return res, err
	}

	res.ReportTimestamp, res.ReportDate = ReportStamp(report.Epoch, n.opts.Location)
	static := resolveStaticColumns(columns, cls, &diags)

	if len(cells) == 0 {
		diags.add(DiagEmptyReport, ReportLevel, "", "report has headers but no data rows")
	}

	rows := make([]Row, 0, len(cells))
	for r, values := range cells {
		row, err := n.workingRow(r, values, columns, cls, static, res, &diags)
		if err != nil {
			res.Diagnostics = diags
			return res, err
		}
		rows = append(rows, row)
	}

	records, err := Finalize(rows)
	if err != nil {
		res.Diagnostics = diags
		return res, err
	}
	res.Records = records
	res.Diagnostics = diags
	return res, nil
}

// resolveStaticColumns maps each working field to the first non-dynamic column
// carrying one of its labels.
func resolveStaticColumns(columns []string, cls Classification, diags *Diagnostics) map[string]int {
	byLabel := make(map[string]int, len(columns))
	for i, name := range columns {
		if cls.IsDynamic(i) {
			continue
		}
		key := foldKey(name)
		if _, seen := byLabel[key]; !seen {
			byLabel[key] = i
		}
	}

	out := make(map[string]int, len(staticFields))
	for _, sf := range staticFields {
		found := false
		for _, label := range sf.labels {
			if i, ok := byLabel[label]; ok {
				out[sf.field] = i
				found = true
				break
			}
		}
		if !found {
			diags.add(DiagMissingStaticColumn, ReportLevel, sf.field, "no column labelled %q", sf.field)
		}
	}
	return out
}

func (n *Normalizer) workingRow(r int, values, columns []string, cls Classification, static map[string]int, res Result, diags *Diagnostics) (Row, error) {
	row := Row{
		"report_timestamp": res.ReportTimestamp,
		"report_date":      res.ReportDate,
	}

	cell := func(field string) string {
		if i, ok := static[field]; ok {
			return values[i]
		}
		return ""
	}

	for _, sf := range staticFields {
		if !levelFields[sf.field] {
			row[sf.field] = cell(sf.field)
			continue
		}
		level, err := parseLevel(cell(sf.field))
		if err != nil {
			return nil, &ParseError{Row: r, Column: sf.field, Value: cell(sf.field), Err: err}
		}
		row[sf.field] = level
	}

	station := cell(fieldGaugingStation)
	river, overridden := n.geo.CorrectRiver(station, cell(fieldRiver))
	if overridden {
		diags.add(DiagGeoOverride, r, fieldRiver, "station %q recorded against %q, corrected to %q", station, cell(fieldRiver), river)
	}
	row[fieldRiver] = river

	// Basin follows the corrected river, not the tributary as printed.
	if basin, ok := n.geo.RiverBasin(river); ok {
		row[fieldRiverBasin] = basin
	} else if basin, ok := n.geo.FoldedRiverBasin(river); ok {
		row[fieldRiverBasin] = basin
		diags.add(DiagBasinFoldedMatch, r, fieldRiverBasin, "river %q matched basin map only ignoring case and spacing", river)
	} else {
		row[fieldRiverBasin] = nil
		if _, hasColumn := static[fieldRiver]; hasColumn || overridden {
			diags.add(DiagBasinLookupMiss, r, fieldRiverBasin, "no basin known for river %q", river)
		}
	}

	readings := make(map[int]float64, len(cls.Dynamic))
	for _, d := range cls.Dynamic {
		v, err := NormalizeDynamicValue(values[d.Index])
		if err != nil {
			return nil, &ParseError{Row: r, Column: columns[d.Index], Value: values[d.Index], Err: err}
		}
		readings[d.Index] = v
		row[d.Name] = v
	}

	in := AnalyticsInput{
		WaterLevelMax: reading(readings, cls.WaterLevelMax),
		WaterLevelMin: reading(readings, cls.WaterLevelMin),
		Rainfall:      reading(readings, cls.Rainfall),
	}
	if cls.Rainfall != nil {
		in.RainfallWindowHours = cls.Rainfall.WindowHours
	}
	a := DeriveAnalytics(in, n.opts.TrendTolerance)
	if a.ChangeTag == TrendError {
		diags.add(DiagTrendError, r, "water_level_change_tag", "water level difference could not be computed")
	}

	row["last_hour_reported_water_level"] = a.LastReportedWaterLevel
	row["last_hour_water_level_difference"] = a.WaterLevelDifference
	row["water_level_change_tag"] = a.ChangeTag
	row["rainfall_mm"] = a.RainfallMM
	row["rainfall_hour_interval"] = a.RainfallHourInterval
	return row, nil
}

func reading(readings map[int]float64, col *DynamicColumn) float64 {
	if col == nil {
		return math.NaN()
	}
	return readings[col.Index]
}

// parseLevel reads a threshold level. Empty cells and placeholders are unknown
// thresholds rather than zero.
func parseLevel(s string) (*float64, error) {
	if s == "" || isPlaceholder(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, errNotFinite
	}
	return &v, nil
}
