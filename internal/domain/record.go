package domain

import (
	"fmt"
	"math"
	"time"
)

// Columns is the canonical, ordered schema of a normalized record.
var Columns = []string{
	"report_timestamp",
	"report_date",
	"river_basin",
	"river",
	"gauging_station",
	"unit",
	"alert_level",
	"minor_flood_level",
	"major_flood_level",
	"last_hour_reported_water_level",
	"last_hour_water_level_difference",
	"water_level_change_tag",
	"rainfall_mm",
	"rainfall_hour_interval",
	"remarks",
}

// Working field names as they appear in the source report.
const (
	fieldRiverBasin      = "River Basin"
	fieldRiver           = "Tributory/River"
	fieldGaugingStation  = "Gauging Station"
	fieldUnit            = "Unit"
	fieldAlertLevel      = "Alert Level"
	fieldMinorFloodLevel = "Minor Flood Level"
	fieldMajorFloodLevel = "Major Flood Level"
	fieldRemarks         = "Remarks"
)

// renameFields maps working names onto canonical column names.
var renameFields = map[string]string{
	fieldRiverBasin:      "river_basin",
	fieldRiver:           "river",
	fieldGaugingStation:  "gauging_station",
	fieldUnit:            "unit",
	fieldAlertLevel:      "alert_level",
	fieldMinorFloodLevel: "minor_flood_level",
	fieldMajorFloodLevel: "major_flood_level",
	fieldRemarks:         "remarks",
}

// Row is a working record keyed by field name. Fields outside the canonical
// schema are discarded by Finalize.
type Row map[string]any

// NormalizedRecord is one gauging station reading in canonical form.
// Nil pointers are unresolved or unavailable values.
type NormalizedRecord struct {
	ReportTimestamp              string   `db:"report_timestamp" json:"report_timestamp" csv:"report_timestamp"`
	ReportDate                   string   `db:"report_date" json:"report_date" csv:"report_date"`
	RiverBasin                   *string  `db:"river_basin" json:"river_basin" csv:"river_basin"`
	River                        string   `db:"river" json:"river" csv:"river"`
	GaugingStation               string   `db:"gauging_station" json:"gauging_station" csv:"gauging_station"`
	Unit                         string   `db:"unit" json:"unit" csv:"unit"`
	AlertLevel                   *float64 `db:"alert_level" json:"alert_level" csv:"alert_level"`
	MinorFloodLevel              *float64 `db:"minor_flood_level" json:"minor_flood_level" csv:"minor_flood_level"`
	MajorFloodLevel              *float64 `db:"major_flood_level" json:"major_flood_level" csv:"major_flood_level"`
	LastHourReportedWaterLevel   *float64 `db:"last_hour_reported_water_level" json:"last_hour_reported_water_level" csv:"last_hour_reported_water_level"`
	LastHourWaterLevelDifference *float64 `db:"last_hour_water_level_difference" json:"last_hour_water_level_difference" csv:"last_hour_water_level_difference"`
	WaterLevelChangeTag          string   `db:"water_level_change_tag" json:"water_level_change_tag" csv:"water_level_change_tag"`
	RainfallMM                   *float64 `db:"rainfall_mm" json:"rainfall_mm" csv:"rainfall_mm"`
	RainfallHourInterval         string   `db:"rainfall_hour_interval" json:"rainfall_hour_interval" csv:"rainfall_hour_interval"`
	Remarks                      string   `db:"remarks" json:"remarks" csv:"remarks"`
}

// Values returns the record's fields in Columns order.
func (r NormalizedRecord) Values() []any {
	return []any{
		r.ReportTimestamp,
		r.ReportDate,
		r.RiverBasin,
		r.River,
		r.GaugingStation,
		r.Unit,
		r.AlertLevel,
		r.MinorFloodLevel,
		r.MajorFloodLevel,
		r.LastHourReportedWaterLevel,
		r.LastHourWaterLevelDifference,
		r.WaterLevelChangeTag,
		r.RainfallMM,
		r.RainfallHourInterval,
		r.Remarks,
	}
}

// Row returns the record as a working row keyed by canonical names.
func (r NormalizedRecord) Row() Row {
	values := r.Values()
	row := make(Row, len(Columns))
	for i, c := range Columns {
		row[c] = values[i]
	}
	return row
}

// Finalize renames working fields to the canonical schema, drops every other
// field and converts values to their canonical types. Finalizing the Row of a
// finalized record yields the same record.
func Finalize(rows []Row) ([]NormalizedRecord, error) {
	out := make([]NormalizedRecord, 0, len(rows))
	for i, row := range rows {
		canonical := make(Row, len(Columns))
		for k, v := range row {
			if to, ok := renameFields[k]; ok {
				k = to
			}
			canonical[k] = v
		}
		rec, err := recordFromRow(canonical)
		if err != nil {
			return nil, fmt.Errorf("finalize row %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func recordFromRow(row Row) (NormalizedRecord, error) {
	var (
		rec  NormalizedRecord
		errs []error
	)
	text := func(col string) string {
		s, err := textField(row[col])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", col, err))
		}
		return s
	}
	number := func(col string) *float64 {
		f, err := floatField(row[col])
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", col, err))
		}
		return f
	}

	rec.ReportTimestamp = text("report_timestamp")
	rec.ReportDate = text("report_date")
	if basin := text("river_basin"); basin != "" {
		rec.RiverBasin = &basin
	}
	rec.River = text("river")
	rec.GaugingStation = text("gauging_station")
	rec.Unit = text("unit")
	rec.AlertLevel = number("alert_level")
	rec.MinorFloodLevel = number("minor_flood_level")
	rec.MajorFloodLevel = number("major_flood_level")
	rec.LastHourReportedWaterLevel = number("last_hour_reported_water_level")
	rec.LastHourWaterLevelDifference = number("last_hour_water_level_difference")
	rec.WaterLevelChangeTag = text("water_level_change_tag")
	rec.RainfallMM = number("rainfall_mm")
	rec.RainfallHourInterval = text("rainfall_hour_interval")
	rec.Remarks = text("remarks")

	if len(errs) > 0 {
		return NormalizedRecord{}, errs[0]
	}
	return rec, nil
}

func textField(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case *string:
		if val == nil {
			return "", nil
		}
		return *val, nil
	case TrendTag:
		return string(val), nil
	default:
		return "", fmt.Errorf("unexpected text value of type %T", v)
	}
}

func floatField(v any) (*float64, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if math.IsNaN(val) {
			return nil, nil
		}
		return &val, nil
	case *float64:
		if val == nil || math.IsNaN(*val) {
			return nil, nil
		}
		f := *val
		return &f, nil
	default:
		return nil, fmt.Errorf("unexpected numeric value of type %T", v)
	}
}

const (
	timestampLayout = "20060102150405"
	dateLayout      = "20060102"
)

// ReportStamp derives the report_timestamp and report_date fields from the
// report epoch, rendered in loc.
func ReportStamp(epoch int64, loc *time.Location) (timestamp, date string) {
	if loc == nil {
		loc = time.UTC
	}
	t := time.Unix(epoch, 0).In(loc)
	return t.Format(timestampLayout), t.Format(dateLayout)
}
