package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

func TestFinalize_RenamesAndDiscards(t *testing.T) {
	rows := []Row{{
		"report_timestamp":                 "20240529110000",
		"report_date":                      "20240529",
		"River Basin":                      "Kelani Ganga",
		"Tributory/River":                  "Kelani Ganga",
		"Gauging Station":                  "Hanwella",
		"Unit":                             "m",
		"Alert Level":                      floatPtr(7),
		"Minor Flood Level":                (*float64)(nil),
		"Major Flood Level":                floatPtr(10),
		"last_hour_reported_water_level":   4.5,
		"last_hour_water_level_difference": 1.5,
		"water_level_change_tag":           TrendRising,
		"rainfall_mm":                      12.5,
		"rainfall_hour_interval":           "24",
		"Remarks":                          "Alert",
		"at 8 am":                          3.0,
		"Water Level":                      "1.2",
	}}

	got, err := Finalize(rows)
	require.NoError(t, err)
	require.Len(t, got, 1)

	want := NormalizedRecord{
		ReportTimestamp:              "20240529110000",
		ReportDate:                   "20240529",
		RiverBasin:                   strPtr("Kelani Ganga"),
		River:                        "Kelani Ganga",
		GaugingStation:               "Hanwella",
		Unit:                         "m",
		AlertLevel:                   floatPtr(7),
		MajorFloodLevel:              floatPtr(10),
		LastHourReportedWaterLevel:   floatPtr(4.5),
		LastHourWaterLevelDifference: floatPtr(1.5),
		WaterLevelChangeTag:          "rising",
		RainfallMM:                   floatPtr(12.5),
		RainfallHourInterval:         "24",
		Remarks:                      "Alert",
	}
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("Finalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestFinalize_Idempotent(t *testing.T) {
	rec := NormalizedRecord{
		ReportTimestamp:              "20240529110000",
		ReportDate:                   "20240529",
		River:                        "Hal Oya",
		GaugingStation:               "Hal Gauge",
		Unit:                         "m",
		LastHourReportedWaterLevel:   floatPtr(0.5),
		LastHourWaterLevelDifference: floatPtr(0),
		WaterLevelChangeTag:          "no change",
	}

	once, err := Finalize([]Row{rec.Row()})
	require.NoError(t, err)
	twice, err := Finalize([]Row{once[0].Row()})
	require.NoError(t, err)

	assert.Equal(t, rec, once[0])
	assert.Equal(t, once, twice)
}

func TestFinalize_NaNBecomesNull(t *testing.T) {
	got, err := Finalize([]Row{{
		"last_hour_reported_water_level":   math.NaN(),
		"last_hour_water_level_difference": math.NaN(),
		"water_level_change_tag":           TrendError,
	}})
	require.NoError(t, err)
	assert.Nil(t, got[0].LastHourReportedWaterLevel)
	assert.Nil(t, got[0].LastHourWaterLevelDifference)
	assert.Equal(t, "<!Error>", got[0].WaterLevelChangeTag)
}

func TestFinalize_TypeMismatch(t *testing.T) {
	_, err := Finalize([]Row{{"rainfall_mm": "12.5"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rainfall_mm")
}

func TestNormalizedRecord_Values(t *testing.T) {
	rec := NormalizedRecord{ReportTimestamp: "ts", Remarks: "last"}
	values := rec.Values()
	require.Len(t, values, len(Columns))
	assert.Equal(t, "ts", values[0])
	assert.Equal(t, "last", values[len(values)-1])
}

func TestReportStamp(t *testing.T) {
	colombo := time.FixedZone("+0530", 5*3600+30*60)

	ts, date := ReportStamp(1716960600, colombo)
	assert.Equal(t, "20240529110000", ts)
	assert.Equal(t, "20240529", date)

	ts, date = ReportStamp(1716960600, nil)
	assert.Equal(t, "20240529053000", ts)
	assert.Equal(t, ts[:8], date)
}
