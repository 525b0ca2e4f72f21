package domain

import (
	"math"
	"strconv"
)

// TrendTag describes the direction of the water level between the earliest
// and latest readings of a report.
type TrendTag string

const (
	TrendRising   TrendTag = "rising"
	TrendFalling  TrendTag = "falling"
	TrendNoChange TrendTag = "no change"
	// TrendError is written when the difference cannot be computed.
	TrendError TrendTag = "<!Error>"
)

// TrendTagFor classifies diff. Values within tolerance of zero are
// "no change"; a zero tolerance means exact equality.
func TrendTagFor(diff, tolerance float64) TrendTag {
	switch {
	case math.IsNaN(diff):
		return TrendError
	case diff > tolerance:
		return TrendRising
	case diff < -tolerance:
		return TrendFalling
	default:
		return TrendNoChange
	}
}

// AnalyticsInput carries one row's selected readings. Missing readings are NaN;
// a zero RainfallWindowHours means there was no rainfall column.
type AnalyticsInput struct {
	WaterLevelMax       float64
	WaterLevelMin       float64
	Rainfall            float64
	RainfallWindowHours int
}

// Analytics holds the derived fields of a row. NaN marks a value that could
// not be derived.
type Analytics struct {
	LastReportedWaterLevel float64
	WaterLevelDifference   float64
	ChangeTag              TrendTag
	RainfallMM             float64
	RainfallHourInterval   string
}

// DeriveAnalytics computes the latest level, the level delta and its trend tag
// together with the rainfall fields.
func DeriveAnalytics(in AnalyticsInput, tolerance float64) Analytics {
	diff := in.WaterLevelMax - in.WaterLevelMin
	a := Analytics{
		LastReportedWaterLevel: in.WaterLevelMax,
		WaterLevelDifference:   diff,
		ChangeTag:              TrendTagFor(diff, tolerance),
		RainfallMM:             in.Rainfall,
	}
	if in.RainfallWindowHours > 0 {
		a.RainfallHourInterval = strconv.Itoa(in.RainfallWindowHours)
	}
	return a
}
