package domain

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

const timeOfDay = `at\s+(\d{1,2})(?:[:.](\d{2}))?\s*(am|pm|noon|midnight)`

var (
	// waterLevelAtRe matches "Water Level ... at 6:30 am".
	waterLevelAtRe = regexp.MustCompile(`(?i)water\s+level\b.*\b` + timeOfDay + `$`)

	// rainfallWindowRe matches "24 Hr RF in mm ... at 8.30 am".
	rainfallWindowRe = regexp.MustCompile(`(?i)^(\d+)\s*hr\s*rf\s*in\s*mm\b.*\b` + timeOfDay + `$`)

	// bareTimeRe matches a sub-header cell under a merged group label, e.g. "at 2 pm".
	bareTimeRe = regexp.MustCompile(`(?i)^` + timeOfDay + `$`)

	waterLevelLabelRe = regexp.MustCompile(`(?i)water\s+level\b`)
	rainfallLabelRe   = regexp.MustCompile(`(?i)^(\d+)\s*hr\s*rf\s*in\s*mm\b`)
)

// ColumnKind tags a reconciled column.
type ColumnKind int

const (
	KindStatic ColumnKind = iota
	KindRainfallWindow
	KindWaterLevelAt
)

func (k ColumnKind) String() string {
	switch k {
	case KindRainfallWindow:
		return "rainfall_window"
	case KindWaterLevelAt:
		return "water_level_at"
	default:
		return "static"
	}
}

// DynamicColumn is a time-windowed measurement column recognised by name.
// WindowHours is set for rainfall columns. Hour is the clock hour exactly as
// written in the label.
type DynamicColumn struct {
	Index       int
	Name        string
	Kind        ColumnKind
	WindowHours int
	Hour        int
	Minute      int
	Meridiem    string
}

// MinutesOfDay places the reading on a 24-hour clock using its meridiem.
// Labels that already use 24-hour hours ("14:00 pm") are kept as written.
func (c DynamicColumn) MinutesOfDay() int {
	h := c.Hour
	switch c.Meridiem {
	case "am":
		if h == 12 {
			h = 0
		}
	case "pm":
		if h < 12 {
			h += 12
		}
	case "noon":
		h = 12
	case "midnight":
		h = 0
	}
	return h*60 + c.Minute
}

// IsWaterLevelAtTime reports whether name is a full water-level-at-time label.
func IsWaterLevelAtTime(name string) bool { return waterLevelAtRe.MatchString(name) }

// IsRainfallWindow reports whether name is a full rainfall-window label.
func IsRainfallWindow(name string) bool { return rainfallWindowRe.MatchString(name) }

// ClassifyColumn classifies a single label on its own, without the context of
// neighbouring group labels.
func ClassifyColumn(index int, name string) (DynamicColumn, bool) {
	if m := rainfallWindowRe.FindStringSubmatch(name); m != nil {
		window, _ := strconv.Atoi(m[1])
		col := timedColumn(index, name, KindRainfallWindow, m[2:])
		col.WindowHours = window
		return col, true
	}
	if m := waterLevelAtRe.FindStringSubmatch(name); m != nil {
		return timedColumn(index, name, KindWaterLevelAt, m[1:]), true
	}
	return DynamicColumn{Index: index, Name: name, Kind: KindStatic}, false
}

func timedColumn(index int, name string, kind ColumnKind, m []string) DynamicColumn {
	hour, _ := strconv.Atoi(m[0])
	minute := 0
	if m[1] != "" {
		minute, _ = strconv.Atoi(m[1])
	}
	return DynamicColumn{
		Index:    index,
		Name:     name,
		Kind:     kind,
		Hour:     hour,
		Minute:   minute,
		Meridiem: strings.ToLower(m[2]),
	}
}

// AmbiguityPolicy decides what happens when a dynamic role matches zero or
// several columns.
type AmbiguityPolicy string

const (
	AmbiguityFirstMatch AmbiguityPolicy = "first"
	AmbiguityStrict     AmbiguityPolicy = "strict"
)

// ParseAmbiguityPolicy validates a configured policy name.
func ParseAmbiguityPolicy(s string) (AmbiguityPolicy, error) {
	switch p := AmbiguityPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case AmbiguityFirstMatch, AmbiguityStrict:
		return p, nil
	default:
		return "", fmt.Errorf("unknown ambiguity policy %q", s)
	}
}

// HourOrdering decides how water-level columns are ranked in time.
type HourOrdering string

const (
	// OrderClock24 ranks by minutes since midnight, honouring am/pm.
	OrderClock24 HourOrdering = "clock24"
	// OrderAsWritten ranks by the hour digits exactly as written.
	OrderAsWritten HourOrdering = "as_written"
)

// ParseHourOrdering validates a configured ordering name.
func ParseHourOrdering(s string) (HourOrdering, error) {
	switch o := HourOrdering(strings.ToLower(strings.TrimSpace(s))); o {
	case OrderClock24, OrderAsWritten:
		return o, nil
	default:
		return "", fmt.Errorf("unknown hour ordering %q", s)
	}
}

func (o HourOrdering) key(c DynamicColumn) int {
	if o == OrderAsWritten {
		return c.Hour
	}
	return c.MinutesOfDay()
}

// ClassifyOptions tunes Classify.
type ClassifyOptions struct {
	Policy   AmbiguityPolicy
	Ordering HourOrdering
}

// Classification is the per-report result of dynamic column detection.
// Dynamic lists every recognised column in column order; the role pointers are
// nil when no column fills the role.
type Classification struct {
	Dynamic       []DynamicColumn
	WaterLevelMax *DynamicColumn
	WaterLevelMin *DynamicColumn
	Rainfall      *DynamicColumn
}

// IsDynamic reports whether the column at index was recognised as dynamic.
func (c Classification) IsDynamic(index int) bool {
	for _, d := range c.Dynamic {
		if d.Index == index {
			return true
		}
	}
	return false
}

// Classify recognises dynamic columns and selects the water-level max/min and
// rainfall roles.
//
// Merged header cells leave bare "at <time>" labels next to a group label such
// as "Water Level" or "24 Hr RF in mm"; those inherit the kind of the nearest
// preceding group label. Any other static label ends the group.
func Classify(columns []string, opts ClassifyOptions) (Classification, Diagnostics, error) {
	if opts.Ordering == "" {
		opts.Ordering = OrderClock24
	}

	var (
		cls   Classification
		diags Diagnostics
		group *DynamicColumn
	)
	for i, name := range columns {
		if col, ok := ClassifyColumn(i, name); ok {
			cls.Dynamic = append(cls.Dynamic, col)
			g := col
			group = &g
			continue
		}
		if m := bareTimeRe.FindStringSubmatch(name); m != nil && group != nil {
			col := timedColumn(i, name, group.Kind, m[1:])
			col.WindowHours = group.WindowHours
			cls.Dynamic = append(cls.Dynamic, col)
			continue
		}
		group = groupLabel(name)
	}

	var waterLevels, rainfalls []DynamicColumn
	for _, d := range cls.Dynamic {
		switch d.Kind {
		case KindWaterLevelAt:
			waterLevels = append(waterLevels, d)
		case KindRainfallWindow:
			rainfalls = append(rainfalls, d)
		}
	}

	var ambiguities []string

	switch len(waterLevels) {
	case 0:
		diags.add(DiagMissingWaterLevel, ReportLevel, "", "no water-level-at-time column found")
		ambiguities = append(ambiguities, "no water-level column")
	case 1:
		only := waterLevels[0]
		cls.WaterLevelMax, cls.WaterLevelMin = &only, &only
		diags.add(DiagSingleWaterLevel, ReportLevel, only.Name, "only one water-level column; difference will be zero")
	default:
		minCol, maxCol := selectExtremes(waterLevels, opts.Ordering)
		cls.WaterLevelMin, cls.WaterLevelMax = &minCol, &maxCol
		if opts.Ordering.key(minCol) == opts.Ordering.key(maxCol) {
			diags.add(DiagDuplicateWaterLevelHour, ReportLevel, maxCol.Name,
				"water-level columns %q and %q share the same time", minCol.Name, maxCol.Name)
			ambiguities = append(ambiguities, "water-level columns share one time")
		}
	}

	switch len(rainfalls) {
	case 0:
		diags.add(DiagMissingRainfall, ReportLevel, "", "no rainfall-window column found")
		ambiguities = append(ambiguities, "no rainfall column")
	case 1:
		r := rainfalls[0]
		cls.Rainfall = &r
	default:
		r := rainfalls[0]
		cls.Rainfall = &r
		diags.add(DiagAmbiguousRainfall, ReportLevel, r.Name,
			"%d rainfall columns matched; using the first", len(rainfalls))
		ambiguities = append(ambiguities, fmt.Sprintf("%d rainfall columns", len(rainfalls)))
	}

	if opts.Policy == AmbiguityStrict && len(ambiguities) > 0 {
		return cls, diags, fmt.Errorf("%w: %s", ErrClassificationAmbiguity, strings.Join(ambiguities, "; "))
	}
	return cls, diags, nil
}

func groupLabel(name string) *DynamicColumn {
	if m := rainfallLabelRe.FindStringSubmatch(name); m != nil {
		window, _ := strconv.Atoi(m[1])
		return &DynamicColumn{Kind: KindRainfallWindow, WindowHours: window}
	}
	if waterLevelLabelRe.MatchString(name) {
		return &DynamicColumn{Kind: KindWaterLevelAt}
	}
	return nil
}

// selectExtremes picks the earliest and latest columns, first occurrence
// winning ties. The latest is chosen among the remaining columns so the two
// are always distinct.
func selectExtremes(cols []DynamicColumn, ordering HourOrdering) (minCol, maxCol DynamicColumn) {
	minIdx := 0
	for i := 1; i < len(cols); i++ {
		if ordering.key(cols[i]) < ordering.key(cols[minIdx]) {
			minIdx = i
		}
	}
	maxIdx := -1
	for i := range cols {
		if i == minIdx {
			continue
		}
		if maxIdx < 0 || ordering.key(cols[i]) > ordering.key(cols[maxIdx]) {
			maxIdx = i
		}
	}
	return cols[minIdx], cols[maxIdx]
}

// Placeholders are the exact cell texts reports use for "no reading"; they
// count as zero.
var Placeholders = []string{"NA", "-", "N.A."}

var errNotFinite = errors.New("value is not a finite number")

// NormalizeDynamicValue converts a dynamic column cell to a number.
// Placeholders match the whole cell, case-sensitively.
func NormalizeDynamicValue(s string) (float64, error) {
	if isPlaceholder(s) {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func isPlaceholder(s string) bool {
	for _, p := range Placeholders {
		if s == p {
			return true
		}
	}
	return false
}
