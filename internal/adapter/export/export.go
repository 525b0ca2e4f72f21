// Package export writes loaded gauge records to spreadsheet files for
// downstream analysts.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/river-gauge-etl/internal/domain"
)

// Format is an output file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// ParseFormat validates a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want xlsx or csv)", s)
	}
}

// FormatForPath infers the format from a file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

// WriteFile writes records to path in the given format, creating parent
// directories as needed.
func WriteFile(path string, format Format, records []domain.NormalizedRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	switch format {
	case FormatXLSX:
		return WriteXLSX(path, records)
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		if err := WriteCSV(f, records); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteCSV encodes records with a header row. NULL fields are written as
// empty cells.
func WriteCSV(w io.Writer, records []domain.NormalizedRecord) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(domain.NormalizedRecord{}); err != nil {
		return fmt.Errorf("encode csv header: %w", err)
	}
	if len(records) > 0 {
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode csv records: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX saves records to a single-sheet workbook. The header row uses the
// canonical column names.
func WriteXLSX(path string, records []domain.NormalizedRecord) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range domain.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, rec := range records {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, rec.ReportTimestamp)
		set(2, rec.ReportDate)
		set(3, derefString(rec.RiverBasin))
		set(4, rec.River)
		set(5, rec.GaugingStation)
		set(6, rec.Unit)
		set(7, derefFloat(rec.AlertLevel))
		set(8, derefFloat(rec.MinorFloodLevel))
		set(9, derefFloat(rec.MajorFloodLevel))
		set(10, derefFloat(rec.LastHourReportedWaterLevel))
		set(11, derefFloat(rec.LastHourWaterLevelDifference))
		set(12, rec.WaterLevelChangeTag)
		set(13, derefFloat(rec.RainfallMM))
		set(14, rec.RainfallHourInterval)
		set(15, rec.Remarks)
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
