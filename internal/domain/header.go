package domain

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// cleanCell strips embedded line breaks left by multi-line PDF cells, trims
// surrounding whitespace and normalizes to NFC so equal labels compare equal.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	return norm.NFC.String(strings.TrimSpace(s))
}

func positionKey(i int) string { return strconv.Itoa(i) }

// ReconcileHeaders merges the two header rows into one name per column
// position. The primary label wins when it is non-empty after cleaning;
// otherwise the sub label is used. A position empty in both rows yields an
// empty name and an empty_column_name diagnostic.
func ReconcileHeaders(primary, sub RawRow) ([]string, Diagnostics, error) {
	if len(primary) != len(sub) {
		return nil, nil, malformed("header rows differ in width: primary has %d cells, sub has %d", len(primary), len(sub))
	}

	var diags Diagnostics
	names := make([]string, len(primary))
	for i := range names {
		key := positionKey(i)
		p, ok := primary[key]
		if !ok {
			return nil, nil, malformed("primary header row has no cell at position %d", i)
		}
		s, ok := sub[key]
		if !ok {
			return nil, nil, malformed("sub header row has no cell at position %d", i)
		}

		name := cleanCell(p)
		if name == "" {
			name = cleanCell(s)
		}
		if name == "" {
			diags.add(DiagEmptyColumnName, ReportLevel, key, "column %d has no label in either header row", i)
		}
		names[i] = name
	}
	return names, diags, nil
}

// MaterializeRows turns each data row into width cleaned values in column
// order. A row with a different cell count, or a missing position, is
// malformed; rows are never truncated or padded.
func MaterializeRows(rows []RawRow, width int) ([][]string, error) {
	out := make([][]string, len(rows))
	for r, row := range rows {
		if len(row) != width {
			return nil, malformed("data row %d has %d cells, header has %d", r, len(row), width)
		}
		values := make([]string, width)
		for i := range values {
			v, ok := row[positionKey(i)]
			if !ok {
				return nil, malformed("data row %d has no cell at position %d", r, i)
			}
			values[i] = cleanCell(v)
		}
		out[r] = values
	}
	return out, nil
}
