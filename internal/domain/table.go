package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RawRow maps a stringified column position ("0", "1", ...) to cell text.
type RawRow map[string]string

// RawTable is one extracted table. Rows 0 and 1 are the primary and sub header
// rows; every following row is data.
type RawTable []RawRow

// Report is a single published report as handed over by the extractor.
type Report struct {
	Epoch  int64
	Source string
	Tables []RawTable
}

// Table returns the report's only table. Extractors occasionally split a page
// or pick up a legend; anything other than exactly one table is rejected.
func (r Report) Table() (RawTable, error) {
	if len(r.Tables) != 1 {
		return nil, malformed("expected exactly one table, found %d", len(r.Tables))
	}
	return r.Tables[0], nil
}

// DecodeTables parses extractor JSON. The document is either one table (an
// array of row objects) or an array of tables. Null cells decode as "" and
// numeric cells keep their literal text.
func DecodeTables(data []byte) ([]RawTable, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, fmt.Errorf("%w: decode extractor output: %v", ErrMalformedInput, err)
	}
	if len(elems) == 0 {
		return nil, nil
	}

	if firstByte(elems[0]) == '[' {
		tables := make([]RawTable, 0, len(elems))
		for i, elem := range elems {
			var rows []json.RawMessage
			if err := json.Unmarshal(elem, &rows); err != nil {
				return nil, fmt.Errorf("%w: table %d: %v", ErrMalformedInput, i, err)
			}
			table, err := decodeRows(rows)
			if err != nil {
				return nil, fmt.Errorf("table %d: %w", i, err)
			}
			tables = append(tables, table)
		}
		return tables, nil
	}

	table, err := decodeRows(elems)
	if err != nil {
		return nil, err
	}
	return []RawTable{table}, nil
}

func decodeRows(rows []json.RawMessage) (RawTable, error) {
	table := make(RawTable, 0, len(rows))
	for i, raw := range rows {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var cells map[string]any
		if err := dec.Decode(&cells); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrMalformedInput, i, err)
		}
		row := make(RawRow, len(cells))
		for k, v := range cells {
			text, err := cellText(v)
			if err != nil {
				return nil, fmt.Errorf("%w: row %d cell %s: %v", ErrMalformedInput, i, k, err)
			}
			row[k] = text
		}
		table = append(table, row)
	}
	return table, nil
}

func cellText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case json.Number:
		return val.String(), nil
	case bool:
		return strconv.FormatBool(val), nil
	default:
		return "", fmt.Errorf("unsupported cell type %T", v)
	}
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}
