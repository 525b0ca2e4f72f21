package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedInput marks a structurally invalid report: header rows with
	// mismatched key sets, a data row whose width differs from the header, or a
	// document that does not contain exactly one table.
	ErrMalformedInput = errors.New("malformed input")

	// ErrParseFailure marks a numeric cell that is neither a number nor one of
	// the recognised placeholders.
	ErrParseFailure = errors.New("parse failure")

	// ErrClassificationAmbiguity is returned only under AmbiguityStrict. The
	// default policy records a diagnostic and falls back to the first match.
	ErrClassificationAmbiguity = errors.New("classification ambiguity")

	// ErrStoreConflict is returned when the destination table exists with a
	// column layout other than the canonical record schema.
	ErrStoreConflict = errors.New("store conflict")

	// ErrAlreadyLoaded is returned when records for the same report timestamp
	// are already stored; nothing is written.
	ErrAlreadyLoaded = errors.New("report already loaded")
)

// ParseError describes a single cell that could not be converted to a number.
type ParseError struct {
	Row    int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d column %q: cannot parse %q as number: %v", e.Row, e.Column, e.Value, e.Err)
}

// Unwrap exposes both the ErrParseFailure class and the underlying strconv error.
func (e *ParseError) Unwrap() []error {
	return []error{ErrParseFailure, e.Err}
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}
