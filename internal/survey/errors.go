package survey

import (
	"fmt"
	"strconv"
)

// SchemaError indicates an expected column is absent or malformed.
type SchemaError struct {
	Table  string
	Column string
	// Row is the 1-based data row, or 0 when the problem is the header.
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	loc := e.Table
	if e.Column != "" {
		loc = fmt.Sprintf("%s: column %q", loc, e.Column)
	}
	if e.Row > 0 {
		loc = fmt.Sprintf("%s, row %d", loc, e.Row)
	}
	return fmt.Sprintf("schema error: %s: %s", loc, e.Reason)
}

// AmbiguousCodeError indicates a numeric code paired with two labels.
type AmbiguousCodeError struct {
	Axis   string
	Code   float64
	First  string
	Second string
}

func (e *AmbiguousCodeError) Error() string {
	return fmt.Sprintf("ambiguous code on axis %s: %s maps to both %q and %q", e.Axis, formatCode(e.Code), e.First, e.Second)
}

// UnmappedCodeWarning reports a derived-axis code absent from a lookup
// table. Affected rows are kept with null derived fields.
type UnmappedCodeWarning struct {
	Lookup string
	Column string
	Code   float64
	Rows   int
}

func (w *UnmappedCodeWarning) Error() string {
	return fmt.Sprintf("lookup %s has no entry for %s=%s (%d rows left undecoded)", w.Lookup, w.Column, formatCode(w.Code), w.Rows)
}

// MalformedCodeWarning reports a code cell that is present but not a
// number. Affected rows are kept with null derived fields.
type MalformedCodeWarning struct {
	Lookup string
	Column string
	Text   string
	Rows   int
}

func (w *MalformedCodeWarning) Error() string {
	return fmt.Sprintf("lookup %s: %s value %q is not a numeric code (%d rows left undecoded)", w.Lookup, w.Column, w.Text, w.Rows)
}

// SuppressedValueWarning reports a row excluded from aggregation because
// its estimate is missing or flagged.
type SuppressedValueWarning struct {
	Row    int
	Reason string
}

func (w *SuppressedValueWarning) Error() string {
	return fmt.Sprintf("row %d: %s", w.Row, w.Reason)
}

func formatCode(c float64) string { return strconv.FormatFloat(c, 'f', -1, 64) }
