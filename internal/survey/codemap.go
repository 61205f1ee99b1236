package survey

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Axis is one categorical dimension stored as a numeric/text column pair.
type Axis struct {
	Name       string
	CodeColumn string
	TextColumn string
}

// Standard axes of the NCHS "Health, United States" exports.
var (
	AxisPanel     = Axis{Name: "panel", CodeColumn: "PANEL_NUM", TextColumn: "PANEL"}
	AxisUnit      = Axis{Name: "unit", CodeColumn: "UNIT_NUM", TextColumn: "UNIT"}
	AxisStubName  = Axis{Name: "stub_name", CodeColumn: "STUB_NAME_NUM", TextColumn: "STUB_NAME"}
	AxisStubLabel = Axis{Name: "stub_label", CodeColumn: "STUB_LABEL_NUM", TextColumn: "STUB_LABEL"}
	AxisYear      = Axis{Name: "year", CodeColumn: "YEAR_NUM", TextColumn: "YEAR"}
	AxisAge       = Axis{Name: "age", CodeColumn: "AGE_NUM", TextColumn: "AGE"}
)

// StandardAxes lists the standard axes in export column order.
func StandardAxes() []Axis {
	return []Axis{AxisPanel, AxisUnit, AxisStubName, AxisStubLabel, AxisYear, AxisAge}
}

// AxisByName resolves a standard axis by name ("panel", "stub-label", ...).
func AxisByName(name string) (Axis, bool) {
	n := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	for _, a := range StandardAxes() {
		if a.Name == n {
			return a, true
		}
	}
	return Axis{}, false
}

// ConflictPolicy decides what happens when one code carries two labels.
type ConflictPolicy int

const (
	// ConflictReject fails with *AmbiguousCodeError.
	ConflictReject ConflictPolicy = iota
	// ConflictLastWins keeps the label seen last and logs the overwrite.
	ConflictLastWins
)

// ParseConflictPolicy accepts "reject" or "last-wins".
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject", "error":
		return ConflictReject, nil
	case "last-wins", "last_wins", "lastwins":
		return ConflictLastWins, nil
	default:
		return ConflictReject, fmt.Errorf("invalid conflict policy: %s (use reject or last-wins)", s)
	}
}

func (p ConflictPolicy) String() string {
	if p == ConflictLastWins {
		return "last-wins"
	}
	return "reject"
}

// MappingOptions configures code map extraction.
type MappingOptions struct {
	Policy ConflictPolicy
	Logger *slog.Logger
}

// CodeMap is a read-only code -> label dictionary for one axis.
type CodeMap struct {
	axis   Axis
	labels map[float64]string
	codes  []float64
}

// Axis returns the axis the map was built from.
func (m *CodeMap) Axis() Axis { return m.axis }

// Len returns the number of distinct codes.
func (m *CodeMap) Len() int { return len(m.codes) }

// Label returns the label for code.
func (m *CodeMap) Label(code float64) (string, bool) {
	l, ok := m.labels[code]
	return l, ok
}

// Code returns the smallest code carrying label.
func (m *CodeMap) Code(label string) (float64, bool) {
	for _, c := range m.codes {
		if m.labels[c] == label {
			return c, true
		}
	}
	return 0, false
}

// Codes returns all codes in ascending order.
func (m *CodeMap) Codes() []float64 {
	out := make([]float64, len(m.codes))
	copy(out, m.codes)
	return out
}

// ExtractCodeMap collects the distinct (code, label) pairs of an axis.
// Rows with a null code are skipped.
func ExtractCodeMap(t *Table, axis Axis, opt MappingOptions) (*CodeMap, error) {
	if _, err := t.ColumnIndex(axis.CodeColumn); err != nil {
		return nil, err
	}
	if _, err := t.ColumnIndex(axis.TextColumn); err != nil {
		return nil, err
	}
	logger := opt.Logger
	if logger == nil {
		logger = discardLogger
	}
	m := &CodeMap{axis: axis, labels: map[float64]string{}}
	for i := 0; i < t.Len(); i++ {
		raw, _ := t.Value(i, axis.CodeColumn)
		if raw.IsNull() {
			continue
		}
		code, ok, _ := t.Number(i, axis.CodeColumn)
		if !ok {
			return nil, &SchemaError{Table: t.Name, Column: axis.CodeColumn, Row: i + 1, Reason: fmt.Sprintf("non-numeric code %q", raw.String())}
		}
		label, _ := t.Value(i, axis.TextColumn)
		prev, seen := m.labels[code]
		if seen && prev != label.String() {
			if opt.Policy == ConflictReject {
				return nil, &AmbiguousCodeError{Axis: axis.Name, Code: code, First: prev, Second: label.String()}
			}
			logger.Warn("code relabeled", "axis", axis.Name, "code", code, "old", prev, "new", label.String(), "row", i+1)
		}
		if !seen {
			m.codes = append(m.codes, code)
		}
		m.labels[code] = label.String()
	}
	sort.Float64s(m.codes)
	return m, nil
}

// ExtractMappings builds a CodeMap per axis. With no axes given, every
// standard axis whose columns are present is extracted.
func ExtractMappings(t *Table, opt MappingOptions, axes ...Axis) (map[string]*CodeMap, error) {
	if len(axes) == 0 {
		for _, a := range StandardAxes() {
			if t.HasColumn(a.CodeColumn) && t.HasColumn(a.TextColumn) {
				axes = append(axes, a)
			}
		}
	}
	out := make(map[string]*CodeMap, len(axes))
	for _, a := range axes {
		m, err := ExtractCodeMap(t, a, opt)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", a.Name, err)
		}
		out[a.Name] = m
	}
	return out, nil
}
