package survey

import (
	"fmt"
	"strconv"
	"strings"
)

// MiddleYears maps each year code to the midpoint of its label. Labels are
// either a single year ("2018") or an inclusive range ("2015-2018"); the
// midpoint is truncated toward zero, so 2015-2018 maps to 2016.
func MiddleYears(years *CodeMap) (map[float64]int, error) {
	out := make(map[float64]int, years.Len())
	for _, code := range years.Codes() {
		label, _ := years.Label(code)
		mid, err := middleYear(label)
		if err != nil {
			return nil, fmt.Errorf("year code %s: %w", formatCode(code), err)
		}
		out[code] = mid
	}
	return out, nil
}

func middleYear(label string) (int, error) {
	s := strings.TrimSpace(label)
	first, second, isRange := strings.Cut(s, "-")
	a, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return 0, fmt.Errorf("unrecognized year label %q", label)
	}
	if !isRange {
		return a, nil
	}
	b, err := strconv.Atoi(strings.TrimSpace(second))
	if err != nil {
		return 0, fmt.Errorf("unrecognized year label %q", label)
	}
	return (a + b) / 2, nil
}

// MiddleYearColumn is the column added by WithMiddleYear.
const MiddleYearColumn = "MiddleYear"

// WithMiddleYear returns t with a MiddleYear column mapped from YEAR_NUM
// through mids. Rows whose year code is null, non-numeric or absent from
// mids get null.
func WithMiddleYear(t *Table, mids map[float64]int) (*Table, error) {
	if _, err := t.ColumnIndex(AxisYear.CodeColumn); err != nil {
		return nil, err
	}
	if t.HasColumn(MiddleYearColumn) {
		return nil, &SchemaError{Table: t.Name, Column: MiddleYearColumn, Reason: "derived column already exists"}
	}
	return t.WithColumn(MiddleYearColumn, func(i int) Value {
		code, ok, _ := t.Number(i, AxisYear.CodeColumn)
		if !ok {
			return Null()
		}
		y, ok := mids[code]
		if !ok {
			return Null()
		}
		return Text(strconv.Itoa(y))
	}), nil
}
