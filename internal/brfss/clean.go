// Package brfss cleans CDC behavioral risk factor (BRFSS) exports before
// they are summarized alongside the NHANES obesity tables.
package brfss

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/KaramelBytes/stubdecode/internal/survey"
)

// Column names used by the CDC "Nutrition, Physical Activity, and Obesity"
// BRFSS export.
const (
	ColGeoLocation = "GeoLocation"
	ColDataValue   = "Data_Value"
	ColAge         = "Age(years)"
	ColGender      = "Gender"
	ColRace        = "Race/Ethnicity"
	ColIncome      = "Income"
	ColYearStart   = "YearStart"
	ColYearEnd     = "YearEnd"
	ColTopic       = "Topic"
	ColQuestion    = "Question"
)

// MissingData fills demographic cells that were left empty.
const MissingData = "Missing Data"

// TopicPhysicalActivity is the topic of the leisure-time activity questions.
const TopicPhysicalActivity = "Physical Activity - Behavior"

// Options controls Clean. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// DropColumns are removed when present.
	DropColumns []string
	// Required columns: a null in any of them drops the row.
	Required []string
	// Demographics: a row with all of them null is dropped.
	Demographics []string
	// Fill columns get FillValue in place of null.
	Fill      []string
	FillValue string
	Logger    *slog.Logger
}

// DefaultOptions mirrors the cleaning applied to the physical activity
// dataset.
func DefaultOptions() Options {
	return Options{
		DropColumns: []string{
			"Data_Value_Unit", "Data_Value_Footnote_Symbol", "Data_Value_Footnote",
			"DataValueTypeID", "QuestionID", "TopicID", "ClassID",
		},
		Required:     []string{ColGeoLocation, ColDataValue},
		Demographics: []string{ColAge, ColGender, ColRace},
		Fill:         []string{ColAge, ColGender, ColRace, ColIncome},
		FillValue:    MissingData,
	}
}

// Result is a cleaned table plus what was removed.
type Result struct {
	Table          *survey.Table
	DroppedColumns []string
	// DroppedRequired counts rows missing a required value.
	DroppedRequired int
	// DroppedDemographics counts rows with no demographic breakdown.
	DroppedDemographics int
	// YearEndDropped is set when YearEnd always equalled YearStart.
	YearEndDropped bool
}

// Summary is a one-line description of the cleaning outcome.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d rows x %d columns after cleaning (%d dropped for missing values, %d without demographics)",
		r.Table.Len(), len(r.Table.Columns()), r.DroppedRequired, r.DroppedDemographics)
}

// Clean applies opt to t and returns a new table; t is not modified.
// A required column absent from t is a SchemaError.
func Clean(t *survey.Table, opt Options) (*Result, error) {
	logger := opt.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	res := &Result{}
	for _, c := range opt.DropColumns {
		if t.HasColumn(c) {
			res.DroppedColumns = append(res.DroppedColumns, c)
		}
	}
	out := t.DropColumns(res.DroppedColumns...)

	for _, c := range opt.Required {
		if _, err := out.ColumnIndex(c); err != nil {
			return nil, fmt.Errorf("required column: %w", err)
		}
	}
	before := out.Len()
	out = out.Filter(func(i int) bool {
		for _, c := range opt.Required {
			if v, _ := out.Value(i, c); v.IsNull() {
				return false
			}
		}
		return true
	})
	res.DroppedRequired = before - out.Len()

	var demo []string
	for _, c := range opt.Demographics {
		if out.HasColumn(c) {
			demo = append(demo, c)
		}
	}
	if len(demo) > 0 {
		before = out.Len()
		out = out.Filter(func(i int) bool {
			for _, c := range demo {
				if v, _ := out.Value(i, c); !v.IsNull() {
					return true
				}
			}
			return false
		})
		res.DroppedDemographics = before - out.Len()
	}

	for _, c := range opt.Fill {
		if !out.HasColumn(c) {
			continue
		}
		cur := out
		out = out.WithColumn(c, func(i int) survey.Value {
			v, _ := cur.Value(i, c)
			if v.IsNull() {
				return survey.Text(opt.FillValue)
			}
			return v
		})
	}

	if out.HasColumn(ColYearStart) && out.HasColumn(ColYearEnd) && sameYears(out) {
		out = out.DropColumns(ColYearEnd)
		res.YearEndDropped = true
	}
	res.Table = out
	logger.Debug("cleaned brfss table",
		"table", t.Name,
		"rows_in", t.Len(),
		"rows_out", out.Len(),
		"dropped_columns", len(res.DroppedColumns),
		"year_end_dropped", res.YearEndDropped)
	return res, nil
}

// sameYears reports whether YearEnd equals YearStart on every row. A null
// on either side never compares equal.
func sameYears(t *survey.Table) bool {
	for i := 0; i < t.Len(); i++ {
		a, _, _ := t.Number(i, ColYearStart)
		b, _, _ := t.Number(i, ColYearEnd)
		sa, _ := t.Value(i, ColYearStart)
		sb, _ := t.Value(i, ColYearEnd)
		if sa.IsNull() || sb.IsNull() {
			return false
		}
		if a != b || (a == 0 && sa.String() != sb.String()) {
			return false
		}
	}
	return true
}

// FilterTopic keeps rows whose Topic equals topic and whose Question
// contains questionContains (case-insensitive). An empty questionContains
// matches every question.
func FilterTopic(t *survey.Table, topic, questionContains string) (*survey.Table, error) {
	if _, err := t.ColumnIndex(ColTopic); err != nil {
		return nil, err
	}
	if questionContains != "" {
		if _, err := t.ColumnIndex(ColQuestion); err != nil {
			return nil, err
		}
	}
	needle := strings.ToLower(questionContains)
	return t.Filter(func(i int) bool {
		v, _ := t.Value(i, ColTopic)
		if v.IsNull() || v.String() != topic {
			return false
		}
		if needle == "" {
			return true
		}
		q, _ := t.Value(i, ColQuestion)
		return !q.IsNull() && strings.Contains(strings.ToLower(q.String()), needle)
	}), nil
}
