package brfss

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/KaramelBytes/stubdecode/internal/survey"
)

const (
	ColClass        = "Class"
	ColLocationAbbr = "LocationAbbr"
	ColLocationDesc = "LocationDesc"
)

const (
	// ClassObesity is the Class of the weight status questions.
	ClassObesity = "Obesity / Weight Status"

	// QuestionAdultObesity is the adult obesity prevalence question.
	QuestionAdultObesity = "Percent of adults aged 18 years and older who have obesity"

	// RaceTotal labels the per-state median rows added by ObesityByState.
	RaceTotal = "Total"
)

// ObesityByState keeps the adult obesity rows that carry both a value and a
// Race/Ethnicity, then appends one Race/Ethnicity=Total row per
// (LocationAbbr, LocationDesc, YearStart) holding the median Data_Value of
// that group. Columns other than the group keys, Data_Value and
// Race/Ethnicity are null on the appended rows.
func ObesityByState(t *survey.Table) (*survey.Table, error) {
	for _, c := range []string{ColClass, ColQuestion, ColDataValue, ColRace, ColLocationAbbr, ColLocationDesc, ColYearStart} {
		if _, err := t.ColumnIndex(c); err != nil {
			return nil, err
		}
	}
	kept := t.Filter(func(i int) bool {
		cls, _ := t.Value(i, ColClass)
		q, _ := t.Value(i, ColQuestion)
		v, _ := t.Value(i, ColDataValue)
		r, _ := t.Value(i, ColRace)
		return !cls.IsNull() && cls.String() == ClassObesity &&
			!q.IsNull() && q.String() == QuestionAdultObesity &&
			!v.IsNull() && !r.IsNull()
	})

	type group struct {
		abbr, desc, year string
		values           []float64
	}
	groups := map[[3]string]*group{}
	for i := 0; i < kept.Len(); i++ {
		x, ok, _ := kept.Number(i, ColDataValue)
		if !ok {
			v, _ := kept.Value(i, ColDataValue)
			return nil, &survey.SchemaError{Table: t.Name, Column: ColDataValue, Row: i + 1,
				Reason: fmt.Sprintf("value %q is not numeric", v.String())}
		}
		a, _ := kept.Value(i, ColLocationAbbr)
		d, _ := kept.Value(i, ColLocationDesc)
		y, _ := kept.Value(i, ColYearStart)
		if a.IsNull() || d.IsNull() || y.IsNull() {
			continue
		}
		k := [3]string{a.String(), d.String(), y.String()}
		g := groups[k]
		if g == nil {
			g = &group{abbr: k[0], desc: k[1], year: k[2]}
			groups[k] = g
		}
		g.values = append(g.values, x)
	}

	ordered := make([]*group, 0, len(groups))
	for _, g := range groups {
		ordered = append(ordered, g)
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.abbr != b.abbr {
			return a.abbr < b.abbr
		}
		if a.desc != b.desc {
			return a.desc < b.desc
		}
		ya, errA := strconv.ParseFloat(a.year, 64)
		yb, errB := strconv.ParseFloat(b.year, 64)
		if errA == nil && errB == nil && ya != yb {
			return ya < yb
		}
		return a.year < b.year
	})

	cols := kept.Columns()
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		pos[c] = i
	}
	rows := make([][]survey.Value, 0, len(ordered))
	for _, g := range ordered {
		row := make([]survey.Value, len(cols))
		for i := range row {
			row[i] = survey.Null()
		}
		row[pos[ColLocationAbbr]] = survey.Text(g.abbr)
		row[pos[ColLocationDesc]] = survey.Text(g.desc)
		row[pos[ColYearStart]] = survey.Text(g.year)
		row[pos[ColRace]] = survey.Text(RaceTotal)
		row[pos[ColDataValue]] = survey.Text(strconv.FormatFloat(median(g.values), 'f', -1, 64))
		rows = append(rows, row)
	}
	return kept.AppendRows(rows...), nil
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
