package survey

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/stubdecode/internal/testutil"
)

const obesityCSV = `INDICATOR,PANEL,PANEL_NUM,UNIT,UNIT_NUM,STUB_NAME,STUB_NAME_NUM,STUB_LABEL,STUB_LABEL_NUM,YEAR,YEAR_NUM,AGE,AGE_NUM,ESTIMATE,SE,FLAG
Obesity,Grade 1 obesity,4,"Percent of population, age-adjusted",1,Sex and race and Hispanic origin,4,Male: Not Hispanic or Latino: White only,3.111,2015-2018,10,20 years and over,1.1,34.2,1.5,
Obesity,Grade 1 obesity,4,"Percent of population, age-adjusted",1,Sex and race and Hispanic origin,4,Female: Not Hispanic or Latino: White only,3.112,2015-2018,10,20 years and over,1.1,38.1,1.7,.
Obesity,Grade 1 obesity,4,"Percent of population, age-adjusted",1,Sex and race and Hispanic origin,4,Male: Not Hispanic or Latino: Asian only,3.131,2015-2018,10,20 years and over,1.1,,,*
Obesity,Grade 2 obesity,5,"Percent of population, age-adjusted",1,Sex and race and Hispanic origin,4,Male: Not Hispanic or Latino: White only,3.111,2015-2018,10,20 years and over,1.1,10.1,0.9,
Obesity,Grade 1 obesity,4,"Percent of population, age-adjusted",1,Sex and race and Hispanic origin,4,Other,9.999,2015-2018,10,20 years and over,1.1,20.0,2.0,
Obesity,Grade 1 obesity,4,"Percent of population, crude",2,Sex and age,6,Male: 20-34 years,6.11,2015-2018,10,20-34 years,2.1,30.0,2.2,
Obesity,Grade 1 obesity,4,"Percent of population, age-adjusted",1,Sex and race and Hispanic origin,4,Male: Not Hispanic or Latino: White only,3.111,2013-2016,9,20 years and over,1.1,30.5,1.4,
Obesity,Grade 1 obesity,4,"Percent of population, crude",2,Sex and age,6,Female: 20-34 years,6.21,2015-2018,10,20-34 years,2.1,31.0,2.5,*
`

func loadFixture(t *testing.T) *Table {
	t.Helper()
	tbl, err := Read(strings.NewReader(obesityCSV), "obesity.csv", DefaultLoadOptions())
	require.NoError(t, err)
	require.Equal(t, 8, tbl.Len())
	return tbl
}

func snapshot(t *Table) [][]Value {
	out := make([][]Value, t.Len())
	for i := range out {
		out[i] = t.Row(i)
	}
	return out
}

func builtin(t *testing.T, name string) *LookupTable {
	t.Helper()
	reg, err := BuiltinRegistry()
	require.NoError(t, err)
	lt, err := reg.Get(name)
	require.NoError(t, err)
	return lt
}

func TestLoadFileAndNulls(t *testing.T) {
	p := filepath.Join(t.TempDir(), "obesity.csv")
	require.NoError(t, os.WriteFile(p, []byte(obesityCSV), 0o644))

	tbl, err := Load(p, DefaultLoadOptions())
	require.NoError(t, err)
	assert.Equal(t, "obesity.csv", tbl.Name)
	assert.Equal(t, 16, len(tbl.Columns()))

	flag, err := tbl.Value(0, "FLAG")
	require.NoError(t, err)
	assert.True(t, flag.IsNull())

	unit, err := tbl.Value(0, "UNIT")
	require.NoError(t, err)
	assert.Equal(t, "Percent of population, age-adjusted", unit.String())

	_, err = tbl.Value(0, "NOPE")
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "NOPE", se.Column)
}

func TestLoadMaxRowsAndDuplicateHeader(t *testing.T) {
	opt := DefaultLoadOptions()
	opt.MaxRows = 3
	tbl, err := Read(strings.NewReader(obesityCSV), "obesity.csv", opt)
	require.NoError(t, err)
	assert.Equal(t, 3, tbl.Len())

	_, err = Read(strings.NewReader("A,B,A\n1,2,3\n"), "dup.csv", DefaultLoadOptions())
	var se *SchemaError
	require.True(t, errors.As(err, &se))

	_, err = Read(strings.NewReader(""), "empty.csv", DefaultLoadOptions())
	require.True(t, errors.As(err, &se))
}

func TestNumberFormat(t *testing.T) {
	cases := []struct {
		in   string
		f    NumberFormat
		want float64
		ok   bool
	}{
		{"3.111", NumberFormat{}, 3.111, true},
		{"34.2%", NumberFormat{}, 34.2, true},
		{"0,5", NumberFormat{}, 0.5, true},
		{"1.000,5", NumberFormat{}, 1000.5, true},
		{"1,234.5", NumberFormat{}, 1234.5, true},
		{"1e3", NumberFormat{}, 1000, true},
		{"3,111", NumberFormat{Decimal: ','}, 3.111, true},
		{"*", NumberFormat{}, 0, false},
		{"", NumberFormat{}, 0, false},
	}
	for _, c := range cases {
		got, ok := c.f.Parse(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		if c.ok {
			assert.InDelta(t, c.want, got, 1e-9, c.in)
		}
	}
}

func TestExtractCodeMapEveryCodeHasOneLabel(t *testing.T) {
	tbl := loadFixture(t)
	maps, err := ExtractMappings(tbl, MappingOptions{})
	require.NoError(t, err)
	require.Len(t, maps, 6)

	units := maps["unit"]
	assert.Equal(t, []float64{1, 2}, units.Codes())
	l, ok := units.Label(2)
	require.True(t, ok)
	assert.Equal(t, "Percent of population, crude", l)
	c, ok := units.Code("Percent of population, age-adjusted")
	require.True(t, ok)
	assert.Equal(t, 1.0, c)

	// every code in the column is mapped, every label has a row
	for _, axis := range StandardAxes() {
		m := maps[axis.Name]
		labels, err := tbl.Distinct(axis.TextColumn)
		require.NoError(t, err)
		for i := 0; i < tbl.Len(); i++ {
			code, ok, err := tbl.Number(i, axis.CodeColumn)
			require.NoError(t, err)
			require.True(t, ok)
			_, mapped := m.Label(code)
			assert.True(t, mapped, "%s code %v", axis.Name, code)
		}
		for _, code := range m.Codes() {
			l, _ := m.Label(code)
			assert.Contains(t, labels, l)
		}
	}
}

func TestExtractCodeMapConflictPolicy(t *testing.T) {
	data := "UNIT_NUM,UNIT\n1,Percent\n2,Count\n1,Percentage\n"
	tbl, err := Read(strings.NewReader(data), "conflict.csv", DefaultLoadOptions())
	require.NoError(t, err)

	_, err = ExtractCodeMap(tbl, AxisUnit, MappingOptions{Policy: ConflictReject})
	var amb *AmbiguousCodeError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, 1.0, amb.Code)
	assert.Equal(t, "Percent", amb.First)
	assert.Equal(t, "Percentage", amb.Second)

	m, err := ExtractCodeMap(tbl, AxisUnit, MappingOptions{Policy: ConflictLastWins, Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	l, _ := m.Label(1)
	assert.Equal(t, "Percentage", l)
	assert.Equal(t, 2, m.Len())
}

func TestExtractCodeMapErrors(t *testing.T) {
	tbl, err := Read(strings.NewReader("UNIT_NUM,UNIT\nx,Percent\n"), "bad.csv", DefaultLoadOptions())
	require.NoError(t, err)
	_, err = ExtractCodeMap(tbl, AxisUnit, MappingOptions{})
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Row)

	_, err = ExtractMappings(tbl, MappingOptions{}, AxisPanel)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "PANEL_NUM", se.Column)
}

func TestParseConflictPolicy(t *testing.T) {
	p, err := ParseConflictPolicy("last-wins")
	require.NoError(t, err)
	assert.Equal(t, ConflictLastWins, p)
	p, err = ParseConflictPolicy("")
	require.NoError(t, err)
	assert.Equal(t, ConflictReject, p)
	_, err = ParseConflictPolicy("first-wins")
	assert.Error(t, err)
}

func TestMiddleYears(t *testing.T) {
	tbl := loadFixture(t)
	years, err := ExtractCodeMap(tbl, AxisYear, MappingOptions{})
	require.NoError(t, err)
	mids, err := MiddleYears(years)
	require.NoError(t, err)
	assert.Equal(t, map[float64]int{9: 2014, 10: 2016}, mids)

	bad, err := Read(strings.NewReader("YEAR_NUM,YEAR\n1,2017-March 2020\n"), "bad.csv", DefaultLoadOptions())
	require.NoError(t, err)
	years, err = ExtractCodeMap(bad, AxisYear, MappingOptions{})
	require.NoError(t, err)
	_, err = MiddleYears(years)
	assert.Error(t, err)
}

func TestSelectIsAPureFilter(t *testing.T) {
	tbl := loadFixture(t)
	before := snapshot(tbl)
	cols := tbl.Columns()

	key := Key{Unit: Code(1), Year: Code(10), StubName: Code(4)}
	s, err := SelectKey(tbl, key)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
	for _, i := range s.Indices() {
		for _, c := range key.Conditions() {
			x, ok, err := tbl.Number(i, c.Column)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, c.Code, x)
		}
	}

	// narrowing a slice keeps a subset and accumulates conditions
	grade1, err := Select(s, Condition{Column: "PANEL_NUM", Code: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, grade1.Len())
	assert.Subset(t, s.Indices(), grade1.Indices())
	assert.Len(t, grade1.Conditions(), 4)

	// independent selections do not interfere
	other, err := SelectKey(tbl, Key{Unit: Code(2)})
	require.NoError(t, err)
	assert.Equal(t, 2, other.Len())
	assert.Equal(t, 5, s.Len())

	assert.Equal(t, before, snapshot(tbl))
	assert.Equal(t, cols, tbl.Columns())
}

func TestSelectUnspecifiedAxesAndMissingColumn(t *testing.T) {
	tbl := loadFixture(t)
	all, err := SelectKey(tbl, Key{})
	require.NoError(t, err)
	assert.Equal(t, tbl.Len(), all.Len())

	_, err = Select(tbl, Condition{Column: "REGION_NUM", Code: 1})
	var se *SchemaError
	require.True(t, errors.As(err, &se))
}

func TestSplitBy(t *testing.T) {
	tbl := loadFixture(t)
	s, err := SelectKey(tbl, Key{Unit: Code(1), Year: Code(10)})
	require.NoError(t, err)
	parts, err := SplitBy(s, "PANEL_NUM")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 4, parts[0].Len())
	assert.Equal(t, 1, parts[1].Len())
	last := parts[1].Conditions()
	assert.Equal(t, Condition{Column: "PANEL_NUM", Code: 5}, last[len(last)-1])
}

func TestDecodeSexRace(t *testing.T) {
	tbl := loadFixture(t)
	before := snapshot(tbl)
	lt := builtin(t, "sex-race-obesity")

	s, err := SelectKey(tbl, lt.Slice)
	require.NoError(t, err)
	dec, err := NewDecoder(testutil.NewTestLogger(t)).Decode(s, lt)
	require.NoError(t, err)

	out := dec.Table
	require.Equal(t, 5, out.Len())
	assert.Equal(t, append(tbl.Columns(), "Gender", "Race"), out.Columns())

	g, _ := out.Value(0, "Gender")
	r, _ := out.Value(0, "Race")
	e, _ := out.Value(0, "ESTIMATE")
	assert.Equal(t, "Male", g.String())
	assert.Equal(t, "White", r.String())
	assert.Equal(t, "34.2", e.String())

	// 9.999 has no entry: nulls, row kept
	row := -1
	for i := 0; i < out.Len(); i++ {
		v, _ := out.Value(i, "STUB_LABEL_NUM")
		if v.String() == "9.999" {
			row = i
		}
	}
	require.NotEqual(t, -1, row)
	g, _ = out.Value(row, "Gender")
	r, _ = out.Value(row, "Race")
	assert.True(t, g.IsNull())
	assert.True(t, r.IsNull())

	unmapped := dec.Unmapped()
	require.Len(t, unmapped, 1)
	assert.Equal(t, 9.999, unmapped[0].Code)
	assert.Equal(t, 1, unmapped[0].Rows)
	assert.Error(t, dec.Warnings())
	assert.NotEmpty(t, dec.RunID)

	// the source table is untouched
	assert.Equal(t, before, snapshot(tbl))
	assert.False(t, tbl.HasColumn("Gender"))
}

func TestDecodeIsIdempotent(t *testing.T) {
	tbl := loadFixture(t)
	lt := builtin(t, "age-sex-obesity")
	s, err := SelectKey(tbl, lt.Slice)
	require.NoError(t, err)
	d := NewDecoder(nil)
	a, err := d.Decode(s, lt)
	require.NoError(t, err)
	b, err := d.Decode(s, lt)
	require.NoError(t, err)
	assert.Equal(t, snapshot(a.Table), snapshot(b.Table))
	assert.Equal(t, a.Table.Columns(), b.Table.Columns())
	assert.NoError(t, a.Warnings())

	age, _ := a.Table.Value(1, "Age")
	gender, _ := a.Table.Value(1, "Gender")
	assert.Equal(t, "20-34 years", age.String())
	assert.Equal(t, "Female", gender.String())
}

func TestDecodeSchemaErrors(t *testing.T) {
	tbl := loadFixture(t)
	lt := builtin(t, "sex-race-obesity")
	s, err := SelectKey(tbl, lt.Slice)
	require.NoError(t, err)
	dec, err := NewDecoder(nil).Decode(s, lt)
	require.NoError(t, err)

	// decoding an already decoded table collides with the derived columns
	again, err := SelectKey(dec.Table, Key{})
	require.NoError(t, err)
	_, err = NewDecoder(nil).Decode(again, lt)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "Gender", se.Column)

	narrow, err := tbl.KeepColumns("UNIT_NUM", "ESTIMATE")
	require.NoError(t, err)
	s2, err := SelectKey(narrow, Key{})
	require.NoError(t, err)
	_, err = NewDecoder(nil).Decode(s2, lt)
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "STUB_LABEL_NUM", se.Column)
}

func TestClassify(t *testing.T) {
	tbl := loadFixture(t)
	part, err := DefaultQualityPolicy().Classify(tbl)
	require.NoError(t, err)
	assert.Equal(t, 6, part.Valid.Len())
	assert.Equal(t, 2, part.Invalid.Len())
	require.Len(t, part.Reasons, 2)
	assert.Equal(t, 3, part.Reasons[0].Row)
	assert.Contains(t, part.Reasons[0].Reason, "estimate missing")
	// flagged with a numeric estimate is still invalid
	assert.Equal(t, 8, part.Reasons[1].Row)
	assert.Contains(t, part.Reasons[1].Reason, `suppression flag "*"`)
	assert.Error(t, part.Warnings())
}

func TestClassifyConfigurableSentinel(t *testing.T) {
	data := "ESTIMATE,FLAG\n1.0,-\n2.0,.\n3.0,\n"
	tbl, err := Read(strings.NewReader(data), "flags.csv", DefaultLoadOptions())
	require.NoError(t, err)

	p := DefaultQualityPolicy()
	part, err := p.Classify(tbl)
	require.NoError(t, err)
	assert.Equal(t, 2, part.Valid.Len())

	p.NoSuppression = []string{"-", "."}
	part, err = p.Classify(tbl)
	require.NoError(t, err)
	assert.Equal(t, 3, part.Valid.Len())
	assert.NoError(t, part.Warnings())

	noFlag, err := tbl.KeepColumns("ESTIMATE")
	require.NoError(t, err)
	part, err = DefaultQualityPolicy().Classify(noFlag)
	require.NoError(t, err)
	assert.Equal(t, 3, part.Valid.Len())

	_, err = DefaultQualityPolicy().Classify(tbl.DropColumns("ESTIMATE"))
	var se *SchemaError
	require.True(t, errors.As(err, &se))
}

func TestDecodeAndClassifyWhiteMaleRow(t *testing.T) {
	data := "STUB_LABEL_NUM,UNIT_NUM,YEAR_NUM,STUB_NAME_NUM,ESTIMATE,FLAG\n3.111,1,10,4,34.2,\n"
	tbl, err := Read(strings.NewReader(data), "one.csv", DefaultLoadOptions())
	require.NoError(t, err)
	lt := builtin(t, "sex-race-obesity")
	s, err := SelectKey(tbl, lt.Slice)
	require.NoError(t, err)
	dec, err := NewDecoder(nil).Decode(s, lt)
	require.NoError(t, err)
	part, err := DefaultQualityPolicy().Classify(dec.Table)
	require.NoError(t, err)
	require.Equal(t, 1, part.Valid.Len())
	g, _ := part.Valid.Value(0, "Gender")
	r, _ := part.Valid.Value(0, "Race")
	assert.Equal(t, "Male", g.String())
	assert.Equal(t, "White", r.String())
}

func TestTableColumnOps(t *testing.T) {
	tbl := loadFixture(t)
	text := tbl.DropCodeColumns()
	for _, c := range text.Columns() {
		assert.False(t, strings.HasSuffix(c, "_NUM"), c)
	}
	assert.True(t, text.HasColumn("STUB_LABEL"))

	varying := tbl.DropConstantColumns()
	assert.False(t, varying.HasColumn("INDICATOR"))
	assert.True(t, varying.HasColumn("ESTIMATE"))
	assert.Equal(t, tbl.Len(), varying.Len())
}

const childrenCSV = `PANEL,PANEL_NUM,UNIT,UNIT_NUM,STUB_NAME,STUB_NAME_NUM,STUB_LABEL,STUB_LABEL_NUM,YEAR,YEAR_NUM,AGE,AGE_NUM,ESTIMATE,SE,FLAG
Obesity,3,"Percent of population, crude",2,Percent of poverty level,7,Below 100%,7.1,2015-2018,10,2-5 years,1.1,18.0,2.1,
Obesity,3,"Percent of population, crude",2,Percent of poverty level,7,400% or more,7.4,2015-2018,10,6-11 years,1.2,9.5,1.3,
Obesity,3,"Percent of population, age-adjusted",1,Percent of poverty level,7,Below 100%,7.1,2015-2018,10,2-19 years,1.0,20.1,1.1,
Obesity,3,"Percent of population, crude",2,Race and Hispanic origin,2,Hispanic or Latino,2.4,2015-2018,10,2-19 years,1.0,25.6,1.2,
Obesity,3,"Percent of population, crude",2,Sex,1,Male,1.1,2015-2018,10,2-19 years,1.0,20.5,0.9,
`

func TestDecodePovertySliceStaysInItsStub(t *testing.T) {
	tbl, err := Read(strings.NewReader(childrenCSV), "children.csv", DefaultLoadOptions())
	require.NoError(t, err)
	lt := builtin(t, "age-poverty-race")
	assert.True(t, lt.Unverified)
	require.NotNil(t, lt.Slice.StubName, "default slice must pin a stub name")

	s, err := SelectKey(tbl, lt.Slice)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
	dec, err := NewDecoder(testutil.NewTestLogger(t)).Decode(s, lt)
	require.NoError(t, err)
	assert.NoError(t, dec.Warnings())

	p0, _ := dec.Table.Value(0, "Poverty")
	p1, _ := dec.Table.Value(1, "Poverty")
	age, _ := dec.Table.Value(1, "AGE")
	race, _ := dec.Table.Value(0, "Race")
	assert.Equal(t, "Below 100%", p0.String())
	assert.Equal(t, "400% or more", p1.String())
	assert.Equal(t, "6-11 years", age.String())
	assert.True(t, race.IsNull())

	// The race stub decodes through the same table when selected explicitly.
	key := Key{StubName: Code(2)}.Merge(lt.Slice)
	s, err = SelectKey(tbl, key)
	require.NoError(t, err)
	dec, err = NewDecoder(nil).Decode(s, lt)
	require.NoError(t, err)
	require.Equal(t, 1, dec.Table.Len())
	race, _ = dec.Table.Value(0, "Race")
	assert.Equal(t, "Hispanic or Latino", race.String())
}

func TestDecodeWarnsOnMalformedCodes(t *testing.T) {
	data := "STUB_LABEL_NUM,ESTIMATE\n3.111,34.2\nn/a-code,10\nn/a-code,11\n,12\n"
	tbl, err := Read(strings.NewReader(data), "malformed.csv", DefaultLoadOptions())
	require.NoError(t, err)
	s, err := Select(tbl)
	require.NoError(t, err)
	dec, err := NewDecoder(nil).Decode(s, builtin(t, "sex-race-obesity"))
	require.NoError(t, err)

	assert.Equal(t, 4, dec.Table.Len())
	assert.Equal(t, 1, dec.NullCodes)
	bad := dec.Malformed()
	require.Len(t, bad, 1)
	assert.Equal(t, "n/a-code", bad[0].Text)
	assert.Equal(t, 2, bad[0].Rows)
	assert.Empty(t, dec.Unmapped())
	require.Error(t, dec.Warnings())
	assert.Contains(t, dec.Warnings().Error(), "not a numeric code")

	g, _ := dec.Table.Value(1, "Gender")
	assert.True(t, g.IsNull())
}

func TestWithMiddleYear(t *testing.T) {
	tbl := loadFixture(t)
	years, err := ExtractCodeMap(tbl, AxisYear, MappingOptions{})
	require.NoError(t, err)
	mids, err := MiddleYears(years)
	require.NoError(t, err)

	out, err := WithMiddleYear(tbl, mids)
	require.NoError(t, err)
	first, _ := out.Value(0, MiddleYearColumn)
	older, _ := out.Value(6, MiddleYearColumn)
	assert.Equal(t, "2016", first.String())
	assert.Equal(t, "2014", older.String())
	assert.False(t, tbl.HasColumn(MiddleYearColumn))

	_, err = WithMiddleYear(out, mids)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	_, err = WithMiddleYear(tbl.DropColumns("YEAR_NUM"), mids)
	require.ErrorAs(t, err, &se)
}

func TestAppendRows(t *testing.T) {
	tbl, err := NewTable("t", []string{"a", "b"}, [][]Value{{Text("1"), Text("2")}})
	require.NoError(t, err)
	out := tbl.AppendRows([]Value{Text("3")})
	assert.Equal(t, 1, tbl.Len())
	require.Equal(t, 2, out.Len())
	assert.Equal(t, []Value{Text("3"), Null()}, out.Row(1))
}
