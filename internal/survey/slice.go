package survey

import (
	"fmt"
	"sort"
	"strings"
)

// Condition keeps rows whose numeric Column equals Code exactly.
type Condition struct {
	Column string
	Code   float64
}

func (c Condition) String() string { return c.Column + "=" + formatCode(c.Code) }

// Key identifies one cross-tabulation. Nil fields are not filtered.
type Key struct {
	Unit     *float64 `yaml:"unit,omitempty"`
	Year     *float64 `yaml:"year,omitempty"`
	StubName *float64 `yaml:"stub_name,omitempty"`
}

// Code is a helper for building Key literals.
func Code(c float64) *float64 { return &c }

// Conditions expands the key into column equality conditions.
func (k Key) Conditions() []Condition {
	var out []Condition
	if k.Unit != nil {
		out = append(out, Condition{Column: AxisUnit.CodeColumn, Code: *k.Unit})
	}
	if k.Year != nil {
		out = append(out, Condition{Column: AxisYear.CodeColumn, Code: *k.Year})
	}
	if k.StubName != nil {
		out = append(out, Condition{Column: AxisStubName.CodeColumn, Code: *k.StubName})
	}
	return out
}

// Merge returns k with every nil field taken from fallback.
func (k Key) Merge(fallback Key) Key {
	if k.Unit == nil {
		k.Unit = fallback.Unit
	}
	if k.Year == nil {
		k.Year = fallback.Year
	}
	if k.StubName == nil {
		k.StubName = fallback.StubName
	}
	return k
}

// Source is anything slices can be selected from: a Table or a Slice.
type Source interface {
	Table() *Table
	Indices() []int
}

// Table lets a *Table act as a Source covering all of its rows.
func (t *Table) Table() *Table { return t }

// Indices returns every row index of the table.
func (t *Table) Indices() []int {
	out := make([]int, t.Len())
	for i := range out {
		out[i] = i
	}
	return out
}

// Slice is a non-owning, read-only view of selected rows of a Table.
// Call Copy before deriving new columns from it.
type Slice struct {
	table      *Table
	rows       []int
	conditions []Condition
}

// Table returns the underlying table.
func (s *Slice) Table() *Table { return s.table }

// Indices returns the selected row indices of the underlying table.
func (s *Slice) Indices() []int {
	out := make([]int, len(s.rows))
	copy(out, s.rows)
	return out
}

// Len returns the number of selected rows.
func (s *Slice) Len() int { return len(s.rows) }

// Conditions returns every condition that produced this slice.
func (s *Slice) Conditions() []Condition {
	out := make([]Condition, len(s.conditions))
	copy(out, s.conditions)
	return out
}

func (s *Slice) String() string {
	parts := make([]string, len(s.conditions))
	for i, c := range s.conditions {
		parts[i] = c.String()
	}
	return fmt.Sprintf("%s[%s] (%d rows)", s.table.Name, strings.Join(parts, ","), len(s.rows))
}

// Copy materializes the slice as an independent Table. Later changes to
// the copy never reach the source table.
func (s *Slice) Copy() *Table {
	nt := s.table.derive(s.table.Columns())
	nt.rows = make([][]Value, len(s.rows))
	for k, i := range s.rows {
		nt.rows[k] = s.table.Row(i)
	}
	return nt
}

// Select keeps the rows of src matching every condition. Null or
// non-numeric codes never match. Selecting from a Slice narrows it.
func Select(src Source, conds ...Condition) (*Slice, error) {
	t := src.Table()
	cols := make([]int, len(conds))
	for k, c := range conds {
		j, err := t.ColumnIndex(c.Column)
		if err != nil {
			return nil, err
		}
		cols[k] = j
	}
	s := &Slice{table: t}
	if prev, ok := src.(*Slice); ok {
		s.conditions = prev.Conditions()
	}
	s.conditions = append(s.conditions, conds...)
	for _, i := range src.Indices() {
		if matches(t, i, cols, conds) {
			s.rows = append(s.rows, i)
		}
	}
	return s, nil
}

// SelectKey is Select over a Key plus any extra conditions.
func SelectKey(src Source, key Key, extra ...Condition) (*Slice, error) {
	return Select(src, append(key.Conditions(), extra...)...)
}

func matches(t *Table, i int, cols []int, conds []Condition) bool {
	for k, j := range cols {
		v := t.rows[i][j]
		if v.IsNull() {
			return false
		}
		x, ok := t.format.Parse(v.String())
		if !ok || x != conds[k].Code {
			return false
		}
	}
	return true
}

// SplitBy partitions a source into one slice per distinct code of column,
// ordered by code. Rows with a null or non-numeric code are left out.
func SplitBy(src Source, column string) ([]*Slice, error) {
	t := src.Table()
	j, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	var base []Condition
	if prev, ok := src.(*Slice); ok {
		base = prev.Conditions()
	}
	groups := map[float64]*Slice{}
	for _, i := range src.Indices() {
		v := t.rows[i][j]
		if v.IsNull() {
			continue
		}
		x, ok := t.format.Parse(v.String())
		if !ok {
			continue
		}
		g := groups[x]
		if g == nil {
			conds := make([]Condition, len(base), len(base)+1)
			copy(conds, base)
			g = &Slice{table: t, conditions: append(conds, Condition{Column: column, Code: x})}
			groups[x] = g
		}
		g.rows = append(g.rows, i)
	}
	codes := make([]float64, 0, len(groups))
	for c := range groups {
		codes = append(codes, c)
	}
	sort.Float64s(codes)
	out := make([]*Slice, len(codes))
	for k, c := range codes {
		out[k] = groups[c]
	}
	return out, nil
}
