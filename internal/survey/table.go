package survey

import (
	"fmt"
	"strings"
)

// Value is a single cell. A null Value carries no text.
type Value struct {
	text  string
	valid bool
}

// Text returns a non-null Value holding s.
func Text(s string) Value { return Value{text: s, valid: true} }

// Null returns a null Value.
func Null() Value { return Value{} }

// IsNull reports whether the cell is missing.
func (v Value) IsNull() bool { return !v.valid }

// String returns the cell text, or "" for null.
func (v Value) String() string { return v.text }

// Table is an ordered, immutable collection of rows sharing one header.
// Every operation that changes shape or content returns a new Table.
type Table struct {
	Name    string
	columns []string
	index   map[string]int
	rows    [][]Value
	format  NumberFormat
}

// NewTable builds a table from a header and rows. Rows shorter than the
// header are padded with nulls; longer rows are truncated.
func NewTable(name string, columns []string, rows [][]Value) (*Table, error) {
	t := &Table{Name: name, columns: make([]string, len(columns)), index: make(map[string]int, len(columns))}
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if _, dup := t.index[c]; dup {
			return nil, &SchemaError{Table: name, Column: c, Reason: "duplicate column"}
		}
		t.columns[i] = c
		t.index[c] = i
	}
	t.rows = make([][]Value, len(rows))
	for i, r := range rows {
		t.rows[i] = fitRow(r, len(columns))
	}
	return t, nil
}

func fitRow(r []Value, n int) []Value {
	out := make([]Value, n)
	copy(out, r)
	return out
}

// derive returns an empty table with the same name and number format.
func (t *Table) derive(columns []string) *Table {
	nt := &Table{Name: t.Name, columns: columns, index: make(map[string]int, len(columns)), format: t.format}
	for i, c := range columns {
		nt.index[c] = i
	}
	return nt
}

// Columns returns a copy of the header.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether the header contains name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex resolves a column name or returns a *SchemaError.
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, &SchemaError{Table: t.Name, Column: name, Reason: "column not found"}
	}
	return i, nil
}

// Row returns a copy of row i.
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Value returns the cell at row i for column name.
func (t *Table) Value(i int, column string) (Value, error) {
	j, err := t.ColumnIndex(column)
	if err != nil {
		return Value{}, err
	}
	return t.rows[i][j], nil
}

// Number parses the cell at row i for column name using the table's
// number format. ok is false for null or non-numeric cells.
func (t *Table) Number(i int, column string) (x float64, ok bool, err error) {
	v, err := t.Value(i, column)
	if err != nil {
		return 0, false, err
	}
	if v.IsNull() {
		return 0, false, nil
	}
	x, ok = t.format.Parse(v.String())
	return x, ok, nil
}

// Format returns the number format used to parse numeric cells.
func (t *Table) Format() NumberFormat { return t.format }

// Distinct returns the distinct non-null values of a column in order of
// first appearance.
func (t *Table) Distinct(column string) ([]string, error) {
	j, err := t.ColumnIndex(column)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []string
	for _, r := range t.rows {
		v := r[j]
		if v.IsNull() {
			continue
		}
		if _, ok := seen[v.text]; ok {
			continue
		}
		seen[v.text] = struct{}{}
		out = append(out, v.text)
	}
	return out, nil
}

// KeepColumns returns a table containing only the named columns, in the
// order given.
func (t *Table) KeepColumns(names ...string) (*Table, error) {
	idx := make([]int, len(names))
	for k, n := range names {
		j, err := t.ColumnIndex(n)
		if err != nil {
			return nil, err
		}
		idx[k] = j
	}
	cols := make([]string, len(names))
	copy(cols, names)
	nt := t.derive(cols)
	nt.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		nr := make([]Value, len(idx))
		for k, j := range idx {
			nr[k] = r[j]
		}
		nt.rows[i] = nr
	}
	return nt, nil
}

// DropColumns removes the named columns. Names not present are ignored.
func (t *Table) DropColumns(names ...string) *Table {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var keep []string
	for _, c := range t.columns {
		if !drop[c] {
			keep = append(keep, c)
		}
	}
	nt, _ := t.KeepColumns(keep...)
	return nt
}

// DropCodeColumns removes every numeric code column (suffix _NUM), leaving
// only the text side of each axis pair.
func (t *Table) DropCodeColumns() *Table {
	var codes []string
	for _, c := range t.columns {
		if strings.HasSuffix(c, "_NUM") {
			codes = append(codes, c)
		}
	}
	return t.DropColumns(codes...)
}

// DropConstantColumns removes columns holding a single distinct value
// (null counts as a value).
func (t *Table) DropConstantColumns() *Table {
	var constant []string
	for j, c := range t.columns {
		seen := map[Value]struct{}{}
		for _, r := range t.rows {
			seen[r[j]] = struct{}{}
			if len(seen) > 1 {
				break
			}
		}
		if len(seen) <= 1 {
			constant = append(constant, c)
		}
	}
	return t.DropColumns(constant...)
}

// Filter returns a table with the rows for which keep returns true.
func (t *Table) Filter(keep func(i int) bool) *Table {
	nt := t.derive(t.Columns())
	for i, r := range t.rows {
		if keep(i) {
			nt.rows = append(nt.rows, r)
		}
	}
	return nt
}

// WithColumn returns a table with column name set from fn. An existing
// column is replaced; a new one is appended.
func (t *Table) WithColumn(name string, fn func(i int) Value) *Table {
	cols := t.Columns()
	j, exists := t.index[name]
	if !exists {
		cols = append(cols, name)
		j = len(cols) - 1
	}
	nt := t.derive(cols)
	nt.rows = make([][]Value, len(t.rows))
	for i, r := range t.rows {
		nr := fitRow(r, len(cols))
		nr[j] = fn(i)
		nt.rows[i] = nr
	}
	return nt
}

// AppendRows returns a table with rows added after the existing ones.
// Rows are padded or truncated to the header width.
func (t *Table) AppendRows(rows ...[]Value) *Table {
	nt := t.derive(t.Columns())
	nt.rows = make([][]Value, 0, len(t.rows)+len(rows))
	nt.rows = append(nt.rows, t.rows...)
	for _, r := range rows {
		nt.rows = append(nt.rows, fitRow(r, len(nt.columns)))
	}
	return nt
}

func (t *Table) String() string {
	return fmt.Sprintf("%s (%d rows x %d columns)", t.Name, len(t.rows), len(t.columns))
}
