// Package dataset holds fingerprint samples as named, typed columns and
// provides the row selection, grouping and aggregation used to build
// evaluation scenarios.
package dataset

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Column names shared by fingerprint datasets.
const (
	ColumnX        = "x"
	ColumnY        = "y"
	ColumnFloor    = "floor"
	ColumnFilename = "filename"
)

// Table is an immutable-by-convention set of equally long columns.
// Columns are either float64 or string valued. Operations never modify the
// receiver; they return new tables.
type Table struct {
	names   []string
	floats  map[string][]float64
	strings map[string][]string
	rows    int
}

// New creates an empty table with no columns.
func New() *Table {
	return &Table{
		floats:  make(map[string][]float64),
		strings: make(map[string][]string),
	}
}

// AddFloat appends a float column. The slice is copied.
func (t *Table) AddFloat(name string, values []float64) error {
	if err := t.checkNew(name, len(values)); err != nil {
		return err
	}
	t.names = append(t.names, name)
	t.floats[name] = append([]float64(nil), values...)
	t.rows = len(values)
	return nil
}

// AddString appends a string column. The slice is copied.
func (t *Table) AddString(name string, values []string) error {
	if err := t.checkNew(name, len(values)); err != nil {
		return err
	}
	t.names = append(t.names, name)
	t.strings[name] = append([]string(nil), values...)
	t.rows = len(values)
	return nil
}

func (t *Table) checkNew(name string, n int) error {
	if name == "" {
		return fmt.Errorf("column name must not be empty")
	}
	if t.Has(name) {
		return fmt.Errorf("column %q already exists", name)
	}
	if len(t.names) > 0 && n != t.rows {
		return fmt.Errorf("column %q has %d rows, table has %d", name, n, t.rows)
	}
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Columns returns the column names in insertion order.
func (t *Table) Columns() []string {
	return append([]string(nil), t.names...)
}

// Has reports whether the table has a column with the given name.
func (t *Table) Has(name string) bool {
	_, f := t.floats[name]
	_, s := t.strings[name]
	return f || s
}

// IsFloat reports whether name is a float column.
func (t *Table) IsFloat(name string) bool {
	_, ok := t.floats[name]
	return ok
}

// Float returns the values of a float column. The returned slice must not be
// modified.
func (t *Table) Float(name string) ([]float64, error) {
	v, ok := t.floats[name]
	if !ok {
		if _, isStr := t.strings[name]; isStr {
			return nil, fmt.Errorf("column %q is not numeric", name)
		}
		return nil, fmt.Errorf("column %q not found", name)
	}
	return v, nil
}

// String returns the values of a string column. The returned slice must not
// be modified.
func (t *Table) String(name string) ([]string, error) {
	v, ok := t.strings[name]
	if !ok {
		if _, isFloat := t.floats[name]; isFloat {
			return nil, fmt.Errorf("column %q is not a string column", name)
		}
		return nil, fmt.Errorf("column %q not found", name)
	}
	return v, nil
}

// ColumnsWithPrefix returns the float columns whose name starts with prefix,
// in table order.
func (t *Table) ColumnsWithPrefix(prefix string) []string {
	var out []string
	for _, name := range t.names {
		if _, ok := t.floats[name]; ok && strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out
}

// Matrix copies the named float columns into a dense rows x len(cols) matrix.
// gonum does not allow zero-sized dense matrices, so a table without rows
// yields a nil matrix.
func (t *Table) Matrix(cols []string) (*mat.Dense, error) {
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns selected")
	}
	data := make([][]float64, len(cols))
	for j, c := range cols {
		v, err := t.Float(c)
		if err != nil {
			return nil, err
		}
		data[j] = v
	}
	if t.rows == 0 {
		return nil, nil
	}
	m := mat.NewDense(t.rows, len(cols), nil)
	for j := range cols {
		m.SetCol(j, data[j])
	}
	return m, nil
}

// Take returns a new table with the given rows, in the given order.
func (t *Table) Take(rows []int) *Table {
	out := New()
	for _, name := range t.names {
		if v, ok := t.floats[name]; ok {
			col := make([]float64, len(rows))
			for i, r := range rows {
				col[i] = v[r]
			}
			out.names = append(out.names, name)
			out.floats[name] = col
			continue
		}
		v := t.strings[name]
		col := make([]string, len(rows))
		for i, r := range rows {
			col[i] = v[r]
		}
		out.names = append(out.names, name)
		out.strings[name] = col
	}
	out.rows = len(rows)
	return out
}

// Filter returns the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	rows := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if keep(i) {
			rows = append(rows, i)
		}
	}
	return t.Take(rows)
}

// Select returns a table holding only the named columns, in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	out := New()
	for _, c := range cols {
		if v, ok := t.floats[c]; ok {
			if err := out.AddFloat(c, v); err != nil {
				return nil, err
			}
			continue
		}
		if v, ok := t.strings[c]; ok {
			if err := out.AddString(c, v); err != nil {
				return nil, err
			}
			continue
		}
		return nil, fmt.Errorf("column %q not found", c)
	}
	out.rows = t.rows
	return out, nil
}

// WithString returns a copy of the table with an extra string column set to
// value on every row.
func (t *Table) WithString(name, value string) (*Table, error) {
	out := t.Take(allRows(t.rows))
	col := make([]string, t.rows)
	for i := range col {
		col[i] = value
	}
	if err := out.AddString(name, col); err != nil {
		return nil, err
	}
	return out, nil
}

// Concat stacks tables with identical column sets. The column order of the
// first table is used. Concat of no tables is an empty table.
func Concat(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return New(), nil
	}
	first := tables[0]
	out := New()
	out.names = first.Columns()
	for _, name := range first.names {
		if _, ok := first.floats[name]; ok {
			out.floats[name] = nil
		} else {
			out.strings[name] = nil
		}
	}
	for i, tbl := range tables {
		if len(tbl.names) != len(first.names) {
			return nil, fmt.Errorf("table %d has %d columns, want %d", i, len(tbl.names), len(first.names))
		}
		for _, name := range first.names {
			if first.IsFloat(name) {
				col, err := tbl.Float(name)
				if err != nil {
					return nil, fmt.Errorf("table %d: %w", i, err)
				}
				out.floats[name] = append(out.floats[name], col...)
				continue
			}
			col, err := tbl.String(name)
			if err != nil {
				return nil, fmt.Errorf("table %d: %w", i, err)
			}
			out.strings[name] = append(out.strings[name], col...)
		}
		out.rows += tbl.rows
	}
	return out, nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}
