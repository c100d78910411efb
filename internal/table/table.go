package table

import (
	"math"
	"slices"
)

// Table maps column names to equal-length value sequences, one slot per
// added row. A Table is not safe for concurrent mutation.
type Table struct {
	columns []string
	data    map[string][]any
	rows    int
}

// New returns an empty table.
func New() *Table {
	return &Table{data: make(map[string][]any)}
}

// Missing is the placeholder stored for a column a row did not provide.
func Missing() any { return math.NaN() }

// IsMissing reports whether v is the missing-value placeholder.
func IsMissing(v any) bool {
	f, ok := v.(float64)
	return ok && math.IsNaN(f)
}

// Add appends row. Columns new to the table are back-filled with Missing for
// all earlier rows; table columns the row lacks get Missing for this row.
func (t *Table) Add(row *Row) {
	for _, key := range row.keys {
		if _, ok := t.data[key]; ok {
			continue
		}
		col := make([]any, t.rows, t.rows+1)
		for i := range col {
			col[i] = Missing()
		}
		t.data[key] = col
		t.columns = append(t.columns, key)
	}
	for _, key := range t.columns {
		v, ok := row.values[key]
		if !ok {
			v = Missing()
		}
		t.data[key] = append(t.data[key], v)
	}
	t.rows++
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Empty reports whether no row has been added.
func (t *Table) Empty() bool { return t.rows == 0 }

// Columns returns the column names in first-seen order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Column returns a copy of the values of name, or nil if absent.
func (t *Table) Column(name string) []any {
	col, ok := t.data[name]
	if !ok {
		return nil
	}
	return slices.Clone(col)
}

// Value returns the cell at (row, column).
func (t *Table) Value(row int, column string) (any, bool) {
	col, ok := t.data[column]
	if !ok || row < 0 || row >= len(col) {
		return nil, false
	}
	return col[row], true
}

// Row reconstructs row i with every column, including Missing cells.
func (t *Table) Row(i int) *Row {
	r := NewRow()
	for _, c := range t.columns {
		r.Set(c, t.data[c][i])
	}
	return r
}

// Clone returns an independent snapshot.
func (t *Table) Clone() *Table {
	c := &Table{
		columns: slices.Clone(t.columns),
		data:    make(map[string][]any, len(t.data)),
		rows:    t.rows,
	}
	for k, v := range t.data {
		c.data[k] = slices.Clone(v)
	}
	return c
}
