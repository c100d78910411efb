// Package table accumulates measurement rows into a wide, column-aligned
// table.
package table

import "slices"

// Row is an insertion-ordered record of column values. Values are int,
// float64 or string.
type Row struct {
	keys   []string
	values map[string]any
}

// NewRow returns an empty row.
func NewRow() *Row {
	return &Row{values: make(map[string]any)}
}

// Set assigns a column value, keeping the first insertion position.
func (r *Row) Set(key string, v any) *Row {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value of key.
func (r *Row) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Columns returns the column names in insertion order.
func (r *Row) Columns() []string { return slices.Clone(r.keys) }

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.keys) }
