package table

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestAdd_PaddingInvariant adds rows drawing random column subsets and checks
// that every column has one slot per row, with Missing exactly where a row
// did not provide the column.
func TestAdd_PaddingInvariant(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("columns stay aligned and padded", prop.ForAll(
		func(masks []uint8) bool {
			tbl := New()
			for i, m := range masks {
				r := NewRow()
				for c := range 6 {
					if m&(1<<c) != 0 {
						r.Set(fmt.Sprintf("c%d", c), float64(i))
					}
				}
				tbl.Add(r)
			}

			if tbl.Len() != len(masks) {
				return false
			}
			for _, name := range tbl.Columns() {
				var c int
				_, _ = fmt.Sscanf(name, "c%d", &c)
				col := tbl.Column(name)
				if len(col) != len(masks) {
					return false
				}
				for i, v := range col {
					present := masks[i]&(1<<c) != 0
					if present && v != float64(i) {
						return false
					}
					if !present && !IsMissing(v) {
						return false
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8Range(0, 63)),
	))

	properties.Property("a column first seen at row k has k leading Missing cells", prop.ForAll(
		func(n, k int) bool {
			if k > n {
				k = n
			}
			tbl := New()
			for i := range n {
				r := NewRow().Set("base", float64(i))
				if i >= k {
					r.Set("late", float64(i))
				}
				tbl.Add(r)
			}
			late := tbl.Column("late")
			if k == n {
				return late == nil
			}
			if len(late) != n {
				return false
			}
			for i, v := range late {
				if (i < k) != IsMissing(v) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 30),
		gen.IntRange(0, 30),
	))

	properties.TestingRun(t)
}
