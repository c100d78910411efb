package options

import (
	"strconv"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var propertySchema = Schema{
	{Name: "n", Kind: KindInt, Default: 0},
	{Name: "x", Kind: KindFloat, Default: 0.0},
	{Name: "mode", Kind: KindString, Default: "Mean"},
	{Name: "vec", Kind: KindVector, Default: "0"},
	{Name: "flag", Kind: KindBool, Default: false},
	{Name: "other", Kind: KindBool, Default: true},
}

func genVector() gopter.Gen {
	return gen.SliceOfN(3, gen.Float64Range(-10, 10)).Map(func(vs []float64) string {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return strings.Join(parts, ",")
	})
}

func genOptions() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(-100000, 100000),
		gen.Float64Range(-1e6, 1e6),
		gen.Identifier(),
		genVector(),
		gen.Bool(),
		gen.Bool(),
	).Map(func(v []interface{}) Options {
		return Options{
			"n":     v[0].(int),
			"x":     v[1].(float64),
			"mode":  v[2].(string),
			"vec":   v[3].(string),
			"flag":  v[4].(bool),
			"other": v[5].(bool),
		}
	})
}

// TestParseFormat_RoundTrip verifies Parse is the inverse of Format.
func TestParseFormat_RoundTrip(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("parse(format(o)) == o", prop.ForAll(
		func(o Options) bool {
			back, err := Parse(propertySchema, Format(propertySchema, o))
			if err != nil || len(back) != len(o) {
				return false
			}
			for k, v := range o {
				if back[k] != v {
					return false
				}
			}
			return true
		},
		genOptions(),
	))

	properties.TestingRun(t)
}

// TestFormat_SingleLine verifies the encoding never spans lines.
func TestFormat_SingleLine(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("no newline in output", prop.ForAll(
		func(o Options) bool {
			return !strings.ContainsAny(Format(propertySchema, o), "\n\r")
		},
		genOptions(),
	))

	properties.TestingRun(t)
}
