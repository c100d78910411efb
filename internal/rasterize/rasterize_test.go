package rasterize

import (
	"testing"

	"github.com/MeKo-Tech/treerings/internal/region"
	"github.com/MeKo-Tech/treerings/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square(x0, y0, side float64) []utils.Point {
	return []utils.Point{{X: x0, Y: y0}, {X: x0 + side, Y: y0}, {X: x0 + side, Y: y0 + side}, {X: x0, Y: y0 + side}}
}

func TestToLabelMask_ParentExtent(t *testing.T) {
	r := region.NewPolygon("sq", square(100, 100, 50))
	r.Parent = &region.Parent{Name: "img", Height: 256, Width: 256}

	m, err := ToLabelMask(r)
	require.NoError(t, err)
	assert.Equal(t, 256, m.Height)
	assert.Equal(t, 256, m.Width)
	assert.Equal(t, 2500, m.Count(Label))
	assert.Equal(t, Label, m.At(100, 100))
	assert.Equal(t, Label, m.At(149, 149))
	assert.Equal(t, int32(0), m.At(150, 149))
}

func TestToLabelMask_NaturalExtent(t *testing.T) {
	m, err := ToLabelMask(region.NewPolygon("sq", square(2, 3, 4.5)))
	require.NoError(t, err)
	assert.Equal(t, 8, m.Height) // ceil(7.5)
	assert.Equal(t, 7, m.Width)  // ceil(6.5)
}

func TestToLabelMask_ClipsToExtent(t *testing.T) {
	r := region.NewPolygon("sq", square(-5, -5, 10))
	r.Parent = &region.Parent{Height: 8, Width: 8}

	m, err := ToLabelMask(r)
	require.NoError(t, err)
	assert.Equal(t, 25, m.Count(Label))
}

func TestToLabelMask_Triangle(t *testing.T) {
	r := region.NewPolygon("tri", []utils.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}})
	m, err := ToLabelMask(r)
	require.NoError(t, err)
	// centres (c+.5, r+.5) with c+r+1 < 10
	assert.Equal(t, 45, m.Count(Label))
}

func TestToLabelMask_EvenOddHole(t *testing.T) {
	outer := square(0, 0, 10)
	inner := square(3, 3, 4)
	pts := append(append(append([]utils.Point{}, outer...), outer[0]), append(inner, inner[0])...)

	m, err := ToLabelMask(region.NewPolygon("ring", pts))
	require.NoError(t, err)
	assert.Equal(t, 100-16, m.Count(Label))
	assert.Equal(t, int32(0), m.At(5, 5))
}

func TestToLabelMask_LabelsPassThrough(t *testing.T) {
	lm := region.NewLabelMask(3, 3)
	lm.Set(1, 1, 7)
	r := region.NewLabels("l", lm)

	m, err := ToLabelMask(r)
	require.NoError(t, err)
	assert.Equal(t, lm.Data, m.Data)
	m.Set(0, 0, 1)
	assert.Equal(t, int32(0), lm.At(0, 0), "result is a copy")

	r.Parent = &region.Parent{Height: 5, Width: 4}
	m, err = ToLabelMask(r)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Height)
	assert.Equal(t, int32(7), m.At(1, 1))
}

func TestToLabelMask_Errors(t *testing.T) {
	_, err := ToLabelMask(region.NewPolygon("p", []utils.Point{{X: 1, Y: 1}}))
	require.ErrorIs(t, err, ErrEmptyRegion)

	_, err = ToLabelMaskShape(region.NewPolygon("p", square(0, 0, 2)), 0, 4)
	require.ErrorIs(t, err, ErrEmptyRegion)
}

func TestToLabelMask_Deterministic(t *testing.T) {
	r := region.NewPolygon("p", []utils.Point{{X: 1.3, Y: 2.7}, {X: 30.1, Y: 5.5}, {X: 17.9, Y: 28.2}})
	a, err := ToLabelMask(r)
	require.NoError(t, err)
	b, err := ToLabelMask(r)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
