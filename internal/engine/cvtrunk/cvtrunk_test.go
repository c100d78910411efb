//go:build gocv

package cvtrunk

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/treerings/internal/engine/trunk"
	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/raster"
	"github.com/MeKo-Tech/treerings/internal/testutil"
	"github.com/MeKo-Tech/treerings/internal/utils"
)

func TestSegment_GraySquare(t *testing.T) {
	o, err := options.Parse(options.SegmentTrunk, "scale=1 sigma=0 opening=1 closing=1 stroke=0 interpolation=0 min=10")
	require.NoError(t, err)
	p, err := trunk.ParamsFrom(o)
	require.NoError(t, err)

	img := raster.New(testutil.GenerateSquare(64, 64, 16, 16, 32, 20, 240), "square.png")
	outline, err := Segment(context.Background(), img, p, p.Vectors)
	require.NoError(t, err)
	require.NotEmpty(t, outline)
	assert.InDelta(t, 32*32, math.Abs(utils.SignedArea(outline)), 60)
}

func TestNew_Name(t *testing.T) {
	assert.Equal(t, Name, New().Name())
}
