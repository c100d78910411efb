package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/treerings/internal/mempool"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResizeExact(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 10))
	got, err := ResizeExact(img, 8, 8)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), got.Bounds())

	same, err := ResizeExact(img, 30, 10)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), same.Bounds())

	_, err = ResizeExact(nil, 8, 8)
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "resize", ipe.Operation)

	_, err = ResizeExact(img, 0, 8)
	require.Error(t, err)
}

func TestNormalizeImage_NCHWLayout(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 0, G: 102, B: 0, A: 255})

	data, w, h, err := NormalizeImage(img)
	require.NoError(t, err)
	assert.Equal(t, 2, w)
	assert.Equal(t, 1, h)
	require.Len(t, data, 6)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 0.4, 0.2, 0}, data, 1e-6)
}

func TestNormalizeImage_Gray(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	data, _, _, err := NormalizeImage(gray)
	require.NoError(t, err)
	for _, v := range data {
		assert.InDelta(t, 128.0/255.0, v, 1e-6)
	}
}

func TestNormalizeImage_Errors(t *testing.T) {
	_, _, _, err := NormalizeImage(nil)
	require.Error(t, err)
	_, _, _, err = NormalizeImage(image.NewRGBA(image.Rect(0, 0, 0, 5)))
	require.Error(t, err)
}

func TestNormalizeImagePooled_MatchesUnpooled(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 17, 9))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	want, _, _, err := NormalizeImage(img)
	require.NoError(t, err)
	got, _, _, err := NormalizeImagePooled(img)
	require.NoError(t, err)
	defer mempool.PutFloat32(got)
	assert.Equal(t, want, got)
}

func TestNormalizeImage_OutputBounds(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("values stay in [0,1] with length 3*w*h", prop.ForAll(
		func(w, h int, seed uint8) bool {
			img := image.NewRGBA(image.Rect(0, 0, w, h))
			for i := range img.Pix {
				img.Pix[i] = seed + uint8(i)
			}
			data, gw, gh, err := NormalizeImage(img)
			if err != nil || gw != w || gh != h || len(data) != 3*w*h {
				return false
			}
			for _, v := range data {
				if v < 0 || v > 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 40),
		gen.IntRange(1, 40),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
