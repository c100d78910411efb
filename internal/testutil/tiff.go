package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

// TIFFTags selects the optional calibration tags written by WriteTIFF.
type TIFFTags struct {
	// XResolution as numerator/denominator; nil omits tag 282.
	XResolution *[2]uint32
	// Description is written as tag 270 when non-empty. RawDescription takes
	// precedence and is written byte for byte.
	Description    string
	RawDescription []byte
}

type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

const (
	tiffShort    = 3
	tiffLong     = 4
	tiffRational = 5
	tiffASCII    = 2
)

// EncodeTIFF writes img as a little-endian uncompressed baseline TIFF with the
// requested calibration tags. *image.Gray is stored with one sample per pixel,
// anything else as 8-bit RGB.
func EncodeTIFF(img image.Image, tags TIFFTags) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var pix []byte
	samples := 3
	if g, ok := img.(*image.Gray); ok {
		samples = 1
		for y := range h {
			pix = append(pix, g.Pix[y*g.Stride:y*g.Stride+w]...)
		}
	} else {
		for y := range h {
			for x := range w {
				r, gg, bb, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				pix = append(pix, byte(r>>8), byte(gg>>8), byte(bb>>8))
			}
		}
	}

	le := binary.LittleEndian
	u16 := func(vs ...uint16) []byte {
		out := make([]byte, 2*len(vs))
		for i, v := range vs {
			le.PutUint16(out[2*i:], v)
		}
		return out
	}
	u32 := func(vs ...uint32) []byte {
		out := make([]byte, 4*len(vs))
		for i, v := range vs {
			le.PutUint32(out[4*i:], v)
		}
		return out
	}

	photometric := uint16(1)
	bps := u16(8)
	if samples == 3 {
		photometric = 2
		bps = u16(8, 8, 8)
	}

	entries := []ifdEntry{
		{256, tiffLong, 1, u32(uint32(w))},
		{257, tiffLong, 1, u32(uint32(h))},
		{258, tiffShort, uint32(samples), bps},
		{259, tiffShort, 1, u16(1)},
		{262, tiffShort, 1, u16(photometric)},
		{273, tiffLong, 1, nil}, // patched below
		{277, tiffShort, 1, u16(uint16(samples))},
		{278, tiffLong, 1, u32(uint32(h))},
		{279, tiffLong, 1, u32(uint32(len(pix)))},
	}
	desc := tags.RawDescription
	if desc == nil && tags.Description != "" {
		desc = []byte(tags.Description)
	}
	if desc != nil {
		d := append(slices.Clone(desc), 0)
		entries = append(entries, ifdEntry{270, tiffASCII, uint32(len(d)), d})
	}
	if tags.XResolution != nil {
		r := u32(tags.XResolution[0], tags.XResolution[1])
		entries = append(entries,
			ifdEntry{282, tiffRational, 1, r},
			ifdEntry{283, tiffRational, 1, r},
			ifdEntry{296, tiffShort, 1, u16(1)},
		)
	}
	slices.SortFunc(entries, func(a, b ifdEntry) int { return int(a.tag) - int(b.tag) })

	ifdSize := 2 + 12*len(entries) + 4
	extraStart := 8 + ifdSize
	var extra bytes.Buffer
	offsets := make([]uint32, len(entries))
	for i, e := range entries {
		if len(e.data) > 4 {
			offsets[i] = uint32(extraStart + extra.Len())
			extra.Write(e.data)
			if extra.Len()%2 == 1 {
				extra.WriteByte(0)
			}
		}
	}
	pixOffset := uint32(extraStart + extra.Len())

	var out bytes.Buffer
	out.WriteString("II")
	out.Write(u16(42))
	out.Write(u32(8))
	out.Write(u16(uint16(len(entries))))
	for i, e := range entries {
		out.Write(u16(e.tag, e.typ))
		out.Write(u32(e.count))
		switch {
		case e.tag == 273:
			out.Write(u32(pixOffset))
		case len(e.data) > 4:
			out.Write(u32(offsets[i]))
		default:
			field := make([]byte, 4)
			copy(field, e.data)
			out.Write(field)
		}
	}
	out.Write(u32(0))
	out.Write(extra.Bytes())
	out.Write(pix)
	return out.Bytes()
}

// WriteTIFF encodes img with tags into dir/name and returns the path.
func WriteTIFF(t *testing.T, dir, name string, img image.Image, tags TIFFTags) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, EncodeTIFF(img, tags), 0o600))
	return path
}

// Resolution is a convenience constructor for TIFFTags.XResolution.
func Resolution(num, den uint32) *[2]uint32 {
	return &[2]uint32{num, den}
}
