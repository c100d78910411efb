// Package calibration reads the physical pixel size and unit stored in the
// first IFD of a TIFF file.
package calibration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/rwcarlsen/goexif/tiff"
	"golang.org/x/text/encoding/charmap"
)

const (
	// DefaultPixelSize is used when the file carries no usable resolution.
	DefaultPixelSize = 1.0
	// DefaultUnit is used when the file carries no usable unit.
	DefaultUnit = "pixel"

	tagImageDescription = 270
	tagXResolution      = 282

	micronAlias = "mkm"
	micronUnit  = "µm"
)

// Calibration is the physical size of one pixel edge.
type Calibration struct {
	PixelSize float64
	Unit      string
	// Defaulted is true when at least one field fell back to its default
	// because the tag was absent, malformed, or the file is not a TIFF.
	Defaulted bool
}

// Default returns the uncalibrated value.
func Default() Calibration {
	return Calibration{PixelSize: DefaultPixelSize, Unit: DefaultUnit, Defaulted: true}
}

// ReadError is returned when the file cannot be read at all.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("calibration read error for %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Read returns the calibration of the image at path. Missing or malformed
// tags never fail; only unreadable files produce a *ReadError.
func Read(path string) (Calibration, error) {
	f, err := os.Open(path) //nolint:gosec // G304: user-selected image path
	if err != nil {
		return Calibration{}, &ReadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	return Decode(f, path)
}

// Decode reads the calibration from r. name is used in errors and logs.
func Decode(r io.Reader, name string) (Calibration, error) {
	head := make([]byte, 4)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Calibration{}, &ReadError{Path: name, Err: err}
	}
	if !isTIFF(head[:n]) {
		slog.Debug("not a TIFF file, using default calibration", "image", name)
		return Default(), nil
	}

	t, err := tiff.Decode(io.MultiReader(bytes.NewReader(head), r))
	if err != nil {
		return Calibration{}, &ReadError{Path: name, Err: fmt.Errorf("decode TIFF: %w", err)}
	}
	if len(t.Dirs) == 0 {
		return Default(), nil
	}
	return fromTags(t.Dirs[0].Tags, name), nil
}

// Outcome is delivered by ReadAsync.
type Outcome struct {
	Calibration Calibration
	Err         error
}

// ReadAsync runs Read on a separate goroutine. The channel receives exactly
// one Outcome and is then closed. Cancelling ctx abandons the wait.
func ReadAsync(ctx context.Context, path string) <-chan Outcome {
	out := make(chan Outcome, 1)
	go func() {
		defer close(out)
		c, err := Read(path)
		select {
		case out <- Outcome{Calibration: c, Err: err}:
		case <-ctx.Done():
		}
	}()
	return out
}

func isTIFF(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	return bytes.Equal(head, []byte("II*\x00")) || bytes.Equal(head, []byte("MM\x00*"))
}

// fromTags applies the resolution and description rules. Without a
// resolution tag the description is not consulted.
func fromTags(tags []*tiff.Tag, name string) Calibration {
	c := Default()

	res := findTag(tags, tagXResolution)
	if res == nil {
		return c
	}
	num, den, err := res.Rat2(0)
	if err != nil || num == 0 || den == 0 {
		slog.Debug("unusable XResolution tag", "image", name, "error", err)
		return c
	}
	c.PixelSize = float64(den) / float64(num)

	desc := findTag(tags, tagImageDescription)
	if desc == nil {
		return c
	}
	unit, ok := unitFromDescription(decodeText(desc.Val))
	if !ok {
		return c
	}
	c.Unit = unit
	c.Defaulted = false
	return c
}

func findTag(tags []*tiff.Tag, id uint16) *tiff.Tag {
	for _, t := range tags {
		if t.Id == id {
			return t
		}
	}
	return nil
}

// decodeText turns a NUL-terminated ASCII field into a string. Bytes that do
// not form valid UTF-8 are read as ISO-8859-1, which is what scanners write.
func decodeText(raw []byte) string {
	raw = bytes.TrimRight(raw, "\x00")
	if utf8.Valid(raw) {
		return string(raw)
	}
	s, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(s)
}

// unitFromDescription extracts the unit from the second line, which has the
// form key=unit.
func unitFromDescription(desc string) (string, bool) {
	lines := strings.Split(desc, "\n")
	if len(lines) < 2 {
		return "", false
	}
	_, unit, found := strings.Cut(strings.TrimRight(lines[1], "\r"), "=")
	// Only the field between the first and second '=' is the unit.
	unit, _, _ = strings.Cut(unit, "=")
	unit = strings.TrimSpace(unit)
	if !found || unit == "" {
		return "", false
	}
	if unit == micronAlias {
		unit = micronUnit
	}
	return unit, true
}
