package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TrunkFixture pairs a synthetic scene with the measurements a correct
// segmentation of it should produce.
type TrunkFixture struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scene       TrunkScene `json:"-"`
	Expected    Expected   `json:"expected"`
}

// Expected holds reference values and the relative tolerance they are
// checked with.
type Expected struct {
	Area         float64 `json:"area"`
	Eccentricity float64 `json:"eccentricity"`
	Tolerance    float64 `json:"tolerance"`
}

// SampleTrunkFixtures returns the built-in scenes used by engine tests.
func SampleTrunkFixtures() []TrunkFixture {
	ellipse := DefaultTrunkScene()

	circle := DefaultTrunkScene()
	circle.RadiusX, circle.RadiusY = 70, 70

	ringed := DefaultTrunkScene()
	ringed.Rings = 4

	return []TrunkFixture{
		fixtureFor("ellipse", "plain elliptical trunk", ellipse, 0.12),
		fixtureFor("circle", "circular trunk", circle, 0.12),
		fixtureFor("ringed", "elliptical trunk with dark ring lines", ringed, 0.15),
	}
}

func fixtureFor(name, desc string, s TrunkScene, tol float64) TrunkFixture {
	a, b := math.Max(s.RadiusX, s.RadiusY), math.Min(s.RadiusX, s.RadiusY)
	return TrunkFixture{
		Name:        name,
		Description: desc,
		Scene:       s,
		Expected: Expected{
			Area:         math.Pi * s.RadiusX * s.RadiusY,
			Eccentricity: math.Sqrt(1 - (b*b)/(a*a)),
			Tolerance:    tol,
		},
	}
}

// SaveFixture writes the fixture's expectations as JSON and its scene as PNG
// into dir, returning the image path.
func SaveFixture(t *testing.T, dir string, f TrunkFixture) string {
	t.Helper()

	require.NoError(t, EnsureDir(dir))
	data, err := json.MarshalIndent(f, "", "  ")
	require.NoError(t, err, "Failed to marshal fixture to JSON")
	require.NoError(t, os.WriteFile(filepath.Join(dir, f.Name+".json"), data, 0o600))

	imgPath := filepath.Join(dir, f.Name+".png")
	SaveImage(t, GenerateTrunk(f.Scene), imgPath)
	return imgPath
}

// LoadExpected reads the expectations written by SaveFixture.
func LoadExpected(t *testing.T, dir, name string) Expected {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name+".json")) //nolint:gosec // G304: test fixture path
	require.NoError(t, err)

	var f TrunkFixture
	require.NoError(t, json.Unmarshal(data, &f), "Failed to unmarshal fixture JSON")
	return f.Expected
}
