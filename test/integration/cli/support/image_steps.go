package support

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/treerings/internal/testutil"
)

// fastOptions segment the synthetic square without smoothing.
const fastOptions = "scale=1 sigma=0 opening=1 closing=1 stroke=0 interpolation=0 min=10\n"

func (testCtx *TestContext) writeFile(rel string, data []byte) error {
	path := testCtx.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func squareImage() image.Image {
	return testutil.GenerateSquare(64, 64, 16, 16, 32, 20, 240)
}

// theSegmentationOptionsAreTunedForSmallImages stores options that segment
// the 64x64 fixtures.
func (testCtx *TestContext) theSegmentationOptionsAreTunedForSmallImages() error {
	return testCtx.writeFile(filepath.Base(testCtx.OptionsFile), []byte(fastOptions))
}

// aCalibratedImage writes a square image at 1/res unit per pixel.
func (testCtx *TestContext) aCalibratedImage(rel string, res int, unit string) error {
	tags := testutil.TIFFTags{
		XResolution: testutil.Resolution(uint32(res), 1),
		Description: fmt.Sprintf("ImageJ=1.54\nunit=%s\n", unit),
	}
	return testCtx.writeFile(rel, testutil.EncodeTIFF(squareImage(), tags))
}

// anUncalibratedImage writes a square image without calibration tags.
func (testCtx *TestContext) anUncalibratedImage(rel string) error {
	return testCtx.writeFile(rel, testutil.EncodeTIFF(squareImage(), testutil.TIFFTags{}))
}

// aBlankImage writes a uniformly white image.
func (testCtx *TestContext) aBlankImage(rel string) error {
	blank := testutil.GenerateSquare(32, 32, 0, 0, 0, 0, 255)
	return testCtx.writeFile(rel, testutil.EncodeTIFF(blank, testutil.TIFFTags{}))
}

// aTextFile writes a file that is not an image.
func (testCtx *TestContext) aTextFile(rel string) error {
	return testCtx.writeFile(rel, []byte("not an image\n"))
}

// anEmptyFolder creates a folder.
func (testCtx *TestContext) anEmptyFolder(rel string) error {
	return os.MkdirAll(testCtx.Path(rel), 0o750)
}

// RegisterImageSteps registers fixture steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the segmentation options are tuned for small images$`, testCtx.theSegmentationOptionsAreTunedForSmallImages)
	sc.Step(`^a calibrated image "([^"]*)" with (\d+) pixels per "([^"]*)"$`, testCtx.aCalibratedImage)
	sc.Step(`^an uncalibrated image "([^"]*)"$`, testCtx.anUncalibratedImage)
	sc.Step(`^a blank image "([^"]*)"$`, testCtx.aBlankImage)
	sc.Step(`^a text file "([^"]*)"$`, testCtx.aTextFile)
	sc.Step(`^an empty folder "([^"]*)"$`, testCtx.anEmptyFolder)
}
