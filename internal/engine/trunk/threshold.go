package trunk

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedThreshold is returned for thresholding methods the built-in
// engine does not implement.
var ErrUnsupportedThreshold = errors.New("unsupported thresholding method")

// threshold returns the cut-off for the named method over 8-bit values.
// Foreground is everything strictly above it.
func threshold(method string, vals []uint8) (float64, error) {
	switch strings.ToLower(method) {
	case "mean", "":
		return meanThreshold(vals), nil
	case "otsu":
		return otsuThreshold(vals), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedThreshold, method)
	}
}

func meanThreshold(vals []uint8) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += float64(v)
	}
	return sum / float64(len(vals))
}

// otsuThreshold maximizes the between-class variance of the histogram.
func otsuThreshold(vals []uint8) float64 {
	if len(vals) == 0 {
		return 0
	}

	const bins = 256
	var histogram [bins]int
	for _, v := range vals {
		histogram[v]++
	}
	total := len(vals)

	var totalSum float64
	for i := range bins {
		totalSum += float64(i) * float64(histogram[i])
	}

	var maxVariance, sumB float64
	best := 0
	wB := 0
	for t := range bins {
		wB += histogram[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}

		sumB += float64(t) * float64(histogram[t])
		meanB := sumB / float64(wB)
		meanF := (totalSum - sumB) / float64(wF)

		variance := float64(wB) * float64(wF) * (meanB - meanF) * (meanB - meanF)
		if variance > maxVariance {
			maxVariance = variance
			best = t
		}
	}
	return float64(best)
}
