//go:build !gocv

package cmd

import (
	"errors"

	"github.com/MeKo-Tech/treerings/internal/engine"
)

func newCVTrunk() (engine.Engine, error) {
	return nil, errors.New("the cvtrunk engine is not available in this build (rebuild with -tags gocv)")
}
