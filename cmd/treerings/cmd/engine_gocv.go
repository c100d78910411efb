//go:build gocv

package cmd

import (
	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/engine/cvtrunk"
)

func newCVTrunk() (engine.Engine, error) {
	return cvtrunk.New(), nil
}
