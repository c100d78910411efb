package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/treerings/internal/config"
	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/engine/fiji"
	"github.com/MeKo-Tech/treerings/internal/engine/trunk"
	"github.com/MeKo-Tech/treerings/internal/options"
	"github.com/MeKo-Tech/treerings/internal/pipeline"
	"github.com/MeKo-Tech/treerings/internal/rings"
)

// newEngine returns the engine named in cfg.
func newEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Kind {
	case config.EngineTrunk:
		return trunk.New(), nil
	case config.EngineFiji:
		return fiji.New(cfg.Engine.FijiDir), nil
	case config.EngineCVTrunk:
		return newCVTrunk()
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine.Kind)
	}
}

// optionsFile returns the options file of cfg.
func optionsFile(cfg *config.Config) (*options.File, error) {
	path := cfg.Engine.OptionsFile
	if path == "" {
		var err error
		if path, err = options.DefaultPath(cfg.Engine.FijiDir); err != nil {
			return nil, err
		}
	}
	return options.NewFile(path), nil
}

// buildPipeline wires engine, options, rings and metrics into a pipeline.
// The returned cleanup stops the engine and releases the models.
func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, func(), error) {
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, nil, err
	}

	f, err := optionsFile(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts, err := f.Load()
	if err != nil {
		return nil, nil, err
	}
	slog.Debug("Loaded segmentation options", "path", f.Path, "options", options.Format(f.Schema, opts))

	session := engine.NewSession(eng)
	adapter := engine.NewAdapter(session)
	adapter.Command = cfg.Engine.Command
	adapter.ObjectType = cfg.Measure.ObjectType

	p := pipeline.New(adapter, opts)
	p.ObjectType = cfg.Measure.ObjectType
	p.Metrics = recorder
	p.Observer = pipeline.NewLogObserver(slog.Default(), slog.LevelDebug)

	var predictor *rings.Predictor
	if cfg.Rings.Enabled {
		rc, err := cfg.ToRingsConfig()
		if err != nil {
			return nil, nil, err
		}
		predictor, err = rings.New(rc)
		if err != nil {
			return nil, nil, fmt.Errorf("load ring models: %w", err)
		}
		p.WithRings(predictor)
	}

	cleanup := func() {
		if err := session.Stop(); err != nil {
			slog.Warn("Failed to stop engine", "engine", eng.Name(), "error", err)
		}
		if predictor != nil {
			if err := predictor.Close(); err != nil {
				slog.Warn("Failed to close ring models", "error", err)
			}
		}
	}
	return p, cleanup, nil
}
