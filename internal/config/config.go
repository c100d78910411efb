package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/treerings/internal/batch"
	"github.com/MeKo-Tech/treerings/internal/engine"
	"github.com/MeKo-Tech/treerings/internal/measure"
	"github.com/MeKo-Tech/treerings/internal/models"
	"github.com/MeKo-Tech/treerings/internal/onnx"
	"github.com/MeKo-Tech/treerings/internal/rings"
)

// Engine kinds accepted in engine.kind.
const (
	EngineTrunk   = "trunk"
	EngineFiji    = "fiji"
	EngineCVTrunk = "cvtrunk"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	r := rings.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Verbose:   false,
		Engine: EngineConfig{
			Kind:    EngineTrunk,
			Command: engine.DefaultCommand,
		},
		Batch: BatchConfig{
			Include:         []string{},
			ContinueOnError: false,
			Report:          false,
		},
		Measure: MeasureConfig{
			ObjectType: measure.DefaultObjectType,
		},
		Rings: RingsConfig{
			Enabled:   false,
			InputSize: r.InputSize,
			Threshold: float64(r.Threshold),
			MinArea:   r.MinArea,
			GPU: GPUConfig{
				Enabled:     false,
				Device:      0,
				MemoryLimit: "auto",
			},
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validEngines := []string{EngineTrunk, EngineFiji, EngineCVTrunk}
	if !slices.Contains(validEngines, c.Engine.Kind) {
		return fmt.Errorf("invalid engine: %s (must be one of: %s)", c.Engine.Kind, strings.Join(validEngines, ", "))
	}
	if strings.TrimSpace(c.Engine.Command) == "" {
		return fmt.Errorf("engine command must not be empty")
	}

	if strings.TrimSpace(c.Measure.ObjectType) == "" {
		return fmt.Errorf("measure object type must not be empty")
	}

	if err := batch.ValidatePatterns(c.Batch.Include); err != nil {
		return err
	}

	if err := validateThreshold(c.Rings.Threshold, "rings.threshold"); err != nil {
		return err
	}
	if c.Rings.InputSize <= 0 {
		return fmt.Errorf("invalid rings input size: %d (must be positive)", c.Rings.InputSize)
	}
	if c.Rings.MinArea < 0 {
		return fmt.Errorf("invalid rings min area: %d (must not be negative)", c.Rings.MinArea)
	}
	if c.Rings.NumThreads < 0 {
		return fmt.Errorf("invalid rings num threads: %d (must not be negative)", c.Rings.NumThreads)
	}
	if c.Rings.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must not be negative)", c.Rings.GPU.Device)
	}
	if err := validateMemoryLimit(c.Rings.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

// ToRingsConfig converts the config to the ring predictor configuration.
func (c *Config) ToRingsConfig() (rings.Config, error) {
	limit, err := parseMemoryLimit(c.Rings.GPU.MemoryLimit)
	if err != nil {
		return rings.Config{}, fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	gpu := onnx.DefaultGPUConfig()
	gpu.UseGPU = c.Rings.GPU.Enabled
	gpu.DeviceID = c.Rings.GPU.Device
	gpu.GPUMemLimit = limit

	return rings.Config{
		ModelsDir:  c.ModelsDir,
		PithModel:  c.Rings.PithModel,
		RingsModel: c.Rings.RingsModel,
		InputSize:  c.Rings.InputSize,
		Threshold:  float32(c.Rings.Threshold),
		MinArea:    c.Rings.MinArea,
		NumThreads: c.Rings.NumThreads,
		GPU:        gpu,
	}, nil
}

// validateThreshold validates that a value is strictly between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value <= 0.0 || value >= 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// validateMemoryLimit validates GPU memory limit format (e.g., "1GB", "512MB").
func validateMemoryLimit(limit string) error {
	_, err := parseMemoryLimit(limit)
	return err
}

var memoryUnits = []struct {
	suffix string
	factor float64
}{
	// Longest suffix first so "MB" is not read as "B".
	{"KB", 1 << 10},
	{"MB", 1 << 20},
	{"GB", 1 << 30},
	{"B", 1},
}

// parseMemoryLimit returns the limit in bytes; "" and "auto" mean unlimited.
func parseMemoryLimit(limit string) (uint64, error) {
	if limit == "" || limit == "auto" {
		return 0, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(limit))
	for _, u := range memoryUnits {
		if !strings.HasSuffix(upper, u.suffix) {
			continue
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(upper, u.suffix)), 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
		}
		return uint64(n * u.factor), nil
	}

	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB")
}
