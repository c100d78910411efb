//nolint:lll
package config

// Config represents the complete configuration for the treerings tool.
// It covers every command (segment, batch, calibration, options) and is
// loaded from configuration files, environment variables, and command-line flags.
type Config struct {
	// Global settings
	ModelsDir   string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel    string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose     bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`

	// Segmentation engine
	Engine EngineConfig `mapstructure:"engine" yaml:"engine" json:"engine"`

	// Batch processing configuration
	Batch BatchConfig `mapstructure:"batch" yaml:"batch" json:"batch"`

	// Measurement settings
	Measure MeasureConfig `mapstructure:"measure" yaml:"measure" json:"measure"`

	// Ring and pith models
	Rings RingsConfig `mapstructure:"rings" yaml:"rings" json:"rings"`
}

// EngineConfig selects the segmentation engine and its command.
type EngineConfig struct {
	// Kind is one of "trunk", "fiji" or "cvtrunk".
	Kind        string `mapstructure:"kind" yaml:"kind" json:"kind"`
	Command     string `mapstructure:"command" yaml:"command" json:"command"`
	FijiDir     string `mapstructure:"fiji_dir" yaml:"fiji_dir" json:"fiji_dir"`
	OptionsFile string `mapstructure:"options_file" yaml:"options_file" json:"options_file"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Report          bool     `mapstructure:"report" yaml:"report" json:"report"`
}

// MeasureConfig contains measurement settings.
type MeasureConfig struct {
	ObjectType string `mapstructure:"object_type" yaml:"object_type" json:"object_type"`
}

// RingsConfig contains the ring/pith model settings.
type RingsConfig struct {
	Enabled    bool    `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	PithModel  string  `mapstructure:"pith_model" yaml:"pith_model" json:"pith_model"`
	RingsModel string  `mapstructure:"rings_model" yaml:"rings_model" json:"rings_model"`
	InputSize  int     `mapstructure:"input_size" yaml:"input_size" json:"input_size"`
	Threshold  float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	MinArea    int     `mapstructure:"min_area" yaml:"min_area" json:"min_area"`
	NumThreads int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`

	GPU GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
