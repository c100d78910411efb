package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/treerings/internal/config"
	"github.com/MeKo-Tech/treerings/internal/metrics"
	"github.com/MeKo-Tech/treerings/internal/models"
	"github.com/MeKo-Tech/treerings/internal/version"
)

var (
	// Configuration loader of the current invocation.
	configLoader *config.Loader
	// Configuration of the current invocation.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
	// Collectors written to metrics_file after a successful command.
	recorder *metrics.Recorder
)

// flagKeys maps command-line flags to configuration keys. Flags a command
// does not define are skipped.
var flagKeys = map[string]string{
	"verbose":           "verbose",
	"log-level":         "log_level",
	"models-dir":        "models_dir",
	"metrics-file":      "metrics_file",
	"engine":            "engine.kind",
	"fiji-dir":          "engine.fiji_dir",
	"options-file":      "engine.options_file",
	"object-type":       "measure.object_type",
	"rings":             "rings.enabled",
	"include":           "batch.include",
	"continue-on-error": "batch.continue_on_error",
	"report":            "batch.report",
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "treerings",
	Short: "Trunk segmentation and measurement for tree cross-section images",
	Long: `Segments the trunk of tree cross-section images (discs, CT and MRI slices),
measures the resulting regions in calibrated physical units and collects the
measurements into one table per run.

This tool provides:
- Pixel calibration read from TIFF resolution and description tags
- Trunk segmentation with the built-in engine, an OpenCV engine or Fiji
- Region properties (area, perimeter, convex area, axes, Feret diameter)
- Optional ring and pith detection with ONNX models
- Batch processing with napari outline files and a PDF overlay report

Examples:
  treerings segment disc.tif
  treerings batch scans/ results/ --include "*.tif" --report
  treerings calibration disc.tif
  treerings options set scale=4 thresholding=Otsu`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if v, _ := cmd.Flags().GetBool("version"); v {
			printVersion(cmd.OutOrStdout())
			return nil
		}
		return cmd.Help()
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}
		setupLogging(cmd.ErrOrStderr(), globalConfig)
		recorder = metrics.New()
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if globalConfig == nil || globalConfig.MetricsFile == "" {
			return nil
		}
		if err := recorder.WriteTextfile(globalConfig.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		slog.Debug("Metrics written", "path", globalConfig.MetricsFile)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// GetRootCommand returns the root command for testing purposes.
// This allows tests to execute commands without calling os.Exit().
func GetRootCommand() *cobra.Command {
	return rootCmd
}

// GetConfig returns the configuration of the current invocation.
func GetConfig() *config.Config {
	return globalConfig
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in ., $HOME, $XDG_CONFIG_HOME/treerings, /etc/treerings)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("models-dir", models.DefaultModelsDir,
		"directory containing ONNX models (can also be set via "+models.EnvModelsDir+")")
	rootCmd.PersistentFlags().String("engine", config.EngineTrunk, "segmentation engine (trunk, fiji, cvtrunk)")
	rootCmd.PersistentFlags().String("fiji-dir", "", "Fiji installation used by the fiji engine")
	rootCmd.PersistentFlags().String("options-file", "",
		"segment-trunk options file (default inside the Fiji plugins or user config directory)")
	rootCmd.PersistentFlags().String("metrics-file", "", "write Prometheus metrics in textfile format to this path")
	rootCmd.PersistentFlags().Bool("version", false, "print version information and exit")
}

// initConfig loads the configuration for cmd. Every invocation gets a fresh
// viper instance so flags of an earlier run never leak into the next.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	configLoader = config.NewLoaderWith(v)

	for name, key := range flagKeys {
		if err := configLoader.BindFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	cfg, err := configLoader.LoadWithFile(cfgFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	globalConfig = cfg
	return nil
}

// setupLogging installs a JSON slog handler at the configured level. Logs go
// to stderr so that tables printed on stdout stay machine readable.
func setupLogging(w io.Writer, cfg *config.Config) {
	var level slog.Level
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func printVersion(w io.Writer) {
	v, commit, date := version.Info()
	_, _ = fmt.Fprintf(w, "treerings version %s\n", v)
	_, _ = fmt.Fprintf(w, "Commit: %s\n", commit)
	_, _ = fmt.Fprintf(w, "Date: %s\n", date)
}
