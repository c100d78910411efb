package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

const (
	osLinux    = "linux"
	osDarwin   = "darwin"
	osWindows  = "windows"
	libLinux   = "libonnxruntime.so"
	libDarwin  = "libonnxruntime.dylib"
	libWindows = "onnxruntime.dll"
)

// EnvLibraryPath points at the ONNX Runtime shared library explicitly.
const EnvLibraryPath = "TREERINGS_ONNXRUNTIME_LIB"

// GPUConfig holds configuration for GPU acceleration using CUDA.
type GPUConfig struct {
	UseGPU              bool   // Enable GPU acceleration
	DeviceID            int    // CUDA device ID (default: 0)
	GPUMemLimit         uint64 // GPU memory limit in bytes (0 = unlimited)
	ArenaExtendStrategy string // "kNextPowerOfTwo" or "kSameAsRequested"
}

// DefaultGPUConfig returns a CPU-only configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		UseGPU:              false,
		DeviceID:            0,
		GPUMemLimit:         0,
		ArenaExtendStrategy: "kNextPowerOfTwo",
	}
}

// ValidateGPUConfig checks if the GPU configuration is valid.
func ValidateGPUConfig(config GPUConfig) error {
	if !config.UseGPU {
		return nil
	}

	if config.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", config.DeviceID)
	}

	switch config.ArenaExtendStrategy {
	case "", "kNextPowerOfTwo", "kSameAsRequested":
	default:
		return fmt.Errorf("invalid arena extend strategy: %s (must be 'kNextPowerOfTwo' or "+
			"'kSameAsRequested')", config.ArenaExtendStrategy)
	}
	return nil
}

// cudaSettings returns the CUDA provider options for config.
func cudaSettings(config GPUConfig) map[string]string {
	settings := map[string]string{"device_id": strconv.Itoa(config.DeviceID)}
	if config.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(config.GPUMemLimit, 10)
	}
	if config.ArenaExtendStrategy != "" {
		settings["arena_extend_strategy"] = config.ArenaExtendStrategy
	}
	return settings
}

// configureGPU appends the CUDA execution provider when requested.
func configureGPU(sessionOptions *onnxruntime_go.SessionOptions, config GPUConfig) error {
	if !config.UseGPU {
		return nil
	}

	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() { _ = cudaOpts.Destroy() }()

	if err := cudaOpts.Update(cudaSettings(config)); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := sessionOptions.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// libraryName returns the shared library file name for goos.
func libraryName(goos string) (string, error) {
	switch goos {
	case osLinux:
		return libLinux, nil
	case osDarwin:
		return libDarwin, nil
	case osWindows:
		return libWindows, nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// libraryCandidates lists where the shared library is looked for, in order.
func libraryCandidates(useGPU bool) []string {
	var paths []string
	if env := os.Getenv(EnvLibraryPath); env != "" {
		paths = append(paths, env)
	}

	name, err := libraryName(runtime.GOOS)
	if err != nil {
		return paths
	}
	if useGPU {
		paths = append(paths, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	paths = append(paths,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)

	if root, err := findProjectRoot(); err == nil {
		if useGPU {
			paths = append(paths, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		paths = append(paths, filepath.Join(root, "onnxruntime", "lib", name))
	}
	return paths
}

// findProjectRoot finds the project root directory by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// FindLibrary returns the first existing ONNX Runtime library.
func FindLibrary(useGPU bool) (string, error) {
	candidates := libraryCandidates(useGPU)
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("ONNX Runtime library not found (tried %d locations, set %s)", len(candidates), EnvLibraryPath)
}

var initMu sync.Mutex

// Initialize locates the shared library and starts the ONNX Runtime
// environment once per process.
func Initialize(useGPU bool) error {
	initMu.Lock()
	defer initMu.Unlock()

	if onnxruntime_go.IsInitialized() {
		return nil
	}
	lib, err := FindLibrary(useGPU)
	if err != nil {
		return err
	}
	onnxruntime_go.SetSharedLibraryPath(lib)
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}
