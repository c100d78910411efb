// Package models resolves where the pith and ring models live on disk.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Default model file names.
const (
	PithModel  = "pith.onnx"
	RingsModel = "rings.onnx"
)

// Model type sub-directories.
const (
	TypePith  = "pith"
	TypeRings = "rings"
)

// DefaultModelsDir is the directory name searched below the project root.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "TREERINGS_MODELS_DIR"

// appDataDir is the per-user data directory name.
const appDataDir = "treerings"

// findProjectRoot finds the project root by looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.New("could not find project root (go.mod not found)")
}

// userModelsDir returns <user config dir>/treerings/models.
func userModelsDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, appDataDir, DefaultModelsDir), nil
}

// GetModelsDir returns the models directory.
// Priority: 1. explicit modelsDir, 2. environment variable, 3. project root
// + default, 4. per-user data directory, 5. relative default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}

	if envDir := os.Getenv(EnvModelsDir); envDir != "" {
		return envDir
	}

	if projectRoot, err := findProjectRoot(); err == nil {
		return filepath.Join(projectRoot, DefaultModelsDir)
	}

	if dir, err := userModelsDir(); err == nil {
		return dir
	}

	return DefaultModelsDir
}

// ResolveModelPath returns <models>/<type>/<filename> when it exists and
// the flat <models>/<filename> otherwise.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	baseDir := GetModelsDir(modelsDir)

	if modelType != "" {
		organized := filepath.Join(baseDir, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}

	return filepath.Join(baseDir, filename)
}

// GetPithModelPath returns the path of the pith model.
func GetPithModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypePith, PithModel)
}

// GetRingsModelPath returns the path of the rings model.
func GetRingsModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeRings, RingsModel)
}

// ValidateModelExists checks if a model file exists at the given path.
func ValidateModelExists(modelPath string) error {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", modelPath)
	}
	return nil
}

// ListModels returns the sorted .onnx file names in <models>/<type>.
func ListModels(modelsDir, modelType string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(GetModelsDir(modelsDir), modelType))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".onnx") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
