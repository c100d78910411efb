package options

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// DefaultFileName is the options file of the segment-trunk command.
const DefaultFileName = "tra-options.txt"

// PluginDir is the plugin folder holding DefaultFileName inside a Fiji
// installation's plugins directory.
const PluginDir = "mri-tree-rings-tool"

// DefaultPath returns where the options file lives: inside the Fiji plugins
// folder when fijiDir is set, otherwise under the user configuration
// directory.
func DefaultPath(fijiDir string) (string, error) {
	if fijiDir != "" {
		return filepath.Join(fijiDir, "plugins", PluginDir, DefaultFileName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate options file: %w", err)
	}
	return filepath.Join(dir, "treerings", DefaultFileName), nil
}

// File persists one options line for a schema.
type File struct {
	Path   string
	Schema Schema
}

// NewFile returns a File for the segment-trunk schema.
func NewFile(path string) *File {
	return &File{Path: path, Schema: SegmentTrunk}
}

// Load reads the options line. A missing file is created with the defaults.
func (f *File) Load() (Options, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Debug("options file missing, writing defaults", "path", f.Path)
		defaults := f.Schema.Defaults()
		if err := f.Save(defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read options file %s: %w", f.Path, err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return Parse(f.Schema, strings.TrimSpace(line))
}

// Save writes o as a single line.
func (f *File) Save(o Options) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o750); err != nil {
		return fmt.Errorf("create options directory: %w", err)
	}
	if err := os.WriteFile(f.Path, []byte(Format(f.Schema, o)+"\n"), 0o600); err != nil {
		return fmt.Errorf("write options file %s: %w", f.Path, err)
	}
	return nil
}

// Set applies key=value (or bare boolean key) assignments to the stored
// options and saves them. A bare boolean key prefixed with "no-" clears it.
func (f *File) Set(assignments ...string) (Options, error) {
	o, err := f.Load()
	if err != nil {
		return nil, err
	}
	for _, a := range assignments {
		key, _, hasValue := strings.Cut(a, "=")
		if name, ok := strings.CutPrefix(key, "no-"); ok && !hasValue {
			if p, found := f.Schema.Lookup(name); found && p.Kind == KindBool {
				o[name] = false
				continue
			}
		}
		one, err := Parse(f.Schema, a)
		if err != nil {
			return nil, err
		}
		o[key] = one[key]
	}
	if err := f.Save(o); err != nil {
		return nil, err
	}
	return o, nil
}

// Reset overwrites the file with the defaults.
func (f *File) Reset() (Options, error) {
	o := f.Schema.Defaults()
	return o, f.Save(o)
}
