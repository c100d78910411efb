package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// discoverFiles lists the files directly inside dir, sorted by name.
// Directories are skipped; symlinks are followed.
// With include patterns a file must match at least one of them by base name.
func discoverFiles(dir string, includePatterns []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot read source folder %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if len(includePatterns) > 0 && !matchesAnyPattern(e.Name(), includePatterns) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if e.Type()&fs.ModeSymlink != 0 {
			// Symlinks are followed; dangling ones are kept and fail on load.
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				continue
			}
		} else if e.IsDir() {
			continue
		}
		files = append(files, path)
	}
	slices.Sort(files)
	return files, nil
}

// matchesAnyPattern checks if a file name matches any of the given patterns.
func matchesAnyPattern(name string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// ValidatePatterns reports the first malformed include pattern.
func ValidatePatterns(patterns []string) error {
	for _, p := range patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return fmt.Errorf("invalid include pattern %q: %w", p, err)
		}
	}
	return nil
}
