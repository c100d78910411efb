package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.True(t, DirExists(filepath.Join(root, "internal")))
}

func TestListFiles_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o600))
	require.NoError(t, EnsureDir(filepath.Join(dir, "sub")))

	assert.Equal(t, []string{"a.txt"}, ListFiles(t, dir))
	assert.False(t, FileExists(filepath.Join(dir, "missing")))
	assert.False(t, DirExists(filepath.Join(dir, "a.txt")))
}
