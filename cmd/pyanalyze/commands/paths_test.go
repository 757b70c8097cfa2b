package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePathsWithNoArgsWalksRoot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("x = 1\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("not python\n"), 0o600))

	files, err := resolvePaths(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.py")}, files)
}

func TestResolvePathsWithExplicitFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.py")
	require.NoError(t, os.WriteFile(file, []byte("x = 1\n"), 0o600))

	files, err := resolvePaths(dir, []string{file})
	require.NoError(t, err)
	assert.Equal(t, []string{file}, files)
}

func TestModuleNameForRelativePath(t *testing.T) {
	t.Parallel()

	root := string(filepath.Separator) + filepath.Join("proj")
	name := moduleNameFor(root, filepath.Join(root, "pkg", "mod.py"))
	assert.Equal(t, "pkg.mod", name)
}

func TestLogLevelDefaultsToInfo(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "INFO", logLevel("").String())
	assert.Equal(t, "DEBUG", logLevel("debug").String())
	assert.Equal(t, "WARN", logLevel("warn").String())
	assert.Equal(t, "ERROR", logLevel("error").String())
}
