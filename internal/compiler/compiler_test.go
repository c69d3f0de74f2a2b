package compiler

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upplang/upp/internal/config"
)

func TestDiscoverUnitsFindsOnlyUppFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.upp"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), []byte(""), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.upp"), []byte(""), 0644))

	proj := config.Default()
	proj.Source.Roots = []string{dir}
	c := New(proj, nil)

	paths, err := c.discoverUnits()
	require.NoError(t, err)
	sort.Strings(paths)
	require.Len(t, paths, 2)
	require.Contains(t, paths[0], "a.upp")
	require.Contains(t, paths[1], "b.upp")
}

func TestNewBuildsALoggerWhenNoneGiven(t *testing.T) {
	proj := config.Default()
	c := New(proj, nil)
	require.NotNil(t, c.Logger)
}
