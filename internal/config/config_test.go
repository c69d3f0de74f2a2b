package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	proj, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), proj)
}

func TestLoadMergesOverFileDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upp.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[source]
roots = ["src", "vendor/upp"]

[diagnostics]
verbosity = "verbose"

[hardcoded]
overrides = { print = "println" }
`), 0644))

	proj, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []string{"src", "vendor/upp"}, proj.Source.Roots)
	require.Equal(t, "verbose", proj.Diagnostics.Verbosity)
	require.Equal(t, "println", proj.Hardcoded.Overrides["print"])
	require.Equal(t, "info", proj.Logging.Level, "unset sections keep their default")
}

func TestValidateRejectsUnknownVerbosity(t *testing.T) {
	proj := Default()
	proj.Diagnostics.Verbosity = "screaming"
	require.Error(t, proj.Validate())
}

func TestValidateRejectsEmptySourceRoots(t *testing.T) {
	proj := Default()
	proj.Source.Roots = nil
	require.Error(t, proj.Validate())
}

func TestFindAndLoadWalksUpToProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "upp.toml"), []byte(`
[source]
roots = ["."]
`), 0644))
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0755))

	proj, err := FindAndLoad(nested)
	require.NoError(t, err)
	require.Equal(t, []string{"."}, proj.Source.Roots)
}
