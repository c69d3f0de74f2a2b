package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadProjectDefaultsRootsToGivenDir(t *testing.T) {
	dir := t.TempDir()
	configPath, verbose, jsonOutput = "", false, false

	proj, err := loadProject(dir)
	require.NoError(t, err)
	require.Equal(t, []string{dir}, proj.Source.Roots)
}

func TestLoadProjectVerboseRaisesLogLevel(t *testing.T) {
	dir := t.TempDir()
	configPath, jsonOutput = "", false
	verbose = true
	defer func() { verbose = false }()

	proj, err := loadProject(dir)
	require.NoError(t, err)
	require.Equal(t, "debug", proj.Logging.Level)
}

func TestLoadProjectAcceptsExplicitMissingConfig(t *testing.T) {
	dir := t.TempDir()
	verbose, jsonOutput = false, false
	configPath = filepath.Join(dir, "does-not-exist.toml")
	defer func() { configPath = "" }()

	proj, err := loadProject(dir)
	require.NoError(t, err, "Load treats a missing file as Default(), not an error")
	require.NotNil(t, proj)
}

func TestRootCmdRegistersSubcommands(t *testing.T) {
	root := rootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	require.True(t, names["compile"])
	require.True(t, names["check"])
	require.True(t, names["watch"])
}
