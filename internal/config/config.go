// Package config loads the optional upp.toml project file (§10):
// source roots, hardcoded-function overrides, and diagnostics
// verbosity. CLI flags always override a file value.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Project is the decoded contents of upp.toml.
type Project struct {
	Source      SourceConfig      `toml:"source"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Hardcoded   HardcodedConfig   `toml:"hardcoded"`
	Logging     LoggingConfig     `toml:"logging"`
}

// SourceConfig names the unit roots the compiler loads (§2 step 1).
type SourceConfig struct {
	Roots []string `toml:"roots"`
}

// DiagnosticsConfig controls how much the error list reports (§7).
type DiagnosticsConfig struct {
	Verbosity      string `toml:"verbosity"` // "quiet", "normal", "verbose"
	ShowCausedBy   bool   `toml:"show_caused_by"`
	MaxPerCategory int    `toml:"max_per_category"` // 0 = unlimited
}

// HardcodedConfig lets a project rename which identifiers bind to the
// closed hardcoded-function set (§6), e.g. if a project's own prelude
// shadows one of the fixed names.
type HardcodedConfig struct {
	Overrides map[string]string `toml:"overrides"`
}

// LoggingConfig configures the root hclog.Logger internal/compiler
// builds (§10).
type LoggingConfig struct {
	Level string `toml:"level"` // trace, debug, info, warn, error
	JSON  bool   `toml:"json"`
}

// Default returns the configuration used when no upp.toml is present.
func Default() *Project {
	return &Project{
		Source: SourceConfig{Roots: []string{"."}},
		Diagnostics: DiagnosticsConfig{
			Verbosity:    "normal",
			ShowCausedBy: false,
		},
		Hardcoded: HardcodedConfig{Overrides: map[string]string{}},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads upp.toml at path, merging it over Default(). A missing
// file is not an error — the defaults alone are a valid configuration.
func Load(path string) (*Project, error) {
	proj := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return proj, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), proj); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if proj.Hardcoded.Overrides == nil {
		proj.Hardcoded.Overrides = map[string]string{}
	}
	return proj, nil
}

// FindAndLoad walks up from dir looking for upp.toml, the way a
// project-root config file is conventionally discovered; it returns
// Default() if none is found before reaching the filesystem root.
func FindAndLoad(dir string) (*Project, error) {
	cur, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve %s: %w", dir, err)
	}
	for {
		candidate := filepath.Join(cur, "upp.toml")
		if _, err := os.Stat(candidate); err == nil {
			return Load(candidate)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return Default(), nil
		}
		cur = parent
	}
}

// Validate reports a malformed project configuration before it is
// wired into a Compiler.
func (p *Project) Validate() error {
	if len(p.Source.Roots) == 0 {
		return fmt.Errorf("config: source.roots must name at least one path")
	}
	switch p.Diagnostics.Verbosity {
	case "quiet", "normal", "verbose":
	default:
		return fmt.Errorf("config: diagnostics.verbosity %q is not one of quiet/normal/verbose", p.Diagnostics.Verbosity)
	}
	switch p.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not a recognized hclog level", p.Logging.Level)
	}
	return nil
}
