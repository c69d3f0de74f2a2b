// Command uppc is the command-line driver for the Upp semantic
// analyser: compile, check, and watch a project directory (§10).
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/upplang/upp/internal/compiler"
	"github.com/upplang/upp/internal/config"
)

var (
	configPath string
	verbose    bool
	jsonOutput bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "uppc",
		Short: "uppc analyses Upp source against the project's semantic rules",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to upp.toml (default: discovered by walking up from <dir>)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
	root.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "print the diagnostics list as JSON lines instead of text")

	root.AddCommand(compileCmd(), checkCmd(), watchCmd())
	return root
}

func compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <dir>",
		Short: "run semantic analysis over <dir> and report its diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runOnce(args[0])
			return err
		},
	}
}

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <dir>",
		Short: "run semantic analysis only, reporting diagnostics but no program output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := runOnce(args[0])
			if err != nil {
				return err
			}
			if result.Diagnostics.HasFatal() {
				return fmt.Errorf("check found %d error(s)", result.Diagnostics.Len())
			}
			return nil
		},
	}
}

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <dir>",
		Short: "re-run analysis on every file change under <dir> (not incremental, §1 Non-goals)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(args[0])
		},
	}
}

func loadProject(dir string) (*config.Project, error) {
	var proj *config.Project
	var err error
	if configPath != "" {
		proj, err = config.Load(configPath)
	} else {
		proj, err = config.FindAndLoad(dir)
	}
	if err != nil {
		return nil, err
	}
	if len(proj.Source.Roots) == 0 || (len(proj.Source.Roots) == 1 && proj.Source.Roots[0] == ".") {
		proj.Source.Roots = []string{dir}
	}
	if verbose {
		proj.Logging.Level = "debug"
	}
	if err := proj.Validate(); err != nil {
		return nil, err
	}
	return proj, nil
}

func runOnce(dir string) (*compiler.Result, error) {
	proj, err := loadProject(dir)
	if err != nil {
		return nil, err
	}
	logger := hclog.New(&hclog.LoggerOptions{Name: "uppc", Level: hclog.LevelFromString(proj.Logging.Level)})
	c := compiler.New(proj, logger)

	result, err := c.Compile()
	if err != nil {
		return nil, err
	}
	printDiagnostics(result)
	return result, nil
}

func printDiagnostics(result *compiler.Result) {
	for _, e := range result.Diagnostics.Errors() {
		if jsonOutput {
			fmt.Printf("{\"unit\":%q,\"kind\":%q,\"message\":%q}\n", e.Unit, e.Kind, e.Message)
			continue
		}
		fmt.Fprintln(os.Stderr, e.Error())
	}
	if !result.Diagnostics.HasFatal() && result.Program != nil && result.Program.IsFullyRunnable() {
		fmt.Println("compilation succeeded")
	}
}

func runWatch(dir string) error {
	if _, err := runOnce(dir); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("uppc: start watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, dir); err != nil {
		return err
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if _, err := runOnce(dir); err != nil {
				fmt.Fprintln(os.Stderr, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "uppc: watch error:", err)
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}
