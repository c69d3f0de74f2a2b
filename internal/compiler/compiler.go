// Package compiler wires every subsystem — identifier pool, type
// system, constant pool, scheduler, semantic analyser, editor info —
// into the single `Compile` entry point cmd/uppc drives (§2, §10). It
// is the one place allowed to own all of them together; every other
// package only ever sees the pieces it needs.
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/config"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/editorinfo"
	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/lexer"
	"github.com/upplang/upp/internal/modtree"
	"github.com/upplang/upp/internal/parser"
	"github.com/upplang/upp/internal/sema"
)

// unitExtension is the source file suffix a project root is scanned
// for (§2 step 1: "load source files... into compilation units").
const unitExtension = ".upp"

// Result is everything one Compile call produced: the assembled
// program, the accumulated diagnostics, and a per-unit editor index.
type Result struct {
	Program     *modtree.Program
	Diagnostics *diag.List
	EditorInfo  map[string]*editorinfo.Info // unit name -> index
}

// Compiler owns one compilation's shared caches and the logger tree
// its subsystems log through (§10: one root logger, named
// sub-loggers per subsystem, mirroring nomad's Agent).
type Compiler struct {
	Project *config.Project
	Logger  hclog.Logger
}

// New creates a Compiler for proj, building a root logger at the
// level proj.Logging names if logger is nil.
func New(proj *config.Project, logger hclog.Logger) *Compiler {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{
			Name:       "uppc",
			Level:      hclog.LevelFromString(proj.Logging.Level),
			JSONFormat: proj.Logging.JSON,
		})
	}
	return &Compiler{Project: proj, Logger: logger}
}

// unit is one loaded-and-parsed compilation unit, named by the path of
// its source file as walked, i.e. including the root it was found under.
type unit struct {
	name   string
	module *ast.Node
}

// Compile discovers every unit under c.Project.Source.Roots, lexes
// and parses them in parallel (§2 step 1-2), then runs semantic
// analysis across all of them and builds an editor index per unit
// (§4.7).
func (c *Compiler) Compile() (*Result, error) {
	paths, err := c.discoverUnits()
	if err != nil {
		return nil, err
	}

	// The Analyser owns the identifier pool and AST arena every unit
	// must share (§5: process-wide mutable caches), so it is
	// constructed before any unit is loaded rather than after.
	analyser := sema.New(c.Logger.Named("sema"), "")
	units := make([]*unit, len(paths))

	loadLog := c.Logger.Named("load")
	g := new(errgroup.Group)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			u, err := loadUnit(p, analyser.Idents, analyser.Arena)
			if err != nil {
				loadLog.Error("failed to load unit", "path", p, "error", err)
				return err
			}
			units[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, u := range units {
		analyser.AddUnit(u.name, u.module)
	}
	prog := analyser.Run()

	errsByUnit := map[string][]*diag.Error{}
	for _, e := range analyser.Diags.Errors() {
		errsByUnit[e.Unit] = append(errsByUnit[e.Unit], e)
	}

	info := make(map[string]*editorinfo.Info, len(units))
	for _, u := range units {
		info[u.name] = editorinfo.Build(analyser, u.module, errsByUnit[u.name])
	}

	return &Result{Program: prog, Diagnostics: analyser.Diags, EditorInfo: info}, nil
}

// discoverUnits walks every configured source root collecting every
// file ending in unitExtension.
func (c *Compiler) discoverUnits() ([]string, error) {
	var paths []string
	for _, root := range c.Project.Source.Roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			if strings.HasSuffix(path, unitExtension) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("compiler: walk %s: %w", root, err)
		}
	}
	return paths, nil
}

// loadUnit lexes and parses a single source file, sharing idents and
// arena with every other unit in the compilation (§5: process-wide
// mutable caches).
func loadUnit(path string, idents *ident.Pool, arena *ast.Arena) (*unit, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("compiler: read %s: %w", path, err)
	}
	lb, err := lexer.Lex(string(src), idents)
	if err != nil {
		return nil, fmt.Errorf("compiler: lex %s: %w", path, err)
	}
	p := parser.New(lb, arena, idents)
	module, err := p.ParseModule()
	if err != nil {
		return nil, fmt.Errorf("compiler: parse %s: %w", path, err)
	}
	return &unit{name: path, module: module}, nil
}
