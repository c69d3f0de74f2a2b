package compiler

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/lexer"
	"github.com/upplang/upp/internal/modtree"
	"github.com/upplang/upp/internal/parser"
	"github.com/upplang/upp/internal/sema"
)

// loadScenario reads the single "main.upp" file out of a txtar fixture
// under testdata/scenarios, the scenario programs modelled on §8 kept
// alongside a one-line description of what each one exercises.
func loadScenario(t *testing.T, name string) string {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	for _, f := range ar.Files {
		if f.Name == "main.upp" {
			return string(f.Data)
		}
	}
	t.Fatalf("scenario %s has no main.upp file", name)
	return ""
}

// parseUnit lexes and parses src against a fresh Analyser's shared pool
// and arena, the way loadUnit does for a real compilation.
func parseUnit(t *testing.T, a *sema.Analyser, src string) *ast.Node {
	t.Helper()
	lb, err := lexer.Lex(src, a.Idents)
	require.NoError(t, err)
	p := parser.New(lb, a.Arena, a.Idents)
	module, err := p.ParseModule()
	require.NoError(t, err)
	return module
}

func findFunc(prog *modtree.Program, idents *ident.Pool, name string) *modtree.Function {
	id, ok := idents.Lookup(name)
	if !ok {
		return nil
	}
	for _, fn := range prog.Functions {
		if fn.Name == id {
			return fn
		}
	}
	return nil
}

// TestScenarioS1EmptyMain covers the trivial single-function program.
func TestScenarioS1EmptyMain(t *testing.T) {
	a := sema.New(nil, "s1.upp")
	module := parseUnit(t, a, loadScenario(t, "s1_empty_main.txt"))
	prog := a.AnalyseModule(module)

	require.Equal(t, 0, a.Diags.Len())
	require.Len(t, prog.Functions, 1)
	require.NotNil(t, prog.Main)
	require.True(t, prog.Main.IsRunnable)
	require.True(t, prog.IsFullyRunnable())
}

// TestScenarioS2SelfReferentialStruct covers a struct whose member
// points back at an instance of itself, resolved through the instance
// cache (the instance is cached before its members are analysed)
// rather than eager recursive instantiation.
func TestScenarioS2SelfReferentialStruct(t *testing.T) {
	a := sema.New(nil, "s2.upp")
	module := parseUnit(t, a, loadScenario(t, "s2_self_referential_struct.txt"))
	prog := a.AnalyseModule(module)

	require.Equal(t, 0, a.Diags.Len())
	main := findFunc(prog, a.Idents, "main")
	require.NotNil(t, main)
	require.True(t, main.IsRunnable)
}

// TestScenarioS3DirectRecursionCallGraph covers the directly-recursive
// call-graph case; the mutually-recursive cluster case is
// TestScenarioS3MutualRecursionSharesCluster.
func TestScenarioS3DirectRecursionCallGraph(t *testing.T) {
	a := sema.New(nil, "s3a.upp")
	module := parseUnit(t, a, loadScenario(t, "s3_direct_recursion.txt"))
	prog := a.AnalyseModule(module)

	require.Equal(t, 0, a.Diags.Len())
	foo := findFunc(prog, a.Idents, "foo")
	bar := findFunc(prog, a.Idents, "bar")
	require.NotNil(t, foo)
	require.NotNil(t, bar)
	require.True(t, foo.IsRunnable)
	require.True(t, bar.IsRunnable)
	require.Len(t, foo.Calls, 1)
	require.Same(t, foo, foo.Calls[0].Callee)
	require.Len(t, bar.Calls, 1)
	require.Same(t, foo, bar.Calls[0].Callee)

	// foo calls only itself, never bar: the call graph stays a single
	// edge per function even though both are runnable.
	gotCallees := []string{foo.Calls[0].Callee.Name.String()}
	if diff := cmp.Diff([]string{"foo"}, gotCallees); diff != "" {
		t.Errorf("foo.Calls mismatch (-want +got):\n%s", diff)
	}
}

func TestScenarioS3MutualRecursionSharesCluster(t *testing.T) {
	a := sema.New(nil, "s3b.upp")
	module := parseUnit(t, a, loadScenario(t, "s3_mutual_recursion.txt"))
	prog := a.AnalyseModule(module)

	require.Equal(t, 0, a.Diags.Len())
	even := findFunc(prog, a.Idents, "even")
	odd := findFunc(prog, a.Idents, "odd")
	require.NotNil(t, even)
	require.NotNil(t, odd)
	require.True(t, even.IsRunnable)
	require.True(t, odd.IsRunnable)
	require.NotZero(t, even.ClusterID)
	require.Equal(t, even.ClusterID, odd.ClusterID)
}

// TestScenarioS4CustomCastContext covers an installed custom cast
// operator applied at an implicit-conversion site.
func TestScenarioS4CustomCastContext(t *testing.T) {
	a := sema.New(nil, "s4.upp")
	module := parseUnit(t, a, loadScenario(t, "s4_custom_cast_context.txt"))
	prog := a.AnalyseModule(module)

	require.Equal(t, 0, a.Diags.Len())
	main := findFunc(prog, a.Idents, "main")
	require.NotNil(t, main)
	require.True(t, main.IsRunnable)
}

// TestScenarioS5DeferBeforeReturn covers two defer statements followed
// by a return analysing without diagnostics. The analyser records no
// emission order for deferred statements and exposes no control-flow
// verdict, so neither the LIFO order nor the body's Returns control
// flow is checked here.
func TestScenarioS5DeferBeforeReturn(t *testing.T) {
	a := sema.New(nil, "s5.upp")
	module := parseUnit(t, a, loadScenario(t, "s5_defer_lifo.txt"))
	prog := a.AnalyseModule(module)

	require.Equal(t, 0, a.Diags.Len())
	main := findFunc(prog, a.Idents, "main")
	require.NotNil(t, main)
	require.True(t, main.IsRunnable)
}

// TestScenarioS6UnresolvedSymbol covers the error path: a read of an
// identifier that was never defined.
func TestScenarioS6UnresolvedSymbol(t *testing.T) {
	a := sema.New(nil, "s6.upp")
	module := parseUnit(t, a, loadScenario(t, "s6_unresolved_symbol.txt"))
	prog := a.AnalyseModule(module)

	errs := a.Diags.Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "unresolved symbol", errs[0].Kind.String())

	main := findFunc(prog, a.Idents, "main")
	require.NotNil(t, main)
	require.True(t, main.ContainsErrors)
	require.False(t, main.IsRunnable)
	require.False(t, prog.IsFullyRunnable())
}
