package editorinfo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/symtab"
	tok "github.com/upplang/upp/internal/token"
	"github.com/upplang/upp/internal/types"
)

// fakeSema lets these tests pin down ExprType/NodeSymbol results per
// node without running the scheduler-driven analyser.
type fakeSema struct {
	types   map[*ast.Node]*types.Datatype
	syms    map[*ast.Node]*symtab.Symbol
	argType map[*ast.Node]*types.Datatype
	calls   map[*ast.Node]*types.Signature
}

func newFakeSema() *fakeSema {
	return &fakeSema{
		types:   map[*ast.Node]*types.Datatype{},
		syms:    map[*ast.Node]*symtab.Symbol{},
		argType: map[*ast.Node]*types.Datatype{},
		calls:   map[*ast.Node]*types.Signature{},
	}
}

func (f *fakeSema) ExprType(n *ast.Node) *types.Datatype  { return f.types[n] }
func (f *fakeSema) NodeSymbol(n *ast.Node) *symtab.Symbol { return f.syms[n] }
func (f *fakeSema) ArgumentExpectedType(n *ast.Node) *types.Datatype { return f.argType[n] }
func (f *fakeSema) CallSignature(n *ast.Node) *types.Signature       { return f.calls[n] }

func rangeAt(line, index int) tok.TokenRange {
	p := tok.TokenPoint{Line: line, Index: index}
	return tok.TokenRange{Start: p, End: p}
}

func TestBuildSortsByLineThenIndex(t *testing.T) {
	arena := ast.NewArena()
	a := arena.New(ast.KindIdentifierExpr, rangeAt(3, 5))
	b := arena.New(ast.KindIdentifierExpr, rangeAt(1, 2))
	module := arena.New(ast.KindModule, rangeAt(0, 0), a, b)

	sys := types.New()
	i32 := sys.MakePrimitive(types.ClassInt, true, 4)

	sem := newFakeSema()
	sem.types[a] = i32
	sem.types[b] = i32

	info := Build(sem, module, nil)
	require.Len(t, info.Facts, 4, "each identifier gets a markup-colour fact plus an ExprType fact")
	require.Equal(t, 1, info.Facts[0].Line, "line 1's facts must sort before line 3's")
	require.Equal(t, 3, info.Facts[len(info.Facts)-1].Line)
}

func TestFactsOnLineOmitsEmptyLines(t *testing.T) {
	arena := ast.NewArena()
	a := arena.New(ast.KindIdentifierExpr, rangeAt(2, 0))
	module := arena.New(ast.KindModule, rangeAt(0, 0), a)

	sys := types.New()
	sem := newFakeSema()
	sem.types[a] = sys.MakePrimitive(types.ClassBool, false, 1)

	info := Build(sem, module, nil)
	require.Nil(t, info.FactsOnLine(0), "a line with no recorded fact has no entry")
	require.Len(t, info.FactsOnLine(2), 2, "markup colour plus ExprType")
}

func TestHoverTextRendersExprType(t *testing.T) {
	arena := ast.NewArena()
	a := arena.New(ast.KindIdentifierExpr, rangeAt(0, 4))
	module := arena.New(ast.KindModule, rangeAt(0, 0), a)

	sys := types.New()
	sem := newFakeSema()
	sem.types[a] = sys.MakePrimitive(types.ClassInt, true, 4)

	info := Build(sem, module, nil)
	require.NotEmpty(t, HoverText(info, 0, 4))
	require.Empty(t, HoverText(info, 0, 99), "no fact recorded at that index")
}

func TestBuildRecordsSymbolRefSeparatelyFromExprType(t *testing.T) {
	arena := ast.NewArena()
	n := arena.New(ast.KindIdentifierExpr, rangeAt(0, 0))
	module := arena.New(ast.KindModule, rangeAt(0, 0), n)

	sys := types.New()
	idents := ident.New()
	table := symtab.New(nil, symtab.Global)
	sym := table.Define(idents.Add("x"), symtab.VariableType, symtab.Global)
	sym.Type = sys.MakePrimitive(types.ClassInt, true, 4)

	sem := newFakeSema()
	sem.types[n] = sym.Type
	sem.syms[n] = sym

	info := Build(sem, module, nil)
	facts := info.FactsOnLine(0)
	require.Len(t, facts, 3, "markup colour, ExprType, and SymbolRef facts")
}

func TestBuildRecordsCallAndArgumentInfo(t *testing.T) {
	arena := ast.NewArena()
	argExpr := arena.New(ast.KindIdentifierExpr, rangeAt(0, 2))
	arg := arena.New(ast.KindArgument, rangeAt(0, 2), argExpr)
	call := arena.New(ast.KindCallExpr, rangeAt(0, 0), arg)
	module := arena.New(ast.KindModule, rangeAt(0, 0), call)

	sys := types.New()
	i32 := sys.MakePrimitive(types.ClassInt, true, 4)
	sig := sys.RegisterSignature(&types.Signature{Parameters: []*types.Datatype{i32}, ReturnType: i32})

	sem := newFakeSema()
	sem.calls[call] = sig
	sem.argType[arg] = i32

	info := Build(sem, module, nil)
	facts := info.FactsOnLine(0)

	var sawCall, sawArg bool
	for _, f := range facts {
		if f.Kind == FactCallInfo {
			sawCall = true
			require.Same(t, sig, f.Signature)
		}
		if f.Kind == FactArgumentInfo {
			sawArg = true
			require.Same(t, i32, f.ArgType)
		}
	}
	require.True(t, sawCall, "call expression must carry a FactCallInfo")
	require.True(t, sawArg, "argument node must carry a FactArgumentInfo")
}

func TestBuildRecordsErrorIndexFromDiagnostics(t *testing.T) {
	arena := ast.NewArena()
	n := arena.New(ast.KindIdentifierExpr, rangeAt(4, 1))
	module := arena.New(ast.KindModule, rangeAt(0, 0), n)

	sem := newFakeSema()
	derr := &diag.Error{Kind: diag.UnresolvedSymbol, Message: "unknown identifier", Unit: "u", Node: n}

	info := Build(sem, module, []*diag.Error{derr})
	facts := info.FactsOnLine(4)

	var sawErr bool
	for _, f := range facts {
		if f.Kind == FactErrorIndex {
			sawErr = true
			require.Same(t, derr, f.Err)
		}
	}
	require.True(t, sawErr, "a diagnostic anchored to a node must surface as a FactErrorIndex")
}

func TestColourOfClassifiesByNodeKind(t *testing.T) {
	arena := ast.NewArena()
	lit := arena.New(ast.KindIntLiteralExpr, rangeAt(0, 0))
	kw := arena.New(ast.KindIfStmt, rangeAt(0, 0))
	other := arena.New(ast.KindBlock, rangeAt(0, 0))

	require.Equal(t, ColourLiteral, colourOf(lit))
	require.Equal(t, ColourKeyword, colourOf(kw))
	require.Equal(t, ColourNone, colourOf(other))
}
