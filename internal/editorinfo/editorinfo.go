// Package editorinfo builds the per-token index from source position
// to semantic facts that a text editor front-end queries for hover
// info, go-to-definition, and inline type hints (§4.7). It is an
// output-only consumer of internal/sema's per-node side tables; it
// never re-derives semantic facts itself.
package editorinfo

import (
	"sort"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

// Pass distinguishes which analysis stage produced a Fact, mirroring
// the original's per-pass info lists (§12: editor_analysis_info.cpp).
// Facts at the same line/item_index are ordered by Pass, earlier pass
// first, by the sort in Build; every fact is kept, none replaces another.
type Pass int

const (
	PassSyntax Pass = iota
	PassSemantic
)

// FactKind closes the set of things one Fact can report about a
// token (§4.7: "markup colour, expression info, symbol lookup, call
// info, argument info, error-index").
type FactKind int

const (
	FactExprType FactKind = iota
	FactSymbolRef
	FactMarkupColour
	FactCallInfo
	FactArgumentInfo
	FactErrorIndex
)

// MarkupColour closes the set of syntax-highlight classes the markup
// colour fact can assign a node, derived from its ast.Kind.
type MarkupColour int

const (
	ColourNone MarkupColour = iota
	ColourKeyword
	ColourLiteral
	ColourIdentifier
	ColourType
	ColourCall
)

// Fact is one semantic datum attached to a single token position.
type Fact struct {
	Pass      Pass
	Line      int
	Index     int // item_index: the token's position within its line
	Kind      FactKind
	Type      *types.Datatype
	Symbol    *symtab.Symbol
	Node      *ast.Node
	Colour    MarkupColour     // FactMarkupColour
	Signature *types.Signature // FactCallInfo
	ArgType   *types.Datatype  // FactArgumentInfo: the parameter type this argument was checked against
	Err       *diag.Error      // FactErrorIndex
}

// Semantics is the minimal read side of internal/sema.Analyser this
// package depends on, kept as an interface so editorinfo never imports
// the scheduler/workload machinery that produces these facts.
type Semantics interface {
	ExprType(n *ast.Node) *types.Datatype
	NodeSymbol(n *ast.Node) *symtab.Symbol
	ArgumentExpectedType(n *ast.Node) *types.Datatype
	CallSignature(n *ast.Node) *types.Signature
}

// LineSlice is a (start, count) window into Info's flat Facts array
// for one source line, the range-compressed representation described
// in §12. Lines with zero facts are omitted entirely from LinesByNumber.
type LineSlice struct {
	Start int
	Count int
}

// Info is the finished, query-ready editor index for one unit: every
// fact collected, sorted by (line, item_index, pass), plus a
// line-number -> LineSlice map for the lines that have at least one
// fact.
type Info struct {
	Facts         []Fact
	LinesByNumber map[int]LineSlice
}

// FactsOnLine returns every fact recorded for line, in
// (item_index, pass) order, or nil if the line has none.
func (info *Info) FactsOnLine(line int) []Fact {
	sl, ok := info.LinesByNumber[line]
	if !ok {
		return nil
	}
	return info.Facts[sl.Start : sl.Start+sl.Count]
}

// colourOf classifies a node's markup colour purely from its kind, the
// same syntax-class split a front-end highlighter wants independent of
// whether semantic analysis ever resolved the node (§4.7 markup
// colour: pushed alongside, not instead of, the semantic facts).
func colourOf(n *ast.Node) MarkupColour {
	switch n.Kind {
	case ast.KindIntLiteralExpr, ast.KindFloatLiteralExpr, ast.KindBoolLiteralExpr, ast.KindStringLiteralExpr:
		return ColourLiteral
	case ast.KindCallExpr:
		return ColourCall
	case ast.KindTypeExpr:
		return ColourType
	case ast.KindIdentifierExpr:
		return ColourIdentifier
	case ast.KindIfStmt, ast.KindWhileStmt, ast.KindForStmt, ast.KindSwitchStmt, ast.KindCaseClause,
		ast.KindReturnStmt, ast.KindBreakStmt, ast.KindContinueStmt, ast.KindDeferStmt,
		ast.KindFunctionDef, ast.KindStructDef, ast.KindEnumDef, ast.KindVarDecl, ast.KindImport:
		return ColourKeyword
	default:
		return ColourNone
	}
}

// Build walks module (and every node reachable from it) recording
// every semantic fact internal/sema has for each node — expression
// type, symbol reference, markup colour, call info, argument info —
// then appends one error-index fact per diagnostic anchored to a node
// in this unit, and finally sorts and range-compresses the result
// (§4.7, §12).
func Build(sem Semantics, module *ast.Node, errs []*diag.Error) *Info {
	var facts []Fact
	ast.Walk(module, func(n *ast.Node, depth int) {
		line := n.Range.Start.Line
		idx := n.Range.Start.Index

		if c := colourOf(n); c != ColourNone {
			facts = append(facts, Fact{Pass: PassSyntax, Line: line, Index: idx, Kind: FactMarkupColour, Node: n, Colour: c})
		}
		if t := sem.ExprType(n); t != nil {
			facts = append(facts, Fact{Pass: PassSemantic, Line: line, Index: idx, Kind: FactExprType, Type: t, Node: n})
		}
		if sym := sem.NodeSymbol(n); sym != nil {
			facts = append(facts, Fact{Pass: PassSemantic, Line: line, Index: idx, Kind: FactSymbolRef, Symbol: sym, Node: n})
		}
		if sig := sem.CallSignature(n); sig != nil {
			facts = append(facts, Fact{Pass: PassSemantic, Line: line, Index: idx, Kind: FactCallInfo, Node: n, Signature: sig})
		}
		if at := sem.ArgumentExpectedType(n); at != nil {
			facts = append(facts, Fact{Pass: PassSemantic, Line: line, Index: idx, Kind: FactArgumentInfo, Node: n, ArgType: at})
		}
	})

	for _, e := range errs {
		if e.Node == nil {
			continue
		}
		facts = append(facts, Fact{
			Pass: PassSemantic, Line: e.Node.Range.Start.Line, Index: e.Node.Range.Start.Index,
			Kind: FactErrorIndex, Node: e.Node, Err: e,
		})
	}

	sort.SliceStable(facts, func(i, j int) bool {
		if facts[i].Line != facts[j].Line {
			return facts[i].Line < facts[j].Line
		}
		if facts[i].Index != facts[j].Index {
			return facts[i].Index < facts[j].Index
		}
		return facts[i].Pass < facts[j].Pass
	})

	lines := map[int]LineSlice{}
	i := 0
	for i < len(facts) {
		line := facts[i].Line
		start := i
		for i < len(facts) && facts[i].Line == line {
			i++
		}
		lines[line] = LineSlice{Start: start, Count: i - start}
	}

	return &Info{Facts: facts, LinesByNumber: lines}
}

// HoverText renders the human-facing string an editor would show for
// the first ExprType fact at (line, index), or "" if none exists.
func HoverText(info *Info, line, index int) string {
	for _, f := range info.FactsOnLine(line) {
		if f.Index != index {
			continue
		}
		if f.Kind == FactExprType && f.Type != nil {
			return diag.FormatType(f.Type)
		}
	}
	return ""
}
