// Package diag implements the closed error taxonomy and diagnostics
// model of §7, plus type/value pretty-printing. Aggregation across
// workloads uses github.com/hashicorp/go-multierror, composing
// cleanly with errors.Is/As per SPEC_FULL.md §10.
package diag

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/upplang/upp/internal/ast"
)

// Kind is the closed set of error kinds named in §7.
type Kind int

const (
	LexError Kind = iota
	ParseError
	UnresolvedSymbol
	SymbolRedefined
	InvalidTypeForOperation
	TypeMismatch
	ArgumentCountMismatch
	MissingReturn
	NoMain
	MainWrongSignature
	CyclicUnbreakableDependency
	InvalidCast
	StructMemberNotFound
	DeferContainsReturn
	BreakContinueOutsideLoop
	TemplateArgumentCountMismatch
	TemplateArgumentsOnNonTemplate
	TemplateArgumentsRequired
	ExternHeaderParseFailed
	ExternHeaderMissingSymbol
	UnreachableStatement
	WhileTriviallyTerminating
	WhileNonTerminating
	WhileAlwaysReturning
	NonIntegerArraySize     // not implemented
	NestedDefer             // not implemented
	GlobalTemplate          // not implemented
	ExternInsideTemplate    // not implemented
	CausedByUnknown         // downgraded error, counted separately (§7)
)

func (k Kind) String() string {
	names := [...]string{
		"lex error", "parser error", "unresolved symbol", "symbol redefined",
		"invalid type for operation", "type mismatch", "argument count mismatch",
		"missing return", "no main", "main has wrong signature",
		"cyclic unbreakable dependency", "invalid cast", "struct member not found",
		"defer contains return", "break/continue outside loop",
		"template argument count mismatch", "template arguments on non-template",
		"template arguments required", "extern header parse failed",
		"extern header missing symbol", "unreachable statement",
		"while-loop trivially terminating", "while-loop non-terminating",
		"while-loop always returning", "non-integer array size (not implemented)",
		"nested defer (not implemented)", "global template (not implemented)",
		"extern inside template (not implemented)", "caused by unknown",
	}
	if int(k) >= 0 && int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is {message, unit, semantic_error_index, text_index} (§6
// Output: error list).
type Error struct {
	Kind               Kind
	Message            string
	Unit               string
	SemanticErrorIndex int
	TextIndex          int // opaque token-range/text-range-mapped index; see internal/token
	Expected           string // populated for TypeMismatch: expected vs given
	Given              string
	Node               *ast.Node // source node this error anchors to, if known (§4.7 error-index facts)
}

func (e *Error) Error() string {
	if e.Expected != "" || e.Given != "" {
		return fmt.Sprintf("%s: %s (expected %s, given %s)", e.Unit, e.Kind, e.Expected, e.Given)
	}
	return fmt.Sprintf("%s: %s: %s", e.Unit, e.Kind, e.Message)
}

// List aggregates every parser/semantic error produced during one
// compilation (§6 Output: "An error list").
type List struct {
	errs *multierror.Error
}

func (l *List) Add(e *Error) {
	l.errs = multierror.Append(l.errs, e)
}

// Errors returns every *Error added so far, in insertion order.
func (l *List) Errors() []*Error {
	if l.errs == nil {
		return nil
	}
	out := make([]*Error, 0, len(l.errs.Errors))
	for _, e := range l.errs.Errors {
		if de, ok := e.(*Error); ok {
			out = append(out, de)
		}
	}
	return out
}

// Len reports how many errors have been recorded.
func (l *List) Len() int {
	if l.errs == nil {
		return 0
	}
	return len(l.errs.Errors)
}

// ErrorOrNil exposes the aggregate as a single error value (nil if
// empty), for callers that want to propagate the whole list through a
// normal Go error return.
func (l *List) ErrorOrNil() error {
	if l.errs == nil {
		return nil
	}
	return l.errs.ErrorOrNil()
}

// HasFatal reports whether any recorded error is not merely a
// CausedByUnknown downgrade (§7: downgraded errors are "counted
// separately so the top-level error list is de-duplicated").
func (l *List) HasFatal() bool {
	for _, e := range l.Errors() {
		if e.Kind != CausedByUnknown {
			return true
		}
	}
	return false
}
