package sema

import (
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

// CastInfo records how a value of one type was converted to another,
// for the caller to annotate the emitted CastExpr (§4.6 Cast_Info).
type CastInfo struct {
	From, To   *types.Datatype
	Kind       symtab.CastMode
	Derefs     int  // number of automatic pointer dereferences inserted
	CustomFunc int  // opaque function symbol id, set only when a custom cast operator (implicit or explicit) performed the cast
}

// ImplicitCast attempts to convert a value of type from to type to
// following the fixed rule order of §4.6: identity, then
// pointer/optional conversions, then integer widening and
// array-to-slice decay, then an automatic dereference chain, then a
// user-defined cast registered in ctx, finally failure.
func (a *Analyser) ImplicitCast(from, to *types.Datatype, ctx *symtab.OperatorContext) (*CastInfo, error) {
	if from == to {
		return &CastInfo{From: from, To: to, Kind: symtab.CastNone}, nil
	}

	// Pointer/optional conversions: T -> ?T, *T -> *?T, *T -> ?*T (the
	// two pointer forms collapse to Pointer{optional:true} per the type
	// system's canonical representation).
	if to.Kind == types.KindOptional && from == to.OptionalChild {
		return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit}, nil
	}
	if to.Kind == types.KindPointer && from.Kind == types.KindPointer && to.Optional && !from.Optional && from.Element == to.Element {
		return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit}, nil
	}

	// Integer widening: same signedness, target width >= source width.
	if from.Kind == types.KindPrimitive && to.Kind == types.KindPrimitive &&
		from.PrimClass == types.ClassInt && to.PrimClass == types.ClassInt &&
		from.PrimSigned == to.PrimSigned && to.PrimWidth >= from.PrimWidth {
		return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit}, nil
	}
	// Integer -> float widening.
	if from.Kind == types.KindPrimitive && to.Kind == types.KindPrimitive &&
		from.PrimClass == types.ClassInt && to.PrimClass == types.ClassFloat {
		return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit}, nil
	}
	// float32 -> float64 widening.
	if from.Kind == types.KindPrimitive && to.Kind == types.KindPrimitive &&
		from.PrimClass == types.ClassFloat && to.PrimClass == types.ClassFloat && to.PrimWidth >= from.PrimWidth {
		return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit}, nil
	}
	// Array-to-slice decay: [N]T -> [..]T.
	if from.Kind == types.KindArray && to.Kind == types.KindSlice && from.ArrayElement == to.SliceElement {
		return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit}, nil
	}

	// Automatic dereference chain: *T (or *?T observed available) -> T,
	// applied repeatedly.
	derefs := 0
	cur := from
	for cur.Kind == types.KindPointer {
		cur = cur.Element
		derefs++
		if cur == to {
			return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit, Derefs: derefs}, nil
		}
	}

	// User-defined implicit cast registered against the active
	// operator context (§4.6 custom operator dispatch).
	if ctx != nil {
		if op, ok := ctx.Lookup(symtab.CustomOperatorKey{Kind: symtab.OpCast, LHS: from, RHS: to, CastMode: symtab.CastImplicit}); ok {
			return &CastInfo{From: from, To: to, Kind: symtab.CastImplicit, CustomFunc: op.Function}, nil
		}
	}

	return nil, &diag.Error{
		Kind:     diag.TypeMismatch,
		Message:  "no implicit conversion available",
		Unit:     a.unitName,
		Expected: diag.FormatType(to),
		Given:    diag.FormatType(from),
	}
}

// ExplicitCast resolves a `cast{To}(value)`/`cast_raw{To}(value)`
// expression: raw casts bypass validity checking entirely (a
// reinterpret of the underlying bytes); ordinary casts fall back to
// ImplicitCast and then to any explicit user-defined cast operator.
func (a *Analyser) ExplicitCast(from, to *types.Datatype, ctx *symtab.OperatorContext, raw bool) (*CastInfo, error) {
	if raw {
		return &CastInfo{From: from, To: to, Kind: symtab.CastPointerExplicit}, nil
	}
	if info, err := a.ImplicitCast(from, to, ctx); err == nil {
		return info, nil
	}
	if ctx != nil {
		if op, ok := ctx.Lookup(symtab.CustomOperatorKey{Kind: symtab.OpCast, LHS: from, RHS: to, CastMode: symtab.CastExplicit}); ok {
			return &CastInfo{From: from, To: to, Kind: symtab.CastExplicit, CustomFunc: op.Function}, nil
		}
	}
	return nil, &diag.Error{
		Kind:     diag.InvalidCast,
		Message:  "no cast available",
		Unit:     a.unitName,
		Expected: diag.FormatType(to),
		Given:    diag.FormatType(from),
	}
}
