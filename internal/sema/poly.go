package sema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/modtree"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

// errNotReady signals that an analysis step depends on a struct,
// function or Definition whose own workload has not produced its
// result yet. No caller retries on it: it propagates like any other
// error, and the workload that receives it records it as a diagnostic.
var errNotReady = errors.New("sema: dependency not ready")

// polyKey identifies one polymorphic struct instantiation by the
// defining symbol and the concrete argument types supplied (§4.6
// Poly_Header / Parameter_Match: "the instance cache dedups on
// (header, args)").
type polyKey struct {
	header *symtab.Symbol
	args   string
}

// funcPolyKey is polyKey's function-side counterpart: functions have
// no single defining symbol shared by every call site the way a struct
// does (recursion aside), so the def node stands in for it.
type funcPolyKey struct {
	node *ast.Node
	args string
}

func argsKey(args []*types.Datatype) string {
	var b strings.Builder
	for i, a := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(typeIdentity(a))
	}
	return b.String()
}

// typeIdentity renders a stable per-process identity string for a
// Datatype pointer. Structural types are already deduplicated by
// internal/types, so pointer identity is a sound dedup key.
func typeIdentity(t *types.Datatype) string {
	return fmt.Sprintf("%p", t)
}

// instantiatePolyStruct returns the (cached, or newly built) Datatype
// for structSym instantiated with args (§4.6 Parameter_Match). Called
// uniformly whether or not structSym is itself generic and whether or
// not args is empty: the arg-count/non-template checks happen here so
// a caller (EvalTypeExpr's named-type path, or a poly function header's
// hover pass) never has to duplicate them.
func (a *Analyser) instantiatePolyStruct(structSym *symtab.Symbol, args []*types.Datatype) (*types.Datatype, error) {
	node := a.symbolStructNode[structSym]
	name := "<unknown>"
	if node != nil {
		name = node.Ident.String()
	}
	numParams := 0
	if node != nil {
		numParams = int(node.IntValue)
	}

	// A pattern-variable argument means this reference occurs inside a
	// generic function's own header, evaluated before any call site has
	// bound concrete types — there is no real instance to build yet.
	for _, arg := range args {
		if arg != nil && arg.Kind == types.KindPatternVariable {
			return a.Types.MakeStructPattern(structSym.Type), nil
		}
	}

	switch {
	case numParams == 0 && len(args) > 0:
		return nil, &diag.Error{Kind: diag.TemplateArgumentsOnNonTemplate, Message: fmt.Sprintf("%q is not a polymorphic struct", name), Unit: a.unitName, Node: node}
	case numParams > 0 && len(args) == 0:
		return nil, &diag.Error{Kind: diag.TemplateArgumentsRequired, Message: fmt.Sprintf("%q requires %d template argument(s)", name, numParams), Unit: a.unitName, Node: node}
	case numParams > 0 && len(args) != numParams:
		return nil, &diag.Error{Kind: diag.TemplateArgumentCountMismatch, Message: fmt.Sprintf("%q takes %d template argument(s), got %d", name, numParams, len(args)), Unit: a.unitName, Node: node}
	}

	if numParams == 0 {
		if structSym.Type != nil {
			return structSym.Type, nil
		}
		entry := a.structDefs[node]
		if entry == nil {
			return nil, errNotReady
		}
		return entry.typ, nil
	}

	key := polyKey{header: structSym, args: argsKey(args)}
	if cached, ok := a.polyStructCache[key]; ok {
		return cached, nil
	}
	entry := a.structDefs[node]
	if entry == nil {
		return nil, errNotReady
	}
	inst, err := a.buildStructInstance(node, structSym, args)
	if err != nil {
		return nil, err
	}
	a.polyStructCache[key] = inst
	return inst, nil
}

// buildStructInstance re-runs struct body analysis for node with each
// leading template parameter bound to the corresponding concrete arg,
// producing a fresh (nominally unique) instantiated Datatype (§4.2:
// structs are always nominally unique; §4.6 instantiation). The caller
// (instantiatePolyStruct) has already verified len(args) == numParams.
func (a *Analyser) buildStructInstance(node *ast.Node, structSym *symtab.Symbol, args []*types.Datatype) (*types.Datatype, error) {
	numParams := int(node.IntValue)
	table := symtab.New(a.RootTable, symtab.Global)
	for i := 0; i < numParams; i++ {
		pname := node.Children[i].Ident
		sym := table.Define(pname, symtab.DatatypeSymbol, symtab.Global)
		sym.Type = args[i]
	}
	strct := a.Types.MakeStructEmpty(structSym.ID, node.IsUnion, nil)
	// Cache the instance before its members are analysed, so a member
	// that names the same instantiation (`next: *?Node(T)`) resolves to
	// this Datatype instead of building another one.
	key := polyKey{header: structSym, args: argsKey(args)}
	a.polyStructCache[key] = strct
	if err := a.analyseStructMembers(node, numParams, table, strct); err != nil {
		delete(a.polyStructCache, key)
		return nil, err
	}
	if err := a.Types.FinishStruct(strct, a.Idents); err != nil {
		delete(a.polyStructCache, key)
		return nil, err
	}
	return strct, nil
}

// polyFuncParams splits a function def node's parameter list into the
// indices of its $-marked (Poly_Header) parameters and its ordinary
// (runtime) parameters, in declaration order.
func polyFuncParams(node *ast.Node) (polyIdx, valueIdx []int) {
	n := len(node.Children)
	for i, p := range node.Children[:n-2] {
		if p.BoolValue {
			polyIdx = append(polyIdx, i)
		} else {
			valueIdx = append(valueIdx, i)
		}
	}
	return
}

// checkPolyParamTypes validates that every $-marked parameter of node
// is declared as Type_Handle — the only Poly_Header shape this
// implementation supports (§4.6: Pattern_Variable binds a type, not an
// arbitrary comptime value). A $-parameter declared with any other type
// is rejected with a clear diagnostic instead of being silently
// misanalysed as an ordinary runtime parameter.
func (a *Analyser) checkPolyParamTypes(node *ast.Node, table *symtab.Table) error {
	n := len(node.Children)
	for _, p := range node.Children[:n-2] {
		if !p.BoolValue {
			continue
		}
		t, err := a.EvalTypeExpr(p.Children[0], table)
		if err != nil {
			return err
		}
		if t == nil || t.Kind != types.KindPrimitive || t.PrimClass != types.ClassTypeHandle {
			return &diag.Error{
				Kind:    diag.InvalidTypeForOperation,
				Message: fmt.Sprintf("polymorphic parameter %q must be declared as Type_Handle", p.Ident),
				Unit:    a.unitName,
				Node:    p,
			}
		}
	}
	return nil
}

// headerHoverTable builds a throwaway table binding every poly
// parameter of a generic function to a fresh Pattern_Variable Datatype,
// purely so editor hover on the raw (uninstantiated) header has
// something meaningful to report for parameter types that reference it
// (§4.6, §4.7). It is never used for real instantiation.
func (a *Analyser) headerHoverTable(node *ast.Node, base *symtab.Table, polyIdx []int) *symtab.Table {
	table := symtab.New(base, symtab.Global)
	for _, pi := range polyIdx {
		p := node.Children[pi]
		sym := table.Define(p.Ident, symtab.DatatypeSymbol, symtab.Global)
		sym.Type = a.Types.MakePatternVariable(p.Ident)
	}
	return table
}

// bindPatternVariable structurally matches a parameter's declared
// type-expr against a call argument's concrete type, recording a
// binding for every referenced poly name it finds (§4.6 Parameter_Match:
// "inferred-parameter matching"). It does not report an error for a
// shape mismatch — that surfaces naturally as an ImplicitCast failure
// once the instance's concrete signature is checked against the call's
// arguments.
func bindPatternVariable(node *ast.Node, concrete *types.Datatype, polyNames map[*ident.Identifier]bool, bindings map[*ident.Identifier]*types.Datatype) {
	if node == nil || concrete == nil {
		return
	}
	switch node.StringValue {
	case "named":
		if len(node.Children) == 0 && polyNames[node.Ident] {
			if _, ok := bindings[node.Ident]; !ok {
				bindings[node.Ident] = concrete
			}
		}
	case "pointer":
		if concrete.Kind == types.KindPointer {
			bindPatternVariable(node.Children[0], concrete.Element, polyNames, bindings)
		}
	case "optional":
		if concrete.Kind == types.KindOptional {
			bindPatternVariable(node.Children[0], concrete.OptionalChild, polyNames, bindings)
		} else if concrete.Kind == types.KindPointer && concrete.Optional {
			bindPatternVariable(node.Children[0], concrete.Element, polyNames, bindings)
		}
	case "array":
		elemNode := node.Children[1]
		switch concrete.Kind {
		case types.KindSlice:
			bindPatternVariable(elemNode, concrete.SliceElement, polyNames, bindings)
		case types.KindArray:
			bindPatternVariable(elemNode, concrete.ArrayElement, polyNames, bindings)
		}
	}
}

// inferPolyBindings infers a concrete Datatype for every poly parameter
// of node from the already-analysed types of the call's ordinary
// arguments, by structurally matching each ordinary parameter's
// declared type-expr (§4.6 Parameter_Match).
func inferPolyBindings(node *ast.Node, polyIdx, valueIdx []int, argTypes []*types.Datatype) (map[*ident.Identifier]*types.Datatype, *ident.Identifier) {
	polyNames := make(map[*ident.Identifier]bool, len(polyIdx))
	for _, pi := range polyIdx {
		polyNames[node.Children[pi].Ident] = true
	}
	bindings := map[*ident.Identifier]*types.Datatype{}
	for k, vi := range valueIdx {
		bindPatternVariable(node.Children[vi].Children[0], argTypes[k], polyNames, bindings)
	}
	for _, pi := range polyIdx {
		name := node.Children[pi].Ident
		if _, ok := bindings[name]; !ok {
			return bindings, name // first unresolved poly parameter, in declaration order
		}
	}
	return bindings, nil
}

// otherParams returns the indices, in declaration order, of node's
// ordinary (non $-marked) parameters.
func otherParams(node *ast.Node, polyIdx []int) []int {
	poly := make(map[int]bool, len(polyIdx))
	for _, i := range polyIdx {
		poly[i] = true
	}
	n := len(node.Children)
	var out []int
	for i := range node.Children[:n-2] {
		if !poly[i] {
			out = append(out, i)
		}
	}
	return out
}

// callPolyFunction finishes analysing a KindCallExpr node once its
// callee is known to be polymorphic: it records the usual
// symbol/call-graph facts, instantiates (or reuses) the concrete
// callee, and records the editor-info facts the concrete call resolved
// to (§4.6, §4.7).
func (c *exprCtx) callPolyFunction(node, callee *ast.Node, sym *symtab.Symbol, calleeNode *ast.Node, entry *funcPolyHeader, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	a.nodeSymbol[callee] = sym
	a.calleeRefs[c.funcNode] = append(a.calleeRefs[c.funcNode], calleeNode)
	fn, err := c.instantiateCallable(node, entry, table)
	if err != nil {
		return nil, err
	}
	a.callSignature[node] = fn.Signature
	a.exprTypes[node] = fn.Signature.ReturnType
	return fn.Signature.ReturnType, nil
}

// instantiateCallable resolves one call to a polymorphic function: it
// evaluates the call's arguments against the generic header (so their
// types are available for inference), infers every poly parameter's
// binding, and returns the cached or freshly built concrete
// *modtree.Function instance (mirroring instantiatePolyStruct on the
// function side, §4.6).
func (c *exprCtx) instantiateCallable(callNode *ast.Node, entry *funcPolyHeader, table *symtab.Table) (*modtree.Function, error) {
	a := c.a
	node := entry.node
	polyIdx, valueIdx := entry.polyParams, otherParams(node, entry.polyParams)

	argExprs := callNode.Children[1:]
	if len(argExprs) != len(valueIdx) {
		return nil, &diag.Error{Kind: diag.ArgumentCountMismatch, Message: fmt.Sprintf("expected %d arguments, got %d", len(valueIdx), len(argExprs)), Unit: a.unitName, Node: callNode}
	}
	argTypes := make([]*types.Datatype, len(argExprs))
	for i, arg := range argExprs {
		at, err := c.analyseExpr(arg.Children[0], table)
		if err != nil {
			return nil, err
		}
		argTypes[i] = at
	}

	bindings, unresolved := inferPolyBindings(node, polyIdx, valueIdx, argTypes)
	if unresolved != nil {
		return nil, &diag.Error{Kind: diag.TemplateArgumentsRequired, Message: fmt.Sprintf("cannot infer polymorphic parameter %q of %q from its arguments", unresolved, node.Ident), Unit: a.unitName, Node: callNode}
	}
	typeArgs := make([]*types.Datatype, len(polyIdx))
	for i, pi := range polyIdx {
		typeArgs[i] = bindings[node.Children[pi].Ident]
	}

	fn, err := a.instantiatePolyFunc(entry, typeArgs)
	if err != nil {
		return nil, err
	}
	for i, arg := range argExprs {
		if _, err := a.ImplicitCast(argTypes[i], fn.Signature.Parameters[i], table.OperatorContext); err != nil {
			return nil, err
		}
		a.argExpectedType[arg] = fn.Signature.Parameters[i]
	}
	return fn, nil
}

// instantiatePolyFunc builds (or reuses) the concrete *modtree.Function
// for entry's def node bound to typeArgs, one per entry.polyParams in
// order (§4.6 Poly_Header instantiation, mirroring buildStructInstance).
func (a *Analyser) instantiatePolyFunc(entry *funcPolyHeader, typeArgs []*types.Datatype) (*modtree.Function, error) {
	node := entry.node
	key := funcPolyKey{node: node, args: argsKey(typeArgs)}
	if cached, ok := a.polyFuncCache[key]; ok {
		return cached, nil
	}
	table := symtab.New(entry.table, symtab.Global)
	for i, pi := range entry.polyParams {
		pname := node.Children[pi].Ident
		sym := table.Define(pname, symtab.DatatypeSymbol, symtab.Global)
		sym.Type = typeArgs[i]
	}
	fn, err := a.analysePolyFunctionBody(node, table, entry.polyParams)
	if err != nil {
		if fn == nil {
			return nil, err
		}
		fn.ContainsErrors = true
	}
	fn.Name = node.Ident
	fn.IsRunnable = !fn.ContainsErrors
	a.polyFuncCache[key] = fn
	return fn, nil
}

// analysePolyFunctionBody is analyseFunctionBody specialized for one
// polymorphic function instantiation: $-marked parameters are already
// bound as type symbols in table (by instantiatePolyFunc) and are
// excluded from the runtime parameter list and the function-local
// symbol table built for the body walk (§4.6). It has no scheduler
// fiber of its own — instantiation happens synchronously the first
// time a call site needs it, the same way buildStructInstance does.
func (a *Analyser) analysePolyFunctionBody(node *ast.Node, table *symtab.Table, polyIdx []int) (*modtree.Function, error) {
	n := len(node.Children)
	params := node.Children[:n-2]
	retNode := node.Children[n-2]
	poly := make(map[int]bool, len(polyIdx))
	for _, i := range polyIdx {
		poly[i] = true
	}

	var paramTypes []*types.Datatype
	for i, p := range params {
		if poly[i] {
			continue
		}
		pt, err := a.EvalTypeExpr(p.Children[0], table)
		if err != nil {
			return nil, err
		}
		paramTypes = append(paramTypes, pt)
	}
	var retType *types.Datatype
	if retNode != nil {
		rt, err := a.EvalTypeExpr(retNode, table)
		if err != nil {
			return nil, err
		}
		retType = rt
	}
	sig := a.Types.RegisterSignature(&types.Signature{Parameters: paramTypes, ReturnType: retType})
	fn := &modtree.Function{Signature: sig, Body: node.Children[n-1]}

	funcTable := symtab.New(table, symtab.Global)
	funcTable.OperatorContext.Parents = append(funcTable.OperatorContext.Parents, table.OperatorContext)

	idx := 0
	for i, p := range params {
		if poly[i] {
			continue
		}
		sym := funcTable.Define(p.Ident, symtab.Parameter, symtab.Global)
		sym.Type = sig.Parameters[idx]
		sym.ParamIndex = idx
		idx++
	}

	ctx := &exprCtx{a: a, fn: fn, funcNode: node, fiber: nil}
	cf, err := ctx.analyseBlock(fn.Body, funcTable)
	if err != nil {
		return fn, err
	}
	if sig.ReturnType != nil && cf != cfReturns {
		return fn, &diag.Error{Kind: diag.MissingReturn, Message: fmt.Sprintf("function %q does not return a value on every path", node.Ident), Unit: a.unitName}
	}
	return fn, nil
}
