package sema

import (
	"fmt"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/modtree"
	"github.com/upplang/upp/internal/sched"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

// exprCtx bundles the state one function's expression/statement
// analysis threads through without re-deriving it at every node,
// mirroring the single Expression_Context the original passes by
// pointer through its own recursive evaluator (§4.6). fiber lets a
// call to a not-yet-analysed callee suspend on that callee's
// Function_Header workload instead of failing outright, so functions
// may be called regardless of declaration order (§4.5).
type exprCtx struct {
	a         *Analyser
	fn        *modtree.Function
	funcNode  *ast.Node
	fiber     *sched.Fiber
	loopDepth int
}

// analyseFunctionBody type-checks one function's parameter list,
// return type and body, recording its call-graph edges into
// a.calleeRefs for Function_Cluster_Compile wiring (§4.5, §4.6).
func (a *Analyser) analyseFunctionBody(node *ast.Node, table *symtab.Table, f *sched.Fiber) (*modtree.Function, error) {
	sig, err := a.buildSignature(node, table)
	if err != nil {
		return nil, err
	}
	fn := &modtree.Function{Signature: sig, Body: node.Children[len(node.Children)-1]}

	funcTable := symtab.New(table, symtab.Global)
	funcTable.OperatorContext.Parents = append(funcTable.OperatorContext.Parents, table.OperatorContext)

	n := len(node.Children)
	params := node.Children[:n-2]
	for i, p := range params {
		sym := funcTable.Define(p.Ident, symtab.Parameter, symtab.Global)
		sym.Type = sig.Parameters[i]
		sym.ParamIndex = i
		a.nodeSymbol[p] = sym
	}

	ctx := &exprCtx{a: a, fn: fn, funcNode: node, fiber: f}
	cf, err := ctx.analyseBlock(fn.Body, funcTable)
	if err != nil {
		return fn, err
	}
	if sig.ReturnType != nil && cf != cfReturns {
		return fn, &diag.Error{Kind: diag.MissingReturn, Message: fmt.Sprintf("function %q does not return a value on every path", node.Ident), Unit: a.unitName}
	}
	return fn, nil
}

// analyseExpr dispatches on node.Kind, recording the resolved type
// (and, for identifier/member nodes, the resolved symbol) into the
// Analyser's per-node side tables for the editor-info builder (§4.7).
func (c *exprCtx) analyseExpr(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	switch node.Kind {
	case ast.KindIntLiteralExpr:
		t := a.Types.MakePrimitive(types.ClassInt, true, 4)
		a.exprTypes[node] = t
		return t, nil
	case ast.KindFloatLiteralExpr:
		t := a.Types.MakePrimitive(types.ClassFloat, true, 4)
		a.exprTypes[node] = t
		return t, nil
	case ast.KindBoolLiteralExpr:
		t := a.Types.MakePrimitive(types.ClassBool, false, 1)
		a.exprTypes[node] = t
		return t, nil
	case ast.KindStringLiteralExpr:
		t := a.Types.MakeSlice(a.Types.MakePrimitive(types.ClassInt, false, 1))
		a.exprTypes[node] = t
		return t, nil
	case ast.KindIdentifierExpr:
		return c.analyseIdentifier(node, table)
	case ast.KindBinaryExpr:
		return c.analyseBinary(node, table)
	case ast.KindUnaryExpr:
		return c.analyseUnary(node, table)
	case ast.KindCallExpr:
		return c.analyseCall(node, table)
	case ast.KindMemberAccessExpr:
		return c.analyseMemberAccess(node, table)
	case ast.KindIndexExpr:
		return c.analyseIndex(node, table)
	case ast.KindCastExpr:
		return c.analyseCast(node, table)
	case ast.KindBakeExpr:
		return c.analyseBake(node, table)
	case ast.KindStructLiteralExpr:
		return c.analyseStructLiteral(node, table)
	default:
		return nil, &diag.Error{Kind: diag.CausedByUnknown, Message: fmt.Sprintf("sema: no expression analysis for %s", node.Kind), Unit: a.unitName}
	}
}

func (c *exprCtx) analyseIdentifier(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	syms := symtab.QueryID(table, node.Ident, symtab.QueryInfo{AccessLevel: symtab.Internal, SearchParents: true})
	for _, sym := range syms {
		switch sym.Variant {
		case symtab.VariableType, symtab.Parameter, symtab.ConstantSymbol, symtab.PolymorphicValue:
			a.nodeSymbol[node] = sym
			a.exprTypes[node] = sym.Type
			return sym.Type, nil
		case symtab.Function, symtab.HardcodedFunction, symtab.DatatypeSymbol:
			a.nodeSymbol[node] = sym
			return sym.Type, nil // callable/type name; caller resolves further at the call site
		}
	}
	return nil, &diag.Error{Kind: diag.UnresolvedSymbol, Message: fmt.Sprintf("unresolved identifier %q", node.Ident), Unit: a.unitName, Node: node}
}

func (c *exprCtx) analyseBinary(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	lt, err := c.analyseExpr(node.Children[0], table)
	if err != nil {
		return nil, err
	}
	rt, err := c.analyseExpr(node.Children[1], table)
	if err != nil {
		return nil, err
	}
	switch node.BinOp {
	case ast.OpEq, ast.OpNotEq, ast.OpLess, ast.OpGreater, ast.OpLessEq, ast.OpGreaterEq, ast.OpAnd, ast.OpOr:
		if _, err := a.ImplicitCast(rt, lt, table.OperatorContext); err != nil {
			if _, err2 := a.ImplicitCast(lt, rt, table.OperatorContext); err2 != nil {
				return nil, err
			}
		}
		t := a.Types.MakePrimitive(types.ClassBool, false, 1)
		a.exprTypes[node] = t
		return t, nil
	default:
		if op, ok := table.OperatorContext.Lookup(symtab.CustomOperatorKey{Kind: symtab.OpBinary, LHS: lt, RHS: rt}); ok {
			if calleeNode, ok2 := a.funcNodeByNodeID[op.Function]; ok2 {
				a.calleeRefs[c.funcNode] = append(a.calleeRefs[c.funcNode], calleeNode)
				if header, ok3 := a.funcHeaders[calleeNode]; ok3 {
					a.exprTypes[node] = header.sig.ReturnType
					return header.sig.ReturnType, nil
				}
			}
		}
		if _, err := a.ImplicitCast(rt, lt, table.OperatorContext); err != nil {
			return nil, err
		}
		a.exprTypes[node] = lt
		return lt, nil
	}
}

func (c *exprCtx) analyseUnary(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	operand, err := c.analyseExpr(node.Children[0], table)
	if err != nil {
		return nil, err
	}
	var t *types.Datatype
	switch node.UnOp {
	case ast.OpAddressOf:
		t = a.Types.MakePointer(operand, false)
	case ast.OpDeref:
		if operand.Kind != types.KindPointer {
			return nil, &diag.Error{Kind: diag.InvalidTypeForOperation, Message: "cannot dereference a non-pointer", Unit: a.unitName}
		}
		t = operand.Element
	default:
		t = operand
	}
	a.exprTypes[node] = t
	return t, nil
}

func (c *exprCtx) analyseArgs(node *ast.Node, startIdx int, table *symtab.Table, params []*types.Datatype) error {
	a := c.a
	args := node.Children[startIdx:]
	if len(args) != len(params) {
		return &diag.Error{Kind: diag.ArgumentCountMismatch, Message: fmt.Sprintf("expected %d arguments, got %d", len(params), len(args)), Unit: a.unitName}
	}
	for i, arg := range args {
		at, err := c.analyseExpr(arg.Children[0], table)
		if err != nil {
			return err
		}
		if _, err := a.ImplicitCast(at, params[i], table.OperatorContext); err != nil {
			return err
		}
		a.argExpectedType[arg] = params[i]
	}
	return nil
}

func (c *exprCtx) analyseCall(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	callee := node.Children[0]
	if callee.Kind != ast.KindIdentifierExpr {
		return nil, &diag.Error{Kind: diag.InvalidTypeForOperation, Message: "call target must be a function name", Unit: a.unitName, Node: node}
	}
	syms := symtab.QueryID(table, callee.Ident, symtab.QueryInfo{AccessLevel: symtab.Internal, SearchParents: true})
	for _, sym := range syms {
		switch sym.Variant {
		case symtab.HardcodedFunction:
			sig, ok := a.hardcoded[sym.HardcodedTag]
			if !ok {
				return nil, &diag.Error{Kind: diag.UnresolvedSymbol, Message: fmt.Sprintf("hardcoded function %q has no fabricated signature", sym.HardcodedTag), Unit: a.unitName, Node: callee}
			}
			a.nodeSymbol[callee] = sym
			if err := c.analyseArgs(node, 1, table, sig.Parameters); err != nil {
				return nil, err
			}
			a.callSignature[node] = sig
			a.exprTypes[node] = sig.ReturnType
			return sig.ReturnType, nil
		case symtab.Function:
			calleeNode := a.symbolFuncNode[sym]
			if calleeNode == nil {
				return nil, errNotReady
			}
			if entry, ok := a.funcPolyDefs[calleeNode]; ok {
				return c.callPolyFunction(node, callee, sym, calleeNode, entry, table)
			}
			header, ok := a.funcHeaders[calleeNode]
			if !ok {
				if headerW, ok2 := a.headerWorkloadFor(calleeNode); ok2 && c.fiber != nil {
					c.fiber.Await(headerW, false, nil)
					if entry, ok3 := a.funcPolyDefs[calleeNode]; ok3 {
						return c.callPolyFunction(node, callee, sym, calleeNode, entry, table)
					}
					header, ok = a.funcHeaders[calleeNode]
				}
				if !ok {
					return nil, errNotReady
				}
			}
			a.nodeSymbol[callee] = sym
			a.calleeRefs[c.funcNode] = append(a.calleeRefs[c.funcNode], calleeNode)
			if err := c.analyseArgs(node, 1, table, header.sig.Parameters); err != nil {
				return nil, err
			}
			a.callSignature[node] = header.sig
			a.exprTypes[node] = header.sig.ReturnType
			return header.sig.ReturnType, nil
		}
	}
	return nil, &diag.Error{Kind: diag.UnresolvedSymbol, Message: fmt.Sprintf("unresolved function %q", callee.Ident), Unit: a.unitName, Node: callee}
}

func (c *exprCtx) analyseMemberAccess(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	base, err := c.analyseExpr(node.Children[0], table)
	if err != nil {
		return nil, err
	}
	strct := base
	for strct.Kind == types.KindPointer {
		strct = strct.Element
	}
	if strct.Kind == types.KindSlice {
		switch node.Ident.String() {
		case "data":
			t := a.Types.MakePointer(strct.SliceElement, true)
			a.exprTypes[node] = t
			return t, nil
		case "length", "size":
			t := a.Types.MakePrimitive(types.ClassInt, false, 8)
			a.exprTypes[node] = t
			return t, nil
		}
	}
	if strct.Kind == types.KindStruct {
		for _, m := range strct.Members {
			if m.ID == node.Ident {
				a.exprTypes[node] = m.Type
				return m.Type, nil
			}
		}
		if op, ok := table.OperatorContext.Lookup(symtab.CustomOperatorKey{Kind: symtab.OpDotCall, LHS: strct}); ok {
			if calleeNode, ok2 := a.funcNodeByNodeID[op.Function]; ok2 {
				a.calleeRefs[c.funcNode] = append(a.calleeRefs[c.funcNode], calleeNode)
				if header, ok3 := a.funcHeaders[calleeNode]; ok3 {
					a.exprTypes[node] = header.sig.ReturnType
					return header.sig.ReturnType, nil
				}
			}
		}
	}
	return nil, &diag.Error{Kind: diag.StructMemberNotFound, Message: fmt.Sprintf("no member %q on %s", node.Ident, diag.FormatType(strct)), Unit: a.unitName, Node: node}
}

func (c *exprCtx) analyseIndex(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	base, err := c.analyseExpr(node.Children[0], table)
	if err != nil {
		return nil, err
	}
	idxT, err := c.analyseExpr(node.Children[1], table)
	if err != nil {
		return nil, err
	}
	if idxT.Kind != types.KindPrimitive || idxT.PrimClass != types.ClassInt {
		return nil, &diag.Error{Kind: diag.TypeMismatch, Message: "array/slice index must be an integer", Unit: a.unitName}
	}
	switch base.Kind {
	case types.KindArray:
		a.exprTypes[node] = base.ArrayElement
		return base.ArrayElement, nil
	case types.KindSlice:
		a.exprTypes[node] = base.SliceElement
		return base.SliceElement, nil
	default:
		return nil, &diag.Error{Kind: diag.InvalidTypeForOperation, Message: "cannot index a non-array/slice type", Unit: a.unitName}
	}
}

func (c *exprCtx) analyseCast(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	target, err := a.EvalTypeExpr(node.Children[0], table)
	if err != nil {
		return nil, err
	}
	from, err := c.analyseExpr(node.Children[1], table)
	if err != nil {
		return nil, err
	}
	if _, err := a.ExplicitCast(from, target, table.OperatorContext, node.BoolValue); err != nil {
		return nil, err
	}
	a.exprTypes[node] = target
	return target, nil
}

// analyseBake type-checks and comptime-folds a bake{...} expression
// through genuine Bake_Analysis/Bake_Execution workloads (§4.5, §7.1
// workload catalogue) rather than passing the inner expression's type
// through synchronously: Bake_Analysis type-checks the inner
// expression exactly like any other, and Bake_Execution folds it to a
// concrete value with internal/sema's constant folder (the closest
// analogue this front-end-only core has to "executing the back-end
// interpreter during analysis", since no bytecode interpreter lives
// here — see DESIGN.md). A fold failure (the expression is well-typed
// but not foldable, e.g. it calls a runtime function) is not a hard
// error: bake still reports the inner type, just not as a Constant.
func (c *exprCtx) analyseBake(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	inner := node.Children[0]
	if c.fiber == nil {
		// No fiber available to suspend with (e.g. a polymorphic
		// instantiation's synchronous body walk, §4.6) — analyse
		// directly instead of spawning workloads nothing can await.
		t, err := c.analyseExpr(inner, table)
		if err != nil {
			return nil, err
		}
		a.exprTypes[node] = t
		return t, nil
	}

	var innerType *types.Datatype
	var analysisErr error
	analysisW := a.Sched.Spawn(sched.KindBakeAnalysis, "Bake_Analysis", func(f *sched.Fiber) error {
		// A fresh exprCtx bound to this workload's own fiber: any
		// nested Await the inner expression triggers must suspend
		// *this* workload, never the outer one (the scheduler is only
		// ever listening on the currently-stepped workload's channels).
		bctx := &exprCtx{a: a, fn: c.fn, funcNode: c.funcNode, fiber: f, loopDepth: c.loopDepth}
		innerType, analysisErr = bctx.analyseExpr(inner, table)
		return analysisErr
	})
	if ok := c.fiber.Await(analysisW, false, nil); !ok || analysisErr != nil {
		if analysisErr == nil {
			analysisErr = errNotReady
		}
		return nil, analysisErr
	}

	var foldedType *types.Datatype
	var execErr error
	executionW := a.Sched.Spawn(sched.KindBakeExecution, "Bake_Execution", func(f *sched.Fiber) error {
		_, ft, err := a.foldConstant(inner, table)
		foldedType, execErr = ft, err
		return err
	})
	if ok := c.fiber.Await(executionW, false, nil); !ok || execErr != nil {
		a.exprTypes[node] = innerType
		return innerType, nil
	}

	result := a.Types.MakeConstant(foldedType)
	a.exprTypes[node] = result
	return result, nil
}

func (c *exprCtx) analyseStructLiteral(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	a := c.a
	syms := symtab.QueryID(table, node.Ident, symtab.QueryInfo{AccessLevel: symtab.Internal, SearchParents: true})
	var structSym *symtab.Symbol
	for _, sym := range syms {
		if sym.Variant == symtab.DatatypeSymbol {
			structSym = sym
			break
		}
	}
	if structSym == nil || structSym.Type == nil {
		return nil, &diag.Error{Kind: diag.UnresolvedSymbol, Message: fmt.Sprintf("unknown struct type %q", node.Ident), Unit: a.unitName, Node: node}
	}
	strct := structSym.Type
	for _, field := range node.Children {
		var member *types.StructMember
		for _, m := range strct.Members {
			if m.ID == field.Ident {
				member = m
				break
			}
		}
		if member == nil {
			return nil, &diag.Error{Kind: diag.StructMemberNotFound, Message: fmt.Sprintf("no member %q on %s", field.Ident, strct.StructName), Unit: a.unitName, Node: field}
		}
		ft, err := c.analyseExpr(field.Children[0], table)
		if err != nil {
			return nil, err
		}
		if _, err := a.ImplicitCast(ft, member.Type, table.OperatorContext); err != nil {
			return nil, err
		}
	}
	a.exprTypes[node] = strct
	return strct, nil
}

