package sema

import (
	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/sched"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

// spawnModuleAnalysis is the Module_Analysis workload body (§4.5):
// it makes every top-level name visible up front (so declaration
// order inside a unit never matters) and then spawns one workload per
// item, wiring the dependency edges described alongside each spawn
// call below.
func (a *Analyser) spawnModuleAnalysis(unitName string, module *ast.Node, table *symtab.Table) {
	a.Sched.Spawn(sched.KindModuleAnalysis, "Module_Analysis:"+unitName, func(f *sched.Fiber) error {
		// First pass: define every top-level symbol as a stub so
		// forward references resolve regardless of source order.
		type pending struct {
			node *ast.Node
			sym  *symtab.Symbol
		}
		var structs, enums, funcs, defs []pending
		var imports, ctxChanges []*ast.Node

		for _, item := range module.Children {
			switch item.Kind {
			case ast.KindImport:
				imports = append(imports, item)
			case ast.KindOperatorContextChange:
				ctxChanges = append(ctxChanges, item)
			case ast.KindStructDef:
				sym := table.Define(item.Ident, symtab.DatatypeSymbol, symtab.Global)
				a.symbolStructNode[sym] = item
				structs = append(structs, pending{item, sym})
			case ast.KindEnumDef:
				sym := table.Define(item.Ident, symtab.DatatypeSymbol, symtab.Global)
				a.symbolStructNode[sym] = item
				enums = append(enums, pending{item, sym})
			case ast.KindFunctionDef:
				sym := table.Define(item.Ident, symtab.Function, symtab.Global)
				a.symbolFuncNode[sym] = item
				funcs = append(funcs, pending{item, sym})
			case ast.KindDefinition:
				sym := table.Define(item.Ident, symtab.ConstantSymbol, symtab.Global)
				defs = append(defs, pending{item, sym})
			}
		}

		for _, item := range imports {
			a.spawnImportResolve(item)
		}
		for _, item := range ctxChanges {
			a.spawnOperatorContextChange(item, table)
		}
		for _, p := range structs {
			a.spawnStructWorkloads(p.node, p.sym, table)
		}
		for _, p := range enums {
			a.spawnEnumWorkload(p.node, p.sym)
		}
		for _, p := range funcs {
			headerW, bodyW := a.spawnFunctionWorkloads(p.node, p.sym, table)
			a.funcBodyWorkloadByNode = append(a.funcBodyWorkloadByNode, nodeWorkload{p.node, headerW, bodyW})
		}
		for _, p := range defs {
			a.spawnDefinition(p.node, p.sym, table)
		}
		return nil
	})
}

type nodeWorkload struct {
	node   *ast.Node
	header *sched.Workload
	body   *sched.Workload
}

func (a *Analyser) spawnImportResolve(item *ast.Node) {
	a.Sched.Spawn(sched.KindImportResolve, "Import_Resolve", func(f *sched.Fiber) error {
		// Cross-unit import resolution is out of scope for this single
		// shared-table build (see AddUnit doc); the workload still
		// exists so the dependency graph's shape matches §4.5.
		return nil
	})
}

func (a *Analyser) spawnOperatorContextChange(item *ast.Node, table *symtab.Table) {
	a.Sched.Spawn(sched.KindOperatorContextChange, "Operator_Context_Change", func(f *sched.Fiber) error {
		fnNode := item.Children[0]
		fn, err := a.analyseFunctionBody(fnNode, table, f)
		if err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			return err
		}
		if len(fn.Signature.Parameters) != 1 {
			a.Diags.Add(&diag.Error{Kind: diag.ArgumentCountMismatch, Message: "a cast operator takes exactly one parameter", Unit: a.unitName})
			return nil
		}
		a.funcNodeByNodeID[fnNode.ID] = fnNode
		a.funcHeaders[fnNode] = &funcHeader{node: fnNode, sig: fn.Signature}
		a.funcBodies[fnNode] = fn
		table.OperatorContext.Set(&symtab.CustomOperator{
			Key: symtab.CustomOperatorKey{
				Kind: symtab.OpCast, LHS: fn.Signature.Parameters[0], RHS: fn.Signature.ReturnType, CastMode: symtab.CastImplicit,
			},
			Function: fnNode.ID,
		})
		return nil
	})
}

func (a *Analyser) spawnStructWorkloads(node *ast.Node, sym *symtab.Symbol, table *symtab.Table) {
	numParams := int(node.IntValue)
	a.Sched.Spawn(sched.KindStructPolymorphic, "Struct_Polymorphic:"+node.Ident.String(), func(f *sched.Fiber) error {
		if numParams > 0 {
			// A generic struct header is not itself a concrete type;
			// instantiation happens on demand (internal/sema/poly.go).
			a.structDefs[node] = &structEntry{node: node, typ: nil}
			return nil
		}
		strct := a.Types.MakeStructEmpty(node.Ident, node.IsUnion, nil)
		sym.Type = strct // visible to self-referential members immediately
		return nil
	})
	a.Sched.Spawn(sched.KindStructBody, "Struct_Body:"+node.Ident.String(), func(f *sched.Fiber) error {
		if numParams > 0 {
			return nil // members are analysed per-instantiation, not here
		}
		strct := sym.Type
		if err := a.analyseStructMembers(node, 0, table, strct); err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			return err
		}
		if err := a.Types.FinishStruct(strct, a.Idents); err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			return err
		}
		a.structDefs[node] = &structEntry{node: node, typ: strct}
		return nil
	})
}

// spawnEnumWorkload builds a closed enum's Datatype synchronously in a
// single workload: unlike structs, enums cannot reference themselves
// or any not-yet-analysed type, so no further staging is needed. It is
// tagged KindStructBody purely so the scheduler's Kind catalogue does
// not need an enum-specific member (§4.5 keeps Struct_Polymorphic and
// Struct_Body as the only datatype-definition kinds).
func (a *Analyser) spawnEnumWorkload(node *ast.Node, sym *symtab.Symbol) {
	a.Sched.Spawn(sched.KindStructBody, "Enum_Body:"+node.Ident.String(), func(f *sched.Fiber) error {
		e := a.Types.MakeEnumEmpty(node.Ident)
		next := int64(0)
		for _, m := range node.Children {
			val := next
			if m.BoolValue {
				val = m.IntValue
			}
			e.EnumMembers = append(e.EnumMembers, types.EnumMember{ID: m.Ident, Value: val})
			next = val + 1
		}
		if err := a.Types.FinishEnum(e); err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			return err
		}
		sym.Type = e
		a.structDefs[node] = &structEntry{node: node, typ: e}
		return nil
	})
}

// analyseStructMembers adds every ordinary member (skipping the
// leading numTemplateParams children, which are Poly_Header
// parameters already bound in table) to strct (§4.2 struct construction).
func (a *Analyser) analyseStructMembers(node *ast.Node, numTemplateParams int, table *symtab.Table, strct *types.Datatype) error {
	for _, m := range node.Children[numTemplateParams:] {
		if m.Kind == ast.KindSubtypeDecl {
			sub := m.Children[0]
			subType := a.Types.MakeStructEmpty(sub.Ident, false, strct)
			if err := a.analyseStructMembers(sub, int(sub.IntValue), table, subType); err != nil {
				return err
			}
			continue
		}
		mtype, err := a.EvalTypeExpr(m.Children[0], table)
		if err != nil {
			return err
		}
		if err := a.Types.StructAddMember(strct, m.Ident, mtype, m.ID); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyser) spawnFunctionWorkloads(node *ast.Node, sym *symtab.Symbol, table *symtab.Table) (*sched.Workload, *sched.Workload) {
	if polyIdx, _ := polyFuncParams(node); len(polyIdx) > 0 {
		return a.spawnPolyFunctionWorkloads(node, sym, table, polyIdx)
	}
	h := a.Sched.Spawn(sched.KindFunctionHeader, "Function_Header:"+node.Ident.String(), func(f *sched.Fiber) error {
		sig, err := a.buildSignature(node, table)
		if err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			return err
		}
		a.funcHeaders[node] = &funcHeader{node: node, sig: sig, sym: sym}
		a.funcNodeByNodeID[node.ID] = node
		return nil
	})
	var bodyW *sched.Workload
	bodyW = a.Sched.Spawn(sched.KindFunctionBody, "Function_Body:"+node.Ident.String(), func(f *sched.Fiber) error {
		f.Await(h, false, nil)
		fn, err := a.analyseFunctionBody(node, table, f)
		if err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			if fn == nil {
				return err
			}
			fn.ContainsErrors = true
		}
		fn.Name = node.Ident
		a.funcBodies[node] = fn
		a.funcWorkload[fn] = bodyW

		for _, calleeNode := range a.calleeRefs[node] {
			if calleeW, ok := a.bodyWorkloadFor(calleeNode); ok && calleeW != bodyW {
				f.Await(calleeW, true, nil)
			}
		}
		fn.IsRunnable = !fn.ContainsErrors
		return nil
	})
	return h, bodyW
}

// spawnPolyFunctionWorkloads is the Function_Header/Function_Body pair
// for a function carrying one or more $-marked parameters (§4.6): the
// header workload validates every poly parameter's declared type and
// records a funcPolyHeader instead of a funcHeader, so call sites
// instantiate a concrete Function lazily (internal/sema/poly.go)
// instead of awaiting one shared signature. The body workload never
// analyses anything itself — a generic function's body is re-analysed
// once per instantiation, on demand, inside instantiatePolyFunc.
func (a *Analyser) spawnPolyFunctionWorkloads(node *ast.Node, sym *symtab.Symbol, table *symtab.Table, polyIdx []int) (*sched.Workload, *sched.Workload) {
	h := a.Sched.Spawn(sched.KindFunctionHeader, "Function_Header:"+node.Ident.String(), func(f *sched.Fiber) error {
		if err := a.checkPolyParamTypes(node, table); err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			return err
		}
		a.funcPolyDefs[node] = &funcPolyHeader{node: node, sym: sym, table: table, polyParams: polyIdx}
		a.funcNodeByNodeID[node.ID] = node

		// Best-effort header hover pass (§4.6 Pattern_Variable, §4.7):
		// evaluate every ordinary parameter's declared type against a
		// table binding each poly name to a placeholder, so hovering
		// the raw, uninstantiated header still shows a meaningful type.
		// Errors are swallowed — a malformed ordinary parameter is
		// reported for real the first time a concrete instantiation
		// analyses it.
		hover := a.headerHoverTable(node, table, polyIdx)
		n := len(node.Children)
		for _, p := range node.Children[:n-2] {
			if p.BoolValue {
				continue
			}
			if t, err := a.EvalTypeExpr(p.Children[0], hover); err == nil {
				a.exprTypes[p.Children[0]] = t
			}
		}
		return nil
	})
	bodyW := a.Sched.Spawn(sched.KindFunctionBody, "Function_Body:"+node.Ident.String(), func(f *sched.Fiber) error {
		f.Await(h, false, nil)
		return nil // instantiated lazily per call site; see internal/sema/poly.go
	})
	return h, bodyW
}

func (a *Analyser) bodyWorkloadFor(calleeFuncNode *ast.Node) (*sched.Workload, bool) {
	for _, nw := range a.funcBodyWorkloadByNode {
		if nw.node == calleeFuncNode {
			return nw.body, true
		}
	}
	return nil, false
}

// headerWorkloadFor finds the Function_Header workload owning
// calleeFuncNode, for a caller whose analysis reached the call before
// that header had run (source order places the callee later).
func (a *Analyser) headerWorkloadFor(calleeFuncNode *ast.Node) (*sched.Workload, bool) {
	for _, nw := range a.funcBodyWorkloadByNode {
		if nw.node == calleeFuncNode {
			return nw.header, true
		}
	}
	return nil, false
}

func (a *Analyser) buildSignature(node *ast.Node, table *symtab.Table) (*types.Signature, error) {
	n := len(node.Children)
	params := node.Children[:n-2]
	retNode := node.Children[n-2]
	var paramTypes []*types.Datatype
	for _, p := range params {
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
	return a.Types.RegisterSignature(&types.Signature{Parameters: paramTypes, ReturnType: retType}), nil
}

func (a *Analyser) spawnDefinition(node *ast.Node, sym *symtab.Symbol, table *symtab.Table) {
	a.Sched.Spawn(sched.KindDefinition, "Definition:"+node.Ident.String(), func(f *sched.Fiber) error {
		val, typ, err := a.foldConstant(node.Children[0], table)
		if err != nil {
			a.Diags.Add(toDiagError(a.unitName, err))
			return err
		}
		sym.Type = typ
		a.definitionValues[sym] = val
		return nil
	})
}

func toDiagError(unit string, err error) *diag.Error {
	if de, ok := err.(*diag.Error); ok {
		return de
	}
	return &diag.Error{Kind: diag.CausedByUnknown, Message: err.Error(), Unit: unit}
}
