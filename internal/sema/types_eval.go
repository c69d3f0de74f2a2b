package sema

import (
	"fmt"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

var primitiveNames = map[string]func(*types.System) *types.Datatype{
	"bool": func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassBool, false, 1) },
	"i8":   func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, true, 1) },
	"i16":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, true, 2) },
	"i32":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, true, 4) },
	"i64":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, true, 8) },
	"u8":   func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, false, 1) },
	"u16":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, false, 2) },
	"u32":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, false, 4) },
	"u64":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, false, 8) },
	"f32":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassFloat, true, 4) },
	"f64":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassFloat, true, 8) },
	"any":  func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassAddress, false, 0) },
	"Type_Handle": func(s *types.System) *types.Datatype {
		return s.MakePrimitive(types.ClassTypeHandle, false, 4)
	},
	"int":   func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassInt, true, 4) },
	"float": func(s *types.System) *types.Datatype { return s.MakePrimitive(types.ClassFloat, true, 4) },
}

// EvalTypeExpr resolves a parsed KindTypeExpr node to a live
// *types.Datatype, looking up named types (including polymorphic
// struct instantiation) through table (§4.6, §4.2).
func (a *Analyser) EvalTypeExpr(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	if node == nil {
		return nil, nil
	}
	switch node.StringValue {
	case "pointer":
		elem, err := a.EvalTypeExpr(node.Children[0], table)
		if err != nil {
			return nil, err
		}
		return a.Types.MakePointer(elem, node.BoolValue), nil
	case "optional":
		elem, err := a.EvalTypeExpr(node.Children[0], table)
		if err != nil {
			return nil, err
		}
		return a.Types.MakeOptional(elem), nil
	case "array":
		elemNode := node.Children[1]
		elem, err := a.EvalTypeExpr(elemNode, table)
		if err != nil {
			return nil, err
		}
		if node.Children[0] == nil {
			return a.Types.MakeSlice(elem), nil
		}
		countVal, cerr := a.evalConstInt(node.Children[0], table)
		if cerr != nil {
			return nil, cerr
		}
		return a.Types.MakeArray(elem, true, int(countVal)), nil
	case "named":
		return a.evalNamedType(node, table)
	default:
		return nil, fmt.Errorf("sema: malformed type expression %q", node.StringValue)
	}
}

func (a *Analyser) evalNamedType(node *ast.Node, table *symtab.Table) (*types.Datatype, error) {
	name := node.Ident.String()
	if name == "string" {
		return a.Types.MakeSlice(a.Types.MakePrimitive(types.ClassInt, false, 1)), nil
	}
	if mk, ok := primitiveNames[name]; ok {
		return mk(a.Types), nil
	}

	syms := symtab.QueryID(table, node.Ident, symtab.QueryInfo{AccessLevel: symtab.Internal, SearchParents: true})
	var structSym *symtab.Symbol
	for _, sym := range syms {
		if sym.Variant == symtab.DatatypeSymbol {
			structSym = sym
			break
		}
	}
	if structSym == nil {
		return nil, &diag.Error{Kind: diag.UnresolvedSymbol, Message: fmt.Sprintf("unknown type %q", name), Unit: a.unitName, Node: node}
	}

	// Every reference to a named type — generic or not, applied or bare —
	// funnels through instantiatePolyStruct, which is the single place
	// that validates template-argument counts (§4.6, review item (c)).
	args := make([]*types.Datatype, len(node.Children))
	for i, c := range node.Children {
		at, err := a.EvalTypeExpr(c, table)
		if err != nil {
			return nil, err
		}
		args[i] = at
	}
	return a.instantiatePolyStruct(structSym, args)
}

// evalConstInt evaluates a compile-time-constant integer expression
// (array sizes must be constant, §4.6).
func (a *Analyser) evalConstInt(node *ast.Node, table *symtab.Table) (int64, error) {
	v, t, err := a.foldConstant(node, table)
	if err != nil {
		return 0, err
	}
	if t == nil || t.Kind != types.KindPrimitive || t.PrimClass != types.ClassInt {
		return 0, &diag.Error{Kind: diag.TypeMismatch, Message: "array size must be a constant integer", Unit: a.unitName}
	}
	return v, nil
}
