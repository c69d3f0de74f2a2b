package sema

import (
	"fmt"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

// foldConstant evaluates a compile-time-constant expression (array
// sizes, Definition bodies, bake arguments, §4.6) to an int64 value
// plus the Datatype it was folded as. Only the integer/bool arithmetic
// subset needed by those call sites is supported; anything else is a
// diag.TypeMismatch.
func (a *Analyser) foldConstant(node *ast.Node, table *symtab.Table) (int64, *types.Datatype, error) {
	switch node.Kind {
	case ast.KindIntLiteralExpr:
		return node.IntValue, a.Types.MakePrimitive(types.ClassInt, true, 4), nil
	case ast.KindBoolLiteralExpr:
		v := int64(0)
		if node.BoolValue {
			v = 1
		}
		return v, a.Types.MakePrimitive(types.ClassBool, false, 1), nil
	case ast.KindFloatLiteralExpr:
		return 0, nil, &diag.Error{Kind: diag.TypeMismatch, Message: "a floating-point value cannot be folded to a constant integer", Unit: a.unitName}
	case ast.KindIdentifierExpr:
		return a.foldIdentifier(node, table)
	case ast.KindUnaryExpr:
		return a.foldUnary(node, table)
	case ast.KindBinaryExpr:
		return a.foldBinary(node, table)
	case ast.KindCastExpr:
		// A cast in a constant expression folds to its operand's value
		// and type unchanged; the target type is ignored at fold time
		// and the value is not narrowed or widened.
		return a.foldConstant(node.Children[1], table)
	default:
		return 0, nil, &diag.Error{Kind: diag.TypeMismatch, Message: fmt.Sprintf("expression of kind %s is not a compile-time constant", node.Kind), Unit: a.unitName}
	}
}

func (a *Analyser) foldIdentifier(node *ast.Node, table *symtab.Table) (int64, *types.Datatype, error) {
	syms := symtab.QueryID(table, node.Ident, symtab.QueryInfo{AccessLevel: symtab.Internal, SearchParents: true})
	for _, sym := range syms {
		if sym.Variant != symtab.ConstantSymbol {
			continue
		}
		val, ok := a.definitionValues[sym]
		if !ok {
			return 0, nil, errNotReady
		}
		a.nodeSymbol[node] = sym
		return val, sym.Type, nil
	}
	return 0, nil, &diag.Error{Kind: diag.UnresolvedSymbol, Message: fmt.Sprintf("%q is not a compile-time constant", node.Ident), Unit: a.unitName}
}

func (a *Analyser) foldUnary(node *ast.Node, table *symtab.Table) (int64, *types.Datatype, error) {
	v, t, err := a.foldConstant(node.Children[0], table)
	if err != nil {
		return 0, nil, err
	}
	switch node.UnOp {
	case ast.OpNeg:
		return -v, t, nil
	case ast.OpNot:
		if v == 0 {
			return 1, t, nil
		}
		return 0, t, nil
	case ast.OpBitNot:
		return ^v, t, nil
	default:
		return 0, nil, &diag.Error{Kind: diag.InvalidTypeForOperation, Message: "operator cannot appear in a constant expression", Unit: a.unitName}
	}
}

func (a *Analyser) foldBinary(node *ast.Node, table *symtab.Table) (int64, *types.Datatype, error) {
	l, lt, err := a.foldConstant(node.Children[0], table)
	if err != nil {
		return 0, nil, err
	}
	r, _, err := a.foldConstant(node.Children[1], table)
	if err != nil {
		return 0, nil, err
	}
	switch node.BinOp {
	case ast.OpAdd:
		return l + r, lt, nil
	case ast.OpSub:
		return l - r, lt, nil
	case ast.OpMul:
		return l * r, lt, nil
	case ast.OpDiv:
		if r == 0 {
			return 0, nil, &diag.Error{Kind: diag.InvalidTypeForOperation, Message: "division by zero in constant expression", Unit: a.unitName}
		}
		return l / r, lt, nil
	case ast.OpMod:
		if r == 0 {
			return 0, nil, &diag.Error{Kind: diag.InvalidTypeForOperation, Message: "division by zero in constant expression", Unit: a.unitName}
		}
		return l % r, lt, nil
	case ast.OpBitAnd:
		return l & r, lt, nil
	case ast.OpBitOr:
		return l | r, lt, nil
	case ast.OpBitXor:
		return l ^ r, lt, nil
	default:
		return 0, nil, &diag.Error{Kind: diag.InvalidTypeForOperation, Message: "operator cannot appear in a constant expression", Unit: a.unitName}
	}
}
