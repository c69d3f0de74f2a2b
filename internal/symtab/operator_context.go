package symtab

import "github.com/upplang/upp/internal/types"

// CustomOperatorKind closes the set of things an operator context can
// override (§3 Operator_Context).
type CustomOperatorKind int

const (
	OpBinary CustomOperatorKind = iota
	OpUnary
	OpArrayAccess
	OpCast
	OpDotCall
	OpIterator
	OpCastModeConfig
)

// CastMode mirrors §4.6's Expression_Context cast_mode enum, reused
// here since cast-mode configuration is scoped through the operator
// context (§3).
type CastMode int

const (
	CastNone CastMode = iota
	CastExplicit
	CastInferred
	CastPointerExplicit
	CastPointerInferred
	CastImplicit
)

// CustomOperatorKey identifies one custom operator binding within a
// context (§3).
type CustomOperatorKey struct {
	Kind     CustomOperatorKind
	LHS      *types.Datatype
	RHS      *types.Datatype // nil for unary/cast-target-less kinds
	CastMode CastMode
}

// CustomOperator is the user-supplied function (or cast-mode flag)
// bound at a CustomOperatorKey.
type CustomOperator struct {
	Key      CustomOperatorKey
	Function int // opaque function symbol id; resolved by internal/sema
}

// OperatorContext is a hash map from CustomOperatorKey to
// CustomOperator for one scope, with an ordered list of parent
// contexts composed on lookup miss (§3).
type OperatorContext struct {
	operators map[CustomOperatorKey]*CustomOperator
	Parents   []*OperatorContext
}

func NewOperatorContext() *OperatorContext {
	return &OperatorContext{operators: make(map[CustomOperatorKey]*CustomOperator)}
}

// Set installs or replaces a custom operator for key in this context
// only (does not touch parents).
func (c *OperatorContext) Set(op *CustomOperator) {
	c.operators[op.Key] = op
}

// Lookup searches this context then, in order, each parent context,
// returning the first match.
func (c *OperatorContext) Lookup(key CustomOperatorKey) (*CustomOperator, bool) {
	if op, ok := c.operators[key]; ok {
		return op, true
	}
	for _, parent := range c.Parents {
		if op, ok := parent.Lookup(key); ok {
			return op, true
		}
	}
	return nil, false
}
