// Package symtab implements hierarchical symbol tables with
// transitive/intransitive imports and access levels (§4.3), grounded
// on the teacher's scope/symbol pair (breadchris-yaegi/interp/
// interp.go's node.scope/node.sym fields) generalized to Upp's richer
// import and access-level model.
package symtab

import (
	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/types"
)

// AccessLevel controls how far up the scope chain and across which
// imports a name is visible from (§3 Symbol).
type AccessLevel int

const (
	Global AccessLevel = iota
	Polymorphic
	Internal
)

// clamp returns the more restrictive of a and b (Internal is most
// restrictive, Global least).
func clamp(a, b AccessLevel) AccessLevel {
	if a > b {
		return a
	}
	return b
}

// VariantKind tags which payload a Symbol carries (§3 Symbol: "variant
// payload").
type VariantKind int

const (
	VariableType VariantKind = iota
	Function
	PolymorphicFunction
	DefinitionWorkload
	Alias
	HardcodedFunction
	DatatypeSymbol
	Module
	Parameter
	PolymorphicValue
	ConstantSymbol
	ErrorSentinel
)

// Symbol is {id, type, origin_table, access_level, references[],
// definition_node, definition_text_index, variant-payload} (§3).
type Symbol struct {
	ID                  *ident.Identifier
	Type                *types.Datatype
	OriginTable         *Table
	AccessLevel         AccessLevel
	References          []int // opaque AST node ids referencing this symbol
	DefinitionNodeID    int
	DefinitionTextIndex int

	Variant VariantKind

	// Alias payload
	AliasTarget *Symbol

	// Module payload
	ModuleTable *Table

	// Parameter payload
	ParamFunctionProgress int
	ParamIndex            int

	// PolymorphicValue payload
	PolyValueParamIndex int
	PolyValueAccessIndex int

	// HardcodedFunction payload
	HardcodedTag string
}

// resolveAlias follows Alias symbols transitively, returning nil if
// the chain bottoms out in an unresolved alias (only possible while
// module analysis for the target is still in progress, §4.3).
func resolveAlias(sym *Symbol, seen map[*Symbol]bool) *Symbol {
	for sym != nil && sym.Variant == Alias {
		if seen[sym] {
			return nil // alias cycle; defensive, should not occur
		}
		seen[sym] = true
		sym = sym.AliasTarget
	}
	return sym
}
