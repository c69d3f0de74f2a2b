// Package types implements the Upp type system: structural
// construction and deduplication, recursive struct/enum size finishing,
// and the internal (runtime-visible) type-info mirror consumed by
// comptime reflection (§4.2, §6 Reflection-layout contract).
package types

import (
	"fmt"

	"github.com/upplang/upp/internal/ident"
)

// Kind is the Datatype tag. Every switch over Kind in this package (and
// every caller's switch) is meant to be exhaustive — DESIGN NOTES §9's
// "tagged union, exhaustive match" rewrite of the original's C-style
// enum+union.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalid
	KindPrimitive
	KindPointer
	KindOptional
	KindArray
	KindSlice
	KindConstant
	KindFunctionPointer
	KindStruct
	KindEnum
	KindPatternVariable
	KindStructPattern
)

func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "unknown"
	case KindInvalid:
		return "invalid"
	case KindPrimitive:
		return "primitive"
	case KindPointer:
		return "pointer"
	case KindOptional:
		return "optional"
	case KindArray:
		return "array"
	case KindSlice:
		return "slice"
	case KindConstant:
		return "constant"
	case KindFunctionPointer:
		return "function_pointer"
	case KindStruct:
		return "struct"
	case KindEnum:
		return "enum"
	case KindPatternVariable:
		return "pattern_variable"
	case KindStructPattern:
		return "struct_pattern"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// PrimitiveClass enumerates the fixed primitive families.
type PrimitiveClass int

const (
	ClassInt PrimitiveClass = iota
	ClassFloat
	ClassBool
	ClassAddress
	ClassTypeHandle
)

// MemoryInfo is the recursively-finished size/alignment record every
// Datatype eventually carries. Available is false until a size-finish
// pass has run (structs/enums pending a size-finish, and any type that
// transitively references one).
type MemoryInfo struct {
	Available               bool
	Size                    int
	Alignment               int
	ContainsPadding         bool
	ContainsFunctionPointer bool
	ContainsReference       bool
}

// Datatype is the tagged-sum type of the Upp type system. Exactly the
// fields relevant to Kind are meaningful; see the per-kind accessor
// methods below for the exhaustive-match-friendly API.
type Datatype struct {
	Kind Kind
	Mem  MemoryInfo

	// waitingForSize lists derived types (Array/Constant/Optional)
	// registered on this struct's "waiting for size finish" list
	// (§3 Datatype: "any derived type ... registers itself on that
	// struct's waiting-for-size-finish list"). Only meaningful when
	// Kind == KindStruct and Mem.Available == false.
	waitingForSize []*Datatype

	// Primitive
	PrimClass  PrimitiveClass
	PrimSigned bool
	PrimWidth  int

	// Pointer / FunctionPointer optionality
	Optional bool

	// Pointer
	Element *Datatype

	// Optional
	OptionalChild           *Datatype
	OptionalAvailableOffset int

	// Array
	ArrayElement     *Datatype
	ArrayCountKnown  bool
	ArrayElementCont int

	// Slice
	SliceElement    *Datatype
	SliceDataMember *StructMember
	SliceSizeMember *StructMember

	// Constant
	ConstantElement *Datatype

	// FunctionPointer
	Signature *Signature

	// Struct
	StructName        *ident.Identifier
	IsUnion           bool
	Parent            *Datatype // nil for the root of a subtype tree
	SubtypeIndex      int       // 1-based index within Parent.Subtypes, 0 for the root
	Members           []*StructMember
	Subtypes          []*Datatype
	TagMember         *StructMember
	StructWorkloadKey int // opaque per-struct key assigned by MakeStructEmpty; FinishStruct leaves it unchanged

	// Enum
	EnumName          *ident.Identifier
	EnumMembers       []EnumMember
	EnumSequential    bool
	EnumSequenceStart int64

	// PatternVariable
	PatternVariableName *ident.Identifier
	IsReference         bool
	Mirror              *Datatype

	// StructPattern
	PatternInstance *Datatype
}

// StructMember is one named, typed, offset field of a struct.
type StructMember struct {
	ID               *ident.Identifier
	Type             *Datatype
	Offset           int
	DeclaringStruct  *Datatype
	DefinitionNodeID int // opaque AST node identity
}

// EnumMember is one name/value pair of an Enum Datatype.
type EnumMember struct {
	ID    *ident.Identifier
	Value int64
}

// Signature is a function signature registered with the type system;
// FunctionPointer Datatypes reference one.
type Signature struct {
	Parameters []*Datatype
	ReturnType *Datatype
}

// IsSized reports whether t's memory layout is fully known.
func (t *Datatype) IsSized() bool { return t.Mem.Available }

func sentinel(k Kind) *Datatype {
	return &Datatype{Kind: k, Mem: MemoryInfo{Available: true, Size: 0, Alignment: 1}}
}

// Unknown and Invalid are process-wide singleton sentinels (§3).
var (
	Unknown = sentinel(KindUnknown)
	Invalid = sentinel(KindInvalid)
)
