package modtree

import "github.com/upplang/upp/internal/types"

// HardcodedFunction describes one member of the fixed closed set
// pre-bound in the builtin module (§6: "Hardcoded-function contract").
// Back-ends must implement every one; the core only fabricates its
// signature at start-up.
type HardcodedFunction struct {
	Name      string
	Signature func(s *types.System) *types.Signature
}

// HardcodedNames is the closed, exact member list pinned down from
// original_source/UppLib/programs/upp_lang/compiler_misc.hpp
// (SPEC_FULL.md §12).
var HardcodedNames = []string{
	"print_bool", "print_i32", "print_f32", "print_string", "print_line",
	"read_i32", "read_f32", "read_bool",
	"memory_copy", "memory_zero", "memory_compare",
	"type_of", "type_info", "assert", "panic",
	"size_of", "align_of", "return_type", "struct_tag",
	"bitwise_not", "bitwise_and", "bitwise_or", "bitwise_xor",
	"bitwise_shift_left", "bitwise_shift_right",
}

// BuildHardcodedSignatures fabricates the signature for every
// hardcoded function against a live type System, the way the
// analyser's start-up phase would before any user module is loaded.
func BuildHardcodedSignatures(s *types.System) map[string]*types.Signature {
	voidT := (*types.Datatype)(nil)
	boolT := s.MakePrimitive(types.ClassBool, false, 1)
	i32 := s.MakePrimitive(types.ClassInt, true, 4)
	u64 := s.MakePrimitive(types.ClassInt, false, 8)
	f32 := s.MakePrimitive(types.ClassFloat, true, 4)
	anyPtr := s.MakePointer(s.MakePrimitive(types.ClassAddress, false, 0), true)
	strSlice := s.MakeSlice(s.MakePrimitive(types.ClassInt, false, 1))

	sig := func(params []*types.Datatype, ret *types.Datatype) *types.Signature {
		return s.RegisterSignature(&types.Signature{Parameters: params, ReturnType: ret})
	}

	out := map[string]*types.Signature{
		"print_bool":   sig([]*types.Datatype{boolT}, voidT),
		"print_i32":    sig([]*types.Datatype{i32}, voidT),
		"print_f32":    sig([]*types.Datatype{f32}, voidT),
		"print_string": sig([]*types.Datatype{strSlice}, voidT),
		"print_line":   sig(nil, voidT),
		"read_i32":     sig(nil, i32),
		"read_f32":     sig(nil, f32),
		"read_bool":    sig(nil, boolT),

		"memory_copy":    sig([]*types.Datatype{anyPtr, anyPtr, u64}, voidT),
		"memory_zero":    sig([]*types.Datatype{anyPtr, u64}, voidT),
		"memory_compare": sig([]*types.Datatype{anyPtr, anyPtr, u64}, boolT),

		"type_of":     sig([]*types.Datatype{anyPtr}, s.MakePrimitive(types.ClassTypeHandle, false, 4)),
		"type_info":   sig([]*types.Datatype{s.MakePrimitive(types.ClassTypeHandle, false, 4)}, anyPtr),
		"assert":      sig([]*types.Datatype{boolT}, voidT),
		"panic":       sig([]*types.Datatype{strSlice}, voidT),
		"size_of":     sig([]*types.Datatype{s.MakePrimitive(types.ClassTypeHandle, false, 4)}, u64),
		"align_of":    sig([]*types.Datatype{s.MakePrimitive(types.ClassTypeHandle, false, 4)}, u64),
		"return_type": sig(nil, s.MakePrimitive(types.ClassTypeHandle, false, 4)),
		"struct_tag":  sig([]*types.Datatype{anyPtr}, i32),

		"bitwise_not":         sig([]*types.Datatype{i32}, i32),
		"bitwise_and":         sig([]*types.Datatype{i32, i32}, i32),
		"bitwise_or":          sig([]*types.Datatype{i32, i32}, i32),
		"bitwise_xor":         sig([]*types.Datatype{i32, i32}, i32),
		"bitwise_shift_left":  sig([]*types.Datatype{i32, i32}, i32),
		"bitwise_shift_right": sig([]*types.Datatype{i32, i32}, i32),
	}
	return out
}
