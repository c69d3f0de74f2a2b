// Package modtree is the core's final output shape: a fully typed,
// semantically validated program tree a back-end can drive directly
// (§3 ModTree_Program, §6 Output). The closed exit-code enumeration
// and hardcoded-function table are pinned down from
// original_source/UppLib/programs/upp_lang/compiler_misc.hpp
// (SPEC_FULL.md §12).
package modtree

import (
	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/types"
)

// ExitCode is the closed, densely-assigned enumeration generated code
// reports exit with (§6).
type ExitCode int

const (
	Success ExitCode = iota
	OutOfBounds
	StackOverflow
	ReturnValueOverflow
	ExternFunctionCallNotImplemented
	AssertionFailed
	CompilationFailed
	InstructionLimitReached
	CodeErrorOccured
	AnyCastInvalid
	InvalidSwitchCase
)

func (c ExitCode) String() string {
	names := [...]string{
		"SUCCESS", "OUT_OF_BOUNDS", "STACK_OVERFLOW", "RETURN_VALUE_OVERFLOW",
		"EXTERN_FUNCTION_CALL_NOT_IMPLEMENTED", "ASSERTION_FAILED", "COMPILATION_FAILED",
		"INSTRUCTION_LIMIT_REACHED", "CODE_ERROR_OCCURED", "ANY_CAST_INVALID",
		"INVALID_SWITCH_CASE",
	}
	if int(c) >= 0 && int(c) < len(names) {
		return names[c]
	}
	return "UNKNOWN_EXIT_CODE"
}

// CallEdge is one edge of a function's call graph.
type CallEdge struct {
	Callee *Function
}

// Function is one ModTree_Function: signature + owning progress +
// call-graph edges + runnable flag + back-end slot index (§3).
type Function struct {
	Name            *ident.Identifier
	Signature       *types.Signature
	OwningProgress  int // opaque workload id of the Function_Body that produced this
	Calls           []CallEdge
	IsRunnable      bool
	ContainsErrors  bool
	BackendSlot     int
	Body            *ast.Node
	ClusterID       int // 0 if not part of a multi-member cluster
}

// Global is one ModTree_Global: type, optional init expression, memory
// slot (§3).
type Global struct {
	Name     *ident.Identifier
	Type     *types.Datatype
	Init     *ast.Node // nil if uninitialised
	SlotIndex int
}

// ExternType pins a single extern type signature used by the program,
// as referenced by Extern_Sources (§6).
type ExternType struct {
	Name *ident.Identifier
	Type *types.Datatype
}

// ExternSources is the table of everything the back-end needs to link
// against host/C code (§6 Output).
type ExternSources struct {
	RequiredFunctions []*ident.Identifier
	HeadersToInclude  []string
	SourceFiles       []string
	LibraryFiles      []string
	ExternTypes       []ExternType
}

// Program is the final ModTree_Program output (§3, §6).
type Program struct {
	Functions []*Function
	Globals   []*Global
	Main      *Function // nil if no valid entry point was found
	Externs   ExternSources
}

// IsFullyRunnable reports the user-visible success condition of §7:
// "the output program's main_function is null and/or is_runnable is
// false on some functions" is the failure condition, so success is
// its negation.
func (p *Program) IsFullyRunnable() bool {
	if p.Main == nil {
		return false
	}
	for _, f := range p.Functions {
		if !f.IsRunnable {
			return false
		}
	}
	return true
}
