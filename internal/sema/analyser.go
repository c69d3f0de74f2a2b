// Package sema implements the semantic analyser of §4.6: expression
// and statement checking, implicit casts, polymorphic instantiation,
// custom operator dispatch, and the workload bodies that drive
// internal/sched through one module's worth of analysis. Grounded on
// breadchris-yaegi/interp's node-walking CFG builder (cfg.go's
// single-pass type/scope annotation of an immutable parse tree, one
// function per node Kind) generalized to Upp's richer type system.
package sema

import (
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/upplang/upp/internal/ast"
	"github.com/upplang/upp/internal/constpool"
	"github.com/upplang/upp/internal/diag"
	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/modtree"
	"github.com/upplang/upp/internal/sched"
	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

// Analyser owns every process-wide mutable cache a compilation shares
// across workload fibers (§5: identifier pool, type system, constant
// pool) plus the scheduler driving them and the accumulated
// diagnostics (§7).
type Analyser struct {
	Idents *ident.Pool
	Types  *types.System
	Consts *constpool.Pool
	Sched  *sched.Scheduler
	Diags  *diag.List
	Arena  *ast.Arena
	Logger hclog.Logger

	RootTable *symtab.Table

	hardcoded map[string]*types.Signature

	funcHeaders  map[*ast.Node]*funcHeader
	funcBodies   map[*ast.Node]*modtree.Function
	funcWorkload map[*modtree.Function]*sched.Workload
	structDefs   map[*ast.Node]*structEntry
	symbolStructNode map[*symtab.Symbol]*ast.Node
	symbolFuncNode   map[*symtab.Symbol]*ast.Node
	funcNodeByNodeID map[int]*ast.Node
	globals      []*modtree.Global

	// funcPolyDefs holds the header of every polymorphic function,
	// keyed by its def node, once its Function_Header workload has
	// validated its poly parameters (§4.6 Poly_Header). A function
	// present here never gets a funcHeaders/funcBodies entry of its
	// own — every concrete instance lives in polyFuncCache instead.
	funcPolyDefs map[*ast.Node]*funcPolyHeader

	polyStructCache map[polyKey]*types.Datatype
	polyFuncCache   map[funcPolyKey]*modtree.Function

	// argExpectedType and callSignature back the editor-info builder's
	// argument-info/call-info facts (§4.7): the declared parameter type
	// an argument expression is checked against, and the signature a
	// call expression resolved to.
	argExpectedType map[*ast.Node]*types.Datatype
	callSignature   map[*ast.Node]*types.Signature

	// funcBodyWorkloadByNode and calleeRefs back Function_Cluster_Compile
	// edge wiring (§4.5): for each function def node, which workloads
	// analyse it and which other function def nodes its body calls.
	funcBodyWorkloadByNode []nodeWorkload
	calleeRefs             map[*ast.Node][]*ast.Node

	// exprTypes and nodeSymbol record, per AST node, the semantic facts
	// the editor-info builder later indexes (§4.7).
	exprTypes  map[*ast.Node]*types.Datatype
	nodeSymbol map[*ast.Node]*symtab.Symbol

	// definitionValues holds the folded value of every comptime
	// Definition processed so far, keyed by the symbol it defined.
	definitionValues map[*symtab.Symbol]int64

	unitName string
}

type funcHeader struct {
	node *ast.Node
	sig  *types.Signature
	sym  *symtab.Symbol
}

type structEntry struct {
	node *ast.Node
	typ  *types.Datatype
}

// funcPolyHeader is the Poly_Header record of one polymorphic function
// definition: its def node, the symbol table its header was analysed
// against, and which of its parameters are comptime (§4.6).
type funcPolyHeader struct {
	node       *ast.Node
	sym        *symtab.Symbol
	table      *symtab.Table
	polyParams []int // indices into node's parameter children that are $-marked
}

// New creates an Analyser with boot-strapped hardcoded-function
// signatures and an empty module-root table (§6: "a fixed hardcoded-
// function contract... fabricated against a live type System").
func New(logger hclog.Logger, unitName string) *Analyser {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	idents := ident.New()
	sys := types.New()
	a := &Analyser{
		Idents:          idents,
		Types:           sys,
		Consts:          constpool.New(idents),
		Sched:           sched.New(logger.Named("sched")),
		Diags:           &diag.List{},
		Arena:           ast.NewArena(),
		Logger:          logger,
		RootTable:       symtab.New(nil, symtab.Global),
		hardcoded:        modtree.BuildHardcodedSignatures(sys),
		funcHeaders:      map[*ast.Node]*funcHeader{},
		funcBodies:       map[*ast.Node]*modtree.Function{},
		funcWorkload:     map[*modtree.Function]*sched.Workload{},
		structDefs:       map[*ast.Node]*structEntry{},
		symbolStructNode: map[*symtab.Symbol]*ast.Node{},
		symbolFuncNode:   map[*symtab.Symbol]*ast.Node{},
		funcNodeByNodeID: map[int]*ast.Node{},
		funcPolyDefs:     map[*ast.Node]*funcPolyHeader{},
		polyStructCache:  map[polyKey]*types.Datatype{},
		polyFuncCache:    map[funcPolyKey]*modtree.Function{},
		argExpectedType:  map[*ast.Node]*types.Datatype{},
		callSignature:    map[*ast.Node]*types.Signature{},
		calleeRefs:       map[*ast.Node][]*ast.Node{},
		exprTypes:        map[*ast.Node]*types.Datatype{},
		nodeSymbol:       map[*ast.Node]*symtab.Symbol{},
		definitionValues: map[*symtab.Symbol]int64{},
		unitName:         unitName,
	}
	for _, name := range modtree.HardcodedNames {
		id := a.Idents.Add(name)
		sym := a.RootTable.Define(id, symtab.HardcodedFunction, symtab.Global)
		sym.HardcodedTag = name
	}
	return a
}

// AddUnit spawns the Module_Analysis workload (and everything it in
// turn spawns) for one parsed unit, without running the scheduler yet
// (§2 step 1-2: every unit is loaded and parsed before analysis runs).
// Every unit's top-level declarations land directly in RootTable: a
// deliberate simplification of full per-unit import scoping (each unit
// would otherwise own its own table linked to RootTable via Include)
// recorded in DESIGN.md — Internal-access-level declarations are still
// modeled and still clamp visibility at query time, they just share one
// physical table across units instead of one per unit.
// Diagnostics raised while a workload actually executes (as opposed to
// while it is merely being spawned) are attributed to whichever unit
// was most recently added — precise multi-unit attribution would
// require threading a unit tag through every analysis call and is
// left for a back-end-facing follow-up (DESIGN.md).
func (a *Analyser) AddUnit(unitName string, module *ast.Node) {
	a.unitName = unitName
	a.spawnModuleAnalysis(unitName, module, a.RootTable)
}

// AnalyseModule is the single-unit convenience wrapper used by tests
// and by `uppc check` on one file: AddUnit then Run.
func (a *Analyser) AnalyseModule(module *ast.Node) *modtree.Program {
	a.AddUnit(a.unitName, module)
	return a.Run()
}

// Run drives the scheduler to completion across every unit added so
// far and assembles the final modtree.Program (§4.5 Execution loop,
// §6 Output).
func (a *Analyser) Run() *modtree.Program {
	a.Sched.Run()

	for _, w := range a.Sched.CyclicErrors() {
		a.Diags.Add(&diag.Error{
			Kind:    diag.CyclicUnbreakableDependency,
			Message: fmt.Sprintf("workload %q is part of an irresolvable dependency cycle", w.Label),
			Unit:    a.unitName,
		})
	}

	prog := &modtree.Program{}
	clusterOf := map[*sched.Workload]int{}
	for i, cluster := range a.Sched.Clusters() {
		for _, w := range cluster {
			clusterOf[w] = i + 1
		}
	}
	for node, fn := range a.funcBodies {
		if w, ok := a.funcWorkload[fn]; ok {
			fn.ClusterID = clusterOf[w]
		}
		for _, calleeNode := range a.calleeRefs[node] {
			if callee, ok := a.funcBodies[calleeNode]; ok {
				fn.Calls = append(fn.Calls, modtree.CallEdge{Callee: callee})
			}
		}
		prog.Functions = append(prog.Functions, fn)
	}
	prog.Globals = a.globals
	if mainID, ok := a.Idents.Lookup("main"); ok {
		for _, fn := range prog.Functions {
			if fn.Name == mainID {
				prog.Main = fn
			}
		}
	}
	if !prog.IsFullyRunnable() && prog.Main == nil {
		a.Diags.Add(&diag.Error{Kind: diag.NoMain, Message: "no function named main was found", Unit: a.unitName})
	}
	return prog
}

// ExprType returns the resolved type of an expression node previously
// analysed, if any.
func (a *Analyser) ExprType(n *ast.Node) *types.Datatype { return a.exprTypes[n] }

// NodeSymbol returns the symbol an identifier/member-access node
// resolved to, if any.
func (a *Analyser) NodeSymbol(n *ast.Node) *symtab.Symbol { return a.nodeSymbol[n] }

// ArgumentExpectedType returns the declared parameter type a call
// argument node was checked against, if any (§4.7 argument-info facts).
func (a *Analyser) ArgumentExpectedType(n *ast.Node) *types.Datatype { return a.argExpectedType[n] }

// CallSignature returns the signature a call expression node resolved
// to, if any (§4.7 call-info facts).
func (a *Analyser) CallSignature(n *ast.Node) *types.Signature { return a.callSignature[n] }
