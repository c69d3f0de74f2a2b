// Package sched implements the fiber-based workload scheduler of §4.5:
// a dependency-driven DAG executor that resolves out-of-order analysis
// tasks, including clustering of legitimately cyclic groups.
//
// DESIGN NOTES §9 asks for "language-native coroutines or a
// hand-written state machine that returns Resume | Await(dependency)"
// in place of the original's manual fiber state machine. This package
// uses one goroutine per workload as its coroutine substitute, but the
// control loop in Scheduler.Run steps exactly one workload at a time —
// every other workload's goroutine is parked on a channel receive
// whenever it isn't the one currently executing — so the "single
// writer" guarantees of §5 hold exactly as if this were truly
// single-threaded, without hand-rolling a continuation-passing state
// machine for every workload kind.
package sched

import "github.com/hashicorp/go-hclog"

// Kind enumerates the workload kinds of §4.5, by dependency shape.
type Kind int

const (
	KindEvent Kind = iota
	KindModuleAnalysis
	KindImportResolve
	KindOperatorContextChange
	KindFunctionHeader
	KindFunctionBody
	KindFunctionClusterCompile
	KindStructPolymorphic
	KindStructBody
	KindBakeAnalysis
	KindBakeExecution
	KindDefinition
)

func (k Kind) String() string {
	names := [...]string{
		"Event", "Module_Analysis", "Import_Resolve", "Operator_Context_Change",
		"Function_Header", "Function_Body", "Function_Cluster_Compile",
		"Struct_Polymorphic", "Struct_Body", "Bake_Analysis", "Bake_Execution",
		"Definition",
	}
	if int(k) >= 0 && int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

type workloadStatus int

const (
	statusPending workloadStatus = iota
	statusRunning
	statusSuspended
	statusFinished
)

// pendingAwait is the single outstanding dependency request of a
// suspended workload; the synchronous resume/request protocol means a
// workload can only ever be waiting on one thing at a time.
type pendingAwait struct {
	dep         *Workload
	canBeBroken bool
	onFailure   func()
}

// Workload is one scheduler-tracked unit of work: a fiber with its own
// error counter, symbol-table cursor (owned by internal/sema, opaque
// here), and current status (§4.5).
type Workload struct {
	ID     int
	Kind   Kind
	Label  string
	Logger hclog.Logger

	status   workloadStatus
	errCount int
	failed   bool // true if this workload finished having failed to resolve something

	pending *pendingAwait

	dependents []*Workload // workloads whose pending await currently targets this one

	toSched   chan request
	fromSched chan response

	fn func(f *Fiber) error
}

type requestKind int

const (
	reqAwait requestKind = iota
	reqDone
)

type request struct {
	kind requestKind
	pendingAwait
	err error
}

type response struct {
	ok bool // whether the awaited dependency resolved successfully
}

// Fiber is the handle a workload's function body uses to suspend on a
// dependency; it is the "Resume | Await(dependency)" contract of
// DESIGN NOTES §9 from the workload's point of view.
type Fiber struct {
	w *Workload
}

// Await suspends the current workload until dep finishes. canBeBroken
// marks this edge eligible for cluster resolution (§4.5: "recursive
// functions; struct-self-pointers"); onFailure, if non-nil, is called
// when dep could not be resolved (cyclic-unbreakable removal, or dep
// itself failed) so the dependent can continue with explicit error
// propagation rather than deadlock (§4.5 Dependency edge:
// "failure_callbacks[]"). Await returns true if dep resolved
// successfully.
func (f *Fiber) Await(dep *Workload, canBeBroken bool, onFailure func()) bool {
	f.w.toSched <- request{kind: reqAwait, pendingAwait: pendingAwait{dep: dep, canBeBroken: canBeBroken, onFailure: onFailure}}
	resp := <-f.w.fromSched
	return resp.ok
}

// Logger exposes the workload's named logger to the fiber body.
func (f *Fiber) Logger() hclog.Logger { return f.w.Logger }

func newWorkload(id int, kind Kind, label string, logger hclog.Logger, fn func(*Fiber) error) *Workload {
	w := &Workload{
		ID: id, Kind: kind, Label: label, Logger: logger,
		toSched: make(chan request), fromSched: make(chan response),
		fn: fn,
	}
	return w
}

// start launches the workload's goroutine; it blocks immediately on
// the first resume so that no work happens before the scheduler's
// control loop explicitly steps it.
func (w *Workload) start() {
	go func() {
		<-w.fromSched
		err := w.fn(&Fiber{w: w})
		w.toSched <- request{kind: reqDone, err: err}
	}()
}
