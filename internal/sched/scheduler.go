package sched

import (
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Scheduler owns every Workload spawned for one compilation and drives
// them to completion (§4.5 Execution loop).
type Scheduler struct {
	logger hclog.Logger

	workloads []*Workload
	nextID    int

	runnable []*Workload

	// clusters records, for diagnostics, every cluster resolved
	// during the run — callers (internal/sema) consult this to
	// annotate the resulting functions/structs with a shared
	// ClusterID (§4.5 Function_Cluster_Compile).
	clusters [][]*Workload

	// cyclicErrors collects the workloads that were force-failed by
	// an irresolvable cycle, for the caller to turn into
	// diagnostics.CyclicUnbreakableDependency errors.
	cyclicErrors []*Workload
}

// New creates an empty Scheduler.
func New(logger hclog.Logger) *Scheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Scheduler{logger: logger}
}

// Spawn registers a new workload and makes it immediately runnable.
// fn runs on its own goroutine but is only ever stepped while holding
// exclusive control of the scheduler's single control loop (see
// package doc).
func (s *Scheduler) Spawn(kind Kind, label string, fn func(*Fiber) error) *Workload {
	s.nextID++
	w := newWorkload(s.nextID, kind, label, s.logger.Named(fmt.Sprintf("%s[%d]", kind, s.nextID)), fn)
	s.workloads = append(s.workloads, w)
	w.start()
	s.runnable = append(s.runnable, w)
	return w
}

// Clusters returns every cluster resolved during Run, in resolution
// order.
func (s *Scheduler) Clusters() [][]*Workload { return s.clusters }

// CyclicErrors returns every workload that was force-failed by an
// irresolvable cycle.
func (s *Scheduler) CyclicErrors() []*Workload { return s.cyclicErrors }

// Run drains the runnable queue and attempts cluster resolution when
// it empties, repeating until no workload remains unfinished (§4.5
// Execution loop).
func (s *Scheduler) Run() {
	for {
		s.drainRunnable()
		if s.allFinished() {
			return
		}
		if !s.resolveOneCluster() {
			s.breakDeadlock()
		}
	}
}

func (s *Scheduler) allFinished() bool {
	for _, w := range s.workloads {
		if w.status != statusFinished {
			return false
		}
	}
	return true
}

// drainRunnable steps every workload currently in the runnable queue
// (§4.5 step 1: "resume its fiber").
func (s *Scheduler) drainRunnable() {
	for len(s.runnable) > 0 {
		w := s.runnable[0]
		s.runnable = s.runnable[1:]
		if w.status == statusFinished {
			continue
		}
		s.advance(w, true)
	}
}

// advance resumes w with the given answer to whatever it was last
// awaiting (ignored on a fresh workload's very first resume) and
// processes whatever it requests next: either it finishes (wakes its
// dependents), or it issues another Await, which either resolves
// immediately (dependency already finished — recurse) or truly
// suspends w until that dependency later completes.
func (s *Scheduler) advance(w *Workload, ok bool) {
	w.status = statusRunning
	w.fromSched <- response{ok: ok}
	req := <-w.toSched

	switch req.kind {
	case reqDone:
		w.status = statusFinished
		if req.err != nil {
			w.failed = true
			w.errCount++
		}
		s.logger.Trace("workload finished", "label", w.Label, "failed", w.failed)
		s.wakeDependents(w)

	case reqAwait:
		dep := req.dep
		if dep.status == statusFinished {
			s.advance(w, !dep.failed)
			return
		}
		w.status = statusSuspended
		w.pending = &pendingAwait{dep: dep, canBeBroken: req.canBeBroken, onFailure: req.onFailure}
		dep.dependents = append(dep.dependents, w)
	}
}

// wakeDependents advances every workload whose pending await targeted
// w, in FIFO order, now that w has finished.
func (s *Scheduler) wakeDependents(w *Workload) {
	deps := w.dependents
	w.dependents = nil
	for _, dependent := range deps {
		if dependent.status != statusSuspended || dependent.pending == nil || dependent.pending.dep != w {
			continue // already resolved via a different path
		}
		dependent.pending = nil
		s.advance(dependent, !w.failed)
	}
}
