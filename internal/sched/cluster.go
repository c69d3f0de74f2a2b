package sched

// resolveOneCluster looks for a strongly-connected component among
// the currently-suspended workloads whose internal edges are all
// marked can_be_broken, and resolves it by fulfilling those edges
// provisionally and re-queueing the members (§4.5 step 2: "Components
// whose all internal edges are marked can_be_broken ... are resolved
// by fulfilling those edges provisionally and re-queueing the
// members"). Returns true if a cluster was found and resolved.
func (s *Scheduler) resolveOneCluster() bool {
	live := s.liveSuspended()
	if len(live) == 0 {
		return false
	}

	sccs := tarjanSCC(live)
	for _, scc := range sccs {
		if !isCycle(scc) {
			continue
		}
		if !allEdgesBreakable(scc) {
			continue
		}
		s.resolveCluster(scc)
		return true
	}
	return false
}

// isCycle reports whether scc is an actual cycle: either more than one
// member (mutual recursion), or a single member whose pending await
// targets itself directly (a struct's own self-pointer, S2's shape).
func isCycle(scc []*Workload) bool {
	if len(scc) > 1 {
		return true
	}
	if len(scc) == 1 {
		w := scc[0]
		return w.pending != nil && w.pending.dep == w
	}
	return false
}

// liveSuspended returns every workload currently suspended on a
// pending Await, which is exactly the node set cluster resolution
// operates over.
func (s *Scheduler) liveSuspended() []*Workload {
	var out []*Workload
	for _, w := range s.workloads {
		if w.status == statusSuspended && w.pending != nil {
			out = append(out, w)
		}
	}
	return out
}

// allEdgesBreakable reports whether every node in scc depends (via
// its pending await) on another node also in scc, and that edge is
// marked can_be_broken. A node in scc that is awaiting something
// outside scc cannot be part of a self-contained resolvable cluster.
func allEdgesBreakable(scc []*Workload) bool {
	set := make(map[*Workload]bool, len(scc))
	for _, w := range scc {
		set[w] = true
	}
	for _, w := range scc {
		if w.pending == nil || !set[w.pending.dep] {
			return false
		}
		if !w.pending.canBeBroken {
			return false
		}
	}
	return true
}

// resolveCluster provisionally fulfills every edge inside scc — each
// member is told its dependency succeeded — and re-queues them all,
// recording the cluster for Function_Cluster_Compile-style batch
// ordering downstream (§4.5: "Function_Cluster_Compile ... provides
// the back-end a stable batch ordering").
func (s *Scheduler) resolveCluster(scc []*Workload) {
	s.clusters = append(s.clusters, append([]*Workload(nil), scc...))
	for _, w := range scc {
		w.pending = nil
	}
	for _, w := range scc {
		s.advance(w, true)
	}
}

// breakDeadlock runs when no workload is runnable and no cluster could
// be resolved: every remaining suspended workload is part of an
// irresolvable cycle (or depends, transitively, on one). Report a
// cycle error against each and force them to resume with failure,
// guaranteeing at least one workload is removed from the waiting set
// per turn (§5 point 8; §7 "cyclic unbreakable dependency").
func (s *Scheduler) breakDeadlock() {
	live := s.liveSuspended()
	if len(live) == 0 {
		return
	}
	s.cyclicErrors = append(s.cyclicErrors, live...)
	for _, w := range live {
		w.pending = nil
	}
	for _, w := range live {
		if w.status == statusSuspended {
			s.advance(w, false)
		}
	}
}

// tarjanSCC computes the strongly connected components of the
// "awaits" graph restricted to nodes, using each node's single pending
// dependency as its only outgoing edge.
func tarjanSCC(nodes []*Workload) [][]*Workload {
	index := 0
	indices := make(map[*Workload]int)
	lowlink := make(map[*Workload]int)
	onStack := make(map[*Workload]bool)
	var stack []*Workload
	var sccs [][]*Workload

	set := make(map[*Workload]bool, len(nodes))
	for _, n := range nodes {
		set[n] = true
	}

	var strongconnect func(v *Workload)
	strongconnect = func(v *Workload) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		if v.pending != nil && set[v.pending.dep] {
			wNode := v.pending.dep
			if _, seen := indices[wNode]; !seen {
				strongconnect(wNode)
				if lowlink[wNode] < lowlink[v] {
					lowlink[v] = lowlink[wNode]
				}
			} else if onStack[wNode] {
				if indices[wNode] < lowlink[v] {
					lowlink[v] = indices[wNode]
				}
			}
		}

		if lowlink[v] == indices[v] {
			var scc []*Workload
			for {
				n := len(stack) - 1
				top := stack[n]
				stack = stack[:n]
				onStack[top] = false
				scc = append(scc, top)
				if top == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range nodes {
		if _, seen := indices[n]; !seen {
			strongconnect(n)
		}
	}
	return sccs
}
