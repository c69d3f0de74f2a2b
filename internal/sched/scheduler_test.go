package sched

import "testing"

func TestSimpleDependencyOrdering(t *testing.T) {
	s := New(nil)
	var order []string

	var b *Workload
	a := s.Spawn(KindDefinition, "a", func(f *Fiber) error {
		ok := f.Await(b, false, nil)
		if !ok {
			t.Error("expected b to succeed")
		}
		order = append(order, "a")
		return nil
	})
	b = s.Spawn(KindDefinition, "b", func(f *Fiber) error {
		order = append(order, "b")
		return nil
	})
	_ = a

	s.Run()

	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("expected b before a, got %v", order)
	}
}

func TestSelfReferentialStructClusterResolves(t *testing.T) {
	// A struct-body workload whose member type depends on its own
	// (not-yet-finished) workload via a breakable edge.
	s := New(nil)
	var nodeBody *Workload
	nodeBody = s.Spawn(KindStructBody, "Node", func(f *Fiber) error {
		ok := f.Await(nodeBody, true, func() {})
		if !ok {
			t.Error("expected the self-edge to be resolved by cluster resolution")
		}
		return nil
	})

	s.Run()

	if nodeBody.status != statusFinished {
		t.Fatal("expected workload to finish")
	}
	if len(s.Clusters()) != 1 {
		t.Fatalf("expected exactly one cluster resolved, got %d", len(s.Clusters()))
	}
}

func TestMutuallyRecursiveFunctionsCluster(t *testing.T) {
	// Mirrors S3's even<->odd mutual cycle.
	s := New(nil)
	var foo, bar *Workload
	foo = s.Spawn(KindFunctionBody, "foo", func(f *Fiber) error {
		if !f.Await(bar, true, nil) {
			t.Error("expected bar to resolve via cluster")
		}
		return nil
	})
	bar = s.Spawn(KindFunctionBody, "bar", func(f *Fiber) error {
		if !f.Await(foo, true, nil) {
			t.Error("expected foo to resolve via cluster")
		}
		return nil
	})

	s.Run()

	if foo.status != statusFinished || bar.status != statusFinished {
		t.Fatal("expected both to finish")
	}
	if len(s.Clusters()) != 1 || len(s.Clusters()[0]) != 2 {
		t.Fatalf("expected one 2-member cluster, got %v", s.Clusters())
	}
}

func TestIrresolvableCycleReportsErrorAndMakesProgress(t *testing.T) {
	s := New(nil)
	var a, b *Workload
	a = s.Spawn(KindDefinition, "a", func(f *Fiber) error {
		ok := f.Await(b, false, nil) // not breakable
		if ok {
			t.Error("expected failure on an irresolvable cycle")
		}
		return nil
	})
	b = s.Spawn(KindDefinition, "b", func(f *Fiber) error {
		ok := f.Await(a, false, nil)
		if ok {
			t.Error("expected failure on an irresolvable cycle")
		}
		return nil
	})

	s.Run()

	if a.status != statusFinished || b.status != statusFinished {
		t.Fatal("expected the scheduler to still make progress and finish both")
	}
	if len(s.CyclicErrors()) == 0 {
		t.Fatal("expected a cyclic-unbreakable-dependency report")
	}
}

func TestEventWorkloadIsJoinPoint(t *testing.T) {
	s := New(nil)
	event := s.Spawn(KindEvent, "ready", func(f *Fiber) error { return nil })
	var sawReady bool
	s.Spawn(KindModuleAnalysis, "consumer", func(f *Fiber) error {
		if f.Await(event, false, nil) {
			sawReady = true
		}
		return nil
	})
	s.Run()
	if !sawReady {
		t.Fatal("expected consumer to observe the event workload completing")
	}
}
