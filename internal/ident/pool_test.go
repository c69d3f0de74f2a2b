package ident

import "testing"

func TestAddIsIdempotent(t *testing.T) {
	p := New()
	a := p.Add("foobar")
	b := p.Add("fo" + "obar")
	if a != b {
		t.Error("expected identical handles for equal input, got", a, b)
	}
}

func TestPredefinedPreinterned(t *testing.T) {
	p := New()
	main, ok := p.Lookup("main")
	if !ok {
		t.Fatal("expected \"main\" preinterned")
	}
	if main != p.Predefined["main"] {
		t.Error("Lookup and Predefined disagree on handle identity")
	}
}

func TestHandlesStableAcrossAdds(t *testing.T) {
	p := New()
	first := p.Add("x")
	for i := 0; i < 1000; i++ {
		p.Add("noise")
	}
	again := p.Add("x")
	if first != again {
		t.Error("handle for \"x\" was invalidated by unrelated Add calls")
	}
}

func TestLockAcquireRelease(t *testing.T) {
	p := New()
	lock := p.Lock()
	lock.Acquire()
	lock.Release()
}
