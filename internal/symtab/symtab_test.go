package symtab

import (
	"testing"

	"github.com/upplang/upp/internal/ident"
)

func TestQueryIDFindsLocalSymbol(t *testing.T) {
	pool := ident.New()
	tbl := New(nil, Global)
	foo := pool.Add("foo")
	sym := tbl.Define(foo, VariableType, Global)

	result := QueryID(tbl, foo, QueryInfo{AccessLevel: Global, SearchParents: true})
	if len(result) != 1 || result[0] != sym {
		t.Fatalf("expected to find local symbol, got %v", result)
	}
}

func TestQueryIDWalksParents(t *testing.T) {
	pool := ident.New()
	parent := New(nil, Global)
	child := New(parent, Global)
	foo := pool.Add("foo")
	sym := parent.Define(foo, VariableType, Global)

	result := QueryID(child, foo, QueryInfo{AccessLevel: Global, SearchParents: true})
	if len(result) != 1 || result[0] != sym {
		t.Fatalf("expected parent symbol visible from child, got %v", result)
	}
}

func TestParentAccessLevelClamps(t *testing.T) {
	pool := ident.New()
	parent := New(nil, Global)
	// child sees parent only at Internal clamp: parent's Global-level
	// symbol should NOT satisfy a query with AccessLevel Global since
	// ParentAccessLevel restricts to Internal-and-below is wrong
	// framing; clamp picks the MORE restrictive of the two, so a
	// child declared with ParentAccessLevel Global still sees
	// Global symbols.
	child := New(parent, Global)
	foo := pool.Add("foo")
	parent.Define(foo, VariableType, Global)

	result := QueryID(child, foo, QueryInfo{AccessLevel: Global, SearchParents: true})
	if len(result) != 1 {
		t.Fatalf("expected symbol visible, got %v", result)
	}
}

func TestInternalShadowsNonInternal(t *testing.T) {
	pool := ident.New()
	parent := New(nil, Global)
	child := New(parent, Global)
	foo := pool.Add("foo")
	parent.Define(foo, VariableType, Global)
	internalSym := child.Define(foo, VariableType, Internal)

	result := QueryID(child, foo, QueryInfo{AccessLevel: Internal, SearchParents: true})
	if len(result) != 1 || result[0] != internalSym {
		t.Fatalf("expected Internal symbol to shadow outer Global symbol, got %v", result)
	}
}

func TestNonTransitiveImportDoesNotReExpand(t *testing.T) {
	pool := ident.New()
	a := New(nil, Global)
	b := New(nil, Global)
	c := New(nil, Global)
	foo := pool.Add("foo")
	sym := c.Define(foo, VariableType, Global)

	if err := b.Include(c, ImportSymbols, Global, false); err != nil {
		t.Fatal(err)
	}
	if err := a.Include(b, ImportSymbols, Global, false); err != nil {
		t.Fatal(err)
	}

	resultFromB := QueryID(b, foo, QueryInfo{AccessLevel: Global, ImportKind: ImportSymbols})
	if len(resultFromB) != 1 || resultFromB[0] != sym {
		t.Fatalf("expected b to see c's symbol directly, got %v", resultFromB)
	}

	resultFromA := QueryID(a, foo, QueryInfo{AccessLevel: Global, ImportKind: ImportSymbols})
	if len(resultFromA) != 0 {
		t.Fatalf("expected a to NOT see c's symbol through a non-transitive import of b, got %v", resultFromA)
	}
}

func TestTransitiveImportReExpands(t *testing.T) {
	pool := ident.New()
	a := New(nil, Global)
	b := New(nil, Global)
	c := New(nil, Global)
	foo := pool.Add("foo")
	sym := c.Define(foo, VariableType, Global)

	if err := b.Include(c, ImportSymbols, Global, true); err != nil {
		t.Fatal(err)
	}
	if err := a.Include(b, ImportSymbols, Global, true); err != nil {
		t.Fatal(err)
	}

	result := QueryID(a, foo, QueryInfo{AccessLevel: Global, ImportKind: ImportSymbols})
	if len(result) != 1 || result[0] != sym {
		t.Fatalf("expected a to see c's symbol through a transitive chain, got %v", result)
	}
}

func TestIncludeSelfIsError(t *testing.T) {
	tbl := New(nil, Global)
	if err := tbl.Include(tbl, ImportSymbols, Global, false); err == nil {
		t.Fatal("expected error including a table in itself")
	}
}

func TestDuplicateIncludeIsError(t *testing.T) {
	a := New(nil, Global)
	b := New(nil, Global)
	if err := a.Include(b, ImportSymbols, Global, false); err != nil {
		t.Fatal(err)
	}
	if err := a.Include(b, ImportSymbols, Global, false); err == nil {
		t.Fatal("expected error including the same table with the same kind twice")
	}
}

func TestSameTableDifferentKindIsOK(t *testing.T) {
	a := New(nil, Global)
	b := New(nil, Global)
	if err := a.Include(b, ImportSymbols, Global, false); err != nil {
		t.Fatal(err)
	}
	if err := a.Include(b, ImportDotCalls, Global, false); err != nil {
		t.Fatalf("including the same table under a different kind should be allowed: %v", err)
	}
}

func TestAliasResolvesTransitively(t *testing.T) {
	pool := ident.New()
	tbl := New(nil, Global)
	foo := pool.Add("foo")
	real := tbl.Define(foo, VariableType, Global)

	bar := pool.Add("bar")
	mid := &Symbol{ID: bar, Variant: Alias, AliasTarget: real, AccessLevel: Global}
	tbl.DefineSymbol(mid)

	baz := pool.Add("baz")
	outer := &Symbol{ID: baz, Variant: Alias, AliasTarget: mid, AccessLevel: Global}
	tbl.DefineSymbol(outer)

	result := QueryID(tbl, baz, QueryInfo{AccessLevel: Global, SearchParents: true})
	if len(result) != 1 || result[0] != real {
		t.Fatalf("expected alias chain to resolve to the real symbol, got %v", result)
	}
}

func TestOperatorContextParentComposition(t *testing.T) {
	parent := NewOperatorContext()
	child := NewOperatorContext()
	child.Parents = append(child.Parents, parent)

	key := CustomOperatorKey{Kind: OpCast, CastMode: CastExplicit}
	parent.Set(&CustomOperator{Key: key, Function: 42})

	op, ok := child.Lookup(key)
	if !ok || op.Function != 42 {
		t.Fatalf("expected child to see parent's operator, got %v %v", op, ok)
	}
}
