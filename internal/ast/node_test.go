package ast

import (
	"testing"

	tok "github.com/upplang/upp/internal/token"
)

func TestArenaAssignsStableIncreasingIDs(t *testing.T) {
	a := NewArena()
	n1 := a.New(KindIdentifierExpr, tok.TokenRange{})
	n2 := a.New(KindIdentifierExpr, tok.TokenRange{})
	if n1.ID == n2.ID {
		t.Fatal("expected distinct ids")
	}
	if n1.ID >= n2.ID {
		t.Fatal("expected increasing ids in construction order")
	}
}

func TestWalkVisitsEveryNodePreOrder(t *testing.T) {
	a := NewArena()
	leaf1 := a.New(KindIntLiteralExpr, tok.TokenRange{})
	leaf2 := a.New(KindIntLiteralExpr, tok.TokenRange{})
	bin := a.New(KindBinaryExpr, tok.TokenRange{}, leaf1, leaf2)
	stmt := a.New(KindExprStmt, tok.TokenRange{}, bin)

	var order []Kind
	Walk(stmt, func(n *Node, depth int) { order = append(order, n.Kind) })
	want := []Kind{KindExprStmt, KindBinaryExpr, KindIntLiteralExpr, KindIntLiteralExpr}
	if len(order) != len(want) {
		t.Fatalf("got %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("at %d: got %v want %v", i, order[i], want[i])
		}
	}
}

func TestChildrenHaveParentBackpointer(t *testing.T) {
	a := NewArena()
	leaf := a.New(KindIntLiteralExpr, tok.TokenRange{})
	parent := a.New(KindExprStmt, tok.TokenRange{}, leaf)
	if leaf.Parent != parent {
		t.Fatal("expected parent back-pointer to be wired")
	}
}
