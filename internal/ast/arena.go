package ast

import (
	"sync"

	tok "github.com/upplang/upp/internal/token"
)

// Arena mints Node identities for one compilation's worth of AST nodes
// (§5 Memory model: "owned by coarse arenas — one per Compilation_Data
// instance"). It does not own the Node memory itself (Go's GC does),
// only the monotonically increasing ID space nodes use for identity
// hashing in the AST_Info_Key table (§3 Analysis_Pass & AST_Info_Key).
// One Arena is shared across every unit in a compilation, minted from
// the parallel file-loading fan-out (§10), so id allocation is locked.
type Arena struct {
	mu     sync.Mutex
	nextID int
}

// NewArena creates an empty Arena.
func NewArena() *Arena { return &Arena{} }

// New mints the next node id and constructs a Node with it.
func (a *Arena) New(kind Kind, r tok.TokenRange, children ...*Node) *Node {
	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.mu.Unlock()
	return NewNode(id, kind, r, children...)
}

// Len reports how many nodes this arena has minted.
func (a *Arena) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.nextID
}
