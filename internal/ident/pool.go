// Package ident interns source-level names into stable, comparable
// handles. Every identifier used anywhere in the compiler — variable
// names, struct members, module paths — flows through one Pool so that
// equality is pointer identity rather than string comparison.
package ident

import "sync"

// Identifier is an interned name. Two Identifiers are equal iff they
// were interned from equal strings by the same Pool; comparison is a
// pointer comparison, never a string comparison.
type Identifier struct {
	name string
}

// String returns the interned text.
func (id *Identifier) String() string {
	if id == nil {
		return "<nil>"
	}
	return id.name
}

// Lock is a handle on the same mutex that Add takes internally (§5: the
// identifier pool is one of the two process-wide mutable caches). Add
// already serialises itself, so holding Lock is never needed around
// it; a caller holding Lock blocks every Add until Release.
type Lock struct {
	mu *sync.Mutex
}

// Acquire blocks until the pool's lock is held by this handle alone.
func (l Lock) Acquire() { l.mu.Lock() }

// Release gives the lock back up.
func (l Lock) Release() { l.mu.Unlock() }

// Pool owns the arena of interned strings and the handles minted from
// it. The zero value is not usable; construct with New.
type Pool struct {
	mu      sync.Mutex
	entries map[string]*Identifier

	// Predefined holds every identifier eagerly inserted at pool
	// creation, keyed by its own text for fast access from callers
	// that need e.g. Predefined["main"].
	Predefined map[string]*Identifier
}

// predefinedNames lists identifiers the analyser refers to directly by
// name, independent of any particular source program (§3 Identifier).
var predefinedNames = []string{
	"main", "tag", "size", "data", "value", "is_available", "bytes",
	"next", "cast", "iterator", "length", "capacity", "Self",
}

// New creates a Pool with all predefined identifiers already interned.
func New() *Pool {
	p := &Pool{entries: make(map[string]*Identifier, len(predefinedNames)*2)}
	p.Predefined = make(map[string]*Identifier, len(predefinedNames))
	for _, n := range predefinedNames {
		id := p.add(n)
		p.Predefined[n] = id
	}
	return p
}

// Lock returns a handle on the pool's internal mutex, shared by every
// caller of this pool; while it is held, Add calls block.
func (p *Pool) Lock() Lock { return Lock{mu: &p.mu} }

// Add interns s, returning the same *Identifier for equal input
// regardless of call site or source allocation (§4.1: idempotent).
// Add takes the pool's mutex itself, so it is safe to call from more
// than one fiber; calling it while holding the pool's Lock deadlocks.
func (p *Pool) Add(s string) *Identifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(s)
}

func (p *Pool) add(s string) *Identifier {
	if id, ok := p.entries[s]; ok {
		return id
	}
	// Copy into a private string so the handle does not keep an
	// unrelated larger backing array (e.g. a full source line) alive.
	owned := string([]byte(s))
	id := &Identifier{name: owned}
	p.entries[owned] = id
	return id
}

// Lookup returns the Identifier for s if it has already been interned,
// without mutating the pool.
func (p *Pool) Lookup(s string) (*Identifier, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, ok := p.entries[s]
	return id, ok
}

// Len reports how many distinct strings have been interned.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
