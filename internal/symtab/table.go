package symtab

import (
	"sync"

	"github.com/upplang/upp/internal/ident"
)

// ImportKind selects what an Import brings into a table (§3).
type ImportKind int

const (
	ImportNone ImportKind = iota
	ImportSymbols
	ImportDotCalls
)

// Import is {table, kind, access_level, transitive} (§3 Symbol_Table).
type Import struct {
	Table       *Table
	Kind        ImportKind
	AccessLevel AccessLevel
	Transitive  bool
}

// Table is {parent (+ parent access level), imports[], symbols: id ->
// Symbol[], operator_context} (§3). Each table is owned by exactly one
// workload at a time (§5); the owner mutates via Define/Include, other
// fibers only read via QueryID.
type Table struct {
	mu sync.RWMutex

	Parent            *Table
	ParentAccessLevel AccessLevel

	imports []Import
	symbols map[*ident.Identifier][]*Symbol

	OperatorContext *OperatorContext
}

// New creates a table with no parent (a module root) or with the
// given parent at parentAccess clamp.
func New(parent *Table, parentAccess AccessLevel) *Table {
	return &Table{
		Parent:            parent,
		ParentAccessLevel: parentAccess,
		symbols:           make(map[*ident.Identifier][]*Symbol),
		OperatorContext:   NewOperatorContext(),
	}
}

// Define always succeeds and appends; duplicate detection is deferred
// to the caller (§4.3: "define_symbol ... always succeeds and
// appends").
func (t *Table) Define(id *ident.Identifier, kind VariantKind, access AccessLevel) *Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()
	sym := &Symbol{ID: id, Variant: kind, AccessLevel: access, OriginTable: t}
	t.symbols[id] = append(t.symbols[id], sym)
	return sym
}

// DefineSymbol inserts an already-constructed Symbol (used when the
// caller needs to set variant-specific payload before insertion).
func (t *Table) DefineSymbol(sym *Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	sym.OriginTable = t
	t.symbols[sym.ID] = append(t.symbols[sym.ID], sym)
}

// LocalSymbols returns every symbol directly defined in t for id,
// without walking parents or imports (used by duplicate-definition
// checks, which the caller — not Define — performs).
func (t *Table) LocalSymbols(id *ident.Identifier) []*Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Symbol(nil), t.symbols[id]...)
}

// Include records an import; including a table in itself, or the same
// table with the same kind twice, is an error (§4.3).
func (t *Table) Include(target *Table, kind ImportKind, access AccessLevel, transitive bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if target == t {
		return errIncludeSelf
	}
	for _, im := range t.imports {
		if im.Table == target && im.Kind == kind {
			return errDuplicateInclude
		}
	}
	t.imports = append(t.imports, Import{Table: target, Kind: kind, AccessLevel: access, Transitive: transitive})
	return nil
}

var (
	errIncludeSelf      = includeError("symtab: a table cannot include itself")
	errDuplicateInclude = includeError("symtab: the same table was included with the same kind twice")
)

type includeError string

func (e includeError) Error() string { return string(e) }
