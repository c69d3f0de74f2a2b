package symtab

import "github.com/upplang/upp/internal/ident"

// QueryInfo supplies query_id's parameters (§4.3).
type QueryInfo struct {
	AccessLevel   AccessLevel
	ImportKind    ImportKind // which import kind to follow; ImportNone means "both Symbols and Dot_Calls"
	SearchParents bool
}

// reachState tracks, for one reachable table, the weakest (most
// permissive) access clamp, whether imports/parents were searched to
// reach it, and the minimum depth at which it was reached — §4.3 step
// 1: "on revisit, upgrade the weakest of (access level, import
// search, parent search, min depth) only."
type reachState struct {
	table         *Table
	accessClamp   AccessLevel
	searchImports bool
	searchParents bool
	depth         int
}

// QueryID resolves id from table under info, returning every reachable
// matching symbol after alias resolution and Internal-shadowing
// (§4.3).
func QueryID(table *Table, id *ident.Identifier, info QueryInfo) []*Symbol {
	reach := map[*Table]*reachState{}
	order := []*Table{}
	var visit func(t *Table, accessClamp AccessLevel, searchImports, searchParents bool, depth int)
	visit = func(t *Table, accessClamp AccessLevel, searchImports, searchParents bool, depth int) {
		if t == nil {
			return
		}
		if st, ok := reach[t]; ok {
			upgraded := false
			if accessClamp < st.accessClamp {
				st.accessClamp = accessClamp
				upgraded = true
			}
			if searchImports && !st.searchImports {
				st.searchImports = true
				upgraded = true
			}
			if searchParents && !st.searchParents {
				st.searchParents = true
				upgraded = true
			}
			if depth < st.depth {
				st.depth = depth
				upgraded = true
			}
			if !upgraded {
				return
			}
		} else {
			reach[t] = &reachState{table: t, accessClamp: accessClamp, searchImports: searchImports, searchParents: searchParents, depth: depth}
			order = append(order, t)
		}

		st := reach[t]
		if st.searchParents && t.Parent != nil {
			visit(t.Parent, clamp(st.accessClamp, t.ParentAccessLevel), true, true, depth+1)
		}
		if st.searchImports {
			t.mu.RLock()
			imports := append([]Import(nil), t.imports...)
			t.mu.RUnlock()
			for _, im := range imports {
				if info.ImportKind != ImportNone && im.Kind != info.ImportKind {
					continue
				}
				if im.Kind == ImportNone {
					continue
				}
				// Non-transitive imports do not re-expand: the
				// imported table's own imports are not followed.
				visit(im.Table, clamp(st.accessClamp, im.AccessLevel), im.Transitive, false, depth+1)
			}
		}
	}

	visit(table, info.AccessLevel, true, info.SearchParents, 0)

	type found struct {
		sym   *Symbol
		depth int
	}
	var all []found
	for _, t := range order {
		st := reach[t]
		for _, sym := range t.LocalSymbols(id) {
			if sym.AccessLevel <= st.accessClamp {
				all = append(all, found{sym: sym, depth: st.depth})
			}
		}
	}

	// Internal-shadowing rule: if any Internal symbol was found, keep
	// only Internal symbols at the minimum depth, discard the rest.
	minInternalDepth := -1
	for _, f := range all {
		if f.sym.AccessLevel == Internal {
			if minInternalDepth == -1 || f.depth < minInternalDepth {
				minInternalDepth = f.depth
			}
		}
	}
	if minInternalDepth != -1 {
		filtered := all[:0]
		for _, f := range all {
			if f.sym.AccessLevel == Internal && f.depth == minInternalDepth {
				filtered = append(filtered, f)
			}
		}
		all = filtered
	}

	seen := map[*Symbol]bool{}
	var result []*Symbol
	for _, f := range all {
		resolved := resolveAlias(f.sym, map[*Symbol]bool{})
		if resolved == nil {
			continue // unresolved alias, dropped per §4.3 step 4
		}
		if seen[resolved] {
			continue
		}
		seen[resolved] = true
		result = append(result, resolved)
	}
	return result
}
