// Package constpool implements the compile-time constant pool:
// deduplicated, validated byte blobs keyed by (type, canonicalised
// memory) (§4.4), grounded directly on
// original_source/UppLib/programs/upp_lang/constant_pool.cpp, which
// keeps two dedup tables — one for exact re-use, one ("deepcopy
// saves") for preserving pointer identity of already-copied
// sub-constants during deep copies (SPEC_FULL.md §12).
package constpool

import (
	"fmt"

	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/types"
)

// FailureKind enumerates add_constant's closed set of non-panicking
// failure modes (§4.4).
type FailureKind int

const (
	FailNone FailureKind = iota
	FailUnreadableMemory
	FailInvalidFunctionIndex
	FailNonNullPointer
	FailNonEmptySlice
	FailUnknownCountArray
	FailAnyTypeValue
	FailUnionValue
	FailInvalidSubtypeTag
	FailSizeMismatch
	FailUnsizedType
)

func (k FailureKind) String() string {
	switch k {
	case FailNone:
		return "none"
	case FailUnreadableMemory:
		return "unreadable memory"
	case FailInvalidFunctionIndex:
		return "invalid function index"
	case FailNonNullPointer:
		return "non-null pointer"
	case FailNonEmptySlice:
		return "non-empty slice"
	case FailUnknownCountArray:
		return "unknown-count array"
	case FailAnyTypeValue:
		return "any-type value"
	case FailUnionValue:
		return "union value"
	case FailInvalidSubtypeTag:
		return "invalid subtype tag"
	case FailSizeMismatch:
		return "byte slice size does not match type size"
	case FailUnsizedType:
		return "type is not registered/sized"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Error wraps a FailureKind with the type/value context add_constant
// was asked to canonicalise.
type Error struct {
	Kind FailureKind
	Type *types.Datatype
}

func (e *Error) Error() string {
	return fmt.Sprintf("constpool: %s (type %s)", e.Kind, e.Type.Kind)
}

// Constant is {type, offset into byte arena, index in pool, optional
// array-size} (§3).
type Constant struct {
	Type      *types.Datatype
	Offset    int
	Index     int
	ArraySize int // meaningful only when Type.Kind == KindArray with count_known=false at the call site
}

type dedupKey struct {
	typ   *types.Datatype
	bytes string
}

// Stats exposes the non-functional diagnostic counters the original
// source tracks (`deepcopy_counts` and timing) without anything in
// this implementation depending on their value (§13 Open Questions).
type Stats struct {
	DeepCopyCount int
	DedupHits     int
	DedupMisses   int
}

// Pool owns the byte arena and both dedup tables.
type Pool struct {
	arena     []byte
	constants []*Constant
	exact     map[dedupKey]*Constant
	deepCopySaves map[*Constant]*Constant

	idents *ident.Pool

	stats Stats
}

// New creates an empty Pool. idents is used to rewrite c_string
// constants to point at the identifier pool's copy of their bytes
// (§4.4 step 3).
func New(idents *ident.Pool) *Pool {
	return &Pool{
		exact:         make(map[dedupKey]*Constant),
		deepCopySaves: make(map[*Constant]*Constant),
		idents:        idents,
	}
}

// Stats returns a snapshot of the diagnostic counters.
func (p *Pool) Stats() Stats { return p.stats }

// Bytes returns the arena-resident bytes of c.
func (p *Pool) Bytes(c *Constant) []byte {
	return p.arena[c.Offset : c.Offset+c.Type.Mem.Size]
}

// AddConstant validates, canonicalises, and deduplicates raw into the
// pool, returning the (possibly pre-existing) Constant (§4.4).
func (p *Pool) AddConstant(t *types.Datatype, raw []byte) (*Constant, error) {
	if !t.IsSized() {
		return nil, &Error{Kind: FailUnsizedType, Type: t}
	}
	if len(raw) != t.Mem.Size {
		return nil, &Error{Kind: FailSizeMismatch, Type: t}
	}

	canon := make([]byte, len(raw))
	copy(canon, raw)
	if err := p.canonicalise(t, canon, 0); err != nil {
		return nil, err
	}

	key := dedupKey{typ: t, bytes: string(canon)}
	if existing, ok := p.exact[key]; ok {
		p.stats.DedupHits++
		return existing, nil
	}
	p.stats.DedupMisses++

	offset := align(len(p.arena), t.Mem.Alignment)
	if pad := offset - len(p.arena); pad > 0 {
		p.arena = append(p.arena, make([]byte, pad)...)
	}
	p.arena = append(p.arena, canon...)

	c := &Constant{Type: t, Offset: offset, Index: len(p.constants)}
	p.constants = append(p.constants, c)
	p.exact[key] = c
	return c, nil
}

func align(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	if rem := offset % alignment; rem != 0 {
		return offset + (alignment - rem)
	}
	return offset
}

// canonicalise walks mem (a slice into canon starting at byteOffset,
// len == t.Mem.Size) under t, zeroing padding, validating pointers are
// null, slices are empty, and rejecting Any/union/unresolved-subtype
// values, recursively for struct members and array elements (§4.4
// step 2).
func (p *Pool) canonicalise(t *types.Datatype, canon []byte, byteOffset int) error {
	mem := canon[byteOffset : byteOffset+t.Mem.Size]
	if isAnyType(t) {
		return &Error{Kind: FailAnyTypeValue, Type: t}
	}
	switch t.Kind {
	case types.KindPointer:
		if !allZero(mem) {
			return &Error{Kind: FailNonNullPointer, Type: t}
		}
		return nil

	case types.KindOptional:
		// Optional{child} layout: child bytes then an availability
		// byte at OptionalAvailableOffset; recurse into the child
		// only if marked available, matching the original's walk.
		avail := mem[t.OptionalAvailableOffset]
		if avail != 0 {
			if err := p.canonicalise(t.OptionalChild, canon, byteOffset); err != nil {
				return err
			}
		} else {
			for i := range mem[:t.OptionalAvailableOffset] {
				mem[i] = 0
			}
		}
		return nil

	case types.KindSlice:
		dataBytes := mem[:8]
		sizeBytes := mem[8:16]
		if !allZero(dataBytes) {
			return &Error{Kind: FailNonEmptySlice, Type: t}
		}
		if !allZero(sizeBytes) {
			return &Error{Kind: FailNonEmptySlice, Type: t}
		}
		return nil

	case types.KindArray:
		if !t.ArrayCountKnown {
			return &Error{Kind: FailUnknownCountArray, Type: t}
		}
		elemSize := t.ArrayElement.Mem.Size
		for i := 0; i < t.ArrayElementCont; i++ {
			if err := p.canonicalise(t.ArrayElement, canon, byteOffset+i*elemSize); err != nil {
				return err
			}
		}
		return nil

	case types.KindConstant:
		return p.canonicalise(t.ConstantElement, canon, byteOffset)

	case types.KindFunctionPointer:
		// A function constant is bounds-checked elsewhere (the
		// analyser resolves it to a valid function index before
		// calling AddConstant); here we only reject a negative raw
		// index, such as the -1 used as the "unresolved" sentinel.
		idx := int32(mem[0]) | int32(mem[1])<<8 | int32(mem[2])<<16 | int32(mem[3])<<24
		if idx < 0 {
			return &Error{Kind: FailInvalidFunctionIndex, Type: t}
		}
		return nil

	case types.KindStruct:
		if t.IsUnion {
			return &Error{Kind: FailUnionValue, Type: t}
		}
		for _, m := range t.Members {
			if err := p.canonicalise(m.Type, canon, byteOffset+m.Offset); err != nil {
				return err
			}
		}
		if t.TagMember != nil {
			tagVal := int64(mem[t.TagMember.Offset])
			valid := false
			for _, em := range t.TagMember.Type.EnumMembers {
				if em.Value == tagVal {
					valid = true
					break
				}
			}
			if !valid {
				return &Error{Kind: FailInvalidSubtypeTag, Type: t}
			}
			tagVal64 := tagVal
			if tagVal64 >= 1 && int(tagVal64) <= len(t.Subtypes) {
				if err := p.canonicalise(t.Subtypes[tagVal64-1], canon, byteOffset); err != nil {
					return err
				}
			}
		}
		// Zero any tail padding bytes the member walk above did not
		// touch (union case already rejected above).
		p.zeroUntouchedPadding(t, mem)
		return nil

	default:
		// Primitive, Enum, PatternVariable, StructPattern: no
		// padding, pointers, or slices to canonicalise.
		return nil
	}
}

// zeroUntouchedPadding zeroes every byte of mem not covered by a
// member or the tag member, per §4.4 step 2 ("zero every padding
// byte"). A subtype's value also holds its ancestors' members and tag,
// and a tagged root's value holds its active subtype's members.
func (p *Pool) zeroUntouchedPadding(t *types.Datatype, mem []byte) {
	covered := make([]bool, len(mem))
	mark := func(offset, size int) {
		for i := offset; i < offset+size && i < len(covered); i++ {
			covered[i] = true
		}
	}
	for s := t; s != nil; s = s.Parent {
		for _, m := range s.Members {
			mark(m.Offset, m.Type.Mem.Size)
		}
		if s.TagMember != nil {
			mark(s.TagMember.Offset, s.TagMember.Type.Mem.Size)
		}
	}
	if t.TagMember != nil {
		if tag := int(mem[t.TagMember.Offset]); tag >= 1 && tag <= len(t.Subtypes) {
			for _, m := range t.Subtypes[tag-1].Members {
				mark(m.Offset, m.Type.Mem.Size)
			}
		}
	}
	for i, c := range covered {
		if !c {
			mem[i] = 0
		}
	}
}

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// isAnyType reports whether t is the sentinel "any" type: an
// address-class, zero-width primitive is how Upp represents `Any`,
// which add_constant rejects outright (§4.4 step 3: "Any is rejected,
// opaque pointer, not serialisable"). Any is a library-level alias for
// Primitive{class: address}, not its own Datatype variant, so this is
// a predicate rather than a types.Kind constant.
func isAnyType(t *types.Datatype) bool {
	return t.Kind == types.KindPrimitive && t.PrimClass == types.ClassAddress && t.PrimWidth == 0
}

// CopyValueToArena deep-copies src (already a Constant in this or
// another pool) into this pool, reusing the deepCopySaves table to
// preserve pointer identity for sub-constants already copied earlier
// in the same deep-copy operation (§12 supplemented behaviour).
func (p *Pool) CopyValueToArena(src *Constant, srcPool *Pool) (*Constant, error) {
	if dst, ok := p.deepCopySaves[src]; ok {
		return dst, nil
	}
	p.stats.DeepCopyCount++
	raw := srcPool.Bytes(src)
	dst, err := p.AddConstant(src.Type, raw)
	if err != nil {
		return nil, err
	}
	p.deepCopySaves[src] = dst
	return dst, nil
}
