package types

import (
	"fmt"
	"sync"

	"github.com/upplang/upp/internal/ident"
)

// System owns every Datatype ever constructed plus the structural
// dedup tables (§4.2). It is one of the two process-wide mutable
// caches named in §5; writes are serialised through Lock/Unlock the
// same way internal/ident.Pool serialises identifier interning.
type System struct {
	mu sync.Mutex

	all []*Datatype

	pointers   map[pointerKey]*Datatype
	optionals  map[*Datatype]*Datatype
	arrays     map[arrayKey]*Datatype
	slices     map[*Datatype]*Datatype
	constants  map[*Datatype]*Datatype
	funcPtrs   map[funcPtrKey]*Datatype
	signatures []*Signature

	// internalInfo caches the reflection-layout mirror built by
	// Finish* for each finished type (§6 Reflection-layout contract).
	internalInfo map[*Datatype]*InternalTypeInfo

	nextWorkloadKey int
}

type pointerKey struct {
	elem     *Datatype
	optional bool
}

type arrayKey struct {
	elem       *Datatype
	countKnown bool
	count      int
}

type funcPtrKey struct {
	sig      *Signature
	optional bool
}

// New creates a System with the primitive set boot-strapped (§4.2:
// make_primitive is "unique per call; used only during boot").
func New() *System {
	s := &System{
		pointers:     make(map[pointerKey]*Datatype),
		optionals:    make(map[*Datatype]*Datatype),
		arrays:       make(map[arrayKey]*Datatype),
		slices:       make(map[*Datatype]*Datatype),
		constants:    make(map[*Datatype]*Datatype),
		funcPtrs:     make(map[funcPtrKey]*Datatype),
		internalInfo: make(map[*Datatype]*InternalTypeInfo),
	}
	return s
}

// Lock/Unlock expose the mutex of the cooperative single-writer
// discipline of §5. Every Make*, RegisterSignature, StructAddMember and
// Finish* method takes that same mutex itself, so none of them may be
// called while Lock is held.
func (s *System) Lock()   { s.mu.Lock() }
func (s *System) Unlock() { s.mu.Unlock() }

func (s *System) register(t *Datatype) *Datatype {
	s.all = append(s.all, t)
	return t
}

// All returns every Datatype ever constructed, for invariant checking
// and the internal type-info mirror pass.
func (s *System) All() []*Datatype { return s.all }

// MakePrimitive always allocates fresh (§4.2 table: "unique per call").
func (s *System) MakePrimitive(class PrimitiveClass, signed bool, width int) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(&Datatype{
		Kind:       KindPrimitive,
		PrimClass:  class,
		PrimSigned: signed,
		PrimWidth:  width,
		Mem:        MemoryInfo{Available: true, Size: width, Alignment: primAlignment(width)},
	})
}

func primAlignment(width int) int {
	if width <= 0 {
		return 1
	}
	// Alignment never exceeds the platform pointer width used
	// elsewhere in this package (8); widths are powers of two by
	// construction of every MakePrimitive call site.
	if width > 8 {
		return 8
	}
	return width
}

// MakePointer deduplicates by (element, optional) (§4.2).
func (s *System) MakePointer(element *Datatype, optional bool) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pointerKey{elem: element, optional: optional}
	if t, ok := s.pointers[key]; ok {
		return t
	}
	t := s.register(&Datatype{
		Kind:     KindPointer,
		Element:  element,
		Optional: optional,
		Mem:      MemoryInfo{Available: true, Size: 8, Alignment: 8},
	})
	s.pointers[key] = t
	return t
}

// MakeOptional deduplicates by child. Non-pointer invariant: an
// Optional whose child is a Pointer collapses into
// Pointer{optional=true} instead (§3 Datatype invariant).
func (s *System) MakeOptional(child *Datatype) *Datatype {
	if child.Kind == KindPointer {
		return s.MakePointer(child.Element, true)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.optionals[child]; ok {
		return t
	}
	t := &Datatype{Kind: KindOptional, OptionalChild: child}
	if child.IsSized() {
		t.OptionalAvailableOffset = child.Mem.Size
		t.Mem = MemoryInfo{
			Available:               true,
			Size:                    child.Mem.Size + 1,
			Alignment:               child.Mem.Alignment,
			ContainsPadding:         child.Mem.ContainsPadding,
			ContainsFunctionPointer: child.Mem.ContainsFunctionPointer,
			ContainsReference:       child.Mem.ContainsReference,
		}
	} else {
		s.registerWaiter(child, t)
	}
	s.optionals[child] = t
	s.register(t)
	return t
}

// MakeArray deduplicates by (element, countKnown, count). Per §3's
// invariant, an array of Constant(T) is represented as
// Constant(Array(T)): callers should construct via MakeArray on the
// inner T and then MakeConstant, or this helper normalises for them
// when element is itself already KindConstant.
func (s *System) MakeArray(element *Datatype, countKnown bool, count int) *Datatype {
	if element.Kind == KindConstant {
		inner := s.makeArrayRaw(element.ConstantElement, countKnown, count)
		return s.MakeConstant(inner)
	}
	return s.makeArrayRaw(element, countKnown, count)
}

func (s *System) makeArrayRaw(element *Datatype, countKnown bool, count int) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !countKnown {
		count = 0
	}
	key := arrayKey{elem: element, countKnown: countKnown, count: count}
	if t, ok := s.arrays[key]; ok {
		return t
	}
	t := &Datatype{
		Kind:             KindArray,
		ArrayElement:     element,
		ArrayCountKnown:  countKnown,
		ArrayElementCont: count,
	}
	if !countKnown {
		// §8 Boundary behaviours: count_known=false has a
		// representation-free placeholder size/alignment.
		t.Mem = MemoryInfo{Available: true, Size: 1, Alignment: 1}
	} else if element.IsSized() {
		t.Mem = MemoryInfo{
			Available:               true,
			Size:                    element.Mem.Size * count,
			Alignment:               element.Mem.Alignment,
			ContainsPadding:         element.Mem.ContainsPadding,
			ContainsFunctionPointer: element.Mem.ContainsFunctionPointer,
			ContainsReference:       element.Mem.ContainsReference,
		}
	} else {
		s.registerWaiter(element, t)
	}
	s.arrays[key] = t
	s.register(t)
	return t
}

// MakeSlice deduplicates by element; layout is {*?element, usize}.
func (s *System) MakeSlice(element *Datatype) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.slices[element]; ok {
		return t
	}
	dataType := &Datatype{Kind: KindPointer, Element: element, Optional: true, Mem: MemoryInfo{Available: true, Size: 8, Alignment: 8}}
	sizeType := &Datatype{Kind: KindPrimitive, PrimClass: ClassInt, PrimSigned: false, PrimWidth: 8, Mem: MemoryInfo{Available: true, Size: 8, Alignment: 8}}
	t := &Datatype{
		Kind:            KindSlice,
		SliceElement:    element,
		SliceDataMember: &StructMember{Type: dataType, Offset: 0},
		SliceSizeMember: &StructMember{Type: sizeType, Offset: 8},
		Mem:             MemoryInfo{Available: true, Size: 16, Alignment: 8},
	}
	s.slices[element] = t
	s.register(t)
	return t
}

// MakeConstant is idempotent at the outer layer: Constant(Constant(x))
// == Constant(x) (§3, §8 round-trip law).
func (s *System) MakeConstant(elem *Datatype) *Datatype {
	if elem.Kind == KindConstant {
		return elem
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.constants[elem]; ok {
		return t
	}
	t := &Datatype{Kind: KindConstant, ConstantElement: elem}
	if elem.IsSized() {
		t.Mem = elem.Mem
	} else {
		s.registerWaiter(elem, t)
	}
	s.constants[elem] = t
	s.register(t)
	return t
}

// RegisterSignature interns a function signature so MakeFunctionPointer
// can deduplicate on it; callers build the Signature once per distinct
// parameter/return shape.
func (s *System) RegisterSignature(sig *Signature) *Signature {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.signatures {
		if signaturesEqual(existing, sig) {
			return existing
		}
	}
	s.signatures = append(s.signatures, sig)
	return sig
}

func signaturesEqual(a, b *Signature) bool {
	if a.ReturnType != b.ReturnType || len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if a.Parameters[i] != b.Parameters[i] {
			return false
		}
	}
	return true
}

// MakeFunctionPointer deduplicates by (signature, optional); signature
// must already be interned via RegisterSignature.
func (s *System) MakeFunctionPointer(sig *Signature, optional bool) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := funcPtrKey{sig: sig, optional: optional}
	if t, ok := s.funcPtrs[key]; ok {
		return t
	}
	t := s.register(&Datatype{
		Kind:      KindFunctionPointer,
		Signature: sig,
		Optional:  optional,
		Mem:       MemoryInfo{Available: true, Size: 8, Alignment: 8, ContainsFunctionPointer: true},
	})
	s.funcPtrs[key] = t
	return t
}

// MakeStructEmpty always allocates fresh: structs are nominally unique
// (§3). Each struct gets the next value of a per-System counter as its
// StructWorkloadKey. A non-nil parent makes the new struct a subtype:
// it is appended to parent.Subtypes and its SubtypeIndex is set.
func (s *System) MakeStructEmpty(name *ident.Identifier, isUnion bool, parent *Datatype) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextWorkloadKey++
	t := &Datatype{
		Kind:              KindStruct,
		StructName:        name,
		IsUnion:           isUnion,
		Parent:            parent,
		StructWorkloadKey: s.nextWorkloadKey,
	}
	if parent != nil {
		parent.Subtypes = append(parent.Subtypes, t)
		t.SubtypeIndex = len(parent.Subtypes)
	}
	return s.register(t)
}

// StructAddMember appends a member; forbidden after FinishStruct has
// run (§4.2).
func (s *System) StructAddMember(strct *Datatype, id *ident.Identifier, memberType *Datatype, defNode int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strct.Kind != KindStruct {
		return fmt.Errorf("types: StructAddMember on non-struct Datatype")
	}
	if strct.Mem.Available {
		return fmt.Errorf("types: cannot add member %q to struct %q after finish", id, strct.StructName)
	}
	strct.Members = append(strct.Members, &StructMember{
		ID:               id,
		Type:             memberType,
		DeclaringStruct:  strct,
		DefinitionNodeID: defNode,
	})
	return nil
}

// MakeEnumEmpty always allocates fresh.
func (s *System) MakeEnumEmpty(name *ident.Identifier) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(&Datatype{Kind: KindEnum, EnumName: name})
}

// MakePatternVariable always allocates fresh: it stands in for one
// unresolved polymorphic parameter of a generic function header, before
// any call site has supplied a concrete binding (§4.6 Pattern_Variable).
// It carries no size — PatternVariable never reaches a size-finish pass,
// since every real use site is replaced by the instantiated concrete
// type before bodies are analysed.
func (s *System) MakePatternVariable(name *ident.Identifier) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(&Datatype{Kind: KindPatternVariable, PatternVariableName: name})
}

// MakeStructPattern always allocates fresh: it wraps a generic struct
// type expression that still mentions an unresolved Pattern_Variable
// (e.g. a `Container(T)` parameter type on a poly function's header,
// evaluated before T has a concrete binding), so editor hover on the
// raw header can report a meaningful type instead of failing outright.
func (s *System) MakeStructPattern(instance *Datatype) *Datatype {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.register(&Datatype{Kind: KindStructPattern, PatternInstance: instance})
}

func (s *System) registerWaiter(owner, waiter *Datatype) {
	root := structRoot(owner)
	if root == nil {
		return
	}
	root.waitingForSize = append(root.waitingForSize, waiter)
}

// structRoot finds the struct whose size-finish ultimately unblocks t,
// walking through the wrapper kinds (Array/Optional/Constant) that can
// legitimately depend on an unfinished struct's size. Pointer never
// participates: a pointer to an unfinished struct is always sized (a
// pointer is 8 bytes regardless of pointee completeness).
func structRoot(t *Datatype) *Datatype {
	switch t.Kind {
	case KindStruct:
		if t.Parent != nil {
			return structRoot(t.Parent)
		}
		return t
	case KindArray:
		return structRoot(t.ArrayElement)
	case KindOptional:
		return structRoot(t.OptionalChild)
	case KindConstant:
		return structRoot(t.ConstantElement)
	default:
		return nil
	}
}
