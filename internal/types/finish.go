package types

import (
	"fmt"

	"github.com/upplang/upp/internal/ident"
)

func align(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	if rem := offset % alignment; rem != 0 {
		return offset + (alignment - rem)
	}
	return offset
}

// FinishStruct computes alignment, member offsets, subtype layout, and
// the tag member, then distributes the result across the whole
// subtype tree and notifies every type waiting on this struct's size
// (§4.2 "Size-finish algorithm (struct)"). root must be the tree's
// root (Parent == nil); finishing a subtype directly is an error.
func (s *System) FinishStruct(root *Datatype, pool *ident.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if root.Kind != KindStruct {
		return fmt.Errorf("types: FinishStruct on non-struct Datatype")
	}
	if root.Parent != nil {
		return fmt.Errorf("types: FinishStruct must be called on a subtype tree's root")
	}
	if root.Mem.Available {
		return nil // idempotent re-finish is a no-op
	}

	// Step 1: alignment is the max of member-type alignments and
	// subtype alignments.
	alignment := 1
	for _, m := range root.Members {
		if !m.Type.IsSized() {
			return fmt.Errorf("types: member %q of struct %q has unfinished type", m.ID, root.StructName)
		}
		if m.Type.Mem.Alignment > alignment {
			alignment = m.Type.Mem.Alignment
		}
	}

	// Step 2: lay out members in declaration order. Unions reset the
	// offset to the parent's initial offset (0, since root members
	// start at 0) for every member, then widen size to the max.
	size := 0
	containsPadding := false
	containsFuncPtr := false
	containsReference := false
	offset := 0
	for _, m := range root.Members {
		memAlign := m.Type.Mem.Alignment
		if root.IsUnion {
			aligned := align(0, memAlign)
			containsPadding = containsPadding || aligned != 0
			m.Offset = aligned
			if m.Type.Mem.Size > size {
				size = m.Type.Mem.Size
			}
		} else {
			aligned := align(offset, memAlign)
			containsPadding = containsPadding || aligned != offset
			m.Offset = aligned
			offset = aligned + m.Type.Mem.Size
			size = offset
		}
		containsPadding = containsPadding || m.Type.Mem.ContainsPadding
		containsFuncPtr = containsFuncPtr || m.Type.Mem.ContainsFunctionPointer
		containsReference = containsReference || m.Type.Mem.ContainsReference
	}

	// Step 3: subtype layout, if any.
	if len(root.Subtypes) > 0 {
		subtypeAlign := 1
		for _, sub := range root.Subtypes {
			for _, m := range sub.Members {
				if !m.Type.IsSized() {
					return fmt.Errorf("types: member %q of subtype %q has unfinished type", m.ID, sub.StructName)
				}
				if m.Type.Mem.Alignment > subtypeAlign {
					subtypeAlign = m.Type.Mem.Alignment
				}
			}
		}
		if subtypeAlign > alignment {
			alignment = subtypeAlign
		}
		subtypesStart := align(size, alignment)
		containsPadding = containsPadding || subtypesStart != size

		longestSubtypeTail := 0
		for _, sub := range root.Subtypes {
			subOffset := subtypesStart
			subSize := subtypesStart
			for _, m := range sub.Members {
				aligned := align(subOffset, m.Type.Mem.Alignment)
				containsPadding = containsPadding || aligned != subOffset
				m.Offset = aligned
				subOffset = aligned + m.Type.Mem.Size
				subSize = subOffset
				containsPadding = containsPadding || m.Type.Mem.ContainsPadding
				containsFuncPtr = containsFuncPtr || m.Type.Mem.ContainsFunctionPointer
				containsReference = containsReference || m.Type.Mem.ContainsReference
			}
			tail := subSize - subtypesStart
			if tail > longestSubtypeTail {
				longestSubtypeTail = tail
			}
		}
		size = subtypesStart + longestSubtypeTail

		// Place a tag enum member (values 1..=n) aligned after subtypes.
		tagEnum := s.buildTagEnum(root, pool)
		tagOffset := align(size, tagEnum.Mem.Alignment)
		containsPadding = containsPadding || tagOffset != size
		root.TagMember = &StructMember{
			ID:              pool.Add("tag"),
			Type:            tagEnum,
			Offset:          tagOffset,
			DeclaringStruct: root,
		}
		size = tagOffset + tagEnum.Mem.Size
	}

	// Step 4: round total size up to the struct's alignment.
	finalSize := align(size, alignment)
	containsPadding = containsPadding || finalSize != size

	root.Mem = MemoryInfo{
		Available:               true,
		Size:                    finalSize,
		Alignment:               alignment,
		ContainsPadding:         containsPadding,
		ContainsFunctionPointer: containsFuncPtr,
		ContainsReference:       containsReference,
	}

	// Step 6: copy the root's memory_info into every subtype.
	for _, sub := range root.Subtypes {
		sub.Mem = root.Mem
	}

	// Step 7: finish everything queued on the root's (or any
	// subtype's — waiters are only ever registered via structRoot,
	// which always resolves to the root) waiting list.
	waiters := root.waitingForSize
	root.waitingForSize = nil
	for _, w := range waiters {
		s.finishWaiter(w)
	}

	// Step 8: mirror the whole tree into the internal type-info array.
	s.buildInternalInfoLocked(root)
	for _, sub := range root.Subtypes {
		s.buildInternalInfoLocked(sub)
	}
	return nil
}

// finishWaiter completes the memory info of a previously-unsized
// Array/Optional/Constant now that its (possibly indirect) struct
// dependency has a size. It does not recurse: nested waiters are all
// registered on the same root in construction order, inner first, so
// FinishStruct reaches an inner waiter before any outer one.
func (s *System) finishWaiter(t *Datatype) {
	if t.Mem.Available {
		return
	}
	switch t.Kind {
	case KindArray:
		if !t.ArrayElement.IsSized() {
			return
		}
		if !t.ArrayCountKnown {
			t.Mem = MemoryInfo{Available: true, Size: 1, Alignment: 1}
			return
		}
		e := t.ArrayElement.Mem
		t.Mem = MemoryInfo{
			Available: true, Size: e.Size * t.ArrayElementCont, Alignment: e.Alignment,
			ContainsPadding: e.ContainsPadding, ContainsFunctionPointer: e.ContainsFunctionPointer,
			ContainsReference: e.ContainsReference,
		}
	case KindOptional:
		if !t.OptionalChild.IsSized() {
			return
		}
		c := t.OptionalChild.Mem
		t.OptionalAvailableOffset = c.Size
		t.Mem = MemoryInfo{
			Available: true, Size: c.Size + 1, Alignment: c.Alignment,
			ContainsPadding: c.ContainsPadding, ContainsFunctionPointer: c.ContainsFunctionPointer,
			ContainsReference: c.ContainsReference,
		}
	case KindConstant:
		if !t.ConstantElement.IsSized() {
			return
		}
		t.Mem = t.ConstantElement.Mem
	}
}

// buildTagEnum synthesises the {1..=n} subtype discriminant enum.
func (s *System) buildTagEnum(root *Datatype, pool *ident.Pool) *Datatype {
	e := &Datatype{Kind: KindEnum, EnumName: root.StructName}
	for i, sub := range root.Subtypes {
		name := sub.StructName
		if name == nil {
			name = pool.Add(fmt.Sprintf("subtype_%d", i+1))
		}
		e.EnumMembers = append(e.EnumMembers, EnumMember{ID: name, Value: int64(i + 1)})
	}
	s.finishEnumLocked(e)
	return e
}

// FinishEnum computes memory info and the sequential flag (§4.2).
func (s *System) FinishEnum(e *Datatype) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Kind != KindEnum {
		return fmt.Errorf("types: FinishEnum on non-enum Datatype")
	}
	s.finishEnumLocked(e)
	return nil
}

func (s *System) finishEnumLocked(e *Datatype) {
	e.Mem = MemoryInfo{Available: true, Size: 4, Alignment: 4}
	if len(e.EnumMembers) == 0 {
		e.EnumSequential = true
		e.EnumSequenceStart = 0
		return
	}
	e.EnumSequenceStart = e.EnumMembers[0].Value
	sequential := true
	for i, m := range e.EnumMembers {
		if m.Value != e.EnumSequenceStart+int64(i) {
			sequential = false
			break
		}
	}
	e.EnumSequential = sequential
}
