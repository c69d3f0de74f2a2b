package types

// InternalTypeInfo is the comptime-visible mirror of a Datatype (§6
// Reflection-layout contract): "{ type_handle: u32, size: i32,
// alignment: i32, tag_and_subtype_payload }", with a payload struct for
// the primitive, pointer, struct and enum kinds. TypeHandle is the
// number of mirrors built before this one, assigned once at
// mirror-build time so comptime code reading Type_Info through the
// constant pool sees stable handles.
type InternalTypeInfo struct {
	TypeHandle uint32
	Size       int32
	Alignment  int32
	Kind       Kind

	Primitive *PrimitiveInfo
	Pointer   *PointerInfo
	Struct    *StructInfo
	Enum      *EnumInfo
}

type PrimitiveInfo struct {
	Class  PrimitiveClass
	Signed bool
	Width  int32
}

type PointerInfo struct {
	Element  uint32
	Optional bool
}

type StructInfo struct {
	MemberNames  []string
	MemberTypes  []uint32
	MemberOffset []int32
	IsUnion      bool
}

type EnumInfo struct {
	MemberNames  []string
	MemberValues []int64
	Sequential   bool
}

// buildInternalInfoLocked builds and caches the mirror for t. Caller
// must hold s.mu.
func (s *System) buildInternalInfoLocked(t *Datatype) *InternalTypeInfo {
	if info, ok := s.internalInfo[t]; ok {
		return info
	}
	handle := uint32(len(s.internalInfo))
	info := &InternalTypeInfo{
		TypeHandle: handle,
		Size:       int32(t.Mem.Size),
		Alignment:  int32(t.Mem.Alignment),
		Kind:       t.Kind,
	}
	switch t.Kind {
	case KindPrimitive:
		info.Primitive = &PrimitiveInfo{Class: t.PrimClass, Signed: t.PrimSigned, Width: int32(t.PrimWidth)}
	case KindPointer:
		info.Pointer = &PointerInfo{Optional: t.Optional}
	case KindStruct:
		si := &StructInfo{IsUnion: t.IsUnion}
		for _, m := range t.Members {
			si.MemberNames = append(si.MemberNames, m.ID.String())
			si.MemberOffset = append(si.MemberOffset, int32(m.Offset))
		}
		info.Struct = si
	case KindEnum:
		ei := &EnumInfo{Sequential: t.EnumSequential}
		for _, m := range t.EnumMembers {
			ei.MemberNames = append(ei.MemberNames, m.ID.String())
			ei.MemberValues = append(ei.MemberValues, m.Value)
		}
		info.Enum = ei
	}
	s.internalInfo[t] = info
	return info
}

// InternalInfo returns the cached reflection mirror for t, building it
// if t is already finished and it has not been built yet (e.g. for
// primitives and slices, whose mirror does not depend on a size-finish
// pass).
func (s *System) InternalInfo(t *Datatype) *InternalTypeInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if info, ok := s.internalInfo[t]; ok {
		return info
	}
	if !t.IsSized() {
		return nil
	}
	return s.buildInternalInfoLocked(t)
}
