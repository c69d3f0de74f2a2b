package types

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upplang/upp/internal/ident"
)

func TestDedupNonStructTypes(t *testing.T) {
	s := New()
	i32 := s.MakePrimitive(ClassInt, true, 4)

	p1 := s.MakePointer(i32, false)
	p2 := s.MakePointer(i32, false)
	require.Same(t, p1, p2, "pointer types must be deduplicated")

	o1 := s.MakeOptional(s.MakePrimitive(ClassInt, true, 4))
	_ = o1 // optional of a distinct primitive instance is fine; dedup keys by pointer

	a1 := s.MakeArray(i32, true, 4)
	a2 := s.MakeArray(i32, true, 4)
	require.Same(t, a1, a2)

	sl1 := s.MakeSlice(i32)
	sl2 := s.MakeSlice(i32)
	require.Same(t, sl1, sl2)

	c1 := s.MakeConstant(i32)
	c2 := s.MakeConstant(i32)
	require.Same(t, c1, c2)
}

func TestMakeConstantIdempotent(t *testing.T) {
	s := New()
	i32 := s.MakePrimitive(ClassInt, true, 4)
	c1 := s.MakeConstant(i32)
	c2 := s.MakeConstant(c1)
	require.Same(t, c1, c2, "make_constant(make_constant(T)) == make_constant(T)")
}

func TestPointerLevelsSignificant(t *testing.T) {
	s := New()
	i32 := s.MakePrimitive(ClassInt, true, 4)
	p1 := s.MakePointer(i32, false)
	pp1 := s.MakePointer(p1, false)
	pp2 := s.MakePointer(s.MakePointer(i32, false), false)
	require.Same(t, pp1, pp2)
	require.NotSame(t, p1, pp1, "pointer levels must remain significant, never collapsed")
}

func TestOptionalPointerCollapsesIntoPointer(t *testing.T) {
	s := New()
	i32 := s.MakePrimitive(ClassInt, true, 4)
	ptr := s.MakePointer(i32, false)
	opt := s.MakeOptional(ptr)
	require.Equal(t, KindPointer, opt.Kind)
	require.True(t, opt.Optional)
}

func TestArrayOfConstantIsConstantOfArray(t *testing.T) {
	s := New()
	i32 := s.MakePrimitive(ClassInt, true, 4)
	constInt := s.MakeConstant(i32)
	arr := s.MakeArray(constInt, true, 3)
	require.Equal(t, KindConstant, arr.Kind)
	require.Equal(t, KindArray, arr.ConstantElement.Kind)
}

func TestStructsAreNominallyUnique(t *testing.T) {
	s := New()
	pool := ident.New()
	name := pool.Add("Point")
	a := s.MakeStructEmpty(name, false, nil)
	b := s.MakeStructEmpty(name, false, nil)
	require.NotSame(t, a, b, "struct declarations always allocate a fresh type")
}

func TestFinishStructBasicLayout(t *testing.T) {
	s := New()
	pool := ident.New()
	i32 := s.MakePrimitive(ClassInt, true, 4)
	i64 := s.MakePrimitive(ClassInt, true, 8)

	strct := s.MakeStructEmpty(pool.Add("Pair"), false, nil)
	require.NoError(t, s.StructAddMember(strct, pool.Add("a"), i32, 0))
	require.NoError(t, s.StructAddMember(strct, pool.Add("b"), i64, 0))
	require.NoError(t, s.FinishStruct(strct, pool))

	require.True(t, strct.IsSized())
	require.Equal(t, 0, strct.Mem.Size%strct.Mem.Alignment, "size must be a multiple of alignment")
	require.Equal(t, 8, strct.Mem.Alignment)
	require.Equal(t, 16, strct.Mem.Size) // a@0 (4 bytes) pad to 8, b@8 (8 bytes) -> 16
	require.True(t, strct.Mem.ContainsPadding)
}

func TestEmptyStructSizeZeroAlignOne(t *testing.T) {
	s := New()
	pool := ident.New()
	strct := s.MakeStructEmpty(pool.Add("Empty"), false, nil)
	require.NoError(t, s.FinishStruct(strct, pool))
	require.Equal(t, 0, strct.Mem.Size)
	require.Equal(t, 1, strct.Mem.Alignment)
}

func TestUnknownCountArrayPlaceholder(t *testing.T) {
	s := New()
	i32 := s.MakePrimitive(ClassInt, true, 4)
	arr := s.MakeArray(i32, false, 0)
	require.Equal(t, 1, arr.Mem.Size)
	require.Equal(t, 1, arr.Mem.Alignment)
}

func TestSubtypeSharesLayoutAndTagPlacement(t *testing.T) {
	s := New()
	pool := ident.New()
	i32 := s.MakePrimitive(ClassInt, true, 4)

	root := s.MakeStructEmpty(pool.Add("Shape"), true, nil)
	sub1 := s.MakeStructEmpty(pool.Add("Circle"), false, root)
	sub2 := s.MakeStructEmpty(pool.Add("Square"), false, root)
	require.NoError(t, s.StructAddMember(sub1, pool.Add("radius"), i32, 0))
	require.NoError(t, s.StructAddMember(sub2, pool.Add("side"), i32, 0))

	require.NoError(t, s.FinishStruct(root, pool))

	require.NotNil(t, root.TagMember)
	require.True(t, root.TagMember.Offset+root.TagMember.Type.Mem.Size <= root.Mem.Size)
	require.Equal(t, root.Mem.Size, sub1.Mem.Size)
	require.Equal(t, root.Mem.Size, sub2.Mem.Size)
}

func TestWaitingArrayFinishesWhenStructFinishes(t *testing.T) {
	s := New()
	pool := ident.New()
	i32 := s.MakePrimitive(ClassInt, true, 4)

	strct := s.MakeStructEmpty(pool.Add("Node"), false, nil)
	arr := s.MakeArray(strct, true, 3)
	require.False(t, arr.IsSized())

	require.NoError(t, s.StructAddMember(strct, pool.Add("v"), i32, 0))
	require.NoError(t, s.FinishStruct(strct, pool))

	require.True(t, arr.IsSized(), "array waiting on struct size must finish when struct finishes")
	require.Equal(t, strct.Mem.Size*3, arr.Mem.Size)
}

func TestEnumSequentialFlag(t *testing.T) {
	s := New()
	pool := ident.New()
	e := s.MakeEnumEmpty(pool.Add("Color"))
	e.EnumMembers = []EnumMember{
		{ID: pool.Add("Red"), Value: 0},
		{ID: pool.Add("Green"), Value: 1},
		{ID: pool.Add("Blue"), Value: 2},
	}
	require.NoError(t, s.FinishEnum(e))
	require.True(t, e.EnumSequential)

	e2 := s.MakeEnumEmpty(pool.Add("Sparse"))
	e2.EnumMembers = []EnumMember{
		{ID: pool.Add("A"), Value: 0},
		{ID: pool.Add("B"), Value: 5},
	}
	require.NoError(t, s.FinishEnum(e2))
	require.False(t, e2.EnumSequential)
}

func TestInternalInfoMirrorBuiltAfterFinish(t *testing.T) {
	s := New()
	pool := ident.New()
	i32 := s.MakePrimitive(ClassInt, true, 4)
	strct := s.MakeStructEmpty(pool.Add("P"), false, nil)
	require.NoError(t, s.StructAddMember(strct, pool.Add("x"), i32, 0))
	require.NoError(t, s.FinishStruct(strct, pool))

	info := s.InternalInfo(strct)
	require.NotNil(t, info)
	require.Equal(t, KindStruct, info.Kind)
	require.Equal(t, []string{"x"}, info.Struct.MemberNames)
}
