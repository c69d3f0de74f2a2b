package constpool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/upplang/upp/internal/ident"
	"github.com/upplang/upp/internal/types"
)

func TestAddConstantDeduplicates(t *testing.T) {
	ts := types.New()
	idents := ident.New()
	i32 := ts.MakePrimitive(types.ClassInt, true, 4)
	pool := New(idents)

	c1, err := pool.AddConstant(i32, []byte{7, 0, 0, 0})
	require.NoError(t, err)
	c2, err := pool.AddConstant(i32, []byte{7, 0, 0, 0})
	require.NoError(t, err)
	require.Same(t, c1, c2)

	c3, err := pool.AddConstant(i32, []byte{9, 0, 0, 0})
	require.NoError(t, err)
	require.NotSame(t, c1, c3)
}

func TestAddConstantRejectsNonNullPointer(t *testing.T) {
	ts := types.New()
	idents := ident.New()
	i32 := ts.MakePrimitive(types.ClassInt, true, 4)
	ptr := ts.MakePointer(i32, false)
	pool := New(idents)

	_, err := pool.AddConstant(ptr, []byte{1, 0, 0, 0, 0, 0, 0, 0})
	require.Error(t, err)
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	require.Equal(t, FailNonNullPointer, cErr.Kind)
}

func TestAddConstantRejectsNonEmptySlice(t *testing.T) {
	ts := types.New()
	idents := ident.New()
	i32 := ts.MakePrimitive(types.ClassInt, true, 4)
	sl := ts.MakeSlice(i32)
	pool := New(idents)

	raw := make([]byte, 16)
	raw[8] = 1 // size field non-zero
	_, err := pool.AddConstant(sl, raw)
	require.Error(t, err)
}

func TestAddConstantRejectsUnknownCountArray(t *testing.T) {
	ts := types.New()
	idents := ident.New()
	i32 := ts.MakePrimitive(types.ClassInt, true, 4)
	arr := ts.MakeArray(i32, false, 0)
	pool := New(idents)

	_, err := pool.AddConstant(arr, []byte{0})
	require.Error(t, err)
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	require.Equal(t, FailUnknownCountArray, cErr.Kind)
}

func TestAddConstantZeroesPadding(t *testing.T) {
	ts := types.New()
	idents := ident.New()
	pool := New(idents)
	p := ident.New()

	i8 := ts.MakePrimitive(types.ClassInt, true, 1)
	i64 := ts.MakePrimitive(types.ClassInt, true, 8)
	strct := ts.MakeStructEmpty(p.Add("S"), false, nil)
	require.NoError(t, ts.StructAddMember(strct, p.Add("a"), i8, 0))
	require.NoError(t, ts.StructAddMember(strct, p.Add("b"), i64, 0))
	require.NoError(t, ts.FinishStruct(strct, p))
	require.Equal(t, 16, strct.Mem.Size)

	raw := make([]byte, strct.Mem.Size)
	raw[0] = 5
	for i := 1; i < 8; i++ {
		raw[i] = 0xAA // padding garbage that must be canonicalised away
	}
	raw[8] = 42

	c1, err := pool.AddConstant(strct, raw)
	require.NoError(t, err)

	raw2 := make([]byte, strct.Mem.Size)
	raw2[0] = 5
	raw2[8] = 42
	c2, err := pool.AddConstant(strct, raw2)
	require.NoError(t, err)
	require.Same(t, c1, c2, "padding garbage must not defeat dedup")
}

func TestDeepCopyPreservesIdentityWithinOneCopy(t *testing.T) {
	ts := types.New()
	idents := ident.New()
	i32 := ts.MakePrimitive(types.ClassInt, true, 4)
	src := New(idents)
	c, err := src.AddConstant(i32, []byte{1, 0, 0, 0})
	require.NoError(t, err)

	dst := New(idents)
	d1, err := dst.CopyValueToArena(c, src)
	require.NoError(t, err)
	d2, err := dst.CopyValueToArena(c, src)
	require.NoError(t, err)
	require.Same(t, d1, d2)
	require.Equal(t, 1, dst.Stats().DeepCopyCount)
}
