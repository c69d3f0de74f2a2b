package sema

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/require"

	"github.com/upplang/upp/internal/symtab"
	"github.com/upplang/upp/internal/types"
)

func TestImplicitCastIdentity(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)
	info, err := a.ImplicitCast(i32, i32, nil)
	require.NoError(t, err)
	require.Equal(t, symtab.CastNone, info.Kind)
}

func TestImplicitCastIntegerWidening(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i8 := a.Types.MakePrimitive(types.ClassInt, true, 1)
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)

	_, err := a.ImplicitCast(i8, i32, nil)
	require.NoError(t, err, "widening a signed int to a wider signed int is implicit")

	_, err = a.ImplicitCast(i32, i8, nil)
	require.Error(t, err, "narrowing is never implicit")
}

func TestImplicitCastRejectsSignednessChange(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)
	u32 := a.Types.MakePrimitive(types.ClassInt, false, 4)

	_, err := a.ImplicitCast(i32, u32, nil)
	require.Error(t, err)
}

func TestImplicitCastPointerToOptionalPointer(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)
	p := a.Types.MakePointer(i32, false)
	optP := a.Types.MakePointer(i32, true)

	_, err := a.ImplicitCast(p, optP, nil)
	require.NoError(t, err, "*T -> ?*T collapses to Pointer{optional:true}")
}

func TestImplicitCastArrayToSliceDecay(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)
	arr := a.Types.MakeArray(i32, true, 4)
	sl := a.Types.MakeSlice(i32)

	_, err := a.ImplicitCast(arr, sl, nil)
	require.NoError(t, err)
}

func TestImplicitCastAutoDerefChain(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)
	pp := a.Types.MakePointer(a.Types.MakePointer(i32, false), false)

	info, err := a.ImplicitCast(pp, i32, nil)
	require.NoError(t, err)
	require.Equal(t, 2, info.Derefs)
}

func TestImplicitCastCustomOperator(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)
	f32 := a.Types.MakePrimitive(types.ClassFloat, true, 4)
	strct := a.Types.MakeStructEmpty(a.Idents.Add("Meters"), false, nil)
	require.NoError(t, a.Types.FinishStruct(strct, a.Idents))

	ctx := symtab.NewOperatorContext()
	ctx.Set(&symtab.CustomOperator{
		Key:      symtab.CustomOperatorKey{Kind: symtab.OpCast, LHS: strct, RHS: f32, CastMode: symtab.CastImplicit},
		Function: 42,
	})

	info, err := a.ImplicitCast(strct, f32, ctx)
	require.NoError(t, err)
	require.Equal(t, 42, info.CustomFunc)

	_, err = a.ImplicitCast(strct, i32, ctx)
	require.Error(t, err, "no conversion was registered to i32")
}

func TestExplicitCastRawBypassesValidity(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	i32 := a.Types.MakePrimitive(types.ClassInt, true, 4)
	f32 := a.Types.MakePrimitive(types.ClassFloat, true, 4)

	info, err := a.ExplicitCast(i32, f32, nil, true)
	require.NoError(t, err)
	require.Equal(t, symtab.CastPointerExplicit, info.Kind)
}

func TestExplicitCastFallsBackToExplicitOperator(t *testing.T) {
	a := New(hclog.NewNullLogger(), "test")
	strct := a.Types.MakeStructEmpty(a.Idents.Add("Handle"), false, nil)
	require.NoError(t, a.Types.FinishStruct(strct, a.Idents))
	i64 := a.Types.MakePrimitive(types.ClassInt, true, 8)

	ctx := symtab.NewOperatorContext()
	ctx.Set(&symtab.CustomOperator{
		Key:      symtab.CustomOperatorKey{Kind: symtab.OpCast, LHS: strct, RHS: i64, CastMode: symtab.CastExplicit},
		Function: 7,
	})

	_, err := a.ImplicitCast(strct, i64, ctx)
	require.Error(t, err, "the operator was registered explicit-only")

	info, err := a.ExplicitCast(strct, i64, ctx, false)
	require.NoError(t, err)
	require.Equal(t, 7, info.CustomFunc)
}
