package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindle-lang/spindle/core/types"
)

func TestRegisterAndLookup(t *testing.T) {
	lib := New()
	lib.RegisterFunc("greet", []types.Type{types.StringType}, types.StringType,
		func(args []types.Value) (types.Value, error) {
			return types.StringValue("hi " + args[0].AsString()), nil
		})

	fn, ok := lib.Lookup("greet")
	require.True(t, ok)
	out, err := fn.Call([]types.Value{types.StringValue("Mae")})
	require.NoError(t, err)
	assert.Equal(t, "hi Mae", out.AsString())

	_, ok = lib.Lookup("missing")
	assert.False(t, ok)
}

func TestExtendLaterRegistrationWins(t *testing.T) {
	base := New()
	base.RegisterFunc("f", nil, types.NumberType, func([]types.Value) (types.Value, error) {
		return types.NumberValue(1), nil
	})
	override := New()
	override.RegisterFunc("f", nil, types.NumberType, func([]types.Value) (types.Value, error) {
		return types.NumberValue(2), nil
	})

	base.Extend(override)
	fn, _ := base.Lookup("f")
	out, err := fn.Call(nil)
	require.NoError(t, err)
	n, _ := out.AsNumber()
	assert.Equal(t, float32(2), n)
}

func TestDeclarationsAreSortedAndTyped(t *testing.T) {
	lib := New()
	lib.RegisterFunc("b", []types.Type{types.NumberType}, types.BoolType, nil)
	lib.RegisterFunc("a", nil, types.StringType, nil)

	decls := lib.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "a", decls[0].Name)
	assert.Equal(t, "b", decls[1].Name)
	assert.Equal(t, types.TypeFunction, decls[1].Type.Kind)
	assert.Equal(t, types.BoolType, *decls[1].Type.Returns)
}

func TestStandardLibraryOperators(t *testing.T) {
	lib := Standard()

	call := func(name string, args ...types.Value) types.Value {
		t.Helper()
		fn, ok := lib.Lookup(name)
		require.True(t, ok, name)
		out, err := fn.Call(args)
		require.NoError(t, err, name)
		return out
	}

	n, _ := call("Number.Add", types.NumberValue(2), types.NumberValue(3)).AsNumber()
	assert.Equal(t, float32(5), n)

	n, _ = call("Number.Modulo", types.NumberValue(7), types.NumberValue(3)).AsNumber()
	assert.Equal(t, float32(1), n)

	s := call("String.Concat", types.StringValue("foo"), types.StringValue("bar")).AsString()
	assert.Equal(t, "foobar", s)

	b, _ := call("Bool.And", types.BoolValue(true), types.BoolValue(false)).AsBool()
	assert.False(t, b)

	b, _ = call("Number.LessThan", types.NumberValue(1), types.NumberValue(2)).AsBool()
	assert.True(t, b)

	b, _ = call("Bool.Not", types.BoolValue(false)).AsBool()
	assert.True(t, b)

	s = call("string", types.NumberValue(4)).AsString()
	assert.Equal(t, "4", s)
}

func TestStandardLibraryConversionFailure(t *testing.T) {
	lib := Standard()
	fn, _ := lib.Lookup("number")
	_, err := fn.Call([]types.Value{types.StringValue("nope")})
	assert.Error(t, err)
}
