package library

import (
	"math"

	"github.com/spindle-lang/spindle/core/types"
)

// Standard returns the built-in library every dialogue runs against:
// the operator functions the code generator lowers to, plus the value
// conversion helpers scripts may call directly.
func Standard() *Library {
	lib := New()

	number2 := []types.Type{types.NumberType, types.NumberType}
	string2 := []types.Type{types.StringType, types.StringType}
	bool2 := []types.Type{types.BoolType, types.BoolType}

	numOp := func(name string, op func(a, b float32) float32) {
		lib.RegisterFunc(name, number2, types.NumberType, func(args []types.Value) (types.Value, error) {
			a, err := args[0].AsNumber()
			if err != nil {
				return types.Null, err
			}
			b, err := args[1].AsNumber()
			if err != nil {
				return types.Null, err
			}
			return types.NumberValue(op(a, b)), nil
		})
	}
	numCmp := func(name string, cmp func(a, b float32) bool) {
		lib.RegisterFunc(name, number2, types.BoolType, func(args []types.Value) (types.Value, error) {
			a, err := args[0].AsNumber()
			if err != nil {
				return types.Null, err
			}
			b, err := args[1].AsNumber()
			if err != nil {
				return types.Null, err
			}
			return types.BoolValue(cmp(a, b)), nil
		})
	}

	numOp("Number.Add", func(a, b float32) float32 { return a + b })
	numOp("Number.Minus", func(a, b float32) float32 { return a - b })
	numOp("Number.Multiply", func(a, b float32) float32 { return a * b })
	numOp("Number.Divide", func(a, b float32) float32 { return a / b })
	numOp("Number.Modulo", func(a, b float32) float32 {
		return float32(math.Mod(float64(a), float64(b)))
	})
	numCmp("Number.EqualTo", func(a, b float32) bool { return a == b })
	numCmp("Number.NotEqualTo", func(a, b float32) bool { return a != b })
	numCmp("Number.LessThan", func(a, b float32) bool { return a < b })
	numCmp("Number.LessThanOrEqualTo", func(a, b float32) bool { return a <= b })
	numCmp("Number.GreaterThan", func(a, b float32) bool { return a > b })
	numCmp("Number.GreaterThanOrEqualTo", func(a, b float32) bool { return a >= b })

	lib.RegisterFunc("Number.UnaryMinus", []types.Type{types.NumberType}, types.NumberType,
		func(args []types.Value) (types.Value, error) {
			n, err := args[0].AsNumber()
			if err != nil {
				return types.Null, err
			}
			return types.NumberValue(-n), nil
		})

	lib.RegisterFunc("String.Concat", string2, types.StringType,
		func(args []types.Value) (types.Value, error) {
			return types.StringValue(args[0].AsString() + args[1].AsString()), nil
		})
	lib.RegisterFunc("String.EqualTo", string2, types.BoolType,
		func(args []types.Value) (types.Value, error) {
			return types.BoolValue(args[0].AsString() == args[1].AsString()), nil
		})
	lib.RegisterFunc("String.NotEqualTo", string2, types.BoolType,
		func(args []types.Value) (types.Value, error) {
			return types.BoolValue(args[0].AsString() != args[1].AsString()), nil
		})

	boolOp := func(name string, op func(a, b bool) bool) {
		lib.RegisterFunc(name, bool2, types.BoolType, func(args []types.Value) (types.Value, error) {
			a, err := args[0].AsBool()
			if err != nil {
				return types.Null, err
			}
			b, err := args[1].AsBool()
			if err != nil {
				return types.Null, err
			}
			return types.BoolValue(op(a, b)), nil
		})
	}
	boolOp("Bool.And", func(a, b bool) bool { return a && b })
	boolOp("Bool.Or", func(a, b bool) bool { return a || b })
	boolOp("Bool.Xor", func(a, b bool) bool { return a != b })
	boolOp("Bool.EqualTo", func(a, b bool) bool { return a == b })
	boolOp("Bool.NotEqualTo", func(a, b bool) bool { return a != b })

	lib.RegisterFunc("Bool.Not", []types.Type{types.BoolType}, types.BoolType,
		func(args []types.Value) (types.Value, error) {
			b, err := args[0].AsBool()
			if err != nil {
				return types.Null, err
			}
			return types.BoolValue(!b), nil
		})

	// Conversion helpers callable from scripts.
	lib.RegisterFunc("string", []types.Type{types.AnyType}, types.StringType,
		func(args []types.Value) (types.Value, error) {
			return types.StringValue(args[0].AsString()), nil
		})
	lib.RegisterFunc("number", []types.Type{types.AnyType}, types.NumberType,
		func(args []types.Value) (types.Value, error) {
			n, err := args[0].AsNumber()
			if err != nil {
				return types.Null, err
			}
			return types.NumberValue(n), nil
		})
	lib.RegisterFunc("bool", []types.Type{types.AnyType}, types.BoolType,
		func(args []types.Value) (types.Value, error) {
			b, err := args[0].AsBool()
			if err != nil {
				return types.Null, err
			}
			return types.BoolValue(b), nil
		})

	return lib
}
