package types

import (
	"fmt"
	"strings"
)

// TypeKind enumerates the small type lattice scripts work with.
type TypeKind int

const (
	TypeAny TypeKind = iota
	TypeNumber
	TypeString
	TypeBool
	TypeFunction
)

var typeKindNames = [...]string{
	TypeAny:      "Any",
	TypeNumber:   "Number",
	TypeString:   "String",
	TypeBool:     "Bool",
	TypeFunction: "Function",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) && int(k) >= 0 {
		return typeKindNames[k]
	}
	return fmt.Sprintf("TypeKind(%d)", int(k))
}

// Type is a node in the lattice. Scalar types carry only a kind;
// function types carry parameter and return types.
type Type struct {
	Kind    TypeKind
	Params  []Type
	Returns *Type
}

var (
	AnyType    = Type{Kind: TypeAny}
	NumberType = Type{Kind: TypeNumber}
	StringType = Type{Kind: TypeString}
	BoolType   = Type{Kind: TypeBool}
)

// FunctionType builds the type of a callable with the given signature.
func FunctionType(params []Type, returns Type) Type {
	return Type{Kind: TypeFunction, Params: params, Returns: &returns}
}

func (t Type) String() string {
	if t.Kind != TypeFunction {
		return t.Kind.String()
	}
	parts := make([]string, len(t.Params))
	for i, p := range t.Params {
		parts[i] = p.String()
	}
	ret := "Any"
	if t.Returns != nil {
		ret = t.Returns.String()
	}
	return fmt.Sprintf("Fn(%s) -> %s", strings.Join(parts, ", "), ret)
}

// Equal compares structurally.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind != TypeFunction {
		return true
	}
	if len(t.Params) != len(other.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(other.Params[i]) {
			return false
		}
	}
	switch {
	case t.Returns == nil && other.Returns == nil:
		return true
	case t.Returns == nil || other.Returns == nil:
		return false
	default:
		return t.Returns.Equal(*other.Returns)
	}
}

// AssignableFrom reports whether a value of type other may flow into a
// slot of type t. Any accepts everything and flows everywhere; it is
// the lattice top used for not-yet-inferred slots.
func (t Type) AssignableFrom(other Type) bool {
	if t.Kind == TypeAny || other.Kind == TypeAny {
		return true
	}
	return t.Equal(other)
}

// ParseTypeName resolves the surface syntax of `as` annotations.
func ParseTypeName(name string) (Type, bool) {
	switch strings.ToLower(name) {
	case "number":
		return NumberType, true
	case "string":
		return StringType, true
	case "bool", "boolean":
		return BoolType, true
	default:
		return AnyType, false
	}
}
