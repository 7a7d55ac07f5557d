// Package types models the value types that cross the native calling
// convention: the declared argument and return types of compiled
// functions, and the canonical array descriptor used for rank-based
// size queries.
package types

import "fmt"

// Kind identifies a value type.
type Kind uint8

const (
	// Invalid is the zero Kind.
	Invalid Kind = iota
	// Void is the absence of a value (procedure returns).
	Void
	// Bool is a one-byte boolean.
	Bool
	// Int32 is a 32-bit signed integer.
	Int32
	// Int64 is a 64-bit signed integer.
	Int64
	// Float64 is a double-precision float.
	Float64
	// Object is a boxed, reference-counted host object handle.
	Object
	// RawPtr is an untyped native pointer word.
	RawPtr
	// Array is a rank-N array descriptor.
	Array
)

// Type is a value type. Elem and Ndim are meaningful for Array only.
type Type struct {
	Kind Kind
	Elem Kind
	Ndim int
}

// Scalar types.
var (
	VoidType    = Type{Kind: Void}
	BoolType    = Type{Kind: Bool}
	Int32Type   = Type{Kind: Int32}
	Int64Type   = Type{Kind: Int64}
	Float64Type = Type{Kind: Float64}
	ObjectType  = Type{Kind: Object}
	RawPtrType  = Type{Kind: RawPtr}
)

// ArrayOf builds a rank-ndim array descriptor type.
func ArrayOf(elem Kind, ndim int) Type {
	return Type{Kind: Array, Elem: elem, Ndim: ndim}
}

// Signature describes a function's declared parameter and result types.
type Signature struct {
	Params []Type
	Result Type
}

// String renders a type in the spelling the IR reader accepts.
func (t Type) String() string {
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "bool"
	case Int32:
		return "i32"
	case Int64:
		return "i64"
	case Float64:
		return "f64"
	case Object:
		return "obj"
	case RawPtr:
		return "ptr"
	case Array:
		return fmt.Sprintf("arr%d.%s", t.Ndim, Type{Kind: t.Elem}.String())
	default:
		return "invalid"
	}
}

// ParseType is the inverse of Type.String.
func ParseType(s string) (Type, bool) {
	switch s {
	case "void":
		return VoidType, true
	case "bool":
		return BoolType, true
	case "i32":
		return Int32Type, true
	case "i64":
		return Int64Type, true
	case "f64":
		return Float64Type, true
	case "obj":
		return ObjectType, true
	case "ptr":
		return RawPtrType, true
	}
	var ndim int
	var elem string
	if n, err := fmt.Sscanf(s, "arr%d.%s", &ndim, &elem); err == nil && n == 2 && ndim >= 0 {
		if et, ok := ParseType(elem); ok && et.Kind != Array && et.Kind != Void {
			return ArrayOf(et.Kind, ndim), true
		}
	}
	return Type{}, false
}

// IsNumeric reports whether the type participates in native arithmetic.
func (t Type) IsNumeric() bool {
	switch t.Kind {
	case Int32, Int64, Float64:
		return true
	default:
		return false
	}
}

// String renders the signature for diagnostics.
func (s Signature) String() string {
	out := "("
	for i, p := range s.Params {
		if i > 0 {
			out += ", "
		}
		out += p.String()
	}
	return out + ") -> " + s.Result.String()
}
