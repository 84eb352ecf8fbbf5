// Package tensor implements the Value/Type model: bit-packed scalars and
// arrays, tuples, named tuples and vectors, with modular arithmetic over
// u64. Values are immutable once built; composite values share children
// by reference, so broadcasts and tuple-get are cheap.
package tensor

import (
	"fmt"
	"strings"

	"github.com/luxfi/mpcgraph/mpcerr"
)

// ScalarType is (bit_width, signed). The modulus is 2^bit_width, except
// for the 64-bit case where it is the native uint64 wraparound.
type ScalarType struct {
	BitWidth int
	Signed   bool
}

// The scalar types the evaluator understands. BitWidth is always one of
// 1, 8, 16, 32, 64; Bit has no signed variant.
var (
	Bit = ScalarType{BitWidth: 1}
	U8  = ScalarType{BitWidth: 8}
	I8  = ScalarType{BitWidth: 8, Signed: true}
	U16 = ScalarType{BitWidth: 16}
	I16 = ScalarType{BitWidth: 16, Signed: true}
	U32 = ScalarType{BitWidth: 32}
	I32 = ScalarType{BitWidth: 32, Signed: true}
	U64 = ScalarType{BitWidth: 64}
	I64 = ScalarType{BitWidth: 64, Signed: true}
)

func (st ScalarType) String() string {
	if st.BitWidth == 1 {
		return "bit"
	}
	if st.Signed {
		return fmt.Sprintf("int%d", st.BitWidth)
	}
	return fmt.Sprintf("uint%d", st.BitWidth)
}

// IsBit reports whether st is the 1-bit scalar type.
func (st ScalarType) IsBit() bool { return st.BitWidth == 1 }

// ByteWidth is the per-element byte width for non-bit scalar types.
func (st ScalarType) ByteWidth() int { return (st.BitWidth + 7) / 8 }

// Modulus returns 2^BitWidth, or 0 to mean 2^64 (native uint64 wrap).
func (st ScalarType) Modulus() uint64 {
	if st.BitWidth >= 64 {
		return 0
	}
	return uint64(1) << uint(st.BitWidth)
}

// Mask reduces v modulo st's modulus.
func (st ScalarType) Mask(v uint64) uint64 {
	if st.BitWidth >= 64 {
		return v
	}
	return v & (st.Modulus() - 1)
}

// SignExtend sign-extends a masked value of scalar type st to a full
// uint64, so that negative values are represented the same way a
// native int64 would be. Unsigned types and the 64-bit width are
// returned unchanged.
func (st ScalarType) SignExtend(v uint64) uint64 {
	if !st.Signed || st.BitWidth >= 64 {
		return v
	}
	signBit := uint64(1) << uint(st.BitWidth-1)
	if v&signBit == 0 {
		return v
	}
	return v | ^(st.Modulus() - 1)
}

// Kind is the algebraic variant of a Type.
type Kind int

const (
	KindScalar Kind = iota
	KindArray
	KindTuple
	KindNamedTuple
	KindVector
)

// Type is the closed algebraic type of a Value: a Scalar or Array leaf,
// or one of three composite shapes (Tuple, NamedTuple, Vector).
type Type struct {
	Kind Kind

	// Valid for KindScalar and KindArray.
	Scalar ScalarType
	// Valid for KindArray: row-major dimensions.
	Shape []uint64

	// Valid for KindTuple and KindNamedTuple.
	Elems []Type
	// Valid for KindNamedTuple only, parallel to Elems.
	Names []string

	// Valid for KindVector.
	VecLen  uint64
	VecElem *Type
}

// ScalarT builds a scalar type.
func ScalarT(st ScalarType) Type { return Type{Kind: KindScalar, Scalar: st} }

// ArrayT builds a row-major array type.
func ArrayT(shape []uint64, st ScalarType) Type {
	return Type{Kind: KindArray, Scalar: st, Shape: append([]uint64(nil), shape...)}
}

// TupleT builds an unnamed tuple type.
func TupleT(elems ...Type) Type { return Type{Kind: KindTuple, Elems: elems} }

// NamedTupleT builds a named tuple type. names and elems must be parallel.
func NamedTupleT(names []string, elems []Type) Type {
	return Type{Kind: KindNamedTuple, Names: append([]string(nil), names...), Elems: elems}
}

// VectorT builds a homogeneous vector type of length n.
func VectorT(n uint64, elem Type) Type {
	e := elem
	return Type{Kind: KindVector, VecLen: n, VecElem: &e}
}

func (t Type) IsArray() bool  { return t.Kind == KindArray }
func (t Type) IsScalar() bool { return t.Kind == KindScalar }

// NumElements is the product of an array type's shape (1 for a scalar,
// 0 for anything else).
func (t Type) NumElements() uint64 {
	switch t.Kind {
	case KindScalar:
		return 1
	case KindArray:
		n := uint64(1)
		for _, d := range t.Shape {
			n *= d
		}
		return n
	default:
		return 0
	}
}

// ByteSize is the length of the flat byte buffer backing a Scalar or
// Array leaf value of this type: ceil(numElements*bitwidth/8).
func (t Type) ByteSize() int {
	bits := t.NumElements() * uint64(t.Scalar.BitWidth)
	return int((bits + 7) / 8)
}

// FieldIndex resolves a NamedTuple field name to its position.
func (t Type) FieldIndex(name string) (int, bool) {
	if t.Kind != KindNamedTuple {
		return 0, false
	}
	for i, n := range t.Names {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

func (t Type) String() string {
	switch t.Kind {
	case KindScalar:
		return t.Scalar.String()
	case KindArray:
		dims := make([]string, len(t.Shape))
		for i, d := range t.Shape {
			dims[i] = fmt.Sprintf("%d", d)
		}
		return fmt.Sprintf("[%s]%s", strings.Join(dims, "x"), t.Scalar)
	case KindTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = e.String()
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindNamedTuple:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = fmt.Sprintf("%s: %s", t.Names[i], e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindVector:
		return fmt.Sprintf("Vector(%d, %s)", t.VecLen, t.VecElem)
	default:
		return "?"
	}
}

// TypesEqual reports whether two types are structurally identical.
func TypesEqual(a, b Type) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindScalar:
		return a.Scalar == b.Scalar
	case KindArray:
		if a.Scalar != b.Scalar || len(a.Shape) != len(b.Shape) {
			return false
		}
		for i := range a.Shape {
			if a.Shape[i] != b.Shape[i] {
				return false
			}
		}
		return true
	case KindTuple:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if !TypesEqual(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KindNamedTuple:
		if len(a.Elems) != len(b.Elems) {
			return false
		}
		for i := range a.Elems {
			if a.Names[i] != b.Names[i] || !TypesEqual(a.Elems[i], b.Elems[i]) {
				return false
			}
		}
		return true
	case KindVector:
		return a.VecLen == b.VecLen && TypesEqual(*a.VecElem, *b.VecElem)
	default:
		return false
	}
}

// leafScalar returns the scalar type and element count to use for
// ToFlattenedArrayU64 / FromFlattenedArray against t, or an error if t
// is not a leaf (Scalar/Array) type.
func leafScalar(t Type) (ScalarType, uint64, error) {
	switch t.Kind {
	case KindScalar:
		return t.Scalar, 1, nil
	case KindArray:
		return t.Scalar, t.NumElements(), nil
	default:
		return ScalarType{}, 0, mpcerr.Type("type %s is not a scalar or array leaf", t)
	}
}
