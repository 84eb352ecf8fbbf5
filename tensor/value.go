package tensor

import (
	"bytes"
	"encoding/binary"

	"github.com/luxfi/mpcgraph/mpcerr"
)

// Value is an immutable tagged tree: either a flat byte buffer (a
// Scalar or Array leaf, bit-packed for Bit) or a vector of child
// Values (Tuple, NamedTuple or Vector). Sharing is by reference;
// equality is by deep structural comparison of the flattened form.
type Value struct {
	leaf     bool
	buf      []byte
	children []*Value
}

// FromBytes wraps an existing byte buffer as a leaf value. The buffer
// is taken by reference and must not be mutated afterwards.
func FromBytes(buf []byte) *Value {
	return &Value{leaf: true, buf: buf}
}

// FromVector builds a composite value from its children.
func FromVector(children []*Value) *Value {
	return &Value{children: children}
}

// FromScalar packs a single scalar element.
func FromScalar(v uint64, st ScalarType) *Value {
	return FromFlattenedArray([]uint64{v}, st)
}

// FromFlattenedArray packs a row-major slice of elements under scalar
// type st: LSB-first bit-packing for Bit, little-endian word packing
// otherwise. Trailing bits of the last byte of a Bit buffer are left
// zero.
func FromFlattenedArray(elements []uint64, st ScalarType) *Value {
	n := len(elements)
	if st.IsBit() {
		buf := make([]byte, (n+7)/8)
		for i, e := range elements {
			if e&1 != 0 {
				buf[i/8] |= 1 << uint(i%8)
			}
		}
		return &Value{leaf: true, buf: buf}
	}
	width := st.ByteWidth()
	buf := make([]byte, n*width)
	for i, e := range elements {
		putLE(buf[i*width:(i+1)*width], st.Mask(e))
	}
	return &Value{leaf: true, buf: buf}
}

// ZeroOf builds the zero value of any Type, recursing into composites.
func ZeroOf(t Type) *Value {
	switch t.Kind {
	case KindScalar:
		return FromFlattenedArray([]uint64{0}, t.Scalar)
	case KindArray:
		return FromFlattenedArray(make([]uint64, t.NumElements()), t.Scalar)
	case KindTuple, KindNamedTuple:
		children := make([]*Value, len(t.Elems))
		for i, e := range t.Elems {
			children[i] = ZeroOf(e)
		}
		return FromVector(children)
	case KindVector:
		children := make([]*Value, t.VecLen)
		for i := range children {
			children[i] = ZeroOf(*t.VecElem)
		}
		return FromVector(children)
	default:
		return nil
	}
}

// IsLeaf reports whether v is a byte-buffer leaf (Scalar/Array) rather
// than a composite (Tuple/NamedTuple/Vector).
func (v *Value) IsLeaf() bool { return v.leaf }

// AccessBytes invokes f with the value's raw backing buffer. It fails
// with a TypeError if v is not a leaf.
func (v *Value) AccessBytes(f func([]byte) error) error {
	if !v.leaf {
		return mpcerr.Type("AccessBytes called on a composite value")
	}
	return f(v.buf)
}

// Bytes returns the raw backing buffer of a leaf value directly,
// without going through AccessBytes, for callers (the graph evaluator)
// that need it as a slice rather than inside a closure.
func (v *Value) Bytes() ([]byte, error) {
	if !v.leaf {
		return nil, mpcerr.Type("Bytes called on a composite value")
	}
	return v.buf, nil
}

// ToVector returns a composite value's children.
func (v *Value) ToVector() ([]*Value, error) {
	if v.leaf {
		return nil, mpcerr.Type("ToVector called on a leaf value")
	}
	return v.children, nil
}

// At returns the i-th child of a composite value.
func (v *Value) At(i int) (*Value, error) {
	children, err := v.ToVector()
	if err != nil {
		return nil, err
	}
	if i < 0 || i >= len(children) {
		return nil, mpcerr.Value("index %d out of range [0,%d)", i, len(children))
	}
	return children[i], nil
}

// Field returns a NamedTuple's child by name, given its type.
func (v *Value) Field(t Type, name string) (*Value, error) {
	idx, ok := t.FieldIndex(name)
	if !ok {
		return nil, mpcerr.Value("no such field %q", name)
	}
	return v.At(idx)
}

// ToFlattenedArrayU64 unpacks a Scalar or Array leaf into a row-major
// []uint64, sign-extending narrow signed elements.
func (v *Value) ToFlattenedArrayU64(t Type) ([]uint64, error) {
	if !v.leaf {
		return nil, mpcerr.Type("ToFlattenedArrayU64 called on a composite value")
	}
	st, n, err := leafScalar(t)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	if st.IsBit() {
		for i := range out {
			out[i] = uint64(getBit(v.buf, i))
		}
		return out, nil
	}
	width := st.ByteWidth()
	need := int(n) * width
	if len(v.buf) < need {
		return nil, mpcerr.Value("buffer of length %d too small for %d elements of width %d", len(v.buf), n, width)
	}
	for i := range out {
		raw := getLE(v.buf[i*width : (i+1)*width])
		out[i] = st.SignExtend(raw)
	}
	return out, nil
}

// Equal reports deep structural equality of the flattened form.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.leaf != b.leaf {
		return false
	}
	if a.leaf {
		return bytes.Equal(a.buf, b.buf)
	}
	if len(a.children) != len(b.children) {
		return false
	}
	for i := range a.children {
		if !Equal(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}

func getBit(buf []byte, i int) int {
	byteIdx := i / 8
	if byteIdx >= len(buf) {
		return 0
	}
	return int((buf[byteIdx] >> uint(i%8)) & 1)
}

func putLE(dst []byte, v uint64) {
	switch len(dst) {
	case 1:
		dst[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(dst, uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	default:
		for i := range dst {
			dst[i] = byte(v >> uint(8*i))
		}
	}
}

func getLE(src []byte) uint64 {
	switch len(src) {
	case 1:
		return uint64(src[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(src))
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	case 8:
		return binary.LittleEndian.Uint64(src)
	default:
		var v uint64
		for i, b := range src {
			v |= uint64(b) << uint(8*i)
		}
		return v
	}
}
