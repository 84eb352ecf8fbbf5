package tensor

import "testing"

func TestFromFlattenedArrayBit(t *testing.T) {
	v := FromFlattenedArray([]uint64{0, 1, 1, 0, 1, 1, 0, 0, 1}, Bit)
	buf, err := v.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if len(buf) != 2 {
		t.Fatalf("expected 2 bytes for 9 bits, got %d", len(buf))
	}
	out, err := v.ToFlattenedArrayU64(ArrayT([]uint64{9}, Bit))
	if err != nil {
		t.Fatalf("ToFlattenedArrayU64 failed: %v", err)
	}
	want := []uint64{0, 1, 1, 0, 1, 1, 0, 0, 1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("bit %d: got %d want %d", i, out[i], want[i])
		}
	}
	// trailing pad bits of the last byte must be zero.
	if buf[1]&0xFE != 0 {
		t.Errorf("trailing pad bits not zero: %08b", buf[1])
	}
}

func TestSignExtendRoundTrip(t *testing.T) {
	v := FromFlattenedArray([]uint64{0xFF, 0x7F}, I8) // -1, 127
	out, err := v.ToFlattenedArrayU64(ArrayT([]uint64{2}, I8))
	if err != nil {
		t.Fatalf("unpack failed: %v", err)
	}
	if int8(out[0]) != -1 {
		t.Errorf("expected -1, got %d", int8(out[0]))
	}
	if int8(out[1]) != 127 {
		t.Errorf("expected 127, got %d", int8(out[1]))
	}
}

func TestZeroOfComposite(t *testing.T) {
	ty := TupleT(ScalarT(U32), ArrayT([]uint64{2, 2}, Bit))
	z := ZeroOf(ty)
	children, err := z.ToVector()
	if err != nil {
		t.Fatalf("ToVector failed: %v", err)
	}
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	out, err := children[0].ToFlattenedArrayU64(ScalarT(U32))
	if err != nil {
		t.Fatalf("unpack failed: %v", err)
	}
	if out[0] != 0 {
		t.Errorf("expected zero scalar, got %d", out[0])
	}
}

func TestEqual(t *testing.T) {
	a := FromFlattenedArray([]uint64{1, 2, 3}, U32)
	b := FromFlattenedArray([]uint64{1, 2, 3}, U32)
	c := FromFlattenedArray([]uint64{1, 2, 4}, U32)
	if !Equal(a, b) {
		t.Error("expected a == b")
	}
	if Equal(a, c) {
		t.Error("expected a != c")
	}
}

func TestModulusWrapping(t *testing.T) {
	v := FromFlattenedArray([]uint64{300}, U8)
	out, _ := v.ToFlattenedArrayU64(ScalarT(U8))
	if out[0] != 300%256 {
		t.Errorf("expected wraparound to %d, got %d", 300%256, out[0])
	}
}
