package shapes

import "testing"

func TestIndexRoundTrip(t *testing.T) {
	shape := []uint64{2, 3, 4}
	for n := uint64(0); n < NumElements(shape); n++ {
		coord := NumberToIndex(n, shape)
		back := IndexToNumber(coord, shape)
		if back != n {
			t.Errorf("round trip failed at %d: got %d via %v", n, back, coord)
		}
	}
}

func TestBroadcastShape(t *testing.T) {
	got, err := BroadcastShape([]uint64{3, 1}, []uint64{4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v want %v", got, want)
		}
	}
}

func TestBroadcastShapeMismatch(t *testing.T) {
	if _, err := BroadcastShape([]uint64{3}, []uint64{4}); err == nil {
		t.Error("expected broadcast mismatch error")
	}
}

func TestBroadcastToShape(t *testing.T) {
	src := []uint64{1, 2, 3}
	out, err := BroadcastToShape(src, []uint64{1, 3}, []uint64{2, 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []uint64{1, 2, 3, 1, 2, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("index %d: got %d want %d", i, out[i], want[i])
		}
	}
}

func TestResolveSliceBasic(t *testing.T) {
	shape := []uint64{10}
	start, end := int64(2), int64(8)
	step := int64(2)
	outShape, starts, steps, err := ResolveSlice(shape, []SliceElement{{Start: &start, End: &end, Step: &step}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outShape[0] != 3 {
		t.Fatalf("expected 3 elements, got %d", outShape[0])
	}
	coords := []uint64{}
	for i := uint64(0); i < outShape[0]; i++ {
		in := SliceIndex([]uint64{i}, starts, steps)
		coords = append(coords, in[0])
	}
	want := []uint64{2, 4, 6}
	for i := range want {
		if coords[i] != want[i] {
			t.Errorf("got %v want %v", coords, want)
		}
	}
}

func TestResolveSliceNegativeIndices(t *testing.T) {
	shape := []uint64{5}
	start := int64(-3)
	outShape, starts, steps, err := ResolveSlice(shape, []SliceElement{{Start: &start}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outShape[0] != 3 {
		t.Fatalf("expected 3 elements (indices 2,3,4), got %d", outShape[0])
	}
	in := SliceIndex([]uint64{0}, starts, steps)
	if in[0] != 2 {
		t.Errorf("expected start index 2, got %d", in[0])
	}
}
