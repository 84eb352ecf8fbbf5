package mpcnet

import (
	"testing"

	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/tensor"
)

func keyValue(seed byte) *tensor.Value {
	buf := make([]uint64, 16)
	for i := range buf {
		buf[i] = uint64(seed) + uint64(i)*5
	}
	return tensor.FromFlattenedArray(buf, tensor.U8)
}

func evalSumU64(t *testing.T, b *graph.Builder, pair Pair, keyVals [3]*tensor.Value) []uint64 {
	t.Helper()
	out, err := b.Add(pair.Node[0], pair.Node[1])
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := b.SetOutput(out); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	if err := b.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	g := b.Graph()
	ev := graph.NewEvaluator([32]byte{9, 9, 9})
	inputs := make([]*tensor.Value, len(g.InputOrder))
	for i := range inputs {
		inputs[i] = keyVals[i]
	}
	v, err := ev.Evaluate(g, inputs)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	n, err := g.Node(out)
	if err != nil {
		t.Fatalf("Node: %v", err)
	}
	got, err := v.ToFlattenedArrayU64(n.Type)
	if err != nil {
		t.Fatalf("ToFlattenedArrayU64: %v", err)
	}
	return got
}

func assertU64(t *testing.T, got, want []uint64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestPermuteInvariant(t *testing.T) {
	b := graph.NewBuilder()
	keys, err := mpcshare.InputKeys(b)
	if err != nil {
		t.Fatalf("InputKeys: %v", err)
	}
	senderShare, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U32), tensor.FromFlattenedArray([]uint64{4, 9, 13}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant sender: %v", err)
	}
	programmerShare, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U32), tensor.FromFlattenedArray([]uint64{6, 11, 17}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant programmer: %v", err)
	}
	permutation, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U64), tensor.FromFlattenedArray([]uint64{2, 0, 1}, tensor.U64))
	if err != nil {
		t.Fatalf("Constant permutation: %v", err)
	}

	roles := NewRoles(0, 1) // sender=0, programmer=1, receiver=2
	in := NewPair(0, senderShare, 1, programmerShare)
	proto := mpcshare.NewProtocol(b, "test-permute")

	out, err := Permute(b, proto, keys, roles, in, permutation)
	if err != nil {
		t.Fatalf("Permute: %v", err)
	}
	if out.Holder[0] != 1 || out.Holder[1] != 2 {
		t.Fatalf("Permute: unexpected holders %v", out.Holder)
	}

	keyVals := [3]*tensor.Value{keyValue(1), keyValue(2), keyValue(3)}
	assertU64(t, evalSumU64(t, b, out, keyVals), []uint64{30, 10, 20})
}

func TestDuplicateInvariant(t *testing.T) {
	b := graph.NewBuilder()
	keys, err := mpcshare.InputKeys(b)
	if err != nil {
		t.Fatalf("InputKeys: %v", err)
	}
	senderShare, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U32), tensor.FromFlattenedArray([]uint64{4, 9, 13}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant sender: %v", err)
	}
	programmerShare, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U32), tensor.FromFlattenedArray([]uint64{6, 11, 17}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant programmer: %v", err)
	}
	indices, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U64), tensor.FromFlattenedArray([]uint64{0, 0, 2}, tensor.U64))
	if err != nil {
		t.Fatalf("Constant indices: %v", err)
	}
	bits, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.Bit), tensor.FromFlattenedArray([]uint64{0, 1, 0}, tensor.Bit))
	if err != nil {
		t.Fatalf("Constant bits: %v", err)
	}

	roles := NewRoles(0, 1)
	in := NewPair(0, senderShare, 1, programmerShare)
	proto := mpcshare.NewProtocol(b, "test-duplicate")

	out, err := Duplicate(b, proto, keys, roles, in, DuplicationMap{Indices: indices, Bits: bits})
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	keyVals := [3]*tensor.Value{keyValue(4), keyValue(5), keyValue(6)}
	assertU64(t, evalSumU64(t, b, out, keyVals), []uint64{10, 10, 30})
}

func TestDuplicateSingleEntry(t *testing.T) {
	b := graph.NewBuilder()
	keys, err := mpcshare.InputKeys(b)
	if err != nil {
		t.Fatalf("InputKeys: %v", err)
	}
	senderShare, err := b.Constant(tensor.ArrayT([]uint64{1}, tensor.U32), tensor.FromFlattenedArray([]uint64{20}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant sender: %v", err)
	}
	programmerShare, err := b.Constant(tensor.ArrayT([]uint64{1}, tensor.U32), tensor.FromFlattenedArray([]uint64{22}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant programmer: %v", err)
	}
	indices, err := b.Constant(tensor.ArrayT([]uint64{1}, tensor.U64), tensor.FromFlattenedArray([]uint64{0}, tensor.U64))
	if err != nil {
		t.Fatalf("Constant indices: %v", err)
	}
	bits, err := b.Constant(tensor.ArrayT([]uint64{1}, tensor.Bit), tensor.FromFlattenedArray([]uint64{0}, tensor.Bit))
	if err != nil {
		t.Fatalf("Constant bits: %v", err)
	}

	roles := NewRoles(0, 1)
	in := NewPair(0, senderShare, 1, programmerShare)
	proto := mpcshare.NewProtocol(b, "test-duplicate-single")

	out, err := Duplicate(b, proto, keys, roles, in, DuplicationMap{Indices: indices, Bits: bits})
	if err != nil {
		t.Fatalf("Duplicate: %v", err)
	}

	keyVals := [3]*tensor.Value{keyValue(7), keyValue(8), keyValue(9)}
	assertU64(t, evalSumU64(t, b, out, keyVals), []uint64{42})
}

func TestSwitchIdentity(t *testing.T) {
	b := graph.NewBuilder()
	keys, err := mpcshare.InputKeys(b)
	if err != nil {
		t.Fatalf("InputKeys: %v", err)
	}
	senderShare, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U32), tensor.FromFlattenedArray([]uint64{1, 2, 3}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant sender: %v", err)
	}
	programmerShare, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U32), tensor.FromFlattenedArray([]uint64{9, 8, 7}, tensor.U32))
	if err != nil {
		t.Fatalf("Constant programmer: %v", err)
	}
	switchMap, err := b.Constant(tensor.ArrayT([]uint64{3}, tensor.U64), tensor.FromFlattenedArray([]uint64{0, 1, 2}, tensor.U64))
	if err != nil {
		t.Fatalf("Constant switchMap: %v", err)
	}

	roles := NewRoles(0, 1)
	in := NewPair(0, senderShare, 1, programmerShare)
	proto := mpcshare.NewProtocol(b, "test-switch")

	out, err := Switch(b, proto, keys, roles, in, switchMap, 3)
	if err != nil {
		t.Fatalf("Switch: %v", err)
	}

	keyVals := [3]*tensor.Value{keyValue(10), keyValue(11), keyValue(12)}
	assertU64(t, evalSumU64(t, b, out, keyVals), []uint64{10, 10, 10})
}
