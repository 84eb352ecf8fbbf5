package mpcshare

import (
	"testing"

	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/tensor"
)

func keyValue(seed byte) *tensor.Value {
	buf := make([]uint64, 16)
	for i := range buf {
		buf[i] = uint64(seed) + uint64(i)*7
	}
	return tensor.FromFlattenedArray(buf, tensor.U8)
}

func scalarShare(b *graph.Builder, st tensor.ScalarType, v0, v1, v2 uint64) (Share, error) {
	return ConstantShare(b, tensor.ScalarT(st),
		tensor.FromScalar(v0, st), tensor.FromScalar(v1, st), tensor.FromScalar(v2, st))
}

func revealU64(t *testing.T, b *graph.Builder, s Share, keyVals [3]*tensor.Value) uint64 {
	t.Helper()
	out, err := Reveal(b, s)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if err := b.SetOutput(out); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	if err := b.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	g := b.Graph()
	ev := graph.NewEvaluator([32]byte{1, 2, 3})
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
	return got[0]
}

func TestAddSubtractLocal(t *testing.T) {
	b := graph.NewBuilder()
	x, err := scalarShare(b, tensor.U8, 1, 1, 1) // x = 3
	if err != nil {
		t.Fatalf("scalarShare x: %v", err)
	}
	y, err := scalarShare(b, tensor.U8, 4, 0, 0) // y = 4
	if err != nil {
		t.Fatalf("scalarShare y: %v", err)
	}
	sum, err := Add(b, x, y)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := revealU64(t, b, sum, [3]*tensor.Value{}); got != 7 {
		t.Errorf("Add: got %d, want 7", got)
	}

	b2 := graph.NewBuilder()
	x2, _ := scalarShare(b2, tensor.U8, 1, 1, 1)
	y2, _ := scalarShare(b2, tensor.U8, 4, 0, 0)
	diff, err := Subtract(b2, y2, x2)
	if err != nil {
		t.Fatalf("Subtract: %v", err)
	}
	if got := revealU64(t, b2, diff, [3]*tensor.Value{}); got != 1 {
		t.Errorf("Subtract: got %d, want 1", got)
	}
}

func TestPublicShareArithmetic(t *testing.T) {
	b := graph.NewBuilder()
	x, _ := scalarShare(b, tensor.U8, 1, 1, 1) // x = 3
	pub, err := b.Constant(tensor.ScalarT(tensor.U8), tensor.FromScalar(10, tensor.U8))
	if err != nil {
		t.Fatalf("Constant: %v", err)
	}
	added, err := AddPublic(b, x, pub)
	if err != nil {
		t.Fatalf("AddPublic: %v", err)
	}
	if got := revealU64(t, b, added, [3]*tensor.Value{}); got != 13 {
		t.Errorf("AddPublic: got %d, want 13", got)
	}

	b2 := graph.NewBuilder()
	x2, _ := scalarShare(b2, tensor.U8, 1, 1, 1)
	pub2, _ := b2.Constant(tensor.ScalarT(tensor.U8), tensor.FromScalar(10, tensor.U8))
	sub, err := SubtractPublic(b2, x2, pub2)
	if err != nil {
		t.Fatalf("SubtractPublic: %v", err)
	}
	if got := revealU64(t, b2, sub, [3]*tensor.Value{}); got != uint64(byte(3-10)) {
		t.Errorf("SubtractPublic: got %d, want %d", got, byte(3-10))
	}

	b3 := graph.NewBuilder()
	x3, _ := scalarShare(b3, tensor.U8, 1, 1, 1)
	pub3, _ := b3.Constant(tensor.ScalarT(tensor.U8), tensor.FromScalar(10, tensor.U8))
	rsub, err := PublicSubtract(b3, pub3, x3)
	if err != nil {
		t.Fatalf("PublicSubtract: %v", err)
	}
	if got := revealU64(t, b3, rsub, [3]*tensor.Value{}); got != 7 {
		t.Errorf("PublicSubtract: got %d, want 7", got)
	}
}

func TestPrivateMultiply(t *testing.T) {
	b := graph.NewBuilder()
	keys, err := InputKeys(b)
	if err != nil {
		t.Fatalf("InputKeys: %v", err)
	}
	x, err := scalarShare(b, tensor.U32, 1, 1, 1) // x = 3
	if err != nil {
		t.Fatalf("scalarShare x: %v", err)
	}
	y, err := scalarShare(b, tensor.U32, 4, 0, 0) // y = 4
	if err != nil {
		t.Fatalf("scalarShare y: %v", err)
	}
	proto := NewProtocol(b, "test-multiply")
	prod, err := proto.Multiply(keys, x, y)
	if err != nil {
		t.Fatalf("Multiply: %v", err)
	}
	keyVals := [3]*tensor.Value{keyValue(1), keyValue(2), keyValue(3)}
	if got := revealU64(t, b, prod, keyVals); got != 12 {
		t.Errorf("Multiply: got %d, want 12", got)
	}
}

func TestMultiplyPublic(t *testing.T) {
	b := graph.NewBuilder()
	x, err := scalarShare(b, tensor.U32, 1, 1, 1) // x = 3
	if err != nil {
		t.Fatalf("scalarShare: %v", err)
	}
	pub, err := b.Constant(tensor.ScalarT(tensor.U32), tensor.FromScalar(5, tensor.U32))
	if err != nil {
		t.Fatalf("Constant: %v", err)
	}
	proto := NewProtocol(b, "test-public-multiply")
	prod, err := proto.MultiplyPublic(x, pub)
	if err != nil {
		t.Fatalf("MultiplyPublic: %v", err)
	}
	if got := revealU64(t, b, prod, [3]*tensor.Value{}); got != 15 {
		t.Errorf("MultiplyPublic: got %d, want 15", got)
	}
}

func TestMixedMultiplyPrivate(t *testing.T) {
	b := graph.NewBuilder()
	keys, err := InputKeys(b)
	if err != nil {
		t.Fatalf("InputKeys: %v", err)
	}
	// a = 5, split across parties' additive shares.
	a, err := scalarShare(b, tensor.U32, 2, 2, 1)
	if err != nil {
		t.Fatalf("scalarShare a: %v", err)
	}
	// bit = 1, replicated (every party holds the same bit value here).
	bit, err := scalarShare(b, tensor.Bit, 1, 1, 1)
	if err != nil {
		t.Fatalf("scalarShare bit: %v", err)
	}
	proto := NewProtocol(b, "test-mixed-multiply")
	prod, err := proto.MixedMultiply(keys, a, bit)
	if err != nil {
		t.Fatalf("MixedMultiply: %v", err)
	}
	keyVals := [3]*tensor.Value{keyValue(11), keyValue(22), keyValue(33)}
	if got := revealU64(t, b, prod, keyVals); got != 5 {
		t.Errorf("MixedMultiply(bit=1): got %d, want 5", got)
	}

	b2 := graph.NewBuilder()
	keys2, _ := InputKeys(b2)
	a2, _ := scalarShare(b2, tensor.U32, 2, 2, 1)
	bit2, _ := scalarShare(b2, tensor.Bit, 0, 0, 0)
	proto2 := NewProtocol(b2, "test-mixed-multiply-zero")
	prod2, err := proto2.MixedMultiply(keys2, a2, bit2)
	if err != nil {
		t.Fatalf("MixedMultiply: %v", err)
	}
	if got := revealU64(t, b2, prod2, keyVals); got != 0 {
		t.Errorf("MixedMultiply(bit=0): got %d, want 0", got)
	}
}
