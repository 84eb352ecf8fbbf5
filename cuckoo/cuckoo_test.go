package cuckoo

import (
	"testing"

	"github.com/luxfi/mpcgraph/prf"
)

func bitMatrix(flat []uint64, functions, rows, cols int) [][][]uint64 {
	out := make([][][]uint64, functions)
	idx := 0
	for f := 0; f < functions; f++ {
		out[f] = make([][]uint64, rows)
		for r := 0; r < rows; r++ {
			out[f][r] = append([]uint64(nil), flat[idx:idx+cols]...)
			idx += cols
		}
	}
	return out
}

func bitRows(flat []uint64, n, cols int) [][]uint64 {
	out := make([][]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = append([]uint64(nil), flat[i*cols:(i+1)*cols]...)
	}
	return out
}

func TestHashNoCollision(t *testing.T) {
	input := bitRows([]uint64{1, 0, 1, 0, 0, 1}, 2, 3)
	matrices := bitMatrix([]uint64{1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 1, 0, 0, 0, 0, 1}, 3, 2, 3)
	table, err := Hash(input, matrices, 4)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	want := []uint64{0, 1, DummyElement, DummyElement}
	for i := range want {
		if table[i] != want[i] {
			t.Errorf("table[%d] = %d, want %d", i, table[i], want[i])
		}
	}
}

func TestHashWithCollision(t *testing.T) {
	input := bitRows([]uint64{1, 0, 1, 0, 0, 0}, 2, 3)
	matrices := bitMatrix([]uint64{1, 0, 1, 0, 1, 0, 0, 1, 0, 1, 0, 1, 1, 0, 0, 0, 0, 1}, 3, 2, 3)
	table, err := Hash(input, matrices, 4)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	want := []uint64{1, DummyElement, DummyElement, 0}
	for i := range want {
		if table[i] != want[i] {
			t.Errorf("table[%d] = %d, want %d", i, table[i], want[i])
		}
	}
}

func TestHashAllZeroFails(t *testing.T) {
	input := bitRows([]uint64{1, 0, 1, 0, 0, 0}, 2, 3)
	matrices := bitMatrix(make([]uint64, 18), 3, 2, 3)
	if _, err := Hash(input, matrices, 4); err == nil {
		t.Error("expected Hash to fail when every string hashes to the same slot")
	}
}

func TestToPermutationFullTable(t *testing.T) {
	var seed [32]byte
	rng := prf.NewPRNG(seed)
	table := []uint64{0, 1, 2, 3}
	out, err := ToPermutation(table, rng)
	if err != nil {
		t.Fatalf("ToPermutation: %v", err)
	}
	for i := range table {
		if out[i] != table[i] {
			t.Errorf("a table with no dummies must pass through unchanged: got %v", out)
		}
	}
}

func TestToPermutationFillsDummiesWithAPermutation(t *testing.T) {
	var seed [32]byte
	rng := prf.NewPRNG(seed)
	table := []uint64{0, DummyElement, 2, 1}
	out, err := ToPermutation(table, rng)
	if err != nil {
		t.Fatalf("ToPermutation: %v", err)
	}
	seen := make(map[uint64]bool)
	for _, v := range out {
		if v >= uint64(len(table)) {
			t.Fatalf("out of range value %d", v)
		}
		if seen[v] {
			t.Fatalf("%v is not a permutation: duplicate %d", out, v)
		}
		seen[v] = true
	}
}

func TestToPermutationRejectsDuplicates(t *testing.T) {
	var seed [32]byte
	rng := prf.NewPRNG(seed)
	table := []uint64{0, DummyElement, 1, 1}
	if _, err := ToPermutation(table, rng); err == nil {
		t.Error("expected an error for duplicate non-dummy indices")
	}
}

func TestDecomposeSwitchingMapIdentity(t *testing.T) {
	var seed [32]byte
	rng := prf.NewPRNG(seed)
	switching := []uint64{0, 1, 2, 3, 4, 5, 6}
	perm1, dupMap, dupBits, perm2, err := DecomposeSwitchingMap(switching, 7, rng)
	if err != nil {
		t.Fatalf("DecomposeSwitchingMap: %v", err)
	}
	got := Compose(perm1, dupMap, dupBits, perm2)
	for i := range switching {
		if got[i] != switching[i] {
			t.Errorf("compose round trip failed at %d: got %d want %d", i, got[i], switching[i])
		}
	}
}

func TestDecomposeSwitchingMapWithDuplicatesAndGaps(t *testing.T) {
	var seed [32]byte
	rng := prf.NewPRNG(seed)
	// Maps to {2,0,0,3} over n=8: index 0 is hit twice, 1 and 4..7 are missing.
	switching := []uint64{2, 0, 0, 3}
	perm1, dupMap, dupBits, perm2, err := DecomposeSwitchingMap(switching, 8, rng)
	if err != nil {
		t.Fatalf("DecomposeSwitchingMap: %v", err)
	}
	if len(perm1) != len(switching) || len(perm2) != len(switching) {
		t.Fatalf("perm1/perm2 must have the same length as the switching map, got %d/%d", len(perm1), len(perm2))
	}
	got := Compose(perm1, dupMap, dupBits, perm2)
	for i := range switching {
		if got[i] != switching[i] {
			t.Errorf("compose round trip failed at %d: got %d want %d", i, got[i], switching[i])
		}
	}
	seenPerm1 := make(map[uint64]bool)
	for _, v := range perm1 {
		if seenPerm1[v] {
			t.Fatalf("perm1 %v is not a permutation of [0,%d)", perm1, 8)
		}
		seenPerm1[v] = true
	}
}

func TestDecomposeSwitchingMapRejectsOutOfRange(t *testing.T) {
	var seed [32]byte
	rng := prf.NewPRNG(seed)
	if _, _, _, _, err := DecomposeSwitchingMap([]uint64{0, 9}, 8, rng); err == nil {
		t.Error("expected an error for an out-of-range switching map entry")
	}
}
