package prf

import "testing"

func TestPRNGDeterministic(t *testing.T) {
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i)
	}
	a := NewPRNG(seed)
	b := NewPRNG(seed)
	for i := 0; i < 100; i++ {
		if a.NextUint64() != b.NextUint64() {
			t.Fatalf("same seed produced different streams at draw %d", i)
		}
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	var seed [32]byte
	seed[0] = 7
	p := NewPRNG(seed)
	arr := make([]uint64, 20)
	for i := range arr {
		arr[i] = uint64(i)
	}
	p.Shuffle(arr)
	seen := make(map[uint64]bool)
	for _, v := range arr {
		if v >= 20 {
			t.Fatalf("value %d out of range", v)
		}
		if seen[v] {
			t.Fatalf("duplicate value %d after shuffle", v)
		}
		seen[v] = true
	}
}

func TestUniformInRangeBounds(t *testing.T) {
	var seed [32]byte
	p := NewPRNG(seed)
	for i := 0; i < 1000; i++ {
		v := p.UniformInRange(7)
		if v >= 7 {
			t.Fatalf("value %d out of range [0,7)", v)
		}
	}
}

func TestPRFDeterministicPerKey(t *testing.T) {
	var key [16]byte
	key[0] = 42
	f1 := NewPRF(key)
	f2 := NewPRF(key)
	iv := []byte("some-iv")
	if f1.OutputUint64(iv) != f2.OutputUint64(iv) {
		t.Error("same key+iv must produce the same output")
	}
	var key2 [16]byte
	key2[0] = 43
	f3 := NewPRF(key2)
	if f1.OutputUint64(iv) == f3.OutputUint64(iv) {
		t.Error("different keys should (overwhelmingly likely) differ")
	}
}

func TestCacheReusesInstance(t *testing.T) {
	c := NewCache()
	var key [16]byte
	key[0] = 1
	a := c.Get(key)
	b := c.Get(key)
	if a != b {
		t.Error("expected the same cached *PRF instance for the same key")
	}
}
