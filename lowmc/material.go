package lowmc

import (
	"github.com/luxfi/mpcgraph/bitio"
	"github.com/luxfi/mpcgraph/tensor"
)

// Material exposes LowMC's public, key-independent round structure
// (linear layers, round constants, key-schedule matrices) as tensor
// values, so a circuit that evaluates the cipher over secret-shared
// state can reuse exactly the same deterministically-derived round
// material this package's plaintext Cipher bakes into New.
type Material struct {
	Linear      [Rounds]*tensor.Value
	RoundConst  [Rounds]*tensor.Value
	KeySchedule [Rounds + 1]*tensor.Value
}

func bitsOf(packed []byte, n int) []uint64 {
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		out[i] = uint64(bitio.GetBit(packed, i))
	}
	return out
}

// PublicMaterial derives the same round material New bakes into a
// Cipher, without requiring a key.
func PublicMaterial() *Material {
	m := &Material{}
	for r := 0; r < Rounds; r++ {
		lin := expandMatrix(labelFor("linear", r), BlockBits, BlockBits)
		m.Linear[r] = tensor.FromFlattenedArray(bitsOf(lin, BlockBits*BlockBits), tensor.Bit)
		rc := expand(labelFor("const", r), blockBytes())
		m.RoundConst[r] = tensor.FromFlattenedArray(bitsOf(rc, BlockBits), tensor.Bit)
	}
	for r := 0; r <= Rounds; r++ {
		ks := expandMatrix(labelFor("keysched", r), BlockBits, KeyBits)
		m.KeySchedule[r] = tensor.FromFlattenedArray(bitsOf(ks, BlockBits*KeyBits), tensor.Bit)
	}
	return m
}
