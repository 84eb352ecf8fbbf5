// Package lowmc implements the fixed-parameter LowMC block cipher used
// as the PSI oblivious PRF (spec.md §6): block size 80, 16 S-boxes per
// round, 11 rounds. The cipher's internal structure is explicitly out
// of scope for the core per spec.md §1 ("a fixed parameter set is
// assumed"); this is a from-scratch, spec-faithful instance rather
// than a translation of any reference implementation, since the
// corpus does not carry a Go LowMC implementation to ground it on.
//
// Round linear layers, round constants and the key-schedule matrices
// are all public, deterministically derived from a fixed instance
// label via BLAKE3's extendable output, so any two parties who agree
// on the label reconstruct identical round material without
// communication — only the round keys actually depend on the secret
// key.
package lowmc

import (
	"github.com/luxfi/mpcgraph/bitio"
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/zeebo/blake3"
)

const (
	// BlockBits is the LowMC block size used for the PSI OPRF, per
	// spec.md §6 (PRF_OUTPUT_SIZE = 80).
	BlockBits = 80
	// SBoxCount is the number of 3-bit S-boxes applied per round; the
	// remaining BlockBits-3*SBoxCount bits pass the S-box layer unchanged.
	SBoxCount = 16
	// Rounds is the number of LowMC rounds.
	Rounds = 11
	// KeyBits is the LowMC key size.
	KeyBits = 128
)

func blockBytes() int { return (BlockBits + 7) / 8 }
func keyBytes() int   { return (KeyBits + 7) / 8 }

// Cipher is a LowMC instance keyed with a fixed KeyBits-bit key.
type Cipher struct {
	key         []byte
	linear      [Rounds][]byte   // BlockBits rows x BlockBits-bit rows, packed
	roundConst  [Rounds][]byte   // BlockBits bits, packed
	keySchedule [Rounds + 1][]byte // BlockBits rows x KeyBits-bit rows, packed; index 0 is whitening
}

// New builds a Cipher from a KeyBits/8-byte key.
func New(key []byte) (*Cipher, error) {
	if len(key) != keyBytes() {
		return nil, mpcerr.Value("lowmc: key must be %d bytes, got %d", keyBytes(), len(key))
	}
	c := &Cipher{key: append([]byte(nil), key...)}
	for r := 0; r < Rounds; r++ {
		c.linear[r] = expandMatrix(labelFor("linear", r), BlockBits, BlockBits)
		c.roundConst[r] = expand(labelFor("const", r), blockBytes())
	}
	for r := 0; r <= Rounds; r++ {
		c.keySchedule[r] = expandMatrix(labelFor("keysched", r), BlockBits, KeyBits)
	}
	return c, nil
}

func labelFor(kind string, round int) string {
	return "mpcgraph-lowmc80-v1/" + kind + "/" + string(rune('0'+round/10)) + string(rune('0'+round%10))
}

// expand derives n deterministic, public bytes from label via BLAKE3's
// extendable-output mode.
func expand(label string, n int) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte(label))
	d := h.Digest()
	out := make([]byte, n)
	_, _ = d.Read(out)
	return out
}

// expandMatrix derives a rows x cols GF(2) matrix, each row packed
// LSB-first into ceil(cols/8) bytes, concatenated row-major.
func expandMatrix(label string, rows, cols int) []byte {
	rowBytes := (cols + 7) / 8
	return expand(label, rows*rowBytes)
}

// matVec computes y = M * x over GF(2), where M is a rows x cols
// matrix (row-packed, rowBytes = ceil(cols/8) each) and x is a
// cols-bit packed vector. The result is a rows-bit packed vector.
func matVec(m []byte, rows, cols int, x []byte) []byte {
	rowBytes := (cols + 7) / 8
	out := make([]byte, (rows+7)/8)
	for r := 0; r < rows; r++ {
		row := m[r*rowBytes : (r+1)*rowBytes]
		bit := bitio.BinaryDot(row, x)
		bitio.SetBit(out, r, bit)
	}
	return out
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// sbox3 applies the LowMC 3-bit S-box: (a,b,c) -> (a^bc, a^b^ac, a^b^c^ab).
func sbox3(a, b, c int) (int, int, int) {
	na := a ^ (b & c)
	nb := a ^ b ^ (a & c)
	nc := a ^ b ^ c ^ (a & b)
	return na, nb, nc
}

func sboxLayer(state []byte) []byte {
	out := append([]byte(nil), state...)
	for i := 0; i < SBoxCount; i++ {
		base := 3 * i
		a := bitio.GetBit(state, base)
		b := bitio.GetBit(state, base+1)
		c := bitio.GetBit(state, base+2)
		na, nb, nc := sbox3(a, b, c)
		bitio.SetBit(out, base, na)
		bitio.SetBit(out, base+1, nb)
		bitio.SetBit(out, base+2, nc)
	}
	return out
}

// Encrypt runs the LowMC permutation on an 80-bit (packed into
// blockBytes() bytes) input block under this cipher's key.
func (c *Cipher) Encrypt(block []byte) ([]byte, error) {
	if len(block) != blockBytes() {
		return nil, mpcerr.Value("lowmc: block must be %d bytes, got %d", blockBytes(), len(block))
	}
	state := xorBytes(block, matVec(c.keySchedule[0], BlockBits, KeyBits, c.key))
	for r := 0; r < Rounds; r++ {
		state = sboxLayer(state)
		state = matVec(c.linear[r], BlockBits, BlockBits, state)
		state = xorBytes(state, c.roundConst[r])
		state = xorBytes(state, matVec(c.keySchedule[r+1], BlockBits, KeyBits, c.key))
	}
	return state, nil
}
