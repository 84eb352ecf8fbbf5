// Package prf provides the keyed pseudorandom function and seekable
// PRNG the evaluator consumes for Random/RandomPermutation/PRF nodes,
// Cuckoo shuffling, and MPC zero-share derivation. spec.md leaves both
// primitives external ("any seekable ChaCha-style stream will do");
// this package wraps golang.org/x/crypto/chacha20, the stream cipher
// the teacher's own dependency already ships.
package prf

import (
	"crypto/rand"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/sha3"
)

// PRNG is the evaluator's single random source: deterministic given a
// seed, and advanced strictly sequentially by each draw. Node
// evaluation order (and therefore the exact sequence of draws) is
// part of the observable contract spec.md §5 requires for
// deterministic-seed testing.
type PRNG struct {
	cipher *chacha20.Cipher
}

// NewPRNG builds a PRNG from a 32-byte seed.
func NewPRNG(seed [32]byte) *PRNG {
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		// seed and nonce are fixed-size by construction; this cannot fail.
		panic("prf: invalid chacha20 parameters: " + err.Error())
	}
	return &PRNG{cipher: c}
}

// NewPRNGFromReader derives a seed by reading 32 bytes from r.
func NewPRNGFromReader(r io.Reader) (*PRNG, error) {
	var seed [32]byte
	if _, err := io.ReadFull(r, seed[:]); err != nil {
		return nil, err
	}
	return NewPRNG(seed), nil
}

// NewPRNGFromRand seeds a PRNG from crypto/rand.
func NewPRNGFromRand() (*PRNG, error) {
	return NewPRNGFromReader(rand.Reader)
}

// NextUint64 draws the next 8 keystream bytes as a little-endian u64.
func (p *PRNG) NextUint64() uint64 {
	var buf [8]byte
	p.cipher.XORKeyStream(buf[:], buf[:])
	return binary.LittleEndian.Uint64(buf[:])
}

// NextBytes fills buf with fresh keystream bytes.
func (p *PRNG) NextBytes(buf []byte) {
	for i := range buf {
		buf[i] = 0
	}
	p.cipher.XORKeyStream(buf, buf)
}

// UniformInRange draws a value uniform over [0,n) by rejection
// sampling, avoiding modulo bias. n == 0 means "uniform over the full
// uint64 range", matching the evaluator's uniform(None) call shape.
func (p *PRNG) UniformInRange(n uint64) uint64 {
	if n == 0 {
		return p.NextUint64()
	}
	if n == 1 {
		return 0
	}
	limit := (^uint64(0) / n) * n
	for {
		v := p.NextUint64()
		if v < limit {
			return v % n
		}
	}
}

// Shuffle performs an in-place Fisher-Yates shuffle, drawing
// UniformInRange(i+1) for each i from len(arr)-1 down to 1 — the exact
// call sequence spec.md §4.4's RandomPermutation and §4.5's missing-
// index randomization both rely on.
func (p *PRNG) Shuffle(arr []uint64) {
	for i := len(arr) - 1; i >= 1; i-- {
		j := p.UniformInRange(uint64(i + 1))
		arr[i], arr[j] = arr[j], arr[i]
	}
}

// PRF is a keyed pseudorandom function: fixing a 16-byte key yields a
// deterministic byte stream per IV. It hashes key||iv with Keccak-256
// (golang.org/x/crypto/sha3, the teacher's own hash) to seed a fresh
// ChaCha20 keystream per IV — one fixed, auditable construction
// standing in for the externally-specified "seekable stream".
type PRF struct {
	key [16]byte
}

// NewPRF builds a PRF over the given 16-byte key.
func NewPRF(key [16]byte) *PRF {
	return &PRF{key: key}
}

func (f *PRF) streamFor(iv []byte) *chacha20.Cipher {
	h := sha3.NewLegacyKeccak256()
	h.Write(f.key[:])
	h.Write(iv)
	var seed [32]byte
	h.Sum(seed[:0])
	c, err := chacha20.NewUnauthenticatedCipher(seed[:], make([]byte, chacha20.NonceSize))
	if err != nil {
		panic("prf: invalid chacha20 parameters: " + err.Error())
	}
	return c
}

// OutputBytes deterministically derives n bytes from iv.
func (f *PRF) OutputBytes(iv []byte, n int) []byte {
	buf := make([]byte, n)
	f.streamFor(iv).XORKeyStream(buf, buf)
	return buf
}

// OutputUint64 derives one deterministic uint64 from iv.
func (f *PRF) OutputUint64(iv []byte) uint64 {
	return binary.LittleEndian.Uint64(f.OutputBytes(iv, 8))
}

// Cache is a per-evaluator-instance, append-only key->Prf map. It must
// never be shared across Evaluator instances (spec.md §5): PRF state
// is part of an evaluator's private, sequentially-advanced state.
type Cache struct {
	byKey map[[16]byte]*PRF
}

// NewCache creates an empty PRF cache.
func NewCache() *Cache {
	return &Cache{byKey: make(map[[16]byte]*PRF)}
}

// Get returns the cached PRF for key, instantiating and caching one
// on first use.
func (c *Cache) Get(key [16]byte) *PRF {
	if p, ok := c.byKey[key]; ok {
		return p
	}
	p := NewPRF(key)
	c.byKey[key] = p
	return p
}
