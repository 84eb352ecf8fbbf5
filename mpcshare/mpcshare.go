// Package mpcshare builds the ABY3-style replicated-secret-sharing
// circuits spec.md §4.6 describes, as ordinary subgraphs wired
// through a graph.Builder. Unlike the original Rust compiler, which
// instantiates these protocols lazily behind a CustomOperation at
// inlining time, this evaluator's closed Operation set has no
// custom-op escape hatch — so a Share's three party-local nodes are
// built eagerly, right here, out of the primitives graph.Builder
// already exposes (Add/Subtract/Multiply/Dot/Matmul/Gemm/MixedMultiply,
// PRF, Nop). Cross-party communication is represented the same way
// the evaluator treats it everywhere else: a Nop node annotated
// Send(from, to), identity under single-process simulation.
package mpcshare

import (
	"encoding/binary"

	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/tensor"
)

// Share is a 3-of-3 replicated secret sharing: Parties[p] is the node
// id of party p's local value. A real deployment would further
// restrict which two of the three each party may read; this builder
// has no such notion of "can't see" (it is constructing one
// simulator's view of all three), so the restriction is documentary
// rather than enforced, exactly as with every other MPC annotation in
// this package.
type Share struct {
	Parties [3]int
}

// Keys is a 3-of-3 replicated sharing of PRF keys: Parties[p] is a key
// known to party p and party (p+2)%3 — i.e. to p and its predecessor
// in party order. This indexing is grounded on
// multiply_bits_by_public_integers in the original compiler's
// mpc_arithmetic.rs, which fetches the (R,S)-shared key by party S's
// index and the (S,H)-shared key by party H's index.
type Keys struct {
	Parties [3]int
}

// KeyType is the type every mpcshare PRF key node carries: a 16-byte
// array, matching the minimum width graph.evalPRF requires of its key
// operand.
var KeyType = tensor.ArrayT([]uint64{16}, tensor.U8)

// InputKeys declares the replicated PRF key triple as three graph
// inputs, in Parties order.
func InputKeys(b *graph.Builder) (Keys, error) {
	var k Keys
	for p := 0; p < 3; p++ {
		id, err := b.Input(KeyType)
		if err != nil {
			return Keys{}, err
		}
		k.Parties[p] = id
	}
	return k, nil
}

// InputShare declares a private value of type t as three graph
// inputs, one per party's local share.
func InputShare(b *graph.Builder, t tensor.Type) (Share, error) {
	var s Share
	for p := 0; p < 3; p++ {
		id, err := b.Input(t)
		if err != nil {
			return Share{}, err
		}
		s.Parties[p] = id
	}
	return s, nil
}

// ConstantShare wires three already-known local values as a Share
// (useful for tests that want to hand-construct a sharing of a known
// plaintext without going through Input).
func ConstantShare(b *graph.Builder, t tensor.Type, v0, v1, v2 *tensor.Value) (Share, error) {
	var s Share
	for p, v := range [3]*tensor.Value{v0, v1, v2} {
		id, err := b.Constant(t, v)
		if err != nil {
			return Share{}, err
		}
		s.Parties[p] = id
	}
	return s, nil
}

func nodeType(b *graph.Builder, id int) (tensor.Type, error) {
	n, err := b.Graph().Node(id)
	if err != nil {
		return tensor.Type{}, err
	}
	return n.Type, nil
}

func zeroConstant(b *graph.Builder, id int) (int, error) {
	t, err := nodeType(b, id)
	if err != nil {
		return 0, err
	}
	return b.Constant(t, tensor.ZeroOf(t))
}

// Add computes a local replicated addition: each party adds its two
// local shares, no communication required (spec.md §4.6).
func Add(b *graph.Builder, x, y Share) (Share, error) {
	var out Share
	for p := 0; p < 3; p++ {
		id, err := b.Add(x.Parties[p], y.Parties[p])
		if err != nil {
			return Share{}, err
		}
		out.Parties[p] = id
	}
	return out, nil
}

// Subtract computes a local replicated subtraction.
func Subtract(b *graph.Builder, x, y Share) (Share, error) {
	var out Share
	for p := 0; p < 3; p++ {
		id, err := b.Subtract(x.Parties[p], y.Parties[p])
		if err != nil {
			return Share{}, err
		}
		out.Parties[p] = id
	}
	return out, nil
}

// AddPublic adds a public value into a private share: party 0's local
// share absorbs pub, the other two are untouched (spec.md §4.6: "party
// 0 adds/subtracts the public value into share 0 only").
func AddPublic(b *graph.Builder, x Share, pub int) (Share, error) {
	out := x
	id, err := b.Add(x.Parties[0], pub)
	if err != nil {
		return Share{}, err
	}
	out.Parties[0] = id
	return out, nil
}

// SubtractPublic subtracts a public value from a private share,
// symmetric to AddPublic.
func SubtractPublic(b *graph.Builder, x Share, pub int) (Share, error) {
	out := x
	id, err := b.Subtract(x.Parties[0], pub)
	if err != nil {
		return Share{}, err
	}
	out.Parties[0] = id
	return out, nil
}

// PublicSubtract computes pub - x for a private x: party 0 computes
// pub - x0, the other two negate their share against a zero constant.
func PublicSubtract(b *graph.Builder, pub int, x Share) (Share, error) {
	var out Share
	for p := 0; p < 3; p++ {
		if p == 0 {
			id, err := b.Subtract(pub, x.Parties[0])
			if err != nil {
				return Share{}, err
			}
			out.Parties[0] = id
			continue
		}
		zero, err := zeroConstant(b, x.Parties[p])
		if err != nil {
			return Share{}, err
		}
		id, err := b.Subtract(zero, x.Parties[p])
		if err != nil {
			return Share{}, err
		}
		out.Parties[p] = id
	}
	return out, nil
}

// Reveal reconstructs the plaintext a Share carries by summing its
// three local values. A real deployment needs one message per party
// to collect the third share it doesn't hold; the single-process
// simulator performs the equivalent sum directly, matching how every
// other cross-party step in this evaluator (Nop/Send) collapses to a
// local operation.
func Reveal(b *graph.Builder, s Share) (int, error) {
	stacked, err := b.Stack([]int{s.Parties[0], s.Parties[1], s.Parties[2]}, []uint64{3})
	if err != nil {
		return 0, err
	}
	return b.Sum(stacked, []int{0})
}

// RevealTo reconstructs the plaintext a Share carries, as Reveal does,
// but routes the two shares party doesn't hold to it via annotated
// Nops first, documenting that only party learns the result (spec.md
// §4.8 step 4: "Reveal OPRF(X) to party 2").
func RevealTo(b *graph.Builder, s Share, party int) (int, error) {
	var collected [3]int
	for p := 0; p < 3; p++ {
		if p == party {
			collected[p] = s.Parties[p]
			continue
		}
		sent, err := b.Nop(s.Parties[p], graph.Annotation{From: p, To: party})
		if err != nil {
			return 0, err
		}
		collected[p] = sent
	}
	stacked, err := b.Stack(collected[:], []uint64{3})
	if err != nil {
		return 0, err
	}
	return b.Sum(stacked, []int{0})
}

// ivCounter hands out distinct PRF initialization vectors within one
// Builder's lifetime, so that repeated gates (multiple multiplies
// sharing the same key triple) never replay the same mask.
type ivCounter struct {
	tag string
	n   uint64
}

func newIVCounter(tag string) *ivCounter { return &ivCounter{tag: tag} }

func (c *ivCounter) next() []byte {
	c.n++
	iv := make([]byte, len(c.tag)+8)
	copy(iv, c.tag)
	binary.LittleEndian.PutUint64(iv[len(c.tag):], c.n)
	return iv
}
