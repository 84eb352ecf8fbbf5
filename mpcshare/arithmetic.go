package mpcshare

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/tensor"
)

// BilinearOp is one of graph.Builder's bilinear node constructors
// (Multiply, Dot, Matmul, or a Gemm closed over its transpose flags),
// generalized the way mpc_arithmetic.rs's bilinear_product does: one
// helper parameterized by the operation, reused for every bilinear
// gate instead of repeating the ABY3 protocol four times.
type BilinearOp func(x, y int) (int, error)

// Protocol accumulates the distinct PRF initialization vectors a
// circuit's MPC gates need as it builds them. One Protocol should be
// used for an entire circuit; reusing a tag/key pair across gates
// would let two different masks collide.
type Protocol struct {
	b  *graph.Builder
	iv *ivCounter
}

// NewProtocol wraps b, tagging every PRF draw this Protocol issues
// with tag so that two Protocols building into the same Builder never
// collide on initialization vectors.
func NewProtocol(b *graph.Builder, tag string) *Protocol {
	return &Protocol{b: b, iv: newIVCounter(tag)}
}

// Builder returns the underlying graph.Builder.
func (p *Protocol) Builder() *graph.Builder { return p.b }

// NextIV hands out a fresh PRF initialization vector under this
// Protocol's tag, for callers (such as mpcnet) that need PRF draws
// bookkept consistently with the rest of a circuit's gates.
func (p *Protocol) NextIV() []byte { return p.iv.next() }

// zeroShares derives a replicated sharing of zero from the key triple,
// one PRF evaluation per key at a shared initialization vector so
// that F(key_j) is the identical node value wherever key_j
// participates — the cancellation spec.md §4.6 relies on ("r_0,r_1,r_2
// sums to 0").
func (p *Protocol) zeroShares(keys Keys, t tensor.Type) (Share, error) {
	iv := p.iv.next()
	var f [3]int
	for j := 0; j < 3; j++ {
		id, err := p.b.PRF(keys.Parties[j], iv, t)
		if err != nil {
			return Share{}, err
		}
		f[j] = id
	}
	var out Share
	for i := 0; i < 3; i++ {
		ip1 := (i + 1) % 3
		id, err := p.b.Subtract(f[i], f[ip1])
		if err != nil {
			return Share{}, err
		}
		out.Parties[i] = id
	}
	return out, nil
}

// privateProduct is the ABY3 private x private bilinear protocol
// (spec.md §4.6): party p computes x_p*y_p + x_p*y_(p+1) + x_(p+1)*y_p
// plus a zero-share mask, then rotates the result to party p-1 via a
// Send-annotated Nop.
func (p *Protocol) privateProduct(keys Keys, x, y Share, op BilinearOp) (Share, error) {
	var z [3]int
	for i := 0; i < 3; i++ {
		ip1 := (i + 1) % 3
		z1, err := p.b.Add(y.Parties[i], y.Parties[ip1])
		if err != nil {
			return Share{}, err
		}
		z2, err := op(x.Parties[i], z1)
		if err != nil {
			return Share{}, err
		}
		z3, err := op(x.Parties[ip1], y.Parties[i])
		if err != nil {
			return Share{}, err
		}
		zi, err := p.b.Add(z2, z3)
		if err != nil {
			return Share{}, err
		}
		z[i] = zi
	}
	zt, err := nodeType(p.b, z[0])
	if err != nil {
		return Share{}, err
	}
	zero, err := p.zeroShares(keys, zt)
	if err != nil {
		return Share{}, err
	}
	var out Share
	for i := 0; i < 3; i++ {
		sum, err := p.b.Add(z[i], zero.Parties[i])
		if err != nil {
			return Share{}, err
		}
		im1 := (i + 2) % 3
		sent, err := p.b.Nop(sum, graph.Annotation{From: i, To: im1})
		if err != nil {
			return Share{}, err
		}
		out.Parties[i] = sent
	}
	return out, nil
}

// mixedProduct applies op locally between a private share and a
// public node, no communication required (spec.md §4.6 "Public x
// private"). swap indicates pub is the left operand.
func mixedProduct(b *graph.Builder, x Share, pub int, op BilinearOp, swap bool) (Share, error) {
	var out Share
	for i := 0; i < 3; i++ {
		var id int
		var err error
		if swap {
			id, err = op(pub, x.Parties[i])
		} else {
			id, err = op(x.Parties[i], pub)
		}
		if err != nil {
			return Share{}, err
		}
		out.Parties[i] = id
	}
	return out, nil
}

// Multiply, Dot, Matmul and Gemm all run the same private x private
// ABY3 protocol, parameterized by the local bilinear op.
func (p *Protocol) Multiply(keys Keys, x, y Share) (Share, error) {
	return p.privateProduct(keys, x, y, p.b.Multiply)
}

func (p *Protocol) Dot(keys Keys, x, y Share) (Share, error) {
	return p.privateProduct(keys, x, y, p.b.Dot)
}

func (p *Protocol) Matmul(keys Keys, x, y Share) (Share, error) {
	return p.privateProduct(keys, x, y, p.b.Matmul)
}

func (p *Protocol) Gemm(keys Keys, x, y Share, transpose0, transpose1 bool) (Share, error) {
	op := func(l, r int) (int, error) { return p.b.Gemm(l, r, transpose0, transpose1) }
	return p.privateProduct(keys, x, y, op)
}

// MultiplyPublic, DotPublic, MatmulPublic and GemmPublic multiply a
// private share by a public node (x private, pub public); the
// PublicX variants put the public operand on the left instead.
func (p *Protocol) MultiplyPublic(x Share, pub int) (Share, error) {
	return mixedProduct(p.b, x, pub, p.b.Multiply, false)
}
func (p *Protocol) PublicMultiply(pub int, x Share) (Share, error) {
	return mixedProduct(p.b, x, pub, p.b.Multiply, true)
}
func (p *Protocol) DotPublic(x Share, pub int) (Share, error) {
	return mixedProduct(p.b, x, pub, p.b.Dot, false)
}
func (p *Protocol) MatmulPublic(x Share, pub int) (Share, error) {
	return mixedProduct(p.b, x, pub, p.b.Matmul, false)
}
func (p *Protocol) GemmPublic(x Share, pub int, transpose0, transpose1 bool) (Share, error) {
	op := func(l, r int) (int, error) { return p.b.Gemm(l, r, transpose0, transpose1) }
	return mixedProduct(p.b, x, pub, op, false)
}

// bitsByPartyInteger runs the "bits x integer owned by one party"
// sub-protocol (spec.md §4.6): c is a node known in full to party
// ownerID (either a genuinely public node or one party's own share of
// a larger private integer), bits is a replicated BIT sharing. S, H, R
// follow the spec's naming; key indices are grounded on
// multiply_bits_by_public_integers in the original compiler, which
// fetches the (R,S)-shared key by S's index and the (S,H)-shared key
// by H's index.
func (p *Protocol) bitsByPartyInteger(keys Keys, c int, bits Share, ownerID int) (Share, error) {
	s := ownerID
	h := (s + 1) % 3
	r := 3 - s - h

	keyRS := keys.Parties[s]
	keySH := keys.Parties[h]

	bsXorBh, err := p.b.Add(bits.Parties[s], bits.Parties[h])
	if err != nil {
		return Share{}, err
	}
	cTimesBits, err := p.b.MixedMultiply(c, bsXorBh)
	if err != nil {
		return Share{}, err
	}
	ct, err := nodeType(p.b, cTimesBits)
	if err != nil {
		return Share{}, err
	}

	rs, err := p.b.PRF(keyRS, p.iv.next(), ct)
	if err != nil {
		return Share{}, err
	}
	rh, err := p.b.PRF(keySH, p.iv.next(), ct)
	if err != nil {
		return Share{}, err
	}

	m0a, err := p.b.Subtract(cTimesBits, rs)
	if err != nil {
		return Share{}, err
	}
	m0, err := p.b.Subtract(m0a, rh)
	if err != nil {
		return Share{}, err
	}

	m1a, err := p.b.Subtract(c, cTimesBits)
	if err != nil {
		return Share{}, err
	}
	m1b, err := p.b.Subtract(m1a, rs)
	if err != nil {
		return Share{}, err
	}
	m1, err := p.b.Subtract(m1b, rh)
	if err != nil {
		return Share{}, err
	}

	// R and H know b_r, S knows m0/m1: a 1-out-of-2 OT would let R
	// learn only m_{b_r}. The single-process simulator computes the
	// same selection directly, consistent with every other
	// cross-party step in this evaluator.
	br := bits.Parties[r]
	mbr, err := p.b.Select(br, m1, m0)
	if err != nil {
		return Share{}, err
	}
	sent, err := p.b.Nop(mbr, graph.Annotation{From: r, To: h})
	if err != nil {
		return Share{}, err
	}

	var out Share
	out.Parties[r] = sent
	out.Parties[s] = rs
	out.Parties[h] = rh
	return out, nil
}

// MixedMultiplyPublicBits multiplies a private integer share by a
// public bit node: no OT needed, each party scales its local share.
func (p *Protocol) MixedMultiplyPublicBits(a Share, bits int) (Share, error) {
	return mixedProduct(p.b, a, bits, p.b.MixedMultiply, false)
}

// MixedMultiplyPublicInt multiplies a public integer node by a
// private bit sharing, routed through the OT sub-protocol with party
// 1 as owner (every party already knows c, so any owner works; party
// 1 matches the original compiler's choice).
func (p *Protocol) MixedMultiplyPublicInt(keys Keys, c int, bits Share) (Share, error) {
	return p.bitsByPartyInteger(keys, c, bits, 1)
}

// MixedMultiply multiplies two private shares (an integer sharing and
// a bit sharing): spec.md §4.6 decomposes it into two
// bits-by-party-integer invocations, with party 0 owning a_0 and
// party 1 owning a_1+a_2, then sums the two result sharings.
func (p *Protocol) MixedMultiply(keys Keys, a, bits Share) (Share, error) {
	a0 := a.Parties[0]
	a1a2, err := p.b.Add(a.Parties[1], a.Parties[2])
	if err != nil {
		return Share{}, err
	}
	r0, err := p.bitsByPartyInteger(keys, a0, bits, 0)
	if err != nil {
		return Share{}, err
	}
	r1, err := p.bitsByPartyInteger(keys, a1a2, bits, 1)
	if err != nil {
		return Share{}, err
	}
	return Add(p.b, r0, r1)
}
