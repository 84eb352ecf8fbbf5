package psi

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/tensor"
)

// oprf evaluates the masked LowMC OPRF spec.md §4.8 step 3 describes:
// LowMC(x) for rows where null==1, and a fresh uniform value (unknown
// to any single party) for rows where null==0, so that a revealed
// OPRF output never distinguishes an empty slot from a real key that
// happens to collide with it. Grounded on the compute_oprf closure in
// the original compiler's mpc_psi.rs: result = (LowMC(x) - R)*null ^ R,
// written here with XOR standing in for the bitwise framework's
// subtraction/addition (this evaluator's BIT scalar type makes Add,
// Subtract and XOR the identical operation).
func oprf(proto *mpcshare.Protocol, keys mpcshare.Keys, rows int, x, key, null mpcshare.Share) (mpcshare.Share, error) {
	b := proto.Builder()

	enc, err := lowmcCircuit(proto, keys, rows, x, key)
	if err != nil {
		return mpcshare.Share{}, err
	}

	rt, err := nodeTypeOf(b, enc.Parties[0])
	if err != nil {
		return mpcshare.Share{}, err
	}
	r, err := sharedRandom(proto, keys, rt)
	if err != nil {
		return mpcshare.Share{}, err
	}

	masked, err := mpcshare.Subtract(b, enc, r)
	if err != nil {
		return mpcshare.Share{}, err
	}

	nullCol, err := broadcastNullColumn(b, null, rt)
	if err != nil {
		return mpcshare.Share{}, err
	}
	selected, err := proto.Multiply(keys, masked, nullCol)
	if err != nil {
		return mpcshare.Share{}, err
	}

	return mpcshare.Add(b, selected, r)
}

// broadcastNullColumn reshapes a [rows] 0/1 null Share to [rows,1] so
// that Multiply/Add's own elementwise broadcasting combines it against
// a [rows,BlockBits] operand, without physically replicating it.
func broadcastNullColumn(b *graph.Builder, null mpcshare.Share, t tensor.Type) (mpcshare.Share, error) {
	rows := t.Shape[0]
	colType := tensor.ArrayT([]uint64{rows, 1}, t.Scalar)
	return shareReshape(b, null, colType)
}
