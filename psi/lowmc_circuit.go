package psi

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/lowmc"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

// sboxCount is the number of leading block bits LowMC's S-box layer
// covers (three per S-box); the remaining trailing bits of the block
// pass through unchanged.
const sboxCount = lowmc.SBoxCount * 3

// lowmcCircuit evaluates LowMC over a [rows, lowmc.BlockBits] private
// state under a private key, reusing the exact round material
// lowmc.New bakes into a plaintext Cipher (lowmc.PublicMaterial), so
// that the in-graph evaluation and the standalone cipher agree bit
// for bit. Grounded on get_lowmc_graph in the original compiler's
// mpc_psi.rs, which builds the same cipher as an MPC subgraph instead
// of calling the plaintext implementation, because the whole point of
// the OPRF step is to keep the input hidden while only the output is
// ever revealed.
func lowmcCircuit(proto *mpcshare.Protocol, keys mpcshare.Keys, rows int, state, key mpcshare.Share) (mpcshare.Share, error) {
	b := proto.Builder()
	mat := lowmc.PublicMaterial()

	keyRowType := tensor.ArrayT([]uint64{1, lowmc.KeyBits}, tensor.Bit)
	keyVecType := tensor.ArrayT([]uint64{lowmc.BlockBits}, tensor.Bit)

	// roundKey applies one key-schedule matvec to the un-broadcast key
	// (reshaped to a single row so Gemm sees a rank-2 operand), then
	// reshapes back to a bare [BlockBits] vector: Add's own elementwise
	// broadcasting (shapes.BroadcastShape) combines it against the
	// [rows, BlockBits] state without needing to physically repeat it
	// across rows.
	roundKey := func(matrix *tensor.Value) (mpcshare.Share, error) {
		keyAsRow, err := shareReshape(b, key, keyRowType)
		if err != nil {
			return mpcshare.Share{}, err
		}
		pub, err := b.Constant(tensor.ArrayT([]uint64{lowmc.BlockBits, lowmc.KeyBits}, tensor.Bit), matrix)
		if err != nil {
			return mpcshare.Share{}, err
		}
		scaled, err := proto.GemmPublic(keyAsRow, pub, false, true)
		if err != nil {
			return mpcshare.Share{}, err
		}
		return shareReshape(b, scaled, keyVecType)
	}

	wk, err := roundKey(mat.KeySchedule[0])
	if err != nil {
		return mpcshare.Share{}, err
	}
	cur, err := mpcshare.Add(b, state, wk)
	if err != nil {
		return mpcshare.Share{}, err
	}

	for r := 0; r < lowmc.Rounds; r++ {
		cur, err = sboxRound(proto, keys, rows, cur)
		if err != nil {
			return mpcshare.Share{}, err
		}

		linPub, err := b.Constant(tensor.ArrayT([]uint64{lowmc.BlockBits, lowmc.BlockBits}, tensor.Bit), mat.Linear[r])
		if err != nil {
			return mpcshare.Share{}, err
		}
		cur, err = proto.GemmPublic(cur, linPub, false, true)
		if err != nil {
			return mpcshare.Share{}, err
		}

		rcVec, err := b.Constant(keyVecType, mat.RoundConst[r])
		if err != nil {
			return mpcshare.Share{}, err
		}
		cur, err = mpcshare.AddPublic(b, cur, rcVec)
		if err != nil {
			return mpcshare.Share{}, err
		}

		rk, err := roundKey(mat.KeySchedule[r+1])
		if err != nil {
			return mpcshare.Share{}, err
		}
		cur, err = mpcshare.Add(b, cur, rk)
		if err != nil {
			return mpcshare.Share{}, err
		}
	}

	return cur, nil
}

// sboxRound applies LowMC's (a,b,c) -> (a^bc, a^b^ac, a^b^c^ab)
// substitution to the leading sboxCount bits of each row of x and
// leaves the trailing bits untouched. All 16 S-boxes are evaluated in
// one elementwise pass over their three strided bit-planes rather than
// one gate per box: the quadratic cross terms run through the same
// ABY3 private x private protocol every other bilinear gate in this
// package uses, the rest of the substitution is a local XOR.
func sboxRound(proto *mpcshare.Protocol, keys mpcshare.Keys, rows int, x mpcshare.Share) (mpcshare.Share, error) {
	b := proto.Builder()

	a, err := shareSliceStride(b, x, 0, 3)
	if err != nil {
		return mpcshare.Share{}, err
	}
	bb, err := shareSliceStride(b, x, 1, 3)
	if err != nil {
		return mpcshare.Share{}, err
	}
	c, err := shareSliceStride(b, x, 2, 3)
	if err != nil {
		return mpcshare.Share{}, err
	}
	start := int64(sboxCount)
	end := int64(lowmc.BlockBits)
	tail, err := shareSlice(b, x, []shapes.SliceElement{{}, {Start: &start, End: &end}})
	if err != nil {
		return mpcshare.Share{}, err
	}

	bc, err := proto.Multiply(keys, bb, c)
	if err != nil {
		return mpcshare.Share{}, err
	}
	ac, err := proto.Multiply(keys, a, c)
	if err != nil {
		return mpcshare.Share{}, err
	}
	ab, err := proto.Multiply(keys, a, bb)
	if err != nil {
		return mpcshare.Share{}, err
	}

	na, err := mpcshare.Add(b, a, bc)
	if err != nil {
		return mpcshare.Share{}, err
	}
	abSum, err := mpcshare.Add(b, a, bb)
	if err != nil {
		return mpcshare.Share{}, err
	}
	nb, err := mpcshare.Add(b, abSum, ac)
	if err != nil {
		return mpcshare.Share{}, err
	}
	abc, err := mpcshare.Add(b, abSum, c)
	if err != nil {
		return mpcshare.Share{}, err
	}
	nc, err := mpcshare.Add(b, abc, ab)
	if err != nil {
		return mpcshare.Share{}, err
	}

	naCols, err := shareColumns(b, na, rows)
	if err != nil {
		return mpcshare.Share{}, err
	}
	nbCols, err := shareColumns(b, nb, rows)
	if err != nil {
		return mpcshare.Share{}, err
	}
	ncCols, err := shareColumns(b, nc, rows)
	if err != nil {
		return mpcshare.Share{}, err
	}
	tailCols, err := shareColumns(b, tail, rows)
	if err != nil {
		return mpcshare.Share{}, err
	}

	interleaved := make([]mpcshare.Share, 0, lowmc.BlockBits)
	for i := range naCols {
		interleaved = append(interleaved, naCols[i], nbCols[i], ncCols[i])
	}
	interleaved = append(interleaved, tailCols...)

	return shareStackColumns(b, interleaved)
}

// shareSliceStride extracts columns offset, offset+stride,
// offset+2*stride, ... up to sboxCount from a [rows, BlockBits] Share,
// producing one of the three interleaved S-box bit-planes.
func shareSliceStride(b *graph.Builder, s mpcshare.Share, offset int64, stride int64) (mpcshare.Share, error) {
	end := int64(sboxCount)
	step := stride
	return shareSlice(b, s, []shapes.SliceElement{{}, {Start: &offset, End: &end, Step: &step}})
}
