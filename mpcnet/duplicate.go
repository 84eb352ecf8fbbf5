package mpcnet

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

// DuplicationMap is the Programmer-known map spec.md §4.7's Duplicate
// step applies: Indices (a U64 array) and Bits (a BIT array of the
// same length) together encode which rows of the input column get
// repeated — row i of the output is row Indices[i] of the input, and
// Bits[i]=1 marks rows whose value should come from repeating the
// previous output row rather than a fresh input row.
type DuplicationMap struct {
	Indices int
	Bits    int
}

func dropLeadingDim(t tensor.Type) tensor.Type {
	if len(t.Shape) <= 1 {
		return tensor.ScalarT(t.Scalar)
	}
	return tensor.ArrayT(t.Shape[1:], t.Scalar)
}

func withLeadingDim(t tensor.Type, n uint64) tensor.Type {
	shape := append([]uint64{n}, t.Shape...)
	return tensor.ArrayT(shape, t.Scalar)
}

func rowSlice(b *graph.Builder, x int, start, end int64) (int, error) {
	return b.GetSlice(x, []shapes.SliceElement{{Start: &start, End: &end}})
}

// concatRows rebuilds a 1-row node and an (n-1)-row node into a single
// n-row array, matching the shape the Rust original assembles via
// create_tuple/reshape/vector_to_array — this evaluator instead
// decomposes the (n-1)-row node back into individual rows and
// restacks, since Stack only combines same-shaped inputs.
func concatRows(b *graph.Builder, first int, rest int, n int) (int, error) {
	entryType, err := nodeTypeOf(b, first)
	if err != nil {
		return 0, err
	}
	rows := make([]int, n)
	rows[0] = first
	for i := 1; i < n; i++ {
		sl, err := rowSlice(b, rest, int64(i-1), int64(i))
		if err != nil {
			return 0, err
		}
		row, err := b.Reshape(sl, entryType)
		if err != nil {
			return 0, err
		}
		rows[i] = row
	}
	return b.Stack(rows, []uint64{uint64(n)})
}

// Duplicate runs the 2-of-2 Duplicate sub-protocol (spec.md §4.7):
// Sender and Programmer hold in as a 2-of-2 sharing of a column;
// dup is known to Programmer. The result is a 2-of-2 sharing of the
// duplicated column, held by Programmer and Receiver.
func Duplicate(b *graph.Builder, proto *mpcshare.Protocol, keys mpcshare.Keys, roles Roles, in Pair, dup DuplicationMap) (Pair, error) {
	senderShare, ok := in.At(roles.Sender)
	if !ok {
		return Pair{}, mpcerr.Value("mpcnet.Duplicate: sender %d holds no share", roles.Sender)
	}
	programmerShare, ok := in.At(roles.Programmer)
	if !ok {
		return Pair{}, mpcerr.Value("mpcnet.Duplicate: programmer %d holds no share", roles.Programmer)
	}

	columnType, err := nodeTypeOf(b, senderShare)
	if err != nil {
		return Pair{}, err
	}
	n, err := numEntries(columnType)
	if err != nil {
		return Pair{}, err
	}

	keySP := hiddenKey(keys, roles.Receiver)
	keyPR := hiddenKey(keys, roles.Sender)

	if n == 1 {
		bP, err := b.PRF(keySP, proto.NextIV(), columnType)
		if err != nil {
			return Pair{}, err
		}
		bR, err := b.Subtract(senderShare, bP)
		if err != nil {
			return Pair{}, err
		}
		bR, err = send(b, bR, roles.Sender, roles.Receiver)
		if err != nil {
			return Pair{}, err
		}
		r, err := b.PRF(keyPR, proto.NextIV(), columnType)
		if err != nil {
			return Pair{}, err
		}
		progResult, err := b.Subtract(bP, r)
		if err != nil {
			return Pair{}, err
		}
		progResult, err = b.Add(progResult, programmerShare)
		if err != nil {
			return Pair{}, err
		}
		recvResult, err := b.Add(bR, r)
		if err != nil {
			return Pair{}, err
		}
		return NewPair(roles.Programmer, progResult, roles.Receiver, recvResult), nil
	}

	keySR := hiddenKey(keys, roles.Programmer)
	entryType := dropLeadingDim(columnType)
	woutEntryType := withLeadingDim(entryType, uint64(n-1))

	biR, err := b.PRF(keySR, proto.NextIV(), woutEntryType)
	if err != nil {
		return Pair{}, err
	}
	w0, err := b.PRF(keySR, proto.NextIV(), woutEntryType)
	if err != nil {
		return Pair{}, err
	}
	w1, err := b.PRF(keySR, proto.NextIV(), woutEntryType)
	if err != nil {
		return Pair{}, err
	}

	entry0Slice, err := rowSlice(b, senderShare, 0, 1)
	if err != nil {
		return Pair{}, err
	}
	entry0, err := b.Reshape(entry0Slice, entryType)
	if err != nil {
		return Pair{}, err
	}
	b0P, err := b.PRF(keySP, proto.NextIV(), entryType)
	if err != nil {
		return Pair{}, err
	}
	b0R, err := b.Subtract(entry0, b0P)
	if err != nil {
		return Pair{}, err
	}
	b0R, err = send(b, b0R, roles.Sender, roles.Receiver)
	if err != nil {
		return Pair{}, err
	}

	bR, err := concatRows(b, b0R, biR, n)
	if err != nil {
		return Pair{}, err
	}

	phi, err := b.PRF(keySP, proto.NextIV(), tensor.ArrayT([]uint64{uint64(n - 1)}, tensor.Bit))
	if err != nil {
		return Pair{}, err
	}

	dupBitsWoutFirst, err := rowSlice(b, dup.Bits, 1, int64(n))
	if err != nil {
		return Pair{}, err
	}

	selectedWForM0, err := b.Select(phi, w1, w0)
	if err != nil {
		return Pair{}, err
	}
	selectedWForM1, err := b.Select(phi, w0, w1)
	if err != nil {
		return Pair{}, err
	}

	senderWoutFirst, err := rowSlice(b, senderShare, 1, int64(n))
	if err != nil {
		return Pair{}, err
	}
	bRWoutFirst, err := rowSlice(b, bR, 1, int64(n))
	if err != nil {
		return Pair{}, err
	}
	bRWoutLast, err := rowSlice(b, bR, 0, int64(n-1))
	if err != nil {
		return Pair{}, err
	}

	m0, err := b.Subtract(senderWoutFirst, bRWoutFirst)
	if err != nil {
		return Pair{}, err
	}
	m0, err = b.Subtract(m0, selectedWForM0)
	if err != nil {
		return Pair{}, err
	}
	m1, err := b.Subtract(bRWoutLast, bRWoutFirst)
	if err != nil {
		return Pair{}, err
	}
	m1, err = b.Subtract(m1, selectedWForM1)
	if err != nil {
		return Pair{}, err
	}
	m0, err = send(b, m0, roles.Sender, roles.Programmer)
	if err != nil {
		return Pair{}, err
	}
	m1, err = send(b, m1, roles.Sender, roles.Programmer)
	if err != nil {
		return Pair{}, err
	}

	r, err := b.PRF(keyPR, proto.NextIV(), columnType)
	if err != nil {
		return Pair{}, err
	}

	rho, err := b.Add(dupBitsWoutFirst, phi)
	if err != nil {
		return Pair{}, err
	}
	rho, err = send(b, rho, roles.Programmer, roles.Receiver)
	if err != nil {
		return Pair{}, err
	}
	selectedWForProgrammer, err := b.Select(rho, w1, w0)
	if err != nil {
		return Pair{}, err
	}
	selectedWForProgrammer, err = send(b, selectedWForProgrammer, roles.Receiver, roles.Programmer)
	if err != nil {
		return Pair{}, err
	}

	mPlusW, err := b.Select(dupBitsWoutFirst, m1, m0)
	if err != nil {
		return Pair{}, err
	}
	mPlusW, err = b.Add(mPlusW, selectedWForProgrammer)
	if err != nil {
		return Pair{}, err
	}

	bP, err := b.SegmentCumSum(mPlusW, dupBitsWoutFirst, b0P)
	if err != nil {
		return Pair{}, err
	}

	gathered, err := b.Gather(programmerShare, dup.Indices, 0)
	if err != nil {
		return Pair{}, err
	}
	progResult, err := b.Subtract(bP, r)
	if err != nil {
		return Pair{}, err
	}
	progResult, err = b.Add(progResult, gathered)
	if err != nil {
		return Pair{}, err
	}
	recvResult, err := b.Add(bR, r)
	if err != nil {
		return Pair{}, err
	}

	return NewPair(roles.Programmer, progResult, roles.Receiver, recvResult), nil
}
