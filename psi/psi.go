// Package psi implements the private set intersection pipeline spec.md
// §4.8 describes: a masked LowMC OPRF hides each side's key column
// behind a pseudorandom value safe to reveal, a Cuckoo table routes
// one side's payload to the other side's row order without revealing
// which rows matched, and a final masked-equality pass recovers the
// intersection's null/payload columns without ever comparing a raw
// key in the clear. Grounded throughout on SetIntersectionMPC in the
// original compiler's mpc_psi.rs.
//
// Both operands' key columns must already be merged into a single BIT
// matrix by the caller: this evaluator's closed operation set has no
// arithmetic-to-binary primitive, so the original's a2b+concat step
// (get_merging_graph) cannot be reproduced here. A caller with
// multiple arithmetic key columns must convert and concatenate them
// into one BIT array before building a Dataset.
package psi

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/lowmc"
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/mpcnet"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

// Dataset is one side's private PSI operand.
type Dataset struct {
	Rows    int
	Key     mpcshare.Share   // [Rows, keyWidth] BIT, already merged
	Null    mpcshare.Share   // [Rows] BIT, 1 for a live row
	Payload []mpcshare.Share // non-key columns carried through unmodified
}

// Options configures Intersect.
type Options struct {
	// TableBits is the log2 Cuckoo table size Y is hashed into; the
	// caller picks it the way spec.md §4.4 does for CuckooHash (large
	// enough that 1<<TableBits comfortably exceeds Y.Rows).
	TableBits int
}

// Result is the PSI output, aligned to X's row order.
type Result struct {
	Null       mpcshare.Share
	XPayload   []mpcshare.Share
	YPayload   []mpcshare.Share
}

const numHashFunctions = 3

// Intersect runs the 9-step pipeline spec.md §4.8 documents, wired
// out of this package's lowmcCircuit/oprf and the Permute/Switch
// sub-protocols mpcnet already provides.
func Intersect(proto *mpcshare.Protocol, keys mpcshare.Keys, x, y Dataset, opt Options) (Result, error) {
	b := proto.Builder()
	tableSize := 1 << uint(opt.TableBits)
	if tableSize < y.Rows {
		return Result{}, mpcerr.Value("psi: table of size %d too small for %d rows", tableSize, y.Rows)
	}

	xKeyWidth, err := columnWidth(b, x.Key)
	if err != nil {
		return Result{}, err
	}
	yKeyWidth, err := columnWidth(b, y.Key)
	if err != nil {
		return Result{}, err
	}

	xReduced, err := reduceKeyWidth(proto, keys, x.Key, x.Rows, xKeyWidth)
	if err != nil {
		return Result{}, err
	}
	yReduced, err := reduceKeyWidth(proto, keys, y.Key, y.Rows, yKeyWidth)
	if err != nil {
		return Result{}, err
	}

	lowmcKeyType := tensor.ArrayT([]uint64{lowmc.KeyBits}, tensor.Bit)
	lowmcKey, err := sharedRandom(proto, keys, lowmcKeyType)
	if err != nil {
		return Result{}, err
	}

	oprfX, err := oprf(proto, keys, x.Rows, xReduced, lowmcKey, x.Null)
	if err != nil {
		return Result{}, err
	}
	oprfY, err := oprf(proto, keys, y.Rows, yReduced, lowmcKey, y.Null)
	if err != nil {
		return Result{}, err
	}

	revealedX, err := mpcshare.RevealTo(b, oprfX, 2)
	if err != nil {
		return Result{}, err
	}
	revealedY, err := mpcshare.RevealTo(b, oprfY, 1)
	if err != nil {
		return Result{}, err
	}

	matrixType := tensor.ArrayT([]uint64{numHashFunctions, uint64(opt.TableBits), lowmc.BlockBits}, tensor.Bit)
	hashMatrices, err := b.PRF(keys.Parties[2], proto.NextIV(), matrixType)
	if err != nil {
		return Result{}, err
	}

	revealedYPadded, err := padRowsZeroPlain(b, revealedY, y.Rows, tableSize)
	if err != nil {
		return Result{}, err
	}
	cuckooTableType := tensor.ArrayT([]uint64{uint64(tableSize)}, tensor.U64)
	cuckooTable, err := b.CuckooHash(revealedY, hashMatrices, cuckooTableType)
	if err != nil {
		return Result{}, err
	}
	perm, err := b.CuckooToPermutation(cuckooTable)
	if err != nil {
		return Result{}, err
	}

	simpleHashTable, err := b.SimpleHash(revealedX, hashMatrices)
	if err != nil {
		return Result{}, err
	}
	hashSlots := make([]int, numHashFunctions)
	for h := 0; h < numHashFunctions; h++ {
		hashSlots[h], err = sliceRow(b, simpleHashTable, h, x.Rows)
		if err != nil {
			return Result{}, err
		}
	}

	cuckooRoles := mpcnet.NewRoles(0, 1)
	switchRoles := mpcnet.NewRoles(1, 2)

	route := func(padded mpcshare.Share) ([numHashFunctions]mpcshare.Share, error) {
		var out [numHashFunctions]mpcshare.Share
		pair, err := reshareYToPair(b, padded)
		if err != nil {
			return out, err
		}
		permuted, err := mpcnet.Permute(b, proto, keys, cuckooRoles, pair, perm)
		if err != nil {
			return out, err
		}
		for h := 0; h < numHashFunctions; h++ {
			switched, err := mpcnet.Switch(b, proto, keys, switchRoles, permuted, hashSlots[h], tableSize)
			if err != nil {
				return out, err
			}
			out[h], err = reshareSwitchOutput(proto, keys, switched)
			if err != nil {
				return out, err
			}
		}
		return out, nil
	}

	nullPadded, err := padRowsZero(b, y.Null, y.Rows, tableSize)
	if err != nil {
		return Result{}, err
	}
	nullByHash, err := route(nullPadded)
	if err != nil {
		return Result{}, err
	}

	payloadByHash := make([][numHashFunctions]mpcshare.Share, len(y.Payload))
	for c, col := range y.Payload {
		padded, err := padRows(proto, keys, col, y.Rows, tableSize)
		if err != nil {
			return Result{}, err
		}
		payloadByHash[c], err = route(padded)
		if err != nil {
			return Result{}, err
		}
	}

	cuckooOPRF, err := b.Gather(revealedYPadded, perm, 0)
	if err != nil {
		return Result{}, err
	}

	matched := make([]mpcshare.Share, numHashFunctions)
	for h := 0; h < numHashFunctions; h++ {
		candidateY, err := b.Gather(cuckooOPRF, hashSlots[h], 0)
		if err != nil {
			return Result{}, err
		}
		eq, err := bitwiseEqual(b, revealedX, candidateY, x.Rows)
		if err != nil {
			return Result{}, err
		}
		matched[h], err = proto.MultiplyPublic(nullByHash[h], eq)
		if err != nil {
			return Result{}, err
		}
	}

	orShares := func(x, y mpcshare.Share) (mpcshare.Share, error) {
		xorxy, err := mpcshare.Add(b, x, y)
		if err != nil {
			return mpcshare.Share{}, err
		}
		andxy, err := proto.Multiply(keys, x, y)
		if err != nil {
			return mpcshare.Share{}, err
		}
		return mpcshare.Add(b, xorxy, andxy)
	}

	nullAcc := matched[0]
	for h := 1; h < numHashFunctions; h++ {
		nullAcc, err = orShares(nullAcc, matched[h])
		if err != nil {
			return Result{}, err
		}
	}

	yPayload := make([]mpcshare.Share, len(y.Payload))
	for c := range y.Payload {
		acc, err := maskRows(proto, keys, matched[0], payloadByHash[c][0])
		if err != nil {
			return Result{}, err
		}
		for h := 1; h < numHashFunctions; h++ {
			sel, err := maskRows(proto, keys, matched[h], payloadByHash[c][h])
			if err != nil {
				return Result{}, err
			}
			acc, err = mpcshare.Add(b, acc, sel)
			if err != nil {
				return Result{}, err
			}
		}
		yPayload[c] = acc
	}

	xPayload := make([]mpcshare.Share, len(x.Payload))
	for c, col := range x.Payload {
		masked, err := maskRows(proto, keys, nullAcc, col)
		if err != nil {
			return Result{}, err
		}
		xPayload[c] = masked
	}

	return Result{Null: nullAcc, XPayload: xPayload, YPayload: yPayload}, nil
}

func columnWidth(b *graph.Builder, s mpcshare.Share) (int, error) {
	t, err := nodeTypeOf(b, s.Parties[0])
	if err != nil {
		return 0, err
	}
	return int(t.Shape[len(t.Shape)-1]), nil
}

// reduceKeyWidth projects a [rows,width] key column down to LowMC's
// fixed BlockBits width: a private x private GEMM against a shared
// random matrix when width exceeds BlockBits (spec.md §4.8 step 2),
// or zero-column padding when it falls short (LowMC always operates
// on exactly BlockBits bits).
func reduceKeyWidth(proto *mpcshare.Protocol, keys mpcshare.Keys, key mpcshare.Share, rows, width int) (mpcshare.Share, error) {
	b := proto.Builder()
	switch {
	case width == lowmc.BlockBits:
		return key, nil
	case width > lowmc.BlockBits:
		rt := tensor.ArrayT([]uint64{lowmc.BlockBits, uint64(width)}, tensor.Bit)
		r, err := sharedRandom(proto, keys, rt)
		if err != nil {
			return mpcshare.Share{}, err
		}
		return proto.Gemm(keys, key, r, false, true)
	default:
		padType := tensor.ArrayT([]uint64{uint64(rows), lowmc.BlockBits - uint64(width)}, tensor.Bit)
		zero, err := b.Constant(padType, tensor.ZeroOf(padType))
		if err != nil {
			return mpcshare.Share{}, err
		}
		zeroShare := mpcshare.Share{Parties: [3]int{zero, zero, zero}}
		return shareConcatCols(b, []mpcshare.Share{key, zeroShare}, rows)
	}
}

func sliceRow(b *graph.Builder, x int, row int, width int) (int, error) {
	start := int64(row)
	end := int64(row + 1)
	sl, err := b.GetSlice(x, []shapes.SliceElement{{Start: &start, End: &end}})
	if err != nil {
		return 0, err
	}
	return b.Reshape(sl, tensor.ArrayT([]uint64{uint64(width)}, tensor.U64))
}

// bitwiseEqual returns a [rows] BIT column, 1 where every column of x
// and y agree: built from XOR (Subtract on BIT) and AND-reduction
// (Multiply on BIT) since this evaluator has no equality primitive.
func bitwiseEqual(b *graph.Builder, x, y int, rows int) (int, error) {
	xorBits, err := b.Subtract(x, y)
	if err != nil {
		return 0, err
	}
	t, err := nodeTypeOf(b, xorBits)
	if err != nil {
		return 0, err
	}
	ones, err := onesConstant(b, t)
	if err != nil {
		return 0, err
	}
	notBits, err := b.Subtract(ones, xorBits)
	if err != nil {
		return 0, err
	}
	cols, err := columns(b, notBits, rows)
	if err != nil {
		return 0, err
	}
	acc := cols[0]
	for _, c := range cols[1:] {
		acc, err = b.Multiply(acc, c)
		if err != nil {
			return 0, err
		}
	}
	return acc, nil
}

func onesConstant(b *graph.Builder, t tensor.Type) (int, error) {
	n := t.NumElements()
	ones := make([]uint64, n)
	for i := range ones {
		ones[i] = 1
	}
	return b.Constant(t, tensor.FromFlattenedArray(ones, t.Scalar))
}

// padRows extends a Share to want rows by appending fresh
// sharedRandom rows, the pad_columns pattern in the original compiler
// applied to non-null payload columns, so padding content stays
// indistinguishable from a real row to any single party.
func padRows(proto *mpcshare.Protocol, keys mpcshare.Keys, s mpcshare.Share, have, want int) (mpcshare.Share, error) {
	if want <= have {
		return s, nil
	}
	b := proto.Builder()
	t, err := nodeTypeOf(b, s.Parties[0])
	if err != nil {
		return mpcshare.Share{}, err
	}
	padShape := append([]uint64(nil), t.Shape...)
	padShape[0] = uint64(want - have)
	extra, err := sharedRandom(proto, keys, tensor.ArrayT(padShape, t.Scalar))
	if err != nil {
		return mpcshare.Share{}, err
	}
	return shareConcatRows(b, []mpcshare.Share{s, extra})
}

// padRowsZero extends s with publicly-zero rows: used for the null
// column, where padding rows must read back as "not live" (null=0)
// rather than merely unpredictable.
func padRowsZero(b *graph.Builder, s mpcshare.Share, have, want int) (mpcshare.Share, error) {
	if want <= have {
		return s, nil
	}
	t, err := nodeTypeOf(b, s.Parties[0])
	if err != nil {
		return mpcshare.Share{}, err
	}
	padShape := append([]uint64(nil), t.Shape...)
	padShape[0] = uint64(want - have)
	padType := tensor.ArrayT(padShape, t.Scalar)
	zero, err := b.Constant(padType, tensor.ZeroOf(padType))
	if err != nil {
		return mpcshare.Share{}, err
	}
	zeroShare := mpcshare.Share{Parties: [3]int{zero, zero, zero}}
	return shareConcatRows(b, []mpcshare.Share{s, zeroShare})
}

// padRowsZeroPlain is padRowsZero's counterpart for an already-revealed
// plain node rather than a Share.
func padRowsZeroPlain(b *graph.Builder, s int, have, want int) (int, error) {
	if want <= have {
		return s, nil
	}
	t, err := nodeTypeOf(b, s)
	if err != nil {
		return 0, err
	}
	padShape := append([]uint64(nil), t.Shape...)
	padShape[0] = uint64(want - have)
	padType := tensor.ArrayT(padShape, t.Scalar)
	zero, err := b.Constant(padType, tensor.ZeroOf(padType))
	if err != nil {
		return 0, err
	}
	return concatRows(b, []int{s, zero})
}

// reshareYToPair reshares a 3-of-3 Share into the 2-of-2 Pair the
// Cuckoo-table Permute step consumes: party0 receives party1's share
// and folds it in locally, party1 keeps its own share as-is, matching
// SetIntersectionMPC's "party0 holds s0+s1, party1 holds s2" resharing.
func reshareYToPair(b *graph.Builder, s mpcshare.Share) (mpcnet.Pair, error) {
	s1AtParty0, err := sendNode(b, s.Parties[1], 1, 0)
	if err != nil {
		return mpcnet.Pair{}, err
	}
	combined, err := b.Add(s.Parties[0], s1AtParty0)
	if err != nil {
		return mpcnet.Pair{}, err
	}
	return mpcnet.NewPair(0, combined, 1, s.Parties[2]), nil
}

// reshareSwitchOutput reshares Switch's 2-of-2 output (held by
// party2=Programmer and party0=Receiver) back into a 3-of-3 Share,
// using keys.Parties[0] (known to exactly parties 0 and 2) as a local
// one-time pad: party0 derives its new share directly from that key,
// party2 subtracts the same value from its local share, and party0's
// original share is forwarded to party1 to become its new share. This
// adapts the original compiler's reshare formula to this package's
// Send-annotated-Nop communication model.
func reshareSwitchOutput(proto *mpcshare.Protocol, keys mpcshare.Keys, pair mpcnet.Pair) (mpcshare.Share, error) {
	b := proto.Builder()
	s0, ok := pair.At(2)
	if !ok {
		return mpcshare.Share{}, mpcerr.Internal("psi: switch output not held by party 2")
	}
	s1, ok := pair.At(0)
	if !ok {
		return mpcshare.Share{}, mpcerr.Internal("psi: switch output not held by party 0")
	}

	t, err := nodeTypeOf(b, s0)
	if err != nil {
		return mpcshare.Share{}, err
	}
	r, err := b.PRF(keys.Parties[0], proto.NextIV(), t)
	if err != nil {
		return mpcshare.Share{}, err
	}
	newShare2, err := b.Subtract(s0, r)
	if err != nil {
		return mpcshare.Share{}, err
	}
	newShare1, err := sendNode(b, s1, 0, 1)
	if err != nil {
		return mpcshare.Share{}, err
	}
	return mpcshare.Share{Parties: [3]int{r, newShare1, newShare2}}, nil
}

func sendNode(b *graph.Builder, id, from, to int) (int, error) {
	return b.Nop(id, graph.Annotation{From: from, To: to})
}

// maskRows multiplies a [rows] private selector bit by a private
// payload column, broadcasting the selector across the payload's
// trailing dimensions the way broadcastNullColumn does for the OPRF.
func maskRows(proto *mpcshare.Protocol, keys mpcshare.Keys, mask mpcshare.Share, payload mpcshare.Share) (mpcshare.Share, error) {
	b := proto.Builder()
	t, err := nodeTypeOf(b, payload.Parties[0])
	if err != nil {
		return mpcshare.Share{}, err
	}
	if len(t.Shape) <= 1 {
		return proto.Multiply(keys, mask, payload)
	}
	colShape := make([]uint64, len(t.Shape))
	colShape[0] = t.Shape[0]
	for i := 1; i < len(colShape); i++ {
		colShape[i] = 1
	}
	colType := tensor.ArrayT(colShape, t.Scalar)
	broadcastMask, err := shareReshape(b, mask, colType)
	if err != nil {
		return mpcshare.Share{}, err
	}
	return proto.Multiply(keys, broadcastMask, payload)
}
