package graph

import (
	"github.com/luxfi/mpcgraph/cuckoo"
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

func (e *Evaluator) evalCuckooHash(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx, thm := depTypes[0], depTypes[1]
	shape, hmShape := shapeOf(tx), shapeOf(thm)
	if len(shape) < 2 || len(hmShape) != 3 {
		return nil, mpcerr.Type("CuckooHash: input must be rank>=2 and hash_matrices rank 3")
	}
	b := shape[len(shape)-1]
	nStrings := shape[len(shape)-2]
	batch := shape[:len(shape)-2]
	k, m, hb := hmShape[0], hmShape[1], hmShape[2]
	if hb != b {
		return nil, mpcerr.Type("CuckooHash: hash_matrices column count %d does not match string length %d", hb, b)
	}
	tableSize := uint64(1) << m

	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	hmElements, err := deps[1].ToFlattenedArrayU64(thm)
	if err != nil {
		return nil, err
	}

	matrices := make([][][]uint64, k)
	for ki := uint64(0); ki < k; ki++ {
		rows := make([][]uint64, m)
		for ri := uint64(0); ri < m; ri++ {
			row := make([]uint64, b)
			base := ki*m*b + ri*b
			copy(row, hmElements[base:base+b])
			rows[ri] = row
		}
		matrices[ki] = rows
	}

	numBatches := shapes.NumElements(batch)
	out := make([]uint64, numBatches*tableSize)
	for bi := uint64(0); bi < numBatches; bi++ {
		strings := make([][]uint64, nStrings)
		base := bi * nStrings * b
		for si := uint64(0); si < nStrings; si++ {
			row := make([]uint64, b)
			copy(row, elements[base+si*b:base+si*b+b])
			strings[si] = row
		}
		table, err := cuckoo.Hash(strings, matrices, int(tableSize))
		if err != nil {
			return nil, err
		}
		copy(out[bi*tableSize:(bi+1)*tableSize], table)
	}
	return tensor.FromFlattenedArray(out, n.Type.Scalar), nil
}

func (e *Evaluator) evalSimpleHash(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx, thm := depTypes[0], depTypes[1]
	shape, hmShape := shapeOf(tx), shapeOf(thm)
	b := shape[len(shape)-1]
	nStrings := shape[len(shape)-2]
	k, m, hb := hmShape[0], hmShape[1], hmShape[2]
	if hb != b {
		return nil, mpcerr.Type("SimpleHash: hash_matrices column count %d does not match string length %d", hb, b)
	}

	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	hmElements, err := deps[1].ToFlattenedArrayU64(thm)
	if err != nil {
		return nil, err
	}

	matrices := make([][][]uint64, k)
	for ki := uint64(0); ki < k; ki++ {
		rows := make([][]uint64, m)
		for ri := uint64(0); ri < m; ri++ {
			row := make([]uint64, b)
			base := ki*m*b + ri*b
			copy(row, hmElements[base:base+b])
			rows[ri] = row
		}
		matrices[ki] = rows
	}
	strings := make([][]uint64, nStrings)
	for si := uint64(0); si < nStrings; si++ {
		row := make([]uint64, b)
		copy(row, elements[si*b:si*b+b])
		strings[si] = row
	}

	table, err := cuckoo.SimpleHash(strings, matrices)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, k*nStrings)
	for ki, row := range table {
		copy(out[uint64(ki)*nStrings:], row)
	}
	return tensor.FromFlattenedArray(out, n.Type.Scalar), nil
}

func (e *Evaluator) evalCuckooToPermutation(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	shape := shapeOf(tx)
	if len(shape) == 0 {
		return nil, mpcerr.Type("CuckooToPermutation: input must be an array")
	}
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	tableSize := shape[len(shape)-1]
	batch := shape[:len(shape)-1]
	numBatches := shapes.NumElements(batch)
	out := make([]uint64, numBatches*tableSize)
	for bi := uint64(0); bi < numBatches; bi++ {
		table := append([]uint64(nil), elements[bi*tableSize:(bi+1)*tableSize]...)
		perm, err := cuckoo.ToPermutation(table, e.prng)
		if err != nil {
			return nil, err
		}
		copy(out[bi*tableSize:(bi+1)*tableSize], perm)
	}
	return tensor.FromFlattenedArray(out, tx.Scalar), nil
}

func (e *Evaluator) evalDecomposeSwitchingMap(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	perm1, dupMap, dupBits, perm2, err := cuckoo.DecomposeSwitchingMap(elements, n.Op.N, e.prng)
	if err != nil {
		return nil, err
	}
	perm1Val := tensor.FromFlattenedArray(perm1, tensor.U64)
	dupMapVal := tensor.FromFlattenedArray(dupMap, tensor.U64)
	dupBitsVal := tensor.FromFlattenedArray(dupBits, tensor.Bit)
	perm2Val := tensor.FromFlattenedArray(perm2, tensor.U64)
	dupTuple := tensor.FromVector([]*tensor.Value{dupMapVal, dupBitsVal})
	return tensor.FromVector([]*tensor.Value{perm1Val, dupTuple, perm2Val}), nil
}

func (e *Evaluator) evalSegmentCumSum(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	shape := shapeOf(tx)
	if len(shape) == 0 {
		return nil, mpcerr.Type("SegmentCumSum: input must be a non-scalar array")
	}
	st := tx.Scalar
	inVals, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	bitVals, err := deps[1].ToFlattenedArrayU64(depTypes[1])
	if err != nil {
		return nil, err
	}
	firstVals, err := deps[2].ToFlattenedArrayU64(depTypes[2])
	if err != nil {
		return nil, err
	}
	numRows := shape[0]
	rowSize := shapes.NumElements(shape[1:])
	out := make([]uint64, (numRows+1)*rowSize)
	copy(out[:rowSize], firstVals)
	for i := uint64(0); i < numRows; i++ {
		prevBase, curBase, inBase := i*rowSize, (i+1)*rowSize, i*rowSize
		if bitVals[i] == 0 {
			copy(out[curBase:curBase+rowSize], inVals[inBase:inBase+rowSize])
			continue
		}
		for k := uint64(0); k < rowSize; k++ {
			if st.IsBit() {
				out[curBase+k] = out[prevBase+k] ^ inVals[inBase+k]
			} else {
				out[curBase+k] = st.Mask(out[prevBase+k] + inVals[inBase+k])
			}
		}
	}
	return tensor.FromFlattenedArray(out, st), nil
}

func elemTypeOf(t tensor.Type) tensor.Type {
	if len(t.Shape) <= 1 {
		return tensor.ScalarT(t.Scalar)
	}
	return tensor.ArrayT(t.Shape[1:], t.Scalar)
}

func columnRow(col *tensor.Value, t tensor.Type, row int) (*tensor.Value, tensor.Type, error) {
	if t.Kind != tensor.KindArray || len(t.Shape) == 0 {
		return nil, tensor.Type{}, mpcerr.Type("SetIntersection: column must be a non-scalar array")
	}
	elems, err := col.ToFlattenedArrayU64(t)
	if err != nil {
		return nil, tensor.Type{}, err
	}
	perRow := shapes.NumElements(t.Shape[1:])
	sub := elems[uint64(row)*perRow : uint64(row+1)*perRow]
	rt := elemTypeOf(t)
	return tensor.FromFlattenedArray(sub, t.Scalar), rt, nil
}

// evalSetIntersection is the public reference hash-join (spec §4.4):
// rows of x with null=0 never match; for each live x row, the first
// live y row whose headerMap-linked key columns are all equal is the
// match. Non-matching rows come out all-zero with null=0.
func (e *Evaluator) evalSetIntersection(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx, ty := depTypes[0], depTypes[1]
	if tx.Kind != tensor.KindNamedTuple || ty.Kind != tensor.KindNamedTuple {
		return nil, mpcerr.Type("SetIntersection: operands must be named tuples")
	}
	xCols, err := deps[0].ToVector()
	if err != nil {
		return nil, err
	}
	yCols, err := deps[1].ToVector()
	if err != nil {
		return nil, err
	}
	xNullIdx, ok := tx.FieldIndex("null")
	if !ok {
		return nil, mpcerr.Value("SetIntersection: left operand has no null column")
	}
	yNullIdx, ok := ty.FieldIndex("null")
	if !ok {
		return nil, mpcerr.Value("SetIntersection: right operand has no null column")
	}
	nullX, err := xCols[xNullIdx].ToFlattenedArrayU64(tx.Elems[xNullIdx])
	if err != nil {
		return nil, err
	}
	nullY, err := yCols[yNullIdx].ToFlattenedArrayU64(ty.Elems[yNullIdx])
	if err != nil {
		return nil, err
	}

	type keyPair struct{ xi, yi int }
	keys := make([]keyPair, 0, len(n.Op.HeaderMap))
	for xname, yname := range n.Op.HeaderMap {
		xi, ok := tx.FieldIndex(xname)
		if !ok {
			return nil, mpcerr.Value("SetIntersection: left operand has no column %q", xname)
		}
		yi, ok := ty.FieldIndex(yname)
		if !ok {
			return nil, mpcerr.Value("SetIntersection: right operand has no column %q", yname)
		}
		keys = append(keys, keyPair{xi, yi})
	}

	numRowsX, numRowsY := len(nullX), len(nullY)
	matches := make([]int, numRowsX)
	for i := range matches {
		matches[i] = -1
	}
	for i := 0; i < numRowsX; i++ {
		if nullX[i] == 0 {
			continue
		}
		for j := 0; j < numRowsY; j++ {
			if nullY[j] == 0 {
				continue
			}
			allEqual := true
			for _, kp := range keys {
				xv, _, err := columnRow(xCols[kp.xi], tx.Elems[kp.xi], i)
				if err != nil {
					return nil, err
				}
				yv, _, err := columnRow(yCols[kp.yi], ty.Elems[kp.yi], j)
				if err != nil {
					return nil, err
				}
				if !tensor.Equal(xv, yv) {
					allEqual = false
					break
				}
			}
			if allEqual {
				matches[i] = j
				break
			}
		}
	}

	resultType := n.Type
	outCols := make([]*tensor.Value, len(resultType.Elems))
	for c, name := range resultType.Names {
		ct := resultType.Elems[c]
		if name == "null" {
			bits := make([]uint64, numRowsX)
			for i := range bits {
				if matches[i] >= 0 {
					bits[i] = 1
				}
			}
			outCols[c] = tensor.FromFlattenedArray(bits, tensor.Bit)
			continue
		}
		var rows []uint64
		if xi, ok := tx.FieldIndex(name); ok && xi != xNullIdx {
			rt := elemTypeOf(tx.Elems[xi])
			for i := 0; i < numRowsX; i++ {
				var v *tensor.Value
				if matches[i] >= 0 {
					v, _, err = columnRow(xCols[xi], tx.Elems[xi], i)
					if err != nil {
						return nil, err
					}
				} else {
					v = tensor.ZeroOf(rt)
				}
				vals, err := v.ToFlattenedArrayU64(rt)
				if err != nil {
					return nil, err
				}
				rows = append(rows, vals...)
			}
		} else if yi, ok := ty.FieldIndex(name); ok && yi != yNullIdx {
			rt := elemTypeOf(ty.Elems[yi])
			for i := 0; i < numRowsX; i++ {
				var v *tensor.Value
				if matches[i] >= 0 {
					v, _, err = columnRow(yCols[yi], ty.Elems[yi], matches[i])
					if err != nil {
						return nil, err
					}
				} else {
					v = tensor.ZeroOf(rt)
				}
				vals, err := v.ToFlattenedArrayU64(rt)
				if err != nil {
					return nil, err
				}
				rows = append(rows, vals...)
			}
		} else {
			return nil, mpcerr.Value("SetIntersection: output column %q not found in either operand", name)
		}
		outCols[c] = tensor.FromFlattenedArray(rows, ct.Scalar)
	}
	return tensor.FromVector(outCols), nil
}
