package graph

import (
	"github.com/luxfi/mpcgraph/bitio"
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/prf"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

func (e *Evaluator) evalElementwise(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx, ty := depTypes[0], depTypes[1]
	xs, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	ys, err := deps[1].ToFlattenedArrayU64(ty)
	if err != nil {
		return nil, err
	}
	outShape := shapeOf(n.Type)
	bx, err := shapes.BroadcastToShape(xs, shapeOf(tx), outShape)
	if err != nil {
		return nil, err
	}
	by, err := shapes.BroadcastToShape(ys, shapeOf(ty), outShape)
	if err != nil {
		return nil, err
	}
	st := n.Type.Scalar
	out := make([]uint64, len(bx))
	for i := range out {
		switch n.Op.Kind {
		case OpAdd:
			out[i] = st.Mask(bx[i] + by[i])
		case OpSubtract:
			out[i] = st.Mask(bx[i] - by[i])
		case OpMultiply:
			if st.IsBit() {
				out[i] = bx[i] & by[i]
			} else {
				out[i] = st.Mask(bx[i] * by[i])
			}
		case OpMixedMultiply:
			// by is a BIT operand broadcast to the integer side's shape.
			out[i] = st.Mask(bx[i] * (by[i] & 1))
		}
	}
	return tensor.FromFlattenedArray(out, st), nil
}

func bitDot(xRow, yRow []uint64) uint64 {
	xb := tensor.FromFlattenedArray(xRow, tensor.Bit)
	yb := tensor.FromFlattenedArray(yRow, tensor.Bit)
	xBytes, _ := xb.Bytes()
	yBytes, _ := yb.Bytes()
	return uint64(bitio.BinaryDot(xBytes, yBytes))
}

func (e *Evaluator) evalDot(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx, ty := depTypes[0], depTypes[1]
	sx, sy := shapeOf(tx), shapeOf(ty)
	if len(sx) <= 1 && len(sy) <= 1 {
		xs, err := deps[0].ToFlattenedArrayU64(tx)
		if err != nil {
			return nil, err
		}
		ys, err := deps[1].ToFlattenedArrayU64(ty)
		if err != nil {
			return nil, err
		}
		if len(xs) != len(ys) {
			return nil, mpcerr.Type("Dot: vector operands have different lengths (%d vs %d)", len(xs), len(ys))
		}
		st := tx.Scalar
		var acc uint64
		if st.IsBit() {
			acc = bitDot(xs, ys)
		} else {
			for i := range xs {
				acc = st.Mask(acc + xs[i]*ys[i])
			}
		}
		return tensor.FromFlattenedArray([]uint64{acc}, st), nil
	}
	return e.evalMatmulLike(n, deps, depTypes, false, false)
}

func (e *Evaluator) evalMatmul(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	return e.evalMatmulLike(n, deps, depTypes, false, false)
}

func (e *Evaluator) evalGemm(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	return e.evalMatmulLike(n, deps, depTypes, n.Op.Transpose0, n.Op.Transpose1)
}

// transposeLast2 swaps the last two axes of a row-major flattened array.
func transposeLast2(elements []uint64, shape []uint64) ([]uint64, []uint64) {
	if len(shape) < 2 {
		return elements, shape
	}
	newShape := append([]uint64(nil), shape...)
	r, c := len(shape)-2, len(shape)-1
	newShape[r], newShape[c] = shape[c], shape[r]
	batch := shapes.NumElements(shape[:r])
	m, k := shape[r], shape[c]
	out := make([]uint64, len(elements))
	for b := uint64(0); b < batch; b++ {
		base := b * m * k
		for i := uint64(0); i < m; i++ {
			for j := uint64(0); j < k; j++ {
				out[base+j*m+i] = elements[base+i*k+j]
			}
		}
	}
	return out, newShape
}

func (e *Evaluator) evalMatmulLike(n *Node, deps []*tensor.Value, depTypes []tensor.Type, transpose0, transpose1 bool) (*tensor.Value, error) {
	tx, ty := depTypes[0], depTypes[1]
	xs, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	ys, err := deps[1].ToFlattenedArrayU64(ty)
	if err != nil {
		return nil, err
	}
	sx, sy := shapeOf(tx), shapeOf(ty)
	if transpose0 {
		xs, sx = transposeLast2(xs, sx)
	}
	if transpose1 {
		ys, sy = transposeLast2(ys, sy)
	}
	if len(sx) < 2 || len(sy) < 2 {
		return nil, mpcerr.Type("%s: operands must be rank>=2 after any transpose", n.Op.Kind)
	}
	st := tx.Scalar
	outShape := shapeOf(n.Type)
	rank := len(outShape)
	m, k := sx[len(sx)-2], sx[len(sx)-1]
	nDim := sy[len(sy)-1]
	xBatch, yBatch, outBatch := sx[:len(sx)-2], sy[:len(sy)-2], outShape[:rank-2]
	totalBatches := shapes.NumElements(outBatch)
	out := make([]uint64, totalBatches*m*nDim)
	for bi := uint64(0); bi < totalBatches; bi++ {
		bc := shapes.NumberToIndex(bi, outBatch)
		xc := shapes.BroadcastIndex(bc, xBatch, outBatch)
		yc := shapes.BroadcastIndex(bc, yBatch, outBatch)
		xBase := shapes.IndexToNumber(xc, xBatch) * m * k
		yBase := shapes.IndexToNumber(yc, yBatch) * k * nDim
		outBase := bi * m * nDim
		for i := uint64(0); i < m; i++ {
			for j := uint64(0); j < nDim; j++ {
				if st.IsBit() {
					xRow := make([]uint64, k)
					yCol := make([]uint64, k)
					copy(xRow, xs[xBase+i*k:xBase+i*k+k])
					for kk := uint64(0); kk < k; kk++ {
						yCol[kk] = ys[yBase+kk*nDim+j]
					}
					out[outBase+i*nDim+j] = bitDot(xRow, yCol)
					continue
				}
				var acc uint64
				for kk := uint64(0); kk < k; kk++ {
					acc = st.Mask(acc + xs[xBase+i*k+kk]*ys[yBase+kk*nDim+j])
				}
				out[outBase+i*nDim+j] = acc
			}
		}
	}
	return tensor.FromFlattenedArray(out, st), nil
}

func (e *Evaluator) evalSum(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	shape := shapeOf(tx)
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	st := tx.Scalar
	reduce := make(map[int]bool, len(n.Op.Axes))
	for _, a := range n.Op.Axes {
		reduce[a] = true
	}
	outShape := shapeOf(n.Type)
	total := shapes.NumElements(outShape)
	out := make([]uint64, total)

	for flat := uint64(0); flat < shapes.NumElements(shape); flat++ {
		coord := shapes.NumberToIndex(flat, shape)
		var outCoord []uint64
		for i, c := range coord {
			if !reduce[i] {
				outCoord = append(outCoord, c)
			}
		}
		outFlat := shapes.IndexToNumber(outCoord, outShape)
		if st.IsBit() {
			out[outFlat] ^= elements[flat]
		} else {
			out[outFlat] = st.Mask(out[outFlat] + elements[flat])
		}
	}
	return tensor.FromFlattenedArray(out, st), nil
}

func (e *Evaluator) evalPermuteAxes(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	shape := shapeOf(tx)
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	outShape := shapeOf(n.Type)
	total := shapes.NumElements(outShape)
	out := make([]uint64, total)
	srcCoord := make([]uint64, len(shape))
	for flat := uint64(0); flat < total; flat++ {
		outCoord := shapes.NumberToIndex(flat, outShape)
		for i, p := range n.Op.Axes {
			srcCoord[p] = outCoord[i]
		}
		out[flat] = elements[shapes.IndexToNumber(srcCoord, shape)]
	}
	return tensor.FromFlattenedArray(out, tx.Scalar), nil
}

func (e *Evaluator) evalInversePermutation(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	values, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	size := len(values)
	out := make([]uint64, size)
	seen := make([]bool, size)
	for i, v := range values {
		if v >= uint64(size) {
			return nil, mpcerr.Value("InversePermutation: value %d out of range [0,%d)", v, size)
		}
		if seen[v] {
			return nil, mpcerr.Value("InversePermutation: duplicate value %d", v)
		}
		seen[v] = true
		out[v] = uint64(i)
	}
	return tensor.FromFlattenedArray(out, tx.Scalar), nil
}

func (e *Evaluator) evalArrayToVector(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	outer := tx.Shape[0]
	perChild := shapes.NumElements(tx.Shape[1:])
	children := make([]*tensor.Value, outer)
	for i := range children {
		children[i] = tensor.FromFlattenedArray(elements[uint64(i)*perChild:uint64(i+1)*perChild], tx.Scalar)
	}
	return tensor.FromVector(children), nil
}

func (e *Evaluator) evalVectorToArray(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	elemType := *tx.VecElem
	children, err := deps[0].ToVector()
	if err != nil {
		return nil, err
	}
	var out []uint64
	for _, c := range children {
		vals, err := c.ToFlattenedArrayU64(elemType)
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return tensor.FromFlattenedArray(out, elemType.Scalar), nil
}

func (e *Evaluator) evalGetSlice(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	shape := shapeOf(tx)
	outShape, starts, steps, err := shapes.ResolveSlice(shape, n.Op.Slice)
	if err != nil {
		return nil, err
	}
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	total := shapes.NumElements(outShape)
	out := make([]uint64, total)
	for flat := uint64(0); flat < total; flat++ {
		outCoord := shapes.NumberToIndex(flat, outShape)
		inCoord := shapes.SliceIndex(outCoord, starts, steps)
		out[flat] = elements[shapes.IndexToNumber(inCoord, shape)]
	}
	return tensor.FromFlattenedArray(out, tx.Scalar), nil
}

func (e *Evaluator) evalGather(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx, ti := depTypes[0], depTypes[1]
	shape := shapeOf(tx)
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	idxVals, err := deps[1].ToFlattenedArrayU64(ti)
	if err != nil {
		return nil, err
	}
	axis := n.Op.GatherAxis
	outShape := shapeOf(n.Type)
	total := shapes.NumElements(outShape)
	out := make([]uint64, total)
	for flat := uint64(0); flat < total; flat++ {
		outCoord := shapes.NumberToIndex(flat, outShape)
		idx := idxVals[outCoord[axis]]
		if idx >= shape[axis] {
			return nil, mpcerr.Value("Gather: index %d out of range for axis of size %d", idx, shape[axis])
		}
		srcCoord := append([]uint64(nil), outCoord...)
		srcCoord[axis] = idx
		out[flat] = elements[shapes.IndexToNumber(srcCoord, shape)]
	}
	return tensor.FromFlattenedArray(out, tx.Scalar), nil
}

func (e *Evaluator) evalStack(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	outShape := shapeOf(n.Type)
	elemShape := outShape[len(n.Op.StackShape):]
	var out []uint64
	for i, dep := range deps {
		ti := depTypes[i]
		vals, err := dep.ToFlattenedArrayU64(ti)
		if err != nil {
			return nil, err
		}
		bvals, err := shapes.BroadcastToShape(vals, shapeOf(ti), elemShape)
		if err != nil {
			return nil, err
		}
		out = append(out, bvals...)
	}
	return tensor.FromFlattenedArray(out, n.Type.Scalar), nil
}

func (e *Evaluator) evalZip(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	minLen := n.Type.VecLen
	out := make([]*tensor.Value, minLen)
	for i := uint64(0); i < minLen; i++ {
		tupleChildren := make([]*tensor.Value, len(deps))
		for j, d := range deps {
			c, err := d.At(int(i))
			if err != nil {
				return nil, err
			}
			tupleChildren[j] = c
		}
		out[i] = tensor.FromVector(tupleChildren)
	}
	return tensor.FromVector(out), nil
}

func (e *Evaluator) evalTruncate(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tx := depTypes[0]
	st := tx.Scalar
	elements, err := deps[0].ToFlattenedArrayU64(tx)
	if err != nil {
		return nil, err
	}
	scale := n.Op.Scale
	out := make([]uint64, len(elements))
	for i, v := range elements {
		if st.Signed {
			out[i] = st.Mask(uint64(int64(v) / int64(scale)))
		} else {
			out[i] = st.Mask(v / scale)
		}
	}
	return tensor.FromFlattenedArray(out, st), nil
}

func (e *Evaluator) evalRepeat(n *Node, deps []*tensor.Value) (*tensor.Value, error) {
	children := make([]*tensor.Value, n.Op.N)
	for i := range children {
		children[i] = deps[0]
	}
	return tensor.FromVector(children), nil
}

func (e *Evaluator) prfValue(p *prf.PRF, iv []byte, t tensor.Type, salt int) (*tensor.Value, error) {
	switch t.Kind {
	case tensor.KindScalar, tensor.KindArray:
		n := t.NumElements()
		elems := make([]uint64, n)
		for i := range elems {
			elemIV := appendIndex(iv, salt, int(i))
			elems[i] = p.OutputUint64(elemIV)
		}
		return tensor.FromFlattenedArray(elems, t.Scalar), nil
	case tensor.KindTuple, tensor.KindNamedTuple:
		children := make([]*tensor.Value, len(t.Elems))
		for i, et := range t.Elems {
			v, err := e.prfValue(p, iv, et, salt*31+i+1)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		return tensor.FromVector(children), nil
	case tensor.KindVector:
		children := make([]*tensor.Value, t.VecLen)
		for i := range children {
			v, err := e.prfValue(p, iv, *t.VecElem, salt*31+i+1)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		return tensor.FromVector(children), nil
	default:
		return nil, mpcerr.Internal("prfValue: unhandled type kind %v", t.Kind)
	}
}

func appendIndex(iv []byte, salt, i int) []byte {
	out := make([]byte, len(iv)+8)
	copy(out, iv)
	s := uint32(salt)
	ii := uint32(i)
	out[len(iv)] = byte(s)
	out[len(iv)+1] = byte(s >> 8)
	out[len(iv)+2] = byte(s >> 16)
	out[len(iv)+3] = byte(s >> 24)
	out[len(iv)+4] = byte(ii)
	out[len(iv)+5] = byte(ii >> 8)
	out[len(iv)+6] = byte(ii >> 16)
	out[len(iv)+7] = byte(ii >> 24)
	return out
}

func (e *Evaluator) evalPRF(n *Node, deps []*tensor.Value) (*tensor.Value, error) {
	keyBytes, err := deps[0].Bytes()
	if err != nil {
		return nil, err
	}
	if len(keyBytes) < 16 {
		return nil, mpcerr.Value("PRF: key must be at least 16 bytes, got %d", len(keyBytes))
	}
	var key [16]byte
	copy(key[:], keyBytes[:16])
	p := e.prfs.Get(key)
	return e.prfValue(p, n.Op.IV, n.Op.ResultType, 0)
}

func (e *Evaluator) evalSelect(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	tc, ta, tb := depTypes[0], depTypes[1], depTypes[2]
	cVals, err := deps[0].ToFlattenedArrayU64(tc)
	if err != nil {
		return nil, err
	}
	aVals, err := deps[1].ToFlattenedArrayU64(ta)
	if err != nil {
		return nil, err
	}
	bVals, err := deps[2].ToFlattenedArrayU64(tb)
	if err != nil {
		return nil, err
	}
	outShape := shapeOf(n.Type)
	cb, err := shapes.BroadcastToShape(cVals, shapeOf(tc), outShape)
	if err != nil {
		return nil, err
	}
	ab, err := shapes.BroadcastToShape(aVals, shapeOf(ta), outShape)
	if err != nil {
		return nil, err
	}
	bb, err := shapes.BroadcastToShape(bVals, shapeOf(tb), outShape)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(ab))
	for i := range out {
		out[i] = ConstantTimeSelect(ab[i], bb[i], int(cb[i]))
	}
	return tensor.FromFlattenedArray(out, n.Type.Scalar), nil
}
