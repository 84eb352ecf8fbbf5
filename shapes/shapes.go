// Package shapes implements row-major index arithmetic, NumPy-style
// broadcasting and slice resolution shared by the graph evaluator's
// tensor operations.
package shapes

import "github.com/luxfi/mpcgraph/mpcerr"

// NumElements is the product of shape's dimensions (1 for an empty shape).
func NumElements(shape []uint64) uint64 {
	n := uint64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// IndexToNumber converts a row-major coordinate to its flat index.
func IndexToNumber(coord, shape []uint64) uint64 {
	var n uint64
	for i, c := range coord {
		n = n*shape[i] + c
	}
	return n
}

// NumberToIndex is the inverse of IndexToNumber.
func NumberToIndex(n uint64, shape []uint64) []uint64 {
	coord := make([]uint64, len(shape))
	for i := len(shape) - 1; i >= 0; i-- {
		d := shape[i]
		if d == 0 {
			coord[i] = 0
			continue
		}
		coord[i] = n % d
		n /= d
	}
	return coord
}

// BroadcastShape computes the common NumPy-broadcast shape of two
// shapes: dims are aligned from the right, a dimension of 1 (or a
// missing leading dimension) is stretched to match the other operand.
func BroadcastShape(a, b []uint64) ([]uint64, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]uint64, n)
	for i := 0; i < n; i++ {
		da := dimFromRight(a, i, n)
		db := dimFromRight(b, i, n)
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
		case db == 1:
			out[n-1-i] = da
		default:
			return nil, mpcerr.Type("cannot broadcast shapes %v and %v", a, b)
		}
	}
	return out, nil
}

func dimFromRight(shape []uint64, iFromRight, targetLen int) uint64 {
	idx := len(shape) - 1 - iFromRight
	if idx < 0 {
		return 1
	}
	return shape[idx]
}

// BroadcastIndex maps a coordinate in dstShape back into the
// coordinate space of srcShape under the same right-aligned
// broadcasting rule: dimensions of size 1 (or absent) collapse to
// index 0.
func BroadcastIndex(dstCoord []uint64, srcShape, dstShape []uint64) []uint64 {
	srcRank := len(srcShape)
	dstRank := len(dstShape)
	srcCoord := make([]uint64, srcRank)
	for i := 0; i < srcRank; i++ {
		dstAxis := dstRank - srcRank + i
		d := srcShape[i]
		if d == 1 {
			srcCoord[i] = 0
		} else {
			srcCoord[i] = dstCoord[dstAxis]
		}
	}
	return srcCoord
}

// BroadcastToShape expands a flat row-major array from srcShape to
// dstShape (which must be its broadcast target), returning the
// resulting flat array.
func BroadcastToShape(src []uint64, srcShape, dstShape []uint64) ([]uint64, error) {
	total := NumElements(dstShape)
	out := make([]uint64, total)
	srcStrides := stridesOf(srcShape)
	for flat := uint64(0); flat < total; flat++ {
		dstCoord := NumberToIndex(flat, dstShape)
		srcCoord := BroadcastIndex(dstCoord, srcShape, dstShape)
		srcFlat := uint64(0)
		for i, c := range srcCoord {
			srcFlat += c * srcStrides[i]
		}
		out[flat] = src[srcFlat]
	}
	return out, nil
}

func stridesOf(shape []uint64) []uint64 {
	n := len(shape)
	strides := make([]uint64, n)
	acc := uint64(1)
	for i := n - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= shape[i]
	}
	return strides
}

// SliceElement describes one axis of a NumPy-style slice: [Start, End)
// with step Step, any of which may be unset (nil) to mean "default".
// Negative Start/End count from the end of the axis, matching NumPy.
type SliceElement struct {
	Start *int64
	End   *int64
	Step  *int64
}

// ResolveSlice computes the output shape and, for each axis, the
// (start, step) pair needed to map an output coordinate back to an
// input coordinate.
func ResolveSlice(shape []uint64, desc []SliceElement) (outShape []uint64, starts, steps []int64, err error) {
	if len(desc) > len(shape) {
		return nil, nil, nil, mpcerr.Value("slice has more axes (%d) than shape (%d)", len(desc), len(shape))
	}
	outShape = make([]uint64, len(shape))
	starts = make([]int64, len(shape))
	steps = make([]int64, len(shape))
	for axis, dim := range shape {
		step := int64(1)
		start := int64(0)
		end := int64(dim)
		if axis < len(desc) {
			d := desc[axis]
			if d.Step != nil {
				step = *d.Step
				if step == 0 {
					return nil, nil, nil, mpcerr.Value("slice step must be non-zero")
				}
			}
			if step > 0 {
				start, end = 0, int64(dim)
			} else {
				start, end = int64(dim)-1, -1
			}
			if d.Start != nil {
				start = normalizeForStep(*d.Start, int64(dim), step)
			}
			if d.End != nil {
				end = normalizeForStep(*d.End, int64(dim), step)
			}
		}
		starts[axis] = start
		steps[axis] = step
		var count int64
		if step > 0 {
			if end > start {
				count = (end - start + step - 1) / step
			}
		} else {
			if start > end {
				count = (start - end + (-step) - 1) / (-step)
			}
		}
		if count < 0 {
			count = 0
		}
		outShape[axis] = uint64(count)
	}
	return outShape, starts, steps, nil
}

func normalizeForStep(v, dim, step int64) int64 {
	if v < 0 {
		v += dim
	}
	if step > 0 {
		if v < 0 {
			v = 0
		}
		if v > dim {
			v = dim
		}
	} else {
		if v < -1 {
			v = -1
		}
		if v >= dim {
			v = dim - 1
		}
	}
	return v
}

// SliceIndex resolves an output coordinate (for a slice described by
// starts/steps, as returned by ResolveSlice) back to the input
// coordinate it reads from.
func SliceIndex(outCoord []uint64, starts, steps []int64) []uint64 {
	in := make([]uint64, len(outCoord))
	for i, c := range outCoord {
		in[i] = uint64(starts[i] + int64(c)*steps[i])
	}
	return in
}
