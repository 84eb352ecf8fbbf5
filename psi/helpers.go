package psi

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

func nodeTypeOf(b *graph.Builder, id int) (tensor.Type, error) {
	n, err := b.Graph().Node(id)
	if err != nil {
		return tensor.Type{}, err
	}
	return n.Type, nil
}

// shareMap applies f to each of a Share's three party-local nodes.
func shareMap(f func(id int) (int, error), s mpcshare.Share) (mpcshare.Share, error) {
	var out mpcshare.Share
	for p := 0; p < 3; p++ {
		id, err := f(s.Parties[p])
		if err != nil {
			return mpcshare.Share{}, err
		}
		out.Parties[p] = id
	}
	return out, nil
}

func shareSlice(b *graph.Builder, s mpcshare.Share, desc []shapes.SliceElement) (mpcshare.Share, error) {
	return shareMap(func(id int) (int, error) { return b.GetSlice(id, desc) }, s)
}

func shareReshape(b *graph.Builder, s mpcshare.Share, t tensor.Type) (mpcshare.Share, error) {
	return shareMap(func(id int) (int, error) { return b.Reshape(id, t) }, s)
}

// sharedRandom draws a replicated sharing of a value unknown to any
// single party: party p's local share is PRF(key_p, iv), exactly the
// generate_shared_random_array pattern in the original compiler's
// mpc_psi.rs -- the three shares sum to a value no party alone knows,
// since each party is missing one of the three keys.
func sharedRandom(proto *mpcshare.Protocol, keys mpcshare.Keys, t tensor.Type) (mpcshare.Share, error) {
	iv := proto.NextIV()
	var out mpcshare.Share
	for p := 0; p < 3; p++ {
		id, err := proto.Builder().PRF(keys.Parties[p], iv, t)
		if err != nil {
			return mpcshare.Share{}, err
		}
		out.Parties[p] = id
	}
	return out, nil
}

func colSlice(b *graph.Builder, x int, start, end int64) (int, error) {
	return b.GetSlice(x, []shapes.SliceElement{{}, {Start: &start, End: &end}})
}

func colSliceStep(b *graph.Builder, x int, start, end, step int64) (int, error) {
	return b.GetSlice(x, []shapes.SliceElement{{}, {Start: &start, End: &end, Step: &step}})
}

// columns decomposes a [rows, w] node into w individual [rows] column
// nodes, the same GetSlice+Reshape trick mpcnet's concatRows uses for
// rows, generalized to columns.
func columns(b *graph.Builder, x int, rows int) ([]int, error) {
	t, err := nodeTypeOf(b, x)
	if err != nil {
		return nil, err
	}
	w := int(t.Shape[len(t.Shape)-1])
	rowType := tensor.ArrayT([]uint64{uint64(rows)}, t.Scalar)
	out := make([]int, w)
	for c := 0; c < w; c++ {
		sl, err := colSlice(b, x, int64(c), int64(c+1))
		if err != nil {
			return nil, err
		}
		out[c], err = b.Reshape(sl, rowType)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// stackColumns is the inverse of columns: it rebuilds a [rows, len(cols)]
// node from individually-built [rows] column nodes. Stack only
// prepends a leading dimension, so the columns are stacked into
// [len(cols), rows] first and then transposed into row-major order.
func stackColumns(b *graph.Builder, cols []int) (int, error) {
	stacked, err := b.Stack(cols, []uint64{uint64(len(cols))})
	if err != nil {
		return 0, err
	}
	return b.PermuteAxes(stacked, []int{1, 0})
}

// concatRows rebuilds a single [n, ...] node from parts, each a
// [len_i, ...] node, by decomposing every part into individual rows
// and restacking -- Stack only combines equal-shaped inputs, so this
// is the same adaptation mpcnet's concatRows makes, generalized from
// two parts (first row, remaining rows) to an arbitrary list.
func concatRows(b *graph.Builder, parts []int) (int, error) {
	var rows []int
	var entryType tensor.Type
	for _, part := range parts {
		t, err := nodeTypeOf(b, part)
		if err != nil {
			return 0, err
		}
		n := int(t.Shape[0])
		et := tensor.ArrayT(t.Shape[1:], t.Scalar)
		if len(t.Shape) == 1 {
			et = tensor.ScalarT(t.Scalar)
		}
		entryType = et
		for i := 0; i < n; i++ {
			sl, err := colSliceRows(b, part, int64(i), int64(i+1))
			if err != nil {
				return 0, err
			}
			row, err := b.Reshape(sl, et)
			if err != nil {
				return 0, err
			}
			rows = append(rows, row)
		}
	}
	_ = entryType
	return b.Stack(rows, []uint64{uint64(len(rows))})
}

func colSliceRows(b *graph.Builder, x int, start, end int64) (int, error) {
	return b.GetSlice(x, []shapes.SliceElement{{Start: &start, End: &end}})
}

// shareColumns splits a [rows, w] Share into w individual [rows]
// column Shares, applying columns() to each party and zipping the
// results back into per-column Shares.
func shareColumns(b *graph.Builder, s mpcshare.Share, rows int) ([]mpcshare.Share, error) {
	var perParty [3][]int
	for p := 0; p < 3; p++ {
		cols, err := columns(b, s.Parties[p], rows)
		if err != nil {
			return nil, err
		}
		perParty[p] = cols
	}
	w := len(perParty[0])
	out := make([]mpcshare.Share, w)
	for c := 0; c < w; c++ {
		out[c] = mpcshare.Share{Parties: [3]int{perParty[0][c], perParty[1][c], perParty[2][c]}}
	}
	return out, nil
}

// shareStackColumns is the inverse of shareColumns: it rebuilds a
// [rows, len(cols)] Share from individually-built [rows] column Shares.
func shareStackColumns(b *graph.Builder, cols []mpcshare.Share) (mpcshare.Share, error) {
	var out mpcshare.Share
	for p := 0; p < 3; p++ {
		nodes := make([]int, len(cols))
		for i, c := range cols {
			nodes[i] = c.Parties[p]
		}
		id, err := stackColumns(b, nodes)
		if err != nil {
			return mpcshare.Share{}, err
		}
		out.Parties[p] = id
	}
	return out, nil
}

// shareConcatCols rebuilds a single [rows, w] Share from parts, each a
// [rows, w_i] Share, by splitting every part into individual column
// Shares and restacking them in order -- the column-axis counterpart
// of shareConcatRows.
func shareConcatCols(b *graph.Builder, parts []mpcshare.Share, rows int) (mpcshare.Share, error) {
	var cols []mpcshare.Share
	for _, part := range parts {
		partCols, err := shareColumns(b, part, rows)
		if err != nil {
			return mpcshare.Share{}, err
		}
		cols = append(cols, partCols...)
	}
	return shareStackColumns(b, cols)
}

// shareConcatRows applies concatRows to each party of a list of Shares.
func shareConcatRows(b *graph.Builder, parts []mpcshare.Share) (mpcshare.Share, error) {
	var out mpcshare.Share
	for p := 0; p < 3; p++ {
		nodes := make([]int, len(parts))
		for i, s := range parts {
			nodes[i] = s.Parties[p]
		}
		id, err := concatRows(b, nodes)
		if err != nil {
			return mpcshare.Share{}, err
		}
		out.Parties[p] = id
	}
	return out, nil
}
