package graph

import (
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

// Builder accumulates Nodes into a Graph, computing each new node's
// output Type from its dependencies the way a minimal front-end type
// checker would (spec.md leaves the graph-building API external; this
// is the "minimal but real" stand-in SPEC_FULL.md §1 commits to).
type Builder struct {
	g *Graph
}

// NewBuilder creates a Builder over a fresh Graph.
func NewBuilder() *Builder {
	return &Builder{g: New()}
}

// Graph returns the Graph under construction.
func (b *Builder) Graph() *Graph { return b.g }

func (b *Builder) typeOf(id int) (tensor.Type, error) {
	n, err := b.g.Node(id)
	if err != nil {
		return tensor.Type{}, err
	}
	return n.Type, nil
}

func shapeOf(t tensor.Type) []uint64 {
	if t.Kind == tensor.KindArray {
		return t.Shape
	}
	return nil
}

// Input declares a graph input of type t, to be bound positionally by
// Evaluate's inputs argument in declaration order.
func (b *Builder) Input(t tensor.Type) (int, error) {
	id, err := b.g.addNode(Operation{Kind: OpInput, ResultType: t}, nil, t, Annotation{})
	if err != nil {
		return 0, err
	}
	b.g.InputOrder = append(b.g.InputOrder, id)
	return id, nil
}

// Constant returns v unconditionally, typed t.
func (b *Builder) Constant(t tensor.Type, v *tensor.Value) (int, error) {
	return b.g.addNode(Operation{Kind: OpConstant, ResultType: t, ConstantValue: v}, nil, t, Annotation{})
}

func (b *Builder) elementwise(kind OpKind, x, y int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	ty, err := b.typeOf(y)
	if err != nil {
		return 0, err
	}
	if tx.Scalar != ty.Scalar && kind != OpMixedMultiply {
		return 0, mpcerr.Type("%s: operand scalar types differ (%s vs %s)", kind, tx.Scalar, ty.Scalar)
	}
	outShape, err := shapes.BroadcastShape(shapeOf(tx), shapeOf(ty))
	if err != nil {
		return 0, err
	}
	st := tx.Scalar
	if kind == OpMixedMultiply {
		st = tx.Scalar
	}
	var outType tensor.Type
	if len(outShape) == 0 {
		outType = tensor.ScalarT(st)
	} else {
		outType = tensor.ArrayT(outShape, st)
	}
	return b.g.addNode(Operation{Kind: kind}, []int{x, y}, outType, Annotation{})
}

func (b *Builder) Add(x, y int) (int, error)           { return b.elementwise(OpAdd, x, y) }
func (b *Builder) Subtract(x, y int) (int, error)      { return b.elementwise(OpSubtract, x, y) }
func (b *Builder) Multiply(x, y int) (int, error)      { return b.elementwise(OpMultiply, x, y) }
func (b *Builder) MixedMultiply(x, y int) (int, error) { return b.elementwise(OpMixedMultiply, x, y) }

func matShape(shape []uint64, transpose bool) []uint64 {
	if !transpose || len(shape) < 2 {
		return shape
	}
	out := append([]uint64(nil), shape...)
	n := len(out)
	out[n-1], out[n-2] = out[n-2], out[n-1]
	return out
}

// Dot computes the inner product of two rank<=1 operands (a scalar
// result), or otherwise the same batched matrix product as Matmul.
func (b *Builder) Dot(x, y int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	ty, err := b.typeOf(y)
	if err != nil {
		return 0, err
	}
	sx, sy := shapeOf(tx), shapeOf(ty)
	if len(sx) <= 1 && len(sy) <= 1 {
		return b.g.addNode(Operation{Kind: OpDot}, []int{x, y}, tensor.ScalarT(tx.Scalar), Annotation{})
	}
	return b.matmulLike(OpDot, x, y, tx, ty, false, false)
}

// Matmul computes a batched matrix product: [...,m,k] x [...,k,n] -> [...,m,n].
func (b *Builder) Matmul(x, y int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	ty, err := b.typeOf(y)
	if err != nil {
		return 0, err
	}
	return b.matmulLike(OpMatmul, x, y, tx, ty, false, false)
}

// Gemm computes transpose(x)·transpose(y) (rank-2 operands).
func (b *Builder) Gemm(x, y int, transpose0, transpose1 bool) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	ty, err := b.typeOf(y)
	if err != nil {
		return 0, err
	}
	id, err := b.matmulLike(OpGemm, x, y, tx, ty, transpose0, transpose1)
	if err != nil {
		return 0, err
	}
	n, _ := b.g.Node(id)
	n.Op.Transpose0, n.Op.Transpose1 = transpose0, transpose1
	return id, nil
}

func (b *Builder) matmulLike(kind OpKind, x, y int, tx, ty tensor.Type, t0, t1 bool) (int, error) {
	sx, sy := matShape(shapeOf(tx), t0), matShape(shapeOf(ty), t1)
	if len(sx) < 2 || len(sy) < 2 {
		return 0, mpcerr.Type("%s: operands must be rank>=2 after any transpose", kind)
	}
	m, k1 := sx[len(sx)-2], sx[len(sx)-1]
	k2, n := sy[len(sy)-2], sy[len(sy)-1]
	if k1 != k2 {
		return 0, mpcerr.Type("%s: inner dimensions %d and %d do not match", kind, k1, k2)
	}
	batch, err := shapes.BroadcastShape(sx[:len(sx)-2], sy[:len(sy)-2])
	if err != nil {
		return 0, err
	}
	outShape := append(append([]uint64(nil), batch...), m, n)
	outType := tensor.ArrayT(outShape, tx.Scalar)
	return b.g.addNode(Operation{Kind: kind}, []int{x, y}, outType, Annotation{})
}

// Sum reduces x by modular addition along axes.
func (b *Builder) Sum(x int, axes []int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	shape := shapeOf(tx)
	keep := make([]bool, len(shape))
	for i := range keep {
		keep[i] = true
	}
	for _, a := range axes {
		if a < 0 || a >= len(shape) {
			return 0, mpcerr.Value("Sum: axis %d out of range for rank %d", a, len(shape))
		}
		keep[a] = false
	}
	var outShape []uint64
	for i, k := range keep {
		if k {
			outShape = append(outShape, shape[i])
		}
	}
	var outType tensor.Type
	if len(outShape) == 0 {
		outType = tensor.ScalarT(tx.Scalar)
	} else {
		outType = tensor.ArrayT(outShape, tx.Scalar)
	}
	return b.g.addNode(Operation{Kind: OpSum, Axes: append([]int(nil), axes...)}, []int{x}, outType, Annotation{})
}

// PermuteAxes reorders x's axes according to perm (perm[i] is the
// source axis feeding output axis i).
func (b *Builder) PermuteAxes(x int, perm []int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	shape := shapeOf(tx)
	if len(perm) != len(shape) {
		return 0, mpcerr.Value("PermuteAxes: perm length %d does not match rank %d", len(perm), len(shape))
	}
	outShape := make([]uint64, len(shape))
	for i, p := range perm {
		if p < 0 || p >= len(shape) {
			return 0, mpcerr.Value("PermuteAxes: axis %d out of range", p)
		}
		outShape[i] = shape[p]
	}
	return b.g.addNode(Operation{Kind: OpPermuteAxes, Axes: append([]int(nil), perm...)}, []int{x}, tensor.ArrayT(outShape, tx.Scalar), Annotation{})
}

// InversePermutation inverts a permutation of [0,n).
func (b *Builder) InversePermutation(x int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	return b.g.addNode(Operation{Kind: OpInversePermutation}, []int{x}, tx, Annotation{})
}

// Reshape reinterprets x's buffer under a new (equal-sized) type.
func (b *Builder) Reshape(x int, t tensor.Type) (int, error) {
	return b.g.addNode(Operation{Kind: OpReshape, ResultType: t}, []int{x}, t, Annotation{})
}

// ArrayToVector splits an array's leading axis into a Vector view.
func (b *Builder) ArrayToVector(x int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	if tx.Kind != tensor.KindArray || len(tx.Shape) == 0 {
		return 0, mpcerr.Type("ArrayToVector: operand must be a non-scalar array")
	}
	elemType := tensor.ArrayT(tx.Shape[1:], tx.Scalar)
	outType := tensor.VectorT(tx.Shape[0], elemType)
	return b.g.addNode(Operation{Kind: OpArrayToVector, ResultType: outType}, []int{x}, outType, Annotation{})
}

// VectorToArray merges a Vector of equally-shaped arrays back into one array.
func (b *Builder) VectorToArray(x int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	if tx.Kind != tensor.KindVector {
		return 0, mpcerr.Type("VectorToArray: operand must be a vector")
	}
	elem := *tx.VecElem
	outShape := append([]uint64{tx.VecLen}, shapeOf(elem)...)
	outType := tensor.ArrayT(outShape, elem.Scalar)
	return b.g.addNode(Operation{Kind: OpVectorToArray, ResultType: outType}, []int{x}, outType, Annotation{})
}

// Get extracts field index from a tuple or vector.
func (b *Builder) Get(x int, index int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	var outType tensor.Type
	switch tx.Kind {
	case tensor.KindTuple, tensor.KindNamedTuple:
		if index < 0 || index >= len(tx.Elems) {
			return 0, mpcerr.Value("Get: index %d out of range", index)
		}
		outType = tx.Elems[index]
	case tensor.KindVector:
		if uint64(index) >= tx.VecLen {
			return 0, mpcerr.Value("Get: index %d out of range for vector of length %d", index, tx.VecLen)
		}
		outType = *tx.VecElem
	default:
		return 0, mpcerr.Type("Get: operand is not a tuple or vector")
	}
	return b.g.addNode(Operation{Kind: OpGet, GetIndex: index}, []int{x}, outType, Annotation{})
}

// GetNamed extracts the named field from a NamedTuple.
func (b *Builder) GetNamed(x int, name string) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	idx, ok := tx.FieldIndex(name)
	if !ok {
		return 0, mpcerr.Value("GetNamed: no field %q", name)
	}
	return b.g.addNode(Operation{Kind: OpGet, GetIndex: idx, GetName: name}, []int{x}, tx.Elems[idx], Annotation{})
}

// GetSlice slices x per desc.
func (b *Builder) GetSlice(x int, desc []shapes.SliceElement) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	outShape, _, _, err := shapes.ResolveSlice(shapeOf(tx), desc)
	if err != nil {
		return 0, err
	}
	outType := tensor.ArrayT(outShape, tx.Scalar)
	return b.g.addNode(Operation{Kind: OpGetSlice, Slice: desc}, []int{x}, outType, Annotation{})
}

// Gather selects along axis using the indices array.
func (b *Builder) Gather(x, indices int, axis int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	ti, err := b.typeOf(indices)
	if err != nil {
		return 0, err
	}
	shape := shapeOf(tx)
	if axis < 0 || axis >= len(shape) {
		return 0, mpcerr.Value("Gather: axis %d out of range", axis)
	}
	outShape := append([]uint64(nil), shape...)
	outShape[axis] = shapeOf(ti)[len(shapeOf(ti))-1]
	return b.g.addNode(Operation{Kind: OpGather, GatherAxis: axis}, []int{x, indices}, tensor.ArrayT(outShape, tx.Scalar), Annotation{})
}

// Stack concatenates broadcasted inputs with leading shape outerShape.
func (b *Builder) Stack(inputs []int, outerShape []uint64) (int, error) {
	if len(inputs) == 0 {
		return 0, mpcerr.Value("Stack: at least one input required")
	}
	t0, err := b.typeOf(inputs[0])
	if err != nil {
		return 0, err
	}
	outShape := append(append([]uint64(nil), outerShape...), shapeOf(t0)...)
	outType := tensor.ArrayT(outShape, t0.Scalar)
	return b.g.addNode(Operation{Kind: OpStack, StackShape: outerShape}, inputs, outType, Annotation{})
}

// Zip interleaves equal-length vectors, stopping at the shortest.
func (b *Builder) Zip(inputs []int) (int, error) {
	if len(inputs) == 0 {
		return 0, mpcerr.Value("Zip: at least one input required")
	}
	elems := make([]tensor.Type, len(inputs))
	minLen := uint64(0)
	for i, id := range inputs {
		t, err := b.typeOf(id)
		if err != nil {
			return 0, err
		}
		if t.Kind != tensor.KindVector {
			return 0, mpcerr.Type("Zip: all operands must be vectors")
		}
		elems[i] = *t.VecElem
		if i == 0 || t.VecLen < minLen {
			minLen = t.VecLen
		}
	}
	outType := tensor.VectorT(minLen, tensor.TupleT(elems...))
	return b.g.addNode(Operation{Kind: OpZip}, inputs, outType, Annotation{})
}

// Truncate performs signed-aware integer division by scale.
func (b *Builder) Truncate(x int, scale uint64) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	return b.g.addNode(Operation{Kind: OpTruncate, Scale: scale}, []int{x}, tx, Annotation{})
}

// Repeat builds an n-vector of x.
func (b *Builder) Repeat(x int, n int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	outType := tensor.VectorT(uint64(n), tx)
	return b.g.addNode(Operation{Kind: OpRepeat, N: n}, []int{x}, outType, Annotation{})
}

// Random samples a uniform value of type t.
func (b *Builder) Random(t tensor.Type) (int, error) {
	return b.g.addNode(Operation{Kind: OpRandom, ResultType: t}, nil, t, Annotation{})
}

// RandomPermutation samples a uniform permutation of [0,n).
func (b *Builder) RandomPermutation(n int) (int, error) {
	t := tensor.ArrayT([]uint64{uint64(n)}, tensor.U64)
	return b.g.addNode(Operation{Kind: OpRandomPermutation, N: n}, nil, t, Annotation{})
}

// PRF deterministically emits a value of type t from a key node and an iv.
func (b *Builder) PRF(key int, iv []byte, t tensor.Type) (int, error) {
	return b.g.addNode(Operation{Kind: OpPRF, IV: append([]byte(nil), iv...), ResultType: t}, []int{key}, t, Annotation{})
}

// CuckooHash hashes x into a table of type resultType using hashMatrices.
func (b *Builder) CuckooHash(x, hashMatrices int, resultType tensor.Type) (int, error) {
	return b.g.addNode(Operation{Kind: OpCuckooHash, ResultType: resultType}, []int{x, hashMatrices}, resultType, Annotation{})
}

// SimpleHash evaluates every row of hashMatrices against every string
// in x without collision resolution, producing one candidate table
// index per (hash function, string) pair.
func (b *Builder) SimpleHash(x, hashMatrices int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	thm, err := b.typeOf(hashMatrices)
	if err != nil {
		return 0, err
	}
	shape := shapeOf(tx)
	hmShape := shapeOf(thm)
	if len(shape) < 2 || len(hmShape) != 3 {
		return 0, mpcerr.Type("SimpleHash: input must be rank>=2 and hash_matrices rank 3")
	}
	nStrings := shape[len(shape)-2]
	k := hmShape[0]
	resultType := tensor.ArrayT([]uint64{k, nStrings}, tensor.U64)
	return b.g.addNode(Operation{Kind: OpSimpleHash, ResultType: resultType}, []int{x, hashMatrices}, resultType, Annotation{})
}

// CuckooToPermutation fills sentinel dummies in x with a random permutation.
func (b *Builder) CuckooToPermutation(x int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	return b.g.addNode(Operation{Kind: OpCuckooToPermutation}, []int{x}, tx, Annotation{})
}

// DecomposeSwitchingMap decomposes x (a map into [0,n)) into perm1,(dup,dupBits),perm2.
func (b *Builder) DecomposeSwitchingMap(x int, n int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	shape := shapeOf(tx)
	dupType := tensor.TupleT(tensor.ArrayT(shape, tensor.U64), tensor.ArrayT(shape, tensor.Bit))
	outType := tensor.TupleT(tensor.ArrayT(shape, tensor.U64), dupType, tensor.ArrayT(shape, tensor.U64))
	return b.g.addNode(Operation{Kind: OpDecomposeSwitchingMap, N: n}, []int{x}, outType, Annotation{})
}

// SegmentCumSum produces the running segment-reset cumulative sum described
// in spec.md §4.4: out[0]=firstRow; out[i]=in[i-1] (bits[i-1]=0) or
// out[i-1]+in[i-1] (bits[i-1]=1), for i in [1,len(in)+1).
func (b *Builder) SegmentCumSum(x, bits, firstRow int) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	shape := shapeOf(tx)
	outShape := append([]uint64(nil), shape...)
	outShape[0]++
	outType := tensor.ArrayT(outShape, tx.Scalar)
	return b.g.addNode(Operation{Kind: OpSegmentCumSum}, []int{x, bits, firstRow}, outType, Annotation{})
}

// SetIntersection hash-joins x and y's key columns per headerMap.
func (b *Builder) SetIntersection(x, y int, headerMap map[string]string, resultType tensor.Type) (int, error) {
	return b.g.addNode(Operation{Kind: OpSetIntersection, HeaderMap: headerMap, ResultType: resultType}, []int{x, y}, resultType, Annotation{})
}

// Select computes select(a,b,c) = c ? a : b elementwise, c a BIT operand.
func (b *Builder) Select(c, a, bNode int) (int, error) {
	ta, err := b.typeOf(a)
	if err != nil {
		return 0, err
	}
	return b.g.addNode(Operation{Kind: OpSelect}, []int{c, a, bNode}, ta, Annotation{})
}

// Nop marks x as requiring inter-party transfer; identity during simulation.
func (b *Builder) Nop(x int, ann Annotation) (int, error) {
	tx, err := b.typeOf(x)
	if err != nil {
		return 0, err
	}
	ann.Send = true
	return b.g.addNode(Operation{Kind: OpNop}, []int{x}, tx, ann)
}

// SetOutput marks id as the graph's output node.
func (b *Builder) SetOutput(id int) error { return b.g.SetOutput(id) }

// Finalize freezes the graph.
func (b *Builder) Finalize() error { return b.g.Finalize() }
