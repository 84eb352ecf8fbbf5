package graph

import (
	"errors"

	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/prf"
	"github.com/luxfi/mpcgraph/tensor"
)

// Evaluator is a single-threaded, non-suspending reference interpreter
// (spec.md §5): one evaluate call runs to completion before the next
// begins, and the PRNG/PRF cache it owns are never shared across
// Evaluator instances.
type Evaluator struct {
	prng *prf.PRNG
	prfs *prf.Cache
}

// NewEvaluator builds an Evaluator seeded deterministically.
func NewEvaluator(seed [32]byte) *Evaluator {
	return &Evaluator{prng: prf.NewPRNG(seed), prfs: prf.NewCache()}
}

// NewEvaluatorFromRand builds an Evaluator seeded from crypto/rand.
func NewEvaluatorFromRand() (*Evaluator, error) {
	prng, err := prf.NewPRNGFromRand()
	if err != nil {
		return nil, err
	}
	return &Evaluator{prng: prng, prfs: prf.NewCache()}, nil
}

// Evaluate runs g to completion given one Value per Input node (in
// declaration order) and returns the output node's Value. Nodes are
// evaluated in their declared (topological) order, memoizing results
// in a dense node-indexed slice.
func (e *Evaluator) Evaluate(g *Graph, inputs []*tensor.Value) (*tensor.Value, error) {
	if !g.Finalized() {
		return nil, mpcerr.Type("graph: Evaluate called on an un-finalized graph")
	}
	if len(inputs) != len(g.InputOrder) {
		return nil, mpcerr.Value("graph: expected %d inputs, got %d", len(g.InputOrder), len(inputs))
	}
	values := make([]*tensor.Value, len(g.Nodes))
	for i, id := range g.InputOrder {
		values[id] = inputs[i]
	}
	for _, n := range g.Nodes {
		if values[n.ID] != nil {
			continue
		}
		deps := make([]*tensor.Value, len(n.Deps))
		depTypes := make([]tensor.Type, len(n.Deps))
		for i, d := range n.Deps {
			deps[i] = values[d]
			depTypes[i] = g.Nodes[d].Type
		}
		v, err := e.evaluateNode(n, deps, depTypes)
		if err != nil {
			kind := mpcerr.KindInternal
			var me *mpcerr.Error
			if errors.As(err, &me) {
				kind = me.Kind
			}
			return nil, mpcerr.Wrap(kind, err, "node %d (%s)", n.ID, n.Op.Kind)
		}
		values[n.ID] = v
	}
	return values[g.Output], nil
}

func (e *Evaluator) evaluateNode(n *Node, deps []*tensor.Value, depTypes []tensor.Type) (*tensor.Value, error) {
	switch n.Op.Kind {
	case OpInput:
		return nil, mpcerr.Internal("Input node %d reached the evaluator unbound", n.ID)
	case OpConstant:
		return n.Op.ConstantValue, nil
	case OpAdd, OpSubtract, OpMultiply, OpMixedMultiply:
		return e.evalElementwise(n, deps, depTypes)
	case OpDot:
		return e.evalDot(n, deps, depTypes)
	case OpMatmul:
		return e.evalMatmul(n, deps, depTypes)
	case OpGemm:
		return e.evalGemm(n, deps, depTypes)
	case OpSum:
		return e.evalSum(n, deps, depTypes)
	case OpPermuteAxes:
		return e.evalPermuteAxes(n, deps, depTypes)
	case OpInversePermutation:
		return e.evalInversePermutation(n, deps, depTypes)
	case OpReshape:
		return deps[0], nil
	case OpArrayToVector:
		return e.evalArrayToVector(n, deps, depTypes)
	case OpVectorToArray:
		return e.evalVectorToArray(n, deps, depTypes)
	case OpGet:
		return deps[0].At(n.Op.GetIndex)
	case OpGetSlice:
		return e.evalGetSlice(n, deps, depTypes)
	case OpGather:
		return e.evalGather(n, deps, depTypes)
	case OpStack:
		return e.evalStack(n, deps, depTypes)
	case OpZip:
		return e.evalZip(n, deps, depTypes)
	case OpTruncate:
		return e.evalTruncate(n, deps, depTypes)
	case OpRepeat:
		return e.evalRepeat(n, deps)
	case OpRandom:
		return e.randomValue(n.Op.ResultType)
	case OpRandomPermutation:
		return e.evalRandomPermutation(n)
	case OpPRF:
		return e.evalPRF(n, deps)
	case OpCuckooHash:
		return e.evalCuckooHash(n, deps, depTypes)
	case OpSimpleHash:
		return e.evalSimpleHash(n, deps, depTypes)
	case OpCuckooToPermutation:
		return e.evalCuckooToPermutation(n, deps, depTypes)
	case OpDecomposeSwitchingMap:
		return e.evalDecomposeSwitchingMap(n, deps, depTypes)
	case OpSegmentCumSum:
		return e.evalSegmentCumSum(n, deps, depTypes)
	case OpSetIntersection:
		return e.evalSetIntersection(n, deps, depTypes)
	case OpSelect:
		return e.evalSelect(n, deps, depTypes)
	case OpNop:
		return deps[0], nil
	case OpCall, OpIterate:
		return nil, mpcerr.NotImplemented("%s is not implemented by this evaluator; graphs must inline it away before evaluation", n.Op.Kind)
	default:
		return nil, mpcerr.Internal("unhandled operation kind %v", n.Op.Kind)
	}
}

// randomValue draws a uniform Value of type t from the evaluator's PRNG,
// recursing into composites; the invariant that trailing bit-array pad
// bits are zero is preserved by FromFlattenedArray's own masking.
func (e *Evaluator) randomValue(t tensor.Type) (*tensor.Value, error) {
	switch t.Kind {
	case tensor.KindScalar, tensor.KindArray:
		n := t.NumElements()
		elems := make([]uint64, n)
		for i := range elems {
			elems[i] = e.prng.NextUint64()
		}
		return tensor.FromFlattenedArray(elems, t.Scalar), nil
	case tensor.KindTuple, tensor.KindNamedTuple:
		children := make([]*tensor.Value, len(t.Elems))
		for i, et := range t.Elems {
			v, err := e.randomValue(et)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		return tensor.FromVector(children), nil
	case tensor.KindVector:
		children := make([]*tensor.Value, t.VecLen)
		for i := range children {
			v, err := e.randomValue(*t.VecElem)
			if err != nil {
				return nil, err
			}
			children[i] = v
		}
		return tensor.FromVector(children), nil
	default:
		return nil, mpcerr.Internal("randomValue: unhandled type kind %v", t.Kind)
	}
}

func (e *Evaluator) evalRandomPermutation(n *Node) (*tensor.Value, error) {
	perm := make([]uint64, n.Op.N)
	for i := range perm {
		perm[i] = uint64(i)
	}
	e.prng.Shuffle(perm)
	return tensor.FromFlattenedArray(perm, tensor.U64), nil
}

// ConstantTimeSelect implements spec.md §4.4/§9's branch-free select:
// c==1 returns onTrue, c==0 returns onFalse, via an arithmetic mask
// rather than a conditional, so a compiler cannot branch on c.
func ConstantTimeSelect(onTrue, onFalse uint64, c int) uint64 {
	mask := -uint64(c & 1)
	return (onFalse & ^mask) | (onTrue & mask)
}
