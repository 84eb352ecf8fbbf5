// Package graph implements the typed tensor computation graph and its
// reference evaluator: a closed operation set dispatched by a single
// memoizing, topological-order walk (spec.md §4.4).
package graph

import (
	"github.com/luxfi/mpcgraph/shapes"
	"github.com/luxfi/mpcgraph/tensor"
)

// OpKind tags the closed set of operation variants a Node may carry.
type OpKind int

const (
	OpInput OpKind = iota
	OpConstant
	OpAdd
	OpSubtract
	OpMultiply
	OpMixedMultiply
	OpDot
	OpMatmul
	OpGemm
	OpSum
	OpPermuteAxes
	OpInversePermutation
	OpReshape
	OpArrayToVector
	OpVectorToArray
	OpGet
	OpGetSlice
	OpGather
	OpStack
	OpZip
	OpTruncate
	OpRepeat
	OpRandom
	OpRandomPermutation
	OpPRF
	OpCuckooHash
	OpSimpleHash
	OpCuckooToPermutation
	OpDecomposeSwitchingMap
	OpSegmentCumSum
	OpSetIntersection
	OpSelect
	OpCall
	OpIterate
	OpNop
)

func (k OpKind) String() string {
	switch k {
	case OpInput:
		return "Input"
	case OpConstant:
		return "Constant"
	case OpAdd:
		return "Add"
	case OpSubtract:
		return "Subtract"
	case OpMultiply:
		return "Multiply"
	case OpMixedMultiply:
		return "MixedMultiply"
	case OpDot:
		return "Dot"
	case OpMatmul:
		return "Matmul"
	case OpGemm:
		return "Gemm"
	case OpSum:
		return "Sum"
	case OpPermuteAxes:
		return "PermuteAxes"
	case OpInversePermutation:
		return "InversePermutation"
	case OpReshape:
		return "Reshape"
	case OpArrayToVector:
		return "ArrayToVector"
	case OpVectorToArray:
		return "VectorToArray"
	case OpGet:
		return "Get"
	case OpGetSlice:
		return "GetSlice"
	case OpGather:
		return "Gather"
	case OpStack:
		return "Stack"
	case OpZip:
		return "Zip"
	case OpTruncate:
		return "Truncate"
	case OpRepeat:
		return "Repeat"
	case OpRandom:
		return "Random"
	case OpRandomPermutation:
		return "RandomPermutation"
	case OpPRF:
		return "PRF"
	case OpCuckooHash:
		return "CuckooHash"
	case OpSimpleHash:
		return "SimpleHash"
	case OpCuckooToPermutation:
		return "CuckooToPermutation"
	case OpDecomposeSwitchingMap:
		return "DecomposeSwitchingMap"
	case OpSegmentCumSum:
		return "SegmentCumSum"
	case OpSetIntersection:
		return "SetIntersection"
	case OpSelect:
		return "Select"
	case OpCall:
		return "Call"
	case OpIterate:
		return "Iterate"
	case OpNop:
		return "Nop"
	default:
		return "Unknown"
	}
}

// Annotation marks a node as requiring inter-party transfer in a
// future distributed scheduler. During single-process simulation a
// Nop-annotated node is semantically identity (spec.md §5).
type Annotation struct {
	Send   bool
	From   int
	To     int
	Parent string
}

// Operation is the closed sum type every Node carries, tagged by Kind.
// Only the fields relevant to Kind are populated; the rest hold their
// zero value.
type Operation struct {
	Kind OpKind

	// Sum / PermuteAxes: axes operated on.
	Axes []int

	// Gemm: transpose flags for each operand.
	Transpose0, Transpose1 bool

	// Truncate: integer divisor.
	Scale uint64

	// Repeat / RandomPermutation / DecomposeSwitchingMap: count.
	N int

	// PRF: initialization vector mixed into the keyed output.
	IV []byte

	// Constant: the literal value returned unconditionally.
	ConstantValue *tensor.Value

	// GetSlice: per-axis slice description.
	Slice []shapes.SliceElement

	// Gather: axis indices select along.
	GatherAxis int

	// Get: tuple/vector/named-tuple field selector.
	GetIndex int
	GetName  string

	// Stack: leading shape of the stacked result.
	StackShape []uint64

	// SetIntersection: header name pairs (X column -> Y column) for the
	// key columns the join is performed on.
	HeaderMap map[string]string

	// Result type, set by the builder for Input, Constant, Random, PRF,
	// Reshape, ArrayToVector, VectorToArray, CuckooHash, SimpleHash and
	// SetIntersection; the evaluator reads it for Random and PRF.
	ResultType tensor.Type
}
