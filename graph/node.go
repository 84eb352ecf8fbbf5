package graph

import "github.com/luxfi/mpcgraph/tensor"

// Node is one entry in a Graph: an Operation plus the ids of the
// dependency nodes it reads, in the left-to-right order the evaluator
// must preserve (spec.md §5: "dependency order is left-to-right by
// the graph's recorded dependency list"), and the output Type the
// builder computed for it.
type Node struct {
	ID         int
	Op         Operation
	Deps       []int
	Type       tensor.Type
	Annotation Annotation
}
