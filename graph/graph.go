package graph

import (
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/tensor"
)

// Graph is a finalized-once, append-only list of Nodes: a DAG by
// construction, since every Node may only depend on nodes already
// appended (spec.md §9: "The computation graph is a DAG by
// construction").
type Graph struct {
	Nodes      []*Node
	InputOrder []int
	Output     int
	finalized  bool
}

// New creates an empty, unfinalized Graph.
func New() *Graph {
	return &Graph{Output: -1}
}

// addNode appends a node, validating that every dependency already
// exists in the graph, and returns its id.
func (g *Graph) addNode(op Operation, deps []int, t tensor.Type, ann Annotation) (int, error) {
	if g.finalized {
		return 0, mpcerr.Value("graph: cannot add a node to a finalized graph")
	}
	id := len(g.Nodes)
	for _, d := range deps {
		if d < 0 || d >= id {
			return 0, mpcerr.Value("graph: node %d depends on out-of-range or future node %d", id, d)
		}
	}
	n := &Node{ID: id, Op: op, Deps: append([]int(nil), deps...), Type: t, Annotation: ann}
	g.Nodes = append(g.Nodes, n)
	return id, nil
}

// SetOutput marks node id as the graph's output.
func (g *Graph) SetOutput(id int) error {
	if id < 0 || id >= len(g.Nodes) {
		return mpcerr.Value("graph: output node %d does not exist", id)
	}
	g.Output = id
	return nil
}

// Finalize freezes the graph against further mutation.
func (g *Graph) Finalize() error {
	if g.Output < 0 {
		return mpcerr.Value("graph: no output node set")
	}
	g.finalized = true
	return nil
}

// Finalized reports whether the graph has been finalized.
func (g *Graph) Finalized() bool { return g.finalized }

// Node returns the node with the given id.
func (g *Graph) Node(id int) (*Node, error) {
	if id < 0 || id >= len(g.Nodes) {
		return nil, mpcerr.Value("graph: node %d does not exist", id)
	}
	return g.Nodes[id], nil
}
