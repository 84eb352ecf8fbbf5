// Package mpcnet implements the 2-of-2 Permute, Duplicate and Switch
// sub-protocols spec.md §4.7 describes — the building blocks the PSI
// pipeline uses to route each party's Cuckoo table rows into the
// positions a switching map dictates, without revealing the map to
// the party whose data is being rearranged. Grounded on the Permute
// and Duplicate protocols from mpc_psi.rs in the original compiler
// (itself citing https://eprint.iacr.org/2019/518.pdf), expressed here
// directly against graph.Builder since this evaluator has no
// custom-op instantiation pass to lazily build these circuits.
package mpcnet

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/mpcshare"
	"github.com/luxfi/mpcgraph/tensor"
)

// Roles names which of the three parties (0, 1, 2) play Sender,
// Programmer and Receiver in a 2-of-2 protocol step. Receiver is
// derived automatically: the only party that is neither Sender nor
// Programmer.
type Roles struct {
	Sender     int
	Programmer int
	Receiver   int
}

// NewRoles builds a Roles triple from the two named parties.
func NewRoles(sender, programmer int) Roles {
	return Roles{Sender: sender, Programmer: programmer, Receiver: 3 - sender - programmer}
}

// Pair is a 2-of-2 replicated sharing: Holder[i] names the physical
// party holding Node[i].
type Pair struct {
	Holder [2]int
	Node   [2]int
}

// NewPair builds a Pair from two (party, node) assignments.
func NewPair(partyA, nodeA, partyB, nodeB int) Pair {
	return Pair{Holder: [2]int{partyA, partyB}, Node: [2]int{nodeA, nodeB}}
}

// At returns the node a given party holds, or ok=false if that party
// holds neither share.
func (p Pair) At(party int) (int, bool) {
	for i, h := range p.Holder {
		if h == party {
			return p.Node[i], true
		}
	}
	return 0, false
}

// hiddenKey returns the PRF key unknown to partyID. In a 3-party
// replicated key triple this key is known to exactly the other two
// parties — grounded on get_hidden_prf_key in the original compiler's
// mpc_psi.rs ("party k knows keys[k] and keys[(k+1)%3], has no clue
// about keys[(k-1)%3]", i.e. key j is known to {j, j-1}, so the key
// hidden from party p sits at index (p+2)%3).
func hiddenKey(keys mpcshare.Keys, partyID int) int {
	return keys.Parties[(partyID+2)%3]
}

func nodeTypeOf(b *graph.Builder, id int) (tensor.Type, error) {
	n, err := b.Graph().Node(id)
	if err != nil {
		return tensor.Type{}, err
	}
	return n.Type, nil
}

func numEntries(t tensor.Type) (int, error) {
	if t.Kind != tensor.KindArray || len(t.Shape) == 0 {
		return 0, mpcerr.Type("mpcnet: column must be a non-scalar array")
	}
	return int(t.Shape[0]), nil
}

func send(b *graph.Builder, id, from, to int) (int, error) {
	return b.Nop(id, graph.Annotation{From: from, To: to})
}
