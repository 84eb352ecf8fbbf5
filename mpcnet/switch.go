package mpcnet

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/mpcshare"
)

// Switch runs the 2-of-2 Switch sub-protocol (spec.md §4.7): a
// switching map — a possibly-shrinking, possibly-duplicating,
// possibly-reordering index array known to Programmer — is first
// decomposed into permutation-with-deletion, duplication and
// permutation maps (DecomposeSwitchingMap, already an evaluator
// primitive), then applied as Permute∘Duplicate∘Permute. Grounded on
// SwitchingMPC.instantiate in the original compiler's mpc_psi.rs,
// including its exact role handoff between stages: each stage's
// output is held by (Programmer, that stage's Receiver), which
// becomes the next stage's Sender.
func Switch(b *graph.Builder, proto *mpcshare.Protocol, keys mpcshare.Keys, roles Roles, in Pair, switchMap int, n int) (Pair, error) {
	decomposed, err := b.DecomposeSwitchingMap(switchMap, n)
	if err != nil {
		return Pair{}, err
	}
	permWithDeletion, err := b.Get(decomposed, 0)
	if err != nil {
		return Pair{}, err
	}
	dupTuple, err := b.Get(decomposed, 1)
	if err != nil {
		return Pair{}, err
	}
	dupIndices, err := b.Get(dupTuple, 0)
	if err != nil {
		return Pair{}, err
	}
	dupBits, err := b.Get(dupTuple, 1)
	if err != nil {
		return Pair{}, err
	}
	permutation, err := b.Get(decomposed, 2)
	if err != nil {
		return Pair{}, err
	}

	permutedAndReduced, err := Permute(b, proto, keys, roles, in, permWithDeletion)
	if err != nil {
		return Pair{}, err
	}

	dupRoles := NewRoles(roles.Receiver, roles.Programmer)
	duplicated, err := Duplicate(b, proto, keys, dupRoles, permutedAndReduced, DuplicationMap{Indices: dupIndices, Bits: dupBits})
	if err != nil {
		return Pair{}, err
	}

	finalRoles := NewRoles(roles.Sender, roles.Programmer)
	return Permute(b, proto, keys, finalRoles, duplicated, permutation)
}
