package mpcnet

import (
	"github.com/luxfi/mpcgraph/graph"
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/mpcshare"
)

// Permute runs the 2-of-2 Permute sub-protocol (spec.md §4.7): Sender
// and Programmer hold in as a 2-of-2 sharing of a column; permutation
// is a plaintext permutation array known to Programmer. The result is
// a 2-of-2 sharing of the permuted column, held by Programmer and
// Receiver.
//
//  1. Programmer composes perm = perm_r ∘ perm_s, a random factoring of
//     its permutation, and sends perm_s/perm_r to Sender/Receiver.
//  2. Sender permutes and masks its share with a mask shared with
//     Programmer, and forwards the masked column to Receiver.
//  3. Receiver permutes the masked column again and removes a second
//     mask shared with Programmer — this is Receiver's output share.
//  4. Programmer reconstructs the matching output share locally from
//     the two masks (which it knows) plus its own permuted share.
func Permute(b *graph.Builder, proto *mpcshare.Protocol, keys mpcshare.Keys, roles Roles, in Pair, permutation int) (Pair, error) {
	senderShare, ok := in.At(roles.Sender)
	if !ok {
		return Pair{}, mpcerr.Value("mpcnet.Permute: sender %d holds no share", roles.Sender)
	}
	programmerShare, ok := in.At(roles.Programmer)
	if !ok {
		return Pair{}, mpcerr.Value("mpcnet.Permute: programmer %d holds no share", roles.Programmer)
	}

	ct, err := nodeTypeOf(b, senderShare)
	if err != nil {
		return Pair{}, err
	}
	n, err := numEntries(ct)
	if err != nil {
		return Pair{}, err
	}

	senderPerm, err := b.RandomPermutation(n)
	if err != nil {
		return Pair{}, err
	}
	invSenderPerm, err := b.InversePermutation(senderPerm)
	if err != nil {
		return Pair{}, err
	}
	receiverPerm, err := b.Gather(invSenderPerm, permutation, 0)
	if err != nil {
		return Pair{}, err
	}

	senderPermSent, err := send(b, senderPerm, roles.Programmer, roles.Sender)
	if err != nil {
		return Pair{}, err
	}
	receiverPermSent, err := send(b, receiverPerm, roles.Programmer, roles.Receiver)
	if err != nil {
		return Pair{}, err
	}

	keySP := hiddenKey(keys, roles.Receiver)
	keyPR := hiddenKey(keys, roles.Sender)

	senderColumnPermuted, err := b.Gather(senderShare, senderPermSent, 0)
	if err != nil {
		return Pair{}, err
	}
	permutedType, err := nodeTypeOf(b, senderColumnPermuted)
	if err != nil {
		return Pair{}, err
	}
	senderColumnMask, err := b.PRF(keySP, proto.NextIV(), permutedType)
	if err != nil {
		return Pair{}, err
	}
	senderColumnMasked, err := b.Subtract(senderColumnPermuted, senderColumnMask)
	if err != nil {
		return Pair{}, err
	}
	senderColumnMaskedSent, err := send(b, senderColumnMasked, roles.Sender, roles.Receiver)
	if err != nil {
		return Pair{}, err
	}

	receiverResult, err := b.Gather(senderColumnMaskedSent, receiverPermSent, 0)
	if err != nil {
		return Pair{}, err
	}
	receiverMask, err := b.PRF(keyPR, proto.NextIV(), permutedType)
	if err != nil {
		return Pair{}, err
	}
	receiverResult, err = b.Subtract(receiverResult, receiverMask)
	if err != nil {
		return Pair{}, err
	}

	maskPermuted, err := b.Gather(senderColumnMask, receiverPermSent, 0)
	if err != nil {
		return Pair{}, err
	}
	programmerResult, err := b.Add(maskPermuted, receiverMask)
	if err != nil {
		return Pair{}, err
	}
	programmerPermuted, err := b.Gather(programmerShare, permutation, 0)
	if err != nil {
		return Pair{}, err
	}
	programmerResult, err = b.Add(programmerResult, programmerPermuted)
	if err != nil {
		return Pair{}, err
	}

	return NewPair(roles.Programmer, programmerResult, roles.Receiver, receiverResult), nil
}
