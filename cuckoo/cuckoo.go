// Package cuckoo implements Cuckoo hashing over bit-string keys, the
// Cuckoo-table-to-permutation conversion, and switching-map
// decomposition, as used by the PSI hashing step (spec.md §8 scenarios
// 3-5). Hashing follows
// <https://eprint.iacr.org/2018/579.pdf>, Section 3.2, with
// eviction cycling hash functions sequentially rather than choosing
// one at random — an intentional deviation documented in the same
// paper's Appendix B as not materially affecting the failure
// probability, and the one this package's reference evaluator takes.
package cuckoo

import (
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/prf"
)

// DummyElement marks an empty Cuckoo table slot.
const DummyElement = ^uint64(0)

// maxEvictions bounds the number of consecutive re-insertions
// attempted before hashing is declared to have failed; 100 is the
// empirical bound from the Cuckoo hashing paper cited above.
const maxEvictions = 100

// Hash inserts len(strings) bit-strings into a single Cuckoo table of
// size tableSize using the given hash function matrices (each a
// rows x cols GF(2) matrix, row-major, one bit per uint64 slot).
// strings[i] must each have length >= the matrices' column count.
func Hash(strings [][]uint64, hashMatrices [][][]uint64, tableSize int) ([]uint64, error) {
	if len(hashMatrices) == 0 {
		return nil, mpcerr.Value("cuckoo: at least one hash function is required")
	}
	numHash := len(hashMatrices)
	table := make([]uint64, tableSize)
	usedFn := make([]int, tableSize)
	for i := range table {
		table[i] = DummyElement
		usedFn[i] = -1
	}

	for stringIdx := range strings {
		currentIdx := stringIdx
		currentFn := 0
		inserted := false
		for attempt := 0; attempt < maxEvictions; attempt++ {
			newIndex, err := hashOf(strings[currentIdx], hashMatrices[currentFn])
			if err != nil {
				return nil, err
			}
			if newIndex >= tableSize {
				return nil, mpcerr.Internal("cuckoo: hash function produced out-of-range index %d", newIndex)
			}
			if table[newIndex] == DummyElement {
				table[newIndex] = uint64(currentIdx)
				usedFn[newIndex] = currentFn
				inserted = true
				break
			}
			oldIdx := table[newIndex]
			oldFn := usedFn[newIndex]
			table[newIndex] = uint64(currentIdx)
			usedFn[newIndex] = currentFn
			// Cycle hash functions iteratively on eviction rather than
			// the classical random walk; see the package doc comment.
			currentIdx = int(oldIdx)
			currentFn = (oldFn + 1) % numHash
		}
		if !inserted {
			return nil, mpcerr.Value("cuckoo: hashing failed to place all %d elements within %d evictions", len(strings), maxEvictions)
		}
	}
	return table, nil
}

// SimpleHash evaluates every hash function against every string
// without any collision resolution, producing k candidate slots per
// string (the PSI protocol's "simple hash map", used on the side that
// only needs candidate positions, not a placement -- spec.md §4.8
// step 5/12).
func SimpleHash(strings [][]uint64, hashMatrices [][][]uint64) ([][]uint64, error) {
	if len(hashMatrices) == 0 {
		return nil, mpcerr.Value("cuckoo: at least one hash function is required")
	}
	out := make([][]uint64, len(hashMatrices))
	for fn, matrix := range hashMatrices {
		row := make([]uint64, len(strings))
		for i, s := range strings {
			idx, err := hashOf(s, matrix)
			if err != nil {
				return nil, err
			}
			row[i] = uint64(idx)
		}
		out[fn] = row
	}
	return out, nil
}

func hashOf(bits []uint64, matrix [][]uint64) (int, error) {
	index := 0
	for row, cols := range matrix {
		bit := 0
		for col, m := range cols {
			if col >= len(bits) {
				break
			}
			bit ^= int(m&1 & (bits[col] & 1))
		}
		index |= bit << row
	}
	return index, nil
}

func constantTimeSelect(onTrue, onFalse uint64, cond int) uint64 {
	mask := -uint64(cond & 1)
	return (onTrue & mask) | (onFalse &^ mask)
}

// ToPermutation converts a Cuckoo table (real entries plus
// DummyElement placeholders) into a permutation of [0, len(table)):
// dummy slots are filled, in constant time with respect to which
// slots were dummy, with a random assignment of the indices the real
// entries left unused.
func ToPermutation(table []uint64, rng *prf.PRNG) ([]uint64, error) {
	tableSize := uint64(len(table))
	var numDummies uint64
	seen := make(map[uint64]bool, len(table))
	var distinct uint64
	for _, v := range table {
		if v == DummyElement {
			numDummies++
			continue
		}
		if !seen[v] {
			seen[v] = true
			distinct++
		}
	}
	if distinct+numDummies != tableSize {
		return nil, mpcerr.Value("cuckoo: table contains duplicate non-dummy indices")
	}

	remaining := make([]uint64, 0, numDummies)
	for i := tableSize - numDummies; i < tableSize; i++ {
		remaining = append(remaining, i)
	}
	if len(remaining) == 0 {
		// Supports the constant-time select below even with no dummies.
		remaining = append(remaining, DummyElement)
	}
	rng.Shuffle(remaining)

	result := make([]uint64, tableSize)
	current := 0
	for i, v := range table {
		isDummy := 0
		if v == DummyElement {
			isDummy = 1
		} else if v >= tableSize-numDummies {
			return nil, mpcerr.Value("cuckoo: index %d is out of range for %d real entries", v, tableSize-numDummies)
		}
		result[i] = constantTimeSelect(remaining[current], v, isDummy)
		if isDummy == 1 && current+1 < len(remaining) {
			current++
		}
	}
	return result, nil
}
