package cuckoo

import (
	"github.com/luxfi/mpcgraph/mpcerr"
	"github.com/luxfi/mpcgraph/prf"
)

// DecomposeSwitchingMap decomposes an arbitrary map [0,mapSize) -> [0,n)
// (which may both omit and repeat target indices, unlike a true
// permutation) into perm1 / (dupMap, dupBits) / perm2, such that
// Compose(perm1, dupMap, dupBits, perm2) reconstructs switchingMap.
// perm1 and perm2 are permutations of size mapSize; dupMap and
// dupBits describe, for each position of perm1, which group of
// perm1 positions maps to the same original target and whether this
// position is a duplicate (dupBits[i]==1) of the group's first
// occurrence (dupMap[i]) or the first occurrence itself (dupBits[i]==0).
func DecomposeSwitchingMap(switchingMap []uint64, n int, rng *prf.PRNG) (perm1, dupMap, dupBits, perm2 []uint64, err error) {
	mapSize := len(switchingMap)
	missingFlags := make([]bool, n)
	for i := range missingFlags {
		missingFlags[i] = true
	}

	existingIndices := make([]uint64, 0, mapSize)
	switchIndexes := make(map[uint64][]uint64, mapSize)
	for i, idx := range switchingMap {
		if int(idx) >= n {
			return nil, nil, nil, nil, mpcerr.Value("cuckoo: switching map index %d out of range [0,%d)", idx, n)
		}
		if _, ok := switchIndexes[idx]; !ok {
			existingIndices = append(existingIndices, idx)
		}
		switchIndexes[idx] = append(switchIndexes[idx], uint64(i))
		missingFlags[idx] = false
	}

	missingIndices := make([]uint64, 0, n)
	for i, flag := range missingFlags {
		if flag {
			missingIndices = append(missingIndices, uint64(i))
		}
	}
	rng.Shuffle(missingIndices)

	perm1 = make([]uint64, 0, mapSize)
	dupMap = make([]uint64, 0, mapSize)
	dupBits = make([]uint64, 0, mapSize)
	permFromSwitchToPerm1 := make([]uint64, 0, mapSize)
	missingIdxPos := 0

	for _, inputIndex := range existingIndices {
		locations := switchIndexes[inputIndex]
		perm1 = append(perm1, inputIndex)
		currentDup := uint64(len(perm1) - 1)
		dupMap = append(dupMap, currentDup)
		dupBits = append(dupBits, 0)
		for k := 0; k < len(locations)-1; k++ {
			perm1 = append(perm1, missingIndices[missingIdxPos])
			dupMap = append(dupMap, currentDup)
			dupBits = append(dupBits, 1)
			missingIdxPos++
		}
		permFromSwitchToPerm1 = append(permFromSwitchToPerm1, locations...)
	}

	perm2 = make([]uint64, mapSize)
	for i, pos := range permFromSwitchToPerm1 {
		perm2[pos] = uint64(i)
	}
	return perm1, dupMap, dupBits, perm2, nil
}

// Compose reconstructs the original switching map from a
// DecomposeSwitchingMap result: result[i] = perm1[dupMap[perm2[i]]].
func Compose(perm1, dupMap, dupBits []uint64, perm2 []uint64) []uint64 {
	_ = dupBits
	result := make([]uint64, len(perm1))
	for i := range perm2 {
		result[i] = perm1[dupMap[perm2[i]]]
	}
	return result
}
