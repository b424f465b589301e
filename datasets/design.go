package datasets

import (
	"math"
	"math/rand"
	"sort"
)

// GenerateLabels expands a block-design schedule into one label per sample.
// Each condition in conditions is repeated blockSize times consecutively and
// the whole pattern is repeated nCycles times, so the result has length
// blockSize*len(conditions)*nCycles.
//
// Example: GenerateLabels(4, []string{"closed", "open"}, 48) returns 384
// labels starting "closed" x4, "open" x4, "closed" x4, ...
func GenerateLabels(blockSize int, conditions []string, nCycles int) ([]string, error) {
	if blockSize <= 0 {
		return nil, configErr("block_size", blockSize, "must be > 0")
	}
	if len(conditions) == 0 {
		return nil, configErr("conditions", conditions, "at least one condition is required")
	}
	if nCycles <= 0 {
		return nil, configErr("n_cycles", nCycles, "must be > 0")
	}

	labels := make([]string, 0, blockSize*len(conditions)*nCycles)
	for c := 0; c < nCycles; c++ {
		for _, cond := range conditions {
			for i := 0; i < blockSize; i++ {
				labels = append(labels, cond)
			}
		}
	}
	return labels, nil
}

// GenerateChunks returns nChunks consecutive runs of length chunkSize where
// every element of run i is i. It does not check the result against any
// label sequence or data volume; Join does that.
func GenerateChunks(chunkSize, nChunks int) ([]int, error) {
	if chunkSize <= 0 {
		return nil, configErr("chunk_size", chunkSize, "must be > 0")
	}
	if nChunks <= 0 {
		return nil, configErr("n_chunks", nChunks, "must be > 0")
	}
	chunks := make([]int, chunkSize*nChunks)
	for i := range chunks {
		chunks[i] = i / chunkSize
	}
	return chunks, nil
}

// Partition is a strict bipartition of the sample indices [0, N).
// Train and Test are sorted ascending and never overlap.
type Partition struct {
	N     int
	Train []int
	Test  []int
}

// IsTrain reports whether idx belongs to the training side.
func (p Partition) IsTrain(idx int) bool {
	i := sort.SearchInts(p.Train, idx)
	return i < len(p.Train) && p.Train[i] == idx
}

// IsTest reports whether idx belongs to the test side.
func (p Partition) IsTest(idx int) bool {
	i := sort.SearchInts(p.Test, idx)
	return i < len(p.Test) && p.Test[i] == idx
}

// SplitIndices shuffles [0, n) with a PRNG seeded by seed and cuts the
// permutation at floor(trainFraction*n). The same (n, trainFraction, seed)
// always yields the same partition.
func SplitIndices(n int, trainFraction float64, seed int64) (Partition, error) {
	if n <= 0 {
		return Partition{}, configErr("n", n, "must be > 0")
	}
	if math.IsNaN(trainFraction) || trainFraction < 0 || trainFraction > 1 {
		return Partition{}, configErr("train_fraction", trainFraction, "must be within [0, 1]")
	}

	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(perm), func(i, j int) {
		perm[i], perm[j] = perm[j], perm[i]
	})

	cut := int(math.Floor(trainFraction * float64(n)))
	train := append([]int(nil), perm[:cut]...)
	test := append([]int(nil), perm[cut:]...)
	sort.Ints(train)
	sort.Ints(test)

	return Partition{N: n, Train: train, Test: test}, nil
}
