package searchlight

import (
	"fmt"
)

// accumulator is the dense sum/count buffer of the aggregating phase. sums is
// channel-major: sums[ch][voxel]. It is owned by a single goroutine.
type accumulator struct {
	sums   [][]float64
	counts []int
}

func newAccumulator(size, channels int) *accumulator {
	sums := make([][]float64, channels)
	for ch := range sums {
		sums[ch] = make([]float64, size)
	}
	return &accumulator{sums: sums, counts: make([]int, size)}
}

// add spreads one neighborhood result over every voxel it covers. Each call
// is one observation per covered voxel, whatever the number of channels.
func (a *accumulator) add(voxels []int, scores []float64) error {
	if len(scores) != len(a.sums) {
		return fmt.Errorf("evaluator returned %d scores, expected %d", len(scores), len(a.sums))
	}
	for _, v := range voxels {
		a.counts[v]++
		for ch, s := range scores {
			a.sums[ch][v] += s
		}
	}
	return nil
}

// finalize turns sums into means in place. Voxels never observed keep 0.
func (a *accumulator) finalize() {
	for v, n := range a.counts {
		if n == 0 {
			continue
		}
		inv := float64(n)
		for ch := range a.sums {
			a.sums[ch][v] /= inv
		}
	}
}
