package searchlight

import (
	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// ScoreMap is the finalized output of a run: the mean score per voxel and
// channel, plus how many neighborhoods covered each voxel.
//
// A voxel with Counts == 0 was never evaluated and holds a score of 0; use
// Evaluated (or Counts) to tell it apart from a genuine score of 0.
type ScoreMap struct {
	RunID    string
	Shape    [3]int
	Channels int
	// Centers lists the spatial index of every evaluated center, in
	// evaluation order.
	Centers []int
	// Scores is channel-major: Scores[ch][voxel].
	Scores [][]float64
	Counts []int
}

func (m *ScoreMap) index(x, y, z int) int {
	return (x*m.Shape[1]+y)*m.Shape[2] + z
}

// At returns the mean score of channel ch at (x, y, z).
func (m *ScoreMap) At(x, y, z, ch int) float64 {
	return m.Scores[ch][m.index(x, y, z)]
}

// Count returns how many neighborhoods covered (x, y, z).
func (m *ScoreMap) Count(x, y, z int) int {
	return m.Counts[m.index(x, y, z)]
}

// Evaluated reports whether any neighborhood covered (x, y, z).
func (m *ScoreMap) Evaluated(x, y, z int) bool {
	return m.Count(x, y, z) > 0
}

// Mean averages the channels of every voxel. Unevaluated voxels are 0.
func (m *ScoreMap) Mean() []float64 {
	out := make([]float64, len(m.Counts))
	if m.Channels == 0 {
		return out
	}
	for v, n := range m.Counts {
		if n == 0 {
			continue
		}
		sum := 0.0
		for ch := 0; ch < m.Channels; ch++ {
			sum += m.Scores[ch][v]
		}
		out[v] = sum / float64(m.Channels)
	}
	return out
}

// Best returns the evaluated voxel with the highest channel-mean score. ok is
// false when nothing was evaluated.
func (m *ScoreMap) Best() (voxel int, score float64, ok bool) {
	mean := m.Mean()
	for v, n := range m.Counts {
		if n == 0 {
			continue
		}
		if !ok || mean[v] > score {
			voxel, score, ok = v, mean[v], true
		}
	}
	return voxel, score, ok
}

// Tensor exports the scores as a [channels, X, Y, Z] float64 gomlx tensor.
func (m *ScoreMap) Tensor() *tensors.Tensor {
	flat := make([]float64, 0, m.Channels*len(m.Counts))
	for ch := 0; ch < m.Channels; ch++ {
		flat = append(flat, m.Scores[ch]...)
	}
	return tensors.FromFlatDataAndDimensions(flat, m.Channels, m.Shape[0], m.Shape[1], m.Shape[2])
}

// CountTensor exports the observation counts as an [X, Y, Z] int32 tensor.
func (m *ScoreMap) CountTensor() *tensors.Tensor {
	flat := make([]int32, len(m.Counts))
	for i, n := range m.Counts {
		flat[i] = int32(n)
	}
	return tensors.FromFlatDataAndDimensions(flat, m.Shape[0], m.Shape[1], m.Shape[2])
}
