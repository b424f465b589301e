package searchlight

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Noofbiz/brainDecode/datasets"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// lineDataset builds a single-sample dataset on a 1D grid of n voxels where
// voxel i holds the value i.
func lineDataset(t *testing.T, n int) *datasets.Dataset {
	t.Helper()
	data := make([]float32, n)
	for i := range data {
		data[i] = float32(i)
	}
	vol, err := datasets.NewVolume([3]int{n, 1, 1}, 1, data)
	require.NoError(t, err)
	attrs, err := datasets.NewAttributes([]string{"a"}, []int{0})
	require.NoError(t, err)
	ds, err := datasets.Join(vol, attrs)
	require.NoError(t, err)
	return ds
}

// sumEvaluator scores a neighborhood with the sum of its first sample.
var sumEvaluator = EvaluatorFunc(func(_ context.Context, features [][]float64, _ []string, _ []int) ([]float64, error) {
	sum := 0.0
	for _, v := range features[0] {
		sum += v
	}
	return []float64{sum}, nil
})

func TestConstantEvaluatorRadiusZero(t *testing.T) {
	ds := lineDataset(t, 10)
	sl, err := New(ds.Shape, Config{Radius: 0, Step: 1, Workers: 3}, EvaluatorFunc(
		func(context.Context, [][]float64, []string, []int) ([]float64, error) {
			return []float64{0.75}, nil
		}))
	require.NoError(t, err)
	assert.Equal(t, Configured, sl.State())

	sm, err := sl.Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, Done, sl.State())
	assert.NotEmpty(t, sm.RunID)
	assert.Equal(t, 1, sm.Channels)
	for x := 0; x < 10; x++ {
		assert.Equal(t, 1, sm.Count(x, 0, 0))
		assert.Equal(t, 0.75, sm.At(x, 0, 0, 0))
	}
}

// expectedLine brute-forces the overlap average on a 1D line.
func expectedLine(n int, radius int, centers []int) (scores []float64, counts []int) {
	sums := make([]float64, n)
	counts = make([]int, n)
	for _, c := range centers {
		lo, hi := c-radius, c+radius
		if lo < 0 {
			lo = 0
		}
		if hi > n-1 {
			hi = n - 1
		}
		result := 0.0
		for v := lo; v <= hi; v++ {
			result += float64(v)
		}
		for v := lo; v <= hi; v++ {
			sums[v] += result
			counts[v]++
		}
	}
	scores = make([]float64, n)
	for v := range sums {
		if counts[v] > 0 {
			scores[v] = sums[v] / float64(counts[v])
		}
	}
	return scores, counts
}

func TestOverlappingNeighborhoodsAverage(t *testing.T) {
	ds := lineDataset(t, 10)
	for _, step := range []int{1, 2, 3} {
		sl, err := New(ds.Shape, Config{Radius: 1, Step: step, Workers: 4}, sumEvaluator)
		require.NoError(t, err)
		sm, err := sl.Run(context.Background(), ds)
		require.NoError(t, err)

		var centers []int
		for c := 0; c < 10; c += step {
			centers = append(centers, c)
		}
		assert.Equal(t, centers, sm.Centers)

		wantScores, wantCounts := expectedLine(10, 1, centers)
		assert.Equal(t, wantCounts, sm.Counts, "step %d", step)
		for v := range wantScores {
			assert.InDelta(t, wantScores[v], sm.Scores[0][v], 1e-12, "step %d voxel %d", step, v)
		}
	}
}

func TestStepLeavesUncoveredVoxelsAtZero(t *testing.T) {
	ds := lineDataset(t, 10)
	sl, err := New(ds.Shape, Config{Radius: 0, Step: 3}, sumEvaluator)
	require.NoError(t, err)
	sm, err := sl.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 6, 9}, sm.Centers)
	assert.False(t, sm.Evaluated(1, 0, 0))
	assert.Equal(t, 0.0, sm.At(1, 0, 0, 0))
	// voxel 0 is evaluated with a genuine score of 0
	assert.True(t, sm.Evaluated(0, 0, 0))
	assert.Equal(t, 0.0, sm.At(0, 0, 0, 0))
	assert.Equal(t, 6.0, sm.At(6, 0, 0, 0))
}

func TestMultipleChannelsCountOnce(t *testing.T) {
	ds := lineDataset(t, 6)
	eval := EvaluatorFunc(func(_ context.Context, f [][]float64, _ []string, _ []int) ([]float64, error) {
		return []float64{1, 2, float64(len(f[0]))}, nil
	})
	sl, err := New(ds.Shape, Config{Radius: 2, Step: 1}, eval)
	require.NoError(t, err)
	sm, err := sl.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 3, sm.Channels)
	// voxel 0 is covered by centers 0, 1, 2
	assert.Equal(t, 3, sm.Count(0, 0, 0))
	assert.Equal(t, 1.0, sm.At(0, 0, 0, 0))
	assert.Equal(t, 2.0, sm.At(0, 0, 0, 1))
	// neighborhood sizes of centers 0,1,2 are 3,4,5
	assert.InDelta(t, 4.0, sm.At(0, 0, 0, 2), 1e-12)

	mean := sm.Mean()
	assert.InDelta(t, (1.0+2.0+4.0)/3, mean[0], 1e-12)

	tt := sm.Tensor()
	assert.Equal(t, []int{3, 6, 1, 1}, tt.Shape().Dimensions)
	assert.Equal(t, []int{6, 1, 1}, sm.CountTensor().Shape().Dimensions)
}

func TestSphereNeighborhoods(t *testing.T) {
	g, err := NewGrid([3]int{3, 3, 3}, nil)
	require.NoError(t, err)
	center := g.Index(Coord{1, 1, 1})

	assert.Len(t, g.Neighborhood(center, 0), 1)
	assert.Len(t, g.Neighborhood(center, 1), 7)
	assert.Len(t, g.Neighborhood(center, 1.5), 19)
	assert.Len(t, g.Neighborhood(center, 2), 27)

	// corner: clipped to in-bounds points only
	corner := g.Index(Coord{0, 0, 0})
	hood := g.Neighborhood(corner, 1)
	assert.Equal(t, []int{0, 1, 3, 9}, hood)
	assert.Equal(t, Coord{1, 0, 0}, g.Coord(9))
}

func TestMaskedCentersAndNeighborhoods(t *testing.T) {
	mask := []bool{true, false, true, true, false, true}
	g, err := NewGrid([3]int{6, 1, 1}, mask)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 3, 5}, g.Eligible())
	assert.Equal(t, []int{0, 3}, g.Centers(2))
	assert.Equal(t, []int{2, 3}, g.Neighborhood(3, 1))
}

func TestEmptyNeighborhoodFailsBeforeEvaluation(t *testing.T) {
	ds := lineDataset(t, 5)
	var calls int64
	eval := EvaluatorFunc(func(context.Context, [][]float64, []string, []int) ([]float64, error) {
		atomic.AddInt64(&calls, 1)
		return []float64{1}, nil
	})
	mask := []bool{true, true, false, true, true}
	sl, err := New(ds.Shape, Config{Radius: 0, Mask: mask, Centers: []int{0, 2, 4}}, eval)
	require.NoError(t, err)

	_, err = sl.Run(context.Background(), ds)
	require.Error(t, err)
	var cfgErr *datasets.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "center", cfgErr.Field)
	assert.Equal(t, Coord{2, 0, 0}, cfgErr.Value)
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls))
	assert.Equal(t, Failed, sl.State())
}

func TestEvaluationErrorIsFatal(t *testing.T) {
	ds := lineDataset(t, 20)
	boom := errors.New("single class in training fold")
	eval := EvaluatorFunc(func(_ context.Context, f [][]float64, _ []string, _ []int) ([]float64, error) {
		if f[0][0] == 7 {
			return nil, boom
		}
		return []float64{1}, nil
	})
	sl, err := New(ds.Shape, Config{Radius: 0, Workers: 2}, eval)
	require.NoError(t, err)

	sm, err := sl.Run(context.Background(), ds)
	require.Error(t, err)
	assert.Nil(t, sm)
	assert.ErrorIs(t, err, ErrEvaluation)
	assert.ErrorIs(t, err, boom)
	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, 7, evalErr.Center)
	assert.Equal(t, Coord{7, 0, 0}, evalErr.Coord)
	assert.Equal(t, Failed, sl.State())

	_, err = sl.Run(context.Background(), ds)
	assert.Error(t, err, "a searchlight runs once")
}

func TestChannelMismatchIsEvaluationError(t *testing.T) {
	ds := lineDataset(t, 4)
	eval := EvaluatorFunc(func(_ context.Context, f [][]float64, _ []string, _ []int) ([]float64, error) {
		if f[0][0] == 2 {
			return []float64{1, 2}, nil
		}
		return []float64{1}, nil
	})
	sl, err := New(ds.Shape, Config{}, eval)
	require.NoError(t, err)
	_, err = sl.Run(context.Background(), ds)
	assert.ErrorIs(t, err, ErrEvaluation)
}

func TestRunRejectsShapeMismatch(t *testing.T) {
	ds := lineDataset(t, 4)
	sl, err := New([3]int{2, 2, 1}, Config{}, sumEvaluator)
	require.NoError(t, err)
	_, err = sl.Run(context.Background(), ds)
	assert.ErrorIs(t, err, datasets.ErrConfiguration)
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New([3]int{2, 2, 2}, Config{Radius: -1}, sumEvaluator)
	assert.ErrorIs(t, err, datasets.ErrConfiguration)
	_, err = New([3]int{2, 2, 2}, Config{Step: -2}, sumEvaluator)
	assert.ErrorIs(t, err, datasets.ErrConfiguration)
	_, err = New([3]int{2, 2, 2}, Config{Mask: []bool{true}}, sumEvaluator)
	assert.ErrorIs(t, err, datasets.ErrConfiguration)
	_, err = New([3]int{2, 2, 2}, Config{Centers: []int{8}}, sumEvaluator)
	assert.ErrorIs(t, err, datasets.ErrConfiguration)
	_, err = New([3]int{2, 2, 2}, Config{}, nil)
	assert.ErrorIs(t, err, datasets.ErrConfiguration)
}

func TestRunIsBitIdentical(t *testing.T) {
	ds, err := datasets.Synthesize(datasets.SynthConfig{
		Shape:      [3]int{5, 4, 3},
		BlockSize:  2,
		Conditions: []string{"a", "b"},
		Cycles:     4,
		NChunks:    4,
		Noise:      1,
		Seed:       21,
	})
	require.NoError(t, err)
	meanEval := EvaluatorFunc(func(_ context.Context, f [][]float64, _ []string, _ []int) ([]float64, error) {
		sum := 0.0
		for _, row := range f {
			for _, v := range row {
				sum += v * 0.1
			}
		}
		return []float64{sum, -sum}, nil
	})

	run := func(workers int) *ScoreMap {
		sl, err := New(ds.Shape, Config{Radius: 1.8, Step: 2, Workers: workers}, meanEval)
		require.NoError(t, err)
		sm, err := sl.Run(context.Background(), ds)
		require.NoError(t, err)
		return sm
	}
	a, b := run(1), run(8)
	assert.Equal(t, a.Counts, b.Counts)
	assert.Equal(t, a.Scores, b.Scores)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestRunHonorsCancellation(t *testing.T) {
	ds := lineDataset(t, 50)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sl, err := New(ds.Shape, Config{}, sumEvaluator)
	require.NoError(t, err)
	_, err = sl.Run(ctx, ds)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Failed, sl.State())
}

func TestBestVoxel(t *testing.T) {
	ds := lineDataset(t, 5)
	sl, err := New(ds.Shape, Config{Step: 2}, sumEvaluator)
	require.NoError(t, err)
	sm, err := sl.Run(context.Background(), ds)
	require.NoError(t, err)
	v, score, ok := sm.Best()
	require.True(t, ok)
	assert.Equal(t, 4, v)
	assert.Equal(t, 4.0, score)
}
