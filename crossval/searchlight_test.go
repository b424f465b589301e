package crossval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Noofbiz/brainDecode/crossval"
	"github.com/Noofbiz/brainDecode/datasets"
	"github.com/Noofbiz/brainDecode/searchlight"
)

func TestSearchlightFindsPlantedSignal(t *testing.T) {
	cfg := datasets.SynthConfig{
		Shape:             [3]int{6, 6, 6},
		BlockSize:         4,
		Conditions:        []string{"face", "house"},
		Cycles:            6,
		NChunks:           4,
		InformativeCenter: [3]int{3, 3, 3},
		InformativeRadius: 1,
		Signal:            2,
		Noise:             1,
		Seed:              11,
	}
	ds, err := datasets.Synthesize(cfg)
	require.NoError(t, err)

	sl, err := searchlight.New(cfg.Shape, searchlight.Config{Radius: 1, Workers: 4},
		crossval.Evaluator{New: crossval.NewGaussianNB})
	require.NoError(t, err)
	sm, err := sl.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, searchlight.Done, sl.State())
	assert.Greater(t, sm.At(3, 3, 3, 0), 0.9)
	assert.Less(t, sm.At(0, 0, 0, 0), 0.85)
	assert.Equal(t, 4, sm.Count(0, 0, 0))
	assert.Equal(t, 7, sm.Count(3, 3, 3))

	v, _, ok := sm.Best()
	require.True(t, ok)
	c := sl.Grid().Coord(v)
	assert.True(t, c.X >= 1 && c.X <= 5 && c.Y >= 1 && c.Y <= 5 && c.Z >= 1 && c.Z <= 5, "best voxel %v", c)
}
