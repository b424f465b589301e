package datasets

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rampVolume(t *testing.T, shape [3]int, n int) *Volume {
	t.Helper()
	voxels := shape[0] * shape[1] * shape[2]
	data := make([]float32, n*voxels)
	for i := range data {
		data[i] = float32(i)
	}
	v, err := NewVolume(shape, n, data)
	require.NoError(t, err)
	return v
}

func TestNewVolumeValidates(t *testing.T) {
	_, err := NewVolume([3]int{2, 2, 0}, 1, nil)
	assert.ErrorIs(t, err, ErrConfiguration)
	_, err = NewVolume([3]int{2, 2, 2}, 2, make([]float32, 8))
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestVolumeGather(t *testing.T) {
	v := rampVolume(t, [3]int{2, 2, 2}, 3)
	assert.Equal(t, 8, v.Voxels())
	assert.Equal(t, float32(8+5), v.At(1, 5))

	rows := v.Gather([]int{0, 7})
	require.Len(t, rows, 3)
	assert.Equal(t, []float64{0, 7}, rows[0])
	assert.Equal(t, []float64{16, 23}, rows[2])

	rows = v.GatherSamples([]int{2}, []int{1})
	assert.Equal(t, [][]float64{{17}}, rows)
}

func TestVolumeCSVRoundTrip(t *testing.T) {
	v := rampVolume(t, [3]int{2, 3, 1}, 4)
	path := filepath.Join(t.TempDir(), "vol", "bold.csv")
	require.NoError(t, WriteVolumeCSV(path, v))

	got, err := LoadVolumeCSV(path, v.Shape)
	require.NoError(t, err)
	assert.Equal(t, v.NumSamples, got.NumSamples)
	assert.Equal(t, v.Data(), got.Data())

	_, err = LoadVolumeCSV(path, [3]int{2, 2, 1})
	assert.Error(t, err)
}

func TestLoadMaskCSV(t *testing.T) {
	data := []float32{0, 1, 1, 0}
	v, err := NewVolume([3]int{2, 2, 1}, 1, data)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "mask.csv")
	require.NoError(t, WriteVolumeCSV(path, v))

	mask, err := LoadMaskCSV(path, [3]int{2, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, true, false}, mask)
}

func TestDatasetSplit(t *testing.T) {
	v := rampVolume(t, [3]int{1, 1, 2}, 6)
	labels, _ := GenerateLabels(1, []string{"a", "b"}, 3)
	chunks, _ := GenerateChunks(2, 3)
	attrs, err := NewAttributes(labels, chunks)
	require.NoError(t, err)
	ds, err := Join(v, attrs)
	require.NoError(t, err)

	p, err := SplitIndices(ds.Len(), 0.5, 7)
	require.NoError(t, err)
	train, test, err := ds.Split(p)
	require.NoError(t, err)
	assert.Equal(t, 3, train.Len())
	assert.Equal(t, 3, test.Len())
	for i, idx := range p.Train {
		assert.Equal(t, ds.Labels[idx], train.Labels[i])
		assert.Equal(t, ds.Sample(idx), train.Sample(i))
	}

	_, _, err = ds.Split(Partition{N: 4})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestFeatures(t *testing.T) {
	v := rampVolume(t, [3]int{1, 1, 3}, 2)
	assert.Equal(t, [][]float64{{3, 4, 5}}, v.Features([]int{1}))
	assert.Len(t, v.Features(nil), 2)
}
