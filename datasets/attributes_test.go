package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesValidateContiguousChunks(t *testing.T) {
	_, err := NewAttributes([]string{"a", "b", "a"}, []int{0, 0, 1})
	require.NoError(t, err)

	// chunk 0 reappears after chunk 1: a run split across groups
	_, err = NewAttributes([]string{"a", "b", "a"}, []int{0, 1, 0})
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = NewAttributes([]string{"a", "b"}, []int{0})
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAttributesClassesAndGroups(t *testing.T) {
	a, err := NewAttributes([]string{"open", "closed", "open", "closed"}, []int{3, 3, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"closed", "open"}, a.Classes())
	assert.Equal(t, []int{1, 3}, a.Groups())
	assert.Equal(t, map[string]int{"closed": 0, "open": 1}, a.ClassIndex())
}

func TestLoadAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attributes.txt")
	content := "# label chunk\nrest 0\nface 0\n\nhouse 1\nrest 1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	a, err := LoadAttributes(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"rest", "face", "house", "rest"}, a.Labels)
	assert.Equal(t, []int{0, 0, 1, 1}, a.Chunks)

	bad := filepath.Join(t.TempDir(), "bad.txt")
	require.NoError(t, os.WriteFile(bad, []byte("rest zero\n"), 0644))
	_, err = LoadAttributes(bad)
	assert.Error(t, err)
}

func TestJoinChecksLengths(t *testing.T) {
	vol, err := NewVolume([3]int{2, 1, 1}, 3, make([]float32, 6))
	require.NoError(t, err)

	labels, _ := GenerateLabels(1, []string{"a", "b"}, 2) // 4 labels
	chunks, _ := GenerateChunks(2, 2)
	attrs, err := NewAttributes(labels, chunks)
	require.NoError(t, err)

	_, err = Join(vol, attrs)
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Join(nil, attrs)
	require.ErrorIs(t, err, ErrConfiguration)

	attrs3, err := NewAttributes([]string{"a", "b", "a"}, []int{0, 0, 0})
	require.NoError(t, err)
	ds, err := Join(vol, attrs3)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Len())
}

func TestWriteAttributesRoundTrip(t *testing.T) {
	labels, err := GenerateLabels(2, []string{"closed", "open"}, 2)
	require.NoError(t, err)
	chunks, err := GenerateChunks(4, 2)
	require.NoError(t, err)
	a, err := NewAttributes(labels, chunks)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "attributes.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, WriteAttributes(f, a))
	require.NoError(t, f.Close())

	got, err := LoadAttributes(path)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}
