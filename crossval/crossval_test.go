package crossval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaveOneGroupOut(t *testing.T) {
	folds, err := LeaveOneGroupOut([]int{0, 0, 1, 1, 2, 2})
	require.NoError(t, err)
	require.Len(t, folds, 3)
	assert.Equal(t, Fold{Group: 0, Train: []int{2, 3, 4, 5}, Test: []int{0, 1}}, folds[0])
	assert.Equal(t, Fold{Group: 2, Train: []int{0, 1, 2, 3}, Test: []int{4, 5}}, folds[2])

	_, err = LeaveOneGroupOut([]int{3, 3, 3})
	assert.Error(t, err)
	_, err = LeaveOneGroupOut(nil)
	assert.Error(t, err)
}

// twoClassData places class "a" around +1 and class "b" around -1 on the
// first feature, with a shape difference on the rest.
func twoClassData() ([][]float64, []string, []int) {
	x := [][]float64{
		{1.0, 0.1, 2.0}, {1.1, 0.2, 2.1}, {-1.0, 2.0, 0.1}, {-0.9, 2.1, 0.0},
		{0.9, 0.0, 1.9}, {1.2, 0.1, 2.2}, {-1.1, 1.9, 0.2}, {-1.0, 2.2, 0.1},
		{1.0, 0.2, 2.0}, {0.8, 0.1, 1.8}, {-0.8, 2.0, 0.0}, {-1.2, 1.8, 0.1},
	}
	y := []string{"a", "a", "b", "b", "a", "a", "b", "b", "a", "a", "b", "b"}
	g := []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}
	return x, y, g
}

func TestClassifiersSeparableData(t *testing.T) {
	x, y, _ := twoClassData()
	for name, newClf := range map[string]func() Classifier{
		"nearest-centroid": NewNearestCentroid,
		"gaussian-nb":      NewGaussianNB,
	} {
		t.Run(name, func(t *testing.T) {
			clf := newClf()
			require.NoError(t, clf.Fit(x, y))
			pred, err := clf.Predict([][]float64{{1.05, 0.15, 2.05}, {-1.05, 2.05, 0.05}})
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, pred)

			_, err = clf.Predict([][]float64{{1, 2}})
			assert.Error(t, err)
		})
	}
}

func TestNearestCentroidSingleFeature(t *testing.T) {
	clf := NewNearestCentroid()
	require.NoError(t, clf.Fit([][]float64{{0}, {0.2}, {5}, {5.2}}, []string{"lo", "lo", "hi", "hi"}))
	pred, err := clf.Predict([][]float64{{0.4}, {4}})
	require.NoError(t, err)
	assert.Equal(t, []string{"lo", "hi"}, pred)
}

func TestFitRejectsSingleClass(t *testing.T) {
	for _, clf := range []Classifier{NewNearestCentroid(), NewGaussianNB()} {
		err := clf.Fit([][]float64{{1}, {2}}, []string{"a", "a"})
		assert.ErrorIs(t, err, ErrDegenerateFold)
	}
	_, err := NewGaussianNB().Predict([][]float64{{1}})
	assert.Error(t, err)
}

func TestGaussianNBConstantFeature(t *testing.T) {
	// zero variance everywhere must not produce NaN likelihoods
	clf := &GaussianNB{}
	require.NoError(t, clf.Fit([][]float64{{1}, {1}, {3}, {3}}, []string{"a", "a", "b", "b"}))
	pred, err := clf.Predict([][]float64{{1}, {3}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, pred)
}

func TestEvaluator(t *testing.T) {
	x, y, g := twoClassData()
	ctx := context.Background()

	mean, err := Evaluator{New: NewGaussianNB}.Evaluate(ctx, x, y, g)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, mean)

	perFold, err := Evaluator{New: NewNearestCentroid, PerFold: true}.Evaluate(ctx, x, y, g)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1, 1}, perFold)
}

func TestEvaluatorErrors(t *testing.T) {
	x, y, g := twoClassData()
	ctx := context.Background()

	// group 0 holds every "b", so its training fold is single-class
	y2 := append([]string(nil), y...)
	for i := range y2 {
		if g[i] != 0 {
			y2[i] = "a"
		}
	}
	_, err := Evaluator{New: NewGaussianNB}.Evaluate(ctx, x, y2, g)
	assert.ErrorIs(t, err, ErrDegenerateFold)

	_, err = Evaluator{New: NewGaussianNB}.Evaluate(ctx, x, y[:3], g)
	assert.Error(t, err)

	_, err = Evaluator{}.Evaluate(ctx, x, y, g)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = Evaluator{New: NewGaussianNB}.Evaluate(cancelled, x, y, g)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.5, Accuracy([]string{"a", "b"}, []string{"a", "a"}))
	assert.Equal(t, 0.0, Accuracy(nil, nil))
}
