package simple

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/Noofbiz/brainDecode/crossval"
	"github.com/Noofbiz/brainDecode/datasets"
)

// blobs builds nPer samples around each of three well separated centers.
func blobs(nPer int, seed int64) ([][]float64, []string) {
	centers := map[string][]float64{
		"a": {3, 0, 0, 0},
		"b": {0, 3, 0, 0},
		"c": {0, 0, -3, 3},
	}
	rng := rand.New(rand.NewSource(seed))
	var x [][]float64
	var y []string
	for i := 0; i < nPer; i++ {
		for _, label := range []string{"a", "b", "c"} {
			row := make([]float64, 4)
			for j, c := range centers[label] {
				row[j] = c + rng.NormFloat64()*0.3
			}
			x = append(x, row)
			y = append(y, label)
		}
	}
	return x, y
}

func TestModelLearnsSeparableClasses(t *testing.T) {
	x, y := blobs(30, 1)
	for _, opt := range []string{"adam", "sgd"} {
		cfg := Config{
			HiddenSizes:  []int{16},
			LearningRate: 0.01,
			Epochs:       40,
			BatchSize:    8,
			Seed:         42,
			Optimizer:    opt,
		}
		if opt == "sgd" {
			cfg.LearningRate = 0.1
		}
		model, err := NewModel(cfg)
		if err != nil {
			t.Fatalf("NewModel error: %v", err)
		}
		if err := model.Fit(x, y); err != nil {
			t.Fatalf("%s: Fit error: %v", opt, err)
		}

		testX, testY := blobs(10, 2)
		acc, err := model.Accuracy(testX, testY)
		if err != nil {
			t.Fatalf("%s: Accuracy error: %v", opt, err)
		}
		t.Logf("%s accuracy=%.3f", opt, acc)
		if acc < 0.9 {
			t.Fatalf("%s: expected accuracy >= 0.9, got %.3f", opt, acc)
		}

		proba, err := model.PredictProba(testX[:3])
		if err != nil {
			t.Fatalf("PredictProba error: %v", err)
		}
		for i, p := range proba {
			sum := 0.0
			for _, v := range p {
				if math.IsNaN(v) || v < 0 || v > 1 {
					t.Fatalf("invalid probability at %d: %v", i, p)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-9 {
				t.Fatalf("probabilities at %d sum to %v", i, sum)
			}
		}
	}
}

func TestModelDeterministic(t *testing.T) {
	x, y := blobs(10, 3)
	run := func() [][]float64 {
		model, err := NewModel(Config{HiddenSizes: []int{8, 4}, Epochs: 5, Seed: 7})
		if err != nil {
			t.Fatalf("NewModel error: %v", err)
		}
		if err := model.Fit(x, y); err != nil {
			t.Fatalf("Fit error: %v", err)
		}
		p, err := model.PredictProba(x)
		if err != nil {
			t.Fatalf("PredictProba error: %v", err)
		}
		return p
	}
	a, b := run(), run()
	for i := range a {
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				t.Fatalf("runs differ at %d,%d: %v vs %v", i, j, a[i][j], b[i][j])
			}
		}
	}
}

func TestModelErrors(t *testing.T) {
	if _, err := NewModel(Config{Optimizer: "rmsprop"}); err == nil {
		t.Fatal("expected error for unknown optimizer")
	}
	if _, err := NewModel(Config{HiddenSizes: []int{0}}); err == nil {
		t.Fatal("expected error for empty hidden layer")
	}

	model, err := NewModel(Config{Seed: 1, Epochs: 1})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if _, err := model.Predict([][]float64{{1}}); err == nil {
		t.Fatal("expected error predicting with an untrained model")
	}
	if err := model.Fit([][]float64{{1}, {2}}, []string{"a", "a"}); !errors.Is(err, crossval.ErrDegenerateFold) {
		t.Fatalf("expected ErrDegenerateFold, got %v", err)
	}
	if err := model.Fit([][]float64{{1}, {2}}, []string{"a"}); err == nil {
		t.Fatal("expected error for mismatched labels")
	}
	if err := model.Fit([][]float64{{1}, {2}}, []string{"a", "b"}); err != nil {
		t.Fatalf("Fit error: %v", err)
	}
	if _, err := model.Predict([][]float64{{1, 2}}); err == nil {
		t.Fatal("expected error for wrong feature count")
	}

	fixed, err := NewModel(Config{Seed: 1, InputDim: 3})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if err := fixed.Fit([][]float64{{1}, {2}}, []string{"a", "b"}); err == nil {
		t.Fatal("expected error for input dimension mismatch")
	}
}

func TestModelFitBatcher(t *testing.T) {
	ds, err := datasets.Synthesize(datasets.SynthConfig{
		Shape:             [3]int{4, 4, 2},
		BlockSize:         4,
		Conditions:        []string{"closed", "open"},
		Cycles:            8,
		NChunks:           4,
		InformativeCenter: [3]int{1, 1, 0},
		InformativeRadius: 1,
		Signal:            2,
		Noise:             0.5,
		Seed:              5,
	})
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	part, err := datasets.SplitIndices(ds.Len(), 0.75, 3)
	if err != nil {
		t.Fatalf("SplitIndices error: %v", err)
	}
	batcher, err := ds.Batcher(part.Train, 8, 3)
	if err != nil {
		t.Fatalf("Batcher error: %v", err)
	}

	model, err := NewModel(Config{HiddenSizes: []int{16}, LearningRate: 0.01, Epochs: 20, Seed: 9})
	if err != nil {
		t.Fatalf("NewModel error: %v", err)
	}
	if err := model.FitBatcher(batcher, ds.Classes()); err != nil {
		t.Fatalf("FitBatcher error: %v", err)
	}

	testY := make([]string, len(part.Test))
	for i, idx := range part.Test {
		testY[i] = ds.Labels[idx]
	}
	acc, err := model.Accuracy(ds.Features(part.Test), testY)
	if err != nil {
		t.Fatalf("Accuracy error: %v", err)
	}
	t.Logf("held-out accuracy=%.3f", acc)
	if acc < 0.8 {
		t.Fatalf("expected held-out accuracy >= 0.8, got %.3f", acc)
	}

	if err := model.FitBatcher(batcher, []string{"closed"}); !errors.Is(err, crossval.ErrDegenerateFold) {
		t.Fatalf("expected ErrDegenerateFold, got %v", err)
	}
}

func TestModelAsCrossvalClassifier(t *testing.T) {
	x, y := blobs(12, 4)
	groups := make([]int, len(x))
	for i := range groups {
		groups[i] = i / 9
	}
	newModel := func() crossval.Classifier {
		m, err := NewModel(Config{HiddenSizes: []int{8}, LearningRate: 0.01, Epochs: 30, Seed: 11})
		if err != nil {
			t.Fatalf("NewModel error: %v", err)
		}
		return m
	}
	accs, err := crossval.CrossValidate(context.Background(), newModel, x, y, groups)
	if err != nil {
		t.Fatalf("CrossValidate error: %v", err)
	}
	if len(accs) != 4 {
		t.Fatalf("expected 4 folds, got %d", len(accs))
	}
	for i, a := range accs {
		if a < 0.75 {
			t.Fatalf("fold %d accuracy %.3f too low", i, a)
		}
	}
}
