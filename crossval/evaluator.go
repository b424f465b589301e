package crossval

import (
	"context"
	"fmt"
)

// Evaluator scores a neighborhood by leave-one-group-out cross-validation of
// a freshly constructed classifier per fold. It satisfies
// searchlight.Evaluator.
type Evaluator struct {
	// New builds an untrained classifier. It is called once per fold, so
	// classifiers are never shared across goroutines.
	New func() Classifier

	// PerFold returns one accuracy per fold instead of their mean.
	PerFold bool
}

// Evaluate cross-validates on features with chunks as groups.
func (e Evaluator) Evaluate(ctx context.Context, features [][]float64, labels []string, chunks []int) ([]float64, error) {
	accs, err := CrossValidate(ctx, e.New, features, labels, chunks)
	if err != nil {
		return nil, err
	}
	if e.PerFold {
		return accs, nil
	}
	sum := 0.0
	for _, a := range accs {
		sum += a
	}
	return []float64{sum / float64(len(accs))}, nil
}

// CrossValidate returns the test accuracy of every leave-one-group-out fold,
// in ascending group order.
func CrossValidate(ctx context.Context, newClassifier func() Classifier, x [][]float64, y []string, groups []int) ([]float64, error) {
	if newClassifier == nil {
		return nil, fmt.Errorf("cross-validate: no classifier constructor")
	}
	if len(x) != len(y) || len(x) != len(groups) {
		return nil, fmt.Errorf("cross-validate: got %d rows, %d labels and %d groups", len(x), len(y), len(groups))
	}
	folds, err := LeaveOneGroupOut(groups)
	if err != nil {
		return nil, err
	}

	accs := make([]float64, len(folds))
	for i, f := range folds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clf := newClassifier()
		if err := clf.Fit(pick(x, f.Train), pickLabels(y, f.Train)); err != nil {
			return nil, fmt.Errorf("fold %d: %w", f.Group, err)
		}
		pred, err := clf.Predict(pick(x, f.Test))
		if err != nil {
			return nil, fmt.Errorf("fold %d: %w", f.Group, err)
		}
		accs[i] = Accuracy(pred, pickLabels(y, f.Test))
	}
	return accs, nil
}

// Accuracy is the fraction of predictions equal to the truth.
func Accuracy(pred, truth []string) float64 {
	if len(truth) == 0 {
		return 0
	}
	hit := 0
	for i := range truth {
		if pred[i] == truth[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(truth))
}

func pick(x [][]float64, idx []int) [][]float64 {
	out := make([][]float64, len(idx))
	for i, j := range idx {
		out[i] = x[j]
	}
	return out
}

func pickLabels(y []string, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = y[j]
	}
	return out
}
