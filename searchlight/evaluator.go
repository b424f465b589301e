package searchlight

import (
	"context"
	"errors"
	"fmt"
)

// Evaluator scores one neighborhood. features holds one row per sample
// restricted to the neighborhood's voxels; labels and chunks are the dataset's
// per-sample attributes and must be treated as read-only. The returned slice
// holds one score per output channel (for example one accuracy per
// cross-validation fold) and must have the same length for every
// neighborhood of a run.
//
// Evaluate is called concurrently from several workers, so implementations
// must not keep mutable state shared across calls.
type Evaluator interface {
	Evaluate(ctx context.Context, features [][]float64, labels []string, chunks []int) ([]float64, error)
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(ctx context.Context, features [][]float64, labels []string, chunks []int) ([]float64, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(ctx context.Context, features [][]float64, labels []string, chunks []int) ([]float64, error) {
	return f(ctx, features, labels, chunks)
}

// ErrEvaluation is matched (via errors.Is) by every *EvaluationError.
var ErrEvaluation = errors.New("evaluation error")

// EvaluationError reports that the evaluator failed for one center. It is
// fatal to the whole run.
type EvaluationError struct {
	Center int
	Coord  Coord
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed at center %v (index %d): %v", e.Coord, e.Center, e.Err)
}

func (e *EvaluationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrEvaluation) match any EvaluationError.
func (e *EvaluationError) Is(target error) bool {
	return target == ErrEvaluation
}
