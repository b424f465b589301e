// Package searchlight runs a local-neighborhood classifier evaluation at a
// subsample of grid centers and rebuilds a dense score map by averaging the
// results of every neighborhood that covers a voxel.
//
// A run moves through Configured, CentersEnumerated, Evaluating, Aggregating,
// Finalizing and Done. Any failure moves it to Failed without finalizing.
// Neighborhoods are evaluated by a bounded worker pool; the sum and count
// accumulators are only touched by the coordinating goroutine after every
// evaluation has finished, in center order, so results are bit-identical for
// a deterministic evaluator regardless of the number of workers.
package searchlight

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Noofbiz/brainDecode/datasets"
)

// State is the lifecycle stage of a Searchlight.
type State int

const (
	Configured State = iota
	CentersEnumerated
	Evaluating
	Aggregating
	Finalizing
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Configured:
		return "configured"
	case CentersEnumerated:
		return "centers-enumerated"
	case Evaluating:
		return "evaluating"
	case Aggregating:
		return "aggregating"
	case Finalizing:
		return "finalizing"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Config holds the searchlight parameters.
type Config struct {
	// Radius of the sphere in voxels. 0 evaluates single voxels.
	Radius float64

	// Step uses every Step-th eligible voxel (row-major) as a center.
	// Default 1.
	Step int

	// Centers, when non-empty, replaces the Step enumeration with an explicit
	// list of spatial indices, evaluated in the given order.
	Centers []int

	// Mask marks included voxels. nil includes all of them.
	Mask []bool

	// Workers bounds concurrent evaluations. 0 uses runtime.NumCPU().
	Workers int

	// ProgressInterval controls how often progress is logged. Default 3s.
	ProgressInterval time.Duration

	// Logger receives progress and lifecycle messages. nil discards them.
	Logger *zap.Logger
}

// Searchlight is a single searchlight run over a fixed grid.
type Searchlight struct {
	cfg    Config
	grid   *Grid
	sphere sphere
	eval   Evaluator
	log    *zap.Logger

	mu      sync.Mutex
	state   State
	centers []int
}

// New validates cfg and returns a Searchlight in the Configured state.
func New(shape [3]int, cfg Config, eval Evaluator) (*Searchlight, error) {
	if eval == nil {
		return nil, datasets.NewConfigurationError("evaluator", nil, "evaluator is nil")
	}
	if math.IsNaN(cfg.Radius) || math.IsInf(cfg.Radius, 0) || cfg.Radius < 0 {
		return nil, datasets.NewConfigurationError("radius", cfg.Radius, "must be a finite value >= 0")
	}
	if cfg.Step == 0 {
		cfg.Step = 1
	}
	if cfg.Step < 0 {
		return nil, datasets.NewConfigurationError("step", cfg.Step, "must be >= 1")
	}
	if cfg.Workers < 0 {
		return nil, datasets.NewConfigurationError("workers", cfg.Workers, "must be >= 0")
	}
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	grid, err := NewGrid(shape, cfg.Mask)
	if err != nil {
		return nil, err
	}
	for _, c := range cfg.Centers {
		if c < 0 || c >= grid.Size() {
			return nil, datasets.NewConfigurationError("center", c, "out of range [0, %d)", grid.Size())
		}
	}
	cfg.Centers = append([]int(nil), cfg.Centers...)

	return &Searchlight{
		cfg:    cfg,
		grid:   grid,
		sphere: newSphere(cfg.Radius),
		eval:   eval,
		log:    cfg.Logger,
		state:  Configured,
	}, nil
}

// Grid returns the grid the searchlight runs on.
func (s *Searchlight) Grid() *Grid { return s.grid }

// State returns the current lifecycle stage.
func (s *Searchlight) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Searchlight) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.log.Debug("searchlight state", zap.Stringer("state", st))
}

// Centers enumerates the centers (once) and returns them.
func (s *Searchlight) Centers() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.centers == nil {
		if len(s.cfg.Centers) > 0 {
			s.centers = s.cfg.Centers
		} else {
			s.centers = s.grid.Centers(s.cfg.Step)
		}
		if s.state == Configured {
			s.state = CentersEnumerated
		}
	}
	return append([]int(nil), s.centers...)
}

// Neighborhood returns the voxels covered by the sphere at center.
func (s *Searchlight) Neighborhood(center int) []int {
	return s.grid.neighborhood(s.sphere, center)
}

// Run evaluates every center on ds and returns the finalized ScoreMap. It
// fails with a *datasets.ConfigurationError before any evaluation when ds
// does not match the grid, when there are no centers, or when a center's
// neighborhood is empty; evaluator failures abort the run with an
// *EvaluationError.
func (s *Searchlight) Run(ctx context.Context, ds *datasets.Dataset) (sm *ScoreMap, err error) {
	if st := s.State(); st != Configured && st != CentersEnumerated {
		return nil, fmt.Errorf("searchlight already %s", st)
	}
	defer func() {
		if err != nil {
			s.setState(Failed)
		}
	}()

	if ds == nil {
		return nil, datasets.NewConfigurationError("dataset", nil, "dataset is nil")
	}
	if ds.Shape != s.grid.Shape {
		return nil, datasets.NewConfigurationError("dataset_shape", ds.Shape, "searchlight grid is %v", s.grid.Shape)
	}

	centers := s.Centers()
	if len(centers) == 0 {
		return nil, datasets.NewConfigurationError("mask", 0, "no eligible centers")
	}
	hoods := make([][]int, len(centers))
	for i, c := range centers {
		hoods[i] = s.Neighborhood(c)
		if len(hoods[i]) == 0 {
			return nil, datasets.NewConfigurationError("center", s.grid.Coord(c), "neighborhood is empty after masking")
		}
	}

	runID := uuid.NewString()
	log := s.log.With(zap.String("run", runID))
	log.Info("searchlight starting",
		zap.Int("centers", len(centers)),
		zap.Float64("radius", s.cfg.Radius),
		zap.Int("step", s.cfg.Step),
		zap.Int("workers", s.cfg.Workers))
	start := time.Now()

	s.setState(Evaluating)
	results, err := s.evaluate(ctx, log, ds, centers, hoods)
	if err != nil {
		log.Error("searchlight failed", zap.Error(err))
		return nil, err
	}

	s.setState(Aggregating)
	acc := newAccumulator(s.grid.Size(), len(results[0]))
	for i, scores := range results {
		if err := acc.add(hoods[i], scores); err != nil {
			return nil, &EvaluationError{Center: centers[i], Coord: s.grid.Coord(centers[i]), Err: err}
		}
	}

	s.setState(Finalizing)
	acc.finalize()

	sm = &ScoreMap{
		RunID:    runID,
		Shape:    s.grid.Shape,
		Channels: len(acc.sums),
		Centers:  centers,
		Scores:   acc.sums,
		Counts:   acc.counts,
	}
	s.setState(Done)
	log.Info("searchlight completed", zap.Duration("elapsed", time.Since(start)))
	return sm, nil
}

// evaluate runs the worker pool. Each task writes only its own result slot;
// the first failure cancels the remaining tasks.
func (s *Searchlight) evaluate(ctx context.Context, log *zap.Logger, ds *datasets.Dataset, centers []int, hoods [][]int) ([][]float64, error) {
	n := len(centers)
	results := make([][]float64, n)

	var done int64
	ticker := time.NewTicker(s.cfg.ProgressInterval)
	stopProgress := make(chan struct{})
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d := atomic.LoadInt64(&done)
				log.Info("searchlight progress",
					zap.Int64("done", d),
					zap.Int("total", n),
					zap.Float64("percent", float64(d)/float64(n)*100))
			case <-stopProgress:
				return
			}
		}
	}()
	defer func() {
		close(stopProgress)
		<-progressDone
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			center := centers[i]
			features := ds.Gather(hoods[i])
			scores, err := s.eval.Evaluate(gctx, features, ds.Labels, ds.Chunks)
			if err == nil && len(scores) == 0 {
				err = fmt.Errorf("evaluator returned no scores")
			}
			if err != nil {
				return &EvaluationError{Center: center, Coord: s.grid.Coord(center), Err: err}
			}
			results[i] = scores
			atomic.AddInt64(&done, 1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// the caller's context may have been cancelled between the last
	// scheduled task and Wait
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
