// Package monte estimates the significance of a decoding score with a Monte
// Carlo permutation test: labels are shuffled within each chunk, the score is
// recomputed for every shuffle, and the observed score is ranked against that
// null distribution.
package monte

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// ScoreFunc computes a decoding score for one labeling of the samples. It is
// called concurrently and must not modify labels.
type ScoreFunc func(ctx context.Context, labels []string) (float64, error)

// Permutation configures a permutation test.
type Permutation struct {
	// NumPerms is the number of shuffled labelings. Must be > 0.
	NumPerms int

	// Seed drives every shuffle. The null distribution depends only on Seed,
	// the labels and chunks, whatever the number of workers.
	Seed int64

	// Workers bounds concurrent score evaluations. 0 uses runtime.NumCPU().
	Workers int

	// Logger receives progress messages. nil discards them.
	Logger *zap.Logger
}

// Result holds the observed score and its null distribution.
type Result struct {
	Observed float64
	// Null holds one score per permutation, in permutation order.
	Null []float64
	// PValue is (1 + #{null >= observed}) / (1 + len(Null)).
	PValue float64
}

// NullMeanStd returns the mean and standard deviation of the null scores.
func (r *Result) NullMeanStd() (mean, std float64) {
	return stat.MeanStdDev(r.Null, nil)
}

// ZScore is the distance of the observed score from the null mean in null
// standard deviations. It is NaN when the null distribution is constant.
func (r *Result) ZScore() float64 {
	mean, std := r.NullMeanStd()
	if std == 0 {
		return math.NaN()
	}
	return (r.Observed - mean) / std
}

// Quantile returns the q-quantile of the null distribution.
func (r *Result) Quantile(q float64) float64 {
	sorted := append([]float64(nil), r.Null...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}

// ShuffleWithinChunks returns a copy of labels where the labels of every chunk
// are permuted among that chunk's samples only.
func ShuffleWithinChunks(labels []string, chunks []int, rng *rand.Rand) []string {
	out := append([]string(nil), labels...)
	byChunk := make(map[int][]int)
	var order []int
	for i, c := range chunks {
		if _, ok := byChunk[c]; !ok {
			order = append(order, c)
		}
		byChunk[c] = append(byChunk[c], i)
	}
	// chunks are visited in first-appearance order so the rng stream is fixed
	for _, c := range order {
		idx := byChunk[c]
		rng.Shuffle(len(idx), func(i, j int) {
			a, b := idx[i], idx[j]
			out[a], out[b] = out[b], out[a]
		})
	}
	return out
}

// Run scores the original labels, then NumPerms within-chunk shuffles of them.
// The first failing score aborts the run.
func (p Permutation) Run(ctx context.Context, labels []string, chunks []int, score ScoreFunc) (*Result, error) {
	if p.NumPerms <= 0 {
		return nil, fmt.Errorf("number of permutations must be > 0, got %d", p.NumPerms)
	}
	if score == nil {
		return nil, errors.New("score function is nil")
	}
	if len(labels) == 0 || len(labels) != len(chunks) {
		return nil, fmt.Errorf("got %d labels and %d chunks", len(labels), len(chunks))
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	observed, err := score(ctx, labels)
	if err != nil {
		return nil, fmt.Errorf("observed score: %w", err)
	}

	// Precompute independent seeds using the master RNG (serial access).
	master := rand.New(rand.NewSource(p.Seed))
	seeds := make([]int64, p.NumPerms)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	// Determine worker count and launch workers.
	workerCount := p.Workers
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	if workerCount > p.NumPerms {
		workerCount = p.NumPerms
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	null := make([]float64, p.NumPerms)
	var (
		firstErr error
		errOnce  sync.Once
		done     int64
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	jobs := make(chan int, p.NumPerms)
	var wg sync.WaitGroup
	wg.Add(workerCount)
	for w := 0; w < workerCount; w++ {
		go func() {
			defer wg.Done()
			for perm := range jobs {
				if ctx.Err() != nil {
					continue
				}
				rng := rand.New(rand.NewSource(seeds[perm]))
				shuffled := ShuffleWithinChunks(labels, chunks, rng)
				s, err := score(ctx, shuffled)
				if err != nil {
					fail(fmt.Errorf("permutation %d: %w", perm, err))
					continue
				}
				null[perm] = s
				atomic.AddInt64(&done, 1)
			}
		}()
	}

	// progress reporter
	stop := make(chan struct{})
	reporterDone := make(chan struct{})
	go func() {
		defer close(reporterDone)
		ticker := time.NewTicker(3 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				log.Info("permutation progress",
					zap.Int64("done", atomic.LoadInt64(&done)),
					zap.Int("total", p.NumPerms))
			case <-stop:
				return
			}
		}
	}()

	// enqueue jobs and wait for completion
	for i := 0; i < p.NumPerms; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	close(stop)
	<-reporterDone

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	exceed := 0
	for _, s := range null {
		if s >= observed {
			exceed++
		}
	}
	res := &Result{
		Observed: observed,
		Null:     null,
		PValue:   float64(1+exceed) / float64(1+p.NumPerms),
	}
	log.Info("permutation test completed",
		zap.Float64("observed", observed),
		zap.Float64("p", res.PValue),
		zap.Int("permutations", p.NumPerms))
	return res, nil
}
