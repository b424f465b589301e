package crossval

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrDegenerateFold is returned when a training set holds fewer than two
// classes, so no decision boundary can be learned.
var ErrDegenerateFold = errors.New("degenerate fold: training set has a single class")

// Classifier is a supervised model over real-valued feature rows.
type Classifier interface {
	Fit(x [][]float64, y []string) error
	Predict(x [][]float64) ([]string, error)
}

// groupByClass returns the sorted class names and the rows of each class.
func groupByClass(x [][]float64, y []string) ([]string, map[string][][]float64, error) {
	if len(x) == 0 {
		return nil, nil, fmt.Errorf("no training samples")
	}
	if len(x) != len(y) {
		return nil, nil, fmt.Errorf("got %d rows and %d labels", len(x), len(y))
	}
	rows := make(map[string][][]float64)
	for i, label := range y {
		rows[label] = append(rows[label], x[i])
	}
	if len(rows) < 2 {
		return nil, nil, ErrDegenerateFold
	}
	classes := make([]string, 0, len(rows))
	for c := range rows {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	return classes, rows, nil
}

func centroid(rows [][]float64) []float64 {
	c := make([]float64, len(rows[0]))
	for _, r := range rows {
		floats.Add(c, r)
	}
	floats.Scale(1/float64(len(rows)), c)
	return c
}

// NearestCentroid assigns each sample to the class whose mean pattern has
// the highest Pearson correlation with it. With a single feature it falls
// back to the smallest absolute distance, since correlation is undefined.
type NearestCentroid struct {
	classes   []string
	centroids [][]float64
}

// NewNearestCentroid returns an untrained NearestCentroid as a Classifier.
func NewNearestCentroid() Classifier { return &NearestCentroid{} }

func (n *NearestCentroid) Fit(x [][]float64, y []string) error {
	classes, rows, err := groupByClass(x, y)
	if err != nil {
		return err
	}
	n.classes = classes
	n.centroids = make([][]float64, len(classes))
	for i, c := range classes {
		n.centroids[i] = centroid(rows[c])
	}
	return nil
}

func (n *NearestCentroid) Predict(x [][]float64) ([]string, error) {
	if n.classes == nil {
		return nil, fmt.Errorf("nearest centroid: not fitted")
	}
	out := make([]string, len(x))
	scores := make([]float64, len(n.classes))
	for i, row := range x {
		if len(row) != len(n.centroids[0]) {
			return nil, fmt.Errorf("nearest centroid: row %d has %d features, expected %d", i, len(row), len(n.centroids[0]))
		}
		for c, cen := range n.centroids {
			scores[c] = similarity(row, cen)
		}
		out[i] = n.classes[floats.MaxIdx(scores)]
	}
	return out, nil
}

func similarity(a, b []float64) float64 {
	if len(a) < 2 {
		return -math.Abs(a[0] - b[0])
	}
	r := stat.Correlation(a, b, nil)
	if math.IsNaN(r) {
		// a constant pattern carries no shape information
		return -math.Sqrt(floats.Distance(a, b, 2))
	}
	return r
}

// GaussianNB is a Gaussian naive Bayes classifier with per-class feature
// means and variances. VarSmoothing (default 1e-9) times the largest feature
// variance is added to every variance for numerical stability.
type GaussianNB struct {
	VarSmoothing float64

	classes []string
	priors  []float64
	means   [][]float64
	vars    [][]float64
}

// NewGaussianNB returns an untrained GaussianNB as a Classifier.
func NewGaussianNB() Classifier { return &GaussianNB{} }

func (g *GaussianNB) Fit(x [][]float64, y []string) error {
	classes, rows, err := groupByClass(x, y)
	if err != nil {
		return err
	}
	smoothing := g.VarSmoothing
	if smoothing == 0 {
		smoothing = 1e-9
	}
	nFeat := len(x[0])

	// epsilon is relative to the largest overall feature variance
	col := make([]float64, len(x))
	maxVar := 0.0
	for f := 0; f < nFeat; f++ {
		for i := range x {
			col[i] = x[i][f]
		}
		if v := populationVariance(col); v > maxVar {
			maxVar = v
		}
	}
	eps := smoothing * maxVar
	if eps == 0 {
		eps = smoothing
	}

	g.classes = classes
	g.priors = make([]float64, len(classes))
	g.means = make([][]float64, len(classes))
	g.vars = make([][]float64, len(classes))
	for ci, c := range classes {
		r := rows[c]
		g.priors[ci] = float64(len(r)) / float64(len(x))
		g.means[ci] = make([]float64, nFeat)
		g.vars[ci] = make([]float64, nFeat)
		vals := make([]float64, len(r))
		for f := 0; f < nFeat; f++ {
			for i := range r {
				vals[i] = r[i][f]
			}
			g.means[ci][f] = stat.Mean(vals, nil)
			g.vars[ci][f] = populationVariance(vals) + eps
		}
	}
	return nil
}

func (g *GaussianNB) Predict(x [][]float64) ([]string, error) {
	if g.classes == nil {
		return nil, fmt.Errorf("gaussian nb: not fitted")
	}
	out := make([]string, len(x))
	logp := make([]float64, len(g.classes))
	for i, row := range x {
		if len(row) != len(g.means[0]) {
			return nil, fmt.Errorf("gaussian nb: row %d has %d features, expected %d", i, len(row), len(g.means[0]))
		}
		for c := range g.classes {
			lp := math.Log(g.priors[c])
			for f, v := range row {
				d := v - g.means[c][f]
				lp -= 0.5*math.Log(2*math.Pi*g.vars[c][f]) + d*d/(2*g.vars[c][f])
			}
			logp[c] = lp
		}
		out[i] = g.classes[floats.MaxIdx(logp)]
	}
	return out, nil
}

// populationVariance is the biased (1/n) variance; gonum's MeanVariance is
// unbiased and undefined for a single sample.
func populationVariance(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	_, v := stat.MeanVariance(x, nil)
	return v * float64(len(x)-1) / float64(len(x))
}
