// Package simple implements a small multi-layer perceptron classifier with a
// self-contained pure-Go trainer. It decodes whole-volume samples into
// condition labels and also serves as a crossval.Classifier for searchlight
// neighborhoods.
package simple

import (
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"go.uber.org/zap"

	"github.com/Noofbiz/brainDecode/crossval"
	"github.com/Noofbiz/brainDecode/datasets"
)

// Config holds configurable hyperparameters for the MLP model and training.
type Config struct {
	// HiddenSizes is the list of hidden layer sizes. Example: []int{64, 32}
	// If empty, a single hidden layer of size 64 will be used.
	HiddenSizes []int

	// InputDim, when non-zero, is checked against the training data.
	InputDim int

	// LearningRate used by the optimizer (SGD or Adam).
	LearningRate float64

	// Epochs to train for (default if 0 will be set by NewModel to 10).
	Epochs int

	// BatchSize for mini-batch updates (default if 0 will be set by NewModel to 8).
	BatchSize int

	// Seed controls RNG for weight init and shuffling. If zero, time-based seed is used.
	Seed int64

	// Optimizer selects the optimizer to use: "adam" or "sgd". Default: "adam".
	Optimizer string

	// Adam hyperparameters (used when Optimizer == "adam"; defaults below if zero).
	Beta1   float64
	Beta2   float64
	Epsilon float64

	// ClipNorm is the global gradient norm threshold. If zero 5 is used.
	ClipNorm float32

	// Logger receives per-epoch losses at debug level.
	Logger *zap.Logger
}

var _ crossval.Classifier = (*Model)(nil)

var errNotCreated = errors.New("model must be created with NewModel")

// Model is a ReLU MLP with a softmax output layer trained on cross-entropy.
// Each call to Fit starts from freshly initialized weights, so a Model with a
// fixed Seed is deterministic.
type Model struct {
	// Config used for training / initialization.
	Config Config

	classes []string

	// layerSizes includes input size, hidden sizes, then output size.
	layerSizes []int

	// weights[l] is a matrix of shape [out][in] for layer l -> l+1
	weights [][][]float32

	// biases[l] is a vector of length out for layer l -> l+1
	biases [][]float32

	// Adam moments, same shapes as weights and biases
	mW, vW [][][]float32
	mB, vB [][]float32
	step   int

	rng *rand.Rand
	log *zap.Logger
}

// NewModel applies defaults to cfg and returns an untrained Model.
func NewModel(cfg Config) (*Model, error) {
	// defaults
	if len(cfg.HiddenSizes) == 0 {
		cfg.HiddenSizes = []int{64}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = 0.001
	}
	if cfg.Epochs == 0 {
		cfg.Epochs = 10
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 8
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if cfg.Optimizer == "" {
		cfg.Optimizer = "adam"
	}
	if cfg.Beta1 == 0 {
		cfg.Beta1 = 0.9
	}
	if cfg.Beta2 == 0 {
		cfg.Beta2 = 0.999
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 1e-8
	}
	if cfg.ClipNorm == 0 {
		cfg.ClipNorm = 5
	}

	switch {
	case cfg.Optimizer != "adam" && cfg.Optimizer != "sgd":
		return nil, fmt.Errorf("unknown optimizer %q (want adam or sgd)", cfg.Optimizer)
	case cfg.LearningRate < 0 || cfg.Epochs < 0 || cfg.BatchSize < 0 || cfg.ClipNorm < 0:
		return nil, errors.New("learning rate, epochs, batch size and clip norm must not be negative")
	}
	for _, h := range cfg.HiddenSizes {
		if h <= 0 {
			return nil, fmt.Errorf("hidden layer size %d must be > 0", h)
		}
	}

	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Model{Config: cfg, log: log}, nil
}

// Classes returns the class names in output order, or nil before training.
func (m *Model) Classes() []string { return m.classes }

// build initializes weights for inputDim features and nClasses outputs and
// reseeds the RNG.
func (m *Model) build(inputDim, nClasses int) error {
	if m.Config.InputDim != 0 && m.Config.InputDim != inputDim {
		return fmt.Errorf("input has %d features, model configured for %d", inputDim, m.Config.InputDim)
	}
	m.rng = rand.New(rand.NewSource(m.Config.Seed))

	// build layer sizes
	sizes := make([]int, 0, 2+len(m.Config.HiddenSizes))
	sizes = append(sizes, inputDim)
	sizes = append(sizes, m.Config.HiddenSizes...)
	sizes = append(sizes, nClasses)
	m.layerSizes = sizes

	// allocate weights and biases
	L := len(sizes) - 1
	m.weights = make([][][]float32, L)
	m.biases = make([][]float32, L)
	for l := 0; l < L; l++ {
		in := sizes[l]
		out := sizes[l+1]
		// Xavier/Glorot uniform initialization heuristic
		limit := float32(math.Sqrt(6.0 / float64(in+out)))
		mat := make([][]float32, out)
		for j := 0; j < out; j++ {
			row := make([]float32, in)
			for i := 0; i < in; i++ {
				row[i] = (m.rng.Float32()*2.0 - 1.0) * limit
			}
			mat[j] = row
		}
		m.weights[l] = mat
		m.biases[l] = make([]float32, out)
	}
	m.mW, m.vW = zerosLike(m.weights), zerosLike(m.weights)
	m.mB, m.vB = zerosLikeVec(m.biases), zerosLikeVec(m.biases)
	m.step = 0
	return nil
}

func zerosLike(w [][][]float32) [][][]float32 {
	out := make([][][]float32, len(w))
	for l := range w {
		out[l] = make([][]float32, len(w[l]))
		for j := range w[l] {
			out[l][j] = make([]float32, len(w[l][j]))
		}
	}
	return out
}

func zerosLikeVec(b [][]float32) [][]float32 {
	out := make([][]float32, len(b))
	for l := range b {
		out[l] = make([]float32, len(b[l]))
	}
	return out
}

// activationReLU applies ReLU in-place over the slice.
func activationReLU(x []float32) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// softmax converts logits to probabilities in float64.
func softmax(logits []float32) []float64 {
	maxL := logits[0]
	for _, v := range logits[1:] {
		if v > maxL {
			maxL = v
		}
	}
	p := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		p[i] = math.Exp(float64(v - maxL))
		sum += p[i]
	}
	for i := range p {
		p[i] /= sum
	}
	return p
}

// forwardSingle performs a forward pass for a single input vector, returning:
// - preActivations: list of pre-activation vectors per layer (len = L)
// - activations: list of activation vectors per layer (len = L+1, activations[0] = input)
// The last activation holds the raw logits.
func (m *Model) forwardSingle(input []float32) (preActs [][]float32, acts [][]float32, err error) {
	if len(input) != m.layerSizes[0] {
		return nil, nil, fmt.Errorf("input has %d features, expected %d", len(input), m.layerSizes[0])
	}
	L := len(m.weights)
	acts = make([][]float32, L+1)
	acts[0] = input

	preActs = make([][]float32, L)
	for l := 0; l < L; l++ {
		inVec := acts[l]
		W := m.weights[l]
		b := m.biases[l]
		pre := make([]float32, len(b))
		for j := range pre {
			sum := b[j]
			for i, w := range W[j] {
				sum += w * inVec[i]
			}
			pre[j] = sum
		}
		preActs[l] = pre

		// ReLU for hidden, linear logits for the last layer
		act := make([]float32, len(pre))
		copy(act, pre)
		if l < L-1 {
			activationReLU(act)
		}
		acts[l+1] = act
	}
	return preActs, acts, nil
}

// Fit trains the model from scratch on x with labels y. Classes are the
// sorted distinct labels; fewer than two is crossval.ErrDegenerateFold.
func (m *Model) Fit(x [][]float64, y []string) error {
	if m.log == nil {
		return errNotCreated
	}
	if len(x) == 0 {
		return errors.New("dataset has no examples")
	}
	if len(x) != len(y) {
		return fmt.Errorf("got %d rows and %d labels", len(x), len(y))
	}
	classes := distinct(y)
	if len(classes) < 2 {
		return crossval.ErrDegenerateFold
	}
	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}

	inputs := make([][]float32, len(x))
	targets := make([]int, len(x))
	for i, row := range x {
		if len(row) != len(x[0]) {
			return fmt.Errorf("row %d has %d features, expected %d", i, len(row), len(x[0]))
		}
		inputs[i] = toFloat32(row)
		targets[i] = index[y[i]]
	}

	m.classes = classes
	if err := m.build(len(x[0]), len(classes)); err != nil {
		return err
	}

	n := len(inputs)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	batchIn := make([][]float32, 0, m.Config.BatchSize)
	batchTa := make([]int, 0, m.Config.BatchSize)
	for ep := 0; ep < m.Config.Epochs; ep++ {
		m.rng.Shuffle(n, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		var loss float64
		for bstart := 0; bstart < n; bstart += m.Config.BatchSize {
			bend := min(bstart+m.Config.BatchSize, n)
			batchIn, batchTa = batchIn[:0], batchTa[:0]
			for _, idx := range indices[bstart:bend] {
				batchIn = append(batchIn, inputs[idx])
				batchTa = append(batchTa, targets[idx])
			}
			l, err := m.trainBatch(batchIn, batchTa)
			if err != nil {
				return err
			}
			loss += l * float64(len(batchIn))
		}
		m.log.Debug("epoch", zap.Int("epoch", ep+1), zap.Float64("loss", loss/float64(n)))
	}
	return nil
}

// FitBatcher trains the model from scratch on the mini-batches of b for
// Config.Epochs epochs. classes must be the Classes() of the dataset b was
// created from, since the batch labels are indices into it.
func (m *Model) FitBatcher(b *datasets.Batcher, classes []string) error {
	if m.log == nil {
		return errNotCreated
	}
	if b == nil {
		return errors.New("batcher is nil")
	}
	if len(classes) < 2 {
		return crossval.ErrDegenerateFold
	}
	m.classes = append([]string(nil), classes...)
	m.weights = nil

	for ep := 0; ep < m.Config.Epochs; ep++ {
		b.Reset()
		var loss float64
		var seen int
		for {
			_, ins, las, err := b.Yield()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("epoch %d: %w", ep+1, err)
			}
			inputs, err := samplesFromTensor(ins[0])
			if err != nil {
				return err
			}
			targets, err := targetsFromTensor(las[0], len(classes))
			if err != nil {
				return err
			}
			if m.weights == nil {
				if err := m.build(len(inputs[0]), len(classes)); err != nil {
					return err
				}
			}
			l, err := m.trainBatch(inputs, targets)
			if err != nil {
				return err
			}
			loss += l * float64(len(inputs))
			seen += len(inputs)
		}
		if seen > 0 {
			m.log.Debug("epoch", zap.Int("epoch", ep+1), zap.Float64("loss", loss/float64(seen)))
		}
	}
	if m.weights == nil {
		return errors.New("batcher yielded no samples")
	}
	return nil
}

// trainBatch accumulates cross-entropy gradients over the batch, clips their
// global norm and applies one optimizer update. It returns the mean loss.
func (m *Model) trainBatch(inputs [][]float32, targets []int) (float64, error) {
	batchN := len(inputs)
	if batchN == 0 {
		return 0, nil
	}
	L := len(m.weights)
	gradW := zerosLike(m.weights)
	gradB := zerosLikeVec(m.biases)

	var loss float64
	for ex := 0; ex < batchN; ex++ {
		preacts, acts, err := m.forwardSingle(inputs[ex])
		if err != nil {
			return 0, err
		}

		// dLoss/dLogits = softmax - onehot
		p := softmax(acts[L])
		loss -= math.Log(math.Max(p[targets[ex]], 1e-12))
		delta := make([]float32, len(p))
		for j := range p {
			delta[j] = float32(p[j])
		}
		delta[targets[ex]] -= 1

		for l := L - 1; l >= 0; l-- {
			inAct := acts[l]
			for j, d := range delta {
				gradB[l][j] += d
				row := gradW[l][j]
				for i, a := range inAct {
					row[i] += d * a
				}
			}

			// propagate delta to previous layer if needed
			if l > 0 {
				prev := make([]float32, len(inAct))
				for i := range prev {
					if preacts[l-1][i] <= 0 {
						continue
					}
					sum := float32(0)
					for j, d := range delta {
						sum += m.weights[l][j][i] * d
					}
					prev[i] = sum
				}
				delta = prev
			}
		}
	}

	// average, then clip by global norm
	bInv := float32(1.0 / float64(batchN))
	var sq float64
	for l := 0; l < L; l++ {
		for j := range gradB[l] {
			gradB[l][j] *= bInv
			sq += float64(gradB[l][j] * gradB[l][j])
			for i := range gradW[l][j] {
				gradW[l][j][i] *= bInv
				sq += float64(gradW[l][j][i] * gradW[l][j][i])
			}
		}
	}
	scale := float32(1)
	if norm := float32(math.Sqrt(sq)); norm > m.Config.ClipNorm {
		scale = m.Config.ClipNorm / norm
	}

	m.step++
	for l := 0; l < L; l++ {
		for j := range m.biases[l] {
			m.biases[l][j] = m.update(m.biases[l][j], gradB[l][j]*scale, &m.mB[l][j], &m.vB[l][j])
			for i := range m.weights[l][j] {
				m.weights[l][j][i] = m.update(m.weights[l][j][i], gradW[l][j][i]*scale, &m.mW[l][j][i], &m.vW[l][j][i])
			}
		}
	}
	return loss / float64(batchN), nil
}

// update applies one SGD or Adam step to a single parameter.
func (m *Model) update(param, grad float32, mom, vel *float32) float32 {
	lr := m.Config.LearningRate
	if m.Config.Optimizer == "sgd" {
		return param - float32(lr)*grad
	}
	b1, b2 := m.Config.Beta1, m.Config.Beta2
	*mom = float32(b1)*(*mom) + float32(1-b1)*grad
	*vel = float32(b2)*(*vel) + float32(1-b2)*grad*grad
	mHat := float64(*mom) / (1 - math.Pow(b1, float64(m.step)))
	vHat := float64(*vel) / (1 - math.Pow(b2, float64(m.step)))
	return param - float32(lr*mHat/(math.Sqrt(vHat)+m.Config.Epsilon))
}

// PredictProba returns one probability row per input, ordered as Classes().
func (m *Model) PredictProba(x [][]float64) ([][]float64, error) {
	if m.weights == nil {
		return nil, errors.New("model is not trained")
	}
	out := make([][]float64, len(x))
	for i, row := range x {
		_, acts, err := m.forwardSingle(toFloat32(row))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = softmax(acts[len(acts)-1])
	}
	return out, nil
}

// Predict returns the most probable class for every input.
func (m *Model) Predict(x [][]float64) ([]string, error) {
	proba, err := m.PredictProba(x)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(proba))
	for i, p := range proba {
		best := 0
		for j := range p {
			if p[j] > p[best] {
				best = j
			}
		}
		out[i] = m.classes[best]
	}
	return out, nil
}

// Accuracy predicts x and returns the fraction matching y.
func (m *Model) Accuracy(x [][]float64, y []string) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("got %d rows and %d labels", len(x), len(y))
	}
	pred, err := m.Predict(x)
	if err != nil {
		return 0, err
	}
	return crossval.Accuracy(pred, y), nil
}

func distinct(y []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func toFloat32(row []float64) []float32 {
	out := make([]float32, len(row))
	for i, v := range row {
		out[i] = float32(v)
	}
	return out
}

// samplesFromTensor flattens a [batch, X, Y, Z] float32 tensor into one
// feature row per sample.
func samplesFromTensor(t *tensors.Tensor) ([][]float32, error) {
	value, ok := t.Value().([][][][]float32)
	if !ok {
		return nil, fmt.Errorf("expected a [batch, x, y, z] float32 tensor, got %T", t.Value())
	}
	out := make([][]float32, len(value))
	for s, vol := range value {
		var row []float32
		for _, plane := range vol {
			for _, line := range plane {
				row = append(row, line...)
			}
		}
		out[s] = row
	}
	return out, nil
}

func targetsFromTensor(t *tensors.Tensor, nClasses int) ([]int, error) {
	value, ok := t.Value().([]int32)
	if !ok {
		return nil, fmt.Errorf("expected a [batch] int32 label tensor, got %T", t.Value())
	}
	out := make([]int, len(value))
	for i, v := range value {
		if v < 0 || int(v) >= nClasses {
			return nil, fmt.Errorf("label index %d out of range [0, %d)", v, nClasses)
		}
		out[i] = int(v)
	}
	return out, nil
}
