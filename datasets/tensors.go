package datasets

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Tensor converts the whole volume into a [n, X, Y, Z] float32 gomlx tensor.
// The flat buffer is copied by gomlx.
func (v *Volume) Tensor() *tensors.Tensor {
	return tensors.FromFlatDataAndDimensions(v.data, v.NumSamples, v.Shape[0], v.Shape[1], v.Shape[2])
}

// VolumeFromTensor builds a Volume from a rank-4 [n, X, Y, Z] float32 or
// float64 gomlx tensor.
func VolumeFromTensor(t *tensors.Tensor) (*Volume, error) {
	if t == nil {
		return nil, fmt.Errorf("tensor is nil")
	}
	dims := t.Shape().Dimensions
	if len(dims) != 4 {
		return nil, configErr("tensor_rank", len(dims), "expected rank 4 [samples, x, y, z]")
	}
	shape := [3]int{dims[1], dims[2], dims[3]}
	data := make([]float32, 0, dims[0]*dims[1]*dims[2]*dims[3])

	switch value := t.Value().(type) {
	case [][][][]float32:
		for _, s := range value {
			for _, plane := range s {
				for _, row := range plane {
					data = append(data, row...)
				}
			}
		}
	case [][][][]float64:
		for _, s := range value {
			for _, plane := range s {
				for _, row := range plane {
					for _, val := range row {
						data = append(data, float32(val))
					}
				}
			}
		}
	default:
		return nil, fmt.Errorf("unsupported tensor value type %T", value)
	}
	return NewVolume(shape, dims[0], data)
}

// Tensors returns the listed samples as a [batch, X, Y, Z] float32 input
// tensor and a [batch] int32 tensor of class indices (positions in
// Classes()).
func (d *Dataset) Tensors(indices []int) (inputs *tensors.Tensor, labels *tensors.Tensor, err error) {
	if len(indices) == 0 {
		return nil, nil, fmt.Errorf("empty batch")
	}
	classIdx := d.ClassIndex()
	n := d.Voxels()
	flat := make([]float32, 0, len(indices)*n)
	lab := make([]int32, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, nil, fmt.Errorf("batch index %d out of range [0, %d)", idx, d.Len())
		}
		flat = append(flat, d.Sample(idx)...)
		lab[i] = int32(classIdx[d.Labels[idx]])
	}
	inputs = tensors.FromFlatDataAndDimensions(flat, len(indices), d.Shape[0], d.Shape[1], d.Shape[2])
	labels = tensors.FromFlatDataAndDimensions(lab, len(indices))
	return inputs, labels, nil
}

// Batcher yields shuffled mini-batches over a fixed set of sample indices,
// typically one side of a Partition. Its method set matches gomlx's
// train.Dataset so it can drive a training loop in that framework.
type Batcher struct {
	ds        *Dataset
	indices   []int
	batchSize int
	rng       *rand.Rand

	order []int
	pos   int
}

// Batcher creates a Batcher over indices. The order within an epoch is
// reshuffled by Reset with a generator seeded by seed.
func (d *Dataset) Batcher(indices []int, batchSize int, seed int64) (*Batcher, error) {
	if len(indices) == 0 {
		return nil, configErr("indices", 0, "batcher needs at least one sample")
	}
	if batchSize <= 0 {
		return nil, configErr("batch_size", batchSize, "must be > 0")
	}
	for _, idx := range indices {
		if idx < 0 || idx >= d.Len() {
			return nil, configErr("indices", idx, "out of range [0, %d)", d.Len())
		}
	}
	b := &Batcher{
		ds:        d,
		indices:   append([]int(nil), indices...),
		batchSize: batchSize,
		rng:       rand.New(rand.NewSource(seed)),
	}
	b.Reset()
	return b, nil
}

// Name returns the name of the dataset
func (b *Batcher) Name() string {
	return "BlockDesignBatcher"
}

// Reset starts a new epoch with a fresh shuffle.
func (b *Batcher) Reset() {
	b.order = append(b.order[:0], b.indices...)
	b.rng.Shuffle(len(b.order), func(i, j int) {
		b.order[i], b.order[j] = b.order[j], b.order[i]
	})
	b.pos = 0
}

// Yield returns the next batch. The last batch of an epoch may be short;
// after it Yield returns io.EOF until Reset is called.
func (b *Batcher) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if b.pos >= len(b.order) {
		return nil, nil, nil, io.EOF
	}
	end := b.pos + b.batchSize
	if end > len(b.order) {
		end = len(b.order)
	}
	batch := b.order[b.pos:end]
	b.pos = end

	in, la, err := b.ds.Tensors(batch)
	if err != nil {
		return nil, nil, nil, err
	}
	return b, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}
