// Package datasets builds the inputs of a block-design decoding analysis.
//
// It covers three concerns:
//
//   - Experimental design: per-sample condition labels, cross-validation
//     chunks and a reproducible train/test partition derived from the
//     acquisition schedule (GenerateLabels, GenerateChunks, SplitIndices).
//   - Sample storage: a 4D Volume of (sample, x, y, z) values loaded from CSV
//     or converted from a gomlx tensor.
//   - Joining: Join binds a Volume to its Attributes and rejects any length
//     mismatch up front, so downstream evaluators never see inconsistent
//     labels, chunks and data.
//
// Converting samples into gomlx tensors is done by Dataset.Tensors and by the
// Batcher, which follows gomlx's train.Dataset shape (Name, Yield, Reset) so it
// can feed a training loop built with that framework.
package datasets

import (
	"fmt"
)

// Dataset is a Volume joined with per-sample labels and chunks. Build one with
// Join; the zero value is not usable.
type Dataset struct {
	*Volume
	Attributes
}

// Join validates that the volume, labels and chunks describe the same number
// of samples and returns the combined Dataset.
func Join(v *Volume, a Attributes) (*Dataset, error) {
	if v == nil {
		return nil, configErr("volume", nil, "volume is nil")
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if len(a.Labels) != v.NumSamples {
		return nil, configErr("labels", len(a.Labels), "volume has %d samples", v.NumSamples)
	}
	return &Dataset{Volume: v, Attributes: a}, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return d.NumSamples }

// Subset returns a new Dataset with copies of the listed samples, in order.
func (d *Dataset) Subset(indices []int) (*Dataset, error) {
	if len(indices) == 0 {
		return nil, configErr("indices", 0, "subset must not be empty")
	}
	vol, err := d.Volume.subset(indices)
	if err != nil {
		return nil, err
	}
	labels := make([]string, len(indices))
	chunks := make([]int, len(indices))
	for i, idx := range indices {
		labels[i] = d.Labels[idx]
		chunks[i] = d.Chunks[idx]
	}
	// A subset may interleave chunks (e.g. a shuffled partition), so skip
	// the contiguity check that Validate applies to acquisition order.
	return &Dataset{Volume: vol, Attributes: Attributes{Labels: labels, Chunks: chunks}}, nil
}

// Split applies a Partition and returns the train and test subsets.
func (d *Dataset) Split(p Partition) (train, test *Dataset, err error) {
	if p.N != d.Len() {
		return nil, nil, configErr("partition", p.N, "dataset has %d samples", d.Len())
	}
	train, err = d.Subset(p.Train)
	if err != nil {
		return nil, nil, fmt.Errorf("train subset: %w", err)
	}
	test, err = d.Subset(p.Test)
	if err != nil {
		return nil, nil, fmt.Errorf("test subset: %w", err)
	}
	return train, test, nil
}
