package datasets

import (
	"fmt"
)

// Volume is a 4D sample array: NumSamples volumes of Shape[0] x Shape[1] x
// Shape[2] voxels stored in one flat row-major buffer. The flat offset of
// (sample, x, y, z) is ((sample*X+x)*Y+y)*Z+z, so the spatial index of a voxel
// is (x*Y+y)*Z+z.
type Volume struct {
	Shape      [3]int
	NumSamples int

	data []float32
}

// NewVolume wraps data (not copied) as a Volume after validating its size.
func NewVolume(shape [3]int, nSamples int, data []float32) (*Volume, error) {
	for i, d := range shape {
		if d <= 0 {
			return nil, configErr(fmt.Sprintf("shape[%d]", i), d, "must be > 0")
		}
	}
	if nSamples <= 0 {
		return nil, configErr("n_samples", nSamples, "must be > 0")
	}
	want := nSamples * shape[0] * shape[1] * shape[2]
	if len(data) != want {
		return nil, configErr("data", len(data), "expected %d values for %d samples of %v", want, nSamples, shape)
	}
	return &Volume{Shape: shape, NumSamples: nSamples, data: data}, nil
}

// Voxels returns the number of voxels in one sample.
func (v *Volume) Voxels() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

// At returns the value of voxel (spatial index) in sample.
func (v *Volume) At(sample, voxel int) float32 {
	return v.data[sample*v.Voxels()+voxel]
}

// Sample returns the flat voxel buffer of one sample. The slice aliases the
// volume's storage and must not be modified.
func (v *Volume) Sample(sample int) []float32 {
	n := v.Voxels()
	return v.data[sample*n : (sample+1)*n]
}

// Data returns the underlying flat buffer.
func (v *Volume) Data() []float32 { return v.data }

// Gather restricts every sample to the given voxels and returns one feature
// row per sample, in voxel order. It allocates a fresh matrix so callers may
// hand it to concurrent evaluators.
func (v *Volume) Gather(voxels []int) [][]float64 {
	return v.GatherSamples(nil, voxels)
}

// GatherSamples is like Gather but only for the listed samples. A nil samples
// slice means all samples.
func (v *Volume) GatherSamples(samples, voxels []int) [][]float64 {
	n := v.NumSamples
	if samples != nil {
		n = len(samples)
	}
	flat := make([]float64, n*len(voxels))
	rows := make([][]float64, n)
	stride := v.Voxels()
	for r := 0; r < n; r++ {
		s := r
		if samples != nil {
			s = samples[r]
		}
		row := flat[r*len(voxels) : (r+1)*len(voxels)]
		base := s * stride
		for j, vox := range voxels {
			row[j] = float64(v.data[base+vox])
		}
		rows[r] = row
	}
	return rows
}

// Features returns the listed samples (nil for all) over every voxel.
func (v *Volume) Features(samples []int) [][]float64 {
	all := make([]int, v.Voxels())
	for i := range all {
		all[i] = i
	}
	return v.GatherSamples(samples, all)
}

// subset returns a new Volume holding copies of the listed samples.
func (v *Volume) subset(samples []int) (*Volume, error) {
	n := v.Voxels()
	data := make([]float32, 0, len(samples)*n)
	for _, s := range samples {
		if s < 0 || s >= v.NumSamples {
			return nil, configErr("sample", s, "out of range [0, %d)", v.NumSamples)
		}
		data = append(data, v.Sample(s)...)
	}
	return NewVolume(v.Shape, len(samples), data)
}
