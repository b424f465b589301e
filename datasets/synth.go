package datasets

import (
	"math/rand"
)

// SynthConfig describes a synthetic block-design acquisition with a cube of
// informative voxels. Voxels inside the cube carry a class-specific pattern
// on top of Gaussian noise; every other voxel is pure noise.
type SynthConfig struct {
	Shape      [3]int
	BlockSize  int
	Conditions []string
	Cycles     int
	// NChunks splits the samples into equal contiguous runs. It must divide
	// BlockSize*len(Conditions)*Cycles.
	NChunks int

	// InformativeCenter and InformativeRadius define the cube (Chebyshev
	// radius) that carries signal.
	InformativeCenter [3]int
	InformativeRadius int

	Signal float64
	Noise  float64
	Seed   int64
}

// Informative reports whether the spatial coordinate lies in the planted cube.
func (c SynthConfig) Informative(x, y, z int) bool {
	r := c.InformativeRadius
	return abs(x-c.InformativeCenter[0]) <= r &&
		abs(y-c.InformativeCenter[1]) <= r &&
		abs(z-c.InformativeCenter[2]) <= r
}

// Synthesize generates a Dataset from cfg. The output depends only on cfg.
func Synthesize(cfg SynthConfig) (*Dataset, error) {
	labels, err := GenerateLabels(cfg.BlockSize, cfg.Conditions, cfg.Cycles)
	if err != nil {
		return nil, err
	}
	if cfg.NChunks <= 0 || len(labels)%cfg.NChunks != 0 {
		return nil, configErr("n_chunks", cfg.NChunks, "must be > 0 and divide %d samples", len(labels))
	}
	chunks, err := GenerateChunks(len(labels)/cfg.NChunks, cfg.NChunks)
	if err != nil {
		return nil, err
	}
	attrs, err := NewAttributes(labels, chunks)
	if err != nil {
		return nil, err
	}

	X, Y, Z := cfg.Shape[0], cfg.Shape[1], cfg.Shape[2]
	if X <= 0 || Y <= 0 || Z <= 0 {
		return nil, configErr("shape", cfg.Shape, "all dimensions must be > 0")
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	// one +/-1 pattern per class over the whole grid; only applied inside
	// the informative cube
	classIdx := attrs.ClassIndex()
	voxels := X * Y * Z
	patterns := make([][]float32, len(classIdx))
	for c := range patterns {
		p := make([]float32, voxels)
		for i := range p {
			if rng.Intn(2) == 0 {
				p[i] = -1
			} else {
				p[i] = 1
			}
		}
		patterns[c] = p
	}
	informative := make([]bool, voxels)
	for x := 0; x < X; x++ {
		for y := 0; y < Y; y++ {
			for z := 0; z < Z; z++ {
				informative[(x*Y+y)*Z+z] = cfg.Informative(x, y, z)
			}
		}
	}

	data := make([]float32, len(labels)*voxels)
	for s, label := range labels {
		pattern := patterns[classIdx[label]]
		base := s * voxels
		for v := 0; v < voxels; v++ {
			val := float32(rng.NormFloat64() * cfg.Noise)
			if informative[v] {
				val += float32(cfg.Signal) * pattern[v]
			}
			data[base+v] = val
		}
	}

	vol, err := NewVolume(cfg.Shape, len(labels), data)
	if err != nil {
		return nil, err
	}
	return Join(vol, attrs)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
