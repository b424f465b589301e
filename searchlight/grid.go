package searchlight

import (
	"fmt"
	"math"

	"github.com/Noofbiz/brainDecode/datasets"
)

// Coord is a voxel position on the grid.
type Coord struct {
	X, Y, Z int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Grid is the discrete 3D index space of a volume plus an optional inclusion
// mask. Spatial indices are row-major: (x*Y+y)*Z+z.
type Grid struct {
	Shape [3]int
	// Mask marks included voxels; nil includes every voxel.
	Mask []bool
}

// NewGrid validates shape and mask.
func NewGrid(shape [3]int, mask []bool) (*Grid, error) {
	for i, d := range shape {
		if d <= 0 {
			return nil, datasets.NewConfigurationError(fmt.Sprintf("shape[%d]", i), d, "must be > 0")
		}
	}
	g := &Grid{Shape: shape}
	if mask != nil {
		if len(mask) != g.Size() {
			return nil, datasets.NewConfigurationError("mask", len(mask), "expected %d voxels for shape %v", g.Size(), shape)
		}
		g.Mask = append([]bool(nil), mask...)
	}
	return g, nil
}

// Size returns the number of grid points.
func (g *Grid) Size() int {
	return g.Shape[0] * g.Shape[1] * g.Shape[2]
}

// Index returns the spatial index of c. It does not check bounds.
func (g *Grid) Index(c Coord) int {
	return (c.X*g.Shape[1]+c.Y)*g.Shape[2] + c.Z
}

// Coord returns the coordinate of spatial index i.
func (g *Grid) Coord(i int) Coord {
	z := i % g.Shape[2]
	i /= g.Shape[2]
	y := i % g.Shape[1]
	x := i / g.Shape[1]
	return Coord{X: x, Y: y, Z: z}
}

// InBounds reports whether c lies inside the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.Shape[0] &&
		c.Y >= 0 && c.Y < g.Shape[1] &&
		c.Z >= 0 && c.Z < g.Shape[2]
}

// Included reports whether spatial index i passes the mask.
func (g *Grid) Included(i int) bool {
	return g.Mask == nil || g.Mask[i]
}

// Eligible returns every included spatial index in row-major order.
func (g *Grid) Eligible() []int {
	out := make([]int, 0, g.Size())
	for i := 0; i < g.Size(); i++ {
		if g.Included(i) {
			out = append(out, i)
		}
	}
	return out
}

// Centers returns every step-th eligible index, starting with the first.
func (g *Grid) Centers(step int) []int {
	eligible := g.Eligible()
	out := make([]int, 0, (len(eligible)+step-1)/step)
	for i := 0; i < len(eligible); i += step {
		out = append(out, eligible[i])
	}
	return out
}

// sphere is the list of integer offsets within a Euclidean radius, in
// lexicographic (dx, dy, dz) order so that applying it to a center yields
// ascending spatial indices.
type sphere []Coord

func newSphere(radius float64) sphere {
	r := int(math.Floor(radius))
	r2 := radius * radius
	var s sphere
	for dx := -r; dx <= r; dx++ {
		for dy := -r; dy <= r; dy++ {
			for dz := -r; dz <= r; dz++ {
				if float64(dx*dx+dy*dy+dz*dz) <= r2 {
					s = append(s, Coord{X: dx, Y: dy, Z: dz})
				}
			}
		}
	}
	return s
}

// neighborhood applies the sphere at center, dropping out-of-bounds and
// masked points.
func (g *Grid) neighborhood(s sphere, center int) []int {
	c := g.Coord(center)
	out := make([]int, 0, len(s))
	for _, off := range s {
		p := Coord{X: c.X + off.X, Y: c.Y + off.Y, Z: c.Z + off.Z}
		if !g.InBounds(p) {
			continue
		}
		idx := g.Index(p)
		if g.Included(idx) {
			out = append(out, idx)
		}
	}
	return out
}

// Neighborhood returns the in-bounds, included spatial indices within radius
// of center, in ascending order.
func (g *Grid) Neighborhood(center int, radius float64) []int {
	return g.neighborhood(newSphere(radius), center)
}
