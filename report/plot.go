package report

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Noofbiz/brainDecode/monte"
	"github.com/Noofbiz/brainDecode/searchlight"
)

// sliceGrid exposes one axial slice of a score map channel as a
// plotter.GridXYZ. Unevaluated voxels are NaN.
type sliceGrid struct {
	sm       *searchlight.ScoreMap
	z, ch    int
	min, max float64
}

func newSliceGrid(sm *searchlight.ScoreMap, z, ch int) (*sliceGrid, error) {
	g := &sliceGrid{sm: sm, z: z, ch: ch, min: math.Inf(1), max: math.Inf(-1)}
	for x := 0; x < sm.Shape[0]; x++ {
		for y := 0; y < sm.Shape[1]; y++ {
			v := g.Z(x, y)
			if math.IsNaN(v) {
				continue
			}
			g.min = math.Min(g.min, v)
			g.max = math.Max(g.max, v)
		}
	}
	if math.IsInf(g.min, 1) {
		return nil, fmt.Errorf("slice z=%d has no evaluated voxels", z)
	}
	if g.max == g.min {
		g.max = g.min + 1
	}
	return g, nil
}

func (g *sliceGrid) Dims() (c, r int) { return g.sm.Shape[0], g.sm.Shape[1] }
func (g *sliceGrid) X(c int) float64  { return float64(c) }
func (g *sliceGrid) Y(r int) float64  { return float64(r) }
func (g *sliceGrid) Min() float64     { return g.min }
func (g *sliceGrid) Max() float64     { return g.max }

func (g *sliceGrid) Z(c, r int) float64 {
	if !g.sm.Evaluated(c, r, g.z) {
		return math.NaN()
	}
	return g.sm.At(c, r, g.z, g.ch)
}

// PlotSlice renders channel ch of the axial slice z of sm as a heat map. The
// image format follows the extension of path (png, svg, pdf...).
func PlotSlice(path string, sm *searchlight.ScoreMap, z, ch int) error {
	if sm == nil {
		return fmt.Errorf("score map is nil")
	}
	if z < 0 || z >= sm.Shape[2] {
		return fmt.Errorf("slice z=%d out of range [0, %d)", z, sm.Shape[2])
	}
	if ch < 0 || ch >= sm.Channels {
		return fmt.Errorf("channel %d out of range [0, %d)", ch, sm.Channels)
	}
	grid, err := newSliceGrid(sm, z, ch)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Searchlight scores, z=%d, channel %d (%.3f to %.3f)", z, ch, grid.min, grid.max)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	hm := plotter.NewHeatMap(grid, palette.Heat(64, 1))
	hm.NaN = color.Transparent
	p.Add(hm)

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save slice plot: %w", err)
	}
	return nil
}

// PlotNull renders the null distribution of res as a histogram with the
// observed score drawn as a vertical red line.
func PlotNull(path string, res *monte.Result, bins int) error {
	if res == nil || len(res.Null) == 0 {
		return fmt.Errorf("permutation result is empty")
	}
	if bins <= 0 {
		bins = 20
	}
	lo, hi := res.Null[0], res.Null[0]
	for _, v := range res.Null {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo == hi {
		return fmt.Errorf("null distribution is constant (%v)", lo)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Permutation null (n=%d), observed %.3f, p=%.4f", len(res.Null), res.Observed, res.PValue)
	p.X.Label.Text = "score"
	p.Y.Label.Text = "count"

	h, err := plotter.NewHist(plotter.Values(res.Null), bins)
	if err != nil {
		return err
	}
	h.FillColor = color.RGBA{R: 120, G: 120, B: 120, A: 180}
	p.Add(h)

	top := 0.0
	for _, b := range h.Bins {
		top = math.Max(top, b.Weight)
	}
	obs, err := plotter.NewLine(plotter.XYs{{X: res.Observed, Y: 0}, {X: res.Observed, Y: top}})
	if err != nil {
		return err
	}
	obs.Color = color.RGBA{R: 200, G: 30, B: 30, A: 255}
	obs.Width = vg.Points(1.5)
	p.Add(obs)
	p.Legend.Add("observed", obs)

	if err := ensureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save null plot: %w", err)
	}
	return nil
}
