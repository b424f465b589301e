package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/Noofbiz/brainDecode/crossval"
	"github.com/Noofbiz/brainDecode/datasets"
	"github.com/Noofbiz/brainDecode/report"
	"github.com/Noofbiz/brainDecode/searchlight"
	"github.com/Noofbiz/brainDecode/simple"
)

func newSearchlightCmd(a *app) *cobra.Command {
	def := a.defaults()
	cmd := &cobra.Command{
		Use:   "searchlight",
		Short: "Run a sparse searchlight and write the score map",
		Long: `Evaluates the configured classifier by leave-one-chunk-out cross-validation
in a sphere around every step-th eligible voxel, then averages the scores of
all spheres covering each voxel. Writes searchlight.gob, searchlight.csv and a
heat map of the slice holding the best voxel.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			s := &a.cfg.Searchlight
			if f.Changed("radius") {
				s.Radius, _ = f.GetFloat64("radius")
			}
			if f.Changed("step") {
				s.Step, _ = f.GetInt("step")
			}
			if f.Changed("workers") {
				s.Workers, _ = f.GetInt("workers")
			}
			if f.Changed("classifier") {
				s.Classifier, _ = f.GetString("classifier")
			}
			if f.Changed("per-fold") {
				s.PerFold, _ = f.GetBool("per-fold")
			}
			if ok, err := a.ready(cmd); !ok {
				return err
			}

			ds, mask, err := a.loadDataset()
			if err != nil {
				return err
			}
			newClf, err := a.cfg.NewClassifier()
			if err != nil {
				return err
			}
			eval := crossval.Evaluator{New: newClf, PerFold: s.PerFold}
			sl, err := searchlight.New(ds.Shape, a.cfg.SearchlightConfig(mask, a.log), eval)
			if err != nil {
				return err
			}
			sm, err := sl.Run(cmd.Context(), ds)
			if err != nil {
				return err
			}

			gobPath := a.outPath("searchlight.gob")
			if err := report.SaveScoreMap(gobPath, sm); err != nil {
				return err
			}
			out, csvPath, err := a.create("searchlight.csv")
			if err != nil {
				return err
			}
			if err := report.WriteScoreMapCSV(out, sm); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}

			fields := []zap.Field{
				zap.String("run", sm.RunID),
				zap.String("scores", gobPath),
				zap.String("csv", csvPath),
				zap.Int("centers", len(sm.Centers)),
			}
			if best, score, ok := sm.Best(); ok {
				c := sl.Grid().Coord(best)
				plotPath := a.outPath(fmt.Sprintf("searchlight_z%d.png", c.Z))
				if err := report.PlotSlice(plotPath, sm, c.Z, 0); err != nil {
					a.log.Warn("slice plot failed", zap.Error(err))
				} else {
					fields = append(fields, zap.String("plot", plotPath))
				}
				fields = append(fields, zap.Stringer("best", c), zap.Float64("best_score", score))
			}
			a.log.Info("searchlight written", fields...)
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64("radius", def.Searchlight.Radius, "sphere radius in voxels")
	f.Int("step", def.Searchlight.Step, "use every step-th eligible voxel as a center")
	f.Int("workers", def.Searchlight.Workers, "concurrent evaluations (0 = NumCPU)")
	f.String("classifier", def.Searchlight.Classifier, "classifier: gnb, centroid or mlp")
	f.Bool("per-fold", def.Searchlight.PerFold, "one score channel per cross-validation fold")
	return cmd
}

func newPermuteCmd(a *app) *cobra.Command {
	def := a.defaults()
	cmd := &cobra.Command{
		Use:   "permute",
		Short: "Permutation test of the decoding score in one sphere",
		Long: `Scores the sphere of the given radius around the given center by
leave-one-chunk-out cross-validation, then repeats with labels shuffled within
each chunk to build a null distribution. Writes null.csv and null.png.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			p := &a.cfg.Permutation
			if f.Changed("n-perms") {
				p.NumPerms, _ = f.GetInt("n-perms")
			}
			if f.Changed("seed") {
				p.Seed, _ = f.GetInt64("seed")
			}
			if f.Changed("workers") {
				p.Workers, _ = f.GetInt("workers")
			}
			if f.Changed("radius") {
				p.Radius, _ = f.GetFloat64("radius")
			}
			if f.Changed("center") {
				c, _ := f.GetIntSlice("center")
				if len(c) != 3 {
					return datasets.NewConfigurationError("center", c, "expected x,y,z")
				}
				copy(p.Center[:], c)
			}
			if f.Changed("classifier") {
				a.cfg.Searchlight.Classifier, _ = f.GetString("classifier")
			}
			if ok, err := a.ready(cmd); !ok {
				return err
			}

			ds, mask, err := a.loadDataset()
			if err != nil {
				return err
			}
			grid, err := searchlight.NewGrid(ds.Shape, mask)
			if err != nil {
				return err
			}
			center := searchlight.Coord{X: p.Center[0], Y: p.Center[1], Z: p.Center[2]}
			voxels := grid.Neighborhood(grid.Index(center), p.Radius)
			if len(voxels) == 0 {
				return datasets.NewConfigurationError("center", center, "neighborhood is empty after masking")
			}
			newClf, err := a.cfg.NewClassifier()
			if err != nil {
				return err
			}
			features := ds.Gather(voxels)
			score := func(ctx context.Context, labels []string) (float64, error) {
				accs, err := crossval.CrossValidate(ctx, newClf, features, labels, ds.Chunks)
				if err != nil {
					return 0, err
				}
				return stat.Mean(accs, nil), nil
			}

			res, err := a.cfg.PermutationTest(a.log).Run(cmd.Context(), ds.Labels, ds.Chunks, score)
			if err != nil {
				return err
			}
			out, csvPath, err := a.create("null.csv")
			if err != nil {
				return err
			}
			if err := report.WriteNullCSV(out, res); err != nil {
				out.Close()
				return err
			}
			if err := out.Close(); err != nil {
				return err
			}
			plotPath := a.outPath("null.png")
			if err := report.PlotNull(plotPath, res, 0); err != nil {
				a.log.Warn("null plot failed", zap.Error(err))
			}
			a.log.Info("permutation test written",
				zap.Stringer("center", center),
				zap.Int("voxels", len(voxels)),
				zap.Float64("observed", res.Observed),
				zap.Float64("p", res.PValue),
				zap.Float64("z", res.ZScore()),
				zap.String("csv", csvPath))
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("n-perms", def.Permutation.NumPerms, "number of permutations")
	f.Int64("seed", def.Permutation.Seed, "permutation seed")
	f.Int("workers", def.Permutation.Workers, "concurrent permutations (0 = NumCPU)")
	f.Float64("radius", def.Permutation.Radius, "sphere radius in voxels")
	f.IntSlice("center", def.Permutation.Center[:], "sphere center as x,y,z")
	f.String("classifier", def.Searchlight.Classifier, "classifier: gnb, centroid or mlp")
	return cmd
}

func newTrainCmd(a *app) *cobra.Command {
	def := a.defaults()
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the MLP on whole volumes and report held-out accuracy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			m := &a.cfg.Model
			if f.Changed("epochs") {
				m.Epochs, _ = f.GetInt("epochs")
			}
			if f.Changed("learning-rate") {
				m.LearningRate, _ = f.GetFloat64("learning-rate")
			}
			if f.Changed("batch-size") {
				m.BatchSize, _ = f.GetInt("batch-size")
			}
			if f.Changed("optimizer") {
				m.Optimizer, _ = f.GetString("optimizer")
			}
			if f.Changed("train-fraction") {
				a.cfg.Split.TrainFraction, _ = f.GetFloat64("train-fraction")
			}
			if ok, err := a.ready(cmd); !ok {
				return err
			}

			ds, _, err := a.loadDataset()
			if err != nil {
				return err
			}
			part, err := datasets.SplitIndices(ds.Len(), a.cfg.Split.TrainFraction, a.cfg.Split.Seed)
			if err != nil {
				return err
			}
			batcher, err := ds.Batcher(part.Train, m.BatchSize, m.Seed)
			if err != nil {
				return err
			}
			model, err := simple.NewModel(a.cfg.ModelConfig(a.log))
			if err != nil {
				return err
			}
			if err := model.FitBatcher(batcher, ds.Classes()); err != nil {
				return fmt.Errorf("train: %w", err)
			}

			trainAcc, err := model.Accuracy(ds.Features(part.Train), labelsAt(ds, part.Train))
			if err != nil {
				return err
			}
			fields := []zap.Field{
				zap.Int("train", len(part.Train)),
				zap.Int("test", len(part.Test)),
				zap.Float64("train_accuracy", trainAcc),
			}
			if len(part.Test) > 0 {
				testAcc, err := model.Accuracy(ds.Features(part.Test), labelsAt(ds, part.Test))
				if err != nil {
					return err
				}
				fields = append(fields, zap.Float64("test_accuracy", testAcc))
			}
			a.log.Info("training completed", fields...)
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("epochs", def.Model.Epochs, "training epochs")
	f.Float64("learning-rate", def.Model.LearningRate, "optimizer learning rate")
	f.Int("batch-size", def.Model.BatchSize, "mini-batch size")
	f.String("optimizer", def.Model.Optimizer, "optimizer: adam or sgd")
	f.Float64("train-fraction", def.Split.TrainFraction, "fraction of samples used for training")
	return cmd
}

func labelsAt(ds *datasets.Dataset, idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = ds.Labels[j]
	}
	return out
}
