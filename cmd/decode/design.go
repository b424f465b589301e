package main

import (
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Noofbiz/brainDecode/datasets"
)

func newLabelsCmd(a *app) *cobra.Command {
	def := a.defaults()
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "Generate block-design labels and chunks",
		Long: `Writes attributes.txt with one "label chunk" line per sample: every
condition repeated block-size times, the condition sequence repeated n-cycles
times, and chunk-size consecutive samples per chunk.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			d := &a.cfg.Design
			if f.Changed("block-size") {
				d.BlockSize, _ = f.GetInt("block-size")
			}
			if f.Changed("conditions") {
				d.Conditions, _ = f.GetStringSlice("conditions")
			}
			if f.Changed("n-cycles") {
				d.Cycles, _ = f.GetInt("n-cycles")
			}
			if f.Changed("chunk-size") {
				d.ChunkSize, _ = f.GetInt("chunk-size")
			}
			if f.Changed("n-chunks") {
				d.NChunks, _ = f.GetInt("n-chunks")
			}
			if ok, err := a.ready(cmd); !ok {
				return err
			}

			attrs, err := a.designAttributes()
			if err != nil {
				return err
			}
			path, err := a.writeAttributes(attrs)
			if err != nil {
				return err
			}
			a.log.Info("labels written",
				zap.String("path", path),
				zap.Int("samples", len(attrs.Labels)),
				zap.Strings("classes", attrs.Classes()),
				zap.Int("chunks", len(attrs.Groups())))
			return nil
		},
	}
	f := cmd.Flags()
	f.Int("block-size", def.Design.BlockSize, "consecutive samples per condition block")
	f.StringSlice("conditions", def.Design.Conditions, "condition names, in presentation order")
	f.Int("n-cycles", def.Design.Cycles, "repetitions of the condition sequence")
	f.Int("chunk-size", def.Design.ChunkSize, "samples per chunk")
	f.Int("n-chunks", def.Design.NChunks, "number of chunks")
	return cmd
}

func newSplitCmd(a *app) *cobra.Command {
	def := a.defaults()
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Randomly partition sample indices into train and test sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			if f.Changed("train-fraction") {
				a.cfg.Split.TrainFraction, _ = f.GetFloat64("train-fraction")
			}
			if f.Changed("seed") {
				a.cfg.Split.Seed, _ = f.GetInt64("seed")
			}
			if ok, err := a.ready(cmd); !ok {
				return err
			}

			n, _ := f.GetInt("n")
			if n == 0 {
				d := a.cfg.Design
				n = d.BlockSize * len(d.Conditions) * d.Cycles
			}
			part, err := datasets.SplitIndices(n, a.cfg.Split.TrainFraction, a.cfg.Split.Seed)
			if err != nil {
				return err
			}

			out, path, err := a.create("split.csv")
			if err != nil {
				return err
			}
			defer out.Close()
			w := csv.NewWriter(out)
			if err := w.Write([]string{"index", "set"}); err != nil {
				return err
			}
			for i := 0; i < part.N; i++ {
				set := "test"
				if part.IsTrain(i) {
					set = "train"
				}
				if err := w.Write([]string{strconv.Itoa(i), set}); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			a.log.Info("split written",
				zap.String("path", path),
				zap.Int("train", len(part.Train)),
				zap.Int("test", len(part.Test)))
			return out.Close()
		},
	}
	f := cmd.Flags()
	f.Float64("train-fraction", def.Split.TrainFraction, "fraction of samples in the training set")
	f.Int64("seed", def.Split.Seed, "shuffle seed")
	f.Int("n", 0, "number of samples (0 uses the design length)")
	return cmd
}

func newSynthCmd(a *app) *cobra.Command {
	def := a.defaults()
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic dataset with a planted informative cube",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			s := &a.cfg.Synth
			if f.Changed("signal") {
				s.Signal, _ = f.GetFloat64("signal")
			}
			if f.Changed("noise") {
				s.Noise, _ = f.GetFloat64("noise")
			}
			if f.Changed("seed") {
				s.Seed, _ = f.GetInt64("seed")
			}
			if ok, err := a.ready(cmd); !ok {
				return err
			}

			ds, err := datasets.Synthesize(a.cfg.SynthConfig())
			if err != nil {
				return err
			}
			volPath := a.outPath("volume.csv")
			if err := datasets.WriteVolumeCSV(volPath, ds.Volume); err != nil {
				return err
			}
			attrPath, err := a.writeAttributes(ds.Attributes)
			if err != nil {
				return err
			}
			a.log.Info("synthetic dataset written",
				zap.String("volume", volPath),
				zap.String("attributes", attrPath),
				zap.Int("samples", ds.Len()))
			return nil
		},
	}
	f := cmd.Flags()
	f.Float64("signal", def.Synth.Signal, "amplitude of the class pattern inside the informative cube")
	f.Float64("noise", def.Synth.Noise, "standard deviation of the Gaussian noise")
	f.Int64("seed", def.Synth.Seed, "generator seed")
	return cmd
}
