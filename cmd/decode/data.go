package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Noofbiz/brainDecode/config"
	"github.com/Noofbiz/brainDecode/datasets"
)

// designAttributes builds labels and chunks from the configured block design.
func (a *app) designAttributes() (datasets.Attributes, error) {
	d := a.cfg.Design
	labels, err := datasets.GenerateLabels(d.BlockSize, d.Conditions, d.Cycles)
	if err != nil {
		return datasets.Attributes{}, err
	}
	chunks, err := datasets.GenerateChunks(d.ChunkSize, d.NChunks)
	if err != nil {
		return datasets.Attributes{}, err
	}
	return datasets.NewAttributes(labels, chunks)
}

// loadDataset returns the configured dataset and its mask (nil when every
// voxel is included). Without data.volume the dataset is synthesized.
func (a *app) loadDataset() (*datasets.Dataset, []bool, error) {
	dc := a.cfg.Data
	var mask []bool
	if dc.Mask != "" {
		var err error
		if mask, err = datasets.LoadMaskCSV(dc.Mask, dc.Shape); err != nil {
			return nil, nil, err
		}
	}

	if dc.Volume == "" {
		ds, err := datasets.Synthesize(a.cfg.SynthConfig())
		if err != nil {
			return nil, nil, fmt.Errorf("synthesize dataset: %w", err)
		}
		a.log.Info("using synthetic dataset",
			zap.Int("samples", ds.Len()),
			zap.Ints("shape", ds.Shape[:]),
			zap.Ints("informative_center", a.cfg.Synth.InformativeCenter[:]))
		return ds, mask, nil
	}

	vol, err := datasets.LoadVolumeCSV(dc.Volume, dc.Shape)
	if err != nil {
		return nil, nil, err
	}
	var attrs datasets.Attributes
	if dc.Attributes != "" {
		attrs, err = datasets.LoadAttributes(dc.Attributes)
	} else {
		attrs, err = a.designAttributes()
	}
	if err != nil {
		return nil, nil, err
	}
	ds, err := datasets.Join(vol, attrs)
	if err != nil {
		return nil, nil, err
	}
	a.log.Info("loaded dataset",
		zap.String("volume", dc.Volume),
		zap.Int("samples", ds.Len()),
		zap.Int("classes", len(ds.Classes())),
		zap.Int("chunks", len(ds.Groups())))
	return ds, mask, nil
}

// defaults returns the built-in configuration, used for flag help defaults.
func (a *app) defaults() *config.Config { return config.Default() }

func (a *app) outPath(name string) string {
	return filepath.Join(a.cfg.Output.Dir, name)
}

// create opens a file in the output directory for writing.
func (a *app) create(name string) (*os.File, string, error) {
	path := a.outPath(name)
	f, err := os.Create(path)
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", path, err)
	}
	return f, path, nil
}

func (a *app) writeAttributes(attrs datasets.Attributes) (string, error) {
	f, path, err := a.create("attributes.txt")
	if err != nil {
		return "", err
	}
	if err := datasets.WriteAttributes(f, attrs); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
