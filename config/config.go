// Package config holds the YAML configuration of the decode command.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/brainDecode/crossval"
	"github.com/Noofbiz/brainDecode/datasets"
	"github.com/Noofbiz/brainDecode/monte"
	"github.com/Noofbiz/brainDecode/searchlight"
	"github.com/Noofbiz/brainDecode/simple"
)

// Config is the root configuration.
type Config struct {
	Design      DesignConfig      `yaml:"design"`
	Data        DataConfig        `yaml:"data"`
	Synth       SynthConfig       `yaml:"synth"`
	Split       SplitConfig       `yaml:"split"`
	Searchlight SearchlightConfig `yaml:"searchlight"`
	Permutation PermutationConfig `yaml:"permutation"`
	Model       ModelConfig       `yaml:"model"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// DesignConfig describes the block design used to generate labels and chunks.
type DesignConfig struct {
	BlockSize  int      `yaml:"block_size"`
	Conditions []string `yaml:"conditions"`
	Cycles     int      `yaml:"n_cycles"`
	ChunkSize  int      `yaml:"chunk_size"`
	NChunks    int      `yaml:"n_chunks"`
}

// DataConfig points at the input files. An empty Volume means the data is
// synthesized from Synth.
type DataConfig struct {
	Shape      [3]int `yaml:"shape"`
	Volume     string `yaml:"volume"`
	Attributes string `yaml:"attributes"`
	Mask       string `yaml:"mask"`
}

// SynthConfig controls the synthetic dataset.
type SynthConfig struct {
	InformativeCenter [3]int  `yaml:"informative_center"`
	InformativeRadius int     `yaml:"informative_radius"`
	Signal            float64 `yaml:"signal"`
	Noise             float64 `yaml:"noise"`
	Seed              int64   `yaml:"seed"`
}

// SplitConfig controls the train/test partition.
type SplitConfig struct {
	TrainFraction float64 `yaml:"train_fraction"`
	Seed          int64   `yaml:"seed"`
}

// SearchlightConfig controls the searchlight run.
type SearchlightConfig struct {
	Radius           float64       `yaml:"radius"`
	Step             int           `yaml:"step"`
	Workers          int           `yaml:"workers"`
	Classifier       string        `yaml:"classifier"`
	PerFold          bool          `yaml:"per_fold"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// PermutationConfig controls the permutation test.
type PermutationConfig struct {
	NumPerms int   `yaml:"n_perms"`
	Seed     int64 `yaml:"seed"`
	Workers  int   `yaml:"workers"`
	// Center and Radius select the sphere whose score is tested.
	Center [3]int  `yaml:"center"`
	Radius float64 `yaml:"radius"`
}

// ModelConfig holds the MLP hyperparameters.
type ModelConfig struct {
	HiddenSizes  []int   `yaml:"hidden_sizes"`
	LearningRate float64 `yaml:"learning_rate"`
	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	Seed         int64   `yaml:"seed"`
	Optimizer    string  `yaml:"optimizer"`
	ClipNorm     float32 `yaml:"clip_norm"`
}

// OutputConfig sets where results are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Classifiers lists the valid SearchlightConfig.Classifier values.
var Classifiers = []string{"gnb", "centroid", "mlp"}

// Default returns the built-in configuration: the 8-condition, 12-cycle
// design with 6 chunks of 64 volumes on a synthetic 10x10x10 grid.
func Default() *Config {
	return &Config{
		Design: DesignConfig{
			BlockSize:  4,
			Conditions: []string{"bottle", "cat", "chair", "face", "house", "scissors", "scrambledpix", "shoe"},
			Cycles:     12,
			ChunkSize:  64,
			NChunks:    6,
		},
		Data: DataConfig{
			Shape: [3]int{10, 10, 10},
		},
		Synth: SynthConfig{
			InformativeCenter: [3]int{5, 5, 5},
			InformativeRadius: 1,
			Signal:            1,
			Noise:             1,
			Seed:              1,
		},
		Split: SplitConfig{
			TrainFraction: 0.8,
			Seed:          1,
		},
		Searchlight: SearchlightConfig{
			Radius:           1,
			Step:             1,
			Classifier:       "gnb",
			ProgressInterval: 3 * time.Second,
		},
		Permutation: PermutationConfig{
			NumPerms: 100,
			Seed:     1,
			Center:   [3]int{5, 5, 5},
			Radius:   2,
		},
		Model: ModelConfig{
			HiddenSizes:  []int{64},
			LearningRate: 0.001,
			Epochs:       10,
			BatchSize:    8,
			Seed:         1,
			Optimizer:    "adam",
		},
		Output: OutputConfig{
			Dir: "output",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected. An
// empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports every invalid field as a *datasets.ConfigurationError,
// joined into one error.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, field string, value any, reason string) {
		if !ok {
			errs = append(errs, datasets.NewConfigurationError(field, value, "%s", reason))
		}
	}

	d := c.Design
	check(d.BlockSize > 0, "design.block_size", d.BlockSize, "must be > 0")
	check(len(d.Conditions) > 0, "design.conditions", d.Conditions, "must not be empty")
	check(d.Cycles > 0, "design.n_cycles", d.Cycles, "must be > 0")
	check(d.ChunkSize > 0, "design.chunk_size", d.ChunkSize, "must be > 0")
	check(d.NChunks > 0, "design.n_chunks", d.NChunks, "must be > 0")
	if d.BlockSize > 0 && d.Cycles > 0 && d.ChunkSize > 0 && d.NChunks > 0 {
		n := d.BlockSize * len(d.Conditions) * d.Cycles
		check(n == d.ChunkSize*d.NChunks, "design.n_chunks", d.NChunks,
			fmt.Sprintf("%d chunks of %d do not cover %d labels", d.NChunks, d.ChunkSize, n))
	}

	s := c.Data.Shape
	check(s[0] > 0 && s[1] > 0 && s[2] > 0, "data.shape", s, "all dimensions must be > 0")

	check(c.Split.TrainFraction >= 0 && c.Split.TrainFraction <= 1, "split.train_fraction", c.Split.TrainFraction, "must be in [0, 1]")

	sl := c.Searchlight
	check(sl.Radius >= 0, "searchlight.radius", sl.Radius, "must be >= 0")
	check(sl.Step >= 1, "searchlight.step", sl.Step, "must be >= 1")
	check(sl.Workers >= 0, "searchlight.workers", sl.Workers, "must be >= 0")
	validClf := false
	for _, name := range Classifiers {
		validClf = validClf || sl.Classifier == name
	}
	check(validClf, "searchlight.classifier", sl.Classifier, fmt.Sprintf("must be one of %v", Classifiers))

	p := c.Permutation
	check(p.NumPerms > 0, "permutation.n_perms", p.NumPerms, "must be > 0")
	check(p.Workers >= 0, "permutation.workers", p.Workers, "must be >= 0")
	check(p.Radius >= 0, "permutation.radius", p.Radius, "must be >= 0")
	inGrid := true
	for i := range p.Center {
		inGrid = inGrid && p.Center[i] >= 0 && p.Center[i] < s[i]
	}
	check(inGrid, "permutation.center", p.Center, "must lie inside data.shape")

	m := c.Model
	check(m.Optimizer == "adam" || m.Optimizer == "sgd", "model.optimizer", m.Optimizer, "must be adam or sgd")
	check(m.Epochs > 0, "model.epochs", m.Epochs, "must be > 0")
	check(m.BatchSize > 0, "model.batch_size", m.BatchSize, "must be > 0")
	check(m.LearningRate > 0, "model.learning_rate", m.LearningRate, "must be > 0")

	return errors.Join(errs...)
}

// SynthConfig returns the synthetic dataset configuration for this design.
func (c *Config) SynthConfig() datasets.SynthConfig {
	return datasets.SynthConfig{
		Shape:             c.Data.Shape,
		BlockSize:         c.Design.BlockSize,
		Conditions:        c.Design.Conditions,
		Cycles:            c.Design.Cycles,
		NChunks:           c.Design.NChunks,
		InformativeCenter: c.Synth.InformativeCenter,
		InformativeRadius: c.Synth.InformativeRadius,
		Signal:            c.Synth.Signal,
		Noise:             c.Synth.Noise,
		Seed:              c.Synth.Seed,
	}
}

// ModelConfig returns the MLP configuration.
func (c *Config) ModelConfig(logger *zap.Logger) simple.Config {
	return simple.Config{
		HiddenSizes:  c.Model.HiddenSizes,
		LearningRate: c.Model.LearningRate,
		Epochs:       c.Model.Epochs,
		BatchSize:    c.Model.BatchSize,
		Seed:         c.Model.Seed,
		Optimizer:    c.Model.Optimizer,
		ClipNorm:     c.Model.ClipNorm,
		Logger:       logger,
	}
}

// NewClassifier returns a constructor for the configured searchlight
// classifier.
func (c *Config) NewClassifier() (func() crossval.Classifier, error) {
	switch c.Searchlight.Classifier {
	case "gnb":
		return crossval.NewGaussianNB, nil
	case "centroid":
		return crossval.NewNearestCentroid, nil
	case "mlp":
		cfg := c.ModelConfig(nil)
		if _, err := simple.NewModel(cfg); err != nil {
			return nil, err
		}
		return func() crossval.Classifier {
			// validated above
			m, _ := simple.NewModel(cfg)
			return m
		}, nil
	}
	return nil, datasets.NewConfigurationError("searchlight.classifier", c.Searchlight.Classifier, "must be one of %v", Classifiers)
}

// SearchlightConfig returns the searchlight parameters.
func (c *Config) SearchlightConfig(mask []bool, logger *zap.Logger) searchlight.Config {
	return searchlight.Config{
		Radius:           c.Searchlight.Radius,
		Step:             c.Searchlight.Step,
		Mask:             mask,
		Workers:          c.Searchlight.Workers,
		ProgressInterval: c.Searchlight.ProgressInterval,
		Logger:           logger,
	}
}

// PermutationTest returns the permutation test parameters.
func (c *Config) PermutationTest(logger *zap.Logger) monte.Permutation {
	return monte.Permutation{
		NumPerms: c.Permutation.NumPerms,
		Seed:     c.Permutation.Seed,
		Workers:  c.Permutation.Workers,
		Logger:   logger,
	}
}
