// Command decode runs block-design decoding analyses: label generation,
// train/test splits, sparse searchlights, permutation tests and whole-volume
// MLP training.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/brainDecode/config"
	"github.com/Noofbiz/brainDecode/logging"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configPath  string
	logLevel    string
	development bool
	outDir      string
	printConfig bool

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "decode",
		Short: "Block-design MVPA and sparse searchlight decoding",
		Long: `decode generates block-design labels and chunks, splits samples, and runs
sparse searchlight, permutation and MLP decoding analyses on volume data.

Parameters come from a YAML file (--config) over built-in defaults; command
line flags override both. Without data.volume a synthetic dataset is used.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&a.development, "dev", false, "human-readable development logging")
	pf.StringVarP(&a.outDir, "out", "o", "", "output directory")
	pf.BoolVar(&a.printConfig, "print-config", false, "print the effective configuration and exit")

	root.AddCommand(
		newLabelsCmd(a),
		newSplitCmd(a),
		newSynthCmd(a),
		newSearchlightCmd(a),
		newPermuteCmd(a),
		newTrainCmd(a),
	)
	return root
}

// init loads the configuration, applies the persistent flag overrides and
// builds the logger.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	if f.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if f.Changed("dev") {
		cfg.Logging.Development = a.development
	}
	if f.Changed("out") {
		cfg.Output.Dir = a.outDir
	}
	a.cfg = cfg

	a.log, err = logging.New(cfg.Logging.Level, cfg.Logging.Development)
	return err
}

// ready validates the configuration once the subcommand applied its flag
// overrides. It returns false when the command should stop after printing
// the effective configuration.
func (a *app) ready(cmd *cobra.Command) (bool, error) {
	if err := a.cfg.Validate(); err != nil {
		return false, fmt.Errorf("invalid configuration: %w", err)
	}
	if a.printConfig {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		defer enc.Close()
		return false, enc.Encode(a.cfg)
	}
	if err := os.MkdirAll(a.cfg.Output.Dir, 0755); err != nil {
		return false, fmt.Errorf("mkdir %s: %w", a.cfg.Output.Dir, err)
	}
	return true, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "decode:", err)
		os.Exit(1)
	}
}
