// Command mace-train trains a MACE neural ODE on synthetic abundance data.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bgzastrow/mace/internal/config"
	"github.com/bgzastrow/mace/internal/data"
	"github.com/bgzastrow/mace/internal/device"
	"github.com/bgzastrow/mace/internal/model"
	"github.com/bgzastrow/mace/internal/plot"
	"github.com/bgzastrow/mace/internal/train"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "mace-train: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("mace-train", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfgPath := fs.String("config", "", "Path to YAML config")
	epochs := fs.Int("epochs", 0, "Number of training epochs")
	lr := fs.Float64("lr", 0, "Adam learning rate")
	lossName := fs.String("loss", "", "Loss policy: mse, rel or combi")
	deviceName := fs.String("device", "", "Compute device: auto, cpu or webgpu")
	batchSize := fs.Int("batch", 0, "Batch size")
	samples := fs.Int("samples", 0, "Number of synthetic samples")
	seed := fs.Uint64("seed", 0, "PRNG seed")
	plotDir := fs.String("plot-dir", "", "Directory of the loss plot")
	fs.Bool("plot", false, "Save a loss plot after training")
	fs.Bool("log-scale", false, "Plot losses on a log scale")
	fs.Bool("show", false, "Report the saved plot")
	fs.Bool("test", false, "Evaluate the model on the test split after training")
	verbose := fs.Bool("v", false, "Log every batch")

	if err := fs.Parse(args); err != nil {
		return err
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.Load(*cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	o := config.Overrides{
		LearningRate: *lr,
		Epochs:       *epochs,
		Loss:         *lossName,
		Device:       *deviceName,
		Seed:         *seed,
		BatchSize:    *batchSize,
		Samples:      *samples,
		PlotDir:      *plotDir,
	}
	// Boolean flags override the file only when given explicitly.
	fs.Visit(func(f *flag.Flag) {
		v, ok := f.Value.(flag.Getter).Get().(bool)
		if !ok {
			return
		}
		switch f.Name {
		case "plot":
			o.Plot = &v
		case "log-scale":
			o.LogScale = &v
		case "show":
			o.Show = &v
		case "test":
			o.Test = &v
		}
	})
	if err := cfg.ApplyOverrides(o); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	dev, err := device.Resolve(cfg.Device)
	if err != nil {
		return err
	}
	logger.Info("host", "info", device.Describe(dev))

	ds, err := data.Synthetic(cfg.Synthetic())
	if err != nil {
		return err
	}
	trainSet, testSet, err := data.Split(ds, cfg.Data.TrainFraction, cfg.Seed)
	if err != nil {
		return err
	}
	trainLoader, err := data.NewLoader(trainSet, cfg.Loader(true))
	if err != nil {
		return err
	}
	testLoader, err := data.NewLoader(testSet, cfg.Loader(false))
	if err != nil {
		return err
	}
	logger.Info("data", "train_samples", trainSet.Len(), "test_samples", testSet.Len(),
		"train_batches", trainLoader.Len(), "test_batches", testLoader.Len())

	m, err := model.NewLinearODE(cfg.Model())
	if err != nil {
		return err
	}

	opts := []train.Option{train.WithLogger(logger)}
	if cfg.Plot.Enabled {
		opts = append(opts, train.WithPlotter(&plot.LossPlotter{
			Dir:    cfg.Plot.Dir,
			Name:   cfg.Plot.Name,
			Logger: logger,
		}))
	}
	tr, err := train.NewTrainer(m, cfg.Train(dev), opts...)
	if err != nil {
		return err
	}
	if _, err := tr.Run(trainLoader, testLoader); err != nil {
		return fmt.Errorf("training failed: %w", err)
	}

	if cfg.Test {
		m.Eval()
		runner := &train.Runner{Device: dev, Loss: cfg.Loss, Logger: logger}
		if _, err := runner.Evaluate(testLoader, m); err != nil {
			return fmt.Errorf("test failed: %w", err)
		}
	}
	return nil
}
