// Package config loads the run configuration of mace-train from YAML and
// merges command-line overrides into it.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bgzastrow/mace/internal/data"
	"github.com/bgzastrow/mace/internal/loss"
	"github.com/bgzastrow/mace/internal/model"
	"github.com/bgzastrow/mace/internal/tensor"
	"github.com/bgzastrow/mace/internal/train"
	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	LearningRate float64   `yaml:"learning_rate"`
	Epochs       int       `yaml:"epochs"`
	Loss         loss.Mode `yaml:"loss"`
	Device       string    `yaml:"device"`
	Seed         uint64    `yaml:"seed"`
	Test         bool      `yaml:"test"`

	Data DataConfig `yaml:"data"`
	Plot PlotConfig `yaml:"plot"`
}

// DataConfig describes the synthetic dataset and how it is batched.
type DataConfig struct {
	Samples       int     `yaml:"samples"`
	Features      int     `yaml:"features"`
	Params        int     `yaml:"params"`
	Steps         int     `yaml:"steps"`
	Span          float64 `yaml:"span"`
	LongFraction  float64 `yaml:"long_fraction"`
	TrainFraction float64 `yaml:"train_fraction"`
	BatchSize     int     `yaml:"batch_size"`
	Shuffle       bool    `yaml:"shuffle"`
}

// PlotConfig controls the loss plot written after training.
type PlotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Dir      string `yaml:"dir"`
	Name     string `yaml:"name"`
	LogScale bool   `yaml:"log_scale"`
	Show     bool   `yaml:"show"`
}

// Overrides captures CLI supplied values. Zero numbers, empty strings and
// nil pointers leave the config untouched.
type Overrides struct {
	LearningRate float64
	Epochs       int
	Loss         string
	Device       string
	Seed         uint64
	BatchSize    int
	Samples      int
	PlotDir      string

	Test     *bool
	Plot     *bool
	LogScale *bool
	Show     *bool
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LearningRate: 0.001,
		Epochs:       10,
		Loss:         loss.ModeMSE,
		Device:       "auto",
		Seed:         1,
		Data: DataConfig{
			Samples:       64,
			Features:      4,
			Params:        2,
			Steps:         16,
			Span:          0.01,
			LongFraction:  0.1,
			TrainFraction: 0.75,
			BatchSize:     8,
			Shuffle:       true,
		},
		Plot: PlotConfig{
			Dir:  ".",
			Name: "loss",
		},
	}
}

// Load reads and validates a Config from YAML. Keys missing from the file
// keep their Default values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Parse decodes YAML on top of Default. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) error {
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.Loss != "" {
		m, err := loss.ParseMode(o.Loss)
		if err != nil {
			return err
		}
		c.Loss = m
	}
	if o.Device != "" {
		c.Device = o.Device
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.BatchSize > 0 {
		c.Data.BatchSize = o.BatchSize
	}
	if o.Samples > 0 {
		c.Data.Samples = o.Samples
	}
	if o.PlotDir != "" {
		c.Plot.Dir = o.PlotDir
	}
	if o.Test != nil {
		c.Test = *o.Test
	}
	if o.Plot != nil {
		c.Plot.Enabled = *o.Plot
	}
	if o.LogScale != nil {
		c.Plot.LogScale = *o.LogScale
	}
	if o.Show != nil {
		c.Plot.Show = *o.Show
	}
	return nil
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %v)", c.LearningRate)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if _, err := c.Loss.Func(); err != nil {
		return err
	}
	if c.Device != "auto" {
		if _, err := tensor.ParseDevice(c.Device); err != nil {
			return err
		}
	}
	d := c.Data
	if d.Samples < 2 {
		return fmt.Errorf("data.samples must be >= 2 (got %d)", d.Samples)
	}
	if d.Features <= 0 || d.Params <= 0 {
		return fmt.Errorf("data.features and data.params must be > 0 (got %d, %d)", d.Features, d.Params)
	}
	if d.Steps < 2 {
		return fmt.Errorf("data.steps must be >= 2 (got %d)", d.Steps)
	}
	if d.TrainFraction <= 0 || d.TrainFraction >= 1 {
		return fmt.Errorf("data.train_fraction must be in (0, 1) (got %v)", d.TrainFraction)
	}
	if d.BatchSize <= 0 {
		return fmt.Errorf("data.batch_size must be > 0 (got %d)", d.BatchSize)
	}
	if c.Plot.Name == "" {
		c.Plot.Name = "loss"
	}
	return nil
}

// Train returns the training driver configuration for device dev.
func (c *Config) Train(dev tensor.Device) train.Config {
	return train.Config{
		LR:       c.LearningRate,
		Epochs:   c.Epochs,
		Device:   dev,
		Loss:     c.Loss,
		Plot:     c.Plot.Enabled,
		LogScale: c.Plot.LogScale,
		Show:     c.Plot.Show,
	}
}

// Synthetic returns the generator configuration of the dataset.
func (c *Config) Synthetic() data.SyntheticConfig {
	return data.SyntheticConfig{
		Samples:      c.Data.Samples,
		Features:     c.Data.Features,
		Params:       c.Data.Params,
		Steps:        c.Data.Steps,
		Span:         c.Data.Span,
		LongFraction: c.Data.LongFraction,
		Seed:         c.Seed,
	}
}

// Loader returns the batching configuration. Only the training loader
// shuffles.
func (c *Config) Loader(training bool) data.LoaderConfig {
	return data.LoaderConfig{
		BatchSize: c.Data.BatchSize,
		Shuffle:   training && c.Data.Shuffle,
		Seed:      c.Seed,
	}
}

// Model returns the configuration of the LinearODE model.
func (c *Config) Model() model.LinearODEConfig {
	return model.LinearODEConfig{
		Features: c.Data.Features,
		Params:   c.Data.Params,
		Seed:     c.Seed,
	}
}
