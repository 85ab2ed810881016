package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bgzastrow/mace/internal/loss"
	"github.com/bgzastrow/mace/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
learning_rate: 0.01
epochs: 5
loss: combi
device: cpu
data:
  samples: 32
  batch_size: 4
plot:
  enabled: true
  log_scale: true
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.01, cfg.LearningRate)
	assert.Equal(t, 5, cfg.Epochs)
	assert.Equal(t, loss.ModeCombi, cfg.Loss)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, 32, cfg.Data.Samples)
	assert.Equal(t, 4, cfg.Data.BatchSize)
	assert.True(t, cfg.Plot.Enabled)
	assert.True(t, cfg.Plot.LogScale)

	// Unset keys keep their defaults.
	def := Default()
	assert.Equal(t, def.Data.Features, cfg.Data.Features)
	assert.Equal(t, def.Data.TrainFraction, cfg.Data.TrainFraction)
	assert.Equal(t, "loss", cfg.Plot.Name)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(strings.NewReader("epochs: 3\nbogus: 1\n"))
	assert.Error(t, err, "unknown key")

	_, err = Parse(strings.NewReader("loss: huber\n"))
	assert.ErrorContains(t, err, "unknown loss mode")

	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Default().Validate())

	cases := map[string]func(*Config){
		"lr":       func(c *Config) { c.LearningRate = 0 },
		"epochs":   func(c *Config) { c.Epochs = 0 },
		"loss":     func(c *Config) { c.Loss = loss.Mode(7) },
		"device":   func(c *Config) { c.Device = "tpu" },
		"samples":  func(c *Config) { c.Data.Samples = 1 },
		"features": func(c *Config) { c.Data.Features = 0 },
		"steps":    func(c *Config) { c.Data.Steps = 1 },
		"fraction": func(c *Config) { c.Data.TrainFraction = 1 },
		"batch":    func(c *Config) { c.Data.BatchSize = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestApplyOverrides(t *testing.T) {
	cfg := Default()
	yes, no := true, false
	cfg.Data.Shuffle = true

	require.NoError(t, cfg.ApplyOverrides(Overrides{
		LearningRate: 0.5,
		Epochs:       2,
		Loss:         "rel",
		Device:       "cpu",
		BatchSize:    3,
		Samples:      10,
		PlotDir:      "out",
		Plot:         &yes,
		Show:         &no,
	}))
	assert.Equal(t, 0.5, cfg.LearningRate)
	assert.Equal(t, 2, cfg.Epochs)
	assert.Equal(t, loss.ModeRel, cfg.Loss)
	assert.Equal(t, "cpu", cfg.Device)
	assert.Equal(t, 3, cfg.Data.BatchSize)
	assert.Equal(t, 10, cfg.Data.Samples)
	assert.Equal(t, "out", cfg.Plot.Dir)
	assert.True(t, cfg.Plot.Enabled)
	assert.False(t, cfg.Plot.Show)
	assert.False(t, cfg.Test, "nil override leaves value")

	assert.Error(t, cfg.ApplyOverrides(Overrides{Loss: "huber"}))
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Plot.Enabled = true

	tc := cfg.Train(tensor.CPU)
	assert.Equal(t, cfg.LearningRate, tc.LR)
	assert.Equal(t, cfg.Epochs, tc.Epochs)
	assert.True(t, tc.Plot)
	require.NoError(t, tc.Validate())

	sc := cfg.Synthetic()
	assert.Equal(t, cfg.Data.Samples, sc.Samples)
	assert.Equal(t, cfg.Seed, sc.Seed)

	assert.True(t, cfg.Loader(true).Shuffle)
	assert.False(t, cfg.Loader(false).Shuffle)

	mc := cfg.Model()
	assert.Equal(t, cfg.Data.Features, mc.Features)
	assert.Equal(t, cfg.Data.Params, mc.Params)
}
