package data

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// SyntheticConfig configures Synthetic.
type SyntheticConfig struct {
	Samples  int     // Number of samples (default: 64)
	Features int     // Abundance features per sample (default: 4)
	Params   int     // Physical parameters per sample (default: 2)
	Steps    int     // Time steps per sample (default: 16)
	Span     float64 // Final time of a regular sample (default: 0.01)

	// LongFraction of the samples end at 2×Span instead of Span. With the
	// default span those samples exceed the training time-step threshold.
	LongFraction float64

	Seed uint64
}

func (c *SyntheticConfig) setDefaults() {
	if c.Samples == 0 {
		c.Samples = 64
	}
	if c.Features == 0 {
		c.Features = 4
	}
	if c.Params == 0 {
		c.Params = 2
	}
	if c.Steps == 0 {
		c.Steps = 16
	}
	if c.Span == 0 {
		c.Span = 0.01
	}
}

// Synthetic generates relaxing abundance curves
//
//	n_f(t) = eq_f + (n0_f - eq_f) exp(-k_f t / span)
//
// whose equilibria eq_f and rates k_f depend on the physical parameters.
func Synthetic(cfg SyntheticConfig) (*Dataset, error) {
	cfg.setDefaults()
	if cfg.Samples < 0 || cfg.Features < 0 || cfg.Params < 0 || cfg.Steps < 2 {
		return nil, fmt.Errorf("data: invalid synthetic layout (%d samples, %d features, %d params, %d steps)",
			cfg.Samples, cfg.Features, cfg.Params, cfg.Steps)
	}
	if cfg.LongFraction < 0 || cfg.LongFraction > 1 {
		return nil, fmt.Errorf("data: long fraction must be in [0, 1], got %v", cfg.LongFraction)
	}

	//nolint:gosec // synthetic data is not security-critical
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed+0x2545f4914f6cdd1d))
	samples := make([]Sample, cfg.Samples)

	for i := range samples {
		p := make([]float64, cfg.Params)
		for j := range p {
			p[j] = rng.Float64()
		}
		mean := 0.0
		for _, v := range p {
			mean += v
		}
		mean /= float64(len(p))

		span := cfg.Span
		if rng.Float64() < cfg.LongFraction {
			span *= 2
		}
		t := make([]float64, cfg.Steps)
		for k := range t {
			t[k] = span * float64(k) / float64(cfg.Steps-1)
		}

		n := make([][]float64, cfg.Features)
		for f := range n {
			n0 := rng.Float64()
			eq := 0.5 * (mean + float64(f)/float64(cfg.Features))
			rate := 1 + 2*p[f%len(p)]
			row := make([]float64, cfg.Steps)
			for k, tk := range t {
				row[k] = eq + (n0-eq)*math.Exp(-rate*tk/cfg.Span)
			}
			n[f] = row
		}

		samples[i] = Sample{N: n, P: p, T: t}
	}

	return NewDataset(samples)
}
