// Package data holds abundance time series in memory and serves them as
// minibatches to the training loop.
package data

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrEmptyDataset is returned when a dataset has no samples.
var ErrEmptyDataset = errors.New("data: dataset is empty")

// Sample is one abundance time series.
type Sample struct {
	N [][]float64 // abundances, N[feature][time]
	P []float64   // physical parameters
	T []float64   // time grid
}

// Dataset is an ordered collection of samples sharing one layout.
type Dataset struct {
	samples  []Sample
	features int
	params   int
	steps    int
}

// NewDataset validates that every sample has the same number of features,
// parameters and time steps.
func NewDataset(samples []Sample) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, ErrEmptyDataset
	}
	first := samples[0]
	if len(first.N) == 0 || len(first.P) == 0 || len(first.T) == 0 {
		return nil, errors.New("data: sample 0 has an empty component")
	}
	ds := &Dataset{
		samples:  samples,
		features: len(first.N),
		params:   len(first.P),
		steps:    len(first.T),
	}
	for i, s := range samples {
		if len(s.N) != ds.features || len(s.P) != ds.params || len(s.T) != ds.steps {
			return nil, fmt.Errorf("data: sample %d has layout (%d, %d, %d), want (%d, %d, %d)",
				i, len(s.N), len(s.P), len(s.T), ds.features, ds.params, ds.steps)
		}
		for f, row := range s.N {
			if len(row) != ds.steps {
				return nil, fmt.Errorf("data: sample %d feature %d has %d time steps, want %d",
					i, f, len(row), ds.steps)
			}
		}
	}
	return ds, nil
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.samples)
}

// Sample returns sample i.
func (d *Dataset) Sample(i int) Sample {
	return d.samples[i]
}

// Features returns the number of abundance features per sample.
func (d *Dataset) Features() int {
	return d.features
}

// Params returns the number of physical parameters per sample.
func (d *Dataset) Params() int {
	return d.params
}

// Steps returns the number of time steps per sample.
func (d *Dataset) Steps() int {
	return d.steps
}

// Split shuffles the samples with seed and returns the first frac of them
// as the training set and the rest as the test set.
func Split(d *Dataset, frac float64, seed uint64) (train, test *Dataset, err error) {
	if frac <= 0 || frac >= 1 {
		return nil, nil, fmt.Errorf("data: split fraction must be in (0, 1), got %v", frac)
	}
	n := int(float64(d.Len()) * frac)
	if n == 0 || n == d.Len() {
		return nil, nil, fmt.Errorf("data: split of %d samples at %v leaves one side empty", d.Len(), frac)
	}

	//nolint:gosec // shuffling is not security-critical
	rng := rand.New(rand.NewPCG(seed, seed+1))
	order := rng.Perm(d.Len())

	pick := func(idx []int) *Dataset {
		samples := make([]Sample, len(idx))
		for i, j := range idx {
			samples[i] = d.samples[j]
		}
		return &Dataset{samples: samples, features: d.features, params: d.params, steps: d.steps}
	}
	return pick(order[:n]), pick(order[n:]), nil
}
