package data

import (
	"fmt"
	"math/rand/v2"

	"github.com/bgzastrow/mace/internal/model"
	"github.com/bgzastrow/mace/internal/tensor"
)

// LoaderConfig configures a Loader.
type LoaderConfig struct {
	BatchSize int    // Samples per batch (default: 1)
	Shuffle   bool   // Reorder samples on every Reshuffle
	Seed      uint64 // Shuffle seed
}

// Loader serves a Dataset as minibatches. The last batch may be smaller.
type Loader struct {
	ds        *Dataset
	batchSize int
	shuffle   bool
	rng       *rand.Rand
	order     []int
}

// NewLoader creates a loader over ds. With Shuffle set, the initial order is
// already shuffled.
func NewLoader(ds *Dataset, cfg LoaderConfig) (*Loader, error) {
	if ds == nil || ds.Len() == 0 {
		return nil, ErrEmptyDataset
	}
	if cfg.BatchSize < 0 {
		return nil, fmt.Errorf("data: batch size must be >= 0 (got %d)", cfg.BatchSize)
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1
	}

	l := &Loader{
		ds:        ds,
		batchSize: cfg.BatchSize,
		shuffle:   cfg.Shuffle,
		//nolint:gosec // shuffling is not security-critical
		rng:   rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x5851f42d4c957f2d)),
		order: make([]int, ds.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reshuffle()
	return l, nil
}

// Len returns the number of batches.
func (l *Loader) Len() int {
	return (l.ds.Len() + l.batchSize - 1) / l.batchSize
}

// Reshuffle draws a new sample order. It is a no-op without Shuffle.
func (l *Loader) Reshuffle() {
	if !l.shuffle {
		return
	}
	l.rng.Shuffle(len(l.order), func(i, j int) {
		l.order[i], l.order[j] = l.order[j], l.order[i]
	})
}

// Batch assembles batch i as tensors N (batch × features × time),
// P (batch × params) and T (batch × time).
func (l *Loader) Batch(i int) (model.Batch, error) {
	if i < 0 || i >= l.Len() {
		return model.Batch{}, fmt.Errorf("data: batch %d out of range [0, %d)", i, l.Len())
	}
	start := i * l.batchSize
	end := min(start+l.batchSize, l.ds.Len())
	size := end - start
	f, np, steps := l.ds.features, l.ds.params, l.ds.steps

	n := make([]float64, 0, size*f*steps)
	p := make([]float64, 0, size*np)
	t := make([]float64, 0, size*steps)
	for _, idx := range l.order[start:end] {
		s := l.ds.samples[idx]
		for _, row := range s.N {
			n = append(n, row...)
		}
		p = append(p, s.P...)
		t = append(t, s.T...)
	}

	b := model.Batch{
		N: tensor.MustNew(n, tensor.Shape{size, f, steps}),
		P: tensor.MustNew(p, tensor.Shape{size, np}),
		T: tensor.MustNew(t, tensor.Shape{size, steps}),
	}
	return b, b.Validate()
}
