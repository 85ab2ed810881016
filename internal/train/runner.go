// Package train runs training, validation and diagnostic evaluation passes
// of a MACE model over minibatch data sources.
//
// All passes are synchronous and single-threaded. The model is a mutable
// capability owned by the caller: passes toggle nothing but the gradient
// tape, and the optimizer mutates the model parameters in place.
package train

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bgzastrow/mace/internal/autodiff"
	"github.com/bgzastrow/mace/internal/loss"
	"github.com/bgzastrow/mace/internal/model"
	"github.com/bgzastrow/mace/internal/optim"
	"github.com/bgzastrow/mace/internal/tensor"
)

// MaxTimeStep is the exclusive upper bound on the last time value of a
// batch (T[-1,-1]) for the batch to be used in a training epoch.
const MaxTimeStep = 0.011003478870511375

var (
	// ErrEmptyEpoch is returned when an epoch processes no batch, either
	// because the source is empty or because every batch was filtered out.
	ErrEmptyEpoch = errors.New("train: no batch processed in epoch")

	// ErrSolverFailure matches the error returned by Evaluate when the
	// model reports StatusSolverFailure.
	ErrSolverFailure = errors.New("train: neural ODE could not be solved")
)

// DataSource yields minibatches by index.
type DataSource interface {
	Len() int
	Batch(i int) (model.Batch, error)
}

// Shuffler is implemented by data sources that reorder their samples
// between training epochs.
type Shuffler interface {
	Reshuffle()
}

// EpochResult summarizes one training epoch.
type EpochResult struct {
	Loss    float64 // Mean loss over processed batches
	Status  int     // Sum of solver failure statuses
	Batches int     // Processed batches
	Skipped int     // Batches rejected by the time-step filter
}

// Runner executes single passes over a data source.
type Runner struct {
	Device tensor.Device
	Loss   loss.Mode
	Logger *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// TrainEpoch runs one optimization pass over src.
//
// A batch is used only if T[-1,-1] < MaxTimeStep; other batches count
// neither in the loss nor in the divisor. For each used batch the model is
// run from N[:,0,:] in time-major layout, the loss against the full
// sequence is accumulated and one ZeroGrad/Backward/Step cycle is applied.
// Batches reporting StatusSolverFailure add it to EpochResult.Status and
// are still trained on.
func (r *Runner) TrainEpoch(src DataSource, m model.Model, opt optim.Optimizer) (EpochResult, error) {
	var res EpochResult
	total := 0.0
	n := src.Len()
	log := r.logger()

	for i := range n {
		log.Debug("batch", "index", i+1, "of", n)

		b, err := r.load(src, i)
		if err != nil {
			return res, err
		}
		if last := b.T.At(-1, -1); !(last < MaxTimeStep) {
			res.Skipped++
			continue
		}

		target, pred, status, err := forward(m, b)
		if err != nil {
			return res, fmt.Errorf("train: batch %d: %w", i, err)
		}
		if status == model.StatusSolverFailure {
			res.Status += int(status)
		}

		v, err := loss.Compute(r.Loss, target, pred)
		if err != nil {
			return res, fmt.Errorf("train: batch %d: %w", i, err)
		}
		total += v.Item()

		opt.ZeroGrad()
		if err := v.Backward(m); err != nil {
			return res, fmt.Errorf("train: batch %d: backward: %w", i, err)
		}
		opt.Step()

		res.Batches++
	}

	if res.Batches == 0 {
		return res, fmt.Errorf("%w: %d of %d batches filtered", ErrEmptyEpoch, res.Skipped, n)
	}
	res.Loss = total / float64(res.Batches)
	return res, nil
}

// ValidateEpoch returns the loss of the first batch of src, computed with
// gradient recording disabled and without the time-step filter.
//
// Only one batch is evaluated no matter how many src holds, so the
// reported validation loss is not an average over the source.
// TODO: decide whether validation should average over every batch; doing
// so changes the reported test loss of existing runs.
func (r *Runner) ValidateEpoch(src DataSource, m model.Model) (float64, error) {
	if src.Len() == 0 {
		return 0, fmt.Errorf("%w: empty validation source", ErrEmptyEpoch)
	}

	var out float64
	err := autodiff.NoGrad(m.Tape(), func() error {
		b, err := r.load(src, 0)
		if err != nil {
			return err
		}
		target, pred, _, err := forward(m, b)
		if err != nil {
			return fmt.Errorf("train: validation batch 0: %w", err)
		}
		v, err := loss.Compute(r.Loss, target, pred)
		if err != nil {
			return fmt.Errorf("train: validation batch 0: %w", err)
		}
		out = v.Item()
		return nil
	})
	return out, err
}

// load fetches batch i, checks its layout and moves it to the device.
func (r *Runner) load(src DataSource, i int) (model.Batch, error) {
	b, err := src.Batch(i)
	if err != nil {
		return model.Batch{}, fmt.Errorf("train: load batch %d: %w", i, err)
	}
	if err := b.Validate(); err != nil {
		return model.Batch{}, fmt.Errorf("train: batch %d: %w", i, err)
	}
	return b.To(r.Device), nil
}

// forward swaps N to (batch × time × features) and runs the model from the
// first time step. It returns the swapped target with the model output.
func forward(m model.Model, b model.Batch) (target, pred *tensor.Tensor, status model.Status, err error) {
	target = b.N.SwapAxes(1, 2)
	pred, status, err = m.Forward(target.Select(1, 0), b.P, b.T)
	return target, pred, status, err
}
