package train

import (
	"fmt"

	"github.com/bgzastrow/mace/internal/autodiff"
	"github.com/bgzastrow/mace/internal/loss"
	"github.com/bgzastrow/mace/internal/model"
	"github.com/bgzastrow/mace/internal/tensor"
)

// SolverError reports the batch on which the model failed to integrate.
type SolverError struct {
	Batch int
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%s (batch %d)", ErrSolverFailure, e.Batch)
}

// Is makes errors.Is(err, ErrSolverFailure) hold for SolverError.
func (e *SolverError) Is(target error) bool {
	return target == ErrSolverFailure
}

// EvalResult holds the tensors of the evaluated batch for inspection.
type EvalResult struct {
	N    *tensor.Tensor // target, (batch × time × features)
	Pred *tensor.Tensor // prediction, (batch × time × features)
	T    *tensor.Tensor // time grid, (batch × time)
	Loss float64
}

// Evaluate runs a diagnostic test pass with gradient recording disabled.
//
// The model is invoked on the first batch of src. If it reports
// StatusSolverFailure the pass stops with a *SolverError and no loss is
// computed; otherwise the batch loss is returned with its tensors.
func (r *Runner) Evaluate(src DataSource, m model.Model) (*EvalResult, error) {
	if src.Len() == 0 {
		return nil, fmt.Errorf("%w: empty test source", ErrEmptyEpoch)
	}
	log := r.logger()
	log.Info("testing model", "batches", src.Len())

	var res *EvalResult
	err := autodiff.NoGrad(m.Tape(), func() error {
		const i = 0
		log.Debug("batch", "index", i+1, "of", src.Len())

		b, err := r.load(src, i)
		if err != nil {
			return err
		}
		target, pred, status, err := forward(m, b)
		if err != nil {
			return fmt.Errorf("train: test batch %d: %w", i, err)
		}
		if status == model.StatusSolverFailure {
			log.Error("neural ODE could not be solved", "batch", i)
			return &SolverError{Batch: i}
		}

		v, err := loss.Compute(r.Loss, target, pred)
		if err != nil {
			return fmt.Errorf("train: test batch %d: %w", i, err)
		}
		res = &EvalResult{N: target, Pred: pred, T: b.T, Loss: v.Item()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("test loss", "loss", res.Loss)
	return res, nil
}
