// Package model defines the batch layout and the model capability consumed
// by the training loop, plus a concrete neural ODE (LinearODE).
package model

import (
	"errors"
	"fmt"

	"github.com/bgzastrow/mace/internal/autodiff"
	"github.com/bgzastrow/mace/internal/nn"
	"github.com/bgzastrow/mace/internal/tensor"
)

// Status is the solver status reported with every forward pass.
type Status int

// Solver statuses.
const (
	StatusOK Status = 0

	// StatusSolverFailure marks a batch the ODE solver could not integrate.
	StatusSolverFailure Status = 4
)

// ErrInvalidBatch is returned when a batch violates its layout.
var ErrInvalidBatch = errors.New("model: invalid batch")

// Batch is one minibatch of abundance time series.
//
//	N: abundances, (batch × features × time)
//	P: physical parameters, (batch × params)
//	T: time grid, (batch × time)
type Batch struct {
	N *tensor.Tensor
	P *tensor.Tensor
	T *tensor.Tensor
}

// Size returns the number of samples in the batch.
func (b Batch) Size() int {
	return b.N.Dim(0)
}

// Validate checks ranks and that N, P and T share the leading dimension and
// that N and T agree on the number of time steps.
func (b Batch) Validate() error {
	if b.N == nil || b.P == nil || b.T == nil {
		return fmt.Errorf("%w: missing tensor", ErrInvalidBatch)
	}
	if b.N.Rank() != 3 || b.P.Rank() != 2 || b.T.Rank() != 2 {
		return fmt.Errorf("%w: ranks n=%d p=%d t=%d, want 3, 2, 2",
			ErrInvalidBatch, b.N.Rank(), b.P.Rank(), b.T.Rank())
	}
	if b.N.Dim(0) != b.P.Dim(0) || b.N.Dim(0) != b.T.Dim(0) {
		return fmt.Errorf("%w: leading dimensions n=%d p=%d t=%d",
			ErrInvalidBatch, b.N.Dim(0), b.P.Dim(0), b.T.Dim(0))
	}
	if b.N.Dim(2) != b.T.Dim(1) {
		return fmt.Errorf("%w: n has %d time steps, t has %d",
			ErrInvalidBatch, b.N.Dim(2), b.T.Dim(1))
	}
	return nil
}

// To moves all three tensors to device d.
func (b Batch) To(d tensor.Device) Batch {
	return Batch{
		N: b.N.To(d),
		P: b.P.To(d),
		T: b.T.To(d),
	}
}

// Model is a trainable sequence model.
//
// Forward integrates from the initial state n0 (batch × features) with
// parameters p (batch × params) over the time grid t (batch × time) and
// returns the prediction (batch × time × features) together with the solver
// status. When the model's tape is recording, Forward builds the graph that
// Backward consumes.
type Model interface {
	Forward(n0, p, t *tensor.Tensor) (*tensor.Tensor, Status, error)

	// Backward propagates dLoss/dPrediction of the last Forward into the
	// gradients of Parameters.
	Backward(grad *tensor.Tensor) error

	Parameters() []*nn.Parameter
	Tape() *autodiff.GradientTape

	// Train and Eval toggle the training mode.
	Train()
	Eval()
}
