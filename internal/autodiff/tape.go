// Package autodiff implements the gradient tape used by trainable models.
//
// Models record one Operation per differentiable step of their forward pass
// while the tape is recording. Backward walks the tape in reverse and
// accumulates input gradients, seeded with the gradient of the loss with
// respect to the model outputs.
package autodiff

import (
	"fmt"

	"github.com/bgzastrow/mace/internal/tensor"
)

// Operation represents a differentiable step in the computation graph.
// Each operation records its inputs and output during the forward pass,
// and computes input gradients during the backward pass.
type Operation interface {
	// Backward computes gradients for inputs given the output gradient.
	// The returned slice is aligned with Inputs; nil entries mean no
	// gradient flows to that input.
	Backward(outputGrad *tensor.Tensor) []*tensor.Tensor

	// Inputs returns the input tensors for this operation.
	Inputs() []*tensor.Tensor

	// Output returns the output tensor produced by this operation.
	Output() *tensor.Tensor
}

// GradientTape records operations during the forward pass and computes
// gradients during the backward pass using reverse-mode differentiation.
//
// Usage:
//
//	tape := autodiff.NewGradientTape()
//	tape.StartRecording()
//	// ... model records operations ...
//	grads := tape.Backward(seeds)
type GradientTape struct {
	operations []Operation
	recording  bool
}

// NewGradientTape creates a new, non-recording gradient tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{
		operations: make([]Operation, 0, 64),
	}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.recording = true
}

// StopRecording disables operation recording.
func (t *GradientTape) StopRecording() {
	t.recording = false
}

// IsRecording returns true if the tape is currently recording operations.
func (t *GradientTape) IsRecording() bool {
	return t.recording
}

// Record adds an operation to the tape.
// Only records if the tape is currently recording.
func (t *GradientTape) Record(op Operation) {
	if t.recording {
		t.operations = append(t.operations, op)
	}
}

// Clear removes all recorded operations. Recording state is preserved.
func (t *GradientTape) Clear() {
	clear(t.operations)
	t.operations = t.operations[:0]
}

// NumOps returns the number of recorded operations.
func (t *GradientTape) NumOps() int {
	return len(t.operations)
}

// Backward computes gradients by walking the tape in reverse.
//
// seeds maps output tensors to dL/d(output). A tensor that is both seeded
// and consumed by a later operation receives the sum of both contributions.
// The returned map holds the accumulated gradient for every tensor reached,
// including the seeds.
func (t *GradientTape) Backward(seeds map[*tensor.Tensor]*tensor.Tensor) (map[*tensor.Tensor]*tensor.Tensor, error) {
	wasRecording := t.recording
	t.recording = false
	defer func() {
		t.recording = wasRecording
	}()

	grads := make(map[*tensor.Tensor]*tensor.Tensor, len(seeds)+len(t.operations))
	for out, g := range seeds {
		if !out.Shape().Equal(g.Shape()) {
			return nil, fmt.Errorf("autodiff: seed gradient %v does not match output %v", g.Shape(), out.Shape())
		}
		grads[out] = g.Clone()
	}

	for i := len(t.operations) - 1; i >= 0; i-- {
		op := t.operations[i]
		outGrad, ok := grads[op.Output()]
		if !ok {
			continue
		}
		inputGrads := op.Backward(outGrad)
		for j, input := range op.Inputs() {
			if j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if err := accumulate(grads, input, inputGrads[j]); err != nil {
				return nil, fmt.Errorf("autodiff: operation %d input %d: %w", i, j, err)
			}
		}
	}

	return grads, nil
}

// accumulate adds g into grads[key].
func accumulate(grads map[*tensor.Tensor]*tensor.Tensor, key, g *tensor.Tensor) error {
	existing, ok := grads[key]
	if !ok {
		grads[key] = g.Clone()
		return nil
	}
	if !existing.Shape().Equal(g.Shape()) {
		return fmt.Errorf("gradient shape %v does not match %v", g.Shape(), existing.Shape())
	}
	dst := existing.Data()
	for k, v := range g.Data() {
		dst[k] += v
	}
	return nil
}

// NoGrad runs fn with recording disabled and restores the previous state.
func NoGrad(tape *GradientTape, fn func() error) error {
	if tape == nil {
		return fn()
	}
	wasRecording := tape.recording
	tape.recording = false
	defer func() {
		tape.recording = wasRecording
	}()
	return fn()
}
