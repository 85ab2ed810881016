// Package nn provides trainable parameters and their initializers.
package nn

import (
	"fmt"

	"github.com/bgzastrow/mace/internal/tensor"
)

// Parameter represents a trainable tensor of a model.
//
// The gradient is accumulated by the model's backward pass and cleared by
// the optimizer's ZeroGrad.
//
// Example:
//
//	a := nn.NewParameter("dynamics.a", nn.Xavier(f, f, tensor.Shape{f, f}, rng))
//	// ... backward pass ...
//	g := a.Grad()
type Parameter struct {
	name   string
	tensor *tensor.Tensor
	grad   *tensor.Tensor // nil until the first backward pass
}

// NewParameter creates a new trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return &Parameter{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter) Tensor() *tensor.Tensor {
	return p.tensor
}

// Grad returns the gradient tensor, or nil before any backward pass.
func (p *Parameter) Grad() *tensor.Tensor {
	return p.grad
}

// SetGrad replaces the gradient tensor.
func (p *Parameter) SetGrad(grad *tensor.Tensor) {
	p.grad = grad
}

// AccumulateGrad adds g to the current gradient.
func (p *Parameter) AccumulateGrad(g *tensor.Tensor) error {
	if !g.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("nn: gradient %v does not match parameter %s %v", g.Shape(), p.name, p.tensor.Shape())
	}
	if p.grad == nil {
		p.grad = g.Clone()
		return nil
	}
	dst := p.grad.Data()
	for i, v := range g.Data() {
		dst[i] += v
	}
	return nil
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter) ZeroGrad() {
	p.grad = nil
}
