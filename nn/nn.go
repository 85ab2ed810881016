// Copyright 2025 MACE Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides trainable parameters and their initializers.
package nn

import (
	"math/rand/v2"

	"github.com/bgzastrow/mace/internal/nn"
	"github.com/bgzastrow/mace/internal/tensor"
)

// Parameter is a named trainable tensor with its gradient.
type Parameter = nn.Parameter

// NewParameter wraps t as a trainable parameter.
func NewParameter(name string, t *tensor.Tensor) *Parameter {
	return nn.NewParameter(name, t)
}

// Xavier draws a Glorot-uniform tensor.
func Xavier(fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return nn.Xavier(fanIn, fanOut, shape, rng)
}

// Uniform draws a tensor uniformly from [-bound, bound).
func Uniform(bound float64, shape tensor.Shape, rng *rand.Rand) *tensor.Tensor {
	return nn.Uniform(bound, shape, rng)
}
