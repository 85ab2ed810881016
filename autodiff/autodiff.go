// Copyright 2025 MACE Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff exposes the gradient tape models record their forward
// pass on.
package autodiff

import "github.com/bgzastrow/mace/internal/autodiff"

// GradientTape records operations for reverse-mode differentiation.
type GradientTape = autodiff.GradientTape

// Operation is a recorded differentiable operation.
type Operation = autodiff.Operation

// NewGradientTape creates a tape that is not recording.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// NoGrad runs fn with recording on tape disabled and restores the previous
// state afterwards.
func NoGrad(tape *GradientTape, fn func() error) error {
	return autodiff.NoGrad(tape, fn)
}
