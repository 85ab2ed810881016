// Copyright 2025 MACE Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loss provides the MACE loss policies: mean squared error, the
// relative-change loss and their combination.
package loss

import (
	"github.com/bgzastrow/mace/internal/loss"
	"github.com/bgzastrow/mace/internal/tensor"
)

// Mode selects a loss policy.
type Mode = loss.Mode

// Loss modes.
const (
	ModeMSE   = loss.ModeMSE
	ModeRel   = loss.ModeRel
	ModeCombi = loss.ModeCombi
)

// Constants of the relative and combined losses.
const (
	RelEps     = loss.RelEps
	CombiScale = loss.CombiScale
)

// Errors.
var (
	ErrUnknownMode   = loss.ErrUnknownMode
	ErrShapeMismatch = loss.ErrShapeMismatch
	ErrShortSequence = loss.ErrShortSequence
)

// Func computes a loss value from ground truth and prediction.
type Func = loss.Func

// Value is a scalar loss with its gradient.
type Value = loss.Value

// GradSink receives dLoss/dPrediction.
type GradSink = loss.GradSink

// ParseMode maps "mse", "rel" or "combi" to a Mode.
func ParseMode(s string) (Mode, error) {
	return loss.ParseMode(s)
}

// Compute evaluates the loss selected by mode.
func Compute(mode Mode, x, xHat *tensor.Tensor) (*Value, error) {
	return loss.Compute(mode, x, xHat)
}

// MSE is the mean squared error.
func MSE(x, xHat *tensor.Tensor) (*Value, error) {
	return loss.MSE(x, xHat)
}

// Rel is the relative-change loss.
func Rel(x, xHat *tensor.Tensor) (*Value, error) {
	return loss.Rel(x, xHat)
}

// Combi is MSE plus Rel scaled down by CombiScale.
func Combi(x, xHat *tensor.Tensor) (*Value, error) {
	return loss.Combi(x, xHat)
}
