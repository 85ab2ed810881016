// Copyright 2025 MACE Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package model defines the batch layout and model capability consumed by
// the trainer, together with the LinearODE neural ODE.
package model

import "github.com/bgzastrow/mace/internal/model"

// Model is a trainable sequence model.
type Model = model.Model

// Batch is one minibatch of abundance time series.
type Batch = model.Batch

// Status is the solver status reported by Forward.
type Status = model.Status

// Solver statuses.
const (
	StatusOK            = model.StatusOK
	StatusSolverFailure = model.StatusSolverFailure
)

// Errors.
var (
	ErrInvalidBatch = model.ErrInvalidBatch
	ErrNoGraph      = model.ErrNoGraph
)

// LinearODE is a neural ODE with linear latent dynamics.
type LinearODE = model.LinearODE

// LinearODEConfig configures a LinearODE.
type LinearODEConfig = model.LinearODEConfig

// NewLinearODE creates a LinearODE.
func NewLinearODE(cfg LinearODEConfig) (*LinearODE, error) {
	return model.NewLinearODE(cfg)
}
