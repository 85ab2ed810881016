// Copyright 2025 MACE Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the optimizers used to train MACE models.
//
// # Basic Usage
//
//	m, _ := model.NewLinearODE(model.LinearODEConfig{Features: 4, Params: 2})
//	opt := optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: 1e-3})
//
//	opt.ZeroGrad()
//	// forward, loss, backward
//	opt.Step()
package optim

import (
	"github.com/bgzastrow/mace/internal/nn"
	"github.com/bgzastrow/mace/internal/optim"
)

// Optimizer interface defines the common interface for all optimizers.
type Optimizer = optim.Optimizer

// Config represents the base configuration for optimizers.
type Config = optim.Config

// Adam represents the Adam optimizer with bias correction.
type Adam = optim.Adam

// AdamConfig contains configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
func NewAdam(params []*nn.Parameter, config AdamConfig) *Adam {
	return optim.NewAdam(params, config)
}

// SGD represents the SGD optimizer with optional momentum.
type SGD = optim.SGD

// SGDConfig contains configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD(params []*nn.Parameter, config SGDConfig) *SGD {
	return optim.NewSGD(params, config)
}
