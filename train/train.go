// Copyright 2025 MACE Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package train runs MACE training, validation and test passes.
//
// # Basic Usage
//
//	h, err := train.Train(m, train.Config{Epochs: 10, Loss: loss.ModeMSE}, trainSrc, testSrc)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(h.TrainLoss, h.TestLoss)
package train

import (
	"github.com/bgzastrow/mace/internal/model"
	"github.com/bgzastrow/mace/internal/train"
)

// MaxTimeStep bounds T[-1,-1] of batches used for training.
const MaxTimeStep = train.MaxTimeStep

// Errors.
var (
	ErrEmptyEpoch    = train.ErrEmptyEpoch
	ErrSolverFailure = train.ErrSolverFailure
)

type (
	// Config holds the knobs of a training run.
	Config = train.Config

	// History is the per-epoch record of a run.
	History = train.History

	// DataSource yields minibatches by index.
	DataSource = train.DataSource

	// Shuffler reorders a data source between epochs.
	Shuffler = train.Shuffler

	// Runner executes single passes over a data source.
	Runner = train.Runner

	// EpochResult summarizes one training epoch.
	EpochResult = train.EpochResult

	// EvalResult holds the tensors of an evaluated batch.
	EvalResult = train.EvalResult

	// SolverError reports the batch the model failed to integrate.
	SolverError = train.SolverError

	// Trainer drives a model through its epochs.
	Trainer = train.Trainer

	// Option configures a Trainer.
	Option = train.Option

	// Observer receives progress of a run.
	Observer = train.Observer

	// EpochSummary is reported to the Observer after each epoch.
	EpochSummary = train.EpochSummary

	// Plotter renders the loss curves of a run.
	Plotter = train.Plotter
)

// Trainer options.
var (
	WithOptimizer = train.WithOptimizer
	WithObserver  = train.WithObserver
	WithPlotter   = train.WithPlotter
	WithLogger    = train.WithLogger
)

// NewTrainer builds a Trainer for m.
func NewTrainer(m model.Model, cfg Config, opts ...Option) (*Trainer, error) {
	return train.NewTrainer(m, cfg, opts...)
}

// Train builds a Trainer and runs it.
func Train(m model.Model, cfg Config, trainSrc, testSrc DataSource, opts ...Option) (*History, error) {
	return train.Train(m, cfg, trainSrc, testSrc, opts...)
}
