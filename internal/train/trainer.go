package train

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bgzastrow/mace/internal/loss"
	"github.com/bgzastrow/mace/internal/model"
	"github.com/bgzastrow/mace/internal/optim"
	"github.com/bgzastrow/mace/internal/tensor"
	"github.com/google/uuid"
)

// Config holds the knobs of a training run.
type Config struct {
	LR     float64       // Adam learning rate (default: 0.001)
	Epochs int           // Number of epochs, > 0
	Device tensor.Device // Compute device batches are moved to
	Loss   loss.Mode     // Loss policy, fixed for the run

	Plot     bool // Hand the loss curves to the Plotter after the run
	LogScale bool // Plot losses on a log scale
	Show     bool // Ask the Plotter to display the figure
}

// Validate verifies the config is runnable.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("train: epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.LR < 0 {
		return fmt.Errorf("train: learning rate must be >= 0 (got %v)", c.LR)
	}
	if _, err := c.Loss.Func(); err != nil {
		return fmt.Errorf("train: %w", err)
	}
	return nil
}

// History is the per-epoch record of a run, in epoch order.
type History struct {
	RunID     uuid.UUID
	TrainLoss []float64
	TestLoss  []float64
	Status    []int // Accumulated solver status of the epoch, mod 4
}

// EpochSummary is reported to the Observer after each epoch.
type EpochSummary struct {
	Epoch     int // 1-based
	Epochs    int
	TrainLoss float64
	TestLoss  float64
	Status    int
	Batches   int
	Skipped   int
	Duration  time.Duration
}

// Observer receives progress of a training run.
type Observer interface {
	RunStarted(id uuid.UUID, cfg Config)
	EpochFinished(s EpochSummary)
	RunFinished(h *History)
}

// Plotter renders the loss curves of a finished run.
type Plotter interface {
	PlotLoss(train, test []float64, logScale, show bool) error
}

// Trainer drives a model through Config.Epochs epochs of training and
// validation.
type Trainer struct {
	cfg      Config
	model    model.Model
	opt      optim.Optimizer
	observer Observer
	plotter  Plotter
	logger   *slog.Logger
}

// Option configures a Trainer.
type Option func(*Trainer)

// WithOptimizer replaces the default Adam optimizer.
func WithOptimizer(opt optim.Optimizer) Option {
	return func(t *Trainer) { t.opt = opt }
}

// WithObserver replaces the default LogObserver.
func WithObserver(o Observer) Option {
	return func(t *Trainer) { t.observer = o }
}

// WithPlotter sets the plotting sink used when Config.Plot is set.
func WithPlotter(p Plotter) Option {
	return func(t *Trainer) { t.plotter = p }
}

// WithLogger sets the logger used by the runner and the default observer.
func WithLogger(l *slog.Logger) Option {
	return func(t *Trainer) { t.logger = l }
}

// NewTrainer validates cfg and builds a Trainer for m. Unless an optimizer
// is supplied, Adam over m.Parameters() with cfg.LR is used.
func NewTrainer(m model.Model, cfg Config, opts ...Option) (*Trainer, error) {
	if m == nil {
		return nil, errors.New("train: model is nil")
	}
	if cfg.LR == 0 {
		cfg.LR = 0.001
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{cfg: cfg, model: m}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.opt == nil {
		t.opt = optim.NewAdam(m.Parameters(), optim.AdamConfig{LR: cfg.LR})
	}
	if t.observer == nil {
		t.observer = NewLogObserver(t.logger)
	}
	if cfg.Plot && t.plotter == nil {
		return nil, errors.New("train: plotting enabled without a plotter")
	}
	return t, nil
}

// Config returns the validated run configuration.
func (t *Trainer) Config() Config {
	return t.cfg
}

// Run trains for Config.Epochs epochs. Each epoch switches the model to
// training mode, runs TrainEpoch on trainSrc, switches to evaluation mode
// and runs ValidateEpoch on testSrc.
//
// On error the History recorded so far is returned with it.
func (t *Trainer) Run(trainSrc, testSrc DataSource) (*History, error) {
	runner := &Runner{Device: t.cfg.Device, Loss: t.cfg.Loss, Logger: t.logger}
	h := &History{
		RunID:     uuid.New(),
		TrainLoss: make([]float64, 0, t.cfg.Epochs),
		TestLoss:  make([]float64, 0, t.cfg.Epochs),
		Status:    make([]int, 0, t.cfg.Epochs),
	}
	t.observer.RunStarted(h.RunID, t.cfg)

	for epoch := range t.cfg.Epochs {
		start := time.Now()
		if s, ok := trainSrc.(Shuffler); ok {
			s.Reshuffle()
		}

		t.model.Train()
		res, err := runner.TrainEpoch(trainSrc, t.model, t.opt)
		if err != nil {
			return h, fmt.Errorf("train: epoch %d: %w", epoch+1, err)
		}
		h.TrainLoss = append(h.TrainLoss, res.Loss)
		h.Status = append(h.Status, res.Status%4)

		t.model.Eval()
		testLoss, err := runner.ValidateEpoch(testSrc, t.model)
		if err != nil {
			return h, fmt.Errorf("train: epoch %d: %w", epoch+1, err)
		}
		h.TestLoss = append(h.TestLoss, testLoss)

		t.observer.EpochFinished(EpochSummary{
			Epoch:     epoch + 1,
			Epochs:    t.cfg.Epochs,
			TrainLoss: res.Loss,
			TestLoss:  testLoss,
			Status:    res.Status % 4,
			Batches:   res.Batches,
			Skipped:   res.Skipped,
			Duration:  time.Since(start),
		})
	}
	t.observer.RunFinished(h)

	if t.cfg.Plot {
		if err := t.plotter.PlotLoss(h.TrainLoss, h.TestLoss, t.cfg.LogScale, t.cfg.Show); err != nil {
			return h, fmt.Errorf("train: plot losses: %w", err)
		}
	}
	return h, nil
}

// Train builds a Trainer and runs it.
func Train(m model.Model, cfg Config, trainSrc, testSrc DataSource, opts ...Option) (*History, error) {
	t, err := NewTrainer(m, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return t.Run(trainSrc, testSrc)
}
