package train

import (
	"log/slog"

	"github.com/google/uuid"
)

// LogObserver reports run progress through a structured logger.
type LogObserver struct {
	logger *slog.Logger
}

// NewLogObserver creates an observer logging to l (slog.Default() if nil).
func NewLogObserver(l *slog.Logger) *LogObserver {
	if l == nil {
		l = slog.Default()
	}
	return &LogObserver{logger: l}
}

// RunStarted logs the run configuration.
func (o *LogObserver) RunStarted(id uuid.UUID, cfg Config) {
	o.logger.Info("training model",
		"run", id.String(),
		"learning_rate", cfg.LR,
		"epochs", cfg.Epochs,
		"loss", cfg.Loss.String(),
		"device", cfg.Device.String(),
	)
}

// EpochFinished logs the epoch losses.
func (o *LogObserver) EpochFinished(s EpochSummary) {
	o.logger.Info("epoch complete",
		"epoch", s.Epoch,
		"of", s.Epochs,
		"train_loss", s.TrainLoss,
		"test_loss", s.TestLoss,
		"status", s.Status,
		"batches", s.Batches,
		"skipped", s.Skipped,
		"duration", s.Duration,
	)
}

// RunFinished logs the end of the run.
func (o *LogObserver) RunFinished(h *History) {
	o.logger.Info("training done", "run", h.RunID.String(), "epochs", len(h.TrainLoss))
}
