// Package plot renders training loss curves.
package plot

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// DefaultName is the file stem used when LossPlotter.Name is empty.
const DefaultName = "loss"

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("plot: no loss values")

// LossPlotter saves train and test loss curves as <Dir>/<Name>.png.
type LossPlotter struct {
	Dir    string
	Name   string
	Width  vg.Length // default: 6 inches
	Height vg.Length // default: 4 inches
	Logger *slog.Logger
}

// Path returns the file the plot is written to.
func (lp *LossPlotter) Path() string {
	name := lp.Name
	if name == "" {
		name = DefaultName
	}
	return filepath.Join(lp.Dir, name+".png")
}

func (lp *LossPlotter) logger() *slog.Logger {
	if lp.Logger == nil {
		return slog.Default()
	}
	return lp.Logger
}

// PlotLoss draws one line per series against the epoch number and saves
// the figure. With logScale the Y axis is logarithmic unless a value is
// not strictly positive, in which case the plot falls back to a linear
// axis. With show the saved path is logged.
func (lp *LossPlotter) PlotLoss(train, test []float64, logScale, show bool) error {
	if len(train) == 0 && len(test) == 0 {
		return ErrNoData
	}
	log := lp.logger()

	p := plot.New()
	p.Title.Text = "Loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	if logScale {
		if positive(train) && positive(test) {
			p.Y.Scale = plot.LogScale{}
			p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
		} else {
			log.Warn("loss has non-positive values, using linear scale")
		}
	}

	var lines []any
	if len(train) > 0 {
		lines = append(lines, "train", series(train))
	}
	if len(test) > 0 {
		lines = append(lines, "test", series(test))
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return fmt.Errorf("plot: add lines: %w", err)
	}

	if lp.Dir != "" {
		if err := os.MkdirAll(lp.Dir, 0o755); err != nil {
			return fmt.Errorf("plot: %w", err)
		}
	}
	w, h := lp.Width, lp.Height
	if w == 0 {
		w = 6 * vg.Inch
	}
	if h == 0 {
		h = 4 * vg.Inch
	}
	path := lp.Path()
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("plot: save %s: %w", path, err)
	}

	log.Debug("loss plot saved", "path", path)
	if show {
		log.Info("loss plot", "path", path)
	}
	return nil
}

// series numbers the epochs from 1.
func series(values []float64) plotter.XYs {
	xys := make(plotter.XYs, len(values))
	for i, v := range values {
		xys[i].X = float64(i + 1)
		xys[i].Y = v
	}
	return xys
}

func positive(values []float64) bool {
	for _, v := range values {
		if !(v > 0) {
			return false
		}
	}
	return true
}
