// Package loss implements the loss policies used to train MACE models.
//
// Every loss takes the ground truth x and the prediction xHat, both shaped
// (batch × time × features), and returns a Value holding the scalar loss
// and its gradient with respect to xHat.
//
//	v, err := loss.Compute(loss.ModeCombi, n, nHat)
//	if err != nil { ... }
//	total += v.Item()
//	err = v.Backward(model)
package loss

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bgzastrow/mace/internal/tensor"
	"gonum.org/v1/gonum/stat"
)

const (
	// RelEps stabilizes the relative loss near zero abundance change.
	// The numerator uses RelEps² and the denominator RelEps.
	RelEps = 1e-4

	// CombiScale divides the relative loss before it is added to the MSE.
	CombiScale = 1e6
)

var (
	// ErrUnknownMode is returned for loss modes outside {mse, rel, combi}.
	ErrUnknownMode = errors.New("loss: unknown loss mode")

	// ErrShapeMismatch is returned when x and xHat differ in shape.
	ErrShapeMismatch = errors.New("loss: shape mismatch")

	// ErrShortSequence is returned by Rel when there is no time step
	// after the initial one.
	ErrShortSequence = errors.New("loss: relative loss needs at least two time steps")
)

// Mode selects a loss policy.
type Mode int

// Loss modes.
const (
	ModeMSE Mode = iota
	ModeRel
	ModeCombi

	numModes
)

var modeNames = [numModes]string{
	ModeMSE:   "mse",
	ModeRel:   "rel",
	ModeCombi: "combi",
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m < 0 || m >= numModes {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode maps "mse", "rel" or "combi" to a Mode.
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return Mode(m), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m < 0 || m >= numModes {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return []byte(modeNames[m]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Func computes a loss value from ground truth x and prediction xHat.
type Func func(x, xHat *tensor.Tensor) (*Value, error)

var funcs = [numModes]Func{
	ModeMSE:   MSE,
	ModeRel:   Rel,
	ModeCombi: Combi,
}

// Func returns the loss function selected by m.
func (m Mode) Func() (Func, error) {
	if m < 0 || m >= numModes || funcs[m] == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	return funcs[m], nil
}

// Compute evaluates the loss selected by mode.
func Compute(mode Mode, x, xHat *tensor.Tensor) (*Value, error) {
	fn, err := mode.Func()
	if err != nil {
		return nil, err
	}
	return fn(x, xHat)
}

// GradSink receives dLoss/dPrediction during the backward pass.
type GradSink interface {
	Backward(grad *tensor.Tensor) error
}

// Value is a scalar loss together with its gradient with respect to the
// prediction.
type Value struct {
	item float64
	grad *tensor.Tensor
}

// Item returns the scalar loss.
func (v *Value) Item() float64 {
	return v.item
}

// Grad returns dLoss/dPrediction.
func (v *Value) Grad() *tensor.Tensor {
	return v.grad
}

// Backward hands the gradient to sink, which propagates it into its
// parameters.
func (v *Value) Backward(sink GradSink) error {
	return sink.Backward(v.grad)
}

func checkShapes(x, xHat *tensor.Tensor) error {
	if !x.Shape().Equal(xHat.Shape()) {
		return fmt.Errorf("%w: target %v, prediction %v", ErrShapeMismatch, x.Shape(), xHat.Shape())
	}
	return nil
}

// MSE computes the mean squared error over all elements.
//
// Loss = mean((xHat - x)²)
func MSE(x, xHat *tensor.Tensor) (*Value, error) {
	if err := checkShapes(x, xHat); err != nil {
		return nil, err
	}

	xd, hd := x.Data(), xHat.Data()
	n := float64(len(xd))
	sq := make([]float64, len(xd))
	grad := tensor.Zeros(xHat.Shape())
	gd := grad.Data()
	for i := range xd {
		diff := hd[i] - xd[i]
		sq[i] = diff * diff
		gd[i] = 2 * diff / n
	}

	return &Value{item: stat.Mean(sq, nil), grad: grad}, nil
}

// Rel computes the relative loss on the change from the initial state.
//
// With x0 = x[:,0,:] and eps = RelEps, over time steps t ≥ 1:
//
//	Loss = mean(((xHat - x0 + eps²) / (x - x0 + eps))²)
//
// The first predicted time step does not contribute and gets zero gradient.
func Rel(x, xHat *tensor.Tensor) (*Value, error) {
	if err := checkShapes(x, xHat); err != nil {
		return nil, err
	}
	if x.Rank() != 3 {
		return nil, fmt.Errorf("loss: relative loss needs (batch × time × features), got %v", x.Shape())
	}
	batch, steps, feats := x.Dim(0), x.Dim(1), x.Dim(2)
	if steps < 2 {
		return nil, ErrShortSequence
	}

	xd, hd := x.Data(), xHat.Data()
	count := batch * (steps - 1) * feats
	n := float64(count)
	terms := make([]float64, 0, count)
	grad := tensor.Zeros(xHat.Shape())
	gd := grad.Data()

	for b := range batch {
		base := b * steps * feats
		for t := 1; t < steps; t++ {
			for f := range feats {
				x0 := xd[base+f]
				i := base + t*feats + f
				num := hd[i] - x0 + RelEps*RelEps
				den := xd[i] - x0 + RelEps
				r := num / den
				terms = append(terms, r*r)
				gd[i] = 2 * r / den / n
			}
		}
	}

	return &Value{item: stat.Mean(terms, nil), grad: grad}, nil
}

// Combi computes MSE(x, xHat) + Rel(x, xHat)/CombiScale.
func Combi(x, xHat *tensor.Tensor) (*Value, error) {
	mse, err := MSE(x, xHat)
	if err != nil {
		return nil, err
	}
	rel, err := Rel(x, xHat)
	if err != nil {
		return nil, err
	}

	gd := mse.grad.Data()
	for i, g := range rel.grad.Data() {
		gd[i] += g / CombiScale
	}

	return &Value{item: mse.item + rel.item/CombiScale, grad: mse.grad}, nil
}
