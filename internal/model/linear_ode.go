package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/bgzastrow/mace/internal/autodiff"
	"github.com/bgzastrow/mace/internal/nn"
	"github.com/bgzastrow/mace/internal/parallel"
	"github.com/bgzastrow/mace/internal/tensor"
	"gonum.org/v1/gonum/mat"
)

// ErrNoGraph is returned by Backward when no recorded forward pass exists.
var ErrNoGraph = errors.New("model: backward called without a recorded forward pass")

// LinearODEConfig configures a LinearODE.
type LinearODEConfig struct {
	Features  int     // Number of abundance features
	Params    int     // Number of physical parameters
	Seed      uint64  // Initialization seed
	InitScale float64 // Scale of the initial dynamics (default: 0.1)

	// Parallel splits the samples of a batch across goroutines
	// (default: one worker per CPU, 32 samples per chunk).
	Parallel parallel.Config
}

// LinearODE is a neural ODE with linear latent dynamics
//
//	dn/dt = A n + B p + c
//
// integrated with explicit Euler on each sample's own time grid. If the
// state stops being finite the integration halts, the remaining time steps
// repeat the last finite state and the status is StatusSolverFailure.
type LinearODE struct {
	features int
	params   int

	a *nn.Parameter // (features × features)
	b *nn.Parameter // (features × params)
	c *nn.Parameter // (features)

	tape     *autodiff.GradientTape
	training bool
	par      parallel.Config

	// Graph of the last recorded forward pass: states[k] is the state at
	// time index k, steps is the length of the predicted sequence.
	states []*tensor.Tensor
	steps  int
}

// NewLinearODE creates a LinearODE with small random dynamics.
// Gradient recording is enabled and the model starts in training mode.
func NewLinearODE(cfg LinearODEConfig) (*LinearODE, error) {
	if cfg.Features <= 0 {
		return nil, fmt.Errorf("model: features must be > 0 (got %d)", cfg.Features)
	}
	if cfg.Params <= 0 {
		return nil, fmt.Errorf("model: params must be > 0 (got %d)", cfg.Params)
	}
	if cfg.InitScale == 0 {
		cfg.InitScale = 0.1
	}
	if cfg.Parallel == (parallel.Config{}) {
		cfg.Parallel = parallel.DefaultConfig(32)
	}

	//nolint:gosec // weight initialization is not security-critical
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	f, p := cfg.Features, cfg.Params

	tape := autodiff.NewGradientTape()
	tape.StartRecording()

	return &LinearODE{
		features: f,
		params:   p,
		a:        nn.NewParameter("dynamics.a", nn.Uniform(cfg.InitScale, tensor.Shape{f, f}, rng)),
		b:        nn.NewParameter("dynamics.b", nn.Xavier(p, f, tensor.Shape{f, p}, rng)),
		c:        nn.NewParameter("dynamics.c", tensor.Zeros(tensor.Shape{f})),
		tape:     tape,
		training: true,
		par:      cfg.Parallel,
	}, nil
}

// Parameters returns A, B and c.
func (m *LinearODE) Parameters() []*nn.Parameter {
	return []*nn.Parameter{m.a, m.b, m.c}
}

// Tape returns the model's gradient tape.
func (m *LinearODE) Tape() *autodiff.GradientTape {
	return m.tape
}

// Train switches to training mode.
func (m *LinearODE) Train() {
	m.training = true
}

// Eval switches to evaluation mode.
func (m *LinearODE) Eval() {
	m.training = false
}

// Training reports whether the model is in training mode.
func (m *LinearODE) Training() bool {
	return m.training
}

// Forward integrates the dynamics from n0 over t.
func (m *LinearODE) Forward(n0, p, t *tensor.Tensor) (*tensor.Tensor, Status, error) {
	if err := m.checkInputs(n0, p, t); err != nil {
		return nil, StatusOK, err
	}
	batch, steps := n0.Dim(0), t.Dim(1)

	m.tape.Clear()
	m.states = nil
	record := m.tape.IsRecording()

	pred := tensor.Zeros(tensor.Shape{batch, steps, m.features})
	state := n0.Clone()
	states := []*tensor.Tensor{state}
	status := StatusOK

	writeStep := func(k int, s *tensor.Tensor) {
		for i := range batch {
			copy(pred.Row(i)[k*m.features:(k+1)*m.features], s.Row(i))
		}
	}
	writeStep(0, state)

	k := 1
	for ; k < steps; k++ {
		dt := make([]float64, batch)
		for i := range batch {
			dt[i] = t.At(i, k) - t.At(i, k-1)
		}
		op := m.step(state, p, dt)
		if !finite(op.out.Data()) {
			status = StatusSolverFailure
			break
		}
		m.tape.Record(op)
		state = op.out
		states = append(states, state)
		writeStep(k, state)
	}
	for ; k < steps; k++ {
		writeStep(k, state)
	}

	if record {
		m.states = states
		m.steps = steps
	}
	return pred.To(n0.Device()), status, nil
}

// Backward propagates grad (batch × time × features) through the recorded
// Euler steps and accumulates the parameter gradients.
func (m *LinearODE) Backward(grad *tensor.Tensor) error {
	if len(m.states) == 0 {
		return ErrNoGraph
	}
	batch := m.states[0].Dim(0)
	want := tensor.Shape{batch, m.steps, m.features}
	if !grad.Shape().Equal(want) {
		return fmt.Errorf("model: gradient shape %v, want %v", grad.Shape(), want)
	}

	// Time steps after a solver failure repeat the last state, so their
	// gradient flows into it.
	seeds := make(map[*tensor.Tensor]*tensor.Tensor, len(m.states))
	for k := range m.steps {
		s := m.states[min(k, len(m.states)-1)]
		seed, ok := seeds[s]
		if !ok {
			seed = tensor.Zeros(s.Shape())
			seeds[s] = seed
		}
		for i := range batch {
			row := seed.Row(i)
			src := grad.Row(i)[k*m.features : (k+1)*m.features]
			for f, g := range src {
				row[f] += g
			}
		}
	}

	grads, err := m.tape.Backward(seeds)
	if err != nil {
		return fmt.Errorf("model: backward: %w", err)
	}
	for _, param := range m.Parameters() {
		g, ok := grads[param.Tensor()]
		if !ok {
			continue
		}
		if err := param.AccumulateGrad(g); err != nil {
			return err
		}
	}

	m.tape.Clear()
	m.states = nil
	return nil
}

func (m *LinearODE) checkInputs(n0, p, t *tensor.Tensor) error {
	if n0.Rank() != 2 || n0.Dim(1) != m.features {
		return fmt.Errorf("model: initial state %v, want (batch×%d)", n0.Shape(), m.features)
	}
	if p.Rank() != 2 || p.Dim(1) != m.params {
		return fmt.Errorf("model: parameters %v, want (batch×%d)", p.Shape(), m.params)
	}
	if t.Rank() != 2 {
		return fmt.Errorf("model: time grid %v, want (batch×time)", t.Shape())
	}
	if n0.Dim(0) != p.Dim(0) || n0.Dim(0) != t.Dim(0) {
		return fmt.Errorf("model: batch sizes n0=%d p=%d t=%d", n0.Dim(0), p.Dim(0), t.Dim(0))
	}
	return nil
}

// step computes one explicit Euler step for every sample.
func (m *LinearODE) step(state, p *tensor.Tensor, dt []float64) *eulerStep {
	f := m.features
	a := mat.NewDense(f, f, m.a.Tensor().Data())
	b := mat.NewDense(f, m.params, m.b.Tensor().Data())
	c := mat.NewVecDense(f, m.c.Tensor().Data())

	out := tensor.Zeros(state.Shape())
	parallel.Range(state.Dim(0), m.par, func(lo, hi int) {
		var deriv, drive mat.VecDense
		for i := lo; i < hi; i++ {
			s := mat.NewVecDense(f, state.Row(i))
			deriv.MulVec(a, s)
			drive.MulVec(b, mat.NewVecDense(m.params, p.Row(i)))
			deriv.AddVec(&deriv, &drive)
			deriv.AddVec(&deriv, c)

			next := mat.NewVecDense(f, out.Row(i))
			next.AddScaledVec(s, dt[i], &deriv)
		}
	})

	return &eulerStep{
		state: state,
		a:     m.a.Tensor(),
		b:     m.b.Tensor(),
		c:     m.c.Tensor(),
		p:     p,
		dt:    dt,
		out:   out,
	}
}

// eulerStep is out = state + dt * (A state + B p + c).
type eulerStep struct {
	state, a, b, c *tensor.Tensor
	p              *tensor.Tensor // constant
	dt             []float64
	out            *tensor.Tensor
}

func (o *eulerStep) Inputs() []*tensor.Tensor {
	return []*tensor.Tensor{o.state, o.a, o.b, o.c}
}

func (o *eulerStep) Output() *tensor.Tensor {
	return o.out
}

// Backward computes, per sample b with g = dL/d(out_b):
//
//	dstate_b = g + dt_b Aᵀ g
//	dA      += dt_b g state_bᵀ
//	dB      += dt_b g p_bᵀ
//	dc      += dt_b g
func (o *eulerStep) Backward(outputGrad *tensor.Tensor) []*tensor.Tensor {
	f, np := o.b.Dim(0), o.b.Dim(1)
	a := mat.NewDense(f, f, o.a.Data())

	dState := tensor.Zeros(o.state.Shape())
	dA := tensor.Zeros(o.a.Shape())
	dB := tensor.Zeros(o.b.Shape())
	dc := tensor.Zeros(o.c.Shape())

	dAm := mat.NewDense(f, f, dA.Data())
	dBm := mat.NewDense(f, np, dB.Data())
	dcv := mat.NewVecDense(f, dc.Data())

	var back mat.VecDense
	for i, dt := range o.dt {
		g := mat.NewVecDense(f, outputGrad.Row(i))

		back.MulVec(a.T(), g)
		ds := mat.NewVecDense(f, dState.Row(i))
		ds.AddScaledVec(g, dt, &back)

		dAm.RankOne(dAm, dt, g, mat.NewVecDense(f, o.state.Row(i)))
		dBm.RankOne(dBm, dt, g, mat.NewVecDense(np, o.p.Row(i)))
		dcv.AddScaledVec(dcv, dt, g)
	}

	return []*tensor.Tensor{dState, dA, dB, dc}
}

func finite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
