package model

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/bgzastrow/mace/internal/autodiff"
	"github.com/bgzastrow/mace/internal/parallel"
	"github.com/bgzastrow/mace/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

func newTestODE(t *testing.T, features, params int) *LinearODE {
	t.Helper()
	m, err := NewLinearODE(LinearODEConfig{Features: features, Params: params, Seed: 7})
	require.NoError(t, err)
	return m
}

func testInputs(batch, features, params, steps int) (n0, p, tg *tensor.Tensor) {
	rng := rand.New(rand.NewPCG(3, 4))
	n0 = tensor.Zeros(tensor.Shape{batch, features})
	p = tensor.Zeros(tensor.Shape{batch, params})
	tg = tensor.Zeros(tensor.Shape{batch, steps})
	for i := range batch {
		for f := range features {
			n0.Set(rng.Float64(), i, f)
		}
		for j := range params {
			p.Set(rng.Float64(), i, j)
		}
		for k := range steps {
			tg.Set(0.002*float64(k)*(1+0.1*float64(i)), i, k)
		}
	}
	return n0, p, tg
}

func TestNewLinearODE_Validation(t *testing.T) {
	_, err := NewLinearODE(LinearODEConfig{Features: 0, Params: 1})
	assert.Error(t, err)
	_, err = NewLinearODE(LinearODEConfig{Features: 2, Params: 0})
	assert.Error(t, err)
}

func TestForward_ConstantDrift(t *testing.T) {
	m := newTestODE(t, 2, 1)
	// dn/dt = 1 for every feature.
	clear(m.a.Tensor().Data())
	clear(m.b.Tensor().Data())
	for i := range m.c.Tensor().Data() {
		m.c.Tensor().Data()[i] = 1
	}

	n0 := tensor.MustNew([]float64{1, 2}, tensor.Shape{1, 2})
	p := tensor.MustNew([]float64{5}, tensor.Shape{1, 1})
	tg := tensor.MustNew([]float64{0, 0.5, 2}, tensor.Shape{1, 3})

	pred, status, err := m.Forward(n0, p, tg)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, status)
	assert.True(t, pred.Shape().Equal(tensor.Shape{1, 3, 2}))
	assert.InDeltaSlice(t, []float64{1, 2, 1.5, 2.5, 3, 4}, pred.Data(), 1e-12)

	// The initial state is copied, not aliased.
	assert.NotSame(t, &n0.Data()[0], &pred.Data()[0])
}

func TestForward_ParallelMatchesSequential(t *testing.T) {
	n0, p, tg := testInputs(50, 3, 2, 6)

	run := func(par parallel.Config) []float64 {
		m, err := NewLinearODE(LinearODEConfig{Features: 3, Params: 2, Seed: 7, Parallel: par})
		require.NoError(t, err)
		pred, status, err := m.Forward(n0, p, tg)
		require.NoError(t, err)
		require.Equal(t, StatusOK, status)
		return pred.Data()
	}

	assert.Equal(t, run(parallel.Sequential), run(parallel.Config{Workers: 4, MinChunk: 4}))
}

func TestForward_InputChecks(t *testing.T) {
	m := newTestODE(t, 2, 1)
	n0, p, tg := testInputs(2, 2, 1, 3)

	_, _, err := m.Forward(tensor.Zeros(tensor.Shape{2, 3}), p, tg)
	assert.Error(t, err)
	_, _, err = m.Forward(n0, tensor.Zeros(tensor.Shape{2, 2}), tg)
	assert.Error(t, err)
	_, _, err = m.Forward(n0, p, tensor.Zeros(tensor.Shape{3, 3}))
	assert.Error(t, err)
}

func TestForward_SolverFailure(t *testing.T) {
	m := newTestODE(t, 1, 1)
	// The first step reaches 1e300, the second overflows.
	m.a.Tensor().Data()[0] = 1e300
	n0 := tensor.MustNew([]float64{1}, tensor.Shape{1, 1})
	p := tensor.MustNew([]float64{0}, tensor.Shape{1, 1})
	tg := tensor.MustNew([]float64{0, 1, 2, 3}, tensor.Shape{1, 4})

	pred, status, err := m.Forward(n0, p, tg)
	require.NoError(t, err)
	assert.Equal(t, StatusSolverFailure, status)
	for _, v := range pred.Data() {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	}

	// Gradient of the repeated steps flows into the last finite state.
	require.NoError(t, m.Backward(tensor.Full(pred.Shape(), 1)))
	assert.NotNil(t, m.a.Grad())
}

func TestBackward_MatchesFiniteDifferences(t *testing.T) {
	const batch, features, params, steps = 3, 3, 2, 5
	m := newTestODE(t, features, params)
	n0, p, tg := testInputs(batch, features, params, steps)

	// L = sum(w ⊙ pred) for fixed random weights w.
	rng := rand.New(rand.NewPCG(9, 9))
	w := tensor.Zeros(tensor.Shape{batch, steps, features})
	for i := range w.Data() {
		w.Data()[i] = rng.NormFloat64()
	}
	objective := func() float64 {
		var pred *tensor.Tensor
		err := autodiff.NoGrad(m.Tape(), func() error {
			var err error
			pred, _, err = m.Forward(n0, p, tg)
			return err
		})
		require.NoError(t, err)
		sum := 0.0
		for i, v := range pred.Data() {
			sum += w.Data()[i] * v
		}
		return sum
	}

	_, _, err := m.Forward(n0, p, tg)
	require.NoError(t, err)
	require.NoError(t, m.Backward(w))

	for _, param := range m.Parameters() {
		data := param.Tensor().Data()
		f := func(x []float64) float64 {
			saved := append([]float64(nil), data...)
			copy(data, x)
			defer copy(data, saved)
			return objective()
		}
		numeric := fd.Gradient(nil, f, append([]float64(nil), data...), &fd.Settings{
			Formula: fd.Central,
			Step:    1e-6,
		})
		require.NotNil(t, param.Grad(), param.Name())
		assert.InDeltaSlice(t, numeric, param.Grad().Data(), 1e-6, param.Name())
	}
}

func TestBackward_RequiresRecordedForward(t *testing.T) {
	m := newTestODE(t, 2, 1)
	n0, p, tg := testInputs(1, 2, 1, 3)

	assert.ErrorIs(t, m.Backward(tensor.Zeros(tensor.Shape{1, 3, 2})), ErrNoGraph)

	err := autodiff.NoGrad(m.Tape(), func() error {
		_, _, err := m.Forward(n0, p, tg)
		return err
	})
	require.NoError(t, err)
	assert.ErrorIs(t, m.Backward(tensor.Zeros(tensor.Shape{1, 3, 2})), ErrNoGraph)
	assert.Equal(t, 0, m.Tape().NumOps())

	_, _, err = m.Forward(n0, p, tg)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Tape().NumOps())
	assert.Error(t, m.Backward(tensor.Zeros(tensor.Shape{1, 2, 2})))
}

func TestTrainEvalToggle(t *testing.T) {
	m := newTestODE(t, 1, 1)
	assert.True(t, m.Training())
	m.Eval()
	assert.False(t, m.Training())
	m.Train()
	assert.True(t, m.Training())
	assert.Len(t, m.Parameters(), 3)
}

var _ Model = (*LinearODE)(nil)
