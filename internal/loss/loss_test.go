package loss

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/bgzastrow/mace/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

// randomPair returns a target and a perturbed prediction of shape
// (batch × time × features) with abundances that change over time.
func randomPair(seed uint64, batch, steps, feats int) (*tensor.Tensor, *tensor.Tensor) {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	shape := tensor.Shape{batch, steps, feats}
	x := tensor.Zeros(shape)
	xHat := tensor.Zeros(shape)
	for b := range batch {
		for f := range feats {
			start := rng.Float64()
			for t := range steps {
				v := start + 0.1*float64(t)*(1+rng.Float64())
				x.Set(v, b, t, f)
				xHat.Set(v+0.05*rng.NormFloat64(), b, t, f)
			}
		}
	}
	return x, xHat
}

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{"mse": ModeMSE, "rel": ModeRel, "combi": ModeCombi, " Combi ": ModeCombi}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "mae", "relative", "MSE2"} {
		_, err := ParseMode(bad)
		assert.ErrorIs(t, err, ErrUnknownMode, bad)
	}
}

func TestModeText(t *testing.T) {
	var m Mode
	require.NoError(t, m.UnmarshalText([]byte("rel")))
	assert.Equal(t, ModeRel, m)
	assert.Equal(t, "rel", m.String())

	text, err := ModeCombi.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "combi", string(text))

	_, err = Mode(7).MarshalText()
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Equal(t, "Mode(7)", Mode(7).String())
	assert.ErrorIs(t, m.UnmarshalText([]byte("bogus")), ErrUnknownMode)
}

func TestCompute_UnknownMode(t *testing.T) {
	x, xHat := randomPair(1, 1, 3, 2)
	for _, m := range []Mode{-1, numModes, 42} {
		v, err := Compute(m, x, xHat)
		assert.ErrorIs(t, err, ErrUnknownMode)
		assert.Nil(t, v)
	}
}

func TestMSE_IdenticalIsZero(t *testing.T) {
	x, _ := randomPair(2, 3, 5, 4)
	v, err := Compute(ModeMSE, x, x.Clone())
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Item())
	for _, g := range v.Grad().Data() {
		assert.Equal(t, 0.0, g)
	}
}

func TestMSE_Value(t *testing.T) {
	x := tensor.MustNew([]float64{1, 2, 3, 4}, tensor.Shape{1, 2, 2})
	xHat := tensor.MustNew([]float64{1, 3, 5, 4}, tensor.Shape{1, 2, 2})
	v, err := MSE(x, xHat)
	require.NoError(t, err)
	// (0 + 1 + 4 + 0) / 4
	assert.InDelta(t, 1.25, v.Item(), 1e-15)
}

func TestRel_AsymmetricEpsilon(t *testing.T) {
	// One sample, one feature, two time steps: x = [1, 2], xHat = [1, 1.5].
	x := tensor.MustNew([]float64{1, 2}, tensor.Shape{1, 2, 1})
	xHat := tensor.MustNew([]float64{1, 1.5}, tensor.Shape{1, 2, 1})

	v, err := Rel(x, xHat)
	require.NoError(t, err)

	want := math.Pow((0.5+1e-4*1e-4)/(1+1e-4), 2)
	assert.InDelta(t, want, v.Item(), 1e-15)

	// The symmetric variant would give a measurably different value.
	symmetric := math.Pow((0.5+1e-4)/(1+1e-4), 2)
	assert.Greater(t, math.Abs(symmetric-v.Item()), 1e-6)
}

func TestRel_IgnoresFirstStep(t *testing.T) {
	x, xHat := randomPair(3, 2, 4, 3)
	v, err := Rel(x, xHat)
	require.NoError(t, err)

	// Perturbing the first predicted step leaves the loss unchanged.
	shifted := xHat.Clone()
	for b := range 2 {
		for f := range 3 {
			shifted.Set(shifted.At(b, 0, f)+10, b, 0, f)
		}
	}
	w, err := Rel(x, shifted)
	require.NoError(t, err)
	assert.Equal(t, v.Item(), w.Item())

	for b := range 2 {
		for f := range 3 {
			assert.Equal(t, 0.0, v.Grad().At(b, 0, f))
		}
	}
}

func TestRel_NonNegative(t *testing.T) {
	for seed := range uint64(20) {
		x, xHat := randomPair(seed, 2, 6, 3)
		v, err := Rel(x, xHat)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v.Item(), 0.0)
	}
}

func TestRel_ShortSequence(t *testing.T) {
	x := tensor.Zeros(tensor.Shape{2, 1, 3})
	_, err := Rel(x, x.Clone())
	assert.ErrorIs(t, err, ErrShortSequence)

	_, err = Rel(tensor.Zeros(tensor.Shape{4, 3}), tensor.Zeros(tensor.Shape{4, 3}))
	assert.Error(t, err)
}

func TestCombi_IsMSEPlusScaledRel(t *testing.T) {
	for seed := range uint64(10) {
		x, xHat := randomPair(seed, 3, 5, 4)

		mse, err := MSE(x, xHat)
		require.NoError(t, err)
		rel, err := Rel(x, xHat)
		require.NoError(t, err)
		combi, err := Combi(x, xHat)
		require.NoError(t, err)

		assert.Equal(t, mse.Item()+rel.Item()/1e6, combi.Item())
	}
}

func TestShapeMismatch(t *testing.T) {
	x := tensor.Zeros(tensor.Shape{1, 3, 2})
	xHat := tensor.Zeros(tensor.Shape{1, 2, 2})
	for _, m := range []Mode{ModeMSE, ModeRel, ModeCombi} {
		_, err := Compute(m, x, xHat)
		assert.ErrorIs(t, err, ErrShapeMismatch, m.String())
	}
}

// TestGradients compares analytic gradients with central finite differences.
func TestGradients(t *testing.T) {
	x, xHat := randomPair(11, 2, 4, 3)

	for _, m := range []Mode{ModeMSE, ModeRel, ModeCombi} {
		t.Run(m.String(), func(t *testing.T) {
			fn, err := m.Func()
			require.NoError(t, err)

			v, err := fn(x, xHat)
			require.NoError(t, err)

			f := func(h []float64) float64 {
				pred := tensor.MustNew(append([]float64(nil), h...), xHat.Shape())
				out, err := fn(x, pred)
				if err != nil {
					t.Fatalf("loss: %v", err)
				}
				return out.Item()
			}
			numeric := fd.Gradient(nil, f, xHat.Data(), &fd.Settings{
				Formula: fd.Central,
				Step:    1e-6,
			})

			for i, g := range v.Grad().Data() {
				tol := 1e-6 * math.Max(1, math.Abs(numeric[i]))
				assert.InDelta(t, numeric[i], g, tol, "element %d", i)
			}
		})
	}
}

type recordingSink struct {
	got *tensor.Tensor
}

func (s *recordingSink) Backward(g *tensor.Tensor) error {
	s.got = g
	return nil
}

func TestValue_Backward(t *testing.T) {
	x, xHat := randomPair(5, 1, 3, 2)
	v, err := Compute(ModeMSE, x, xHat)
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, v.Backward(sink))
	assert.Same(t, v.Grad(), sink.got)
}
