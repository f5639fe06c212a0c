package optimizers

import (
	"math"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/layers"
)

type param struct {
	value, grad *tensor.Dense
}

func (p *param) Value() G.Value         { return p.value }
func (p *param) Grad() (G.Value, error) { return p.grad, nil }

func newParam(value, grad []float32) *param {
	return &param{value: matrix.Vec(value), grad: matrix.Vec(grad)}
}

func TestSchedules(t *testing.T) {
	assert.Equal(t, float32(0.3), Constant(0.3)(100))

	p := PowerLawDecay(1, 0.5)
	assert.Equal(t, float32(1), p(0))
	assert.Equal(t, float32(0.5), p(2))
	assert.Equal(t, p(17), p(17))

	e := ExponentialDecay(2, float32(math.Ln2))
	assert.InDelta(t, 2, e(0), 1e-6)
	assert.InDelta(t, 1, e(1), 1e-6)
	assert.InDelta(t, 0.5, e(2), 1e-6)
}

func TestSGD(t *testing.T) {
	x := newParam([]float32{2, -1}, []float32{1, -2})
	s := NewSGD(Constant(0.1))
	require.NoError(t, s.Step([]G.ValueGrad{x}))
	assert.InDeltaSlice(t, []float32{1.9, -0.8}, matrix.F32s(x.value), 1e-6)

	// the schedule sees the number of steps taken so far
	y := newParam([]float32{0}, []float32{1})
	s = NewSGD(PowerLawDecay(1, 1))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Step([]G.ValueGrad{y}))
	}
	assert.InDelta(t, -(1 + 0.5 + 1.0/3), matrix.F32s(y.value)[0], 1e-6)
}

func TestMomentum(t *testing.T) {
	x := newParam([]float32{0}, []float32{1})
	s := NewMomentum(Constant(0.1), 0.5)
	require.NoError(t, s.Step([]G.ValueGrad{x}))
	assert.InDelta(t, -0.1, matrix.F32s(x.value)[0], 1e-6)
	require.NoError(t, s.Step([]G.ValueGrad{x}))
	assert.InDelta(t, -0.25, matrix.F32s(x.value)[0], 1e-6)
}

func TestRMSProp(t *testing.T) {
	x := newParam([]float32{0}, []float32{1})
	s := NewRMSProp(Constant(0.1), 0.9)
	require.NoError(t, s.Step([]G.ValueGrad{x}))
	assert.InDelta(t, -0.1/math32.Sqrt(0.1), matrix.F32s(x.value)[0], 1e-5)
}

func TestAdamFirstStep(t *testing.T) {
	// bias correction makes the first step lr·sign(g)
	x := newParam([]float32{0, 0}, []float32{0.5, -2})
	a := NewAdam(Constant(0.1), 0, 0)
	mhat, vhat := a.Estimates(x)
	assert.Nil(t, mhat)
	assert.Nil(t, vhat)

	require.NoError(t, a.Step([]G.ValueGrad{x}))
	assert.InDeltaSlice(t, []float32{-0.1, 0.1}, matrix.F32s(x.value), 1e-5)

	mhat, vhat = a.Estimates(x)
	assert.InDeltaSlice(t, []float32{0.5, -2}, mhat, 1e-5)
	assert.InDeltaSlice(t, []float32{0.25, 4}, vhat, 1e-4)
}

func TestAdamMoments(t *testing.T) {
	g := []float32{0.5, -2, 3}
	x := newParam(make([]float32, 3), g)
	a := NewAdam(Constant(0), 0.9, 0.999)
	for i := 0; i < 5000; i++ {
		require.NoError(t, a.Step([]G.ValueGrad{x}))
	}
	mhat, vhat := a.Estimates(x)
	for i := range g {
		assert.InDelta(t, g[i], mhat[i], float64(1e-3*math32.Abs(g[i])), "m̂[%d]", i)
		assert.InDelta(t, g[i]*g[i], vhat[i], float64(1e-3*g[i]*g[i]), "v̂[%d]", i)
	}
	// a zero learning rate leaves the parameter alone
	assert.Equal(t, make([]float32, 3), matrix.F32s(x.value))
}

func TestShapeMismatch(t *testing.T) {
	bad := &param{value: matrix.Zeros(2, 2), grad: matrix.Zeros(4)}
	solvers := []G.Solver{
		NewSGD(Constant(1)),
		NewMomentum(Constant(1), 0.9),
		NewRMSProp(Constant(1), 0.9),
		NewAdam(Constant(1), 0.9, 0.999),
	}
	for _, s := range solvers {
		err := s.Step([]G.ValueGrad{bad})
		assert.True(t, layers.IsShapeError(err), "%T: %v", s, err)
	}
}

func TestNew(t *testing.T) {
	testCases := []struct {
		conf  Config
		valid bool
	}{
		{DefaultConfig(), true},
		{Config{Name: "sgd", LearnRate: 0.01}, true},
		{Config{Name: "momentum", LearnRate: 0.01, Beta1: 0.9}, true},
		{Config{Name: "rmsprop", LearnRate: 0.01, Beta2: 0.9, Decay: "exponential", Coefficient: 0.01}, true},
		{Config{Name: "vanilla", LearnRate: 0.01}, true},
		{Config{Name: "vanilla", LearnRate: 0.01, Decay: "power_law"}, false},
		{Config{Name: "sgd", LearnRate: 0}, false},
		{Config{Name: "sgd", LearnRate: 0.1, Decay: "cosine"}, false},
		{Config{Name: "adagrad", LearnRate: 0.1}, false},
		{Config{Name: "adam", LearnRate: 0.1, Beta1: 1}, false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.valid, tc.conf.IsValid(), "%+v", tc.conf)
		s, err := New(tc.conf)
		if !tc.valid {
			assert.Error(t, err)
			continue
		}
		require.NoError(t, err)
		assert.NotNil(t, s)
	}
}

func TestVanilla(t *testing.T) {
	s, err := New(Config{Name: "vanilla", LearnRate: 0.1})
	require.NoError(t, err)
	x := newParam([]float32{1}, []float32{1})
	require.NoError(t, s.Step([]G.ValueGrad{x}))
	assert.True(t, matrix.F32s(x.value)[0] < 1, "gorgonia's solver descends the gradient")
}
