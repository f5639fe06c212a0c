package models

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/chewxy/math32"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/layers"
	"github.com/gorgonia/boltzmann/random"
)

// randomize fills every parameter with small normal noise.
func randomize(m *Model, src *random.Source) {
	for _, p := range m.Params() {
		data := matrix.F32s(p.Tensor())
		for i := range data {
			data[i] = src.Normal(0, 0.5)
		}
	}
	m.EnforceConstraints()
}

func TestNew(t *testing.T) {
	src := random.New(1)
	_, err := New(src, layers.New(layers.Bernoulli, 3, src))
	assert.Error(t, err)

	_, err = Build(src, LayerConfig{Family: layers.Bernoulli, Size: 3}, LayerConfig{Family: layers.Bernoulli, Size: 0})
	assert.Error(t, err)
	_, err = Build(src, LayerConfig{Family: layers.Bernoulli, Size: 3}, LayerConfig{Family: layers.MAXFAMILY, Size: 2})
	assert.Error(t, err)

	m, err := Build(src, LayerConfig{Family: layers.Gaussian, Size: 3}, LayerConfig{Family: layers.Bernoulli, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3+3+2+6, m.NumParams())
	assert.Len(t, m.Parameters(), 4)
	assert.Equal(t, []LayerConfig{{Family: layers.Gaussian, Size: 3}, {Family: layers.Bernoulli, Size: 2}}, m.Config())

	names := make([]string, 0, 4)
	for _, p := range m.Params() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"layer0/loc", "layer0/log_var", "layer1/loc", "weights0/W"}, names)
}

func TestIterateShapes(t *testing.T) {
	families := []layers.Family{layers.Bernoulli, layers.Gaussian, layers.Ising, layers.Exponential}
	for _, f := range families {
		src := random.New(7)
		m, err := Build(src, LayerConfig{Family: f, Size: 6}, LayerConfig{Family: layers.Bernoulli, Size: 4}, LayerConfig{Family: f, Size: 3})
		require.NoError(t, err)
		randomize(m, src)

		s, err := RandomState(m, 5)
		require.NoError(t, err)
		units := append([]*tensor.Dense(nil), s.Units...)

		for _, n := range []int{0, 1, 3} {
			for _, op := range []Op{Sample, Mean, Mode} {
				require.NoError(t, m.Iterate(n, s, op, Mean, nil), "%v %v %d", f, op, n)
				for i := range units {
					assert.True(t, units[i] == s.Units[i], "%v: layer %d was reallocated", f, i)
					assert.Equal(t, tensor.Shape{5, m.Layers[i].Len()}, s.Units[i].Shape())
				}
			}
		}
	}
}

func TestIterateErrors(t *testing.T) {
	src := random.New(1)
	m, err := RBM(src, 3, 2, layers.Bernoulli, layers.Bernoulli)
	require.NoError(t, err)

	s := NewState(m, 4)
	err = m.MarkovChain(1, s, []float32{1, 1})
	assert.True(t, layers.IsShapeError(err), "%v", err)

	s.Units[1] = matrix.Zeros(3, 2)
	err = m.MarkovChain(1, s, nil)
	assert.True(t, layers.IsShapeError(err), "%v", err)
}

func TestMarginalFreeEnergy(t *testing.T) {
	src := random.New(3)
	m, err := RBM(src, 3, 2, layers.Bernoulli, layers.Bernoulli)
	require.NoError(t, err)
	randomize(m, src)

	v := matrix.New([]float32{1, 0, 1, 0, 1, 1}, 2, 3)
	free, err := m.MarginalFreeEnergy(v)
	require.NoError(t, err)

	// sum the hidden layer out by brute force
	for r := 0; r < 2; r++ {
		var terms []float32
		for code := 0; code < 4; code++ {
			s := NewState(m, 1)
			copy(matrix.F32s(s.Units[0]), matrix.Row(v, r))
			h := matrix.F32s(s.Units[1])
			h[0], h[1] = float32(code&1), float32(code>>1)
			e, err := m.Energy(s)
			require.NoError(t, err)
			terms = append(terms, -e[0])
		}
		want := -matrix.LogSumExp(terms)
		assert.InDelta(t, want, free[r], 1e-4)
	}

	deep, err := Build(src, LayerConfig{Family: layers.Bernoulli, Size: 3}, LayerConfig{Family: layers.Bernoulli, Size: 2}, LayerConfig{Family: layers.Bernoulli, Size: 2})
	require.NoError(t, err)
	_, err = deep.MarginalFreeEnergy(v)
	assert.Error(t, err)
}

func TestClamped(t *testing.T) {
	src := random.New(5)
	m, err := RBM(src, 4, 3, layers.Bernoulli, layers.Bernoulli)
	require.NoError(t, err)
	randomize(m, src)

	v := batch.Noise(6, 4, 0.5, src)
	s, err := m.Clamped(v, 1)
	require.NoError(t, err)
	assert.Equal(t, matrix.F32s(v), matrix.F32s(s.Units[0]))

	x, err := matrix.Dot(v, m.Weights[0].W)
	require.NoError(t, err)
	matrix.AddRow(x, matrix.F32s(m.Layers[1].Loc))
	for i, f := range matrix.F32s(x) {
		assert.InDelta(t, 1/(1+math32.Exp(-f)), matrix.F32s(s.Units[1])[i], 1e-5)
	}

	_, err = m.Clamped(matrix.Zeros(6, 5), 1)
	assert.True(t, layers.IsShapeError(err))
}

func TestGradient(t *testing.T) {
	src := random.New(11)
	m, err := Build(src, LayerConfig{Family: layers.Gaussian, Size: 4}, LayerConfig{Family: layers.Bernoulli, Size: 3})
	require.NoError(t, err)
	randomize(m, src)

	data, err := RandomState(m, 8)
	require.NoError(t, err)

	// identical phases cancel
	require.NoError(t, m.Gradient(data, data.Clone()))
	assert.Equal(t, float32(0), m.GradNorm())

	// a Bernoulli loc gradient is the model mean minus the data mean
	model, err := RandomState(m, 8)
	require.NoError(t, err)
	require.NoError(t, m.Gradient(data, model))
	want := matrix.MeanAxis0(model.Units[1])
	dataMean := matrix.MeanAxis0(data.Units[1])
	for i := range want {
		want[i] -= dataMean[i]
	}
	g := m.Params()[2].GradTensor()
	for i, x := range matrix.F32s(g) {
		assert.InDelta(t, want[i], x, 1e-6)
	}

	for _, p := range m.Parameters() {
		v, err := p.Grad()
		require.NoError(t, err)
		assert.Equal(t, p.Value().Shape(), v.Shape())
	}
}

func TestInitialize(t *testing.T) {
	src := random.New(1)
	backing := make([]float32, 40*2)
	for i := 0; i < 40; i++ {
		backing[2*i] = 1
		if i%4 != 0 {
			backing[2*i+1] = 1
		}
	}
	data, err := batch.NewTable(matrix.New(backing, 40, 2), batch.Config{BatchSize: 4, TrainFraction: 0.5}, src)
	require.NoError(t, err)

	m, err := RBM(src, 2, 3, layers.Bernoulli, layers.Exponential)
	require.NoError(t, err)
	require.NoError(t, m.Initialize(data, Zero))
	loc := matrix.F32s(m.Layers[0].Loc)
	assert.True(t, loc[0] > 10, "a column of ones has a very large logit: %v", loc[0])
	assert.InDelta(t, math32.Log(3), loc[1], 1e-4)
	assert.Equal(t, []float32{0, 0, 0, 0, 0, 0}, matrix.F32s(m.Weights[0].W))

	require.NoError(t, m.Initialize(data, Hinton))
	var nonzero int
	for _, w := range matrix.F32s(m.Weights[0].W) {
		assert.True(t, w <= 0, "weights into an exponential layer must be non positive")
		if w != 0 {
			nonzero++
		}
	}
	assert.NotZero(t, nonzero)

	assert.Error(t, m.Initialize(data, InitMethod("lecun")))

	wide, err := RBM(src, 5, 3, layers.Bernoulli, layers.Bernoulli)
	require.NoError(t, err)
	assert.True(t, layers.IsShapeError(wide.Initialize(data, Glorot)))
}

func TestSaveLoad(t *testing.T) {
	src := random.New(9)
	m, err := Build(src, LayerConfig{Family: layers.Gaussian, Size: 4}, LayerConfig{Family: layers.Ising, Size: 3}, LayerConfig{Family: layers.Bernoulli, Size: 2})
	require.NoError(t, err)
	randomize(m, src)

	filename := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, m.Save(filename))
	loaded, err := Load(filename, random.New(1))
	require.NoError(t, err)

	assert.Equal(t, m.Config(), loaded.Config())
	require.Len(t, loaded.Params(), len(m.Params()))
	for i, p := range m.Params() {
		q := loaded.Params()[i]
		assert.Equal(t, p.Name, q.Name)
		if diff := cmp.Diff(matrix.F32s(p.Tensor()), matrix.F32s(q.Tensor())); diff != "" {
			t.Errorf("%v differs after a round trip (-want +got):\n%s", p, diff)
		}
	}

	// the loaded model samples
	s, err := RandomState(loaded, 2)
	require.NoError(t, err)
	assert.NoError(t, loaded.MarkovChain(2, s, nil))
}

func TestToDot(t *testing.T) {
	src := random.New(1)
	m, err := RBM(src, 3, 2, layers.Gaussian, layers.Bernoulli)
	require.NoError(t, err)
	dot := m.ToDot()
	t.Logf("%v", dot)
	assert.True(t, strings.Contains(dot, "layer0"))
	assert.True(t, strings.Contains(dot, "layer1"))
	assert.True(t, strings.Contains(dot, "->"))
}

func TestCheckFinite(t *testing.T) {
	src := random.New(1)
	m, err := RBM(src, 3, 2, layers.Bernoulli, layers.Bernoulli)
	require.NoError(t, err)
	assert.NoError(t, m.CheckFinite())
	matrix.F32s(m.Weights[0].W)[4] = math32.NaN()
	err = m.CheckFinite()
	assert.True(t, layers.IsDomainError(err))
}
