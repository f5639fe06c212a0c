package layers

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/random"
)

const (
	numVisible = 100
	numHidden  = 50
	batchSize  = 25
)

func randn(src *random.Source, shape ...int) *tensor.Dense {
	retVal := matrix.Zeros(shape...)
	data := matrix.F32s(retVal)
	for i := range data {
		data[i] = src.Normal(0, 1)
	}
	return retVal
}

func rand(src *random.Source, shape ...int) *tensor.Dense {
	retVal := matrix.Zeros(shape...)
	data := matrix.F32s(retVal)
	for i := range data {
		data[i] = src.Uniform()
	}
	return retVal
}

// expectedField computes data @ W + broadcast(loc) directly from the definition.
func expectedField(t *testing.T, data, w *tensor.Dense, loc *tensor.Dense) *tensor.Dense {
	field, err := matrix.Dot(data, w)
	require.NoError(t, err)
	matrix.AddRow(field, matrix.F32s(loc))
	return field
}

func TestUpdate(t *testing.T) {
	for _, f := range []Family{Bernoulli, Ising, Gaussian} {
		t.Run(f.String(), func(t *testing.T) {
			src := random.New(137)
			vis := New(f, numVisible, src)
			hid := New(f, numHidden, src)

			a := randn(src, numVisible)
			b := randn(src, numHidden)
			W := randn(src, numVisible, numHidden)
			require.NoError(t, vis.SetParams(Params{Loc: a, LogVar: matrix.Zeros(numVisible)}))
			require.NoError(t, hid.SetParams(Params{Loc: b, LogVar: matrix.Zeros(numHidden)}))

			vdata, err := vis.Random(batchSize)
			require.NoError(t, err)
			hdata, err := hid.Random(batchSize)
			require.NoError(t, err)

			hiddenField := expectedField(t, vdata, W, b)
			visibleField := expectedField(t, hdata, matrix.Transpose(W), a)

			require.NoError(t, hid.Update([]*tensor.Dense{vdata}, []*tensor.Dense{W}, nil))
			require.NoError(t, vis.Update([]*tensor.Dense{hdata}, []*tensor.Dense{matrix.Transpose(W)}, nil))

			gotHid, gotVis := hid.Ext.Field, vis.Ext.Field
			if f == Gaussian {
				gotHid, gotVis = hid.Ext.Mean, vis.Ext.Mean
			}
			assert.True(t, matrix.AllClose(hiddenField, gotHid, 1e-5, 1e-5), "hidden field wrong in %v-%v rbm", f, f)
			assert.True(t, matrix.AllClose(visibleField, gotVis, 1e-5, 1e-5), "visible field wrong in %v-%v rbm", f, f)
		})
	}
}

func TestGaussianVariance(t *testing.T) {
	src := random.New(3)
	vis := New(Gaussian, 3, src)
	logVar := matrix.New([]float32{0, math32.Log(2), math32.Log(4)}, 3)
	require.NoError(t, vis.SetParams(Params{Loc: matrix.Zeros(3), LogVar: logVar}))

	x := randn(src, 2, 3)
	require.NoError(t, vis.UpdateField(x, []float32{1, 2}))
	want := []float32{1, 2, 4, 0.5, 1, 2}
	for i, v := range matrix.F32s(vis.Ext.Variance) {
		assert.InDelta(t, want[i], v, 1e-5, "variance[%d]", i)
	}
}

func TestExponentialUpdate(t *testing.T) {
	src := random.New(137)
	vis := New(Exponential, numVisible, src)
	hid := New(Exponential, numHidden, src)

	// exponential layers need a > 0, b > 0 and W < 0
	a := rand(src, numVisible)
	b := rand(src, numHidden)
	W := rand(src, numVisible, numHidden)
	matrix.Clip(matrix.F32s(a), 0.1, 1)
	matrix.Clip(matrix.F32s(b), 0.1, 1)
	for i, x := range matrix.F32s(W) {
		matrix.F32s(W)[i] = -x
	}
	require.NoError(t, vis.SetParams(Params{Loc: a}))
	require.NoError(t, hid.SetParams(Params{Loc: b}))

	vdata, err := vis.Random(batchSize)
	require.NoError(t, err)
	hdata, err := hid.Random(batchSize)
	require.NoError(t, err)

	hiddenRate, err := matrix.Dot(vdata, W)
	require.NoError(t, err)
	for i, x := range matrix.F32s(hiddenRate) {
		matrix.F32s(hiddenRate)[i] = -x + matrix.F32s(b)[i%numHidden]
	}
	visibleRate, err := matrix.DotT(hdata, W)
	require.NoError(t, err)
	for i, x := range matrix.F32s(visibleRate) {
		matrix.F32s(visibleRate)[i] = -x + matrix.F32s(a)[i%numVisible]
	}

	require.NoError(t, hid.Update([]*tensor.Dense{vdata}, []*tensor.Dense{W}, nil))
	require.NoError(t, vis.Update([]*tensor.Dense{hdata}, []*tensor.Dense{matrix.Transpose(W)}, nil))

	assert.True(t, matrix.AllClose(hiddenRate, hid.Ext.Rate, 1e-5, 1e-5), "hidden rate wrong in exponential-exponential rbm")
	assert.True(t, matrix.AllClose(visibleRate, vis.Ext.Rate, 1e-5, 1e-5), "visible rate wrong in exponential-exponential rbm")
}

func TestDomainInvariants(t *testing.T) {
	for f := Bernoulli; f < MAXFAMILY; f++ {
		t.Run(f.String(), func(t *testing.T) {
			src := random.New(1337)
			vis := New(f, numVisible, src)
			hid := New(f, numHidden, src)
			W := randn(src, numVisible, numHidden)
			if f == Exponential {
				for i, x := range matrix.F32s(W) {
					matrix.F32s(W)[i] = -math32.Abs(x) * 0.01
				}
			}
			vdata, err := vis.Random(batchSize)
			require.NoError(t, err)
			require.NoError(t, hid.Update([]*tensor.Dense{vdata}, []*tensor.Dense{W}, nil))

			sample := matrix.Zeros(batchSize, numHidden)
			mean := matrix.Zeros(batchSize, numHidden)
			require.NoError(t, hid.Sample(sample))
			require.NoError(t, hid.Mean(mean))

			for i, s := range matrix.F32s(sample) {
				m := matrix.F32s(mean)[i]
				switch f {
				case Bernoulli:
					assert.Contains(t, []float32{0, 1}, s)
					assert.True(t, m >= 0 && m <= 1, "mean %v out of [0, 1]", m)
				case Ising:
					assert.Contains(t, []float32{-1, 1}, s)
					assert.True(t, m >= -1 && m <= 1, "mean %v out of [-1, 1]", m)
				case Exponential:
					assert.True(t, s >= 0, "sample %v is negative", s)
					assert.True(t, m >= 0, "mean %v is negative", m)
				}
			}
		})
	}
}

func TestExponentialDomainError(t *testing.T) {
	src := random.New(1)
	hid := New(Exponential, 3, src)
	v := matrix.New([]float32{1, 1}, 1, 2)
	W := matrix.New([]float32{1, 1, 1, 1, 1, 1}, 2, 3) // positive weights drive the rate below zero
	err := hid.Update([]*tensor.Dense{v}, []*tensor.Dense{W}, nil)
	require.Error(t, err)
	assert.True(t, IsDomainError(err), "expected a DomainError, got %v", err)
	assert.False(t, IsShapeError(err))
}

func TestShapeError(t *testing.T) {
	src := random.New(1)
	hid := New(Bernoulli, 3, src)
	v := matrix.Zeros(4, 2)
	W := matrix.Zeros(5, 3)
	err := hid.Update([]*tensor.Dense{v}, []*tensor.Dense{W}, nil)
	require.Error(t, err)
	assert.True(t, IsShapeError(err), "expected a ShapeError, got %v", err)

	require.NoError(t, hid.Update([]*tensor.Dense{v}, []*tensor.Dense{matrix.Zeros(2, 3)}, nil))
	err = hid.Sample(matrix.Zeros(4, 4))
	assert.True(t, IsShapeError(err), "expected a ShapeError, got %v", err)

	err = hid.SetParams(Params{Loc: matrix.Zeros(4)})
	assert.True(t, IsShapeError(err), "expected a ShapeError, got %v", err)
}

func TestTemperature(t *testing.T) {
	src := random.New(7)
	hid := New(Bernoulli, 2, src)
	v := matrix.New([]float32{1, 0, 0, 1}, 2, 2)
	W := matrix.New([]float32{2, -2, 4, 1}, 2, 2)
	require.NoError(t, hid.Update([]*tensor.Dense{v}, []*tensor.Dense{W}, []float32{0.5, 0}))
	assert.Equal(t, []float32{1, -1, 0, 0}, matrix.F32s(hid.Ext.Field))
}

func TestGradientSign(t *testing.T) {
	src := random.New(7)
	l := New(Bernoulli, 2, src)
	data := matrix.New([]float32{1, 1, 1, 0}, 2, 2)
	model := matrix.New([]float32{0, 0, 0, 0}, 2, 2)
	g, err := l.Gradient(data, nil, model, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0.5}, matrix.F32s(g.Loc), "ascent direction should point towards the data")

	d, err := l.Derivatives(data, nil)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, -0.5}, matrix.F32s(d.Loc))
}

func TestLogPartitionBernoulli(t *testing.T) {
	// brute force Σ_h exp(h·(loc + x)) over h ∈ {0,1}² against the closed form
	src := random.New(3)
	l := New(Bernoulli, 2, src)
	require.NoError(t, l.SetParams(Params{Loc: matrix.New([]float32{0.3, -1.2}, 2)}))
	x := matrix.New([]float32{0.5, 2, -0.7, 0.1}, 2, 2)
	got, err := l.LogPartition(x)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		f0 := 0.3 + matrix.Row(x, i)[0]
		f1 := -1.2 + matrix.Row(x, i)[1]
		var z float32
		for _, h0 := range []float32{0, 1} {
			for _, h1 := range []float32{0, 1} {
				z += math32.Exp(h0*f0 + h1*f1)
			}
		}
		assert.InDelta(t, math32.Log(z), got[i], 1e-5)
	}
}

func TestLink(t *testing.T) {
	src := random.New(11)
	for f := Bernoulli; f < MAXFAMILY; f++ {
		l := New(f, 3, src)
		mean := []float32{0.2, 0.5, 0.7}
		variance := []float32{1, 2, 0.5}
		require.NoError(t, l.Link(mean, variance))
		// conditional on a zero field the layer mean is its unconditional mean
		require.NoError(t, l.UpdateField(matrix.Zeros(1, 3), nil))
		got := matrix.Zeros(1, 3)
		require.NoError(t, l.Mean(got))
		for i, m := range mean {
			assert.InDelta(t, m, matrix.F32s(got)[i], 1e-4, "%v link of mean %v", f, m)
		}
	}
}
