package matrix

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestArgReduce(t *testing.T) {
	a := New([]float32{
		1, 3,
		3, 2,
		0, 3,
	}, 3, 2)

	testCases := []struct {
		name    string
		reduce  func(*tensor.Dense, int) ([]int, error)
		axis    int
		correct []int
	}{
		{"argmax global", Argmax, Global, []int{1}},
		{"argmax axis 0", Argmax, 0, []int{1, 0}},
		{"argmax axis 1", Argmax, 1, []int{1, 0, 1}},
		{"argmin global", Argmin, Global, []int{4}},
		{"argmin axis 0", Argmin, 0, []int{2, 1}},
		{"argmin axis 1", Argmin, 1, []int{0, 1, 0}},
	}
	for _, tc := range testCases {
		got, err := tc.reduce(a, tc.axis)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.correct, got, tc.name)
	}

	// ties resolve to the lowest index
	got, err := Argmax(New([]float32{2, 2, 2}, 1, 3), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, got)

	_, err = Argmax(a, 2)
	assert.Error(t, err)
}

func TestProducts(t *testing.T) {
	a := New([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	b := New([]float32{1, 0, 0, 1, 1, 1}, 3, 2)

	ab, err := Dot(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 5, 10, 11}, F32s(ab))

	at := Transpose(a)
	assert.Equal(t, tensor.Shape{3, 2}, at.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, F32s(at))
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, F32s(a), "transposing copies")
	col := Transpose(New([]float32{1, 2}, 2))
	assert.Equal(t, tensor.Shape{2, 1}, col.Shape())

	aat, err := DotT(a, a)
	require.NoError(t, err)
	assert.Equal(t, []float32{14, 32, 32, 77}, F32s(aat))

	ata, err := TDot(a, a)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 3}, ata.Shape())
	assert.Equal(t, float32(17), F32s(ata)[0])

	reuse := Zeros(2, 2)
	require.NoError(t, DotInto(reuse, a, b))
	assert.Equal(t, F32s(ab), F32s(reuse))

	h := New([]float32{1, 1, 0, 1}, 2, 2)
	bd, err := BatchDot(a, b, h)
	require.NoError(t, err)
	assert.Equal(t, []float32{9, 11}, bd)

	_, err = Dot(a, a)
	assert.Error(t, err)
}

func TestReductions(t *testing.T) {
	m := New([]float32{1, 2, 3, 6}, 2, 2)
	assert.Equal(t, []float32{2, 4}, MeanAxis0(m))
	assert.Equal(t, []float32{1, 4}, VarAxis0(m))
	assert.Equal(t, []float32{1, 2, 3, 6}, F32s(m))
	assert.Equal(t, []float32{0, 0}, VarAxis0(New([]float32{5, 7}, 2)))
	assert.Equal(t, []float32{2}, MeanAxis0(New([]float32{1, 3}, 2, 1)))
	assert.Equal(t, []float32{1}, VarAxis0(New([]float32{1, 3}, 2, 1)))
	assert.Equal(t, []float32{3, 9}, RowSums(m))
	assert.Equal(t, float32(3), Mean(F32s(m)))
	assert.InDelta(t, math32.Sqrt(3.5), Std(F32s(m)), 1e-6)
	assert.Equal(t, float32(6), Max(F32s(m)))
	assert.InDelta(t, 1000+math32.Log(2), LogSumExp([]float32{1000, 1000}), 1e-3)
}

func TestInPlace(t *testing.T) {
	x := []float32{1, 2}
	Mix(0.5, x, []float32{3, 4})
	assert.Equal(t, []float32{2, 3}, x)

	x = []float32{1, 1}
	SquareMix(0.5, x, []float32{3, -1})
	assert.Equal(t, []float32{5, 1}, x)

	x = []float32{-2, 0.5, 7}
	Clip(x, 0, 1)
	assert.Equal(t, []float32{0, 0.5, 1}, x)
	Clip(nil, 0, 1)

	dst := make([]float32, 2)
	SqrtDiv(dst, []float32{2, 3}, []float32{4, 9})
	assert.InDelta(t, 1, dst[0], 1e-6)
	assert.InDelta(t, 1, dst[1], 1e-6)

	m := Zeros(2, 2)
	AddRow(m, []float32{1, 2})
	assert.Equal(t, []float32{1, 2, 1, 2}, F32s(m))
	SubRow(m, []float32{1, 1})
	assert.Equal(t, []float32{0, 1, 0, 1}, F32s(m))
	assert.Equal(t, F32s(Broadcast([]float32{0, 1}, 2)), F32s(m))
}

func TestChecks(t *testing.T) {
	a := New([]float32{1, 2}, 2)
	b := New([]float32{1, 2.0001}, 2)
	assert.True(t, AllClose(a, b, 1e-3, 0))
	assert.False(t, AllClose(a, b, 0, 1e-6))
	assert.False(t, AllClose(a, New([]float32{1, 2}, 1, 2), 1, 1))
	assert.False(t, AllClose(New([]float32{1, 2}, 1, 2), a, 1, 1))
	assert.True(t, AllClose(New([]float32{1, 2}, 1, 2), New([]float32{1, 2}, 1, 2), 0, 0))

	assert.True(t, AllFinite([]float32{0, 1}))
	assert.False(t, AllFinite([]float32{0, math32.NaN()}))
	assert.False(t, AllFinite([]float32{math32.Inf(1)}))
}

func TestPool(t *testing.T) {
	s := Borrow(4)
	assert.Len(t, s, 4)
	s[0] = 3
	Return(s)
	s = Borrow(4)
	assert.Equal(t, []float32{0, 0, 0, 0}, s)
}
