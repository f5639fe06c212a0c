// Package matrix holds the dense array routines the layers, models and samplers are written
// against. Every array is a row major float32 *tensor.Dense; vectors are 1D, batches are
// (rows, cols).
package matrix

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Float is the element type of every array in the module.
var Float = tensor.Float32

// Epsilon is the float32 machine epsilon.
const Epsilon float32 = 1.1920929e-07

// Zeros returns a zero filled array of the given shape.
func Zeros(shape ...int) *tensor.Dense {
	return tensor.New(tensor.Of(Float), tensor.WithShape(shape...))
}

// Ones returns an array of ones of the given shape.
func Ones(shape ...int) *tensor.Dense {
	retVal := Zeros(shape...)
	Fill(retVal, 1)
	return retVal
}

// New wraps data in an array of the given shape. The data is not copied.
func New(data []float32, shape ...int) *tensor.Dense {
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// Vec returns a copy of data as a 1D array.
func Vec(data []float32) *tensor.Dense {
	backing := make([]float32, len(data))
	copy(backing, data)
	return New(backing, len(backing))
}

// F32s returns the backing slice of a.
func F32s(a *tensor.Dense) []float32 { return a.Data().([]float32) }

// Clone returns a deep copy of a.
func Clone(a *tensor.Dense) *tensor.Dense { return a.Clone().(*tensor.Dense) }

// Fill sets every element of a to v.
func Fill(a *tensor.Dense, v float32) {
	data := F32s(a)
	for i := range data {
		data[i] = v
	}
}

// Copy copies src into dst. The shapes must agree.
func Copy(dst, src *tensor.Dense) error {
	if !dst.Shape().Eq(src.Shape()) {
		return errors.Errorf("cannot copy %v into %v", src.Shape(), dst.Shape())
	}
	copy(F32s(dst), F32s(src))
	return nil
}

// Dims returns the rows and columns of a 2D array. A 1D array is treated as a single row.
func Dims(a *tensor.Dense) (rows, cols int) {
	s := a.Shape()
	switch len(s) {
	case 1:
		return 1, s[0]
	case 2:
		return s[0], s[1]
	}
	panic("matrix: only 1D and 2D arrays are supported")
}

// Row returns the ith row of a 2D array, sharing memory with it.
func Row(a *tensor.Dense, i int) []float32 {
	_, cols := Dims(a)
	return F32s(a)[i*cols : (i+1)*cols]
}

// Transpose returns a materialized transpose of a 2D array. A 1D array is treated as a single
// row and comes back as a column.
func Transpose(a *tensor.Dense) *tensor.Dense {
	if a.Dims() == 1 {
		return New(append([]float32(nil), F32s(a)...), a.Shape()[0], 1)
	}
	retVal, err := tensor.Transpose(a)
	must(err)
	return retVal.(*tensor.Dense)
}

// Dot computes a @ b.
func Dot(a, b *tensor.Dense) (*tensor.Dense, error) {
	retVal, err := a.MatMul(b)
	if err != nil {
		return nil, errors.Wrapf(err, "dot of %v and %v", a.Shape(), b.Shape())
	}
	return retVal, nil
}

// DotInto computes a @ b into reuse.
func DotInto(reuse, a, b *tensor.Dense) error {
	if _, err := a.MatMul(b, tensor.WithReuse(reuse)); err != nil {
		return errors.Wrapf(err, "dot of %v and %v into %v", a.Shape(), b.Shape(), reuse.Shape())
	}
	return nil
}

// DotT computes a @ bᵀ.
func DotT(a, b *tensor.Dense) (*tensor.Dense, error) { return Dot(a, Transpose(b)) }

// TDot computes aᵀ @ b.
func TDot(a, b *tensor.Dense) (*tensor.Dense, error) { return Dot(Transpose(a), b) }

// AddInto adds src to dst elementwise, in place.
func AddInto(dst, src *tensor.Dense) { vecf32.Add(F32s(dst), F32s(src)) }

// AddRow adds the vector v to every row of m, in place.
func AddRow(m *tensor.Dense, v []float32) {
	rows, _ := Dims(m)
	for i := 0; i < rows; i++ {
		vecf32.Add(Row(m, i), v)
	}
}

// SubRow subtracts the vector v from every row of m, in place.
func SubRow(m *tensor.Dense, v []float32) {
	rows, _ := Dims(m)
	for i := 0; i < rows; i++ {
		vecf32.Sub(Row(m, i), v)
	}
}

// Broadcast returns a (rows, len(v)) array with v in every row.
func Broadcast(v []float32, rows int) *tensor.Dense {
	retVal := Zeros(rows, len(v))
	for i := 0; i < rows; i++ {
		copy(Row(retVal, i), v)
	}
	return retVal
}

// MeanAxis0 returns the column means of a 2D array.
func MeanAxis0(m *tensor.Dense) []float32 {
	rows, cols := Dims(m)
	switch {
	case m.Dims() == 1:
		return append([]float32(nil), F32s(m)...)
	case rows == 0:
		return make([]float32, cols)
	}
	sum, err := m.Sum(0)
	must(err)
	retVal := reduced(sum)
	vecf32.Scale(retVal, 1/float32(rows))
	return retVal
}

// VarAxis0 returns the (biased) column variances of a 2D array.
func VarAxis0(m *tensor.Dense) []float32 {
	rows, cols := Dims(m)
	if m.Dims() == 1 || rows == 0 {
		return make([]float32, cols)
	}
	d := Clone(m)
	SubRow(d, MeanAxis0(m))
	_, err := tensor.Square(d, tensor.UseUnsafe())
	must(err)
	ss, err := d.Sum(0)
	must(err)
	retVal := reduced(ss)
	vecf32.Scale(retVal, 1/float32(rows))
	return retVal
}

// reduced returns the elements of a reduction result, which tensor hands back as a scalar
// when a single column was reduced.
func reduced(a *tensor.Dense) []float32 {
	if x, ok := a.Data().(float32); ok {
		return []float32{x}
	}
	return append([]float32(nil), F32s(a)...)
}

// RowSums returns the sum of each row of a 2D array.
func RowSums(m *tensor.Dense) []float32 {
	rows, _ := Dims(m)
	retVal := make([]float32, rows)
	for i := range retVal {
		retVal[i] = vecf32.Sum(Row(m, i))
	}
	return retVal
}

// Mean returns the mean of all the elements of a.
func Mean(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	return vecf32.Sum(a) / float32(len(a))
}

// Std returns the (biased) standard deviation of the elements of a.
func Std(a []float32) float32 {
	if len(a) == 0 {
		return 0
	}
	m := Mean(a)
	var ss float32
	for _, x := range a {
		ss += (x - m) * (x - m)
	}
	return math32.Sqrt(ss / float32(len(a)))
}

// BatchDot computes Σ_j (v @ W)_ij h_ij for every row i, that is vᵢᵀ W hᵢ.
func BatchDot(v, w, h *tensor.Dense) ([]float32, error) {
	vw, err := Dot(v, w)
	if err != nil {
		return nil, err
	}
	if !vw.Shape().Eq(h.Shape()) {
		return nil, errors.Errorf("batch dot: (v @ W) is %v but h is %v", vw.Shape(), h.Shape())
	}
	vecf32.Mul(F32s(vw), F32s(h))
	return RowSums(vw), nil
}

// BatchOuter computes Σ_i vᵢ hᵢᵀ = vᵀ @ h.
func BatchOuter(v, h *tensor.Dense) (*tensor.Dense, error) { return TDot(v, h) }

// Mix computes x ← w·x + (1-w)·y in place.
func Mix(w float32, x, y []float32) {
	tmp := Borrow(len(y))
	defer Return(tmp)
	copy(tmp, y)
	vecf32.Scale(tmp, 1-w)
	vecf32.Scale(x, w)
	vecf32.Add(x, tmp)
}

// SquareMix computes x ← w·x + (1-w)·y² in place.
func SquareMix(w float32, x, y []float32) {
	tmp := Borrow(len(y))
	defer Return(tmp)
	copy(tmp, y)
	vecf32.Mul(tmp, y)
	vecf32.Scale(tmp, 1-w)
	vecf32.Scale(x, w)
	vecf32.Add(x, tmp)
}

// SqrtDiv computes x / sqrt(ε + y) into dst.
func SqrtDiv(dst, x, y []float32) {
	for i := range dst {
		dst[i] = x[i] / math32.Sqrt(Epsilon+y[i])
	}
}

// Clip clamps every element of a into [lo, hi], in place.
func Clip(a []float32, lo, hi float32) {
	if len(a) == 0 {
		return
	}
	_, err := tensor.Clamp(New(a, len(a)), lo, hi, tensor.UseUnsafe())
	must(err)
}

// AllClose reports whether a and b have the same shape and agree elementwise within
// atol + rtol·|b|.
func AllClose(a, b *tensor.Dense, rtol, atol float32) bool {
	// tensor treats (n) and (1, n) as equal shapes
	if a.Dims() != b.Dims() || !a.Shape().Eq(b.Shape()) {
		return false
	}
	x, y := F32s(a), F32s(b)
	for i := range x {
		if math32.Abs(x[i]-y[i]) > atol+rtol*math32.Abs(y[i]) {
			return false
		}
	}
	return true
}

// AllFinite reports whether a holds neither NaNs nor infinities.
func AllFinite(a []float32) bool {
	for _, x := range a {
		if math32.IsNaN(x) || math32.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// must panics on errors the tensor package can only return for arrays of the wrong rank or
// type, which the routines above rule out.
func must(err error) {
	if err != nil {
		panic(errors.WithStack(err))
	}
}
