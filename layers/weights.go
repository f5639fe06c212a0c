package layers

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

// Weights is the dense matrix coupling two adjacent layers. W has one row per unit of the
// lower layer and one column per unit of the upper layer.
type Weights struct {
	W *tensor.Dense
}

// NewWeights returns a zero (lower × upper) weight matrix.
func NewWeights(lower, upper int) *Weights {
	return &Weights{W: matrix.Zeros(lower, upper)}
}

// Shape returns the (lower, upper) shape of the matrix.
func (w *Weights) Shape() (lower, upper int) { return matrix.Dims(w.W) }

// T returns a materialized transpose of the matrix.
func (w *Weights) T() *tensor.Dense { return matrix.Transpose(w.W) }

// SetW copies m into the matrix. The shape must not change.
func (w *Weights) SetW(m *tensor.Dense) error {
	if !m.Shape().Eq(w.W.Shape()) {
		return shapeErr("set weights", w.W.Shape(), m.Shape())
	}
	copy(matrix.F32s(w.W), matrix.F32s(m))
	return nil
}

// Forward maps a batch of lower layer units to the upper layer: v @ W.
func (w *Weights) Forward(v *tensor.Dense) (*tensor.Dense, error) {
	lower, _ := w.Shape()
	if s := v.Shape(); len(s) != 2 || s[1] != lower {
		return nil, shapeErr("weights forward", tensor.Shape{-1, lower}, s)
	}
	return matrix.Dot(v, w.W)
}

// Backward maps a batch of upper layer units to the lower layer: h @ Wᵀ.
func (w *Weights) Backward(h *tensor.Dense) (*tensor.Dense, error) {
	_, upper := w.Shape()
	if s := h.Shape(); len(s) != 2 || s[1] != upper {
		return nil, shapeErr("weights backward", tensor.Shape{-1, upper}, s)
	}
	return matrix.DotT(h, w.W)
}

// Gradient returns visᵀ hid / batch, the mean correlation of the (rescaled) units on either
// side. Taken on the data minus taken on the model it is the ascent direction for W.
func (w *Weights) Gradient(vis, hid *tensor.Dense) (*tensor.Dense, error) {
	if err := w.checkPair("weights gradient", vis, hid); err != nil {
		return nil, err
	}
	retVal, err := matrix.BatchOuter(vis, hid)
	if err != nil {
		return nil, err
	}
	rows, _ := matrix.Dims(vis)
	vecf32.Scale(matrix.F32s(retVal), 1/float32(rows))
	return retVal, nil
}

// Derivatives returns the batch mean derivative of the coupling energy: -visᵀ hid / batch.
func (w *Weights) Derivatives(vis, hid *tensor.Dense) (*tensor.Dense, error) {
	retVal, err := w.Gradient(vis, hid)
	if err != nil {
		return nil, err
	}
	vecf32.Scale(matrix.F32s(retVal), -1)
	return retVal, nil
}

// Energy returns the coupling energy -visᵢᵀ W hidᵢ of each row.
func (w *Weights) Energy(vis, hid *tensor.Dense) ([]float32, error) {
	if err := w.checkPair("weights energy", vis, hid); err != nil {
		return nil, err
	}
	retVal, err := matrix.BatchDot(vis, w.W, hid)
	if err != nil {
		return nil, err
	}
	vecf32.Scale(retVal, -1)
	return retVal, nil
}

func (w *Weights) checkPair(op string, vis, hid *tensor.Dense) error {
	lower, upper := w.Shape()
	vs, hs := vis.Shape(), hid.Shape()
	if len(vs) != 2 || vs[1] != lower {
		return shapeErr(op+": lower units", tensor.Shape{-1, lower}, vs)
	}
	if len(hs) != 2 || hs[1] != upper || hs[0] != vs[0] {
		return shapeErr(op+": upper units", tensor.Shape{vs[0], upper}, hs)
	}
	if vs[0] == 0 {
		return errors.Errorf("%s: empty batch", op)
	}
	return nil
}
