package layers

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

// Sample draws one value per unit and row from the conditional distribution given by the
// extrinsic parameters, writing into dst. dst must have the shape of the last Update.
func (l *Layer) Sample(dst *tensor.Dense) error {
	if err := l.checkDst("sample", dst); err != nil {
		return err
	}
	out := matrix.F32s(dst)
	switch l.Family {
	case Bernoulli:
		for i, f := range matrix.F32s(l.Ext.Field) {
			out[i] = bit(l.src.Bernoulli(sigmoid(f)))
		}
	case Ising:
		for i, f := range matrix.F32s(l.Ext.Field) {
			out[i] = 2*bit(l.src.Bernoulli(sigmoid(2*f))) - 1
		}
	case Exponential:
		for i, r := range matrix.F32s(l.Ext.Rate) {
			if !(r > 0) {
				return domainErr(l.Family, "rate", i, r)
			}
			out[i] = l.src.Exponential(r)
		}
	case Gaussian:
		variance := matrix.F32s(l.Ext.Variance)
		for i, m := range matrix.F32s(l.Ext.Mean) {
			out[i] = l.src.Normal(m, math32.Sqrt(variance[i]))
		}
	}
	return nil
}

// Mean writes the conditional expectation of the units into dst.
func (l *Layer) Mean(dst *tensor.Dense) error {
	if err := l.checkDst("mean", dst); err != nil {
		return err
	}
	out := matrix.F32s(dst)
	switch l.Family {
	case Bernoulli:
		for i, f := range matrix.F32s(l.Ext.Field) {
			out[i] = sigmoid(f)
		}
	case Ising:
		for i, f := range matrix.F32s(l.Ext.Field) {
			out[i] = tanh(f)
		}
	case Exponential:
		for i, r := range matrix.F32s(l.Ext.Rate) {
			if !(r > 0) {
				return domainErr(l.Family, "rate", i, r)
			}
			out[i] = 1 / r
		}
	case Gaussian:
		copy(out, matrix.F32s(l.Ext.Mean))
	}
	return nil
}

// Mode writes the most probable value of the units into dst.
func (l *Layer) Mode(dst *tensor.Dense) error {
	if err := l.checkDst("mode", dst); err != nil {
		return err
	}
	out := matrix.F32s(dst)
	switch l.Family {
	case Bernoulli:
		for i, f := range matrix.F32s(l.Ext.Field) {
			out[i] = bit(f > 0)
		}
	case Ising:
		for i, f := range matrix.F32s(l.Ext.Field) {
			out[i] = 2*bit(f >= 0) - 1
		}
	case Exponential:
		for i := range out {
			out[i] = 0
		}
	case Gaussian:
		copy(out, matrix.F32s(l.Ext.Mean))
	}
	return nil
}

// Random draws rows independent samples from the layer's unconditional distribution, the one
// given by its intrinsic parameters alone.
func (l *Layer) Random(rows int) (*tensor.Dense, error) {
	retVal := matrix.Zeros(rows, l.n)
	out := matrix.F32s(retVal)
	loc := matrix.F32s(l.Loc)
	switch l.Family {
	case Bernoulli:
		for i := range out {
			out[i] = bit(l.src.Bernoulli(sigmoid(loc[i%l.n])))
		}
	case Ising:
		for i := range out {
			out[i] = 2*bit(l.src.Bernoulli(sigmoid(2*loc[i%l.n]))) - 1
		}
	case Exponential:
		for i := range out {
			r := loc[i%l.n]
			if !(r > 0) {
				return nil, domainErr(l.Family, "loc", i%l.n, r)
			}
			out[i] = l.src.Exponential(r)
		}
	case Gaussian:
		v := l.variance()
		for i := range out {
			out[i] = l.src.Normal(loc[i%l.n], math32.Sqrt(v[i%l.n]))
		}
	}
	return retVal, nil
}

func (l *Layer) checkDst(op string, dst *tensor.Dense) error {
	rows := l.Rows()
	if rows == 0 {
		return errors.Errorf("%v layer: %s called before update", l.Family, op)
	}
	if !dst.Shape().Eq(tensor.Shape{rows, l.n}) {
		return shapeErr(op, tensor.Shape{rows, l.n}, dst.Shape())
	}
	return nil
}

func bit(b bool) float32 {
	if b {
		return 1
	}
	return 0
}
