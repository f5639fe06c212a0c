// Package layers implements exponential family layers of units and the weight matrices that
// couple them.
//
// A Layer is a closed tagged variant: the Family tag selects the formulas used by Update,
// Sample, Mean, Energy and the derivatives, and the parameters live in fixed fields rather
// than name keyed maps.
package layers

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/random"
)

// Params are the intrinsic parameters of a layer, each a vector with one entry per unit.
type Params struct {
	Loc    *tensor.Dense // every family
	LogVar *tensor.Dense // Gaussian only, nil otherwise
}

// Extrinsic holds the conditional natural parameters computed by the last Update.
// Each is a (batch, units) array.
type Extrinsic struct {
	Field    *tensor.Dense // Bernoulli and Ising
	Rate     *tensor.Dense // Exponential
	Mean     *tensor.Dense // Gaussian
	Variance *tensor.Dense // Gaussian
}

// Layer is a vector of units drawn from one exponential family.
type Layer struct {
	Family Family
	Params
	Ext Extrinsic

	n   int
	src *random.Source
}

// New creates a layer of n units. Locations start at zero, except for exponential layers
// which start with unit rates so that they are valid from the first draw.
func New(f Family, n int, src *random.Source) *Layer {
	if f < Bernoulli || f >= MAXFAMILY {
		panic("layers: invalid family")
	}
	l := &Layer{
		Family: f,
		n:      n,
		src:    src,
	}
	l.Loc = matrix.Zeros(n)
	switch f {
	case Gaussian:
		l.LogVar = matrix.Zeros(n)
	case Exponential:
		matrix.Fill(l.Loc, 1)
	}
	return l
}

// Len returns the number of units in the layer.
func (l *Layer) Len() int { return l.n }

// SetSource replaces the random source used for sampling.
func (l *Layer) SetSource(src *random.Source) { l.src = src }

// Source returns the random source used for sampling.
func (l *Layer) Source() *random.Source { return l.src }

// ParamTensors lists the intrinsic parameters in a fixed order, with their names.
func (l *Layer) ParamTensors() (names []string, params []*tensor.Dense) {
	if l.Family == Gaussian {
		return []string{"loc", "log_var"}, []*tensor.Dense{l.Loc, l.LogVar}
	}
	return []string{"loc"}, []*tensor.Dense{l.Loc}
}

// SetParams copies p into the layer's intrinsic parameters. The shapes must not change.
func (l *Layer) SetParams(p Params) error {
	if err := l.checkVec("set params: loc", p.Loc); err != nil {
		return err
	}
	copy(matrix.F32s(l.Loc), matrix.F32s(p.Loc))
	if l.Family == Gaussian {
		if err := l.checkVec("set params: log_var", p.LogVar); err != nil {
			return err
		}
		copy(matrix.F32s(l.LogVar), matrix.F32s(p.LogVar))
	}
	return nil
}

// Incoming computes the linear field Σ_k inputs[k] @ weights[k] that the neighbouring layers
// exert on this one. It does not include the layer's own location.
func (l *Layer) Incoming(inputs, weights []*tensor.Dense) (*tensor.Dense, error) {
	if len(inputs) == 0 || len(inputs) != len(weights) {
		return nil, errors.Errorf("%v layer: %d inputs for %d weights", l.Family, len(inputs), len(weights))
	}
	var retVal *tensor.Dense
	for k := range inputs {
		rows, cols := matrix.Dims(inputs[k])
		if !weights[k].Shape().Eq(tensor.Shape{cols, l.n}) {
			return nil, shapeErr("incoming field: weights", tensor.Shape{cols, l.n}, weights[k].Shape())
		}
		if retVal != nil && retVal.Shape()[0] != rows {
			return nil, shapeErr("incoming field: input", tensor.Shape{retVal.Shape()[0], cols}, inputs[k].Shape())
		}
		x, err := matrix.Dot(inputs[k], weights[k])
		if err != nil {
			return nil, err
		}
		if retVal == nil {
			retVal = x
			continue
		}
		matrix.AddInto(retVal, x)
	}
	return retVal, nil
}

// Update computes the conditional (extrinsic) parameters from the states of the neighbouring
// layers and the weights that connect them: the field is Σ_k inputs[k] @ weights[k] plus the
// layer's location. beta, if not nil, holds one inverse temperature per row and multiplies the
// natural parameters.
//
// The extrinsic buffers are overwritten in place; the intrinsic parameters are not touched.
func (l *Layer) Update(inputs, weights []*tensor.Dense, beta []float32) error {
	x, err := l.Incoming(inputs, weights)
	if err != nil {
		return err
	}
	return l.UpdateField(x, beta)
}

// UpdateField is Update for an incoming field that has already been computed.
func (l *Layer) UpdateField(x *tensor.Dense, beta []float32) error {
	rows, cols := matrix.Dims(x)
	if cols != l.n {
		return shapeErr("update", tensor.Shape{rows, l.n}, x.Shape())
	}
	if beta != nil && len(beta) != rows {
		return shapeErr("update: beta", tensor.Shape{rows}, tensor.Shape{len(beta)})
	}
	loc := matrix.F32s(l.Loc)
	switch l.Family {
	case Bernoulli, Ising:
		field := l.buffer(&l.Ext.Field, rows)
		copy(matrix.F32s(field), matrix.F32s(x))
		matrix.AddRow(field, loc)
		scaleRows(field, beta)
	case Exponential:
		rate := l.buffer(&l.Ext.Rate, rows)
		r := matrix.F32s(rate)
		for i, v := range matrix.F32s(x) {
			r[i] = loc[i%l.n] - v
		}
		scaleRows(rate, beta)
		for i, v := range r {
			if !(v > 0) {
				return domainErr(l.Family, "rate", i, v)
			}
		}
	case Gaussian:
		mean := l.buffer(&l.Ext.Mean, rows)
		copy(matrix.F32s(mean), matrix.F32s(x))
		matrix.AddRow(mean, loc)
		variance := l.buffer(&l.Ext.Variance, rows)
		copy(matrix.F32s(variance), l.variance())
		for i := 1; i < rows; i++ {
			copy(matrix.Row(variance, i), matrix.Row(variance, 0))
		}
		if beta != nil {
			for i := 0; i < rows; i++ {
				row := matrix.Row(variance, i)
				for j := range row {
					row[j] /= beta[i]
				}
			}
		}
	}
	return nil
}

// Rows returns the batch size of the current extrinsic parameters, or 0 if Update has not
// been called.
func (l *Layer) Rows() int {
	var ext *tensor.Dense
	switch l.Family {
	case Bernoulli, Ising:
		ext = l.Ext.Field
	case Exponential:
		ext = l.Ext.Rate
	case Gaussian:
		ext = l.Ext.Mean
	}
	if ext == nil {
		return 0
	}
	return ext.Shape()[0]
}

// Rescale returns the units as seen by the neighbouring layers: v/σ² for Gaussian layers, the
// units themselves otherwise.
func (l *Layer) Rescale(units *tensor.Dense) *tensor.Dense {
	if l.Family != Gaussian {
		return units
	}
	retVal := matrix.Clone(units)
	v := l.variance()
	rows, _ := matrix.Dims(retVal)
	for i := 0; i < rows; i++ {
		row := matrix.Row(retVal, i)
		for j := range row {
			row[j] /= v[j]
		}
	}
	return retVal
}

// buffer returns *buf, (re)allocating it when the batch size changed.
func (l *Layer) buffer(buf **tensor.Dense, rows int) *tensor.Dense {
	if *buf == nil || !(*buf).Shape().Eq(tensor.Shape{rows, l.n}) {
		*buf = matrix.Zeros(rows, l.n)
	}
	return *buf
}

func (l *Layer) checkVec(op string, v *tensor.Dense) error {
	if v == nil {
		return errors.Errorf("%s: missing parameter", op)
	}
	if !v.Shape().Eq(tensor.Shape{l.n}) {
		return shapeErr(op, tensor.Shape{l.n}, v.Shape())
	}
	return nil
}

func (l *Layer) checkUnits(op string, units *tensor.Dense) error {
	s := units.Shape()
	if len(s) != 2 || s[1] != l.n {
		return shapeErr(op, tensor.Shape{-1, l.n}, s)
	}
	return nil
}

func scaleRows(m *tensor.Dense, beta []float32) {
	if beta == nil {
		return
	}
	for i, b := range beta {
		row := matrix.Row(m, i)
		for j := range row {
			row[j] *= b
		}
	}
}
