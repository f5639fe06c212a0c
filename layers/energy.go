package layers

import (
	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

const log2π = 1.8378770664093453

// variance returns exp(LogVar) for Gaussian layers and ones for every other family.
func (l *Layer) variance() []float32 {
	retVal := make([]float32, l.n)
	if l.Family != Gaussian {
		for i := range retVal {
			retVal[i] = 1
		}
		return retVal
	}
	for i, lv := range matrix.F32s(l.LogVar) {
		retVal[i] = math32.Exp(lv)
	}
	return retVal
}

// Energy returns the intrinsic energy of each row of units.
//
//	Bernoulli, Ising: -loc·v
//	Exponential:       loc·v
//	Gaussian:          Σ (v - loc)² / 2σ²
func (l *Layer) Energy(units *tensor.Dense) ([]float32, error) {
	if err := l.checkUnits("energy", units); err != nil {
		return nil, err
	}
	rows, _ := matrix.Dims(units)
	loc := matrix.F32s(l.Loc)
	retVal := make([]float32, rows)
	switch l.Family {
	case Bernoulli, Ising, Exponential:
		sign := float32(-1)
		if l.Family == Exponential {
			sign = 1
		}
		for i := range retVal {
			var e float32
			for j, v := range matrix.Row(units, i) {
				e += v * loc[j]
			}
			retVal[i] = sign * e
		}
	case Gaussian:
		variance := l.variance()
		for i := range retVal {
			var e float32
			for j, v := range matrix.Row(units, i) {
				d := v - loc[j]
				e += d * d / (2 * variance[j])
			}
			retVal[i] = e
		}
	}
	return retVal, nil
}

// LogPartition returns, for each row of the incoming field x (as computed by Incoming), the
// log partition function of the conditional distribution of the layer. Summing the units out
// of the joint energy leaves exactly this term in the free energy of the other layers.
func (l *Layer) LogPartition(x *tensor.Dense) ([]float32, error) {
	if err := l.checkUnits("log partition", x); err != nil {
		return nil, err
	}
	rows, _ := matrix.Dims(x)
	loc := matrix.F32s(l.Loc)
	retVal := make([]float32, rows)
	scratch := matrix.Borrow(l.n)
	defer matrix.Return(scratch)
	for i := range retVal {
		row := matrix.Row(x, i)
		switch l.Family {
		case Bernoulli:
			for j, v := range row {
				scratch[j] = softplus(loc[j] + v)
			}
		case Ising:
			for j, v := range row {
				scratch[j] = logcosh2(loc[j] + v)
			}
		case Exponential:
			for j, v := range row {
				rate := loc[j] - v
				if !(rate > 0) {
					return nil, domainErr(l.Family, "rate", i*l.n+j, rate)
				}
				scratch[j] = -math32.Log(rate)
			}
		case Gaussian:
			variance := l.variance()
			for j, v := range row {
				m := loc[j] + v
				scratch[j] = 0.5*(log2π+math32.Log(variance[j])) + (m*m-loc[j]*loc[j])/(2*variance[j])
			}
		}
		retVal[i] = vecf32.Sum(scratch)
	}
	return retVal, nil
}

// Derivatives returns the batch mean of the derivative of the energy with respect to each
// intrinsic parameter. field is the incoming linear field (see Incoming); only Gaussian
// layers use it and nil stands for a zero field.
func (l *Layer) Derivatives(units, field *tensor.Dense) (Params, error) {
	if err := l.checkUnits("derivatives", units); err != nil {
		return Params{}, err
	}
	mean := matrix.MeanAxis0(units)
	switch l.Family {
	case Bernoulli, Ising:
		vecf32.Scale(mean, -1)
		return Params{Loc: matrix.New(mean, l.n)}, nil
	case Exponential:
		return Params{Loc: matrix.New(mean, l.n)}, nil
	}

	// Gaussian:
	//	∂E/∂loc    = -(v - loc)/σ²
	//	∂E/∂logvar = -(v - loc)²/2σ² + v·x/σ²
	if field != nil && !field.Shape().Eq(units.Shape()) {
		return Params{}, shapeErr("derivatives: field", units.Shape(), field.Shape())
	}
	rows, _ := matrix.Dims(units)
	loc := matrix.F32s(l.Loc)
	variance := l.variance()
	dloc := make([]float32, l.n)
	dlogvar := make([]float32, l.n)
	for i := 0; i < rows; i++ {
		v := matrix.Row(units, i)
		var x []float32
		if field != nil {
			x = matrix.Row(field, i)
		}
		for j := range v {
			d := v[j] - loc[j]
			dloc[j] -= d / variance[j]
			dlogvar[j] -= d * d / (2 * variance[j])
			if x != nil {
				dlogvar[j] += v[j] * x[j] / variance[j]
			}
		}
	}
	vecf32.Scale(dloc, 1/float32(rows))
	vecf32.Scale(dlogvar, 1/float32(rows))
	return Params{Loc: matrix.New(dloc, l.n), LogVar: matrix.New(dlogvar, l.n)}, nil
}

// Gradient returns, for each intrinsic parameter, the batch mean of its sufficient statistic
// on the data minus that on the model samples: the contrastive divergence ascent direction.
// The fields are the incoming linear fields of each phase, as for Derivatives.
func (l *Layer) Gradient(data, dataField, model, modelField *tensor.Dense) (Params, error) {
	pos, err := l.Derivatives(data, dataField)
	if err != nil {
		return Params{}, err
	}
	neg, err := l.Derivatives(model, modelField)
	if err != nil {
		return Params{}, err
	}
	// sufficient statistics are minus the energy derivatives
	vecf32.Sub(matrix.F32s(neg.Loc), matrix.F32s(pos.Loc))
	if l.Family == Gaussian {
		vecf32.Sub(matrix.F32s(neg.LogVar), matrix.F32s(pos.LogVar))
	}
	return neg, nil
}

// Link sets the intrinsic parameters so that the unconditional distribution of the layer has
// the given per unit mean (and, for Gaussian layers, variance).
func (l *Layer) Link(mean, variance []float32) error {
	if len(mean) != l.n {
		return shapeErr("link: mean", tensor.Shape{l.n}, tensor.Shape{len(mean)})
	}
	loc := matrix.F32s(l.Loc)
	switch l.Family {
	case Bernoulli:
		for i, m := range mean {
			loc[i] = logit(m)
		}
	case Ising:
		for i, m := range mean {
			loc[i] = atanh(m)
		}
	case Exponential:
		for i, m := range mean {
			if m < matrix.Epsilon {
				m = matrix.Epsilon
			}
			loc[i] = 1 / m
		}
	case Gaussian:
		if len(variance) != l.n {
			return shapeErr("link: variance", tensor.Shape{l.n}, tensor.Shape{len(variance)})
		}
		copy(loc, mean)
		logvar := matrix.F32s(l.LogVar)
		for i, v := range variance {
			if v < matrix.Epsilon {
				v = matrix.Epsilon
			}
			logvar[i] = math32.Log(v)
		}
	}
	return nil
}

// EnforceConstraints projects the intrinsic parameters back into their domain. Exponential
// layers need strictly positive locations.
func (l *Layer) EnforceConstraints() {
	if l.Family == Exponential {
		matrix.Clip(matrix.F32s(l.Loc), matrix.Epsilon, math32.Inf(1))
	}
}
