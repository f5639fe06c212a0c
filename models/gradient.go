package models

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/layers"
)

// Gradient fills the gradient buffers of every parameter with the contrastive divergence
// estimate computed from a positive (data) and a negative (model) phase state:
//
//	∂E/∂θ |data - ∂E/∂θ |model
//
// averaged over each batch. This is the descent direction of the negative log likelihood,
// so a solver stepping θ -= η·g ascends the likelihood.
func (m *Model) Gradient(data, model *State) error {
	return m.DropoutGradient(data, model, nil, nil)
}

// DropoutGradient is Gradient where the layer derivatives of each phase only see the units
// its mask keeps. The weight derivatives use the full states. Either mask may be nil.
func (m *Model) DropoutGradient(data, model, posMask, negMask *State) error {
	if err := m.Check(data); err != nil {
		return errors.WithMessage(err, "positive phase")
	}
	if err := m.Check(model); err != nil {
		return errors.WithMessage(err, "negative phase")
	}
	k := 0
	for i, l := range m.Layers {
		pos, err := m.derivatives(i, data, posMask)
		if err != nil {
			return errors.WithMessage(err, "positive phase")
		}
		neg, err := m.derivatives(i, model, negMask)
		if err != nil {
			return errors.WithMessage(err, "negative phase")
		}
		k = m.setGrad(k, pos.Loc, neg.Loc)
		if l.Family == layers.Gaussian {
			k = m.setGrad(k, pos.LogVar, neg.LogVar)
		}
	}
	for i, w := range m.Weights {
		lower, upper := m.Layers[i], m.Layers[i+1]
		pos, err := w.Derivatives(lower.Rescale(data.Units[i]), upper.Rescale(data.Units[i+1]))
		if err != nil {
			return err
		}
		neg, err := w.Derivatives(lower.Rescale(model.Units[i]), upper.Rescale(model.Units[i+1]))
		if err != nil {
			return err
		}
		k = m.setGrad(k, pos, neg)
	}
	return nil
}

func (m *Model) derivatives(i int, s, mask *State) (layers.Params, error) {
	l := m.Layers[i]
	units, err := applyMask(mask, i, s.Units[i])
	if err != nil {
		return layers.Params{}, err
	}
	var field *tensor.Dense
	if l.Family == layers.Gaussian {
		if field, err = m.incoming(i, s); err != nil {
			return layers.Params{}, err
		}
	}
	return l.Derivatives(units, field)
}

// setGrad writes pos - neg into the gradient buffer of the kth parameter.
func (m *Model) setGrad(k int, pos, neg *tensor.Dense) int {
	g := matrix.F32s(m.params[k].grad)
	copy(g, matrix.F32s(pos))
	vecf32.Sub(g, matrix.F32s(neg))
	return k + 1
}

// GradNorm returns the euclidean norm of the current gradient of every parameter.
func (m *Model) GradNorm() float32 {
	var ss float32
	for _, p := range m.params {
		for _, g := range matrix.F32s(p.grad) {
			ss += g * g
		}
	}
	return math32.Sqrt(ss)
}
