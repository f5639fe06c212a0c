package models

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"
)

// Energy returns the joint energy of every row of s: the intrinsic energy of each layer plus
// the coupling energy of each weight matrix, evaluated on the rescaled units. Layers trained
// with dropout are scaled by the probability of keeping a unit.
func (m *Model) Energy(s *State) ([]float32, error) {
	if err := m.Check(s); err != nil {
		return nil, err
	}
	s = m.keepScaled(s)
	retVal := make([]float32, s.Batch())
	for i, l := range m.Layers {
		e, err := l.Energy(s.Units[i])
		if err != nil {
			return nil, err
		}
		vecf32.Add(retVal, e)
	}
	for i, w := range m.Weights {
		e, err := w.Energy(m.Layers[i].Rescale(s.Units[i]), m.Layers[i+1].Rescale(s.Units[i+1]))
		if err != nil {
			return nil, err
		}
		vecf32.Add(retVal, e)
	}
	return retVal, nil
}

// MarginalFreeEnergy returns, for every row of visible units, the free energy obtained by
// summing the hidden layer out of a two layer model:
//
//	F(v) = E_vis(v) - log Z_hid(rescale(v) @ W)
func (m *Model) MarginalFreeEnergy(v *tensor.Dense) ([]float32, error) {
	if len(m.Layers) != 2 {
		return nil, errors.Errorf("marginal free energy needs a two layer model, got %d layers", len(m.Layers))
	}
	if err := m.checkVisible(v); err != nil {
		return nil, err
	}
	vis, hid := m.Layers[0], m.Layers[1]
	retVal, err := vis.Energy(v)
	if err != nil {
		return nil, err
	}
	x, err := m.Weights[0].Forward(vis.Rescale(v))
	if err != nil {
		return nil, err
	}
	logZ, err := hid.LogPartition(x)
	if err != nil {
		return nil, err
	}
	vecf32.Sub(retVal, logZ)
	return retVal, nil
}
