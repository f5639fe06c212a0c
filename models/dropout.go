package models

import (
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/random"
)

// UsesDropout reports whether any layer drops units during training.
func (m *Model) UsesDropout() bool {
	for _, p := range m.dropout {
		if p > 0 {
			return true
		}
	}
	return false
}

// DropoutMask draws a mask with rows chains: every unit is kept (1) with probability one
// minus the dropout probability of its layer, and dropped (0) otherwise. It returns nil when
// no layer uses dropout.
func (m *Model) DropoutMask(rows int) *State {
	if !m.UsesDropout() {
		return nil
	}
	s := NewState(m, rows)
	for i, p := range m.dropout {
		if p == 0 {
			matrix.Fill(s.Units[i], 1)
			continue
		}
		data := matrix.F32s(s.Units[i])
		for j := range data {
			if m.src.Bernoulli(1 - p) {
				data[j] = 1
			}
		}
	}
	return s
}

// WithDropout makes every update ignore the units that mask drops until restore is called.
// A nil mask disables dropout.
func (m *Model) WithDropout(mask *State) (restore func()) {
	prev := m.mask
	m.mask = mask
	return func() { m.mask = prev }
}

// Detach makes the model and its layers draw from substreams of src until restore is
// called, which hands them back their previous sources. Work done in between leaves the
// random streams of training untouched.
func (m *Model) Detach(src *random.Source) (restore func()) {
	prev := m.src
	prevLayers := make([]*random.Source, len(m.Layers))
	for i, l := range m.Layers {
		prevLayers[i] = l.Source()
	}
	m.SetSource(src)
	return func() {
		m.src = prev
		for i, l := range m.Layers {
			l.SetSource(prevLayers[i])
		}
	}
}

// masked returns the units of layer i with the active mask applied.
func (m *Model) masked(i int, s *State) (*tensor.Dense, error) {
	return applyMask(m.mask, i, s.Units[i])
}

func applyMask(mask *State, i int, units *tensor.Dense) (*tensor.Dense, error) {
	if mask == nil {
		return units, nil
	}
	if !mask.Units[i].Shape().Eq(units.Shape()) {
		return nil, shapeErr("dropout mask", units.Shape(), mask.Units[i].Shape())
	}
	retVal := matrix.Clone(units)
	vecf32.Mul(matrix.F32s(retVal), matrix.F32s(mask.Units[i]))
	return retVal, nil
}

// keepScaled returns s with every layer scaled by the probability of keeping its units,
// which is how a model trained with dropout is evaluated.
func (m *Model) keepScaled(s *State) *State {
	if !m.UsesDropout() {
		return s
	}
	retVal := s.Clone()
	for i, p := range m.dropout {
		if p > 0 {
			vecf32.Scale(matrix.F32s(retVal.Units[i]), 1-p)
		}
	}
	return retVal
}
