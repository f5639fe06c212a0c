package models

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

// State holds one (batch, units) array per layer of a model. Every array shares the same
// leading batch dimension: the number of parallel chains.
type State struct {
	Units []*tensor.Dense
}

// NewState returns an all zero state with rows chains.
func NewState(m *Model, rows int) *State {
	s := &State{Units: make([]*tensor.Dense, len(m.Layers))}
	for i, l := range m.Layers {
		s.Units[i] = matrix.Zeros(rows, l.Len())
	}
	return s
}

// RandomState draws every layer from its unconditional distribution.
func RandomState(m *Model, rows int) (*State, error) {
	s := &State{Units: make([]*tensor.Dense, len(m.Layers))}
	for i, l := range m.Layers {
		u, err := l.Random(rows)
		if err != nil {
			return nil, err
		}
		s.Units[i] = u
	}
	return s, nil
}

// StateFromVisible returns a state whose visible layer is a copy of v and whose other layers
// are drawn from their unconditional distributions.
func StateFromVisible(m *Model, v *tensor.Dense) (*State, error) {
	if err := m.checkVisible(v); err != nil {
		return nil, err
	}
	rows, _ := matrix.Dims(v)
	s, err := RandomState(m, rows)
	if err != nil {
		return nil, err
	}
	copy(matrix.F32s(s.Units[0]), matrix.F32s(v))
	return s, nil
}

// Batch returns the number of chains in the state.
func (s *State) Batch() int { return s.Units[0].Shape()[0] }

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	retVal := &State{Units: make([]*tensor.Dense, len(s.Units))}
	for i, u := range s.Units {
		retVal.Units[i] = matrix.Clone(u)
	}
	return retVal
}

// CopyFrom overwrites s with the values of other, in place. The shapes must agree.
func (s *State) CopyFrom(other *State) error {
	if len(other.Units) != len(s.Units) {
		return errors.Errorf("cannot copy a %d layer state into a %d layer state", len(other.Units), len(s.Units))
	}
	for i := range s.Units {
		if !s.Units[i].Shape().Eq(other.Units[i].Shape()) {
			return shapeErr("copy state", s.Units[i].Shape(), other.Units[i].Shape())
		}
		copy(matrix.F32s(s.Units[i]), matrix.F32s(other.Units[i]))
	}
	return nil
}

// Check verifies that s fits the model.
func (m *Model) Check(s *State) error {
	if len(s.Units) != len(m.Layers) {
		return errors.Errorf("state has %d layers, the model %d", len(s.Units), len(m.Layers))
	}
	rows := s.Batch()
	for i, l := range m.Layers {
		want := tensor.Shape{rows, l.Len()}
		if !s.Units[i].Shape().Eq(want) {
			return shapeErr("state", want, s.Units[i].Shape())
		}
	}
	return nil
}

func (m *Model) checkVisible(v *tensor.Dense) error {
	n := m.Layers[0].Len()
	if s := v.Shape(); len(s) != 2 || s[1] != n {
		return shapeErr("visible units", tensor.Shape{-1, n}, s)
	}
	return nil
}
