package models

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

// Op is how a layer's units are refreshed once its conditional distribution is known.
type Op int

const (
	Sample Op = iota // draw from the conditional distribution
	Mean             // take the conditional expectation
	Mode             // take the most probable value
)

func (op Op) String() string {
	switch op {
	case Sample:
		return "sample"
	case Mean:
		return "mean"
	case Mode:
		return "mode"
	}
	return "unknown"
}

// Update recomputes the conditional distribution of layer i given its neighbours in s and
// refreshes s.Units[i] in place with op.
func (m *Model) Update(i int, s *State, op Op, beta []float32) error {
	inputs, weights, err := m.connected(i, s)
	if err != nil {
		return err
	}
	l := m.Layers[i]
	if err := l.Update(inputs, weights, beta); err != nil {
		return errors.WithMessagef(err, "layer %d", i)
	}
	dst := s.Units[i]
	switch op {
	case Sample:
		return l.Sample(dst)
	case Mean:
		return l.Mean(dst)
	case Mode:
		return l.Mode(dst)
	}
	return errors.Errorf("unknown op %d", int(op))
}

// Iterate performs n block Gibbs sweeps on s, in place. A sweep updates layers 1…L-1 bottom
// to top, then L-2…0 top to bottom; every layer is conditioned on the current states of
// both of its neighbours. op refreshes every layer except the visible one in the final
// sweep, which uses last. beta, if not nil, holds one inverse temperature per chain.
func (m *Model) Iterate(n int, s *State, op, last Op, beta []float32) error {
	if err := m.Check(s); err != nil {
		return err
	}
	if beta != nil && len(beta) != s.Batch() {
		return shapeErr("inverse temperatures", tensor.Shape{s.Batch()}, tensor.Shape{len(beta)})
	}
	defer m.transposed()()
	top := len(m.Layers) - 1
	for step := 0; step < n; step++ {
		for i := 1; i <= top; i++ {
			if err := m.Update(i, s, op, beta); err != nil {
				return err
			}
		}
		for i := top - 1; i >= 0; i-- {
			o := op
			if i == 0 && step == n-1 {
				o = last
			}
			if err := m.Update(i, s, o, beta); err != nil {
				return err
			}
		}
	}
	return nil
}

// MarkovChain performs n sampling sweeps on s.
func (m *Model) MarkovChain(n int, s *State, beta []float32) error {
	return m.Iterate(n, s, Sample, Sample, beta)
}

// MeanFieldIteration performs n sweeps replacing every layer by its conditional mean.
func (m *Model) MeanFieldIteration(n int, s *State, beta []float32) error {
	return m.Iterate(n, s, Mean, Mean, beta)
}

// DeterministicIteration performs n sweeps replacing every layer by its conditional mode.
func (m *Model) DeterministicIteration(n int, s *State, beta []float32) error {
	return m.Iterate(n, s, Mode, Mode, beta)
}

// Clamped returns the positive phase state for a batch of visible units: the visible layer
// holds a copy of v while the hidden layers are set by n mean field sweeps that leave the
// visible layer untouched. n < 1 is treated as a single sweep.
func (m *Model) Clamped(v *tensor.Dense, n int) (*State, error) {
	if err := m.checkVisible(v); err != nil {
		return nil, err
	}
	rows, _ := matrix.Dims(v)
	s := NewState(m, rows)
	copy(matrix.F32s(s.Units[0]), matrix.F32s(v))
	if n < 1 {
		n = 1
	}
	defer m.transposed()()
	top := len(m.Layers) - 1
	for step := 0; step < n; step++ {
		for i := 1; i <= top; i++ {
			if err := m.Update(i, s, Mean, nil); err != nil {
				return nil, err
			}
		}
		for i := top - 1; i >= 1; i-- {
			if err := m.Update(i, s, Mean, nil); err != nil {
				return nil, err
			}
		}
	}
	return s, nil
}

// Reconstruct returns the mean visible units after one up-down mean field pass from v.
func (m *Model) Reconstruct(v *tensor.Dense) (*tensor.Dense, error) {
	s, err := m.Clamped(v, 1)
	if err != nil {
		return nil, err
	}
	if err = m.Update(0, s, Mean, nil); err != nil {
		return nil, err
	}
	return s.Units[0], nil
}
