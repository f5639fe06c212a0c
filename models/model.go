// Package models composes exponential family layers into a linear stack coupled by weight
// matrices: restricted Boltzmann machines and their deep generalisation.
package models

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/layers"
	"github.com/gorgonia/boltzmann/random"
)

// LayerConfig describes one layer of a model.
type LayerConfig struct {
	Family  layers.Family `json:"family"`
	Size    int           `json:"size"`
	Dropout float32       `json:"dropout,omitempty"` // probability of dropping a unit during training
}

// Model is an ordered stack of layers. Weights[i] couples Layers[i] and Layers[i+1]; the
// visible layer is Layers[0].
type Model struct {
	Layers  []*layers.Layer
	Weights []*layers.Weights

	params  []*Param
	src     *random.Source
	dropout []float32       // per layer
	mask    *State          // dropout mask applied to the neighbours in connected, if any
	wT      []*tensor.Dense // transposed weights, cached for the duration of a sweep
}

// New builds a model from a layer list, with zero weights between consecutive layers.
func New(src *random.Source, ls ...*layers.Layer) (*Model, error) {
	if len(ls) < 2 {
		return nil, errors.Errorf("a model needs at least two layers, got %d", len(ls))
	}
	m := &Model{
		Layers:  ls,
		src:     src,
		dropout: make([]float32, len(ls)),
	}
	for i := 0; i < len(ls)-1; i++ {
		m.Weights = append(m.Weights, layers.NewWeights(ls[i].Len(), ls[i+1].Len()))
	}
	m.bindParams()
	return m, nil
}

// Build creates the layers described by confs, each sampling from its own substream of src,
// and stacks them into a model.
func Build(src *random.Source, confs ...LayerConfig) (*Model, error) {
	ls := make([]*layers.Layer, 0, len(confs))
	for i, c := range confs {
		if c.Size < 1 {
			return nil, errors.Errorf("layer %d has %d units", i, c.Size)
		}
		if c.Family < layers.Bernoulli || c.Family >= layers.MAXFAMILY {
			return nil, errors.Errorf("layer %d has an invalid family %d", i, int(c.Family))
		}
		if !(c.Dropout >= 0 && c.Dropout < 1) {
			return nil, errors.Errorf("layer %d has a dropout probability of %v", i, c.Dropout)
		}
		ls = append(ls, layers.New(c.Family, c.Size, src.Split()))
	}
	m, err := New(src.Split(), ls...)
	if err != nil {
		return nil, err
	}
	for i, c := range confs {
		m.dropout[i] = c.Dropout
	}
	return m, nil
}

// RBM is a shorthand for a two layer model.
func RBM(src *random.Source, nvis, nhid int, vis, hid layers.Family) (*Model, error) {
	return Build(src, LayerConfig{Family: vis, Size: nvis}, LayerConfig{Family: hid, Size: nhid})
}

// Config returns the topology of the model.
func (m *Model) Config() []LayerConfig {
	retVal := make([]LayerConfig, len(m.Layers))
	for i, l := range m.Layers {
		retVal[i] = LayerConfig{Family: l.Family, Size: l.Len(), Dropout: m.dropout[i]}
	}
	return retVal
}

// NumParams returns the number of scalar parameters in the model.
func (m *Model) NumParams() int {
	var retVal int
	for _, p := range m.params {
		retVal += p.value.Shape().TotalSize()
	}
	return retVal
}

// EnforceConstraints projects every parameter back into its domain. Weights touching an
// exponential layer must be non positive so that the conditional rates stay positive.
func (m *Model) EnforceConstraints() {
	for _, l := range m.Layers {
		l.EnforceConstraints()
	}
	for i, w := range m.Weights {
		if m.Layers[i].Family == layers.Exponential || m.Layers[i+1].Family == layers.Exponential {
			matrix.Clip(matrix.F32s(w.W), -maxFloat32, 0)
		}
	}
}

// CheckFinite returns a DomainError naming the first parameter holding a NaN or an infinity.
func (m *Model) CheckFinite() error {
	for _, p := range m.params {
		data := matrix.F32s(p.value)
		if !matrix.AllFinite(data) {
			for i, x := range data {
				if !matrix.AllFinite(data[i : i+1]) {
					return errors.WithStack(&layers.DomainError{Family: p.family, Param: p.Name, Index: i, Value: x})
				}
			}
		}
	}
	return nil
}

// connected returns the rescaled states of the neighbours of layer i and the weights that
// map them onto layer i. Dropped out neighbours contribute nothing while a mask is set.
func (m *Model) connected(i int, s *State) (inputs, weights []*tensor.Dense, err error) {
	if i > 0 {
		u, err := m.masked(i-1, s)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, m.Layers[i-1].Rescale(u))
		weights = append(weights, m.Weights[i-1].W)
	}
	if i < len(m.Layers)-1 {
		u, err := m.masked(i+1, s)
		if err != nil {
			return nil, nil, err
		}
		inputs = append(inputs, m.Layers[i+1].Rescale(u))
		if m.wT != nil {
			weights = append(weights, m.wT[i])
		} else {
			weights = append(weights, m.Weights[i].T())
		}
	}
	return
}

// transposed caches the transpose of every weight matrix until release is called. The
// weights must not change in between. Nested calls share the outer cache.
func (m *Model) transposed() (release func()) {
	if m.wT != nil {
		return func() {}
	}
	m.wT = make([]*tensor.Dense, len(m.Weights))
	for i, w := range m.Weights {
		m.wT[i] = w.T()
	}
	return func() { m.wT = nil }
}

// incoming computes the field on layer i from its neighbours in s.
func (m *Model) incoming(i int, s *State) (*tensor.Dense, error) {
	inputs, weights, err := m.connected(i, s)
	if err != nil {
		return nil, err
	}
	return m.Layers[i].Incoming(inputs, weights)
}

func shapeErr(op string, want, got tensor.Shape) error {
	return errors.WithStack(&layers.ShapeError{Op: op, Want: want.Clone(), Got: got.Clone()})
}

const maxFloat32 = 3.40282346638528859811704183484516925440e+38
