package models

import (
	"fmt"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/layers"
)

// Param is one trainable tensor of a model together with its gradient buffer. It implements
// G.ValueGrad so that any gorgonia Solver can step it.
type Param struct {
	Name string

	family layers.Family
	value  *tensor.Dense
	grad   *tensor.Dense
	layer  int // owning layer, or -1 for weights
	weight int // owning weight matrix, or -1 for layer parameters
	frozen bool
}

// Value returns the parameter tensor itself; solvers update it in place.
func (p *Param) Value() G.Value { return p.value }

// Grad returns the last gradient computed by Model.Gradient.
func (p *Param) Grad() (G.Value, error) { return p.grad, nil }

// Tensor is Value without the interface.
func (p *Param) Tensor() *tensor.Dense { return p.value }

// GradTensor is Grad without the interface.
func (p *Param) GradTensor() *tensor.Dense { return p.grad }

// Frozen reports whether the solvers leave the parameter alone.
func (p *Param) Frozen() bool { return p.frozen }

func (p *Param) String() string { return fmt.Sprintf("%s%v", p.Name, p.value.Shape()) }

// bindParams lists the parameters in a fixed order: every layer's intrinsic parameters, then
// every weight matrix.
func (m *Model) bindParams() {
	m.params = m.params[:0]
	for i, l := range m.Layers {
		names, ts := l.ParamTensors()
		for j, t := range ts {
			m.params = append(m.params, &Param{
				Name:   fmt.Sprintf("layer%d/%s", i, names[j]),
				family: l.Family,
				value:  t,
				grad:   matrix.Zeros(t.Shape()...),
				layer:  i,
				weight: -1,
			})
		}
	}
	for i, w := range m.Weights {
		m.params = append(m.params, &Param{
			Name:   fmt.Sprintf("weights%d/W", i),
			family: m.Layers[i].Family,
			value:  w.W,
			grad:   matrix.Zeros(w.W.Shape()...),
			layer:  -1,
			weight: i,
		})
	}
}

// Parameters returns the trainable parameters of the model, in a fixed order. Frozen
// parameters are left out.
func (m *Model) Parameters() []G.ValueGrad {
	retVal := make([]G.ValueGrad, 0, len(m.params))
	for _, p := range m.params {
		if !p.frozen {
			retVal = append(retVal, p)
		}
	}
	return retVal
}

// Freeze stops training the intrinsic parameters of the given layers and the given weight
// matrices. Freezing is cumulative.
func (m *Model) Freeze(layerIdx, weightIdx []int) error {
	for _, i := range layerIdx {
		if i < 0 || i >= len(m.Layers) {
			return errors.Errorf("cannot freeze layer %d of a %d layer model", i, len(m.Layers))
		}
	}
	for _, i := range weightIdx {
		if i < 0 || i >= len(m.Weights) {
			return errors.Errorf("cannot freeze weights %d of a model with %d weight matrices", i, len(m.Weights))
		}
	}
	for _, p := range m.params {
		for _, i := range layerIdx {
			if p.layer == i {
				p.frozen = true
			}
		}
		for _, i := range weightIdx {
			if p.weight == i {
				p.frozen = true
			}
		}
	}
	return nil
}

// Params returns every parameter, frozen or not, as concrete values.
func (m *Model) Params() []*Param { return m.params }
