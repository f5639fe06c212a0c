// Package optimizers turns the gradients computed by a model into parameter updates. Every
// optimizer implements gorgonia's Solver interface and descends the gradient it is given.
package optimizers

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/layers"
)

var (
	_ G.Solver = &SGD{}
	_ G.Solver = &Momentum{}
	_ G.Solver = &RMSProp{}
	_ G.Solver = &Adam{}
)

// extract returns the float32 backings of a parameter and of its gradient, checking that
// their shapes agree.
func extract(p G.ValueGrad) (value, grad []float32, err error) {
	v := p.Value()
	g, err := p.Grad()
	if err != nil {
		return nil, nil, errors.Wrapf(err, "no gradient for %v", v.Shape())
	}
	if !v.Shape().Eq(g.Shape()) {
		return nil, nil, errors.WithStack(&layers.ShapeError{Op: "solver step", Want: v.Shape().Clone(), Got: g.Shape().Clone()})
	}
	var ok bool
	if value, ok = v.Data().([]float32); !ok {
		return nil, nil, errors.Errorf("expected a %v parameter, got %v", tensor.Float32, v.Dtype())
	}
	if grad, ok = g.Data().([]float32); !ok {
		return nil, nil, errors.Errorf("expected a %v gradient, got %v", tensor.Float32, g.Dtype())
	}
	return value, grad, nil
}

// moments holds one lazily allocated, zero initialised accumulator per parameter.
type moments map[G.ValueGrad][]float32

func (m moments) get(p G.ValueGrad, n int) []float32 {
	retVal, ok := m[p]
	if !ok || len(retVal) != n {
		retVal = make([]float32, n)
		m[p] = retVal
	}
	return retVal
}

// SGD is plain stochastic gradient descent: p -= lr(t)·g.
type SGD struct {
	lr Schedule
	t  int
}

// NewSGD creates a SGD solver.
func NewSGD(lr Schedule) *SGD { return &SGD{lr: lr} }

// Step implements G.Solver.
func (s *SGD) Step(model []G.ValueGrad) error {
	lr := s.lr(s.t)
	for _, p := range model {
		value, grad, err := extract(p)
		if err != nil {
			return err
		}
		for i, g := range grad {
			value[i] -= lr * g
		}
	}
	s.t++
	return nil
}

// Momentum is gradient descent with a velocity:
//
//	u = μ·u + lr(t)·g
//	p -= u
type Momentum struct {
	lr       Schedule
	momentum float32
	t        int
	velocity moments
}

// NewMomentum creates a Momentum solver.
func NewMomentum(lr Schedule, momentum float32) *Momentum {
	return &Momentum{
		lr:       lr,
		momentum: momentum,
		velocity: make(moments),
	}
}

// Step implements G.Solver.
func (s *Momentum) Step(model []G.ValueGrad) error {
	lr := s.lr(s.t)
	for _, p := range model {
		value, grad, err := extract(p)
		if err != nil {
			return err
		}
		u := s.velocity.get(p, len(value))
		for i, g := range grad {
			u[i] = s.momentum*u[i] + lr*g
			value[i] -= u[i]
		}
	}
	s.t++
	return nil
}

// RMSProp scales the step by a running root mean square of the gradient:
//
//	v = ρ·v + (1-ρ)·g²
//	p -= lr(t)·g / sqrt(ε + v)
type RMSProp struct {
	lr    Schedule
	decay float32
	t     int
	mean  moments
}

// NewRMSProp creates a RMSProp solver.
func NewRMSProp(lr Schedule, decay float32) *RMSProp {
	return &RMSProp{
		lr:    lr,
		decay: decay,
		mean:  make(moments),
	}
}

// Step implements G.Solver.
func (s *RMSProp) Step(model []G.ValueGrad) error {
	lr := s.lr(s.t)
	for _, p := range model {
		value, grad, err := extract(p)
		if err != nil {
			return err
		}
		v := s.mean.get(p, len(value))
		matrix.SquareMix(s.decay, v, grad)
		for i, g := range grad {
			value[i] -= lr * g / math32.Sqrt(matrix.Epsilon+v[i])
		}
	}
	s.t++
	return nil
}

// Adam keeps bias corrected running estimates of the first two moments of every gradient.
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	m̂ = m/(1-β1ᵗ)
//	v̂ = v/(1-β2ᵗ)
//	p -= lr(t)·m̂/(sqrt(v̂) + ε)
//
// ε is the machine epsilon of float32.
type Adam struct {
	lr    Schedule
	beta1 float32
	beta2 float32
	t     int

	m, v moments
}

// NewAdam creates an Adam solver. Zero betas take the usual defaults of 0.9 and 0.999.
func NewAdam(lr Schedule, beta1, beta2 float32) *Adam {
	if beta1 == 0 {
		beta1 = 0.9
	}
	if beta2 == 0 {
		beta2 = 0.999
	}
	return &Adam{
		lr:    lr,
		beta1: beta1,
		beta2: beta2,
		m:     make(moments),
		v:     make(moments),
	}
}

// Step implements G.Solver.
func (a *Adam) Step(model []G.ValueGrad) error {
	lr := a.lr(a.t)
	a.t++
	c1 := 1 - math32.Pow(a.beta1, float32(a.t))
	c2 := 1 - math32.Pow(a.beta2, float32(a.t))
	for _, p := range model {
		value, grad, err := extract(p)
		if err != nil {
			return err
		}
		m := a.m.get(p, len(value))
		v := a.v.get(p, len(value))
		matrix.Mix(a.beta1, m, grad)
		matrix.SquareMix(a.beta2, v, grad)
		for i := range value {
			mhat := m[i] / c1
			vhat := v[i] / c2
			value[i] -= lr * mhat / (math32.Sqrt(vhat) + matrix.Epsilon)
		}
	}
	return nil
}

// Estimates returns the bias corrected moment estimates m̂ and v̂ of a parameter after the
// last step, or nil if the parameter has not been stepped.
func (a *Adam) Estimates(p G.ValueGrad) (mhat, vhat []float32) {
	m, ok := a.m[p]
	if !ok || a.t == 0 {
		return nil, nil
	}
	v := a.v[p]
	c1 := 1 - math32.Pow(a.beta1, float32(a.t))
	c2 := 1 - math32.Pow(a.beta2, float32(a.t))
	mhat = make([]float32, len(m))
	vhat = make([]float32, len(v))
	for i := range m {
		mhat[i] = m[i] / c1
		vhat[i] = v[i] / c2
	}
	return mhat, vhat
}
