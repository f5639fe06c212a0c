package samplers

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/layers"
	"github.com/gorgonia/boltzmann/models"
)

// DriveConfig configures a DrivenSequentialMC.
type DriveConfig struct {
	Momentum       float32 `json:"momentum"`        // autoregression coefficient of the inverse temperatures
	Std            float32 `json:"std"`             // stationary spread of the inverse temperatures
	ReseedInterval int     `json:"reseed_interval"` // updates between reseeds, 0 never reseeds
	ReseedFraction float32 `json:"reseed_fraction"` // fraction of the chains replaced by data
}

// DefaultDriveConfig returns a slowly varying drive with occasional reseeding.
func DefaultDriveConfig() DriveConfig {
	return DriveConfig{
		Momentum:       0.9,
		Std:            0.6,
		ReseedInterval: 10,
		ReseedFraction: 0.1,
	}
}

// IsValid reports whether the configuration can be used.
func (c DriveConfig) IsValid() bool {
	return c.Momentum >= 0 && c.Momentum < 1 &&
		c.Std > 0 &&
		c.ReseedInterval >= 0 &&
		c.ReseedFraction >= 0 && c.ReseedFraction <= 1
}

// shape returns the integer shape k of the Gamma(k, 1/k) innovations, whose mean is 1 and
// whose standard deviation is close to Std.
func (c DriveConfig) shape() int {
	k := int(1/(c.Std*c.Std) + 0.5)
	if k < 1 {
		k = 1
	}
	return k
}

// DrivenSequentialMC is a SequentialMC whose chains each run at their own inverse temperature.
// The inverse temperatures follow the autoregressive process
//
//	β ← ρ·β + (1-ρ)·g,  g ~ Gamma(k, 1/k)
//
// which keeps them positive with a stationary mean of 1. Every ReseedInterval updates a
// ReseedFraction of the chains is replaced by rows of the last observed data minibatch, so
// that the chains do not drift away from the data.
type DrivenSequentialMC struct {
	*SequentialMC
	conf DriveConfig

	beta    []float32
	scaled  []float32
	updates int
	data    *tensor.Dense
}

// NewDriven wraps a sampler.
func NewDriven(s *SequentialMC, conf DriveConfig) (*DrivenSequentialMC, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid drive config %+v", conf)
	}
	return &DrivenSequentialMC{
		SequentialMC: s,
		conf:         conf,
	}, nil
}

// Observe records a data minibatch to reseed chains from.
func (d *DrivenSequentialMC) Observe(v *tensor.Dense) { d.data = v }

// SetState sets the chains and restarts the inverse temperatures at 1.
func (d *DrivenSequentialMC) SetState(st *models.State) error {
	if err := d.SequentialMC.SetState(st); err != nil {
		return err
	}
	d.beta = nil
	return nil
}

// Beta returns the current inverse temperature of every chain.
func (d *DrivenSequentialMC) Beta() []float32 { return d.beta }

// UpdateState advances the inverse temperatures, reseeds chains when due and performs steps
// sweeps. The temperature divides every chain's inverse temperature.
func (d *DrivenSequentialMC) UpdateState(steps int, resample bool, temperature float32) error {
	if d.state == nil {
		return ErrUninitialized
	}
	if !(temperature > 0) {
		return errors.Errorf("temperature must be positive, got %v", temperature)
	}
	rows := d.state.Batch()
	if len(d.beta) != rows {
		d.beta = make([]float32, rows)
		d.scaled = make([]float32, rows)
		for i := range d.beta {
			d.beta[i] = 1
		}
	}
	d.drive()
	for i, b := range d.beta {
		d.scaled[i] = b / temperature
	}

	d.updates++
	if d.conf.ReseedInterval > 0 && d.updates%d.conf.ReseedInterval == 0 {
		if err := d.reseed(); err != nil {
			return err
		}
	}
	return d.update(steps, resample, temperature, d.scaled)
}

func (d *DrivenSequentialMC) drive() {
	k := d.conf.shape()
	rho := d.conf.Momentum
	for i, b := range d.beta {
		var g float32
		for j := 0; j < k; j++ {
			g += d.src.Exponential(float32(k))
		}
		d.beta[i] = rho*b + (1-rho)*g
	}
}

// reseed copies rows of the last observed minibatch into the visible units of randomly chosen
// chains.
func (d *DrivenSequentialMC) reseed() error {
	if d.data == nil {
		return nil
	}
	vis := d.state.Units[0]
	rows, cols := matrix.Dims(vis)
	drows, dcols := matrix.Dims(d.data)
	if dcols != cols {
		return errors.WithStack(&layers.ShapeError{Op: "reseed", Want: tensor.Shape{drows, cols}, Got: d.data.Shape().Clone()})
	}
	n := int(d.conf.ReseedFraction * float32(rows))
	chains := d.src.Perm(rows)[:n]
	for k, i := range chains {
		copy(matrix.Row(vis, i), matrix.Row(d.data, k%drows))
	}
	return nil
}
