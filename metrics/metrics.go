// Package metrics measures how well a model fits held out data.
package metrics

import (
	"strings"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/models"
)

// Args are the visible arrays a metric is updated with, all for the same validation minibatch.
type Args struct {
	Model           *models.Model
	Data            *tensor.Dense // the minibatch
	Reconstructions *tensor.Dense // one mean field step from the data
	Samples         *tensor.Dense // chains started at the data, run for a few sweeps
	Random          *tensor.Dense // chains started at random, run for the same number of sweeps
	RandomState     *models.State // every layer of the random chains
}

// Metric accumulates a statistic over minibatches.
type Metric interface {
	Name() string
	Reset()
	Update(Args) error
	Value() float32
}

// ByName returns a fresh metric.
func ByName(name string) (Metric, error) {
	switch strings.ToLower(name) {
	case "reconstructionerror", "reconstruction_error":
		return &ReconstructionError{}, nil
	case "energydistance", "energy_distance":
		return &EnergyDistance{}, nil
	case "energygap", "energy_gap":
		return &EnergyGap{}, nil
	case "energyzscore", "energy_zscore":
		return &EnergyZscore{}, nil
	case "heatcapacity", "heat_capacity":
		return &HeatCapacity{}, nil
	}
	return nil, errors.Errorf("unknown metric %q", name)
}

// ReconstructionError is the root mean squared distance between the data and its
// reconstructions, per row.
type ReconstructionError struct {
	sumsq float32
	n     int
}

func (m *ReconstructionError) Name() string { return "ReconstructionError" }
func (m *ReconstructionError) Reset()       { *m = ReconstructionError{} }

func (m *ReconstructionError) Update(a Args) error {
	if !a.Data.Shape().Eq(a.Reconstructions.Shape()) {
		return errors.Errorf("reconstructions are %v, the data %v", a.Reconstructions.Shape(), a.Data.Shape())
	}
	r := matrix.F32s(a.Reconstructions)
	for i, x := range matrix.F32s(a.Data) {
		d := x - r[i]
		m.sumsq += d * d
	}
	rows, _ := matrix.Dims(a.Data)
	m.n += rows
	return nil
}

func (m *ReconstructionError) Value() float32 {
	if m.n == 0 {
		return math32.NaN()
	}
	return math32.Sqrt(m.sumsq / float32(m.n))
}

// EnergyDistance is the energy distance between the data and the samples,
//
//	2·E|x-y| - E|x-x'| - E|y-y'|
//
// averaged over minibatches. It is zero when the two sets have the same distribution.
type EnergyDistance struct {
	sum float32
	n   int
}

func (m *EnergyDistance) Name() string { return "EnergyDistance" }
func (m *EnergyDistance) Reset()       { *m = EnergyDistance{} }

func (m *EnergyDistance) Update(a Args) error {
	xy, err := meanDistance(a.Data, a.Samples)
	if err != nil {
		return err
	}
	xx, _ := meanDistance(a.Data, a.Data)
	yy, _ := meanDistance(a.Samples, a.Samples)
	m.sum += 2*xy - xx - yy
	m.n++
	return nil
}

func (m *EnergyDistance) Value() float32 {
	if m.n == 0 {
		return math32.NaN()
	}
	return m.sum / float32(m.n)
}

// EnergyGap is the mean free energy of the random chains minus that of the data. A model
// that fits assigns the data a lower energy, so the gap grows as it learns.
type EnergyGap struct {
	data, random moments
}

func (m *EnergyGap) Name() string { return "EnergyGap" }
func (m *EnergyGap) Reset()       { *m = EnergyGap{} }

func (m *EnergyGap) Update(a Args) error { return updateEnergies(a, &m.data, &m.random) }

func (m *EnergyGap) Value() float32 { return m.random.mean() - m.data.mean() }

// EnergyZscore is the mean free energy of the data, minus that of the random chains, in units
// of the standard deviation of the latter. Epsilon keeps it finite when the chains all share
// the same energy.
type EnergyZscore struct {
	data, random moments
}

func (m *EnergyZscore) Name() string { return "EnergyZscore" }
func (m *EnergyZscore) Reset()       { *m = EnergyZscore{} }

func (m *EnergyZscore) Update(a Args) error { return updateEnergies(a, &m.data, &m.random) }

func (m *EnergyZscore) Value() float32 {
	return (m.data.mean() - m.random.mean()) / (m.random.std() + matrix.Epsilon)
}

// HeatCapacity is the variance of the joint energy of the random chains, per parameter of
// the model. It peaks as the model crosses between ordered and disordered phases.
type HeatCapacity struct {
	energy moments
	params int
}

func (m *HeatCapacity) Name() string { return "HeatCapacity" }
func (m *HeatCapacity) Reset()       { *m = HeatCapacity{} }

func (m *HeatCapacity) Update(a Args) error {
	if a.RandomState == nil {
		return errors.New("heat capacity needs the state of the random chains")
	}
	e, err := a.Model.Energy(a.RandomState)
	if err != nil {
		return err
	}
	m.energy.add(e)
	m.params = a.Model.NumParams()
	return nil
}

func (m *HeatCapacity) Value() float32 {
	if m.energy.n == 0 {
		return math32.NaN()
	}
	s := m.energy.std()
	return s * s / float32(m.params)
}

// FreeEnergy returns the marginal free energy of every row of v for two layer models, and the
// joint energy of the mean field positive phase for deeper ones.
func FreeEnergy(m *models.Model, v *tensor.Dense) ([]float32, error) {
	if len(m.Layers) == 2 {
		return m.MarginalFreeEnergy(v)
	}
	s, err := m.Clamped(v, 1)
	if err != nil {
		return nil, err
	}
	return m.Energy(s)
}

func updateEnergies(a Args, data, random *moments) error {
	fd, err := FreeEnergy(a.Model, a.Data)
	if err != nil {
		return err
	}
	fr, err := FreeEnergy(a.Model, a.Random)
	if err != nil {
		return err
	}
	data.add(fd)
	random.add(fr)
	return nil
}

// moments accumulates the first two moments of a stream of values.
type moments struct {
	sum, sumsq float32
	n          int
}

func (m *moments) add(xs []float32) {
	for _, x := range xs {
		m.sum += x
		m.sumsq += x * x
	}
	m.n += len(xs)
}

func (m *moments) mean() float32 {
	if m.n == 0 {
		return math32.NaN()
	}
	return m.sum / float32(m.n)
}

func (m *moments) std() float32 {
	mu := m.mean()
	v := m.sumsq/float32(m.n) - mu*mu
	if v < 0 {
		v = 0
	}
	return math32.Sqrt(v)
}

// meanDistance returns the mean euclidean distance between the rows of a and those of b.
func meanDistance(a, b *tensor.Dense) (float32, error) {
	ra, ca := matrix.Dims(a)
	rb, cb := matrix.Dims(b)
	if ca != cb {
		return 0, errors.Errorf("cannot compare rows of %d and %d columns", ca, cb)
	}
	var sum float32
	for i := 0; i < ra; i++ {
		x := matrix.Row(a, i)
		for j := 0; j < rb; j++ {
			y := matrix.Row(b, j)
			var ss float32
			for k := range x {
				d := x[k] - y[k]
				ss += d * d
			}
			sum += math32.Sqrt(ss)
		}
	}
	return sum / float32(ra*rb), nil
}
