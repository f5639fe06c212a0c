package metrics

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/models"
	"github.com/gorgonia/boltzmann/random"
	"github.com/gorgonia/boltzmann/samplers"
)

// ProgressMonitor evaluates a set of metrics on the validation split of a dataset.
type ProgressMonitor struct {
	Metrics []Metric
	Steps   int // sweeps used for the sample and random chains

	src *random.Source
}

// DefaultMetrics are the metrics reported when none are named.
var DefaultMetrics = []string{"ReconstructionError", "EnergyDistance", "EnergyGap", "EnergyZscore", "HeatCapacity"}

// NewProgressMonitor returns a monitor for the named metrics.
func NewProgressMonitor(names []string, steps int, src *random.Source) (*ProgressMonitor, error) {
	if len(names) == 0 {
		names = DefaultMetrics
	}
	if steps < 1 {
		steps = 1
	}
	p := &ProgressMonitor{Steps: steps, src: src}
	for _, name := range names {
		m, err := ByName(name)
		if err != nil {
			return nil, err
		}
		p.Metrics = append(p.Metrics, m)
	}
	return p, nil
}

// Check implements fit.Monitor. It reads the whole validation split, leaving it rewound. It
// does not modify the model parameters, and its chains draw from the monitor's own random
// streams rather than from those of the model.
func (p *ProgressMonitor) Check(m *models.Model, data batch.Batch) (map[string]float32, error) {
	defer m.Detach(p.src)()
	for _, metric := range p.Metrics {
		metric.Reset()
	}
	data.Reset(batch.Validate)
	var batches int
	for {
		v, err := data.Get(batch.Validate)
		if err == batch.ErrEndOfEpoch {
			break
		}
		if err != nil {
			return nil, err
		}
		args, err := p.args(m, v)
		if err != nil {
			return nil, err
		}
		for _, metric := range p.Metrics {
			if err = metric.Update(args); err != nil {
				return nil, errors.WithMessage(err, metric.Name())
			}
		}
		batches++
	}
	if batches == 0 {
		return nil, errors.New("the validation split holds no full batch")
	}
	retVal := make(map[string]float32, len(p.Metrics))
	for _, metric := range p.Metrics {
		retVal[metric.Name()] = metric.Value()
	}
	return retVal, nil
}

func (p *ProgressMonitor) args(m *models.Model, v *tensor.Dense) (Args, error) {
	rows, _ := matrix.Dims(v)
	recon, err := m.Reconstruct(v)
	if err != nil {
		return Args{}, err
	}

	start, err := models.StateFromVisible(m, v)
	if err != nil {
		return Args{}, err
	}
	samples := samplers.New(m, samplers.Stochastic, p.src)
	if err = samples.SetState(start); err != nil {
		return Args{}, err
	}
	if err = samples.UpdateState(p.Steps, true, 1); err != nil {
		return Args{}, err
	}

	rnd, err := samplers.FromRandom(m, rows, samplers.Stochastic, p.src)
	if err != nil {
		return Args{}, err
	}
	if err = rnd.UpdateState(p.Steps, true, 1); err != nil {
		return Args{}, err
	}
	return Args{
		Model:           m,
		Data:            v,
		Reconstructions: recon,
		Samples:         samples.Visible(),
		Random:          rnd.Visible(),
		RandomState:     rnd.State(),
	}, nil
}

// Reconstruction returns the reconstruction error of the model on the validation split.
func Reconstruction(m *models.Model, data batch.Batch) (float32, error) {
	var metric ReconstructionError
	data.Reset(batch.Validate)
	for {
		v, err := data.Get(batch.Validate)
		if err == batch.ErrEndOfEpoch {
			break
		}
		if err != nil {
			return 0, err
		}
		recon, err := m.Reconstruct(v)
		if err != nil {
			return 0, err
		}
		if err = metric.Update(Args{Data: v, Reconstructions: recon}); err != nil {
			return 0, err
		}
	}
	if metric.n == 0 {
		return 0, errors.New("the validation split holds no full batch")
	}
	return metric.Value(), nil
}
