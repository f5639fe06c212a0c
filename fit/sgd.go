// Package fit trains models by stochastic gradient descent on contrastive divergence
// estimates of the log likelihood gradient.
package fit

import (
	"fmt"
	"log"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/metrics"
	"github.com/gorgonia/boltzmann/models"
)

// Sampler provides the negative phase chains.
type Sampler interface {
	Ready() bool
	SetState(*models.State) error
	State() *models.State
	UpdateState(steps int, resample bool, temperature float32) error
}

// observer is implemented by samplers that reseed their chains from data.
type observer interface {
	Observe(v *tensor.Dense)
}

// Monitor evaluates a model on held out data. It must not modify the model.
type Monitor interface {
	Check(m *models.Model, data batch.Batch) (map[string]float32, error)
}

// TrainingError is returned when a run is aborted. It records where the run stopped.
type TrainingError struct {
	Epoch     int
	Minibatch int
	Err       error
}

func (err *TrainingError) Error() string {
	return fmt.Sprintf("training aborted at epoch %d, minibatch %d: %v", err.Epoch, err.Minibatch, err.Err)
}

// Unwrap returns the error that aborted the run.
func (err *TrainingError) Unwrap() error { return err.Err }

// Cause implements the causer interface of github.com/pkg/errors.
func (err *TrainingError) Cause() error { return err.Err }

// SGD is a contrastive divergence trainer.
type SGD struct {
	Config
	Model   *models.Model
	Data    batch.Batch
	Solver  G.Solver
	Sampler Sampler
	Monitor Monitor // optional

	// OnCheck, if set, receives every monitor result.
	OnCheck func(epoch, minibatch int, values map[string]float32)
	// OnEpoch, if set, is called after the minibatches of every epoch. An error aborts the run.
	OnEpoch func(epoch int) error
	// Logger receives progress lines. The standard logger is used when it is nil.
	Logger *log.Logger

	epoch     int
	minibatch int
}

// New creates a trainer.
func New(m *models.Model, data batch.Batch, solver G.Solver, sampler Sampler, conf Config) (*SGD, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid training config %+v", conf)
	}
	if data.Cols() != m.Layers[0].Len() {
		return nil, errors.Errorf("the data has %d columns, the visible layer %d units", data.Cols(), m.Layers[0].Len())
	}
	if err := m.Freeze(conf.FrozenLayers, conf.FrozenWeights); err != nil {
		return nil, err
	}
	return &SGD{
		Config:  conf,
		Model:   m,
		Data:    data,
		Solver:  solver,
		Sampler: sampler,
	}, nil
}

// Epoch returns the number of epochs started so far.
func (t *SGD) Epoch() int { return t.epoch }

// Train runs the epoch loop. It stops after Epochs epochs, or earlier when the validation
// reconstruction error has converged. Any error aborts the run as a *TrainingError.
func (t *SGD) Train() error {
	prev := math32.NaN()
	t.Data.Reset(batch.Train)
	for t.epoch = 0; t.epoch < t.Epochs; t.epoch++ {
		t.logf("Epoch %d", t.epoch)
		for t.minibatch = 0; ; t.minibatch++ {
			v, err := t.Data.Get(batch.Train)
			if err == batch.ErrEndOfEpoch {
				break
			}
			if err != nil {
				return t.fail(err)
			}
			if err = t.Step(v); err != nil {
				return t.fail(err)
			}
			if t.Monitor != nil && t.Skip > 0 && (t.minibatch+1)%t.Skip == 0 {
				if err = t.check(); err != nil {
					return t.fail(err)
				}
			}
		}
		t.logf("\t%d minibatches", t.minibatch)
		if t.OnEpoch != nil {
			if err := t.OnEpoch(t.epoch); err != nil {
				return t.fail(err)
			}
		}

		if t.Convergence > 0 {
			cur, err := metrics.Reconstruction(t.Model, t.Data)
			if err != nil {
				return t.fail(err)
			}
			t.logf("\tvalidation reconstruction error %v", cur)
			if math32.Abs(cur-prev) < t.Convergence {
				t.logf("Converged after %d epochs", t.epoch+1)
				t.epoch++
				return nil
			}
			prev = cur
		}
	}
	return nil
}

// Step performs one update from a minibatch of visible units: positive phase, negative
// phase, gradient, solver step and constraint enforcement. Models with dropout draw a fresh
// mask for each phase.
func (t *SGD) Step(v *tensor.Dense) error {
	rows, _ := matrix.Dims(v)
	posMask := t.Model.DropoutMask(rows)
	pos, err := t.positive(v, posMask)
	if err != nil {
		return errors.WithMessage(err, "positive phase")
	}
	if o, ok := t.Sampler.(observer); ok {
		o.Observe(v)
	}
	if t.Method == CD || !t.Sampler.Ready() {
		if err = t.Sampler.SetState(pos); err != nil {
			return errors.WithMessage(err, "seeding the negative phase")
		}
	}
	negMask := t.Model.DropoutMask(t.Sampler.State().Batch())
	if err = t.negative(negMask); err != nil {
		return errors.WithMessage(err, "negative phase")
	}
	if err = t.Model.DropoutGradient(pos, t.Sampler.State(), posMask, negMask); err != nil {
		return err
	}
	if err = t.Solver.Step(t.Model.Parameters()); err != nil {
		return errors.WithMessage(err, "solver step")
	}
	t.Model.EnforceConstraints()
	return t.Model.CheckFinite()
}

func (t *SGD) positive(v *tensor.Dense, mask *models.State) (*models.State, error) {
	defer t.Model.WithDropout(mask)()
	return t.Model.Clamped(v, t.MeanFieldSteps)
}

func (t *SGD) negative(mask *models.State) error {
	defer t.Model.WithDropout(mask)()
	return t.Sampler.UpdateState(t.MCSteps, true, 1)
}

func (t *SGD) check() error {
	values, err := t.Monitor.Check(t.Model, t.Data)
	if err != nil {
		return errors.WithMessage(err, "monitor")
	}
	t.logf("\tminibatch %d: %v", t.minibatch, values)
	if t.OnCheck != nil {
		t.OnCheck(t.epoch, t.minibatch, values)
	}
	return nil
}

func (t *SGD) fail(err error) error {
	return &TrainingError{Epoch: t.epoch, Minibatch: t.minibatch, Err: err}
}

func (t *SGD) logf(format string, args ...interface{}) {
	if t.Logger != nil {
		t.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
