// Package boltzmann builds and trains exponential family Boltzmann machines.
//
// An Experiment wires a model, a dataset, an optimizer, a sampler and a monitor together
// from a Config, then runs contrastive divergence training on it.
package boltzmann

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/fit"
	"github.com/gorgonia/boltzmann/metrics"
	"github.com/gorgonia/boltzmann/models"
	"github.com/gorgonia/boltzmann/optimizers"
	"github.com/gorgonia/boltzmann/random"
	"github.com/gorgonia/boltzmann/samplers"
)

// Experiment is the top level structure and the entry point of the API.
type Experiment struct {
	Statistics
	Model *models.Model
	Data  batch.Batch

	// extensions
	Snapshots     *batch.Snapshots // if set, the model is saved after every epoch
	OutputEncoder OutputEncoder    // if set, receives fantasy particles after every epoch

	conf       Config
	src        *random.Source
	fantasySrc *random.Source // the fantasy chains never touch the training streams
	trainer    *fit.SGD
	fantasy    *samplers.SequentialMC
	epochs     int // completed over all calls to Learn

	buf    bytes.Buffer
	logger *log.Logger
}

// New builds the model described by conf and initializes it from the training split of data.
func New(data batch.Batch, conf Config) (*Experiment, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid config %+v", conf)
	}
	src := random.New(conf.Seed)
	m, err := models.Build(src.Split(), conf.Layers...)
	if err != nil {
		return nil, err
	}
	if err = m.Initialize(data, conf.Init); err != nil {
		return nil, errors.WithMessage(err, "initialize")
	}
	e := &Experiment{
		Statistics: makeStatistics(),
		Model:      m,
		Data:       data,
		conf:       conf,
		src:        src,
		fantasySrc: src.Split(),
	}
	e.logger = log.New(&e.buf, "", log.Ltime)
	if err = e.wire(); err != nil {
		return nil, err
	}
	return e, nil
}

// wire builds the optimizer, sampler, monitor and trainer around e.Model.
func (e *Experiment) wire() error {
	solver, err := optimizers.New(e.conf.Optimizer)
	if err != nil {
		return err
	}
	smc := samplers.New(e.Model, e.conf.Sampler, e.src.Split())
	var sampler fit.Sampler = smc
	if e.conf.Drive != nil {
		if sampler, err = samplers.NewDriven(smc, *e.conf.Drive); err != nil {
			return err
		}
	}
	trainer, err := fit.New(e.Model, e.Data, solver, sampler, e.conf.Fit)
	if err != nil {
		return err
	}
	// split whether or not the monitor runs, so that the streams after it do not depend on Skip
	monSrc := e.src.Split()
	if e.conf.Fit.Skip > 0 {
		mon, err := metrics.NewProgressMonitor(e.conf.Metrics, e.conf.MonitorSteps, monSrc)
		if err != nil {
			return err
		}
		trainer.Monitor = mon
	}
	trainer.Logger = log.New(io.MultiWriter(log.Writer(), &e.buf), "", log.LstdFlags)
	e.trainer = trainer
	e.fantasy = nil
	return nil
}

// Learn trains the model for the configured number of epochs. Cancelling ctx stops the run
// at the end of the current epoch.
func (e *Experiment) Learn(ctx context.Context) error {
	e.buf.Reset()
	e.logger.Printf("Learning %q: %d parameters, layers %v", e.conf.Name, e.Model.NumParams(), e.Model.Config())
	base := e.epochs
	e.trainer.OnCheck = func(epoch, minibatch int, values map[string]float32) {
		e.update(base+epoch, minibatch, values)
	}
	e.trainer.OnEpoch = func(epoch int) error {
		e.epochs = base + epoch + 1
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.Snapshots != nil {
			if err := e.Snapshots.Save(ctx, base+epoch, e.Model); err != nil {
				return errors.WithMessage(err, "snapshot")
			}
		}
		if e.OutputEncoder != nil && e.conf.Fantasy.Rows > 0 {
			v, err := e.Fantasy()
			if err != nil {
				return err
			}
			if err = e.OutputEncoder.Encode(v, fmt.Sprintf("%s, epoch %d", e.conf.Name, base+epoch)); err != nil {
				return errors.WithMessage(err, "output")
			}
		}
		return nil
	}
	if err := e.trainer.Train(); err != nil {
		return errors.WithMessage(err, "learn")
	}
	return nil
}

// Epochs returns the number of epochs completed.
func (e *Experiment) Epochs() int { return e.epochs }

// SetEpochs changes the number of epochs each call to Learn runs.
func (e *Experiment) SetEpochs(n int) error {
	if n < 1 {
		return errors.Errorf("cannot train for %d epochs", n)
	}
	e.conf.Fit.Epochs = n
	e.trainer.Epochs = n
	return nil
}

// Fantasy advances a set of persistent chains started from random noise and returns the
// conditional means of their visible units. The chains draw from their own random streams,
// so asking for fantasies does not change how the model trains.
func (e *Experiment) Fantasy() (*tensor.Dense, error) {
	defer e.Model.Detach(e.fantasySrc)()
	if e.fantasy == nil {
		s, err := samplers.FromRandom(e.Model, e.conf.Fantasy.Rows, samplers.Stochastic, e.fantasySrc.Split())
		if err != nil {
			return nil, err
		}
		e.fantasy = s
	}
	if err := e.fantasy.UpdateState(e.conf.Fantasy.Steps, false, 1); err != nil {
		return nil, err
	}
	return e.fantasy.Visible(), nil
}

// Reconstruction returns the reconstruction error on the validation split.
func (e *Experiment) Reconstruction() (float32, error) {
	return metrics.Reconstruction(e.Model, e.Data)
}

// ExecLog returns the log of the last call to Learn.
func (e *Experiment) ExecLog() string { return e.buf.String() }

// Save the model into filename.
func (e *Experiment) Save(filename string) error {
	return errors.WithMessage(e.Model.Save(filename), "save")
}

// Load replaces the model with one saved into filename. The saved model must have the
// layers of the configuration. Optimizer moments and sampler chains start afresh.
func (e *Experiment) Load(filename string) error {
	m, err := models.Load(filename, e.src.Split())
	if err != nil {
		return err
	}
	if err = e.sameLayers(m); err != nil {
		return err
	}
	e.Model = m
	return e.wire()
}

// Resume loads the snapshot of an epoch. It reports whether the snapshot existed.
func (e *Experiment) Resume(ctx context.Context, epoch int) (bool, error) {
	if e.Snapshots == nil {
		return false, errors.New("no snapshot store")
	}
	m := new(models.Model)
	m.SetSource(e.src.Split())
	ok, err := e.Snapshots.Load(ctx, epoch, m)
	if !ok || err != nil {
		return ok, err
	}
	if err = e.sameLayers(m); err != nil {
		return false, err
	}
	e.Model = m
	e.epochs = epoch + 1
	return true, e.wire()
}

func (e *Experiment) sameLayers(m *models.Model) error {
	got := m.Config()
	if len(got) != len(e.conf.Layers) {
		return errors.Errorf("loaded %d layers, expected %d", len(got), len(e.conf.Layers))
	}
	for i, l := range got {
		if l != e.conf.Layers[i] {
			return errors.Errorf("loaded layer %d is %v, expected %v", i, l, e.conf.Layers[i])
		}
	}
	return nil
}

// Close flushes the output encoder and closes the data and the snapshot store.
func (e *Experiment) Close() error {
	var errs []error
	if e.OutputEncoder != nil && e.fantasy != nil {
		errs = append(errs, e.OutputEncoder.Flush())
	}
	if e.Snapshots != nil {
		errs = append(errs, e.Snapshots.Close())
	}
	errs = append(errs, e.Data.Close())
	return join(errs...)
}
