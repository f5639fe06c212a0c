package boltzmann

import (
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/fit"
	"github.com/gorgonia/boltzmann/layers"
	"github.com/gorgonia/boltzmann/models"
	"github.com/gorgonia/boltzmann/optimizers"
	"github.com/gorgonia/boltzmann/samplers"
)

// Config is everything needed to build and train a model.
type Config struct {
	Name         string                `json:"name"`
	Seed         int64                 `json:"seed"`
	Layers       []models.LayerConfig  `json:"layers"`
	Init         models.InitMethod     `json:"init"`
	Batch        batch.Config          `json:"batch"`
	Optimizer    optimizers.Config     `json:"optimizer"`
	Fit          fit.Config            `json:"fit"`
	Sampler      samplers.Method       `json:"sampler"`
	Drive        *samplers.DriveConfig `json:"drive,omitempty"` // nil runs undriven chains
	Metrics      []string              `json:"metrics"`         // monitored every Fit.Skip minibatches
	MonitorSteps int                   `json:"monitor_steps"`   // sweeps of the monitor's sample chains
	Fantasy      FantasyConfig         `json:"fantasy"`
}

// FantasyConfig sizes the chains drawn into the OutputEncoder after every epoch.
type FantasyConfig struct {
	Rows  int `json:"rows"`
	Steps int `json:"steps"`
}

// DefaultConfig returns a Bernoulli RBM trained by single step PCD with Adam.
func DefaultConfig(nvis, nhid int) Config {
	return Config{
		Name: "rbm",
		Seed: 137,
		Layers: []models.LayerConfig{
			{Family: layers.Bernoulli, Size: nvis},
			{Family: layers.Bernoulli, Size: nhid},
		},
		Init:         models.Hinton,
		Batch:        batch.DefaultConfig(),
		Optimizer:    optimizers.DefaultConfig(),
		Fit:          fit.DefaultConfig(),
		Sampler:      samplers.Stochastic,
		MonitorSteps: 10,
		Fantasy:      FantasyConfig{Rows: 16, Steps: 100},
	}
}

// IsValid reports whether an Experiment can be built from the configuration.
func (c Config) IsValid() bool {
	if len(c.Layers) < 2 {
		return false
	}
	for _, l := range c.Layers {
		if l.Size < 1 || l.Family < 0 || l.Family >= layers.MAXFAMILY {
			return false
		}
		if !(l.Dropout >= 0 && l.Dropout < 1) {
			return false
		}
	}
	switch c.Init {
	case models.Hinton, models.Glorot, models.Zero:
	default:
		return false
	}
	for _, i := range c.Fit.FrozenLayers {
		if i >= len(c.Layers) {
			return false
		}
	}
	for _, i := range c.Fit.FrozenWeights {
		if i >= len(c.Layers)-1 {
			return false
		}
	}
	if c.Drive != nil && !c.Drive.IsValid() {
		return false
	}
	return c.Batch.IsValid() &&
		c.Optimizer.IsValid() &&
		c.Fit.IsValid() &&
		c.MonitorSteps >= 0 &&
		c.Fantasy.Rows >= 0 && c.Fantasy.Steps >= 0
}

// OutputEncoder receives a batch of visible units after every epoch.
//
// An example OutputEncoder is the GIF encoder in encoding/gif.
type OutputEncoder interface {
	Encode(v *tensor.Dense, caption string) error
	Flush() error
}
