package optimizers

import (
	"strings"

	"github.com/pkg/errors"
	G "gorgonia.org/gorgonia"
)

// Config selects and parameterises an optimizer.
type Config struct {
	Name        string  `json:"name"`        // sgd, momentum, rmsprop, adam or vanilla
	LearnRate   float32 `json:"learn_rate"`  // initial learning rate
	Decay       string  `json:"decay"`       // constant, power_law or exponential
	Coefficient float32 `json:"coefficient"` // decay coefficient
	Beta1       float32 `json:"beta1"`       // momentum, or Adam's first moment decay
	Beta2       float32 `json:"beta2"`       // RMSProp decay, or Adam's second moment decay
}

// DefaultConfig returns Adam with a power law decaying learning rate.
func DefaultConfig() Config {
	return Config{
		Name:        "adam",
		LearnRate:   0.001,
		Decay:       "power_law",
		Coefficient: 0.1,
		Beta1:       0.9,
		Beta2:       0.999,
	}
}

// IsValid reports whether the configuration names a known optimizer and schedule.
func (c Config) IsValid() bool {
	if c.LearnRate <= 0 || c.Coefficient < 0 {
		return false
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return false
	}
	if _, err := c.Schedule(); err != nil {
		return false
	}
	switch strings.ToLower(c.Name) {
	case "sgd", "momentum", "rmsprop", "adam":
		return true
	case "vanilla":
		return strings.ToLower(c.Decay) == "constant" || c.Decay == ""
	}
	return false
}

// Schedule returns the learning rate schedule described by the configuration.
func (c Config) Schedule() (Schedule, error) {
	switch strings.ToLower(c.Decay) {
	case "", "constant":
		return Constant(c.LearnRate), nil
	case "power_law":
		return PowerLawDecay(c.LearnRate, c.Coefficient), nil
	case "exponential":
		return ExponentialDecay(c.LearnRate, c.Coefficient), nil
	}
	return nil, errors.Errorf("unknown learning rate decay %q", c.Decay)
}

// New builds the solver described by c. "vanilla" is gorgonia's own VanillaSolver, which
// only supports a constant learning rate.
func New(c Config) (G.Solver, error) {
	if !c.IsValid() {
		return nil, errors.Errorf("invalid optimizer config %+v", c)
	}
	lr, err := c.Schedule()
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(c.Name) {
	case "sgd":
		return NewSGD(lr), nil
	case "momentum":
		return NewMomentum(lr, c.Beta1), nil
	case "rmsprop":
		return NewRMSProp(lr, c.Beta2), nil
	case "adam":
		return NewAdam(lr, c.Beta1, c.Beta2), nil
	case "vanilla":
		return G.NewVanillaSolver(G.WithLearnRate(float64(c.LearnRate))), nil
	}
	return nil, errors.Errorf("unknown optimizer %q", c.Name)
}
