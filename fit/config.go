package fit

import (
	"strings"

	"github.com/pkg/errors"
)

// Method is the contrastive divergence variant.
type Method int

const (
	// CD restarts the negative phase chains at the data of every minibatch.
	CD Method = iota
	// PCD carries the negative phase chains over from one minibatch to the next.
	PCD
)

func (m Method) String() string {
	switch m {
	case CD:
		return "cd"
	case PCD:
		return "pcd"
	}
	return "unknown"
}

// ParseMethod parses "cd" or "pcd".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(s) {
	case "cd":
		return CD, nil
	case "pcd":
		return PCD, nil
	}
	return CD, errors.Errorf("unknown training method %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMethod(string(text))
	return
}

// Config configures a training run.
type Config struct {
	Epochs         int     `json:"epochs"`
	MCSteps        int     `json:"mc_steps"`                 // Gibbs sweeps of the negative phase per minibatch
	Method         Method  `json:"method"`                   // CD or PCD
	MeanFieldSteps int     `json:"mean_field_steps"`         // sweeps of the positive phase of deep models
	Skip           int     `json:"skip"`                     // minibatches between two monitor checks, 0 never checks
	Convergence    float32 `json:"convergence"`              // stop once the validation reconstruction error moves less than this; 0 never stops early
	FrozenLayers   []int   `json:"frozen_layers,omitempty"`  // layers whose intrinsic parameters are not trained
	FrozenWeights  []int   `json:"frozen_weights,omitempty"` // weight matrices that are not trained
}

// DefaultConfig returns a single step PCD run of 10 epochs.
func DefaultConfig() Config {
	return Config{
		Epochs:         10,
		MCSteps:        1,
		Method:         PCD,
		MeanFieldSteps: 1,
		Skip:           200,
	}
}

// IsValid reports whether the configuration can be used.
func (c Config) IsValid() bool {
	return c.Epochs >= 1 &&
		c.MCSteps >= 1 &&
		(c.Method == CD || c.Method == PCD) &&
		c.MeanFieldSteps >= 0 &&
		c.Skip >= 0 &&
		c.Convergence >= 0 &&
		nonNegative(c.FrozenLayers) &&
		nonNegative(c.FrozenWeights)
}

func nonNegative(xs []int) bool {
	for _, x := range xs {
		if x < 0 {
			return false
		}
	}
	return true
}
