// Package samplers runs block Gibbs chains on a model. A sampler owns a chain state that it
// mutates in place, so that a persistent chain can be carried across minibatches.
package samplers

import (
	"sort"
	"strings"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/models"
	"github.com/gorgonia/boltzmann/random"
)

// Method selects how every layer is refreshed during a sweep.
type Method int

const (
	Stochastic    Method = iota // sample from the conditionals
	MeanField                   // replace units by their conditional means
	Deterministic               // replace units by their conditional modes
)

func (m Method) String() string {
	switch m {
	case Stochastic:
		return "stochastic"
	case MeanField:
		return "mean_field"
	case Deterministic:
		return "deterministic"
	}
	return "unknown"
}

// ParseMethod parses the name of a method.
func ParseMethod(s string) (Method, error) {
	for m := Stochastic; m <= Deterministic; m++ {
		if strings.EqualFold(s, m.String()) {
			return m, nil
		}
	}
	return Stochastic, errors.Errorf("unknown sampling method %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMethod(string(text))
	return
}

func (m Method) op() models.Op {
	switch m {
	case MeanField:
		return models.Mean
	case Deterministic:
		return models.Mode
	}
	return models.Sample
}

// ErrUninitialized is returned when a sampler is advanced before it has a state.
var ErrUninitialized = errors.New("sampler has no state")

// SequentialMC is a set of parallel Gibbs chains on a model. It starts Uninitialized and is
// Ready once it has been given a state.
type SequentialMC struct {
	model  *models.Model
	method Method
	src    *random.Source

	state *models.State
	beta  []float32
}

// New returns an Uninitialized sampler. src is only used by ResampleState; the model's layers
// draw their own samples.
func New(m *models.Model, method Method, src *random.Source) *SequentialMC {
	return &SequentialMC{
		model:  m,
		method: method,
		src:    src,
	}
}

// FromBatch returns a sampler whose chains start at one training minibatch of data. The
// training split is rewound afterwards.
func FromBatch(m *models.Model, data batch.Batch, method Method, src *random.Source) (*SequentialMC, error) {
	v, err := data.Get(batch.Train)
	if err != nil {
		return nil, errors.WithMessage(err, "seeding a sampler")
	}
	data.Reset(batch.Train)
	s := New(m, method, src)
	st, err := models.StateFromVisible(m, v)
	if err != nil {
		return nil, err
	}
	s.state = st
	return s, nil
}

// FromRandom returns a sampler with rows chains drawn from the unconditional distributions of
// the layers.
func FromRandom(m *models.Model, rows int, method Method, src *random.Source) (*SequentialMC, error) {
	s := New(m, method, src)
	st, err := models.RandomState(m, rows)
	if err != nil {
		return nil, err
	}
	s.state = st
	return s, nil
}

// Ready reports whether the sampler has a state.
func (s *SequentialMC) Ready() bool { return s.state != nil }

// State returns the current chain state. It is owned by the sampler and changes with every
// update.
func (s *SequentialMC) State() *models.State { return s.state }

// Model returns the model the chains run on.
func (s *SequentialMC) Model() *models.Model { return s.model }

// SetState sets the chains to a copy of st. The existing buffers are reused when the shapes
// allow it.
func (s *SequentialMC) SetState(st *models.State) error {
	if err := s.model.Check(st); err != nil {
		return err
	}
	if s.state != nil && s.state.Batch() == st.Batch() {
		return s.state.CopyFrom(st)
	}
	s.state = st.Clone()
	return nil
}

// Reset drops the state; the sampler is Uninitialized again.
func (s *SequentialMC) Reset() { s.state = nil }

// UpdateState performs steps sweeps at the given temperature. With resample unset the
// visible layer of the final sweep is set to its conditional mean instead of being refreshed
// by the sampler's method, which gives smooth reconstructions.
func (s *SequentialMC) UpdateState(steps int, resample bool, temperature float32) error {
	return s.update(steps, resample, temperature, nil)
}

func (s *SequentialMC) update(steps int, resample bool, temperature float32, beta []float32) error {
	if s.state == nil {
		return ErrUninitialized
	}
	if !(temperature > 0) {
		return errors.Errorf("temperature must be positive, got %v", temperature)
	}
	if steps <= 0 {
		return nil
	}
	if beta == nil && temperature != 1 {
		beta = s.inverse(temperature)
	}
	op := s.method.op()
	last := op
	if !resample {
		last = models.Mean
	}
	return s.model.Iterate(steps, s.state, op, last, beta)
}

// inverse fills the inverse temperature buffer with 1/temperature.
func (s *SequentialMC) inverse(temperature float32) []float32 {
	rows := s.state.Batch()
	if len(s.beta) != rows {
		s.beta = make([]float32, rows)
	}
	for i := range s.beta {
		s.beta[i] = 1 / temperature
	}
	return s.beta
}

// ResampleState replaces the chains by a multinomial resample of themselves, each chain being
// drawn with probability proportional to exp(-F/temperature). F is the marginal free energy
// of the visible units for two layer models and the joint energy otherwise.
func (s *SequentialMC) ResampleState(temperature float32) error {
	if s.state == nil {
		return ErrUninitialized
	}
	if !(temperature > 0) {
		return errors.Errorf("temperature must be positive, got %v", temperature)
	}
	var energy []float32
	var err error
	if len(s.model.Layers) == 2 {
		energy, err = s.model.MarginalFreeEnergy(s.state.Units[0])
	} else {
		energy, err = s.model.Energy(s.state)
	}
	if err != nil {
		return err
	}
	logw := make([]float32, len(energy))
	for i, e := range energy {
		logw[i] = -e / temperature
	}
	norm := matrix.LogSumExp(logw)
	cdf := make([]float32, len(logw))
	var acc float32
	for i, lw := range logw {
		acc += math32.Exp(lw - norm)
		cdf[i] = acc
	}

	old := s.state.Clone()
	for i := range cdf {
		u := s.src.Uniform() * acc
		j := sort.Search(len(cdf), func(k int) bool { return cdf[k] > u })
		if j == len(cdf) {
			j = len(cdf) - 1
		}
		for l := range s.state.Units {
			copy(matrix.Row(s.state.Units[l], i), matrix.Row(old.Units[l], j))
		}
	}
	return nil
}

// Visible returns the visible units of the chains.
func (s *SequentialMC) Visible() *tensor.Dense {
	if s.state == nil {
		return nil
	}
	return s.state.Units[0]
}
