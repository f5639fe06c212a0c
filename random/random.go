// Package random provides the explicit, seeded source of randomness threaded through model
// initialization, sampling and batch shuffling.
//
// A Source never touches process wide state. Split derives independent child sources from a
// counter, so a whole training run is reproduced by reproducing its root seed.
package random

import (
	"math"
	"math/rand"

	rng "github.com/leesper/go_rng"
)

// Source draws uniform, normal, exponential and Bernoulli variates from a single seed.
type Source struct {
	seed    int64
	splits  uint64
	uniform *rng.UniformGenerator
	normal  *rng.GaussianGenerator
	exp     *rng.ExpGenerator
	coin    *rng.BernoulliGenerator
	perm    *rand.Rand
}

// New returns a Source seeded with seed.
func New(seed int64) *Source {
	return &Source{
		seed:    seed,
		uniform: rng.NewUniformGenerator(derive(seed, 1)),
		normal:  rng.NewGaussianGenerator(derive(seed, 2)),
		exp:     rng.NewExpGenerator(derive(seed, 3)),
		coin:    rng.NewBernoulliGenerator(derive(seed, 4)),
		perm:    rand.New(rand.NewSource(derive(seed, 5))),
	}
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 { return s.seed }

// Split returns a new Source whose stream is independent of s and of every other Split of s.
// The nth call to Split always returns the same child.
func (s *Source) Split() *Source {
	s.splits++
	return New(derive(s.seed, 1<<32+s.splits))
}

// Uniform draws from U[0, 1).
func (s *Source) Uniform() float32 { return float32(s.uniform.Float64()) }

// Normal draws from N(mean, std²).
func (s *Source) Normal(mean, std float32) float32 {
	return float32(s.normal.Gaussian(float64(mean), float64(std)))
}

// Exponential draws from an exponential distribution with the given rate.
func (s *Source) Exponential(rate float32) float32 { return float32(s.exp.Exp(float64(rate))) }

// Bernoulli returns true with probability p. p is clamped into [0, 1].
func (s *Source) Bernoulli(p float32) bool {
	switch {
	case p <= 0 || math.IsNaN(float64(p)):
		return false
	case p >= 1:
		return true
	}
	return s.coin.Bernoulli_P(float64(p))
}

// Intn draws an integer from [0, n).
func (s *Source) Intn(n int) int { return s.perm.Intn(n) }

// Perm returns a random permutation of [0, n).
func (s *Source) Perm(n int) []int { return s.perm.Perm(n) }

// derive mixes a seed and a stream id with splitmix64.
func derive(seed int64, stream uint64) int64 {
	z := uint64(seed) + stream*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return int64(z >> 1)
}
