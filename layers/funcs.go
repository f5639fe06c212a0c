package layers

import (
	"github.com/chewxy/math32"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

func sigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	e := math32.Exp(x)
	return e / (1 + e)
}

// tanh is written in terms of exp so it saturates instead of overflowing.
func tanh(x float32) float32 { return 2*sigmoid(2*x) - 1 }

// softplus computes log(1 + exp(x)).
func softplus(x float32) float32 {
	if x > 0 {
		return x + math32.Log1p(math32.Exp(-x))
	}
	return math32.Log1p(math32.Exp(x))
}

// logcosh2 computes log(2 cosh(x)).
func logcosh2(x float32) float32 {
	a := math32.Abs(x)
	return a + math32.Log1p(math32.Exp(-2*a))
}

func logit(p float32) float32 {
	p = clamp(p, matrix.Epsilon, 1-matrix.Epsilon)
	return math32.Log(p / (1 - p))
}

func atanh(x float32) float32 {
	x = clamp(x, -1+matrix.Epsilon, 1-matrix.Epsilon)
	return 0.5 * math32.Log((1+x)/(1-x))
}

func clamp(x, lo, hi float32) float32 {
	switch {
	case x < lo:
		return lo
	case x > hi:
		return hi
	}
	return x
}
