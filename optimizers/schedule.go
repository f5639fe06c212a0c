package optimizers

import "github.com/chewxy/math32"

// Schedule maps the number of steps already taken to a learning rate. Schedules are pure:
// the same t always gives the same rate.
type Schedule func(t int) float32

// Constant always returns lr.
func Constant(lr float32) Schedule {
	return func(int) float32 { return lr }
}

// PowerLawDecay returns initial/(1 + coefficient·t).
func PowerLawDecay(initial, coefficient float32) Schedule {
	return func(t int) float32 { return initial / (1 + coefficient*float32(t)) }
}

// ExponentialDecay returns initial·exp(-coefficient·t).
func ExponentialDecay(initial, coefficient float32) Schedule {
	return func(t int) float32 { return initial * math32.Exp(-coefficient*float32(t)) }
}
