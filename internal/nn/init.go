package nn

import (
	"math"
	"math/rand/v2"
)

// Initializer fills freshly allocated weights.
//
// Every initializer draws from the generator it is given; there is no
// package-level random state. fanIn and fanOut are the number of inputs and
// outputs feeding one weight.
type Initializer func(rng *rand.Rand, w []float32, fanIn, fanOut int)

// Normal draws weights from N(0, std^2).
//
// Normal(0.02) is the usual choice for adversarial image networks.
func Normal(std float32) Initializer {
	return func(rng *rand.Rand, w []float32, _, _ int) {
		for i := range w {
			w[i] = float32(rng.NormFloat64()) * std
		}
	}
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
//
// This initialization helps maintain variance of activations across layers.
func Xavier() Initializer {
	return func(rng *rand.Rand, w []float32, fanIn, fanOut int) {
		bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
		for i := range w {
			w[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
		}
	}
}

// Constant sets every weight to v.
func Constant(v float32) Initializer {
	return func(_ *rand.Rand, w []float32, _, _ int) {
		for i := range w {
			w[i] = v
		}
	}
}
