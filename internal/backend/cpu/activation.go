package cpu

import (
	"github.com/chewxy/math32"
)

// Activation identifies an elementwise activation function.
type Activation int

const (
	// Logistic is the sigmoid 1/(1+exp(-x)).
	Logistic Activation = iota
	// LeakyReLU passes positive inputs and scales negative ones by LeakySlope.
	LeakyReLU
	// Linear is the identity.
	Linear
	// Tanh is the hyperbolic tangent.
	Tanh
)

// LeakySlope is the negative-side slope of LeakyReLU.
const LeakySlope float32 = 0.01

// String returns the activation name.
func (a Activation) String() string {
	switch a {
	case Logistic:
		return "logistic"
	case LeakyReLU:
		return "leaky"
	case Linear:
		return "linear"
	case Tanh:
		return "tanh"
	default:
		return "unknown"
	}
}

func sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

func tanh(x float32) float32 {
	// (e^2x - 1) / (e^2x + 1), saturated outside [-20, 20].
	if x > 20 {
		return 1
	}
	if x < -20 {
		return -1
	}
	e := math32.Exp(2 * x)
	return (e - 1) / (e + 1)
}

// ActivationForward computes y = a(x) elementwise.
func (k Kernels) ActivationForward(y, x []float32, a Activation) {
	cfg := k.Parallel
	cfg.MinChunkSize = max(cfg.MinChunkSize, 1024)

	Kernels{Parallel: cfg}.chunks(len(x), func(lo, hi int) {
		xs, ys := x[lo:hi], y[lo:hi]
		switch a {
		case Logistic:
			for i, v := range xs {
				ys[i] = sigmoid(v)
			}
		case LeakyReLU:
			for i, v := range xs {
				if v > 0 {
					ys[i] = v
				} else {
					ys[i] = LeakySlope * v
				}
			}
		case Tanh:
			for i, v := range xs {
				ys[i] = tanh(v)
			}
		default:
			copy(ys, xs)
		}
	})
}

// ActivationBackward computes dx = dy * a'(x) elementwise.
// The derivative is recomputed from x; no forward output is assumed cached.
func (k Kernels) ActivationBackward(dx, dy, x []float32, a Activation) {
	cfg := k.Parallel
	cfg.MinChunkSize = max(cfg.MinChunkSize, 1024)

	Kernels{Parallel: cfg}.chunks(len(x), func(lo, hi int) {
		xs, ds, out := x[lo:hi], dy[lo:hi], dx[lo:hi]
		switch a {
		case Logistic:
			for i, v := range xs {
				y := sigmoid(v)
				out[i] = ds[i] * y * (1 - y)
			}
		case LeakyReLU:
			for i, v := range xs {
				if v > 0 {
					out[i] = ds[i]
				} else {
					out[i] = LeakySlope * ds[i]
				}
			}
		case Tanh:
			for i, v := range xs {
				y := tanh(v)
				out[i] = ds[i] * (1 - y*y)
			}
		default:
			copy(out, ds)
		}
	})
}
