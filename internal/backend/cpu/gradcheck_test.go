package cpu

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"
)

// numericGrad estimates d/dp of sum(f(p) * r) with central differences,
// where f evaluates a kernel in float32.
func numericGrad(p []float32, f func(p []float32) []float32, r []float32, step float64) []float32 {
	eval := func(x []float64) float64 {
		buf := make([]float32, len(x))
		for i, v := range x {
			buf[i] = float32(v)
		}
		out := f(buf)
		var sum float64
		for i, v := range out {
			sum += float64(v) * float64(r[i])
		}
		return sum
	}

	x := make([]float64, len(p))
	for i, v := range p {
		x[i] = float64(v)
	}
	grad := fd.Gradient(nil, eval, x, &fd.Settings{Formula: fd.Central, Step: step})

	out := make([]float32, len(grad))
	for i, v := range grad {
		out[i] = float32(v)
	}
	return out
}

func requireClose(t *testing.T, want, got []float32, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.InDelta(t, want[i], got[i], tol, "index %d", i)
	}
}

func randSlice(rng *rand.Rand, n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = float32(rng.NormFloat64())
	}
	return s
}

func ones(n int) []float32 {
	s := make([]float32, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
