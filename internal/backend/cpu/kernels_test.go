package cpu

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDense(t *testing.T) {
	k := testKernels()
	g := DenseGeom{In: 3, Out: 2, Batch: 2}

	x := []float32{1, 2, 3, -1, 0, 1}
	w := []float32{1, 1, 1, 0, 2, -1}
	b := []float32{0.5, -0.5}

	y := make([]float32, 4)
	k.DenseForward(y, x, w, b, g)
	assert.Equal(t, []float32{6.5, 0.5, 0.5, -1.5}, y)

	rng := rand.New(rand.NewPCG(11, 12))
	r := randSlice(rng, 4)
	dx := make([]float32, len(x))
	dw := make([]float32, len(w))
	db := make([]float32, len(b))
	k.DenseBackwardInput(dx, r, w, g)
	k.DenseBackwardWeights(dw, db, r, x, g)

	forward := func(x, w, b []float32) []float32 {
		out := make([]float32, 4)
		k.DenseForward(out, x, w, b, g)
		return out
	}
	requireClose(t, numericGrad(x, func(p []float32) []float32 { return forward(p, w, b) }, r, 0.1), dx, 1e-3)
	requireClose(t, numericGrad(w, func(p []float32) []float32 { return forward(x, p, b) }, r, 0.1), dw, 1e-3)
	requireClose(t, numericGrad(b, func(p []float32) []float32 { return forward(x, w, p) }, r, 0.1), db, 1e-3)
}

func TestActivation_LeakyReLU(t *testing.T) {
	k := testKernels()

	y := make([]float32, 2)
	k.ActivationForward(y, []float32{-2, 3}, LeakyReLU)
	assert.InDelta(t, -0.02, y[0], 1e-7)
	assert.Equal(t, float32(3), y[1])

	dx := make([]float32, 2)
	k.ActivationBackward(dx, []float32{1, 1}, []float32{-2, 3}, LeakyReLU)
	assert.InDelta(t, 0.01, dx[0], 1e-7)
	assert.Equal(t, float32(1), dx[1])
}

func TestActivation_Logistic(t *testing.T) {
	k := testKernels()

	y := make([]float32, 1)
	k.ActivationForward(y, []float32{0}, Logistic)
	assert.Equal(t, float32(0.5), y[0])

	dx := make([]float32, 1)
	k.ActivationBackward(dx, []float32{1}, []float32{0}, Logistic)
	assert.Equal(t, float32(0.25), dx[0])
}

func TestActivation_Linear(t *testing.T) {
	k := testKernels()
	x := []float32{-1.5, 0, 2}

	y := make([]float32, 3)
	k.ActivationForward(y, x, Linear)
	assert.Equal(t, x, y)

	dx := make([]float32, 3)
	k.ActivationBackward(dx, []float32{4, 5, 6}, x, Linear)
	assert.Equal(t, []float32{4, 5, 6}, dx)
}

func TestActivation_Gradients(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 14))
	k := testKernels()

	for _, a := range []Activation{Logistic, LeakyReLU, Tanh} {
		t.Run(a.String(), func(t *testing.T) {
			x := randSlice(rng, 64)
			r := randSlice(rng, 64)
			for i := range x {
				// Keep away from the leaky kink.
				if math.Abs(float64(x[i])) < 0.05 {
					x[i] += 0.1
				}
			}

			dx := make([]float32, len(x))
			k.ActivationBackward(dx, r, x, a)

			num := numericGrad(x, func(p []float32) []float32 {
				y := make([]float32, len(p))
				k.ActivationForward(y, p, a)
				return y
			}, r, 1e-2)
			requireClose(t, num, dx, 5e-3)
		})
	}
}

func TestActivation_TanhSaturates(t *testing.T) {
	y := make([]float32, 3)
	testKernels().ActivationForward(y, []float32{-100, 0, 100}, Tanh)
	assert.Equal(t, []float32{-1, 0, 1}, y)
}

func TestBatchNorm_ForwardNormalizes(t *testing.T) {
	k := testKernels()
	const c = 2
	// Channel 0: 1,3,5,7; channel 1: 10,10,10,14.
	x := []float32{1, 10, 3, 10, 5, 10, 7, 14}

	mean, variance := make([]float32, c), make([]float32, c)
	k.BatchNormStats(mean, variance, x, c)
	assert.InDelta(t, 4, mean[0], 1e-6)
	assert.InDelta(t, 5, variance[0], 1e-6)
	assert.InDelta(t, 11, mean[1], 1e-6)
	assert.InDelta(t, 3, variance[1], 1e-6)

	y := make([]float32, len(x))
	k.BatchNormForward(y, x, mean, variance, []float32{1, 2}, []float32{0, 1}, c)

	var m0, m1 float64
	for i := 0; i < len(y); i += c {
		m0 += float64(y[i])
		m1 += float64(y[i+1])
	}
	assert.InDelta(t, 0, m0/4, 1e-5)
	assert.InDelta(t, 1, m1/4, 1e-5, "shift moves the channel mean")
	assert.InDelta(t, 3/math.Sqrt(5+1e-5), y[6], 1e-5)
}

func TestBatchNorm_Gradients(t *testing.T) {
	rng := rand.New(rand.NewPCG(15, 16))
	k := testKernels()
	const c = 3

	x := randSlice(rng, 8*c)
	gamma := []float32{1.5, -0.5, 1}
	beta := []float32{0.1, 0.2, 0.3}
	r := randSlice(rng, len(x))

	t.Run("batch statistics", func(t *testing.T) {
		mean, variance := make([]float32, c), make([]float32, c)
		k.BatchNormStats(mean, variance, x, c)

		dx := make([]float32, len(x))
		dgamma, dbeta := make([]float32, c), make([]float32, c)
		k.BatchNormBackward(dx, dgamma, dbeta, r, x, mean, variance, gamma, c, true)

		forward := func(x, gamma, beta []float32) []float32 {
			mu, v := make([]float32, c), make([]float32, c)
			k.BatchNormStats(mu, v, x, c)
			y := make([]float32, len(x))
			k.BatchNormForward(y, x, mu, v, gamma, beta, c)
			return y
		}
		requireClose(t, numericGrad(x, func(p []float32) []float32 { return forward(p, gamma, beta) }, r, 1e-2), dx, 1e-2)
		requireClose(t, numericGrad(gamma, func(p []float32) []float32 { return forward(x, p, beta) }, r, 1e-2), dgamma, 1e-2)
		requireClose(t, numericGrad(beta, func(p []float32) []float32 { return forward(x, gamma, p) }, r, 1e-2), dbeta, 1e-2)
	})

	t.Run("frozen statistics", func(t *testing.T) {
		mean := []float32{0.2, -0.1, 0}
		variance := []float32{0.9, 1.2, 2}

		dx := make([]float32, len(x))
		dgamma, dbeta := make([]float32, c), make([]float32, c)
		k.BatchNormBackward(dx, dgamma, dbeta, r, x, mean, variance, gamma, c, false)

		forward := func(x []float32) []float32 {
			y := make([]float32, len(x))
			k.BatchNormForward(y, x, mean, variance, gamma, beta, c)
			return y
		}
		requireClose(t, numericGrad(x, forward, r, 0.1), dx, 2e-3)
	})
}

func TestBatchNormRunning(t *testing.T) {
	runMean, runVar := []float32{0}, []float32{1}
	BatchNormRunning(runMean, runVar, []float32{2}, []float32{3}, 0.9)

	assert.InDelta(t, 0.2, runMean[0], 1e-6)
	assert.InDelta(t, 1.2, runVar[0], 1e-6)
}

func TestAdamUpdate_FirstStep(t *testing.T) {
	w := []float32{1}
	g := []float32{1}
	m := []float32{0}
	v := []float32{0}

	testKernels().AdamUpdate(w, g, m, v, AdamStep{
		LR: 0.0002, Beta1: 0.5, Beta2: 0.999, Eps: 1e-8,
		BC1: 1 - 0.5, BC2: 1 - 0.999,
	})

	assert.InDelta(t, 0.5, m[0], 1e-7)
	assert.InDelta(t, 0.001, v[0], 1e-7)
	assert.InDelta(t, 1-0.0002, w[0], 1e-6)
}

func TestAdamUpdate_Large(t *testing.T) {
	// Exercises the chunked path; every element is independent.
	n := 10000
	w, g, m, v := ones(n), make([]float32, n), make([]float32, n), make([]float32, n)
	for i := range g {
		g[i] = float32(i%7) - 3
	}

	testKernels().AdamUpdate(w, g, m, v, AdamStep{
		LR: 0.1, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8, BC1: 0.1, BC2: 0.001,
	})

	for i := range w {
		sign := float32(0)
		switch {
		case g[i] > 0:
			sign = 1
		case g[i] < 0:
			sign = -1
		}
		require.InDelta(t, 1-0.1*sign, w[i], 1e-4, "index %d", i)
	}
}

func TestMSE(t *testing.T) {
	dy := make([]float32, 3)
	sum := testKernels().MSE(dy, []float32{1, 2, 3}, []float32{0, 2, 5})

	assert.Equal(t, []float32{1, 0, -2}, dy)
	assert.InDelta(t, 5.0, sum, 1e-9)
}

func TestBCE(t *testing.T) {
	p := []float32{0.5, 0.9, 0.2}
	target := []float32{1, 1, 0}
	dy := make([]float32, 3)

	sum := testKernels().BCE(dy, p, target)
	want := -(math.Log(0.5) + math.Log(0.9) + math.Log(0.8))
	assert.InDelta(t, want, sum, 1e-5)

	// Composed with the logistic derivative p(1-p) the gradient is p - t.
	for i := range p {
		assert.InDelta(t, p[i]-target[i], dy[i]*p[i]*(1-p[i]), 1e-6, "index %d", i)
	}
}

func TestBCE_ClampsSaturatedPredictions(t *testing.T) {
	dy := make([]float32, 2)
	sum := testKernels().BCE(dy, []float32{0, 1}, []float32{1, 0})

	assert.False(t, math.IsInf(sum, 0))
	assert.False(t, math.IsNaN(sum))
	for _, d := range dy {
		assert.False(t, math.IsInf(float64(d), 0))
	}
}

func TestBCELogits(t *testing.T) {
	logits := []float32{0, 2, -1}
	target := []float32{1, 0, 0}
	dy := make([]float32, 3)

	sum := testKernels().BCELogits(dy, logits, target)

	var want float64
	for i, x := range logits {
		p := 1 / (1 + math.Exp(-float64(x)))
		assert.InDelta(t, p-float64(target[i]), dy[i], 1e-6, "index %d", i)
		if target[i] == 1 {
			want -= math.Log(p)
		} else {
			want -= math.Log(1 - p)
		}
	}
	assert.InDelta(t, want, sum, 1e-5)
}

func TestBCELogits_Saturated(t *testing.T) {
	logits := []float32{-20, -17, 17, 20}
	target := []float32{1, 1, 0, 0}
	dy := make([]float32, 4)

	sum := testKernels().BCELogits(dy, logits, target)

	assert.InDeltaSlice(t, []float32{-1, -1, 1, 1}, dy, 1e-6, "confident mistakes keep a full gradient")
	assert.InDelta(t, 20+17+17+20, sum, 1e-4)
}
