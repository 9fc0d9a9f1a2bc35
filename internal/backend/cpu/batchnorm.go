package cpu

import (
	"github.com/chewxy/math32"
)

// BatchNormEps is added to the variance before taking the square root.
const BatchNormEps float32 = 1e-5

// BatchNormStats computes the per-channel mean and biased variance of x,
// which holds items with c channels in the innermost position.
func (k Kernels) BatchNormStats(mean, variance, x []float32, c int) {
	m := len(x) / c
	k.forEach(c, func(ch int) {
		var sum float64
		for i := ch; i < len(x); i += c {
			sum += float64(x[i])
		}
		mu := sum / float64(m)

		var sq float64
		for i := ch; i < len(x); i += c {
			d := float64(x[i]) - mu
			sq += d * d
		}
		mean[ch] = float32(mu)
		variance[ch] = float32(sq / float64(m))
	})
}

// BatchNormForward computes y = gamma*(x-mean)/sqrt(var+eps) + beta per channel.
func (k Kernels) BatchNormForward(y, x, mean, variance, gamma, beta []float32, c int) {
	inv := make([]float32, c)
	for ch := range inv {
		inv[ch] = 1 / math32.Sqrt(variance[ch]+BatchNormEps)
	}

	cfg := k.Parallel
	cfg.MinChunkSize = max(cfg.MinChunkSize, 64)
	Kernels{Parallel: cfg}.chunks(len(x)/c, func(lo, hi int) {
		for p := lo; p < hi; p++ {
			xs := x[p*c : (p+1)*c]
			ys := y[p*c : (p+1)*c]
			for ch, v := range xs {
				ys[ch] = gamma[ch]*(v-mean[ch])*inv[ch] + beta[ch]
			}
		}
	})
}

// BatchNormBackward computes the input, scale and shift gradients.
//
// batchStats reports whether the forward pass normalised with the statistics
// of x itself; the input gradient then flows through the mean and variance.
// Otherwise mean and variance are constants (frozen running statistics).
func (k Kernels) BatchNormBackward(dx, dgamma, dbeta, dy, x, mean, variance, gamma []float32, c int, batchStats bool) {
	m := float32(len(x) / c)

	k.forEach(c, func(ch int) {
		inv := 1 / math32.Sqrt(variance[ch]+BatchNormEps)
		mu := mean[ch]

		var sumDy, sumDyXhat float32
		for i := ch; i < len(x); i += c {
			xhat := (x[i] - mu) * inv
			sumDy += dy[i]
			sumDyXhat += dy[i] * xhat
		}
		dgamma[ch] = sumDyXhat
		dbeta[ch] = sumDy

		scale := gamma[ch] * inv
		if !batchStats {
			for i := ch; i < len(x); i += c {
				dx[i] = scale * dy[i]
			}
			return
		}
		for i := ch; i < len(x); i += c {
			xhat := (x[i] - mu) * inv
			dx[i] = scale / m * (m*dy[i] - sumDy - xhat*sumDyXhat)
		}
	})
}

// BatchNormRunning blends batch statistics into running statistics:
// r = momentum*r + (1-momentum)*batch.
func BatchNormRunning(runMean, runVar, mean, variance []float32, momentum float32) {
	for ch := range runMean {
		runMean[ch] = momentum*runMean[ch] + (1-momentum)*mean[ch]
		runVar[ch] = momentum*runVar[ch] + (1-momentum)*variance[ch]
	}
}
