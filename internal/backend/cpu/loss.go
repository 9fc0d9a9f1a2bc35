package cpu

import (
	"github.com/chewxy/math32"
)

// ProbEps bounds predictions away from 0 and 1 in cross-entropy.
const ProbEps float32 = 1e-7

// MSE writes dy = y - t and returns the sum of squared errors.
func (k Kernels) MSE(dy, y, t []float32) float64 {
	var sum float64
	for i, v := range y {
		d := v - t[i]
		dy[i] = d
		sum += float64(d) * float64(d)
	}
	return sum
}

// BCE writes the binary cross-entropy gradient with respect to the
// probabilities p,
//
//	dy = (p - t) / (p*(1-p))
//
// and returns the summed loss -(t*log p + (1-t)*log(1-p)). p is clamped to
// [ProbEps, 1-ProbEps]. Followed by a logistic backward pass the gradient
// reaching the pre-activation is p - t only while p stays inside that
// range; saturated predictions lose their gradient. Use BCELogits when the
// logit is available.
func (k Kernels) BCE(dy, p, t []float32) float64 {
	var sum float64
	for i, v := range p {
		q := min(max(v, ProbEps), 1-ProbEps)
		ti := t[i]
		sum -= float64(ti*math32.Log(q) + (1-ti)*math32.Log(1-q))
		dy[i] = (q - ti) / (q * (1 - q))
	}
	return sum
}

// BCELogits writes the binary cross-entropy gradient with respect to the
// logits x of a logistic prediction,
//
//	dy = sigmoid(x) - t
//
// and returns the summed loss max(x,0) - x*t + log(1+exp(-|x|)), which
// equals -(t*log p + (1-t)*log(1-p)) for p = sigmoid(x) without forming p.
func (k Kernels) BCELogits(dy, x, t []float32) float64 {
	var sum float64
	for i, v := range x {
		ti := t[i]
		dy[i] = sigmoid(v) - ti
		sum += float64(max(v, 0) - v*ti + math32.Log1p(math32.Exp(-math32.Abs(v))))
	}
	return sum
}
