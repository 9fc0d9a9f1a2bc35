package cpu

import (
	"github.com/chewxy/math32"
)

// AdamStep carries the hyperparameters of one Adam update.
// BC1 and BC2 are the bias corrections 1-beta1^t and 1-beta2^t.
type AdamStep struct {
	LR, Beta1, Beta2, Eps float32
	BC1, BC2              float32
}

// AdamUpdate applies one Adam step to w in place, element by element:
//
//	m = beta1*m + (1-beta1)*g
//	v = beta2*v + (1-beta2)*g^2
//	w = w - lr * (m/bc1) / (sqrt(v/bc2) + eps)
//
// Each element's moments are written before its weight, and no element
// reads another's state.
func (k Kernels) AdamUpdate(w, g, m, v []float32, h AdamStep) {
	cfg := k.Parallel
	cfg.MinChunkSize = max(cfg.MinChunkSize, 4096)

	Kernels{Parallel: cfg}.chunks(len(w), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			gi := g[i]
			mi := h.Beta1*m[i] + (1-h.Beta1)*gi
			vi := h.Beta2*v[i] + (1-h.Beta2)*gi*gi
			m[i] = mi
			v[i] = vi

			mHat := mi / h.BC1
			vHat := vi / h.BC2
			w[i] -= h.LR * mHat / (math32.Sqrt(vHat) + h.Eps)
		}
	})
}
