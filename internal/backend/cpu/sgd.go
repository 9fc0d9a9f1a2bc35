package cpu

// SGDUpdate applies one momentum SGD step to w in place:
//
//	vel = momentum*vel + g
//	w   = w - lr*vel
//
// With momentum 0 this is plain gradient descent and vel holds g.
func (k Kernels) SGDUpdate(w, g, vel []float32, lr, momentum float32) {
	cfg := k.Parallel
	cfg.MinChunkSize = max(cfg.MinChunkSize, 4096)

	Kernels{Parallel: cfg}.chunks(len(w), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			vi := momentum*vel[i] + g[i]
			vel[i] = vi
			w[i] -= lr * vi
		}
	})
}
