package cpu

// DenseGeom describes a fully-connected layer over batch items with 1x1
// spatial extent. Weights are laid out W[o, k] (row per output unit).
type DenseGeom struct {
	In, Out int
	Batch   int
}

// DenseForward computes Y[n,o] = sum_k X[n,k]*W[o,k] + B[o]. b may be nil.
func (k Kernels) DenseForward(y, x, w, b []float32, g DenseGeom) {
	k.forRows(g.Batch, g.Out, func(n, o int) {
		xs := x[n*g.In : (n+1)*g.In]
		ws := w[o*g.In : (o+1)*g.In]
		var sum float32
		if b != nil {
			sum = b[o]
		}
		for i, xv := range xs {
			sum += xv * ws[i]
		}
		y[n*g.Out+o] = sum
	})
}

// DenseBackwardWeights computes dW[o,k] = sum_n dY[n,o]*X[n,k] and
// dB[o] = sum_n dY[n,o]. db may be nil.
func (k Kernels) DenseBackwardWeights(dw, db, dy, x []float32, g DenseGeom) {
	k.forEach(g.Out, func(o int) {
		row := dw[o*g.In : (o+1)*g.In]
		clear(row)
		var bias float32
		for n := 0; n < g.Batch; n++ {
			d := dy[n*g.Out+o]
			bias += d
			if d == 0 {
				continue
			}
			xs := x[n*g.In : (n+1)*g.In]
			for i, xv := range xs {
				row[i] += d * xv
			}
		}
		if db != nil {
			db[o] = bias
		}
	})
}

// DenseBackwardInput computes dX[n,k] = sum_o dY[n,o]*W[o,k].
func (k Kernels) DenseBackwardInput(dx, dy, w []float32, g DenseGeom) {
	k.forEach(g.Batch, func(n int) {
		acc := dx[n*g.In : (n+1)*g.In]
		clear(acc)
		ds := dy[n*g.Out : (n+1)*g.Out]
		for o, d := range ds {
			if d == 0 {
				continue
			}
			ws := w[o*g.In : (o+1)*g.In]
			for i := range acc {
				acc[i] += d * ws[i]
			}
		}
	})
}
